package loan

import (
	"time"

	domain "loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
	"loanflow/pkg/amortization"

	"github.com/shopspring/decimal"
)

type CreateLoanInput struct {
	BorrowerID        string
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
}

type QuoteInput struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
	StartDate         time.Time // zero means today (UTC)
}

// Money fields are rendered with exactly 2 decimal places.
type LoanDTO struct {
	LoanID            string     `json:"loan_id"`
	BorrowerID        string     `json:"borrower_id"`
	Principal         string     `json:"principal"`
	AnnualRatePercent string     `json:"annual_rate_percent"`
	TermMonths        int        `json:"term_months"`
	Status            string     `json:"status"`
	Version           uint64     `json:"version"`
	StatusUpdatedAt   time.Time  `json:"status_updated_at"`
	DisbursedAt       *time.Time `json:"disbursed_at,omitempty"`
	CreatedAt         time.Time  `json:"created_at"`
}

type InstallmentDTO struct {
	Seq       int    `json:"seq"`
	DueDate   string `json:"due_date"` // YYYY-MM-DD
	Amount    string `json:"amount"`
	Principal string `json:"principal"`
	Interest  string `json:"interest"`
	Status    string `json:"status,omitempty"`
	Source    string `json:"source,omitempty"`
}

type ScheduleDTO struct {
	LoanID        string           `json:"loan_id,omitempty"`
	Payment       string           `json:"monthly_payment"`
	TotalAmount   string           `json:"total_amount"`
	TotalInterest string           `json:"total_interest"`
	Installments  []InstallmentDTO `json:"installments"`
}

const dateLayout = "2006-01-02"

func money(d decimal.Decimal) string { return d.StringFixed(2) }

func toLoanDTO(l *domain.Loan) *LoanDTO {
	return &LoanDTO{
		LoanID:            l.LoanID,
		BorrowerID:        l.BorrowerID,
		Principal:         money(l.Principal),
		AnnualRatePercent: l.AnnualRatePercent.String(),
		TermMonths:        l.TermMonths,
		Status:            string(l.Status),
		Version:           l.Version,
		StatusUpdatedAt:   l.StatusUpdatedAt,
		DisbursedAt:       l.DisbursedAt,
		CreatedAt:         l.CreatedAt,
	}
}

func quoteDTO(items []amortization.Installment) *ScheduleDTO {
	out := &ScheduleDTO{Installments: make([]InstallmentDTO, 0, len(items))}
	interest := decimal.Zero
	for _, it := range items {
		interest = interest.Add(it.Interest)
		out.Installments = append(out.Installments, InstallmentDTO{
			Seq:       it.Seq,
			DueDate:   it.DueDate.Format(dateLayout),
			Amount:    money(it.Amount),
			Principal: money(it.Principal),
			Interest:  money(it.Interest),
		})
	}
	if len(items) > 0 {
		out.Payment = money(items[0].Amount)
	}
	out.TotalAmount = money(amortization.Total(items))
	out.TotalInterest = money(interest)
	return out
}

func repaymentsDTO(loanID string, items []repayment.Installment) *ScheduleDTO {
	out := &ScheduleDTO{LoanID: loanID, Installments: make([]InstallmentDTO, 0, len(items))}
	total, interest := decimal.Zero, decimal.Zero
	for _, it := range items {
		total = total.Add(it.Amount)
		interest = interest.Add(it.InterestComponent)
		out.Installments = append(out.Installments, InstallmentDTO{
			Seq:       it.Seq,
			DueDate:   it.DueDate.UTC().Format(dateLayout),
			Amount:    money(it.Amount),
			Principal: money(it.PrincipalComponent),
			Interest:  money(it.InterestComponent),
			Status:    string(it.Status),
			Source:    it.Source,
		})
	}
	if len(items) > 0 {
		out.Payment = money(items[0].Amount)
	}
	out.TotalAmount = money(total)
	out.TotalInterest = money(interest)
	return out
}
