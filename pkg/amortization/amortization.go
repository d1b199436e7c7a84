// Package amortization builds fixed-payment, declining-balance repayment
// schedules. Everything here is pure: the same terms and start date always
// produce the same schedule.
package amortization

import (
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// MaxTermMonths bounds the schedule length (50 years).
const MaxTermMonths = 600

// scale is the number of decimal places carried through intermediate math.
const scale = 28

var ErrInvalidTerms = errors.New("invalid loan terms")

var (
	hundred = decimal.NewFromInt(100)
	twelve  = decimal.NewFromInt(12)
	one     = decimal.NewFromInt(1)
)

// Terms are the loan inputs the engine needs.
type Terms struct {
	Principal         decimal.Decimal
	AnnualRatePercent decimal.Decimal
	TermMonths        int
}

// Validate rejects terms the engine cannot amortize. The principal must be
// expressible in currency minor units so the schedule can sum to it exactly.
func (t Terms) Validate() error {
	switch {
	case t.Principal.Sign() <= 0:
		return fmt.Errorf("%w: principal must be positive", ErrInvalidTerms)
	case !t.Principal.Equal(t.Principal.Round(2)):
		return fmt.Errorf("%w: principal must have at most 2 decimal places", ErrInvalidTerms)
	case t.AnnualRatePercent.Sign() < 0:
		return fmt.Errorf("%w: annual rate must not be negative", ErrInvalidTerms)
	case t.AnnualRatePercent.GreaterThan(hundred):
		return fmt.Errorf("%w: annual rate must not exceed 100%%", ErrInvalidTerms)
	case t.TermMonths <= 0:
		return fmt.Errorf("%w: term must be at least one month", ErrInvalidTerms)
	case t.TermMonths > MaxTermMonths:
		return fmt.Errorf("%w: term must not exceed %d months", ErrInvalidTerms, MaxTermMonths)
	}
	return nil
}

// Installment is one scheduled repayment. Amount, Principal and Interest are
// rounded to 2 decimal places.
type Installment struct {
	Seq       int
	DueDate   time.Time
	Amount    decimal.Decimal
	Principal decimal.Decimal
	Interest  decimal.Decimal
}

// MonthlyRate converts an annual percentage into the periodic monthly rate.
func MonthlyRate(annualRatePercent decimal.Decimal) decimal.Decimal {
	return annualRatePercent.DivRound(hundred, scale).DivRound(twelve, scale)
}

// Payment returns the unrounded fixed monthly payment for the given monthly rate.
func Payment(principal, monthlyRate decimal.Decimal, termMonths int) decimal.Decimal {
	n := decimal.NewFromInt(int64(termMonths))
	if monthlyRate.IsZero() {
		return principal.DivRound(n, scale)
	}
	f := pow(one.Add(monthlyRate), termMonths)
	return principal.Mul(monthlyRate).Mul(f).Round(scale).DivRound(f.Sub(one), scale)
}

// GenerateSchedule returns termMonths installments, the i-th due i calendar
// months after start. Balances are tracked unrounded; each installment is
// rounded on output and the last one absorbs the discrepancy so the amounts
// sum to the principal exactly. The discrepancy includes the interest carried
// by the earlier payments, so for most multi-month terms the last amount and
// principal are negative.
func GenerateSchedule(principal, annualRatePercent decimal.Decimal, termMonths int, start time.Time) ([]Installment, error) {
	terms := Terms{Principal: principal, AnnualRatePercent: annualRatePercent, TermMonths: termMonths}
	if err := terms.Validate(); err != nil {
		return nil, err
	}

	r := MonthlyRate(annualRatePercent)
	payment := Payment(principal, r, termMonths)

	out := make([]Installment, 0, termMonths)
	balance := principal
	for i := 1; i <= termMonths; i++ {
		interest := balance.Mul(r).Round(scale)
		principalPart := payment.Sub(interest)
		balance = balance.Sub(principalPart)

		out = append(out, Installment{
			Seq:       i,
			DueDate:   AddMonths(start, i),
			Amount:    payment.Round(2),
			Principal: principalPart.Round(2),
			Interest:  interest.Round(2),
		})
	}

	if discrepancy := principal.Sub(Total(out)); !discrepancy.IsZero() {
		last := &out[len(out)-1]
		last.Amount = last.Amount.Add(discrepancy)
		last.Principal = last.Principal.Add(discrepancy)
	}
	return out, nil
}

// Total sums installment amounts.
func Total(items []Installment) decimal.Decimal {
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Amount)
	}
	return sum
}

// AddMonths advances t by n calendar months, clamping the day to the last
// valid day of the target month (Jan 31 + 1 month = Feb 28/29).
func AddMonths(t time.Time, n int) time.Time {
	y, m, d := t.Date()
	hh, mm, ss := t.Clock()
	lastDay := time.Date(y, m+time.Month(n)+1, 0, 0, 0, 0, 0, t.Location()).Day()
	if d > lastDay {
		d = lastDay
	}
	return time.Date(y, m+time.Month(n), d, hh, mm, ss, t.Nanosecond(), t.Location())
}

func pow(base decimal.Decimal, n int) decimal.Decimal {
	out := one
	for i := 0; i < n; i++ {
		out = out.Mul(base).Round(scale)
	}
	return out
}
