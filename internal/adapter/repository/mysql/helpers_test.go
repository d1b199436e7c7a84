package mysql

import (
	"testing"
	"time"

	approvalDomain "loanflow/internal/domain/approval"
	loanDomain "loanflow/internal/domain/loan"
	repaymentDomain "loanflow/internal/domain/repayment"
	"loanflow/internal/domain/role"
	"loanflow/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

// openTestDB creates an in-memory sqlite DB with the full schema. A single
// connection keeps every statement on the same in-memory database.
func openTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("sql db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := db.AutoMigrate(&loanDomain.Loan{}, &approvalDomain.Log{}, &repaymentDomain.Installment{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}
	return db
}

func makeLoan(loanID, borrowerID string) *loanDomain.Loan {
	return &loanDomain.Loan{
		LoanID:            loanID,
		BorrowerID:        borrowerID,
		Principal:         decimal.RequireFromString("12000"),
		AnnualRatePercent: decimal.RequireFromString("12"),
		TermMonths:        12,
		Status:            loanDomain.StatusPending,
		Version:           1,
		StatusUpdatedAt:   time.Now().UTC(),
	}
}

func makeLog(loanNumericID uint64, r role.Role, decision loanDomain.Status) *approvalDomain.Log {
	return &approvalDomain.Log{
		LogID:       id.NewID32(),
		LoanID:      loanNumericID,
		ActorUserID: "user-" + r.String(),
		Role:        r,
		OrderRank:   r.Rank(),
		Decision:    decision,
		Comment:     "ok",
		CreatedAt:   time.Now().UTC(),
	}
}

func makeInstallments(loanNumericID uint64, n int) []repaymentDomain.Installment {
	out := make([]repaymentDomain.Installment, 0, n)
	due := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)
	for i := 1; i <= n; i++ {
		out = append(out, repaymentDomain.Installment{
			LoanID:             loanNumericID,
			Seq:                i,
			DueDate:            due.AddDate(0, i-1, 0),
			Amount:             decimal.RequireFromString("100.50"),
			PrincipalComponent: decimal.RequireFromString("90.25"),
			InterestComponent:  decimal.RequireFromString("10.25"),
			Source:             repaymentDomain.SourcePayroll,
			Status:             repaymentDomain.StatusPending,
		})
	}
	return out
}
