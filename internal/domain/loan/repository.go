package loan

import (
	"context"
	"time"
)

type Repository interface {
	Create(ctx context.Context, l *Loan) error
	GetByLoanID(ctx context.Context, loanID string) (*Loan, error)
	// GetByLoanIDForUpdate locks the loan row for the rest of the transaction.
	GetByLoanIDForUpdate(ctx context.Context, loanID string) (*Loan, error)
	// GetOpenLoanByBorrowerID returns the borrower's most recent non-terminal
	// loan. It is a locking read; inside a transaction it holds the borrower's
	// index range until commit.
	GetOpenLoanByBorrowerID(ctx context.Context, borrowerID string) (*Loan, error)
	// UpdateStatus writes next only if l.Version still matches the stored row,
	// then bumps l.Version. A stale version yields ErrConflict.
	UpdateStatus(ctx context.Context, l *Loan, next Status, at time.Time) error
	// ListDisbursedWithoutSchedule returns disbursed loans that have no installments.
	ListDisbursedWithoutSchedule(ctx context.Context, limit int) ([]Loan, error)
}
