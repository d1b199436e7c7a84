package repayment

import "context"

type Repository interface {
	// CreateBatch stores a whole schedule in one statement.
	CreateBatch(ctx context.Context, items []Installment) error
	CountByLoanID(ctx context.Context, loanID uint64) (int64, error)
	ListByLoanID(ctx context.Context, loanID uint64) ([]Installment, error)
}
