package repaymentmock

import (
	"context"

	domain "loanflow/internal/domain/repayment"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// With no funcs set it behaves as an empty store that accepts writes.
type Repo struct {
	CreateBatchFn   func(ctx context.Context, items []domain.Installment) error
	CountByLoanIDFn func(ctx context.Context, loanNumericID uint64) (int64, error)
	ListByLoanIDFn  func(ctx context.Context, loanNumericID uint64) ([]domain.Installment, error)
}

func (m *Repo) CreateBatch(ctx context.Context, items []domain.Installment) error {
	if m.CreateBatchFn != nil {
		return m.CreateBatchFn(ctx, items)
	}
	return nil
}

func (m *Repo) CountByLoanID(ctx context.Context, loanNumericID uint64) (int64, error) {
	if m.CountByLoanIDFn != nil {
		return m.CountByLoanIDFn(ctx, loanNumericID)
	}
	return 0, nil
}

func (m *Repo) ListByLoanID(ctx context.Context, loanNumericID uint64) ([]domain.Installment, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanNumericID)
	}
	return nil, nil
}
