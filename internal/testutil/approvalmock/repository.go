package approvalmock

import (
	"context"

	domain "loanflow/internal/domain/approval"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
type Repo struct {
	CreateFn            func(ctx context.Context, a *domain.Log) error
	GetLatestByLoanIDFn func(ctx context.Context, loanNumericID uint64) (*domain.Log, error)
	ListByLoanIDFn      func(ctx context.Context, loanNumericID uint64) ([]domain.Log, error)
}

func (m *Repo) Create(ctx context.Context, a *domain.Log) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, a)
	}
	return nil
}

func (m *Repo) GetLatestByLoanID(ctx context.Context, loanNumericID uint64) (*domain.Log, error) {
	if m.GetLatestByLoanIDFn != nil {
		return m.GetLatestByLoanIDFn(ctx, loanNumericID)
	}
	return nil, context.Canceled
}

func (m *Repo) ListByLoanID(ctx context.Context, loanNumericID uint64) ([]domain.Log, error) {
	if m.ListByLoanIDFn != nil {
		return m.ListByLoanIDFn(ctx, loanNumericID)
	}
	return nil, nil
}
