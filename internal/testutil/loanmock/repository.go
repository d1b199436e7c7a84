package loanmock

import (
	"context"
	"time"

	domain "loanflow/internal/domain/loan"
)

var _ domain.Repository = (*Repo)(nil)

// Repo is a function-backed mock that satisfies domain.Repository.
// Lookups with no func set return context.Canceled; writes are no-ops.
type Repo struct {
	CreateFn                       func(ctx context.Context, l *domain.Loan) error
	GetByLoanIDFn                  func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetByLoanIDForUpdateFn         func(ctx context.Context, loanID string) (*domain.Loan, error)
	GetOpenLoanByBorrowerIDFn      func(ctx context.Context, borrowerID string) (*domain.Loan, error)
	UpdateStatusFn                 func(ctx context.Context, l *domain.Loan, next domain.Status, at time.Time) error
	ListDisbursedWithoutScheduleFn func(ctx context.Context, limit int) ([]domain.Loan, error)
}

func (m *Repo) Create(ctx context.Context, l *domain.Loan) error {
	if m.CreateFn != nil {
		return m.CreateFn(ctx, l)
	}
	return nil
}

func (m *Repo) GetByLoanID(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDFn != nil {
		return m.GetByLoanIDFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*domain.Loan, error) {
	if m.GetByLoanIDForUpdateFn != nil {
		return m.GetByLoanIDForUpdateFn(ctx, loanID)
	}
	return nil, context.Canceled
}

func (m *Repo) GetOpenLoanByBorrowerID(ctx context.Context, borrowerID string) (*domain.Loan, error) {
	if m.GetOpenLoanByBorrowerIDFn != nil {
		return m.GetOpenLoanByBorrowerIDFn(ctx, borrowerID)
	}
	return nil, context.Canceled
}

// UpdateStatus mirrors the real repository when no func is set: it applies
// next to l and bumps the version.
func (m *Repo) UpdateStatus(ctx context.Context, l *domain.Loan, next domain.Status, at time.Time) error {
	if m.UpdateStatusFn != nil {
		return m.UpdateStatusFn(ctx, l, next, at)
	}
	l.Status = next
	l.Version++
	l.StatusUpdatedAt = at
	if next == domain.StatusDisbursed {
		l.DisbursedAt = &at
	}
	return nil
}

func (m *Repo) ListDisbursedWithoutSchedule(ctx context.Context, limit int) ([]domain.Loan, error) {
	if m.ListDisbursedWithoutScheduleFn != nil {
		return m.ListDisbursedWithoutScheduleFn(ctx, limit)
	}
	return nil, nil
}
