package uow

import (
	"context"

	"loanflow/internal/domain/approval"
	"loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
)

// Repos are bound to the transaction they were handed out in.
type Repos struct {
	Loans      loan.Repository
	Approvals  approval.Repository
	Repayments repayment.Repository
}

type UnitOfWork interface {
	// plain tx
	WithinTx(ctx context.Context, fn func(r Repos) error) error
	// convenience: lock loan first, then pass it in
	WithinLoanTx(ctx context.Context, loanID string, fn func(r Repos, l *loan.Loan) error) error
}
