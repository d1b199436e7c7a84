// Package schedule materializes repayment schedules for disbursed loans.
package schedule

import (
	"context"
	"errors"
	"fmt"
	"time"

	loanDomain "loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
	"loanflow/internal/domain/uow"
	"loanflow/internal/usecase/storeerr"
	"loanflow/pkg/amortization"

	"go.uber.org/zap"
)

// Build computes the installment rows for l with due dates counted from the
// calendar date of start (UTC). Bad loan terms yield ErrInvalidInput.
func Build(l *loanDomain.Loan, start time.Time) ([]repayment.Installment, error) {
	s := start.UTC()
	day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)

	plan, err := amortization.GenerateSchedule(l.Principal, l.AnnualRatePercent, l.TermMonths, day)
	if err != nil {
		return nil, fmt.Errorf("%w: loan %s: %w", loanDomain.ErrInvalidInput, l.LoanID, err)
	}

	out := make([]repayment.Installment, 0, len(plan))
	for _, p := range plan {
		out = append(out, repayment.Installment{
			LoanID:             l.ID,
			Seq:                p.Seq,
			DueDate:            p.DueDate,
			Amount:             p.Amount,
			PrincipalComponent: p.Principal,
			InterestComponent:  p.Interest,
			Source:             repayment.SourcePayroll,
			Status:             repayment.StatusPending,
		})
	}
	return out, nil
}

// Persist stores items unless the loan already has a schedule, and returns
// the number of rows written. Callers run it inside the loan's transaction.
func Persist(ctx context.Context, repo repayment.Repository, loanNumericID uint64, items []repayment.Installment) (int, error) {
	n, err := repo.CountByLoanID(ctx, loanNumericID)
	if err != nil {
		return 0, err
	}
	if n > 0 {
		return 0, nil
	}
	if err := repo.CreateBatch(ctx, items); err != nil {
		return 0, err
	}
	return len(items), nil
}

type Service struct {
	loans loanDomain.Repository
	uow   uow.UnitOfWork
	log   *zap.Logger
}

func NewService(loans loanDomain.Repository, tx uow.UnitOfWork, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{loans: loans, uow: tx, log: logger.Named("schedule")}
}

// EnsureSchedule writes the schedule of a disbursed loan that has none,
// starting from its disbursement date. It returns the number of
// installments created, 0 when the schedule already exists.
func (s *Service) EnsureSchedule(ctx context.Context, loanID string) (int, error) {
	created := 0
	err := s.uow.WithinLoanTx(ctx, loanID, func(r uow.Repos, l *loanDomain.Loan) error {
		if l.Status != loanDomain.StatusDisbursed {
			return fmt.Errorf("%w: loan %s is %s, not disbursed", loanDomain.ErrInvalidState, l.LoanID, l.Status)
		}
		start := l.StatusUpdatedAt
		if l.DisbursedAt != nil {
			start = *l.DisbursedAt
		}
		items, err := Build(l, start)
		if err != nil {
			return err
		}
		created, err = Persist(ctx, r.Repayments, l.ID, items)
		return err
	})
	if err != nil {
		return 0, storeerr.Wrap(err)
	}
	if created > 0 {
		s.log.Info("schedule created", zap.String("loan_id", loanID), zap.Int("installments", created))
	}
	return created, nil
}

// BackfillMissing ensures schedules for up to limit disbursed loans that have
// none and returns how many loans got one. Failures on single loans are
// collected and do not stop the run.
func (s *Service) BackfillMissing(ctx context.Context, limit int) (int, error) {
	if limit <= 0 {
		return 0, fmt.Errorf("%w: limit must be positive", loanDomain.ErrInvalidInput)
	}
	pending, err := s.loans.ListDisbursedWithoutSchedule(ctx, limit)
	if err != nil {
		return 0, storeerr.Wrap(err)
	}

	var (
		fixed int
		errs  []error
	)
	for _, l := range pending {
		if err := ctx.Err(); err != nil {
			errs = append(errs, err)
			break
		}
		n, err := s.EnsureSchedule(ctx, l.LoanID)
		if err != nil {
			s.log.Warn("backfill failed", zap.String("loan_id", l.LoanID), zap.Error(err))
			errs = append(errs, fmt.Errorf("loan %s: %w", l.LoanID, err))
			continue
		}
		if n > 0 {
			fixed++
		}
	}

	s.log.Info("backfill run", zap.Int("candidates", len(pending)), zap.Int("scheduled", fixed), zap.Int("failed", len(errs)))
	return fixed, errors.Join(errs...)
}
