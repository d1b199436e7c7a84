package loan

import (
	"context"
	"errors"
	"fmt"
	"time"

	"loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
	"loanflow/internal/domain/uow"
	"loanflow/internal/usecase/storeerr"
	"loanflow/pkg/amortization"
	"loanflow/pkg/id"

	"go.uber.org/zap"
)

type Usecase struct {
	repo       loan.Repository
	repayments repayment.Repository
	uow        uow.UnitOfWork
	log        *zap.Logger
	now        func() time.Time
}

// NewUsecase: tx runs the open-loan check and the insert of Create together.
func NewUsecase(r loan.Repository, repayments repayment.Repository, tx uow.UnitOfWork, logger *zap.Logger) *Usecase {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Usecase{
		repo:       r,
		repayments: repayments,
		uow:        tx,
		log:        logger.Named("loan"),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

func invalidTerms(err error) error {
	if errors.Is(err, amortization.ErrInvalidTerms) {
		return fmt.Errorf("%w: %w", loan.ErrInvalidInput, err)
	}
	return err
}

// Create opens a loan application in PENDING. A borrower may hold only one
// open application at a time; the check is a locking read in the same
// transaction as the insert.
func (u *Usecase) Create(ctx context.Context, in CreateLoanInput) (*LoanDTO, error) {
	if !id.Valid(in.BorrowerID) {
		return nil, fmt.Errorf("%w: borrower_id must be 32 lowercase hex chars", loan.ErrInvalidInput)
	}
	terms := amortization.Terms{Principal: in.Principal, AnnualRatePercent: in.AnnualRatePercent, TermMonths: in.TermMonths}
	if err := terms.Validate(); err != nil {
		return nil, invalidTerms(err)
	}

	if u.uow == nil {
		return nil, fmt.Errorf("%w: no unit of work configured", loan.ErrPersistence)
	}

	l := &loan.Loan{
		LoanID:            id.NewID32(),
		BorrowerID:        in.BorrowerID,
		Principal:         in.Principal,
		AnnualRatePercent: in.AnnualRatePercent,
		TermMonths:        in.TermMonths,
		Status:            loan.StatusPending,
		Version:           1,
		StatusUpdatedAt:   u.now(),
	}
	err := u.uow.WithinTx(ctx, func(r uow.Repos) error {
		open, err := r.Loans.GetOpenLoanByBorrowerID(ctx, in.BorrowerID)
		switch {
		case err == nil:
			return fmt.Errorf("%w: borrower %s already has an open loan: %s", loan.ErrConflict, in.BorrowerID, open.LoanID)
		case !storeerr.IsNotFound(err):
			return err
		}
		return r.Loans.Create(ctx, l)
	})
	if err != nil {
		return nil, storeerr.Wrap(err)
	}

	u.log.Info("loan created", zap.String("loan_id", l.LoanID), zap.String("borrower_id", l.BorrowerID),
		zap.Stringer("principal", l.Principal), zap.Int("term_months", l.TermMonths))
	return toLoanDTO(l), nil
}

func (u *Usecase) Get(ctx context.Context, loanID string) (*LoanDTO, error) {
	l, err := u.repo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return toLoanDTO(l), nil
}

// Quote previews the schedule for the given terms without storing anything.
func (u *Usecase) Quote(in QuoteInput) (*ScheduleDTO, error) {
	start := in.StartDate
	if start.IsZero() {
		start = u.now()
	}
	s := start.UTC()
	day := time.Date(s.Year(), s.Month(), s.Day(), 0, 0, 0, 0, time.UTC)

	items, err := amortization.GenerateSchedule(in.Principal, in.AnnualRatePercent, in.TermMonths, day)
	if err != nil {
		return nil, invalidTerms(err)
	}
	return quoteDTO(items), nil
}

// Repayments lists the stored schedule of a loan; empty until it is disbursed.
func (u *Usecase) Repayments(ctx context.Context, loanID string) (*ScheduleDTO, error) {
	l, err := u.repo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	items, err := u.repayments.ListByLoanID(ctx, l.ID)
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return repaymentsDTO(l.LoanID, items), nil
}
