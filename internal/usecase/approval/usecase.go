package approval

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	approvalDomain "loanflow/internal/domain/approval"
	domainLoan "loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
	"loanflow/internal/domain/role"
	"loanflow/internal/domain/uow"
	"loanflow/internal/usecase/schedule"
	"loanflow/internal/usecase/storeerr"
	"loanflow/pkg/id"

	"go.uber.org/zap"
)

// Locker serializes work on one loan across processes. A held lock is
// reported as an error matching loan.ErrConflict; any other Acquire error is
// treated as a storage failure. Release errors are ignored by the caller;
// the lock expires on its own.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(context.Context) error, err error)
}

type Usecase struct {
	loanRepo     domainLoan.Repository
	approvalRepo approvalDomain.Repository
	uow          uow.UnitOfWork

	locker  Locker
	retries int
	backoff time.Duration
	now     func() time.Time
	log     *zap.Logger
}

type Option func(*Usecase)

func WithLocker(l Locker) Option { return func(u *Usecase) { u.locker = l } }

// WithRetries sets how many times a conflicting decision is re-run.
func WithRetries(n int) Option {
	return func(u *Usecase) {
		if n >= 0 {
			u.retries = n
		}
	}
}

func WithBackoff(d time.Duration) Option { return func(u *Usecase) { u.backoff = d } }
func WithClock(now func() time.Time) Option { return func(u *Usecase) { u.now = now } }

func WithLogger(l *zap.Logger) Option {
	return func(u *Usecase) {
		if l != nil {
			u.log = l
		}
	}
}

// NewUsecase: pass both repos and a UoW for tx flows.
func NewUsecase(loans domainLoan.Repository, approvals approvalDomain.Repository, tx uow.UnitOfWork, opts ...Option) *Usecase {
	u := &Usecase{
		loanRepo:     loans,
		approvalRepo: approvals,
		uow:          tx,
		retries:      2,
		backoff:      25 * time.Millisecond,
		now:          func() time.Time { return time.Now().UTC() },
		log:          zap.NewNop(),
	}
	for _, o := range opts {
		o(u)
	}
	u.log = u.log.Named("approval")
	return u
}

// SubmitDecision applies one approver decision to a loan. The status write,
// the log entry and, on disbursement, the repayment schedule commit together
// or not at all. Conflicts are retried from scratch before being returned.
func (u *Usecase) SubmitDecision(ctx context.Context, in DecisionInput) (*DecisionDTO, error) {
	fields := []zap.Field{
		zap.String("loan_id", in.LoanID),
		zap.String("actor", in.Actor.UserID),
		zap.Stringer("role", in.Actor.Role),
		zap.String("requested", in.Status),
	}

	if !in.Actor.Role.CanApprove() {
		u.log.Info("decision refused", append(fields, zap.String("reason", "unauthorized"))...)
		return nil, fmt.Errorf("%w: %s", domainLoan.ErrUnauthorized, in.Actor.Role)
	}
	requested, err := domainLoan.ParseDecision(in.Status)
	if err != nil {
		u.log.Info("decision refused", append(fields, zap.Error(err))...)
		return nil, err
	}
	if u.uow == nil {
		return nil, fmt.Errorf("%w: no unit of work configured", domainLoan.ErrPersistence)
	}

	var dto *DecisionDTO
	for attempt := 0; ; attempt++ {
		dto, err = u.attempt(ctx, in, requested)
		if err == nil || !domainLoan.IsRetryable(err) || attempt >= u.retries {
			break
		}
		u.log.Debug("decision conflict, retrying", append(fields, zap.Int("attempt", attempt+1))...)
		if werr := u.wait(ctx, attempt); werr != nil {
			err = werr
			break
		}
	}
	if err != nil {
		u.log.Warn("decision failed", append(fields, zap.Error(err))...)
		return nil, err
	}

	u.log.Info("decision applied", append(fields,
		zap.String("from", dto.PreviousStatus),
		zap.String("to", dto.Status),
		zap.Int("installments", dto.InstallmentsCreated),
	)...)
	return dto, nil
}

func (u *Usecase) attempt(ctx context.Context, in DecisionInput, requested domainLoan.Status) (*DecisionDTO, error) {
	if u.locker != nil {
		release, err := u.locker.Acquire(ctx, "loan:"+in.LoanID)
		switch {
		case errors.Is(err, domainLoan.ErrConflict):
			return nil, fmt.Errorf("loan %s is being decided: %w", in.LoanID, err)
		case err != nil:
			return nil, fmt.Errorf("%w: lock loan %s: %w", domainLoan.ErrPersistence, in.LoanID, err)
		}
		defer func() { _ = release(context.WithoutCancel(ctx)) }()
	}

	var dto *DecisionDTO
	err := u.uow.WithinLoanTx(ctx, in.LoanID, func(r uow.Repos, l *domainLoan.Loan) error {
		var lastActed *role.Role
		latest, err := r.Approvals.GetLatestByLoanID(ctx, l.ID)
		switch {
		case err == nil:
			lastActed = &latest.Role
		case !storeerr.IsNotFound(err):
			return err
		}

		next, err := domainLoan.Decide(l.Status, in.Actor.Role, lastActed, requested)
		if err != nil {
			return err
		}

		now := u.now()
		var items []repayment.Installment
		if next == domainLoan.StatusDisbursed {
			// terms are checked before anything is written
			if items, err = schedule.Build(l, now); err != nil {
				return err
			}
		}

		prev := l.Status
		if err := r.Loans.UpdateStatus(ctx, l, next, now); err != nil {
			return err
		}

		entry := &approvalDomain.Log{
			LogID:       id.NewID32(),
			LoanID:      l.ID,
			ActorUserID: in.Actor.UserID,
			Role:        in.Actor.Role,
			OrderRank:   in.Actor.Role.Rank(),
			Decision:    requested,
			Comment:     in.Comment,
			CreatedAt:   now,
		}
		if err := r.Approvals.Create(ctx, entry); err != nil {
			return err
		}

		created := 0
		if items != nil {
			if created, err = schedule.Persist(ctx, r.Repayments, l.ID, items); err != nil {
				return err
			}
		}

		dto = &DecisionDTO{
			LoanID:              l.LoanID,
			PreviousStatus:      string(prev),
			Status:              string(l.Status),
			Version:             l.Version,
			StatusUpdatedAt:     l.StatusUpdatedAt,
			DisbursedAt:         l.DisbursedAt,
			Decision:            toLogDTO(entry),
			InstallmentsCreated: created,
		}
		return nil
	})
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	return dto, nil
}

// maxBackoffShift caps the exponential growth of the retry delay.
const maxBackoffShift = 6

// retryDelay is base*2^attempt with full jitter: uniform in [0, delay).
// Colliding deciders pick different delays and do not retry in lockstep.
func retryDelay(base time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	attempt = min(max(attempt, 0), maxBackoffShift)
	return rand.N(base << attempt)
}

func (u *Usecase) wait(ctx context.Context, attempt int) error {
	d := retryDelay(u.backoff, attempt)
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// History returns the loan's approval log ordered by rank.
func (u *Usecase) History(ctx context.Context, loanID string) (*HistoryDTO, error) {
	l, err := u.loanRepo.GetByLoanID(ctx, loanID)
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	logs, err := u.approvalRepo.ListByLoanID(ctx, l.ID)
	if err != nil {
		return nil, storeerr.Wrap(err)
	}
	out := &HistoryDTO{LoanID: l.LoanID, Status: string(l.Status), Entries: make([]LogDTO, 0, len(logs))}
	for i := range logs {
		out.Entries = append(out.Entries, toLogDTO(&logs[i]))
	}
	return out, nil
}
