package approval

import (
	"context"
	"errors"
	"testing"
	"time"

	"loanflow/internal/adapter/repository/mysql"
	approvalDomain "loanflow/internal/domain/approval"
	"loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
	"loanflow/internal/domain/role"
	"loanflow/internal/domain/uow"
	"loanflow/pkg/id"

	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
)

type sqliteEnv struct {
	db    *gorm.DB
	uc    *Usecase
	loans *mysql.LoanRepository
	reps  *mysql.RepaymentRepository
	apprs *mysql.ApprovalRepository
}

func newSQLiteEnv(t *testing.T) *sqliteEnv {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{TranslateError: true})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	sqlDB, _ := db.DB()
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })
	if err := db.AutoMigrate(&loan.Loan{}, &approvalDomain.Log{}, &repayment.Installment{}); err != nil {
		t.Fatalf("auto-migrate: %v", err)
	}

	env := &sqliteEnv{
		db:    db,
		loans: mysql.NewLoanRepository(db),
		reps:  mysql.NewRepaymentRepository(db),
		apprs: mysql.NewApprovalRepository(db),
	}
	env.uc = NewUsecase(env.loans, env.apprs, mysql.NewGormUoW(db),
		WithClock(func() time.Time { return fixedNow }), WithBackoff(0))
	return env
}

func (e *sqliteEnv) newLoan(t *testing.T) *loan.Loan {
	t.Helper()
	l := &loan.Loan{
		LoanID:            id.NewID32(),
		BorrowerID:        id.NewID32(),
		Principal:         decimal.RequireFromString("12000"),
		AnnualRatePercent: decimal.RequireFromString("12"),
		TermMonths:        12,
		Status:            loan.StatusPending,
		Version:           1,
		StatusUpdatedAt:   fixedNow.Add(-time.Hour),
	}
	if err := e.loans.Create(context.Background(), l); err != nil {
		t.Fatalf("create loan: %v", err)
	}
	return l
}

func (e *sqliteEnv) decide(loanID string, r role.Role, status string) (*DecisionDTO, error) {
	return e.uc.SubmitDecision(context.Background(), DecisionInput{
		LoanID: loanID, Actor: actor(r), Status: status, Comment: "ok",
	})
}

func TestWorkflow_ApprovalChainDisburses(t *testing.T) {
	env := newSQLiteEnv(t)
	ctx := context.Background()
	l := env.newLoan(t)

	if dto, err := env.decide(l.LoanID, role.LoanOfficer, "APPROVED"); err != nil || dto.Status != "APPROVED" {
		t.Fatalf("officer: %+v, %v", dto, err)
	}
	if dto, err := env.decide(l.LoanID, role.BranchManager, "APPROVED"); err != nil || dto.Status != "APPROVED" {
		t.Fatalf("branch manager: %+v, %v", dto, err)
	}
	if _, err := env.decide(l.LoanID, role.LoanOfficer, "APPROVED"); !errors.Is(err, loan.ErrOrderViolation) {
		t.Fatalf("officer after branch manager: want ErrOrderViolation, got %v", err)
	}

	dto, err := env.decide(l.LoanID, role.FinanceAdmin, "APPROVED")
	if err != nil {
		t.Fatalf("finance admin: %v", err)
	}
	if dto.Status != "DISBURSED" || dto.Decision.Decision != "APPROVED" || dto.InstallmentsCreated != 12 {
		t.Fatalf("finance admin result = %+v", dto)
	}

	items, err := env.reps.ListByLoanID(ctx, l.ID)
	if err != nil || len(items) != 12 {
		t.Fatalf("installments = %d, %v", len(items), err)
	}
	sum := decimal.Zero
	for _, it := range items {
		sum = sum.Add(it.Amount)
	}
	if !sum.Equal(decimal.RequireFromString("12000.00")) {
		t.Fatalf("installments sum to %s", sum)
	}
	if !items[0].Amount.Equal(decimal.RequireFromString("1066.19")) {
		t.Fatalf("first installment = %s", items[0].Amount)
	}

	// finalized: no new log, no second batch
	if _, err := env.decide(l.LoanID, role.FinanceAdmin, "APPROVED"); !errors.Is(err, loan.ErrInvalidState) {
		t.Fatalf("after disbursement: want ErrInvalidState, got %v", err)
	}
	if n, _ := env.reps.CountByLoanID(ctx, l.ID); n != 12 {
		t.Fatalf("installments after retry = %d", n)
	}

	h, err := env.uc.History(ctx, l.LoanID)
	if err != nil {
		t.Fatalf("History: %v", err)
	}
	if len(h.Entries) != 3 || h.Status != "DISBURSED" {
		t.Fatalf("history = %+v", h)
	}
	for i := 1; i < len(h.Entries); i++ {
		if h.Entries[i].OrderRank <= h.Entries[i-1].OrderRank {
			t.Fatalf("ranks not strictly increasing: %+v", h.Entries)
		}
	}

	stored, _ := env.loans.GetByLoanID(ctx, l.LoanID)
	if stored.Status != loan.StatusDisbursed || stored.DisbursedAt == nil || stored.Version != 4 {
		t.Fatalf("stored loan = %+v", stored)
	}
}

func TestWorkflow_RejectionIsFinal(t *testing.T) {
	env := newSQLiteEnv(t)
	l := env.newLoan(t)

	if dto, err := env.decide(l.LoanID, role.LoanOfficer, "REJECTED"); err != nil || dto.Status != "REJECTED" {
		t.Fatalf("reject: %+v, %v", dto, err)
	}
	for _, r := range []role.Role{role.BranchManager, role.RegionalManager, role.FinanceAdmin} {
		if _, err := env.decide(l.LoanID, r, "APPROVED"); !errors.Is(err, loan.ErrInvalidState) {
			t.Fatalf("%s after rejection: want ErrInvalidState, got %v", r, err)
		}
	}
	logs, _ := env.apprs.ListByLoanID(context.Background(), l.ID)
	if len(logs) != 1 {
		t.Fatalf("logs after rejection = %d", len(logs))
	}
	if n, _ := env.reps.CountByLoanID(context.Background(), l.ID); n != 0 {
		t.Fatalf("rejected loan has %d installments", n)
	}
}

func TestWorkflow_StaleVersionIsRetried(t *testing.T) {
	env := newSQLiteEnv(t)
	l := env.newLoan(t)

	// a concurrent writer bumps the version after this request read the loan
	bumped := false
	race := func(ctx context.Context, repos uow.Repos, stale *loan.Loan) {
		if bumped {
			return
		}
		bumped = true
		other := *stale
		if err := repos.Loans.UpdateStatus(ctx, &other, loan.StatusUnderReview, fixedNow); err != nil {
			t.Fatalf("concurrent write: %v", err)
		}
	}
	env.uc = NewUsecase(env.loans, env.apprs, &racingUoW{inner: mysql.NewGormUoW(env.db), race: race},
		WithClock(func() time.Time { return fixedNow }), WithBackoff(0), WithRetries(1))

	dto, err := env.decide(l.LoanID, role.LoanOfficer, "APPROVED")
	if err != nil {
		t.Fatalf("want success after retry, got %v", err)
	}
	// the conflicting attempt rolled back as a whole, including the racing write
	if dto.Version != 2 || dto.PreviousStatus != "PENDING" {
		t.Fatalf("dto = %+v", dto)
	}
	logs, _ := env.apprs.ListByLoanID(context.Background(), l.ID)
	if len(logs) != 1 {
		t.Fatalf("logs = %d", len(logs))
	}
}

// racingUoW runs race inside the transaction, right after the loan is read.
type racingUoW struct {
	inner uow.UnitOfWork
	race func(ctx context.Context, repos uow.Repos, l *loan.Loan)
}

func (r *racingUoW) WithinTx(ctx context.Context, fn func(uow.Repos) error) error {
	return r.inner.WithinTx(ctx, fn)
}

func (r *racingUoW) WithinLoanTx(ctx context.Context, loanID string, fn func(uow.Repos, *loan.Loan) error) error {
	return r.inner.WithinLoanTx(ctx, loanID, func(repos uow.Repos, l *loan.Loan) error {
		r.race(ctx, repos, l)
		return fn(repos, l)
	})
}
