package mysql

import (
	"context"
	"fmt"
	"time"

	loanDomain "loanflow/internal/domain/loan"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type LoanRepository struct{ db *gorm.DB }

func NewLoanRepository(db *gorm.DB) *LoanRepository { return &LoanRepository{db: db} }

func (r *LoanRepository) Create(ctx context.Context, l *loanDomain.Loan) error {
	return r.db.WithContext(ctx).Create(l).Error
}

func (r *LoanRepository) GetByLoanID(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).Where("loan_id = ?", loanID).First(&out)
	return &out, res.Error
}

// GetByLoanIDForUpdate issues SELECT ... FOR UPDATE (ignored by SQLite, which
// serializes writers on its own).
func (r *LoanRepository) GetByLoanIDForUpdate(ctx context.Context, loanID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("loan_id = ?", loanID).
		First(&out)
	return &out, res.Error
}

func (r *LoanRepository) GetOpenLoanByBorrowerID(ctx context.Context, borrowerID string) (*loanDomain.Loan, error) {
	var out loanDomain.Loan
	res := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("borrower_id = ? AND status IN ?", borrowerID, loanDomain.Open()).
		Order("status_updated_at DESC, id DESC").
		First(&out)
	return &out, res.Error
}

func (r *LoanRepository) UpdateStatus(ctx context.Context, l *loanDomain.Loan, next loanDomain.Status, at time.Time) error {
	updates := map[string]any{
		"status":            next,
		"version":           l.Version + 1,
		"status_updated_at": at,
	}
	if next == loanDomain.StatusDisbursed {
		updates["disbursed_at"] = at
	}
	res := r.db.WithContext(ctx).
		Model(&loanDomain.Loan{}).
		Where("id = ? AND version = ?", l.ID, l.Version).
		Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: loan %s changed since version %d", loanDomain.ErrConflict, l.LoanID, l.Version)
	}

	l.Status = next
	l.Version++
	l.StatusUpdatedAt = at
	if next == loanDomain.StatusDisbursed {
		l.DisbursedAt = &at
	}
	return nil
}

func (r *LoanRepository) ListDisbursedWithoutSchedule(ctx context.Context, limit int) ([]loanDomain.Loan, error) {
	var out []loanDomain.Loan
	res := r.db.WithContext(ctx).
		Where("status = ?", loanDomain.StatusDisbursed).
		Where("NOT EXISTS (SELECT 1 FROM repayment_installments ri WHERE ri.loan_id = loans.id)").
		Order("id ASC").
		Limit(limit).
		Find(&out)
	return out, res.Error
}
