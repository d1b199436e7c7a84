package mysql

import (
	"context"

	repaymentDomain "loanflow/internal/domain/repayment"

	"gorm.io/gorm"
)

type RepaymentRepository struct{ db *gorm.DB }

func NewRepaymentRepository(db *gorm.DB) *RepaymentRepository { return &RepaymentRepository{db: db} }

func (r *RepaymentRepository) CreateBatch(ctx context.Context, items []repaymentDomain.Installment) error {
	if len(items) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&items).Error
}

func (r *RepaymentRepository) CountByLoanID(ctx context.Context, loanID uint64) (int64, error) {
	var n int64
	res := r.db.WithContext(ctx).
		Model(&repaymentDomain.Installment{}).
		Where("loan_id = ?", loanID).
		Count(&n)
	return n, res.Error
}

func (r *RepaymentRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]repaymentDomain.Installment, error) {
	var out []repaymentDomain.Installment
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("seq ASC").
		Find(&out)
	return out, res.Error
}
