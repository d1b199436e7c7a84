package mysql

import (
	"context"

	approvalDomain "loanflow/internal/domain/approval"

	"gorm.io/gorm"
)

type ApprovalRepository struct{ db *gorm.DB }

func NewApprovalRepository(db *gorm.DB) *ApprovalRepository { return &ApprovalRepository{db: db} }

func (r *ApprovalRepository) Create(ctx context.Context, a *approvalDomain.Log) error {
	return r.db.WithContext(ctx).Create(a).Error
}

func (r *ApprovalRepository) GetLatestByLoanID(ctx context.Context, loanID uint64) (*approvalDomain.Log, error) {
	var out approvalDomain.Log
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("order_rank DESC").
		First(&out)
	return &out, res.Error
}

func (r *ApprovalRepository) ListByLoanID(ctx context.Context, loanID uint64) ([]approvalDomain.Log, error) {
	var out []approvalDomain.Log
	res := r.db.WithContext(ctx).
		Where("loan_id = ?", loanID).
		Order("order_rank ASC").
		Find(&out)
	return out, res.Error
}
