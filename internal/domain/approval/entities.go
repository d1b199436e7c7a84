package approval

import (
	"time"

	"loanflow/internal/domain/loan"
	"loanflow/internal/domain/role"
)

// Log is one immutable approval decision. Rows are only ever appended.
// (loan_id, order_rank) is unique: each rank acts on a loan at most once.
type Log struct {
	ID uint64 `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	// Public identifier (32-char lowercase hex)
	LogID       string    `gorm:"column:log_id;size:32;not null;uniqueIndex:ux_approval_logs_log_id" json:"log_id"`
	LoanID      uint64    `gorm:"column:loan_id;not null;uniqueIndex:ux_approval_logs_loan_rank,priority:1" json:"-"`
	ActorUserID string    `gorm:"column:actor_user_id;size:64;not null" json:"actor_user_id"`
	Role        role.Role `gorm:"column:role;type:varchar(32);not null" json:"role"`
	OrderRank   int       `gorm:"column:order_rank;not null;uniqueIndex:ux_approval_logs_loan_rank,priority:2" json:"order_rank"`
	// Decision is the status the approver submitted, not the resulting loan status.
	Decision  loan.Status `gorm:"column:decision;size:16;not null" json:"decision"`
	Comment   string      `gorm:"column:comment;type:text" json:"comment"`
	CreatedAt time.Time   `gorm:"column:created_at;not null" json:"created_at"`
}

func (Log) TableName() string { return "approval_logs" }
