package repayment

import (
	"time"

	"github.com/shopspring/decimal"
)

type Status string

const (
	StatusPending Status = "PENDING"
)

// SourcePayroll marks installments collected through payroll deduction.
const SourcePayroll = "ERP_PAYROLL"

// Installment is one row of a loan's repayment schedule. A loan's batch is
// written once; (loan_id, seq) is unique so a second batch cannot be stored.
type Installment struct {
	ID                 uint64          `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	LoanID             uint64          `gorm:"column:loan_id;not null;uniqueIndex:ux_installments_loan_seq,priority:1" json:"-"`
	Seq                int             `gorm:"column:seq;not null;uniqueIndex:ux_installments_loan_seq,priority:2" json:"seq"`
	DueDate            time.Time       `gorm:"column:due_date;not null" json:"due_date"`
	Amount             decimal.Decimal `gorm:"column:amount;type:decimal(18,2);not null" json:"amount"`
	PrincipalComponent decimal.Decimal `gorm:"column:principal_component;type:decimal(18,2);not null" json:"principal_component"`
	InterestComponent  decimal.Decimal `gorm:"column:interest_component;type:decimal(18,2);not null" json:"interest_component"`
	Source             string          `gorm:"column:source;size:32;not null" json:"source"`
	Status             Status          `gorm:"column:status;size:16;not null;default:'PENDING'" json:"status"`
	CreatedAt          time.Time       `gorm:"column:created_at;autoCreateTime" json:"created_at"`
}

func (Installment) TableName() string { return "repayment_installments" }
