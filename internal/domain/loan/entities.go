package loan

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

type Loan struct {
	ID                uint64          `gorm:"primaryKey;column:id" json:"-"`
	LoanID            string          `gorm:"size:32;not null;uniqueIndex:ux_loans_loan_id" json:"loan_id"`
	BorrowerID        string          `gorm:"size:32;not null;index:idx_loans_borrower_status" json:"borrower_id"`
	Principal         decimal.Decimal `gorm:"type:decimal(18,2);not null" json:"principal"`
	AnnualRatePercent decimal.Decimal `gorm:"type:decimal(7,4);not null" json:"annual_rate_percent"`
	TermMonths        int             `gorm:"not null" json:"term_months"`
	Status            Status          `gorm:"size:16;not null;default:'PENDING';index:idx_loans_borrower_status" json:"status"`
	// Version is bumped on every status write; updates that carry a stale
	// version are rejected as conflicts.
	Version         uint64         `gorm:"not null;default:1" json:"version"`
	StatusUpdatedAt time.Time      `gorm:"not null" json:"status_updated_at"`
	DisbursedAt     *time.Time     `json:"disbursed_at,omitempty"`
	CreatedAt       time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt       time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt       gorm.DeletedAt `gorm:"index" json:"-"`
}

func (Loan) TableName() string { return "loans" }
