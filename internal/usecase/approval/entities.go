package approval

import (
	"time"

	approvalDomain "loanflow/internal/domain/approval"
	"loanflow/internal/domain/role"
)

type DecisionInput struct {
	LoanID  string
	Actor   role.Actor
	Status  string // requested status, e.g. APPROVED
	Comment string
}

type LogDTO struct {
	LogID       string    `json:"log_id"`
	ActorUserID string    `json:"actor_user_id"`
	Role        string    `json:"role"`
	OrderRank   int       `json:"order_rank"`
	Decision    string    `json:"decision"`
	Comment     string    `json:"comment"`
	CreatedAt   time.Time `json:"created_at"`
}

// DecisionDTO is the loan after a decision was applied.
type DecisionDTO struct {
	LoanID              string     `json:"loan_id"`
	PreviousStatus      string     `json:"previous_status"`
	Status              string     `json:"status"`
	Version             uint64     `json:"version"`
	StatusUpdatedAt     time.Time  `json:"status_updated_at"`
	DisbursedAt         *time.Time `json:"disbursed_at,omitempty"`
	Decision            LogDTO     `json:"decision"`
	InstallmentsCreated int        `json:"installments_created"`
}

type HistoryDTO struct {
	LoanID  string   `json:"loan_id"`
	Status  string   `json:"status"`
	Entries []LogDTO `json:"entries"`
}

func toLogDTO(a *approvalDomain.Log) LogDTO {
	return LogDTO{
		LogID:       a.LogID,
		ActorUserID: a.ActorUserID,
		Role:        a.Role.String(),
		OrderRank:   a.OrderRank,
		Decision:    string(a.Decision),
		Comment:     a.Comment,
		CreatedAt:   a.CreatedAt,
	}
}
