package approval

import "context"

type Repository interface {
	// Create appends a log entry (DB uniqueness ensures one entry per rank per loan)
	Create(ctx context.Context, l *Log) error

	// GetLatestByLoanID returns the entry with the highest order rank.
	GetLatestByLoanID(ctx context.Context, loanID uint64) (*Log, error)

	// ListByLoanID returns the loan's history ordered by rank.
	ListByLoanID(ctx context.Context, loanID uint64) ([]Log, error)
}
