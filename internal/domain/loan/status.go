package loan

import (
	"fmt"
	"strings"
)

type Status string

const (
	StatusPending     Status = "PENDING"
	StatusUnderReview Status = "UNDER_REVIEW"
	StatusApproved    Status = "APPROVED"
	StatusRejected    Status = "REJECTED"
	StatusDisbursed   Status = "DISBURSED"
	// StatusReturned sends the application back to the borrower for correction.
	StatusReturned Status = "RETURNED"
)

var allStatuses = []Status{
	StatusPending, StatusUnderReview, StatusApproved,
	StatusRejected, StatusDisbursed, StatusReturned,
}

// ParseStatus accepts any known status, case-insensitively.
func ParseStatus(s string) (Status, error) {
	v := Status(strings.ToUpper(strings.TrimSpace(s)))
	for _, st := range allStatuses {
		if st == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("%w: unknown status %q", ErrInvalidInput, s)
}

// ParseDecision accepts only the statuses an approver may submit.
func ParseDecision(s string) (Status, error) {
	v, err := ParseStatus(s)
	if err != nil {
		return "", err
	}
	if !v.Requestable() {
		return "", fmt.Errorf("%w: status %s cannot be requested", ErrInvalidInput, v)
	}
	return v, nil
}

// IsTerminal reports whether the loan is finalized.
func (s Status) IsTerminal() bool { return s == StatusDisbursed || s == StatusRejected }

// Requestable reports whether s may be submitted as an approval decision.
// Pending is the initial state only and disbursement is the effect of a
// final approval, so neither can be asked for directly.
func (s Status) Requestable() bool {
	switch s {
	case StatusApproved, StatusRejected, StatusUnderReview, StatusReturned:
		return true
	}
	return false
}

// Open lists the non-terminal statuses.
func Open() []Status {
	out := make([]Status, 0, len(allStatuses))
	for _, s := range allStatuses {
		if !s.IsTerminal() {
			out = append(out, s)
		}
	}
	return out
}
