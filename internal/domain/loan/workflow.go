package loan

import (
	"fmt"

	"loanflow/internal/domain/role"
)

// Decide applies one approval decision to a loan in status current.
// lastActed is the highest role that already acted on the loan, nil if none.
// It returns the status the loan moves to; the decision recorded in the
// approval log is always the requested one.
func Decide(current Status, actor role.Role, lastActed *role.Role, requested Status) (Status, error) {
	if !actor.CanApprove() {
		return "", fmt.Errorf("%w: %s", ErrUnauthorized, actor)
	}
	if !requested.Requestable() {
		return "", fmt.Errorf("%w: status %q cannot be requested", ErrInvalidInput, requested)
	}
	if current.IsTerminal() {
		return "", fmt.Errorf("%w: status is %s", ErrInvalidState, current)
	}
	if lastActed != nil && actor.Rank() <= lastActed.Rank() {
		return "", fmt.Errorf("%w: %s (rank %d) cannot act after %s (rank %d)",
			ErrOrderViolation, actor, actor.Rank(), *lastActed, lastActed.Rank())
	}

	switch requested {
	case StatusApproved:
		if actor.IsFinal() {
			return StatusDisbursed, nil
		}
		return StatusApproved, nil
	case StatusRejected:
		return StatusRejected, nil
	default:
		return requested, nil
	}
}
