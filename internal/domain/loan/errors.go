package loan

import "errors"

var (
	ErrUnauthorized   = errors.New("role is not allowed to act on loan approvals")
	ErrNotFound       = errors.New("loan not found")
	ErrInvalidState   = errors.New("loan already finalized")
	ErrOrderViolation = errors.New("invalid approval order")
	ErrInvalidInput   = errors.New("invalid input")
	ErrConflict       = errors.New("concurrent update on loan, retry")
	ErrPersistence    = errors.New("loan storage failure")
)

// IsRetryable reports whether the request may be re-run from scratch.
// Only concurrent-write conflicts qualify.
func IsRetryable(err error) bool { return errors.Is(err, ErrConflict) }

// IsDomain reports whether err already carries one of the loan error kinds.
func IsDomain(err error) bool {
	for _, k := range []error{
		ErrUnauthorized, ErrNotFound, ErrInvalidState, ErrOrderViolation,
		ErrInvalidInput, ErrConflict, ErrPersistence,
	} {
		if errors.Is(err, k) {
			return true
		}
	}
	return false
}
