package role

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"
)

// Role is an approver rank. The integer value is the approval order: a role
// may only act on a loan after every role that already acted ranks below it.
type Role int

const (
	Member Role = iota
	LoanOfficer
	BranchManager
	RegionalManager
	FinanceAdmin
)

var ErrUnknown = errors.New("unknown role")

var names = [...]string{
	Member:          "MEMBER",
	LoanOfficer:     "LOAN_OFFICER",
	BranchManager:   "BRANCH_MANAGER",
	RegionalManager: "REGIONAL_MANAGER",
	FinanceAdmin:    "FINANCE_ADMIN",
}

// Highest is the top of the approval chain; its approval disburses the loan.
const Highest = FinanceAdmin

func Parse(s string) (Role, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	for r, n := range names {
		if n == s {
			return Role(r), nil
		}
	}
	return Member, fmt.Errorf("%w: %q", ErrUnknown, s)
}

func (r Role) Valid() bool { return r >= Member && r <= Highest }

func (r Role) String() string {
	if !r.Valid() {
		return fmt.Sprintf("Role(%d)", int(r))
	}
	return names[r]
}

// Rank is the numeric approval order recorded with each decision.
func (r Role) Rank() int { return int(r) }

// CanApprove is false for members and anything outside the known set.
func (r Role) CanApprove() bool { return r.Valid() && r > Member }

// IsFinal reports whether an approval by r completes the chain.
func (r Role) IsFinal() bool { return r == Highest }

func (r Role) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(r))
	}
	return []byte(r.String()), nil
}

func (r *Role) UnmarshalText(b []byte) error {
	v, err := Parse(string(b))
	if err != nil {
		return err
	}
	*r = v
	return nil
}

// Value stores the role by name so the column stays readable.
func (r Role) Value() (driver.Value, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("%w: %d", ErrUnknown, int(r))
	}
	return r.String(), nil
}

func (r *Role) Scan(src any) error {
	switch v := src.(type) {
	case string:
		return r.UnmarshalText([]byte(v))
	case []byte:
		return r.UnmarshalText(v)
	case nil:
		*r = Member
		return nil
	default:
		return fmt.Errorf("role: cannot scan %T", src)
	}
}

// Actor is the authenticated caller as supplied by the identity provider.
type Actor struct {
	UserID string
	Role   Role
}
