// Package storeerr maps repository errors onto the loan error taxonomy.
package storeerr

import (
	"context"
	"errors"
	"fmt"

	"loanflow/internal/domain/loan"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"
)

// MySQL aborts one side of a lock cycle or a long lock wait; both mean a
// concurrent writer won.
const (
	mysqlLockWaitTimeout = 1205
	mysqlDeadlock        = 1213
)

// Wrap classifies err. Errors that already carry a loan error kind pass
// through unchanged; nil stays nil.
func Wrap(err error) error {
	switch {
	case err == nil:
		return nil
	case loan.IsDomain(err):
		return err
	case errors.Is(err, gorm.ErrRecordNotFound):
		return loan.ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey), isLockAbort(err):
		return fmt.Errorf("%w: %w", loan.ErrConflict, err)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return err
	default:
		return fmt.Errorf("%w: %w", loan.ErrPersistence, err)
	}
}

func isLockAbort(err error) bool {
	var me *mysql.MySQLError
	return errors.As(err, &me) && (me.Number == mysqlDeadlock || me.Number == mysqlLockWaitTimeout)
}

// IsNotFound reports whether err is a missing-row error from the store.
func IsNotFound(err error) bool { return errors.Is(err, gorm.ErrRecordNotFound) }
