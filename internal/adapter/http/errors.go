package http

import (
	"errors"
	"net/http"

	"loanflow/internal/domain/loan"

	"github.com/labstack/echo/v4"
)

// statusOf maps the loan error kinds onto HTTP codes.
func statusOf(err error) int {
	switch {
	case errors.Is(err, loan.ErrUnauthorized):
		return http.StatusForbidden
	case errors.Is(err, loan.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, loan.ErrInvalidState), errors.Is(err, loan.ErrOrderViolation):
		return http.StatusBadRequest
	case errors.Is(err, loan.ErrInvalidInput):
		return http.StatusUnprocessableEntity
	case errors.Is(err, loan.ErrConflict):
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func kindOf(err error) error {
	for _, k := range []error{
		loan.ErrUnauthorized, loan.ErrNotFound, loan.ErrInvalidState, loan.ErrOrderViolation,
		loan.ErrInvalidInput, loan.ErrConflict,
	} {
		if errors.Is(err, k) {
			return k
		}
	}
	return loan.ErrPersistence
}

// writeError renders a usecase error. Server errors carry no details.
func writeError(c echo.Context, err error) error {
	code := statusOf(err)
	resp := ErrorResponse{Error: kindOf(err).Error()}
	if code != http.StatusInternalServerError {
		resp.Details = []FieldError{{Field: "reason", Message: err.Error()}}
	}
	return c.JSON(code, resp)
}

func validationFailed(c echo.Context, err error) error {
	return c.JSON(http.StatusUnprocessableEntity, ErrorResponse{
		Error:   "validation failed",
		Details: ToFieldErrors(err),
	})
}
