package http

import (
	"net/http"

	"loanflow/internal/adapter/middleware"
	"loanflow/internal/domain/loan"
	"loanflow/internal/usecase/approval"

	"github.com/labstack/echo/v4"
)

type ApprovalHandler struct{ uc *approval.Usecase }

func NewApprovalHandler(uc *approval.Usecase) *ApprovalHandler { return &ApprovalHandler{uc: uc} }

type decisionReq struct {
	Status  string `json:"status"  validate:"required,decision"`
	Comment string `json:"comment" validate:"max=1000"`
}

func (h *ApprovalHandler) SubmitDecision(c echo.Context) error {
	actor, ok := middleware.ActorFrom(c)
	if !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
	}
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	// role is checked before the payload
	if !actor.Role.CanApprove() {
		return writeError(c, loan.ErrUnauthorized)
	}
	var req decisionReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}

	dto, err := h.uc.SubmitDecision(c.Request().Context(), approval.DecisionInput{
		LoanID:  loanID,
		Actor:   actor,
		Status:  req.Status,
		Comment: req.Comment,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *ApprovalHandler) ListApprovals(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	dto, err := h.uc.History(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
