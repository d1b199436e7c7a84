package http

import (
	"net/http"
	"time"

	"loanflow/internal/adapter/middleware"
	"loanflow/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
)

type LoanHandler struct{ uc *loan.Usecase }

func NewLoanHandler(uc *loan.Usecase) *LoanHandler { return &LoanHandler{uc: uc} }

// Amounts accept JSON numbers or strings ("12000.50").
type createLoanReq struct {
	BorrowerID        string          `json:"borrower_id"         validate:"required,hex32"`
	Principal         decimal.Decimal `json:"principal"           validate:"required,gt=0,dec2"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" validate:"gte=0,lte=100"`
	TermMonths        int             `json:"term_months"         validate:"required,gte=1,lte=600"`
}

type quoteReq struct {
	Principal         decimal.Decimal `json:"principal"           validate:"required,gt=0,dec2"`
	AnnualRatePercent decimal.Decimal `json:"annual_rate_percent" validate:"gte=0,lte=100"`
	TermMonths        int             `json:"term_months"         validate:"required,gte=1,lte=600"`
	// Accept canonical date `YYYY-MM-DD`; empty means today.
	StartDate string `json:"start_date" validate:"omitempty,datetime=2006-01-02"`
}

func (h *LoanHandler) Quote(c echo.Context) error {
	var req quoteReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	in := loan.QuoteInput{
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TermMonths:        req.TermMonths,
	}
	if req.StartDate != "" {
		in.StartDate, _ = time.Parse("2006-01-02", req.StartDate)
	}
	dto, err := h.uc.Quote(in)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) CreateLoan(c echo.Context) error {
	if _, ok := middleware.ActorFrom(c); !ok {
		return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "missing identity"})
	}
	var req createLoanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "invalid body"})
	}
	if err := c.Validate(&req); err != nil {
		return validationFailed(c, err)
	}
	dto, err := h.uc.Create(c.Request().Context(), loan.CreateLoanInput{
		BorrowerID:        req.BorrowerID,
		Principal:         req.Principal,
		AnnualRatePercent: req.AnnualRatePercent,
		TermMonths:        req.TermMonths,
	})
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusCreated, dto)
}

func (h *LoanHandler) GetLoan(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	dto, err := h.uc.Get(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}

func (h *LoanHandler) ListRepayments(c echo.Context) error {
	loanID := c.Param("loan_id")
	if loanID == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "missing loan_id path param"})
	}
	dto, err := h.uc.Repayments(c.Request().Context(), loanID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(http.StatusOK, dto)
}
