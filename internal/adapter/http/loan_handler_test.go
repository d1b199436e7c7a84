package http

import (
	"bytes"
	"context"
	"encoding/json"
	stdhttp "net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"loanflow/internal/adapter/middleware"
	domain "loanflow/internal/domain/loan"
	"loanflow/internal/domain/repayment"
	"loanflow/internal/domain/role"
	"loanflow/internal/domain/uow"
	"loanflow/internal/testutil/loanmock"
	"loanflow/internal/testutil/repaymentmock"
	"loanflow/internal/testutil/uowmock"
	uc "loanflow/internal/usecase/loan"

	"github.com/labstack/echo/v4"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// -------- helpers --------

var (
	borrowerID = strings.Repeat("b", 32)
	loanID     = strings.Repeat("c", 32)
	officer    = role.Actor{UserID: "officer-1", Role: role.LoanOfficer}
)

func newEchoWithValidator() *echo.Echo {
	e := echo.New()
	e.Validator = NewValidator()
	return e
}

func mustJSON(v any) *bytes.Reader {
	b, _ := json.Marshal(v)
	return bytes.NewReader(b)
}

func newJSONContext(e *echo.Echo, method, path string, body any) (echo.Context, *httptest.ResponseRecorder) {
	var req *stdhttp.Request
	switch b := body.(type) {
	case nil:
		req = httptest.NewRequest(method, path, nil)
	case string:
		req = httptest.NewRequest(method, path, strings.NewReader(b))
	default:
		req = httptest.NewRequest(method, path, mustJSON(b))
	}
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	return e.NewContext(req, rec), rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var er ErrorResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &er); err != nil {
		t.Fatalf("bad json: %v (%s)", err, rec.Body.String())
	}
	return er
}

func storedLoan(status domain.Status) *domain.Loan {
	return &domain.Loan{
		ID:                7,
		LoanID:            loanID,
		BorrowerID:        borrowerID,
		Principal:         decimal.RequireFromString("12000"),
		AnnualRatePercent: decimal.RequireFromString("12"),
		TermMonths:        12,
		Status:            status,
		Version:           1,
		StatusUpdatedAt:   time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC),
		CreatedAt:         time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC),
	}
}

// -------- tests --------

func TestCreateLoan_Success(t *testing.T) {
	e := newEchoWithValidator()

	repo := &loanmock.Repo{
		GetOpenLoanByBorrowerIDFn: func(ctx context.Context, borrowerID string) (*domain.Loan, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	h := NewLoanHandler(uc.NewUsecase(repo, &repaymentmock.Repo{}, uowmock.Passthrough(uow.Repos{Loans: repo}), nil))

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans", map[string]any{
		"borrower_id":         borrowerID,
		"principal":           "5000000",
		"annual_rate_percent": 18.5,
		"term_months":         24,
	})
	middleware.WithActor(c, officer)

	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusCreated {
		t.Fatalf("status = %d, want 201 (%s)", rec.Code, rec.Body.String())
	}
	var got uc.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if got.BorrowerID != borrowerID || got.Principal != "5000000.00" || got.TermMonths != 24 {
		t.Fatalf("unexpected dto: %+v", got)
	}
	if got.Status != string(domain.StatusPending) || got.Version != 1 {
		t.Fatalf("status = %s v%d, want PENDING v1", got.Status, got.Version)
	}
}

func TestCreateLoan_RequiresIdentity(t *testing.T) {
	e := newEchoWithValidator()
	h := NewLoanHandler(uc.NewUsecase(&loanmock.Repo{}, &repaymentmock.Repo{}, nil, nil))

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans", map[string]any{})
	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestCreateLoan_BindError(t *testing.T) {
	e := newEchoWithValidator()
	h := NewLoanHandler(uc.NewUsecase(&loanmock.Repo{}, &repaymentmock.Repo{}, nil, nil))

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans", `{"borrower_id":`)
	middleware.WithActor(c, officer)

	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
	if er := decodeError(t, rec); er.Error != "invalid body" {
		t.Fatalf("error = %q, want %q", er.Error, "invalid body")
	}
}

func TestCreateLoan_ValidationError(t *testing.T) {
	e := newEchoWithValidator()
	h := NewLoanHandler(uc.NewUsecase(&loanmock.Repo{}, &repaymentmock.Repo{}, nil, nil)) // won't be called

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans", map[string]any{
		"borrower_id":         "NOT_HEX_32",
		"principal":           "5000000.001",
		"annual_rate_percent": 120,
		"term_months":         0,
	})
	middleware.WithActor(c, officer)

	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	er := decodeError(t, rec)
	if er.Error != "validation failed" {
		t.Fatalf("error = %q, want %q", er.Error, "validation failed")
	}
	for field, msg := range map[string]string{
		"BorrowerID":        "32-char lowercase hex",
		"Principal":         "at most 2 decimal places",
		"AnnualRatePercent": "less than or equal to 100",
		"TermMonths":        "is required",
	} {
		if !containsFieldMsg(er.Details, field, msg) {
			t.Fatalf("missing %s detail %q: %+v", field, msg, er.Details)
		}
	}
}

func TestCreateLoan_OpenLoanConflict(t *testing.T) {
	e := newEchoWithValidator()

	repo := &loanmock.Repo{
		GetOpenLoanByBorrowerIDFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			return storedLoan(domain.StatusUnderReview), nil
		},
		CreateFn: func(ctx context.Context, l *domain.Loan) error {
			t.Fatalf("Create must not be called")
			return nil
		},
	}
	h := NewLoanHandler(uc.NewUsecase(repo, &repaymentmock.Repo{}, uowmock.Passthrough(uow.Repos{Loans: repo}), nil))

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans", map[string]any{
		"borrower_id":         borrowerID,
		"principal":           1000,
		"annual_rate_percent": 10,
		"term_months":         6,
	})
	middleware.WithActor(c, officer)

	if err := h.CreateLoan(c); err != nil {
		t.Fatalf("CreateLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusConflict {
		t.Fatalf("status = %d, want 409", rec.Code)
	}
	if er := decodeError(t, rec); er.Error != domain.ErrConflict.Error() || len(er.Details) != 1 {
		t.Fatalf("unexpected error body: %+v", er)
	}
}

func TestGetLoan_Success(t *testing.T) {
	e := echo.New()

	repo := &loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			if id != loanID {
				return nil, gorm.ErrRecordNotFound
			}
			return storedLoan(domain.StatusApproved), nil
		},
	}
	h := NewLoanHandler(uc.NewUsecase(repo, &repaymentmock.Repo{}, uowmock.Passthrough(uow.Repos{Loans: repo}), nil))

	c, rec := newJSONContext(e, stdhttp.MethodGet, "/loans/"+loanID, nil)
	c.SetParamNames("loan_id")
	c.SetParamValues(loanID)

	if err := h.GetLoan(c); err != nil {
		t.Fatalf("GetLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var dto uc.LoanDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if dto.LoanID != loanID || dto.Status != "APPROVED" || dto.Principal != "12000.00" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
}

func TestGetLoan_NotFound(t *testing.T) {
	e := echo.New()
	repo := &loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			return nil, gorm.ErrRecordNotFound
		},
	}
	h := NewLoanHandler(uc.NewUsecase(repo, &repaymentmock.Repo{}, uowmock.Passthrough(uow.Repos{Loans: repo}), nil))

	c, rec := newJSONContext(e, stdhttp.MethodGet, "/loans/xxx", nil)
	c.SetParamNames("loan_id")
	c.SetParamValues("xxx")

	if err := h.GetLoan(c); err != nil {
		t.Fatalf("GetLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	if er := decodeError(t, rec); er.Error != domain.ErrNotFound.Error() {
		t.Fatalf("error = %q, want %q", er.Error, domain.ErrNotFound.Error())
	}
}

func TestGetLoan_StorageFailureHidesDetails(t *testing.T) {
	e := echo.New()
	repo := &loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			return nil, gorm.ErrInvalidDB
		},
	}
	h := NewLoanHandler(uc.NewUsecase(repo, &repaymentmock.Repo{}, uowmock.Passthrough(uow.Repos{Loans: repo}), nil))

	c, rec := newJSONContext(e, stdhttp.MethodGet, "/loans/"+loanID, nil)
	c.SetParamNames("loan_id")
	c.SetParamValues(loanID)

	if err := h.GetLoan(c); err != nil {
		t.Fatalf("GetLoan error: %v", err)
	}
	if rec.Code != stdhttp.StatusInternalServerError {
		t.Fatalf("status = %d, want 500", rec.Code)
	}
	if er := decodeError(t, rec); er.Error != domain.ErrPersistence.Error() || len(er.Details) != 0 {
		t.Fatalf("unexpected error body: %+v", er)
	}
}

func TestQuote(t *testing.T) {
	e := newEchoWithValidator()
	h := NewLoanHandler(uc.NewUsecase(&loanmock.Repo{}, &repaymentmock.Repo{}, nil, nil))

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans/quote", map[string]any{
		"principal":           12000,
		"annual_rate_percent": "12",
		"term_months":         12,
		"start_date":          "2024-01-15",
	})
	if err := h.Quote(c); err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200 (%s)", rec.Code, rec.Body.String())
	}
	var dto uc.ScheduleDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if dto.Payment != "1066.19" || dto.TotalAmount != "12000.00" || len(dto.Installments) != 12 {
		t.Fatalf("unexpected schedule: payment=%s total=%s n=%d", dto.Payment, dto.TotalAmount, len(dto.Installments))
	}
	if dto.Installments[0].DueDate != "2024-02-15" || dto.Installments[11].Amount != "271.91" {
		t.Fatalf("unexpected installments: first=%+v last=%+v", dto.Installments[0], dto.Installments[11])
	}
}

func TestQuote_BadStartDate(t *testing.T) {
	e := newEchoWithValidator()
	h := NewLoanHandler(uc.NewUsecase(&loanmock.Repo{}, &repaymentmock.Repo{}, nil, nil))

	c, rec := newJSONContext(e, stdhttp.MethodPost, "/loans/quote", map[string]any{
		"principal":   100,
		"term_months": 1,
		"start_date":  "15/01/2024",
	})
	if err := h.Quote(c); err != nil {
		t.Fatalf("Quote error: %v", err)
	}
	if rec.Code != stdhttp.StatusUnprocessableEntity {
		t.Fatalf("status = %d, want 422", rec.Code)
	}
	if er := decodeError(t, rec); !containsFieldMsg(er.Details, "StartDate", "2006-01-02") {
		t.Fatalf("missing date detail: %+v", er.Details)
	}
}

func TestListRepayments(t *testing.T) {
	e := echo.New()
	loans := &loanmock.Repo{
		GetByLoanIDFn: func(ctx context.Context, id string) (*domain.Loan, error) {
			return storedLoan(domain.StatusDisbursed), nil
		},
	}
	repayments := &repaymentmock.Repo{
		ListByLoanIDFn: func(ctx context.Context, loanNumericID uint64) ([]repayment.Installment, error) {
			if loanNumericID != 7 {
				t.Fatalf("loan numeric id = %d, want 7", loanNumericID)
			}
			return []repayment.Installment{{
				LoanID:             7,
				Seq:                1,
				DueDate:            time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC),
				Amount:             decimal.RequireFromString("1066.19"),
				PrincipalComponent: decimal.RequireFromString("946.19"),
				InterestComponent:  decimal.RequireFromString("120"),
				Status:             repayment.StatusPending,
				Source:             repayment.SourcePayroll,
			}}, nil
		},
	}
	h := NewLoanHandler(uc.NewUsecase(loans, repayments, nil, nil))

	c, rec := newJSONContext(e, stdhttp.MethodGet, "/loans/"+loanID+"/repayments", nil)
	c.SetParamNames("loan_id")
	c.SetParamValues(loanID)

	if err := h.ListRepayments(c); err != nil {
		t.Fatalf("ListRepayments error: %v", err)
	}
	if rec.Code != stdhttp.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	var dto uc.ScheduleDTO
	if err := json.Unmarshal(rec.Body.Bytes(), &dto); err != nil {
		t.Fatalf("bad json: %v", err)
	}
	if dto.LoanID != loanID || len(dto.Installments) != 1 || dto.Installments[0].Interest != "120.00" {
		t.Fatalf("unexpected dto: %+v", dto)
	}
}
