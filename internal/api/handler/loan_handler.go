package handler

import (
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"loan-manager/internal/api/handler/dto"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/pkg/apperrors"
)

type LoanHandler struct {
	service loan.LoanService
	clock   loan.Clock
	logger  *slog.Logger
}

func NewLoanHandler(s loan.LoanService, clock loan.Clock, l *slog.Logger) *LoanHandler {
	if s == nil {
		panic("loan service cannot be nil")
	}
	if clock == nil {
		clock = loan.SystemClock
	}
	return &LoanHandler{
		service: s,
		clock:   clock,
		logger:  l.With("component", "LoanHandler"),
	}
}

func (h *LoanHandler) render(l *loan.Loan) dto.LoanResponse {
	return dto.NewLoanResponse(l, h.clock.Now(), h.service.DaysLeftToRestore(l))
}

func (h *LoanHandler) respondLoan(w http.ResponseWriter, status int, l *loan.Loan) {
	respondJSON(w, status, h.render(l))
}

// loanAction runs a lifecycle transition addressed by {loanID} and renders the result.
func (h *LoanHandler) loanAction(w http.ResponseWriter, r *http.Request, action func(userID, loanID string) (*loan.Loan, error)) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, err := urlParam(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}
	l, err := action(userID, loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	h.respondLoan(w, http.StatusOK, l)
}

// CreateLoan handles POST /loans
//
// @Summary Create a loan
// @Description Generates the full interest schedule from the principal, rate, dates and frequency.
// @Tags Loans
// @Accept json
// @Produce json
// @Param request body dto.CreateLoanRequest true "Loan terms"
// @Success 201 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse "Customer not found"
// @Router /loans [post]
// @Security BearerAuth
func (h *LoanHandler) CreateLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var req dto.CreateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		respondError(w, err)
		return
	}

	created, err := h.service.CreateLoan(r.Context(), userID, in)
	if err != nil {
		respondError(w, err)
		return
	}
	h.respondLoan(w, http.StatusCreated, created)
}

// ListLoans handles GET /loans
//
// @Summary List loans
// @Description Deleted loans are excluded unless status=deleted or includeDeleted=true.
// @Tags Loans
// @Produce json
// @Param status query string false "active, closed or deleted"
// @Param customerId query string false "Customer ID"
// @Param includeDeleted query bool false "Include soft-deleted loans"
// @Success 200 {array} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /loans [get]
// @Security BearerAuth
func (h *LoanHandler) ListLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	q := r.URL.Query()
	filter := loan.ListFilter{CustomerID: q.Get("customerId")}
	if s := q.Get("status"); s != "" && s != "all" {
		filter.Status = loan.LoanStatus(s)
		if !filter.Status.IsValid() {
			respondError(w, apperrors.NewValidationError("status", "must be one of active, closed, deleted"))
			return
		}
	}
	if v := q.Get("includeDeleted"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			respondError(w, apperrors.NewValidationError("includeDeleted", "must be a boolean"))
			return
		}
		filter.IncludeDeleted = b
	}

	loans, err := h.service.ListLoans(r.Context(), userID, filter)
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]dto.LoanResponse, 0, len(loans))
	for _, l := range loans {
		out = append(out, h.render(l))
	}
	respondJSON(w, http.StatusOK, out)
}

// GetLoan handles GET /loans/{loanID}
//
// @Summary Get a loan
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse
// @Failure 403 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /loans/{loanID} [get]
// @Security BearerAuth
func (h *LoanHandler) GetLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.GetLoan(r.Context(), userID, loanID)
	})
}

// UpdateLoan handles PUT and PATCH /loans/{loanID}
//
// @Summary Update a loan
// @Description Changing principal, rate, dates or frequency regenerates the schedule. Paid installments are kept.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path string true "Loan ID"
// @Param request body dto.UpdateLoanRequest true "Fields to change"
// @Success 200 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 409 {object} dto.ErrorResponse "Stale version or deleted loan"
// @Router /loans/{loanID} [put]
// @Security BearerAuth
func (h *LoanHandler) UpdateLoan(w http.ResponseWriter, r *http.Request) {
	var req dto.UpdateLoanRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	changes, err := req.ToChanges()
	if err != nil {
		respondError(w, err)
		return
	}
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.UpdateLoan(r.Context(), userID, loanID, changes)
	})
}

// MarkInterestPaid handles PATCH /loans/{loanID}/mark-interest-paid
//
// @Summary Mark an installment paid
// @Description Re-marking overwrites the installment and appends to the payment history.
// @Tags Loans
// @Accept json
// @Produce json
// @Param loanID path string true "Loan ID"
// @Param request body dto.MarkInterestPaidRequest true "Payment"
// @Success 200 {object} dto.LoanResponse
// @Failure 400 {object} dto.ErrorResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /loans/{loanID}/mark-interest-paid [patch]
// @Security BearerAuth
func (h *LoanHandler) MarkInterestPaid(w http.ResponseWriter, r *http.Request) {
	var req dto.MarkInterestPaidRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if err := req.Validate(); err != nil {
		respondError(w, err)
		return
	}
	in, err := req.ToInput()
	if err != nil {
		respondError(w, err)
		return
	}
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.MarkInterestPaid(r.Context(), userID, loanID, in)
	})
}

// MarkPrincipalPaid handles PATCH /loans/{loanID}/mark-principal-paid
//
// @Summary Mark principal repaid and close the loan
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse
// @Router /loans/{loanID}/mark-principal-paid [patch]
// @Security BearerAuth
func (h *LoanHandler) MarkPrincipalPaid(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.MarkPrincipalPaid(r.Context(), userID, loanID)
	})
}

// CloseLoan handles PATCH /loans/{loanID}/close
//
// @Summary Close a loan
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse
// @Failure 409 {object} dto.ErrorResponse
// @Router /loans/{loanID}/close [patch]
// @Security BearerAuth
func (h *LoanHandler) CloseLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.CloseLoan(r.Context(), userID, loanID)
	})
}

// SoftDeleteLoan handles DELETE /loans/{loanID}
//
// @Summary Move a loan to the deleted view
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse
// @Router /loans/{loanID} [delete]
// @Security BearerAuth
func (h *LoanHandler) SoftDeleteLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.SoftDeleteLoan(r.Context(), userID, loanID)
	})
}

// RestoreLoan handles PATCH /loans/{loanID}/restore
//
// @Summary Restore a deleted loan
// @Tags Loans
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanResponse
// @Failure 409 {object} dto.ErrorResponse "Loan is not deleted"
// @Router /loans/{loanID}/restore [patch]
// @Security BearerAuth
func (h *LoanHandler) RestoreLoan(w http.ResponseWriter, r *http.Request) {
	h.loanAction(w, r, func(userID, loanID string) (*loan.Loan, error) {
		return h.service.RestoreLoan(r.Context(), userID, loanID)
	})
}

// PermanentlyDeleteLoan handles DELETE /loans/{loanID}/permanently-delete
//
// @Summary Remove a loan for good
// @Tags Loans
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.MessageResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /loans/{loanID}/permanently-delete [delete]
// @Security BearerAuth
func (h *LoanHandler) PermanentlyDeleteLoan(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, err := urlParam(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.service.PermanentlyDeleteLoan(r.Context(), userID, loanID); err != nil {
		respondError(w, err)
		return
	}
	h.logger.InfoContext(r.Context(), "Loan permanently deleted", "loanID", loanID)
	respondJSON(w, http.StatusOK, dto.MessageResponse{Message: "Loan permanently deleted successfully."})
}

// UpcomingPayments handles GET /loans/upcoming-payments
//
// @Summary Pending installments due soon
// @Tags Loans
// @Produce json
// @Param days query int false "Window length in days"
// @Success 200 {array} dto.UpcomingPaymentResponse
// @Failure 400 {object} dto.ErrorResponse
// @Router /loans/upcoming-payments [get]
// @Security BearerAuth
func (h *LoanHandler) UpcomingPayments(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	days := 0
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			respondError(w, apperrors.NewValidationError("days", fmt.Sprintf("must be an integer, got %q", v)))
			return
		}
		days = n
	}

	items, err := h.service.UpcomingPayments(r.Context(), userID, days)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewUpcomingPaymentResponses(items))
}
