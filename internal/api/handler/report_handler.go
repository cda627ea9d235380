package handler

import (
	"bytes"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"loan-manager/internal/api/handler/dto"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/domain/report"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type ReportHandler struct {
	reports report.Service
	loans   loan.LoanService
	clock   loan.Clock
	logger  *slog.Logger
}

func NewReportHandler(reports report.Service, loans loan.LoanService, clock loan.Clock, l *slog.Logger) *ReportHandler {
	if clock == nil {
		clock = loan.SystemClock
	}
	return &ReportHandler{reports: reports, loans: loans, clock: clock, logger: l.With("component", "ReportHandler")}
}

func (h *ReportHandler) render(row report.LoanWithCustomer) dto.LoanReportResponse {
	return dto.LoanReportResponse{
		Loan:     dto.NewLoanResponse(row.Loan, h.clock.Now(), h.loans.DaysLeftToRestore(row.Loan)),
		Customer: dto.NewCustomerResponse(row.Customer),
	}
}

// AllLoansData handles GET /reports/all-loans-data
//
// @Summary Loans with their customers
// @Tags Reports
// @Produce json
// @Param status query string false "all, active, closed or deleted"
// @Success 200 {array} dto.LoanReportResponse
// @Router /reports/all-loans-data [get]
// @Security BearerAuth
func (h *ReportHandler) AllLoansData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	rows, err := h.reports.AllLoansData(r.Context(), userID, r.URL.Query().Get("status"))
	if err != nil {
		respondError(w, err)
		return
	}
	out := make([]dto.LoanReportResponse, 0, len(rows))
	for _, row := range rows {
		out = append(out, h.render(row))
	}
	respondJSON(w, http.StatusOK, out)
}

// AllCustomersData handles GET /reports/all-customers-data
//
// @Summary Every customer of the user
// @Tags Reports
// @Produce json
// @Success 200 {array} dto.CustomerResponse
// @Router /reports/all-customers-data [get]
// @Security BearerAuth
func (h *ReportHandler) AllCustomersData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	custs, err := h.reports.AllCustomersData(r.Context(), userID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, dto.NewCustomerResponses(custs))
}

// SingleLoanData handles GET /reports/single-loan-data/{loanID}
//
// @Summary One loan with its customer
// @Tags Reports
// @Produce json
// @Param loanID path string true "Loan ID"
// @Success 200 {object} dto.LoanReportResponse
// @Failure 404 {object} dto.ErrorResponse
// @Router /reports/single-loan-data/{loanID} [get]
// @Security BearerAuth
func (h *ReportHandler) SingleLoanData(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}
	loanID, err := urlParam(r, "loanID")
	if err != nil {
		respondError(w, err)
		return
	}
	row, err := h.reports.SingleLoanData(r.Context(), userID, loanID)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, h.render(*row))
}

// ExportLoans handles GET /reports/loans/export.xlsx
//
// @Summary Download loans as an Excel workbook
// @Tags Reports
// @Produce application/vnd.openxmlformats-officedocument.spreadsheetml.sheet
// @Param status query string false "all, active, closed or deleted"
// @Success 200 {file} file
// @Router /reports/loans/export.xlsx [get]
// @Security BearerAuth
func (h *ReportHandler) ExportLoans(w http.ResponseWriter, r *http.Request) {
	userID, ok := requireUser(w, r)
	if !ok {
		return
	}

	var buf bytes.Buffer
	if err := h.reports.ExportLoans(r.Context(), userID, r.URL.Query().Get("status"), &buf); err != nil {
		respondError(w, err)
		return
	}

	filename := fmt.Sprintf("loans-%s.xlsx", h.clock.Now().Format("20060102"))
	w.Header().Set("Content-Type", xlsxContentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf(`attachment; filename="%s"`, filename))
	w.Header().Set("Content-Length", strconv.Itoa(buf.Len()))
	w.WriteHeader(http.StatusOK)
	if _, err := buf.WriteTo(w); err != nil {
		h.logger.ErrorContext(r.Context(), "Failed to stream workbook", "error", err)
	}
}
