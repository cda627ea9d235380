package handler_test

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"loan-manager/internal/api/handler"
	"loan-manager/internal/api/handler/dto"
	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/domain/report"
	"loan-manager/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

func setupReportHandler() (*handler.ReportHandler, *MockReportService) {
	svc := new(MockReportService)
	return handler.NewReportHandler(svc, new(MockLoanService), fixedClock, discardLogger), svc
}

func TestAllLoansData(t *testing.T) {
	h, svc := setupReportHandler()
	svc.On("AllLoansData", mock.Anything, "user-1", "active").
		Return([]report.LoanWithCustomer{{Loan: sampleLoan(), Customer: asha()}}, nil).Once()

	rec := httptest.NewRecorder()
	h.AllLoansData(rec, newRequest(http.MethodGet, "/reports/all-loans-data?status=active", nil, "user-1", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	var resp []dto.LoanReportResponse
	require.NoError(t, decodeBody(rec, &resp))
	require.Len(t, resp, 1)
	assert.Equal(t, "loan-1", resp[0].Loan.ID)
	assert.Equal(t, "Asha", resp[0].Customer.Name)
}

func TestAllCustomersData(t *testing.T) {
	h, svc := setupReportHandler()
	svc.On("AllCustomersData", mock.Anything, "user-1").Return([]*customer.Customer{asha()}, nil).Once()

	rec := httptest.NewRecorder()
	h.AllCustomersData(rec, newRequest(http.MethodGet, "/reports/all-customers-data", nil, "user-1", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestSingleLoanData(t *testing.T) {
	h, svc := setupReportHandler()
	svc.On("SingleLoanData", mock.Anything, "user-1", "loan-1").
		Return(&report.LoanWithCustomer{Loan: sampleLoan(), Customer: asha()}, nil).Once()
	svc.On("SingleLoanData", mock.Anything, "user-1", "loan-2").Return(nil, loan.ErrLoanNotFound).Once()

	rec := httptest.NewRecorder()
	h.SingleLoanData(rec, newRequest(http.MethodGet, "/reports/single-loan-data/loan-1", nil, "user-1", map[string]string{"loanID": "loan-1"}))
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	h.SingleLoanData(rec, newRequest(http.MethodGet, "/reports/single-loan-data/loan-2", nil, "user-1", map[string]string{"loanID": "loan-2"}))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestExportLoans(t *testing.T) {
	t.Run("streams the workbook", func(t *testing.T) {
		h, svc := setupReportHandler()
		svc.On("ExportLoans", mock.Anything, "user-1", "", mock.Anything).Return(func(w io.Writer) error {
			_, err := w.Write([]byte("PK-workbook"))
			return err
		}).Once()

		rec := httptest.NewRecorder()
		h.ExportLoans(rec, newRequest(http.MethodGet, "/reports/loans/export.xlsx", nil, "user-1", nil))

		require.Equal(t, http.StatusOK, rec.Code)
		assert.Equal(t, "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet", rec.Header().Get("Content-Type"))
		assert.Equal(t, `attachment; filename="loans-20240110.xlsx"`, rec.Header().Get("Content-Disposition"))
		assert.Equal(t, "PK-workbook", rec.Body.String())
	})

	t.Run("bad status", func(t *testing.T) {
		h, svc := setupReportHandler()
		svc.On("ExportLoans", mock.Anything, "user-1", "archived", mock.Anything).
			Return(apperrors.NewValidationError("status", "must be one of all, active, closed, deleted")).Once()

		rec := httptest.NewRecorder()
		h.ExportLoans(rec, newRequest(http.MethodGet, "/reports/loans/export.xlsx?status=archived", nil, "user-1", nil))
		assert.Equal(t, http.StatusBadRequest, rec.Code)
	})
}
