package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"time"

	"loan-manager/internal/api/middleware"
	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/domain/report"
	"loan-manager/internal/domain/user"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/mock"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

var fixedNow = time.Date(2024, 1, 10, 9, 0, 0, 0, time.UTC)

var fixedClock = loan.ClockFunc(func() time.Time { return fixedNow })

// newRequest builds a request as the router would hand it over: chi params set
// and, unless userID is empty, an authenticated caller in the context.
func newRequest(method, target string, body interface{}, userID string, params map[string]string) *http.Request {
	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, _ := json.Marshal(b)
		reader = bytes.NewBuffer(raw)
	}
	req := httptest.NewRequest(method, target, reader)

	rctx := chi.NewRouteContext()
	for k, v := range params {
		rctx.URLParams.Add(k, v)
	}
	ctx := context.WithValue(req.Context(), chi.RouteCtxKey, rctx)
	if userID != "" {
		ctx = middleware.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

func decodeBody(rec *httptest.ResponseRecorder, v interface{}) error {
	return json.Unmarshal(rec.Body.Bytes(), v)
}

type MockCustomerService struct {
	mock.Mock
}

func (m *MockCustomerService) CreateCustomer(ctx context.Context, userID, name, mobile, email string) (*customer.Customer, error) {
	ret := m.Called(ctx, userID, name, mobile, email)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*customer.Customer), ret.Error(1)
}

func (m *MockCustomerService) GetCustomer(ctx context.Context, userID, customerID string) (*customer.Customer, error) {
	ret := m.Called(ctx, userID, customerID)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*customer.Customer), ret.Error(1)
}

func (m *MockCustomerService) ListCustomers(ctx context.Context, userID string) ([]*customer.Customer, error) {
	ret := m.Called(ctx, userID)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]*customer.Customer), ret.Error(1)
}

func (m *MockCustomerService) UpdateCustomer(ctx context.Context, userID, customerID string, changes customer.Changes) (*customer.Customer, error) {
	ret := m.Called(ctx, userID, customerID, changes)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*customer.Customer), ret.Error(1)
}

func (m *MockCustomerService) DeleteCustomer(ctx context.Context, userID, customerID string) error {
	return m.Called(ctx, userID, customerID).Error(0)
}

type MockLoanService struct {
	mock.Mock
}

func (m *MockLoanService) loanResult(ret mock.Arguments) (*loan.Loan, error) {
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*loan.Loan), ret.Error(1)
}

func (m *MockLoanService) CreateLoan(ctx context.Context, userID string, in loan.CreateLoanInput) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, in))
}

func (m *MockLoanService) GetLoan(ctx context.Context, userID, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID))
}

func (m *MockLoanService) ListLoans(ctx context.Context, userID string, filter loan.ListFilter) ([]*loan.Loan, error) {
	ret := m.Called(ctx, userID, filter)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]*loan.Loan), ret.Error(1)
}

func (m *MockLoanService) UpdateLoan(ctx context.Context, userID, loanID string, changes loan.LoanChanges) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID, changes))
}

func (m *MockLoanService) MarkInterestPaid(ctx context.Context, userID, loanID string, in loan.MarkInterestPaidInput) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID, in))
}

func (m *MockLoanService) MarkPrincipalPaid(ctx context.Context, userID, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID))
}

func (m *MockLoanService) CloseLoan(ctx context.Context, userID, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID))
}

func (m *MockLoanService) SoftDeleteLoan(ctx context.Context, userID, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID))
}

func (m *MockLoanService) RestoreLoan(ctx context.Context, userID, loanID string) (*loan.Loan, error) {
	return m.loanResult(m.Called(ctx, userID, loanID))
}

func (m *MockLoanService) PermanentlyDeleteLoan(ctx context.Context, userID, loanID string) error {
	return m.Called(ctx, userID, loanID).Error(0)
}

func (m *MockLoanService) UpcomingPayments(ctx context.Context, userID string, days int) ([]loan.UpcomingPayment, error) {
	ret := m.Called(ctx, userID, days)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]loan.UpcomingPayment), ret.Error(1)
}

func (m *MockLoanService) PaymentsDueBetween(ctx context.Context, from, to time.Time) ([]loan.UpcomingPayment, error) {
	ret := m.Called(ctx, from, to)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]loan.UpcomingPayment), ret.Error(1)
}

func (m *MockLoanService) PurgeExpiredLoans(ctx context.Context) (int, error) {
	ret := m.Called(ctx)
	return ret.Int(0), ret.Error(1)
}

func (m *MockLoanService) DaysLeftToRestore(l *loan.Loan) int {
	if l.DeletedAt == nil {
		return 0
	}
	return l.DaysLeftToRestore(fixedNow, 10)
}

type MockUserService struct {
	mock.Mock
}

func (m *MockUserService) Signup(ctx context.Context, email, password, name string) (*user.User, error) {
	ret := m.Called(ctx, email, password, name)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*user.User), ret.Error(1)
}

func (m *MockUserService) Authenticate(ctx context.Context, email, password string) (*user.User, error) {
	ret := m.Called(ctx, email, password)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*user.User), ret.Error(1)
}

func (m *MockUserService) GetUser(ctx context.Context, userID string) (*user.User, error) {
	ret := m.Called(ctx, userID)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*user.User), ret.Error(1)
}

type MockReportService struct {
	mock.Mock
}

func (m *MockReportService) AllLoansData(ctx context.Context, userID, status string) ([]report.LoanWithCustomer, error) {
	ret := m.Called(ctx, userID, status)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]report.LoanWithCustomer), ret.Error(1)
}

func (m *MockReportService) AllCustomersData(ctx context.Context, userID string) ([]*customer.Customer, error) {
	ret := m.Called(ctx, userID)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).([]*customer.Customer), ret.Error(1)
}

func (m *MockReportService) SingleLoanData(ctx context.Context, userID, loanID string) (*report.LoanWithCustomer, error) {
	ret := m.Called(ctx, userID, loanID)
	if ret.Get(0) == nil {
		return nil, ret.Error(1)
	}
	return ret.Get(0).(*report.LoanWithCustomer), ret.Error(1)
}

func (m *MockReportService) ExportLoans(ctx context.Context, userID, status string, w io.Writer) error {
	ret := m.Called(ctx, userID, status, w)
	if fn, ok := ret.Get(0).(func(io.Writer) error); ok {
		return fn(w)
	}
	return ret.Error(0)
}
