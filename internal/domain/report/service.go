// Package report assembles read-only views over a user's loans and customers.
package report

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/pkg/apperrors"
)

type LoanReader interface {
	GetLoan(ctx context.Context, userID, loanID string) (*loan.Loan, error)
	ListLoans(ctx context.Context, userID string, filter loan.ListFilter) ([]*loan.Loan, error)
}

type CustomerReader interface {
	GetCustomer(ctx context.Context, userID, customerID string) (*customer.Customer, error)
	ListCustomers(ctx context.Context, userID string) ([]*customer.Customer, error)
}

type LoanWithCustomer struct {
	Loan     *loan.Loan         `json:"loan"`
	Customer *customer.Customer `json:"customer"`
}

type Service interface {
	AllLoansData(ctx context.Context, userID, status string) ([]LoanWithCustomer, error)
	AllCustomersData(ctx context.Context, userID string) ([]*customer.Customer, error)
	SingleLoanData(ctx context.Context, userID, loanID string) (*LoanWithCustomer, error)
	ExportLoans(ctx context.Context, userID, status string, w io.Writer) error
}

type service struct {
	loans     LoanReader
	customers CustomerReader
	clock     loan.Clock
	logger    *slog.Logger
}

func NewService(loans LoanReader, customers CustomerReader, clock loan.Clock, logger *slog.Logger) Service {
	if loans == nil || customers == nil {
		panic("report service needs loan and customer readers")
	}
	if clock == nil {
		clock = loan.SystemClock
	}
	return &service{loans: loans, customers: customers, clock: clock, logger: logger.With("component", "ReportService")}
}

// AllLoansData pairs every matching loan with its customer. Status "" or "all"
// means every non-deleted loan. Loans whose customer is gone are skipped.
func (s *service) AllLoansData(ctx context.Context, userID, status string) ([]LoanWithCustomer, error) {
	filter := loan.ListFilter{}
	if status != "" && status != "all" {
		filter.Status = loan.LoanStatus(status)
		if !filter.Status.IsValid() {
			return nil, apperrors.NewValidationError("status", "must be one of all, active, closed, deleted")
		}
	}

	loans, err := s.loans.ListLoans(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	custs, err := s.customers.ListCustomers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}

	byID := make(map[string]*customer.Customer, len(custs))
	for _, c := range custs {
		byID[c.ID] = c
	}

	out := make([]LoanWithCustomer, 0, len(loans))
	for _, l := range loans {
		c, ok := byID[l.CustomerID]
		if !ok {
			s.logger.WarnContext(ctx, "Skipping loan with missing customer", "loanID", l.ID, "customerID", l.CustomerID)
			continue
		}
		out = append(out, LoanWithCustomer{Loan: l, Customer: c})
	}
	return out, nil
}

func (s *service) AllCustomersData(ctx context.Context, userID string) ([]*customer.Customer, error) {
	return s.customers.ListCustomers(ctx, userID)
}

func (s *service) SingleLoanData(ctx context.Context, userID, loanID string) (*LoanWithCustomer, error) {
	l, err := s.loans.GetLoan(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	c, err := s.customers.GetCustomer(ctx, userID, l.CustomerID)
	if err != nil {
		return nil, err
	}
	return &LoanWithCustomer{Loan: l, Customer: c}, nil
}
