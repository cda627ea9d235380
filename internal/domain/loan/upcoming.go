package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/pkg/apperrors"
)

type UpcomingPayment struct {
	LoanID            string    `json:"loanId"`
	PaymentID         string    `json:"paymentId"`
	UserID            string    `json:"userId"`
	CustomerID        string    `json:"customerId"`
	CustomerName      string    `json:"customerName"`
	CustomerEmail     string    `json:"customerEmail"`
	CustomerMobile    string    `json:"customerMobile"`
	DueDate           time.Time `json:"dueDate"`
	Amount            Money     `json:"amount"`
	InterestFrequency Frequency `json:"interestFrequency"`
	Principal         Money     `json:"principal"`
}

// UpcomingPayments lists pending installments of the user's active loans due within [today, today+days].
func (s *loanServiceImpl) UpcomingPayments(ctx context.Context, userID string, days int) ([]UpcomingPayment, error) {
	if days < 0 {
		return nil, apperrors.NewValidationError("days", "must not be negative")
	}
	if days == 0 {
		days = s.opts.UpcomingDays
	}
	from := DateOnly(s.clock.Now())
	to := from.AddDate(0, 0, days)
	return s.collectDue(ctx, Filter{UserID: userID, Statuses: []LoanStatus{StatusActive}}, from, to)
}

// PaymentsDueBetween is the cross-user variant used by the reminder job.
func (s *loanServiceImpl) PaymentsDueBetween(ctx context.Context, from, to time.Time) ([]UpcomingPayment, error) {
	return s.collectDue(ctx, Filter{Statuses: []LoanStatus{StatusActive}}, DateOnly(from), DateOnly(to))
}

func (s *loanServiceImpl) collectDue(ctx context.Context, filter Filter, from, to time.Time) ([]UpcomingPayment, error) {
	loans, err := s.repo.List(ctx, filter)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans for due payments", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}

	customers := make(map[string]*customer.Customer)
	result := make([]UpcomingPayment, 0)
	for _, l := range loans {
		cust, ok := customers[l.CustomerID]
		if !ok {
			cust, err = s.customers.GetCustomer(ctx, l.UserID, l.CustomerID)
			if err != nil {
				if !errors.Is(err, apperrors.ErrNotFound) {
					return nil, fmt.Errorf("failed to load customer %s: %w", l.CustomerID, err)
				}
				s.logger.WarnContext(ctx, "Skipping loan whose customer no longer exists",
					slog.String("loanID", l.ID), slog.String("customerID", l.CustomerID))
				cust = nil
			}
			customers[l.CustomerID] = cust
		}
		if cust == nil {
			continue
		}

		for _, p := range l.InterestPayments {
			if p.Status != PaymentStatusPending || p.DueDate.Before(from) || p.DueDate.After(to) {
				continue
			}
			result = append(result, UpcomingPayment{
				LoanID:            l.ID,
				PaymentID:         p.ID,
				UserID:            l.UserID,
				CustomerID:        l.CustomerID,
				CustomerName:      cust.Name,
				CustomerEmail:     cust.Email,
				CustomerMobile:    cust.Mobile,
				DueDate:           p.DueDate,
				Amount:            p.Amount,
				InterestFrequency: l.InterestFrequency,
				Principal:         l.Principal,
			})
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		return result[i].DueDate.Before(result[j].DueDate)
	})
	return result, nil
}
