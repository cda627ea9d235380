package customer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"loan-manager/internal/event"
	"loan-manager/internal/pkg/apperrors"

	"github.com/google/uuid"
)

const (
	inputValidationPassed = "Input validation passed"
	customerNotFound      = "Customer not found by repository"
)

type CustomerService interface {
	CreateCustomer(ctx context.Context, userID, name, mobile, email string) (*Customer, error)
	GetCustomer(ctx context.Context, userID, customerID string) (*Customer, error)
	ListCustomers(ctx context.Context, userID string) ([]*Customer, error)
	UpdateCustomer(ctx context.Context, userID, customerID string, changes Changes) (*Customer, error)
	DeleteCustomer(ctx context.Context, userID, customerID string) error
}

var _ CustomerService = (*customerService)(nil)

type customerService struct {
	repo   CustomerRepository
	loans  ActiveLoanChecker
	pub    event.EventPublisher
	logger *slog.Logger
	now    func() time.Time
}

func NewCustomerService(repo CustomerRepository, loans ActiveLoanChecker, pub event.EventPublisher, logger *slog.Logger) CustomerService {
	if repo == nil {
		panic("customer repository cannot be nil")
	}
	if loans == nil {
		panic("active loan checker cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if pub == nil {
		logger.Warn("No event publisher provided to NewCustomerService, events will be dropped")
		pub = event.NewNoopEventPublisher(logger)
	}

	return &customerService{
		repo:   repo,
		loans:  loans,
		pub:    pub,
		logger: logger.With(slog.String("component", "customerService")),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

func NewCustomerEventPayload(cust *Customer) event.CustomerEventPayload {
	if cust == nil {
		return event.CustomerEventPayload{}
	}
	return event.CustomerEventPayload{
		CustomerID: cust.ID,
		UserID:     cust.UserID,
		Name:       cust.Name,
		Mobile:     cust.Mobile,
		Email:      cust.Email,
		CreatedAt:  cust.CreatedAt,
		UpdatedAt:  cust.UpdatedAt,
	}
}

func (s *customerService) publish(ctx context.Context, routingKey string, cust *Customer) {
	evt := event.CustomerEvent{
		Timestamp: s.now(),
		Payload:   NewCustomerEventPayload(cust),
	}
	if err := s.pub.PublishCustomerEvent(ctx, routingKey, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish customer event",
			slog.String("routingKey", routingKey), slog.String("customerID", cust.ID), slog.Any("error", err))
	}
}

func validateFields(name, mobile, email string) error {
	if strings.TrimSpace(name) == "" {
		return apperrors.NewValidationError("name", "cannot be empty")
	}
	if strings.TrimSpace(mobile) == "" {
		return apperrors.NewValidationError("mobile", "cannot be empty")
	}
	email = strings.TrimSpace(email)
	if email == "" {
		return apperrors.NewValidationError("email", "cannot be empty")
	}
	if _, err := mail.ParseAddress(email); err != nil {
		return apperrors.NewValidationError("email", "must be a valid address")
	}
	return nil
}

func (s *customerService) CreateCustomer(ctx context.Context, userID, name, mobile, email string) (*Customer, error) {
	logger := s.logger.With(slog.String("userID", userID))
	logger.InfoContext(ctx, "Attempting to create new customer")

	if err := validateFields(name, mobile, email); err != nil {
		logger.WarnContext(ctx, "Validation failed", slog.Any("error", err))
		return nil, err
	}
	logger.DebugContext(ctx, inputValidationPassed)

	cust := NewCustomer(uuid.NewString(), userID, name, mobile, email, s.now())
	if err := s.repo.Create(ctx, cust); err != nil {
		logger.ErrorContext(ctx, "Repository failed to save new customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new customer: %w", err)
	}

	s.publish(ctx, event.RoutingKeyCustomerCreated, cust)
	logger.InfoContext(ctx, "Successfully created new customer", slog.String("customerID", cust.ID))
	return cust, nil
}

// GetCustomer hides customers owned by another user behind ErrNotFound.
func (s *customerService) GetCustomer(ctx context.Context, userID, customerID string) (*Customer, error) {
	logger := s.logger.With(slog.String("userID", userID), slog.String("customerID", customerID))

	cust, err := s.repo.FindByID(ctx, customerID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.WarnContext(ctx, customerNotFound)
			return nil, ErrNotFound
		}
		logger.ErrorContext(ctx, "Repository error finding customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get customer %s: %w", customerID, err)
	}
	if cust.UserID != userID {
		logger.WarnContext(ctx, "Customer belongs to another user")
		return nil, ErrNotFound
	}
	return cust, nil
}

func (s *customerService) ListCustomers(ctx context.Context, userID string) ([]*Customer, error) {
	customers, err := s.repo.FindAll(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing customers", slog.String("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to list customers: %w", err)
	}
	s.logger.DebugContext(ctx, "Listed customers", slog.String("userID", userID), slog.Int("count", len(customers)))
	return customers, nil
}

func (s *customerService) UpdateCustomer(ctx context.Context, userID, customerID string, changes Changes) (*Customer, error) {
	cust, err := s.GetCustomer(ctx, userID, customerID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(slog.String("userID", userID), slog.String("customerID", customerID))

	name, mobile, email := cust.Name, cust.Mobile, cust.Email
	if changes.Name != nil {
		name = *changes.Name
	}
	if changes.Mobile != nil {
		mobile = *changes.Mobile
	}
	if changes.Email != nil {
		email = *changes.Email
	}
	if err := validateFields(name, mobile, email); err != nil {
		logger.WarnContext(ctx, "Validation failed", slog.Any("error", err))
		return nil, err
	}

	if !cust.Apply(changes, s.now()) {
		logger.InfoContext(ctx, "No customer change needed, skipping save")
		return cust, nil
	}

	if err := s.repo.Update(ctx, cust); err != nil {
		if errors.Is(err, ErrNotFound) {
			logger.ErrorContext(ctx, "Customer disappeared before save completed")
			return nil, ErrNotFound
		}
		logger.ErrorContext(ctx, "Repository failed to save customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to update customer %s: %w", customerID, err)
	}

	s.publish(ctx, event.RoutingKeyCustomerUpdated, cust)
	logger.InfoContext(ctx, "Successfully updated customer")
	return cust, nil
}

func (s *customerService) DeleteCustomer(ctx context.Context, userID, customerID string) error {
	cust, err := s.GetCustomer(ctx, userID, customerID)
	if err != nil {
		return err
	}
	logger := s.logger.With(slog.String("userID", userID), slog.String("customerID", customerID))

	active, err := s.loans.HasActiveLoans(ctx, userID, customerID)
	if err != nil {
		logger.ErrorContext(ctx, "Failed to check customer loans", slog.Any("error", err))
		return fmt.Errorf("failed to check loans of customer %s: %w", customerID, err)
	}
	if active {
		logger.WarnContext(ctx, "Refusing to delete customer with active loans")
		return ErrHasActiveLoans
	}

	if err := s.repo.Delete(ctx, customerID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return ErrNotFound
		}
		logger.ErrorContext(ctx, "Repository failed to delete customer", slog.Any("error", err))
		return fmt.Errorf("failed to delete customer %s: %w", customerID, err)
	}

	s.publish(ctx, event.RoutingKeyCustomerDeleted, cust)
	logger.InfoContext(ctx, "Successfully deleted customer")
	return nil
}
