package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/event"
	"loan-manager/internal/infrastructure/monitoring"
	"loan-manager/internal/pkg/apperrors"

	"github.com/google/uuid"
)

var (
	ErrLoanNotFound = fmt.Errorf("loan %w", apperrors.ErrNotFound)

	ErrPaymentNotFound = fmt.Errorf("interest payment %w", apperrors.ErrNotFound)
)

type Clock interface {
	Now() time.Time
}

type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

var SystemClock Clock = ClockFunc(func() time.Time { return time.Now().UTC() })

// CustomerDirectory resolves customers owned by a user. customer.CustomerService satisfies it.
type CustomerDirectory interface {
	GetCustomer(ctx context.Context, userID, customerID string) (*customer.Customer, error)
}

type Options struct {
	RetentionDays int
	UpcomingDays  int
}

type CreateLoanInput struct {
	CustomerID        string
	Principal         Money
	InterestRate      float64
	StartDate         time.Time
	EndDate           time.Time
	InterestFrequency Frequency
	Remarks           string
}

// LoanChanges is a partial update. Nil fields keep the stored value.
// A non-nil Version must match the stored version.
type LoanChanges struct {
	CustomerID        *string
	Principal         *Money
	InterestRate      *float64
	StartDate         *time.Time
	EndDate           *time.Time
	InterestFrequency *Frequency
	Remarks           *string
	Version           *int64
}

type MarkInterestPaidInput struct {
	PaymentID    string
	PaidOn       time.Time
	Remarks      *string
	ManualAmount *Money
}

type ListFilter struct {
	Status         LoanStatus
	CustomerID     string
	IncludeDeleted bool
}

type LoanService interface {
	CreateLoan(ctx context.Context, userID string, in CreateLoanInput) (*Loan, error)

	GetLoan(ctx context.Context, userID, loanID string) (*Loan, error)

	ListLoans(ctx context.Context, userID string, filter ListFilter) ([]*Loan, error)

	UpdateLoan(ctx context.Context, userID, loanID string, changes LoanChanges) (*Loan, error)

	MarkInterestPaid(ctx context.Context, userID, loanID string, in MarkInterestPaidInput) (*Loan, error)

	MarkPrincipalPaid(ctx context.Context, userID, loanID string) (*Loan, error)

	CloseLoan(ctx context.Context, userID, loanID string) (*Loan, error)

	SoftDeleteLoan(ctx context.Context, userID, loanID string) (*Loan, error)

	RestoreLoan(ctx context.Context, userID, loanID string) (*Loan, error)

	PermanentlyDeleteLoan(ctx context.Context, userID, loanID string) error

	UpcomingPayments(ctx context.Context, userID string, days int) ([]UpcomingPayment, error)

	PaymentsDueBetween(ctx context.Context, from, to time.Time) ([]UpcomingPayment, error)

	PurgeExpiredLoans(ctx context.Context) (int, error)

	DaysLeftToRestore(l *Loan) int
}

var _ LoanService = (*loanServiceImpl)(nil)

type loanServiceImpl struct {
	repo      Repository
	customers CustomerDirectory
	pub       event.EventPublisher
	clock     Clock
	opts      Options
	logger    *slog.Logger
}

func NewLoanService(r Repository, customers CustomerDirectory, pub event.EventPublisher, clock Clock, opts Options, logger *slog.Logger) LoanService {
	if r == nil {
		panic("loan repository cannot be nil")
	}
	if customers == nil {
		panic("customer directory cannot be nil")
	}
	if logger == nil {
		panic("logger cannot be nil")
	}
	if pub == nil {
		pub = event.NewNoopEventPublisher(logger)
	}
	if clock == nil {
		clock = SystemClock
	}
	if opts.RetentionDays <= 0 {
		opts.RetentionDays = 10
	}
	if opts.UpcomingDays <= 0 {
		opts.UpcomingDays = 30
	}
	return &loanServiceImpl{
		repo:      r,
		customers: customers,
		pub:       pub,
		clock:     clock,
		opts:      opts,
		logger:    logger.With(slog.String("component", "loanService")),
	}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, userID string, in CreateLoanInput) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("create", err) }()
	logger := s.logger.With(slog.String("userID", userID), slog.String("customerID", in.CustomerID))
	logger.InfoContext(ctx, "Creating new loan")

	if in.CustomerID == "" {
		return nil, apperrors.NewValidationError("customerId", "is required")
	}
	if _, err := s.customers.GetCustomer(ctx, userID, in.CustomerID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			logger.WarnContext(ctx, "Customer not found")
			return nil, err
		}
		logger.ErrorContext(ctx, "Failed to look up customer", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify customer: %w", err)
	}

	payments, err := GenerateInterestPayments(in.Principal, in.InterestRate, in.StartDate, in.EndDate, in.InterestFrequency)
	if err != nil {
		logger.WarnContext(ctx, "Invalid loan terms", slog.Any("error", err))
		return nil, err
	}

	now := s.clock.Now()
	l := &Loan{
		ID:                uuid.NewString(),
		UserID:            userID,
		CustomerID:        in.CustomerID,
		Principal:         in.Principal,
		InterestRate:      in.InterestRate,
		StartDate:         DateOnly(in.StartDate),
		EndDate:           DateOnly(in.EndDate),
		InterestFrequency: in.InterestFrequency,
		InterestPayments:  payments,
		Status:            StatusActive,
		PrincipalPaid:     false,
		Remarks:           in.Remarks,
		CreatedAt:         now,
		UpdatedAt:         now,
		Version:           1,
	}

	if err := s.repo.Create(ctx, l); err != nil {
		logger.ErrorContext(ctx, "Failed to save loan", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save loan: %w", err)
	}

	s.publish(ctx, event.RoutingKeyLoanCreated, l, nil)
	logger.InfoContext(ctx, "Loan created successfully", slog.String("loanID", l.ID), slog.Int("installments", len(payments)))
	return l, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, userID, loanID string) (*Loan, error) {
	return s.loadOwned(ctx, userID, loanID)
}

func (s *loanServiceImpl) ListLoans(ctx context.Context, userID string, filter ListFilter) ([]*Loan, error) {
	f := Filter{UserID: userID, CustomerID: filter.CustomerID}
	switch {
	case filter.Status != "":
		if !filter.Status.IsValid() {
			return nil, apperrors.NewValidationError("status", "must be one of active, closed, deleted")
		}
		f.Statuses = []LoanStatus{filter.Status}
	case !filter.IncludeDeleted:
		f.Statuses = []LoanStatus{StatusActive, StatusClosed}
	}

	loans, err := s.repo.List(ctx, f)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to list loans", slog.String("userID", userID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to list loans: %w", err)
	}
	return loans, nil
}

func (s *loanServiceImpl) UpdateLoan(ctx context.Context, userID, loanID string, changes LoanChanges) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("update", err) }()

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(slog.String("userID", userID), slog.String("loanID", loanID))

	if l.IsDeleted() {
		logger.WarnContext(ctx, "Refusing to update a deleted loan")
		return nil, fmt.Errorf("%w: loan %s is deleted", apperrors.ErrInvalidTransition, loanID)
	}
	if changes.Version != nil && *changes.Version != l.Version {
		logger.WarnContext(ctx, "Stale loan version", slog.Int64("expected", *changes.Version), slog.Int64("stored", l.Version))
		return nil, fmt.Errorf("%w: loan %s was modified concurrently", apperrors.ErrConflict, loanID)
	}

	if changes.CustomerID != nil && *changes.CustomerID != l.CustomerID {
		if _, err := s.customers.GetCustomer(ctx, userID, *changes.CustomerID); err != nil {
			return nil, err
		}
		l.CustomerID = *changes.CustomerID
	}

	principal, rate := l.Principal, l.InterestRate
	start, end, freq := l.StartDate, l.EndDate, l.InterestFrequency
	if changes.Principal != nil {
		principal = *changes.Principal
	}
	if changes.InterestRate != nil {
		rate = *changes.InterestRate
	}
	if changes.StartDate != nil {
		start = DateOnly(*changes.StartDate)
	}
	if changes.EndDate != nil {
		end = DateOnly(*changes.EndDate)
	}
	if changes.InterestFrequency != nil {
		freq = *changes.InterestFrequency
	}

	needsReschedule := principal != l.Principal ||
		rate != l.InterestRate ||
		!start.Equal(l.StartDate) ||
		!end.Equal(l.EndDate) ||
		freq != l.InterestFrequency

	if needsReschedule {
		regenerated, err := GenerateInterestPayments(principal, rate, start, end, freq)
		if err != nil {
			logger.WarnContext(ctx, "Invalid loan terms", slog.Any("error", err))
			return nil, err
		}
		l.InterestPayments = mergeSchedule(l.InterestPayments, regenerated)
		l.Principal, l.InterestRate = principal, rate
		l.StartDate, l.EndDate, l.InterestFrequency = start, end, freq
	}
	if changes.Remarks != nil && *changes.Remarks != "" {
		l.Remarks = *changes.Remarks
	}
	l.UpdatedAt = s.clock.Now()

	if err := s.repo.Update(ctx, l); err != nil {
		logger.ErrorContext(ctx, "Failed to save loan update", slog.Any("error", err))
		return nil, fmt.Errorf("failed to update loan %s: %w", loanID, err)
	}

	key := event.RoutingKeyLoanUpdated
	if needsReschedule {
		key = event.RoutingKeyLoanRescheduled
	}
	s.publish(ctx, key, l, nil)
	logger.InfoContext(ctx, "Loan updated", slog.Bool("rescheduled", needsReschedule))
	return l, nil
}

// mergeSchedule keeps every paid installment verbatim and fills the rest of the
// term with the regenerated installments, clipped to the spans no paid period
// covers. A clipped installment still charges its full amount. When a paid period
// splits a regenerated one in two, the second piece gets a fresh id. The result
// is not paid followed by regenerated: periods stay contiguous and never overlap.
func mergeSchedule(current, regenerated []InterestPayment) []InterestPayment {
	var paid []InterestPayment
	for _, p := range current {
		if p.Status == PaymentStatusPaid {
			paid = append(paid, p)
		}
	}
	sort.SliceStable(paid, func(i, j int) bool {
		return paid[i].PeriodStart.Before(paid[j].PeriodStart)
	})

	merged := make([]InterestPayment, 0, len(paid)+len(regenerated))
	merged = append(merged, paid...)
	for _, r := range regenerated {
		for i, gap := range uncoveredSpans(r.PeriodStart, r.PeriodEnd, paid) {
			piece := r
			piece.PeriodStart, piece.PeriodEnd, piece.DueDate = gap[0], gap[1], gap[1]
			if i > 0 {
				piece.ID = uuid.NewString()
			}
			merged = append(merged, piece)
		}
	}

	sort.SliceStable(merged, func(i, j int) bool {
		return merged[i].PeriodStart.Before(merged[j].PeriodStart)
	})
	return merged
}

// uncoveredSpans returns the parts of [start, end) outside every period in
// sorted, which must be ordered by PeriodStart and non-overlapping.
func uncoveredSpans(start, end time.Time, sorted []InterestPayment) [][2]time.Time {
	var spans [][2]time.Time
	cursor := start
	for _, o := range sorted {
		if !o.PeriodEnd.After(cursor) || !o.PeriodStart.Before(end) {
			continue
		}
		if o.PeriodStart.After(cursor) {
			spans = append(spans, [2]time.Time{cursor, o.PeriodStart})
		}
		cursor = o.PeriodEnd
		if !cursor.Before(end) {
			return spans
		}
	}
	return append(spans, [2]time.Time{cursor, end})
}

func (s *loanServiceImpl) MarkInterestPaid(ctx context.Context, userID, loanID string, in MarkInterestPaidInput) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("mark_interest_paid", err) }()

	if in.PaymentID == "" {
		return nil, apperrors.NewValidationError("paymentId", "is required")
	}
	if in.PaidOn.IsZero() {
		return nil, apperrors.NewValidationError("paidOn", "is required")
	}

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	logger := s.logger.With(slog.String("loanID", loanID), slog.String("paymentID", in.PaymentID))

	if l.IsDeleted() {
		return nil, fmt.Errorf("%w: loan %s is deleted", apperrors.ErrInvalidTransition, loanID)
	}
	idx, ok := l.FindPayment(in.PaymentID)
	if !ok {
		logger.WarnContext(ctx, "Interest payment not found on loan")
		return nil, fmt.Errorf("%w: %s", ErrPaymentNotFound, in.PaymentID)
	}

	payment := &l.InterestPayments[idx]
	amount, manual := payment.Amount, false
	if in.ManualAmount != nil && *in.ManualAmount >= 0 {
		amount, manual = *in.ManualAmount, true
	}

	remarks := payment.Remarks
	if in.Remarks != nil && *in.Remarks != "" {
		r := *in.Remarks
		remarks = &r
	}

	paidOn := DateOnly(in.PaidOn)
	now := s.clock.Now()
	payment.Status = PaymentStatusPaid
	payment.PaidOn = &paidOn
	payment.AmountPaid = &amount
	payment.IsManualAmount = manual
	payment.Remarks = remarks

	l.PaymentHistory = append(l.PaymentHistory, PaymentAmendment{
		PaymentID:      payment.ID,
		PaidOn:         paidOn,
		AmountPaid:     amount,
		IsManualAmount: manual,
		Remarks:        remarks,
		RecordedAt:     now,
		RecordedBy:     userID,
	})
	l.UpdatedAt = now

	if err := s.repo.Update(ctx, l); err != nil {
		logger.ErrorContext(ctx, "Failed to save interest payment", slog.Any("error", err))
		return nil, fmt.Errorf("failed to mark interest paid on loan %s: %w", loanID, err)
	}

	s.publish(ctx, event.RoutingKeyLoanInterestPaid, l, payment)
	logger.InfoContext(ctx, "Interest payment marked paid", slog.Float64("amount", amount), slog.Bool("manual", manual))
	return l, nil
}

func (s *loanServiceImpl) MarkPrincipalPaid(ctx context.Context, userID, loanID string) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("mark_principal_paid", err) }()

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted() {
		return nil, fmt.Errorf("%w: loan %s is deleted", apperrors.ErrInvalidTransition, loanID)
	}
	if l.PrincipalPaid && l.Status == StatusClosed {
		return l, nil
	}

	l.PrincipalPaid = true
	l.Status = StatusClosed
	l.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to mark principal paid on loan %s: %w", loanID, err)
	}

	s.publish(ctx, event.RoutingKeyLoanClosed, l, nil)
	s.logger.InfoContext(ctx, "Principal marked paid, loan closed", slog.String("loanID", loanID))
	return l, nil
}

func (s *loanServiceImpl) CloseLoan(ctx context.Context, userID, loanID string) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("close", err) }()

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	switch l.Status {
	case StatusClosed:
		return l, nil
	case StatusDeleted:
		return nil, fmt.Errorf("%w: loan %s is deleted", apperrors.ErrInvalidTransition, loanID)
	}

	l.Status = StatusClosed
	l.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to close loan %s: %w", loanID, err)
	}

	s.publish(ctx, event.RoutingKeyLoanClosed, l, nil)
	s.logger.InfoContext(ctx, "Loan closed", slog.String("loanID", loanID))
	return l, nil
}

func (s *loanServiceImpl) SoftDeleteLoan(ctx context.Context, userID, loanID string) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("soft_delete", err) }()

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if l.IsDeleted() {
		return l, nil
	}

	now := s.clock.Now()
	l.Status = StatusDeleted
	l.DeletedAt = &now
	l.UpdatedAt = now
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to delete loan %s: %w", loanID, err)
	}

	s.publish(ctx, event.RoutingKeyLoanDeleted, l, nil)
	s.logger.InfoContext(ctx, "Loan moved to recycle bin", slog.String("loanID", loanID), slog.Int("retentionDays", s.opts.RetentionDays))
	return l, nil
}

// RestoreLoan returns a deleted loan to active. PrincipalPaid is left as stored.
func (s *loanServiceImpl) RestoreLoan(ctx context.Context, userID, loanID string) (_ *Loan, err error) {
	defer func() { monitoring.RecordLoanOperation("restore", err) }()

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return nil, err
	}
	if !l.IsDeleted() {
		return nil, fmt.Errorf("%w: loan %s is not deleted", apperrors.ErrInvalidTransition, loanID)
	}

	l.Status = StatusActive
	l.DeletedAt = nil
	l.UpdatedAt = s.clock.Now()
	if err := s.repo.Update(ctx, l); err != nil {
		return nil, fmt.Errorf("failed to restore loan %s: %w", loanID, err)
	}

	s.publish(ctx, event.RoutingKeyLoanRestored, l, nil)
	s.logger.InfoContext(ctx, "Loan restored", slog.String("loanID", loanID), slog.String("status", string(l.Status)))
	return l, nil
}

func (s *loanServiceImpl) PermanentlyDeleteLoan(ctx context.Context, userID, loanID string) (err error) {
	defer func() { monitoring.RecordLoanOperation("permanent_delete", err) }()

	l, err := s.loadOwned(ctx, userID, loanID)
	if err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, loanID); err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
		}
		return fmt.Errorf("failed to permanently delete loan %s: %w", loanID, err)
	}

	s.publish(ctx, event.RoutingKeyLoanPurged, l, nil)
	s.logger.InfoContext(ctx, "Loan permanently deleted", slog.String("loanID", loanID))
	return nil
}

// PurgeExpiredLoans removes soft-deleted loans older than the retention window.
func (s *loanServiceImpl) PurgeExpiredLoans(ctx context.Context) (int, error) {
	cutoff := s.clock.Now().Add(-time.Duration(s.opts.RetentionDays) * 24 * time.Hour)
	ids, err := s.repo.DeleteSoftDeletedBefore(ctx, cutoff)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to purge expired loans", slog.Time("cutoff", cutoff), slog.Any("error", err))
		return 0, fmt.Errorf("failed to purge loans deleted before %s: %w", cutoff.Format(time.RFC3339), err)
	}

	now := s.clock.Now()
	for _, id := range ids {
		evt := event.LoanEvent{Timestamp: now, Payload: event.LoanEventPayload{LoanID: id, Status: string(StatusDeleted)}}
		if err := s.pub.PublishLoanEvent(ctx, event.RoutingKeyLoanPurged, evt); err != nil {
			s.logger.ErrorContext(ctx, "Failed to publish purge event", slog.String("loanID", id), slog.Any("error", err))
		}
	}
	monitoring.RecordLoansPurged(len(ids))
	s.logger.InfoContext(ctx, "Purged expired loans", slog.Int("count", len(ids)), slog.Time("cutoff", cutoff))
	return len(ids), nil
}

func (s *loanServiceImpl) DaysLeftToRestore(l *Loan) int {
	return l.DaysLeftToRestore(s.clock.Now(), s.opts.RetentionDays)
}

func (s *loanServiceImpl) loadOwned(ctx context.Context, userID, loanID string) (*Loan, error) {
	l, err := s.repo.GetByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			s.logger.WarnContext(ctx, "Loan not found", slog.String("loanID", loanID))
			return nil, fmt.Errorf("%w: %s", ErrLoanNotFound, loanID)
		}
		s.logger.ErrorContext(ctx, "Failed to load loan", slog.String("loanID", loanID), slog.Any("error", err))
		return nil, fmt.Errorf("failed to get loan %s: %w", loanID, err)
	}
	if l.UserID != userID {
		s.logger.WarnContext(ctx, "Loan belongs to another user", slog.String("loanID", loanID), slog.String("userID", userID))
		return nil, apperrors.NewForbiddenError("you do not have access to this loan")
	}
	return l, nil
}

func (s *loanServiceImpl) publish(ctx context.Context, routingKey string, l *Loan, payment *InterestPayment) {
	payload := event.LoanEventPayload{
		LoanID:            l.ID,
		UserID:            l.UserID,
		CustomerID:        l.CustomerID,
		Principal:         l.Principal,
		InterestRate:      l.InterestRate,
		InterestFrequency: string(l.InterestFrequency),
		Status:            string(l.Status),
		PrincipalPaid:     l.PrincipalPaid,
		Installments:      len(l.InterestPayments),
		DeletedAt:         l.DeletedAt,
	}
	if payment != nil {
		payload.PaymentID = payment.ID
		payload.AmountPaid = payment.AmountPaid
	}
	evt := event.LoanEvent{Timestamp: s.clock.Now(), Payload: payload}
	if err := s.pub.PublishLoanEvent(ctx, routingKey, evt); err != nil {
		s.logger.ErrorContext(ctx, "Failed to publish loan event",
			slog.String("routingKey", routingKey), slog.String("loanID", l.ID), slog.Any("error", err))
	}
}
