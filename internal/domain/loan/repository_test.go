package loan

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/event"
	"loan-manager/internal/pkg/apperrors"

	"github.com/stretchr/testify/mock"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) Create(ctx context.Context, l *Loan) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockRepository) GetByID(ctx context.Context, loanID string) (*Loan, error) {
	args := m.Called(ctx, loanID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*Loan), args.Error(1)
}

func (m *MockRepository) List(ctx context.Context, filter Filter) ([]*Loan, error) {
	args := m.Called(ctx, filter)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*Loan), args.Error(1)
}

func (m *MockRepository) Update(ctx context.Context, l *Loan) error {
	return m.Called(ctx, l).Error(0)
}

func (m *MockRepository) Delete(ctx context.Context, loanID string) error {
	return m.Called(ctx, loanID).Error(0)
}

func (m *MockRepository) DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	args := m.Called(ctx, cutoff)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]string), args.Error(1)
}

func (m *MockRepository) HasActiveLoans(ctx context.Context, userID, customerID string) (bool, error) {
	args := m.Called(ctx, userID, customerID)
	return args.Bool(0), args.Error(1)
}

var _ Repository = (*MockRepository)(nil)

// FakeRepository is an in-memory store with the same version semantics as the real ones.
type FakeRepository struct {
	mu    sync.Mutex
	loans map[string]Loan
}

func NewFakeRepository() *FakeRepository {
	return &FakeRepository{loans: make(map[string]Loan)}
}

func cloneLoan(l Loan) Loan {
	l.InterestPayments = append([]InterestPayment(nil), l.InterestPayments...)
	l.PaymentHistory = append([]PaymentAmendment(nil), l.PaymentHistory...)
	return l
}

func (r *FakeRepository) Create(_ context.Context, l *Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loans[l.ID]; ok {
		return apperrors.ErrAlreadyExists
	}
	r.loans[l.ID] = cloneLoan(*l)
	return nil
}

func (r *FakeRepository) GetByID(_ context.Context, loanID string) (*Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	l, ok := r.loans[loanID]
	if !ok {
		return nil, fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
	}
	c := cloneLoan(l)
	return &c, nil
}

func (r *FakeRepository) List(_ context.Context, filter Filter) ([]*Loan, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []*Loan
	for _, l := range r.loans {
		if filter.UserID != "" && l.UserID != filter.UserID {
			continue
		}
		if filter.CustomerID != "" && l.CustomerID != filter.CustomerID {
			continue
		}
		if len(filter.Statuses) > 0 && !containsStatus(filter.Statuses, l.Status) {
			continue
		}
		c := cloneLoan(l)
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func containsStatus(statuses []LoanStatus, s LoanStatus) bool {
	for _, st := range statuses {
		if st == s {
			return true
		}
	}
	return false
}

func (r *FakeRepository) Update(_ context.Context, l *Loan) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	stored, ok := r.loans[l.ID]
	if !ok {
		return fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, l.ID)
	}
	if stored.Version != l.Version {
		return fmt.Errorf("%w: loan %s version %d is stale", apperrors.ErrConflict, l.ID, l.Version)
	}
	l.Version++
	r.loans[l.ID] = cloneLoan(*l)
	return nil
}

func (r *FakeRepository) Delete(_ context.Context, loanID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.loans[loanID]; !ok {
		return fmt.Errorf("%w: loan %s", apperrors.ErrNotFound, loanID)
	}
	delete(r.loans, loanID)
	return nil
}

func (r *FakeRepository) DeleteSoftDeletedBefore(_ context.Context, cutoff time.Time) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var ids []string
	for id, l := range r.loans {
		if l.Status == StatusDeleted && l.DeletedAt != nil && l.DeletedAt.Before(cutoff) {
			ids = append(ids, id)
			delete(r.loans, id)
		}
	}
	sort.Strings(ids)
	return ids, nil
}

func (r *FakeRepository) HasActiveLoans(_ context.Context, userID, customerID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, l := range r.loans {
		if l.UserID == userID && l.CustomerID == customerID && l.Status == StatusActive {
			return true, nil
		}
	}
	return false, nil
}

var _ Repository = (*FakeRepository)(nil)

// FakeCustomerDirectory serves customers from a map keyed by id.
type FakeCustomerDirectory struct {
	Customers map[string]*customer.Customer
}

func (d *FakeCustomerDirectory) GetCustomer(_ context.Context, userID, customerID string) (*customer.Customer, error) {
	c, ok := d.Customers[customerID]
	if !ok || c.UserID != userID {
		return nil, customer.ErrNotFound
	}
	return c, nil
}

// RecordingPublisher keeps the routing keys of every published event.
type RecordingPublisher struct {
	mu   sync.Mutex
	Keys []string
	Fail error
}

func (p *RecordingPublisher) record(key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Keys = append(p.Keys, key)
	return p.Fail
}

func (p *RecordingPublisher) PublishLoanEvent(_ context.Context, routingKey string, _ event.LoanEvent) error {
	return p.record(routingKey)
}

func (p *RecordingPublisher) PublishCustomerEvent(_ context.Context, routingKey string, _ event.CustomerEvent) error {
	return p.record(routingKey)
}

func (p *RecordingPublisher) PublishPaymentReminder(_ context.Context, _ event.PaymentReminderEvent) error {
	return p.record(event.RoutingKeyPaymentReminder)
}
