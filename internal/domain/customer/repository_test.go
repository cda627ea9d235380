package customer

import (
	"context"

	"loan-manager/internal/event"

	"github.com/stretchr/testify/mock"
)

type MockCustomerRepository struct {
	mock.Mock
}

func (_m *MockCustomerRepository) Create(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		r0 = rf(ctx, customer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerRepository) FindByID(ctx context.Context, customerID string) (*Customer, error) {
	ret := _m.Called(ctx, customerID)

	var r0 *Customer
	if rf, ok := ret.Get(0).(func(context.Context, string) *Customer); ok {
		r0 = rf(ctx, customerID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, customerID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerRepository) FindAll(ctx context.Context, userID string) ([]*Customer, error) {
	ret := _m.Called(ctx, userID)

	var r0 []*Customer
	if rf, ok := ret.Get(0).(func(context.Context, string) []*Customer); ok {
		r0 = rf(ctx, userID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]*Customer)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, string) error); ok {
		r1 = rf(ctx, userID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockCustomerRepository) Update(ctx context.Context, customer *Customer) error {
	ret := _m.Called(ctx, customer)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Customer) error); ok {
		r0 = rf(ctx, customer)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockCustomerRepository) Delete(ctx context.Context, customerID string) error {
	ret := _m.Called(ctx, customerID)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, string) error); ok {
		r0 = rf(ctx, customerID)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

var _ CustomerRepository = (*MockCustomerRepository)(nil)

type MockActiveLoanChecker struct {
	mock.Mock
}

func (_m *MockActiveLoanChecker) HasActiveLoans(ctx context.Context, userID, customerID string) (bool, error) {
	ret := _m.Called(ctx, userID, customerID)
	return ret.Bool(0), ret.Error(1)
}

var _ ActiveLoanChecker = (*MockActiveLoanChecker)(nil)

type MockEventPublisher struct {
	mock.Mock
}

func (_m *MockEventPublisher) PublishLoanEvent(ctx context.Context, routingKey string, evt event.LoanEvent) error {
	return _m.Called(ctx, routingKey, evt).Error(0)
}

func (_m *MockEventPublisher) PublishCustomerEvent(ctx context.Context, routingKey string, evt event.CustomerEvent) error {
	return _m.Called(ctx, routingKey, evt).Error(0)
}

func (_m *MockEventPublisher) PublishPaymentReminder(ctx context.Context, evt event.PaymentReminderEvent) error {
	return _m.Called(ctx, evt).Error(0)
}

var _ event.EventPublisher = (*MockEventPublisher)(nil)
