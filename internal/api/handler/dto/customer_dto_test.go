package dto

import (
	"testing"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/pkg/apperrors"

	"github.com/stretchr/testify/assert"
)

func TestCreateCustomerRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     CreateCustomerRequest
		field   string
		wantErr bool
	}{
		{"valid", CreateCustomerRequest{Name: "Asha", Mobile: "9876543210", Email: "asha@example.com"}, "", false},
		{"missing name", CreateCustomerRequest{Mobile: "9876543210", Email: "asha@example.com"}, "name", true},
		{"missing mobile", CreateCustomerRequest{Name: "Asha", Email: "asha@example.com"}, "mobile", true},
		{"bad email", CreateCustomerRequest{Name: "Asha", Mobile: "1", Email: "not-an-email"}, "email", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if !tt.wantErr {
				assert.NoError(t, err)
				return
			}
			assert.ErrorIs(t, err, apperrors.ErrValidation)
			assert.Equal(t, tt.field, fieldOf(t, err))
		})
	}
}

func TestUpdateCustomerRequest(t *testing.T) {
	empty := ""
	req := UpdateCustomerRequest{Name: &empty}
	assert.Equal(t, "name", fieldOf(t, req.Validate()))

	mobile := "12345"
	req = UpdateCustomerRequest{Mobile: &mobile}
	assert.NoError(t, req.Validate())
	changes := req.ToChanges()
	assert.Nil(t, changes.Name)
	assert.Equal(t, "12345", *changes.Mobile)
}

func TestNewCustomerResponse(t *testing.T) {
	now := time.Date(2024, 1, 10, 0, 0, 0, 0, time.UTC)
	cust := customer.NewCustomer("cust-1", "user-1", "Asha", "9876543210", "asha@example.com", now)

	resp := NewCustomerResponse(cust)
	assert.Equal(t, "cust-1", resp.ID)
	assert.Equal(t, "Asha", resp.Name)
	assert.Equal(t, now, resp.CreatedAt)

	assert.Equal(t, CustomerResponse{}, NewCustomerResponse(nil))
	assert.Len(t, NewCustomerResponses([]*customer.Customer{cust, cust}), 2)
}
