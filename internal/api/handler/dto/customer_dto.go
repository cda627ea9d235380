package dto

import (
	"time"

	"loan-manager/internal/domain/customer"
)

type CreateCustomerRequest struct {
	Name   string `json:"name" validate:"required"`
	Mobile string `json:"mobile" validate:"required"`
	Email  string `json:"email" validate:"required,email"`
}

func (r *CreateCustomerRequest) Validate() error {
	return validateStruct(r)
}

type UpdateCustomerRequest struct {
	Name   *string `json:"name,omitempty" validate:"omitempty,min=1"`
	Mobile *string `json:"mobile,omitempty" validate:"omitempty,min=1"`
	Email  *string `json:"email,omitempty" validate:"omitempty,email"`
}

func (r *UpdateCustomerRequest) Validate() error {
	return validateStruct(r)
}

func (r *UpdateCustomerRequest) ToChanges() customer.Changes {
	return customer.Changes{Name: r.Name, Mobile: r.Mobile, Email: r.Email}
}

type CustomerResponse struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Mobile    string    `json:"mobile"`
	Email     string    `json:"email"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func NewCustomerResponse(cust *customer.Customer) CustomerResponse {
	if cust == nil {
		return CustomerResponse{}
	}
	return CustomerResponse{
		ID:        cust.ID,
		Name:      cust.Name,
		Mobile:    cust.Mobile,
		Email:     cust.Email,
		CreatedAt: cust.CreatedAt,
		UpdatedAt: cust.UpdatedAt,
	}
}

func NewCustomerResponses(custs []*customer.Customer) []CustomerResponse {
	out := make([]CustomerResponse, 0, len(custs))
	for _, c := range custs {
		out = append(out, NewCustomerResponse(c))
	}
	return out
}
