package customer

import (
	"context"
	"fmt"

	"loan-manager/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("customer %w", apperrors.ErrNotFound)

	ErrHasActiveLoans = fmt.Errorf("%w: customer has active loans", apperrors.ErrConflict)
)

type CustomerRepository interface {
	Create(ctx context.Context, customer *Customer) error

	FindByID(ctx context.Context, customerID string) (*Customer, error)

	FindAll(ctx context.Context, userID string) ([]*Customer, error)

	Update(ctx context.Context, customer *Customer) error

	Delete(ctx context.Context, customerID string) error
}

// ActiveLoanChecker is satisfied by the loan store.
type ActiveLoanChecker interface {
	HasActiveLoans(ctx context.Context, userID, customerID string) (bool, error)
}
