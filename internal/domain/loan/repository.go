package loan

import (
	"context"
	"time"
)

// Filter narrows a listing. Empty fields match everything.
type Filter struct {
	UserID     string
	CustomerID string
	Statuses   []LoanStatus
}

type Repository interface {
	Create(ctx context.Context, loan *Loan) error

	GetByID(ctx context.Context, loanID string) (*Loan, error)

	List(ctx context.Context, filter Filter) ([]*Loan, error)

	// Update persists loan only if the stored version still equals loan.Version,
	// then increments loan.Version. A stale version yields apperrors.ErrConflict.
	Update(ctx context.Context, loan *Loan) error

	Delete(ctx context.Context, loanID string) error

	DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error)

	HasActiveLoans(ctx context.Context, userID, customerID string) (bool, error)
}
