package user

import (
	"context"
	"fmt"
	"time"

	"loan-manager/internal/pkg/apperrors"
)

var (
	ErrNotFound = fmt.Errorf("user %w", apperrors.ErrNotFound)

	ErrEmailTaken = fmt.Errorf("%w: email already registered", apperrors.ErrAlreadyExists)

	ErrInvalidCredentials = fmt.Errorf("%w: invalid email or password", apperrors.ErrUnauthorized)
)

// User is a lender account. Customers and loans are scoped to it.
type User struct {
	ID           string    `json:"id" bson:"_id"`
	Email        string    `json:"email" bson:"email"`
	Name         string    `json:"name" bson:"name"`
	PasswordHash string    `json:"passwordHash" bson:"passwordHash"`
	CreatedAt    time.Time `json:"createdAt" bson:"createdAt"`
}

type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByEmail(ctx context.Context, email string) (*User, error)
	GetByID(ctx context.Context, userID string) (*User, error)
}
