package user

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"loan-manager/internal/pkg/apperrors"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

type Service interface {
	Signup(ctx context.Context, email, password, name string) (*User, error)
	Authenticate(ctx context.Context, email, password string) (*User, error)
	GetUser(ctx context.Context, userID string) (*User, error)
}

type service struct {
	repo   Repository
	cost   int
	logger *slog.Logger
}

// NewService builds the account service. A cost of zero uses bcrypt.DefaultCost.
func NewService(repo Repository, cost int, logger *slog.Logger) Service {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &service{repo: repo, cost: cost, logger: logger.With("component", "userService")}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func (s *service) Signup(ctx context.Context, email, password, name string) (*User, error) {
	email = normalizeEmail(email)
	if _, err := mail.ParseAddress(email); err != nil {
		return nil, apperrors.NewValidationError("email", "must be a valid address")
	}
	if len(password) < minPasswordLength {
		return nil, apperrors.NewValidationError("password", fmt.Sprintf("must be at least %d characters", minPasswordLength))
	}

	if _, err := s.repo.GetByEmail(ctx, email); err == nil {
		s.logger.WarnContext(ctx, "Signup with registered email")
		return nil, ErrEmailTaken
	} else if !errors.Is(err, apperrors.ErrNotFound) {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("%w: hashing password: %v", apperrors.ErrInternalServer, err)
	}

	u := &User{
		ID:           uuid.NewString(),
		Email:        email,
		Name:         strings.TrimSpace(name),
		PasswordHash: string(hash),
		CreatedAt:    time.Now().UTC(),
	}
	if err := s.repo.Create(ctx, u); err != nil {
		if errors.Is(err, apperrors.ErrAlreadyExists) {
			return nil, ErrEmailTaken
		}
		s.logger.ErrorContext(ctx, "Failed to save user", "error", err)
		return nil, fmt.Errorf("failed to save user: %w", err)
	}

	s.logger.InfoContext(ctx, "User signed up", "userID", u.ID)
	return u, nil
}

func (s *service) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.repo.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrInvalidCredentials
		}
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		s.logger.WarnContext(ctx, "Password mismatch", "userID", u.ID)
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

func (s *service) GetUser(ctx context.Context, userID string) (*User, error) {
	u, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, apperrors.ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get user %s: %w", userID, err)
	}
	return u, nil
}
