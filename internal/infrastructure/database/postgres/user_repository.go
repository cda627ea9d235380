package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/domain/user"
	"loan-manager/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const (
	insertUserQuery = `INSERT INTO users (id, email, doc, created_at) VALUES ($1, $2, $3, $4)`

	getUserByEmailQuery = `SELECT doc FROM users WHERE email = $1`

	getUserByIDQuery = `SELECT doc FROM users WHERE id = $1`
)

type UserRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db DBPool, logger *slog.Logger) *UserRepository {
	return &UserRepository{db: db, logger: logger.With("component", "UserRepository")}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) (err error) {
	start := time.Now()
	defer func() { observe("CreateUser", start, err) }()

	doc, err := json.Marshal(u)
	if err != nil {
		return fmt.Errorf("%w: encoding user: %v", apperrors.ErrInternalServer, err)
	}
	if _, err = r.db.Exec(ctx, insertUserQuery, u.ID, u.Email, doc, u.CreatedAt); err != nil {
		if isUniqueViolation(err) {
			return user.ErrEmailTaken
		}
		r.logger.ErrorContext(ctx, "Failed to insert user", "error", err)
		return apperrors.WrapDatabaseError(err, "failed to insert user")
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.getOne(ctx, "GetUserByEmail", getUserByEmailQuery, email)
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*user.User, error) {
	return r.getOne(ctx, "GetUserByID", getUserByIDQuery, userID)
}

func (r *UserRepository) getOne(ctx context.Context, name, query string, arg string) (_ *user.User, err error) {
	start := time.Now()
	defer func() { observe(name, start, err) }()

	var doc []byte
	if err = r.db.QueryRow(ctx, query, arg).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	var u user.User
	if err := json.Unmarshal(doc, &u); err != nil {
		return nil, fmt.Errorf("%w: decoding user document: %v", apperrors.ErrDatabase, err)
	}
	return &u, nil
}
