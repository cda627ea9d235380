package postgres

import (
	"regexp"
	"testing"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/user"
	"loan-manager/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var customerTest = &customer.Customer{
	ID:        "cust-1",
	UserID:    "user-1",
	Name:      "John Doe",
	Mobile:    "9999999999",
	Email:     "john@example.com",
	CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	UpdatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
}

func TestCustomerRepository_Create(t *testing.T) {
	ctx, mockPool := newMockPool(t)
	repo := NewCustomerRepository(mockPool, discardLogger)

	mockPool.ExpectExec(regexp.QuoteMeta(insertCustomerQuery)).
		WithArgs(customerTest.ID, customerTest.UserID, pgxmock.AnyArg(), customerTest.CreatedAt, customerTest.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(ctx, customerTest))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestCustomerRepository_FindByID(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		ctx, mockPool := newMockPool(t)
		repo := NewCustomerRepository(mockPool, discardLogger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getCustomerQuery)).WithArgs("cust-1").
			WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(mustJSON(t, customerTest)))

		got, err := repo.FindByID(ctx, "cust-1")

		require.NoError(t, err)
		assert.Equal(t, customerTest.Name, got.Name)
		assert.Equal(t, customerTest.UserID, got.UserID)
	})

	t.Run("Not found", func(t *testing.T) {
		ctx, mockPool := newMockPool(t)
		repo := NewCustomerRepository(mockPool, discardLogger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getCustomerQuery)).WithArgs("cust-1").WillReturnError(pgx.ErrNoRows)

		_, err := repo.FindByID(ctx, "cust-1")
		assert.ErrorIs(t, err, customer.ErrNotFound)
	})
}

func TestCustomerRepository_FindAll(t *testing.T) {
	ctx, mockPool := newMockPool(t)
	repo := NewCustomerRepository(mockPool, discardLogger)

	mockPool.ExpectQuery(regexp.QuoteMeta(listCustomersQuery)).WithArgs("user-1").
		WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(mustJSON(t, customerTest)))

	customers, err := repo.FindAll(ctx, "user-1")

	require.NoError(t, err)
	require.Len(t, customers, 1)
	assert.Equal(t, "cust-1", customers[0].ID)
}

func TestCustomerRepository_UpdateAndDelete(t *testing.T) {
	ctx, mockPool := newMockPool(t)
	repo := NewCustomerRepository(mockPool, discardLogger)

	mockPool.ExpectExec(regexp.QuoteMeta(updateCustomerQuery)).
		WithArgs("cust-1", pgxmock.AnyArg(), customerTest.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))
	mockPool.ExpectExec(regexp.QuoteMeta(deleteCustomerQuery)).WithArgs("cust-1").
		WillReturnResult(pgxmock.NewResult("DELETE", 1))

	assert.ErrorIs(t, repo.Update(ctx, customerTest), customer.ErrNotFound)
	assert.NoError(t, repo.Delete(ctx, "cust-1"))
	assert.NoError(t, mockPool.ExpectationsWereMet(), pgxmockExpectationsNotMetMsg)
}

func TestUserRepository(t *testing.T) {
	u := &user.User{ID: "user-1", Email: "a@example.com", PasswordHash: "hash", CreatedAt: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}

	t.Run("Create duplicate email", func(t *testing.T) {
		ctx, mockPool := newMockPool(t)
		repo := NewUserRepository(mockPool, discardLogger)

		mockPool.ExpectExec(regexp.QuoteMeta(insertUserQuery)).
			WithArgs(u.ID, u.Email, pgxmock.AnyArg(), u.CreatedAt).
			WillReturnError(&pgconn.PgError{Code: "23505"})

		assert.ErrorIs(t, repo.Create(ctx, u), user.ErrEmailTaken)
	})

	t.Run("GetByEmail", func(t *testing.T) {
		ctx, mockPool := newMockPool(t)
		repo := NewUserRepository(mockPool, discardLogger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getUserByEmailQuery)).WithArgs(u.Email).
			WillReturnRows(pgxmock.NewRows([]string{"doc"}).AddRow(mustJSON(t, u)))

		got, err := repo.GetByEmail(ctx, u.Email)
		require.NoError(t, err)
		assert.Equal(t, "hash", got.PasswordHash)
	})

	t.Run("GetByID not found", func(t *testing.T) {
		ctx, mockPool := newMockPool(t)
		repo := NewUserRepository(mockPool, discardLogger)

		mockPool.ExpectQuery(regexp.QuoteMeta(getUserByIDQuery)).WithArgs("nope").WillReturnError(pgx.ErrNoRows)

		_, err := repo.GetByID(ctx, "nope")
		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
