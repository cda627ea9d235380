package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const (
	insertCustomerQuery = `
        INSERT INTO customers (id, user_id, doc, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5)`

	getCustomerQuery = `SELECT doc FROM customers WHERE id = $1`

	listCustomersQuery = `SELECT doc FROM customers WHERE user_id = $1 ORDER BY created_at ASC`

	updateCustomerQuery = `UPDATE customers SET doc = $2, updated_at = $3 WHERE id = $1`

	deleteCustomerQuery = `DELETE FROM customers WHERE id = $1`
)

type CustomerRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db DBPool, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{db: db, logger: logger.With("component", "CustomerRepository")}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("CreateCustomer", start, err) }()

	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: encoding customer: %v", apperrors.ErrInternalServer, err)
	}
	if _, err = r.db.Exec(ctx, insertCustomerQuery, c.ID, c.UserID, doc, c.CreatedAt, c.UpdatedAt); err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: customer %s", apperrors.ErrAlreadyExists, c.ID)
		}
		r.logger.ErrorContext(ctx, "Failed to insert customer", "customer_id", c.ID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to insert customer")
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (_ *customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindCustomerByID", start, err) }()

	var doc []byte
	if err = r.db.QueryRow(ctx, getCustomerQuery, customerID).Scan(&doc); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, customer.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get customer", "customer_id", customerID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return decodeCustomer(doc)
}

func (r *CustomerRepository) FindAll(ctx context.Context, userID string) (_ []*customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindAllCustomers", start, err) }()

	rows, err := r.db.Query(ctx, listCustomersQuery, userID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query customers", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	customers := make([]*customer.Customer, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		c, err := decodeCustomer(doc)
		if err != nil {
			return nil, err
		}
		customers = append(customers, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return customers, nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("UpdateCustomer", start, err) }()

	doc, err := json.Marshal(c)
	if err != nil {
		return fmt.Errorf("%w: encoding customer: %v", apperrors.ErrInternalServer, err)
	}
	tag, err := r.db.Exec(ctx, updateCustomerQuery, c.ID, doc, c.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update customer", "customer_id", c.ID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to update customer")
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, customerID string) (err error) {
	start := time.Now()
	defer func() { observe("DeleteCustomer", start, err) }()

	tag, err := r.db.Exec(ctx, deleteCustomerQuery, customerID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete customer", "customer_id", customerID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to delete customer")
	}
	if tag.RowsAffected() == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func decodeCustomer(doc []byte) (*customer.Customer, error) {
	var c customer.Customer
	if err := json.Unmarshal(doc, &c); err != nil {
		return nil, fmt.Errorf("%w: decoding customer document: %v", apperrors.ErrDatabase, err)
	}
	return &c, nil
}
