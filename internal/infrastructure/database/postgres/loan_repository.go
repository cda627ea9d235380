package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"loan-manager/internal/domain/loan"
	"loan-manager/internal/pkg/apperrors"

	"github.com/jackc/pgx/v5"
)

const (
	insertLoanQuery = `
        INSERT INTO loans (id, user_id, customer_id, status, deleted_at, version, doc, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	getLoanQuery = `SELECT doc FROM loans WHERE id = $1`

	listLoansQuery = `SELECT doc FROM loans`

	updateLoanQuery = `
        UPDATE loans
        SET customer_id = $2, status = $3, deleted_at = $4, version = $5, doc = $6, updated_at = $7
        WHERE id = $1 AND version = $8`

	loanExistsQuery = `SELECT EXISTS (SELECT 1 FROM loans WHERE id = $1)`

	deleteLoanQuery = `DELETE FROM loans WHERE id = $1`

	purgeLoansQuery = `
        DELETE FROM loans
        WHERE status = 'deleted' AND deleted_at < $1
        RETURNING id`

	hasActiveLoansQuery = `
        SELECT EXISTS (
            SELECT 1 FROM loans WHERE user_id = $1 AND customer_id = $2 AND status = 'active'
        )`
)

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) (err error) {
	start := time.Now()
	defer func() { observe("CreateLoan", start, err) }()

	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("%w: encoding loan: %v", apperrors.ErrInternalServer, err)
	}

	_, err = r.db.Exec(ctx, insertLoanQuery,
		l.ID, l.UserID, l.CustomerID, string(l.Status), l.DeletedAt, l.Version, doc, l.CreatedAt, l.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: loan %s", apperrors.ErrAlreadyExists, l.ID)
		}
		r.logger.ErrorContext(ctx, "Failed to insert loan", "loan_id", l.ID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to insert loan")
	}
	r.logger.DebugContext(ctx, "Loan created in DB", "loan_id", l.ID)
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, loanID string) (_ *loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("GetLoanByID", start, err) }()

	var doc []byte
	err = r.db.QueryRow(ctx, getLoanQuery, loanID).Scan(&doc)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, fmt.Errorf("%w: %s", loan.ErrLoanNotFound, loanID)
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return decodeLoan(doc)
}

func (r *LoanRepository) List(ctx context.Context, filter loan.Filter) (_ []*loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("ListLoans", start, err) }()

	query, args := buildListQuery(filter)
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	loans := make([]*loan.Loan, 0)
	for rows.Next() {
		var doc []byte
		if err := rows.Scan(&doc); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		l, err := decodeLoan(doc)
		if err != nil {
			return nil, err
		}
		loans = append(loans, l)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return loans, nil
}

func buildListQuery(filter loan.Filter) (string, []any) {
	var (
		conds []string
		args  []any
	)
	if filter.UserID != "" {
		args = append(args, filter.UserID)
		conds = append(conds, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if filter.CustomerID != "" {
		args = append(args, filter.CustomerID)
		conds = append(conds, fmt.Sprintf("customer_id = $%d", len(args)))
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		args = append(args, statuses)
		conds = append(conds, fmt.Sprintf("status = ANY($%d)", len(args)))
	}

	query := listLoansQuery
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	return query + " ORDER BY created_at DESC", args
}

// Update writes l when the stored version equals l.Version and bumps l.Version on success.
func (r *LoanRepository) Update(ctx context.Context, l *loan.Loan) (err error) {
	start := time.Now()
	defer func() { observe("UpdateLoan", start, err) }()

	expected := l.Version
	l.Version = expected + 1
	defer func() {
		if err != nil {
			l.Version = expected
		}
	}()

	doc, err := json.Marshal(l)
	if err != nil {
		return fmt.Errorf("%w: encoding loan: %v", apperrors.ErrInternalServer, err)
	}

	tag, err := r.db.Exec(ctx, updateLoanQuery,
		l.ID, l.CustomerID, string(l.Status), l.DeletedAt, l.Version, doc, l.UpdatedAt, expected)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", l.ID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to update loan")
	}
	if tag.RowsAffected() == 1 {
		return nil
	}

	var exists bool
	if err := r.db.QueryRow(ctx, loanExistsQuery, l.ID).Scan(&exists); err != nil {
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if !exists {
		return fmt.Errorf("%w: %s", loan.ErrLoanNotFound, l.ID)
	}
	r.logger.WarnContext(ctx, "Loan version conflict", "loan_id", l.ID, "version", expected)
	return fmt.Errorf("%w: loan %s version %d is stale", apperrors.ErrConflict, l.ID, expected)
}

func (r *LoanRepository) Delete(ctx context.Context, loanID string) (err error) {
	start := time.Now()
	defer func() { observe("DeleteLoan", start, err) }()

	tag, err := r.db.Exec(ctx, deleteLoanQuery, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to delete loan", "loan_id", loanID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to delete loan")
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%w: %s", loan.ErrLoanNotFound, loanID)
	}
	return nil
}

func (r *LoanRepository) DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) (_ []string, err error) {
	start := time.Now()
	defer func() { observe("PurgeLoans", start, err) }()

	rows, err := r.db.Query(ctx, purgeLoansQuery, cutoff)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to purge loans", "cutoff", cutoff, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	ids := make([]string, 0)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return ids, nil
}

func (r *LoanRepository) HasActiveLoans(ctx context.Context, userID, customerID string) (_ bool, err error) {
	start := time.Now()
	defer func() { observe("HasActiveLoans", start, err) }()

	var exists bool
	if err = r.db.QueryRow(ctx, hasActiveLoansQuery, userID, customerID).Scan(&exists); err != nil {
		return false, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return exists, nil
}

func decodeLoan(doc []byte) (*loan.Loan, error) {
	var l loan.Loan
	if err := json.Unmarshal(doc, &l); err != nil {
		return nil, fmt.Errorf("%w: decoding loan document: %v", apperrors.ErrDatabase, err)
	}
	return &l, nil
}
