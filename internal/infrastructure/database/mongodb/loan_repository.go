package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/domain/loan"
	"loan-manager/internal/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type LoanRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(db *mongo.Database, logger *slog.Logger) *LoanRepository {
	return newLoanRepository(db.Collection(loansCollection), logger)
}

func newLoanRepository(coll *mongo.Collection, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{coll: coll, logger: logger.With("component", "MongoLoanRepository")}
}

func (r *LoanRepository) Create(ctx context.Context, l *loan.Loan) (err error) {
	start := time.Now()
	defer func() { observe("CreateLoan", start, err) }()

	if _, err = r.coll.InsertOne(ctx, l); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: loan %s", apperrors.ErrAlreadyExists, l.ID)
		}
		r.logger.ErrorContext(ctx, "Failed to insert loan", "loan_id", l.ID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to insert loan")
	}
	return nil
}

func (r *LoanRepository) GetByID(ctx context.Context, loanID string) (_ *loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("GetLoanByID", start, err) }()

	var l loan.Loan
	if err = r.coll.FindOne(ctx, bson.M{"_id": loanID}).Decode(&l); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, fmt.Errorf("%w: %s", loan.ErrLoanNotFound, loanID)
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return &l, nil
}

func listFilter(filter loan.Filter) bson.M {
	q := bson.M{}
	if filter.UserID != "" {
		q["userId"] = filter.UserID
	}
	if filter.CustomerID != "" {
		q["customerId"] = filter.CustomerID
	}
	if len(filter.Statuses) > 0 {
		statuses := make([]string, len(filter.Statuses))
		for i, s := range filter.Statuses {
			statuses[i] = string(s)
		}
		q["status"] = bson.M{"$in": statuses}
	}
	return q
}

func (r *LoanRepository) List(ctx context.Context, filter loan.Filter) (_ []*loan.Loan, err error) {
	start := time.Now()
	defer func() { observe("ListLoans", start, err) }()

	opts := options.Find().SetSort(bson.D{{Key: "createdAt", Value: -1}})
	cursor, err := r.coll.Find(ctx, listFilter(filter), opts)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query loans", "error", err)
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}

	loans := make([]*loan.Loan, 0)
	if err = cursor.All(ctx, &loans); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return loans, nil
}

// Update replaces the document only when its stored version equals l.Version, then bumps l.Version.
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

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": l.ID, "version": expected}, l)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan", "loan_id", l.ID, "error", err)
		return apperrors.WrapDatabaseError(err, "failed to update loan")
	}
	if res.MatchedCount == 1 {
		return nil
	}

	exists, err := r.exists(ctx, bson.M{"_id": l.ID})
	if err != nil {
		return err
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

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": loanID})
	if err != nil {
		return apperrors.WrapDatabaseError(err, "failed to delete loan")
	}
	if res.DeletedCount == 0 {
		return fmt.Errorf("%w: %s", loan.ErrLoanNotFound, loanID)
	}
	return nil
}

func (r *LoanRepository) DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) (_ []string, err error) {
	start := time.Now()
	defer func() { observe("PurgeLoans", start, err) }()

	filter := bson.M{"status": string(loan.StatusDeleted), "deletedAt": bson.M{"$lt": cutoff}}
	cursor, err := r.coll.Find(ctx, filter, options.Find().SetProjection(bson.M{"_id": 1}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	var docs []struct {
		ID string `bson:"_id"`
	}
	if err = cursor.All(ctx, &docs); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}

	ids := make([]string, 0, len(docs))
	for _, d := range docs {
		ids = append(ids, d.ID)
	}
	if len(ids) == 0 {
		return ids, nil
	}

	if _, err = r.coll.DeleteMany(ctx, bson.M{"_id": bson.M{"$in": ids}}); err != nil {
		r.logger.ErrorContext(ctx, "Failed to purge loans", "count", len(ids), "error", err)
		return nil, apperrors.WrapDatabaseError(err, "failed to purge loans")
	}
	return ids, nil
}

func (r *LoanRepository) HasActiveLoans(ctx context.Context, userID, customerID string) (_ bool, err error) {
	start := time.Now()
	defer func() { observe("HasActiveLoans", start, err) }()

	return r.exists(ctx, bson.M{"userId": userID, "customerId": customerID, "status": string(loan.StatusActive)})
}

func (r *LoanRepository) exists(ctx context.Context, filter bson.M) (bool, error) {
	err := r.coll.FindOne(ctx, filter, options.FindOne().SetProjection(bson.M{"_id": 1})).Err()
	if errors.Is(err, mongo.ErrNoDocuments) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return true, nil
}
