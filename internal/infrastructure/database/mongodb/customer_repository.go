package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/domain/customer"
	"loan-manager/internal/domain/user"
	"loan-manager/internal/pkg/apperrors"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type CustomerRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ customer.CustomerRepository = (*CustomerRepository)(nil)

func NewCustomerRepository(db *mongo.Database, logger *slog.Logger) *CustomerRepository {
	return &CustomerRepository{coll: db.Collection(customersCollection), logger: logger.With("component", "MongoCustomerRepository")}
}

func (r *CustomerRepository) Create(ctx context.Context, c *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("CreateCustomer", start, err) }()

	if _, err = r.coll.InsertOne(ctx, c); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return fmt.Errorf("%w: customer %s", apperrors.ErrAlreadyExists, c.ID)
		}
		return apperrors.WrapDatabaseError(err, "failed to insert customer")
	}
	return nil
}

func (r *CustomerRepository) FindByID(ctx context.Context, customerID string) (_ *customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindCustomerByID", start, err) }()

	var c customer.Customer
	if err = r.coll.FindOne(ctx, bson.M{"_id": customerID}).Decode(&c); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, customer.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return &c, nil
}

func (r *CustomerRepository) FindAll(ctx context.Context, userID string) (_ []*customer.Customer, err error) {
	start := time.Now()
	defer func() { observe("FindAllCustomers", start, err) }()

	cursor, err := r.coll.Find(ctx, bson.M{"userId": userID}, options.Find().SetSort(bson.D{{Key: "createdAt", Value: 1}}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	customers := make([]*customer.Customer, 0)
	if err = cursor.All(ctx, &customers); err != nil {
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return customers, nil
}

func (r *CustomerRepository) Update(ctx context.Context, c *customer.Customer) (err error) {
	start := time.Now()
	defer func() { observe("UpdateCustomer", start, err) }()

	res, err := r.coll.ReplaceOne(ctx, bson.M{"_id": c.ID}, c)
	if err != nil {
		return apperrors.WrapDatabaseError(err, "failed to update customer")
	}
	if res.MatchedCount == 0 {
		return customer.ErrNotFound
	}
	return nil
}

func (r *CustomerRepository) Delete(ctx context.Context, customerID string) (err error) {
	start := time.Now()
	defer func() { observe("DeleteCustomer", start, err) }()

	res, err := r.coll.DeleteOne(ctx, bson.M{"_id": customerID})
	if err != nil {
		return apperrors.WrapDatabaseError(err, "failed to delete customer")
	}
	if res.DeletedCount == 0 {
		return customer.ErrNotFound
	}
	return nil
}

type UserRepository struct {
	coll   *mongo.Collection
	logger *slog.Logger
}

var _ user.Repository = (*UserRepository)(nil)

func NewUserRepository(db *mongo.Database, logger *slog.Logger) *UserRepository {
	return &UserRepository{coll: db.Collection(usersCollection), logger: logger.With("component", "MongoUserRepository")}
}

func (r *UserRepository) Create(ctx context.Context, u *user.User) (err error) {
	start := time.Now()
	defer func() { observe("CreateUser", start, err) }()

	if _, err = r.coll.InsertOne(ctx, u); err != nil {
		if mongo.IsDuplicateKeyError(err) {
			return user.ErrEmailTaken
		}
		return apperrors.WrapDatabaseError(err, "failed to insert user")
	}
	return nil
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (*user.User, error) {
	return r.findOne(ctx, "GetUserByEmail", bson.M{"email": email})
}

func (r *UserRepository) GetByID(ctx context.Context, userID string) (*user.User, error) {
	return r.findOne(ctx, "GetUserByID", bson.M{"_id": userID})
}

func (r *UserRepository) findOne(ctx context.Context, name string, filter bson.M) (_ *user.User, err error) {
	start := time.Now()
	defer func() { observe(name, start, err) }()

	var u user.User
	if err = r.coll.FindOne(ctx, filter).Decode(&u); err != nil {
		if errors.Is(err, mongo.ErrNoDocuments) {
			return nil, user.ErrNotFound
		}
		return nil, fmt.Errorf("%w: %w", apperrors.ErrDatabase, err)
	}
	return &u, nil
}
