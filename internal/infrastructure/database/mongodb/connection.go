package mongodb

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/config"
	"loan-manager/internal/infrastructure/monitoring"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"go.mongodb.org/mongo-driver/mongo/readpref"
)

const (
	loansCollection     = "loans"
	customersCollection = "customers"
	usersCollection     = "users"
)

func NewClient(ctx context.Context, cfg config.DatabaseConfig, logger *slog.Logger) (*mongo.Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("database URL is empty in configuration")
	}
	if cfg.Name == "" {
		return nil, fmt.Errorf("database name is empty in configuration")
	}

	opts := options.Client().
		ApplyURI(cfg.URL).
		SetMaxPoolSize(10).
		SetMaxConnIdleTime(5 * time.Minute)

	logger.Info("Connecting to MongoDB...")
	client, err := mongo.Connect(ctx, opts)
	if err != nil {
		return nil, fmt.Errorf("unable to create mongo client: %w", err)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx, readpref.Primary()); err != nil {
		_ = client.Disconnect(context.Background())
		logger.Error("Failed to ping MongoDB", "error", err)
		return nil, fmt.Errorf("failed to ping mongo on connect: %w", err)
	}

	logger.Info("Successfully connected to MongoDB.", "db", cfg.Name)
	return client, nil
}

// EnsureIndexes creates the indexes the repositories filter on.
func EnsureIndexes(ctx context.Context, db *mongo.Database, logger *slog.Logger) error {
	indexes := map[string][]mongo.IndexModel{
		loansCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}, {Key: "status", Value: 1}}},
			{Keys: bson.D{{Key: "customerId", Value: 1}}},
			{Keys: bson.D{{Key: "deletedAt", Value: 1}}},
		},
		customersCollection: {
			{Keys: bson.D{{Key: "userId", Value: 1}}},
		},
		usersCollection: {
			{Keys: bson.D{{Key: "email", Value: 1}}, Options: options.Index().SetUnique(true)},
		},
	}
	for coll, models := range indexes {
		if _, err := db.Collection(coll).Indexes().CreateMany(ctx, models); err != nil {
			logger.ErrorContext(ctx, "Failed to create indexes", "collection", coll, "error", err)
			return fmt.Errorf("failed to create indexes on %s: %w", coll, err)
		}
	}
	logger.InfoContext(ctx, "MongoDB indexes are up to date")
	return nil
}

func observe(queryName string, start time.Time, err error) {
	status := "success"
	if err != nil && !errors.Is(err, mongo.ErrNoDocuments) {
		status = "error"
	}
	monitoring.RecordDBQuery(queryName, status, time.Since(start))
}
