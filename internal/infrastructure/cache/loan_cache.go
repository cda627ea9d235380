package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"loan-manager/internal/domain/loan"
	"loan-manager/internal/infrastructure/monitoring"

	"github.com/redis/go-redis/v9"
)

// Store is the subset of *redis.Client the cache needs.
type Store interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

var _ Store = (*redis.Client)(nil)

// LoanRepository serves GetByID read-through from Redis and drops the entry on every write.
// Cache failures are logged and fall through to the wrapped repository.
type LoanRepository struct {
	next   loan.Repository
	store  Store
	ttl    time.Duration
	logger *slog.Logger
}

var _ loan.Repository = (*LoanRepository)(nil)

func NewLoanRepository(next loan.Repository, store Store, ttl time.Duration, logger *slog.Logger) *LoanRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &LoanRepository{next: next, store: store, ttl: ttl, logger: logger.With("component", "LoanCache")}
}

func loanKey(id string) string {
	return fmt.Sprintf("loan:%s", id)
}

func (c *LoanRepository) GetByID(ctx context.Context, loanID string) (*loan.Loan, error) {
	key := loanKey(loanID)

	raw, err := c.store.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var l loan.Loan
		if jsonErr := json.Unmarshal(raw, &l); jsonErr == nil {
			monitoring.RecordCacheLookup(true)
			return &l, nil
		}
		c.logger.WarnContext(ctx, "Discarding undecodable cache entry", "key", key)
	case !errors.Is(err, redis.Nil):
		c.logger.WarnContext(ctx, "Cache read failed", "key", key, "error", err)
	}
	monitoring.RecordCacheLookup(false)

	l, err := c.next.GetByID(ctx, loanID)
	if err != nil {
		return nil, err
	}
	c.put(ctx, l)
	return l, nil
}

func (c *LoanRepository) put(ctx context.Context, l *loan.Loan) {
	raw, err := json.Marshal(l)
	if err != nil {
		return
	}
	if err := c.store.Set(ctx, loanKey(l.ID), raw, c.ttl).Err(); err != nil {
		c.logger.WarnContext(ctx, "Cache write failed", "loan_id", l.ID, "error", err)
	}
}

func (c *LoanRepository) evict(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = loanKey(id)
	}
	if err := c.store.Del(ctx, keys...).Err(); err != nil {
		c.logger.WarnContext(ctx, "Cache eviction failed", "keys", keys, "error", err)
	}
}

func (c *LoanRepository) Create(ctx context.Context, l *loan.Loan) error {
	return c.next.Create(ctx, l)
}

func (c *LoanRepository) List(ctx context.Context, filter loan.Filter) ([]*loan.Loan, error) {
	return c.next.List(ctx, filter)
}

func (c *LoanRepository) Update(ctx context.Context, l *loan.Loan) error {
	defer c.evict(ctx, l.ID)
	return c.next.Update(ctx, l)
}

func (c *LoanRepository) Delete(ctx context.Context, loanID string) error {
	defer c.evict(ctx, loanID)
	return c.next.Delete(ctx, loanID)
}

func (c *LoanRepository) DeleteSoftDeletedBefore(ctx context.Context, cutoff time.Time) ([]string, error) {
	ids, err := c.next.DeleteSoftDeletedBefore(ctx, cutoff)
	c.evict(ctx, ids...)
	return ids, err
}

func (c *LoanRepository) HasActiveLoans(ctx context.Context, userID, customerID string) (bool, error) {
	return c.next.HasActiveLoans(ctx, userID, customerID)
}
