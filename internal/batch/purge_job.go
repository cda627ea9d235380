package batch

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

type LoanPurger interface {
	PurgeExpiredLoans(ctx context.Context) (int, error)
}

// PurgeJob permanently removes soft-deleted loans whose retention window has lapsed.
type PurgeJob struct {
	loans  LoanPurger
	logger *slog.Logger
}

func NewPurgeJob(loans LoanPurger, logger *slog.Logger) *PurgeJob {
	if loans == nil || logger == nil {
		panic("PurgeJob dependencies cannot be nil")
	}
	return &PurgeJob{loans: loans, logger: logger.With("job", "PurgeExpiredLoans")}
}

func (j *PurgeJob) Name() string { return "PurgeExpiredLoans" }

func (j *PurgeJob) Run(ctx context.Context) error {
	startTime := time.Now()
	j.logger.InfoContext(ctx, "Starting purge of expired soft-deleted loans.")

	count, err := j.loans.PurgeExpiredLoans(ctx)
	if err != nil {
		j.logger.ErrorContext(ctx, "Purge job failed.", slog.Any("error", err))
		return fmt.Errorf("purge expired loans: %w", err)
	}

	j.logger.InfoContext(ctx, "Purge job finished.",
		slog.Int("loans_purged", count),
		slog.Duration("duration", time.Since(startTime)),
	)
	return nil
}
