package batch

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type Job interface {
	Name() string
	Run(ctx context.Context) error
}

// Schedule registers job on c, giving every run its own timeout.
func Schedule(c *cron.Cron, spec string, timeout time.Duration, job Job, logger *slog.Logger) (cron.EntryID, error) {
	if timeout <= 0 {
		timeout = time.Hour
	}
	jobLogger := logger.With("job_name", job.Name())

	return c.AddJob(spec, cron.FuncJob(func() {
		jobLogger.Info("Cron triggered job.")

		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()

		if err := job.Run(ctx); err != nil {
			jobLogger.Error("Job finished with error", slog.Any("error", err))
			return
		}
		jobLogger.Info("Job finished successfully.")
	}))
}
