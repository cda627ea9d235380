package batch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"loan-manager/internal/domain/loan"
	"loan-manager/internal/event"
	"loan-manager/internal/infrastructure/monitoring"
)

const reminderWorkers = 8

type DuePaymentFinder interface {
	PaymentsDueBetween(ctx context.Context, from, to time.Time) ([]loan.UpcomingPayment, error)
}

// ReminderJob publishes one payment.reminder event per pending installment due
// between today and today+leadDays.
type ReminderJob struct {
	loans    DuePaymentFinder
	pub      event.EventPublisher
	clock    loan.Clock
	leadDays int
	logger   *slog.Logger
}

func NewReminderJob(loans DuePaymentFinder, pub event.EventPublisher, clock loan.Clock, leadDays int, logger *slog.Logger) *ReminderJob {
	if loans == nil || pub == nil || logger == nil {
		panic("ReminderJob dependencies cannot be nil")
	}
	if clock == nil {
		clock = loan.SystemClock
	}
	if leadDays < 0 {
		leadDays = 0
	}
	return &ReminderJob{
		loans:    loans,
		pub:      pub,
		clock:    clock,
		leadDays: leadDays,
		logger:   logger.With("job", "PaymentReminder"),
	}
}

func (j *ReminderJob) Name() string { return "PaymentReminder" }

func (j *ReminderJob) Run(ctx context.Context) error {
	startTime := time.Now()
	now := j.clock.Now()
	from := loan.DateOnly(now)
	to := from.AddDate(0, 0, j.leadDays)

	j.logger.InfoContext(ctx, "Starting payment reminder job.", slog.Time("from", from), slog.Time("to", to))

	due, err := j.loans.PaymentsDueBetween(ctx, from, to)
	if err != nil {
		j.logger.ErrorContext(ctx, "Failed to collect due payments, aborting job.", slog.Any("error", err))
		return fmt.Errorf("cannot run job, failed to collect due payments: %w", err)
	}
	if len(due) == 0 {
		j.logger.InfoContext(ctx, "No payments due in the reminder window.")
		return nil
	}

	var sent, skipped, failed int32
	var wg sync.WaitGroup
	work := make(chan loan.UpcomingPayment)

	for i := 0; i < reminderWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for p := range work {
				logCtx := j.logger.With(slog.String("loanID", p.LoanID), slog.String("paymentID", p.PaymentID))
				if p.CustomerEmail == "" {
					logCtx.DebugContext(ctx, "Customer has no e-mail, skipping reminder.")
					atomic.AddInt32(&skipped, 1)
					monitoring.RecordReminder("skipped")
					continue
				}

				evt := event.PaymentReminderEvent{
					Timestamp:     now,
					LoanID:        p.LoanID,
					PaymentID:     p.PaymentID,
					CustomerName:  p.CustomerName,
					CustomerEmail: p.CustomerEmail,
					DueDate:       p.DueDate,
					Amount:        p.Amount,
					Frequency:     string(p.InterestFrequency),
				}
				if err := j.pub.PublishPaymentReminder(ctx, evt); err != nil {
					logCtx.ErrorContext(ctx, "Failed to publish payment reminder", slog.Any("error", err))
					atomic.AddInt32(&failed, 1)
					monitoring.RecordReminder("failed")
					continue
				}
				atomic.AddInt32(&sent, 1)
				monitoring.RecordReminder("sent")
			}
		}()
	}

	for _, p := range due {
		work <- p
	}
	close(work)
	wg.Wait()

	summaryLog := j.logger.With(
		slog.Duration("duration", time.Since(startTime)),
		slog.Int("payments_due", len(due)),
		slog.Int("reminders_sent", int(sent)),
		slog.Int("reminders_skipped", int(skipped)),
		slog.Int("errors_encountered", int(failed)),
	)
	if failed > 0 {
		summaryLog.WarnContext(ctx, "Payment reminder job finished with errors.")
		return fmt.Errorf("job completed with %d errors", failed)
	}
	summaryLog.InfoContext(ctx, "Payment reminder job finished successfully.")
	return nil
}
