package batch_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"loan-manager/internal/batch"
	"loan-manager/internal/domain/loan"
	"loan-manager/internal/event"

	"github.com/robfig/cron/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var discardLogger = slog.New(slog.NewTextHandler(io.Discard, nil))

type MockPurger struct {
	mock.Mock
}

func (m *MockPurger) PurgeExpiredLoans(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type MockDueFinder struct {
	mock.Mock
}

func (m *MockDueFinder) PaymentsDueBetween(ctx context.Context, from, to time.Time) ([]loan.UpcomingPayment, error) {
	args := m.Called(ctx, from, to)
	if due, ok := args.Get(0).([]loan.UpcomingPayment); ok {
		return due, args.Error(1)
	}
	return nil, args.Error(1)
}

type recordingPublisher struct {
	mu        sync.Mutex
	reminders []event.PaymentReminderEvent
	failFor   string
}

func (p *recordingPublisher) PublishLoanEvent(context.Context, string, event.LoanEvent) error {
	return nil
}

func (p *recordingPublisher) PublishCustomerEvent(context.Context, string, event.CustomerEvent) error {
	return nil
}

func (p *recordingPublisher) PublishPaymentReminder(_ context.Context, evt event.PaymentReminderEvent) error {
	if evt.PaymentID == p.failFor {
		return errors.New("channel closed")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.reminders = append(p.reminders, evt)
	return nil
}

func TestPurgeJob(t *testing.T) {
	t.Run("success", func(t *testing.T) {
		purger := new(MockPurger)
		purger.On("PurgeExpiredLoans", mock.Anything).Return(3, nil).Once()

		require.NoError(t, batch.NewPurgeJob(purger, discardLogger).Run(context.Background()))
		purger.AssertExpectations(t)
	})

	t.Run("store failure", func(t *testing.T) {
		purger := new(MockPurger)
		purger.On("PurgeExpiredLoans", mock.Anything).Return(0, errors.New("db down")).Once()

		err := batch.NewPurgeJob(purger, discardLogger).Run(context.Background())
		assert.ErrorContains(t, err, "db down")
	})

	t.Run("nil dependencies panic", func(t *testing.T) {
		assert.Panics(t, func() { batch.NewPurgeJob(nil, discardLogger) })
	})
}

func TestReminderJob(t *testing.T) {
	now := time.Date(2024, 1, 30, 8, 0, 0, 0, time.UTC)
	clock := loan.ClockFunc(func() time.Time { return now })
	from := time.Date(2024, 1, 30, 0, 0, 0, 0, time.UTC)
	to := time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC)

	due := []loan.UpcomingPayment{
		{LoanID: "loan-1", PaymentID: "p-1", CustomerName: "Asha", CustomerEmail: "asha@example.com",
			DueDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Amount: 1000, InterestFrequency: loan.FrequencyMonthly},
		{LoanID: "loan-2", PaymentID: "p-2", CustomerName: "Ravi", CustomerEmail: "",
			DueDate: time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC), Amount: 500},
		{LoanID: "loan-3", PaymentID: "p-3", CustomerName: "Meera", CustomerEmail: "meera@example.com",
			DueDate: time.Date(2024, 2, 2, 0, 0, 0, 0, time.UTC), Amount: 750},
	}

	t.Run("publishes one reminder per payment with an e-mail", func(t *testing.T) {
		finder := new(MockDueFinder)
		finder.On("PaymentsDueBetween", mock.Anything, from, to).Return(due, nil).Once()
		pub := &recordingPublisher{}

		err := batch.NewReminderJob(finder, pub, clock, 3, discardLogger).Run(context.Background())
		require.NoError(t, err)

		require.Len(t, pub.reminders, 2)
		ids := []string{pub.reminders[0].PaymentID, pub.reminders[1].PaymentID}
		assert.ElementsMatch(t, []string{"p-1", "p-3"}, ids)
		for _, r := range pub.reminders {
			if r.PaymentID == "p-1" {
				assert.Equal(t, "asha@example.com", r.CustomerEmail)
				assert.Equal(t, "monthly", r.Frequency)
				assert.Equal(t, now, r.Timestamp)
			}
		}
		finder.AssertExpectations(t)
	})

	t.Run("publish failures are reported", func(t *testing.T) {
		finder := new(MockDueFinder)
		finder.On("PaymentsDueBetween", mock.Anything, from, to).Return(due, nil).Once()
		pub := &recordingPublisher{failFor: "p-3"}

		err := batch.NewReminderJob(finder, pub, clock, 3, discardLogger).Run(context.Background())
		assert.ErrorContains(t, err, "1 errors")
		assert.Len(t, pub.reminders, 1)
	})

	t.Run("nothing due", func(t *testing.T) {
		finder := new(MockDueFinder)
		finder.On("PaymentsDueBetween", mock.Anything, from, to).Return([]loan.UpcomingPayment{}, nil).Once()

		require.NoError(t, batch.NewReminderJob(finder, &recordingPublisher{}, clock, 3, discardLogger).Run(context.Background()))
	})

	t.Run("lookup failure aborts", func(t *testing.T) {
		finder := new(MockDueFinder)
		finder.On("PaymentsDueBetween", mock.Anything, from, to).Return(nil, errors.New("timeout")).Once()

		err := batch.NewReminderJob(finder, &recordingPublisher{}, clock, 3, discardLogger).Run(context.Background())
		assert.ErrorContains(t, err, "timeout")
	})
}

type countingJob struct {
	runs int
}

func (j *countingJob) Name() string { return "counting" }

func (j *countingJob) Run(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		return errors.New("expected a deadline")
	}
	j.runs++
	return nil
}

func TestSchedule(t *testing.T) {
	c := cron.New()
	job := &countingJob{}

	id, err := batch.Schedule(c, "0 3 * * *", time.Minute, job, discardLogger)
	require.NoError(t, err)

	c.Entry(id).Job.Run()
	assert.Equal(t, 1, job.runs)

	_, err = batch.Schedule(c, "every now and then", time.Minute, job, discardLogger)
	assert.Error(t, err)
}
