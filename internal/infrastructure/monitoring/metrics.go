package monitoring

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type DBMetrics struct {
	QueryDuration *prometheus.HistogramVec
}

type BusinessMetrics struct {
	LoanOperationsTotal *prometheus.CounterVec
	LoansPurgedTotal    prometheus.Counter
	RemindersTotal      *prometheus.CounterVec
	CacheLookupsTotal   *prometheus.CounterVec
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "loan_manager_db_query_duration_seconds",
				Help:    "Histogram of document store query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		LoanOperationsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_manager_loan_operations_total",
				Help: "Total number of loan lifecycle operations by outcome.",
			},
			[]string{"operation", "status"},
		),
		LoansPurgedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "loan_manager_loans_purged_total",
				Help: "Total number of soft-deleted loans removed after the retention window.",
			},
		),
		RemindersTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_manager_payment_reminders_total",
				Help: "Total number of payment reminders by outcome.",
			},
			[]string{"status"},
		),
		CacheLookupsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "loan_manager_cache_lookups_total",
				Help: "Loan cache lookups by result.",
			},
			[]string{"result"},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordLoanOperation(operation string, err error) {
	status := "success"
	if err != nil {
		status = "failure"
	}
	Business.LoanOperationsTotal.WithLabelValues(operation, status).Inc()
}

func RecordLoansPurged(count int) {
	Business.LoansPurgedTotal.Add(float64(count))
}

func RecordReminder(status string) {
	Business.RemindersTotal.WithLabelValues(status).Inc()
}

func RecordCacheLookup(hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	Business.CacheLookupsTotal.WithLabelValues(result).Inc()
}
