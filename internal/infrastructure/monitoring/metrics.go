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
	BooksCreatedTotal    prometheus.Counter
	LoansCreatedTotal    prometheus.Counter
	LoansReturnedTotal   *prometheus.CounterVec
	OverdueRunsTotal     *prometheus.CounterVec
	OverdueLoansNotified prometheus.Counter
}

var (
	DB = DBMetrics{
		QueryDuration: promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "library_api_db_query_duration_seconds",
				Help:    "Histogram of database query latencies.",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
			},
			[]string{"query_name", "status"},
		),
	}

	Business = BusinessMetrics{
		BooksCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "library_api_books_created_total",
				Help: "Total number of books successfully registered.",
			},
		),
		LoansCreatedTotal: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "library_api_loans_created_total",
				Help: "Total number of loans successfully created.",
			},
		),
		LoansReturnedTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "library_api_loans_returned_total",
				Help: "Total number of return and undo-return transitions.",
			},
			[]string{"transition"},
		),
		OverdueRunsTotal: promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "library_api_overdue_runs_total",
				Help: "Total number of overdue notification job runs.",
			},
			[]string{"status"},
		),
		OverdueLoansNotified: promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "library_api_overdue_loans_notified_total",
				Help: "Total number of overdue loans included in notifications.",
			},
		),
	}
)

func RecordDBQuery(queryName, status string, duration time.Duration) {
	DB.QueryDuration.WithLabelValues(queryName, status).Observe(duration.Seconds())
}

func RecordBookCreated() {
	Business.BooksCreatedTotal.Inc()
}

func RecordLoanCreated() {
	Business.LoansCreatedTotal.Inc()
}

func RecordLoanReturned(transition string) {
	Business.LoansReturnedTotal.WithLabelValues(transition).Inc()
}

func RecordOverdueRun(status string, notified int) {
	Business.OverdueRunsTotal.WithLabelValues(status).Inc()
	if notified > 0 {
		Business.OverdueLoansNotified.Add(float64(notified))
	}
}
