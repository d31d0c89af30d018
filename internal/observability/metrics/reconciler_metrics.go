package metrics

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

const (
	ReconcilerJobReasonDeadlineExceeded     = "deadline_exceeded"
	ReconcilerJobReasonDBLockTimeout        = "db_lock_timeout"
	ReconcilerJobReasonSerializationFailure = "serialization_failure"
	ReconcilerJobReasonUniqueViolation      = "unique_violation"
	ReconcilerJobReasonGateway              = "gateway"
	ReconcilerJobReasonUnknown              = "unknown"
)

const (
	ReconcilerOutcomeCompleted    = "completed"
	ReconcilerOutcomeNotConfirmed = "not_confirmed"
	ReconcilerOutcomeRetry        = "retry"
	ReconcilerOutcomeExhausted    = "exhausted"
)

// ReconcilerMetrics captures fallback reconciliation health signals.
type ReconcilerMetrics struct {
	jobRuns        *prometheus.CounterVec
	jobDuration    *prometheus.HistogramVec
	jobTimeouts    *prometheus.CounterVec
	jobErrors      *prometheus.CounterVec
	itemsProcessed *prometheus.CounterVec
	runLoopLag     prometheus.Observer
}

var (
	reconcilerMetricsOnce sync.Once
	reconcilerMetrics     *ReconcilerMetrics
)

// Reconciler returns the singleton reconciler metrics registry.
func Reconciler() *ReconcilerMetrics {
	return ReconcilerWithConfig(Config{})
}

// ReconcilerWithConfig returns the singleton reconciler metrics registry using config labels.
func ReconcilerWithConfig(cfg Config) *ReconcilerMetrics {
	reconcilerMetricsOnce.Do(func() {
		reconcilerMetrics = newReconcilerMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return reconcilerMetrics
}

// ResetReconcilerMetricsForTest resets the reconciler metrics singleton for tests.
func ResetReconcilerMetricsForTest() {
	reconcilerMetricsOnce = sync.Once{}
	reconcilerMetrics = nil
}

// NewReconcilerMetricsForTest builds reconciler metrics on a private registry.
func NewReconcilerMetricsForTest(registerer prometheus.Registerer) *ReconcilerMetrics {
	return newReconcilerMetrics(registerer, Config{ServiceName: "comademig", Environment: "test"})
}

func newReconcilerMetrics(registerer prometheus.Registerer, cfg Config) *ReconcilerMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	constLabels := constLabelsFor(cfg)

	jobRuns := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "comademig_reconciler_job_runs_total",
		Help:        "Reconciler job runs by name.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "comademig_reconciler_job_duration_seconds",
		Help:        "Reconciler job latency.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		ConstLabels: constLabels,
	}, []string{"job"})
	jobTimeouts := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "comademig_reconciler_job_timeouts_total",
		Help:        "Reconciler jobs that hit their deadline.",
		ConstLabels: constLabels,
	}, []string{"job"})
	jobErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "comademig_reconciler_job_errors_total",
		Help:        "Reconciler job errors by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"job", "reason"})
	itemsProcessed := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "comademig_reconciler_items_total",
		Help:        "Pending registrations processed by outcome.",
		ConstLabels: constLabels,
	}, []string{"outcome"})
	runLoopLag := prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:        "comademig_reconciler_runloop_lag_seconds",
		Help:        "Reconciler run loop lag beyond the configured interval.",
		Buckets:     []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
		ConstLabels: constLabels,
	})

	registerer.MustRegister(
		jobRuns,
		jobDuration,
		jobTimeouts,
		jobErrors,
		itemsProcessed,
		runLoopLag,
	)

	return &ReconcilerMetrics{
		jobRuns:        jobRuns,
		jobDuration:    jobDuration,
		jobTimeouts:    jobTimeouts,
		jobErrors:      jobErrors,
		itemsProcessed: itemsProcessed,
		runLoopLag:     runLoopLag,
	}
}

// IncJobRun increments the run counter for a reconciler job.
func (m *ReconcilerMetrics) IncJobRun(job string) {
	if m == nil || m.jobRuns == nil {
		return
	}
	m.jobRuns.WithLabelValues(job).Inc()
}

// ObserveJobDuration records reconciler job latency in seconds.
func (m *ReconcilerMetrics) ObserveJobDuration(job string, duration time.Duration) {
	if m == nil || m.jobDuration == nil {
		return
	}
	m.jobDuration.WithLabelValues(job).Observe(duration.Seconds())
}

// IncJobTimeout increments the timeout counter for the reconciler job.
func (m *ReconcilerMetrics) IncJobTimeout(job string) {
	if m == nil || m.jobTimeouts == nil {
		return
	}
	m.jobTimeouts.WithLabelValues(job).Inc()
}

// IncJobError increments the reconciler job error counter with classification.
func (m *ReconcilerMetrics) IncJobError(job string, err error) {
	if m == nil || err == nil || m.jobErrors == nil {
		return
	}
	m.jobErrors.WithLabelValues(job, ClassifyReconcilerJobReason(err)).Inc()
}

// AddItems increments the processed item counter for an outcome.
func (m *ReconcilerMetrics) AddItems(outcome string, count int) {
	if m == nil || count <= 0 || m.itemsProcessed == nil {
		return
	}
	m.itemsProcessed.WithLabelValues(outcome).Add(float64(count))
}

// ObserveRunLoopLag records lag between the scheduled tick and actual run start.
func (m *ReconcilerMetrics) ObserveRunLoopLag(duration time.Duration) {
	if m == nil || m.runLoopLag == nil {
		return
	}
	lag := duration
	if lag < 0 {
		lag = 0
	}
	m.runLoopLag.Observe(lag.Seconds())
}

// GatewayError is implemented by payment gateway errors so they can be
// classified without importing the gateway package.
type GatewayError interface {
	error
	GatewayStatusCode() int
}

// ClassifyReconcilerJobReason maps reconciler job errors to low-cardinality reasons.
func ClassifyReconcilerJobReason(err error) string {
	if err == nil {
		return ReconcilerJobReasonUnknown
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return ReconcilerJobReasonDeadlineExceeded
	}
	if hasPGCode(err, "55P03") {
		return ReconcilerJobReasonDBLockTimeout
	}
	if hasPGCode(err, "40001") {
		return ReconcilerJobReasonSerializationFailure
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) || hasPGCode(err, "23505") {
		return ReconcilerJobReasonUniqueViolation
	}
	var gwErr GatewayError
	if errors.As(err, &gwErr) {
		return ReconcilerJobReasonGateway
	}
	return ReconcilerJobReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}
