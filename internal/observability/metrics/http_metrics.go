package metrics

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"gorm.io/gorm"
)

// Low-cardinality reasons for ledger store failures.
const (
	StoreReasonDeadlineExceeded     = "deadline_exceeded"
	StoreReasonLockTimeout          = "db_lock_timeout"
	StoreReasonSerializationFailure = "serialization_failure"
	StoreReasonUniqueViolation      = "unique_violation"
	StoreReasonConnection           = "connection"
	StoreReasonUnknown              = "unknown"
)

// HTTPMetrics exposes request and store health on the Prometheus registry
// served at /metrics. A nil *HTTPMetrics is a no-op.
type HTTPMetrics struct {
	requests    *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	storeErrors *prometheus.CounterVec
	fundsMoved  prometheus.Counter
}

var (
	httpMetricsOnce sync.Once
	httpMetrics     *HTTPMetrics
)

// NewHTTPMetrics returns the process-wide HTTP metrics registered on the
// default Prometheus registerer.
func NewHTTPMetrics(cfg Config) *HTTPMetrics {
	httpMetricsOnce.Do(func() {
		httpMetrics = newHTTPMetrics(prometheus.DefaultRegisterer, cfg)
	})
	return httpMetrics
}

func newHTTPMetrics(registerer prometheus.Registerer, cfg Config) *HTTPMetrics {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}

	serviceName := strings.TrimSpace(cfg.ServiceName)
	if serviceName == "" {
		serviceName = "railzway-braintree"
	}
	environment := strings.TrimSpace(cfg.Environment)
	if environment == "" {
		environment = "unknown"
	}
	constLabels := prometheus.Labels{
		"service": serviceName,
		"env":     environment,
	}

	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "braintree_http_requests_total",
		Help:        "HTTP requests by route and status.",
		ConstLabels: constLabels,
	}, []string{"method", "route", "status_code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:        "braintree_http_request_duration_seconds",
		Help:        "HTTP request latency, gateway round trips included.",
		Buckets:     []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		ConstLabels: constLabels,
	}, []string{"method", "route"})
	storeErrors := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name:        "braintree_store_errors_total",
		Help:        "Ledger and mirror store failures by low-cardinality reason.",
		ConstLabels: constLabels,
	}, []string{"operation", "reason"})
	fundsMoved := prometheus.NewCounter(prometheus.CounterOpts{
		Name:        "braintree_funds_moved_unrecorded_total",
		Help:        "Gateway operations that succeeded but could not be recorded. Each one needs manual reconciliation.",
		ConstLabels: constLabels,
	})

	registerer.MustRegister(requests, duration, storeErrors, fundsMoved)

	return &HTTPMetrics{
		requests:    requests,
		duration:    duration,
		storeErrors: storeErrors,
		fundsMoved:  fundsMoved,
	}
}

// GinMiddleware records one sample per request.
func GinMiddleware(m *HTTPMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		if m == nil {
			return
		}
		route := c.FullPath()
		if route == "" {
			route = "unknown"
		}
		m.requests.WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).Inc()
		m.duration.WithLabelValues(c.Request.Method, route).Observe(time.Since(start).Seconds())
	}
}

// RecordStoreError counts a persistence failure. fundsMoved marks failures
// after a successful gateway call.
func (m *HTTPMetrics) RecordStoreError(operation string, err error, fundsMoved bool) {
	if m == nil || err == nil {
		return
	}
	m.storeErrors.WithLabelValues(operation, ClassifyStoreError(err)).Inc()
	if fundsMoved {
		m.fundsMoved.Inc()
	}
}

// ClassifyStoreError maps a store error to a low-cardinality reason.
func ClassifyStoreError(err error) string {
	switch {
	case err == nil:
		return StoreReasonUnknown
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return StoreReasonDeadlineExceeded
	case hasPGCode(err, "55P03"):
		return StoreReasonLockTimeout
	case hasPGCode(err, "40001"):
		return StoreReasonSerializationFailure
	case errors.Is(err, gorm.ErrDuplicatedKey), hasPGCode(err, "23505"):
		return StoreReasonUniqueViolation
	case errors.Is(err, gorm.ErrInvalidDB), hasPGClass(err, "08"):
		return StoreReasonConnection
	}
	return StoreReasonUnknown
}

func hasPGCode(err error, code string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == code
	}
	return false
}

func hasPGClass(err error, class string) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return strings.HasPrefix(pgErr.Code, class)
	}
	return false
}
