package metrics

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func TestClassifyStoreError(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: fmt.Errorf("insert: %w", context.DeadlineExceeded), want: StoreReasonDeadlineExceeded},
		{name: "lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: StoreReasonLockTimeout},
		{name: "serialization", err: &pgconn.PgError{Code: "40001"}, want: StoreReasonSerializationFailure},
		{name: "duplicate_gorm", err: gorm.ErrDuplicatedKey, want: StoreReasonUniqueViolation},
		{name: "duplicate_pg", err: &pgconn.PgError{Code: "23505"}, want: StoreReasonUniqueViolation},
		{name: "connection", err: &pgconn.PgError{Code: "08006"}, want: StoreReasonConnection},
		{name: "unknown", err: errors.New("boom"), want: StoreReasonUnknown},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ClassifyStoreError(tc.err))
		})
	}
}

func TestRecordStoreError(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{ServiceName: "bridge", Environment: "test"})

	m.RecordStoreError("transaction.purchase", &pgconn.PgError{Code: "40001"}, true)
	m.RecordStoreError("transaction.purchase", nil, true)

	assert.Equal(t, float64(1), testutil.ToFloat64(m.storeErrors.WithLabelValues("transaction.purchase", StoreReasonSerializationFailure)))
	assert.Equal(t, float64(1), testutil.ToFloat64(m.fundsMoved))

	var nilMetrics *HTTPMetrics
	nilMetrics.RecordStoreError("op", errors.New("boom"), true)
}

func TestGinMiddlewareCountsByRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	registry := prometheus.NewRegistry()
	m := newHTTPMetrics(registry, Config{})

	r := gin.New()
	r.Use(GinMiddleware(m))
	r.GET("/v1/payments/:payment_id/transactions", func(c *gin.Context) { c.Status(http.StatusOK) })

	for i := 0; i < 2; i++ {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, fmt.Sprintf("/v1/payments/p-%d/transactions", i), nil))
	}

	families, err := registry.Gather()
	require.NoError(t, err)
	var requests *dto.MetricFamily
	for _, f := range families {
		if f.GetName() == "braintree_http_requests_total" {
			requests = f
		}
	}
	require.NotNil(t, requests)
	require.Len(t, requests.GetMetric(), 1)
	assert.Equal(t, float64(2), requests.GetMetric()[0].GetCounter().GetValue())

	labels := map[string]string{}
	for _, l := range requests.GetMetric()[0].GetLabel() {
		labels[l.GetName()] = l.GetValue()
	}
	assert.Equal(t, "/v1/payments/:payment_id/transactions", labels["route"])
	assert.Equal(t, "railzway-braintree", labels["service"])
	assert.Equal(t, "unknown", labels["env"])
}
