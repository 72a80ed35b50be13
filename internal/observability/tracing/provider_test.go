package tracing

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"
	"go.uber.org/zap"
)

func TestSafeAttributesDropsCredentials(t *testing.T) {
	attrs := SafeAttributes(
		attribute.String("payment_id", "p-1"),
		attribute.String("gateway_nonce", "fake-valid-nonce"),
		attribute.String("private_key", "secret"),
		attribute.String("Authorization", "Basic abc"),
	)
	require.Len(t, attrs, 1)
	assert.Equal(t, attribute.Key("payment_id"), attrs[0].Key)
}

func TestSafeErrorTruncatesAndDetaches(t *testing.T) {
	assert.Nil(t, SafeError(nil))

	cause := errors.New("root")
	long := errors.Join(cause, errors.New(strings.Repeat("x", 400)))
	safe := SafeError(long)
	assert.Len(t, safe.Error(), 256)
	assert.False(t, errors.Is(safe, cause))
}

func TestNewProviderWithoutExport(t *testing.T) {
	tp, err := NewProvider(nil, Config{ServiceName: "bridge", SamplingRatio: 1}, zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	_, span := tp.Tracer("test").Start(context.Background(), "op")
	assert.True(t, span.SpanContext().IsValid())
	span.End()
}

func TestNewProviderRejectsUnknownProtocol(t *testing.T) {
	_, err := NewProvider(nil, Config{Enabled: true, ExporterProtocol: "carrier-pigeon"}, zap.NewNop())
	require.Error(t, err)
}

func TestGinMiddlewareRecordsRoute(t *testing.T) {
	gin.SetMode(gin.TestMode)
	recorder := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(recorder))
	t.Cleanup(func() { _ = tp.Shutdown(context.Background()) })

	otel.SetTracerProvider(tp)

	r := gin.New()
	r.Use(GinMiddleware())
	r.POST("/v1/payments/:payment_id/authorize", func(c *gin.Context) {
		c.Status(http.StatusInternalServerError)
		_ = c.Error(errors.New("boom"))
	})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodPost, "/v1/payments/p-1/authorize", nil))

	spans := recorder.Ended()
	require.Len(t, spans, 1)
	assert.Equal(t, "HTTP POST /v1/payments/:payment_id/authorize", spans[0].Name())
	attrs := map[attribute.Key]attribute.Value{}
	for _, kv := range spans[0].Attributes() {
		attrs[kv.Key] = kv.Value
	}
	assert.Equal(t, "p-1", attrs["payment_id"].AsString())
	assert.Equal(t, int64(500), attrs["http.status_code"].AsInt64())
}
