package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsIdentifiers(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("operation", "sale"),
		attribute.String("tenant_id", "7f0c"),
		attribute.String("transaction_id", "abc"),
		attribute.String("outcome", "declined"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key != "operation" && attr.Key != "outcome" {
			t.Fatalf("unexpected attribute %q retained", attr.Key)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	ctx := context.Background()
	m.RecordGatewayCall(ctx, "sale", "success", time.Millisecond)
	m.RecordReplay(ctx, "AUTHORIZE", "duplicate")
	m.RecordReconciliation(ctx, "refreshed")
	m.RecordExpiration(ctx, "AUTHORIZE")
	m.RecordPaymentMethodSync(ctx, 1, 0, 2)
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "test"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordGatewayCall(context.Background(), "void", "error", time.Second)
	m.RecordRateLimitDenied(context.Background(), "sale", "tenant_budget")
}
