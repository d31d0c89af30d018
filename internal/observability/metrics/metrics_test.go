package metrics

import (
	"context"
	"testing"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric/noop"
)

func TestFilterAttributesDropsForbiddenLabels(t *testing.T) {
	attrs := FilterAttributes(
		attribute.String("outcome", "succeeded"),
		attribute.String("payment_id", "pay_123"),
		attribute.String("step", "completed"),
	)
	if len(attrs) != 2 {
		t.Fatalf("expected 2 attributes, got %d", len(attrs))
	}
	for _, attr := range attrs {
		if attr.Key == "payment_id" {
			t.Fatalf("expected payment_id to be dropped")
		}
	}
}

func TestNilMetricsAreSafe(t *testing.T) {
	var m *Metrics
	m.RecordRegistration(context.Background(), "failed", "validation", time.Second)
	m.RecordPollAttempt(context.Background(), "PENDING")
	m.RecordFallbackStored(context.Background(), "confirmation_timeout")
}

func TestNewWithNoopProvider(t *testing.T) {
	m, err := New(Config{ServiceName: "comademig"}, noop.NewMeterProvider())
	if err != nil {
		t.Fatalf("new metrics: %v", err)
	}
	m.RecordRegistration(context.Background(), "succeeded", "completed", 3*time.Second)
	m.RecordPaymentEvent(context.Background(), "asaas", "PAYMENT_CONFIRMED")
}
