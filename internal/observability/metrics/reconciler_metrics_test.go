package metrics

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"gorm.io/gorm"
)

type fakeGatewayError struct{}

func (fakeGatewayError) Error() string          { return "gateway unavailable" }
func (fakeGatewayError) GatewayStatusCode() int { return 503 }

func TestClassifyReconcilerJobReason(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want string
	}{
		{name: "deadline", err: context.DeadlineExceeded, want: ReconcilerJobReasonDeadlineExceeded},
		{name: "db_lock_timeout", err: &pgconn.PgError{Code: "55P03"}, want: ReconcilerJobReasonDBLockTimeout},
		{name: "serialization_failure", err: &pgconn.PgError{Code: "40001"}, want: ReconcilerJobReasonSerializationFailure},
		{name: "unique_violation", err: gorm.ErrDuplicatedKey, want: ReconcilerJobReasonUniqueViolation},
		{name: "gateway", err: fmt.Errorf("check status: %w", fakeGatewayError{}), want: ReconcilerJobReasonGateway},
		{name: "unknown", err: errors.New("boom"), want: ReconcilerJobReasonUnknown},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if got := ClassifyReconcilerJobReason(tc.err); got != tc.want {
				t.Fatalf("expected reason %q, got %q", tc.want, got)
			}
		})
	}
}

func TestAddItems(t *testing.T) {
	registry := prometheus.NewRegistry()
	metrics := newReconcilerMetrics(registry, Config{
		ServiceName: "comademig",
		Environment: "test",
	})

	metrics.AddItems(ReconcilerOutcomeCompleted, 3)
	metrics.AddItems(ReconcilerOutcomeCompleted, 0)

	got := testutil.ToFloat64(metrics.itemsProcessed.WithLabelValues(ReconcilerOutcomeCompleted))
	if got != 3 {
		t.Fatalf("expected processed count 3, got %v", got)
	}
}

func TestHTTPMetricsRegisterTwice(t *testing.T) {
	registry := prometheus.NewRegistry()
	first := newHTTPMetrics(registry, Config{})
	second := newHTTPMetrics(registry, Config{})
	if first.requests != second.requests {
		t.Fatalf("expected second registration to reuse the existing collector")
	}
}
