package logger

import (
	"context"
	"strings"
	"testing"

	obscontext "github.com/rcarraroia/comademig/internal/observability/context"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestMaskTaxID(t *testing.T) {
	cases := map[string]string{
		"529.982.247-25": "*********25",
		"12":             "**",
		"":               "",
	}
	for in, want := range cases {
		if got := MaskTaxID(in); got != want {
			t.Fatalf("MaskTaxID(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestWithContextAddsCorrelationFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	base := zap.New(core)

	ctx := obscontext.WithRequestID(context.Background(), "req-1")
	ctx = obscontext.WithFlowID(ctx, "flow-9")

	WithContext(ctx, base).Info("hello")

	entries := logs.All()
	if len(entries) != 1 {
		t.Fatalf("expected 1 entry, got %d", len(entries))
	}
	fields := entries[0].ContextMap()
	if fields["request_id"] != "req-1" {
		t.Fatalf("expected request_id field, got %v", fields["request_id"])
	}
	if fields["flow_id"] != "flow-9" {
		t.Fatalf("expected flow_id field, got %v", fields["flow_id"])
	}
}

func TestTableFromSQL(t *testing.T) {
	cases := map[string]string{
		`SELECT id FROM "pending_registrations" WHERE status = ?`: "pending_registrations",
		`INSERT INTO users (id) VALUES (?)`:                      "users",
		`UPDATE payment_records SET status = ?`:                  "payment_records",
		`SELECT 1`:                                               "",
	}
	for sql, want := range cases {
		if got := tableFromSQL(sql); got != want {
			t.Fatalf("tableFromSQL(%q) = %q, want %q", sql, got, want)
		}
	}
}

func TestWithContextOmitsEmptyFields(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)

	WithContext(context.Background(), zap.New(core)).Info("background")

	fields := logs.All()[0].ContextMap()
	if _, ok := fields["request_id"]; ok {
		t.Fatalf("expected no request_id field, got %v", fields)
	}
}

func TestRequestIDFrom(t *testing.T) {
	if got := requestIDFrom(" abc-123 "); got != "abc-123" {
		t.Fatalf("expected caller id to be kept, got %q", got)
	}
	for _, bad := range []string{"", "has space", strings.Repeat("x", maxRequestIDLength+1)} {
		got := requestIDFrom(bad)
		if got == strings.TrimSpace(bad) || len(got) != 36 {
			t.Fatalf("expected generated id for %q, got %q", bad, got)
		}
	}
}

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		route  string
		status int
		want   zapcore.Level
	}{
		{"/api/registrations", 500, zapcore.ErrorLevel},
		{"/api/registrations", 429, zapcore.WarnLevel},
		{"/admin/pending-registrations", 401, zapcore.WarnLevel},
		{"/health", 200, zapcore.DebugLevel},
		{"/api/registrations", 402, zapcore.InfoLevel},
	}
	for _, tc := range cases {
		if got := requestLevel(tc.route, tc.status); got != tc.want {
			t.Fatalf("%s %d: expected %s, got %s", tc.route, tc.status, tc.want, got)
		}
	}
}
