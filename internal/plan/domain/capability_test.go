package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestCapabilitiesJSONArray(t *testing.T) {
	set := NewCapabilities(CapManageEvents, CapFinancialReports)

	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `["financial_reports","manage_events"]` {
		t.Fatalf("unexpected json %s", b)
	}

	var decoded Capabilities
	if err := json.Unmarshal(b, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded != set {
		t.Fatalf("expected %v, got %v", set.Names(), decoded.Names())
	}
}

func TestCapabilitiesAcceptsLegacyObject(t *testing.T) {
	var decoded Capabilities
	if err := decoded.Scan(`{"manage_news": true, "manage_media": false}`); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if !decoded.Has(CapManageNews) || decoded.Has(CapManageMedia) {
		t.Fatalf("unexpected capabilities %v", decoded.Names())
	}
}

func TestCapabilitiesRejectsUnknownName(t *testing.T) {
	var decoded Capabilities
	err := decoded.Scan([]byte(`["manage_everything"]`))
	if !errors.Is(err, ErrUnknownCapability) {
		t.Fatalf("expected ErrUnknownCapability, got %v", err)
	}
}

func TestNextBillingDate(t *testing.T) {
	from := time.Date(2025, 1, 15, 12, 0, 0, 0, time.UTC)
	cases := []struct {
		cycle Cycle
		want  time.Time
	}{
		{CycleMonthly, time.Date(2025, 2, 15, 12, 0, 0, 0, time.UTC)},
		{CycleSemiannually, time.Date(2025, 7, 15, 12, 0, 0, 0, time.UTC)},
		{CycleYearly, time.Date(2026, 1, 15, 12, 0, 0, 0, time.UTC)},
		{Cycle("WEEKLY"), time.Date(2025, 2, 15, 12, 0, 0, 0, time.UTC)},
	}
	for _, tc := range cases {
		if got := tc.cycle.NextBillingDate(from); !got.Equal(tc.want) {
			t.Fatalf("%s: expected %s, got %s", tc.cycle, tc.want, got)
		}
	}
}

func TestParseCycleAliases(t *testing.T) {
	if ParseCycle("semestral") != CycleSemiannually {
		t.Fatalf("semestral should map to SEMIANNUALLY")
	}
	if ParseCycle("annual") != CycleYearly {
		t.Fatalf("annual should map to YEARLY")
	}
	if ParseCycle("") != CycleMonthly {
		t.Fatalf("empty should map to MONTHLY")
	}
}
