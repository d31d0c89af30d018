package cache

import (
	"testing"
	"time"
)

func TestTTLCacheExpires(t *testing.T) {
	now := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	c := NewTTLCache[string, int]()
	c.now = func() time.Time { return now }

	c.Set("a", 1, time.Minute)
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected hit, got %v %v", v, ok)
	}

	now = now.Add(time.Minute)
	if _, ok := c.Get("a"); ok {
		t.Fatalf("expected entry to expire")
	}
}

func TestTTLCacheNoTTLPersists(t *testing.T) {
	c := NewTTLCache[string, string]()
	c.Set("k", "v", 0)
	c.now = func() time.Time { return time.Now().Add(24 * time.Hour) }
	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("expected persistent entry, got %q %v", v, ok)
	}
	c.Delete("k")
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected entry deleted")
	}
}
