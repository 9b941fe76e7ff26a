package cache

import (
	"testing"
	"time"

	"github.com/eptportal/ept-backend/internal/clock"
)

func TestRequestCacheExpires(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	c := NewRequestCache[string](clk, time.Minute, 10)

	c.Set("test:reading:2025-10-03", "R-1")
	if v, ok := c.Get("test:reading:2025-10-03"); !ok || v != "R-1" {
		t.Fatalf("Get() = %q, %v", v, ok)
	}

	clk.Advance(time.Minute)
	if _, ok := c.Get("test:reading:2025-10-03"); ok {
		t.Fatal("entry served at its expiry")
	}
	if c.Len() != 0 {
		t.Errorf("Len() = %d, expired entry not dropped", c.Len())
	}
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Errorf("Stats() = %d, %d", hits, misses)
	}
}

func TestRequestCacheBounded(t *testing.T) {
	t.Parallel()
	clk := clock.NewFake(time.Date(2025, 10, 3, 9, 0, 0, 0, time.UTC))
	c := NewRequestCache[int](clk, time.Minute, 2)

	c.Set("a", 1)
	clk.Advance(time.Second)
	c.Set("b", 2)
	clk.Advance(time.Second)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", c.Len())
	}
	if _, ok := c.Get("a"); ok {
		t.Error("entry closest to expiry survived eviction")
	}
	for _, k := range []string{"b", "c"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("%s evicted", k)
		}
	}

	c.Set("b", 20)
	if v, _ := c.Get("b"); v != 20 || c.Len() != 2 {
		t.Errorf("overwrite: b=%d len=%d", v, c.Len())
	}
}

func TestRequestCacheDisabled(t *testing.T) {
	t.Parallel()
	c := NewRequestCache[string](clock.NewFake(time.Now()), 0, 0)
	c.Set("k", "v")
	if _, ok := c.Get("k"); ok {
		t.Error("zero TTL cache stored a value")
	}
}
