package cache

import (
	"testing"
	"time"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time          { return c.now }
func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestCache(ttl time.Duration) (*Cache[string], *fakeClock) {
	clock := &fakeClock{now: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	return newWithClock[string](8, ttl, clock.Now), clock
}

func TestCache_HitWithinTTL(t *testing.T) {
	c, clock := newTestCache(5 * time.Minute)

	c.Set("user-1", "videos-v1")

	clock.Advance(4 * time.Minute)
	got, ok := c.Get("user-1")
	if !ok {
		t.Fatal("expected cache hit within TTL")
	}
	if got != "videos-v1" {
		t.Fatalf("unexpected value %q", got)
	}
}

func TestCache_MissAfterExpiry(t *testing.T) {
	c, clock := newTestCache(5 * time.Minute)

	c.Set("user-1", "videos-v1")

	clock.Advance(5*time.Minute + time.Second)
	if _, ok := c.Get("user-1"); ok {
		t.Fatal("expected cache miss after TTL")
	}
}

func TestCache_SingleUpstreamCallPerWindow(t *testing.T) {
	c, clock := newTestCache(5 * time.Minute)

	upstreamCalls := 0
	fetch := func(key string) string {
		if v, ok := c.Get(key); ok {
			return v
		}
		upstreamCalls++
		v := "fetched"
		c.Set(key, v)
		return v
	}

	// Two calls inside the window share one upstream fetch.
	fetch("user-1")
	clock.Advance(time.Minute)
	fetch("user-1")
	if upstreamCalls != 1 {
		t.Fatalf("upstream calls = %d, want 1", upstreamCalls)
	}

	// A call after expiry triggers exactly one more.
	clock.Advance(10 * time.Minute)
	fetch("user-1")
	if upstreamCalls != 2 {
		t.Fatalf("upstream calls = %d, want 2", upstreamCalls)
	}
}

func TestCache_SetOverwrites(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("user-1", "old")
	c.Set("user-1", "new")

	got, ok := c.Get("user-1")
	if !ok || got != "new" {
		t.Fatalf("got %q ok=%v, want new", got, ok)
	}
}

func TestCache_KeysAreIndependent(t *testing.T) {
	c, clock := newTestCache(5 * time.Minute)

	c.Set("user-1", "a")
	clock.Advance(3 * time.Minute)
	c.Set("user-2", "b")
	clock.Advance(3 * time.Minute)

	if _, ok := c.Get("user-1"); ok {
		t.Fatal("user-1 entry should have expired")
	}
	if v, ok := c.Get("user-2"); !ok || v != "b" {
		t.Fatalf("user-2 entry should survive, got %q ok=%v", v, ok)
	}
}

func TestCache_Delete(t *testing.T) {
	c, _ := newTestCache(time.Minute)

	c.Set("user-1", "a")
	c.Delete("user-1")

	if _, ok := c.Get("user-1"); ok {
		t.Fatal("expected miss after delete")
	}
}

func TestCache_BoundedSize(t *testing.T) {
	clock := &fakeClock{now: time.Unix(0, 0)}
	c := newWithClock[int](2, time.Hour, clock.Now)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	// Least recently used entry is evicted.
	if _, ok := c.Get("a"); ok {
		t.Fatal("expected oldest entry to be evicted")
	}
}
