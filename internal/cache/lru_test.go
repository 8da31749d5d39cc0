package cache

import (
	"context"
	"testing"
	"time"

	"fintrack/internal/log"
)

func TestLRUCacheEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRUCache[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatalf("expected a to be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("expected a=1, got %d %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("expected size 2, got %d", c.Size())
	}
}

func TestLRUCacheExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[string](10, time.Second)
	c.now = func() time.Time { return now }

	c.Set("k", "v")
	c.Set("other", "v")
	now = now.Add(2 * time.Second)

	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected k to have expired")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("expected 1 expired entry cleaned, got %d", n)
	}
	if c.Size() != 0 {
		t.Fatalf("expected empty cache, got %d", c.Size())
	}
}

func TestLRUCacheZeroTTLNeverExpires(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRUCache[int](1, 0)
	c.now = func() time.Time { return now }
	c.Set("k", 1)
	now = now.Add(24 * time.Hour)
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("entry without ttl should not expire")
	}
}

func TestLRUCacheDeletePrefixAndStats(t *testing.T) {
	c := NewLRUCache[int](10, time.Minute)
	c.Set("fy1:1", 1)
	c.Set("fy1:2", 2)
	c.Set("fy2:1", 3)

	if n := c.DeletePrefix("fy1:"); n != 2 {
		t.Fatalf("expected 2 deletions, got %d", n)
	}
	c.Get("fy2:1")
	c.Get("fy1:1")
	hits, misses := c.Stats()
	if hits != 1 || misses != 1 {
		t.Fatalf("expected 1 hit and 1 miss, got %d/%d", hits, misses)
	}
}

func TestManagerStopsWithContext(t *testing.T) {
	c := NewLRUCache[int](10, time.Nanosecond)
	c.Set("k", 1)

	m := NewManager(log.Discard())
	m.Register(c)
	ctx, cancel := context.WithCancel(context.Background())
	m.Start(ctx, time.Millisecond)
	cancel()
	m.Wait()

	m.CleanAll()
	if c.Size() != 0 {
		t.Fatalf("expected expired entry to be cleaned")
	}
}
