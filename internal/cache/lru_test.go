package cache

import (
	"testing"
	"time"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLRU[int](2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("a should be cached")
	}
	c.Set("c", 3)
	if _, ok := c.Get("b"); ok {
		t.Fatal("b should have been evicted")
	}
	if v, ok := c.Get("a"); !ok || v != 1 {
		t.Fatalf("a = %d, %v", v, ok)
	}
	if c.Size() != 2 {
		t.Fatalf("size = %d, want 2", c.Size())
	}
}

func TestLRUExpiry(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := NewLRU[string](4, time.Second)
	c.now = func() time.Time { return now }
	c.Set("k", "v")
	c.Set("j", "w")

	now = now.Add(2 * time.Second)
	if _, ok := c.Get("k"); ok {
		t.Fatal("expired entry returned")
	}
	if n := c.CleanExpired(); n != 1 {
		t.Fatalf("CleanExpired = %d, want 1", n)
	}
	if c.Size() != 0 {
		t.Fatalf("size = %d, want 0", c.Size())
	}
}

func TestLRUPurgeAndDelete(t *testing.T) {
	c := NewLRU[int](0, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	if c.Size() != 1 {
		t.Fatalf("minimum size should be 1, got %d", c.Size())
	}
	c.Delete("b")
	if c.Size() != 0 {
		t.Fatal("delete failed")
	}
	c.Set("a", 1)
	c.Purge()
	if _, ok := c.Get("a"); ok || c.Size() != 0 {
		t.Fatal("purge failed")
	}
}

func TestJanitorStops(t *testing.T) {
	c := NewLRU[int](2, time.Nanosecond)
	c.Set("a", 1)
	j := NewJanitor(c)
	j.Start(time.Millisecond)
	time.Sleep(20 * time.Millisecond)
	j.Stop()
	if c.Size() != 0 {
		t.Fatalf("janitor did not clean, size=%d", c.Size())
	}
}
