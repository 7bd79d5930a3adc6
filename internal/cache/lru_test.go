package cache

import "testing"

func TestSetAndGet(t *testing.T) {
	c := New[string](4)
	c.Set("a", "1")

	v, ok := c.Get("a")
	if !ok || v != "1" {
		t.Errorf("Get(a) = %q, %t", v, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

func TestCapacityEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[int](2)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)

	if _, ok := c.Get("a"); ok {
		t.Error("oldest entry should have been evicted")
	}
	if c.Len() != 2 {
		t.Errorf("Len = %d, want 2", c.Len())
	}
}

func TestReadTouchesEntry(t *testing.T) {
	c := New[int](2)
	c.Set("a", 1)
	c.Set("b", 2)

	// Touch a so b becomes the eviction victim.
	if _, ok := c.Get("a"); !ok {
		t.Fatal("expected a to be cached")
	}
	c.Set("c", 3)

	if _, ok := c.Get("a"); !ok {
		t.Error("touched entry was evicted")
	}
	if _, ok := c.Get("b"); ok {
		t.Error("untouched entry should have been evicted")
	}
}

func TestSetSupersedesExisting(t *testing.T) {
	c := New[int](2)
	c.Set("a", 1)
	c.Set("a", 2)

	if v, _ := c.Get("a"); v != 2 {
		t.Errorf("Get(a) = %d, want newer write to win", v)
	}
	if c.Len() != 1 {
		t.Errorf("Len = %d, want 1", c.Len())
	}
}
