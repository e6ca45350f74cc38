package cache

import (
	"errors"
	"slices"
	"strconv"
	"sync"
	"testing"
)

func TestLRUEvictsLeastRecentlyUsed(t *testing.T) {
	c := New[string, int](3)
	c.Add("a", 1)
	c.Add("b", 2)
	c.Add("c", 3)
	if _, ok := c.Get("a"); !ok {
		t.Fatal("Get(a) missed")
	}
	c.Add("d", 4)

	if _, ok := c.Get("b"); ok {
		t.Error("b survived eviction")
	}
	if got := c.Keys(); !slices.Equal(got, []string{"d", "a", "c"}) {
		t.Errorf("Keys() = %v, want [d a c]", got)
	}
	if s := c.Stats(); s.Evictions != 1 || s.Len != 3 || s.Limit != 3 {
		t.Errorf("Stats() = %+v", s)
	}
}

func TestLRUAddReplaces(t *testing.T) {
	c := New[int, string](2)
	c.Add(1, "x")
	c.Add(2, "y")
	c.Add(1, "z")
	if v, _ := c.Get(1); v != "z" {
		t.Errorf("Get(1) = %q, want z", v)
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}
	if got := c.Keys(); !slices.Equal(got, []int{1, 2}) {
		t.Errorf("Keys() = %v, want [1 2]", got)
	}
}

func TestLRUGetOrCreate(t *testing.T) {
	c := New[string, int](4)
	calls := 0
	create := func() (int, error) {
		calls++
		return 42, nil
	}
	for i := 0; i < 3; i++ {
		v, err := c.GetOrCreate("k", create)
		if err != nil || v != 42 {
			t.Fatalf("GetOrCreate() = %d, %v", v, err)
		}
	}
	if calls != 1 {
		t.Errorf("create called %d times, want 1", calls)
	}
	s := c.Stats()
	if s.Hits != 2 || s.Misses != 1 {
		t.Errorf("Stats() = %+v, want 2 hits 1 miss", s)
	}
	if r := s.HitRate(); r < 0.66 || r > 0.67 {
		t.Errorf("HitRate() = %v", r)
	}
}

func TestLRUGetOrCreateDoesNotCacheErrors(t *testing.T) {
	c := New[string, int](4)
	boom := errors.New("boom")
	if _, err := c.GetOrCreate("k", func() (int, error) { return 0, boom }); !errors.Is(err, boom) {
		t.Fatalf("error = %v, want boom", err)
	}
	if c.Len() != 0 {
		t.Fatal("failed creation was cached")
	}
	v, err := c.GetOrCreate("k", func() (int, error) { return 7, nil })
	if err != nil || v != 7 {
		t.Errorf("retry = %d, %v", v, err)
	}
}

func TestLRURemovePurge(t *testing.T) {
	c := New[int, int](0)
	if c.Stats().Limit != DefaultLimit {
		t.Errorf("limit = %d, want %d", c.Stats().Limit, DefaultLimit)
	}
	for i := 0; i < 5; i++ {
		c.Add(i, i)
	}
	if !c.Remove(2) || c.Remove(2) {
		t.Error("Remove(2) should succeed once")
	}
	if got := c.Keys(); !slices.Equal(got, []int{4, 3, 1, 0}) {
		t.Errorf("Keys() = %v", got)
	}
	c.Purge()
	if c.Len() != 0 || len(c.Keys()) != 0 {
		t.Error("Purge() left entries")
	}
	c.Add(9, 9)
	if v, ok := c.Get(9); !ok || v != 9 {
		t.Error("cache unusable after Purge")
	}
}

func TestLRUConcurrent(t *testing.T) {
	c := New[string, int](16)
	var wg sync.WaitGroup
	for g := 0; g < 8; g++ {
		wg.Add(1)
		go func(g int) {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				key := strconv.Itoa((g + i) % 32)
				if _, err := c.GetOrCreate(key, func() (int, error) { return i, nil }); err != nil {
					t.Error(err)
					return
				}
			}
		}(g)
	}
	wg.Wait()
	if n := c.Len(); n > 16 {
		t.Errorf("Len() = %d exceeds limit 16", n)
	}
}

func BenchmarkLRUGet(b *testing.B) {
	c := New[string, int](128)
	for i := 0; i < 100; i++ {
		c.Add(strconv.Itoa(i), i)
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Get("50")
	}
}
