package embeddings

import (
	"fmt"
	"testing"
	"time"
)

func TestCacheHitAndMiss(t *testing.T) {
	c := newVectorCache(4, time.Minute)

	c.Put("a", []float32{1, 2})
	if vec, ok := c.Get("a"); !ok || len(vec) != 2 {
		t.Fatalf("Get(a) = %v, %v; want cached vector", vec, ok)
	}
	if _, ok := c.Get("missing"); ok {
		t.Error("Get(missing) should miss")
	}
}

func TestCacheTTLExpiry(t *testing.T) {
	current := time.Unix(1000, 0)
	c := newVectorCache(4, 10*time.Second)
	c.now = func() time.Time { return current }

	c.Put("a", []float32{1})

	current = current.Add(15 * time.Second)
	if _, ok := c.Get("a"); ok {
		t.Fatal("expired entry should read as a miss")
	}

	// GetStale still serves expired entries for degraded mode.
	if _, ok := c.GetStale("a"); !ok {
		t.Error("GetStale should serve an expired entry")
	}
}

func TestCacheEvictsOldestAtCapacity(t *testing.T) {
	c := newVectorCache(3, 0)

	for i := 0; i < 4; i++ {
		c.Put(fmt.Sprintf("k%d", i), []float32{float32(i)})
	}

	if _, ok := c.Get("k0"); ok {
		t.Error("oldest entry should have been evicted")
	}
	for _, k := range []string{"k1", "k2", "k3"} {
		if _, ok := c.Get(k); !ok {
			t.Errorf("entry %s should survive eviction", k)
		}
	}
	if c.Len() != 3 {
		t.Errorf("Len = %d, want 3", c.Len())
	}
}

func TestCachePutRefreshesExisting(t *testing.T) {
	c := newVectorCache(2, 0)

	c.Put("a", []float32{1})
	c.Put("b", []float32{2})
	c.Put("a", []float32{9}) // refresh moves a to the back
	c.Put("c", []float32{3}) // evicts b, the oldest

	if _, ok := c.Get("b"); ok {
		t.Error("b should have been evicted after a was refreshed")
	}
	if vec, ok := c.Get("a"); !ok || vec[0] != 9 {
		t.Errorf("Get(a) = %v, %v; want refreshed value 9", vec, ok)
	}
}
