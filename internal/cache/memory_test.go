package cache

import (
	"context"
	"fmt"
	"testing"
	"time"
)

func TestMemoryStoreGetSet(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)

	if _, ok, err := s.Get(ctx, "missing"); err != nil || ok {
		t.Fatalf("Get(missing): got ok=%v err=%v, want miss", ok, err)
	}

	if err := s.Set(ctx, "k1", []byte("v1"), 0); err != nil {
		t.Fatalf("Set: %v", err)
	}
	value, ok, err := s.Get(ctx, "k1")
	if err != nil || !ok {
		t.Fatalf("Get(k1): got ok=%v err=%v, want hit", ok, err)
	}
	if string(value) != "v1" {
		t.Errorf("Get(k1) = %q, want %q", value, "v1")
	}
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)

	if err := s.Set(ctx, "short", []byte("v"), 10*time.Millisecond); err != nil {
		t.Fatalf("Set: %v", err)
	}
	if _, ok, _ := s.Get(ctx, "short"); !ok {
		t.Fatal("entry expired before its TTL")
	}

	time.Sleep(25 * time.Millisecond)
	if _, ok, _ := s.Get(ctx, "short"); ok {
		t.Fatal("entry still readable after TTL")
	}

	// An expired read counts as a miss.
	stats, err := s.Stats(ctx)
	if err != nil {
		t.Fatalf("Stats: %v", err)
	}
	if stats.Misses != 1 {
		t.Errorf("Misses = %d, want 1", stats.Misses)
	}
}

// Eviction removes the earliest-inserted entry, not the least recently
// used one: reading an old entry must not save it.
func TestMemoryStoreInsertionOrderEviction(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(3, time.Minute)

	for i := 1; i <= 3; i++ {
		key := fmt.Sprintf("k%d", i)
		if err := s.Set(ctx, key, []byte(key), 0); err != nil {
			t.Fatalf("Set(%s): %v", key, err)
		}
	}

	// Touch the oldest entry. Under LRU this would protect it.
	if _, ok, _ := s.Get(ctx, "k1"); !ok {
		t.Fatal("Get(k1): want hit")
	}

	if err := s.Set(ctx, "k4", []byte("k4"), 0); err != nil {
		t.Fatalf("Set(k4): %v", err)
	}

	if _, ok, _ := s.Get(ctx, "k1"); ok {
		t.Error("k1 survived eviction; recently-read entries must not be protected")
	}
	for _, key := range []string{"k2", "k3", "k4"} {
		if _, ok, _ := s.Get(ctx, key); !ok {
			t.Errorf("Get(%s): want hit after eviction", key)
		}
	}
}

// Overwriting a key keeps its original insertion position.
func TestMemoryStoreOverwriteKeepsPosition(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(2, time.Minute)

	s.Set(ctx, "a", []byte("1"), 0)
	s.Set(ctx, "b", []byte("1"), 0)
	s.Set(ctx, "a", []byte("2"), 0) // overwrite, still oldest
	s.Set(ctx, "c", []byte("1"), 0) // forces eviction

	if _, ok, _ := s.Get(ctx, "a"); ok {
		t.Error("overwritten key moved to the back of the eviction order")
	}
	if _, ok, _ := s.Get(ctx, "b"); !ok {
		t.Error("Get(b): want hit")
	}
}

func TestMemoryStoreClear(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)

	keys := []string{"responses:chat:acme:u1:x:v1", "responses:chat:acme:u2:y:v1", "knowledge:search:acme:u1:z:v1"}
	for _, key := range keys {
		s.Set(ctx, key, []byte("v"), 0)
	}

	tests := []struct {
		pattern string
		want    int
		left    int64
	}{
		{"responses:*", 2, 1},
		{"nope:*", 0, 1},
		{"*", 1, 0},
	}
	for _, tt := range tests {
		n, err := s.Clear(ctx, tt.pattern)
		if err != nil {
			t.Fatalf("Clear(%q): %v", tt.pattern, err)
		}
		if n != tt.want {
			t.Errorf("Clear(%q) = %d, want %d", tt.pattern, n, tt.want)
		}
		stats, _ := s.Stats(ctx)
		if stats.Size != tt.left {
			t.Errorf("after Clear(%q): Size = %d, want %d", tt.pattern, stats.Size, tt.left)
		}
	}
}

func TestMemoryStoreDelete(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(10, time.Minute)

	s.Set(ctx, "k", []byte("v"), 0)
	if ok, err := s.Delete(ctx, "k"); err != nil || !ok {
		t.Fatalf("Delete(k): got ok=%v err=%v, want true", ok, err)
	}
	if ok, err := s.Delete(ctx, "k"); err != nil || ok {
		t.Fatalf("Delete(k) again: got ok=%v err=%v, want false", ok, err)
	}
}

// Churn under capacity must not accumulate stale insertion-order
// slots for keys that were deleted, cleared or expired.
func TestMemoryStoreOrderBoundedUnderChurn(t *testing.T) {
	ctx := context.Background()
	s := NewMemoryStore(100, time.Minute)

	for i := 0; i < 500; i++ {
		key := fmt.Sprintf("churn:%d", i)
		s.Set(ctx, key, []byte("v"), 0)
		if i%2 == 0 {
			s.Delete(ctx, key)
		} else {
			s.Clear(ctx, key)
		}
	}
	s.Set(ctx, "expiring", []byte("v"), time.Nanosecond)
	time.Sleep(time.Millisecond)
	s.Get(ctx, "expiring") // lazy expiry removes it

	s.mu.Lock()
	orderLen, entryLen := len(s.order), len(s.entries)
	s.mu.Unlock()
	if entryLen != 0 {
		t.Fatalf("entries = %d, want 0 after churn", entryLen)
	}
	if orderLen != 0 {
		t.Errorf("order holds %d stale slots, want 0", orderLen)
	}
}

func TestMemoryStoreSweep(t *testing.T) {
	s := NewMemoryStore(10, time.Minute, WithSweepInterval(5*time.Millisecond))
	defer s.Close()
	ctx := context.Background()

	s.Set(ctx, "ephemeral", []byte("v"), time.Millisecond)
	s.Set(ctx, "durable", []byte("v"), time.Minute)

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		stats, _ := s.Stats(ctx)
		if stats.Size == 1 {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("sweep never purged the expired entry")
}
