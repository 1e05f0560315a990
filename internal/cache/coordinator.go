package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mantseakai/enhanced-ai-insurance-agent-sub000/internal/domain"
)

// CoordinatorMetrics are the running observability counters for the
// composed cache: per-operation latency moving average, peak latency,
// and the most recent backend error.
type CoordinatorMetrics struct {
	Operations  int64         `json:"operations"`
	AvgLatency  time.Duration `json:"avg_latency"`
	PeakLatency time.Duration `json:"peak_latency"`
	LastError   string        `json:"last_error,omitempty"`
	LastErrorAt time.Time     `json:"last_error_at,omitempty"`
}

// Coordinator presents a single get/set/delete/clear surface over a
// primary and a fallback Store.
//
// Reads try the primary first; a fallback hit is written back into the
// primary by a detached background task whose failure is logged, never
// raised. Writes succeed when either tier accepts them, so one dead
// backend degrades the cache instead of disabling it.
type Coordinator struct {
	primary  Store
	fallback Store
	logger   *slog.Logger

	mu      sync.Mutex
	metrics CoordinatorMetrics

	backfills sync.WaitGroup
}

// NewCoordinator composes the two tiers. fallback may be nil when a
// deployment runs a single tier.
func NewCoordinator(primary, fallback Store, logger *slog.Logger) *Coordinator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Coordinator{primary: primary, fallback: fallback, logger: logger}
}

// Get returns the cached value, consulting the fallback tier when the
// primary misses or errors.
func (c *Coordinator) Get(ctx context.Context, key string) ([]byte, bool) {
	defer c.observe(time.Now())

	value, ok, err := c.primary.Get(ctx, key)
	if err != nil {
		c.recordError("primary get", err)
	} else if ok {
		return value, true
	}

	if c.fallback == nil {
		return nil, false
	}

	value, ok, err = c.fallback.Get(ctx, key)
	if err != nil {
		c.recordError("fallback get", err)
		return nil, false
	}
	if !ok {
		return nil, false
	}

	c.backfillPrimary(key, value)
	return value, true
}

// backfillPrimary repopulates the primary tier after a fallback hit.
// Deliberately detached from the request: the caller already has the
// value, and a failed backfill only costs a future primary miss.
func (c *Coordinator) backfillPrimary(key string, value []byte) {
	c.backfills.Add(1)
	go func() {
		defer c.backfills.Done()

		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()

		if err := c.primary.Set(ctx, key, value, 0); err != nil {
			c.recordError("primary backfill", err)
		}
	}()
}

// Set writes to both tiers. It fails only when every reachable tier
// rejects the write.
func (c *Coordinator) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	defer c.observe(time.Now())

	primaryErr := c.primary.Set(ctx, key, value, ttl)
	if primaryErr != nil {
		c.recordError("primary set", primaryErr)
	}

	var fallbackErr error
	if c.fallback != nil {
		fallbackErr = c.fallback.Set(ctx, key, value, ttl)
		if fallbackErr != nil {
			c.recordError("fallback set", fallbackErr)
		}
	}

	if primaryErr == nil || (c.fallback != nil && fallbackErr == nil) {
		return nil
	}
	return fmt.Errorf("%w: set %s: %v", domain.ErrCacheBackend, key, primaryErr)
}

// Delete removes key from both tiers, reporting whether either held it.
func (c *Coordinator) Delete(ctx context.Context, key string) bool {
	defer c.observe(time.Now())

	deleted := false
	if ok, err := c.primary.Delete(ctx, key); err != nil {
		c.recordError("primary delete", err)
	} else if ok {
		deleted = true
	}
	if c.fallback != nil {
		if ok, err := c.fallback.Delete(ctx, key); err != nil {
			c.recordError("fallback delete", err)
		} else if ok {
			deleted = true
		}
	}
	return deleted
}

// Clear removes matching entries from both tiers and returns the larger
// of the two counts, since the tiers usually mirror each other.
func (c *Coordinator) Clear(ctx context.Context, pattern string) int {
	defer c.observe(time.Now())

	count := 0
	if n, err := c.primary.Clear(ctx, pattern); err != nil {
		c.recordError("primary clear", err)
	} else {
		count = n
	}
	if c.fallback != nil {
		if n, err := c.fallback.Clear(ctx, pattern); err != nil {
			c.recordError("fallback clear", err)
		} else if n > count {
			count = n
		}
	}
	return count
}

// Health reports the composed status: healthy while the primary
// responds, degraded when only the fallback does, unhealthy when
// neither is reachable.
func (c *Coordinator) Health(ctx context.Context) domain.HealthStatus {
	primaryUp := c.primary.Ping(ctx) == nil
	if primaryUp {
		return domain.StatusHealthy
	}
	if c.fallback != nil && c.fallback.Ping(ctx) == nil {
		return domain.StatusDegraded
	}
	return domain.StatusUnhealthy
}

// Stats merges the per-tier counters.
func (c *Coordinator) Stats(ctx context.Context) Stats {
	merged, err := c.primary.Stats(ctx)
	if err != nil {
		c.recordError("primary stats", err)
	}
	if c.fallback != nil {
		fs, err := c.fallback.Stats(ctx)
		if err != nil {
			c.recordError("fallback stats", err)
		} else {
			merged.Hits += fs.Hits
			merged.Misses += fs.Misses
			merged.Sets += fs.Sets
			merged.Deletes += fs.Deletes
			merged.Errors += fs.Errors
			merged.Size += fs.Size
		}
	}
	return merged
}

// Metrics returns a copy of the coordinator's latency counters.
func (c *Coordinator) Metrics() CoordinatorMetrics {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.metrics
}

// Close waits for in-flight backfills and closes both tiers.
func (c *Coordinator) Close() error {
	c.backfills.Wait()

	err := c.primary.Close()
	if c.fallback != nil {
		if ferr := c.fallback.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

func (c *Coordinator) observe(start time.Time) {
	elapsed := time.Since(start)

	c.mu.Lock()
	defer c.mu.Unlock()

	c.metrics.Operations++
	// Simple moving average over all operations so far.
	n := c.metrics.Operations
	c.metrics.AvgLatency += (elapsed - c.metrics.AvgLatency) / time.Duration(n)
	if elapsed > c.metrics.PeakLatency {
		c.metrics.PeakLatency = elapsed
	}
}

func (c *Coordinator) recordError(op string, err error) {
	c.logger.Warn("cache backend error", slog.String("op", op), slog.String("error", err.Error()))

	c.mu.Lock()
	defer c.mu.Unlock()
	c.metrics.LastError = op + ": " + err.Error()
	c.metrics.LastErrorAt = time.Now()
}
