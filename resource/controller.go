// Package resource provides a small governor for the memory and background
// work an index instance may consume.
package resource

import (
	"context"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for managed node memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// ConsolidationBytesPerSec caps how many bytes per second opportunistic
	// chain consolidation may rewrite. If 0, unlimited. Foreground inserts,
	// deletes and scans are never throttled; over-budget consolidations are
	// simply skipped until the next opportunity.
	ConsolidationBytesPerSec int64
}

// Controller manages memory accounting and consolidation throttling for one
// or more index instances. A nil Controller imposes no limits.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	consLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.ConsolidationBytesPerSec > 0 {
		c.consLimiter = rate.NewLimiter(rate.Limit(cfg.ConsolidationBytesPerSec), int(cfg.ConsolidationBytesPerSec))
	}

	return c
}

// AcquireMemory attempts to reserve memory, blocking until it is available
// or ctx is canceled.
func (c *Controller) AcquireMemory(ctx context.Context, bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}
	if c.memSem != nil {
		if err := c.memSem.Acquire(ctx, bytes); err != nil {
			return err
		}
	}
	c.memUsed.Add(bytes)
	return nil
}

// TryAcquireMemory attempts to reserve memory without blocking.
// Returns true if acquired, false if the limit would be exceeded.
func (c *Controller) TryAcquireMemory(bytes int64) bool {
	if c == nil || bytes <= 0 {
		return true
	}
	if c.memSem != nil {
		if !c.memSem.TryAcquire(bytes) {
			return false
		}
	}
	c.memUsed.Add(bytes)
	return true
}

// ReleaseMemory releases reserved memory.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}
	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the currently reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// AllowConsolidation reports whether a consolidation rewriting roughly the
// given number of bytes fits the configured rate budget. It never blocks.
func (c *Controller) AllowConsolidation(bytes int) bool {
	if c == nil || c.consLimiter == nil {
		return true
	}
	if bytes <= 0 {
		bytes = 1
	}
	if burst := c.consLimiter.Burst(); bytes > burst {
		bytes = burst
	}
	return c.consLimiter.AllowN(time.Now(), bytes)
}
