package resource

import (
	"context"
	"errors"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned when a reservation would exceed the
// memory budget.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits.
type Config struct {
	// MemoryLimitBytes is the hard limit for cell and tree memory.
	// If 0, no hard limit is enforced (only tracking).
	MemoryLimitBytes int64

	// MaxConcurrentRebalances bounds the number of rebalance windows held at
	// the same time. If 0, rebalances are not bounded.
	MaxConcurrentRebalances int64

	// RetriesPerSec throttles operation restarts. If 0, unlimited.
	RetriesPerSec float64

	// RetryBurst is the token bucket size. Defaults to 1 when RetriesPerSec
	// is set.
	RetryBurst int
}

// Controller tracks memory and throttles rebalances and retries.
type Controller struct {
	cfg Config

	memSem  *semaphore.Weighted // nil if unlimited
	memUsed atomic.Int64

	rebalanceSem *semaphore.Weighted // nil if unbounded

	retryLimiter *rate.Limiter // nil if unlimited
}

// NewController creates a new resource controller.
func NewController(cfg Config) *Controller {
	c := &Controller{cfg: cfg}

	if cfg.MemoryLimitBytes > 0 {
		c.memSem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}

	if cfg.MaxConcurrentRebalances > 0 {
		c.rebalanceSem = semaphore.NewWeighted(cfg.MaxConcurrentRebalances)
	}

	if cfg.RetriesPerSec > 0 {
		burst := cfg.RetryBurst
		if burst <= 0 {
			burst = 1
		}
		c.retryLimiter = rate.NewLimiter(rate.Limit(cfg.RetriesPerSec), burst)
	}

	return c
}

// AcquireMemory reserves bytes against the budget without blocking.
func (c *Controller) AcquireMemory(bytes int64) error {
	if c == nil || bytes <= 0 {
		return nil
	}

	if c.memSem != nil && !c.memSem.TryAcquire(bytes) {
		return ErrMemoryLimitExceeded
	}

	c.memUsed.Add(bytes)
	return nil
}

// ReleaseMemory returns a reservation.
func (c *Controller) ReleaseMemory(bytes int64) {
	if c == nil || bytes <= 0 {
		return
	}

	if c.memSem != nil {
		c.memSem.Release(bytes)
	}
	c.memUsed.Add(-bytes)
}

// MemoryUsage returns the reserved bytes.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit returns the configured memory limit in bytes (0 if unlimited).
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// AcquireRebalance blocks until a rebalance slot is free.
func (c *Controller) AcquireRebalance(ctx context.Context) error {
	if c == nil || c.rebalanceSem == nil {
		return nil
	}
	return c.rebalanceSem.Acquire(ctx, 1)
}

// ReleaseRebalance frees a rebalance slot.
func (c *Controller) ReleaseRebalance() {
	if c == nil || c.rebalanceSem == nil {
		return
	}
	c.rebalanceSem.Release(1)
}

// WaitRetry blocks until the retry throttle admits one more restart.
func (c *Controller) WaitRetry(ctx context.Context) error {
	if c == nil || c.retryLimiter == nil {
		return nil
	}
	return c.retryLimiter.Wait(ctx)
}
