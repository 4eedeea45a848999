// Package resource bounds the memory, concurrency and I/O throughput used by
// measx extraction and download paths.
package resource

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"
)

// ErrMemoryLimitExceeded is returned by Reserve when the request does not fit.
var ErrMemoryLimitExceeded = errors.New("memory limit exceeded")

// Config holds resource limits. Zero means unlimited, except MaxWorkers
// which defaults to 1.
type Config struct {
	// MemoryLimitBytes caps the result buffers reserved at the same time.
	MemoryLimitBytes int64
	// MaxWorkers caps concurrent channel extractions.
	MaxWorkers int64
	// IOLimitBytesPerSec caps remote download throughput.
	IOLimitBytesPerSec int64
}

// Controller hands out memory reservations, worker slots and download
// bandwidth. A nil *Controller imposes no limits.
type Controller struct {
	cfg Config

	mem     *semaphore.Weighted
	memUsed atomic.Int64
	workers *semaphore.Weighted
	io      *rate.Limiter
}

// NewController creates a controller for cfg.
func NewController(cfg Config) *Controller {
	if cfg.MaxWorkers <= 0 {
		cfg.MaxWorkers = 1
	}
	c := &Controller{cfg: cfg, workers: semaphore.NewWeighted(cfg.MaxWorkers)}
	if cfg.MemoryLimitBytes > 0 {
		c.mem = semaphore.NewWeighted(cfg.MemoryLimitBytes)
	}
	if cfg.IOLimitBytesPerSec > 0 {
		// One second of traffic may burst.
		c.io = rate.NewLimiter(rate.Limit(cfg.IOLimitBytesPerSec), int(cfg.IOLimitBytesPerSec))
	}
	return c
}

// Reservation is memory booked with Reserve.
type Reservation struct {
	c    *Controller
	n    int64
	once sync.Once
}

// Bytes is the reserved amount.
func (r *Reservation) Bytes() int64 { return r.n }

// Release returns the memory. Later calls do nothing.
func (r *Reservation) Release() {
	r.once.Do(func() {
		if r.c == nil || r.n <= 0 {
			return
		}
		if r.c.mem != nil {
			r.c.mem.Release(r.n)
		}
		r.c.memUsed.Add(-r.n)
	})
}

// Reserve books n bytes without blocking. It fails with
// ErrMemoryLimitExceeded when the limit would be crossed.
func (c *Controller) Reserve(n int64) (*Reservation, error) {
	r := &Reservation{c: c, n: max(n, 0)}
	if c == nil || r.n == 0 {
		return r, nil
	}
	if c.mem != nil && !c.mem.TryAcquire(r.n) {
		return nil, fmt.Errorf("%w: want %d bytes, %d of %d in use",
			ErrMemoryLimitExceeded, r.n, c.memUsed.Load(), c.cfg.MemoryLimitBytes)
	}
	c.memUsed.Add(r.n)
	return r, nil
}

// MemoryUsage is the total of unreleased reservations.
func (c *Controller) MemoryUsage() int64 {
	if c == nil {
		return 0
	}
	return c.memUsed.Load()
}

// MemoryLimit is the configured limit, 0 when unlimited.
func (c *Controller) MemoryLimit() int64 {
	if c == nil {
		return 0
	}
	return c.cfg.MemoryLimitBytes
}

// MaxWorkers is the configured worker limit, 0 for a nil controller.
func (c *Controller) MaxWorkers() int {
	if c == nil {
		return 0
	}
	return int(c.cfg.MaxWorkers)
}

// Worker blocks until a worker slot is free or ctx is done. The returned
// func gives the slot back.
func (c *Controller) Worker(ctx context.Context) (func(), error) {
	if c == nil {
		return func() {}, ctx.Err()
	}
	if err := c.workers.Acquire(ctx, 1); err != nil {
		return nil, err
	}
	var once sync.Once
	return func() { once.Do(func() { c.workers.Release(1) }) }, nil
}

// Throttle waits until n bytes of download budget are available. Requests
// above the burst are paid in burst-sized installments.
func (c *Controller) Throttle(ctx context.Context, n int) error {
	if c == nil || c.io == nil {
		return ctx.Err()
	}
	for burst := c.io.Burst(); n > 0; n -= burst {
		if err := c.io.WaitN(ctx, min(n, burst)); err != nil {
			return err
		}
	}
	return nil
}
