package resource

import (
	"bytes"
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestController_Reserve(t *testing.T) {
	c := NewController(Config{MemoryLimitBytes: 100})
	assert.Equal(t, int64(100), c.MemoryLimit())

	a, err := c.Reserve(50)
	require.NoError(t, err)
	b, err := c.Reserve(40)
	require.NoError(t, err)
	assert.Equal(t, int64(90), c.MemoryUsage())

	_, err = c.Reserve(20)
	assert.ErrorIs(t, err, ErrMemoryLimitExceeded)
	assert.ErrorContains(t, err, "want 20 bytes, 90 of 100 in use")
	assert.Equal(t, int64(90), c.MemoryUsage())

	a.Release()
	a.Release()
	assert.Equal(t, int64(40), c.MemoryUsage())

	d, err := c.Reserve(60)
	require.NoError(t, err)
	assert.Equal(t, int64(60), d.Bytes())
	b.Release()
	d.Release()
	assert.Zero(t, c.MemoryUsage())
}

func TestController_ReserveUnlimited(t *testing.T) {
	c := NewController(Config{})

	r, err := c.Reserve(1 << 40)
	require.NoError(t, err)
	assert.Equal(t, int64(1<<40), c.MemoryUsage())
	r.Release()
	assert.Zero(t, c.MemoryUsage())

	empty, err := c.Reserve(-5)
	require.NoError(t, err)
	assert.Zero(t, empty.Bytes())
	empty.Release()
	assert.Zero(t, c.MemoryUsage())
}

func TestController_Worker(t *testing.T) {
	c := NewController(Config{MaxWorkers: 2})
	assert.Equal(t, 2, c.MaxWorkers())

	ctx := context.Background()
	first, err := c.Worker(ctx)
	require.NoError(t, err)
	_, err = c.Worker(ctx)
	require.NoError(t, err)

	tctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
	defer cancel()
	_, err = c.Worker(tctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)

	first()
	first()
	third, err := c.Worker(ctx)
	require.NoError(t, err)
	third()

	assert.Equal(t, 1, NewController(Config{}).MaxWorkers())
}

func TestController_Nil(t *testing.T) {
	var c *Controller
	ctx := context.Background()

	r, err := c.Reserve(1 << 40)
	require.NoError(t, err)
	r.Release()
	assert.Zero(t, c.MemoryUsage())
	assert.Zero(t, c.MemoryLimit())
	assert.Zero(t, c.MaxWorkers())

	done, err := c.Worker(ctx)
	require.NoError(t, err)
	done()
	assert.NoError(t, c.Throttle(ctx, 1<<30))
}

func TestController_ThrottleAboveBurst(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})

	// Twice the burst: the first installment is free, the second waits about
	// a second.
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.Throttle(ctx, 2<<20))
}

func TestThrottledReader(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1 << 20})
	src := bytes.Repeat([]byte{0xAB}, 4096)

	got, err := io.ReadAll(ThrottledReader(context.Background(), bytes.NewReader(src), c))
	require.NoError(t, err)
	assert.Equal(t, src, got)
}

func TestThrottledReader_Canceled(t *testing.T) {
	c := NewController(Config{IOLimitBytesPerSec: 1})
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := io.ReadAll(ThrottledReader(ctx, bytes.NewReader(make([]byte, 64)), c))
	assert.ErrorIs(t, err, context.Canceled)
}
