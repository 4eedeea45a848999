package measx

import (
	"context"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/measx/layout"
	"github.com/hupe1980/measx/resource"
	"github.com/hupe1980/measx/testutil"
)

// analyzerFile writes frames in the 3p-nocurrent layout. Frame i holds time
// ticks 10*i, UL12 = 23000+i and harmonic k of UL12 = 100*k+i.
func analyzerFile(t *testing.T, frames int) string {
	t.Helper()
	b := testutil.NewSeries(287, frames)
	for i := 0; i < frames; i++ {
		b.PutU32(i, 15, uint32(10*i))
		b.PutU16(i, 23, uint16(23000+i))
		for k := 0; k < 40; k++ {
			b.PutU16(i, 31+2*k, uint16(100*k+i))
		}
	}
	return b.WriteFile(t, "analyzer.dat")
}

func TestFetchChannels(t *testing.T) {
	ctx := context.Background()
	cfg, err := layout.Preset(layout.Preset3PNoCurrent)
	require.NoError(t, err)
	path := analyzerFile(t, 10)
	names := []string{"time", "UL12", "UL12_h"}

	t.Run("All", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 4096, MaxWorkers: 2})
		sf, err := OpenSeries(path, WithResourceController(rc))
		require.NoError(t, err)
		defer sf.Close()

		batch, err := FetchChannels(ctx, sf, cfg, names, All())
		require.NoError(t, err)
		assert.Equal(t, names, batch.Names)
		assert.Equal(t, int64(10*(2*8+4+40*4)), rc.MemoryUsage())

		rows, cols := batch.Block("time").Shape()
		assert.Equal(t, 10, rows)
		assert.Equal(t, 2, cols)
		assert.InDelta(t, 9.0, batch.Block("time").Float64(9, 0), 1e-9)

		ul12 := batch.Block("UL12").(*Matrix[float32])
		assert.InDelta(t, 23003*layout.VoltageScale, ul12.At(3, 0), 1e-3)

		h := batch.Block("UL12_h")
		rows, cols = h.Shape()
		assert.Equal(t, 10, rows)
		assert.Equal(t, 40, cols)
		assert.InDelta(t, float64(3905)*layout.VoltageScale, h.Float64(5, 39), 1e-3)

		assert.Nil(t, batch.Block("UL23"))

		batch.Release()
		batch.Release()
		assert.Zero(t, rc.MemoryUsage())
	})

	t.Run("Selection", func(t *testing.T) {
		sf, err := OpenSeries(path)
		require.NoError(t, err)
		defer sf.Close()

		batch, err := FetchChannels(ctx, sf, cfg, []string{"UL12"}, Window{Frames: roaring.BitmapOf(1, 7, 500)})
		require.NoError(t, err)
		defer batch.Release()

		blk := batch.Block("UL12")
		rows, _ := blk.Shape()
		require.Equal(t, 2, rows)
		assert.InDelta(t, 23007*layout.VoltageScale, blk.Float64(1, 0), 1e-3)
	})

	t.Run("MemoryLimit", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MemoryLimitBytes: 1000})
		sf, err := OpenSeries(path, WithResourceController(rc))
		require.NoError(t, err)
		defer sf.Close()

		_, err = FetchChannels(ctx, sf, cfg, names, All())
		assert.ErrorIs(t, err, resource.ErrMemoryLimitExceeded)
		assert.Zero(t, rc.MemoryUsage())

		// A narrower window fits.
		batch, err := FetchChannels(ctx, sf, cfg, names, Window{Start: 0, Count: 5})
		require.NoError(t, err)
		assert.Equal(t, int64(900), rc.MemoryUsage())
		batch.Release()
	})

	t.Run("UnknownChannel", func(t *testing.T) {
		sf, err := OpenSeries(path)
		require.NoError(t, err)
		defer sf.Close()

		_, err = FetchChannels(ctx, sf, cfg, []string{"time", "I_L1"}, All())
		assert.ErrorIs(t, err, ErrUnknownChannel)
	})

	t.Run("FrameSizeMismatch", func(t *testing.T) {
		sf, err := OpenSeries(testutil.NewSeries(8, 2).WriteFile(t, "small.dat"))
		require.NoError(t, err)
		defer sf.Close()

		_, err = FetchChannels(ctx, sf, cfg, []string{"time"}, All())
		assert.ErrorIs(t, err, layout.ErrFrameSizeMismatch)
	})

	t.Run("Canceled", func(t *testing.T) {
		rc := resource.NewController(resource.Config{MaxWorkers: 1})
		sf, err := OpenSeries(path, WithResourceController(rc))
		require.NoError(t, err)
		defer sf.Close()

		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err = FetchChannels(cctx, sf, cfg, names, All())
		assert.ErrorIs(t, err, context.Canceled)
		assert.Zero(t, rc.MemoryUsage())
	})
}

func TestWindow_Rows(t *testing.T) {
	assert.Equal(t, 10, All().rows(10))
	assert.Equal(t, 3, Window{Start: 7, Count: 5}.rows(10))
	assert.Equal(t, 0, Window{Start: 10, Count: 5}.rows(10))
	assert.Equal(t, 2, Window{Frames: roaring.BitmapOf(0, 9, 10)}.rows(10))
	assert.Equal(t, 0, Window{Frames: roaring.New()}.rows(10))
}
