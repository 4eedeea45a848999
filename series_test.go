package measx

import (
	"bytes"
	"errors"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/measx/internal/mmap"
	"github.com/hupe1980/measx/layout"
	"github.com/hupe1980/measx/testutil"
)

// counterSeries returns frames of frameSize bytes with uint16 i*10+j at
// byte 4+2j of frame i, for j in [0, (frameSize-4)/2).
func counterSeries(t *testing.T, frameSize, frames int) *SeriesFile {
	t.Helper()
	b := testutil.NewSeries(frameSize, frames)
	for i := 0; i < frames; i++ {
		for j := 0; 4+2*j+2 <= frameSize; j++ {
			b.PutU16(i, 4+2*j, uint16(i*10+j))
		}
	}
	sf, err := OpenSeries(b.WriteFile(t, "counter.dat"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = sf.Close() })
	return sf
}

func TestSeriesFile_Geometry(t *testing.T) {
	t.Run("Exact", func(t *testing.T) {
		sf := counterSeries(t, 8, 3)

		fs, err := sf.FrameSize()
		require.NoError(t, err)
		assert.Equal(t, 8, fs)

		n, err := sf.FrameCount()
		require.NoError(t, err)
		assert.Equal(t, 3, n)
		assert.Equal(t, 24, sf.Size())
	})

	t.Run("TrailingBytesIgnored", func(t *testing.T) {
		path := testutil.NewSeries(8, 3).Trailing(5).WriteFile(t, "uneven.dat")
		sf, err := OpenSeries(path)
		require.NoError(t, err)
		defer sf.Close()

		n, err := sf.FrameCount()
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		rem, err := sf.Remainder()
		require.NoError(t, err)
		assert.Equal(t, 5, rem)
	})

	t.Run("FlagsIgnored", func(t *testing.T) {
		path := testutil.NewSeries(16, 2).Flags(0xFFFF).WriteFile(t, "flags.dat")
		sf, err := OpenSeries(path)
		require.NoError(t, err)
		defer sf.Close()

		fs, err := sf.FrameSize()
		require.NoError(t, err)
		assert.Equal(t, 16, fs)
	})

	t.Run("ZeroFrameSize", func(t *testing.T) {
		path := testutil.WriteFile(t, "zero.dat", make([]byte, 32))
		sf, err := OpenSeries(path)
		require.NoError(t, err)
		defer sf.Close()

		n, err := sf.FrameCount()
		require.NoError(t, err)
		assert.Zero(t, n)

		m, err := sf.FetchU16(0, 10, 0, 4, 1)
		require.NoError(t, err)
		assert.Equal(t, 0, m.Rows)
	})

	t.Run("Undersized", func(t *testing.T) {
		path := testutil.WriteFile(t, "short.dat", []byte{0, 0, 8})
		sf, err := OpenSeries(path)
		require.NoError(t, err)
		defer sf.Close()

		_, err = sf.FrameSize()
		require.ErrorIs(t, err, ErrFormat)
		var fe *FormatError
		require.True(t, errors.As(err, &fe))
		assert.Equal(t, 4, fe.Need)
		assert.Equal(t, 3, fe.Have)
		assert.ErrorIs(t, err, mmap.ErrUndersized)

		_, err = sf.FrameCount()
		assert.ErrorIs(t, err, ErrFormat)

		_, err = sf.FetchU32(0, 1, 0, 1, 1)
		assert.ErrorIs(t, err, ErrFormat)
	})
}

func TestSeriesFile_Open_Errors(t *testing.T) {
	_, err := OpenSeries(filepath.Join(t.TempDir(), "missing.dat"))
	require.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, os.ErrNotExist)
	var ioErr *IOError
	require.True(t, errors.As(err, &ioErr))
	assert.Equal(t, "open", ioErr.Op)

	_, err = OpenSeries(testutil.WriteFile(t, "empty.dat", nil))
	assert.ErrorIs(t, err, ErrIO)
	assert.ErrorIs(t, err, mmap.ErrEmptyFile)
}

func TestSeriesFile_Fetch(t *testing.T) {
	sf := counterSeries(t, 12, 5) // 4 uint16 items per frame at bytes 4..11

	t.Run("InRange", func(t *testing.T) {
		m, err := sf.FetchU16(1, 3, 6, 2, 0.5)
		require.NoError(t, err)
		rows, cols := m.Shape()
		assert.Equal(t, 3, rows)
		assert.Equal(t, 2, cols)
		for i := 0; i < rows; i++ {
			for j := 0; j < cols; j++ {
				want := float32(0.5) * float32((1+i)*10+(1+j))
				assert.Equal(t, want, m.At(i, j), "(%d,%d)", i, j)
			}
		}
	})

	t.Run("RowClamp", func(t *testing.T) {
		m, err := sf.FetchU16(3, 10, 4, 1, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Rows)
		assert.Equal(t, []float32{30, 40}, m.Column(0))
	})

	t.Run("ColumnClamp", func(t *testing.T) {
		m, err := sf.FetchU16(0, 1, 8, 10, 1)
		require.NoError(t, err)
		assert.Equal(t, 2, m.Cols)
		assert.Equal(t, []float32{2, 3}, m.Row(0))
	})

	t.Run("BothClamped", func(t *testing.T) {
		m, err := sf.FetchU16(4, 3, 10, 3, 1)
		require.NoError(t, err)
		rows, cols := m.Shape()
		assert.Equal(t, 1, rows)
		assert.Equal(t, 1, cols)
		assert.Equal(t, float32(43), m.At(0, 0))
	})

	t.Run("PartialItemDropped", func(t *testing.T) {
		// 3 bytes remain at offset 9: one whole uint16.
		m, err := sf.FetchU16(0, 1, 9, 5, 1)
		require.NoError(t, err)
		assert.Equal(t, 1, m.Cols)
	})

	t.Run("StartPastEnd", func(t *testing.T) {
		for _, start := range []int{5, 6, 1000} {
			m, err := sf.FetchU16(start, 10, 4, 2, 1)
			require.NoError(t, err)
			assert.Equal(t, 0, m.Rows)
			assert.Equal(t, 2, m.Cols)
			assert.Empty(t, m.Data)
		}
	})

	t.Run("EmptyRequests", func(t *testing.T) {
		cases := []struct {
			name                         string
			start, count, offset, items int
		}{
			{"ZeroItems", 0, 5, 4, 0},
			{"ZeroFrames", 0, 0, 4, 2},
			{"NegativeStart", -1, 5, 4, 2},
			{"NegativeCount", 0, -3, 4, 2},
			{"NegativeOffset", 0, 5, -2, 2},
			{"OffsetAtFrameEnd", 0, 5, 12, 2},
			{"OffsetPastFrameEnd", 0, 5, 100, 2},
		}
		for _, tc := range cases {
			m, err := sf.FetchU16(tc.start, tc.count, tc.offset, tc.items, 1)
			require.NoError(t, err, tc.name)
			assert.Empty(t, m.Data, tc.name)
		}
	})

	t.Run("HugeRequestsDoNotOverflow", func(t *testing.T) {
		m, err := sf.FetchU16(0, math.MaxInt, 4, math.MaxInt, 1)
		require.NoError(t, err)
		rows, cols := m.Shape()
		assert.Equal(t, 5, rows)
		assert.Equal(t, 4, cols)

		m, err = sf.FetchU16(math.MaxInt, math.MaxInt, math.MaxInt, math.MaxInt, 1)
		require.NoError(t, err)
		assert.Empty(t, m.Data)
	})
}

func TestSeriesFile_FetchFormats(t *testing.T) {
	b := testutil.NewSeries(16, 2)
	b.PutI16(0, 4, -2).PutI16(1, 4, 300)
	b.PutU32(0, 8, math.MaxUint32).PutI32(1, 8, -7)
	b.PutI32(0, 12, math.MinInt32).PutU16(1, 12, 65535)
	sf, err := OpenSeries(b.WriteFile(t, "formats.dat"))
	require.NoError(t, err)
	defer sf.Close()

	i16, err := sf.FetchI16(0, 2, 4, 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, []float32{-1, 150}, i16.Data)

	u32, err := sf.FetchU32(0, 1, 8, 1, 0.5)
	require.NoError(t, err)
	assert.Equal(t, 2147483647.5, u32.At(0, 0))

	i32, err := sf.FetchI32(0, 2, 8, 2, 2)
	require.NoError(t, err)
	assert.Equal(t, -2.0, i32.At(0, 0)) // 0xFFFFFFFF as int32
	assert.Equal(t, float64(math.MinInt32)*2, i32.At(0, 1))
	assert.Equal(t, -14.0, i32.At(1, 0))

	u16, err := sf.FetchU16(1, 1, 12, 1, 1)
	require.NoError(t, err)
	assert.Equal(t, float32(65535), u16.At(0, 0))
}

// The record layout places the value at byte 4 so it does not overlap the
// frame length header in frame 0.
func TestSeriesFile_EndToEnd(t *testing.T) {
	b := testutil.NewSeries(8, 3)
	for i := 0; i < 3; i++ {
		b.PutI32(i, 4, int32(i+100))
	}
	sf, err := OpenSeries(b.WriteFile(t, "e2e.dat"))
	require.NoError(t, err)
	defer sf.Close()

	n, err := sf.FrameCount()
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	m, err := sf.FetchU32(0, 10, 4, 1, 0.5)
	require.NoError(t, err)
	rows, cols := m.Shape()
	assert.Equal(t, 3, rows)
	assert.Equal(t, 1, cols)
	assert.Equal(t, []float64{50, 50.5, 51}, m.Data)
}

func TestSeriesFile_FetchChannel(t *testing.T) {
	b := testutil.NewSeries(16, 3)
	for i := 0; i < 3; i++ {
		b.PutU32(i, 4, uint32(1000*(i+1)))
		b.PutU16(i, 8, uint16(100+i))
	}
	sf, err := OpenSeries(b.WriteFile(t, "channels.dat"))
	require.NoError(t, err)
	defer sf.Close()

	tick, err := sf.FetchChannel(layout.Channel{Name: "time", Offset: 4, Format: layout.FormatU32, Scale: 0.1}, 0, 3)
	require.NoError(t, err)
	m64, ok := tick.(*Matrix[float64])
	require.True(t, ok)
	assert.InDeltaSlice(t, []float64{100, 200, 300}, m64.Data, 1e-9)

	// Defaults: format H, one item, scale 1.
	u, err := sf.FetchChannel(layout.Channel{Name: "u", Offset: 8}, 1, 5)
	require.NoError(t, err)
	m32, ok := u.(*Matrix[float32])
	require.True(t, ok)
	assert.Equal(t, []float32{101, 102}, m32.Data)

	_, err = sf.FetchChannel(layout.Channel{Name: "bad", Format: layout.Format('d')}, 0, 1)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)

	t.Run("Frames", func(t *testing.T) {
		sel := roaring.BitmapOf(0, 2, 99)
		blk, err := sf.FetchFrames(layout.Channel{Name: "u", Offset: 8}, sel)
		require.NoError(t, err)
		rows, cols := blk.Shape()
		assert.Equal(t, 2, rows)
		assert.Equal(t, 1, cols)
		assert.Equal(t, 100.0, blk.Float64(0, 0))
		assert.Equal(t, 102.0, blk.Float64(1, 0))

		blk, err = sf.Fetch(layout.Channel{Name: "time", Offset: 4, Format: layout.FormatI32}, Window{Frames: roaring.BitmapOf(1)})
		require.NoError(t, err)
		assert.Equal(t, 2000.0, blk.Float64(0, 0))

		blk, err = sf.FetchFrames(layout.Channel{Name: "u", Offset: 8}, roaring.New())
		require.NoError(t, err)
		rows, _ = blk.Shape()
		assert.Zero(t, rows)
	})
}

func TestSeriesFile_Close(t *testing.T) {
	path := testutil.NewSeries(8, 2).WriteFile(t, "close.dat")
	sf, err := OpenSeries(path)
	require.NoError(t, err)

	require.NoError(t, sf.Close())
	require.NoError(t, sf.Close())

	assert.Zero(t, sf.Size())
	assert.Nil(t, sf.Bytes())
	_, err = sf.FrameSize()
	assert.ErrorIs(t, err, ErrClosed)
	_, err = sf.FetchU16(0, 1, 4, 1, 1)
	assert.ErrorIs(t, err, ErrClosed)
}

func TestSeriesFile_ConcurrentFetch(t *testing.T) {
	sf := counterSeries(t, 12, 200)

	var wg sync.WaitGroup
	errs := make([]error, 8)
	for w := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 50; k++ {
				m, err := sf.FetchU16(w*20, 20, 4, 4, 1)
				if err != nil {
					errs[w] = err
					return
				}
				if m.At(0, 0) != float32(w*20*10) {
					errs[w] = errors.New("unexpected value")
					return
				}
			}
		}()
	}
	wg.Wait()
	for _, err := range errs {
		assert.NoError(t, err)
	}
}

func TestSeriesFile_Options(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
	metrics := &BasicMetricsCollector{}

	path := testutil.NewSeries(4096, 4).WriteFile(t, "opts.dat")
	sf, err := OpenSeries(path,
		WithLogger(logger),
		WithMetrics(metrics),
		WithAccessPattern(AccessSequential),
	)
	require.NoError(t, err)

	m, err := sf.FetchU16(1, 2, 8, 3, 1)
	require.NoError(t, err)
	assert.Equal(t, 6, len(m.Data))
	require.NoError(t, sf.Close())

	_, err = OpenSeries(path+".missing", WithMetrics(metrics), WithLogger(logger))
	require.Error(t, err)

	stats := metrics.GetStats()
	assert.Equal(t, int64(2), stats.OpenCount)
	assert.Equal(t, int64(1), stats.OpenErrors)
	assert.Equal(t, int64(1), stats.FetchCount)
	assert.Equal(t, int64(6), stats.FetchValues)

	out := buf.String()
	assert.Contains(t, out, `"msg":"file mapped"`)
	assert.Contains(t, out, `"msg":"fetch completed"`)
	assert.Contains(t, out, `"msg":"file released"`)
	assert.Contains(t, out, `"msg":"open failed"`)
}
