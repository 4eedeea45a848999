package export

import (
	"bufio"
	"bytes"
	"context"
	"encoding/csv"
	"io"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/measx"
	"github.com/hupe1980/measx/blobstore"
	"github.com/hupe1980/measx/codec"
)

func sampleColumns() []Column {
	ul12 := &measx.Matrix[float32]{Rows: 3, Cols: 1, Data: []float32{230.1, 229.9, 0.1}}
	harm := &measx.Matrix[float32]{Rows: 3, Cols: 2, Data: []float32{1, 2, 3, 4, 5, 6}}
	ticks := &measx.Matrix[float64]{Rows: 3, Cols: 1, Data: []float64{0, 100.5, 201}}
	return []Column{
		{Name: "UL12", Block: ul12},
		{Name: "UL12_h", Block: harm},
		{Name: "time", Block: ticks},
	}
}

func TestHeaders(t *testing.T) {
	assert.Equal(t,
		[]string{"UL12", "UL12_h[0]", "UL12_h[1]", "time"},
		Headers(sampleColumns(), false))
	assert.Equal(t, "timestamp", Headers(sampleColumns(), true)[0])
}

func TestWrite_CSV(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, sampleColumns(), Options{})
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	assert.Equal(t, strings.Join([]string{
		"UL12,UL12_h[0],UL12_h[1],time",
		"230.1,1,2,0",
		"229.9,3,4,100.5",
		"0.1,5,6,201",
		"",
	}, "\n"), buf.String())
}

func TestWrite_JSONL(t *testing.T) {
	start := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	ts := []time.Time{start, start.Add(100 * time.Millisecond), start.Add(time.Second)}

	var buf bytes.Buffer
	_, err := Write(&buf, sampleColumns(), Options{Format: FormatJSONL, Timestamps: ts})
	require.NoError(t, err)

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.Len(t, lines, 3)
	assert.Equal(t,
		`{"timestamp":"2024-01-01T00:00:00.100Z","UL12":229.9,"UL12_h":[3,4],"time":100.5}`,
		lines[1])

	for _, line := range lines {
		var row map[string]any
		require.NoError(t, codec.Default.Unmarshal([]byte(line), &row))
		assert.Len(t, row, 4)
	}
}

func TestWrite_JSONL_NonFinite(t *testing.T) {
	m := &measx.Matrix[float64]{Rows: 2, Cols: 1, Data: []float64{math.NaN(), math.Inf(1)}}
	var buf bytes.Buffer
	_, err := Write(&buf, []Column{{Name: "x", Block: m}}, Options{Format: FormatJSONL, Codec: codec.JSON{}})
	require.NoError(t, err)
	assert.Equal(t, "{\"x\":null}\n{\"x\":null}\n", buf.String())
}

func TestWrite_Compression(t *testing.T) {
	for _, c := range []Compression{CompressionNone, CompressionGzip, CompressionZstd, CompressionLZ4} {
		t.Run(c.String(), func(t *testing.T) {
			var plain, packed bytes.Buffer
			_, err := Write(&plain, sampleColumns(), Options{})
			require.NoError(t, err)
			_, err = Write(&packed, sampleColumns(), Options{Compression: c})
			require.NoError(t, err)

			r, err := NewReader(&packed, c)
			require.NoError(t, err)
			defer r.Close()

			records, err := csv.NewReader(r).ReadAll()
			require.NoError(t, err)
			require.Len(t, records, 4)
			assert.Equal(t, []string{"229.9", "3", "4", "100.5"}, records[2])

			if c != CompressionNone {
				assert.NotEqual(t, plain.Bytes(), packed.Bytes())
			}
		})
	}
}

func TestWrite_Errors(t *testing.T) {
	cols := sampleColumns()

	_, err := Write(io.Discard, nil, Options{})
	assert.ErrorIs(t, err, ErrNoColumns)

	short := append(cols, Column{Name: "short", Block: measx.NewMatrix[float32](2, 1)})
	_, err = Write(io.Discard, short, Options{})
	assert.ErrorIs(t, err, ErrRowMismatch)

	_, err = Write(io.Discard, cols, Options{Timestamps: make([]time.Time, 1)})
	assert.ErrorIs(t, err, ErrRowMismatch)

	_, err = Write(io.Discard, cols, Options{Format: "parquet"})
	assert.ErrorIs(t, err, ErrUnknownFormat)

	_, err = Write(io.Discard, cols, Options{Compression: Compression(9)})
	assert.ErrorIs(t, err, ErrUnknownCompression)
}

func TestWrite_EmptyRows(t *testing.T) {
	var buf bytes.Buffer
	n, err := Write(&buf, []Column{{Name: "UL12", Block: measx.NewMatrix[float32](0, 1)}}, Options{})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, "UL12\n", buf.String())
}

func TestWriteBlob(t *testing.T) {
	ctx := context.Background()
	store := blobstore.NewMemoryStore()
	opts := Options{Format: FormatJSONL, Compression: CompressionZstd}

	name := "exports/run" + Extension(opts)
	assert.Equal(t, "exports/run.jsonl.zst", name)

	n, err := WriteBlob(ctx, store, name, sampleColumns(), opts)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	data, ok := store.Bytes(name)
	require.True(t, ok)
	info, err := store.Stat(name)
	require.NoError(t, err)
	assert.Equal(t, "application/zstd", info.ContentType)

	r, err := NewReader(bytes.NewReader(data), CompressionZstd)
	require.NoError(t, err)
	defer r.Close()

	var lines int
	sc := bufio.NewScanner(r)
	for sc.Scan() {
		lines++
	}
	require.NoError(t, sc.Err())
	assert.Equal(t, 3, lines)

	t.Run("AbortOnError", func(t *testing.T) {
		_, err := WriteBlob(ctx, store, "bad.csv", nil, Options{})
		assert.ErrorIs(t, err, ErrNoColumns)
		_, ok := store.Bytes("bad.csv")
		assert.False(t, ok)
	})

	t.Run("LocalStore", func(t *testing.T) {
		local := blobstore.NewLocalStore(t.TempDir())
		_, err := WriteBlob(ctx, local, "a/b.csv", sampleColumns(), Options{})
		require.NoError(t, err)

		_, err = WriteBlob(ctx, local, "a/bad.csv", nil, Options{})
		require.Error(t, err)
		names, err := local.List(ctx, "a/")
		require.NoError(t, err)
		assert.Equal(t, []string{"a/b.csv"}, names)
	})
}

func TestParse(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, FormatCSV, f)
	f, err = ParseFormat("jsonl")
	require.NoError(t, err)
	assert.Equal(t, FormatJSONL, f)
	_, err = ParseFormat("xml")
	assert.ErrorIs(t, err, ErrUnknownFormat)

	for _, name := range []string{"none", "gzip", "zstd", "lz4"} {
		c, err := ParseCompression(name)
		require.NoError(t, err)
		assert.Equal(t, name, c.String())
	}
	c, err := ParseCompression("")
	require.NoError(t, err)
	assert.Equal(t, CompressionNone, c)
	_, err = ParseCompression("brotli")
	assert.ErrorIs(t, err, ErrUnknownCompression)
	assert.Equal(t, "Compression(9)", Compression(9).String())
}
