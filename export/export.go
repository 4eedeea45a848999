package export

import (
	"bufio"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"time"

	"github.com/hupe1980/measx"
	"github.com/hupe1980/measx/blobstore"
	"github.com/hupe1980/measx/codec"
)

var (
	// ErrRowMismatch is returned when columns (or timestamps) disagree on the
	// number of rows.
	ErrRowMismatch = errors.New("export: row count mismatch")

	// ErrNoColumns is returned when nothing is selected for export.
	ErrNoColumns = errors.New("export: no columns")

	// ErrUnknownFormat is returned for an output format other than csv or jsonl.
	ErrUnknownFormat = errors.New("export: unknown format")

	// ErrUnknownCompression is returned for an unsupported compression name.
	ErrUnknownCompression = errors.New("export: unknown compression")
)

// Format is the row encoding of an export.
type Format string

const (
	FormatCSV   Format = "csv"
	FormatJSONL Format = "jsonl"
)

// ParseFormat parses an output format name. The empty string means csv.
func ParseFormat(s string) (Format, error) {
	switch Format(s) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatJSONL:
		return FormatJSONL, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownFormat, s)
	}
}

// TimestampLayout formats the leading timestamp column.
const TimestampLayout = "2006-01-02T15:04:05.000Z07:00"

// TimestampColumn is the header of the leading timestamp column.
const TimestampColumn = "timestamp"

// Column is one named channel to export.
type Column struct {
	Name  string
	Block measx.Block
}

// Options configures Write.
type Options struct {
	Format      Format
	Compression Compression

	// Timestamps, when set, adds a leading timestamp column. It must have one
	// entry per row.
	Timestamps []time.Time

	// Codec encodes JSON Lines values. Defaults to codec.Default.
	Codec codec.Codec
}

func (o Options) withDefaults() Options {
	if o.Format == "" {
		o.Format = FormatCSV
	}
	if o.Codec == nil {
		o.Codec = codec.Default
	}
	return o
}

// Extension returns the file name suffix for o, e.g. ".csv.zst".
func Extension(o Options) string {
	o = o.withDefaults()
	return "." + string(o.Format) + o.Compression.Ext()
}

// Headers returns the column headers in output order. Single-item channels
// keep their name; multi-item channels expand to NAME[j].
func Headers(cols []Column, timestamps bool) []string {
	var out []string
	if timestamps {
		out = append(out, TimestampColumn)
	}
	for _, c := range cols {
		_, n := c.Block.Shape()
		if n == 1 {
			out = append(out, c.Name)
			continue
		}
		for j := 0; j < n; j++ {
			out = append(out, fmt.Sprintf("%s[%d]", c.Name, j))
		}
	}
	return out
}

// Write encodes cols row by row into w and returns the number of rows
// written. w is not closed.
func Write(w io.Writer, cols []Column, opts Options) (int, error) {
	opts = opts.withDefaults()

	rows, err := rowCount(cols, opts.Timestamps)
	if err != nil {
		return 0, err
	}

	cw, err := compressWriter(w, opts.Compression)
	if err != nil {
		return 0, err
	}
	bw := bufio.NewWriter(cw)

	var enc encoder
	switch opts.Format {
	case FormatCSV:
		enc = &csvEncoder{w: csv.NewWriter(bw)}
	case FormatJSONL:
		enc = &jsonlEncoder{w: bw, codec: opts.Codec}
	default:
		_ = cw.Close()
		return 0, fmt.Errorf("%w: %q", ErrUnknownFormat, opts.Format)
	}

	n, err := encode(enc, cols, opts.Timestamps, rows)
	if err == nil {
		err = bw.Flush()
	}
	if cerr := cw.Close(); err == nil {
		err = cerr
	}
	return n, err
}

// WriteBlob streams an export into store under name. On failure the partial
// blob is aborted where the store supports it.
func WriteBlob(ctx context.Context, store blobstore.BlobStore, name string, cols []Column, opts Options) (int, error) {
	wb, err := store.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := Write(wb, cols, opts)
	if err != nil {
		if ab, ok := wb.(blobstore.Abortable); ok {
			return n, errors.Join(err, ab.Abort())
		}
		return n, errors.Join(err, wb.Close())
	}
	return n, wb.Close()
}

func rowCount(cols []Column, timestamps []time.Time) (int, error) {
	if len(cols) == 0 {
		return 0, ErrNoColumns
	}
	rows, _ := cols[0].Block.Shape()
	for _, c := range cols[1:] {
		if r, _ := c.Block.Shape(); r != rows {
			return 0, fmt.Errorf("%w: %s has %d rows, %s has %d", ErrRowMismatch, c.Name, r, cols[0].Name, rows)
		}
	}
	if timestamps != nil && len(timestamps) != rows {
		return 0, fmt.Errorf("%w: %d timestamps for %d rows", ErrRowMismatch, len(timestamps), rows)
	}
	return rows, nil
}

type encoder interface {
	header(names []string) error
	row(ts *time.Time, cols []Column, i int) error
	flush() error
}

func encode(enc encoder, cols []Column, timestamps []time.Time, rows int) (int, error) {
	if err := enc.header(Headers(cols, timestamps != nil)); err != nil {
		return 0, err
	}
	for i := 0; i < rows; i++ {
		var ts *time.Time
		if timestamps != nil {
			ts = &timestamps[i]
		}
		if err := enc.row(ts, cols, i); err != nil {
			return i, err
		}
	}
	return rows, enc.flush()
}

// bitSize reports the precision a block was decoded at, so float32 values
// are printed without float64 noise.
func bitSize(b measx.Block) int {
	if _, ok := b.(*measx.Matrix[float32]); ok {
		return 32
	}
	return 64
}

type csvEncoder struct {
	w   *csv.Writer
	rec []string
}

func (e *csvEncoder) header(names []string) error {
	e.rec = make([]string, len(names))
	return e.w.Write(names)
}

func (e *csvEncoder) row(ts *time.Time, cols []Column, i int) error {
	k := 0
	if ts != nil {
		e.rec[k] = ts.Format(TimestampLayout)
		k++
	}
	for _, c := range cols {
		_, n := c.Block.Shape()
		bits := bitSize(c.Block)
		for j := 0; j < n; j++ {
			e.rec[k] = strconv.FormatFloat(c.Block.Float64(i, j), 'g', -1, bits)
			k++
		}
	}
	return e.w.Write(e.rec)
}

func (e *csvEncoder) flush() error {
	e.w.Flush()
	return e.w.Error()
}

// jsonlEncoder writes one object per row with keys in column order. Channels
// with several items become arrays. NaN and infinities are written as null.
type jsonlEncoder struct {
	w     *bufio.Writer
	codec codec.Codec
}

// header is a no-op: objects are keyed by channel name, not by the expanded
// headers.
func (e *jsonlEncoder) header([]string) error { return nil }

func (e *jsonlEncoder) key(s string) error {
	b, err := e.codec.Marshal(s)
	if err != nil {
		return err
	}
	_, _ = e.w.Write(b)
	return e.w.WriteByte(':')
}

func (e *jsonlEncoder) value(v float64, bits int) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		_, err := e.w.WriteString("null")
		return err
	}
	var b []byte
	var err error
	if bits == 32 {
		b, err = e.codec.Marshal(float32(v))
	} else {
		b, err = e.codec.Marshal(v)
	}
	if err != nil {
		return err
	}
	_, err = e.w.Write(b)
	return err
}

func (e *jsonlEncoder) row(ts *time.Time, cols []Column, i int) error {
	_ = e.w.WriteByte('{')
	first := true
	sep := func() {
		if !first {
			_ = e.w.WriteByte(',')
		}
		first = false
	}

	if ts != nil {
		sep()
		if err := e.key(TimestampColumn); err != nil {
			return err
		}
		b, err := e.codec.Marshal(ts.Format(TimestampLayout))
		if err != nil {
			return err
		}
		_, _ = e.w.Write(b)
	}

	for _, c := range cols {
		sep()
		if err := e.key(c.Name); err != nil {
			return err
		}
		_, n := c.Block.Shape()
		bits := bitSize(c.Block)
		if n == 1 {
			if err := e.value(c.Block.Float64(i, 0), bits); err != nil {
				return err
			}
			continue
		}
		_ = e.w.WriteByte('[')
		for j := 0; j < n; j++ {
			if j > 0 {
				_ = e.w.WriteByte(',')
			}
			if err := e.value(c.Block.Float64(i, j), bits); err != nil {
				return err
			}
		}
		_ = e.w.WriteByte(']')
	}
	_, err := e.w.WriteString("}\n")
	return err
}

func (e *jsonlEncoder) flush() error { return nil }
