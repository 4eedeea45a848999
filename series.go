package measx

import (
	"context"
	"encoding/binary"
	"fmt"
	"sync"
	"time"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/measx/internal/mmap"
	"github.com/hupe1980/measx/layout"
)

const (
	// seriesHeaderSize covers the flags word and the frame length.
	seriesHeaderSize = 4
	frameSizeOffset  = 2
)

// SeriesFile is a read-only view of a frame-series file: a flat sequence of
// fixed-length frames whose length is stored in bytes [2,4) of the file.
//
// Fetch methods may be called concurrently. Close must not race with them.
type SeriesFile struct {
	m    *mmap.Mapping
	path string
	opts options

	unevenOnce sync.Once
}

// OpenSeries maps the frame-series file at path.
func OpenSeries(path string, optFns ...Option) (*SeriesFile, error) {
	o := applyOptions(optFns)
	m, local, err := acquire(context.Background(), "series", Local(path), &o)
	if err != nil {
		return nil, err
	}
	return newSeriesFile(m, local, o), nil
}

func newSeriesFile(m *mmap.Mapping, path string, o options) *SeriesFile {
	return &SeriesFile{m: m, path: path, opts: o}
}

// Path returns the local path the file was mapped from.
func (s *SeriesFile) Path() string { return s.path }

// Size returns the mapped length in bytes, or 0 once closed.
func (s *SeriesFile) Size() int { return s.m.Size() }

// Bytes returns the raw mapped contents. The slice is valid until Close.
func (s *SeriesFile) Bytes() []byte { return s.m.Bytes() }

// FrameSize returns the frame length stored in the file header.
func (s *SeriesFile) FrameSize() (int, error) {
	if err := requireHeader(s.m, "frame length", seriesHeaderSize); err != nil {
		return 0, err
	}
	return int(binary.LittleEndian.Uint16(s.m.Bytes()[frameSizeOffset:])), nil
}

// FrameCount returns the number of whole frames in the file. Trailing bytes
// that do not form a whole frame are ignored. A zero frame length yields zero
// frames.
func (s *SeriesFile) FrameCount() (int, error) {
	frameSize, err := s.FrameSize()
	if err != nil {
		return 0, err
	}
	return s.frameCount(frameSize), nil
}

func (s *SeriesFile) frameCount(frameSize int) int {
	if frameSize == 0 {
		return 0
	}
	size := s.m.Size()
	if debugChecks && size%frameSize != 0 {
		s.unevenOnce.Do(func() { s.opts.logger.LogUnevenSize(s.path, size, frameSize) })
	}
	return size / frameSize
}

// Remainder returns the number of trailing bytes past the last whole frame.
func (s *SeriesFile) Remainder() (int, error) {
	frameSize, err := s.FrameSize()
	if err != nil {
		return 0, err
	}
	if frameSize == 0 {
		return s.m.Size(), nil
	}
	return s.m.Size() % frameSize, nil
}

// FetchU16 reads count frames from start and, within each, items unsigned
// 16-bit values from offset. Values are widened to float32 and multiplied by
// scale. Requests past the end of the file or frame are clamped; the result
// may have zero rows or columns.
func (s *SeriesFile) FetchU16(start, count, offset, items int, scale float32) (*Matrix[float32], error) {
	return fetchWindow(s, start, count, offset, items, 2, scale, decodeU16)
}

// FetchI16 is FetchU16 for signed 16-bit values.
func (s *SeriesFile) FetchI16(start, count, offset, items int, scale float32) (*Matrix[float32], error) {
	return fetchWindow(s, start, count, offset, items, 2, scale, decodeI16)
}

// FetchU32 is FetchU16 for unsigned 32-bit values widened to float64.
func (s *SeriesFile) FetchU32(start, count, offset, items int, scale float64) (*Matrix[float64], error) {
	return fetchWindow(s, start, count, offset, items, 4, scale, decodeU32)
}

// FetchI32 is FetchU16 for signed 32-bit values widened to float64.
func (s *SeriesFile) FetchI32(start, count, offset, items int, scale float64) (*Matrix[float64], error) {
	return fetchWindow(s, start, count, offset, items, 4, scale, decodeI32)
}

// FetchChannel reads a channel described by a layout over count frames from
// start. The result is a *Matrix[float32] for 16-bit formats and a
// *Matrix[float64] for 32-bit formats.
func (s *SeriesFile) FetchChannel(ch layout.Channel, start, count int) (Block, error) {
	ch = ch.Normalized()
	switch ch.Format {
	case layout.FormatU16:
		return s.FetchU16(start, count, ch.Offset, ch.Count, float32(ch.Scale))
	case layout.FormatI16:
		return s.FetchI16(start, count, ch.Offset, ch.Count, float32(ch.Scale))
	case layout.FormatU32:
		return s.FetchU32(start, count, ch.Offset, ch.Count, ch.Scale)
	case layout.FormatI32:
		return s.FetchI32(start, count, ch.Offset, ch.Count, ch.Scale)
	default:
		return nil, fmt.Errorf("%w: channel %s: %q", ErrUnsupportedFormat, ch.Name, ch.Format.String())
	}
}

// FetchFrames reads a channel from the frames in sel, in ascending frame
// order. Frame indices past the end of the file are dropped.
func (s *SeriesFile) FetchFrames(ch layout.Channel, sel *roaring.Bitmap) (Block, error) {
	ch = ch.Normalized()
	switch ch.Format {
	case layout.FormatU16:
		return fetchSelection(s, sel, ch.Offset, ch.Count, 2, float32(ch.Scale), decodeU16)
	case layout.FormatI16:
		return fetchSelection(s, sel, ch.Offset, ch.Count, 2, float32(ch.Scale), decodeI16)
	case layout.FormatU32:
		return fetchSelection(s, sel, ch.Offset, ch.Count, 4, ch.Scale, decodeU32)
	case layout.FormatI32:
		return fetchSelection(s, sel, ch.Offset, ch.Count, 4, ch.Scale, decodeI32)
	default:
		return nil, fmt.Errorf("%w: channel %s: %q", ErrUnsupportedFormat, ch.Name, ch.Format.String())
	}
}

// Fetch reads a channel over a window.
func (s *SeriesFile) Fetch(ch layout.Channel, w Window) (Block, error) {
	if w.Frames != nil {
		return s.FetchFrames(ch, w.Frames)
	}
	return s.FetchChannel(ch, w.Start, w.Count)
}

// Close unmaps the file. It is safe to call more than once.
func (s *SeriesFile) Close() error {
	if s.m.Closed() {
		return nil
	}
	err := s.m.Close()
	s.opts.logger.LogClose(s.path, err)
	return err
}

func fetchWindow[T Number](s *SeriesFile, start, count, offset, items, width int, scale T, decode decoder[T]) (*Matrix[T], error) {
	began := time.Now()

	frameSize, err := s.FrameSize()
	if err != nil {
		return nil, err
	}
	rows := clampRows(s.frameCount(frameSize), start, count)
	cols := clampCols(frameSize, offset, items, width)

	out := NewMatrix[T](rows, cols)
	if rows == 0 || cols == 0 {
		s.opts.metrics.RecordFetch(rows, cols, time.Since(began))
		return out, nil
	}

	data := s.m.Bytes()
	if data == nil {
		return nil, ErrClosed
	}
	s.advise(start*frameSize, rows*frameSize)
	decodeWindow(out, data, frameSize, start, offset, width, scale, decode)

	s.opts.metrics.RecordFetch(rows, cols, time.Since(began))
	s.opts.logger.LogFetch(s.path, start, rows, offset, cols)
	return out, nil
}

func fetchSelection[T Number](s *SeriesFile, sel *roaring.Bitmap, offset, items, width int, scale T, decode decoder[T]) (*Matrix[T], error) {
	began := time.Now()

	frameSize, err := s.FrameSize()
	if err != nil {
		return nil, err
	}
	rows := selectedRows(sel, s.frameCount(frameSize))
	cols := clampCols(frameSize, offset, items, width)

	out := NewMatrix[T](rows, cols)
	if rows == 0 || cols == 0 {
		s.opts.metrics.RecordFetch(rows, cols, time.Since(began))
		return out, nil
	}

	data := s.m.Bytes()
	if data == nil {
		return nil, ErrClosed
	}
	decodeSelection(out, data, frameSize, sel, offset, width, scale, decode)

	s.opts.metrics.RecordFetch(rows, cols, time.Since(began))
	s.opts.logger.LogFetch(s.path, int(sel.Minimum()), rows, offset, cols)
	return out, nil
}

// advise hints the kernel about the byte span a fetch is about to read.
func (s *SeriesFile) advise(off, n int) {
	if s.opts.access == AccessDefault {
		return
	}
	if err := s.m.AdviseSpan(off, n, s.opts.access); err != nil {
		s.opts.logger.Debug("madvise failed", "path", s.path, "error", err)
	}
}
