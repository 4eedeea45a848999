package mmap

import (
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"sync/atomic"
)

// AccessPattern is a paging hint for a mapped span.
type AccessPattern int

// Paging hints. AccessDefault leaves the kernel's readahead alone.
const (
	AccessDefault AccessPattern = iota
	AccessSequential
	AccessRandom
	AccessWillNeed
	AccessDontNeed
)

var (
	ErrClosed        = errors.New("mmap: mapping is closed")
	ErrEmptyFile     = errors.New("mmap: empty file")
	ErrUndersized    = errors.New("mmap: undersized file")
	ErrOutOfBounds   = errors.New("mmap: span out of bounds")
	ErrInvalidSize   = errors.New("mmap: invalid file size")
	ErrInvalidOffset = errors.New("mmap: negative offset")
)

// Mapping is a read-only shared mapping of a whole recording file.
type Mapping struct {
	data   []byte
	closed atomic.Bool
	unmap  func([]byte) error
}

// Open maps path. The descriptor is released before Open returns; the
// mapping keeps the pages alive on its own.
func Open(path string) (*Mapping, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	size, err := f.Seek(0, io.SeekEnd)
	if err == nil {
		_, err = f.Seek(0, io.SeekStart)
	}
	if err != nil {
		return nil, err
	}
	switch {
	case size == 0:
		return nil, ErrEmptyFile
	case size < 0 || size > math.MaxInt:
		return nil, fmt.Errorf("%w: %d", ErrInvalidSize, size)
	}

	data, unmap, err := osMap(f, int(size))
	if err != nil {
		return nil, fmt.Errorf("mmap %s: %w", path, err)
	}
	return &Mapping{data: data, unmap: unmap}, nil
}

// Close unmaps the file. Only the first call does any work.
func (m *Mapping) Close() error {
	if m == nil || m.closed.Swap(true) {
		return nil
	}
	if m.unmap == nil || m.data == nil {
		return nil
	}
	return m.unmap(m.data)
}

// Closed reports whether the mapping has been released.
func (m *Mapping) Closed() bool {
	return m == nil || m.closed.Load()
}

// Bytes exposes the mapped file. The slice must not be touched after Close.
func (m *Mapping) Bytes() []byte {
	if m.Closed() {
		return nil
	}
	return m.data
}

// Size is the mapped length, 0 once closed.
func (m *Mapping) Size() int {
	return len(m.Bytes())
}

// RequireMinSize fails with ErrUndersized when fewer than n bytes are mapped.
func (m *Mapping) RequireMinSize(n int) error {
	if m.Closed() {
		return ErrClosed
	}
	if have := len(m.data); have < n {
		return fmt.Errorf("%w: need %d bytes, have %d", ErrUndersized, n, have)
	}
	return nil
}

// Span returns the n bytes starting at off without copying.
func (m *Mapping) Span(off, n int) ([]byte, error) {
	if m.Closed() {
		return nil, ErrClosed
	}
	if off < 0 || n < 0 || off > len(m.data) || n > len(m.data)-off {
		return nil, fmt.Errorf("%w: [%d,+%d) of %d", ErrOutOfBounds, off, n, len(m.data))
	}
	return m.data[off : off+n], nil
}

// Advise hints the kernel about the whole mapping.
func (m *Mapping) Advise(p AccessPattern) error {
	return m.AdviseSpan(0, m.Size(), p)
}

// AdviseSpan hints the kernel about [off, off+n). The start is rounded down
// to a page boundary because madvise rejects unaligned addresses.
func (m *Mapping) AdviseSpan(off, n int, p AccessPattern) error {
	if _, err := m.Span(off, n); err != nil {
		return err
	}
	start := off &^ (os.Getpagesize() - 1)
	return osAdvise(m.data[start:off+n], p)
}

// ReadAt implements io.ReaderAt over the mapped bytes.
func (m *Mapping) ReadAt(p []byte, off int64) (int, error) {
	switch {
	case m.Closed():
		return 0, ErrClosed
	case off < 0:
		return 0, ErrInvalidOffset
	case off >= int64(len(m.data)):
		return 0, io.EOF
	}
	n := copy(p, m.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}
