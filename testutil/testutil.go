package testutil

import (
	"encoding/binary"
	"math/rand"
	"os"
	"path/filepath"
	"sync"
	"testing"
)

// SeriesBuilder assembles a frame-series file in memory. Bytes [2,4) of the
// first frame always hold the frame length.
type SeriesBuilder struct {
	frameSize int
	buf       []byte
}

// NewSeries creates a builder for frames zero-filled frames of frameSize bytes.
func NewSeries(frameSize, frames int) *SeriesBuilder {
	b := &SeriesBuilder{frameSize: frameSize, buf: make([]byte, frameSize*frames)}
	b.header()
	return b
}

func (b *SeriesBuilder) header() {
	if len(b.buf) >= 4 {
		binary.LittleEndian.PutUint16(b.buf[2:4], uint16(b.frameSize))
	}
}

// Flags sets the ignored flags word in bytes [0,2).
func (b *SeriesBuilder) Flags(v uint16) *SeriesBuilder {
	binary.LittleEndian.PutUint16(b.buf[0:2], v)
	return b
}

// Trailing appends n bytes that do not form a whole frame.
func (b *SeriesBuilder) Trailing(n int) *SeriesBuilder {
	b.buf = append(b.buf, make([]byte, n)...)
	return b
}

func (b *SeriesBuilder) at(frame, off, width int) []byte {
	p := frame*b.frameSize + off
	return b.buf[p : p+width]
}

// PutU16 writes v at byte off of frame.
func (b *SeriesBuilder) PutU16(frame, off int, v uint16) *SeriesBuilder {
	binary.LittleEndian.PutUint16(b.at(frame, off, 2), v)
	return b
}

// PutI16 writes v at byte off of frame.
func (b *SeriesBuilder) PutI16(frame, off int, v int16) *SeriesBuilder {
	return b.PutU16(frame, off, uint16(v))
}

// PutU32 writes v at byte off of frame.
func (b *SeriesBuilder) PutU32(frame, off int, v uint32) *SeriesBuilder {
	binary.LittleEndian.PutUint32(b.at(frame, off, 4), v)
	return b
}

// PutI32 writes v at byte off of frame.
func (b *SeriesBuilder) PutI32(frame, off int, v int32) *SeriesBuilder {
	return b.PutU32(frame, off, uint32(v))
}

// Bytes returns the file contents. The frame length header is rewritten last
// so random fills cannot clobber it.
func (b *SeriesBuilder) Bytes() []byte {
	b.header()
	return b.buf
}

// WriteFile writes the file into a per-test temporary directory.
func (b *SeriesBuilder) WriteFile(tb testing.TB, name string) string {
	tb.Helper()
	return WriteFile(tb, name, b.Bytes())
}

// SessionBytes returns a 48-byte session header with start at offset 2 and
// end at offset 25. Longer values are truncated to 23 bytes.
func SessionBytes(start, end string) []byte {
	buf := make([]byte, 48)
	copy(buf[2:25], start)
	copy(buf[25:48], end)
	return buf
}

// WriteFile writes data to name inside a per-test temporary directory and
// returns the path.
func WriteFile(tb testing.TB, name string, data []byte) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		tb.Fatalf("write %s: %v", path, err)
	}
	return path
}

// RNG is a seeded random source safe for concurrent use.
type RNG struct {
	rand *rand.Rand
	seed int64
	mu   sync.Mutex
}

// NewRNG creates a new RNG instance with the specified seed.
func NewRNG(seed int64) *RNG {
	return &RNG{
		rand: rand.New(rand.NewSource(seed)),
		seed: seed,
	}
}

// Reset resets the RNG to its initial seed.
func (r *RNG) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.rand.Seed(r.seed)
}

// Fill overwrites p with random bytes.
func (r *RNG) Fill(p []byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, _ = r.rand.Read(p)
}

// Intn returns a random int in [0, n).
func (r *RNG) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rand.Intn(n)
}
