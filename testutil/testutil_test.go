package testutil

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSeriesBuilder(t *testing.T) {
	b := NewSeries(8, 3).Flags(0xBEEF).PutU32(1, 4, 101).PutI16(2, 6, -2)
	rng := NewRNG(4711)
	rng.Fill(b.Bytes()[0:4])

	data := b.Bytes()
	require.Len(t, data, 24)
	assert.Equal(t, uint16(8), binary.LittleEndian.Uint16(data[2:4]))
	assert.Equal(t, uint32(101), binary.LittleEndian.Uint32(data[12:16]))
	assert.Equal(t, int16(-2), int16(binary.LittleEndian.Uint16(data[22:24])))

	assert.Len(t, b.Trailing(5).Bytes(), 29)
}

func TestSessionBytes(t *testing.T) {
	data := SessionBytes("2024-01-01T00:00:00.000", "2024-01-01T01:00:00.000-overflow")
	require.Len(t, data, 48)
	assert.Equal(t, "2024-01-01T00:00:00.000", string(data[2:25]))
	assert.Equal(t, "2024-01-01T01:00:00.000", string(data[25:48]))
}

func TestWriteFile(t *testing.T) {
	path := WriteFile(t, "x.bin", []byte{1, 2, 3})
	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3}, got)
}

func TestRNG_Reset(t *testing.T) {
	rng := NewRNG(1)
	a := make([]byte, 16)
	rng.Fill(a)
	rng.Reset()
	b := make([]byte, 16)
	rng.Fill(b)
	assert.Equal(t, a, b)
	assert.Less(t, rng.Intn(10), 10)
}
