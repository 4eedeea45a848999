package measx

import (
	"encoding/binary"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/measx/internal/conv"
)

// decoder reads one little-endian element and widens it to the output type.
type decoder[T Number] func(b []byte) T

func decodeU16(b []byte) float32 { return float32(binary.LittleEndian.Uint16(b)) }
func decodeI16(b []byte) float32 { return float32(int16(binary.LittleEndian.Uint16(b))) }
func decodeU32(b []byte) float64 { return float64(binary.LittleEndian.Uint32(b)) }
func decodeI32(b []byte) float64 { return float64(int32(binary.LittleEndian.Uint32(b))) }

// clampRows returns how many of count frames starting at start exist.
func clampRows(total, start, count int) int {
	if start < 0 || start >= total || count <= 0 {
		return 0
	}
	return min(count, total-start)
}

// clampCols returns how many width-byte items starting at offset fit in a frame.
func clampCols(frameSize, offset, items, width int) int {
	if offset < 0 || offset >= frameSize || items <= 0 || width <= 0 {
		return 0
	}
	return min(items, (frameSize-offset)/width)
}

// selectedRows counts the frames in sel that exist in a file of total frames.
func selectedRows(sel *roaring.Bitmap, total int) int {
	if sel == nil || total <= 0 {
		return 0
	}
	last, err := conv.To[uint32](total - 1)
	if err != nil {
		// Every representable frame index is in range.
		return int(sel.GetCardinality())
	}
	return int(sel.Rank(last))
}

// decodeRow fills dst from consecutive elements of rec.
func decodeRow[T Number](dst []T, rec []byte, width int, scale T, decode decoder[T]) {
	for j := range dst {
		p := j * width
		dst[j] = decode(rec[p:p+width]) * scale
	}
}

// decodeWindow fills out from the contiguous frames [start, start+out.Rows).
func decodeWindow[T Number](out *Matrix[T], data []byte, frameSize, start, offset, width int, scale T, decode decoder[T]) {
	span := out.Cols * width
	for i := 0; i < out.Rows; i++ {
		base := (start+i)*frameSize + offset
		decodeRow(out.Row(i), data[base:base+span], width, scale, decode)
	}
}

// decodeSelection fills out from the frames listed in sel, in ascending order.
func decodeSelection[T Number](out *Matrix[T], data []byte, frameSize int, sel *roaring.Bitmap, offset, width int, scale T, decode decoder[T]) {
	span := out.Cols * width
	it := sel.Iterator()
	for i := 0; i < out.Rows && it.HasNext(); i++ {
		base := int(it.Next())*frameSize + offset
		decodeRow(out.Row(i), data[base:base+span], width, scale, decode)
	}
}
