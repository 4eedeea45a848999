package measx

import "unsafe"

// Number is the set of output element types a fetch can produce.
type Number interface {
	float32 | float64
}

// Matrix is a dense row-major buffer: one row per frame, one column per item.
type Matrix[T Number] struct {
	Rows int
	Cols int
	Data []T
}

// NewMatrix allocates a zeroed rows x cols matrix.
func NewMatrix[T Number](rows, cols int) *Matrix[T] {
	return &Matrix[T]{
		Rows: rows,
		Cols: cols,
		Data: make([]T, rows*cols),
	}
}

// At returns element (i, j).
func (m *Matrix[T]) At(i, j int) T {
	return m.Data[i*m.Cols+j]
}

// Row returns row i as a sub-slice of Data.
func (m *Matrix[T]) Row(i int) []T {
	return m.Data[i*m.Cols : (i+1)*m.Cols]
}

// Column copies column j into a new slice.
func (m *Matrix[T]) Column(j int) []T {
	col := make([]T, m.Rows)
	for i := range col {
		col[i] = m.Data[i*m.Cols+j]
	}
	return col
}

// Shape returns (Rows, Cols).
func (m *Matrix[T]) Shape() (rows, cols int) {
	return m.Rows, m.Cols
}

// Float64 returns element (i, j) widened to float64.
func (m *Matrix[T]) Float64(i, j int) float64 {
	return float64(m.Data[i*m.Cols+j])
}

// Bytes returns the buffer size in bytes.
func (m *Matrix[T]) Bytes() int64 {
	var zero T
	return int64(len(m.Data)) * int64(unsafe.Sizeof(zero))
}

// Block is the type-erased view of a fetched matrix shared by
// *Matrix[float32] and *Matrix[float64].
type Block interface {
	Shape() (rows, cols int)
	Float64(i, j int) float64
}

var (
	_ Block = (*Matrix[float32])(nil)
	_ Block = (*Matrix[float64])(nil)
)
