package conv

import (
	"errors"
	"fmt"
)

// ErrRange reports a value that does not fit the target type.
var ErrRange = errors.New("conv: value out of range")

// Integer is any built-in integer type.
type Integer interface {
	~int | ~int8 | ~int16 | ~int32 | ~int64 |
		~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// To converts v to T. It fails with ErrRange when the conversion would
// truncate or flip the sign.
func To[T, F Integer](v F) (T, error) {
	t := T(v)
	if F(t) != v || (t < 0) != (v < 0) {
		var zero T
		return zero, fmt.Errorf("%w: %d does not fit %T", ErrRange, v, zero)
	}
	return t, nil
}
