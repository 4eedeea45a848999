package layout

import (
	"fmt"
)

// Format identifies the on-disk element type of a channel and, with it, the
// output type the element is widened to.
//
// The supported (source, output) pairs are:
//
//	H  uint16 -> float32
//	h  int16  -> float32
//	I  uint32 -> float64
//	i  int32  -> float64
type Format byte

const (
	// FormatU16 is an unsigned 16-bit little-endian element.
	FormatU16 Format = 'H'
	// FormatI16 is a signed 16-bit little-endian element.
	FormatI16 Format = 'h'
	// FormatU32 is an unsigned 32-bit little-endian element.
	FormatU32 Format = 'I'
	// FormatI32 is a signed 32-bit little-endian element.
	FormatI32 Format = 'i'
)

// DefaultFormat is used when a channel does not name a format.
const DefaultFormat = FormatU16

// Valid reports whether f is one of the supported formats.
func (f Format) Valid() bool {
	switch f {
	case FormatU16, FormatI16, FormatU32, FormatI32:
		return true
	default:
		return false
	}
}

// Width returns the on-disk element size in bytes, or 0 for an invalid format.
func (f Format) Width() int {
	switch f {
	case FormatU16, FormatI16:
		return 2
	case FormatU32, FormatI32:
		return 4
	default:
		return 0
	}
}

// OutputWidth returns the size in bytes of one decoded element.
func (f Format) OutputWidth() int {
	switch f {
	case FormatU16, FormatI16:
		return 4
	case FormatU32, FormatI32:
		return 8
	default:
		return 0
	}
}

func (f Format) String() string {
	if f == 0 {
		return ""
	}
	return string(rune(f))
}

// ParseFormat parses a single-letter format code.
func ParseFormat(s string) (Format, error) {
	if s == "" {
		return DefaultFormat, nil
	}
	if len(s) != 1 || !Format(s[0]).Valid() {
		return 0, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
	}
	return Format(s[0]), nil
}

// MarshalText implements encoding.TextMarshaler.
func (f Format) MarshalText() ([]byte, error) {
	return []byte(f.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (f *Format) UnmarshalText(text []byte) error {
	v, err := ParseFormat(string(text))
	if err != nil {
		return err
	}
	*f = v
	return nil
}
