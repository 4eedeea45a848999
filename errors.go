package measx

import (
	"errors"
	"fmt"

	"github.com/hupe1980/measx/internal/mmap"
	"github.com/hupe1980/measx/layout"
)

var (
	// ErrIO classifies failures to open, size, map or download a file.
	// Every *IOError satisfies errors.Is(err, ErrIO).
	ErrIO = errors.New("measx: i/o error")

	// ErrFormat classifies files too small to hold a requested header field.
	// Every *FormatError satisfies errors.Is(err, ErrFormat).
	ErrFormat = errors.New("measx: format error")

	// ErrClosed is returned when a reader is used after Close.
	ErrClosed = mmap.ErrClosed

	// ErrUnknownChannel is returned when a channel name is not part of a layout.
	ErrUnknownChannel = layout.ErrUnknownChannel

	// ErrUnsupportedFormat is returned for an element format outside the
	// supported (source, output) pairs.
	ErrUnsupportedFormat = layout.ErrUnsupportedFormat
)

// IOError reports a failure to acquire a file.
//
// The original underlying error can be accessed via errors.Unwrap.
type IOError struct {
	Op   string
	Path string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }

// Is reports whether target is ErrIO.
func (e *IOError) Is(target error) bool { return target == ErrIO }

// FormatError reports a mapping too small to interpret a header field.
//
// The original underlying error can be accessed via errors.Unwrap.
type FormatError struct {
	Field string
	Need  int
	Have  int
	Err   error
}

func (e *FormatError) Error() string {
	return fmt.Sprintf("undersized file: %s needs %d bytes, have %d", e.Field, e.Need, e.Have)
}

func (e *FormatError) Unwrap() error { return e.Err }

// Is reports whether target is ErrFormat.
func (e *FormatError) Is(target error) bool { return target == ErrFormat }

// requireHeader checks that m holds at least need bytes before field is read.
func requireHeader(m *mmap.Mapping, field string, need int) error {
	err := m.RequireMinSize(need)
	if err == nil {
		return nil
	}
	if errors.Is(err, mmap.ErrUndersized) {
		return &FormatError{Field: field, Need: need, Have: m.Size(), Err: err}
	}
	return err
}
