package layout

import "errors"

var (
	// ErrUnknownChannel is returned when a channel name is not part of a layout.
	ErrUnknownChannel = errors.New("layout: unknown channel")

	// ErrUnsupportedFormat is returned for element formats other than H, h, I and i.
	ErrUnsupportedFormat = errors.New("layout: unsupported format")

	// ErrInvalidChannel is returned by Validate for malformed channel descriptors.
	ErrInvalidChannel = errors.New("layout: invalid channel")

	// ErrFrameSizeMismatch is returned when a file's frame length differs from
	// the frame length a layout was written for.
	ErrFrameSizeMismatch = errors.New("layout: frame size mismatch")

	// ErrUnknownPreset is returned by Preset for unregistered names.
	ErrUnknownPreset = errors.New("layout: unknown preset")
)
