// Package layout describes where channels live inside the frames of a
// frame-series file.
//
// Frame-series files only record their frame length; the position, element
// format, item count and scale of each channel are supplied by the caller.
// A Config groups those descriptors and can be loaded from YAML or JSON:
//
//	name: 3p-nocurrent
//	frame_size: 287
//	channels:
//	  - {name: time, offset: 15, format: I, count: 2, scale: 0.1}
//	  - {name: UL12, offset: 23, scale: 0.01195}
//
// Built-in layouts are available through Preset.
package layout
