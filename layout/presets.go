package layout

import (
	"fmt"
	"slices"
)

// Scale factors used by the power-quality analyzer layouts.
const (
	// TimeScale converts raw time ticks to milliseconds.
	TimeScale = 0.1
	// VoltageScale converts raw voltage counts to volts.
	VoltageScale = 0.01195
	// FrequencyScale converts raw frequency counts to hertz.
	FrequencyScale = 0.01
)

// Preset3PNoCurrent is the three-phase layout recorded without current clamps.
const Preset3PNoCurrent = "3p-nocurrent"

var presets = map[string]func() *Config{
	Preset3PNoCurrent: func() *Config {
		return &Config{
			Name:      Preset3PNoCurrent,
			FrameSize: 287,
			Channels: []Channel{
				{Name: "time", Offset: 15, Format: FormatU32, Count: 2, Scale: TimeScale},
				{Name: "UL12", Offset: 23, Scale: VoltageScale},
				{Name: "UL23", Offset: 25, Scale: VoltageScale},
				{Name: "UL31", Offset: 27, Scale: VoltageScale},
				{Name: "f_L12", Offset: 29, Scale: FrequencyScale},
				{Name: "UL12_h", Offset: 31, Count: 40, Scale: VoltageScale},
				{Name: "UL23_h", Offset: 111, Count: 40, Scale: VoltageScale},
				{Name: "UL31_h", Offset: 191, Count: 40, Scale: VoltageScale},
			},
		}
	},
}

// Preset returns a fresh copy of a built-in layout.
func Preset(name string) (*Config, error) {
	build, ok := presets[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownPreset, name)
	}
	return build(), nil
}

// Presets returns the sorted names of the built-in layouts.
func Presets() []string {
	names := make([]string, 0, len(presets))
	for name := range presets {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}
