package layout

import (
	"errors"
	"fmt"
)

// Channel describes one interleaved value array inside every frame.
//
// Zero values select the defaults: format H, one item, scale 1.
type Channel struct {
	Name   string `yaml:"name" json:"name"`
	Offset int    `yaml:"offset" json:"offset"`
	Format Format `yaml:"format,omitempty" json:"format,omitempty"`
	Count  int    `yaml:"count,omitempty" json:"count,omitempty"`
	// Scale multiplies every value. Zero means unset and reads as 1, so a
	// channel cannot be scaled to all zeros; leave it out instead.
	Scale float64 `yaml:"scale,omitempty" json:"scale,omitempty"`
}

// Normalized returns a copy of c with defaults applied.
func (c Channel) Normalized() Channel {
	if c.Format == 0 {
		c.Format = DefaultFormat
	}
	if c.Count == 0 {
		c.Count = 1
	}
	if c.Scale == 0 {
		c.Scale = 1
	}
	return c
}

// End returns the first byte past the channel within a frame.
func (c Channel) End() int {
	n := c.Normalized()
	return n.Offset + n.Count*n.Format.Width()
}

// Validate checks a single descriptor. frameSize is ignored when zero.
func (c Channel) Validate(frameSize int) error {
	n := c.Normalized()
	switch {
	case n.Name == "":
		return fmt.Errorf("%w: empty name", ErrInvalidChannel)
	case !n.Format.Valid():
		return fmt.Errorf("%w: channel %s: %q", ErrUnsupportedFormat, n.Name, n.Format.String())
	case n.Offset < 0:
		return fmt.Errorf("%w: channel %s: negative offset %d", ErrInvalidChannel, n.Name, n.Offset)
	case n.Count < 0:
		return fmt.Errorf("%w: channel %s: negative count %d", ErrInvalidChannel, n.Name, n.Count)
	case frameSize > 0 && n.End() > frameSize:
		return fmt.Errorf("%w: channel %s: ends at byte %d, frame has %d",
			ErrInvalidChannel, n.Name, n.End(), frameSize)
	}
	return nil
}

// Config is a named set of channels sharing one frame geometry.
type Config struct {
	Name string `yaml:"name" json:"name"`
	// FrameSize is the frame length the layout was written for. Zero disables
	// the geometry checks.
	FrameSize int       `yaml:"frame_size" json:"frame_size"`
	Channels  []Channel `yaml:"channels" json:"channels"`
}

// Channel returns the normalized descriptor registered under name.
func (c *Config) Channel(name string) (Channel, error) {
	for _, ch := range c.Channels {
		if ch.Name == name {
			return ch.Normalized(), nil
		}
	}
	return Channel{}, fmt.Errorf("%w: %q in layout %q", ErrUnknownChannel, name, c.Name)
}

// Names returns the channel names in declaration order.
func (c *Config) Names() []string {
	names := make([]string, len(c.Channels))
	for i, ch := range c.Channels {
		names[i] = ch.Name
	}
	return names
}

// Validate checks every channel and rejects duplicate names.
// All problems are reported together.
func (c *Config) Validate() error {
	var errs []error
	if c.FrameSize < 0 {
		errs = append(errs, fmt.Errorf("%w: negative frame size %d", ErrInvalidChannel, c.FrameSize))
	}
	seen := make(map[string]struct{}, len(c.Channels))
	for _, ch := range c.Channels {
		if err := ch.Validate(c.FrameSize); err != nil {
			errs = append(errs, err)
			continue
		}
		if _, dup := seen[ch.Name]; dup {
			errs = append(errs, fmt.Errorf("%w: duplicate channel %s", ErrInvalidChannel, ch.Name))
		}
		seen[ch.Name] = struct{}{}
	}
	return errors.Join(errs...)
}

// CheckFrameSize compares the layout geometry with the frame length read from
// a file.
func (c *Config) CheckFrameSize(actual int) error {
	if c.FrameSize == 0 || c.FrameSize == actual {
		return nil
	}
	return fmt.Errorf("%w: layout %q expects %d bytes, file has %d",
		ErrFrameSizeMismatch, c.Name, c.FrameSize, actual)
}
