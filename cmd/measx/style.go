package main

import (
	"fmt"
	"io"
	"os"

	"github.com/fatih/color"
	"github.com/mattn/go-isatty"
)

// style renders labels and values for human-readable output.
type style struct {
	label func(a ...any) string
	value func(a ...any) string
	warn  func(a ...any) string
}

// newStyle enables colors for mode "always", or for "auto" when w is a
// terminal.
func newStyle(w io.Writer, mode string) *style {
	enabled := mode == "always"
	if mode == "auto" {
		if f, ok := w.(*os.File); ok {
			enabled = isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
		}
	}

	mk := func(attrs ...color.Attribute) func(a ...any) string {
		c := color.New(attrs...)
		if enabled {
			c.EnableColor()
		} else {
			c.DisableColor()
		}
		return c.SprintFunc()
	}
	return &style{
		label: mk(color.FgCyan),
		value: mk(color.Bold),
		warn:  mk(color.FgYellow),
	}
}

// field prints one "label: value" line.
func (s *style) field(w io.Writer, label string, value any) {
	fmt.Fprintf(w, "%s %s\n", s.label(fmt.Sprintf("%-12s", label+":")), s.value(value))
}
