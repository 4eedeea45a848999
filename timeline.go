package measx

import (
	"math"
	"time"
)

// Timeline converts a time channel into absolute timestamps. Column 0 of
// ticks holds a scaled time in milliseconds; each row is placed at start
// plus its distance from the first row, truncated to whole milliseconds.
func Timeline(start time.Time, ticks Block) []time.Time {
	rows, cols := ticks.Shape()
	if rows == 0 || cols == 0 {
		return nil
	}

	base := ticks.Float64(0, 0)
	out := make([]time.Time, rows)
	for i := range out {
		ms := math.Trunc(ticks.Float64(i, 0) - base)
		out[i] = start.Add(time.Duration(ms) * time.Millisecond)
	}
	return out
}
