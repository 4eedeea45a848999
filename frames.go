package measx

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/measx/internal/conv"
)

// ParseFrameSet parses a comma-separated list of frame indices and inclusive
// ranges, e.g. "0-99,200,300-310", into a frame selection.
func ParseFrameSet(s string) (*roaring.Bitmap, error) {
	bm := roaring.New()
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		lo, hi, isRange := strings.Cut(part, "-")
		first, err := parseFrameIndex(lo)
		if err != nil {
			return nil, fmt.Errorf("frame set %q: %w", part, err)
		}
		if !isRange {
			bm.Add(first)
			continue
		}
		last, err := parseFrameIndex(hi)
		if err != nil {
			return nil, fmt.Errorf("frame set %q: %w", part, err)
		}
		if last < first {
			return nil, fmt.Errorf("frame set %q: descending range", part)
		}
		bm.AddRange(uint64(first), uint64(last)+1)
	}
	return bm, nil
}

func parseFrameIndex(s string) (uint32, error) {
	v, err := strconv.ParseUint(strings.TrimSpace(s), 10, 64)
	if err != nil {
		return 0, err
	}
	return conv.To[uint32](v)
}

// FrameRange returns the selection [start, start+count).
func FrameRange(start, count int) *roaring.Bitmap {
	bm := roaring.New()
	if start < 0 || count <= 0 {
		return bm
	}
	bm.AddRange(uint64(start), uint64(start)+uint64(count))
	return bm
}
