package measx

import (
	"context"
	"fmt"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/measx/layout"
	"github.com/hupe1980/measx/resource"
)

// Window selects the frames a fetch reads: either Count frames from Start, or
// the explicit set Frames when it is non-nil.
type Window struct {
	Start  int
	Count  int
	Frames *roaring.Bitmap
}

// All returns a window covering every frame.
func All() Window {
	return Window{Start: 0, Count: int(^uint(0) >> 1)}
}

// rows returns the number of rows a fetch over w produces in a file of total frames.
func (w Window) rows(total int) int {
	if w.Frames != nil {
		return selectedRows(w.Frames, total)
	}
	return clampRows(total, w.Start, w.Count)
}

// Batch holds the result of FetchChannels.
type Batch struct {
	// Names lists the channels in request order.
	Names  []string
	Blocks map[string]Block

	mem *resource.Reservation
}

// Block returns the matrix fetched for name, or nil.
func (b *Batch) Block(name string) Block {
	return b.Blocks[name]
}

// Release returns the batch's memory reservation to the resource controller.
// It is safe to call more than once.
func (b *Batch) Release() {
	if b.mem != nil {
		b.mem.Release()
	}
}

// FetchChannels reads several channels of cfg over the same window in
// parallel. Worker slots and the memory for all results are taken from the
// resource controller configured on the file (see WithResourceController);
// call Batch.Release once the results are no longer needed.
func FetchChannels(ctx context.Context, s *SeriesFile, cfg *layout.Config, names []string, w Window) (*Batch, error) {
	chans := make([]layout.Channel, len(names))
	for i, name := range names {
		ch, err := cfg.Channel(name)
		if err != nil {
			return nil, err
		}
		chans[i] = ch
	}

	frameSize, err := s.FrameSize()
	if err != nil {
		return nil, err
	}
	if err := cfg.CheckFrameSize(frameSize); err != nil {
		return nil, err
	}

	reserved := reservation(chans, frameSize, w.rows(s.frameCount(frameSize)))
	rc := s.opts.rc
	mem, err := rc.Reserve(reserved)
	if err != nil {
		s.opts.logger.LogBatch(ctx, len(names), reserved, err)
		return nil, fmt.Errorf("%d channels: %w", len(names), err)
	}

	blocks := make([]Block, len(chans))
	g, gctx := errgroup.WithContext(ctx)
	for i, ch := range chans {
		done, err := rc.Worker(gctx)
		if err != nil {
			break
		}
		g.Go(func() error {
			defer done()
			if err := gctx.Err(); err != nil {
				return err
			}
			b, err := s.Fetch(ch, w)
			if err != nil {
				return fmt.Errorf("channel %s: %w", ch.Name, err)
			}
			blocks[i] = b
			return nil
		})
	}
	err = g.Wait()
	if err == nil {
		// Worker only fails when the context is done.
		err = ctx.Err()
	}
	s.opts.logger.LogBatch(ctx, len(names), reserved, err)
	if err != nil {
		mem.Release()
		return nil, err
	}

	batch := &Batch{
		Names:  append([]string(nil), names...),
		Blocks: make(map[string]Block, len(names)),
		mem:    mem,
	}
	for i, name := range names {
		batch.Blocks[name] = blocks[i]
	}
	return batch, nil
}

// reservation is the number of result bytes a batch will allocate.
func reservation(chans []layout.Channel, frameSize, rows int) int64 {
	var total int64
	for _, ch := range chans {
		cols := clampCols(frameSize, ch.Offset, ch.Count, ch.Format.Width())
		total += int64(rows) * int64(cols) * int64(ch.Format.OutputWidth())
	}
	return total
}
