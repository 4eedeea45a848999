package resource

import (
	"context"
	"io"
)

type throttledReader struct {
	ctx context.Context
	r   io.Reader
	c   *Controller
}

// ThrottledReader charges every byte read from r against the download
// budget of c. It stops with ctx's error once ctx is done.
func ThrottledReader(ctx context.Context, r io.Reader, c *Controller) io.Reader {
	return &throttledReader{ctx: ctx, r: r, c: c}
}

func (t *throttledReader) Read(p []byte) (int, error) {
	n, err := t.r.Read(p)
	if n > 0 {
		if werr := t.c.Throttle(t.ctx, n); werr != nil {
			return n, werr
		}
	}
	return n, err
}
