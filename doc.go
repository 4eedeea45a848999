// Package measx reads binary measurement logs recorded by power-quality
// analyzers.
//
// Two file families are supported:
//
//   - Frame-series files: a flat sequence of fixed-length frames. Bytes [2,4)
//     of the file hold the frame length as a little-endian uint16. Each frame
//     interleaves several numeric channels at fixed byte offsets.
//   - Session files: a small header with the recording's start and end time
//     as 23-byte text fields at offsets 2 and 25.
//
// Files are memory-mapped read-only; nothing is copied until a fetch
// materializes a dense matrix.
//
// # Quick Start
//
//	sf, err := measx.OpenSeries("rec.dat")
//	if err != nil {
//	    return err
//	}
//	defer sf.Close()
//
//	// 100 frames from frame 0, one uint16 at byte 23, scaled to volts.
//	ul12, err := sf.FetchU16(0, 100, 23, 1, 0.01195)
//
// Requests reaching past the last frame or the end of a frame are clamped,
// so the returned matrix may be smaller than requested, down to zero rows or
// columns. Only files too small to hold their header produce errors
// (errors.Is(err, measx.ErrFormat)).
//
// # Layouts
//
// Channel positions are described by a layout.Config rather than read from
// the file:
//
//	cfg, _ := layout.Preset(layout.Preset3PNoCurrent)
//	batch, err := measx.FetchChannels(ctx, sf, cfg, []string{"UL12", "UL23"}, measx.All())
//	defer batch.Release()
//
// # Remote Files
//
// Files in S3 or MinIO are opened through a blobstore:
//
//	store := s3.NewStore(client, "bucket", "recordings/")
//	sf, err := measx.OpenSeriesFrom(ctx, measx.Remote(store, "site-a/rec.dat"),
//	    measx.WithCacheDir("/var/cache/measx"))
//
// The object is downloaded once into the cache directory and mapped from
// there.
package measx
