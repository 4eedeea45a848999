// Package export writes fetched channels as CSV or JSON Lines, optionally
// compressed with gzip, zstd or LZ4.
//
// Rows correspond to frames. A channel with one item per frame becomes one
// column; a channel with several items becomes NAME[0], NAME[1], ... in CSV
// and an array in JSON Lines.
//
//	n, err := export.Write(f, []export.Column{
//		{Name: "UL12", Block: ul12},
//		{Name: "UL12_h", Block: harmonics},
//	}, export.Options{Format: export.FormatCSV, Compression: export.CompressionZstd})
package export
