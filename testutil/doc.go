// Package testutil builds synthetic measurement files for tests.
//
// This package is intended for use in tests and benchmarks only.
//
// # Frame-Series Files
//
//	b := testutil.NewSeries(8, 3)      // 3 frames of 8 bytes
//	b.PutU32(1, 4, 101)                // frame 1, byte 4
//	path := b.WriteFile(t, "rec.dat")
//
// # Session Files
//
//	path := testutil.WriteFile(t, "rec.smr",
//	    testutil.SessionBytes("2024-01-01T00:00:00.000", "2024-01-01T01:00:00.000"))
//
// # Random Content
//
//	rng := testutil.NewRNG(seed)
//	rng.Fill(b.Bytes())
package testutil
