// Package mmap maps recording files read-only so that frames and session
// header fields are decoded straight from the page cache.
//
//	m, err := mmap.Open("RG000013.DAT")
//	if err != nil { ... }
//	defer m.Close()
//
//	start, _ := m.Span(0, 23)
//	_ = m.AdviseSpan(off, n, mmap.AccessSequential)
//
// On Unix the file is mapped with mmap(2) and hints go to madvise(2). On
// Windows a file mapping view is used and hints are ignored.
//
// Close is idempotent. Slices returned by Bytes and Span are only valid
// until Close returns.
package mmap
