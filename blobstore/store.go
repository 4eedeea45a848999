package blobstore

import (
	"context"
	"io"
	"os"

	"github.com/hupe1980/measx/internal/mmap"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for accessing measurement files kept outside
// the local file system, and for storing exported results.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible
	// when the returned writer is closed.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// Size returns the size of the blob in bytes.
	Size() int64
	// ReadAt reads len(p) bytes starting at off.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader for up to length bytes starting at off.
	// It returns io.EOF when off is at or past the end of the blob.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data to stable storage where supported.
	Sync() error
}

// Abortable is implemented by WritableBlobs that can discard a write in
// progress. After Abort the blob is not created.
type Abortable interface {
	Abort() error
}

// Versioned is an optional interface for Blobs that can name the revision
// they read, such as an S3 ETag. An empty string means unknown.
type Versioned interface {
	Version() string
}

// Mappable is an optional interface for Blobs already backed by a memory
// mapping of a local file.
type Mappable interface {
	// Detach transfers ownership of the mapping to the caller and returns it
	// with the path it maps. The blob no longer owns the mapping afterwards;
	// closing the blob leaves it intact.
	Detach() (*mmap.Mapping, string, error)
}
