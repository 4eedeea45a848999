package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"slices"
	"strconv"
	"strings"
	"sync"
)

var errWriterClosed = errors.New("blobstore: writer closed")

// Info describes a stored blob. Version changes on every write.
type Info struct {
	Size        int64
	ContentType string
	Version     string
}

// MemoryStore is an in-memory BlobStore. It is used by tests and as a
// staging target for exports that are inspected before upload.
type MemoryStore struct {
	mu      sync.RWMutex
	objects map[string]memoryObject
	gen     uint64
}

type memoryObject struct {
	data        []byte
	contentType string
	version     string
}

// NewMemoryStore creates an empty in-memory blob store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{objects: make(map[string]memoryObject)}
}

func (m *MemoryStore) lookup(name string) (memoryObject, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[name]
	return obj, ok
}

// Stored data is never mutated after this, so open blobs keep a stable view.
func (m *MemoryStore) store(name string, data []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.gen++
	m.objects[name] = memoryObject{
		data:        data,
		contentType: ContentType(name),
		version:     strconv.FormatUint(m.gen, 10),
	}
}

// Open returns a blob reading a snapshot of name.
func (m *MemoryStore) Open(_ context.Context, name string) (Blob, error) {
	obj, ok := m.lookup(name)
	if !ok {
		return nil, ErrNotFound
	}
	return memoryBlob{data: obj.data, version: obj.version}, nil
}

// Stat returns the size and content type of name.
func (m *MemoryStore) Stat(name string) (Info, error) {
	obj, ok := m.lookup(name)
	if !ok {
		return Info{}, ErrNotFound
	}
	return Info{Size: int64(len(obj.data)), ContentType: obj.contentType, Version: obj.version}, nil
}

// Create buffers writes and stores the blob on Close.
func (m *MemoryStore) Create(_ context.Context, name string) (WritableBlob, error) {
	return &memoryWriter{store: m, name: name}, nil
}

// Put stores a copy of data.
func (m *MemoryStore) Put(_ context.Context, name string, data []byte) error {
	m.store(name, bytes.Clone(data))
	return nil
}

// Delete removes a blob. A missing blob is not an error.
func (m *MemoryStore) Delete(_ context.Context, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, name)
	return nil
}

// List returns the sorted names starting with prefix.
func (m *MemoryStore) List(_ context.Context, prefix string) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var names []string
	for name := range m.objects {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

// Bytes returns a copy of a stored blob.
func (m *MemoryStore) Bytes(name string) ([]byte, bool) {
	obj, ok := m.lookup(name)
	return bytes.Clone(obj.data), ok
}

// memoryBlob reads an immutable byte slice.
type memoryBlob struct {
	data    []byte
	version string
}

func (b memoryBlob) Size() int64     { return int64(len(b.data)) }
func (b memoryBlob) Close() error    { return nil }
func (b memoryBlob) Version() string { return b.version }

func (b memoryBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return 0, io.EOF
	}
	n := copy(p, b.data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (b memoryBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if off < 0 || off >= int64(len(b.data)) {
		return nil, io.EOF
	}
	end := min(off+length, int64(len(b.data)))
	return io.NopCloser(bytes.NewReader(b.data[off:end])), nil
}

// memoryWriter buffers a blob until Close. Abort drops the buffer.
type memoryWriter struct {
	store *MemoryStore
	name  string
	buf   bytes.Buffer
	done  bool
}

func (w *memoryWriter) Write(p []byte) (int, error) {
	if w.done {
		return 0, errWriterClosed
	}
	return w.buf.Write(p)
}

func (w *memoryWriter) Close() error {
	if w.done {
		return nil
	}
	w.done = true
	w.store.store(w.name, w.buf.Bytes())
	return nil
}

// Abort implements Abortable.
func (w *memoryWriter) Abort() error {
	w.done = true
	w.buf.Reset()
	return nil
}

func (w *memoryWriter) Sync() error { return nil }
