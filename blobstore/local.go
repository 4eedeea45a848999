package blobstore

import (
	"bytes"
	"context"
	"errors"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"slices"
	"strings"

	mfs "github.com/hupe1980/measx/internal/fs"
	"github.com/hupe1980/measx/internal/mmap"
)

// stagingSuffix marks exports still being written. List skips them.
const stagingSuffix = ".tmp"

// LocalStore keeps blobs as files below a root directory. Names use forward
// slashes on every platform.
type LocalStore struct {
	root string
	fsys mfs.FileSystem
}

// NewLocalStore returns a store rooted at root.
func NewLocalStore(root string) *LocalStore {
	return NewLocalStoreWithFS(root, mfs.OS)
}

// NewLocalStoreWithFS writes through fsys. Reads always map the real file.
func NewLocalStoreWithFS(root string, fsys mfs.FileSystem) *LocalStore {
	return &LocalStore{root: root, fsys: fsys}
}

func (s *LocalStore) path(name string) string {
	return filepath.Join(s.root, filepath.FromSlash(name))
}

// Open maps the named file. The returned Blob implements Mappable, so a
// local recording is never copied into the download cache.
func (s *LocalStore) Open(_ context.Context, name string) (Blob, error) {
	p := s.path(name)
	m, err := mmap.Open(p)
	if err != nil {
		return nil, err
	}
	return &mappedBlob{m: m, path: p, size: int64(m.Size())}, nil
}

// Create stages the blob next to its final name. It appears on Close.
func (s *LocalStore) Create(_ context.Context, name string) (WritableBlob, error) {
	f, err := mfs.Stage(s.fsys, s.path(name), stagingSuffix)
	if err != nil {
		return nil, err
	}
	return stagedBlob{f}, nil
}

// Put writes data in one staged write.
func (s *LocalStore) Put(ctx context.Context, name string, data []byte) error {
	f, err := mfs.Stage(s.fsys, s.path(name), stagingSuffix)
	if err != nil {
		return err
	}
	if _, err := f.Write(data); err != nil {
		return errors.Join(err, f.Discard())
	}
	return f.Commit()
}

// Delete removes a blob. A missing blob is not an error.
func (s *LocalStore) Delete(_ context.Context, name string) error {
	if err := s.fsys.Remove(s.path(name)); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

// List returns the sorted names starting with prefix. A missing root holds
// no blobs.
func (s *LocalStore) List(_ context.Context, prefix string) ([]string, error) {
	var names []string
	err := filepath.WalkDir(s.root, func(p string, d fs.DirEntry, err error) error {
		switch {
		case err != nil:
			return err
		case d.IsDir(), strings.HasSuffix(p, stagingSuffix):
			return nil
		}
		rel, err := filepath.Rel(s.root, p)
		if err != nil {
			return err
		}
		if name := filepath.ToSlash(rel); strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
		return nil
	})
	if err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, err
	}
	slices.Sort(names)
	return names, nil
}

// mappedBlob reads a local file through its mapping.
type mappedBlob struct {
	m    *mmap.Mapping
	path string
	size int64
}

func (b *mappedBlob) Size() int64 { return b.size }

func (b *mappedBlob) ReadAt(_ context.Context, p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	return b.m.ReadAt(p, off)
}

func (b *mappedBlob) ReadRange(_ context.Context, off, length int64) (io.ReadCloser, error) {
	if b.m.Closed() {
		return nil, mmap.ErrClosed
	}
	if off < 0 || off >= b.size {
		return nil, io.EOF
	}
	span, err := b.m.Span(int(off), int(min(length, b.size-off)))
	if err != nil {
		return nil, err
	}
	return io.NopCloser(bytes.NewReader(span)), nil
}

// Close unmaps the file unless the mapping was detached.
func (b *mappedBlob) Close() error { return b.m.Close() }

// Detach implements Mappable.
func (b *mappedBlob) Detach() (*mmap.Mapping, string, error) {
	if b.m.Closed() {
		return nil, "", mmap.ErrClosed
	}
	m := b.m
	b.m = nil
	return m, b.path, nil
}

// stagedBlob adapts a staged file to WritableBlob.
type stagedBlob struct{ *mfs.Staged }

func (b stagedBlob) Close() error { return b.Commit() }

// Abort implements Abortable.
func (b stagedBlob) Abort() error { return b.Discard() }
