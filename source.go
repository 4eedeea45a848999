package measx

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"time"

	"github.com/hupe1980/measx/blobstore"
	"github.com/hupe1980/measx/internal/fs"
	"github.com/hupe1980/measx/internal/mmap"
	"github.com/hupe1980/measx/resource"
)

// Source locates a measurement file. Use Local for files on disk and Remote
// for objects in a blob store.
type Source interface {
	// acquire maps the file and returns the mapping with the local path it
	// was mapped from.
	acquire(ctx context.Context, o *options) (*mmap.Mapping, string, error)
	fmt.Stringer
}

type localSource struct {
	path string
}

// Local returns a Source for a file on the local file system.
func Local(path string) Source {
	return localSource{path: path}
}

func (s localSource) String() string { return s.path }

func (s localSource) acquire(_ context.Context, _ *options) (*mmap.Mapping, string, error) {
	m, err := mmap.Open(s.path)
	if err != nil {
		return nil, "", &IOError{Op: "open", Path: s.path, Err: err}
	}
	return m, s.path, nil
}

type remoteSource struct {
	store blobstore.BlobStore
	name  string
}

// Remote returns a Source for an object in a blob store.
//
// Blobs that can hand over a memory mapping are used in place. Others are
// downloaded once into the cache directory (see WithCacheDir) and mapped
// from there. A cached copy is reused when its size matches and, for blobs
// implementing blobstore.Versioned, when the version recorded next to it
// matches too.
func Remote(store blobstore.BlobStore, name string) Source {
	return remoteSource{store: store, name: name}
}

func (s remoteSource) String() string { return s.name }

func (s remoteSource) acquire(ctx context.Context, o *options) (*mmap.Mapping, string, error) {
	blob, err := s.store.Open(ctx, s.name)
	if err != nil {
		return nil, "", &IOError{Op: "open", Path: s.name, Err: err}
	}
	defer func() { _ = blob.Close() }()

	if mb, ok := blob.(blobstore.Mappable); ok {
		m, path, err := mb.Detach()
		if err != nil {
			return nil, "", &IOError{Op: "map", Path: s.name, Err: err}
		}
		return m, path, nil
	}

	if blob.Size() == 0 {
		return nil, "", &IOError{Op: "open", Path: s.name, Err: mmap.ErrEmptyFile}
	}

	local, err := s.stage(ctx, blob, o)
	if err != nil {
		return nil, "", err
	}

	m, err := mmap.Open(local)
	if err != nil {
		return nil, "", &IOError{Op: "open", Path: local, Err: err}
	}
	return m, local, nil
}

// versionSuffix names the file recording the version of a cached copy.
const versionSuffix = ".version"

// stage copies blob into the cache directory unless an up-to-date copy is
// already there, and returns the local path.
func (s remoteSource) stage(ctx context.Context, blob blobstore.Blob, o *options) (string, error) {
	began := time.Now()
	local := cachePath(o.cacheDir, s.name)
	version := blobVersion(blob)

	if cached(o.fs, local, blob.Size(), version) {
		o.metrics.RecordDownload(0, time.Since(began), nil)
		o.logger.LogDownload(ctx, s.name, local, 0, true, nil)
		return local, nil
	}

	n, err := s.download(ctx, blob, local, o)
	if err == nil {
		err = recordVersion(o.fs, local, version)
	}
	o.metrics.RecordDownload(n, time.Since(began), err)
	o.logger.LogDownload(ctx, s.name, local, n, false, err)
	if err != nil {
		return "", &IOError{Op: "download", Path: s.name, Err: err}
	}
	return local, nil
}

func blobVersion(blob blobstore.Blob) string {
	if v, ok := blob.(blobstore.Versioned); ok {
		return v.Version()
	}
	return ""
}

func cached(fsys fs.FileSystem, local string, size int64, version string) bool {
	fi, err := fsys.Stat(local)
	if err != nil || fi.Size() != size {
		return false
	}
	if version == "" {
		return true
	}
	got, err := fsys.ReadFile(local + versionSuffix)
	return err == nil && string(got) == version
}

// recordVersion stores version next to local. Without a version any old
// record is removed.
func recordVersion(fsys fs.FileSystem, local, version string) error {
	if version == "" {
		if err := fsys.Remove(local + versionSuffix); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		return nil
	}
	f, err := fs.Stage(fsys, local+versionSuffix, ".part")
	if err != nil {
		return err
	}
	if _, err := io.WriteString(f, version); err != nil {
		return errors.Join(err, f.Discard())
	}
	return f.Commit()
}

func (s remoteSource) download(ctx context.Context, blob blobstore.Blob, local string, o *options) (int64, error) {
	rc, err := blob.ReadRange(ctx, 0, blob.Size())
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	f, err := fs.Stage(o.fs, local, ".part")
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(f, resource.ThrottledReader(ctx, rc, o.rc))
	if err == nil && n != blob.Size() {
		err = fmt.Errorf("short download: got %d of %d bytes", n, blob.Size())
	}
	if err != nil {
		return n, errors.Join(err, f.Discard())
	}
	return n, f.Commit()
}

// cachePath maps a blob name to a path inside dir. Names cannot escape dir.
func cachePath(dir, name string) string {
	return filepath.Join(dir, filepath.FromSlash(path.Clean("/"+name)))
}

// OpenSeriesFrom maps a frame-series file from any Source.
func OpenSeriesFrom(ctx context.Context, src Source, optFns ...Option) (*SeriesFile, error) {
	o := applyOptions(optFns)
	m, local, err := acquire(ctx, "series", src, &o)
	if err != nil {
		return nil, err
	}
	return newSeriesFile(m, local, o), nil
}

// OpenSessionFrom maps a session file from any Source.
func OpenSessionFrom(ctx context.Context, src Source, optFns ...Option) (*SessionFile, error) {
	o := applyOptions(optFns)
	m, local, err := acquire(ctx, "session", src, &o)
	if err != nil {
		return nil, err
	}
	return newSessionFile(m, local, o), nil
}

func acquire(ctx context.Context, kind string, src Source, o *options) (*mmap.Mapping, string, error) {
	began := time.Now()
	m, local, err := src.acquire(ctx, o)
	o.metrics.RecordOpen(kind, time.Since(began), err)
	o.logger.LogOpen(kind, src.String(), m.Size(), err)
	return m, local, err
}
