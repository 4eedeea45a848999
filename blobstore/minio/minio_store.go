package minio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"slices"
	"strings"
	"sync"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"

	"github.com/hupe1980/measx/blobstore"
)

var errUploadAborted = errors.New("minio: upload aborted")

// Options configures New.
type Options struct {
	Prefix   string
	Secure   bool
	Region   string
	Creds    *credentials.Credentials
	PartSize uint64
	Metadata map[string]string
}

// Option configures New.
type Option func(*Options)

// WithPrefix sets the key prefix for all blobs.
func WithPrefix(prefix string) Option {
	return func(o *Options) { o.Prefix = prefix }
}

// WithSecure enables TLS.
func WithSecure(secure bool) Option {
	return func(o *Options) { o.Secure = secure }
}

// WithRegion sets the bucket region.
func WithRegion(region string) Option {
	return func(o *Options) { o.Region = region }
}

// WithStaticCredentials replaces the environment credentials.
func WithStaticCredentials(accessKey, secretKey string) Option {
	return func(o *Options) { o.Creds = credentials.NewStaticV4(accessKey, secretKey, "") }
}

// WithPartSize sets the multipart part size for streamed exports.
func WithPartSize(n uint64) Option {
	return func(o *Options) { o.PartSize = n }
}

// WithMetadata stores user metadata with every uploaded object.
func WithMetadata(md map[string]string) Option {
	return func(o *Options) { o.Metadata = md }
}

// Store implements blobstore.BlobStore for MinIO and S3-compatible storage.
type Store struct {
	client *minio.Client
	bucket string
	opts   Options
}

var _ blobstore.BlobStore = (*Store)(nil)

// New connects to endpoint. Credentials default to the MINIO_ACCESS_KEY and
// MINIO_SECRET_KEY (or MINIO_ROOT_USER and MINIO_ROOT_PASSWORD) environment
// variables.
func New(endpoint, bucket string, optFns ...Option) (*Store, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}
	if opts.Creds == nil {
		opts.Creds = credentials.NewEnvMinio()
	}

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  opts.Creds,
		Secure: opts.Secure,
		Region: opts.Region,
	})
	if err != nil {
		return nil, fmt.Errorf("minio client for %s: %w", endpoint, err)
	}
	return &Store{client: client, bucket: bucket, opts: opts}, nil
}

// NewStore wraps an existing client. rootPrefix is prepended to all keys.
func NewStore(client *minio.Client, bucket, rootPrefix string) *Store {
	return &Store{client: client, bucket: bucket, opts: Options{Prefix: rootPrefix}}
}

func (s *Store) key(name string) string {
	return path.Join(s.opts.Prefix, name)
}

func (s *Store) putOptions(key string) minio.PutObjectOptions {
	return minio.PutObjectOptions{
		ContentType:  blobstore.ContentType(key),
		UserMetadata: s.opts.Metadata,
		PartSize:     s.opts.PartSize,
	}
}

func isNotFound(err error) bool {
	switch minio.ToErrorResponse(err).Code {
	case "NoSuchKey", "NotFound":
		return true
	}
	return false
}

// Open stats the object and returns a blob reading it with ranged GETs.
func (s *Store) Open(ctx context.Context, name string) (blobstore.Blob, error) {
	key := s.key(name)
	info, err := s.client.StatObject(ctx, s.bucket, key, minio.StatObjectOptions{})
	if err != nil {
		if isNotFound(err) {
			return nil, blobstore.ErrNotFound
		}
		return nil, err
	}
	return &object{client: s.client, bucket: s.bucket, key: key, size: info.Size, etag: info.ETag}, nil
}

// Put uploads data in a single request.
func (s *Store) Put(ctx context.Context, name string, data []byte) error {
	key := s.key(name)
	_, err := s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), s.putOptions(key))
	return err
}

// Create streams writes into an upload of unknown size. The object appears
// on Close.
func (s *Store) Create(ctx context.Context, name string) (blobstore.WritableBlob, error) {
	key := s.key(name)
	pr, pw := io.Pipe()
	w := &objectWriter{pw: pw, done: make(chan error, 1)}

	go func() {
		_, err := s.client.PutObject(ctx, s.bucket, key, pr, -1, s.putOptions(key))
		_ = pr.CloseWithError(err)
		w.done <- err
	}()
	return w, nil
}

// Delete removes a blob. A missing blob is not an error.
func (s *Store) Delete(ctx context.Context, name string) error {
	err := s.client.RemoveObject(ctx, s.bucket, s.key(name), minio.RemoveObjectOptions{})
	if err != nil && !isNotFound(err) {
		return err
	}
	return nil
}

// List returns the sorted blob names under prefix, relative to the store
// prefix.
func (s *Store) List(ctx context.Context, prefix string) ([]string, error) {
	var names []string
	objects := s.client.ListObjects(ctx, s.bucket, minio.ListObjectsOptions{
		Prefix:    s.key(prefix),
		Recursive: true,
	})
	for obj := range objects {
		if obj.Err != nil {
			return nil, obj.Err
		}
		if name := s.relative(obj.Key); name != "" {
			names = append(names, name)
		}
	}
	slices.Sort(names)
	return names, nil
}

func (s *Store) relative(key string) string {
	return strings.TrimPrefix(strings.TrimPrefix(key, s.opts.Prefix), "/")
}

// object is a read-only handle on a stored object.
type object struct {
	client *minio.Client
	bucket string
	key    string
	size   int64
	etag   string
}

func (o *object) Size() int64     { return o.size }
func (o *object) Close() error    { return nil }
func (o *object) Version() string { return o.etag }

// ReadAt fills p from off. A read crossing the end is shortened and reports
// io.EOF.
func (o *object) ReadAt(ctx context.Context, p []byte, off int64) (int, error) {
	if off >= o.size {
		return 0, io.EOF
	}
	if len(p) == 0 {
		return 0, nil
	}
	want := min(int64(len(p)), o.size-off)
	rc, err := o.ReadRange(ctx, off, want)
	if err != nil {
		return 0, err
	}
	defer func() { _ = rc.Close() }()

	n, err := io.ReadFull(rc, p[:want])
	if err == nil && n < len(p) {
		err = io.EOF
	}
	return n, err
}

// ReadRange returns up to length bytes from off.
func (o *object) ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error) {
	if off >= o.size {
		return nil, io.EOF
	}
	var opts minio.GetObjectOptions
	if err := opts.SetRange(off, min(off+length, o.size)-1); err != nil {
		return nil, err
	}
	return o.client.GetObject(ctx, o.bucket, o.key, opts)
}

// objectWriter feeds a background PutObject through a pipe.
type objectWriter struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	finished bool
	err      error
}

func (w *objectWriter) Write(p []byte) (int, error) {
	return w.pw.Write(p)
}

// Close completes the upload. Later calls return the same result.
func (w *objectWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return w.err
	}
	w.finished = true
	if err := w.pw.Close(); err != nil {
		w.err = err
		return err
	}
	w.err = <-w.done
	return w.err
}

// Abort stops the upload without creating the object.
func (w *objectWriter) Abort() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.finished {
		return nil
	}
	w.finished = true
	_ = w.pw.CloseWithError(errUploadAborted)
	<-w.done
	w.err = errUploadAborted
	return nil
}

// Sync is a no-op; data is committed on Close.
func (w *objectWriter) Sync() error { return nil }
