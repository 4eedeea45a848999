package measx

import (
	"log/slog"
	"os"
	"path/filepath"

	"github.com/hupe1980/measx/internal/fs"
	"github.com/hupe1980/measx/internal/mmap"
	"github.com/hupe1980/measx/resource"
)

// AccessPattern is a kernel paging hint applied to the frames a fetch reads.
type AccessPattern = mmap.AccessPattern

// Access patterns accepted by WithAccessPattern.
const (
	AccessDefault    = mmap.AccessDefault
	AccessSequential = mmap.AccessSequential
	AccessRandom     = mmap.AccessRandom
	AccessWillNeed   = mmap.AccessWillNeed
)

type options struct {
	logger   *Logger
	metrics  MetricsCollector
	rc       *resource.Controller
	cacheDir string
	access   AccessPattern
	fs       fs.FileSystem
}

// Option configures readers and sources.
type Option func(*options)

// WithLogger sets a custom structured logger.
func WithLogger(l *Logger) Option {
	return func(o *options) {
		o.logger = l
	}
}

// WithLogLevel installs a text logger writing to stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetrics sets a custom metrics collector.
func WithMetrics(mc MetricsCollector) Option {
	return func(o *options) {
		o.metrics = mc
	}
}

// WithResourceController bounds worker concurrency, result memory and
// download throughput. Without it no limits apply.
func WithResourceController(rc *resource.Controller) Option {
	return func(o *options) {
		o.rc = rc
	}
}

// WithCacheDir sets the directory remote sources are downloaded into.
// Defaults to $TMPDIR/measx. Each copy is kept with a ".version" file when
// the store reports object versions, so a recording overwritten in place is
// fetched again. Stores without versions are matched by size alone.
func WithCacheDir(dir string) Option {
	return func(o *options) {
		o.cacheDir = dir
	}
}

// WithAccessPattern advises the kernel on every frame window before it is
// decoded. AccessSequential suits long scans of large files.
func WithAccessPattern(p AccessPattern) Option {
	return func(o *options) {
		o.access = p
	}
}

// withFileSystem replaces the file system used for staging downloads.
func withFileSystem(fsys fs.FileSystem) Option {
	return func(o *options) {
		o.fs = fsys
	}
}

func applyOptions(opts []Option) options {
	o := options{
		logger:   NoopLogger(),
		metrics:  NoopMetricsCollector{},
		cacheDir: filepath.Join(os.TempDir(), "measx"),
		fs:       fs.OS,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.logger == nil {
		o.logger = NoopLogger()
	}
	if o.metrics == nil {
		o.metrics = NoopMetricsCollector{}
	}
	return o
}
