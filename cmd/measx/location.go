package main

import (
	"context"
	"fmt"
	"net/url"
	"os"
	"strings"

	"github.com/segmentio/ksuid"

	"github.com/hupe1980/measx"
	"github.com/hupe1980/measx/blobstore"
	"github.com/hupe1980/measx/blobstore/minio"
	s3store "github.com/hupe1980/measx/blobstore/s3"
)

// envMinioSecure enables TLS for minio:// locations. Credentials come from
// MINIO_ACCESS_KEY and MINIO_SECRET_KEY.
const envMinioSecure = "MINIO_SECURE"

// envAWSEndpoint redirects s3:// locations and the export catalog to an
// emulator such as LocalStack.
const envAWSEndpoint = "MEASX_AWS_ENDPOINT"

func awsOptions() []s3store.Option {
	if ep := os.Getenv(envAWSEndpoint); ep != "" {
		return []s3store.Option{s3store.WithEndpoint(ep)}
	}
	return nil
}

// location is a parsed file argument: a local path, s3://bucket/key or
// minio://host[:port]/bucket/key.
type location struct {
	Scheme   string
	Endpoint string
	Bucket   string
	Key      string
	Path     string
}

func (l location) remote() bool { return l.Scheme != "" }

func (l location) withKey(key string) location {
	l.Key = key
	return l
}

func (l location) String() string {
	switch l.Scheme {
	case "":
		return l.Path
	case "minio":
		return "minio://" + l.Endpoint + "/" + l.Bucket + "/" + l.Key
	default:
		return l.Scheme + "://" + l.Bucket + "/" + l.Key
	}
}

func parseLocation(s string) (location, error) {
	scheme, _, ok := strings.Cut(s, "://")
	if !ok {
		return location{Path: s}, nil
	}

	u, err := url.Parse(s)
	if err != nil {
		return location{}, fmt.Errorf("location %q: %w", s, err)
	}
	switch scheme {
	case "s3":
		if u.Host == "" {
			return location{}, fmt.Errorf("location %q: missing bucket", s)
		}
		return location{Scheme: scheme, Bucket: u.Host, Key: strings.TrimPrefix(u.Path, "/")}, nil
	case "minio":
		bucket, key, _ := strings.Cut(strings.TrimPrefix(u.Path, "/"), "/")
		if u.Host == "" || bucket == "" {
			return location{}, fmt.Errorf("location %q: want minio://host[:port]/bucket/key", s)
		}
		return location{Scheme: scheme, Endpoint: u.Host, Bucket: bucket, Key: key}, nil
	default:
		return location{}, fmt.Errorf("location %q: unsupported scheme %q", s, scheme)
	}
}

// openStore connects to the bucket of a remote location.
func openStore(ctx context.Context, l location) (blobstore.BlobStore, error) {
	switch l.Scheme {
	case "s3":
		return s3store.New(ctx, l.Bucket, awsOptions()...)
	case "minio":
		return minio.New(l.Endpoint, l.Bucket, minio.WithSecure(os.Getenv(envMinioSecure) == "true"))
	default:
		return nil, fmt.Errorf("not a remote location: %s", l.Path)
	}
}

// newCatalog opens the export catalog table.
var newCatalog = func(ctx context.Context, table string) (*s3store.Catalog, error) {
	return s3store.OpenCatalog(ctx, table, awsOptions()...)
}

// source resolves a file argument to a measx.Source.
func source(ctx context.Context, arg string) (measx.Source, error) {
	l, err := parseLocation(arg)
	if err != nil {
		return nil, err
	}
	if !l.remote() {
		return measx.Local(l.Path), nil
	}
	if l.Key == "" {
		return nil, fmt.Errorf("location %q: missing object key", arg)
	}
	store, err := openStore(ctx, l)
	if err != nil {
		return nil, err
	}
	return measx.Remote(store, l.Key), nil
}

// objectName completes a key that names a directory ("" or ending in "/")
// with a unique, time-sortable file name.
func objectName(key, ext string) string {
	if key != "" && !strings.HasSuffix(key, "/") {
		return key
	}
	return key + ksuid.New().String() + ext
}
