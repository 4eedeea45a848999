package minio

import (
	"context"
	"io"
	"os"
	"testing"
	"time"

	"github.com/minio/minio-go/v7"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/measx/blobstore"
)

// liveStore connects to the MinIO server named by MEASX_MINIO_ENDPOINT
// (default localhost:9000) with the minioadmin account, or skips.
func liveStore(t *testing.T) (*Store, context.Context) {
	t.Helper()
	endpoint := os.Getenv("MEASX_MINIO_ENDPOINT")
	if endpoint == "" {
		endpoint = "localhost:9000"
	}
	s, err := New(endpoint, "measx-test",
		WithStaticCredentials("minioadmin", "minioadmin"),
		WithPrefix(t.Name()),
	)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	t.Cleanup(cancel)
	if _, err := s.client.ListBuckets(ctx); err != nil {
		t.Skipf("no MinIO at %s: %v", endpoint, err)
	}
	ok, err := s.client.BucketExists(ctx, s.bucket)
	require.NoError(t, err)
	if !ok {
		require.NoError(t, s.client.MakeBucket(ctx, s.bucket, minio.MakeBucketOptions{}))
	}
	return s, ctx
}

func TestStore_Live(t *testing.T) {
	s, ctx := liveStore(t)

	rec := make([]byte, 3*287)
	copy(rec[2:], []byte{0x1f, 0x01}) // frame size 287
	require.NoError(t, s.Put(ctx, "site-a/RG000001.DAT", rec))
	t.Cleanup(func() { _ = s.Delete(context.Background(), "site-a/RG000001.DAT") })

	blob, err := s.Open(ctx, "site-a/RG000001.DAT")
	require.NoError(t, err)
	defer blob.Close()
	assert.Equal(t, int64(len(rec)), blob.Size())

	head := make([]byte, 4)
	_, err = blob.ReadAt(ctx, head, 0)
	require.NoError(t, err)
	assert.Equal(t, rec[:4], head)

	tail := make([]byte, 8)
	n, err := blob.ReadAt(ctx, tail, int64(len(rec)-4))
	assert.ErrorIs(t, err, io.EOF)
	assert.Equal(t, 4, n)

	rc, err := blob.ReadRange(ctx, 287, 287)
	require.NoError(t, err)
	frame, err := io.ReadAll(rc)
	require.NoError(t, err)
	require.NoError(t, rc.Close())
	assert.Len(t, frame, 287)

	w, err := s.Create(ctx, "exports/run.csv")
	require.NoError(t, err)
	_, err = io.WriteString(w, "time,UL12\n2024-01-01T12:00:00.000Z,230.1\n")
	require.NoError(t, err)
	require.NoError(t, w.Close())
	t.Cleanup(func() { _ = s.Delete(context.Background(), "exports/run.csv") })

	info, err := s.client.StatObject(ctx, s.bucket, s.key("exports/run.csv"), minio.StatObjectOptions{})
	require.NoError(t, err)
	assert.Equal(t, "text/csv", info.ContentType)

	names, err := s.List(ctx, "")
	require.NoError(t, err)
	assert.Equal(t, []string{"exports/run.csv", "site-a/RG000001.DAT"}, names)

	aborted, err := s.Create(ctx, "exports/aborted.csv")
	require.NoError(t, err)
	_, err = io.WriteString(aborted, "partial")
	require.NoError(t, err)
	require.NoError(t, aborted.(blobstore.Abortable).Abort())
	_, err = s.Open(ctx, "exports/aborted.csv")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)

	require.NoError(t, s.Delete(ctx, "site-a/RG000001.DAT"))
	require.NoError(t, s.Delete(ctx, "site-a/RG000001.DAT"))
	_, err = s.Open(ctx, "site-a/RG000001.DAT")
	assert.ErrorIs(t, err, blobstore.ErrNotFound)
}

func TestIsNotFound(t *testing.T) {
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NoSuchKey"}))
	assert.True(t, isNotFound(minio.ErrorResponse{Code: "NotFound"}))
	assert.False(t, isNotFound(minio.ErrorResponse{Code: "AccessDenied"}))
}

func TestNew(t *testing.T) {
	t.Setenv("MINIO_ROOT_USER", "")
	t.Setenv("MINIO_ROOT_PASSWORD", "")
	t.Setenv("MINIO_ACCESS_KEY", "env-access")
	t.Setenv("MINIO_SECRET_KEY", "env-secret")

	s, err := New("localhost:9000", "recordings",
		WithPrefix("site-a"),
		WithPartSize(16<<20),
		WithMetadata(map[string]string{"layout": "3p-nocurrent"}),
	)
	require.NoError(t, err)
	assert.Equal(t, "site-a/rec.dat", s.key("rec.dat"))
	assert.Equal(t, "rec.dat", s.relative("site-a/rec.dat"))

	v, err := s.opts.Creds.Get()
	require.NoError(t, err)
	assert.Equal(t, "env-access", v.AccessKeyID)

	po := s.putOptions("site-a/run.jsonl.zst")
	assert.Equal(t, "application/zstd", po.ContentType)
	assert.Equal(t, uint64(16<<20), po.PartSize)
	assert.Equal(t, "3p-nocurrent", po.UserMetadata["layout"])

	s, err = New("localhost:9000", "recordings", WithStaticCredentials("k", "s"), WithSecure(true))
	require.NoError(t, err)
	v, err = s.opts.Creds.Get()
	require.NoError(t, err)
	assert.Equal(t, "k", v.AccessKeyID)
	assert.True(t, s.opts.Secure)

	_, err = New("http://bad endpoint", "b")
	assert.Error(t, err)
}
