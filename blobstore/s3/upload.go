package s3

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/binary"
	"errors"
	"hash/crc32"
	"io"
	"sync"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"

	"github.com/hupe1980/measx/blobstore"
)

// errUploadAborted ends a pipe upload that was aborted by the writer.
var errUploadAborted = errors.New("s3: upload aborted")

// UploadConfig configures exports written to S3.
type UploadConfig struct {
	// PartSize is the multipart part size. Default: 8 MiB.
	PartSize int64
	// Concurrency is the number of parts uploaded in parallel. Default: 5.
	Concurrency int
	// EnableChecksum adds CRC32C integrity checks. Default: true.
	EnableChecksum bool
	// LeavePartsOnError keeps uploaded parts of a failed multipart upload.
	LeavePartsOnError bool
	// Metadata is stored with every uploaded object.
	Metadata map[string]string
}

// DefaultUploadConfig returns the default upload settings.
func DefaultUploadConfig() UploadConfig {
	return UploadConfig{
		PartSize:       8 << 20,
		Concurrency:    5,
		EnableChecksum: true,
	}
}

func newUploader(client Client, cfg UploadConfig) *manager.Uploader {
	return manager.NewUploader(client, func(u *manager.Uploader) {
		if cfg.PartSize > 0 {
			u.PartSize = cfg.PartSize
		}
		if cfg.Concurrency > 0 {
			u.Concurrency = cfg.Concurrency
		}
		u.LeavePartsOnError = cfg.LeavePartsOnError
	})
}

// putInput builds the request shared by single and multipart uploads. The
// content type follows the object name.
func (c UploadConfig) putInput(bucket, key string, body io.Reader) *s3.PutObjectInput {
	in := &s3.PutObjectInput{
		Bucket:      aws.String(bucket),
		Key:         aws.String(key),
		Body:        body,
		ContentType: aws.String(blobstore.ContentType(key)),
	}
	if len(c.Metadata) > 0 {
		in.Metadata = c.Metadata
	}
	return in
}

var castagnoli = crc32.MakeTable(crc32.Castagnoli)

// crc32c returns the CRC32C of data in the base64 big-endian form S3 expects.
func crc32c(data []byte) string {
	var b [4]byte
	binary.BigEndian.PutUint32(b[:], crc32.Checksum(data, castagnoli))
	return base64.StdEncoding.EncodeToString(b[:])
}

// putObject uploads data in a single request.
func putObject(ctx context.Context, client Client, cfg UploadConfig, bucket, key string, data []byte) error {
	in := cfg.putInput(bucket, key, bytes.NewReader(data))
	in.ContentLength = aws.Int64(int64(len(data)))
	if cfg.EnableChecksum {
		in.ChecksumCRC32C = aws.String(crc32c(data))
	}
	_, err := client.PutObject(ctx, in)
	return err
}

// upload streams writes through a pipe into a background multipart upload.
// The object exists once Close returns nil.
type upload struct {
	pw   *io.PipeWriter
	done chan error

	mu       sync.Mutex
	finished bool
	err      error
}

func startUpload(ctx context.Context, uploader *manager.Uploader, cfg UploadConfig, bucket, key string) *upload {
	pr, pw := io.Pipe()
	in := cfg.putInput(bucket, key, pr)
	if cfg.EnableChecksum {
		in.ChecksumAlgorithm = types.ChecksumAlgorithmCrc32c
	}

	u := &upload{pw: pw, done: make(chan error, 1)}
	go func() {
		_, err := uploader.Upload(ctx, in)
		// Unblocks the writer when the upload fails early.
		_ = pr.CloseWithError(err)
		u.done <- err
	}()
	return u
}

func (u *upload) Write(p []byte) (int, error) {
	return u.pw.Write(p)
}

// Close completes the upload and waits for it. Later calls return the same
// result.
func (u *upload) Close() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return u.err
	}
	u.finished = true

	if err := u.pw.Close(); err != nil {
		u.err = err
		return err
	}
	u.err = <-u.done
	return u.err
}

// Abort cancels the upload. Uploaded parts are discarded unless
// LeavePartsOnError is set.
func (u *upload) Abort() error {
	u.mu.Lock()
	defer u.mu.Unlock()
	if u.finished {
		return nil
	}
	u.finished = true

	_ = u.pw.CloseWithError(errUploadAborted)
	<-u.done
	u.err = errUploadAborted
	return nil
}

// Sync is a no-op; data is committed on Close.
func (u *upload) Sync() error { return nil }
