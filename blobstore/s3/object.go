package s3

import (
	"context"
	"fmt"
	"io"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
)

// object reads a stored recording with ranged GETs. It holds no
// connection, so Close is a no-op.
type object struct {
	client Client
	bucket string
	key    string
	size   int64
	etag   string
}

func (o *object) Size() int64  { return o.size }
func (o *object) Close() error { return nil }

// Version returns the ETag reported when the object was opened.
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
	body, err := o.ReadRange(ctx, off, want)
	if err != nil {
		return 0, err
	}
	defer func() { _ = body.Close() }()

	n, err := io.ReadFull(body, p[:want])
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
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	last := min(off+length, o.size) - 1
	out, err := o.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: aws.String(o.bucket),
		Key:    aws.String(o.key),
		Range:  aws.String(fmt.Sprintf("bytes=%d-%d", off, last)),
	})
	if err != nil {
		return nil, err
	}
	return out.Body, nil
}
