// Package minio provides a BlobStore implementation using the MinIO client.
//
// It works with MinIO and other S3-compatible storage such as Ceph or Garage,
// without pulling in the AWS SDK. Uploaded objects carry a content type
// derived from their name (see blobstore.ContentType).
//
// # Basic Usage
//
//	store, err := minio.New("localhost:9000", "recordings",
//	    minio.WithPrefix("site-a/"),
//	    minio.WithStaticCredentials("minioadmin", "minioadmin"),
//	)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	sf, err := measx.OpenSeriesFrom(ctx, measx.Remote(store, "rec.dat"))
package minio
