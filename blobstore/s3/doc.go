// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	store, err := s3.New(ctx, "my-bucket",
//	    s3.WithPrefix("recordings/"),
//	    s3.WithRegion("eu-central-1"),
//	)
//
//	sf, err := measx.OpenSeriesFrom(ctx, measx.Remote(store, "site-a/rec.dat"))
//
// # Features
//
//   - Range reads for partial fetches
//   - Multipart uploads for exports
//   - CRC32C checksums on single-request uploads
//   - Automatic pagination for listing
//
// # Export catalog
//
// Catalog records written exports in a DynamoDB table, one versioned entry
// per export of a recording:
//
//	catalog, err := s3.OpenCatalog(ctx, "measx-exports")
//	entry, err := catalog.Record(ctx, "s3://rec/site-a.dat", "s3://out/a.csv", rows)
//	history, err := catalog.History(ctx, "s3://rec/site-a.dat", 10)
package s3
