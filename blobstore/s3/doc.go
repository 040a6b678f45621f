// Package s3 provides an S3 implementation of the blobstore.BlobStore interface.
//
// # Usage
//
//	cfg, err := config.LoadDefaultConfig(ctx, config.WithRegion("eu-central-1"))
//	blobs := s3.NewStore(awss3.NewFromConfig(cfg), "my-bucket", "boards/")
//	st := blob.New(blobs)
//
// # Features
//
//   - Multipart uploads for large blobs via the transfer manager
//   - Automatic pagination for listing
//   - Configurable prefix for multi-tenant isolation
package s3
