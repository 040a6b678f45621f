// Package blobstore provides the object storage abstraction behind store/blob.
//
// BlobStore reads and writes whole named objects. Names use '/' as separator.
// Implementations must be safe for concurrent use.
//
// # Built-in Implementations
//
//   - MemoryStore: process-local, for tests and ephemeral boards
//   - LocalStore: a directory on the local filesystem
//   - CachingStore: a read cache in front of any BlobStore
//   - minio.Store: MinIO and other S3-compatible servers
//   - s3.Store: Amazon S3
//
// # Custom Implementations
//
//	type BlobStore interface {
//	    Get(ctx, name) ([]byte, error)   // ErrNotFound if missing
//	    Put(ctx, name, data) error       // atomic replace
//	    Delete(ctx, name) error          // idempotent
//	    List(ctx, prefix) ([]string, error)
//	}
package blobstore
