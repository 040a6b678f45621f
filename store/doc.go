// Package store defines the persistence collaborator of the layout engine.
//
// A Store keeps, per scope, the ordered set of item vectors and the last
// computed canvas position of each item. Implementations live in the
// subpackages:
//
//   - memory: process-local maps
//   - blob: any blobstore.BlobStore (memory, local files, MinIO, S3)
//   - dynamo: a DynamoDB table
//   - redis: Redis lists and hashes
//   - badger: an embedded Badger database
//   - bolt: an embedded bbolt file
//   - resilient: a circuit-breaking, retrying wrapper for any Store
//
// Stores do not serialise callers; the coordinator owns mutual exclusion.
// The storetest package provides a conformance suite every backend runs.
package store
