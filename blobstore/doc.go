// Package blobstore provides pluggable storage backends for point cloud
// snapshots.
//
// Backends:
//   - LocalStore: directory on the local file system
//   - MemoryStore: in-memory, for tests
//   - s3.Store: AWS S3 (subpackage)
//   - minio.Store: MinIO and S3-compatible storage (subpackage)
package blobstore
