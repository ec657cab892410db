// Package minio provides a MinIO backed blobstore.Store for point cloud
// snapshots. It works with any S3-compatible object storage reachable by
// the MinIO client.
package minio
