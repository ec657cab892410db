// Package s3 provides an AWS S3 backed blobstore.Store for point cloud
// snapshots.
//
// Uploads stream through the S3 transfer manager, so snapshots larger
// than memory can be written without buffering the whole payload.
package s3
