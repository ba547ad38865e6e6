// Package s3 is the S3-compatible types.ObjectStore implementation.
//
// Every namespace path and file path pair is flattened into one S3 key
// (namespace/path), so directory operations (MoveDir, DeleteDir, IterDir)
// are expressed as prefix operations over ListObjectsV2 rather than as
// native filesystem calls. Uploads go through the SDK's multipart manager
// so Save never needs to hold a whole file in memory.
package s3
