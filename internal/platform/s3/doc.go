// Package s3 stores state snapshots in S3-compatible object storage.
// It backs the optional state.snapshot configuration; uploads happen after
// each successful save, downloads restore a missing local state file.
package s3
