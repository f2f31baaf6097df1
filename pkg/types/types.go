// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package types

import "time"

// Bucket is a named top-level container for objects.
type Bucket struct {
	ID        int64
	Name      string
	CreatedAt time.Time
}

// Object is an opaque binary payload addressed by (bucket, name).
// ETag is the lowercase hex SHA-256 of the canonical on-disk bytes.
type Object struct {
	ID        int64
	BucketID  int64
	Name      string
	Size      uint64
	ETag      string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// UploadState is the lifecycle state of a multipart upload.
type UploadState string

const (
	UploadStateInitiated UploadState = "initiated"
	UploadStateUploading UploadState = "uploading"
	UploadStateCompleted UploadState = "completed"
	UploadStateAborted   UploadState = "aborted"
	UploadStateExpired   UploadState = "expired"
)

// Terminal reports whether no further part uploads are accepted.
func (s UploadState) Terminal() bool {
	switch s {
	case UploadStateCompleted, UploadStateAborted, UploadStateExpired:
		return true
	}
	return false
}

// MultipartUpload tracks an in-progress or terminal multipart upload.
// Bucket carries the owning bucket's name for callers; the row itself
// references the bucket by id.
type MultipartUpload struct {
	ID         int64
	UploadID   string
	BucketID   int64
	Bucket     string
	ObjectName string
	State      UploadState
	ExpiresAt  time.Time
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// MultipartPart is one uploaded part of a multipart upload. TempPath is
// the on-disk location of the part bytes until completion or abort.
type MultipartPart struct {
	ID         int64
	UploadID   string
	PartNumber int
	Size       uint64
	ETag       string
	TempPath   string
	CreatedAt  time.Time
}
