// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package db defines the metadata store interface for buckets, objects,
// and multipart uploads. The SQLite implementation in db/sqlite is the
// production backend; db/memory is a test substitute.
package db

import (
	"context"
	"fmt"
	"time"

	"github.com/nebulafs/nebulafs/pkg/types"
)

// Common errors
var (
	ErrBucketNotFound = fmt.Errorf("bucket not found")
	ErrBucketExists   = fmt.Errorf("bucket already exists")
	ErrObjectNotFound = fmt.Errorf("object not found")
	ErrUploadNotFound = fmt.Errorf("multipart upload not found")
)

// DB is the main database interface for the metadata layer.
type DB interface {
	BucketStore
	ObjectStore
	MultipartStore

	// Migrate applies the schema. It is idempotent.
	Migrate(ctx context.Context) error

	// Close closes the database connection
	Close() error
}

// BucketStore provides CRUD operations for bucket metadata.
type BucketStore interface {
	// CreateBucket inserts a new bucket. A name collision returns
	// ErrBucketExists.
	CreateBucket(ctx context.Context, name string) (*types.Bucket, error)

	// GetBucket retrieves bucket metadata by name.
	GetBucket(ctx context.Context, name string) (*types.Bucket, error)

	// ListBuckets returns all buckets ordered by name ascending.
	ListBuckets(ctx context.Context) ([]*types.Bucket, error)
}

// ObjectStore provides CRUD operations for object metadata.
type ObjectStore interface {
	// UpsertObject inserts or updates the row keyed by (bucket, name).
	// created_at is set on insert; updated_at always.
	UpsertObject(ctx context.Context, bucket, name string, size uint64, etag string) (*types.Object, error)

	// GetObject retrieves object metadata by bucket and name.
	GetObject(ctx context.Context, bucket, name string) (*types.Object, error)

	// ListObjects returns objects in a bucket whose names start with
	// prefix, ordered by name ascending.
	ListObjects(ctx context.Context, bucket, prefix string) ([]*types.Object, error)

	// DeleteObject removes object metadata. Deleting an absent object is
	// not an error; an absent bucket is ErrBucketNotFound.
	DeleteObject(ctx context.Context, bucket, name string) error
}

// MultipartStore provides operations for multipart uploads and their parts.
type MultipartStore interface {
	// CreateUpload inserts a new upload row in state initiated.
	CreateUpload(ctx context.Context, upload *types.MultipartUpload) error

	// GetUpload retrieves an upload by its globally unique upload id.
	GetUpload(ctx context.Context, uploadID string) (*types.MultipartUpload, error)

	// ListExpiredUploads returns uploads in state initiated or uploading
	// with expires_at before cutoff, ordered by expires_at ascending,
	// at most limit rows.
	ListExpiredUploads(ctx context.Context, cutoff time.Time, limit int) ([]*types.MultipartUpload, error)

	// UpdateUploadState writes the new state and touches updated_at.
	UpdateUploadState(ctx context.Context, uploadID string, state types.UploadState) error

	// DeleteUpload removes the upload row.
	DeleteUpload(ctx context.Context, uploadID string) error

	// PutPart inserts or replaces the part keyed by (upload_id, part_number).
	PutPart(ctx context.Context, part *types.MultipartPart) error

	// ListParts returns all parts for an upload ordered by part_number
	// ascending.
	ListParts(ctx context.Context, uploadID string) ([]*types.MultipartPart, error)

	// DeleteParts removes all parts for an upload.
	DeleteParts(ctx context.Context, uploadID string) error
}

// FormatTime renders a timestamp the way the schema stores it: RFC 3339
// UTC at second precision. The fixed width keeps string comparison in SQL
// consistent with time ordering.
func FormatTime(t time.Time) string {
	return t.UTC().Truncate(time.Second).Format(time.RFC3339)
}

// ParseTime is the inverse of FormatTime.
func ParseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339, s)
}
