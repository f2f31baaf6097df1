// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package multipart coordinates the metadata store and the local blob
// store through the multipart upload lifecycle: initiate, part upload,
// complete, abort.
package multipart

import (
	"context"
	"errors"
	"io"
	"time"

	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/storage"
)

// Storage defines the blob-store operations the multipart service needs.
// The interface allows substitution in tests.
type Storage interface {
	EnsureBucket(bucket string) error
	WritePart(ctx context.Context, uploadID string, partNumber int, r io.Reader) (*storage.WriteResult, error)
	AssembleObject(ctx context.Context, bucket, object, uploadID string, partPaths []string) (*storage.WriteResult, error)
	RemoveUploadDir(uploadID string) error
	RemoveObject(bucket, object string)
}

// Config holds configuration for the multipart service.
type Config struct {
	DB      db.DB
	Storage Storage

	// UploadTTL bounds how long an upload may stay open before the
	// sweeper reaps it.
	UploadTTL time.Duration
}

// Service is the multipart upload orchestrator.
type Service interface {
	// CreateUpload starts a new upload for an object in a bucket.
	CreateUpload(ctx context.Context, req *CreateUploadRequest) (*CreateUploadResult, error)

	// UploadPart persists one part's bytes and metadata. Re-uploading a
	// part number replaces the previous bytes and etag.
	UploadPart(ctx context.Context, req *UploadPartRequest) (*UploadPartResult, error)

	// ListParts returns the upload's state and its parts ordered by
	// part number.
	ListParts(ctx context.Context, bucket, uploadID string) (*ListPartsResult, error)

	// Complete validates the client's part list, reassembles the object,
	// publishes it, and retires the upload.
	Complete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error)

	// Abort cancels an upload and removes its parts.
	Abort(ctx context.Context, bucket, uploadID string) error
}

// NewService creates a multipart service.
func NewService(cfg Config) (Service, error) {
	if cfg.DB == nil {
		return nil, errors.New("DB is required")
	}
	if cfg.Storage == nil {
		return nil, errors.New("Storage is required")
	}
	if cfg.UploadTTL <= 0 {
		return nil, errors.New("UploadTTL must be positive")
	}

	return &serviceImpl{
		db:        cfg.DB,
		storage:   cfg.Storage,
		uploadTTL: cfg.UploadTTL,
	}, nil
}
