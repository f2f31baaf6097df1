// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package multipart

import (
	"io"
	"time"

	"github.com/nebulafs/nebulafs/pkg/types"
)

// CreateUploadRequest starts a multipart upload.
type CreateUploadRequest struct {
	Bucket     string
	ObjectName string
}

// CreateUploadResult is returned on successful initiation.
type CreateUploadResult struct {
	UploadID   string
	ObjectName string
	ExpiresAt  time.Time
}

// UploadPartRequest carries one part's bytes.
type UploadPartRequest struct {
	Bucket     string
	UploadID   string
	PartNumber int
	Body       io.Reader
}

// UploadPartResult is returned after the part is durable.
type UploadPartResult struct {
	UploadID   string
	PartNumber int
	ETag       string
	Size       uint64
}

// ListPartsResult describes an upload and its stored parts.
type ListPartsResult struct {
	UploadID   string
	ObjectName string
	State      types.UploadState
	Parts      []*types.MultipartPart
}

// CompletePart is one entry of the client-supplied completion list.
type CompletePart struct {
	PartNumber int
	ETag       string
}

// CompleteRequest finishes an upload from its parts.
type CompleteRequest struct {
	Bucket   string
	UploadID string
	Parts    []CompletePart
}

// CompleteResult describes the published object.
type CompleteResult struct {
	ObjectName string
	ETag       string
	Size       uint64
}
