// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package multipart

import (
	"context"
	"encoding/base64"
	"errors"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/types"
)

// maxPartNumber bounds client-supplied part numbers.
const maxPartNumber = 10000

// serviceImpl implements the Service interface
type serviceImpl struct {
	db        db.DB
	storage   Storage
	uploadTTL time.Duration
}

func (s *serviceImpl) CreateUpload(ctx context.Context, req *CreateUploadRequest) (*CreateUploadResult, error) {
	bucket, err := s.db.GetBucket(ctx, req.Bucket)
	if err != nil {
		if errors.Is(err, db.ErrBucketNotFound) {
			return nil, &Error{Code: ErrCodeNoSuchBucket, Message: "bucket not found"}
		}
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to get bucket", Err: err}
	}

	// Upload id is a base64url-encoded UUID.
	uploadUUID := uuid.New()
	uploadID := base64.RawURLEncoding.EncodeToString(uploadUUID[:])
	expiresAt := time.Now().Add(s.uploadTTL)

	upload := &types.MultipartUpload{
		UploadID:   uploadID,
		BucketID:   bucket.ID,
		Bucket:     bucket.Name,
		ObjectName: req.ObjectName,
		State:      types.UploadStateInitiated,
		ExpiresAt:  expiresAt,
	}

	if err := s.db.CreateUpload(ctx, upload); err != nil {
		logger.Ctx(ctx).Error().Err(err).Msg("failed to create multipart upload")
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to create upload", Err: err}
	}

	return &CreateUploadResult{
		UploadID:   uploadID,
		ObjectName: req.ObjectName,
		ExpiresAt:  expiresAt,
	}, nil
}

// getUpload loads an upload and checks it belongs to the bucket from the
// request path.
func (s *serviceImpl) getUpload(ctx context.Context, bucket, uploadID string) (*types.MultipartUpload, *Error) {
	upload, err := s.db.GetUpload(ctx, uploadID)
	if err != nil {
		if errors.Is(err, db.ErrUploadNotFound) {
			return nil, &Error{Code: ErrCodeNoSuchUpload, Message: "upload not found"}
		}
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to get upload", Err: err}
	}
	if upload.Bucket != bucket {
		return nil, &Error{Code: ErrCodeNoSuchUpload, Message: "upload not found"}
	}
	return upload, nil
}

func (s *serviceImpl) UploadPart(ctx context.Context, req *UploadPartRequest) (*UploadPartResult, error) {
	if req.PartNumber < 1 || req.PartNumber > maxPartNumber {
		return nil, &Error{
			Code:    ErrCodeInvalidPartNumber,
			Message: "part number must be between 1 and 10000",
		}
	}

	upload, uerr := s.getUpload(ctx, req.Bucket, req.UploadID)
	if uerr != nil {
		return nil, uerr
	}
	if upload.State.Terminal() {
		return nil, &Error{
			Code:    ErrCodeInvalidState,
			Message: "upload is " + string(upload.State),
		}
	}

	writeResult, err := s.storage.WritePart(ctx, req.UploadID, req.PartNumber, req.Body)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", req.UploadID).Msg("failed to write part")
		return nil, &Error{Code: ErrCodeIOError, Message: "failed to write part", Err: err}
	}

	part := &types.MultipartPart{
		UploadID:   req.UploadID,
		PartNumber: req.PartNumber,
		Size:       writeResult.Size,
		ETag:       writeResult.ETag,
		TempPath:   writeResult.Path,
	}
	if err := s.db.PutPart(ctx, part); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", req.UploadID).Msg("failed to store part metadata")
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to store part metadata", Err: err}
	}

	if upload.State == types.UploadStateInitiated {
		if err := s.db.UpdateUploadState(ctx, req.UploadID, types.UploadStateUploading); err != nil {
			logger.Ctx(ctx).Warn().Err(err).Str("upload_id", req.UploadID).Msg("failed to mark upload as uploading")
		}
	}

	return &UploadPartResult{
		UploadID:   req.UploadID,
		PartNumber: req.PartNumber,
		ETag:       writeResult.ETag,
		Size:       writeResult.Size,
	}, nil
}

func (s *serviceImpl) ListParts(ctx context.Context, bucket, uploadID string) (*ListPartsResult, error) {
	upload, uerr := s.getUpload(ctx, bucket, uploadID)
	if uerr != nil {
		return nil, uerr
	}

	parts, err := s.db.ListParts(ctx, uploadID)
	if err != nil {
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to list parts", Err: err}
	}

	return &ListPartsResult{
		UploadID:   uploadID,
		ObjectName: upload.ObjectName,
		State:      upload.State,
		Parts:      parts,
	}, nil
}

func (s *serviceImpl) Complete(ctx context.Context, req *CompleteRequest) (*CompleteResult, error) {
	upload, uerr := s.getUpload(ctx, req.Bucket, req.UploadID)
	if uerr != nil {
		return nil, uerr
	}
	if upload.State.Terminal() {
		return nil, &Error{
			Code:    ErrCodeInvalidState,
			Message: "upload is " + string(upload.State),
		}
	}

	if len(req.Parts) == 0 {
		return nil, &Error{Code: ErrCodeInvalidArgument, Message: "parts list is empty"}
	}
	for i := 1; i < len(req.Parts); i++ {
		if req.Parts[i].PartNumber <= req.Parts[i-1].PartNumber {
			return nil, &Error{
				Code:    ErrCodeInvalidArgument,
				Message: "part numbers must be strictly ascending",
			}
		}
	}

	stored, err := s.db.ListParts(ctx, req.UploadID)
	if err != nil {
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to list parts", Err: err}
	}
	byNumber := make(map[int]*types.MultipartPart, len(stored))
	for _, p := range stored {
		byNumber[p.PartNumber] = p
	}

	partPaths := make([]string, 0, len(req.Parts))
	for _, want := range req.Parts {
		part, ok := byNumber[want.PartNumber]
		if !ok {
			return nil, &Error{
				Code:    ErrCodeMissingPart,
				Message: "part " + strconv.Itoa(want.PartNumber) + " was never uploaded",
			}
		}
		if part.ETag != want.ETag {
			return nil, &Error{
				Code:    ErrCodeETagMismatch,
				Message: "etag mismatch on part " + strconv.Itoa(want.PartNumber),
			}
		}
		partPaths = append(partPaths, part.TempPath)
	}

	if err := s.storage.EnsureBucket(req.Bucket); err != nil {
		return nil, &Error{Code: ErrCodeIOError, Message: "failed to prepare bucket dir", Err: err}
	}

	// The rename inside AssembleObject is the commit point; a failure
	// before it leaves the object absent and the upload retriable.
	writeResult, err := s.storage.AssembleObject(ctx, req.Bucket, upload.ObjectName, req.UploadID, partPaths)
	if err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", req.UploadID).Msg("failed to assemble object")
		return nil, &Error{Code: ErrCodeIOError, Message: "failed to assemble object", Err: err}
	}

	if _, err := s.db.UpsertObject(ctx, req.Bucket, upload.ObjectName, writeResult.Size, writeResult.ETag); err != nil {
		// The file is already visible; remove the orphan so a retried
		// complete starts from a clean slate.
		s.storage.RemoveObject(req.Bucket, upload.ObjectName)
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", req.UploadID).Msg("failed to record completed object")
		return nil, &Error{Code: ErrCodeInternalError, Message: "failed to record object", Err: err}
	}

	if err := s.db.UpdateUploadState(ctx, req.UploadID, types.UploadStateCompleted); err != nil {
		logger.Ctx(ctx).Warn().Err(err).Str("upload_id", req.UploadID).Msg("failed to mark upload completed")
	}
	s.retireUpload(ctx, req.UploadID)

	return &CompleteResult{
		ObjectName: upload.ObjectName,
		ETag:       writeResult.ETag,
		Size:       writeResult.Size,
	}, nil
}

func (s *serviceImpl) Abort(ctx context.Context, bucket, uploadID string) error {
	upload, uerr := s.getUpload(ctx, bucket, uploadID)
	if uerr != nil {
		return uerr
	}
	if upload.State.Terminal() {
		return &Error{
			Code:    ErrCodeInvalidState,
			Message: "upload is " + string(upload.State),
		}
	}

	if err := s.db.UpdateUploadState(ctx, uploadID, types.UploadStateAborted); err != nil {
		return &Error{Code: ErrCodeInternalError, Message: "failed to abort upload", Err: err}
	}
	s.retireUpload(ctx, uploadID)
	return nil
}

// retireUpload removes part rows, the upload row, and the temp
// directory after a terminal transition. Failures are logged; the
// sweeper cannot pick these rows up again (the state is terminal) and
// Complete and Abort reject a terminal upload before retiring it, so
// leftover rows are not removed by any later call, which is why each
// step logs loudly.
func (s *serviceImpl) retireUpload(ctx context.Context, uploadID string) {
	if err := s.db.DeleteParts(ctx, uploadID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", uploadID).Msg("failed to delete part rows")
	}
	if err := s.db.DeleteUpload(ctx, uploadID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", uploadID).Msg("failed to delete upload row")
	}
	if err := s.storage.RemoveUploadDir(uploadID); err != nil {
		logger.Ctx(ctx).Error().Err(err).Str("upload_id", uploadID).Msg("failed to remove upload temp dir")
	}
}
