// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package multipart

import (
	"github.com/nebulafs/nebulafs/pkg/api/apierr"
)

// ErrorCode classifies multipart service failures.
type ErrorCode int

const (
	ErrCodeNone ErrorCode = iota
	ErrCodeNoSuchBucket
	ErrCodeNoSuchUpload
	ErrCodeInvalidArgument
	ErrCodeInvalidPartNumber
	ErrCodeInvalidState
	ErrCodeMissingPart
	ErrCodeETagMismatch
	ErrCodeIOError
	ErrCodeInternalError
)

// Error represents a multipart service error with an error code.
type Error struct {
	Code    ErrorCode
	Message string
	Err     error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error {
	return e.Err
}

// ToAPIError converts a multipart error to its API envelope form.
func (e *Error) ToAPIError() *apierr.Error {
	switch e.Code {
	case ErrCodeNoSuchBucket:
		return apierr.Wrap(apierr.CodeBucketNotFound, e.Message, e.Err)
	case ErrCodeNoSuchUpload:
		return apierr.Wrap(apierr.CodeUploadNotFound, e.Message, e.Err)
	case ErrCodeInvalidArgument:
		return apierr.Wrap(apierr.CodeInvalidArgument, e.Message, e.Err)
	case ErrCodeInvalidPartNumber:
		return apierr.Wrap(apierr.CodeInvalidPartNumber, e.Message, e.Err)
	case ErrCodeInvalidState:
		return apierr.Wrap(apierr.CodeInvalidState, e.Message, e.Err)
	case ErrCodeMissingPart:
		return apierr.Wrap(apierr.CodeMissingPart, e.Message, e.Err)
	case ErrCodeETagMismatch:
		return apierr.Wrap(apierr.CodeETagMismatch, e.Message, e.Err)
	case ErrCodeIOError:
		return apierr.Wrap(apierr.CodeIOError, e.Message, e.Err)
	default:
		return apierr.Wrap(apierr.CodeInternal, e.Message, e.Err)
	}
}
