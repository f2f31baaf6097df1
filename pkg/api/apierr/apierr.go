// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package apierr defines the API error taxonomy and its mapping to HTTP
// status codes. Every error response uses the standard envelope
// {"error":{"code","message","request_id"}}.
package apierr

import "net/http"

// Code is an API error code string as it appears in the envelope.
type Code string

const (
	CodeInvalidArgument   Code = "INVALID_ARGUMENT"
	CodeInvalidJSON       Code = "INVALID_JSON"
	CodeInvalidName       Code = "INVALID_NAME"
	CodeInvalidPartNumber Code = "INVALID_PART_NUMBER"
	CodeInvalidRange      Code = "INVALID_RANGE"
	CodeUnauthorized      Code = "UNAUTHORIZED"
	CodeForbidden         Code = "FORBIDDEN"
	CodeNotFound          Code = "NOT_FOUND"
	CodeBucketNotFound    Code = "BUCKET_NOT_FOUND"
	CodeObjectNotFound    Code = "OBJECT_NOT_FOUND"
	CodeUploadNotFound    Code = "UPLOAD_NOT_FOUND"
	CodeAlreadyExists     Code = "ALREADY_EXISTS"
	CodeInvalidState      Code = "INVALID_STATE"
	CodeMissingPart       Code = "MISSING_PART"
	CodeETagMismatch      Code = "ETAG_MISMATCH"
	CodeBodyTooLarge      Code = "BODY_TOO_LARGE"
	CodeIOError           Code = "IO_ERROR"
	CodeDBError           Code = "DB_ERROR"
	CodeInternal          Code = "INTERNAL"
)

// HTTPStatus maps a code to its response status.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeInvalidArgument, CodeInvalidJSON, CodeInvalidName, CodeInvalidPartNumber:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeForbidden:
		return http.StatusForbidden
	case CodeNotFound, CodeBucketNotFound, CodeObjectNotFound, CodeUploadNotFound:
		return http.StatusNotFound
	case CodeAlreadyExists, CodeInvalidState, CodeMissingPart, CodeETagMismatch:
		return http.StatusConflict
	case CodeBodyTooLarge:
		return http.StatusRequestEntityTooLarge
	case CodeInvalidRange:
		return http.StatusRequestedRangeNotSatisfiable
	default:
		return http.StatusInternalServerError
	}
}

// Error is an API error carrying its envelope code.
type Error struct {
	Code    Code
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

// New creates an Error with the given code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates an Error that records an underlying cause.
func Wrap(code Code, message string, err error) *Error {
	return &Error{Code: code, Message: message, Err: err}
}
