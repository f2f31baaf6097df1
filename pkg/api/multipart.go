// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/nebulafs/nebulafs/pkg/api/apierr"
	"github.com/nebulafs/nebulafs/pkg/multipart"
	"github.com/nebulafs/nebulafs/pkg/names"
)

type createUploadRequest struct {
	Object string `json:"object"`
}

type partEntry struct {
	PartNumber int    `json:"part_number"`
	Size       uint64 `json:"size"`
	ETag       string `json:"etag"`
}

type completeRequest struct {
	Parts []struct {
		PartNumber int    `json:"part_number"`
		ETag       string `json:"etag"`
	} `json:"parts"`
}

// writeMultipartError maps a multipart service error into the envelope.
func writeMultipartError(w http.ResponseWriter, requestID string, err error) {
	var mpErr *multipart.Error
	if errors.As(err, &mpErr) {
		writeError(w, requestID, mpErr.ToAPIError())
		return
	}
	writeError(w, requestID, apierr.Wrap(apierr.CodeInternal, "multipart operation failed", err))
}

func (s *Server) CreateUploadHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)
	bucket := p["bucket"]

	var req createUploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apierr.Wrap(apierr.CodeInvalidJSON, "invalid request body", err))
		return
	}
	if !names.IsSafeName(bucket) || !names.IsSafeName(req.Object) {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidName, "invalid bucket or object name"))
		return
	}

	result, err := s.multipart.CreateUpload(r.Context(), &multipart.CreateUploadRequest{
		Bucket:     bucket,
		ObjectName: req.Object,
	})
	if err != nil {
		writeMultipartError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"upload_id":  result.UploadID,
		"object":     result.ObjectName,
		"expires_at": result.ExpiresAt.UTC().Format(time.RFC3339),
	})
}

func (s *Server) UploadPartHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)

	partNumber, err := strconv.Atoi(p["part_number"])
	if err != nil {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidPartNumber, "part number must be an integer"))
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	result, err := s.multipart.UploadPart(r.Context(), &multipart.UploadPartRequest{
		Bucket:     p["bucket"],
		UploadID:   p["upload_id"],
		PartNumber: partNumber,
		Body:       body,
	})
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, requestID, apierr.New(apierr.CodeBodyTooLarge, "request body exceeds limit"))
			return
		}
		writeMultipartError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id":   result.UploadID,
		"part_number": result.PartNumber,
		"etag":        result.ETag,
		"size":        result.Size,
	})
}

func (s *Server) ListPartsHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)

	result, err := s.multipart.ListParts(r.Context(), p["bucket"], p["upload_id"])
	if err != nil {
		writeMultipartError(w, requestID, err)
		return
	}

	parts := make([]partEntry, 0, len(result.Parts))
	for _, part := range result.Parts {
		parts = append(parts, partEntry{
			PartNumber: part.PartNumber,
			Size:       part.Size,
			ETag:       part.ETag,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"upload_id": result.UploadID,
		"object":    result.ObjectName,
		"state":     string(result.State),
		"parts":     parts,
	})
}

func (s *Server) CompleteUploadHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apierr.Wrap(apierr.CodeInvalidJSON, "invalid request body", err))
		return
	}

	parts := make([]multipart.CompletePart, 0, len(req.Parts))
	for _, part := range req.Parts {
		parts = append(parts, multipart.CompletePart{
			PartNumber: part.PartNumber,
			ETag:       part.ETag,
		})
	}

	result, err := s.multipart.Complete(r.Context(), &multipart.CompleteRequest{
		Bucket:   p["bucket"],
		UploadID: p["upload_id"],
		Parts:    parts,
	})
	if err != nil {
		writeMultipartError(w, requestID, err)
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"name": result.ObjectName,
		"etag": result.ETag,
		"size": result.Size,
	})
}

func (s *Server) AbortUploadHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)

	if err := s.multipart.Abort(r.Context(), p["bucket"], p["upload_id"]); err != nil {
		writeMultipartError(w, requestID, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
