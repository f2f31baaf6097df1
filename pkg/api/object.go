// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/nebulafs/nebulafs/pkg/api/apierr"
	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/names"
)

type objectWriteResponse struct {
	ETag string `json:"etag"`
	Size uint64 `json:"size"`
}

type objectListEntry struct {
	Name      string `json:"name"`
	Size      uint64 `json:"size"`
	ETag      string `json:"etag"`
	UpdatedAt string `json:"updated_at"`
}

// PutObjectHandler is the streaming single-shot upload path. The body is
// hashed and written to a temp file as it arrives; the rename inside the
// store is the commit point.
func (s *Server) PutObjectHandler(w http.ResponseWriter, r *http.Request, p Params) {
	s.putObject(w, r, p["bucket"], p["object"])
}

// PutObjectAliasHandler accepts POST /v1/buckets/{b}/objects?name=<o> as
// an alias for the streaming PUT.
func (s *Server) PutObjectAliasHandler(w http.ResponseWriter, r *http.Request, p Params) {
	object := r.URL.Query().Get("name")
	if object == "" {
		writeError(w, requestIDFrom(r), apierr.New(apierr.CodeInvalidArgument, "missing name query parameter"))
		return
	}
	s.putObject(w, r, p["bucket"], object)
}

func (s *Server) putObject(w http.ResponseWriter, r *http.Request, bucket, object string) {
	requestID := requestIDFrom(r)

	if !names.IsSafeName(bucket) || !names.IsSafeName(object) {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidName, "invalid bucket or object name"))
		return
	}
	if _, err := s.db.GetBucket(r.Context(), bucket); err != nil {
		if errors.Is(err, db.ErrBucketNotFound) {
			writeError(w, requestID, apierr.New(apierr.CodeBucketNotFound, "bucket not found"))
			return
		}
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to get bucket", err))
		return
	}

	if err := s.store.EnsureBucket(bucket); err != nil {
		writeError(w, requestID, apierr.Wrap(apierr.CodeIOError, "failed to prepare bucket directory", err))
		return
	}

	body := http.MaxBytesReader(w, r.Body, s.maxBodyBytes)
	result, err := s.store.WriteObject(r.Context(), bucket, object, body)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			writeError(w, requestID, apierr.New(apierr.CodeBodyTooLarge, "request body exceeds limit"))
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to write object")
		writeError(w, requestID, apierr.Wrap(apierr.CodeIOError, "failed to write object", err))
		return
	}

	if _, err := s.db.UpsertObject(r.Context(), bucket, object, result.Size, result.ETag); err != nil {
		// The rename already happened; remove the orphan so disk and
		// metadata stay consistent.
		s.store.RemoveObject(bucket, object)
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to record object metadata")
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to record object", err))
		return
	}

	writeJSON(w, http.StatusOK, objectWriteResponse{ETag: result.ETag, Size: result.Size})
}

// GetObjectHandler streams an object, honoring a single bytes range.
// HEAD requests get headers only.
func (s *Server) GetObjectHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)
	bucket, object := p["bucket"], p["object"]

	if !names.IsSafeName(bucket) || !names.IsSafeName(object) {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidName, "invalid bucket or object name"))
		return
	}

	meta, err := s.db.GetObject(r.Context(), bucket, object)
	if err != nil {
		if errors.Is(err, db.ErrObjectNotFound) || errors.Is(err, db.ErrBucketNotFound) {
			writeError(w, requestID, apierr.New(apierr.CodeObjectNotFound, "object not found"))
			return
		}
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to get object", err))
		return
	}

	f, size, err := s.store.Open(bucket, object)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			writeError(w, requestID, apierr.New(apierr.CodeObjectNotFound, "object not found"))
			return
		}
		writeError(w, requestID, apierr.Wrap(apierr.CodeIOError, "failed to open object", err))
		return
	}
	defer f.Close()

	w.Header().Set("Accept-Ranges", "bytes")
	w.Header().Set("ETag", meta.ETag)
	w.Header().Set("Content-Type", "application/octet-stream")

	rangeHeader := r.Header.Get("Range")
	if rangeHeader == "" {
		w.Header().Set("Content-Length", strconv.FormatInt(size, 10))
		w.WriteHeader(http.StatusOK)
		if r.Method != http.MethodHead {
			if _, err := io.Copy(w, f); err != nil {
				logger.Ctx(r.Context()).Warn().Err(err).Msg("object stream interrupted")
			}
		}
		return
	}

	start, end, err := parseRange(rangeHeader, size)
	if err != nil {
		w.Header().Set("Content-Range", fmt.Sprintf("bytes */%d", size))
		writeError(w, requestID, apierr.Wrap(apierr.CodeInvalidRange, "unsatisfiable range", err))
		return
	}

	w.Header().Set("Content-Range", fmt.Sprintf("bytes %d-%d/%d", start, end, size))
	w.Header().Set("Content-Length", strconv.FormatInt(end-start+1, 10))
	w.WriteHeader(http.StatusPartialContent)
	if r.Method != http.MethodHead {
		if _, err := io.Copy(w, io.NewSectionReader(f, start, end-start+1)); err != nil {
			logger.Ctx(r.Context()).Warn().Err(err).Msg("range stream interrupted")
		}
	}
}

func (s *Server) DeleteObjectHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)
	bucket, object := p["bucket"], p["object"]

	if !names.IsSafeName(bucket) || !names.IsSafeName(object) {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidName, "invalid bucket or object name"))
		return
	}

	if _, err := s.db.GetObject(r.Context(), bucket, object); err != nil {
		if errors.Is(err, db.ErrObjectNotFound) || errors.Is(err, db.ErrBucketNotFound) {
			writeError(w, requestID, apierr.New(apierr.CodeObjectNotFound, "object not found"))
			return
		}
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to get object", err))
		return
	}

	if err := s.store.Delete(bucket, object); err != nil && !errors.Is(err, os.ErrNotExist) {
		writeError(w, requestID, apierr.Wrap(apierr.CodeIOError, "failed to delete object", err))
		return
	}
	if err := s.db.DeleteObject(r.Context(), bucket, object); err != nil {
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to delete object metadata", err))
		return
	}

	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

func (s *Server) ListObjectsHandler(w http.ResponseWriter, r *http.Request, p Params) {
	requestID := requestIDFrom(r)
	bucket := p["bucket"]

	if !names.IsSafeName(bucket) {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidName, "invalid bucket name"))
		return
	}

	objects, err := s.db.ListObjects(r.Context(), bucket, r.URL.Query().Get("prefix"))
	if err != nil {
		if errors.Is(err, db.ErrBucketNotFound) {
			writeError(w, requestID, apierr.New(apierr.CodeBucketNotFound, "bucket not found"))
			return
		}
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to list objects", err))
		return
	}

	out := make([]objectListEntry, 0, len(objects))
	for _, obj := range objects {
		out = append(out, objectListEntry{
			Name:      obj.Name,
			Size:      obj.Size,
			ETag:      obj.ETag,
			UpdatedAt: obj.UpdatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"objects": out})
}

// parseRange parses "bytes=start-end" against the object size. A
// missing end means size-1; a missing start is rejected. start must be
// inside the object and not past end.
func parseRange(header string, size int64) (start, end int64, err error) {
	spec, ok := strings.CutPrefix(header, "bytes=")
	if !ok {
		return 0, 0, fmt.Errorf("unsupported range unit")
	}
	if strings.Contains(spec, ",") {
		return 0, 0, fmt.Errorf("multiple ranges not supported")
	}

	startStr, endStr, ok := strings.Cut(spec, "-")
	if !ok || startStr == "" {
		return 0, 0, fmt.Errorf("range start is required")
	}

	start, err = strconv.ParseInt(startStr, 10, 64)
	if err != nil || start < 0 {
		return 0, 0, fmt.Errorf("invalid range start")
	}

	if endStr == "" {
		end = size - 1
	} else {
		end, err = strconv.ParseInt(endStr, 10, 64)
		if err != nil || end < 0 {
			return 0, 0, fmt.Errorf("invalid range end")
		}
		if end > size-1 {
			end = size - 1
		}
	}

	if start > end || start >= size {
		return 0, 0, fmt.Errorf("range out of bounds")
	}
	return start, end, nil
}
