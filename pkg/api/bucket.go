// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/nebulafs/nebulafs/pkg/api/apierr"
	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/names"
)

type createBucketRequest struct {
	Name string `json:"name"`
}

type bucketResponse struct {
	Name      string `json:"name"`
	CreatedAt string `json:"created_at,omitempty"`
}

func (s *Server) CreateBucketHandler(w http.ResponseWriter, r *http.Request, _ Params) {
	requestID := requestIDFrom(r)

	var req createBucketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, requestID, apierr.Wrap(apierr.CodeInvalidJSON, "invalid request body", err))
		return
	}
	if !names.IsSafeName(req.Name) {
		writeError(w, requestID, apierr.New(apierr.CodeInvalidName, "invalid bucket name"))
		return
	}

	bucket, err := s.db.CreateBucket(r.Context(), req.Name)
	if err != nil {
		if errors.Is(err, db.ErrBucketExists) {
			writeError(w, requestID, apierr.New(apierr.CodeAlreadyExists, "bucket already exists"))
			return
		}
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to create bucket")
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to create bucket", err))
		return
	}

	if err := s.store.EnsureBucket(bucket.Name); err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to create bucket directory")
		writeError(w, requestID, apierr.Wrap(apierr.CodeIOError, "failed to create bucket directory", err))
		return
	}

	writeJSON(w, http.StatusOK, bucketResponse{Name: bucket.Name})
}

func (s *Server) ListBucketsHandler(w http.ResponseWriter, r *http.Request, _ Params) {
	requestID := requestIDFrom(r)

	buckets, err := s.db.ListBuckets(r.Context())
	if err != nil {
		logger.Ctx(r.Context()).Error().Err(err).Msg("failed to list buckets")
		writeError(w, requestID, apierr.Wrap(apierr.CodeDBError, "failed to list buckets", err))
		return
	}

	out := make([]bucketResponse, 0, len(buckets))
	for _, b := range buckets {
		out = append(out, bucketResponse{
			Name:      b.Name,
			CreatedAt: b.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"buckets": out})
}
