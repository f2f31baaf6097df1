// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import (
	"encoding/json"
	"net/http"

	"github.com/nebulafs/nebulafs/pkg/api/apierr"
	"github.com/nebulafs/nebulafs/pkg/logger"
)

// errorEnvelope is the standard error response body.
type errorEnvelope struct {
	Error errorDetail `json:"error"`
}

type errorDetail struct {
	Code      apierr.Code `json:"code"`
	Message   string      `json:"message"`
	RequestID string      `json:"request_id"`
}

// writeJSON renders v with the given status. Encoding failures are
// logged; headers are already out at that point.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error().Err(err).Msg("failed to encode response body")
	}
}

// writeError renders an API error in the standard envelope.
func writeError(w http.ResponseWriter, requestID string, apiErr *apierr.Error) {
	writeJSON(w, apiErr.Code.HTTPStatus(), errorEnvelope{
		Error: errorDetail{
			Code:      apiErr.Code,
			Message:   apiErr.Message,
			RequestID: requestID,
		},
	})
}

// wrappedResponseRecorder captures the status code for logging and
// metrics.
type wrappedResponseRecorder struct {
	http.ResponseWriter
	statusCode int
	bytes      int64
}

func (w *wrappedResponseRecorder) WriteHeader(code int) {
	if w.statusCode == 0 {
		w.statusCode = code
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *wrappedResponseRecorder) Write(b []byte) (int, error) {
	if w.statusCode == 0 {
		w.statusCode = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += int64(n)
	return n, err
}
