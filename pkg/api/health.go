// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package api

import "net/http"

func (s *Server) HealthzHandler(w http.ResponseWriter, r *http.Request, _ Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ok",
		"request_id": requestIDFrom(r),
	})
}

func (s *Server) ReadyzHandler(w http.ResponseWriter, r *http.Request, _ Params) {
	writeJSON(w, http.StatusOK, map[string]string{
		"status":     "ready",
		"request_id": requestIDFrom(r),
	})
}

func (s *Server) MetricsHandler(w http.ResponseWriter, r *http.Request, _ Params) {
	s.metrics.ServeHTTP(w, r)
}
