// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package api exposes the HTTP surface: routing, authentication,
// request bookkeeping, and the bucket/object/multipart handlers.
package api

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nebulafs/nebulafs/pkg/api/apierr"
	"github.com/nebulafs/nebulafs/pkg/auth"
	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/multipart"
	"github.com/nebulafs/nebulafs/pkg/storage"
)

// serverName is sent in the Server header of every response.
const serverName = "NebulaFS"

var (
	metricsRequest = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "nebulafs_http_requests_total",
		Help: "Number of API requests received",
	}, []string{"method", "status_code"})

	metricsRequestDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "nebulafs_http_request_duration_seconds",
		Help:    "Duration of API requests",
		Buckets: prometheus.DefBuckets,
	}, []string{"method", "status_code"})
)

func init() {
	prometheus.MustRegister(metricsRequest, metricsRequestDuration)
}

// ServerConfig holds the dependencies for creating a Server.
type ServerConfig struct {
	DB        db.DB
	Store     *storage.LocalStore
	Multipart multipart.Service
	Verifier  *auth.Verifier

	// AuthEnabled gates the bearer-token check; public endpoints are
	// exempt either way.
	AuthEnabled bool

	// MaxBodyBytes caps upload request bodies.
	MaxBodyBytes int64
}

// Server routes and serves the HTTP API.
type Server struct {
	db        db.DB
	store     *storage.LocalStore
	multipart multipart.Service
	verifier  *auth.Verifier

	authEnabled  bool
	maxBodyBytes int64

	router  *Router
	metrics http.Handler
}

// NewServer wires the handler table.
func NewServer(cfg ServerConfig) *Server {
	s := &Server{
		db:           cfg.DB,
		store:        cfg.Store,
		multipart:    cfg.Multipart,
		verifier:     cfg.Verifier,
		authEnabled:  cfg.AuthEnabled,
		maxBodyBytes: cfg.MaxBodyBytes,
		router:       NewRouter(),
		metrics:      promhttp.Handler(),
	}

	s.registerRoutes()
	return s
}

func (s *Server) registerRoutes() {
	r := s.router

	r.Handle(http.MethodGet, "/healthz", s.HealthzHandler)
	r.Handle(http.MethodGet, "/readyz", s.ReadyzHandler)
	r.Handle(http.MethodGet, "/metrics", s.MetricsHandler)

	r.Handle(http.MethodPost, "/v1/buckets", s.CreateBucketHandler)
	r.Handle(http.MethodGet, "/v1/buckets", s.ListBucketsHandler)

	r.Handle(http.MethodGet, "/v1/buckets/{bucket}/objects", s.ListObjectsHandler)
	r.Handle(http.MethodPost, "/v1/buckets/{bucket}/objects", s.PutObjectAliasHandler)
	r.Handle(http.MethodPut, "/v1/buckets/{bucket}/objects/{object}", s.PutObjectHandler)
	r.Handle(http.MethodGet, "/v1/buckets/{bucket}/objects/{object}", s.GetObjectHandler)
	r.Handle(http.MethodHead, "/v1/buckets/{bucket}/objects/{object}", s.GetObjectHandler)
	r.Handle(http.MethodDelete, "/v1/buckets/{bucket}/objects/{object}", s.DeleteObjectHandler)

	r.Handle(http.MethodPost, "/v1/buckets/{bucket}/multipart-uploads", s.CreateUploadHandler)
	r.Handle(http.MethodPut, "/v1/buckets/{bucket}/multipart-uploads/{upload_id}/parts/{part_number}", s.UploadPartHandler)
	r.Handle(http.MethodGet, "/v1/buckets/{bucket}/multipart-uploads/{upload_id}/parts", s.ListPartsHandler)
	r.Handle(http.MethodPost, "/v1/buckets/{bucket}/multipart-uploads/{upload_id}/complete", s.CompleteUploadHandler)
	r.Handle(http.MethodDelete, "/v1/buckets/{bucket}/multipart-uploads/{upload_id}", s.AbortUploadHandler)
}

// isPublicPath reports whether the path skips authentication.
func isPublicPath(path string) bool {
	switch path {
	case "/healthz", "/readyz", "/metrics":
		return true
	}
	return false
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()

	requestID := uuid.NewString()
	w.Header().Set("Server", serverName)
	w.Header().Set("X-Request-Id", requestID)

	reqLogger := logger.Ctx(r.Context()).With().
		Str("request_id", requestID).
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Logger()
	r = r.WithContext(logger.WithLogger(r.Context(), &reqLogger))
	r = r.WithContext(withRequestID(r.Context(), requestID))

	wrapped := &wrappedResponseRecorder{ResponseWriter: w}

	defer func() {
		status := wrapped.statusCode
		if status == 0 {
			status = http.StatusOK
		}
		metricsRequest.WithLabelValues(r.Method, strconv.Itoa(status)).Inc()
		metricsRequestDuration.WithLabelValues(r.Method, strconv.Itoa(status)).Observe(time.Since(start).Seconds())
		reqLogger.Info().
			Int("status", status).
			Int64("bytes", wrapped.bytes).
			Dur("duration", time.Since(start)).
			Msg("request")
	}()

	// Authorization runs before any body read so unauthorized uploads
	// are never buffered.
	if s.authEnabled && !isPublicPath(r.URL.Path) {
		if err := s.authorize(r); err != nil {
			writeError(wrapped, requestID, apierr.Wrap(apierr.CodeUnauthorized, "authentication failed", err))
			return
		}
	}

	handler, params, ok := s.router.Match(r.Method, r.URL.Path)
	if !ok {
		writeError(wrapped, requestID, apierr.New(apierr.CodeNotFound, "no route for "+r.Method+" "+r.URL.Path))
		return
	}

	handler(wrapped, r, params)
}

// authorize validates the bearer token on the request.
func (s *Server) authorize(r *http.Request) error {
	header := r.Header.Get("Authorization")
	token, ok := strings.CutPrefix(header, "Bearer ")
	if !ok || token == "" {
		return errMissingBearer
	}
	_, err := s.verifier.Verify(token)
	return err
}

var errMissingBearer = errors.New("missing bearer token")

type requestIDKey struct{}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// requestIDFrom returns the request id stamped by ServeHTTP.
func requestIDFrom(r *http.Request) string {
	if id, ok := r.Context().Value(requestIDKey{}).(string); ok {
		return id
	}
	return ""
}
