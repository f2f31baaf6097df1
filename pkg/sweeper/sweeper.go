// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

// Package sweeper reaps expired multipart uploads. It marks each one
// expired, deletes its metadata rows, and removes its temp directory.
package sweeper

import (
	"context"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/metadata/db"
	"github.com/nebulafs/nebulafs/pkg/types"
)

var (
	sweepRunsTotal = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nebulafs_sweeper_runs_total",
		Help: "Total number of sweeper runs",
	})

	sweepUploadsReaped = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nebulafs_sweeper_uploads_reaped_total",
		Help: "Total number of expired uploads removed by the sweeper",
	})

	sweepErrors = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "nebulafs_sweeper_errors_total",
		Help: "Total number of sweeper errors",
	})

	sweepDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "nebulafs_sweeper_duration_seconds",
		Help:    "Duration of sweeper runs in seconds",
		Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
	})
)

func init() {
	prometheus.MustRegister(
		sweepRunsTotal,
		sweepUploadsReaped,
		sweepErrors,
		sweepDuration,
	)
}

// Storage is the slice of the blob store the sweeper needs.
type Storage interface {
	RemoveUploadDir(uploadID string) error
}

// Config holds configuration for the sweeper service.
type Config struct {
	DB      db.DB
	Storage Storage

	// Interval is how often to sweep.
	Interval time.Duration

	// GracePeriod is how long past expires_at an upload must be before
	// it is reaped.
	GracePeriod time.Duration

	// BatchSize is how many uploads to reap per sweep.
	BatchSize int
}

// Service runs the periodic expiry sweep. Sweeps are serialized on one
// timer task, so at most one runs at a time.
type Service struct {
	db          db.DB
	storage     Storage
	interval    time.Duration
	gracePeriod time.Duration
	batchSize   int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
}

// NewService creates a sweeper service.
func NewService(cfg Config) *Service {
	if cfg.Interval == 0 {
		cfg.Interval = time.Minute
	}
	if cfg.BatchSize == 0 {
		cfg.BatchSize = 100
	}

	return &Service{
		db:          cfg.DB,
		storage:     cfg.Storage,
		interval:    cfg.Interval,
		gracePeriod: cfg.GracePeriod,
		batchSize:   cfg.BatchSize,
	}
}

// Start begins the sweep loop.
func (s *Service) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.mu.Unlock()

	go s.run(ctx)
}

// Stop stops the sweep loop.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return
	}

	close(s.stopCh)
	s.running = false
}

func (s *Service) run(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	// Run immediately on start
	s.sweep(ctx)

	for {
		select {
		case <-ticker.C:
			s.sweep(ctx)
		case <-s.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) sweep(ctx context.Context) {
	start := time.Now()
	sweepRunsTotal.Inc()

	cutoff := time.Now().Add(-s.gracePeriod)

	uploads, err := s.db.ListExpiredUploads(ctx, cutoff, s.batchSize)
	if err != nil {
		logger.Error().Err(err).Msg("sweeper: failed to list expired uploads")
		sweepErrors.Inc()
		return
	}

	if len(uploads) == 0 {
		sweepDuration.Observe(time.Since(start).Seconds())
		return
	}

	logger.Info().Int("uploads", len(uploads)).Msg("sweeper: reaping expired uploads")

	var reaped int
	for _, upload := range uploads {
		if err := s.reap(ctx, upload); err != nil {
			logger.Warn().Err(err).Str("upload_id", upload.UploadID).Msg("sweeper: failed to reap upload")
			sweepErrors.Inc()
			continue
		}
		reaped++
	}

	sweepUploadsReaped.Add(float64(reaped))
	sweepDuration.Observe(time.Since(start).Seconds())

	logger.Info().
		Int("reaped", reaped).
		Dur("duration", time.Since(start)).
		Msg("sweeper: completed")
}

// reap performs the terminal transition for one expired upload. Steps
// after the state write are cleanup; an error in any of them is
// surfaced but later steps still run.
func (s *Service) reap(ctx context.Context, upload *types.MultipartUpload) error {
	if err := s.db.UpdateUploadState(ctx, upload.UploadID, types.UploadStateExpired); err != nil {
		return err
	}

	var firstErr error
	if err := s.db.DeleteParts(ctx, upload.UploadID); err != nil {
		firstErr = err
	}
	if err := s.db.DeleteUpload(ctx, upload.UploadID); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.storage.RemoveUploadDir(upload.UploadID); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// RunOnce performs a single sweep (useful for testing).
func (s *Service) RunOnce(ctx context.Context) {
	s.sweep(ctx)
}
