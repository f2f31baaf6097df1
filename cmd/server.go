// Copyright 2026 NebulaFS Authors
// SPDX-License-Identifier: Apache-2.0

package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/nebulafs/nebulafs/pkg/api"
	"github.com/nebulafs/nebulafs/pkg/auth"
	"github.com/nebulafs/nebulafs/pkg/config"
	"github.com/nebulafs/nebulafs/pkg/logger"
	"github.com/nebulafs/nebulafs/pkg/metadata/db/sqlite"
	"github.com/nebulafs/nebulafs/pkg/multipart"
	"github.com/nebulafs/nebulafs/pkg/storage"
	"github.com/nebulafs/nebulafs/pkg/sweeper"
)

var serverCmd = &cobra.Command{
	Use:   "server",
	Short: "Run the object storage server",
	RunE:  runServer,
}

func init() {
	serverCmd.Flags().String("config", "nebulafs.yaml", "Path to the configuration file")
	rootCmd.AddCommand(serverCmd)
}

func runServer(cmd *cobra.Command, args []string) error {
	configPath, _ := cmd.Flags().GetString("config")

	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}

	if level, err := zerolog.ParseLevel(cfg.Observability.LogLevel); err == nil && level != zerolog.NoLevel {
		logger.SetLevel(level)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metaDB, err := sqlite.Open(sqlite.DefaultConfig(cfg.Storage.MetadataPath))
	if err != nil {
		return fmt.Errorf("open metadata store: %w", err)
	}
	defer metaDB.Close()

	if err := metaDB.Migrate(ctx); err != nil {
		return fmt.Errorf("migrate metadata store: %w", err)
	}

	store, err := storage.New(cfg.Storage.BasePath, cfg.Storage.TempPath)
	if err != nil {
		return fmt.Errorf("init storage: %w", err)
	}

	mpSvc, err := multipart.NewService(multipart.Config{
		DB:        metaDB,
		Storage:   store,
		UploadTTL: cfg.UploadTTL(),
	})
	if err != nil {
		return fmt.Errorf("init multipart service: %w", err)
	}

	verifier := auth.NewVerifier(auth.Config{
		Enabled:    cfg.Auth.Enabled,
		Issuer:     cfg.Auth.Issuer,
		Audience:   cfg.Auth.Audience,
		JWKSURL:    cfg.Auth.JWKSURL,
		CacheTTL:   time.Duration(cfg.Auth.CacheTTLSeconds) * time.Second,
		ClockSkew:  time.Duration(cfg.Auth.ClockSkewSeconds) * time.Second,
		AllowedAlg: cfg.Auth.AllowedAlg,
	})

	apiServer := api.NewServer(api.ServerConfig{
		DB:           metaDB,
		Store:        store,
		Multipart:    mpSvc,
		Verifier:     verifier,
		AuthEnabled:  cfg.Auth.Enabled,
		MaxBodyBytes: cfg.Server.Limits.MaxBodyBytes,
	})

	httpServer := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port),
		Handler:           apiServer,
		ReadHeaderTimeout: 10 * time.Second,
	}

	var sweepSvc *sweeper.Service
	if cfg.Cleanup.Enabled {
		sweepSvc = sweeper.NewService(sweeper.Config{
			DB:          metaDB,
			Storage:     store,
			Interval:    cfg.SweepInterval(),
			GracePeriod: cfg.GracePeriod(),
			BatchSize:   cfg.Cleanup.MaxUploadsPerSweep,
		})
		sweepSvc.Start(ctx)
		defer sweepSvc.Stop()
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info().
			Str("addr", httpServer.Addr).
			Bool("tls", cfg.Server.TLS != nil).
			Bool("auth", cfg.Auth.Enabled).
			Msg("server listening")

		var err error
		if cfg.Server.TLS != nil {
			err = httpServer.ListenAndServeTLS(cfg.Server.TLS.Cert, cfg.Server.TLS.Key)
		} else {
			err = httpServer.ListenAndServe()
		}
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("server: %w", err)
	}

	logger.Info().Msg("server stopped")
	return nil
}
