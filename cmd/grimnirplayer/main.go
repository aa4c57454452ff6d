/*
Copyright (C) 2026 Friends Incode

SPDX-License-Identifier: AGPL-3.0-or-later
*/

package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/friendsincode/grimnir_player/internal/config"
	"github.com/friendsincode/grimnir_player/internal/db"
	"github.com/friendsincode/grimnir_player/internal/logging"
	"github.com/friendsincode/grimnir_player/internal/server"
	"github.com/friendsincode/grimnir_player/internal/telemetry"
	"github.com/friendsincode/grimnir_player/internal/version"
)

var (
	logger zerolog.Logger
	cfg    *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "grimnirplayer",
	Short: "Grimnir Player - Show playback scheduling engine",
	Long:  "Grimnir Player resolves recurring show schedules into a single playback decision per track: expansion, duration resolution, conflict arbitration, and end-policy refinement behind an HTTP API.",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the Grimnir Player server",
	Long:  "Start the scheduling engine and the HTTP API that exposes its decisions",
	RunE:  runServe,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.Version)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(versionCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads configuration (called by commands that need it).
func loadConfig() error {
	var err error
	cfg, err = config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger = logging.Setup(cfg.Environment)
	return nil
}

func runServe(cmd *cobra.Command, args []string) error {
	if err := loadConfig(); err != nil {
		return err
	}

	logger.Info().Str("version", version.Version).Msg("Grimnir Player starting")

	tracerProvider, err := telemetry.InitTracer(context.Background(), telemetry.TracerConfig{
		ServiceName:    "grimnir-player",
		ServiceVersion: version.Version,
		OTLPEndpoint:   cfg.OTLPEndpoint,
		Enabled:        cfg.TracingEnabled,
		SampleRate:     cfg.TracingSampleRate,
	}, logger)
	if err != nil {
		return fmt.Errorf("initialize tracer: %w", err)
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			logger.Error().Err(err).Msg("failed to shutdown tracer provider")
		}
	}()

	srv, err := server.New(cfg, logger)
	if err != nil {
		return fmt.Errorf("initialize server: %w", err)
	}

	httpServer := srv.HTTPServer()

	go func() {
		logger.Info().Str("addr", httpServer.Addr).Msg("HTTP server listening")
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal().Err(err).Msg("http server error")
		}
	}()

	metricsServer := srv.MetricsServer()
	if metricsServer != nil {
		go func() {
			logger.Info().Str("addr", metricsServer.Addr).Msg("metrics server listening")
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error().Err(err).Msg("metrics server error")
			}
		}()
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info().Msg("shutting down gracefully...")

	timeoutCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := httpServer.Shutdown(timeoutCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	}
	if metricsServer != nil {
		if err := metricsServer.Shutdown(timeoutCtx); err != nil {
			logger.Error().Err(err).Msg("metrics shutdown failed")
		}
	}

	if err := srv.Close(); err != nil {
		logger.Error().Err(err).Msg("shutdown cleanup failed")
	}

	logger.Info().Msg("Grimnir Player stopped")
	return nil
}

// initDatabase initializes the database connection (used by import and
// export commands, which run without the full server).
func initDatabase() (*gorm.DB, error) {
	database, err := db.Connect(cfg)
	if err != nil {
		return nil, err
	}
	if err := db.Migrate(database); err != nil {
		return nil, err
	}
	return database, nil
}
