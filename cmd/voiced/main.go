package main

import (
	"context"
	"database/sql"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/neurai-voice/internal/api"
	"github.com/yegors/neurai-voice/internal/capture"
	"github.com/yegors/neurai-voice/internal/config"
	"github.com/yegors/neurai-voice/internal/device/mic"
	"github.com/yegors/neurai-voice/internal/device/replay"
	"github.com/yegors/neurai-voice/internal/metrics"
	"github.com/yegors/neurai-voice/internal/storage/sqlite"
	"github.com/yegors/neurai-voice/internal/transcription"
	"github.com/yegors/neurai-voice/pkg/logger"
)

const serviceName = "voiced"

func main() {
	configPath := flag.String("config", "", "Path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(logger.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Output: cfg.Logging.Output,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Error("Service failed", logger.Error(err))
		os.Exit(1)
	}
}

func run(cfg *config.Config, log *logger.Logger) error {
	log.Info("Service starting",
		logger.String("service", serviceName),
		logger.String("device", cfg.Capture.Device),
		logger.String("transcription_endpoint", cfg.Transcription.Endpoint),
		logger.Duration("max_duration", cfg.Capture.MaxDuration.Duration()))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	device, err := newDevice(cfg.Capture, log)
	if err != nil {
		return err
	}

	client, err := transcription.NewClient(transcription.Config{
		Endpoint: cfg.Transcription.Endpoint,
		APIKey:   cfg.Transcription.APIKey,
		Timeout:  cfg.Transcription.Timeout.Duration(),
		Language: cfg.Transcription.Language,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create transcription client: %w", err)
	}

	appMetrics := metrics.NewMetrics()
	opts := []capture.Option{capture.WithObserver(appMetrics.ObserveSession)}

	var (
		history *sqlite.TranscriptionStorage
		pruner  *sqlite.Pruner
		db      *sql.DB
	)
	if cfg.Storage.Enabled {
		db, err = sqlite.Open(cfg.Storage.SQLitePath)
		if err != nil {
			return err
		}
		defer db.Close()

		history, err = sqlite.NewTranscriptionStorage(db, log)
		if err != nil {
			return err
		}
		opts = append(opts, capture.WithObserver(history.Observe))

		pruner = sqlite.NewPruner(history, cfg.Storage.HistoryLimit, cfg.Storage.PruneInterval.Duration(), log)
		pruner.Start(ctx)
		defer pruner.Stop()
	}

	controller, err := capture.NewController(device, appMetrics.InstrumentTranscriber(client), capture.Config{
		MaxDuration:     cfg.Capture.MaxDuration.Duration(),
		MaxPayloadBytes: cfg.Capture.MaxPayloadBytes,
		FlushTimeout:    cfg.Capture.FlushTimeout.Duration(),
	}, log, opts...)
	if err != nil {
		return fmt.Errorf("failed to create capture controller: %w", err)
	}
	defer controller.Close()

	// A nil *TranscriptionStorage must not become a non-nil interface.
	var store api.HistoryStore
	if history != nil {
		store = history
	}
	router := api.NewRouter(controller, store, appMetrics, api.RouterConfig{
		CORSAllowedOrigins: cfg.Server.CORSAllowedOrigins,
	}, log)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Server.Address, cfg.Server.Port),
		Handler:           router.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("HTTP API listening", logger.String("address", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		log.Info("Received shutdown signal")
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed: %w", err)
	}

	log.Info("Starting graceful shutdown...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", logger.Error(err))
	}

	stats := client.GetStats()
	log.Info("Service stopped",
		logger.Any("transcription_requests", stats.TotalRequests),
		logger.Any("transcription_failures", stats.FailedRequests))

	return nil
}

func newDevice(cfg config.CaptureConfig, log *logger.Logger) (capture.Device, error) {
	switch cfg.Device {
	case "replay":
		d, err := replay.New(replay.Config{
			Path:        cfg.ReplayFile,
			ChunkSizeMs: cfg.ChunkSizeMs,
			Realtime:    cfg.ReplayRealtime,
			QueueSize:   cfg.QueueSize,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create replay device: %w", err)
		}
		return d, nil
	default:
		d, err := mic.New(mic.Config{
			SampleRate:  cfg.SampleRate,
			ChunkSizeMs: cfg.ChunkSizeMs,
			QueueSize:   cfg.QueueSize,
		}, log)
		if err != nil {
			return nil, fmt.Errorf("failed to create microphone: %w", err)
		}
		return d, nil
	}
}
