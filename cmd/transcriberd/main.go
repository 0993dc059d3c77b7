package main

import (
	"context"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/yegors/neurai-voice/internal/config"
	"github.com/yegors/neurai-voice/internal/speech"
	"github.com/yegors/neurai-voice/pkg/logger"
)

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
	recognizer, err := speech.NewOpenAIRecognizer(speech.OpenAIConfig{
		APIKey:   cfg.Speech.OpenAIAPIKey,
		BaseURL:  cfg.Speech.OpenAIBaseURL,
		Model:    cfg.Speech.Model,
		Language: cfg.Speech.Language,
		Prompt:   cfg.Speech.Prompt,
	}, log)
	if err != nil {
		return fmt.Errorf("failed to create recognizer: %w", err)
	}

	handler := speech.NewHandler(recognizer, speech.Config{
		APIKey:         cfg.Speech.APIKey,
		MaxBodyBytes:   cfg.Speech.MaxBodyBytes,
		RecognizeLimit: cfg.Speech.RecognizeTimeout.Duration(),
	}, log)

	server := &http.Server{
		Addr:              fmt.Sprintf("%s:%d", cfg.Speech.Address, cfg.Speech.Port),
		Handler:           handler.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		log.Info("Transcription service listening",
			logger.String("address", server.Addr),
			logger.String("model", cfg.Speech.Model),
			logger.Bool("auth", cfg.Speech.APIKey != ""))
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

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout.Duration())
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("Error stopping HTTP server", logger.Error(err))
	}

	log.Info("Service stopped")
	return nil
}
