// Package speech implements the remote transcription service: it accepts a
// base64 WAV payload and answers with recognized text.
package speech

import (
	"context"
	"crypto/subtle"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/transcription"
	"github.com/yegors/neurai-voice/pkg/logger"
)

const defaultMaxBodyBytes = 32 << 20

// Config contains speech handler configuration
type Config struct {
	// APIKey, when set, must be presented as a bearer token.
	APIKey         string
	MaxBodyBytes   int64
	RecognizeLimit time.Duration
}

// Handler serves POST /v1/transcribe
type Handler struct {
	recognizer Recognizer
	config     Config
	logger     *logger.Logger
}

// NewHandler creates a speech handler
func NewHandler(recognizer Recognizer, config Config, log *logger.Logger) *Handler {
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Handler{
		recognizer: recognizer,
		config:     config,
		logger:     log.Named("speech-handler"),
	}
}

// Routes returns the service routes
func (h *Handler) Routes() http.Handler {
	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(middleware.Recoverer)

	router.Route("/v1", func(router chi.Router) {
		router.With(h.authenticate).Post("/transcribe", h.Transcribe)
		router.Get("/health", h.Health)
	})

	return router
}

func (h *Handler) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if h.config.APIKey == "" {
			next.ServeHTTP(w, r)
			return
		}

		token, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer ")
		if !ok || subtle.ConstantTimeCompare([]byte(token), []byte(h.config.APIKey)) != 1 {
			writeError(w, http.StatusUnauthorized, "invalid or missing API key")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Transcribe decodes the payload, checks it is a WAV file and runs the
// recognizer.
func (h *Handler) Transcribe(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	reqLogger := h.logger.With(logger.String("request_id", middleware.GetReqID(r.Context())))

	r.Body = http.MaxBytesReader(w, r.Body, h.config.MaxBodyBytes)

	var req transcription.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	if req.Format != "" && req.Format != "wav" {
		writeError(w, http.StatusBadRequest, "unsupported audio format: "+req.Format)
		return
	}
	if req.Audio == "" {
		writeError(w, http.StatusBadRequest, "audio is required")
		return
	}

	wav, err := base64.StdEncoding.DecodeString(req.Audio)
	if err != nil {
		writeError(w, http.StatusBadRequest, "audio is not valid base64")
		return
	}

	info, err := audio.InspectWAV(wav)
	if err != nil {
		reqLogger.Debug("Rejected invalid WAV", logger.Error(err))
		writeError(w, http.StatusBadRequest, "audio is not a valid WAV file")
		return
	}

	ctx := r.Context()
	if h.config.RecognizeLimit > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, h.config.RecognizeLimit)
		defer cancel()
	}

	text, err := h.recognizer.Recognize(ctx, wav, info, req.Language)
	if err != nil {
		reqLogger.Error("Recognition failed",
			logger.Duration("audio_duration", info.Duration),
			logger.Error(err))
		writeError(w, http.StatusBadGateway, "recognition failed")
		return
	}

	text = strings.TrimSpace(text)
	reqLogger.Info("Transcription served",
		logger.Duration("audio_duration", info.Duration),
		logger.Int("text_length", len(text)),
		logger.Duration("elapsed", time.Since(start)))

	writeJSON(w, http.StatusOK, transcription.Response{Text: text})
}

// Health reports service liveness
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, transcription.Response{Error: message})
}
