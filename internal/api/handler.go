package api

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/yegors/neurai-voice/internal/capture"
	"github.com/yegors/neurai-voice/internal/storage/sqlite"
	"github.com/yegors/neurai-voice/internal/voice"
	"github.com/yegors/neurai-voice/pkg/logger"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 500
)

// Recorder is the capture controller surface the API drives
type Recorder interface {
	Start(ctx context.Context) error
	Stop(ctx context.Context) (string, error)
	IsRecording() bool
	IsProcessing() bool
	Status() capture.State
}

// HistoryStore is the transcription history the API reads
type HistoryStore interface {
	GetRecent(limit int) ([]*sqlite.TranscriptionRecord, error)
	GetByStatus(status string, limit int) ([]*sqlite.TranscriptionRecord, error)
	Clear() error
}

var (
	_ Recorder     = (*capture.Controller)(nil)
	_ HistoryStore = (*sqlite.TranscriptionStorage)(nil)
)

// Handler handles API requests
type Handler struct {
	recorder  Recorder
	history   HistoryStore
	logger    *logger.Logger
	startTime time.Time
}

// NewHandler creates a new API handler
func NewHandler(recorder Recorder, history HistoryStore, log *logger.Logger) *Handler {
	return &Handler{
		recorder:  recorder,
		history:   history,
		logger:    log.Named("api-handler"),
		startTime: time.Now(),
	}
}

// StatusResponse is the body of GET /recording/status
type StatusResponse struct {
	Status           string    `json:"status"`
	IsRecording      bool      `json:"is_recording"`
	IsProcessing     bool      `json:"is_processing"`
	SessionID        string    `json:"session_id,omitempty"`
	StartedAt        time.Time `json:"started_at"`
	CapturedBytes    int       `json:"captured_bytes"`
	CapturedDuration float64   `json:"captured_duration_seconds"`
	LastError        string    `json:"last_error,omitempty"`
	LastErrorKind    string    `json:"last_error_kind,omitempty"`
}

// ErrorResponse is the body of every failed request
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// StartRecording handles POST /recording/start
func (h *Handler) StartRecording(w http.ResponseWriter, r *http.Request) {
	if err := h.recorder.Start(r.Context()); err != nil {
		h.writeVoiceError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// StopRecording handles POST /recording/stop and returns the transcript
func (h *Handler) StopRecording(w http.ResponseWriter, r *http.Request) {
	text, err := h.recorder.Stop(r.Context())
	if err != nil {
		h.writeVoiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"text": text})
}

// GetRecordingStatus handles GET /recording/status
func (h *Handler) GetRecordingStatus(w http.ResponseWriter, r *http.Request) {
	state := h.recorder.Status()

	resp := StatusResponse{
		Status:           state.Status.String(),
		IsRecording:      state.Status == voice.StatusRecording,
		IsProcessing:     state.Status == voice.StatusFinalizing || state.Status == voice.StatusProcessing,
		SessionID:        state.SessionID,
		StartedAt:        state.StartedAt,
		CapturedBytes:    state.CapturedBytes,
		CapturedDuration: state.CapturedDuration.Seconds(),
	}
	if state.LastError != nil {
		resp.LastError = state.LastError.Error()
		resp.LastErrorKind = voice.KindOf(state.LastError).String()
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetTranscriptions handles GET /transcriptions?limit=&status=
func (h *Handler) GetTranscriptions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "transcription history is disabled"})
		return
	}

	limit := defaultHistoryLimit
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 1 {
			writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "limit must be a positive integer"})
			return
		}
		limit = min(n, maxHistoryLimit)
	}

	var (
		records []*sqlite.TranscriptionRecord
		err     error
	)
	switch status := r.URL.Query().Get("status"); status {
	case "":
		records, err = h.history.GetRecent(limit)
	case "completed", "failed":
		records, err = h.history.GetByStatus(status, limit)
	default:
		writeJSON(w, http.StatusBadRequest, ErrorResponse{Error: "status must be 'completed' or 'failed'"})
		return
	}
	if err != nil {
		h.logger.Error("Failed to query transcriptions", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to query transcriptions"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"count":          len(records),
		"transcriptions": records,
	})
}

// ClearTranscriptions handles DELETE /transcriptions
func (h *Handler) ClearTranscriptions(w http.ResponseWriter, r *http.Request) {
	if h.history == nil {
		writeJSON(w, http.StatusNotFound, ErrorResponse{Error: "transcription history is disabled"})
		return
	}
	if err := h.history.Clear(); err != nil {
		h.logger.Error("Failed to clear transcriptions", logger.Error(err))
		writeJSON(w, http.StatusInternalServerError, ErrorResponse{Error: "failed to clear transcriptions"})
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// GetHealth handles GET /health
func (h *Handler) GetHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"status":    "healthy",
		"timestamp": time.Now().UTC(),
		"uptime":    time.Since(h.startTime).String(),
		"recorder":  h.recorder.Status().Status.String(),
	})
}

// writeVoiceError maps a pipeline error to an HTTP status
func (h *Handler) writeVoiceError(w http.ResponseWriter, err error) {
	kind := voice.KindOf(err)
	status := statusForKind(kind)
	if status >= http.StatusInternalServerError {
		h.logger.Warn("Recording request failed", logger.String("kind", kind.String()), logger.Error(err))
	}
	writeJSON(w, status, ErrorResponse{Error: err.Error(), Kind: kind.String()})
}

func statusForKind(kind voice.Kind) int {
	switch kind {
	case voice.KindInvalidState:
		return http.StatusConflict
	case voice.KindDevice:
		return http.StatusServiceUnavailable
	case voice.KindEncoding, voice.KindEmptyResult:
		return http.StatusUnprocessableEntity
	case voice.KindService:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
