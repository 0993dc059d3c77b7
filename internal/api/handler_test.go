package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/capture"
	"github.com/yegors/neurai-voice/internal/device/replay"
	"github.com/yegors/neurai-voice/internal/metrics"
	"github.com/yegors/neurai-voice/internal/speech"
	"github.com/yegors/neurai-voice/internal/storage/sqlite"
	"github.com/yegors/neurai-voice/internal/transcription"
	"github.com/yegors/neurai-voice/internal/voice"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// fakeRecorder returns scripted results
type fakeRecorder struct {
	startErr error
	stopText string
	stopErr  error
	state    capture.State
}

func (f *fakeRecorder) Start(ctx context.Context) error          { return f.startErr }
func (f *fakeRecorder) Stop(ctx context.Context) (string, error) { return f.stopText, f.stopErr }
func (f *fakeRecorder) IsRecording() bool                        { return f.state.Status == voice.StatusRecording }
func (f *fakeRecorder) IsProcessing() bool                       { return f.state.Status == voice.StatusProcessing }
func (f *fakeRecorder) Status() capture.State                    { return f.state }

func do(t *testing.T, h http.Handler, method, path string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(method, path, nil))
	return rec
}

func decode(t *testing.T, rec *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.Unmarshal(rec.Body.Bytes(), v); err != nil {
		t.Fatalf("Failed to decode %q: %v", rec.Body.String(), err)
	}
}

func TestErrorKindsMapToStatusCodes(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code int
		kind string
	}{
		{"invalid state", voice.Errorf(voice.KindInvalidState, "stop", "no recording"), http.StatusConflict, "invalid_state"},
		{"device", voice.Errorf(voice.KindDevice, "start", "permission denied"), http.StatusServiceUnavailable, "device"},
		{"encoding", voice.Errorf(voice.KindEncoding, "stop", "no audio"), http.StatusUnprocessableEntity, "encoding"},
		{"service", voice.NewError(voice.KindService, "transcribe", errors.New("503")), http.StatusBadGateway, "service"},
		{"empty result", voice.Errorf(voice.KindEmptyResult, "transcribe", "nothing"), http.StatusUnprocessableEntity, "empty_result"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRouter(&fakeRecorder{stopErr: tt.err}, nil, nil, RouterConfig{}, logger.NewNop()).Routes()
			rec := do(t, r, http.MethodPost, "/api/v1/recording/stop")
			if rec.Code != tt.code {
				t.Errorf("Expected %d, got %d", tt.code, rec.Code)
			}
			var body ErrorResponse
			decode(t, rec, &body)
			if body.Kind != tt.kind {
				t.Errorf("Expected kind %s, got %s", tt.kind, body.Kind)
			}
			if body.Error == "" {
				t.Error("Expected error message")
			}
		})
	}
}

func TestStartRecording(t *testing.T) {
	r := NewRouter(&fakeRecorder{}, nil, nil, RouterConfig{}, logger.NewNop()).Routes()
	if rec := do(t, r, http.MethodPost, "/api/v1/recording/start"); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}

	busy := &fakeRecorder{startErr: voice.Errorf(voice.KindInvalidState, "start", "busy")}
	r = NewRouter(busy, nil, nil, RouterConfig{}, logger.NewNop()).Routes()
	if rec := do(t, r, http.MethodPost, "/api/v1/recording/start"); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409, got %d", rec.Code)
	}
}

func TestRecordingStatus(t *testing.T) {
	recorder := &fakeRecorder{state: capture.State{
		Status:    voice.StatusFailed,
		SessionID: "abc",
		LastError: voice.Errorf(voice.KindDevice, "record", "audio device lost"),
	}}
	r := NewRouter(recorder, nil, nil, RouterConfig{}, logger.NewNop()).Routes()

	rec := do(t, r, http.MethodGet, "/api/v1/recording/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d", rec.Code)
	}

	var status StatusResponse
	decode(t, rec, &status)
	if status.Status != "failed" || status.SessionID != "abc" {
		t.Errorf("Unexpected status: %+v", status)
	}
	if status.IsRecording || status.IsProcessing {
		t.Error("Expected a failed session to be neither recording nor processing")
	}
	if status.LastErrorKind != "device" || !strings.Contains(status.LastError, "audio device lost") {
		t.Errorf("Unexpected last error: %q (%s)", status.LastError, status.LastErrorKind)
	}
}

func TestTranscriptionsWithoutHistory(t *testing.T) {
	r := NewRouter(&fakeRecorder{}, nil, nil, RouterConfig{}, logger.NewNop()).Routes()
	if rec := do(t, r, http.MethodGet, "/api/v1/transcriptions"); rec.Code != http.StatusNotFound {
		t.Errorf("Expected 404, got %d", rec.Code)
	}
}

func TestTranscriptionsQueryValidation(t *testing.T) {
	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	history, err := sqlite.NewTranscriptionStorage(db, logger.NewNop())
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	r := NewRouter(&fakeRecorder{}, history, nil, RouterConfig{}, logger.NewNop()).Routes()

	for _, path := range []string{
		"/api/v1/transcriptions?limit=0",
		"/api/v1/transcriptions?limit=abc",
		"/api/v1/transcriptions?status=recording",
	} {
		if rec := do(t, r, http.MethodGet, path); rec.Code != http.StatusBadRequest {
			t.Errorf("%s: expected 400, got %d", path, rec.Code)
		}
	}

	if rec := do(t, r, http.MethodGet, "/api/v1/transcriptions?limit=10000&status=failed"); rec.Code != http.StatusOK {
		t.Errorf("Expected 200 with clamped limit, got %d", rec.Code)
	}
}

func TestCORSPreflight(t *testing.T) {
	r := NewRouter(&fakeRecorder{}, nil, nil, RouterConfig{CORSAllowedOrigins: []string{"http://app.local"}}, logger.NewNop()).Routes()

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/recording/start", nil)
	req.Header.Set("Origin", "http://app.local")
	req.Header.Set("Access-Control-Request-Method", "POST")
	rec := httptest.NewRecorder()
	r.ServeHTTP(rec, req)

	if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://app.local" {
		t.Errorf("Expected allowed origin header, got %q", got)
	}
}

func TestRecordingEndToEnd(t *testing.T) {
	log := logger.NewNop()

	// transcription service with a scripted recognizer
	recognizer := recognizerFunc(func(ctx context.Context, wav []byte, info audio.WAVInfo, language string) (string, error) {
		if info.Duration != 250*time.Millisecond {
			t.Errorf("Expected 250ms of audio, got %v", info.Duration)
		}
		return "take me to the moon", nil
	})
	service := httptest.NewServer(speech.NewHandler(recognizer, speech.Config{}, log).Routes())
	defer service.Close()

	client, err := transcription.NewClient(transcription.Config{
		Endpoint: service.URL + "/v1/transcribe",
		Timeout:  5 * time.Second,
	}, log)
	if err != nil {
		t.Fatalf("Failed to create client: %v", err)
	}

	wav, err := audio.EncodeWAV(audio.NewPayload(make([]byte, 8000), audio.DefaultFormat))
	if err != nil {
		t.Fatalf("Failed to encode WAV: %v", err)
	}
	device, err := replay.NewFromWAV(wav, replay.Config{ChunkSizeMs: 50}, log)
	if err != nil {
		t.Fatalf("Failed to create replay device: %v", err)
	}

	db, err := sqlite.Open(":memory:")
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer db.Close()
	history, err := sqlite.NewTranscriptionStorage(db, log)
	if err != nil {
		t.Fatalf("Failed to create storage: %v", err)
	}

	m := metrics.NewMetrics()
	controller, err := capture.NewController(device, m.InstrumentTranscriber(client),
		capture.Config{MaxDuration: time.Minute, FlushTimeout: 2 * time.Second}, log,
		capture.WithObserver(history.Observe),
		capture.WithObserver(m.ObserveSession))
	if err != nil {
		t.Fatalf("Failed to create controller: %v", err)
	}
	defer controller.Close()

	r := NewRouter(controller, history, m, RouterConfig{}, log).Routes()

	if rec := do(t, r, http.MethodPost, "/api/v1/recording/start"); rec.Code != http.StatusNoContent {
		t.Fatalf("Expected 204, got %d: %s", rec.Code, rec.Body.String())
	}

	// wait for the whole file to be buffered
	deadline := time.Now().Add(2 * time.Second)
	for controller.Status().CapturedBytes < 8000 {
		if time.Now().After(deadline) {
			t.Fatalf("Timed out buffering, have %d bytes", controller.Status().CapturedBytes)
		}
		time.Sleep(5 * time.Millisecond)
	}

	var status StatusResponse
	decode(t, do(t, r, http.MethodGet, "/api/v1/recording/status"), &status)
	if !status.IsRecording || status.SessionID == "" {
		t.Errorf("Expected an active recording, got %+v", status)
	}

	rec := do(t, r, http.MethodPost, "/api/v1/recording/stop")
	if rec.Code != http.StatusOK {
		t.Fatalf("Expected 200, got %d: %s", rec.Code, rec.Body.String())
	}
	var stopped map[string]string
	decode(t, rec, &stopped)
	if stopped["text"] != "take me to the moon" {
		t.Errorf("Unexpected transcript %q", stopped["text"])
	}

	// stopping again is an invalid state
	if rec := do(t, r, http.MethodPost, "/api/v1/recording/stop"); rec.Code != http.StatusConflict {
		t.Errorf("Expected 409 on second stop, got %d", rec.Code)
	}

	var listed struct {
		Count          int                           `json:"count"`
		Transcriptions []*sqlite.TranscriptionRecord `json:"transcriptions"`
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/transcriptions"), &listed)
	if listed.Count != 1 || listed.Transcriptions[0].Text != "take me to the moon" {
		t.Fatalf("Unexpected history: %+v", listed)
	}
	if listed.Transcriptions[0].SessionID != status.SessionID {
		t.Errorf("Expected history for session %s, got %s", status.SessionID, listed.Transcriptions[0].SessionID)
	}

	metricsBody := do(t, r, http.MethodGet, "/metrics").Body.String()
	if !strings.Contains(metricsBody, `voice_sessions_finished_total{kind="",status="completed"} 1`) {
		t.Error("Expected completed session counter in metrics")
	}

	if rec := do(t, r, http.MethodDelete, "/api/v1/transcriptions"); rec.Code != http.StatusNoContent {
		t.Errorf("Expected 204, got %d", rec.Code)
	}
	decode(t, do(t, r, http.MethodGet, "/api/v1/transcriptions"), &listed)
	if listed.Count != 0 {
		t.Errorf("Expected empty history after clear, got %d", listed.Count)
	}
}

type recognizerFunc func(ctx context.Context, wav []byte, info audio.WAVInfo, language string) (string, error)

func (f recognizerFunc) Recognize(ctx context.Context, wav []byte, info audio.WAVInfo, language string) (string, error) {
	return f(ctx, wav, info, language)
}
