package metrics

import (
	"context"
	"errors"
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/voice"
)

// counterValue sums every sample of the named counter whose labels contain
// the given pairs.
func counterValue(t *testing.T, m *Metrics, name string, labels map[string]string) float64 {
	t.Helper()
	families, err := m.Registry().Gather()
	if err != nil {
		t.Fatalf("Failed to gather: %v", err)
	}

	var total float64
	for _, family := range families {
		if family.GetName() != name {
			continue
		}
	metric:
		for _, metric := range family.GetMetric() {
			got := make(map[string]string)
			for _, pair := range metric.GetLabel() {
				got[pair.GetName()] = pair.GetValue()
			}
			for k, v := range labels {
				if got[k] != v {
					continue metric
				}
			}
			total += metric.GetCounter().GetValue()
		}
	}
	return total
}

func TestObserveSession(t *testing.T) {
	m := NewMetrics()
	now := time.Now()

	m.ObserveSession(voice.Summary{Status: voice.StatusCompleted, StartedAt: now, FinishedAt: now.Add(time.Second)})
	m.ObserveSession(voice.Summary{
		Status:    voice.StatusFailed,
		Err:       voice.Errorf(voice.KindDevice, "record", "lost"),
		StartedAt: now, FinishedAt: now,
	})

	if got := counterValue(t, m, "voice_sessions_finished_total", map[string]string{"status": "completed"}); got != 1 {
		t.Errorf("Expected 1 completed session, got %v", got)
	}
	if got := counterValue(t, m, "voice_sessions_finished_total", map[string]string{"status": "failed", "kind": "device"}); got != 1 {
		t.Errorf("Expected 1 device failure, got %v", got)
	}
}

type stubTranscriber struct {
	text string
	err  error
}

func (s stubTranscriber) Transcribe(ctx context.Context, payload audio.Payload) (string, error) {
	return s.text, s.err
}

func TestInstrumentTranscriber(t *testing.T) {
	m := NewMetrics()
	payload := audio.NewPayload(make([]byte, 320), audio.DefaultFormat)

	ok := m.InstrumentTranscriber(stubTranscriber{text: "hi"})
	if text, err := ok.Transcribe(context.Background(), payload); err != nil || text != "hi" {
		t.Fatalf("Expected pass-through result, got %q %v", text, err)
	}

	failing := m.InstrumentTranscriber(stubTranscriber{err: voice.NewError(voice.KindService, "transcribe", errors.New("503"))})
	if _, err := failing.Transcribe(context.Background(), payload); !errors.Is(err, voice.ErrService) {
		t.Fatalf("Expected service error to pass through, got %v", err)
	}

	if got := counterValue(t, m, "voice_transcription_requests_total", nil); got != 2 {
		t.Errorf("Expected 2 requests, got %v", got)
	}
	if got := counterValue(t, m, "voice_transcription_failures_total", map[string]string{"kind": "service"}); got != 1 {
		t.Errorf("Expected 1 service failure, got %v", got)
	}
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := NewMetrics()
	m.RecordHTTPRequest("GET", "/api/v1/health", "200", 0.01)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	body, _ := io.ReadAll(rec.Body)
	if !strings.Contains(string(body), "voice_http_requests_total") {
		t.Error("Expected HTTP request counter in exposition")
	}
	if !strings.Contains(string(body), "go_goroutines") {
		t.Error("Expected Go runtime collector in exposition")
	}
}
