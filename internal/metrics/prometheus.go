// Package metrics exposes Prometheus counters for recording sessions and
// transcription exchanges.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/yegors/neurai-voice/internal/audio"
	"github.com/yegors/neurai-voice/internal/capture"
	"github.com/yegors/neurai-voice/internal/voice"
)

// Metrics contains all Prometheus metrics for the voice service
type Metrics struct {
	registry *prometheus.Registry

	// Session metrics
	SessionsFinished *prometheus.CounterVec
	SessionDuration  prometheus.Histogram
	AudioBytes       prometheus.Histogram

	// Transcription metrics
	TranscriptionRequests prometheus.Counter
	TranscriptionFailures *prometheus.CounterVec
	TranscriptionDuration prometheus.Histogram

	// HTTP API metrics
	HTTPRequests        *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec
}

// NewMetrics creates all metrics on a private registry
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	factory := promauto.With(reg)

	return &Metrics{
		registry: reg,

		SessionsFinished: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_sessions_finished_total",
			Help: "Total number of recording sessions by outcome",
		}, []string{"status", "kind"}),
		SessionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_session_duration_seconds",
			Help:    "Wall time from start to finish of a recording session",
			Buckets: prometheus.ExponentialBuckets(0.5, 2, 10), // 0.5s to ~4 minutes
		}),
		AudioBytes: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_session_audio_bytes",
			Help:    "Size of captured audio per session",
			Buckets: prometheus.ExponentialBuckets(16*1024, 2, 10), // 16KB to ~8MB
		}),

		TranscriptionRequests: factory.NewCounter(prometheus.CounterOpts{
			Name: "voice_transcription_requests_total",
			Help: "Total number of transcription exchanges",
		}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_transcription_failures_total",
			Help: "Total number of failed transcription exchanges by kind",
		}, []string{"kind"}),
		TranscriptionDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "voice_transcription_duration_seconds",
			Help:    "Duration of transcription exchanges",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 10), // 100ms to ~1 minute
		}),

		HTTPRequests: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "voice_http_requests_total",
			Help: "Total number of HTTP requests",
		}, []string{"method", "route", "status_code"}),
		HTTPRequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "voice_http_request_duration_seconds",
			Help:    "Duration of HTTP requests",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Registry returns the registry the metrics live on
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the metrics in the Prometheus exposition format
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObserveSession records a finished session. It matches the capture
// observer signature.
func (m *Metrics) ObserveSession(s voice.Summary) {
	kind := ""
	if s.Err != nil {
		kind = s.ErrorKind().String()
	}
	m.SessionsFinished.WithLabelValues(s.Status.String(), kind).Inc()
	m.SessionDuration.Observe(s.FinishedAt.Sub(s.StartedAt).Seconds())
	m.AudioBytes.Observe(float64(s.AudioBytes))
}

// RecordTranscription records one exchange with the transcription service
func (m *Metrics) RecordTranscription(err error, durationSeconds float64) {
	m.TranscriptionRequests.Inc()
	m.TranscriptionDuration.Observe(durationSeconds)
	if err != nil {
		m.TranscriptionFailures.WithLabelValues(voice.KindOf(err).String()).Inc()
	}
}

// RecordHTTPRequest records an HTTP request
func (m *Metrics) RecordHTTPRequest(method, route, statusCode string, durationSeconds float64) {
	m.HTTPRequests.WithLabelValues(method, route, statusCode).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, route).Observe(durationSeconds)
}

// InstrumentTranscriber times every call made through t
func (m *Metrics) InstrumentTranscriber(t capture.Transcriber) capture.Transcriber {
	return &instrumentedTranscriber{next: t, metrics: m}
}

type instrumentedTranscriber struct {
	next    capture.Transcriber
	metrics *Metrics
}

func (t *instrumentedTranscriber) Transcribe(ctx context.Context, payload audio.Payload) (string, error) {
	start := time.Now()
	text, err := t.next.Transcribe(ctx, payload)
	t.metrics.RecordTranscription(err, time.Since(start).Seconds())
	return text, err
}
