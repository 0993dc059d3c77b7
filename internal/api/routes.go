package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/neurai-voice/internal/metrics"
	"github.com/yegors/neurai-voice/pkg/logger"
)

// RouterConfig contains API router configuration
type RouterConfig struct {
	CORSAllowedOrigins []string
}

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	metrics    *metrics.Metrics
	config     RouterConfig
	logger     *logger.Logger
}

// NewRouter creates a new API router. history and m may be nil.
func NewRouter(recorder Recorder, history HistoryStore, m *metrics.Metrics, config RouterConfig, log *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(recorder, history, log),
		middleware: NewMiddleware(log, m),
		metrics:    m,
		config:     config,
		logger:     log.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.CORSAllowedOrigins))
	router.Use(r.middleware.Metrics)

	router.Route("/api/v1", func(router chi.Router) {
		// Recording routes
		router.Post("/recording/start", r.handler.StartRecording)
		router.Post("/recording/stop", r.handler.StopRecording)
		router.Get("/recording/status", r.handler.GetRecordingStatus)

		// Transcription history routes
		router.Get("/transcriptions", r.handler.GetTranscriptions)
		router.Delete("/transcriptions", r.handler.ClearTranscriptions)

		// Health check
		router.Get("/health", r.handler.GetHealth)
	})

	if r.metrics != nil {
		router.Handle("/metrics", r.metrics.Handler())
	}

	return router
}
