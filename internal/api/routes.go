package api

import (
	"net/http"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// ServerConfig holds the http.Server timeouts.
type ServerConfig struct {
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

// RegisterRoutes mounts every endpoint on mux and returns the wrapped
// handler. limiter guards the endpoints that do analysis work; nil disables it.
func RegisterRoutes(mux *http.ServeMux, h *Handler, limiter *rate.Limiter) http.Handler {
	if limiter == nil {
		limiter = NewLimiter(0, 0)
	}
	limited := func(fn http.HandlerFunc) http.Handler {
		return RateLimitMiddleware(limiter, h.metrics)(fn)
	}

	// Users
	mux.HandleFunc("GET /api/users/{id}", h.GetUser)

	// Health data
	mux.HandleFunc("GET /api/health-data/latest/{userId}", h.GetLatestHealthData)
	mux.HandleFunc("GET /api/health-data/{userId}", h.ListHealthData)
	// {view} rather than a literal "range" keeps the pattern from overlapping latest/{userId}.
	mux.HandleFunc("GET /api/health-data/{userId}/{view}", h.GetHealthDataRange)
	mux.HandleFunc("POST /api/health-data", h.CreateHealthData)

	// Reports
	mux.HandleFunc("GET /api/reports/{userId}", h.ListReports)
	mux.HandleFunc("GET /api/reports/detail/{id}", h.GetReport)
	mux.HandleFunc("GET /api/reports/detail/{id}/export", h.ExportReport)
	mux.HandleFunc("POST /api/reports", h.CreateReport)
	mux.Handle("POST /api/reports/generate", limited(h.GenerateReport))

	// Analysis
	mux.Handle("POST /api/analyze", limited(h.Analyze))
	mux.HandleFunc("GET /api/vitals/{userId}", h.GetVitals)
	mux.HandleFunc("GET /api/risk/{userId}", h.GetRisk)
	mux.HandleFunc("GET /api/classify", h.Classify)
	mux.Handle("POST /api/chat", limited(h.Chat))

	// Observability APIs
	mux.HandleFunc("GET /healthz", h.GetHealth)
	mux.HandleFunc("GET /metrics", h.GetMetrics)
	mux.HandleFunc("GET /admin/logs", h.GetLogs)

	// Middlewares
	return Chain(
		mux,
		RecoveryMiddleware(h.logger),
		RequestIDMiddleware,
		LoggingMiddleware(h.logger, h.metrics),
	)
}

// NewServer wraps the routed handler in an http.Server.
func NewServer(addr string, handler http.Handler, cfg ServerConfig, logger *zap.Logger) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadTimeout:       cfg.ReadTimeout,
		ReadHeaderTimeout: cfg.ReadTimeout,
		WriteTimeout:      cfg.WriteTimeout,
		ErrorLog:          zap.NewStdLog(logger.Named("http")),
	}
}
