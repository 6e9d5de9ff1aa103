package api

import (
	"context"
	"net/http"
	"runtime"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/nijaru/yt-kb/config"
	"github.com/nijaru/yt-kb/middleware"
	"github.com/nijaru/yt-kb/services/notify"
	"github.com/nijaru/yt-kb/services/queue"
)

type Server struct {
	queue     queue.Service
	jobs      *JobHandler
	ws        *WSHandler
	hub       *notify.Hub
	config    *config.Config
	logger    *logrus.Logger
	server    *http.Server
	startTime time.Time
}

type ServerOption func(*Server)

// NewServer creates a new API server with the provided services and options
func NewServer(cfg *config.Config, opts ...ServerOption) *Server {
	s := &Server{
		config:    cfg,
		logger:    logrus.StandardLogger(),
		startTime: time.Now(),
	}

	for _, opt := range opts {
		opt(s)
	}

	s.jobs = NewJobHandler(s.queue, s.logger)
	s.ws = NewWSHandler(s.hub, cfg.CORS.AllowedOrigins, s.logger)

	s.server = &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      s.routes(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return s
}

// WithServices sets the services the handlers are built on
func WithServices(queueSvc queue.Service, hub *notify.Hub) ServerOption {
	return func(s *Server) {
		s.queue = queueSvc
		s.hub = hub
	}
}

// WithLogger sets a custom logger for the server
func WithLogger(logger *logrus.Logger) ServerOption {
	return func(s *Server) {
		s.logger = logger
	}
}

// Handler exposes the routed and wrapped handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}

// Start starts the HTTP server
func (s *Server) Start() error {
	s.logger.WithField("port", s.config.ServerPort).Info("Starting server")
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.logger.Info("Shutting down server...")
	return s.server.Shutdown(ctx)
}

func (s *Server) routes() http.Handler {
	mux := http.NewServeMux()

	s.addJobRoutes(mux)

	mux.HandleFunc("GET /health", s.handleHealth)

	return s.middleware(mux)
}

func (s *Server) addJobRoutes(mux *http.ServeMux) {
	const prefix = "/api"

	mux.HandleFunc("POST "+prefix+"/jobs", s.jobs.HandleCreate)
	mux.HandleFunc("GET "+prefix+"/jobs", s.jobs.HandleList)
	mux.HandleFunc("GET "+prefix+"/jobs/stats", s.jobs.HandleStats)
	mux.HandleFunc("POST "+prefix+"/jobs/add-selected", s.jobs.HandleAddSelected)
	mux.HandleFunc("GET "+prefix+"/jobs/{id}", s.jobs.HandleGet)
	mux.HandleFunc("PATCH "+prefix+"/jobs/{id}", s.jobs.HandleUpdate)
	mux.HandleFunc("DELETE "+prefix+"/jobs/{id}", s.jobs.HandleDelete)

	mux.HandleFunc("GET "+prefix+"/ws", s.ws.HandleWebSocket)
}

func (s *Server) middleware(handler http.Handler) http.Handler {
	var rateLimiter middleware.RateLimiter
	if s.config.RateLimit.Enabled {
		rateLimiter = middleware.NewRateLimiter(
			s.config.RateLimit.RequestsPerMinute,
			s.config.RateLimit.BurstSize,
		)
	}

	middlewares := []func(http.Handler) http.Handler{
		middleware.Recovery(s.logger),
		middleware.RequestID(),
		middleware.Logging(s.logger),
		middleware.CORS(s.config.CORS),
		middleware.Timeout(s.config.RequestTimeout),
	}

	if rateLimiter != nil {
		middlewares = append(middlewares, rateLimiter.Middleware)
	}

	return middleware.Chain(handler, middlewares...)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]interface{}{
		"status":      "ok",
		"timestamp":   time.Now().UTC(),
		"version":     s.config.Version,
		"uptime":      time.Since(s.startTime).String(),
		"connections": s.hub.Count(),
	}

	if s.config.Debug {
		status["debug"] = true
		status["goroutines"] = runtime.NumGoroutine()
		var m runtime.MemStats
		runtime.ReadMemStats(&m)
		status["memory"] = map[string]interface{}{
			"allocated": m.Alloc,
			"total":     m.TotalAlloc,
			"system":    m.Sys,
			"gc_cycles": m.NumGC,
		}
	}

	respondJSON(w, r, http.StatusOK, status)
}
