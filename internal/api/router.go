// Package api provides the HTTP API layer for the suggestion service.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"listkeeper/internal/logging"
	"listkeeper/internal/suggest"
)

// Router is the main API router
type Router struct {
	mux     *chi.Mux
	handler *SuggestionHandler
	logger  logging.Logger
	version string
}

// NewRouter creates an API router with middleware and routes
func NewRouter(service *suggest.Service, logger logging.Logger) *Router {
	r := &Router{
		mux:     chi.NewRouter(),
		handler: NewSuggestionHandler(service, logger),
		logger:  logger.WithComponent("api"),
		version: "1.0.0",
	}

	r.setupMiddleware()
	r.setupRoutes()

	return r
}

// Handler returns the HTTP handler
func (r *Router) Handler() http.Handler {
	return r.mux
}

func (r *Router) setupMiddleware() {
	r.mux.Use(chimiddleware.Recoverer)
	r.mux.Use(chimiddleware.RequestID)
	r.mux.Use(chimiddleware.RealIP)
	r.mux.Use(chimiddleware.Timeout(30 * time.Second))
	r.mux.Use(r.loggingMiddleware)

	// Request size limit (1MB); suppression bodies are tiny
	r.mux.Use(chimiddleware.RequestSize(1024 * 1024))

	// Heartbeat for load balancer health checks
	r.mux.Use(chimiddleware.Heartbeat("/ping"))
}

func (r *Router) setupRoutes() {
	r.mux.Get("/health", r.handleHealth)

	r.mux.Route("/api", func(api chi.Router) {
		api.Get("/suggestions", r.handler.GetSuggestions)
		api.Get("/suggestions/stats", r.handler.GetStats)
		api.Post("/suggestions/dismiss", r.handler.Dismiss)
		api.Post("/suggestions/reset", r.handler.Reset)
	})
}

func (r *Router) handleHealth(w http.ResponseWriter, req *http.Request) {
	WriteSuccess(w, map[string]interface{}{
		"status":  "healthy",
		"version": r.version,
	})
}

// loggingMiddleware logs each request with its duration and status
func (r *Router) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		ww := chimiddleware.NewWrapResponseWriter(w, req.ProtoMajor)

		next.ServeHTTP(ww, req)

		r.logger.Info("HTTP request",
			"method", req.Method,
			"path", req.URL.Path,
			"status", ww.Status(),
			"duration_ms", time.Since(start).Milliseconds(),
			"request_id", chimiddleware.GetReqID(req.Context()),
		)
	})
}
