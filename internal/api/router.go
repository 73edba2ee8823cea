package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// defaultWSPath is used when websocket.path is not configured.
const defaultWSPath = "/ws"

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeNotFound(w, "route not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, ErrCodeMethodNotAllow, "method not allowed")
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/metrics", s.handleMetrics)

		r.Route("/receivers", func(r chi.Router) {
			r.Get("/", s.handleListReceivers)

			r.Route("/{key}", func(r chi.Router) {
				r.Get("/", s.handleGetReceiver)
				r.Get("/channels/{channel}", s.handleGetChannel)
				r.Get("/channels/{channel}/{attribute}", s.handleGetAttribute)
			})
		})

		r.Get(s.wsPath(), s.handleWebSocket)
	})

	// Unversioned paths kept for existing dashboard clients.
	r.Route("/deviceStates", func(r chi.Router) {
		r.Get("/", s.handleListReceivers)
		r.Get("/{key}", s.handleGetReceiver)
		r.Get("/{key}/channel{channel}", s.handleGetChannel)
		r.Get("/{key}/channel{channel}/{attribute}", s.handleGetAttribute)
	})

	return r
}

func (s *Server) wsPath() string {
	if s.wsCfg.Path == "" {
		return defaultWSPath
	}
	return s.wsCfg.Path
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
