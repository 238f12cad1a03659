package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Auth endpoints (no auth required)
		r.Post("/auth/login", s.handleLogin)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			// WS ticket requires authentication - user must be logged in to request a ticket
			r.Post("/auth/ws-ticket", s.handleWSTicket)

			// Instrument endpoints
			r.Route("/instruments", func(r chi.Router) {
				r.Get("/", s.handleListInstruments)

				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleGetInstrument)
					r.Post("/snapshots", s.handleCaptureSnapshot)
					r.Route("/parameters/{param}", func(r chi.Router) {
						r.Get("/", s.handleGetParameter)
						r.Put("/", s.handleSetParameter)
					})
				})
			})

			// Snapshot history endpoints
			r.Route("/snapshots", func(r chi.Router) {
				r.Get("/", s.handleListSnapshots)
				r.Get("/{id}", s.handleGetSnapshot)
			})

			// WebSocket (auth via ticket, validated in handler)
			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":      "ok",
		"version":     s.version,
		"uptime_s":    int(time.Since(s.startedAt).Seconds()),
		"instruments": s.registry.Count(),
		"ws_clients":  s.hub.ClientCount(),
	})
}
