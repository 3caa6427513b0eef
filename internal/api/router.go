package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	// Global middleware
	r.Use(s.requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoveryMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		// Health check (no auth required)
		r.Get("/health", s.handleHealth)

		// Protected routes
		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)

			// Host endpoints
			r.Route("/hosts", func(r chi.Router) {
				r.Get("/", s.handleListHosts)
				r.Post("/", s.handleAddHost)
			})

			// Device endpoints
			r.Route("/devices", func(r chi.Router) {
				r.Get("/", s.handleListDevices)
				r.Route("/{name}", func(r chi.Router) {
					r.Get("/", s.handleGetDevice)
					r.Put("/value", s.handleSetDeviceValue)
				})
			})

			// Module endpoints
			r.Route("/modules", func(r chi.Router) {
				r.Get("/", s.handleListModules)
				r.Post("/{id}/enable", s.handleEnableModule)
				r.Post("/{id}/disable", s.handleDisableModule)
			})

			// Engine control
			r.Route("/engine", func(r chi.Router) {
				r.Post("/start", s.handleEngineStart)
				r.Post("/stop", s.handleEngineStop)
			})
		})
	})

	return r
}

// handleHealth returns the server health status.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":  "ok",
		"version": s.version,
	})
}
