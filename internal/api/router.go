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
	r.Use(s.corsMiddleware)
	r.Use(s.bodySizeLimitMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Group(func(r chi.Router) {
			r.Use(s.authMiddleware)

			r.Get("/status", s.handleStatus)
			r.Get("/metrics", s.handleMetrics)

			r.Get("/regions", s.handleListRegions)
			r.Get("/groups", s.handleListGroups)

			r.Route("/sequences", func(r chi.Router) {
				r.Get("/", s.handleListSequences)
				r.Get("/{id}", s.handleGetSequence)
			})

			r.Get("/journal", s.handleListJournal)

			r.Get("/ws", s.handleWebSocket)
		})
	})

	return r
}

// handleHealth returns the server health status. A failing journal
// database reports "degraded" with 503.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	resp := map[string]any{
		"status":  "ok",
		"version": s.version,
	}
	if s.db == nil {
		resp["database"] = "disabled"
		writeJSON(w, http.StatusOK, resp)
		return
	}

	if err := s.db.HealthCheck(r.Context()); err != nil {
		s.logger.Warn("health check: database unavailable", "error", err)
		resp["status"] = "degraded"
		resp["database"] = "unavailable"
		writeJSON(w, http.StatusServiceUnavailable, resp)
		return
	}
	resp["database"] = "ok"
	if v, err := s.db.SchemaVersion(r.Context()); err == nil {
		resp["schema_version"] = v
	}
	writeJSON(w, http.StatusOK, resp)
}
