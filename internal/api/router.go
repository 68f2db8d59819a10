package api

import (
	"context"
	"net/http"
	"sort"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
)

// healthCheckTimeout bounds each component check.
const healthCheckTimeout = 2 * time.Second

// buildRouter creates the HTTP router with all routes and middleware.
func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(s.requestMiddleware)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/status", s.handleStatus)
		r.Get("/preferences", s.handleListPreferences)
		r.Get("/overrides", s.handleListOverrides)
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.metrics)
	}

	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
	})
	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		writeError(w, http.StatusNotFound, "not found")
	})

	return r
}

// handleHealth runs every registered check.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	names := make([]string, 0, len(s.checks))
	for name := range s.checks {
		names = append(names, name)
	}
	sort.Strings(names)

	status, code := "ok", http.StatusOK
	checks := make(map[string]string, len(names))
	for _, name := range names {
		ctx, cancel := context.WithTimeout(r.Context(), healthCheckTimeout)
		err := s.checks[name].HealthCheck(ctx)
		cancel()
		if err != nil {
			checks[name] = err.Error()
			status, code = "degraded", http.StatusServiceUnavailable
			continue
		}
		checks[name] = "ok"
	}

	writeJSON(w, code, map[string]any{
		"status":  status,
		"version": s.version,
		"checks":  checks,
	})
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	if s.status == nil {
		writeError(w, http.StatusNotFound, "status not available")
		return
	}
	writeJSON(w, http.StatusOK, s.status.Snapshot())
}

// preferenceResponse is one row of the preference table.
type preferenceResponse struct {
	Key        string    `json:"key"`
	LuxBucket  string    `json:"lux_bucket"`
	LumaBucket int       `json:"luma_bucket"`
	Brightness uint8     `json:"brightness"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (s *Server) handleListPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.preferences.List(r.Context())
	if err != nil {
		s.logger.Error("listing preferences", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list preferences")
		return
	}

	out := make([]preferenceResponse, 0, len(prefs))
	for _, p := range prefs {
		out = append(out, preferenceResponse{
			Key:        p.Key.String(),
			LuxBucket:  p.Key.Lux,
			LumaBucket: p.Key.Luma,
			Brightness: p.Brightness,
			UpdatedAt:  p.UpdatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"preferences": out,
		"count":       len(out),
	})
}

type overrideResponse struct {
	Key        string    `json:"key"`
	Brightness uint8     `json:"brightness"`
	Previous   *uint8    `json:"previous"`
	CreatedAt  time.Time `json:"created_at"`
}

func (s *Server) handleListOverrides(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}

	overrides, err := s.preferences.Overrides(r.Context(), limit)
	if err != nil {
		s.logger.Error("listing overrides", "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list overrides")
		return
	}

	out := make([]overrideResponse, 0, len(overrides))
	for _, o := range overrides {
		out = append(out, overrideResponse{
			Key:        o.Key.String(),
			Brightness: o.Brightness,
			Previous:   o.Previous,
			CreatedAt:  o.CreatedAt,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"overrides": out,
		"count":     len(out),
	})
}
