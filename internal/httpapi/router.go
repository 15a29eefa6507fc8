// Package httpapi exposes the factory status over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"ContentFactory/internal/domain"
	"ContentFactory/internal/ports"
)

// StatusSource is the part of the factory the API reads and controls.
type StatusSource interface {
	Health() domain.SystemHealth
	Stats() domain.ProductionStats
	SetMaintenance(ctx context.Context, enabled bool)
}

const (
	defaultResultLimit = 50
	maxResultLimit     = 500
)

// Router creates a chi.Router for the status API. results may be nil.
func Router(status StatusSource, results ports.ResultReader) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)

	r.Get("/healthz", HealthHandler(status))
	r.Get("/stats", StatsHandler(status))
	r.Post("/maintenance", MaintenanceHandler(status))
	if results != nil {
		r.Get("/results", ResultsHandler(results))
	}

	return r
}

// HealthHandler handles GET /healthz. Critical hosts answer 503.
func HealthHandler(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		h := status.Health()
		code := http.StatusOK
		if h.Status == domain.HealthCritical {
			code = http.StatusServiceUnavailable
		}
		writeJSON(w, code, h)
	}
}

// StatsHandler handles GET /stats.
func StatsHandler(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, status.Stats())
	}
}

type maintenanceRequest struct {
	Enabled *bool `json:"enabled"`
}

// MaintenanceHandler handles POST /maintenance with {"enabled": true|false}.
func MaintenanceHandler(status StatusSource) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req maintenanceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid body: %v", err))
			return
		}
		if req.Enabled == nil {
			writeError(w, http.StatusBadRequest, "missing enabled flag")
			return
		}

		status.SetMaintenance(r.Context(), *req.Enabled)
		writeJSON(w, http.StatusOK, status.Health())
	}
}

// ResultsHandler handles GET /results.
// Query params: platform (comma separated), limit.
func ResultsHandler(results ports.ResultReader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var platforms []string
		if raw := r.URL.Query().Get("platform"); raw != "" {
			for _, p := range strings.Split(raw, ",") {
				if p = strings.TrimSpace(p); p != "" {
					platforms = append(platforms, p)
				}
			}
		}

		limit := defaultResultLimit
		if raw := r.URL.Query().Get("limit"); raw != "" {
			v, err := strconv.Atoi(raw)
			if err != nil || v <= 0 {
				writeError(w, http.StatusBadRequest, "limit must be a positive integer")
				return
			}
			limit = min(v, maxResultLimit)
		}

		list, err := results.Recent(r.Context(), platforms, limit)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("failed to list results: %v", err))
			return
		}
		if list == nil {
			list = []domain.PublicationResult{}
		}

		writeJSON(w, http.StatusOK, map[string]any{
			"results":   list,
			"totalSize": len(list),
		})
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
