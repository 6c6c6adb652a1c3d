package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/tphummel/engin_maint/internal/db"
	"github.com/tphummel/engin_maint/internal/metrics"
	"github.com/tphummel/engin_maint/internal/middleware"
	"github.com/tphummel/engin_maint/internal/schedule"
)

const maxBodyBytes = 64 * 1024

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	DB      *db.DB
	Planner *schedule.Planner
	Version string
	Commit  string
}

// Register mounts every /api/v1 route on mux behind Bearer token auth and
// HTTP metrics.
func (h *Handler) Register(mux *http.ServeMux, token string) {
	routes := []struct {
		pattern string
		fn      http.HandlerFunc
	}{
		{"POST /api/v1/engins", h.CreateEngin},
		{"GET /api/v1/engins", h.ListEngins},
		{"GET /api/v1/engins/{id}", h.GetEngin},
		{"PUT /api/v1/engins/{id}", h.UpdateEngin},
		{"DELETE /api/v1/engins/{id}", h.DeleteEngin},
		{"POST /api/v1/engins/{id}/hours", h.ReportHours},
		{"GET /api/v1/engins/{id}/schedule", h.EnginSchedule},
		{"GET /api/v1/engins/{id}/maintenances", h.EnginMaintenances},
		{"GET /api/v1/engins/{id}/filtres", h.EnginFiltres},
		{"PUT /api/v1/engins/{id}/filtres/{filtreId}", h.LinkFiltre},
		{"DELETE /api/v1/engins/{id}/filtres/{filtreId}", h.UnlinkFiltre},

		{"POST /api/v1/filtres", h.CreateFiltre},
		{"GET /api/v1/filtres", h.ListFiltres},
		{"GET /api/v1/filtres/search", h.SearchFiltres},
		{"GET /api/v1/filtres/{id}", h.GetFiltre},
		{"PUT /api/v1/filtres/{id}", h.UpdateFiltre},
		{"DELETE /api/v1/filtres/{id}", h.DeleteFiltre},
		{"GET /api/v1/filtres/{id}/cross-references", h.ListCrossReferences},
		{"POST /api/v1/filtres/{id}/cross-references", h.CreateCrossReference},
		{"DELETE /api/v1/cross-references/{id}", h.DeleteCrossReference},

		{"GET /api/v1/gammes", h.ListGammes},

		{"POST /api/v1/maintenances", h.CreateMaintenance},
		{"GET /api/v1/maintenances", h.ListMaintenances},
		{"GET /api/v1/maintenances/{id}", h.GetMaintenance},
		{"PUT /api/v1/maintenances/{id}", h.UpdateMaintenance},
		{"DELETE /api/v1/maintenances/{id}", h.DeleteMaintenance},

		{"GET /api/v1/schedule", h.Schedule},
		{"GET /api/v1/schedule/export", h.ExportSchedule},
	}
	for _, rt := range routes {
		mux.Handle(rt.pattern, metrics.Middleware(rt.pattern, middleware.Auth(token, rt.fn)))
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("failed to encode JSON response", "error", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// serverError logs err and replies 500 with msg.
func serverError(w http.ResponseWriter, msg string, err error) {
	slog.Error(msg, "error", err)
	writeError(w, http.StatusInternalServerError, msg)
}

// readJSON decodes a size-capped request body into v. It writes the error
// response and returns false on failure. An empty body is accepted only when
// optional is set.
func readJSON(w http.ResponseWriter, r *http.Request, v any, optional bool) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	err := json.NewDecoder(r.Body).Decode(v)
	if err == nil || (optional && errors.Is(err, io.EOF)) {
		return true
	}
	var maxErr *http.MaxBytesError
	if errors.As(err, &maxErr) {
		writeError(w, http.StatusRequestEntityTooLarge, "request body too large")
		return false
	}
	writeError(w, http.StatusBadRequest, "invalid JSON")
	return false
}

// Health handles GET /healthz. No auth required.
// Returns 503 if the database is unreachable.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.DB.Ping(); err != nil {
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{
			"status": "unavailable",
			"error":  err.Error(),
		})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"status":  "ok",
		"version": h.Version,
		"commit":  h.Commit,
	})
}
