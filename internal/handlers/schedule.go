package handlers

import (
	"bytes"
	"net/http"

	"github.com/tphummel/engin_maint/internal/export"
	"github.com/tphummel/engin_maint/internal/models"
	"github.com/tphummel/engin_maint/internal/schedule"
)

// ListGammes handles GET /api/v1/gammes.
func (h *Handler) ListGammes(w http.ResponseWriter, r *http.Request) {
	gammes, err := h.DB.ListGammes()
	if err != nil {
		serverError(w, "failed to list gammes", err)
		return
	}
	if gammes == nil {
		gammes = []models.Gamme{}
	}
	writeJSON(w, http.StatusOK, gammes)
}

// plan resolves every engin and keeps those matching the ?status= filter.
func (h *Handler) plan(w http.ResponseWriter, r *http.Request) ([]schedule.Entry, bool) {
	status := schedule.Status(r.URL.Query().Get("status"))
	if status != "" && !schedule.ValidStatuses[status] {
		writeError(w, http.StatusBadRequest, "invalid status")
		return nil, false
	}

	entries, err := h.Planner.All()
	if err != nil {
		serverError(w, "failed to resolve schedule", err)
		return nil, false
	}
	if status == "" {
		return entries, true
	}
	kept := entries[:0]
	for _, e := range entries {
		if e.Status == status {
			kept = append(kept, e)
		}
	}
	return kept, true
}

// Schedule handles GET /api/v1/schedule with an optional ?status= filter.
func (h *Handler) Schedule(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.plan(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, entries)
}

// ExportSchedule handles GET /api/v1/schedule/export. It returns the same
// plan as Schedule as an Excel workbook.
func (h *Handler) ExportSchedule(w http.ResponseWriter, r *http.Request) {
	entries, ok := h.plan(w, r)
	if !ok {
		return
	}
	gammes, err := h.DB.ListGammes()
	if err != nil {
		serverError(w, "failed to list gammes", err)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteSchedule(&buf, entries, gammes); err != nil {
		serverError(w, "failed to build workbook", err)
		return
	}
	w.Header().Set("Content-Type", export.ContentType)
	w.Header().Set("Content-Disposition", `attachment; filename="planning.xlsx"`)
	w.WriteHeader(http.StatusOK)
	w.Write(buf.Bytes())
}
