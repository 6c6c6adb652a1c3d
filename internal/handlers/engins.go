package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tphummel/engin_maint/internal/db"
	"github.com/tphummel/engin_maint/internal/models"
)

func validateEngin(e *models.Engin) string {
	e.Code = strings.TrimSpace(e.Code)
	e.Name = strings.TrimSpace(e.Name)
	if e.Code == "" || e.Name == "" {
		return "code and name are required"
	}
	if e.Hours < 0 {
		return "hours must not be negative"
	}
	return ""
}

// loadEngin fetches the engin named by the {id} path value, writing a 404 or
// 500 response when it cannot.
func (h *Handler) loadEngin(w http.ResponseWriter, r *http.Request) (*models.Engin, bool) {
	e, err := h.DB.GetEngin(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "engin not found")
		return nil, false
	}
	if err != nil {
		serverError(w, "failed to get engin", err)
		return nil, false
	}
	return e, true
}

// CreateEngin handles POST /api/v1/engins.
func (h *Handler) CreateEngin(w http.ResponseWriter, r *http.Request) {
	var req models.Engin
	if !readJSON(w, r, &req, false) {
		return
	}
	if msg := validateEngin(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	req.ID = uuid.New().String()
	req.CreatedAt = now
	req.UpdatedAt = now

	err := h.DB.CreateEngin(&req)
	if errors.Is(err, db.ErrConflict) {
		writeError(w, http.StatusConflict, "engin code already exists")
		return
	}
	if err != nil {
		serverError(w, "failed to create engin", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListEngins handles GET /api/v1/engins with an optional ?type= filter.
func (h *Handler) ListEngins(w http.ResponseWriter, r *http.Request) {
	engins, err := h.DB.ListEngins(r.URL.Query().Get("type"))
	if err != nil {
		serverError(w, "failed to list engins", err)
		return
	}
	if engins == nil {
		engins = []*models.Engin{}
	}
	writeJSON(w, http.StatusOK, engins)
}

// GetEngin handles GET /api/v1/engins/{id}.
func (h *Handler) GetEngin(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadEngin(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, e)
}

// UpdateEngin handles PUT /api/v1/engins/{id}. The hour reading may be
// raised but never lowered.
func (h *Handler) UpdateEngin(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadEngin(w, r)
	if !ok {
		return
	}

	var req models.Engin
	if !readJSON(w, r, &req, false) {
		return
	}
	if msg := validateEngin(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}
	if req.Hours < existing.Hours {
		writeError(w, http.StatusConflict, "hours cannot decrease")
		return
	}

	req.ID = existing.ID
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	err := h.DB.UpdateEngin(&req)
	if errors.Is(err, db.ErrHoursDecrease) {
		writeError(w, http.StatusConflict, "hours cannot decrease")
		return
	}
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "engin not found")
		return
	}
	if errors.Is(err, db.ErrConflict) {
		writeError(w, http.StatusConflict, "engin code already exists")
		return
	}
	if err != nil {
		serverError(w, "failed to update engin", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteEngin handles DELETE /api/v1/engins/{id}.
func (h *Handler) DeleteEngin(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteEngin(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "engin not found")
		return
	}
	if err != nil {
		serverError(w, "failed to delete engin", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type hoursRequest struct {
	Hours *float64 `json:"hours"`
}

// ReportHours handles POST /api/v1/engins/{id}/hours.
func (h *Handler) ReportHours(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadEngin(w, r)
	if !ok {
		return
	}

	var req hoursRequest
	if !readJSON(w, r, &req, false) {
		return
	}
	if req.Hours == nil {
		writeError(w, http.StatusBadRequest, "hours is required")
		return
	}
	if *req.Hours < e.Hours {
		writeError(w, http.StatusConflict, "hours cannot decrease")
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	if err := h.DB.RaiseEnginHours(e.ID, *req.Hours, now); err != nil {
		serverError(w, "failed to report hours", err)
		return
	}
	// The stored reading may exceed the request if a maintenance raised it meanwhile.
	updated, err := h.DB.GetEngin(e.ID)
	if err != nil {
		serverError(w, "failed to load engin", err)
		return
	}
	writeJSON(w, http.StatusOK, updated)
}

// EnginSchedule handles GET /api/v1/engins/{id}/schedule.
func (h *Handler) EnginSchedule(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadEngin(w, r)
	if !ok {
		return
	}
	entry, err := h.Planner.ForEngin(e)
	if err != nil {
		serverError(w, "failed to resolve schedule", err)
		return
	}
	writeJSON(w, http.StatusOK, entry)
}

// EnginMaintenances handles GET /api/v1/engins/{id}/maintenances.
func (h *Handler) EnginMaintenances(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadEngin(w, r)
	if !ok {
		return
	}
	list, err := h.DB.ListMaintenances(e.ID)
	if err != nil {
		serverError(w, "failed to list maintenances", err)
		return
	}
	if list == nil {
		list = []*models.Maintenance{}
	}
	writeJSON(w, http.StatusOK, list)
}

// EnginFiltres handles GET /api/v1/engins/{id}/filtres.
func (h *Handler) EnginFiltres(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadEngin(w, r)
	if !ok {
		return
	}
	links, err := h.DB.ListEnginFiltres(e.ID)
	if err != nil {
		serverError(w, "failed to list engin filtres", err)
		return
	}
	if links == nil {
		links = []*models.EnginFiltre{}
	}
	writeJSON(w, http.StatusOK, links)
}

type linkRequest struct {
	Quantity int    `json:"quantity"`
	Notes    string `json:"notes"`
}

// LinkFiltre handles PUT /api/v1/engins/{id}/filtres/{filtreId}. The body is
// optional; quantity defaults to 1.
func (h *Handler) LinkFiltre(w http.ResponseWriter, r *http.Request) {
	e, ok := h.loadEngin(w, r)
	if !ok {
		return
	}
	f, err := h.DB.GetFiltre(r.PathValue("filtreId"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "filtre not found")
		return
	}
	if err != nil {
		serverError(w, "failed to get filtre", err)
		return
	}

	var req linkRequest
	if !readJSON(w, r, &req, true) {
		return
	}
	if req.Quantity < 0 {
		writeError(w, http.StatusBadRequest, "quantity must be at least 1")
		return
	}
	if req.Quantity == 0 {
		req.Quantity = 1
	}

	link := &models.EnginFiltre{EnginID: e.ID, FiltreID: f.ID, Quantity: req.Quantity, Notes: req.Notes}
	if err := h.DB.LinkFiltre(link); err != nil {
		serverError(w, "failed to link filtre", err)
		return
	}
	link.Filtre = f
	writeJSON(w, http.StatusOK, link)
}

// UnlinkFiltre handles DELETE /api/v1/engins/{id}/filtres/{filtreId}.
func (h *Handler) UnlinkFiltre(w http.ResponseWriter, r *http.Request) {
	err := h.DB.UnlinkFiltre(r.PathValue("id"), r.PathValue("filtreId"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "link not found")
		return
	}
	if err != nil {
		serverError(w, "failed to unlink filtre", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
