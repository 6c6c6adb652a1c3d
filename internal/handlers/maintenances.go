package handlers

import (
	"database/sql"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/tphummel/engin_maint/internal/models"
)

type maintenanceRequest struct {
	EnginID    string    `json:"engin_id"`
	GammeID    string    `json:"gamme_id"`
	Hours      *float64  `json:"hours"`
	ExecutedAt time.Time `json:"executed_at"`
	FiltreIDs  []string  `json:"filtre_ids"`
	Notes      string    `json:"notes"`
}

// errBadReference marks a request naming an engin, gamme or filtre that does
// not exist.
type errBadReference string

func (e errBadReference) Error() string { return string(e) }

// checkReferences verifies that every ID named by req exists.
func (h *Handler) checkReferences(req *maintenanceRequest) error {
	if _, err := h.DB.GetEngin(req.EnginID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errBadReference("unknown engin")
		}
		return err
	}
	if _, err := h.DB.GetGamme(req.GammeID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return errBadReference("unknown gamme")
		}
		return err
	}
	for _, id := range req.FiltreIDs {
		if _, err := h.DB.GetFiltre(id); err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return errBadReference("unknown filtre " + id)
			}
			return err
		}
	}
	return nil
}

// parseMaintenance decodes and validates a maintenance body, writing the
// error response itself when it returns false.
func (h *Handler) parseMaintenance(w http.ResponseWriter, r *http.Request) (*maintenanceRequest, bool) {
	var req maintenanceRequest
	if !readJSON(w, r, &req, false) {
		return nil, false
	}
	if req.EnginID == "" || req.GammeID == "" || req.Hours == nil {
		writeError(w, http.StatusBadRequest, "engin_id, gamme_id, and hours are required")
		return nil, false
	}
	if *req.Hours < 0 {
		writeError(w, http.StatusBadRequest, "hours must not be negative")
		return nil, false
	}
	req.FiltreIDs = dedupe(req.FiltreIDs)

	err := h.checkReferences(&req)
	var bad errBadReference
	if errors.As(err, &bad) {
		writeError(w, http.StatusBadRequest, bad.Error())
		return nil, false
	}
	if err != nil {
		serverError(w, "failed to check references", err)
		return nil, false
	}
	return &req, true
}

func dedupe(ids []string) []string {
	out := make([]string, 0, len(ids))
	seen := make(map[string]bool, len(ids))
	for _, id := range ids {
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		out = append(out, id)
	}
	return out
}

// CreateMaintenance handles POST /api/v1/maintenances. executed_at defaults
// to now, and the engin's hour reading is raised to the logged hours.
func (h *Handler) CreateMaintenance(w http.ResponseWriter, r *http.Request) {
	req, ok := h.parseMaintenance(w, r)
	if !ok {
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	m := &models.Maintenance{
		ID:         uuid.New().String(),
		EnginID:    req.EnginID,
		GammeID:    req.GammeID,
		Hours:      *req.Hours,
		ExecutedAt: req.ExecutedAt.UTC().Truncate(time.Second),
		FiltreIDs:  req.FiltreIDs,
		Notes:      req.Notes,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if req.ExecutedAt.IsZero() {
		m.ExecutedAt = now
	}

	if err := h.DB.CreateMaintenance(m); err != nil {
		serverError(w, "failed to create maintenance", err)
		return
	}
	writeJSON(w, http.StatusCreated, m)
}

// ListMaintenances handles GET /api/v1/maintenances with an optional
// ?engin_id= filter. Results are newest first.
func (h *Handler) ListMaintenances(w http.ResponseWriter, r *http.Request) {
	list, err := h.DB.ListMaintenances(r.URL.Query().Get("engin_id"))
	if err != nil {
		serverError(w, "failed to list maintenances", err)
		return
	}
	if list == nil {
		list = []*models.Maintenance{}
	}
	writeJSON(w, http.StatusOK, list)
}

func (h *Handler) loadMaintenance(w http.ResponseWriter, r *http.Request) (*models.Maintenance, bool) {
	m, err := h.DB.GetMaintenance(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "maintenance not found")
		return nil, false
	}
	if err != nil {
		serverError(w, "failed to get maintenance", err)
		return nil, false
	}
	return m, true
}

// GetMaintenance handles GET /api/v1/maintenances/{id}.
func (h *Handler) GetMaintenance(w http.ResponseWriter, r *http.Request) {
	m, ok := h.loadMaintenance(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// UpdateMaintenance handles PUT /api/v1/maintenances/{id}. An omitted
// executed_at keeps the stored date.
func (h *Handler) UpdateMaintenance(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadMaintenance(w, r)
	if !ok {
		return
	}
	req, ok := h.parseMaintenance(w, r)
	if !ok {
		return
	}

	m := &models.Maintenance{
		ID:         existing.ID,
		EnginID:    req.EnginID,
		GammeID:    req.GammeID,
		Hours:      *req.Hours,
		ExecutedAt: req.ExecutedAt.UTC().Truncate(time.Second),
		FiltreIDs:  req.FiltreIDs,
		Notes:      req.Notes,
		CreatedAt:  existing.CreatedAt,
		UpdatedAt:  time.Now().UTC().Truncate(time.Second),
		Seq:        existing.Seq,
	}
	if req.ExecutedAt.IsZero() {
		m.ExecutedAt = existing.ExecutedAt
	}

	if err := h.DB.UpdateMaintenance(m); err != nil {
		serverError(w, "failed to update maintenance", err)
		return
	}
	writeJSON(w, http.StatusOK, m)
}

// DeleteMaintenance handles DELETE /api/v1/maintenances/{id}.
func (h *Handler) DeleteMaintenance(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteMaintenance(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "maintenance not found")
		return
	}
	if err != nil {
		serverError(w, "failed to delete maintenance", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
