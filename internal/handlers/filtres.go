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

func validateFiltre(f *models.Filtre) string {
	f.Reference = strings.TrimSpace(f.Reference)
	f.Brand = strings.TrimSpace(f.Brand)
	if f.Reference == "" || f.Brand == "" || f.Kind == "" {
		return "reference, brand, and kind are required"
	}
	if !models.ValidFiltreKinds[f.Kind] {
		return "invalid kind"
	}
	return ""
}

// CreateFiltre handles POST /api/v1/filtres.
func (h *Handler) CreateFiltre(w http.ResponseWriter, r *http.Request) {
	var req models.Filtre
	if !readJSON(w, r, &req, false) {
		return
	}
	if msg := validateFiltre(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	now := time.Now().UTC().Truncate(time.Second)
	req.ID = uuid.New().String()
	req.CreatedAt = now
	req.UpdatedAt = now

	err := h.DB.CreateFiltre(&req)
	if errors.Is(err, db.ErrConflict) {
		writeError(w, http.StatusConflict, "filtre reference already exists")
		return
	}
	if err != nil {
		serverError(w, "failed to create filtre", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// ListFiltres handles GET /api/v1/filtres with an optional ?kind= filter.
func (h *Handler) ListFiltres(w http.ResponseWriter, r *http.Request) {
	kind := r.URL.Query().Get("kind")
	if kind != "" && !models.ValidFiltreKinds[kind] {
		writeError(w, http.StatusBadRequest, "invalid kind")
		return
	}
	filtres, err := h.DB.ListFiltres(kind)
	if err != nil {
		serverError(w, "failed to list filtres", err)
		return
	}
	if filtres == nil {
		filtres = []*models.Filtre{}
	}
	writeJSON(w, http.StatusOK, filtres)
}

// SearchFiltres handles GET /api/v1/filtres/search?reference=. A filtre
// matches when its own reference or one of its cross references equals the
// query, ignoring case.
func (h *Handler) SearchFiltres(w http.ResponseWriter, r *http.Request) {
	ref := strings.TrimSpace(r.URL.Query().Get("reference"))
	if ref == "" {
		writeError(w, http.StatusBadRequest, "reference is required")
		return
	}
	filtres, err := h.DB.SearchFiltres(ref)
	if err != nil {
		serverError(w, "failed to search filtres", err)
		return
	}
	if filtres == nil {
		filtres = []*models.Filtre{}
	}
	writeJSON(w, http.StatusOK, filtres)
}

func (h *Handler) loadFiltre(w http.ResponseWriter, r *http.Request) (*models.Filtre, bool) {
	f, err := h.DB.GetFiltre(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "filtre not found")
		return nil, false
	}
	if err != nil {
		serverError(w, "failed to get filtre", err)
		return nil, false
	}
	return f, true
}

// GetFiltre handles GET /api/v1/filtres/{id}.
func (h *Handler) GetFiltre(w http.ResponseWriter, r *http.Request) {
	f, ok := h.loadFiltre(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, f)
}

// UpdateFiltre handles PUT /api/v1/filtres/{id}.
func (h *Handler) UpdateFiltre(w http.ResponseWriter, r *http.Request) {
	existing, ok := h.loadFiltre(w, r)
	if !ok {
		return
	}

	var req models.Filtre
	if !readJSON(w, r, &req, false) {
		return
	}
	if msg := validateFiltre(&req); msg != "" {
		writeError(w, http.StatusBadRequest, msg)
		return
	}

	req.ID = existing.ID
	req.CreatedAt = existing.CreatedAt
	req.UpdatedAt = time.Now().UTC().Truncate(time.Second)

	err := h.DB.UpdateFiltre(&req)
	if errors.Is(err, db.ErrConflict) {
		writeError(w, http.StatusConflict, "filtre reference already exists")
		return
	}
	if err != nil {
		serverError(w, "failed to update filtre", err)
		return
	}
	writeJSON(w, http.StatusOK, req)
}

// DeleteFiltre handles DELETE /api/v1/filtres/{id}.
func (h *Handler) DeleteFiltre(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteFiltre(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "filtre not found")
		return
	}
	if err != nil {
		serverError(w, "failed to delete filtre", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListCrossReferences handles GET /api/v1/filtres/{id}/cross-references.
func (h *Handler) ListCrossReferences(w http.ResponseWriter, r *http.Request) {
	f, ok := h.loadFiltre(w, r)
	if !ok {
		return
	}
	refs, err := h.DB.ListCrossReferences(f.ID)
	if err != nil {
		serverError(w, "failed to list cross references", err)
		return
	}
	if refs == nil {
		refs = []*models.CrossReference{}
	}
	writeJSON(w, http.StatusOK, refs)
}

// CreateCrossReference handles POST /api/v1/filtres/{id}/cross-references.
func (h *Handler) CreateCrossReference(w http.ResponseWriter, r *http.Request) {
	f, ok := h.loadFiltre(w, r)
	if !ok {
		return
	}

	var req models.CrossReference
	if !readJSON(w, r, &req, false) {
		return
	}
	req.Brand = strings.TrimSpace(req.Brand)
	req.Reference = strings.TrimSpace(req.Reference)
	if req.Brand == "" || req.Reference == "" {
		writeError(w, http.StatusBadRequest, "brand and reference are required")
		return
	}

	req.ID = uuid.New().String()
	req.FiltreID = f.ID
	req.CreatedAt = time.Now().UTC().Truncate(time.Second)

	err := h.DB.CreateCrossReference(&req)
	if errors.Is(err, db.ErrConflict) {
		writeError(w, http.StatusConflict, "cross reference already exists")
		return
	}
	if err != nil {
		serverError(w, "failed to create cross reference", err)
		return
	}
	writeJSON(w, http.StatusCreated, req)
}

// DeleteCrossReference handles DELETE /api/v1/cross-references/{id}.
func (h *Handler) DeleteCrossReference(w http.ResponseWriter, r *http.Request) {
	err := h.DB.DeleteCrossReference(r.PathValue("id"))
	if errors.Is(err, sql.ErrNoRows) {
		writeError(w, http.StatusNotFound, "cross reference not found")
		return
	}
	if err != nil {
		serverError(w, "failed to delete cross reference", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
