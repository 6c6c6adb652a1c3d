package handlers_test

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tphummel/engin_maint/internal/config"
	"github.com/tphummel/engin_maint/internal/db"
	"github.com/tphummel/engin_maint/internal/export"
	"github.com/tphummel/engin_maint/internal/handlers"
	"github.com/tphummel/engin_maint/internal/models"
	"github.com/tphummel/engin_maint/internal/schedule"
)

const apiToken = "test-token"

// newTestMux builds the same mux as main.go, backed by an in-memory DB seeded
// with the default gamme catalog.
func newTestMux(t *testing.T) (http.Handler, *db.DB) {
	t.Helper()
	d, err := db.New(":memory:")
	if err != nil {
		t.Fatalf("db.New: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	cfg := config.Config{Gammes: config.DefaultGammes()}
	if err := d.SyncGammes(cfg.Catalog()); err != nil {
		t.Fatalf("SyncGammes: %v", err)
	}

	h := &handlers.Handler{
		DB:      d,
		Planner: &schedule.Planner{Source: d, Policy: schedule.DefaultPolicy()},
	}

	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", h.Health)
	h.Register(mux, apiToken)

	return mux, d
}

// authReq builds a request with the test Bearer token already attached.
func authReq(method, path string, body []byte) *http.Request {
	var r *http.Request
	if body != nil {
		r = httptest.NewRequest(method, path, bytes.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
	} else {
		r = httptest.NewRequest(method, path, nil)
	}
	r.Header.Set("Authorization", "Bearer "+apiToken)
	return r
}

// serve is a small helper that runs a request through the mux and returns the recorder.
func serve(mux http.Handler, r *http.Request) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	mux.ServeHTTP(w, r)
	return w
}

// decodeBody unmarshals a recorder's body into v.
func decodeBody(t *testing.T, w *httptest.ResponseRecorder, v any) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode response body: %v\nbody: %s", err, w.Body.String())
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	b, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return b
}

func createEngin(t *testing.T, mux http.Handler, code string, hours float64) models.Engin {
	t.Helper()
	body := mustJSON(t, map[string]any{"code": code, "name": "Engin " + code, "type": "chargeuse", "hours": hours})
	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create engin %q: %d %s", code, w.Code, w.Body.String())
	}
	var e models.Engin
	decodeBody(t, w, &e)
	return e
}

func createFiltre(t *testing.T, mux http.Handler, ref, kind string) models.Filtre {
	t.Helper()
	body := mustJSON(t, map[string]any{"reference": ref, "brand": "Donaldson", "kind": kind})
	w := serve(mux, authReq(http.MethodPost, "/api/v1/filtres", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create filtre %q: %d %s", ref, w.Code, w.Body.String())
	}
	var f models.Filtre
	decodeBody(t, w, &f)
	return f
}

func listGammes(t *testing.T, mux http.Handler) []models.Gamme {
	t.Helper()
	w := serve(mux, authReq(http.MethodGet, "/api/v1/gammes", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("list gammes: %d %s", w.Code, w.Body.String())
	}
	var gammes []models.Gamme
	decodeBody(t, w, &gammes)
	return gammes
}

func logMaintenance(t *testing.T, mux http.Handler, enginID, gammeID string, hours float64, at time.Time) models.Maintenance {
	t.Helper()
	body := mustJSON(t, map[string]any{
		"engin_id":    enginID,
		"gamme_id":    gammeID,
		"hours":       hours,
		"executed_at": at,
	})
	w := serve(mux, authReq(http.MethodPost, "/api/v1/maintenances", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("log maintenance: %d %s", w.Code, w.Body.String())
	}
	var m models.Maintenance
	decodeBody(t, w, &m)
	return m
}

func getSchedule(t *testing.T, mux http.Handler, enginID string) schedule.Entry {
	t.Helper()
	w := serve(mux, authReq(http.MethodGet, "/api/v1/engins/"+enginID+"/schedule", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("schedule: %d %s", w.Code, w.Body.String())
	}
	var e schedule.Entry
	decodeBody(t, w, &e)
	return e
}

// --- Health ---

func TestHealth(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if w.Code != http.StatusOK {
		t.Errorf("status: got %d, want 200", w.Code)
	}
	var body map[string]string
	decodeBody(t, w, &body)
	if body["status"] != "ok" {
		t.Errorf("status field: got %q, want %q", body["status"], "ok")
	}
}

func TestHealth_DatabaseClosed(t *testing.T) {
	mux, d := newTestMux(t)
	d.Close()

	w := serve(mux, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if w.Code != http.StatusServiceUnavailable {
		t.Errorf("status: got %d, want 503", w.Code)
	}
}

// --- Auth guard on protected routes ---

func TestProtectedRoutes_RequireAuth(t *testing.T) {
	mux, _ := newTestMux(t)

	routes := []struct {
		method string
		path   string
	}{
		{http.MethodPost, "/api/v1/engins"},
		{http.MethodGet, "/api/v1/engins"},
		{http.MethodGet, "/api/v1/engins/some-id"},
		{http.MethodPut, "/api/v1/engins/some-id"},
		{http.MethodDelete, "/api/v1/engins/some-id"},
		{http.MethodPost, "/api/v1/engins/some-id/hours"},
		{http.MethodGet, "/api/v1/engins/some-id/schedule"},
		{http.MethodGet, "/api/v1/engins/some-id/maintenances"},
		{http.MethodGet, "/api/v1/engins/some-id/filtres"},
		{http.MethodPut, "/api/v1/engins/some-id/filtres/f"},
		{http.MethodDelete, "/api/v1/engins/some-id/filtres/f"},
		{http.MethodPost, "/api/v1/filtres"},
		{http.MethodGet, "/api/v1/filtres"},
		{http.MethodGet, "/api/v1/filtres/search?reference=x"},
		{http.MethodGet, "/api/v1/filtres/some-id"},
		{http.MethodPut, "/api/v1/filtres/some-id"},
		{http.MethodDelete, "/api/v1/filtres/some-id"},
		{http.MethodGet, "/api/v1/filtres/some-id/cross-references"},
		{http.MethodPost, "/api/v1/filtres/some-id/cross-references"},
		{http.MethodDelete, "/api/v1/cross-references/some-id"},
		{http.MethodGet, "/api/v1/gammes"},
		{http.MethodPost, "/api/v1/maintenances"},
		{http.MethodGet, "/api/v1/maintenances"},
		{http.MethodGet, "/api/v1/maintenances/some-id"},
		{http.MethodPut, "/api/v1/maintenances/some-id"},
		{http.MethodDelete, "/api/v1/maintenances/some-id"},
		{http.MethodGet, "/api/v1/schedule"},
		{http.MethodGet, "/api/v1/schedule/export"},
	}

	for _, rt := range routes {
		t.Run(fmt.Sprintf("%s %s", rt.method, rt.path), func(t *testing.T) {
			req := httptest.NewRequest(rt.method, rt.path, nil)
			// deliberately no Authorization header
			w := serve(mux, req)
			if w.Code != http.StatusUnauthorized {
				t.Errorf("expected 401 without auth, got %d", w.Code)
			}
		})
	}
}

// --- Engins ---

func TestCreateEngin_Valid(t *testing.T) {
	mux, _ := newTestMux(t)

	payload := map[string]any{
		"code":     "CH-01",
		"name":     "Chargeuse 950",
		"type":     "chargeuse",
		"make":     "Caterpillar",
		"model":    "950H",
		"serial":   "CAT950H123",
		"location": "carriere nord",
		"hours":    1200.5,
	}
	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", mustJSON(t, payload)))
	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want 201\nbody: %s", w.Code, w.Body.String())
	}

	var e models.Engin
	decodeBody(t, w, &e)
	if e.ID == "" {
		t.Error("ID should be non-empty")
	}
	if e.Code != "CH-01" || e.Make != "Caterpillar" {
		t.Errorf("unexpected engin: %+v", e)
	}
	if e.Hours != 1200.5 {
		t.Errorf("Hours: got %v, want 1200.5", e.Hours)
	}
	if e.CreatedAt.IsZero() || e.UpdatedAt.IsZero() {
		t.Error("timestamps should be set")
	}
}

func TestCreateEngin_ValidationErrors(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing code", map[string]any{"name": "Pelle"}},
		{"missing name", map[string]any{"code": "PE-01"}},
		{"blank code", map[string]any{"code": "  ", "name": "Pelle"}},
		{"negative hours", map[string]any{"code": "PE-01", "name": "Pelle", "hours": -5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", mustJSON(t, tt.payload)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400\nbody: %s", w.Code, w.Body.String())
			}
			var resp map[string]string
			decodeBody(t, w, &resp)
			if resp["error"] == "" {
				t.Error("expected non-empty error field")
			}
		})
	}
}

func TestCreateEngin_InvalidJSON(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", []byte("not-json")))
	if w.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want 400", w.Code)
	}
}

func TestCreateEngin_BodyTooLarge(t *testing.T) {
	mux, _ := newTestMux(t)
	big := `{"code":"X","name":"` + strings.Repeat("a", 70*1024) + `"}`
	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", []byte(big)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status: got %d, want 413", w.Code)
	}
}

func TestCreateEngin_DuplicateCode(t *testing.T) {
	mux, _ := newTestMux(t)
	createEngin(t, mux, "CH-01", 0)

	body := mustJSON(t, map[string]any{"code": "CH-01", "name": "Autre"})
	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", body))
	if w.Code != http.StatusConflict {
		t.Errorf("status: got %d, want 409", w.Code)
	}
}

func TestListEngins(t *testing.T) {
	mux, _ := newTestMux(t)

	w := serve(mux, authReq(http.MethodGet, "/api/v1/engins", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200", w.Code)
	}
	if strings.TrimSpace(w.Body.String()) != "[]" {
		t.Errorf("empty list should encode as [], got %s", w.Body.String())
	}

	createEngin(t, mux, "PE-02", 0)
	createEngin(t, mux, "CH-01", 0)
	pelle := mustJSON(t, map[string]any{"code": "PE-01", "name": "Pelle", "type": "pelle"})
	if w := serve(mux, authReq(http.MethodPost, "/api/v1/engins", pelle)); w.Code != http.StatusCreated {
		t.Fatalf("create pelle: %s", w.Body.String())
	}

	tests := []struct {
		query string
		want  int
	}{
		{"", 3},
		{"?type=chargeuse", 2},
		{"?type=pelle", 1},
		{"?type=camion", 0},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodGet, "/api/v1/engins"+tt.query, nil))
			var engins []models.Engin
			decodeBody(t, w, &engins)
			if len(engins) != tt.want {
				t.Errorf("got %d engins, want %d", len(engins), tt.want)
			}
		})
	}
}

func TestGetEngin_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	w := serve(mux, authReq(http.MethodGet, "/api/v1/engins/nope", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestUpdateEngin(t *testing.T) {
	mux, _ := newTestMux(t)
	e := createEngin(t, mux, "CH-01", 500)

	body := mustJSON(t, map[string]any{"code": "CH-01", "name": "Renamed", "type": "chargeuse", "hours": 600})
	w := serve(mux, authReq(http.MethodPut, "/api/v1/engins/"+e.ID, body))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	var got models.Engin
	decodeBody(t, w, &got)
	if got.Name != "Renamed" || got.Hours != 600 {
		t.Errorf("not updated: %+v", got)
	}
	if !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("CreatedAt changed: got %v, want %v", got.CreatedAt, e.CreatedAt)
	}

	lower := mustJSON(t, map[string]any{"code": "CH-01", "name": "Renamed", "hours": 100})
	if w := serve(mux, authReq(http.MethodPut, "/api/v1/engins/"+e.ID, lower)); w.Code != http.StatusConflict {
		t.Errorf("decreasing hours: got %d, want 409", w.Code)
	}

	if w := serve(mux, authReq(http.MethodPut, "/api/v1/engins/missing", body)); w.Code != http.StatusNotFound {
		t.Errorf("missing engin: got %d, want 404", w.Code)
	}
}

func TestDeleteEngin(t *testing.T) {
	mux, _ := newTestMux(t)
	e := createEngin(t, mux, "CH-01", 0)

	if w := serve(mux, authReq(http.MethodDelete, "/api/v1/engins/"+e.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", w.Code)
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/engins/"+e.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
	if w := serve(mux, authReq(http.MethodDelete, "/api/v1/engins/"+e.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
}

func TestReportHours(t *testing.T) {
	mux, _ := newTestMux(t)
	e := createEngin(t, mux, "CH-01", 100)

	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins/"+e.ID+"/hours", []byte(`{"hours": 180}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	var got models.Engin
	decodeBody(t, w, &got)
	if got.Hours != 180 {
		t.Errorf("Hours: got %v, want 180", got.Hours)
	}

	tests := []struct {
		name string
		body string
		want int
	}{
		{"same reading", `{"hours": 180}`, http.StatusOK},
		{"lower reading", `{"hours": 90}`, http.StatusConflict},
		{"missing hours", `{}`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodPost, "/api/v1/engins/"+e.ID+"/hours", []byte(tt.body)))
			if w.Code != tt.want {
				t.Errorf("status: got %d, want %d", w.Code, tt.want)
			}
		})
	}

	if w := serve(mux, authReq(http.MethodPost, "/api/v1/engins/missing/hours", []byte(`{"hours": 1}`))); w.Code != http.StatusNotFound {
		t.Errorf("missing engin: got %d, want 404", w.Code)
	}
}

// The response echoes the stored engin rather than the submitted reading.
func TestReportHours_ReturnsStoredEngin(t *testing.T) {
	mux, d := newTestMux(t)
	e := createEngin(t, mux, "CH-01", 100)

	w := serve(mux, authReq(http.MethodPost, "/api/v1/engins/"+e.ID+"/hours", []byte(`{"hours": 250.5}`)))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	var got models.Engin
	decodeBody(t, w, &got)

	stored, err := d.GetEngin(e.ID)
	if err != nil {
		t.Fatalf("GetEngin: %v", err)
	}
	if got.Hours != stored.Hours || !got.UpdatedAt.Equal(stored.UpdatedAt) {
		t.Errorf("response %v at %v, stored %v at %v", got.Hours, got.UpdatedAt, stored.Hours, stored.UpdatedAt)
	}
	if got.Code != "CH-01" || !got.CreatedAt.Equal(e.CreatedAt) {
		t.Errorf("unexpected engin in response: %+v", got)
	}
}

// --- Gammes ---

func TestListGammes(t *testing.T) {
	mux, _ := newTestMux(t)
	gammes := listGammes(t, mux)

	if len(gammes) != 8 {
		t.Fatalf("expected 8 gammes, got %d", len(gammes))
	}
	for i, g := range gammes {
		if g.Position != i+1 {
			t.Errorf("gamme %d: position %d", i, g.Position)
		}
		if g.ID == "" {
			t.Errorf("gamme %d: empty ID", i)
		}
	}
	if gammes[3].Label != "E" || gammes[3].Hours != 1000 {
		t.Errorf("gamme 4: got %+v", gammes[3])
	}
}

// --- Schedule ---

func TestEnginSchedule_Rotation(t *testing.T) {
	mux, _ := newTestMux(t)
	gammes := listGammes(t, mux)
	e := createEngin(t, mux, "CH-01", 0)

	// no history: first gamme, full threshold
	got := getSchedule(t, mux, e.ID)
	if got.Next == nil || got.Next.Position != 1 {
		t.Fatalf("next: got %+v, want position 1", got.Next)
	}
	if got.RemainingHours != 250 || got.Status != schedule.StatusCurrent {
		t.Errorf("got remaining %v status %q, want 250 current", got.RemainingHours, got.Status)
	}
	if got.Last != nil {
		t.Errorf("Last: got %+v, want nil", got.Last)
	}

	// gamme 1 done at 260h: next is gamme 2, its span is 500-250
	m := logMaintenance(t, mux, e.ID, gammes[0].ID, 260, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	got = getSchedule(t, mux, e.ID)
	if got.Next == nil || got.Next.Position != 2 {
		t.Fatalf("next: got %+v, want position 2", got.Next)
	}
	if got.RemainingHours != 250 {
		t.Errorf("remaining: got %v, want 250", got.RemainingHours)
	}
	if got.Last == nil || got.Last.ID != m.ID {
		t.Errorf("Last: got %+v, want %s", got.Last, m.ID)
	}
	if got.Engin.Hours != 260 {
		t.Errorf("engin hours should follow the logged maintenance, got %v", got.Engin.Hours)
	}

	// 220h later: approaching
	serve(mux, authReq(http.MethodPost, "/api/v1/engins/"+e.ID+"/hours", []byte(`{"hours": 480}`)))
	got = getSchedule(t, mux, e.ID)
	if got.RemainingHours != 30 || got.Status != schedule.StatusApproaching {
		t.Errorf("got remaining %v status %q, want 30 approaching", got.RemainingHours, got.Status)
	}

	// overdue clamps at zero
	serve(mux, authReq(http.MethodPost, "/api/v1/engins/"+e.ID+"/hours", []byte(`{"hours": 900}`)))
	got = getSchedule(t, mux, e.ID)
	if got.RemainingHours != 0 || got.Status != schedule.StatusDue {
		t.Errorf("got remaining %v status %q, want 0 due", got.RemainingHours, got.Status)
	}
}

func TestEnginSchedule_WrapsAfterLastGamme(t *testing.T) {
	mux, _ := newTestMux(t)
	gammes := listGammes(t, mux)
	e := createEngin(t, mux, "CH-01", 0)

	logMaintenance(t, mux, e.ID, gammes[7].ID, 2010, time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC))
	got := getSchedule(t, mux, e.ID)
	if got.Next == nil || got.Next.Position != 1 {
		t.Fatalf("next: got %+v, want position 1", got.Next)
	}
	if got.RemainingHours != 250 {
		t.Errorf("remaining: got %v, want 250", got.RemainingHours)
	}
}

func TestEnginSchedule_NotFound(t *testing.T) {
	mux, _ := newTestMux(t)
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/engins/missing/schedule", nil)); w.Code != http.StatusNotFound {
		t.Errorf("status: got %d, want 404", w.Code)
	}
}

func TestSchedule_StatusFilter(t *testing.T) {
	mux, _ := newTestMux(t)
	createEngin(t, mux, "CH-01", 0)   // 250 remaining
	createEngin(t, mux, "CH-02", 220) // 30 remaining
	createEngin(t, mux, "CH-03", 400) // overdue

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{"CH-01", "CH-02", "CH-03"}},
		{"?status=current", []string{"CH-01"}},
		{"?status=approaching", []string{"CH-02"}},
		{"?status=due", []string{"CH-03"}},
		{"?status=unscheduled", nil},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodGet, "/api/v1/schedule"+tt.query, nil))
			if w.Code != http.StatusOK {
				t.Fatalf("status: got %d, want 200", w.Code)
			}
			var entries []schedule.Entry
			decodeBody(t, w, &entries)
			if len(entries) != len(tt.want) {
				t.Fatalf("got %d entries, want %d", len(entries), len(tt.want))
			}
			for i, code := range tt.want {
				if entries[i].Engin.Code != code {
					t.Errorf("entry %d: got %q, want %q", i, entries[i].Engin.Code, code)
				}
			}
		})
	}

	if w := serve(mux, authReq(http.MethodGet, "/api/v1/schedule?status=late", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d, want 400", w.Code)
	}
}

func TestExportSchedule(t *testing.T) {
	mux, _ := newTestMux(t)
	createEngin(t, mux, "CH-01", 0)

	w := serve(mux, authReq(http.MethodGet, "/api/v1/schedule/export", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, want 200\nbody: %s", w.Code, w.Body.String())
	}
	if ct := w.Header().Get("Content-Type"); ct != export.ContentType {
		t.Errorf("Content-Type: got %q", ct)
	}
	if cd := w.Header().Get("Content-Disposition"); !strings.Contains(cd, "planning.xlsx") {
		t.Errorf("Content-Disposition: got %q", cd)
	}
	// xlsx is a zip archive
	if !bytes.HasPrefix(w.Body.Bytes(), []byte("PK")) {
		t.Error("body is not a zip archive")
	}

	if w := serve(mux, authReq(http.MethodGet, "/api/v1/schedule/export?status=bogus", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid status: got %d, want 400", w.Code)
	}
}

// --- Maintenances ---

func TestCreateMaintenance_Validation(t *testing.T) {
	mux, _ := newTestMux(t)
	gammes := listGammes(t, mux)
	e := createEngin(t, mux, "CH-01", 0)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing engin", map[string]any{"gamme_id": gammes[0].ID, "hours": 250}},
		{"missing gamme", map[string]any{"engin_id": e.ID, "hours": 250}},
		{"missing hours", map[string]any{"engin_id": e.ID, "gamme_id": gammes[0].ID}},
		{"negative hours", map[string]any{"engin_id": e.ID, "gamme_id": gammes[0].ID, "hours": -1}},
		{"unknown engin", map[string]any{"engin_id": "ghost", "gamme_id": gammes[0].ID, "hours": 250}},
		{"unknown gamme", map[string]any{"engin_id": e.ID, "gamme_id": "ghost", "hours": 250}},
		{"unknown filtre", map[string]any{"engin_id": e.ID, "gamme_id": gammes[0].ID, "hours": 250, "filtre_ids": []string{"ghost"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodPost, "/api/v1/maintenances", mustJSON(t, tt.payload)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400\nbody: %s", w.Code, w.Body.String())
			}
		})
	}
}

func TestMaintenance_Lifecycle(t *testing.T) {
	mux, _ := newTestMux(t)
	gammes := listGammes(t, mux)
	e := createEngin(t, mux, "CH-01", 0)
	f := createFiltre(t, mux, "P550520", "huile")

	body := mustJSON(t, map[string]any{
		"engin_id":   e.ID,
		"gamme_id":   gammes[0].ID,
		"hours":      255,
		"filtre_ids": []string{f.ID, f.ID},
		"notes":      "vidange",
	})
	w := serve(mux, authReq(http.MethodPost, "/api/v1/maintenances", body))
	if w.Code != http.StatusCreated {
		t.Fatalf("create: got %d\nbody: %s", w.Code, w.Body.String())
	}
	var m models.Maintenance
	decodeBody(t, w, &m)
	if m.ExecutedAt.IsZero() {
		t.Error("ExecutedAt should default to now")
	}
	if len(m.FiltreIDs) != 1 {
		t.Errorf("FiltreIDs should be deduplicated, got %v", m.FiltreIDs)
	}

	w = serve(mux, authReq(http.MethodGet, "/api/v1/maintenances/"+m.ID, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("get: got %d", w.Code)
	}

	update := mustJSON(t, map[string]any{
		"engin_id": e.ID,
		"gamme_id": gammes[1].ID,
		"hours":    510,
	})
	w = serve(mux, authReq(http.MethodPut, "/api/v1/maintenances/"+m.ID, update))
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d\nbody: %s", w.Code, w.Body.String())
	}
	var updated models.Maintenance
	decodeBody(t, w, &updated)
	if updated.GammeID != gammes[1].ID || updated.Hours != 510 {
		t.Errorf("not updated: %+v", updated)
	}
	if !updated.ExecutedAt.Equal(m.ExecutedAt) {
		t.Errorf("ExecutedAt should be kept: got %v, want %v", updated.ExecutedAt, m.ExecutedAt)
	}
	if len(updated.FiltreIDs) != 0 {
		t.Errorf("FiltreIDs should be replaced, got %v", updated.FiltreIDs)
	}

	w = serve(mux, authReq(http.MethodGet, "/api/v1/engins/"+e.ID, nil))
	var engin models.Engin
	decodeBody(t, w, &engin)
	if engin.Hours != 510 {
		t.Errorf("engin hours: got %v, want 510", engin.Hours)
	}

	if w := serve(mux, authReq(http.MethodDelete, "/api/v1/maintenances/"+m.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", w.Code)
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/maintenances/"+m.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
	if w := serve(mux, authReq(http.MethodPut, "/api/v1/maintenances/"+m.ID, update)); w.Code != http.StatusNotFound {
		t.Errorf("update after delete: got %d, want 404", w.Code)
	}
}

func TestListMaintenances_NewestFirst(t *testing.T) {
	mux, _ := newTestMux(t)
	gammes := listGammes(t, mux)
	a := createEngin(t, mux, "CH-01", 0)
	b := createEngin(t, mux, "CH-02", 0)

	day := time.Date(2024, 5, 1, 0, 0, 0, 0, time.UTC)
	first := logMaintenance(t, mux, a.ID, gammes[0].ID, 250, day)
	second := logMaintenance(t, mux, a.ID, gammes[1].ID, 500, day)
	logMaintenance(t, mux, b.ID, gammes[0].ID, 250, day.Add(-24*time.Hour))

	w := serve(mux, authReq(http.MethodGet, "/api/v1/maintenances", nil))
	var all []models.Maintenance
	decodeBody(t, w, &all)
	if len(all) != 3 {
		t.Fatalf("expected 3 maintenances, got %d", len(all))
	}

	w = serve(mux, authReq(http.MethodGet, "/api/v1/maintenances?engin_id="+a.ID, nil))
	var forA []models.Maintenance
	decodeBody(t, w, &forA)
	if len(forA) != 2 {
		t.Fatalf("expected 2 maintenances for engin, got %d", len(forA))
	}
	// same date: later insertion wins
	if forA[0].ID != second.ID || forA[1].ID != first.ID {
		t.Errorf("order: got %s, %s", forA[0].ID, forA[1].ID)
	}

	w = serve(mux, authReq(http.MethodGet, "/api/v1/engins/"+a.ID+"/maintenances", nil))
	if w.Code != http.StatusOK {
		t.Fatalf("engin maintenances: got %d", w.Code)
	}
	var history []models.Maintenance
	decodeBody(t, w, &history)
	if len(history) != 2 || history[0].ID != second.ID {
		t.Errorf("history: got %+v", history)
	}

	if w := serve(mux, authReq(http.MethodGet, "/api/v1/engins/missing/maintenances", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing engin: got %d, want 404", w.Code)
	}
}

// --- Filtres ---

func TestCreateFiltre_Validation(t *testing.T) {
	mux, _ := newTestMux(t)

	tests := []struct {
		name    string
		payload map[string]any
	}{
		{"missing reference", map[string]any{"brand": "Donaldson", "kind": "huile"}},
		{"missing brand", map[string]any{"reference": "P550520", "kind": "huile"}},
		{"missing kind", map[string]any{"reference": "P550520", "brand": "Donaldson"}},
		{"invalid kind", map[string]any{"reference": "P550520", "brand": "Donaldson", "kind": "essence"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodPost, "/api/v1/filtres", mustJSON(t, tt.payload)))
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestCreateFiltre_AllKinds(t *testing.T) {
	mux, _ := newTestMux(t)
	for kind := range models.ValidFiltreKinds {
		t.Run(kind, func(t *testing.T) {
			createFiltre(t, mux, "REF-"+kind, kind)
		})
	}
}

func TestFiltre_CRUD(t *testing.T) {
	mux, _ := newTestMux(t)
	f := createFiltre(t, mux, "P550520", "huile")
	createFiltre(t, mux, "AF25139", "air")

	if w := serve(mux, authReq(http.MethodPost, "/api/v1/filtres", mustJSON(t, map[string]any{"reference": "p550520", "brand": "X", "kind": "huile"}))); w.Code != http.StatusConflict {
		t.Errorf("duplicate reference: got %d, want 409", w.Code)
	}

	w := serve(mux, authReq(http.MethodGet, "/api/v1/filtres?kind=air", nil))
	var air []models.Filtre
	decodeBody(t, w, &air)
	if len(air) != 1 || air[0].Reference != "AF25139" {
		t.Errorf("kind filter: got %+v", air)
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/filtres?kind=bogus", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("invalid kind filter: got %d, want 400", w.Code)
	}

	update := mustJSON(t, map[string]any{"reference": "P550520", "brand": "Donaldson", "kind": "huile", "description": "moteur"})
	w = serve(mux, authReq(http.MethodPut, "/api/v1/filtres/"+f.ID, update))
	if w.Code != http.StatusOK {
		t.Fatalf("update: got %d\nbody: %s", w.Code, w.Body.String())
	}
	var got models.Filtre
	decodeBody(t, w, &got)
	if got.Description != "moteur" {
		t.Errorf("Description: got %q", got.Description)
	}

	if w := serve(mux, authReq(http.MethodDelete, "/api/v1/filtres/"+f.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", w.Code)
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/filtres/"+f.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("get after delete: got %d, want 404", w.Code)
	}
}

func TestCrossReferences_AndSearch(t *testing.T) {
	mux, _ := newTestMux(t)
	f := createFiltre(t, mux, "P550520", "huile")

	path := "/api/v1/filtres/" + f.ID + "/cross-references"
	w := serve(mux, authReq(http.MethodPost, path, []byte(`{"brand":"Fleetguard","reference":"LF3349"}`)))
	if w.Code != http.StatusCreated {
		t.Fatalf("create cross reference: got %d\nbody: %s", w.Code, w.Body.String())
	}
	var x models.CrossReference
	decodeBody(t, w, &x)
	if x.FiltreID != f.ID {
		t.Errorf("FiltreID: got %q, want %q", x.FiltreID, f.ID)
	}

	if w := serve(mux, authReq(http.MethodPost, path, []byte(`{"brand":"Fleetguard","reference":"LF3349"}`))); w.Code != http.StatusConflict {
		t.Errorf("duplicate: got %d, want 409", w.Code)
	}
	if w := serve(mux, authReq(http.MethodPost, path, []byte(`{"brand":"Fleetguard"}`))); w.Code != http.StatusBadRequest {
		t.Errorf("missing reference: got %d, want 400", w.Code)
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/filtres/missing/cross-references", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing filtre: got %d, want 404", w.Code)
	}

	w = serve(mux, authReq(http.MethodGet, path, nil))
	var refs []models.CrossReference
	decodeBody(t, w, &refs)
	if len(refs) != 1 {
		t.Errorf("expected 1 cross reference, got %d", len(refs))
	}

	for _, q := range []string{"P550520", "lf3349"} {
		t.Run(q, func(t *testing.T) {
			w := serve(mux, authReq(http.MethodGet, "/api/v1/filtres/search?reference="+q, nil))
			var found []models.Filtre
			decodeBody(t, w, &found)
			if len(found) != 1 || found[0].ID != f.ID {
				t.Errorf("search %q: got %+v", q, found)
			}
		})
	}
	if w := serve(mux, authReq(http.MethodGet, "/api/v1/filtres/search", nil)); w.Code != http.StatusBadRequest {
		t.Errorf("search without reference: got %d, want 400", w.Code)
	}

	if w := serve(mux, authReq(http.MethodDelete, "/api/v1/cross-references/"+x.ID, nil)); w.Code != http.StatusNoContent {
		t.Errorf("delete: got %d, want 204", w.Code)
	}
	if w := serve(mux, authReq(http.MethodDelete, "/api/v1/cross-references/"+x.ID, nil)); w.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want 404", w.Code)
	}
}

func TestEnginFiltres_LinkAndUnlink(t *testing.T) {
	mux, _ := newTestMux(t)
	e := createEngin(t, mux, "CH-01", 0)
	f := createFiltre(t, mux, "P550520", "huile")
	path := "/api/v1/engins/" + e.ID + "/filtres/" + f.ID

	// body is optional
	w := serve(mux, authReq(http.MethodPut, path, nil))
	if w.Code != http.StatusOK {
		t.Fatalf("link: got %d\nbody: %s", w.Code, w.Body.String())
	}
	var link models.EnginFiltre
	decodeBody(t, w, &link)
	if link.Quantity != 1 {
		t.Errorf("Quantity: got %d, want 1", link.Quantity)
	}

	if w := serve(mux, authReq(http.MethodPut, path, []byte(`{"quantity": 2}`))); w.Code != http.StatusOK {
		t.Errorf("relink: got %d", w.Code)
	}
	if w := serve(mux, authReq(http.MethodPut, path, []byte(`{"quantity": -1}`))); w.Code != http.StatusBadRequest {
		t.Errorf("negative quantity: got %d, want 400", w.Code)
	}
	if w := serve(mux, authReq(http.MethodPut, "/api/v1/engins/"+e.ID+"/filtres/missing", nil)); w.Code != http.StatusNotFound {
		t.Errorf("missing filtre: got %d, want 404", w.Code)
	}

	w = serve(mux, authReq(http.MethodGet, "/api/v1/engins/"+e.ID+"/filtres", nil))
	var links []models.EnginFiltre
	decodeBody(t, w, &links)
	if len(links) != 1 || links[0].Quantity != 2 {
		t.Fatalf("links: got %+v", links)
	}
	if links[0].Filtre == nil || links[0].Filtre.Reference != "P550520" {
		t.Errorf("filtre not embedded: %+v", links[0].Filtre)
	}

	if w := serve(mux, authReq(http.MethodDelete, path, nil)); w.Code != http.StatusNoContent {
		t.Errorf("unlink: got %d, want 204", w.Code)
	}
	if w := serve(mux, authReq(http.MethodDelete, path, nil)); w.Code != http.StatusNotFound {
		t.Errorf("second unlink: got %d, want 404", w.Code)
	}
}
