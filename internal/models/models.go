package models

import "time"

// Engin is a piece of heavy equipment whose preventive maintenance is tracked.
// Hours is the cumulative operating-hour reading and never decreases.
type Engin struct {
	ID        string    `json:"id"`
	Code      string    `json:"code"`
	Name      string    `json:"name"`
	Type      string    `json:"type"`
	Make      string    `json:"make"`
	Model     string    `json:"model"`
	Serial    string    `json:"serial"`
	Location  string    `json:"location"`
	Hours     float64   `json:"hours"`
	Notes     string    `json:"notes"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Gamme is one service tier of the maintenance rotation. Hours is the
// cumulative reading at which the tier falls due.
type Gamme struct {
	ID       string  `json:"id"`
	Position int     `json:"position"`
	Label    string  `json:"label"`
	Hours    float64 `json:"hours"`
}

// Maintenance is a completed maintenance performed on an engin.
type Maintenance struct {
	ID         string    `json:"id"`
	EnginID    string    `json:"engin_id"`
	GammeID    string    `json:"gamme_id"`
	Hours      float64   `json:"hours"`
	ExecutedAt time.Time `json:"executed_at"`
	FiltreIDs  []string  `json:"filtre_ids"`
	Notes      string    `json:"notes"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`

	// Seq is the storage insertion sequence, used to order maintenances
	// sharing the same execution date.
	Seq int64 `json:"-"`
}

// Filtre is a replaceable filter part.
type Filtre struct {
	ID          string    `json:"id"`
	Reference   string    `json:"reference"`
	Brand       string    `json:"brand"`
	Kind        string    `json:"kind"`
	Description string    `json:"description"`
	Notes       string    `json:"notes"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// CrossReference is an alternate manufacturer part number equivalent to a
// filtre's primary reference.
type CrossReference struct {
	ID        string    `json:"id"`
	FiltreID  string    `json:"filtre_id"`
	Brand     string    `json:"brand"`
	Reference string    `json:"reference"`
	CreatedAt time.Time `json:"created_at"`
}

// EnginFiltre records that a filtre fits an engin.
type EnginFiltre struct {
	EnginID  string  `json:"engin_id"`
	FiltreID string  `json:"filtre_id"`
	Quantity int     `json:"quantity"`
	Notes    string  `json:"notes"`
	Filtre   *Filtre `json:"filtre,omitempty"`
}

// ValidFiltreKinds is the set of allowed filtre kind values.
var ValidFiltreKinds = map[string]bool{
	"air":                     true,
	"huile":                   true,
	"carburant":               true,
	"hydraulique":             true,
	"habitacle":               true,
	"transmission":            true,
	"liquide_refroidissement": true,
}
