package db

import (
	"database/sql"
	"errors"
	"time"

	"github.com/tphummel/engin_maint/internal/models"
)

const enginColumns = `id, code, name, type, make, model, serial, location, hours, notes, created_at, updated_at`

// CreateEngin inserts a new engin record.
func (d *DB) CreateEngin(e *models.Engin) error {
	_, err := d.conn.Exec(`
		INSERT INTO engins (`+enginColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Code, e.Name, e.Type, e.Make, e.Model, e.Serial, e.Location,
		e.Hours, e.Notes,
		formatTime(e.CreatedAt),
		formatTime(e.UpdatedAt),
	)
	return mapErr(err)
}

// GetEngin returns the engin with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetEngin(id string) (*models.Engin, error) {
	row := d.conn.QueryRow(`SELECT `+enginColumns+` FROM engins WHERE id = ?`, id)
	return scanEngin(row)
}

// ListEngins returns all engins ordered by code, optionally filtered by type.
func (d *DB) ListEngins(typ string) ([]*models.Engin, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if typ != "" {
		rows, err = d.conn.Query(`SELECT `+enginColumns+` FROM engins WHERE type = ? ORDER BY code`, typ)
	} else {
		rows, err = d.conn.Query(`SELECT ` + enginColumns + ` FROM engins ORDER BY code`)
	}
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var engins []*models.Engin
	for rows.Next() {
		e, err := scanEngin(rows)
		if err != nil {
			return nil, err
		}
		engins = append(engins, e)
	}
	return engins, rows.Err()
}

// UpdateEngin replaces all mutable fields for the engin with e.ID.
// Returns sql.ErrNoRows if no such engin exists and ErrHoursDecrease if the
// stored hour reading is higher than e.Hours.
func (d *DB) UpdateEngin(e *models.Engin) error {
	res, err := d.conn.Exec(`
		UPDATE engins
		SET code=?, name=?, type=?, make=?, model=?, serial=?, location=?, hours=?, notes=?, updated_at=?
		WHERE id=? AND hours <= ?`,
		e.Code, e.Name, e.Type, e.Make, e.Model, e.Serial, e.Location,
		e.Hours, e.Notes,
		formatTime(e.UpdatedAt),
		e.ID, e.Hours,
	)
	if err != nil {
		return mapErr(err)
	}
	if err := affectedOne(res); !errors.Is(err, sql.ErrNoRows) {
		return err
	}
	var exists bool
	if err := d.conn.QueryRow(`SELECT EXISTS(SELECT 1 FROM engins WHERE id = ?)`, e.ID).Scan(&exists); err != nil {
		return err
	}
	if exists {
		return ErrHoursDecrease
	}
	return sql.ErrNoRows
}

// RaiseEnginHours sets the engin's hour reading to hours unless the stored
// reading is already higher. Returns sql.ErrNoRows if no such engin exists.
func (d *DB) RaiseEnginHours(id string, hours float64, at time.Time) error {
	return raiseEnginHours(d.conn, id, hours, at)
}

type execer interface {
	Exec(query string, args ...any) (sql.Result, error)
}

func raiseEnginHours(x execer, id string, hours float64, at time.Time) error {
	res, err := x.Exec(`
		UPDATE engins
		SET hours = MAX(hours, ?), updated_at = ?
		WHERE id = ?`,
		hours, formatTime(at), id,
	)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// DeleteEngin removes the engin with the given ID along with its maintenances
// and filtre compatibility links.
// Returns sql.ErrNoRows if no such engin exists.
func (d *DB) DeleteEngin(id string) error {
	return d.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM engins WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		if _, err := tx.Exec(`
			DELETE FROM maintenance_filtres
			WHERE maintenance_id IN (SELECT id FROM maintenances WHERE engin_id = ?)`, id); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM maintenances WHERE engin_id = ?`, id); err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM engin_filtres WHERE engin_id = ?`, id)
		return err
	})
}

// CountEnginsByType returns the number of engins per type.
func (d *DB) CountEnginsByType() (map[string]int, error) {
	rows, err := d.conn.Query(`SELECT type, COUNT(*) FROM engins GROUP BY type`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var typ string
		var n int
		if err := rows.Scan(&typ, &n); err != nil {
			return nil, err
		}
		counts[typ] = n
	}
	return counts, rows.Err()
}

func scanEngin(s scanner) (*models.Engin, error) {
	var e models.Engin
	var createdAt, updatedAt string
	if err := s.Scan(
		&e.ID, &e.Code, &e.Name, &e.Type, &e.Make, &e.Model,
		&e.Serial, &e.Location, &e.Hours, &e.Notes,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if e.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if e.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &e, nil
}
