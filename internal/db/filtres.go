package db

import (
	"database/sql"

	"github.com/tphummel/engin_maint/internal/models"
)

const filtreColumns = `id, reference, brand, kind, description, notes, created_at, updated_at`

// CreateFiltre inserts a new filtre record.
func (d *DB) CreateFiltre(f *models.Filtre) error {
	_, err := d.conn.Exec(`
		INSERT INTO filtres (`+filtreColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.Reference, f.Brand, f.Kind, f.Description, f.Notes,
		formatTime(f.CreatedAt),
		formatTime(f.UpdatedAt),
	)
	return mapErr(err)
}

// GetFiltre returns the filtre with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetFiltre(id string) (*models.Filtre, error) {
	row := d.conn.QueryRow(`SELECT `+filtreColumns+` FROM filtres WHERE id = ?`, id)
	return scanFiltre(row)
}

// ListFiltres returns all filtres ordered by reference, optionally filtered by kind.
func (d *DB) ListFiltres(kind string) ([]*models.Filtre, error) {
	if kind != "" {
		return d.queryFiltres(`SELECT `+filtreColumns+` FROM filtres WHERE kind = ? ORDER BY reference`, kind)
	}
	return d.queryFiltres(`SELECT ` + filtreColumns + ` FROM filtres ORDER BY reference`)
}

// SearchFiltres returns the filtres whose own reference or any cross
// reference equals ref, ignoring case.
func (d *DB) SearchFiltres(ref string) ([]*models.Filtre, error) {
	return d.queryFiltres(`
		SELECT `+filtreColumns+` FROM filtres
		WHERE reference = ? COLLATE NOCASE
		   OR id IN (SELECT filtre_id FROM cross_references WHERE reference = ? COLLATE NOCASE)
		ORDER BY reference`, ref, ref)
}

func (d *DB) queryFiltres(query string, args ...any) ([]*models.Filtre, error) {
	rows, err := d.conn.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var filtres []*models.Filtre
	for rows.Next() {
		f, err := scanFiltre(rows)
		if err != nil {
			return nil, err
		}
		filtres = append(filtres, f)
	}
	return filtres, rows.Err()
}

// UpdateFiltre replaces all mutable fields for the filtre with f.ID.
// Returns sql.ErrNoRows if no such filtre exists.
func (d *DB) UpdateFiltre(f *models.Filtre) error {
	res, err := d.conn.Exec(`
		UPDATE filtres
		SET reference=?, brand=?, kind=?, description=?, notes=?, updated_at=?
		WHERE id=?`,
		f.Reference, f.Brand, f.Kind, f.Description, f.Notes,
		formatTime(f.UpdatedAt),
		f.ID,
	)
	if err != nil {
		return mapErr(err)
	}
	return affectedOne(res)
}

// DeleteFiltre removes the filtre with the given ID, its cross references,
// its compatibility links and its entries in maintenance part lists.
// Returns sql.ErrNoRows if no such filtre exists.
func (d *DB) DeleteFiltre(id string) error {
	return d.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM filtres WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		for _, q := range []string{
			`DELETE FROM cross_references WHERE filtre_id = ?`,
			`DELETE FROM engin_filtres WHERE filtre_id = ?`,
			`DELETE FROM maintenance_filtres WHERE filtre_id = ?`,
		} {
			if _, err := tx.Exec(q, id); err != nil {
				return err
			}
		}
		return nil
	})
}

func scanFiltre(s scanner) (*models.Filtre, error) {
	var f models.Filtre
	var createdAt, updatedAt string
	if err := s.Scan(
		&f.ID, &f.Reference, &f.Brand, &f.Kind, &f.Description, &f.Notes,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if f.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if f.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

// CreateCrossReference inserts an alternate reference for a filtre.
func (d *DB) CreateCrossReference(x *models.CrossReference) error {
	_, err := d.conn.Exec(`
		INSERT INTO cross_references (id, filtre_id, brand, reference, created_at)
		VALUES (?, ?, ?, ?, ?)`,
		x.ID, x.FiltreID, x.Brand, x.Reference, formatTime(x.CreatedAt),
	)
	return mapErr(err)
}

// ListCrossReferences returns the alternates of a filtre ordered by brand
// then reference.
func (d *DB) ListCrossReferences(filtreID string) ([]*models.CrossReference, error) {
	rows, err := d.conn.Query(`
		SELECT id, filtre_id, brand, reference, created_at
		FROM cross_references WHERE filtre_id = ?
		ORDER BY brand, reference`, filtreID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var refs []*models.CrossReference
	for rows.Next() {
		var x models.CrossReference
		var createdAt string
		if err := rows.Scan(&x.ID, &x.FiltreID, &x.Brand, &x.Reference, &createdAt); err != nil {
			return nil, err
		}
		if x.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		refs = append(refs, &x)
	}
	return refs, rows.Err()
}

// DeleteCrossReference removes a cross reference.
// Returns sql.ErrNoRows if no such cross reference exists.
func (d *DB) DeleteCrossReference(id string) error {
	res, err := d.conn.Exec(`DELETE FROM cross_references WHERE id = ?`, id)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// LinkFiltre records that a filtre fits an engin, replacing any existing link.
func (d *DB) LinkFiltre(ef *models.EnginFiltre) error {
	_, err := d.conn.Exec(`
		INSERT INTO engin_filtres (engin_id, filtre_id, quantity, notes)
		VALUES (?, ?, ?, ?)
		ON CONFLICT (engin_id, filtre_id) DO UPDATE SET quantity = excluded.quantity, notes = excluded.notes`,
		ef.EnginID, ef.FiltreID, ef.Quantity, ef.Notes,
	)
	return err
}

// UnlinkFiltre removes a compatibility link.
// Returns sql.ErrNoRows if the link does not exist.
func (d *DB) UnlinkFiltre(enginID, filtreID string) error {
	res, err := d.conn.Exec(`DELETE FROM engin_filtres WHERE engin_id = ? AND filtre_id = ?`, enginID, filtreID)
	if err != nil {
		return err
	}
	return affectedOne(res)
}

// ListEnginFiltres returns the filtres compatible with an engin, ordered by
// filtre reference.
func (d *DB) ListEnginFiltres(enginID string) ([]*models.EnginFiltre, error) {
	rows, err := d.conn.Query(`
		SELECT ef.engin_id, ef.quantity, ef.notes,
		       f.id, f.reference, f.brand, f.kind, f.description, f.notes, f.created_at, f.updated_at
		FROM engin_filtres ef
		JOIN filtres f ON f.id = ef.filtre_id
		WHERE ef.engin_id = ?
		ORDER BY f.reference`, enginID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var links []*models.EnginFiltre
	for rows.Next() {
		var ef models.EnginFiltre
		var f models.Filtre
		var createdAt, updatedAt string
		if err := rows.Scan(
			&ef.EnginID, &ef.Quantity, &ef.Notes,
			&f.ID, &f.Reference, &f.Brand, &f.Kind, &f.Description, &f.Notes,
			&createdAt, &updatedAt,
		); err != nil {
			return nil, err
		}
		if f.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
			return nil, err
		}
		if f.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
			return nil, err
		}
		ef.FiltreID = f.ID
		ef.Filtre = &f
		links = append(links, &ef)
	}
	return links, rows.Err()
}
