package db

import (
	"database/sql"

	"github.com/tphummel/engin_maint/internal/models"
)

const maintenanceColumns = `seq, id, engin_id, gamme_id, hours, executed_at, notes, created_at, updated_at`

// CreateMaintenance inserts a maintenance with its replaced filtres and raises
// the engin's hour reading to m.Hours if it was lower. m.Seq is set from the
// storage insertion sequence.
func (d *DB) CreateMaintenance(m *models.Maintenance) error {
	return d.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			INSERT INTO maintenances (id, engin_id, gamme_id, hours, executed_at, notes, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
			m.ID, m.EnginID, m.GammeID, m.Hours,
			formatTime(m.ExecutedAt), m.Notes,
			formatTime(m.CreatedAt),
			formatTime(m.UpdatedAt),
		)
		if err != nil {
			return mapErr(err)
		}
		seq, err := res.LastInsertId()
		if err != nil {
			return err
		}
		if err := insertMaintenanceFiltres(tx, m.ID, m.FiltreIDs); err != nil {
			return err
		}
		if err := raiseEnginHours(tx, m.EnginID, m.Hours, m.UpdatedAt); err != nil {
			return err
		}
		m.Seq = seq
		return nil
	})
}

// GetMaintenance returns the maintenance with the given ID, or sql.ErrNoRows
// if not found.
func (d *DB) GetMaintenance(id string) (*models.Maintenance, error) {
	row := d.conn.QueryRow(`SELECT `+maintenanceColumns+` FROM maintenances WHERE id = ?`, id)
	m, err := scanMaintenance(row)
	if err != nil {
		return nil, err
	}
	if err := d.attachFiltres([]*models.Maintenance{m}); err != nil {
		return nil, err
	}
	return m, nil
}

// ListMaintenances returns maintenances newest first: by execution date, then
// by insertion sequence. An empty enginID lists every engin's maintenances.
func (d *DB) ListMaintenances(enginID string) ([]*models.Maintenance, error) {
	var (
		rows *sql.Rows
		err  error
	)
	if enginID != "" {
		rows, err = d.conn.Query(`
			SELECT `+maintenanceColumns+` FROM maintenances
			WHERE engin_id = ?
			ORDER BY executed_at DESC, seq DESC`, enginID)
	} else {
		rows, err = d.conn.Query(`
			SELECT ` + maintenanceColumns + ` FROM maintenances
			ORDER BY executed_at DESC, seq DESC`)
	}
	if err != nil {
		return nil, err
	}

	var list []*models.Maintenance
	for rows.Next() {
		m, err := scanMaintenance(rows)
		if err != nil {
			rows.Close()
			return nil, err
		}
		list = append(list, m)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	if err := d.attachFiltres(list); err != nil {
		return nil, err
	}
	return list, nil
}

// UpdateMaintenance replaces the mutable fields and replaced filtres of the
// maintenance with m.ID and raises the engin's hour reading if needed.
// Returns sql.ErrNoRows if no such maintenance exists.
func (d *DB) UpdateMaintenance(m *models.Maintenance) error {
	return d.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`
			UPDATE maintenances
			SET engin_id=?, gamme_id=?, hours=?, executed_at=?, notes=?, updated_at=?
			WHERE id=?`,
			m.EnginID, m.GammeID, m.Hours,
			formatTime(m.ExecutedAt), m.Notes,
			formatTime(m.UpdatedAt),
			m.ID,
		)
		if err != nil {
			return err
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM maintenance_filtres WHERE maintenance_id = ?`, m.ID); err != nil {
			return err
		}
		if err := insertMaintenanceFiltres(tx, m.ID, m.FiltreIDs); err != nil {
			return err
		}
		return raiseEnginHours(tx, m.EnginID, m.Hours, m.UpdatedAt)
	})
}

// DeleteMaintenance removes a maintenance and its replaced-filtre list. The
// engin's hour reading is left untouched.
// Returns sql.ErrNoRows if no such maintenance exists.
func (d *DB) DeleteMaintenance(id string) error {
	return d.withTx(func(tx *sql.Tx) error {
		res, err := tx.Exec(`DELETE FROM maintenances WHERE id = ?`, id)
		if err != nil {
			return err
		}
		if err := affectedOne(res); err != nil {
			return err
		}
		_, err = tx.Exec(`DELETE FROM maintenance_filtres WHERE maintenance_id = ?`, id)
		return err
	})
}

func insertMaintenanceFiltres(tx *sql.Tx, maintenanceID string, filtreIDs []string) error {
	for _, fid := range filtreIDs {
		if _, err := tx.Exec(`
			INSERT INTO maintenance_filtres (maintenance_id, filtre_id) VALUES (?, ?)
			ON CONFLICT DO NOTHING`, maintenanceID, fid); err != nil {
			return err
		}
	}
	return nil
}

// attachFiltres fills FiltreIDs on each maintenance. It must not run while
// another result set is open: in-memory databases have a single connection.
func (d *DB) attachFiltres(list []*models.Maintenance) error {
	if len(list) == 0 {
		return nil
	}
	byID := make(map[string]*models.Maintenance, len(list))
	for _, m := range list {
		m.FiltreIDs = []string{}
		byID[m.ID] = m
	}

	var (
		rows *sql.Rows
		err  error
	)
	if len(list) == 1 {
		rows, err = d.conn.Query(`
			SELECT maintenance_id, filtre_id FROM maintenance_filtres
			WHERE maintenance_id = ? ORDER BY filtre_id`, list[0].ID)
	} else {
		rows, err = d.conn.Query(`
			SELECT maintenance_id, filtre_id FROM maintenance_filtres
			ORDER BY maintenance_id, filtre_id`)
	}
	if err != nil {
		return err
	}
	defer rows.Close()

	for rows.Next() {
		var mid, fid string
		if err := rows.Scan(&mid, &fid); err != nil {
			return err
		}
		if m, ok := byID[mid]; ok {
			m.FiltreIDs = append(m.FiltreIDs, fid)
		}
	}
	return rows.Err()
}

func scanMaintenance(s scanner) (*models.Maintenance, error) {
	var m models.Maintenance
	var executedAt, createdAt, updatedAt string
	if err := s.Scan(
		&m.Seq, &m.ID, &m.EnginID, &m.GammeID, &m.Hours,
		&executedAt, &m.Notes,
		&createdAt, &updatedAt,
	); err != nil {
		return nil, err
	}
	var err error
	if m.ExecutedAt, err = parseTime("executed_at", executedAt); err != nil {
		return nil, err
	}
	if m.CreatedAt, err = parseTime("created_at", createdAt); err != nil {
		return nil, err
	}
	if m.UpdatedAt, err = parseTime("updated_at", updatedAt); err != nil {
		return nil, err
	}
	return &m, nil
}
