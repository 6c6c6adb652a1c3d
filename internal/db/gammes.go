package db

import (
	"database/sql"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/tphummel/engin_maint/internal/models"
)

// SyncGammes makes the stored catalog match gammes, matching rows by
// position. Existing gammes keep their ID so maintenances still reference
// them; positions absent from gammes are removed.
func (d *DB) SyncGammes(gammes []models.Gamme) error {
	return d.withTx(func(tx *sql.Tx) error {
		positions := make([]any, 0, len(gammes))
		for _, g := range gammes {
			if _, err := tx.Exec(`
				INSERT INTO gammes (id, position, label, hours)
				VALUES (?, ?, ?, ?)
				ON CONFLICT (position) DO UPDATE SET label = excluded.label, hours = excluded.hours`,
				uuid.New().String(), g.Position, g.Label, g.Hours,
			); err != nil {
				return fmt.Errorf("upsert gamme %d: %w", g.Position, err)
			}
			positions = append(positions, g.Position)
		}

		if len(positions) == 0 {
			_, err := tx.Exec(`DELETE FROM gammes`)
			return err
		}
		placeholders := strings.TrimSuffix(strings.Repeat("?,", len(positions)), ",")
		_, err := tx.Exec(`DELETE FROM gammes WHERE position NOT IN (`+placeholders+`)`, positions...)
		return err
	})
}

// ListGammes returns the catalog ordered by position.
func (d *DB) ListGammes() ([]models.Gamme, error) {
	rows, err := d.conn.Query(`SELECT id, position, label, hours FROM gammes ORDER BY position`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var gammes []models.Gamme
	for rows.Next() {
		var g models.Gamme
		if err := rows.Scan(&g.ID, &g.Position, &g.Label, &g.Hours); err != nil {
			return nil, err
		}
		gammes = append(gammes, g)
	}
	return gammes, rows.Err()
}

// GetGamme returns the gamme with the given ID, or sql.ErrNoRows if not found.
func (d *DB) GetGamme(id string) (*models.Gamme, error) {
	var g models.Gamme
	err := d.conn.QueryRow(`SELECT id, position, label, hours FROM gammes WHERE id = ?`, id).
		Scan(&g.ID, &g.Position, &g.Label, &g.Hours)
	if err != nil {
		return nil, err
	}
	return &g, nil
}
