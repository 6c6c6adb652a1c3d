// Package export renders the maintenance plan as an Excel workbook.
package export

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"github.com/tphummel/engin_maint/internal/models"
	"github.com/tphummel/engin_maint/internal/schedule"
)

const (
	PlanSheet   = "Planning"
	GammesSheet = "Gammes"

	// ContentType is the MIME type of the generated workbook.
	ContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

var planHeader = []any{
	"code",
	"nom",
	"type",
	"heures",
	"derniere_gamme",
	"derniere_date",
	"derniere_heures",
	"prochaine_gamme",
	"position",
	"heures_restantes",
	"statut",
}

// WriteSchedule writes a workbook with one row per entry on the Planning
// sheet and the gamme catalog on the Gammes sheet.
func WriteSchedule(w io.Writer, entries []schedule.Entry, gammes []models.Gamme) error {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName(f.GetSheetName(f.GetActiveSheetIndex()), PlanSheet); err != nil {
		return fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(PlanSheet, "A1", &planHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	catalog := schedule.NewCatalog(gammes)
	for i, e := range entries {
		row := planRow(e, catalog)
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(PlanSheet, cell, &row); err != nil {
			return fmt.Errorf("write row %d: %w", i+2, err)
		}
	}
	if err := f.AutoFilter(PlanSheet, fmt.Sprintf("A1:K%d", len(entries)+1), nil); err != nil {
		return fmt.Errorf("autofilter: %w", err)
	}

	if _, err := f.NewSheet(GammesSheet); err != nil {
		return fmt.Errorf("add sheet: %w", err)
	}
	if err := f.SetSheetRow(GammesSheet, "A1", &[]any{"position", "gamme", "heures"}); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for i, g := range catalog.Gammes() {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := f.SetSheetRow(GammesSheet, cell, &[]any{g.Position, g.Label, g.Hours}); err != nil {
			return fmt.Errorf("write gamme %d: %w", g.Position, err)
		}
	}

	return f.Write(w)
}

func planRow(e schedule.Entry, catalog schedule.Catalog) []any {
	row := []any{e.Engin.Code, e.Engin.Name, e.Engin.Type, e.Engin.Hours, "", "", "", "", "", e.RemainingHours, string(e.Status)}
	if e.Last != nil {
		if g, ok := catalog.ByID(e.Last.GammeID); ok {
			row[4] = g.Label
		}
		row[5] = e.Last.ExecutedAt.Format("2006-01-02")
		row[6] = e.Last.Hours
	}
	if e.Next != nil {
		row[7] = e.Next.Label
		row[8] = e.Next.Position
	}
	return row
}
