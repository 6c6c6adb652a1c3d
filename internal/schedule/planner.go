package schedule

import (
	"fmt"

	"github.com/tphummel/engin_maint/internal/models"
)

// Source is the subset of the store the Planner reads from.
type Source interface {
	ListEngins(typ string) ([]*models.Engin, error)
	ListGammes() ([]models.Gamme, error)
	ListMaintenances(enginID string) ([]*models.Maintenance, error)
}

// Entry pairs an engin with its resolved schedule.
type Entry struct {
	Engin *models.Engin `json:"engin"`
	Result
}

// Planner fetches snapshots from a Source and resolves schedules with Policy.
type Planner struct {
	Source Source
	Policy Policy
}

// ForEngin resolves the schedule of a single engin.
func (p *Planner) ForEngin(e *models.Engin) (Entry, error) {
	gammes, err := p.Source.ListGammes()
	if err != nil {
		return Entry{}, fmt.Errorf("list gammes: %w", err)
	}
	history, err := p.Source.ListMaintenances(e.ID)
	if err != nil {
		return Entry{}, fmt.Errorf("list maintenances: %w", err)
	}
	return Entry{Engin: e, Result: Resolve(e.Hours, history, NewCatalog(gammes), p.Policy)}, nil
}

// All resolves the schedule of every engin, in the order the Source lists them.
func (p *Planner) All() ([]Entry, error) {
	engins, err := p.Source.ListEngins("")
	if err != nil {
		return nil, fmt.Errorf("list engins: %w", err)
	}
	gammes, err := p.Source.ListGammes()
	if err != nil {
		return nil, fmt.Errorf("list gammes: %w", err)
	}
	all, err := p.Source.ListMaintenances("")
	if err != nil {
		return nil, fmt.Errorf("list maintenances: %w", err)
	}

	byEngin := make(map[string][]*models.Maintenance)
	for _, m := range all {
		byEngin[m.EnginID] = append(byEngin[m.EnginID], m)
	}

	catalog := NewCatalog(gammes)
	entries := make([]Entry, 0, len(engins))
	for _, e := range engins {
		entries = append(entries, Entry{
			Engin:  e,
			Result: Resolve(e.Hours, byEngin[e.ID], catalog, p.Policy),
		})
	}
	return entries, nil
}

// CountByStatus returns the number of engins per schedule status.
func (p *Planner) CountByStatus() (map[Status]int, error) {
	entries, err := p.All()
	if err != nil {
		return nil, err
	}
	counts := make(map[Status]int, len(ValidStatuses))
	for _, e := range entries {
		counts[e.Status]++
	}
	return counts, nil
}
