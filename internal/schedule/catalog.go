// Package schedule computes which maintenance gamme an engin needs next and
// how many operating hours remain before it falls due.
//
// Everything except Planner is pure: functions read the snapshots they are
// given and never mutate them, so they are safe for concurrent use.
package schedule

import (
	"sort"

	"github.com/tphummel/engin_maint/internal/models"
)

// Catalog is an immutable, position-ordered view of the gamme rotation.
type Catalog struct {
	ordered []models.Gamme
	byID    map[string]int
	byPos   map[int]int
}

// NewCatalog builds a Catalog from gammes in any order. When two gammes share
// a position the first one wins.
func NewCatalog(gammes []models.Gamme) Catalog {
	ordered := make([]models.Gamme, len(gammes))
	copy(ordered, gammes)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Position < ordered[j].Position
	})

	c := Catalog{
		byID:  make(map[string]int, len(ordered)),
		byPos: make(map[int]int, len(ordered)),
	}
	for _, g := range ordered {
		if _, dup := c.byPos[g.Position]; dup {
			continue
		}
		c.ordered = append(c.ordered, g)
		idx := len(c.ordered) - 1
		c.byPos[g.Position] = idx
		if g.ID != "" {
			c.byID[g.ID] = idx
		}
	}
	return c
}

// Len returns the number of gammes in the catalog.
func (c Catalog) Len() int { return len(c.ordered) }

// Gammes returns a copy of the catalog in position order.
func (c Catalog) Gammes() []models.Gamme {
	out := make([]models.Gamme, len(c.ordered))
	copy(out, c.ordered)
	return out
}

// First returns the lowest-position gamme.
func (c Catalog) First() (models.Gamme, bool) {
	if len(c.ordered) == 0 {
		return models.Gamme{}, false
	}
	return c.ordered[0], true
}

// ByID looks a gamme up by its identifier.
func (c Catalog) ByID(id string) (models.Gamme, bool) {
	idx, ok := c.byID[id]
	if !ok {
		return models.Gamme{}, false
	}
	return c.ordered[idx], true
}

// At looks a gamme up by its rotation position.
func (c Catalog) At(position int) (models.Gamme, bool) {
	idx, ok := c.byPos[position]
	if !ok {
		return models.Gamme{}, false
	}
	return c.ordered[idx], true
}

// After returns the gamme following position in the rotation, wrapping to the
// first gamme after the last one. wrapped reports whether the rotation
// restarted.
func (c Catalog) After(position int) (next models.Gamme, wrapped bool, ok bool) {
	if len(c.ordered) == 0 {
		return models.Gamme{}, false, false
	}
	i := sort.Search(len(c.ordered), func(i int) bool {
		return c.ordered[i].Position > position
	})
	if i == len(c.ordered) {
		return c.ordered[0], true, true
	}
	return c.ordered[i], false, true
}
