package schedule

import (
	"math"

	"github.com/tphummel/engin_maint/internal/models"
)

// Result is the scheduling hint for one engin. Next is nil when nothing can
// be scheduled (empty catalog).
type Result struct {
	Next           *models.Gamme       `json:"next_gamme"`
	RemainingHours float64             `json:"remaining_hours"`
	Status         Status              `json:"status"`
	Last           *models.Maintenance `json:"last_maintenance,omitempty"`
}

// Latest returns the most recent maintenance: latest ExecutedAt, then highest
// Seq, then greatest ID. Nil entries are ignored.
func Latest(history []*models.Maintenance) *models.Maintenance {
	var last *models.Maintenance
	for _, m := range history {
		if m == nil {
			continue
		}
		if last == nil || newer(m, last) {
			last = m
		}
	}
	return last
}

func newer(a, b *models.Maintenance) bool {
	if !a.ExecutedAt.Equal(b.ExecutedAt) {
		return a.ExecutedAt.After(b.ExecutedAt)
	}
	if a.Seq != b.Seq {
		return a.Seq > b.Seq
	}
	return a.ID > b.ID
}

// Resolve determines the next gamme due for an engin reading hours and the
// operating hours left before it falls due. It never fails: an empty catalog
// yields no next gamme, maintenances referencing a gamme missing from the
// catalog are left out of the ranking, and remaining hours are clamped at 0.
func Resolve(hours float64, history []*models.Maintenance, c Catalog, p Policy) Result {
	first, ok := c.First()
	if !ok {
		return Result{Status: StatusUnscheduled}
	}
	hours = sanitize(hours)

	known := resolvable(history, c)
	last := Latest(known)
	if last == nil {
		next, span := firstDue(first, c, p)
		return result(next, span-hours, nil)
	}

	lastGamme, _ := c.ByID(last.GammeID)
	next, span := following(lastGamme, len(known), c, p)
	elapsed := math.Max(0, hours-sanitize(last.Hours))
	return result(next, span-elapsed, last)
}

func result(next models.Gamme, remaining float64, last *models.Maintenance) Result {
	remaining = math.Max(0, sanitize(remaining))
	return Result{
		Next:           &next,
		RemainingHours: remaining,
		Status:         Classify(remaining),
		Last:           last,
	}
}

// firstDue picks the gamme due on an engin with no usable history and the
// cumulative reading at which it falls due.
func firstDue(first models.Gamme, c Catalog, p Policy) (models.Gamme, float64) {
	switch {
	case p.Kind == CustomSequence && p.IntervalHours > 0 && len(p.Sequence) > 0:
		if g, ok := c.At(p.Sequence[0]); ok {
			return g, p.IntervalHours
		}
		return first, p.IntervalHours
	case p.Kind == FixedInterval && p.IntervalHours > 0:
		return first, p.IntervalHours
	default:
		return first, first.Hours
	}
}

// following picks the gamme after last and the interval separating them.
// done is the number of maintenances already logged.
func following(last models.Gamme, done int, c Catalog, p Policy) (models.Gamme, float64) {
	switch {
	case p.Kind == CustomSequence && p.IntervalHours > 0 && len(p.Sequence) > 0:
		pos := p.Sequence[done%len(p.Sequence)]
		if g, ok := c.At(pos); ok {
			return g, p.IntervalHours
		}
		g, _, _ := c.After(last.Position)
		return g, p.IntervalHours
	case p.Kind == FixedInterval && p.IntervalHours > 0:
		g, _, _ := c.After(last.Position)
		return g, p.IntervalHours
	default:
		g, wrapped, _ := c.After(last.Position)
		if wrapped {
			// A new cycle starts from zero: the first threshold is the span.
			return g, g.Hours
		}
		return g, g.Hours - last.Hours
	}
}

// resolvable keeps the maintenances whose gamme is in the catalog.
func resolvable(history []*models.Maintenance, c Catalog) []*models.Maintenance {
	var out []*models.Maintenance
	for _, m := range history {
		if m == nil {
			continue
		}
		if _, ok := c.ByID(m.GammeID); ok {
			out = append(out, m)
		}
	}
	return out
}

func sanitize(v float64) float64 {
	if math.IsNaN(v) || v < 0 {
		return 0
	}
	if math.IsInf(v, 1) {
		return math.MaxFloat64
	}
	return v
}
