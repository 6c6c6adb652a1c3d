package schedule

import "fmt"

// PolicyKind selects the rotation rule used by Resolve.
type PolicyKind string

const (
	// SequentialByCatalog steps through catalog positions in order and uses
	// the difference between consecutive gamme thresholds as the interval.
	SequentialByCatalog PolicyKind = "sequential"
	// FixedInterval steps through catalog positions in order with a flat
	// interval between any two maintenances.
	FixedInterval PolicyKind = "fixed_interval"
	// CustomSequence walks an explicit list of positions, one per logged
	// maintenance, with a flat interval.
	CustomSequence PolicyKind = "custom_sequence"
)

// Policy is the rotation rule. IntervalHours is read by FixedInterval and
// CustomSequence; Sequence only by CustomSequence.
type Policy struct {
	Kind          PolicyKind `json:"kind"`
	IntervalHours float64    `json:"interval_hours,omitempty"`
	Sequence      []int      `json:"sequence,omitempty"`
}

// DefaultPolicy is the data-driven catalog rotation.
func DefaultPolicy() Policy {
	return Policy{Kind: SequentialByCatalog}
}

// LegacyPolicy reproduces the hard-coded C,D,C,E,C,D,C,F rotation at a flat
// 250 hours that older dashboards used.
func LegacyPolicy() Policy {
	return Policy{
		Kind:          CustomSequence,
		IntervalHours: 250,
		Sequence:      []int{1, 2, 1, 4, 1, 2, 1, 8},
	}
}

// Validate checks the policy against a catalog. Resolve tolerates invalid
// policies; Validate is for configuration loading.
func (p Policy) Validate(c Catalog) error {
	switch p.Kind {
	case SequentialByCatalog, "":
		return nil
	case FixedInterval:
		if p.IntervalHours <= 0 {
			return fmt.Errorf("policy %s: interval_hours must be positive", p.Kind)
		}
		return nil
	case CustomSequence:
		if p.IntervalHours <= 0 {
			return fmt.Errorf("policy %s: interval_hours must be positive", p.Kind)
		}
		if len(p.Sequence) == 0 {
			return fmt.Errorf("policy %s: sequence must not be empty", p.Kind)
		}
		for _, pos := range p.Sequence {
			if _, ok := c.At(pos); !ok {
				return fmt.Errorf("policy %s: position %d not in catalog", p.Kind, pos)
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown rotation policy %q", p.Kind)
	}
}
