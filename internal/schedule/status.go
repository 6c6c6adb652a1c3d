package schedule

// Status is the badge shown next to an engin's next maintenance.
type Status string

const (
	StatusDue         Status = "due"
	StatusApproaching Status = "approaching"
	StatusCurrent     Status = "current"
	StatusUnscheduled Status = "unscheduled"
)

// ApproachingHours is the remaining-hours threshold at or below which a
// maintenance is reported as approaching.
const ApproachingHours = 50

// Classify maps remaining hours to a Status.
func Classify(remaining float64) Status {
	switch {
	case remaining <= 0:
		return StatusDue
	case remaining <= ApproachingHours:
		return StatusApproaching
	default:
		return StatusCurrent
	}
}

// ValidStatuses is the set of Status values accepted as filters.
var ValidStatuses = map[Status]bool{
	StatusDue:         true,
	StatusApproaching: true,
	StatusCurrent:     true,
	StatusUnscheduled: true,
}
