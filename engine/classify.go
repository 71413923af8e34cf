package engine

// =============================================================================
// STATUS CLASSIFIER - on-track / due-soon / overdue
// =============================================================================

type DueStatus string

const (
	DueOnTrack DueStatus = "on_track"
	DueSoon    DueStatus = "due_soon"
	DueOverdue DueStatus = "overdue"
)

// Classification is the result of classifying a due date against today.
// DaysDelta is dueDate - today in whole days: negative means overdue.
type Classification struct {
	Status    DueStatus
	DaysDelta int
}

// Classify derives a due status from today and a due/expiry date.
// dueSoonWindowDays is domain-supplied (7 for maintenance, 90/60/30 for
// document thresholds, 0 for "overdue only").
//
// Boundaries: a due date equal to today is due-soon, never overdue;
// yesterday is overdue.
func Classify(today, dueDate Date, dueSoonWindowDays int) Classification {
	delta := DaysBetween(today, dueDate)
	switch {
	case delta < 0:
		return Classification{Status: DueOverdue, DaysDelta: delta}
	case delta <= dueSoonWindowDays:
		return Classification{Status: DueSoon, DaysDelta: delta}
	default:
		return Classification{Status: DueOnTrack, DaysDelta: delta}
	}
}
