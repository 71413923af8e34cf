// Package schedule implements preventative maintenance schedules: recurring
// tasks against a property (optionally a specific dwelling) that advance to
// their next due date each time they are completed.
package schedule

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/engine"
)

// =============================================================================
// SCHEDULE - Recurring maintenance task
// =============================================================================

type Category string

const (
	CategoryPlumbing   Category = "plumbing"
	CategoryElectrical Category = "electrical"
	CategoryAppliances Category = "appliances"
	CategoryBuilding   Category = "building"
	CategoryGrounds    Category = "grounds"
	CategorySafety     Category = "safety"
	CategoryGeneral    Category = "general"
)

func (c Category) Valid() bool {
	switch c {
	case CategoryPlumbing, CategoryElectrical, CategoryAppliances,
		CategoryBuilding, CategoryGrounds, CategorySafety, CategoryGeneral:
		return true
	}
	return false
}

// Categories lists every category, in stats display order.
var Categories = []Category{
	CategoryPlumbing, CategoryElectrical, CategoryAppliances,
	CategoryBuilding, CategoryGrounds, CategorySafety, CategoryGeneral,
}

type Schedule struct {
	ID         string
	PropertyID string
	DwellingID string // optional; empty means property-wide

	TaskName    string
	Description string
	Category    Category

	Frequency engine.Frequency
	Interval  int

	// NextDue is always set while IsActive. It is re-anchored to the
	// completion date on every completion, never advanced from the prior
	// due date: a long-overdue task catches up to one cycle from the day
	// it was actually done.
	NextDue       engine.Date
	LastCompleted *engine.Date
	IsActive      bool

	EstimatedCost  *decimal.Decimal
	ActualCost     *decimal.Decimal
	ContractorName string
	Notes          string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// =============================================================================
// MAINTENANCE HISTORY - Side effect of completion
// =============================================================================

// HistoryRecord is the completed-maintenance fact handed to the external
// maintenance records collaborator when a schedule completion asks for it.
// Emitted at most once per completion call.
type HistoryRecord struct {
	ScheduleID    string
	PropertyID    string
	DwellingID    string
	TaskName      string
	Description   string
	Category      Category
	CompletedDate engine.Date
	ContractorName string
	ActualCost    *decimal.Decimal
	Notes         string
}

// HistorySink receives completion records. Implemented by the surrounding
// product's maintenance module; a no-op implementation is fine for tests.
type HistorySink interface {
	RecordCompletion(ctx context.Context, rec HistoryRecord) error
}

// =============================================================================
// STATS
// =============================================================================

type Stats struct {
	Total     int
	Active    int
	Inactive  int
	Overdue   int
	DueWithin int // due within the window passed to Service.Stats

	ByCategory  map[Category]int
	ByFrequency map[engine.Frequency]int
}
