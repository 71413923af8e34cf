package schedule

import (
	"context"

	"github.com/haven/compliance-engine/engine"
)

// Filter narrows List results. Nil/zero fields match everything.
type Filter struct {
	PropertyID *string
	Category   *Category
	Frequency  *engine.Frequency
	ActiveOnly bool
}

// Store owns persisted schedules. Implementations: store/sqlite (production),
// store/memory (tests).
type Store interface {
	// Insert persists a new schedule.
	Insert(ctx context.Context, s Schedule) error

	// Get returns the schedule or ErrNotFound.
	Get(ctx context.Context, id string) (*Schedule, error)

	// Update replaces the stored schedule. Returns ErrNotFound if missing.
	Update(ctx context.Context, s Schedule) error

	// List returns schedules matching the filter, ordered by next due date.
	List(ctx context.Context, f Filter) ([]Schedule, error)
}
