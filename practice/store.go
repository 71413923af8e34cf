package practice

import "context"

// Filter narrows List results. Nil fields match everything.
type Filter struct {
	ParticipantID *string
	PropertyID    *string
	Status        *Status
}

// Store owns persisted practices and their incident logs.
type Store interface {
	// Insert persists a new practice.
	Insert(ctx context.Context, p Practice) error

	// Get returns the practice or ErrNotFound.
	Get(ctx context.Context, id string) (*Practice, error)

	// Update replaces the stored practice. Returns ErrNotFound if missing.
	Update(ctx context.Context, p Practice) error

	// List returns practices matching the filter.
	List(ctx context.Context, f Filter) ([]Practice, error)

	// InsertIncident appends an incident record.
	InsertIncident(ctx context.Context, inc Incident) error

	// ListIncidents returns incidents for a practice, newest first.
	ListIncidents(ctx context.Context, practiceID string) ([]Incident, error)
}
