/*
store.go - Persistence contract for alerts

PURPOSE:
  Defines the interface between the reconciler / lifecycle service and the
  database. Implementations: store/sqlite (production), store/memory (tests).

DEDUPE CONTRACT:
  CreateIfAbsent is the one place requiring true mutual exclusion in the
  whole engine: two overlapping sweeps must not create two alerts for the
  same (entity, alertType) key. Implementations back this with a partial
  unique index (SQLite) or an equivalent atomic check-and-insert (memory).
  The loser of a race receives ErrDuplicateAlert and treats the alert as
  already existing.

LIFECYCLE CONTRACT:
  Apply performs the read-transition-write for a single alert atomically
  with respect to other Apply and RefreshActive calls on the same row. The
  transition table itself lives in transition.go so every implementation
  shares one authority.

SEE ALSO:
  - transition.go: NextAlertStatus
  - alerts/reconciler.go: The only writer via CreateIfAbsent/RefreshActive
  - alerts/service.go: The only writer via Apply
*/
package engine

import (
	"context"
	"time"
)

// AlertFilter narrows List results. Nil fields match everything.
type AlertFilter struct {
	Status   *AlertStatus
	Severity *Severity
	Type     *AlertType
	Entity   *EntityRef
}

// AlertStore owns persisted alerts.
type AlertStore interface {
	// CreateIfAbsent inserts the alert unless an active or acknowledged
	// alert already exists for its (entity, type) key. Returns
	// ErrDuplicateAlert if the key is taken. The check and insert are
	// atomic with respect to concurrent sweeps.
	CreateIfAbsent(ctx context.Context, alert Alert) error

	// Get returns the alert or ErrNotFound.
	Get(ctx context.Context, id AlertID) (*Alert, error)

	// List returns alerts matching the filter, ordered by severity rank
	// then newest first.
	List(ctx context.Context, f AlertFilter) ([]Alert, error)

	// ListOpen returns all active and acknowledged alerts.
	ListOpen(ctx context.Context) ([]Alert, error)

	// RefreshActive updates title/message/dueDate of an alert only while
	// it is still active. Refreshing a non-active alert is a silent no-op:
	// a human acted on it between evaluation and write, and the human wins.
	RefreshActive(ctx context.Context, id AlertID, severity Severity, title, message string, dueDate *Date) error

	// Apply runs the lifecycle transition for event against the alert's
	// current status and persists the result with its audit fields.
	// Returns ErrNotFound or InvalidTransitionError.
	Apply(ctx context.Context, id AlertID, event AlertEvent, actor string, at time.Time) (*Alert, error)
}
