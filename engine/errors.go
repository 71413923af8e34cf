/*
errors.go - Centralized error types for the alert engine

PURPOSE:
  All error categories in one place for consistency and discoverability.
  Domain packages (schedule, practice, alerts) wrap these with context.

ERROR CATEGORIES:
  1. Boundary errors     - Bad enum values, malformed dates, interval < 1
  2. Lookup errors       - Operating on a missing schedule/alert/practice
  3. State errors        - Completing an inactive schedule, terminal alerts
  4. Concurrency errors  - Two sweeps racing on the same alert key

USAGE:
  if errors.Is(err, engine.ErrNotFound) {
      // 404
  }

SEE ALSO:
  - transition.go: InvalidTransitionError
  - store.go: ErrDuplicateAlert contract for CreateIfAbsent
*/
package engine

import (
	"errors"
	"fmt"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrInvalidArgument is returned for bad input at the boundary:
	// unknown frequency units, intervals below 1, malformed dates,
	// missing actor identity on acknowledge/resolve.
	ErrInvalidArgument = errors.New("invalid argument")

	// ErrNotFound is returned when a schedule, alert, or restrictive
	// practice id does not exist.
	ErrNotFound = errors.New("not found")

	// ErrInvalidState is returned when an operation is not valid for the
	// record's current state (e.g. completing a deactivated schedule).
	ErrInvalidState = errors.New("invalid state")

	// ErrInvalidTransition is returned when a lifecycle transition is not
	// permitted from the current status.
	ErrInvalidTransition = errors.New("invalid transition")

	// ErrDuplicateAlert is returned by CreateIfAbsent when an active or
	// acknowledged alert already holds the (entity, type) key. Losing a
	// race to a concurrent sweep surfaces as this error; callers treat it
	// as "already exists", never as a failure.
	ErrDuplicateAlert = errors.New("alert already exists for entity and type")
)

// =============================================================================
// STRUCTURED ERRORS - Carry additional context
// =============================================================================

// InvalidTransitionError reports a rejected alert lifecycle transition.
type InvalidTransitionError struct {
	From  AlertStatus
	Event AlertEvent
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("cannot %s alert in status %q", e.Event, e.From)
}

func (e *InvalidTransitionError) Unwrap() error { return ErrInvalidTransition }

// NotFoundError identifies which record was missing.
type NotFoundError struct {
	Kind string // "schedule", "alert", "restrictive practice"
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

func (e *NotFoundError) Unwrap() error { return ErrNotFound }

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsClientError returns true if the error is due to invalid caller input.
func IsClientError(err error) bool {
	return errors.Is(err, ErrInvalidArgument) ||
		errors.Is(err, ErrInvalidState) ||
		errors.Is(err, ErrInvalidTransition)
}
