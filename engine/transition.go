package engine

// =============================================================================
// ALERT LIFECYCLE - Explicit transition table
// =============================================================================

// AlertEvent is a human (or downstream) action on an alert.
type AlertEvent string

const (
	EventAcknowledge AlertEvent = "acknowledge"
	EventResolve     AlertEvent = "resolve"
	EventDismiss     AlertEvent = "dismiss"
)

// NextAlertStatus applies the alert lifecycle state machine:
//
//	active       -> acknowledged | resolved | dismissed
//	acknowledged -> resolved
//	resolved     terminal
//	dismissed    terminal
//
// Dismissal is deliberately only reachable from active: once someone has
// acknowledged an alert it must be resolved, not quietly dismissed.
// Any event against a terminal status returns InvalidTransitionError.
func NextAlertStatus(current AlertStatus, event AlertEvent) (AlertStatus, error) {
	switch current {
	case StatusActive:
		switch event {
		case EventAcknowledge:
			return StatusAcknowledged, nil
		case EventResolve:
			return StatusResolved, nil
		case EventDismiss:
			return StatusDismissed, nil
		}
	case StatusAcknowledged:
		if event == EventResolve {
			return StatusResolved, nil
		}
	}
	return current, &InvalidTransitionError{From: current, Event: event}
}
