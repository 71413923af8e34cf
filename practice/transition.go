package practice

import "github.com/haven/compliance-engine/engine"

// =============================================================================
// STATUS STATE MACHINE
// =============================================================================

// Status is the practice lifecycle state. Expired and ceased are terminal;
// active and under_review flip between each other.
type Status string

const (
	StatusActive      Status = "active"
	StatusUnderReview Status = "under_review"
	StatusExpired     Status = "expired"
	StatusCeased      Status = "ceased"
)

func (s Status) IsTerminal() bool { return s == StatusExpired || s == StatusCeased }

// Event is a status-changing action on a practice.
type Event string

const (
	EventStartReview    Event = "start_review"
	EventCompleteReview Event = "complete_review"
	EventExpire         Event = "expire"
	EventCease          Event = "cease"
)

// Transition is the single authority for practice status changes. Every
// status mutation in the package routes through it.
//
//	active       -> under_review | expired | ceased
//	under_review -> active | expired | ceased
//	expired      terminal
//	ceased       terminal
func Transition(current Status, event Event) (Status, error) {
	if current.IsTerminal() {
		return current, &TransitionError{From: current, Event: event}
	}
	switch event {
	case EventStartReview:
		if current == StatusActive {
			return StatusUnderReview, nil
		}
	case EventCompleteReview:
		if current == StatusUnderReview {
			return StatusActive, nil
		}
	case EventExpire:
		return StatusExpired, nil
	case EventCease:
		return StatusCeased, nil
	}
	return current, &TransitionError{From: current, Event: event}
}

// TransitionError reports a rejected practice status transition.
type TransitionError struct {
	From  Status
	Event Event
}

func (e *TransitionError) Error() string {
	return "cannot " + string(e.Event) + " practice in status \"" + string(e.From) + "\""
}

func (e *TransitionError) Unwrap() error { return engine.ErrInvalidTransition }
