/*
Package engine provides the core compliance/maintenance alert engine.

PURPOSE:
  This package contains the domain-agnostic building blocks shared by every
  compliance domain: calendar dates, recurrence arithmetic, due-status
  classification, the alert data model with its lifecycle state machine,
  and the alert store contract.

KEY CONCEPTS IN THIS FILE (types.go):
  - EntityRef:  A tagged reference to the one entity an alert is about
  - Fact:       An ephemeral "should alert" condition produced by an evaluator
  - Alert:      The persisted, stateful record surfaced to users
  - Key:        The dedupe key (entity, alert type) - at most one open alert

DESIGN PRINCIPLES:
  1. Determinism: "today" is always an explicit parameter (see date.go)
  2. One entity per alert: EntityRef is a variant, not optional-field soup
  3. Human actions win: the reconciler never overwrites acknowledged,
     resolved, or dismissed alerts

SEE ALSO:
  - recurrence.go: Next-occurrence calculation
  - classify.go:   Due-status classification
  - transition.go: Alert lifecycle state machine
  - store.go:      AlertStore contract
*/
package engine

import "time"

// =============================================================================
// ALERT TAXONOMY
// =============================================================================

type AlertType string

const (
	AlertPlanExpiry            AlertType = "plan_expiry"
	AlertDocumentExpiry        AlertType = "document_expiry"
	AlertMaintenanceDue        AlertType = "maintenance_due"
	AlertVacancy               AlertType = "vacancy"
	AlertPaymentMissing        AlertType = "payment_missing"
	AlertLowFunding            AlertType = "low_funding"
	AlertScheduleDue           AlertType = "preventative_schedule_due"
	AlertPracticeReview        AlertType = "restrictive_practice_review"
	AlertPracticeUnauthorised  AlertType = "restrictive_practice_unauthorised"
)

// AlertTypes lists every known alert type, in stats display order.
var AlertTypes = []AlertType{
	AlertPlanExpiry,
	AlertDocumentExpiry,
	AlertMaintenanceDue,
	AlertVacancy,
	AlertPaymentMissing,
	AlertLowFunding,
	AlertScheduleDue,
	AlertPracticeReview,
	AlertPracticeUnauthorised,
}

type Severity string

const (
	SeverityCritical Severity = "critical"
	SeverityWarning  Severity = "warning"
	SeverityInfo     Severity = "info"
)

// Rank orders severities for display: critical first.
func (s Severity) Rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

type AlertStatus string

const (
	StatusActive       AlertStatus = "active"
	StatusAcknowledged AlertStatus = "acknowledged"
	StatusResolved     AlertStatus = "resolved"
	StatusDismissed    AlertStatus = "dismissed"
)

// IsOpen reports whether the alert still occupies its dedupe key.
// Resolved and dismissed alerts are historical; the same condition
// recurring later produces a fresh alert.
func (s AlertStatus) IsOpen() bool {
	return s == StatusActive || s == StatusAcknowledged
}

// IsTerminal reports whether no further transitions are permitted.
func (s AlertStatus) IsTerminal() bool {
	return s == StatusResolved || s == StatusDismissed
}

// =============================================================================
// ENTITY REFERENCE - Tagged union, half of the dedupe key
// =============================================================================

type EntityKind string

const (
	KindParticipant EntityKind = "participant"
	KindPlan        EntityKind = "plan"
	KindProperty    EntityKind = "property"
	KindDwelling    EntityKind = "dwelling"
	KindDocument    EntityKind = "document"
	KindMaintenance EntityKind = "maintenance"
	KindSchedule    EntityKind = "schedule"
	KindPractice    EntityKind = "restrictive_practice"
)

// EntityRef identifies the single entity an alert is about.
type EntityRef struct {
	Kind EntityKind
	ID   string
}

func (r EntityRef) String() string { return string(r.Kind) + ":" + r.ID }

// Key is the alert dedupe key. The system maintains at most one active or
// acknowledged alert per key at any time.
type Key struct {
	Entity EntityRef
	Type   AlertType
}

// =============================================================================
// FACT - Evaluator output, not yet persisted
// =============================================================================

// Fact is a candidate alert condition yielded by a condition evaluator
// during a sweep. Facts are ephemeral; the reconciler decides whether each
// one becomes a new alert, refreshes an existing one, or is a no-op.
type Fact struct {
	Entity      EntityRef
	Type        AlertType
	Severity    Severity
	Title       string
	Message     string
	TriggerDate Date
	DueDate     *Date
}

func (f Fact) Key() Key { return Key{Entity: f.Entity, Type: f.Type} }

// =============================================================================
// ALERT - Persisted, stateful record
// =============================================================================

type AlertID string

type Alert struct {
	ID          AlertID
	Type        AlertType
	Severity    Severity
	Status      AlertStatus
	Entity      EntityRef
	Title       string
	Message     string
	TriggerDate Date
	DueDate     *Date

	// Audit trail for human actions
	AcknowledgedBy string
	AcknowledgedAt *time.Time
	ResolvedBy     string
	ResolvedAt     *time.Time

	CreatedAt time.Time
	UpdatedAt time.Time
}

func (a Alert) Key() Key { return Key{Entity: a.Entity, Type: a.Type} }

// NewAlert materializes a fact as an active alert.
func NewAlert(id AlertID, f Fact, now time.Time) Alert {
	return Alert{
		ID:          id,
		Type:        f.Type,
		Severity:    f.Severity,
		Status:      StatusActive,
		Entity:      f.Entity,
		Title:       f.Title,
		Message:     f.Message,
		TriggerDate: f.TriggerDate,
		DueDate:     f.DueDate,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}
