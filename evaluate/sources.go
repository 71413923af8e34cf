package evaluate

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/engine"
)

// =============================================================================
// SNAPSHOT SOURCES - Read-only views supplied by external collaborators
// =============================================================================
// The engine does not own participants, plans, documents, dwellings,
// payments, or reactive maintenance requests. It consumes snapshots of them
// through these narrow interfaces; the surrounding product (or the sqlite
// snapshot tables in store/sqlite) implements them.

// Plan is an NDIS participant plan snapshot.
type Plan struct {
	ID              string
	ParticipantID   string
	ParticipantName string
	EndDate         engine.Date
	AnnualBudget    decimal.Decimal
	FundsRemaining  decimal.Decimal
	Current         bool
}

type PlanSource interface {
	// Plans returns every plan snapshot, current or not.
	Plans(ctx context.Context) ([]Plan, error)
}

// Document is an expiring-artifact snapshot (certificates, agreements,
// insurance). Owner is the entity the document belongs to.
type Document struct {
	ID     string
	Name   string
	Owner  engine.EntityRef
	Expiry *engine.Date // nil = never expires
}

type DocumentSource interface {
	Documents(ctx context.Context) ([]Document, error)
}

// Dwelling is an occupancy snapshot.
type Dwelling struct {
	ID               string
	PropertyID       string
	Name             string
	Address          string
	MaxParticipants  int
	CurrentOccupancy int
	VacantSince      *engine.Date // first day occupancy dropped below capacity
	IsActive         bool
}

type DwellingSource interface {
	Dwellings(ctx context.Context) ([]Dwelling, error)
}

// ExpectedPayment is a scheduled-income snapshot.
type ExpectedPayment struct {
	ID              string
	ParticipantID   string
	ParticipantName string
	PlanID          string
	Amount          decimal.Decimal
	ExpectedDate    engine.Date
	Outstanding     bool // pending/partial/overdue; false once received or cancelled
}

type PaymentSource interface {
	ExpectedPayments(ctx context.Context) ([]ExpectedPayment, error)
}

// MaintenanceRequest is a reactive maintenance snapshot.
type MaintenanceRequest struct {
	ID         string
	PropertyID string
	DwellingID string
	Address    string
	Title      string
	Urgent     bool
	Open       bool // not completed and not cancelled
}

type MaintenanceSource interface {
	MaintenanceRequests(ctx context.Context) ([]MaintenanceRequest, error)
}
