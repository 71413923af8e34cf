// Package practice implements the restrictive practices register: authorised,
// reviewed interventions tracked for NDIS Practice Standards compliance.
// Each practice carries its own authorisation expiry and review cycle,
// independent of the maintenance schedule model but sharing the engine's
// recurrence and classification machinery.
package practice

import (
	"fmt"
	"time"

	"github.com/haven/compliance-engine/engine"
)

// =============================================================================
// PRACTICE TYPES AND REVIEW CYCLE
// =============================================================================

type Type string

const (
	TypeEnvironmental Type = "environmental"
	TypeChemical      Type = "chemical"
	TypeMechanical    Type = "mechanical"
	TypePhysical      Type = "physical"
	TypeSeclusion     Type = "seclusion"
)

func (t Type) Valid() bool {
	switch t {
	case TypeEnvironmental, TypeChemical, TypeMechanical, TypePhysical, TypeSeclusion:
		return true
	}
	return false
}

// Labels for display surfaces.
var TypeLabels = map[Type]string{
	TypeEnvironmental: "Environmental",
	TypeChemical:      "Chemical",
	TypeMechanical:    "Mechanical",
	TypePhysical:      "Physical",
	TypeSeclusion:     "Seclusion",
}

// ReviewFrequency is the practice review cadence.
type ReviewFrequency string

const (
	ReviewMonthly    ReviewFrequency = "monthly"
	ReviewQuarterly  ReviewFrequency = "quarterly"
	ReviewSixMonthly ReviewFrequency = "6_monthly"
	ReviewAnnually   ReviewFrequency = "annually"
)

// Recurrence maps the review cadence onto the engine's frequency model.
func (f ReviewFrequency) Recurrence() (engine.Frequency, error) {
	switch f {
	case ReviewMonthly:
		return engine.FreqMonthly, nil
	case ReviewQuarterly:
		return engine.FreqQuarterly, nil
	case ReviewSixMonthly:
		return engine.FreqBiannually, nil
	case ReviewAnnually:
		return engine.FreqAnnually, nil
	default:
		return "", fmt.Errorf("%w: unknown review frequency %q", engine.ErrInvalidArgument, f)
	}
}

// NextReview returns the review date one cycle after anchor.
func (f ReviewFrequency) NextReview(anchor engine.Date) (engine.Date, error) {
	freq, err := f.Recurrence()
	if err != nil {
		return engine.Date{}, err
	}
	return engine.NextOccurrence(anchor, freq, 1)
}

// =============================================================================
// PRACTICE - Authorisation + review cycle + reporting
// =============================================================================

// AuthExpiryWindowDays is how far out an authorisation expiry counts as
// "expiring" on dashboards.
const AuthExpiryWindowDays = 14

type Practice struct {
	ID            string
	ParticipantID string
	PropertyID    string
	PracticeType  Type
	Description   string

	// Authorisation. IsAuthorised is independent of the expiry date: an
	// authorisation can be marked invalid before it expires.
	AuthorisedBy        string
	AuthorisationDate   engine.Date
	AuthorisationExpiry engine.Date
	IsAuthorised        bool

	BehaviourSupportPlanID string
	ImplementedBy          string
	StartDate              engine.Date
	EndDate                *engine.Date

	Status Status

	// Review cycle. NextReview is recomputed from ReviewFrequency whenever
	// the frequency or its anchor changes.
	ReviewFrequency ReviewFrequency
	NextReview      engine.Date
	LastReview      *engine.Date
	ReviewNotes     string

	ReductionStrategy string

	// NDIS reporting
	NDISReportable      bool
	NDISReportedDate    *engine.Date
	NDISReferenceNumber string

	CreatedBy string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// IsOverdueReview reports whether an active practice has missed its review
// date. Computed at read time, never persisted.
func (p Practice) IsOverdueReview(today engine.Date) bool {
	if p.Status != StatusActive {
		return false
	}
	return engine.Classify(today, p.NextReview, 0).Status == engine.DueOverdue
}

// IsAuthExpiring reports whether the authorisation expires within the
// standard window. Computed at read time, never persisted.
func (p Practice) IsAuthExpiring(today engine.Date) bool {
	if p.Status != StatusActive {
		return false
	}
	return engine.Classify(today, p.AuthorisationExpiry, AuthExpiryWindowDays).Status == engine.DueSoon
}

// IsUnauthorised reports whether the practice is operating without a valid
// authorisation: explicitly flagged invalid, or past its expiry.
func (p Practice) IsUnauthorised(today engine.Date) bool {
	return !p.IsAuthorised || p.AuthorisationExpiry.Before(today)
}

// =============================================================================
// INCIDENT - Logged against a practice without touching its schedule
// =============================================================================

type Incident struct {
	ID         string
	PracticeID string

	Date     engine.Date
	Time     string // HH:MM, as recorded by staff
	Duration int    // minutes

	ImplementedBy       string
	Trigger             string
	ParticipantResponse string
	Debrief             string
	Injuries            bool
	InjuryDetails       string
	WitnessedBy         string

	CreatedBy string
	CreatedAt time.Time
}

// =============================================================================
// STATS
// =============================================================================

type Stats struct {
	Total                  int
	Active                 int
	ReviewsOverdue         int
	AuthorisationsExpiring int
	Unauthorised           int
	Unreported             int // NDIS-reportable with no reported date
}
