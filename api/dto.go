/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

VALIDATION:
  Request types carry go-playground/validator tags; handlers run them
  through the shared validator before touching domain logic. Date strings
  are validated as YYYY-MM-DD during conversion, not by tag.

SEE ALSO:
  - handlers.go: Uses these types
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/alerts"
	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
)

// =============================================================================
// ALERTS
// =============================================================================

// AlertDTO represents an alert in API responses.
type AlertDTO struct {
	ID          string  `json:"id"`
	Type        string  `json:"type"`
	Severity    string  `json:"severity"`
	Status      string  `json:"status"`
	EntityKind  string  `json:"entity_kind"`
	EntityID    string  `json:"entity_id"`
	Title       string  `json:"title"`
	Message     string  `json:"message"`
	TriggerDate string  `json:"trigger_date"`
	DueDate     *string `json:"due_date,omitempty"`

	AcknowledgedBy string  `json:"acknowledged_by,omitempty"`
	AcknowledgedAt *string `json:"acknowledged_at,omitempty"`
	ResolvedBy     string  `json:"resolved_by,omitempty"`
	ResolvedAt     *string `json:"resolved_at,omitempty"`

	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// AlertActionRequest carries the actor for acknowledge/resolve.
type AlertActionRequest struct {
	Actor string `json:"actor" validate:"required"`
}

// AlertStatsDTO is the dashboard counter block.
type AlertStatsDTO struct {
	Total    int            `json:"total"`
	Active   int            `json:"active"`
	Critical int            `json:"critical"`
	Warning  int            `json:"warning"`
	Info     int            `json:"info"`
	ByType   map[string]int `json:"by_type"`
}

// SweepRequest optionally pins the evaluation date (for backfills and
// tests). Empty means today.
type SweepRequest struct {
	AsOf string `json:"as_of,omitempty"`
}

// SweepResultDTO summarizes one sweep.
type SweepResultDTO struct {
	Created   int      `json:"created"`
	Refreshed int      `json:"refreshed"`
	Unchanged int      `json:"unchanged"`
	Degraded  []string `json:"degraded,omitempty"`
}

// =============================================================================
// SCHEDULES
// =============================================================================

// ScheduleDTO represents a maintenance schedule in API responses.
type ScheduleDTO struct {
	ID             string  `json:"id"`
	PropertyID     string  `json:"property_id"`
	DwellingID     string  `json:"dwelling_id,omitempty"`
	TaskName       string  `json:"task_name"`
	Description    string  `json:"description,omitempty"`
	Category       string  `json:"category"`
	Frequency      string  `json:"frequency"`
	Interval       int     `json:"interval"`
	NextDue        string  `json:"next_due"`
	LastCompleted  *string `json:"last_completed,omitempty"`
	IsActive       bool    `json:"is_active"`
	EstimatedCost  *string `json:"estimated_cost,omitempty"`
	ActualCost     *string `json:"actual_cost,omitempty"`
	ContractorName string  `json:"contractor_name,omitempty"`
	Notes          string  `json:"notes,omitempty"`
	CreatedAt      string  `json:"created_at"`
	UpdatedAt      string  `json:"updated_at"`
}

// CreateScheduleRequest is the request to create a schedule.
type CreateScheduleRequest struct {
	PropertyID     string `json:"property_id" validate:"required"`
	DwellingID     string `json:"dwelling_id,omitempty"`
	TaskName       string `json:"task_name" validate:"required"`
	Description    string `json:"description,omitempty"`
	Category       string `json:"category" validate:"required"`
	Frequency      string `json:"frequency" validate:"required"`
	Interval       int    `json:"interval" validate:"min=1"`
	NextDue        string `json:"next_due" validate:"required"`
	EstimatedCost  string `json:"estimated_cost,omitempty"`
	ContractorName string `json:"contractor_name,omitempty"`
	Notes          string `json:"notes,omitempty"`
}

// CompleteScheduleRequest is the request to complete a schedule.
type CompleteScheduleRequest struct {
	CompletedDate string `json:"completed_date" validate:"required"`
	ActualCost    string `json:"actual_cost,omitempty"`
	Notes         string `json:"notes,omitempty"`
	EmitHistory   bool   `json:"emit_history,omitempty"`
}

// ScheduleStatsDTO is the schedule dashboard counter block.
type ScheduleStatsDTO struct {
	Total       int            `json:"total"`
	Active      int            `json:"active"`
	Inactive    int            `json:"inactive"`
	Overdue     int            `json:"overdue"`
	DueWithin   int            `json:"due_within"`
	ByCategory  map[string]int `json:"by_category"`
	ByFrequency map[string]int `json:"by_frequency"`
}

// =============================================================================
// RESTRICTIVE PRACTICES
// =============================================================================

// PracticeDTO represents a restrictive practice in API responses.
// The overdue/expiring/unauthorised flags are derived from today at read
// time, never stored.
type PracticeDTO struct {
	ID            string `json:"id"`
	ParticipantID string `json:"participant_id"`
	PropertyID    string `json:"property_id"`
	PracticeType  string `json:"practice_type"`
	Description   string `json:"description,omitempty"`

	AuthorisedBy        string `json:"authorised_by,omitempty"`
	AuthorisationDate   string `json:"authorisation_date"`
	AuthorisationExpiry string `json:"authorisation_expiry"`
	IsAuthorised        bool   `json:"is_authorised"`

	BehaviourSupportPlanID string  `json:"behaviour_support_plan_id,omitempty"`
	ImplementedBy          string  `json:"implemented_by,omitempty"`
	StartDate              string  `json:"start_date"`
	EndDate                *string `json:"end_date,omitempty"`

	Status string `json:"status"`

	ReviewFrequency string  `json:"review_frequency"`
	NextReview      string  `json:"next_review"`
	LastReview      *string `json:"last_review,omitempty"`
	ReviewNotes     string  `json:"review_notes,omitempty"`

	ReductionStrategy string `json:"reduction_strategy,omitempty"`

	NDISReportable      bool    `json:"ndis_reportable"`
	NDISReportedDate    *string `json:"ndis_reported_date,omitempty"`
	NDISReferenceNumber string  `json:"ndis_reference_number,omitempty"`

	IsOverdueReview bool `json:"is_overdue_review"`
	IsAuthExpiring  bool `json:"is_auth_expiring"`
	IsUnauthorised  bool `json:"is_unauthorised"`

	CreatedBy string `json:"created_by,omitempty"`
	CreatedAt string `json:"created_at"`
	UpdatedAt string `json:"updated_at"`
}

// CreatePracticeRequest is the request to register a practice.
type CreatePracticeRequest struct {
	ParticipantID string `json:"participant_id" validate:"required"`
	PropertyID    string `json:"property_id" validate:"required"`
	PracticeType  string `json:"practice_type" validate:"required"`
	Description   string `json:"description,omitempty"`

	AuthorisedBy        string `json:"authorised_by,omitempty"`
	AuthorisationDate   string `json:"authorisation_date" validate:"required"`
	AuthorisationExpiry string `json:"authorisation_expiry" validate:"required"`
	IsAuthorised        bool   `json:"is_authorised"`

	BehaviourSupportPlanID string `json:"behaviour_support_plan_id,omitempty"`
	ImplementedBy          string `json:"implemented_by,omitempty"`
	StartDate              string `json:"start_date" validate:"required"`
	EndDate                string `json:"end_date,omitempty"`

	ReviewFrequency string `json:"review_frequency" validate:"required"`
	NextReview      string `json:"next_review" validate:"required"`

	ReductionStrategy string `json:"reduction_strategy,omitempty"`
	NDISReportable    bool   `json:"ndis_reportable"`

	CreatedBy string `json:"created_by,omitempty"`
}

// UpdatePracticeRequest carries optional field updates. Absent fields are
// left unchanged.
type UpdatePracticeRequest struct {
	Description         *string `json:"description,omitempty"`
	AuthorisedBy        *string `json:"authorised_by,omitempty"`
	AuthorisationDate   *string `json:"authorisation_date,omitempty"`
	AuthorisationExpiry *string `json:"authorisation_expiry,omitempty"`
	IsAuthorised        *bool   `json:"is_authorised,omitempty"`
	ImplementedBy       *string `json:"implemented_by,omitempty"`
	EndDate             *string `json:"end_date,omitempty"`
	ReviewFrequency     *string `json:"review_frequency,omitempty"`
	ReductionStrategy   *string `json:"reduction_strategy,omitempty"`
	NDISReportable      *bool   `json:"ndis_reportable,omitempty"`
	NDISReportedDate    *string `json:"ndis_reported_date,omitempty"`
	NDISReferenceNumber *string `json:"ndis_reference_number,omitempty"`
}

// ReviewPracticeRequest records a completed review.
type ReviewPracticeRequest struct {
	ReviewDate string `json:"review_date" validate:"required"`
	Notes      string `json:"notes,omitempty"`
	Event      string `json:"event,omitempty"` // optional lifecycle event
}

// ChangePracticeStatusRequest applies a lifecycle event.
type ChangePracticeStatusRequest struct {
	Event string `json:"event" validate:"required"`
}

// LogIncidentRequest records one usage of a practice.
type LogIncidentRequest struct {
	Date                string `json:"date" validate:"required"`
	Time                string `json:"time,omitempty"`
	Duration            int    `json:"duration,omitempty" validate:"min=0"`
	ImplementedBy       string `json:"implemented_by,omitempty"`
	Trigger             string `json:"trigger,omitempty"`
	ParticipantResponse string `json:"participant_response,omitempty"`
	Debrief             string `json:"debrief,omitempty"`
	Injuries            bool   `json:"injuries"`
	InjuryDetails       string `json:"injury_details,omitempty"`
	WitnessedBy         string `json:"witnessed_by,omitempty"`
	CreatedBy           string `json:"created_by,omitempty"`
}

// IncidentDTO represents a logged incident.
type IncidentDTO struct {
	ID                  string `json:"id"`
	PracticeID          string `json:"practice_id"`
	Date                string `json:"date"`
	Time                string `json:"time,omitempty"`
	Duration            int    `json:"duration"`
	ImplementedBy       string `json:"implemented_by,omitempty"`
	Trigger             string `json:"trigger,omitempty"`
	ParticipantResponse string `json:"participant_response,omitempty"`
	Debrief             string `json:"debrief,omitempty"`
	Injuries            bool   `json:"injuries"`
	InjuryDetails       string `json:"injury_details,omitempty"`
	WitnessedBy         string `json:"witnessed_by,omitempty"`
	CreatedBy           string `json:"created_by,omitempty"`
	CreatedAt           string `json:"created_at"`
}

// PracticeStatsDTO is the register dashboard counter block.
type PracticeStatsDTO struct {
	Total                  int `json:"total"`
	Active                 int `json:"active"`
	ReviewsOverdue         int `json:"reviews_overdue"`
	AuthorisationsExpiring int `json:"authorisations_expiring"`
	Unauthorised           int `json:"unauthorised"`
	Unreported             int `json:"unreported"`
}

// =============================================================================
// SNAPSHOTS - Pushed by the surrounding product
// =============================================================================

// PlanSnapshotRequest upserts one plan snapshot.
type PlanSnapshotRequest struct {
	ID              string `json:"id" validate:"required"`
	ParticipantID   string `json:"participant_id" validate:"required"`
	ParticipantName string `json:"participant_name" validate:"required"`
	EndDate         string `json:"end_date" validate:"required"`
	AnnualBudget    string `json:"annual_budget" validate:"required"`
	FundsRemaining  string `json:"funds_remaining" validate:"required"`
	Current         bool   `json:"current"`
}

// DocumentSnapshotRequest upserts one document snapshot.
type DocumentSnapshotRequest struct {
	ID        string `json:"id" validate:"required"`
	Name      string `json:"name" validate:"required"`
	OwnerKind string `json:"owner_kind" validate:"required"`
	OwnerID   string `json:"owner_id" validate:"required"`
	Expiry    string `json:"expiry,omitempty"`
}

// DwellingSnapshotRequest upserts one dwelling snapshot.
type DwellingSnapshotRequest struct {
	ID               string `json:"id" validate:"required"`
	PropertyID       string `json:"property_id" validate:"required"`
	Name             string `json:"name" validate:"required"`
	Address          string `json:"address,omitempty"`
	MaxParticipants  int    `json:"max_participants" validate:"min=0"`
	CurrentOccupancy int    `json:"current_occupancy" validate:"min=0"`
	VacantSince      string `json:"vacant_since,omitempty"`
	IsActive         bool   `json:"is_active"`
}

// PaymentSnapshotRequest upserts one expected-payment snapshot.
type PaymentSnapshotRequest struct {
	ID              string `json:"id" validate:"required"`
	ParticipantID   string `json:"participant_id" validate:"required"`
	ParticipantName string `json:"participant_name" validate:"required"`
	PlanID          string `json:"plan_id,omitempty"`
	Amount          string `json:"amount" validate:"required"`
	ExpectedDate    string `json:"expected_date" validate:"required"`
	Outstanding     bool   `json:"outstanding"`
}

// MaintenanceSnapshotRequest upserts one reactive maintenance snapshot.
type MaintenanceSnapshotRequest struct {
	ID         string `json:"id" validate:"required"`
	PropertyID string `json:"property_id" validate:"required"`
	DwellingID string `json:"dwelling_id,omitempty"`
	Address    string `json:"address,omitempty"`
	Title      string `json:"title" validate:"required"`
	Urgent     bool   `json:"urgent"`
	Open       bool   `json:"open"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func dateString(d engine.Date) string { return d.String() }

func datePtrString(d *engine.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func timePtrString(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := t.UTC().Format(time.RFC3339)
	return &s
}

func decimalPtrString(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func toAlertDTO(a engine.Alert) AlertDTO {
	return AlertDTO{
		ID:             string(a.ID),
		Type:           string(a.Type),
		Severity:       string(a.Severity),
		Status:         string(a.Status),
		EntityKind:     string(a.Entity.Kind),
		EntityID:       a.Entity.ID,
		Title:          a.Title,
		Message:        a.Message,
		TriggerDate:    dateString(a.TriggerDate),
		DueDate:        datePtrString(a.DueDate),
		AcknowledgedBy: a.AcknowledgedBy,
		AcknowledgedAt: timePtrString(a.AcknowledgedAt),
		ResolvedBy:     a.ResolvedBy,
		ResolvedAt:     timePtrString(a.ResolvedAt),
		CreatedAt:      a.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      a.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toAlertDTOs(as []engine.Alert) []AlertDTO {
	dtos := make([]AlertDTO, len(as))
	for i, a := range as {
		dtos[i] = toAlertDTO(a)
	}
	return dtos
}

func toSweepResultDTO(r *alerts.Result) SweepResultDTO {
	return SweepResultDTO{
		Created:   r.Created,
		Refreshed: r.Refreshed,
		Unchanged: r.Unchanged,
		Degraded:  r.Degraded,
	}
}

func toScheduleDTO(sc schedule.Schedule) ScheduleDTO {
	return ScheduleDTO{
		ID:             sc.ID,
		PropertyID:     sc.PropertyID,
		DwellingID:     sc.DwellingID,
		TaskName:       sc.TaskName,
		Description:    sc.Description,
		Category:       string(sc.Category),
		Frequency:      string(sc.Frequency),
		Interval:       sc.Interval,
		NextDue:        dateString(sc.NextDue),
		LastCompleted:  datePtrString(sc.LastCompleted),
		IsActive:       sc.IsActive,
		EstimatedCost:  decimalPtrString(sc.EstimatedCost),
		ActualCost:     decimalPtrString(sc.ActualCost),
		ContractorName: sc.ContractorName,
		Notes:          sc.Notes,
		CreatedAt:      sc.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:      sc.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toScheduleDTOs(scs []schedule.Schedule) []ScheduleDTO {
	dtos := make([]ScheduleDTO, len(scs))
	for i, sc := range scs {
		dtos[i] = toScheduleDTO(sc)
	}
	return dtos
}

func toPracticeDTO(p practice.Practice, today engine.Date) PracticeDTO {
	return PracticeDTO{
		ID:                     p.ID,
		ParticipantID:          p.ParticipantID,
		PropertyID:             p.PropertyID,
		PracticeType:           string(p.PracticeType),
		Description:            p.Description,
		AuthorisedBy:           p.AuthorisedBy,
		AuthorisationDate:      dateString(p.AuthorisationDate),
		AuthorisationExpiry:    dateString(p.AuthorisationExpiry),
		IsAuthorised:           p.IsAuthorised,
		BehaviourSupportPlanID: p.BehaviourSupportPlanID,
		ImplementedBy:          p.ImplementedBy,
		StartDate:              dateString(p.StartDate),
		EndDate:                datePtrString(p.EndDate),
		Status:                 string(p.Status),
		ReviewFrequency:        string(p.ReviewFrequency),
		NextReview:             dateString(p.NextReview),
		LastReview:             datePtrString(p.LastReview),
		ReviewNotes:            p.ReviewNotes,
		ReductionStrategy:      p.ReductionStrategy,
		NDISReportable:         p.NDISReportable,
		NDISReportedDate:       datePtrString(p.NDISReportedDate),
		NDISReferenceNumber:    p.NDISReferenceNumber,
		IsOverdueReview:        p.IsOverdueReview(today),
		IsAuthExpiring:         p.IsAuthExpiring(today),
		IsUnauthorised:         p.IsUnauthorised(today),
		CreatedBy:              p.CreatedBy,
		CreatedAt:              p.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:              p.UpdatedAt.UTC().Format(time.RFC3339),
	}
}

func toIncidentDTO(inc practice.Incident) IncidentDTO {
	return IncidentDTO{
		ID:                  inc.ID,
		PracticeID:          inc.PracticeID,
		Date:                dateString(inc.Date),
		Time:                inc.Time,
		Duration:            inc.Duration,
		ImplementedBy:       inc.ImplementedBy,
		Trigger:             inc.Trigger,
		ParticipantResponse: inc.ParticipantResponse,
		Debrief:             inc.Debrief,
		Injuries:            inc.Injuries,
		InjuryDetails:       inc.InjuryDetails,
		WitnessedBy:         inc.WitnessedBy,
		CreatedBy:           inc.CreatedBy,
		CreatedAt:           inc.CreatedAt.UTC().Format(time.RFC3339),
	}
}
