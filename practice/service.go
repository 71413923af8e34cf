/*
service.go - Restrictive practice operations

PURPOSE:
  Creation, review, status changes, and incident logging for restrictive
  practices, plus the dashboard stats.

REVIEW CYCLE:
  NextReview is always recomputed from ReviewFrequency when the frequency
  or its anchor date changes. Conducting a review anchors the next review
  to the review date itself:

      lastReview = reviewDate
      nextReview = reviewDate + one review cycle

  An incident may be logged against a practice at any time without touching
  its review schedule.

STATUS CHANGES:
  Every status change routes through Transition (transition.go); there is
  no other write path to the status field.

SEE ALSO:
  - evaluate/practices.go: Review/unauthorised condition evaluator
*/
package practice

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/haven/compliance-engine/engine"
)

// Service implements practice operations over a Store.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateInput carries the caller-supplied fields for a new practice.
// NextReview is anchored to a user-chosen date at creation.
type CreateInput struct {
	ParticipantID string
	PropertyID    string
	PracticeType  Type
	Description   string

	AuthorisedBy        string
	AuthorisationDate   engine.Date
	AuthorisationExpiry engine.Date
	IsAuthorised        bool

	BehaviourSupportPlanID string
	ImplementedBy          string
	StartDate              engine.Date
	EndDate                *engine.Date

	ReviewFrequency ReviewFrequency
	NextReview      engine.Date

	ReductionStrategy string
	NDISReportable    bool

	CreatedBy string
}

// Create validates and persists a new active practice.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Practice, error) {
	if in.ParticipantID == "" || in.PropertyID == "" {
		return nil, fmt.Errorf("%w: participant and property ids are required", engine.ErrInvalidArgument)
	}
	if !in.PracticeType.Valid() {
		return nil, fmt.Errorf("%w: unknown practice type %q", engine.ErrInvalidArgument, in.PracticeType)
	}
	if _, err := in.ReviewFrequency.Recurrence(); err != nil {
		return nil, err
	}
	if in.NextReview.IsZero() {
		return nil, fmt.Errorf("%w: next review date is required at creation", engine.ErrInvalidArgument)
	}

	now := s.now()
	p := Practice{
		ID:                     uuid.NewString(),
		ParticipantID:          in.ParticipantID,
		PropertyID:             in.PropertyID,
		PracticeType:           in.PracticeType,
		Description:            in.Description,
		AuthorisedBy:           in.AuthorisedBy,
		AuthorisationDate:      in.AuthorisationDate,
		AuthorisationExpiry:    in.AuthorisationExpiry,
		IsAuthorised:           in.IsAuthorised,
		BehaviourSupportPlanID: in.BehaviourSupportPlanID,
		ImplementedBy:          in.ImplementedBy,
		StartDate:              in.StartDate,
		EndDate:                in.EndDate,
		Status:                 StatusActive,
		ReviewFrequency:        in.ReviewFrequency,
		NextReview:             in.NextReview,
		ReductionStrategy:      in.ReductionStrategy,
		NDISReportable:         in.NDISReportable,
		CreatedBy:              in.CreatedBy,
		CreatedAt:              now,
		UpdatedAt:              now,
	}
	if err := s.store.Insert(ctx, p); err != nil {
		return nil, err
	}
	return &p, nil
}

// UpdateInput carries optional field updates. Nil pointers leave the field
// unchanged. Status is not updatable here; use ChangeStatus.
type UpdateInput struct {
	Description         *string
	AuthorisedBy        *string
	AuthorisationDate   *engine.Date
	AuthorisationExpiry *engine.Date
	IsAuthorised        *bool
	ImplementedBy       *string
	EndDate             *engine.Date
	ReviewFrequency     *ReviewFrequency
	ReductionStrategy   *string
	NDISReportable      *bool
	NDISReportedDate    *engine.Date
	NDISReferenceNumber *string
}

// Update applies partial field updates. Changing the review frequency, or
// the authorisation date while it is still the review anchor (no review has
// happened yet), recomputes NextReview from the current anchor.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (*Practice, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	reanchor := false
	if in.Description != nil {
		p.Description = *in.Description
	}
	if in.AuthorisedBy != nil {
		p.AuthorisedBy = *in.AuthorisedBy
	}
	if in.AuthorisationDate != nil && !in.AuthorisationDate.Equal(p.AuthorisationDate) {
		p.AuthorisationDate = *in.AuthorisationDate
		// The authorisation date anchors the cycle until the first review.
		if p.LastReview == nil {
			reanchor = true
		}
	}
	if in.AuthorisationExpiry != nil {
		p.AuthorisationExpiry = *in.AuthorisationExpiry
	}
	if in.IsAuthorised != nil {
		p.IsAuthorised = *in.IsAuthorised
	}
	if in.ImplementedBy != nil {
		p.ImplementedBy = *in.ImplementedBy
	}
	if in.EndDate != nil {
		p.EndDate = in.EndDate
	}
	if in.ReductionStrategy != nil {
		p.ReductionStrategy = *in.ReductionStrategy
	}
	if in.NDISReportable != nil {
		p.NDISReportable = *in.NDISReportable
	}
	if in.NDISReportedDate != nil {
		p.NDISReportedDate = in.NDISReportedDate
	}
	if in.NDISReferenceNumber != nil {
		p.NDISReferenceNumber = *in.NDISReferenceNumber
	}

	if in.ReviewFrequency != nil && *in.ReviewFrequency != p.ReviewFrequency {
		p.ReviewFrequency = *in.ReviewFrequency
		reanchor = true
	}

	if reanchor {
		anchor := p.AuthorisationDate
		if p.LastReview != nil {
			anchor = *p.LastReview
		}
		next, err := p.ReviewFrequency.NextReview(anchor)
		if err != nil {
			return nil, err
		}
		p.NextReview = next
	}

	p.UpdatedAt = s.now()
	if err := s.store.Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// ConductReview records a completed review on reviewDate and advances the
// next review one cycle from it. An optional status event (e.g. EventCease
// when the review decides to retire the practice) is applied through the
// transition table.
func (s *Service) ConductReview(ctx context.Context, id string, reviewDate engine.Date, notes string, event *Event) (*Practice, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if p.Status.IsTerminal() {
		return nil, fmt.Errorf("%w: practice %s is %s", engine.ErrInvalidState, id, p.Status)
	}

	next, err := p.ReviewFrequency.NextReview(reviewDate)
	if err != nil {
		return nil, err
	}

	reviewed := reviewDate
	p.LastReview = &reviewed
	p.NextReview = next
	p.ReviewNotes = notes

	if event != nil {
		status, err := Transition(p.Status, *event)
		if err != nil {
			return nil, err
		}
		p.Status = status
	}

	p.UpdatedAt = s.now()
	if err := s.store.Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// ChangeStatus applies a lifecycle event through the transition table.
func (s *Service) ChangeStatus(ctx context.Context, id string, event Event) (*Practice, error) {
	p, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	status, err := Transition(p.Status, event)
	if err != nil {
		return nil, err
	}
	p.Status = status
	p.UpdatedAt = s.now()
	if err := s.store.Update(ctx, *p); err != nil {
		return nil, err
	}
	return p, nil
}

// LogIncident appends an incident record against a practice. The practice's
// review schedule is untouched.
func (s *Service) LogIncident(ctx context.Context, inc Incident) (*Incident, error) {
	p, err := s.store.Get(ctx, inc.PracticeID)
	if err != nil {
		return nil, err
	}
	if inc.Duration < 0 {
		return nil, fmt.Errorf("%w: incident duration cannot be negative", engine.ErrInvalidArgument)
	}
	inc.ID = uuid.NewString()
	inc.PracticeID = p.ID
	inc.CreatedAt = s.now()
	if err := s.store.InsertIncident(ctx, inc); err != nil {
		return nil, err
	}
	return &inc, nil
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id string) (*Practice, error) {
	return s.store.Get(ctx, id)
}

func (s *Service) List(ctx context.Context, f Filter) ([]Practice, error) {
	return s.store.List(ctx, f)
}

func (s *Service) Incidents(ctx context.Context, practiceID string) ([]Incident, error) {
	return s.store.ListIncidents(ctx, practiceID)
}

// Stats aggregates the register dashboard counters as of today.
func (s *Service) Stats(ctx context.Context, today engine.Date) (*Stats, error) {
	all, err := s.store.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(all)}
	for _, p := range all {
		if p.NDISReportable && p.NDISReportedDate == nil {
			stats.Unreported++
		}
		if p.Status != StatusActive {
			continue
		}
		stats.Active++
		if p.IsOverdueReview(today) {
			stats.ReviewsOverdue++
		}
		if p.IsAuthExpiring(today) {
			stats.AuthorisationsExpiring++
		}
		if p.IsUnauthorised(today) {
			stats.Unauthorised++
		}
	}
	return stats, nil
}
