/*
service.go - Schedule operations

PURPOSE:
  Creation, completion, and deactivation of preventative maintenance
  schedules, plus the due/overdue queries and aggregate stats the read
  surfaces consume.

COMPLETION SEMANTICS:
  Completing a schedule re-anchors the recurrence to the completion date:

      nextDue = NextOccurrence(completedDate, frequency, interval)

  regardless of how overdue the prior due date was. This is a deliberate
  catch-up policy: a task completed three months late comes due one cycle
  from the day it was actually done, and missed cycles are never compounded.

SIDE EFFECTS:
  Completion optionally emits one HistoryRecord to the external maintenance
  records sink. A sink failure is logged and the committed completion is
  still returned. No alert is created here; the schedule evaluator picks up
  the new due date on the next sweep.

SEE ALSO:
  - engine/recurrence.go: NextOccurrence
  - evaluate/schedules.go: The evaluator that reads these records
*/
package schedule

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/haven/compliance-engine/engine"
)

// Service implements schedule operations over a Store.
type Service struct {
	store   Store
	history HistorySink
	log     *logrus.Logger
	now     func() time.Time
}

// NewService creates a schedule service. history may be nil when the
// caller never emits completion records.
func NewService(store Store, history HistorySink, log *logrus.Logger) *Service {
	if log == nil {
		log = logrus.New()
	}
	return &Service{store: store, history: history, log: log, now: time.Now}
}

// =============================================================================
// MUTATIONS
// =============================================================================

// CreateInput carries the caller-supplied fields for a new schedule.
// NextDue is required: the first occurrence is anchored to a user-chosen
// date, never derived.
type CreateInput struct {
	PropertyID     string
	DwellingID     string
	TaskName       string
	Description    string
	Category       Category
	Frequency      engine.Frequency
	Interval       int
	NextDue        engine.Date
	EstimatedCost  *decimal.Decimal
	ContractorName string
	Notes          string
}

// Create validates and persists a new active schedule.
func (s *Service) Create(ctx context.Context, in CreateInput) (*Schedule, error) {
	if in.PropertyID == "" {
		return nil, fmt.Errorf("%w: property id is required", engine.ErrInvalidArgument)
	}
	if in.TaskName == "" {
		return nil, fmt.Errorf("%w: task name is required", engine.ErrInvalidArgument)
	}
	if !in.Category.Valid() {
		return nil, fmt.Errorf("%w: unknown category %q", engine.ErrInvalidArgument, in.Category)
	}
	if !in.Frequency.Valid() {
		return nil, fmt.Errorf("%w: unknown frequency %q", engine.ErrInvalidArgument, in.Frequency)
	}
	if in.Interval < 1 {
		return nil, fmt.Errorf("%w: frequency interval must be >= 1, got %d", engine.ErrInvalidArgument, in.Interval)
	}
	if in.NextDue.IsZero() {
		return nil, fmt.Errorf("%w: next due date is required at creation", engine.ErrInvalidArgument)
	}

	now := s.now()
	sched := Schedule{
		ID:             uuid.NewString(),
		PropertyID:     in.PropertyID,
		DwellingID:     in.DwellingID,
		TaskName:       in.TaskName,
		Description:    in.Description,
		Category:       in.Category,
		Frequency:      in.Frequency,
		Interval:       in.Interval,
		NextDue:        in.NextDue,
		IsActive:       true,
		EstimatedCost:  in.EstimatedCost,
		ContractorName: in.ContractorName,
		Notes:          in.Notes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	if err := s.store.Insert(ctx, sched); err != nil {
		return nil, err
	}
	return &sched, nil
}

// Complete marks the schedule done on completedDate, re-anchors the next
// due date, and optionally emits a maintenance history record.
func (s *Service) Complete(ctx context.Context, id string, completedDate engine.Date, actualCost *decimal.Decimal, notes string, emitHistory bool) (*Schedule, error) {
	sched, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sched.IsActive {
		return nil, fmt.Errorf("%w: schedule %s is deactivated", engine.ErrInvalidState, id)
	}

	nextDue, err := engine.NextOccurrence(completedDate, sched.Frequency, sched.Interval)
	if err != nil {
		return nil, err
	}

	completed := completedDate
	sched.LastCompleted = &completed
	sched.NextDue = nextDue
	if actualCost != nil {
		sched.ActualCost = actualCost
	}
	if notes != "" {
		sched.Notes = notes
	}
	sched.UpdatedAt = s.now()

	if err := s.store.Update(ctx, *sched); err != nil {
		return nil, err
	}

	if emitHistory && s.history != nil {
		rec := HistoryRecord{
			ScheduleID:     sched.ID,
			PropertyID:     sched.PropertyID,
			DwellingID:     sched.DwellingID,
			TaskName:       sched.TaskName,
			Description:    sched.Description,
			Category:       sched.Category,
			CompletedDate:  completedDate,
			ContractorName: sched.ContractorName,
			ActualCost:     actualCost,
			Notes:          notes,
		}
		if err := s.history.RecordCompletion(ctx, rec); err != nil {
			// The schedule row is already committed at this point; a failed
			// history emit does not undo the completion.
			s.log.WithError(err).WithFields(logrus.Fields{
				"schedule_id": sched.ID,
				"task":        sched.TaskName,
			}).Error("Failed to record maintenance history for completed schedule")
		}
	}
	return sched, nil
}

// Deactivate soft-retires the schedule. Idempotent; never deletes.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	sched, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if !sched.IsActive {
		return nil
	}
	sched.IsActive = false
	sched.UpdatedAt = s.now()
	return s.store.Update(ctx, *sched)
}

// =============================================================================
// QUERIES
// =============================================================================

// Get returns a single schedule.
func (s *Service) Get(ctx context.Context, id string) (*Schedule, error) {
	return s.store.Get(ctx, id)
}

// List returns schedules matching the filter, ordered by next due date.
func (s *Service) List(ctx context.Context, f Filter) ([]Schedule, error) {
	return s.store.List(ctx, f)
}

// DueWithin returns active schedules due within days of today (inclusive),
// excluding overdue ones.
func (s *Service) DueWithin(ctx context.Context, today engine.Date, days int) ([]Schedule, error) {
	active, err := s.store.List(ctx, Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var due []Schedule
	for _, sched := range active {
		if c := engine.Classify(today, sched.NextDue, days); c.Status == engine.DueSoon {
			due = append(due, sched)
		}
	}
	return due, nil
}

// Overdue returns active schedules past their due date, most overdue first.
func (s *Service) Overdue(ctx context.Context, today engine.Date) ([]Schedule, error) {
	active, err := s.store.List(ctx, Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	var overdue []Schedule
	for _, sched := range active {
		if sched.NextDue.Before(today) {
			overdue = append(overdue, sched)
		}
	}
	return overdue, nil
}

// Stats aggregates schedule counts; dueWindowDays controls the DueWithin
// bucket (30 on the dashboard).
func (s *Service) Stats(ctx context.Context, today engine.Date, dueWindowDays int) (*Stats, error) {
	all, err := s.store.List(ctx, Filter{})
	if err != nil {
		return nil, err
	}

	stats := &Stats{
		ByCategory:  make(map[Category]int),
		ByFrequency: make(map[engine.Frequency]int),
	}
	stats.Total = len(all)
	for _, sched := range all {
		if !sched.IsActive {
			stats.Inactive++
			continue
		}
		stats.Active++
		stats.ByCategory[sched.Category]++
		stats.ByFrequency[sched.Frequency]++

		switch c := engine.Classify(today, sched.NextDue, dueWindowDays); c.Status {
		case engine.DueOverdue:
			stats.Overdue++
		case engine.DueSoon:
			stats.DueWithin++
		}
	}
	return stats, nil
}
