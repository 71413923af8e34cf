// Package memory provides in-memory store implementations for testing and
// development. Semantics mirror the SQLite store, including the atomic
// create-if-absent on the alert dedupe key.
package memory

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/evaluate"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
)

// =============================================================================
// ALERT STORE
// =============================================================================

type AlertStore struct {
	mu     sync.RWMutex
	alerts map[engine.AlertID]engine.Alert
	open   map[engine.Key]engine.AlertID // active/acknowledged only
}

func NewAlertStore() *AlertStore {
	return &AlertStore{
		alerts: make(map[engine.AlertID]engine.Alert),
		open:   make(map[engine.Key]engine.AlertID),
	}
}

func (s *AlertStore) CreateIfAbsent(_ context.Context, alert engine.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, taken := s.open[alert.Key()]; taken {
		return engine.ErrDuplicateAlert
	}
	s.alerts[alert.ID] = alert
	s.open[alert.Key()] = alert.ID
	return nil
}

func (s *AlertStore) Get(_ context.Context, id engine.AlertID) (*engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "alert", ID: string(id)}
	}
	copy := a
	return &copy, nil
}

func (s *AlertStore) List(_ context.Context, f engine.AlertFilter) ([]engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []engine.Alert
	for _, a := range s.alerts {
		if f.Status != nil && a.Status != *f.Status {
			continue
		}
		if f.Severity != nil && a.Severity != *f.Severity {
			continue
		}
		if f.Type != nil && a.Type != *f.Type {
			continue
		}
		if f.Entity != nil && a.Entity != *f.Entity {
			continue
		}
		result = append(result, a)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].Severity.Rank() != result[j].Severity.Rank() {
			return result[i].Severity.Rank() < result[j].Severity.Rank()
		}
		return result[i].CreatedAt.After(result[j].CreatedAt)
	})
	return result, nil
}

func (s *AlertStore) ListOpen(_ context.Context) ([]engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]engine.Alert, 0, len(s.open))
	for _, id := range s.open {
		result = append(result, s.alerts[id])
	}
	return result, nil
}

func (s *AlertStore) RefreshActive(_ context.Context, id engine.AlertID, severity engine.Severity, title, message string, dueDate *engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return &engine.NotFoundError{Kind: "alert", ID: string(id)}
	}
	if a.Status != engine.StatusActive {
		return nil
	}
	a.Severity = severity
	a.Title = title
	a.Message = message
	a.DueDate = dueDate
	s.alerts[id] = a
	return nil
}

func (s *AlertStore) Apply(_ context.Context, id engine.AlertID, event engine.AlertEvent, actor string, at time.Time) (*engine.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	a, ok := s.alerts[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "alert", ID: string(id)}
	}

	next, err := engine.NextAlertStatus(a.Status, event)
	if err != nil {
		return nil, err
	}
	a.Status = next
	a.UpdatedAt = at
	switch event {
	case engine.EventAcknowledge:
		a.AcknowledgedBy = actor
		a.AcknowledgedAt = &at
	case engine.EventResolve:
		a.ResolvedBy = actor
		a.ResolvedAt = &at
	}
	if !next.IsOpen() {
		delete(s.open, a.Key())
	}
	s.alerts[id] = a

	copy := a
	return &copy, nil
}

// =============================================================================
// SCHEDULE STORE
// =============================================================================

type ScheduleStore struct {
	mu        sync.RWMutex
	schedules map[string]schedule.Schedule
}

func NewScheduleStore() *ScheduleStore {
	return &ScheduleStore{schedules: make(map[string]schedule.Schedule)}
}

func (s *ScheduleStore) Insert(_ context.Context, sched schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.schedules[sched.ID] = sched
	return nil
}

func (s *ScheduleStore) Get(_ context.Context, id string) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sched, ok := s.schedules[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "schedule", ID: id}
	}
	copy := sched
	return &copy, nil
}

func (s *ScheduleStore) Update(_ context.Context, sched schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.schedules[sched.ID]; !ok {
		return &engine.NotFoundError{Kind: "schedule", ID: sched.ID}
	}
	s.schedules[sched.ID] = sched
	return nil
}

func (s *ScheduleStore) List(_ context.Context, f schedule.Filter) ([]schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []schedule.Schedule
	for _, sched := range s.schedules {
		if f.ActiveOnly && !sched.IsActive {
			continue
		}
		if f.PropertyID != nil && sched.PropertyID != *f.PropertyID {
			continue
		}
		if f.Category != nil && sched.Category != *f.Category {
			continue
		}
		if f.Frequency != nil && sched.Frequency != *f.Frequency {
			continue
		}
		result = append(result, sched)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NextDue.Before(result[j].NextDue)
	})
	return result, nil
}

// =============================================================================
// PRACTICE STORE
// =============================================================================

type PracticeStore struct {
	mu        sync.RWMutex
	practices map[string]practice.Practice
	incidents map[string][]practice.Incident
}

func NewPracticeStore() *PracticeStore {
	return &PracticeStore{
		practices: make(map[string]practice.Practice),
		incidents: make(map[string][]practice.Incident),
	}
}

func (s *PracticeStore) Insert(_ context.Context, p practice.Practice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.practices[p.ID] = p
	return nil
}

func (s *PracticeStore) Get(_ context.Context, id string) (*practice.Practice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	p, ok := s.practices[id]
	if !ok {
		return nil, &engine.NotFoundError{Kind: "restrictive practice", ID: id}
	}
	copy := p
	return &copy, nil
}

func (s *PracticeStore) Update(_ context.Context, p practice.Practice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.practices[p.ID]; !ok {
		return &engine.NotFoundError{Kind: "restrictive practice", ID: p.ID}
	}
	s.practices[p.ID] = p
	return nil
}

func (s *PracticeStore) List(_ context.Context, f practice.Filter) ([]practice.Practice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var result []practice.Practice
	for _, p := range s.practices {
		if f.ParticipantID != nil && p.ParticipantID != *f.ParticipantID {
			continue
		}
		if f.PropertyID != nil && p.PropertyID != *f.PropertyID {
			continue
		}
		if f.Status != nil && p.Status != *f.Status {
			continue
		}
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].NextReview.Before(result[j].NextReview)
	})
	return result, nil
}

func (s *PracticeStore) InsertIncident(_ context.Context, inc practice.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.incidents[inc.PracticeID] = append(s.incidents[inc.PracticeID], inc)
	return nil
}

func (s *PracticeStore) ListIncidents(_ context.Context, practiceID string) ([]practice.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	incidents := append([]practice.Incident(nil), s.incidents[practiceID]...)
	sort.Slice(incidents, func(i, j int) bool {
		return incidents[i].Date.After(incidents[j].Date)
	})
	return incidents, nil
}

// =============================================================================
// SNAPSHOT SOURCES - Fixed slices for tests
// =============================================================================

// Snapshots implements every evaluate source over fixed slices.
type Snapshots struct {
	mu        sync.RWMutex
	plans     []evaluate.Plan
	documents []evaluate.Document
	dwellings []evaluate.Dwelling
	payments  []evaluate.ExpectedPayment
	requests  []evaluate.MaintenanceRequest
}

func NewSnapshots() *Snapshots { return &Snapshots{} }

func (s *Snapshots) SetPlans(plans ...evaluate.Plan) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans = plans
}

func (s *Snapshots) SetDocuments(docs ...evaluate.Document) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.documents = docs
}

func (s *Snapshots) SetDwellings(dwellings ...evaluate.Dwelling) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dwellings = dwellings
}

func (s *Snapshots) SetExpectedPayments(payments ...evaluate.ExpectedPayment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments = payments
}

func (s *Snapshots) SetMaintenanceRequests(requests ...evaluate.MaintenanceRequest) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.requests = requests
}

func (s *Snapshots) Plans(_ context.Context) ([]evaluate.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]evaluate.Plan(nil), s.plans...), nil
}

func (s *Snapshots) Documents(_ context.Context) ([]evaluate.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]evaluate.Document(nil), s.documents...), nil
}

func (s *Snapshots) Dwellings(_ context.Context) ([]evaluate.Dwelling, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]evaluate.Dwelling(nil), s.dwellings...), nil
}

func (s *Snapshots) ExpectedPayments(_ context.Context) ([]evaluate.ExpectedPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]evaluate.ExpectedPayment(nil), s.payments...), nil
}

func (s *Snapshots) MaintenanceRequests(_ context.Context) ([]evaluate.MaintenanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]evaluate.MaintenanceRequest(nil), s.requests...), nil
}
