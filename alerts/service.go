// Package alerts owns the persisted alert lifecycle and the sweep
// orchestration that materializes evaluator facts into alerts.
package alerts

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/haven/compliance-engine/engine"
)

// Service exposes alert queries and the human lifecycle actions.
type Service struct {
	store engine.AlertStore
	now   func() time.Time
}

func NewService(store engine.AlertStore) *Service {
	return &Service{store: store, now: time.Now}
}

// =============================================================================
// LIFECYCLE ACTIONS
// =============================================================================

// Acknowledge claims an active alert for a user. Actor identity is required.
func (s *Service) Acknowledge(ctx context.Context, id engine.AlertID, actor string) (*engine.Alert, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: acknowledging requires an actor", engine.ErrInvalidArgument)
	}
	return s.store.Apply(ctx, id, engine.EventAcknowledge, actor, s.now())
}

// Resolve closes an active or acknowledged alert. Actor identity is required.
func (s *Service) Resolve(ctx context.Context, id engine.AlertID, actor string) (*engine.Alert, error) {
	if actor == "" {
		return nil, fmt.Errorf("%w: resolving requires an actor", engine.ErrInvalidArgument)
	}
	return s.store.Apply(ctx, id, engine.EventResolve, actor, s.now())
}

// Dismiss discards an active alert. Unlike resolution, dismissal records no
// actor; it is the lighter-weight "not relevant" action.
func (s *Service) Dismiss(ctx context.Context, id engine.AlertID) (*engine.Alert, error) {
	return s.store.Apply(ctx, id, engine.EventDismiss, "", s.now())
}

// =============================================================================
// QUERIES
// =============================================================================

func (s *Service) Get(ctx context.Context, id engine.AlertID) (*engine.Alert, error) {
	return s.store.Get(ctx, id)
}

// List returns alerts matching the filter, severity-then-newest first.
func (s *Service) List(ctx context.Context, f engine.AlertFilter) ([]engine.Alert, error) {
	alerts, err := s.store.List(ctx, f)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(alerts, func(i, j int) bool {
		if alerts[i].Severity.Rank() != alerts[j].Severity.Rank() {
			return alerts[i].Severity.Rank() < alerts[j].Severity.Rank()
		}
		return alerts[i].CreatedAt.After(alerts[j].CreatedAt)
	})
	return alerts, nil
}

// Stats aggregates alert counters for the dashboard.
type Stats struct {
	Total    int
	Active   int
	Critical int // active only
	Warning  int
	Info     int
	ByType   map[engine.AlertType]int // active only
}

func (s *Service) Stats(ctx context.Context) (*Stats, error) {
	all, err := s.store.List(ctx, engine.AlertFilter{})
	if err != nil {
		return nil, err
	}

	stats := &Stats{Total: len(all), ByType: make(map[engine.AlertType]int)}
	for _, a := range all {
		if a.Status != engine.StatusActive {
			continue
		}
		stats.Active++
		stats.ByType[a.Type]++
		switch a.Severity {
		case engine.SeverityCritical:
			stats.Critical++
		case engine.SeverityWarning:
			stats.Warning++
		case engine.SeverityInfo:
			stats.Info++
		}
	}
	return stats, nil
}
