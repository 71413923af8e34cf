package evaluate

import (
	"context"
	"fmt"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/schedule"
)

// ScheduleDueWindowDays is the default due-soon window for preventative
// maintenance schedules.
const ScheduleDueWindowDays = 7

// ScheduleDue yields preventative_schedule_due facts for active schedules
// that are overdue (critical) or due within the window (warning).
type ScheduleDue struct {
	Schedules  schedule.Store
	WindowDays int // zero means ScheduleDueWindowDays
}

func NewScheduleDue(store schedule.Store) *ScheduleDue {
	return &ScheduleDue{Schedules: store, WindowDays: ScheduleDueWindowDays}
}

func (e *ScheduleDue) Name() string { return "preventative_schedule_due" }

func (e *ScheduleDue) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	window := e.WindowDays
	if window == 0 {
		window = ScheduleDueWindowDays
	}

	active, err := e.Schedules.List(ctx, schedule.Filter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, s := range active {
		c := engine.Classify(today, s.NextDue, window)
		if c.Status == engine.DueOnTrack {
			continue
		}

		due := s.NextDue
		fact := engine.Fact{
			Entity:      engine.EntityRef{Kind: engine.KindSchedule, ID: s.ID},
			Type:        engine.AlertScheduleDue,
			TriggerDate: today,
			DueDate:     &due,
		}
		if c.Status == engine.DueOverdue {
			fact.Severity = engine.SeverityCritical
			fact.Title = "Overdue Preventative Maintenance"
			fact.Message = fmt.Sprintf("%s is overdue by %s (due %s)", s.TaskName, days(c.DaysDelta), s.NextDue)
		} else {
			fact.Severity = engine.SeverityWarning
			fact.Title = "Preventative Maintenance Due Soon"
			fact.Message = fmt.Sprintf("%s is due in %s on %s", s.TaskName, days(c.DaysDelta), s.NextDue)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}
