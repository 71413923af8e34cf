package evaluate

import (
	"context"
	"fmt"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/practice"
)

// Practices yields two fact types from the restrictive practices register:
//
//   - restrictive_practice_review for active practices whose review is
//     overdue (critical) or due within the configured window (warning).
//     The default window of 0 flags overdue reviews, plus a warning on the
//     day a review falls due: a due date equal to today is always due-soon,
//     never overdue, never silent.
//   - restrictive_practice_unauthorised, critical, for any practice that is
//     flagged unauthorised or whose authorisation has expired - regardless
//     of review status or window.
type Practices struct {
	Register         practice.Store
	ReviewWindowDays int
}

func NewPractices(store practice.Store) *Practices {
	return &Practices{Register: store}
}

func (e *Practices) Name() string { return "restrictive_practices" }

func (e *Practices) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	active := practice.StatusActive
	practices, err := e.Register.List(ctx, practice.Filter{Status: &active})
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, p := range practices {
		label := practice.TypeLabels[p.PracticeType]
		entity := engine.EntityRef{Kind: engine.KindPractice, ID: p.ID}

		if p.IsUnauthorised(today) {
			facts = append(facts, engine.Fact{
				Entity:      entity,
				Type:        engine.AlertPracticeUnauthorised,
				Severity:    engine.SeverityCritical,
				Title:       "Unauthorised Restrictive Practice",
				Message:     fmt.Sprintf("%s practice in use without valid authorisation (expiry %s)", label, p.AuthorisationExpiry),
				TriggerDate: today,
			})
		}

		c := engine.Classify(today, p.NextReview, e.ReviewWindowDays)
		if c.Status == engine.DueOnTrack {
			continue
		}

		due := p.NextReview
		fact := engine.Fact{
			Entity:      entity,
			Type:        engine.AlertPracticeReview,
			TriggerDate: today,
			DueDate:     &due,
		}
		if c.Status == engine.DueOverdue {
			fact.Severity = engine.SeverityCritical
			fact.Title = "Restrictive Practice Review Overdue"
			fact.Message = fmt.Sprintf("Review of %s practice is overdue by %s (due %s)", label, days(c.DaysDelta), p.NextReview)
		} else {
			fact.Severity = engine.SeverityWarning
			fact.Title = "Restrictive Practice Review Due Soon"
			fact.Message = fmt.Sprintf("Review of %s practice is due in %s on %s", label, days(c.DaysDelta), p.NextReview)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}
