package evaluate

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/engine"
)

// =============================================================================
// PLAN EXPIRY
// =============================================================================

// PlanExpiry yields plan_expiry facts for current plans against the
// 90/60/30-day thresholds. One fact per plan at the tightest breached tier.
type PlanExpiry struct {
	Plans PlanSource
}

func NewPlanExpiry(src PlanSource) *PlanExpiry { return &PlanExpiry{Plans: src} }

func (e *PlanExpiry) Name() string { return "plan_expiry" }

func (e *PlanExpiry) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	plans, err := e.Plans.Plans(ctx)
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, plan := range plans {
		if !plan.Current {
			continue
		}
		threshold, c, ok := tightestBreached(today, plan.EndDate)
		if !ok {
			continue
		}

		due := plan.EndDate
		fact := engine.Fact{
			Entity:      engine.EntityRef{Kind: engine.KindPlan, ID: plan.ID},
			Type:        engine.AlertPlanExpiry,
			Severity:    expirySeverity(threshold),
			TriggerDate: today,
			DueDate:     &due,
		}
		if c.Status == engine.DueOverdue {
			fact.Title = "NDIS Plan Expired"
			fact.Message = fmt.Sprintf("NDIS plan for %s expired %s ago on %s", plan.ParticipantName, days(c.DaysDelta), plan.EndDate)
		} else {
			fact.Title = "NDIS Plan Expiring Soon"
			fact.Message = fmt.Sprintf("NDIS plan for %s expires in %s on %s", plan.ParticipantName, days(c.DaysDelta), plan.EndDate)
		}
		facts = append(facts, fact)
	}
	return facts, nil
}

// =============================================================================
// LOW FUNDING
// =============================================================================

// Funding thresholds as fractions of the annual budget.
var (
	lowFundingWarning  = decimal.NewFromFloat(0.15)
	lowFundingCritical = decimal.NewFromFloat(0.05)
)

// LowFunding yields one low_funding fact per current plan whose remaining
// funds have fallen below 15% of the annual budget (warning) or 5%
// (critical).
type LowFunding struct {
	Plans PlanSource
}

func NewLowFunding(src PlanSource) *LowFunding { return &LowFunding{Plans: src} }

func (e *LowFunding) Name() string { return "low_funding" }

func (e *LowFunding) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	plans, err := e.Plans.Plans(ctx)
	if err != nil {
		return nil, err
	}

	var facts []engine.Fact
	for _, plan := range plans {
		if !plan.Current || !plan.AnnualBudget.IsPositive() {
			continue
		}
		fraction := plan.FundsRemaining.Div(plan.AnnualBudget)
		if fraction.GreaterThanOrEqual(lowFundingWarning) {
			continue
		}

		severity := engine.SeverityWarning
		if fraction.LessThan(lowFundingCritical) {
			severity = engine.SeverityCritical
		}
		pct := fraction.Mul(decimal.NewFromInt(100)).Round(1)

		facts = append(facts, engine.Fact{
			Entity:      engine.EntityRef{Kind: engine.KindPlan, ID: plan.ID},
			Type:        engine.AlertLowFunding,
			Severity:    severity,
			Title:       "Plan Funding Low",
			Message: fmt.Sprintf("Plan for %s has $%s remaining (%s%% of $%s annual budget)",
				plan.ParticipantName, plan.FundsRemaining.StringFixed(2), pct, plan.AnnualBudget.StringFixed(2)),
			TriggerDate: today,
		})
	}
	return facts, nil
}
