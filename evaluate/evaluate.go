/*
Package evaluate contains the condition evaluators: one per compliance
domain, each a pure read -> facts transformation over that domain's live
entity set plus an explicit "today".

UNIFORM CONTRACT:
  Evaluate(ctx, today) -> []engine.Fact

  Evaluators never write anything. They are independent and
  order-insensitive; the reconciler treats their union as the complete
  fact set for a sweep. A failing evaluator contributes zero facts and
  degrades that sweep's coverage without aborting it.

EVALUATORS:
  ScheduleDue    preventative_schedule_due   active schedules, 7-day window
  Maintenance    maintenance_due             open urgent maintenance requests
  PlanExpiry     plan_expiry                 90/60/30-day thresholds
  DocumentExpiry document_expiry             90/60/30-day thresholds
  Practices      restrictive_practice_review + restrictive_practice_unauthorised
  Vacancy        vacancy                     under-occupied dwellings past grace
  PaymentMissing payment_missing             outstanding expected payments
  LowFunding     low_funding                 plan funds below threshold

SEE ALSO:
  - sources.go: Read-only snapshot shapes supplied by collaborators
  - alerts/reconciler.go: The sweep orchestrator consuming these facts
*/
package evaluate

import (
	"context"
	"fmt"

	"github.com/haven/compliance-engine/engine"
)

// Evaluator is one compliance domain's fact producer.
type Evaluator interface {
	// Name identifies the evaluator in sweep results and logs.
	Name() string

	// Evaluate scans the domain's entities and yields every condition
	// that should currently hold an alert.
	Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error)
}

// =============================================================================
// EXPIRY THRESHOLDS - shared by plan and document evaluators
// =============================================================================

// ExpiryThresholds are evaluated tightest-first; only the tightest breached
// threshold produces a fact per artifact, so one document nearing expiry
// yields one fact, not three.
var ExpiryThresholds = []int{30, 60, 90}

// expirySeverity maps a breached threshold to a severity. Anything overdue
// breaches the 30-day tier.
func expirySeverity(threshold int) engine.Severity {
	switch threshold {
	case 30:
		return engine.SeverityCritical
	case 60:
		return engine.SeverityWarning
	default:
		return engine.SeverityInfo
	}
}

// tightestBreached classifies due against today and returns the tightest
// breached threshold. ok is false when the artifact is still outside the
// widest threshold.
func tightestBreached(today, due engine.Date) (threshold int, c engine.Classification, ok bool) {
	for _, t := range ExpiryThresholds {
		c = engine.Classify(today, due, t)
		if c.Status != engine.DueOnTrack {
			return t, c, true
		}
	}
	return 0, c, false
}

// days renders a day count for alert messages.
func days(n int) string {
	if n == 1 || n == -1 {
		return "1 day"
	}
	if n < 0 {
		n = -n
	}
	return fmt.Sprintf("%d days", n)
}
