package evaluate

import (
	"context"
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/engine"
)

// Payment grace and escalation, in days past the expected date.
const (
	PaymentGraceDays    = 3
	PaymentCriticalDays = 14
)

// PaymentMissing yields one payment_missing fact per participant with
// outstanding expected payments older than the grace period. The fact
// aggregates every missed payment for that participant: count, total
// outstanding, and the oldest expected date. Severity escalates to
// critical once any payment is more than PaymentCriticalDays late.
type PaymentMissing struct {
	Payments  PaymentSource
	GraceDays int // zero means PaymentGraceDays
}

func NewPaymentMissing(src PaymentSource) *PaymentMissing {
	return &PaymentMissing{Payments: src, GraceDays: PaymentGraceDays}
}

func (e *PaymentMissing) Name() string { return "payment_missing" }

func (e *PaymentMissing) Evaluate(ctx context.Context, today engine.Date) ([]engine.Fact, error) {
	payments, err := e.Payments.ExpectedPayments(ctx)
	if err != nil {
		return nil, err
	}

	grace := e.GraceDays
	if grace == 0 {
		grace = PaymentGraceDays
	}

	type breach struct {
		name     string
		count    int
		total    decimal.Decimal
		oldest   engine.Date
		critical bool
	}
	byParticipant := make(map[string]*breach)

	for _, p := range payments {
		if !p.Outstanding {
			continue
		}
		late := engine.DaysBetween(p.ExpectedDate, today)
		if late <= grace {
			continue
		}

		b := byParticipant[p.ParticipantID]
		if b == nil {
			b = &breach{name: p.ParticipantName, total: decimal.Zero, oldest: p.ExpectedDate}
			byParticipant[p.ParticipantID] = b
		}
		b.count++
		b.total = b.total.Add(p.Amount)
		if p.ExpectedDate.Before(b.oldest) {
			b.oldest = p.ExpectedDate
		}
		if late > PaymentCriticalDays {
			b.critical = true
		}
	}

	// Map iteration order is random; sort for stable output.
	ids := make([]string, 0, len(byParticipant))
	for id := range byParticipant {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var facts []engine.Fact
	for _, id := range ids {
		b := byParticipant[id]
		severity := engine.SeverityWarning
		if b.critical {
			severity = engine.SeverityCritical
		}
		payments := "payments"
		if b.count == 1 {
			payments = "payment"
		}
		oldest := b.oldest
		facts = append(facts, engine.Fact{
			Entity:   engine.EntityRef{Kind: engine.KindParticipant, ID: id},
			Type:     engine.AlertPaymentMissing,
			Severity: severity,
			Title:    "Expected Payment Missing",
			Message: fmt.Sprintf("%d expected %s totalling $%s outstanding for %s (oldest due %s)",
				b.count, payments, b.total.StringFixed(2), b.name, b.oldest),
			TriggerDate: today,
			DueDate:     &oldest,
		})
	}
	return facts, nil
}
