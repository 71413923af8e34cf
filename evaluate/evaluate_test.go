package evaluate_test

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/evaluate"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
	"github.com/haven/compliance-engine/store/memory"
)

var today = engine.NewDate(2025, time.June, 1)

// =============================================================================
// PLAN EXPIRY
// =============================================================================

func TestPlanExpiry_TightestBreachedThresholdOnly(t *testing.T) {
	// GIVEN: A current plan expiring in 45 days
	// WHEN: Evaluated against the 90/60/30 tiers
	// THEN: Exactly one fact at the 60-day tier (warning), not one per tier

	snaps := memory.NewSnapshots()
	snaps.SetPlans(evaluate.Plan{
		ID: "plan-1", ParticipantID: "part-1", ParticipantName: "Alex Chen",
		EndDate: today.AddDays(45), Current: true,
		AnnualBudget: decimal.NewFromInt(100000), FundsRemaining: decimal.NewFromInt(50000),
	})

	facts, err := evaluate.NewPlanExpiry(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, engine.AlertPlanExpiry, facts[0].Type)
	assert.Equal(t, engine.SeverityWarning, facts[0].Severity)
	assert.Equal(t, engine.KindPlan, facts[0].Entity.Kind)
}

func TestPlanExpiry_SeverityTiers(t *testing.T) {
	snaps := memory.NewSnapshots()

	cases := []struct {
		daysOut int
		want    engine.Severity
	}{
		{20, engine.SeverityCritical},
		{-5, engine.SeverityCritical}, // expired breaches the 30-day tier
		{45, engine.SeverityWarning},
		{80, engine.SeverityInfo},
	}

	for _, tc := range cases {
		snaps.SetPlans(evaluate.Plan{
			ID: "plan-1", ParticipantName: "Alex Chen",
			EndDate: today.AddDays(tc.daysOut), Current: true,
			AnnualBudget: decimal.NewFromInt(100000), FundsRemaining: decimal.NewFromInt(50000),
		})
		facts, err := evaluate.NewPlanExpiry(snaps).Evaluate(context.Background(), today)
		require.NoError(t, err)
		require.Len(t, facts, 1, "days out %d", tc.daysOut)
		assert.Equal(t, tc.want, facts[0].Severity, "days out %d", tc.daysOut)
	}
}

func TestPlanExpiry_IgnoresDistantAndNonCurrent(t *testing.T) {
	snaps := memory.NewSnapshots()
	snaps.SetPlans(
		evaluate.Plan{ID: "plan-1", EndDate: today.AddDays(120), Current: true},
		evaluate.Plan{ID: "plan-2", EndDate: today.AddDays(10), Current: false},
	)

	facts, err := evaluate.NewPlanExpiry(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

// =============================================================================
// LOW FUNDING
// =============================================================================

func TestLowFunding_Thresholds(t *testing.T) {
	snaps := memory.NewSnapshots()
	budget := decimal.NewFromInt(100000)

	cases := []struct {
		remaining int64
		severity  engine.Severity
		alerts    bool
	}{
		{20000, "", false}, // 20%
		{15000, "", false}, // exactly 15% is not below the line
		{14999, engine.SeverityWarning, true},
		{5000, engine.SeverityWarning, true}, // exactly 5% stays warning
		{4999, engine.SeverityCritical, true},
	}

	for _, tc := range cases {
		snaps.SetPlans(evaluate.Plan{
			ID: "plan-1", ParticipantName: "Alex Chen", Current: true,
			EndDate:      today.AddDays(200),
			AnnualBudget: budget, FundsRemaining: decimal.NewFromInt(tc.remaining),
		})
		facts, err := evaluate.NewLowFunding(snaps).Evaluate(context.Background(), today)
		require.NoError(t, err)
		if !tc.alerts {
			assert.Empty(t, facts, "remaining %d", tc.remaining)
			continue
		}
		require.Len(t, facts, 1, "remaining %d", tc.remaining)
		assert.Equal(t, engine.AlertLowFunding, facts[0].Type)
		assert.Equal(t, tc.severity, facts[0].Severity, "remaining %d", tc.remaining)
	}
}

func TestLowFunding_SkipsZeroBudget(t *testing.T) {
	snaps := memory.NewSnapshots()
	snaps.SetPlans(evaluate.Plan{
		ID: "plan-1", Current: true,
		AnnualBudget: decimal.Zero, FundsRemaining: decimal.Zero,
	})

	facts, err := evaluate.NewLowFunding(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Empty(t, facts)
}

// =============================================================================
// DOCUMENT EXPIRY
// =============================================================================

func TestDocumentExpiry_PerDocumentFacts(t *testing.T) {
	expiringSoon := today.AddDays(45)
	expired := today.AddDays(-3)

	snaps := memory.NewSnapshots()
	snaps.SetDocuments(
		evaluate.Document{ID: "doc-1", Name: "Fire safety certificate", Expiry: &expiringSoon,
			Owner: engine.EntityRef{Kind: engine.KindProperty, ID: "prop-1"}},
		evaluate.Document{ID: "doc-2", Name: "Public liability insurance", Expiry: &expired,
			Owner: engine.EntityRef{Kind: engine.KindProperty, ID: "prop-1"}},
		evaluate.Document{ID: "doc-3", Name: "Perpetual lease"}, // never expires
	)

	facts, err := evaluate.NewDocumentExpiry(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	bySeverity := map[engine.Severity]int{}
	for _, f := range facts {
		assert.Equal(t, engine.AlertDocumentExpiry, f.Type)
		assert.Equal(t, engine.KindDocument, f.Entity.Kind)
		bySeverity[f.Severity]++
	}
	assert.Equal(t, 1, bySeverity[engine.SeverityWarning])  // 45 days out
	assert.Equal(t, 1, bySeverity[engine.SeverityCritical]) // expired
}

// =============================================================================
// VACANCY
// =============================================================================

func TestVacancy_GracePeriod(t *testing.T) {
	recent := today.AddDays(-5)
	longStanding := today.AddDays(-30)

	snaps := memory.NewSnapshots()
	snaps.SetDwellings(
		evaluate.Dwelling{ID: "dw-1", Name: "Villa 1", Address: "1 Main St",
			MaxParticipants: 3, CurrentOccupancy: 2, VacantSince: &recent, IsActive: true},
		evaluate.Dwelling{ID: "dw-2", Name: "Villa 2", Address: "2 Main St",
			MaxParticipants: 3, CurrentOccupancy: 1, VacantSince: &longStanding, IsActive: true},
		evaluate.Dwelling{ID: "dw-3", Name: "Villa 3", Address: "3 Main St",
			MaxParticipants: 2, CurrentOccupancy: 2, IsActive: true},
		evaluate.Dwelling{ID: "dw-4", Name: "Villa 4", Address: "4 Main St",
			MaxParticipants: 2, CurrentOccupancy: 0, VacantSince: &longStanding, IsActive: false},
	)

	eval := evaluate.NewVacancy(snaps)
	eval.GraceDays = 14

	facts, err := eval.Evaluate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "dw-2", facts[0].Entity.ID)
	assert.Equal(t, engine.SeverityInfo, facts[0].Severity)
}

func TestVacancy_NoVacantSince_AlertsImmediately(t *testing.T) {
	snaps := memory.NewSnapshots()
	snaps.SetDwellings(evaluate.Dwelling{
		ID: "dw-1", Name: "Villa 1", Address: "1 Main St",
		MaxParticipants: 2, CurrentOccupancy: 1, IsActive: true,
	})

	eval := evaluate.NewVacancy(snaps)
	eval.GraceDays = 14

	facts, err := eval.Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

// =============================================================================
// PAYMENT MISSING
// =============================================================================

func TestPaymentMissing_AggregatesPerParticipant(t *testing.T) {
	// GIVEN: One participant with two late payments, another inside grace
	// WHEN: Evaluated with the default 3-day grace
	// THEN: One aggregated fact for the first participant only

	snaps := memory.NewSnapshots()
	snaps.SetExpectedPayments(
		evaluate.ExpectedPayment{ID: "pay-1", ParticipantID: "part-1", ParticipantName: "Alex Chen",
			Amount: decimal.NewFromInt(1200), ExpectedDate: today.AddDays(-10), Outstanding: true},
		evaluate.ExpectedPayment{ID: "pay-2", ParticipantID: "part-1", ParticipantName: "Alex Chen",
			Amount: decimal.NewFromInt(800), ExpectedDate: today.AddDays(-5), Outstanding: true},
		evaluate.ExpectedPayment{ID: "pay-3", ParticipantID: "part-2", ParticipantName: "Sam Doyle",
			Amount: decimal.NewFromInt(900), ExpectedDate: today.AddDays(-2), Outstanding: true},
		evaluate.ExpectedPayment{ID: "pay-4", ParticipantID: "part-3", ParticipantName: "Jo March",
			Amount: decimal.NewFromInt(700), ExpectedDate: today.AddDays(-20), Outstanding: false},
	)

	facts, err := evaluate.NewPaymentMissing(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, facts, 1)

	f := facts[0]
	assert.Equal(t, "part-1", f.Entity.ID)
	assert.Equal(t, engine.SeverityWarning, f.Severity)
	assert.Contains(t, f.Message, "2 expected payments")
	assert.Contains(t, f.Message, "2000.00")
	require.NotNil(t, f.DueDate)
	assert.Equal(t, today.AddDays(-10), *f.DueDate)
}

func TestPaymentMissing_EscalatesToCritical(t *testing.T) {
	snaps := memory.NewSnapshots()
	snaps.SetExpectedPayments(evaluate.ExpectedPayment{
		ID: "pay-1", ParticipantID: "part-1", ParticipantName: "Alex Chen",
		Amount: decimal.NewFromInt(1200), ExpectedDate: today.AddDays(-15), Outstanding: true,
	})

	facts, err := evaluate.NewPaymentMissing(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, engine.SeverityCritical, facts[0].Severity)
}

func TestPaymentMissing_GraceBoundary(t *testing.T) {
	snaps := memory.NewSnapshots()
	snaps.SetExpectedPayments(evaluate.ExpectedPayment{
		ID: "pay-1", ParticipantID: "part-1",
		Amount: decimal.NewFromInt(500), ExpectedDate: today.AddDays(-3), Outstanding: true,
	})

	// Exactly at the grace edge: not late enough
	facts, err := evaluate.NewPaymentMissing(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Empty(t, facts)

	snaps.SetExpectedPayments(evaluate.ExpectedPayment{
		ID: "pay-1", ParticipantID: "part-1",
		Amount: decimal.NewFromInt(500), ExpectedDate: today.AddDays(-4), Outstanding: true,
	})
	facts, err = evaluate.NewPaymentMissing(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

func TestPaymentMissing_ZeroValueDefaultsGrace(t *testing.T) {
	// A zero-value evaluator gets the PaymentGraceDays default
	snaps := memory.NewSnapshots()
	snaps.SetExpectedPayments(evaluate.ExpectedPayment{
		ID: "pay-1", ParticipantID: "part-1",
		Amount: decimal.NewFromInt(500), ExpectedDate: today.AddDays(-3), Outstanding: true,
	})

	facts, err := (&evaluate.PaymentMissing{Payments: snaps}).Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Empty(t, facts)

	snaps.SetExpectedPayments(evaluate.ExpectedPayment{
		ID: "pay-1", ParticipantID: "part-1",
		Amount: decimal.NewFromInt(500), ExpectedDate: today.AddDays(-4), Outstanding: true,
	})
	facts, err = (&evaluate.PaymentMissing{Payments: snaps}).Evaluate(context.Background(), today)
	require.NoError(t, err)
	assert.Len(t, facts, 1)
}

// =============================================================================
// SCHEDULE DUE
// =============================================================================

func TestScheduleDue_WindowAndSeverity(t *testing.T) {
	store := memory.NewScheduleStore()
	ctx := context.Background()

	insert := func(id string, due engine.Date, active bool) {
		require.NoError(t, store.Insert(ctx, schedule.Schedule{
			ID: id, PropertyID: "prop-1", TaskName: "Task " + id,
			Category: schedule.CategoryGeneral, Frequency: engine.FreqMonthly, Interval: 1,
			NextDue: due, IsActive: active,
		}))
	}
	insert("s-overdue", today.AddDays(-2), true)
	insert("s-soon", today.AddDays(7), true)
	insert("s-later", today.AddDays(8), true)
	insert("s-inactive", today.AddDays(-30), false)

	facts, err := evaluate.NewScheduleDue(store).Evaluate(ctx, today)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	severities := map[string]engine.Severity{}
	for _, f := range facts {
		assert.Equal(t, engine.AlertScheduleDue, f.Type)
		severities[f.Entity.ID] = f.Severity
	}
	assert.Equal(t, engine.SeverityCritical, severities["s-overdue"])
	assert.Equal(t, engine.SeverityWarning, severities["s-soon"])
}

// =============================================================================
// MAINTENANCE
// =============================================================================

func TestMaintenance_UrgentOpenOnly(t *testing.T) {
	snaps := memory.NewSnapshots()
	snaps.SetMaintenanceRequests(
		evaluate.MaintenanceRequest{ID: "mr-1", Title: "Burst pipe", Address: "1 Main St", Urgent: true, Open: true},
		evaluate.MaintenanceRequest{ID: "mr-2", Title: "Squeaky door", Address: "1 Main St", Urgent: false, Open: true},
		evaluate.MaintenanceRequest{ID: "mr-3", Title: "Gas leak", Address: "2 Main St", Urgent: true, Open: false},
	)

	facts, err := evaluate.NewMaintenance(snaps).Evaluate(context.Background(), today)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "mr-1", facts[0].Entity.ID)
	assert.Equal(t, engine.SeverityCritical, facts[0].Severity)
}

// =============================================================================
// RESTRICTIVE PRACTICES
// =============================================================================

func TestPractices_OverdueReviewAndUnauthorised(t *testing.T) {
	store := memory.NewPracticeStore()
	ctx := context.Background()

	insert := func(p practice.Practice) {
		require.NoError(t, store.Insert(ctx, p))
	}

	// Review overdue, authorisation valid
	insert(practice.Practice{
		ID: "p-1", ParticipantID: "part-1", PropertyID: "prop-1",
		PracticeType: practice.TypeEnvironmental, Status: practice.StatusActive,
		IsAuthorised: true, AuthorisationExpiry: today.AddDays(100),
		NextReview: today.AddDays(-5),
	})
	// Authorisation expired yesterday; review fine
	insert(practice.Practice{
		ID: "p-2", ParticipantID: "part-2", PropertyID: "prop-1",
		PracticeType: practice.TypeChemical, Status: practice.StatusActive,
		IsAuthorised: true, AuthorisationExpiry: today.AddDays(-1),
		NextReview: today.AddDays(30),
	})
	// Ceased: contributes nothing
	insert(practice.Practice{
		ID: "p-3", ParticipantID: "part-3", PropertyID: "prop-1",
		PracticeType: practice.TypePhysical, Status: practice.StatusCeased,
		IsAuthorised: false, AuthorisationExpiry: today.AddDays(-100),
		NextReview: today.AddDays(-50),
	})

	facts, err := evaluate.NewPractices(store).Evaluate(ctx, today)
	require.NoError(t, err)
	require.Len(t, facts, 2)

	byType := map[engine.AlertType]engine.Fact{}
	for _, f := range facts {
		byType[f.Type] = f
	}

	review := byType[engine.AlertPracticeReview]
	assert.Equal(t, "p-1", review.Entity.ID)
	assert.Equal(t, engine.SeverityCritical, review.Severity)

	unauth := byType[engine.AlertPracticeUnauthorised]
	assert.Equal(t, "p-2", unauth.Entity.ID)
	assert.Equal(t, engine.SeverityCritical, unauth.Severity)
}

func TestPractices_ReviewWindow_WarnsAhead(t *testing.T) {
	store := memory.NewPracticeStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, practice.Practice{
		ID: "p-1", ParticipantID: "part-1", PropertyID: "prop-1",
		PracticeType: practice.TypeMechanical, Status: practice.StatusActive,
		IsAuthorised: true, AuthorisationExpiry: today.AddDays(100),
		NextReview: today.AddDays(5),
	}))

	eval := evaluate.NewPractices(store)
	eval.ReviewWindowDays = 7

	facts, err := eval.Evaluate(ctx, today)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, engine.AlertPracticeReview, facts[0].Type)
	assert.Equal(t, engine.SeverityWarning, facts[0].Severity)
}

func TestPractices_ZeroWindow_ReviewDueTodayStillWarns(t *testing.T) {
	// GIVEN: The default zero review window and a review falling due today
	// WHEN: Evaluated
	// THEN: Due today is due-soon, never overdue, so a warning fact appears
	//       even at window zero; tomorrow's review stays silent

	store := memory.NewPracticeStore()
	ctx := context.Background()

	require.NoError(t, store.Insert(ctx, practice.Practice{
		ID: "p-1", ParticipantID: "part-1", PropertyID: "prop-1",
		PracticeType: practice.TypeEnvironmental, Status: practice.StatusActive,
		IsAuthorised: true, AuthorisationExpiry: today.AddDays(100),
		NextReview: today,
	}))
	require.NoError(t, store.Insert(ctx, practice.Practice{
		ID: "p-2", ParticipantID: "part-2", PropertyID: "prop-1",
		PracticeType: practice.TypeEnvironmental, Status: practice.StatusActive,
		IsAuthorised: true, AuthorisationExpiry: today.AddDays(100),
		NextReview: today.AddDays(1),
	}))

	facts, err := evaluate.NewPractices(store).Evaluate(ctx, today)
	require.NoError(t, err)
	require.Len(t, facts, 1)
	assert.Equal(t, "p-1", facts[0].Entity.ID)
	assert.Equal(t, engine.SeverityWarning, facts[0].Severity)
	assert.Contains(t, facts[0].Message, "due in 0 days")
}
