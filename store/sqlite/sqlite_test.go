package sqlite_test

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/evaluate"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
	"github.com/haven/compliance-engine/store/sqlite"
)

func newTestStore(t *testing.T) *sqlite.Store {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func testAlert(id, entityID string) engine.Alert {
	now := time.Date(2025, time.June, 1, 9, 0, 0, 0, time.UTC)
	due := engine.NewDate(2025, time.June, 8)
	return engine.Alert{
		ID:          engine.AlertID(id),
		Type:        engine.AlertScheduleDue,
		Severity:    engine.SeverityWarning,
		Status:      engine.StatusActive,
		Entity:      engine.EntityRef{Kind: engine.KindSchedule, ID: entityID},
		Title:       "Preventative Maintenance Due Soon",
		Message:     "Smoke alarm test is due in 7 days",
		TriggerDate: engine.NewDate(2025, time.June, 1),
		DueDate:     &due,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// =============================================================================
// ALERT DEDUPE AND LIFECYCLE
// =============================================================================

func TestAlerts_DedupeKeyRejectsSecondOpenAlert(t *testing.T) {
	// GIVEN: An active alert on (schedule:s-1, preventative_schedule_due)
	// WHEN: A second alert for the same key is inserted
	// THEN: The partial unique index rejects it as a duplicate

	store := newTestStore(t)
	alerts := store.Alerts()
	ctx := context.Background()

	require.NoError(t, alerts.CreateIfAbsent(ctx, testAlert("a-1", "s-1")))

	err := alerts.CreateIfAbsent(ctx, testAlert("a-2", "s-1"))
	assert.ErrorIs(t, err, engine.ErrDuplicateAlert)

	// A different entity is a different key
	require.NoError(t, alerts.CreateIfAbsent(ctx, testAlert("a-3", "s-2")))
}

func TestAlerts_DedupeKeyHoldsUnderConcurrentInserts(t *testing.T) {
	// GIVEN: Several writers racing to open an alert on the same key
	// WHEN: They all insert at once
	// THEN: Exactly one insert wins; every loser gets ErrDuplicateAlert and
	//       a single open row remains

	store := newTestStore(t)
	alerts := store.Alerts()
	ctx := context.Background()

	const writers = 8
	var wg sync.WaitGroup
	errs := make([]error, writers)
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = alerts.CreateIfAbsent(ctx, testAlert(fmt.Sprintf("a-%d", i), "s-1"))
		}(i)
	}
	wg.Wait()

	wins := 0
	for i, err := range errs {
		if err == nil {
			wins++
			continue
		}
		require.ErrorIs(t, err, engine.ErrDuplicateAlert, "writer %d", i)
	}
	assert.Equal(t, 1, wins)

	open, err := alerts.ListOpen(ctx)
	require.NoError(t, err)
	assert.Len(t, open, 1)
}

func TestAlerts_ResolvedKeyIsReusable(t *testing.T) {
	store := newTestStore(t)
	alerts := store.Alerts()
	ctx := context.Background()

	require.NoError(t, alerts.CreateIfAbsent(ctx, testAlert("a-1", "s-1")))
	_, err := alerts.Apply(ctx, "a-1", engine.EventResolve, "tess", time.Now())
	require.NoError(t, err)

	// Same condition recurring gets a fresh row
	require.NoError(t, alerts.CreateIfAbsent(ctx, testAlert("a-2", "s-1")))

	open, err := alerts.ListOpen(ctx)
	require.NoError(t, err)
	require.Len(t, open, 1)
	assert.Equal(t, engine.AlertID("a-2"), open[0].ID)
}

func TestAlerts_ApplyLifecycle(t *testing.T) {
	store := newTestStore(t)
	alerts := store.Alerts()
	ctx := context.Background()
	at := time.Date(2025, time.June, 2, 10, 30, 0, 0, time.UTC)

	require.NoError(t, alerts.CreateIfAbsent(ctx, testAlert("a-1", "s-1")))

	got, err := alerts.Apply(ctx, "a-1", engine.EventAcknowledge, "tess", at)
	require.NoError(t, err)
	assert.Equal(t, engine.StatusAcknowledged, got.Status)
	assert.Equal(t, "tess", got.AcknowledgedBy)
	require.NotNil(t, got.AcknowledgedAt)
	assert.True(t, got.AcknowledgedAt.Equal(at))

	got, err = alerts.Apply(ctx, "a-1", engine.EventResolve, "sam", at.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, engine.StatusResolved, got.Status)
	assert.Equal(t, "sam", got.ResolvedBy)

	// Terminal: no further transitions
	_, err = alerts.Apply(ctx, "a-1", engine.EventDismiss, "", at.Add(2*time.Hour))
	assert.ErrorIs(t, err, engine.ErrInvalidTransition)

	_, err = alerts.Apply(ctx, "missing", engine.EventResolve, "tess", at)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestAlerts_RefreshActive(t *testing.T) {
	store := newTestStore(t)
	alerts := store.Alerts()
	ctx := context.Background()

	require.NoError(t, alerts.CreateIfAbsent(ctx, testAlert("a-1", "s-1")))

	newDue := engine.NewDate(2025, time.June, 3)
	err := alerts.RefreshActive(ctx, "a-1", engine.SeverityCritical, "Overdue Preventative Maintenance", "Smoke alarm test is overdue by 2 days", &newDue)
	require.NoError(t, err)

	got, err := alerts.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, engine.SeverityCritical, got.Severity)
	assert.Equal(t, "Overdue Preventative Maintenance", got.Title)
	require.NotNil(t, got.DueDate)
	assert.Equal(t, newDue, *got.DueDate)

	// Acknowledged rows are silently left alone
	_, err = alerts.Apply(ctx, "a-1", engine.EventAcknowledge, "tess", time.Now())
	require.NoError(t, err)
	require.NoError(t, alerts.RefreshActive(ctx, "a-1", engine.SeverityInfo, "x", "y", nil))

	got, err = alerts.Get(ctx, "a-1")
	require.NoError(t, err)
	assert.Equal(t, engine.SeverityCritical, got.Severity)

	// Missing rows are an error
	err = alerts.RefreshActive(ctx, "missing", engine.SeverityInfo, "x", "y", nil)
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestAlerts_ListFilters(t *testing.T) {
	store := newTestStore(t)
	alerts := store.Alerts()
	ctx := context.Background()

	a := testAlert("a-1", "s-1")
	require.NoError(t, alerts.CreateIfAbsent(ctx, a))

	b := testAlert("a-2", "s-2")
	b.Severity = engine.SeverityCritical
	require.NoError(t, alerts.CreateIfAbsent(ctx, b))
	_, err := alerts.Apply(ctx, "a-2", engine.EventResolve, "tess", time.Now())
	require.NoError(t, err)

	active := engine.StatusActive
	list, err := alerts.List(ctx, engine.AlertFilter{Status: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, engine.AlertID("a-1"), list[0].ID)

	entity := engine.EntityRef{Kind: engine.KindSchedule, ID: "s-2"}
	list, err = alerts.List(ctx, engine.AlertFilter{Entity: &entity})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, engine.AlertID("a-2"), list[0].ID)

	list, err = alerts.List(ctx, engine.AlertFilter{})
	require.NoError(t, err)
	assert.Len(t, list, 2)
}

// =============================================================================
// SCHEDULES
// =============================================================================

func TestSchedules_RoundTrip(t *testing.T) {
	store := newTestStore(t)
	schedules := store.Schedules()
	ctx := context.Background()
	cost := decimal.RequireFromString("149.50")
	last := engine.NewDate(2025, time.May, 20)

	in := schedule.Schedule{
		ID: "s-1", PropertyID: "prop-1", DwellingID: "dw-1",
		TaskName: "Smoke alarm test", Description: "All alarms, all rooms",
		Category: schedule.CategorySafety, Frequency: engine.FreqMonthly, Interval: 1,
		NextDue: engine.NewDate(2025, time.June, 20), LastCompleted: &last,
		IsActive: true, EstimatedCost: &cost, ContractorName: "FireSafe Pty",
		Notes:     "keys in lockbox",
		CreatedAt: time.Date(2025, time.May, 1, 8, 0, 0, 0, time.UTC),
		UpdatedAt: time.Date(2025, time.May, 20, 8, 0, 0, 0, time.UTC),
	}
	require.NoError(t, schedules.Insert(ctx, in))

	got, err := schedules.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.Equal(t, in.TaskName, got.TaskName)
	assert.Equal(t, in.NextDue, got.NextDue)
	require.NotNil(t, got.LastCompleted)
	assert.Equal(t, last, *got.LastCompleted)
	require.NotNil(t, got.EstimatedCost)
	assert.True(t, got.EstimatedCost.Equal(cost))

	_, err = schedules.Get(ctx, "missing")
	assert.ErrorIs(t, err, engine.ErrNotFound)
}

func TestSchedules_ListFiltersAndOrder(t *testing.T) {
	store := newTestStore(t)
	schedules := store.Schedules()
	ctx := context.Background()

	insert := func(id, propertyID string, cat schedule.Category, due engine.Date, active bool) {
		require.NoError(t, schedules.Insert(ctx, schedule.Schedule{
			ID: id, PropertyID: propertyID, TaskName: "Task " + id,
			Category: cat, Frequency: engine.FreqMonthly, Interval: 1,
			NextDue: due, IsActive: active,
			CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
		}))
	}
	insert("s-1", "prop-1", schedule.CategorySafety, engine.NewDate(2025, time.July, 1), true)
	insert("s-2", "prop-1", schedule.CategoryPlumbing, engine.NewDate(2025, time.June, 1), true)
	insert("s-3", "prop-2", schedule.CategorySafety, engine.NewDate(2025, time.May, 1), false)

	all, err := schedules.List(ctx, schedule.Filter{})
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "s-3", all[0].ID) // next_due ascending
	assert.Equal(t, "s-2", all[1].ID)

	active, err := schedules.List(ctx, schedule.Filter{ActiveOnly: true})
	require.NoError(t, err)
	assert.Len(t, active, 2)

	prop := "prop-1"
	cat := schedule.CategoryPlumbing
	filtered, err := schedules.List(ctx, schedule.Filter{PropertyID: &prop, Category: &cat})
	require.NoError(t, err)
	require.Len(t, filtered, 1)
	assert.Equal(t, "s-2", filtered[0].ID)
}

func TestSchedules_UpdateAndHistory(t *testing.T) {
	store := newTestStore(t)
	schedules := store.Schedules()
	ctx := context.Background()

	require.NoError(t, schedules.Insert(ctx, schedule.Schedule{
		ID: "s-1", PropertyID: "prop-1", TaskName: "Gutter clean",
		Category: schedule.CategoryGrounds, Frequency: engine.FreqQuarterly, Interval: 1,
		NextDue: engine.NewDate(2025, time.June, 1), IsActive: true,
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}))

	got, err := schedules.Get(ctx, "s-1")
	require.NoError(t, err)
	got.IsActive = false
	require.NoError(t, schedules.Update(ctx, *got))

	got, err = schedules.Get(ctx, "s-1")
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	err = schedules.Update(ctx, schedule.Schedule{ID: "missing"})
	assert.ErrorIs(t, err, engine.ErrNotFound)

	cost := decimal.NewFromInt(320)
	require.NoError(t, store.RecordCompletion(ctx, schedule.HistoryRecord{
		ScheduleID: "s-1", PropertyID: "prop-1", TaskName: "Gutter clean",
		Category: schedule.CategoryGrounds, CompletedDate: engine.NewDate(2025, time.June, 2),
		ContractorName: "GreenCo", ActualCost: &cost,
	}))
}

// =============================================================================
// PRACTICES
// =============================================================================

func TestPractices_RoundTripAndIncidents(t *testing.T) {
	store := newTestStore(t)
	practices := store.Practices()
	ctx := context.Background()
	end := engine.NewDate(2025, time.December, 1)

	p := practice.Practice{
		ID: "p-1", ParticipantID: "part-1", PropertyID: "prop-1",
		PracticeType: practice.TypeEnvironmental, Description: "Door sensor",
		AuthorisedBy: "Dr Reed", AuthorisationDate: engine.NewDate(2025, time.January, 1),
		AuthorisationExpiry: engine.NewDate(2025, time.December, 31), IsAuthorised: true,
		BehaviourSupportPlanID: "bsp-9", ImplementedBy: "night staff",
		StartDate: engine.NewDate(2025, time.January, 5), EndDate: &end,
		Status: practice.StatusActive, ReviewFrequency: practice.ReviewQuarterly,
		NextReview: engine.NewDate(2025, time.April, 1),
		NDISReportable: true, CreatedBy: "coordinator",
		CreatedAt: time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}
	require.NoError(t, practices.Insert(ctx, p))

	got, err := practices.Get(ctx, "p-1")
	require.NoError(t, err)
	assert.Equal(t, p.PracticeType, got.PracticeType)
	assert.Equal(t, p.NextReview, got.NextReview)
	require.NotNil(t, got.EndDate)
	assert.Equal(t, end, *got.EndDate)
	assert.True(t, got.NDISReportable)

	require.NoError(t, practices.InsertIncident(ctx, practice.Incident{
		ID: "inc-1", PracticeID: "p-1",
		Date: engine.NewDate(2025, time.February, 3), Time: "14:30", Duration: 15,
		ImplementedBy: "support worker", Trigger: "attempted exit",
		Injuries: false, CreatedBy: "support worker", CreatedAt: time.Now().UTC(),
	}))
	require.NoError(t, practices.InsertIncident(ctx, practice.Incident{
		ID: "inc-2", PracticeID: "p-1",
		Date: engine.NewDate(2025, time.March, 7), Time: "09:00", Duration: 5,
		CreatedAt: time.Now().UTC(),
	}))

	incidents, err := practices.ListIncidents(ctx, "p-1")
	require.NoError(t, err)
	require.Len(t, incidents, 2)
	assert.Equal(t, "inc-2", incidents[0].ID) // newest first
}

func TestPractices_ListByStatus(t *testing.T) {
	store := newTestStore(t)
	practices := store.Practices()
	ctx := context.Background()

	base := practice.Practice{
		ParticipantID: "part-1", PropertyID: "prop-1",
		PracticeType: practice.TypeEnvironmental, ReviewFrequency: practice.ReviewQuarterly,
		AuthorisationDate:   engine.NewDate(2025, time.January, 1),
		AuthorisationExpiry: engine.NewDate(2025, time.December, 31),
		StartDate:           engine.NewDate(2025, time.January, 5),
		NextReview:          engine.NewDate(2025, time.April, 1),
		CreatedAt:           time.Now().UTC(), UpdatedAt: time.Now().UTC(),
	}

	a := base
	a.ID, a.Status = "p-1", practice.StatusActive
	require.NoError(t, practices.Insert(ctx, a))

	c := base
	c.ID, c.Status = "p-2", practice.StatusCeased
	require.NoError(t, practices.Insert(ctx, c))

	active := practice.StatusActive
	list, err := practices.List(ctx, practice.Filter{Status: &active})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p-1", list[0].ID)
}

// =============================================================================
// SNAPSHOT SOURCES
// =============================================================================

func TestSnapshots_UpsertAndRead(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	expiry := engine.NewDate(2025, time.September, 1)

	require.NoError(t, store.UpsertPlan(ctx, evaluate.Plan{
		ID: "plan-1", ParticipantID: "part-1", ParticipantName: "Alex Chen",
		EndDate: engine.NewDate(2025, time.October, 1), Current: true,
		AnnualBudget:   decimal.NewFromInt(100000),
		FundsRemaining: decimal.NewFromInt(40000),
	}))
	// Upsert replaces in place
	require.NoError(t, store.UpsertPlan(ctx, evaluate.Plan{
		ID: "plan-1", ParticipantID: "part-1", ParticipantName: "Alex Chen",
		EndDate: engine.NewDate(2025, time.October, 1), Current: true,
		AnnualBudget:   decimal.NewFromInt(100000),
		FundsRemaining: decimal.NewFromInt(12000),
	}))

	plans, err := store.Plans(ctx)
	require.NoError(t, err)
	require.Len(t, plans, 1)
	assert.True(t, plans[0].FundsRemaining.Equal(decimal.NewFromInt(12000)))

	require.NoError(t, store.UpsertDocument(ctx, evaluate.Document{
		ID: "doc-1", Name: "Fire safety certificate",
		Owner:  engine.EntityRef{Kind: engine.KindProperty, ID: "prop-1"},
		Expiry: &expiry,
	}))
	docs, err := store.Documents(ctx)
	require.NoError(t, err)
	require.Len(t, docs, 1)
	require.NotNil(t, docs[0].Expiry)
	assert.Equal(t, expiry, *docs[0].Expiry)

	vacantSince := engine.NewDate(2025, time.May, 1)
	require.NoError(t, store.UpsertDwelling(ctx, evaluate.Dwelling{
		ID: "dw-1", PropertyID: "prop-1", Name: "Villa 1", Address: "1 Main St",
		MaxParticipants: 3, CurrentOccupancy: 2, VacantSince: &vacantSince, IsActive: true,
	}))
	dwellings, err := store.Dwellings(ctx)
	require.NoError(t, err)
	require.Len(t, dwellings, 1)

	require.NoError(t, store.UpsertExpectedPayment(ctx, evaluate.ExpectedPayment{
		ID: "pay-1", ParticipantID: "part-1", ParticipantName: "Alex Chen",
		PlanID: "plan-1", Amount: decimal.NewFromInt(1200),
		ExpectedDate: engine.NewDate(2025, time.May, 15), Outstanding: true,
	}))
	payments, err := store.ExpectedPayments(ctx)
	require.NoError(t, err)
	require.Len(t, payments, 1)
	assert.True(t, payments[0].Outstanding)

	require.NoError(t, store.UpsertMaintenanceRequest(ctx, evaluate.MaintenanceRequest{
		ID: "mr-1", PropertyID: "prop-1", Address: "1 Main St",
		Title: "Burst pipe", Urgent: true, Open: true,
	}))
	requests, err := store.MaintenanceRequests(ctx)
	require.NoError(t, err)
	require.Len(t, requests, 1)
	assert.True(t, requests[0].Urgent)
}
