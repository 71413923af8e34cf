package api_test

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/haven/compliance-engine/alerts"
	"github.com/haven/compliance-engine/api"
	"github.com/haven/compliance-engine/evaluate"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
	"github.com/haven/compliance-engine/store/sqlite"
)

// newTestRouter wires a full router against a fresh in-memory store, the
// same way cmd/server does.
func newTestRouter(t *testing.T) (*chi.Mux, *sqlite.Store) {
	t.Helper()

	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	log := logrus.New()
	log.SetLevel(logrus.ErrorLevel)

	alertSvc := alerts.NewService(store.Alerts())
	schedSvc := schedule.NewService(store.Schedules(), store, log)
	pracSvc := practice.NewService(store.Practices())
	reconciler := alerts.NewReconciler(store.Alerts(), log,
		evaluate.NewPlanExpiry(store),
		evaluate.NewLowFunding(store),
		evaluate.NewDocumentExpiry(store),
		evaluate.NewScheduleDue(store.Schedules()),
		evaluate.NewMaintenance(store),
		evaluate.NewVacancy(store),
		evaluate.NewPaymentMissing(store),
		evaluate.NewPractices(store.Practices()),
	)

	h := api.NewHandler(alertSvc, reconciler, schedSvc, pracSvc, store, log)
	return api.NewRouter(h), store
}

// do executes one request against the router and decodes the JSON response
// into out (when non-nil).
func do(t *testing.T, router http.Handler, method, path string, body, out any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	if out != nil && rr.Code < 300 {
		require.NoError(t, json.Unmarshal(rr.Body.Bytes(), out))
	}
	return rr
}

// =============================================================================
// SCHEDULES
// =============================================================================

func TestScheduleEndpoints_CreateCompleteDeactivate(t *testing.T) {
	router, _ := newTestRouter(t)

	var created map[string]any
	rr := do(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"property_id": "prop-1",
		"task_name":   "Smoke alarm test",
		"category":    "safety",
		"frequency":   "monthly",
		"interval":    1,
		"next_due":    "2025-02-20",
	}, &created)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := created["id"].(string)
	assert.Equal(t, true, created["is_active"])

	// Complete a month late: next due re-anchors to the completion date
	var completed map[string]any
	rr = do(t, router, http.MethodPost, "/api/schedules/"+id+"/complete", map[string]any{
		"completed_date": "2025-03-20",
		"actual_cost":    "149.50",
		"emit_history":   true,
	}, &completed)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "2025-04-20", completed["next_due"])
	assert.Equal(t, "2025-03-20", completed["last_completed"])
	assert.Equal(t, "149.5", completed["actual_cost"])

	rr = do(t, router, http.MethodPost, "/api/schedules/"+id+"/deactivate", nil, nil)
	assert.Equal(t, http.StatusNoContent, rr.Code)

	// Completing a deactivated schedule conflicts
	rr = do(t, router, http.MethodPost, "/api/schedules/"+id+"/complete", map[string]any{
		"completed_date": "2025-04-01",
	}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)
}

func TestScheduleEndpoints_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing required fields
	rr := do(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"task_name": "No property",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Malformed date
	rr = do(t, router, http.MethodPost, "/api/schedules", map[string]any{
		"property_id": "prop-1",
		"task_name":   "Smoke alarm test",
		"category":    "safety",
		"frequency":   "monthly",
		"interval":    1,
		"next_due":    "20/02/2025",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Unknown schedule
	rr = do(t, router, http.MethodGet, "/api/schedules/nope", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestScheduleEndpoints_ListAndStats(t *testing.T) {
	router, _ := newTestRouter(t)

	for _, req := range []map[string]any{
		{"property_id": "prop-1", "task_name": "Smoke alarm test", "category": "safety",
			"frequency": "monthly", "interval": 1, "next_due": "2020-01-01"}, // long overdue
		{"property_id": "prop-2", "task_name": "Gutter clean", "category": "grounds",
			"frequency": "quarterly", "interval": 1, "next_due": "2099-01-01"},
	} {
		rr := do(t, router, http.MethodPost, "/api/schedules", req, nil)
		require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	}

	var list []map[string]any
	rr := do(t, router, http.MethodGet, "/api/schedules?property_id=prop-1", nil, &list)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, list, 1)
	assert.Equal(t, "Smoke alarm test", list[0]["task_name"])

	var overdue []map[string]any
	rr = do(t, router, http.MethodGet, "/api/schedules/overdue", nil, &overdue)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, overdue, 1)
	assert.Equal(t, "Smoke alarm test", overdue[0]["task_name"])

	var stats map[string]any
	rr = do(t, router, http.MethodGet, "/api/schedules/stats", nil, &stats)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 2, stats["total"])
	assert.EqualValues(t, 2, stats["active"])
	assert.EqualValues(t, 1, stats["overdue"])
}

// =============================================================================
// SNAPSHOTS + SWEEP + ALERT LIFECYCLE
// =============================================================================

func TestSweepAndAlertLifecycle(t *testing.T) {
	// GIVEN: An urgent open maintenance request pushed as a snapshot
	// WHEN: A sweep runs
	// THEN: One critical alert is created and walks the lifecycle over HTTP

	router, _ := newTestRouter(t)

	rr := do(t, router, http.MethodPut, "/api/snapshots/maintenance", map[string]any{
		"id": "mr-1", "property_id": "prop-1", "address": "1 Main St",
		"title": "Burst pipe", "urgent": true, "open": true,
	}, nil)
	require.Equal(t, http.StatusNoContent, rr.Code, rr.Body.String())

	var sweep map[string]any
	rr = do(t, router, http.MethodPost, "/api/alerts/sweep", map[string]any{"as_of": "2025-06-01"}, &sweep)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.EqualValues(t, 1, sweep["created"])

	// A second sweep refreshes rather than duplicating
	rr = do(t, router, http.MethodPost, "/api/alerts/sweep", map[string]any{"as_of": "2025-06-02"}, &sweep)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 0, sweep["created"])
	assert.EqualValues(t, 1, sweep["refreshed"])

	var list []map[string]any
	rr = do(t, router, http.MethodGet, "/api/alerts?status=active", nil, &list)
	require.Equal(t, http.StatusOK, rr.Code)
	require.Len(t, list, 1)
	id := list[0]["id"].(string)
	assert.Equal(t, "maintenance_due", list[0]["type"])
	assert.Equal(t, "critical", list[0]["severity"])

	// Acknowledge requires an actor
	rr = do(t, router, http.MethodPost, "/api/alerts/"+id+"/acknowledge", map[string]any{}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	var acked map[string]any
	rr = do(t, router, http.MethodPost, "/api/alerts/"+id+"/acknowledge", map[string]any{"actor": "tess"}, &acked)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "acknowledged", acked["status"])
	assert.Equal(t, "tess", acked["acknowledged_by"])

	// Dismiss after acknowledge is an invalid transition
	rr = do(t, router, http.MethodPost, "/api/alerts/"+id+"/dismiss", nil, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var resolved map[string]any
	rr = do(t, router, http.MethodPost, "/api/alerts/"+id+"/resolve", map[string]any{"actor": "sam"}, &resolved)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "resolved", resolved["status"])

	var stats map[string]any
	rr = do(t, router, http.MethodGet, "/api/alerts/stats", nil, &stats)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 0, stats["active"])

	rr = do(t, router, http.MethodGet, "/api/alerts/missing", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestSweep_BadAsOfDate(t *testing.T) {
	router, _ := newTestRouter(t)

	rr := do(t, router, http.MethodPost, "/api/alerts/sweep", map[string]any{"as_of": "June 1"}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestSnapshotEndpoints_Validation(t *testing.T) {
	router, _ := newTestRouter(t)

	// Missing required name
	rr := do(t, router, http.MethodPut, "/api/snapshots/documents", map[string]any{
		"id": "doc-1", "owner_kind": "property", "owner_id": "prop-1",
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)

	// Malformed amount
	rr = do(t, router, http.MethodPut, "/api/snapshots/payments", map[string]any{
		"id": "pay-1", "participant_id": "part-1", "participant_name": "Alex Chen",
		"amount": "twelve dollars", "expected_date": "2025-05-15", "outstanding": true,
	}, nil)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

// =============================================================================
// PRACTICES
// =============================================================================

func TestPracticeEndpoints_FullFlow(t *testing.T) {
	router, _ := newTestRouter(t)

	var created map[string]any
	rr := do(t, router, http.MethodPost, "/api/practices", map[string]any{
		"participant_id":       "part-1",
		"property_id":          "prop-1",
		"practice_type":        "environmental",
		"description":          "Door sensor on bedroom exit",
		"authorised_by":        "Dr Reed",
		"authorisation_date":   "2025-01-01",
		"authorisation_expiry": "2099-12-31",
		"is_authorised":        true,
		"start_date":           "2025-01-05",
		"review_frequency":     "quarterly",
		"next_review":          "2099-04-01",
	}, &created)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := created["id"].(string)
	assert.Equal(t, "active", created["status"])
	assert.Equal(t, false, created["is_unauthorised"])

	// Conduct a review: next review advances one quarter from the review date
	var reviewed map[string]any
	rr = do(t, router, http.MethodPost, "/api/practices/"+id+"/review", map[string]any{
		"review_date": "2025-04-10",
		"notes":       "reduction strategy working",
	}, &reviewed)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "2025-07-10", reviewed["next_review"])
	assert.Equal(t, "2025-04-10", reviewed["last_review"])

	// Log an incident
	var incident map[string]any
	rr = do(t, router, http.MethodPost, "/api/practices/"+id+"/incidents", map[string]any{
		"date":           "2025-02-03",
		"time":           "14:30",
		"duration":       15,
		"implemented_by": "support worker",
		"trigger":        "attempted exit during meal prep",
	}, &incident)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	assert.Equal(t, id, incident["practice_id"])

	var incidents []map[string]any
	rr = do(t, router, http.MethodGet, "/api/practices/"+id+"/incidents", nil, &incidents)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Len(t, incidents, 1)

	// Cease, then verify further events conflict
	var ceased map[string]any
	rr = do(t, router, http.MethodPost, "/api/practices/"+id+"/status", map[string]any{"event": "cease"}, &ceased)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "ceased", ceased["status"])

	rr = do(t, router, http.MethodPost, "/api/practices/"+id+"/status", map[string]any{"event": "expire"}, nil)
	assert.Equal(t, http.StatusConflict, rr.Code)

	var stats map[string]any
	rr = do(t, router, http.MethodGet, "/api/practices/stats", nil, &stats)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.EqualValues(t, 1, stats["total"])
	assert.EqualValues(t, 0, stats["active"])
}

func TestPracticeEndpoints_PartialUpdate(t *testing.T) {
	router, _ := newTestRouter(t)

	var created map[string]any
	rr := do(t, router, http.MethodPost, "/api/practices", map[string]any{
		"participant_id":       "part-1",
		"property_id":          "prop-1",
		"practice_type":        "chemical",
		"authorisation_date":   "2025-01-01",
		"authorisation_expiry": "2099-12-31",
		"is_authorised":        true,
		"start_date":           "2025-01-05",
		"review_frequency":     "annually",
		"next_review":          "2099-01-01",
	}, &created)
	require.Equal(t, http.StatusCreated, rr.Code, rr.Body.String())
	id := created["id"].(string)

	var updated map[string]any
	rr = do(t, router, http.MethodPut, "/api/practices/"+id, map[string]any{
		"description":           "PRN medication protocol",
		"ndis_reportable":       true,
		"ndis_reported_date":    "2025-02-01",
		"ndis_reference_number": "NDIS-4417",
	}, &updated)
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.Equal(t, "PRN medication protocol", updated["description"])
	assert.Equal(t, true, updated["ndis_reportable"])
	assert.Equal(t, "2025-02-01", updated["ndis_reported_date"])
	// Untouched fields survive
	assert.Equal(t, "chemical", updated["practice_type"])
	assert.Equal(t, "2099-01-01", updated["next_review"])
}
