/*
handlers.go - HTTP API handlers for the compliance alert engine

PURPOSE:
  Exposes the alert engine via REST API. Handles HTTP request/response,
  JSON serialization and validation, and delegates to domain logic.

ENDPOINTS:
  Alerts:
    GET    /api/alerts                   List alerts (filterable)
    GET    /api/alerts/stats             Dashboard counters
    GET    /api/alerts/{id}              Get one alert
    POST   /api/alerts/{id}/acknowledge  Acknowledge (actor required)
    POST   /api/alerts/{id}/resolve      Resolve (actor required)
    POST   /api/alerts/{id}/dismiss      Dismiss (no actor)
    POST   /api/alerts/sweep             Run a sweep now

  Schedules:
    GET    /api/schedules                List schedules (filterable)
    POST   /api/schedules                Create schedule
    GET    /api/schedules/stats          Dashboard counters
    GET    /api/schedules/due            Due within ?days (default 30)
    GET    /api/schedules/overdue        Past due
    GET    /api/schedules/{id}           Get one schedule
    POST   /api/schedules/{id}/complete  Complete, re-anchor next due
    POST   /api/schedules/{id}/deactivate Soft-retire

  Restrictive practices:
    GET    /api/practices                List practices (filterable)
    POST   /api/practices                Register practice
    GET    /api/practices/stats          Dashboard counters
    GET    /api/practices/{id}           Get one practice
    PUT    /api/practices/{id}           Partial update
    POST   /api/practices/{id}/review    Conduct review
    POST   /api/practices/{id}/status    Lifecycle event
    POST   /api/practices/{id}/incidents Log usage incident
    GET    /api/practices/{id}/incidents List incidents

  Snapshots (pushed by the surrounding product):
    PUT    /api/snapshots/plans
    PUT    /api/snapshots/documents
    PUT    /api/snapshots/dwellings
    PUT    /api/snapshots/payments
    PUT    /api/snapshots/maintenance

ERROR HANDLING:
  Domain errors map to HTTP status via their sentinel:
  - 400: invalid argument (bad dates, missing actor, unknown enums)
  - 404: not found
  - 409: invalid state, invalid lifecycle transition, duplicate alert
  - 500: everything else

SECURITY NOTE:
  Currently NO authentication or authorization. All endpoints are public.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/haven/compliance-engine/alerts"
	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
	"github.com/haven/compliance-engine/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Alerts     *alerts.Service
	Reconciler *alerts.Reconciler
	Schedules  *schedule.Service
	Practices  *practice.Service
	Store      *sqlite.Store
	Log        *logrus.Logger

	validate *validator.Validate
	today    func() engine.Date
}

// NewHandler creates a handler wired to the given services.
func NewHandler(alertSvc *alerts.Service, rec *alerts.Reconciler, schedSvc *schedule.Service, pracSvc *practice.Service, store *sqlite.Store, log *logrus.Logger) *Handler {
	if log == nil {
		log = logrus.New()
	}
	return &Handler{
		Alerts:     alertSvc,
		Reconciler: rec,
		Schedules:  schedSvc,
		Practices:  pracSvc,
		Store:      store,
		Log:        log,
		validate:   validator.New(),
		today:      func() engine.Date { return engine.DateOf(time.Now()) },
	}
}

// =============================================================================
// ALERT HANDLERS
// =============================================================================

// ListAlerts returns alerts matching the query filters.
func (h *Handler) ListAlerts(w http.ResponseWriter, r *http.Request) {
	var f engine.AlertFilter
	q := r.URL.Query()
	if v := q.Get("status"); v != "" {
		status := engine.AlertStatus(v)
		f.Status = &status
	}
	if v := q.Get("severity"); v != "" {
		sev := engine.Severity(v)
		f.Severity = &sev
	}
	if v := q.Get("type"); v != "" {
		t := engine.AlertType(v)
		f.Type = &t
	}
	if kind, id := q.Get("entity_kind"), q.Get("entity_id"); kind != "" && id != "" {
		f.Entity = &engine.EntityRef{Kind: engine.EntityKind(kind), ID: id}
	}

	list, err := h.Alerts.List(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTOs(list))
}

// GetAlert returns a single alert.
func (h *Handler) GetAlert(w http.ResponseWriter, r *http.Request) {
	id := engine.AlertID(chi.URLParam(r, "id"))
	a, err := h.Alerts.Get(r.Context(), id)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTO(*a))
}

// AcknowledgeAlert claims an alert for an actor.
func (h *Handler) AcknowledgeAlert(w http.ResponseWriter, r *http.Request) {
	var req AlertActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.Alerts.Acknowledge(r.Context(), engine.AlertID(chi.URLParam(r, "id")), req.Actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTO(*a))
}

// ResolveAlert closes an alert.
func (h *Handler) ResolveAlert(w http.ResponseWriter, r *http.Request) {
	var req AlertActionRequest
	if !h.decode(w, r, &req) {
		return
	}
	a, err := h.Alerts.Resolve(r.Context(), engine.AlertID(chi.URLParam(r, "id")), req.Actor)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTO(*a))
}

// DismissAlert discards an alert without an actor.
func (h *Handler) DismissAlert(w http.ResponseWriter, r *http.Request) {
	a, err := h.Alerts.Dismiss(r.Context(), engine.AlertID(chi.URLParam(r, "id")))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAlertDTO(*a))
}

// AlertStats returns the dashboard counters.
func (h *Handler) AlertStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Alerts.Stats(r.Context())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	byType := make(map[string]int, len(stats.ByType))
	for t, n := range stats.ByType {
		byType[string(t)] = n
	}
	writeJSON(w, http.StatusOK, AlertStatsDTO{
		Total:    stats.Total,
		Active:   stats.Active,
		Critical: stats.Critical,
		Warning:  stats.Warning,
		Info:     stats.Info,
		ByType:   byType,
	})
}

// RunSweep triggers an immediate sweep, optionally as of a pinned date.
func (h *Handler) RunSweep(w http.ResponseWriter, r *http.Request) {
	today := h.today()
	if r.ContentLength > 0 {
		var req SweepRequest
		if !h.decode(w, r, &req) {
			return
		}
		if req.AsOf != "" {
			d, err := engine.ParseDate(req.AsOf)
			if err != nil {
				h.writeDomainError(w, err)
				return
			}
			today = d
		}
	}

	result, err := h.Reconciler.Reconcile(r.Context(), today)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSweepResultDTO(result))
}

// =============================================================================
// SCHEDULE HANDLERS
// =============================================================================

// ListSchedules returns schedules matching the query filters.
func (h *Handler) ListSchedules(w http.ResponseWriter, r *http.Request) {
	var f schedule.Filter
	q := r.URL.Query()
	if v := q.Get("property_id"); v != "" {
		f.PropertyID = &v
	}
	if v := q.Get("category"); v != "" {
		c := schedule.Category(v)
		f.Category = &c
	}
	if v := q.Get("frequency"); v != "" {
		fr := engine.Frequency(v)
		f.Frequency = &fr
	}
	f.ActiveOnly = q.Get("active_only") == "true"

	list, err := h.Schedules.List(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTOs(list))
}

// CreateSchedule creates a new schedule.
func (h *Handler) CreateSchedule(w http.ResponseWriter, r *http.Request) {
	var req CreateScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	nextDue, err := engine.ParseDate(req.NextDue)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	estimated, err := parseOptionalDecimal(req.EstimatedCost)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	sc, err := h.Schedules.Create(r.Context(), schedule.CreateInput{
		PropertyID:     req.PropertyID,
		DwellingID:     req.DwellingID,
		TaskName:       req.TaskName,
		Description:    req.Description,
		Category:       schedule.Category(req.Category),
		Frequency:      engine.Frequency(req.Frequency),
		Interval:       req.Interval,
		NextDue:        nextDue,
		EstimatedCost:  estimated,
		ContractorName: req.ContractorName,
		Notes:          req.Notes,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toScheduleDTO(*sc))
}

// GetSchedule returns a single schedule.
func (h *Handler) GetSchedule(w http.ResponseWriter, r *http.Request) {
	sc, err := h.Schedules.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(*sc))
}

// CompleteSchedule marks a schedule done and advances its next due date.
func (h *Handler) CompleteSchedule(w http.ResponseWriter, r *http.Request) {
	var req CompleteScheduleRequest
	if !h.decode(w, r, &req) {
		return
	}

	completed, err := engine.ParseDate(req.CompletedDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	actual, err := parseOptionalDecimal(req.ActualCost)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	sc, err := h.Schedules.Complete(r.Context(), chi.URLParam(r, "id"), completed, actual, req.Notes, req.EmitHistory)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTO(*sc))
}

// DeactivateSchedule soft-retires a schedule.
func (h *Handler) DeactivateSchedule(w http.ResponseWriter, r *http.Request) {
	if err := h.Schedules.Deactivate(r.Context(), chi.URLParam(r, "id")); err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SchedulesDue returns active schedules due within ?days (default 30).
func (h *Handler) SchedulesDue(w http.ResponseWriter, r *http.Request) {
	days := 30
	if v := r.URL.Query().Get("days"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, "days must be a non-negative integer", err)
			return
		}
		days = n
	}

	list, err := h.Schedules.DueWithin(r.Context(), h.today(), days)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTOs(list))
}

// SchedulesOverdue returns active schedules past their due date.
func (h *Handler) SchedulesOverdue(w http.ResponseWriter, r *http.Request) {
	list, err := h.Schedules.Overdue(r.Context(), h.today())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toScheduleDTOs(list))
}

// ScheduleStats returns the schedule dashboard counters.
func (h *Handler) ScheduleStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Schedules.Stats(r.Context(), h.today(), 30)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	byCategory := make(map[string]int, len(stats.ByCategory))
	for c, n := range stats.ByCategory {
		byCategory[string(c)] = n
	}
	byFrequency := make(map[string]int, len(stats.ByFrequency))
	for fr, n := range stats.ByFrequency {
		byFrequency[string(fr)] = n
	}
	writeJSON(w, http.StatusOK, ScheduleStatsDTO{
		Total:       stats.Total,
		Active:      stats.Active,
		Inactive:    stats.Inactive,
		Overdue:     stats.Overdue,
		DueWithin:   stats.DueWithin,
		ByCategory:  byCategory,
		ByFrequency: byFrequency,
	})
}

// =============================================================================
// PRACTICE HANDLERS
// =============================================================================

// ListPractices returns practices matching the query filters.
func (h *Handler) ListPractices(w http.ResponseWriter, r *http.Request) {
	var f practice.Filter
	q := r.URL.Query()
	if v := q.Get("participant_id"); v != "" {
		f.ParticipantID = &v
	}
	if v := q.Get("property_id"); v != "" {
		f.PropertyID = &v
	}
	if v := q.Get("status"); v != "" {
		st := practice.Status(v)
		f.Status = &st
	}

	list, err := h.Practices.List(r.Context(), f)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	today := h.today()
	dtos := make([]PracticeDTO, len(list))
	for i, p := range list {
		dtos[i] = toPracticeDTO(p, today)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreatePractice registers a new practice.
func (h *Handler) CreatePractice(w http.ResponseWriter, r *http.Request) {
	var req CreatePracticeRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := practice.CreateInput{
		ParticipantID:          req.ParticipantID,
		PropertyID:             req.PropertyID,
		PracticeType:           practice.Type(req.PracticeType),
		Description:            req.Description,
		AuthorisedBy:           req.AuthorisedBy,
		IsAuthorised:           req.IsAuthorised,
		BehaviourSupportPlanID: req.BehaviourSupportPlanID,
		ImplementedBy:          req.ImplementedBy,
		ReviewFrequency:        practice.ReviewFrequency(req.ReviewFrequency),
		ReductionStrategy:      req.ReductionStrategy,
		NDISReportable:         req.NDISReportable,
		CreatedBy:              req.CreatedBy,
	}

	var err error
	if in.AuthorisationDate, err = engine.ParseDate(req.AuthorisationDate); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.AuthorisationExpiry, err = engine.ParseDate(req.AuthorisationExpiry); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.StartDate, err = engine.ParseDate(req.StartDate); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.NextReview, err = engine.ParseDate(req.NextReview); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.EndDate, err = parseOptionalDate(req.EndDate); err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.Practices.Create(r.Context(), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toPracticeDTO(*p, h.today()))
}

// GetPractice returns a single practice.
func (h *Handler) GetPractice(w http.ResponseWriter, r *http.Request) {
	p, err := h.Practices.Get(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPracticeDTO(*p, h.today()))
}

// UpdatePractice applies partial field updates.
func (h *Handler) UpdatePractice(w http.ResponseWriter, r *http.Request) {
	var req UpdatePracticeRequest
	if !h.decode(w, r, &req) {
		return
	}

	in := practice.UpdateInput{
		Description:         req.Description,
		AuthorisedBy:        req.AuthorisedBy,
		IsAuthorised:        req.IsAuthorised,
		ImplementedBy:       req.ImplementedBy,
		ReductionStrategy:   req.ReductionStrategy,
		NDISReportable:      req.NDISReportable,
		NDISReferenceNumber: req.NDISReferenceNumber,
	}
	if req.ReviewFrequency != nil {
		rf := practice.ReviewFrequency(*req.ReviewFrequency)
		in.ReviewFrequency = &rf
	}

	var err error
	if in.AuthorisationDate, err = parseOptionalDate(strOrEmpty(req.AuthorisationDate)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.AuthorisationExpiry, err = parseOptionalDate(strOrEmpty(req.AuthorisationExpiry)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.EndDate, err = parseOptionalDate(strOrEmpty(req.EndDate)); err != nil {
		h.writeDomainError(w, err)
		return
	}
	if in.NDISReportedDate, err = parseOptionalDate(strOrEmpty(req.NDISReportedDate)); err != nil {
		h.writeDomainError(w, err)
		return
	}

	p, err := h.Practices.Update(r.Context(), chi.URLParam(r, "id"), in)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPracticeDTO(*p, h.today()))
}

// ReviewPractice records a completed review.
func (h *Handler) ReviewPractice(w http.ResponseWriter, r *http.Request) {
	var req ReviewPracticeRequest
	if !h.decode(w, r, &req) {
		return
	}

	reviewDate, err := engine.ParseDate(req.ReviewDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	var event *practice.Event
	if req.Event != "" {
		e := practice.Event(req.Event)
		event = &e
	}

	p, err := h.Practices.ConductReview(r.Context(), chi.URLParam(r, "id"), reviewDate, req.Notes, event)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPracticeDTO(*p, h.today()))
}

// ChangePracticeStatus applies a lifecycle event.
func (h *Handler) ChangePracticeStatus(w http.ResponseWriter, r *http.Request) {
	var req ChangePracticeStatusRequest
	if !h.decode(w, r, &req) {
		return
	}

	p, err := h.Practices.ChangeStatus(r.Context(), chi.URLParam(r, "id"), practice.Event(req.Event))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPracticeDTO(*p, h.today()))
}

// LogIncident records one usage of a practice.
func (h *Handler) LogIncident(w http.ResponseWriter, r *http.Request) {
	var req LogIncidentRequest
	if !h.decode(w, r, &req) {
		return
	}

	date, err := engine.ParseDate(req.Date)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	inc, err := h.Practices.LogIncident(r.Context(), practice.Incident{
		PracticeID:          chi.URLParam(r, "id"),
		Date:                date,
		Time:                req.Time,
		Duration:            req.Duration,
		ImplementedBy:       req.ImplementedBy,
		Trigger:             req.Trigger,
		ParticipantResponse: req.ParticipantResponse,
		Debrief:             req.Debrief,
		Injuries:            req.Injuries,
		InjuryDetails:       req.InjuryDetails,
		WitnessedBy:         req.WitnessedBy,
		CreatedBy:           req.CreatedBy,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toIncidentDTO(*inc))
}

// ListIncidents returns a practice's incidents, newest first.
func (h *Handler) ListIncidents(w http.ResponseWriter, r *http.Request) {
	list, err := h.Practices.Incidents(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	dtos := make([]IncidentDTO, len(list))
	for i, inc := range list {
		dtos[i] = toIncidentDTO(inc)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// PracticeStats returns the register dashboard counters.
func (h *Handler) PracticeStats(w http.ResponseWriter, r *http.Request) {
	stats, err := h.Practices.Stats(r.Context(), h.today())
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, PracticeStatsDTO{
		Total:                  stats.Total,
		Active:                 stats.Active,
		ReviewsOverdue:         stats.ReviewsOverdue,
		AuthorisationsExpiring: stats.AuthorisationsExpiring,
		Unauthorised:           stats.Unauthorised,
		Unreported:             stats.Unreported,
	})
}

// =============================================================================
// HELPERS
// =============================================================================

// decode parses and validates a JSON request body. Writes the error
// response itself and returns false on failure.
func (h *Handler) decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		writeError(w, http.StatusBadRequest, "Validation failed", err)
		return false
	}
	return true
}

// writeDomainError maps domain sentinels onto HTTP status codes.
func (h *Handler) writeDomainError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, engine.ErrInvalidArgument):
		writeError(w, http.StatusBadRequest, err.Error(), nil)
	case errors.Is(err, engine.ErrNotFound):
		writeError(w, http.StatusNotFound, err.Error(), nil)
	case errors.Is(err, engine.ErrInvalidTransition),
		errors.Is(err, engine.ErrInvalidState),
		errors.Is(err, engine.ErrDuplicateAlert):
		writeError(w, http.StatusConflict, err.Error(), nil)
	default:
		h.Log.WithError(err).Error("request failed")
		writeError(w, http.StatusInternalServerError, "Internal error", err)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string, err error) {
	resp := ErrorResponse{Error: msg}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}

func parseOptionalDate(s string) (*engine.Date, error) {
	if s == "" {
		return nil, nil
	}
	d, err := engine.ParseDate(s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func parseOptionalDecimal(s string) (*decimal.Decimal, error) {
	if s == "" {
		return nil, nil
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return nil, fmt.Errorf("%w: invalid amount %q", engine.ErrInvalidArgument, s)
	}
	return &d, nil
}

func strOrEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
