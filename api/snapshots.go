package api

import (
	"net/http"

	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/evaluate"
)

// =============================================================================
// SNAPSHOT HANDLERS
// =============================================================================
// The surrounding product pushes entity snapshots here; the evaluators read
// them on the next sweep. All upserts are idempotent on snapshot ID.

// UpsertPlanSnapshot replaces one plan snapshot.
func (h *Handler) UpsertPlanSnapshot(w http.ResponseWriter, r *http.Request) {
	var req PlanSnapshotRequest
	if !h.decode(w, r, &req) {
		return
	}

	endDate, err := engine.ParseDate(req.EndDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	budget, err := decimal.NewFromString(req.AnnualBudget)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid annual_budget", err)
		return
	}
	remaining, err := decimal.NewFromString(req.FundsRemaining)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid funds_remaining", err)
		return
	}

	err = h.Store.UpsertPlan(r.Context(), evaluate.Plan{
		ID:              req.ID,
		ParticipantID:   req.ParticipantID,
		ParticipantName: req.ParticipantName,
		EndDate:         endDate,
		AnnualBudget:    budget,
		FundsRemaining:  remaining,
		Current:         req.Current,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertDocumentSnapshot replaces one document snapshot.
func (h *Handler) UpsertDocumentSnapshot(w http.ResponseWriter, r *http.Request) {
	var req DocumentSnapshotRequest
	if !h.decode(w, r, &req) {
		return
	}

	expiry, err := parseOptionalDate(req.Expiry)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	err = h.Store.UpsertDocument(r.Context(), evaluate.Document{
		ID:     req.ID,
		Name:   req.Name,
		Owner:  engine.EntityRef{Kind: engine.EntityKind(req.OwnerKind), ID: req.OwnerID},
		Expiry: expiry,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertDwellingSnapshot replaces one dwelling snapshot.
func (h *Handler) UpsertDwellingSnapshot(w http.ResponseWriter, r *http.Request) {
	var req DwellingSnapshotRequest
	if !h.decode(w, r, &req) {
		return
	}

	vacantSince, err := parseOptionalDate(req.VacantSince)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}

	err = h.Store.UpsertDwelling(r.Context(), evaluate.Dwelling{
		ID:               req.ID,
		PropertyID:       req.PropertyID,
		Name:             req.Name,
		Address:          req.Address,
		MaxParticipants:  req.MaxParticipants,
		CurrentOccupancy: req.CurrentOccupancy,
		VacantSince:      vacantSince,
		IsActive:         req.IsActive,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertPaymentSnapshot replaces one expected-payment snapshot.
func (h *Handler) UpsertPaymentSnapshot(w http.ResponseWriter, r *http.Request) {
	var req PaymentSnapshotRequest
	if !h.decode(w, r, &req) {
		return
	}

	expectedDate, err := engine.ParseDate(req.ExpectedDate)
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	amount, err := decimal.NewFromString(req.Amount)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid amount", err)
		return
	}

	err = h.Store.UpsertExpectedPayment(r.Context(), evaluate.ExpectedPayment{
		ID:              req.ID,
		ParticipantID:   req.ParticipantID,
		ParticipantName: req.ParticipantName,
		PlanID:          req.PlanID,
		Amount:          amount,
		ExpectedDate:    expectedDate,
		Outstanding:     req.Outstanding,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// UpsertMaintenanceSnapshot replaces one reactive maintenance snapshot.
func (h *Handler) UpsertMaintenanceSnapshot(w http.ResponseWriter, r *http.Request) {
	var req MaintenanceSnapshotRequest
	if !h.decode(w, r, &req) {
		return
	}

	err := h.Store.UpsertMaintenanceRequest(r.Context(), evaluate.MaintenanceRequest{
		ID:         req.ID,
		PropertyID: req.PropertyID,
		DwellingID: req.DwellingID,
		Address:    req.Address,
		Title:      req.Title,
		Urgent:     req.Urgent,
		Open:       req.Open,
	})
	if err != nil {
		h.writeDomainError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
