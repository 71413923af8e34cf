package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haven/compliance-engine/evaluate"
)

// =============================================================================
// SNAPSHOT TABLES (evaluate.*Source interfaces)
// =============================================================================
// The engine does not own plans, documents, dwellings, payments, or reactive
// maintenance requests. The surrounding product pushes snapshots of them
// into these tables; the evaluators read them through the source interfaces.

// UpsertPlan replaces a plan snapshot.
func (s *Store) UpsertPlan(ctx context.Context, p evaluate.Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO plan_snapshots
		(id, participant_id, participant_name, end_date, annual_budget, funds_remaining, current, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			participant_id = excluded.participant_id,
			participant_name = excluded.participant_name,
			end_date = excluded.end_date,
			annual_budget = excluded.annual_budget,
			funds_remaining = excluded.funds_remaining,
			current = excluded.current,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.ParticipantID, p.ParticipantName,
		formatDate(p.EndDate), p.AnnualBudget.String(), p.FundsRemaining.String(),
		p.Current, formatTime(time.Now()),
	)
	return err
}

// Plans returns every plan snapshot.
func (s *Store) Plans(ctx context.Context) ([]evaluate.Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, participant_name, end_date, annual_budget, funds_remaining, current
		FROM plan_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query plan snapshots: %w", err)
	}
	defer rows.Close()

	var plans []evaluate.Plan
	for rows.Next() {
		var (
			p              evaluate.Plan
			endDate        string
			annualBudget   string
			fundsRemaining string
		)
		if err := rows.Scan(&p.ID, &p.ParticipantID, &p.ParticipantName,
			&endDate, &annualBudget, &fundsRemaining, &p.Current); err != nil {
			return nil, err
		}
		p.EndDate = parseDate(endDate)
		p.AnnualBudget = parseDecimal(annualBudget)
		p.FundsRemaining = parseDecimal(fundsRemaining)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// UpsertDocument replaces a document snapshot.
func (s *Store) UpsertDocument(ctx context.Context, d evaluate.Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO document_snapshots (id, name, owner_kind, owner_id, expiry, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			owner_kind = excluded.owner_kind,
			owner_id = excluded.owner_id,
			expiry = excluded.expiry,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.Name, d.Owner.Kind, d.Owner.ID,
		formatDatePtr(d.Expiry), formatTime(time.Now()),
	)
	return err
}

// Documents returns every document snapshot.
func (s *Store) Documents(ctx context.Context) ([]evaluate.Document, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, owner_kind, owner_id, expiry
		FROM document_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query document snapshots: %w", err)
	}
	defer rows.Close()

	var docs []evaluate.Document
	for rows.Next() {
		var (
			d      evaluate.Document
			expiry sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.Name, &d.Owner.Kind, &d.Owner.ID, &expiry); err != nil {
			return nil, err
		}
		d.Expiry = parseDatePtr(expiry)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// UpsertDwelling replaces a dwelling snapshot.
func (s *Store) UpsertDwelling(ctx context.Context, d evaluate.Dwelling) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO dwelling_snapshots
		(id, property_id, name, address, max_participants, current_occupancy, vacant_since, is_active, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			name = excluded.name,
			address = excluded.address,
			max_participants = excluded.max_participants,
			current_occupancy = excluded.current_occupancy,
			vacant_since = excluded.vacant_since,
			is_active = excluded.is_active,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		d.ID, d.PropertyID, d.Name, d.Address,
		d.MaxParticipants, d.CurrentOccupancy,
		formatDatePtr(d.VacantSince), d.IsActive, formatTime(time.Now()),
	)
	return err
}

// Dwellings returns every dwelling snapshot.
func (s *Store) Dwellings(ctx context.Context) ([]evaluate.Dwelling, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, name, address, max_participants, current_occupancy, vacant_since, is_active
		FROM dwelling_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query dwelling snapshots: %w", err)
	}
	defer rows.Close()

	var dwellings []evaluate.Dwelling
	for rows.Next() {
		var (
			d           evaluate.Dwelling
			vacantSince sql.NullString
		)
		if err := rows.Scan(&d.ID, &d.PropertyID, &d.Name, &d.Address,
			&d.MaxParticipants, &d.CurrentOccupancy, &vacantSince, &d.IsActive); err != nil {
			return nil, err
		}
		d.VacantSince = parseDatePtr(vacantSince)
		dwellings = append(dwellings, d)
	}
	return dwellings, rows.Err()
}

// UpsertExpectedPayment replaces an expected-payment snapshot.
func (s *Store) UpsertExpectedPayment(ctx context.Context, p evaluate.ExpectedPayment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO payment_snapshots
		(id, participant_id, participant_name, plan_id, amount, expected_date, outstanding, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			participant_id = excluded.participant_id,
			participant_name = excluded.participant_name,
			plan_id = excluded.plan_id,
			amount = excluded.amount,
			expected_date = excluded.expected_date,
			outstanding = excluded.outstanding,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.ParticipantID, p.ParticipantName, nullString(p.PlanID),
		p.Amount.String(), formatDate(p.ExpectedDate), p.Outstanding,
		formatTime(time.Now()),
	)
	return err
}

// ExpectedPayments returns every expected-payment snapshot.
func (s *Store) ExpectedPayments(ctx context.Context) ([]evaluate.ExpectedPayment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, participant_id, participant_name, plan_id, amount, expected_date, outstanding
		FROM payment_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query payment snapshots: %w", err)
	}
	defer rows.Close()

	var payments []evaluate.ExpectedPayment
	for rows.Next() {
		var (
			p            evaluate.ExpectedPayment
			planID       sql.NullString
			amount       string
			expectedDate string
		)
		if err := rows.Scan(&p.ID, &p.ParticipantID, &p.ParticipantName,
			&planID, &amount, &expectedDate, &p.Outstanding); err != nil {
			return nil, err
		}
		p.PlanID = planID.String
		p.Amount = parseDecimal(amount)
		p.ExpectedDate = parseDate(expectedDate)
		payments = append(payments, p)
	}
	return payments, rows.Err()
}

// UpsertMaintenanceRequest replaces a reactive maintenance snapshot.
func (s *Store) UpsertMaintenanceRequest(ctx context.Context, r evaluate.MaintenanceRequest) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO maintenance_snapshots
		(id, property_id, dwelling_id, address, title, urgent, open, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			property_id = excluded.property_id,
			dwelling_id = excluded.dwelling_id,
			address = excluded.address,
			title = excluded.title,
			urgent = excluded.urgent,
			open = excluded.open,
			updated_at = excluded.updated_at
	`

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.PropertyID, nullString(r.DwellingID), r.Address,
		r.Title, r.Urgent, r.Open, formatTime(time.Now()),
	)
	return err
}

// MaintenanceRequests returns every reactive maintenance snapshot.
func (s *Store) MaintenanceRequests(ctx context.Context) ([]evaluate.MaintenanceRequest, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, property_id, dwelling_id, address, title, urgent, open
		FROM maintenance_snapshots`)
	if err != nil {
		return nil, fmt.Errorf("failed to query maintenance snapshots: %w", err)
	}
	defer rows.Close()

	var requests []evaluate.MaintenanceRequest
	for rows.Next() {
		var (
			r          evaluate.MaintenanceRequest
			dwellingID sql.NullString
		)
		if err := rows.Scan(&r.ID, &r.PropertyID, &dwellingID, &r.Address,
			&r.Title, &r.Urgent, &r.Open); err != nil {
			return nil, err
		}
		r.DwellingID = dwellingID.String
		requests = append(requests, r)
	}
	return requests, rows.Err()
}
