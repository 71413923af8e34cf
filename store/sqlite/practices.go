package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/practice"
)

// =============================================================================
// PRACTICE STORE (practice.Store interface)
// =============================================================================

type practiceStore struct{ *Store }

const practiceColumns = `id, participant_id, property_id, practice_type, description,
	authorised_by, authorisation_date, authorisation_expiry, is_authorised,
	bsp_id, implemented_by, start_date, end_date, status,
	review_frequency, next_review, last_review, review_notes,
	reduction_strategy, ndis_reportable, ndis_reported_date, ndis_reference_number,
	created_by, created_at, updated_at`

// Insert adds a new practice.
func (s *practiceStore) Insert(ctx context.Context, p practice.Practice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO practices
		(id, participant_id, property_id, practice_type, description,
		 authorised_by, authorisation_date, authorisation_expiry, is_authorised,
		 bsp_id, implemented_by, start_date, end_date, status,
		 review_frequency, next_review, last_review, review_notes,
		 reduction_strategy, ndis_reportable, ndis_reported_date, ndis_reference_number,
		 created_by, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		p.ID, p.ParticipantID, p.PropertyID, p.PracticeType, p.Description,
		p.AuthorisedBy, formatDate(p.AuthorisationDate), formatDate(p.AuthorisationExpiry), p.IsAuthorised,
		nullString(p.BehaviourSupportPlanID), p.ImplementedBy,
		formatDate(p.StartDate), formatDatePtr(p.EndDate), p.Status,
		p.ReviewFrequency, formatDate(p.NextReview), formatDatePtr(p.LastReview), p.ReviewNotes,
		p.ReductionStrategy, p.NDISReportable, formatDatePtr(p.NDISReportedDate), p.NDISReferenceNumber,
		p.CreatedBy, formatTime(p.CreatedAt), formatTime(p.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert practice: %w", err)
	}
	return nil
}

// Get retrieves a practice by ID.
func (s *practiceStore) Get(ctx context.Context, id string) (*practice.Practice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+practiceColumns+" FROM practices WHERE id = ?", id)

	p, err := scanPractice(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "restrictive practice", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// Update replaces a practice row.
func (s *practiceStore) Update(ctx context.Context, p practice.Practice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE practices
		SET participant_id = ?, property_id = ?, practice_type = ?, description = ?,
		    authorised_by = ?, authorisation_date = ?, authorisation_expiry = ?, is_authorised = ?,
		    bsp_id = ?, implemented_by = ?, start_date = ?, end_date = ?, status = ?,
		    review_frequency = ?, next_review = ?, last_review = ?, review_notes = ?,
		    reduction_strategy = ?, ndis_reportable = ?, ndis_reported_date = ?, ndis_reference_number = ?,
		    updated_at = ?
		WHERE id = ?`,
		p.ParticipantID, p.PropertyID, p.PracticeType, p.Description,
		p.AuthorisedBy, formatDate(p.AuthorisationDate), formatDate(p.AuthorisationExpiry), p.IsAuthorised,
		nullString(p.BehaviourSupportPlanID), p.ImplementedBy,
		formatDate(p.StartDate), formatDatePtr(p.EndDate), p.Status,
		p.ReviewFrequency, formatDate(p.NextReview), formatDatePtr(p.LastReview), p.ReviewNotes,
		p.ReductionStrategy, p.NDISReportable, formatDatePtr(p.NDISReportedDate), p.NDISReferenceNumber,
		formatTime(p.UpdatedAt), p.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update practice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &engine.NotFoundError{Kind: "restrictive practice", ID: p.ID}
	}
	return nil
}

// List returns practices matching the filter, next review soonest first.
func (s *practiceStore) List(ctx context.Context, f practice.Filter) ([]practice.Practice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + practiceColumns + " FROM practices WHERE 1=1"
	var args []any
	if f.ParticipantID != nil {
		query += " AND participant_id = ?"
		args = append(args, *f.ParticipantID)
	}
	if f.PropertyID != nil {
		query += " AND property_id = ?"
		args = append(args, *f.PropertyID)
	}
	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, *f.Status)
	}
	query += " ORDER BY next_review ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query practices: %w", err)
	}
	defer rows.Close()

	var practices []practice.Practice
	for rows.Next() {
		p, err := scanPractice(rows)
		if err != nil {
			return nil, err
		}
		practices = append(practices, *p)
	}
	return practices, rows.Err()
}

func scanPractice(row rowScanner) (*practice.Practice, error) {
	var (
		p                 practice.Practice
		authorisationDate string
		authorisationExp  string
		bspID             sql.NullString
		startDate         string
		endDate           sql.NullString
		nextReview        string
		lastReview        sql.NullString
		ndisReportedDate  sql.NullString
		createdAt         string
		updatedAt         string
	)

	err := row.Scan(
		&p.ID, &p.ParticipantID, &p.PropertyID, &p.PracticeType, &p.Description,
		&p.AuthorisedBy, &authorisationDate, &authorisationExp, &p.IsAuthorised,
		&bspID, &p.ImplementedBy, &startDate, &endDate, &p.Status,
		&p.ReviewFrequency, &nextReview, &lastReview, &p.ReviewNotes,
		&p.ReductionStrategy, &p.NDISReportable, &ndisReportedDate, &p.NDISReferenceNumber,
		&p.CreatedBy, &createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	p.AuthorisationDate = parseDate(authorisationDate)
	p.AuthorisationExpiry = parseDate(authorisationExp)
	p.BehaviourSupportPlanID = bspID.String
	p.StartDate = parseDate(startDate)
	p.EndDate = parseDatePtr(endDate)
	p.NextReview = parseDate(nextReview)
	p.LastReview = parseDatePtr(lastReview)
	p.NDISReportedDate = parseDatePtr(ndisReportedDate)
	p.CreatedAt = parseTime(createdAt)
	p.UpdatedAt = parseTime(updatedAt)

	return &p, nil
}

// =============================================================================
// INCIDENTS
// =============================================================================

// InsertIncident appends a usage incident for a practice.
func (s *practiceStore) InsertIncident(ctx context.Context, inc practice.Incident) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO practice_incidents
		(id, practice_id, date, time, duration, implemented_by, incident_trigger,
		 participant_response, debrief, injuries, injury_details, witnessed_by,
		 created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		inc.ID, inc.PracticeID, formatDate(inc.Date), inc.Time, inc.Duration,
		inc.ImplementedBy, inc.Trigger, inc.ParticipantResponse, inc.Debrief,
		inc.Injuries, inc.InjuryDetails, inc.WitnessedBy,
		inc.CreatedBy, formatTime(inc.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert incident: %w", err)
	}
	return nil
}

// ListIncidents returns incidents for a practice, newest first.
func (s *practiceStore) ListIncidents(ctx context.Context, practiceID string) ([]practice.Incident, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT id, practice_id, date, time, duration, implemented_by, incident_trigger,
		       participant_response, debrief, injuries, injury_details, witnessed_by,
		       created_by, created_at
		FROM practice_incidents
		WHERE practice_id = ?
		ORDER BY date DESC, created_at DESC
	`

	rows, err := s.db.QueryContext(ctx, query, practiceID)
	if err != nil {
		return nil, fmt.Errorf("failed to query incidents: %w", err)
	}
	defer rows.Close()

	var incidents []practice.Incident
	for rows.Next() {
		var (
			inc       practice.Incident
			date      string
			createdAt string
		)
		if err := rows.Scan(
			&inc.ID, &inc.PracticeID, &date, &inc.Time, &inc.Duration,
			&inc.ImplementedBy, &inc.Trigger, &inc.ParticipantResponse, &inc.Debrief,
			&inc.Injuries, &inc.InjuryDetails, &inc.WitnessedBy,
			&inc.CreatedBy, &createdAt,
		); err != nil {
			return nil, err
		}
		inc.Date = parseDate(date)
		inc.CreatedAt = parseTime(createdAt)
		incidents = append(incidents, inc)
	}
	return incidents, rows.Err()
}
