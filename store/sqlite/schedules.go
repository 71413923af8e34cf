package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/schedule"
)

// =============================================================================
// SCHEDULE STORE (schedule.Store interface)
// =============================================================================

type scheduleStore struct{ *Store }

const scheduleColumns = `id, property_id, dwelling_id, task_name, description,
	category, frequency, interval, next_due, last_completed, is_active,
	estimated_cost, actual_cost, contractor_name, notes, created_at, updated_at`

// Insert adds a new schedule.
func (s *scheduleStore) Insert(ctx context.Context, sc schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO schedules
		(id, property_id, dwelling_id, task_name, description,
		 category, frequency, interval, next_due, last_completed, is_active,
		 estimated_cost, actual_cost, contractor_name, notes, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		sc.ID, sc.PropertyID, nullString(sc.DwellingID), sc.TaskName, sc.Description,
		sc.Category, sc.Frequency, sc.Interval,
		formatDate(sc.NextDue), formatDatePtr(sc.LastCompleted), sc.IsActive,
		formatDecimalPtr(sc.EstimatedCost), formatDecimalPtr(sc.ActualCost),
		sc.ContractorName, sc.Notes,
		formatTime(sc.CreatedAt), formatTime(sc.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("failed to insert schedule: %w", err)
	}
	return nil
}

// Get retrieves a schedule by ID.
func (s *scheduleStore) Get(ctx context.Context, id string) (*schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+scheduleColumns+" FROM schedules WHERE id = ?", id)

	sc, err := scanSchedule(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "schedule", ID: id}
	}
	if err != nil {
		return nil, err
	}
	return sc, nil
}

// Update replaces a schedule row.
func (s *scheduleStore) Update(ctx context.Context, sc schedule.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE schedules
		SET property_id = ?, dwelling_id = ?, task_name = ?, description = ?,
		    category = ?, frequency = ?, interval = ?,
		    next_due = ?, last_completed = ?, is_active = ?,
		    estimated_cost = ?, actual_cost = ?, contractor_name = ?, notes = ?,
		    updated_at = ?
		WHERE id = ?`,
		sc.PropertyID, nullString(sc.DwellingID), sc.TaskName, sc.Description,
		sc.Category, sc.Frequency, sc.Interval,
		formatDate(sc.NextDue), formatDatePtr(sc.LastCompleted), sc.IsActive,
		formatDecimalPtr(sc.EstimatedCost), formatDecimalPtr(sc.ActualCost),
		sc.ContractorName, sc.Notes,
		formatTime(sc.UpdatedAt), sc.ID,
	)
	if err != nil {
		return fmt.Errorf("failed to update schedule: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return &engine.NotFoundError{Kind: "schedule", ID: sc.ID}
	}
	return nil
}

// List returns schedules matching the filter, soonest due first.
func (s *scheduleStore) List(ctx context.Context, f schedule.Filter) ([]schedule.Schedule, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + scheduleColumns + " FROM schedules WHERE 1=1"
	var args []any
	if f.ActiveOnly {
		query += " AND is_active = TRUE"
	}
	if f.PropertyID != nil {
		query += " AND property_id = ?"
		args = append(args, *f.PropertyID)
	}
	if f.Category != nil {
		query += " AND category = ?"
		args = append(args, *f.Category)
	}
	if f.Frequency != nil {
		query += " AND frequency = ?"
		args = append(args, *f.Frequency)
	}
	query += " ORDER BY next_due ASC"

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query schedules: %w", err)
	}
	defer rows.Close()

	var schedules []schedule.Schedule
	for rows.Next() {
		sc, err := scanSchedule(rows)
		if err != nil {
			return nil, err
		}
		schedules = append(schedules, *sc)
	}
	return schedules, rows.Err()
}

func scanSchedule(row rowScanner) (*schedule.Schedule, error) {
	var (
		sc            schedule.Schedule
		dwellingID    sql.NullString
		nextDue       string
		lastCompleted sql.NullString
		estimatedCost sql.NullString
		actualCost    sql.NullString
		createdAt     string
		updatedAt     string
	)

	err := row.Scan(
		&sc.ID, &sc.PropertyID, &dwellingID, &sc.TaskName, &sc.Description,
		&sc.Category, &sc.Frequency, &sc.Interval,
		&nextDue, &lastCompleted, &sc.IsActive,
		&estimatedCost, &actualCost, &sc.ContractorName, &sc.Notes,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	sc.DwellingID = dwellingID.String
	sc.NextDue = parseDate(nextDue)
	sc.LastCompleted = parseDatePtr(lastCompleted)
	sc.EstimatedCost = parseDecimalPtr(estimatedCost)
	sc.ActualCost = parseDecimalPtr(actualCost)
	sc.CreatedAt = parseTime(createdAt)
	sc.UpdatedAt = parseTime(updatedAt)

	return &sc, nil
}

// =============================================================================
// MAINTENANCE HISTORY (schedule.HistorySink interface)
// =============================================================================

// RecordCompletion appends a completed-maintenance record.
func (s *Store) RecordCompletion(ctx context.Context, rec schedule.HistoryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO maintenance_history
		(schedule_id, property_id, dwelling_id, task_name, description,
		 category, completed_date, contractor_name, actual_cost, notes, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		rec.ScheduleID, rec.PropertyID, nullString(rec.DwellingID),
		rec.TaskName, rec.Description, rec.Category,
		formatDate(rec.CompletedDate), rec.ContractorName,
		formatDecimalPtr(rec.ActualCost), rec.Notes,
		formatTime(time.Now()),
	)
	if err != nil {
		return fmt.Errorf("failed to record completion: %w", err)
	}
	return nil
}
