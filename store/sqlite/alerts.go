package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/haven/compliance-engine/engine"
)

// =============================================================================
// ALERT STORE (engine.AlertStore interface)
// =============================================================================

type alertStore struct{ *Store }

const alertColumns = `id, alert_type, severity, status, entity_kind, entity_id,
	title, message, trigger_date, due_date,
	acknowledged_by, acknowledged_at, resolved_by, resolved_at,
	created_at, updated_at`

// CreateIfAbsent inserts the alert unless its open dedupe key is taken.
// The partial unique index idx_alerts_open_key makes the check-and-insert
// atomic; a constraint violation maps to engine.ErrDuplicateAlert.
func (s *alertStore) CreateIfAbsent(ctx context.Context, a engine.Alert) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO alerts
		(id, alert_type, severity, status, entity_kind, entity_id,
		 title, message, trigger_date, due_date,
		 acknowledged_by, acknowledged_at, resolved_by, resolved_at,
		 created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		a.ID, a.Type, a.Severity, a.Status, a.Entity.Kind, a.Entity.ID,
		a.Title, a.Message, formatDate(a.TriggerDate), formatDatePtr(a.DueDate),
		nullString(a.AcknowledgedBy), formatTimePtr(a.AcknowledgedAt),
		nullString(a.ResolvedBy), formatTimePtr(a.ResolvedAt),
		formatTime(a.CreatedAt), formatTime(a.UpdatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return engine.ErrDuplicateAlert
		}
		return fmt.Errorf("failed to insert alert: %w", err)
	}
	return nil
}

// Get retrieves an alert by ID.
func (s *alertStore) Get(ctx context.Context, id engine.AlertID) (*engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)

	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "alert", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}
	return a, nil
}

// List returns alerts matching the filter, severity rank then newest first.
func (s *alertStore) List(ctx context.Context, f engine.AlertFilter) ([]engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + alertColumns + " FROM alerts WHERE 1=1"
	var args []any
	if f.Status != nil {
		query += " AND status = ?"
		args = append(args, *f.Status)
	}
	if f.Severity != nil {
		query += " AND severity = ?"
		args = append(args, *f.Severity)
	}
	if f.Type != nil {
		query += " AND alert_type = ?"
		args = append(args, *f.Type)
	}
	if f.Entity != nil {
		query += " AND entity_kind = ? AND entity_id = ?"
		args = append(args, f.Entity.Kind, f.Entity.ID)
	}
	query += `
		ORDER BY CASE severity
			WHEN 'critical' THEN 0
			WHEN 'warning' THEN 1
			ELSE 2 END ASC,
		created_at DESC
	`

	return s.queryAlerts(ctx, query, args...)
}

// ListOpen returns all active and acknowledged alerts.
func (s *alertStore) ListOpen(ctx context.Context) ([]engine.Alert, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT " + alertColumns + ` FROM alerts
		WHERE status IN ('active', 'acknowledged')`

	return s.queryAlerts(ctx, query)
}

// RefreshActive updates the presentation fields of an alert only while it
// is still active. A non-active row is left untouched.
func (s *alertStore) RefreshActive(ctx context.Context, id engine.AlertID, severity engine.Severity, title, message string, dueDate *engine.Date) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE alerts
		SET severity = ?, title = ?, message = ?, due_date = ?, updated_at = ?
		WHERE id = ? AND status = 'active'`,
		severity, title, message, formatDatePtr(dueDate),
		formatTime(time.Now()), id,
	)
	if err != nil {
		return fmt.Errorf("failed to refresh alert: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		// Either missing or no longer active. Distinguish for the caller.
		var count int
		if err := s.db.QueryRowContext(ctx,
			"SELECT COUNT(*) FROM alerts WHERE id = ?", id).Scan(&count); err != nil {
			return err
		}
		if count == 0 {
			return &engine.NotFoundError{Kind: "alert", ID: string(id)}
		}
	}
	return nil
}

// Apply runs the lifecycle transition inside a database transaction so the
// read-transition-write is atomic against concurrent Apply calls.
func (s *alertStore) Apply(ctx context.Context, id engine.AlertID, event engine.AlertEvent, actor string, at time.Time) (*engine.Alert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	row := tx.QueryRowContext(ctx,
		"SELECT "+alertColumns+" FROM alerts WHERE id = ?", id)
	a, err := scanAlert(row)
	if err == sql.ErrNoRows {
		return nil, &engine.NotFoundError{Kind: "alert", ID: string(id)}
	}
	if err != nil {
		return nil, err
	}

	next, err := engine.NextAlertStatus(a.Status, event)
	if err != nil {
		return nil, err
	}
	a.Status = next
	a.UpdatedAt = at
	switch event {
	case engine.EventAcknowledge:
		a.AcknowledgedBy = actor
		a.AcknowledgedAt = &at
	case engine.EventResolve:
		a.ResolvedBy = actor
		a.ResolvedAt = &at
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE alerts
		SET status = ?, acknowledged_by = ?, acknowledged_at = ?,
		    resolved_by = ?, resolved_at = ?, updated_at = ?
		WHERE id = ?`,
		a.Status,
		nullString(a.AcknowledgedBy), formatTimePtr(a.AcknowledgedAt),
		nullString(a.ResolvedBy), formatTimePtr(a.ResolvedAt),
		formatTime(a.UpdatedAt), id,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to update alert: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}
	return a, nil
}

func (s *alertStore) queryAlerts(ctx context.Context, query string, args ...any) ([]engine.Alert, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query alerts: %w", err)
	}
	defer rows.Close()

	var alerts []engine.Alert
	for rows.Next() {
		a, err := scanAlert(rows)
		if err != nil {
			return nil, err
		}
		alerts = append(alerts, *a)
	}
	return alerts, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAlert(row rowScanner) (*engine.Alert, error) {
	var (
		a              engine.Alert
		triggerDate    string
		dueDate        sql.NullString
		acknowledgedBy sql.NullString
		acknowledgedAt sql.NullString
		resolvedBy     sql.NullString
		resolvedAt     sql.NullString
		createdAt      string
		updatedAt      string
	)

	err := row.Scan(
		&a.ID, &a.Type, &a.Severity, &a.Status, &a.Entity.Kind, &a.Entity.ID,
		&a.Title, &a.Message, &triggerDate, &dueDate,
		&acknowledgedBy, &acknowledgedAt, &resolvedBy, &resolvedAt,
		&createdAt, &updatedAt,
	)
	if err != nil {
		return nil, err
	}

	a.TriggerDate = parseDate(triggerDate)
	a.DueDate = parseDatePtr(dueDate)
	a.AcknowledgedBy = acknowledgedBy.String
	a.AcknowledgedAt = parseTimePtr(acknowledgedAt)
	a.ResolvedBy = resolvedBy.String
	a.ResolvedAt = parseTimePtr(resolvedAt)
	a.CreatedAt = parseTime(createdAt)
	a.UpdatedAt = parseTime(updatedAt)

	return &a, nil
}
