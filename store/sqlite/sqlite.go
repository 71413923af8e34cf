/*
Package sqlite provides the SQLite-backed implementation of the storage
interfaces.

PURPOSE:
  Implements every persistence interface the engine consumes:
    engine.AlertStore:    Alert rows with the open-key dedupe guarantee
    schedule.Store:       Preventative maintenance schedules
    schedule.HistorySink: Completed-maintenance records
    practice.Store:       Restrictive practices register + incidents
    evaluate.*Source:     Snapshot tables fed by the surrounding product

DEDUPE ENFORCEMENT:
  The at-most-one-open-alert-per-(entity, type) rule is enforced by a
  partial unique index over alerts in status active/acknowledged. Losing
  an insert race surfaces as engine.ErrDuplicateAlert, never as a second
  row.

STORAGE CONVENTIONS:
  Calendar dates:  TEXT, YYYY-MM-DD
  Timestamps:      TEXT, RFC3339 UTC
  Money:           TEXT, decimal string (no floats)

CONCURRENCY:
  Uses sync.RWMutex for thread-safety on top of WAL mode. In production
  with PostgreSQL, database-level concurrency control handles this
  instead.

USAGE:
  store, err := sqlite.New("./data/haven.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - engine/store.go: AlertStore contract
  - store/memory: In-memory implementation for testing
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/haven/compliance-engine/engine"
	"github.com/haven/compliance-engine/practice"
	"github.com/haven/compliance-engine/schedule"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A pooled second connection to ":memory:" would see a different,
	// empty database. One writer is enough under the store mutex anyway.
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// The Get/List/Insert method sets of the three store contracts collide,
// so each is exposed as a typed view over the shared connection.

// Alerts returns the alert persistence view.
func (s *Store) Alerts() engine.AlertStore { return &alertStore{s} }

// Schedules returns the maintenance schedule persistence view.
func (s *Store) Schedules() schedule.Store { return &scheduleStore{s} }

// Practices returns the restrictive practices persistence view.
func (s *Store) Practices() practice.Store { return &practiceStore{s} }

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Alerts
	CREATE TABLE IF NOT EXISTS alerts (
		id TEXT PRIMARY KEY,
		alert_type TEXT NOT NULL,
		severity TEXT NOT NULL,
		status TEXT NOT NULL,
		entity_kind TEXT NOT NULL,
		entity_id TEXT NOT NULL,
		title TEXT NOT NULL,
		message TEXT NOT NULL,
		trigger_date TEXT NOT NULL,
		due_date TEXT,
		acknowledged_by TEXT,
		acknowledged_at TEXT,
		resolved_by TEXT,
		resolved_at TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- CRITICAL: at most one open alert per (entity, type). Resolved and
	-- dismissed rows fall out of the index so the condition can recur as
	-- a fresh alert.
	CREATE UNIQUE INDEX IF NOT EXISTS idx_alerts_open_key
		ON alerts(entity_kind, entity_id, alert_type)
		WHERE status IN ('active', 'acknowledged');

	CREATE INDEX IF NOT EXISTS idx_alerts_status
		ON alerts(status);
	CREATE INDEX IF NOT EXISTS idx_alerts_entity
		ON alerts(entity_kind, entity_id);
	CREATE INDEX IF NOT EXISTS idx_alerts_type
		ON alerts(alert_type);

	-- Preventative maintenance schedules
	CREATE TABLE IF NOT EXISTS schedules (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		dwelling_id TEXT,
		task_name TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL,
		frequency TEXT NOT NULL,
		interval INTEGER NOT NULL DEFAULT 1,
		next_due TEXT NOT NULL,
		last_completed TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		estimated_cost TEXT,
		actual_cost TEXT,
		contractor_name TEXT,
		notes TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_schedules_property
		ON schedules(property_id);
	CREATE INDEX IF NOT EXISTS idx_schedules_next_due
		ON schedules(next_due) WHERE is_active = TRUE;

	-- Completed-maintenance history emitted by schedule completions
	CREATE TABLE IF NOT EXISTS maintenance_history (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		schedule_id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		dwelling_id TEXT,
		task_name TEXT NOT NULL,
		description TEXT,
		category TEXT NOT NULL,
		completed_date TEXT NOT NULL,
		contractor_name TEXT,
		actual_cost TEXT,
		notes TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_history_schedule
		ON maintenance_history(schedule_id);

	-- Restrictive practices register
	CREATE TABLE IF NOT EXISTS practices (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		property_id TEXT NOT NULL,
		practice_type TEXT NOT NULL,
		description TEXT,
		authorised_by TEXT,
		authorisation_date TEXT NOT NULL,
		authorisation_expiry TEXT NOT NULL,
		is_authorised BOOLEAN NOT NULL DEFAULT FALSE,
		bsp_id TEXT,
		implemented_by TEXT,
		start_date TEXT NOT NULL,
		end_date TEXT,
		status TEXT NOT NULL,
		review_frequency TEXT NOT NULL,
		next_review TEXT NOT NULL,
		last_review TEXT,
		review_notes TEXT,
		reduction_strategy TEXT,
		ndis_reportable BOOLEAN NOT NULL DEFAULT FALSE,
		ndis_reported_date TEXT,
		ndis_reference_number TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_practices_participant
		ON practices(participant_id);
	CREATE INDEX IF NOT EXISTS idx_practices_status
		ON practices(status);
	CREATE INDEX IF NOT EXISTS idx_practices_next_review
		ON practices(next_review) WHERE status = 'active';

	-- Practice usage incidents
	CREATE TABLE IF NOT EXISTS practice_incidents (
		id TEXT PRIMARY KEY,
		practice_id TEXT NOT NULL,
		date TEXT NOT NULL,
		time TEXT,
		duration INTEGER DEFAULT 0,
		implemented_by TEXT,
		incident_trigger TEXT,
		participant_response TEXT,
		debrief TEXT,
		injuries BOOLEAN NOT NULL DEFAULT FALSE,
		injury_details TEXT,
		witnessed_by TEXT,
		created_by TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_incidents_practice
		ON practice_incidents(practice_id);

	-- Snapshot tables. The surrounding product upserts these; the
	-- evaluators only read them.
	CREATE TABLE IF NOT EXISTS plan_snapshots (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		participant_name TEXT NOT NULL,
		end_date TEXT NOT NULL,
		annual_budget TEXT NOT NULL,
		funds_remaining TEXT NOT NULL,
		current BOOLEAN NOT NULL DEFAULT FALSE,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS document_snapshots (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		owner_kind TEXT NOT NULL,
		owner_id TEXT NOT NULL,
		expiry TEXT,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS dwelling_snapshots (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		name TEXT NOT NULL,
		address TEXT,
		max_participants INTEGER NOT NULL,
		current_occupancy INTEGER NOT NULL,
		vacant_since TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS payment_snapshots (
		id TEXT PRIMARY KEY,
		participant_id TEXT NOT NULL,
		participant_name TEXT NOT NULL,
		plan_id TEXT,
		amount TEXT NOT NULL,
		expected_date TEXT NOT NULL,
		outstanding BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_payment_snapshots_participant
		ON payment_snapshots(participant_id);

	CREATE TABLE IF NOT EXISTS maintenance_snapshots (
		id TEXT PRIMARY KEY,
		property_id TEXT NOT NULL,
		dwelling_id TEXT,
		address TEXT,
		title TEXT NOT NULL,
		urgent BOOLEAN NOT NULL DEFAULT FALSE,
		open BOOLEAN NOT NULL DEFAULT TRUE,
		updated_at TEXT NOT NULL
	);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Reset clears all data (for testing/demo).
func (s *Store) Reset() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tables := []string{
		"alerts", "schedules", "maintenance_history",
		"practices", "practice_incidents",
		"plan_snapshots", "document_snapshots", "dwelling_snapshots",
		"payment_snapshots", "maintenance_snapshots",
	}
	for _, table := range tables {
		if _, err := s.db.Exec("DELETE FROM " + table); err != nil {
			return err
		}
	}
	return nil
}

// =============================================================================
// SCAN/FORMAT HELPERS
// =============================================================================

func nullString(s string) sql.NullString {
	if s == "" {
		return sql.NullString{}
	}
	return sql.NullString{String: s, Valid: true}
}

func formatDate(d engine.Date) string { return d.String() }

func formatDatePtr(d *engine.Date) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDate(s string) engine.Date {
	d, _ := engine.ParseDate(s)
	return d
}

func parseDatePtr(ns sql.NullString) *engine.Date {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d := parseDate(ns.String)
	return &d
}

func formatTime(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func formatTimePtr(t *time.Time) *string {
	if t == nil {
		return nil
	}
	s := formatTime(*t)
	return &s
}

func parseTime(s string) time.Time {
	t, _ := time.Parse(time.RFC3339, s)
	return t
}

func parseTimePtr(ns sql.NullString) *time.Time {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	t := parseTime(ns.String)
	return &t
}

func formatDecimalPtr(d *decimal.Decimal) *string {
	if d == nil {
		return nil
	}
	s := d.String()
	return &s
}

func parseDecimal(s string) decimal.Decimal {
	d, _ := decimal.NewFromString(s)
	return d
}

func parseDecimalPtr(ns sql.NullString) *decimal.Decimal {
	if !ns.Valid || ns.String == "" {
		return nil
	}
	d := parseDecimal(ns.String)
	return &d
}

func isUniqueConstraintError(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
