package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - Calendar date abstraction (no time component)
// =============================================================================

// Date is a calendar date normalized to midnight UTC. Every piece of engine
// logic that needs "today" takes it as an explicit Date parameter; nothing
// below the API layer reads the wall clock. This keeps classification and
// recurrence arithmetic deterministic and testable with fixed dates.
type Date struct {
	Time time.Time
}

const dateLayout = "2006-01-02"

// NewDate constructs a Date at midnight UTC.
func NewDate(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD string.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: invalid date %q (use YYYY-MM-DD)", ErrInvalidArgument, s)
	}
	return NewDate(t.Year(), t.Month(), t.Day()), nil
}

// DateOf truncates a timestamp to its UTC calendar date.
func DateOf(t time.Time) Date {
	u := t.UTC()
	return NewDate(u.Year(), u.Month(), u.Day())
}

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date {
	t := d.Time.AddDate(0, 0, n)
	return NewDate(t.Year(), t.Month(), t.Day())
}

// DaysBetween returns to - from in whole days.
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// Properties
func (d Date) Year() int         { return d.Time.Year() }
func (d Date) Month() time.Month { return d.Time.Month() }
func (d Date) Day() int          { return d.Time.Day() }
func (d Date) IsZero() bool      { return d.Time.IsZero() }

func (d Date) String() string { return d.Time.Format(dateLayout) }
