package engine

import (
	"fmt"
	"time"
)

// =============================================================================
// RECURRENCE - Calendar-correct next-occurrence calculation
// =============================================================================

// Frequency is the unit of a recurring schedule. Combined with an interval:
// interval=2 + FreqMonthly means every 2 months.
type Frequency string

const (
	FreqWeekly     Frequency = "weekly"
	FreqMonthly    Frequency = "monthly"
	FreqQuarterly  Frequency = "quarterly"
	FreqBiannually Frequency = "biannually"
	FreqAnnually   Frequency = "annually"
)

func (f Frequency) Valid() bool {
	switch f {
	case FreqWeekly, FreqMonthly, FreqQuarterly, FreqBiannually, FreqAnnually:
		return true
	}
	return false
}

// monthsPerCycle returns how many calendar months one cycle spans.
// Zero means the frequency is day-based, not month-based.
func monthsPerCycle(f Frequency) int {
	switch f {
	case FreqMonthly:
		return 1
	case FreqQuarterly:
		return 3
	case FreqBiannually:
		return 6
	case FreqAnnually:
		return 12
	}
	return 0
}

// NextOccurrence returns the next due date after anchor for the given
// frequency and interval. Month-based frequencies use calendar month
// increments: if the anchor's day-of-month does not exist in the target
// month (31 Jan + 1 month), the result clamps to the last valid day of
// that month rather than rolling over.
func NextOccurrence(anchor Date, freq Frequency, interval int) (Date, error) {
	if interval < 1 {
		return Date{}, fmt.Errorf("%w: frequency interval must be >= 1, got %d", ErrInvalidArgument, interval)
	}
	switch freq {
	case FreqWeekly:
		return anchor.AddDays(7 * interval), nil
	case FreqMonthly, FreqQuarterly, FreqBiannually, FreqAnnually:
		return addMonthsClamped(anchor, monthsPerCycle(freq)*interval), nil
	default:
		return Date{}, fmt.Errorf("%w: unknown frequency %q", ErrInvalidArgument, freq)
	}
}

// addMonthsClamped adds months with day-of-month clamping. time.AddDate
// normalizes overflow (Jan 31 + 1 month = Mar 2/3) which is exactly the
// behavior we do not want for due dates.
func addMonthsClamped(d Date, months int) Date {
	total := int(d.Month()) - 1 + months
	year := d.Year() + total/12
	month := time.Month(total%12 + 1)

	day := d.Day()
	if last := daysInMonth(year, month); day > last {
		day = last
	}
	return NewDate(year, month, day)
}

// daysInMonth returns the number of days in the given month.
func daysInMonth(year int, month time.Month) int {
	// Day 0 of the next month is the last day of this month.
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
