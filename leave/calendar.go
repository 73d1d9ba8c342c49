package leave

import "time"

// =============================================================================
// WORKING-DAY CALENDAR
// =============================================================================
//
// Day counts are derived as the inclusive business-day span of a request:
// weekdays between start and end, minus configured holidays. The policy is
// applied uniformly at creation; a caller-supplied count that disagrees is
// an ErrInvalidRequest.

// HolidayCalendar provides holiday lookup for working-day arithmetic.
type HolidayCalendar interface {
	IsHoliday(date time.Time) bool
}

// NoHolidays is the default calendar: weekends only.
type NoHolidays struct{}

func (NoHolidays) IsHoliday(time.Time) bool { return false }

// HolidaySet is a fixed-date calendar keyed by calendar day.
type HolidaySet map[string]struct{}

func NewHolidaySet(dates ...time.Time) HolidaySet {
	s := make(HolidaySet, len(dates))
	for _, d := range dates {
		s[DayOf(d).Format("2006-01-02")] = struct{}{}
	}
	return s
}

func (s HolidaySet) IsHoliday(date time.Time) bool {
	_, ok := s[DayOf(date).Format("2006-01-02")]
	return ok
}

// DayOf truncates t to its calendar day in UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

// IsWorkday reports whether t is a weekday and not a holiday.
func IsWorkday(t time.Time, cal HolidayCalendar) bool {
	if IsWeekend(t) {
		return false
	}
	if cal != nil && cal.IsHoliday(t) {
		return false
	}
	return true
}

// BusinessDays counts working days in [start, end] inclusive.
// Returns 0 when end is before start or the span holds no working day.
func BusinessDays(start, end time.Time, cal HolidayCalendar) int {
	start, end = DayOf(start), DayOf(end)
	days := 0
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if IsWorkday(d, cal) {
			days++
		}
	}
	return days
}
