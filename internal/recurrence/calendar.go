package recurrence

import "time"

const day = 24 * time.Hour

// DateOf truncates t to its calendar day (as observed in t's own location)
// and returns that day at midnight UTC. Every date produced or compared by
// this package goes through DateOf, so day arithmetic never crosses a DST
// transition.
func DateOf(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (time.Time, error) {
	t, err := time.Parse(time.DateOnly, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// DaysIn returns the number of days in the given month.
func DaysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// AddDays moves a normalized date by n calendar days.
func AddDays(t time.Time, n int) time.Time {
	return t.AddDate(0, 0, n)
}

// daysBetween counts whole days from a to b; both must be normalized.
func daysBetween(a, b time.Time) int {
	return int(b.Sub(a) / day)
}

// monthsBetween counts calendar months from a's month to b's month,
// ignoring the day component.
func monthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

func addMonths(year int, month time.Month, n int) (int, time.Month) {
	idx := year*12 + int(month) - 1 + n
	return idx / 12, time.Month(idx%12 + 1)
}

// clampDate builds (year, month, dayOfMonth), pulling dayOfMonth back to the
// month's last day when the month is shorter.
func clampDate(year int, month time.Month, dayOfMonth int) time.Time {
	if n := DaysIn(year, month); dayOfMonth > n {
		dayOfMonth = n
	}
	return time.Date(year, month, dayOfMonth, 0, 0, 0, 0, time.UTC)
}

func lastDayIn(year int, month time.Month) time.Time {
	return time.Date(year, month, DaysIn(year, month), 0, 0, 0, 0, time.UTC)
}

// nthWeekdayIn finds the nth (1-based) wd in the month. The second result is
// false when the month has fewer than nth such weekdays.
func nthWeekdayIn(year int, month time.Month, wd Weekday, nth int) (time.Time, bool) {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	offset := (int(wd.Time()) - int(first.Weekday()) + 7) % 7
	dom := 1 + offset + (nth-1)*7
	if dom > DaysIn(year, month) {
		return time.Time{}, false
	}
	return time.Date(year, month, dom, 0, 0, 0, 0, time.UTC), true
}

func lastWeekdayIn(year int, month time.Month, wd Weekday) time.Time {
	last := lastDayIn(year, month)
	back := (int(last.Weekday()) - int(wd.Time()) + 7) % 7
	return AddDays(last, -back)
}
