package recurrence

import (
	"iter"
	"time"
)

// Per-candidate search bounds. Each is a hard cap: when no candidate is found
// within it the sequence ends instead of searching further.
const (
	// weeklyScanDays bounds the day-by-day scan for weekly patterns with
	// explicit weekdays. Intervals above 1 widen the scan to 7*(interval+1)
	// days, the longest gap between two qualifying weeks.
	weeklyScanDays = 14
	// monthlyScan is the number of interval-aligned months examined.
	monthlyScan = 12
	// yearlyScan is the number of interval-aligned years examined.
	yearlyScan = 10
)

// Sequence lazily yields the dates of p that fall strictly after after, in
// ascending order with one date per day. anchor is the pattern's start; the
// interval and occurrence count are measured from it. A zero after means no
// lower bound (the sequence starts at the anchor).
//
// The sequence is pure: ranging over it twice yields the same dates.
func Sequence(p Pattern, anchor, after time.Time) iter.Seq[time.Time] {
	return func(yield func(time.Time) bool) {
		anchor = DateOf(anchor)
		cursor := anchor
		if !after.IsZero() {
			if after = DateOf(after); !cursor.After(after) {
				cursor = AddDays(after, 1)
			}
		}

		limit, capped := p.OccurrenceCount()
		emitted := 0
		if capped {
			emitted = countBefore(p, anchor, cursor, limit)
		}

		s := seeker{p: p, anchor: anchor, windowStart: cursor}
		end, bounded := p.EndDate()
		for {
			if bounded && cursor.After(end) {
				return
			}
			if capped && emitted >= limit {
				return
			}
			next, ok := s.next(cursor)
			if !ok || (bounded && next.After(end)) {
				return
			}
			if !yield(next) {
				return
			}
			emitted++
			cursor = AddDays(next, 1)
		}
	}
}

// NextOccurrences returns up to count dates of p strictly after after.
// Fewer (or zero) dates are returned when the pattern is exhausted.
func NextOccurrences(p Pattern, anchor, after time.Time, count int) []time.Time {
	if count <= 0 {
		return nil
	}
	out := make([]time.Time, 0, min(count, 64))
	for d := range Sequence(p, anchor, after) {
		out = append(out, d)
		if len(out) == count {
			break
		}
	}
	return out
}

// countBefore counts the pattern's dates in [anchor, before), stopping at
// limit. It walks the sequence as seen from the anchor itself so that the
// cap is independent of the caller's window.
func countBefore(p Pattern, anchor, before time.Time, limit int) int {
	if !before.After(anchor) {
		return 0
	}
	s := seeker{p: p, anchor: anchor, windowStart: anchor}
	end, bounded := p.EndDate()
	n := 0
	for cursor := anchor; n < limit; n++ {
		next, ok := s.next(cursor)
		if !ok || !next.Before(before) || (bounded && next.After(end)) {
			break
		}
		cursor = AddDays(next, 1)
	}
	return n
}

// seeker finds the first valid date on or after a cursor.
type seeker struct {
	p           Pattern
	anchor      time.Time
	windowStart time.Time
}

func (s seeker) next(cursor time.Time) (time.Time, bool) {
	switch s.p.freq {
	case Daily:
		return s.nextDaily(cursor), true
	case Weekly:
		if len(s.p.days) == 0 {
			return s.nextWeekly(cursor), true
		}
		return s.nextWeeklyOnDays(cursor)
	case Monthly:
		return s.nextMonthly(cursor)
	case Yearly:
		return s.nextYearly(cursor)
	default:
		return time.Time{}, false
	}
}

func (s seeker) nextDaily(cursor time.Time) time.Time {
	r := daysBetween(s.anchor, cursor) % s.p.interval
	if r == 0 {
		return cursor
	}
	return AddDays(cursor, s.p.interval-r)
}

func (s seeker) nextWeekly(cursor time.Time) time.Time {
	delta := (int(s.anchor.Weekday()) - int(cursor.Weekday()) + 7) % 7
	c := AddDays(cursor, delta)
	if r := (daysBetween(s.anchor, c) / 7) % s.p.interval; r != 0 {
		c = AddDays(c, 7*(s.p.interval-r))
	}
	return c
}

// nextWeeklyOnDays scans day by day for a listed weekday whose week offset
// from the window start is a multiple of the interval.
func (s seeker) nextWeeklyOnDays(cursor time.Time) (time.Time, bool) {
	scan := max(weeklyScanDays, 7*(s.p.interval+1))
	for i := 0; i < scan; i++ {
		c := AddDays(cursor, i)
		if !containsDay(s.p.days, WeekdayOf(c)) {
			continue
		}
		if (daysBetween(s.windowStart, c)/7)%s.p.interval != 0 {
			continue
		}
		return c, true
	}
	return time.Time{}, false
}

func (s seeker) nextMonthly(cursor time.Time) (time.Time, bool) {
	rule := s.p.monthly
	if rule == nil {
		rule = DayOfMonth{Day: s.anchor.Day()}
	}
	step := alignUp(monthsBetween(s.anchor, cursor), s.p.interval)
	for i := 0; i < monthlyScan; i++ {
		year, month := addMonths(s.anchor.Year(), s.anchor.Month(), step+i*s.p.interval)
		c, ok := rule.dateIn(year, month)
		if !ok || c.Before(cursor) {
			continue
		}
		return c, true
	}
	return time.Time{}, false
}

func (s seeker) nextYearly(cursor time.Time) (time.Time, bool) {
	step := alignUp(cursor.Year()-s.anchor.Year(), s.p.interval)
	for i := 0; i < yearlyScan; i++ {
		c := clampDate(s.anchor.Year()+step+i*s.p.interval, s.anchor.Month(), s.anchor.Day())
		if c.Before(cursor) {
			continue
		}
		return c, true
	}
	return time.Time{}, false
}

// alignUp rounds n (>= 0) up to the next multiple of interval.
func alignUp(n, interval int) int {
	if r := n % interval; r != 0 {
		return n + interval - r
	}
	return n
}

func containsDay(days []Weekday, d Weekday) bool {
	for _, x := range days {
		if x == d {
			return true
		}
	}
	return false
}
