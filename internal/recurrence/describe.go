package recurrence

import (
	"fmt"
	"strings"
)

var ordinals = [...]string{"", "first", "second", "third", "fourth", "fifth"}

var unitNames = map[Frequency][2]string{
	Daily:   {"Daily", "days"},
	Weekly:  {"Weekly", "weeks"},
	Monthly: {"Monthly", "months"},
	Yearly:  {"Yearly", "years"},
}

// Describe renders a short English summary of the pattern, e.g.
// "Every 2 weeks on Monday, Wednesday until Mar 1, 2025".
func Describe(p Pattern) string {
	var b strings.Builder

	names, ok := unitNames[p.freq]
	switch {
	case !ok:
		b.WriteString("Custom schedule")
	case p.interval == 1:
		b.WriteString(names[0])
	default:
		fmt.Fprintf(&b, "Every %d %s", p.interval, names[1])
	}

	if len(p.days) > 0 {
		days := make([]string, len(p.days))
		for i, d := range p.days {
			days[i] = d.String()
		}
		b.WriteString(" on ")
		b.WriteString(strings.Join(days, ", "))
	}
	if p.monthly != nil {
		b.WriteString(" on ")
		b.WriteString(p.monthly.describe())
	}

	if n, ok := p.OccurrenceCount(); ok {
		if n == 1 {
			b.WriteString(" for 1 occurrence")
		} else {
			fmt.Fprintf(&b, " for %d occurrences", n)
		}
	}
	if end, ok := p.EndDate(); ok {
		b.WriteString(" until ")
		b.WriteString(end.Format("Jan 2, 2006"))
	}
	return b.String()
}

func (r DayOfMonth) describe() string {
	return fmt.Sprintf("day %d", r.Day)
}

func (r DayOfMonthWithFallback) describe() string {
	if r.FallbackToLastDay {
		return fmt.Sprintf("day %d, or the last day of shorter months", r.Day)
	}
	return fmt.Sprintf("day %d, skipping shorter months", r.Day)
}

func (r NthWeekdayOfMonth) describe() string {
	return fmt.Sprintf("the %s %s", ordinals[r.Nth], r.Weekday)
}

func (r LastWeekdayOfMonth) describe() string {
	return "the last " + r.Weekday.String()
}

func (LastDayOfMonth) describe() string {
	return "the last day"
}
