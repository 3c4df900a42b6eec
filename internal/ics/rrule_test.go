package ics

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/teambition/rrule-go"

	"chorecal/internal/recurrence"
)

func day(s string) time.Time {
	d, err := recurrence.ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func formatAll(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.UTC().Format(time.DateOnly)
	}
	return out
}

// The engine and rrule-go must agree on every pattern that maps to an RRULE.
func TestToRRule_AgreesWithEngine(t *testing.T) {
	const n = 24
	tests := []struct {
		name    string
		pattern recurrence.Pattern
		anchor  string
	}{
		{"every third day", recurrence.MustNew(recurrence.Daily, recurrence.Every(3)), "2025-01-01"},
		{"biweekly on anchor weekday", recurrence.MustNew(recurrence.Weekly, recurrence.Every(2)), "2025-01-01"},
		{"weekly on mon wed fri", recurrence.MustNew(recurrence.Weekly, recurrence.OnDays(recurrence.Monday, recurrence.Wednesday, recurrence.Friday)), "2025-01-01"},
		{"monthly on the 15th", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.DayOfMonth{Day: 15})), "2025-01-20"},
		{"monthly anchor day", recurrence.MustNew(recurrence.Monthly), "2025-01-15"},
		{"day 31 skipping", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.DayOfMonthWithFallback{Day: 31})), "2025-01-01"},
		{"second tuesday every other month", recurrence.MustNew(recurrence.Monthly, recurrence.Every(2), recurrence.WithMonthly(recurrence.NthWeekdayOfMonth{Weekday: recurrence.Tuesday, Nth: 2})), "2025-01-01"},
		{"fifth monday", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.NthWeekdayOfMonth{Weekday: recurrence.Monday, Nth: 5})), "2025-01-01"},
		{"last friday", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.LastWeekdayOfMonth{Weekday: recurrence.Friday})), "2025-01-01"},
		{"quarterly last day", recurrence.MustNew(recurrence.Monthly, recurrence.Every(3), recurrence.WithMonthly(recurrence.LastDayOfMonth{})), "2024-02-10"},
		{"every other year", recurrence.MustNew(recurrence.Yearly, recurrence.Every(2)), "2025-03-10"},
		{"daily five times", recurrence.MustNew(recurrence.Daily, recurrence.Times(5)), "2025-01-01"},
		{"tuesdays four times from a wednesday", recurrence.MustNew(recurrence.Weekly, recurrence.OnDays(recurrence.Tuesday), recurrence.Times(4)), "2025-01-01"},
		{"monthly until june", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.DayOfMonth{Day: 10}), recurrence.Until(day("2025-06-10"))), "2025-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			anchor := day(tt.anchor)
			opt, err := ToRRule(tt.pattern, anchor)
			require.NoError(t, err)
			r, err := rrule.NewRRule(opt)
			require.NoError(t, err)

			var want []time.Time
			next := r.Iterator()
			for len(want) < n {
				d, ok := next()
				if !ok {
					break
				}
				want = append(want, d)
			}

			got := recurrence.NextOccurrences(tt.pattern, anchor, recurrence.AddDays(anchor, -1), n)
			assert.Equal(t, formatAll(want), formatAll(got), opt.RRuleString())
		})
	}
}

func TestToRRule_NotExpressible(t *testing.T) {
	tests := []struct {
		name    string
		pattern recurrence.Pattern
		anchor  string
	}{
		{"multi-week weekdays", recurrence.MustNew(recurrence.Weekly, recurrence.Every(2), recurrence.OnDays(recurrence.Monday)), "2025-01-01"},
		{"clamped day", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.DayOfMonth{Day: 31})), "2025-01-01"},
		{"fallback to last day", recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.DayOfMonthWithFallback{Day: 30, FallbackToLastDay: true})), "2025-01-01"},
		{"clamped anchor day", recurrence.MustNew(recurrence.Monthly), "2025-01-31"},
		{"leap day yearly", recurrence.MustNew(recurrence.Yearly), "2024-02-29"},
		{"custom", recurrence.MustNew(recurrence.Custom), "2025-01-01"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ToRRule(tt.pattern, day(tt.anchor))
			assert.ErrorIs(t, err, ErrNotExpressible)
		})
	}
}

func TestRRuleString(t *testing.T) {
	s, err := RRuleString(recurrence.MustNew(recurrence.Monthly, recurrence.Every(2),
		recurrence.WithMonthly(recurrence.NthWeekdayOfMonth{Weekday: recurrence.Tuesday, Nth: 2}),
		recurrence.Times(6)), day("2025-01-01"))
	require.NoError(t, err)
	assert.Equal(t, "FREQ=MONTHLY;INTERVAL=2;COUNT=6;BYDAY=+2TU", s)
}

func TestParseRRule(t *testing.T) {
	tests := []struct {
		rule     string
		describe string
		anchor   string
	}{
		{"FREQ=DAILY", "Daily", ""},
		{"FREQ=WEEKLY;BYDAY=WE,MO;COUNT=4", "Weekly on Monday, Wednesday for 4 occurrences", ""},
		{"FREQ=MONTHLY;INTERVAL=2;BYDAY=2TU", "Every 2 months on the second Tuesday", ""},
		{"FREQ=MONTHLY;BYDAY=-1FR", "Monthly on the last Friday", ""},
		{"FREQ=MONTHLY;BYMONTHDAY=-1", "Monthly on the last day", ""},
		{"FREQ=MONTHLY;BYMONTHDAY=30", "Monthly on day 30, skipping shorter months", ""},
		{"FREQ=MONTHLY;BYMONTHDAY=12;UNTIL=20251231T000000Z", "Monthly on day 12 until Dec 31, 2025", ""},
		{"DTSTART:20250131T000000Z\nRRULE:FREQ=MONTHLY", "Monthly on day 31, skipping shorter months", "2025-01-31"},
		{"DTSTART:20250310T090000Z\nRRULE:FREQ=YEARLY;INTERVAL=2", "Every 2 years", "2025-03-10"},
	}
	for _, tt := range tests {
		t.Run(tt.rule, func(t *testing.T) {
			p, anchor, err := ParseRRule(tt.rule)
			require.NoError(t, err)
			assert.Equal(t, tt.describe, recurrence.Describe(p))
			if tt.anchor == "" {
				assert.True(t, anchor.IsZero())
			} else {
				assert.Equal(t, day(tt.anchor), anchor)
			}
		})
	}
}

func TestParseRRule_Rejects(t *testing.T) {
	for _, rule := range []string{
		"FREQ=HOURLY",
		"FREQ=YEARLY;BYMONTH=3",
		"FREQ=WEEKLY;INTERVAL=2;BYDAY=MO",
		"FREQ=WEEKLY;BYDAY=1MO",
		"FREQ=MONTHLY;BYDAY=MO,TU",
		"FREQ=MONTHLY;BYSETPOS=-1;BYDAY=MO,TU,WE,TH,FR",
	} {
		_, _, err := ParseRRule(rule)
		assert.ErrorIs(t, err, ErrNotExpressible, rule)
	}

	_, _, err := ParseRRule("not a rule")
	assert.Error(t, err)
	assert.NotErrorIs(t, err, ErrNotExpressible)
}

func TestRRule_RoundTrip(t *testing.T) {
	anchor := day("2025-01-01")
	for _, p := range []recurrence.Pattern{
		recurrence.MustNew(recurrence.Daily, recurrence.Every(2), recurrence.Until(day("2025-12-31"))),
		recurrence.MustNew(recurrence.Weekly, recurrence.OnDays(recurrence.Saturday, recurrence.Sunday)),
		recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.LastWeekdayOfMonth{Weekday: recurrence.Sunday}), recurrence.Times(3)),
		recurrence.MustNew(recurrence.Monthly, recurrence.WithMonthly(recurrence.DayOfMonth{Day: 7})),
	} {
		s, err := RRuleString(p, anchor)
		require.NoError(t, err)
		back, _, err := ParseRRule(s)
		require.NoError(t, err, s)
		assert.Equal(t, recurrence.Describe(p), recurrence.Describe(back), s)
	}
}
