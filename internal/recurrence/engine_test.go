package recurrence

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func date(s string) time.Time {
	d, err := ParseDate(s)
	if err != nil {
		panic(err)
	}
	return d
}

func dates(ss ...string) []time.Time {
	out := make([]time.Time, len(ss))
	for i, s := range ss {
		out[i] = date(s)
	}
	return out
}

func TestNextOccurrences_Scenarios(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		anchor  string
		after   string
		count   int
		want    []time.Time
	}{
		{
			name:    "daily",
			pattern: MustNew(Daily),
			anchor:  "2025-01-01",
			after:   "2025-01-01",
			count:   3,
			want:    dates("2025-01-02", "2025-01-03", "2025-01-04"),
		},
		{
			// Window starts 2025-01-02 (Thu). Weeks 0 and 2 of the window
			// qualify: Jan 2-8 and Jan 16-22.
			name:    "biweekly on monday and wednesday",
			pattern: MustNew(Weekly, Every(2), OnDays(Monday, Wednesday)),
			anchor:  "2025-01-01",
			after:   "2025-01-01",
			count:   4,
			want:    dates("2025-01-06", "2025-01-08", "2025-01-20", "2025-01-22"),
		},
		{
			name:    "day 30 with fallback to last day",
			pattern: MustNew(Monthly, WithMonthly(DayOfMonthWithFallback{Day: 30, FallbackToLastDay: true})),
			anchor:  "2025-01-30",
			after:   "2025-01-30",
			count:   4,
			want:    dates("2025-02-28", "2025-03-30", "2025-04-30", "2025-05-30"),
		},
		{
			name:    "fifth monday skips short months",
			pattern: MustNew(Monthly, WithMonthly(NthWeekdayOfMonth{Weekday: Monday, Nth: 5})),
			anchor:  "2025-01-01",
			after:   "2025-01-01",
			count:   3,
			want:    dates("2025-03-31", "2025-06-30", "2025-09-29"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrences(tt.pattern, date(tt.anchor), date(tt.after), tt.count)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrences_Frequencies(t *testing.T) {
	tests := []struct {
		name    string
		pattern Pattern
		anchor  string
		after   string
		count   int
		want    []time.Time
	}{
		{
			name:    "every third day measured from anchor",
			pattern: MustNew(Daily, Every(3)),
			anchor:  "2025-01-01",
			after:   "2025-01-05",
			count:   3,
			want:    dates("2025-01-07", "2025-01-10", "2025-01-13"),
		},
		{
			name:    "biweekly on anchor weekday",
			pattern: MustNew(Weekly, Every(2)),
			anchor:  "2025-01-01",
			after:   "2025-01-01",
			count:   3,
			want:    dates("2025-01-15", "2025-01-29", "2025-02-12"),
		},
		{
			name:    "weekly every third week on monday",
			pattern: MustNew(Weekly, Every(3), OnDays(Monday)),
			anchor:  "2025-01-01",
			after:   "2025-01-01",
			count:   2,
			want:    dates("2025-01-06", "2025-01-27"),
		},
		{
			name:    "monthly without sub-pattern clamps anchor day",
			pattern: MustNew(Monthly),
			anchor:  "2024-01-31",
			after:   "2024-01-31",
			count:   4,
			want:    dates("2024-02-29", "2024-03-31", "2024-04-30", "2024-05-31"),
		},
		{
			name:    "day 31 without fallback skips short months",
			pattern: MustNew(Monthly, WithMonthly(DayOfMonthWithFallback{Day: 31})),
			anchor:  "2025-01-31",
			after:   "2025-01-31",
			count:   3,
			want:    dates("2025-03-31", "2025-05-31", "2025-07-31"),
		},
		{
			name:    "fixed day of month clamps",
			pattern: MustNew(Monthly, WithMonthly(DayOfMonth{Day: 31})),
			anchor:  "2025-01-01",
			after:   "2025-01-31",
			count:   2,
			want:    dates("2025-02-28", "2025-03-31"),
		},
		{
			name:    "quarterly on the 15th",
			pattern: MustNew(Monthly, Every(3), WithMonthly(DayOfMonth{Day: 15})),
			anchor:  "2025-01-10",
			after:   "2025-01-10",
			count:   3,
			want:    dates("2025-01-15", "2025-04-15", "2025-07-15"),
		},
		{
			name:    "last friday",
			pattern: MustNew(Monthly, WithMonthly(LastWeekdayOfMonth{Weekday: Friday})),
			anchor:  "2025-01-01",
			after:   "2024-12-31",
			count:   3,
			want:    dates("2025-01-31", "2025-02-28", "2025-03-28"),
		},
		{
			name:    "last day of month across leap february",
			pattern: MustNew(Monthly, WithMonthly(LastDayOfMonth{})),
			anchor:  "2024-01-15",
			after:   "2024-01-15",
			count:   3,
			want:    dates("2024-01-31", "2024-02-29", "2024-03-31"),
		},
		{
			name:    "yearly leap day clamps in common years",
			pattern: MustNew(Yearly),
			anchor:  "2024-02-29",
			after:   "2024-02-29",
			count:   3,
			want:    dates("2025-02-28", "2026-02-28", "2027-02-28"),
		},
		{
			name:    "every other year",
			pattern: MustNew(Yearly, Every(2)),
			anchor:  "2025-06-15",
			after:   "2025-06-15",
			count:   2,
			want:    dates("2027-06-15", "2029-06-15"),
		},
		{
			name:    "anchor after window start begins at anchor",
			pattern: MustNew(Daily),
			anchor:  "2025-03-10",
			after:   "2025-01-01",
			count:   2,
			want:    dates("2025-03-10", "2025-03-11"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NextOccurrences(tt.pattern, date(tt.anchor), date(tt.after), tt.count)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestNextOccurrences_CustomYieldsNothing(t *testing.T) {
	got := NextOccurrences(MustNew(Custom), date("2025-01-01"), date("2025-01-01"), 10)
	assert.Empty(t, got)
}

func TestNextOccurrences_NonPositiveCount(t *testing.T) {
	assert.Nil(t, NextOccurrences(MustNew(Daily), date("2025-01-01"), date("2025-01-01"), 0))
	assert.Nil(t, NextOccurrences(MustNew(Daily), date("2025-01-01"), date("2025-01-01"), -1))
}

func TestNextOccurrences_ZeroAfterStartsAtAnchor(t *testing.T) {
	got := NextOccurrences(MustNew(Daily), date("2025-01-01"), time.Time{}, 2)
	assert.Equal(t, dates("2025-01-01", "2025-01-02"), got)
}

func TestNextOccurrences_IgnoresTimeOfDay(t *testing.T) {
	seoul := time.FixedZone("KST", 9*60*60)
	anchor := time.Date(2025, 1, 1, 23, 30, 0, 0, seoul)
	after := time.Date(2025, 1, 1, 8, 0, 0, 0, seoul)
	got := NextOccurrences(MustNew(Daily), anchor, after, 2)
	assert.Equal(t, dates("2025-01-02", "2025-01-03"), got)
}

func TestNextOccurrences_EndDate(t *testing.T) {
	p := MustNew(Daily, Until(date("2025-01-05")))

	got := NextOccurrences(p, date("2025-01-01"), date("2025-01-01"), 10)
	assert.Equal(t, dates("2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05"), got)

	assert.Empty(t, NextOccurrences(p, date("2025-01-01"), date("2025-01-05"), 10))
	assert.Empty(t, NextOccurrences(p, date("2025-01-01"), date("2025-02-01"), 10))
}

func TestNextOccurrences_EndDateBetweenCandidates(t *testing.T) {
	p := MustNew(Monthly, WithMonthly(DayOfMonth{Day: 20}), Until(date("2025-03-10")))
	got := NextOccurrences(p, date("2025-01-01"), date("2025-01-01"), 10)
	assert.Equal(t, dates("2025-01-20", "2025-02-20"), got)
}

func TestNextOccurrences_OccurrenceCountFromAnchor(t *testing.T) {
	p := MustNew(Daily, Times(5))
	anchor := date("2025-01-01")

	// The anchor itself is the first of the five occurrences.
	assert.Equal(t,
		dates("2025-01-01", "2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05"),
		NextOccurrences(p, anchor, date("2024-12-31"), 10))

	assert.Equal(t,
		dates("2025-01-02", "2025-01-03", "2025-01-04", "2025-01-05"),
		NextOccurrences(p, anchor, anchor, 10))

	assert.Equal(t, dates("2025-01-04", "2025-01-05"), NextOccurrences(p, anchor, date("2025-01-03"), 10))
	assert.Empty(t, NextOccurrences(p, anchor, date("2025-01-05"), 10))
}

func TestNextOccurrences_OccurrenceCountNeverExceeded(t *testing.T) {
	patterns := []Pattern{
		MustNew(Daily, Every(2), Times(7)),
		MustNew(Weekly, Times(4)),
		MustNew(Monthly, WithMonthly(NthWeekdayOfMonth{Weekday: Tuesday, Nth: 2}), Times(6)),
		MustNew(Yearly, Times(3)),
	}
	anchor := date("2025-01-01")

	for _, p := range patterns {
		limit, _ := p.OccurrenceCount()
		seen := map[time.Time]struct{}{}
		after := anchor.AddDate(0, 0, -1)
		for step := 0; step < 300; step++ {
			for _, d := range NextOccurrences(p, anchor, after, 3) {
				seen[d] = struct{}{}
			}
			after = after.AddDate(0, 0, 5)
		}
		assert.LessOrEqual(t, len(seen), limit, Describe(p))
		assert.Len(t, seen, limit, Describe(p))
	}
}

func TestSequence_DeterministicAscendingAndUnique(t *testing.T) {
	patterns := []Pattern{
		MustNew(Daily, Every(4)),
		MustNew(Weekly),
		MustNew(Weekly, Every(2), OnDays(Sunday, Tuesday, Saturday)),
		MustNew(Monthly),
		MustNew(Monthly, Every(2), WithMonthly(DayOfMonthWithFallback{Day: 31, FallbackToLastDay: true})),
		MustNew(Monthly, WithMonthly(NthWeekdayOfMonth{Weekday: Friday, Nth: 5})),
		MustNew(Monthly, WithMonthly(LastWeekdayOfMonth{Weekday: Sunday})),
		MustNew(Monthly, WithMonthly(LastDayOfMonth{})),
		MustNew(Yearly),
	}
	anchor := date("2023-11-30")
	after := date("2024-01-15")

	for _, p := range patterns {
		first := NextOccurrences(p, anchor, after, 60)
		second := NextOccurrences(p, anchor, after, 60)
		require.Equal(t, first, second, Describe(p))
		require.NotEmpty(t, first, Describe(p))

		prev := after
		for _, d := range first {
			assert.True(t, d.After(prev), "%s: %s not after %s", Describe(p), d, prev)
			prev = d
		}
	}
}

func TestSequence_StopsWhenConsumerStops(t *testing.T) {
	var got []time.Time
	for d := range Sequence(MustNew(Daily), date("2025-01-01"), date("2025-01-01")) {
		got = append(got, d)
		if len(got) == 3 {
			break
		}
	}
	assert.Equal(t, dates("2025-01-02", "2025-01-03", "2025-01-04"), got)
}

func TestSequence_ZeroPatternYieldsNothing(t *testing.T) {
	assert.Empty(t, NextOccurrences(Pattern{}, date("2025-01-01"), date("2025-01-01"), 5))
}
