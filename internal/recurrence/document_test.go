package recurrence

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func roundTripPatterns() []Pattern {
	return []Pattern{
		MustNew(Daily),
		MustNew(Daily, Every(3), Times(10)),
		MustNew(Weekly, Every(2), OnDays(Monday, Wednesday), Until(date("2025-06-30"))),
		MustNew(Monthly),
		MustNew(Monthly, WithMonthly(DayOfMonth{Day: 15})),
		MustNew(Monthly, WithMonthly(DayOfMonthWithFallback{Day: 30, FallbackToLastDay: true})),
		MustNew(Monthly, WithMonthly(DayOfMonthWithFallback{Day: 31})),
		MustNew(Monthly, WithMonthly(NthWeekdayOfMonth{Weekday: Monday, Nth: 3})),
		MustNew(Monthly, Every(2), WithMonthly(LastWeekdayOfMonth{Weekday: Friday})),
		MustNew(Monthly, WithMonthly(LastDayOfMonth{}), Times(12)),
		MustNew(Yearly, Every(2)),
		MustNew(Custom),
	}
}

func TestPatternJSONRoundTrip(t *testing.T) {
	for _, p := range roundTripPatterns() {
		data, err := json.Marshal(p)
		require.NoError(t, err)

		var got Pattern
		require.NoError(t, json.Unmarshal(data, &got), string(data))
		assert.Equal(t, p, got, string(data))
	}
}

func TestPatternYAMLRoundTrip(t *testing.T) {
	for _, p := range roundTripPatterns() {
		data, err := yaml.Marshal(p)
		require.NoError(t, err)

		var got Pattern
		require.NoError(t, yaml.Unmarshal(data, &got), string(data))
		assert.Equal(t, p, got, string(data))
	}
}

func TestPatternJSONShape(t *testing.T) {
	p := MustNew(Monthly, WithMonthly(DayOfMonthWithFallback{Day: 30, FallbackToLastDay: true}), Until(date("2025-12-31")))
	data, err := json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"frequency": "monthly",
		"interval": 1,
		"dayOfMonthWithFallback": {"day": 30, "fallbackToLastDay": true},
		"endDate": "2025-12-31"
	}`, string(data))

	p = MustNew(Weekly, OnDays(Tuesday, Thursday), Times(4))
	data, err = json.Marshal(p)
	require.NoError(t, err)
	assert.JSONEq(t, `{"frequency":"weekly","interval":1,"daysOfWeek":[3,5],"occurrenceCount":4}`, string(data))
}

func TestPatternJSONDecode(t *testing.T) {
	t.Run("interval defaults to one", func(t *testing.T) {
		var p Pattern
		require.NoError(t, json.Unmarshal([]byte(`{"frequency":"daily"}`), &p))
		assert.Equal(t, MustNew(Daily), p)
	})

	t.Run("null fields are unset", func(t *testing.T) {
		var p Pattern
		doc := `{"frequency":"monthly","interval":1,"dayOfMonth":null,"nthWeekdayOfMonth":null,"lastDayOfMonth":null,"endDate":null}`
		require.NoError(t, json.Unmarshal([]byte(doc), &p))
		assert.Equal(t, MustNew(Monthly), p)
	})

	t.Run("false lastDayOfMonth is unset", func(t *testing.T) {
		var p Pattern
		require.NoError(t, json.Unmarshal([]byte(`{"frequency":"monthly","dayOfMonth":5,"lastDayOfMonth":false}`), &p))
		assert.Equal(t, MustNew(Monthly, WithMonthly(DayOfMonth{Day: 5})), p)
	})

	t.Run("timestamp end date is truncated to its day", func(t *testing.T) {
		var p Pattern
		require.NoError(t, json.Unmarshal([]byte(`{"frequency":"daily","endDate":"2025-03-01T10:00:00Z"}`), &p))
		end, ok := p.EndDate()
		require.True(t, ok)
		assert.Equal(t, date("2025-03-01"), end)
	})
}

func TestPatternJSONDecodeRejects(t *testing.T) {
	docs := map[string]string{
		"two monthly sub-patterns":   `{"frequency":"monthly","dayOfMonth":5,"lastDayOfMonth":true}`,
		"three monthly sub-patterns": `{"frequency":"monthly","dayOfMonth":5,"nthWeekdayOfMonth":{"weekday":2,"nth":1},"lastWeekdayOfMonth":{"weekday":6}}`,
		"zero interval":              `{"frequency":"daily","interval":0}`,
		"zero occurrence count":      `{"frequency":"daily","occurrenceCount":0}`,
		"nth out of range":           `{"frequency":"monthly","nthWeekdayOfMonth":{"weekday":2,"nth":6}}`,
		"sub-pattern on weekly":      `{"frequency":"weekly","dayOfMonth":3}`,
		"bad end date":               `{"frequency":"daily","endDate":"31/12/2025"}`,
		"missing frequency":          `{"interval":2}`,
	}
	for name, doc := range docs {
		t.Run(name, func(t *testing.T) {
			var p Pattern
			err := json.Unmarshal([]byte(doc), &p)
			assert.ErrorIs(t, err, ErrInvalidPattern)
			assert.Equal(t, Pattern{}, p, "target must stay untouched on error")
		})
	}
}

func TestPatternYAMLDecodeRejectsTwoSubPatterns(t *testing.T) {
	doc := `
frequency: monthly
dayOfMonthWithFallback:
  day: 31
  fallbackToLastDay: true
lastWeekdayOfMonth:
  weekday: 6
`
	var p Pattern
	assert.ErrorIs(t, yaml.Unmarshal([]byte(doc), &p), ErrInvalidPattern)
}

func TestPatternYAMLDecode(t *testing.T) {
	doc := `
frequency: monthly
interval: 2
nthWeekdayOfMonth:
  weekday: 2
  nth: 3
endDate: "2026-01-31"
`
	var p Pattern
	require.NoError(t, yaml.Unmarshal([]byte(doc), &p))
	want := MustNew(Monthly, Every(2), WithMonthly(NthWeekdayOfMonth{Weekday: Monday, Nth: 3}), Until(date("2026-01-31")))
	assert.Equal(t, want, p)
}
