package recurrence

import (
	"encoding/json"
	"time"

	"gopkg.in/yaml.v3"
)

// document is the persisted shape of a Pattern. Absent (nil) fields mean
// "not set". Decoding never repairs a document: one that sets two monthly
// sub-patterns is rejected.
type document struct {
	Frequency              Frequency       `json:"frequency" yaml:"frequency"`
	Interval               *int            `json:"interval,omitempty" yaml:"interval,omitempty"`
	DaysOfWeek             []Weekday       `json:"daysOfWeek,omitempty" yaml:"daysOfWeek,omitempty"`
	DayOfMonth             *int            `json:"dayOfMonth,omitempty" yaml:"dayOfMonth,omitempty"`
	DayOfMonthWithFallback *fallbackDoc    `json:"dayOfMonthWithFallback,omitempty" yaml:"dayOfMonthWithFallback,omitempty"`
	NthWeekdayOfMonth      *nthWeekdayDoc  `json:"nthWeekdayOfMonth,omitempty" yaml:"nthWeekdayOfMonth,omitempty"`
	LastWeekdayOfMonth     *lastWeekdayDoc `json:"lastWeekdayOfMonth,omitempty" yaml:"lastWeekdayOfMonth,omitempty"`
	LastDayOfMonth         *bool           `json:"lastDayOfMonth,omitempty" yaml:"lastDayOfMonth,omitempty"`
	EndDate                *string         `json:"endDate,omitempty" yaml:"endDate,omitempty"`
	OccurrenceCount        *int            `json:"occurrenceCount,omitempty" yaml:"occurrenceCount,omitempty"`
}

type fallbackDoc struct {
	Day               int  `json:"day" yaml:"day"`
	FallbackToLastDay bool `json:"fallbackToLastDay" yaml:"fallbackToLastDay"`
}

type nthWeekdayDoc struct {
	Weekday Weekday `json:"weekday" yaml:"weekday"`
	Nth     int     `json:"nth" yaml:"nth"`
}

type lastWeekdayDoc struct {
	Weekday Weekday `json:"weekday" yaml:"weekday"`
}

func (p Pattern) toDocument() document {
	interval := p.interval
	doc := document{
		Frequency:  p.freq,
		Interval:   &interval,
		DaysOfWeek: p.Days(),
	}
	switch r := p.monthly.(type) {
	case DayOfMonth:
		doc.DayOfMonth = &r.Day
	case DayOfMonthWithFallback:
		doc.DayOfMonthWithFallback = &fallbackDoc{Day: r.Day, FallbackToLastDay: r.FallbackToLastDay}
	case NthWeekdayOfMonth:
		doc.NthWeekdayOfMonth = &nthWeekdayDoc{Weekday: r.Weekday, Nth: r.Nth}
	case LastWeekdayOfMonth:
		doc.LastWeekdayOfMonth = &lastWeekdayDoc{Weekday: r.Weekday}
	case LastDayOfMonth:
		t := true
		doc.LastDayOfMonth = &t
	}
	if end, ok := p.EndDate(); ok {
		s := end.Format(time.DateOnly)
		doc.EndDate = &s
	}
	if n, ok := p.OccurrenceCount(); ok {
		doc.OccurrenceCount = &n
	}
	return doc
}

func (doc document) pattern() (Pattern, error) {
	var opts []Option
	if doc.Interval != nil {
		opts = append(opts, Every(*doc.Interval))
	}
	if len(doc.DaysOfWeek) > 0 {
		opts = append(opts, OnDays(doc.DaysOfWeek...))
	}

	var rules []MonthlyRule
	if doc.DayOfMonth != nil {
		rules = append(rules, DayOfMonth{Day: *doc.DayOfMonth})
	}
	if f := doc.DayOfMonthWithFallback; f != nil {
		rules = append(rules, DayOfMonthWithFallback{Day: f.Day, FallbackToLastDay: f.FallbackToLastDay})
	}
	if n := doc.NthWeekdayOfMonth; n != nil {
		rules = append(rules, NthWeekdayOfMonth{Weekday: n.Weekday, Nth: n.Nth})
	}
	if l := doc.LastWeekdayOfMonth; l != nil {
		rules = append(rules, LastWeekdayOfMonth{Weekday: l.Weekday})
	}
	if doc.LastDayOfMonth != nil && *doc.LastDayOfMonth {
		rules = append(rules, LastDayOfMonth{})
	}
	switch len(rules) {
	case 0:
	case 1:
		opts = append(opts, WithMonthly(rules[0]))
	default:
		return Pattern{}, invalid("monthly", "%d sub-patterns set, at most one is allowed", len(rules))
	}

	if doc.EndDate != nil {
		end, err := parseDocDate(*doc.EndDate)
		if err != nil {
			return Pattern{}, invalid("endDate", "%v", err)
		}
		opts = append(opts, Until(end))
	}
	if doc.OccurrenceCount != nil {
		opts = append(opts, Times(*doc.OccurrenceCount))
	}
	return New(doc.Frequency, opts...)
}

// parseDocDate accepts a bare date or a full RFC 3339 timestamp.
func parseDocDate(s string) (time.Time, error) {
	if t, err := ParseDate(s); err == nil {
		return t, nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, err
	}
	return DateOf(t), nil
}

// MarshalJSON encodes the pattern as its persisted document.
func (p Pattern) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.toDocument())
}

// UnmarshalJSON decodes and validates a pattern document.
func (p *Pattern) UnmarshalJSON(data []byte) error {
	var doc document
	if err := json.Unmarshal(data, &doc); err != nil {
		return err
	}
	decoded, err := doc.pattern()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}

// MarshalYAML encodes the pattern as its persisted document.
func (p Pattern) MarshalYAML() (any, error) {
	return p.toDocument(), nil
}

// UnmarshalYAML decodes and validates a pattern document.
func (p *Pattern) UnmarshalYAML(value *yaml.Node) error {
	var doc document
	if err := value.Decode(&doc); err != nil {
		return err
	}
	decoded, err := doc.pattern()
	if err != nil {
		return err
	}
	*p = decoded
	return nil
}
