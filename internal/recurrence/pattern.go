package recurrence

import (
	"slices"
	"time"
)

// Frequency is the unit a pattern repeats in.
type Frequency string

const (
	Daily   Frequency = "daily"
	Weekly  Frequency = "weekly"
	Monthly Frequency = "monthly"
	Yearly  Frequency = "yearly"
	// Custom is accepted and stored but the engine produces no dates for it.
	Custom Frequency = "custom"
)

func (f Frequency) valid() bool {
	switch f {
	case Daily, Weekly, Monthly, Yearly, Custom:
		return true
	}
	return false
}

// Weekday numbers days 1=Sunday through 7=Saturday.
type Weekday int

const (
	Sunday Weekday = iota + 1
	Monday
	Tuesday
	Wednesday
	Thursday
	Friday
	Saturday
)

// WeekdayOf returns the Weekday of t.
func WeekdayOf(t time.Time) Weekday {
	return Weekday(t.Weekday()) + 1
}

// Time converts to the standard library weekday.
func (d Weekday) Time() time.Weekday {
	return time.Weekday(d - 1)
}

func (d Weekday) String() string {
	if !d.valid() {
		return "Weekday(?)"
	}
	return d.Time().String()
}

func (d Weekday) valid() bool {
	return d >= Sunday && d <= Saturday
}

// MonthlyRule selects the target day of a month for monthly patterns.
// Exactly one rule (or none) is attached to a pattern; the concrete types
// below are the only implementations.
type MonthlyRule interface {
	// dateIn returns the target day in the month, or false when the month
	// has no such day and must be skipped.
	dateIn(year int, month time.Month) (time.Time, bool)
	validate() error
	describe() string
}

// DayOfMonth targets a fixed day, clamped to the last day of shorter months.
type DayOfMonth struct {
	Day int
}

func (r DayOfMonth) dateIn(year int, month time.Month) (time.Time, bool) {
	return clampDate(year, month, r.Day), true
}

func (r DayOfMonth) validate() error {
	if r.Day < 1 || r.Day > 31 {
		return invalid("dayOfMonth", "day %d out of range 1-31", r.Day)
	}
	return nil
}

// DayOfMonthWithFallback targets a fixed day; months shorter than Day either
// use their last day (FallbackToLastDay) or are skipped.
type DayOfMonthWithFallback struct {
	Day               int
	FallbackToLastDay bool
}

func (r DayOfMonthWithFallback) dateIn(year int, month time.Month) (time.Time, bool) {
	if r.Day > DaysIn(year, month) {
		if !r.FallbackToLastDay {
			return time.Time{}, false
		}
		return lastDayIn(year, month), true
	}
	return time.Date(year, month, r.Day, 0, 0, 0, 0, time.UTC), true
}

func (r DayOfMonthWithFallback) validate() error {
	if r.Day < 1 || r.Day > 31 {
		return invalid("dayOfMonthWithFallback.day", "day %d out of range 1-31", r.Day)
	}
	return nil
}

// NthWeekdayOfMonth targets e.g. the 3rd Monday. Months without an Nth
// occurrence of the weekday are skipped.
type NthWeekdayOfMonth struct {
	Weekday Weekday
	Nth     int
}

func (r NthWeekdayOfMonth) dateIn(year int, month time.Month) (time.Time, bool) {
	return nthWeekdayIn(year, month, r.Weekday, r.Nth)
}

func (r NthWeekdayOfMonth) validate() error {
	if !r.Weekday.valid() {
		return invalid("nthWeekdayOfMonth.weekday", "weekday %d out of range 1-7", r.Weekday)
	}
	if r.Nth < 1 || r.Nth > 5 {
		return invalid("nthWeekdayOfMonth.nth", "nth %d out of range 1-5", r.Nth)
	}
	return nil
}

// LastWeekdayOfMonth targets the final occurrence of a weekday in the month.
type LastWeekdayOfMonth struct {
	Weekday Weekday
}

func (r LastWeekdayOfMonth) dateIn(year int, month time.Month) (time.Time, bool) {
	return lastWeekdayIn(year, month, r.Weekday), true
}

func (r LastWeekdayOfMonth) validate() error {
	if !r.Weekday.valid() {
		return invalid("lastWeekdayOfMonth.weekday", "weekday %d out of range 1-7", r.Weekday)
	}
	return nil
}

// LastDayOfMonth targets the calendar-last day of every month.
type LastDayOfMonth struct{}

func (LastDayOfMonth) dateIn(year int, month time.Month) (time.Time, bool) {
	return lastDayIn(year, month), true
}

func (LastDayOfMonth) validate() error { return nil }

// Pattern is an immutable recurrence description. The zero value is not a
// valid pattern; build one with New or decode one from a document.
type Pattern struct {
	freq     Frequency
	interval int
	days     []Weekday
	monthly  MonthlyRule
	endDate  time.Time
	count    int
	hasCount bool
}

// Option configures a pattern under construction.
type Option func(*Pattern)

// Every sets the interval ("every n units"). Defaults to 1.
func Every(n int) Option {
	return func(p *Pattern) { p.interval = n }
}

// OnDays restricts a weekly pattern to the given weekdays.
func OnDays(days ...Weekday) Option {
	return func(p *Pattern) { p.days = append(p.days, days...) }
}

// WithMonthly attaches the monthly sub-pattern. A later call replaces an
// earlier one.
func WithMonthly(r MonthlyRule) Option {
	return func(p *Pattern) { p.monthly = r }
}

// Until sets the last calendar day an occurrence may fall on.
func Until(end time.Time) Option {
	return func(p *Pattern) { p.endDate = DateOf(end) }
}

// Times caps the total number of occurrences, counted from the anchor.
func Times(n int) Option {
	return func(p *Pattern) {
		p.count = n
		p.hasCount = true
	}
}

// New builds and validates a pattern.
func New(freq Frequency, opts ...Option) (Pattern, error) {
	p := Pattern{freq: freq, interval: 1}
	for _, opt := range opts {
		opt(&p)
	}
	if len(p.days) > 0 {
		p.days = slices.Clone(p.days)
		slices.Sort(p.days)
		p.days = slices.Compact(p.days)
	}
	if err := p.Validate(); err != nil {
		return Pattern{}, err
	}
	return p, nil
}

// MustNew is New for statically known patterns; it panics on error.
func MustNew(freq Frequency, opts ...Option) Pattern {
	p, err := New(freq, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// Validate checks every invariant of the pattern.
func (p Pattern) Validate() error {
	if !p.freq.valid() {
		return invalid("frequency", "unknown frequency %q", p.freq)
	}
	if p.interval < 1 {
		return invalid("interval", "must be at least 1, got %d", p.interval)
	}
	if len(p.days) > 0 && p.freq != Weekly {
		return invalid("daysOfWeek", "only allowed for weekly patterns, got %s", p.freq)
	}
	for _, d := range p.days {
		if !d.valid() {
			return invalid("daysOfWeek", "weekday %d out of range 1-7", d)
		}
	}
	if p.monthly != nil {
		if p.freq != Monthly {
			return invalid("monthly", "sub-pattern only allowed for monthly patterns, got %s", p.freq)
		}
		if err := p.monthly.validate(); err != nil {
			return err
		}
	}
	if p.hasCount && p.count <= 0 {
		return invalid("occurrenceCount", "must be positive, got %d", p.count)
	}
	return nil
}

func (p Pattern) Frequency() Frequency { return p.freq }

func (p Pattern) Interval() int { return p.interval }

// Days returns the explicit weekdays of a weekly pattern, sorted.
func (p Pattern) Days() []Weekday { return slices.Clone(p.days) }

// Monthly returns the monthly sub-pattern, or nil for "same day as anchor".
func (p Pattern) Monthly() MonthlyRule { return p.monthly }

// EndDate returns the inclusive last day, if any.
func (p Pattern) EndDate() (time.Time, bool) { return p.endDate, !p.endDate.IsZero() }

// OccurrenceCount returns the total occurrence cap, if any.
func (p Pattern) OccurrenceCount() (int, bool) { return p.count, p.hasCount }
