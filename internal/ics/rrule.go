// Package ics maps chore patterns to and from iCalendar recurrence rules and
// exports occurrences as calendar feeds.
package ics

import (
	"errors"
	"fmt"
	"time"

	"github.com/teambition/rrule-go"

	"chorecal/internal/recurrence"
)

// ErrNotExpressible marks patterns (or rules) with no exact counterpart on
// the other side: day clamping, window-relative weekly intervals, and RRULE
// parts the pattern model has no field for.
var ErrNotExpressible = errors.New("not expressible")

func notExpressible(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrNotExpressible, fmt.Sprintf(format, args...))
}

// rruleDays is indexed by time.Weekday.
var rruleDays = [...]rrule.Weekday{rrule.SU, rrule.MO, rrule.TU, rrule.WE, rrule.TH, rrule.FR, rrule.SA}

func toRRuleDay(d recurrence.Weekday) rrule.Weekday {
	return rruleDays[d.Time()]
}

func fromRRuleDay(w rrule.Weekday) recurrence.Weekday {
	// rrule numbers Monday as 0.
	return recurrence.Weekday((w.Day()+1)%7 + 1)
}

// ToRRule returns the rule options producing exactly the dates of p when
// anchored on anchor. Patterns whose dates depend on clamping or on the
// caller's window return ErrNotExpressible.
func ToRRule(p recurrence.Pattern, anchor time.Time) (rrule.ROption, error) {
	anchor = recurrence.DateOf(anchor)
	opt := rrule.ROption{
		Dtstart:  anchor,
		Interval: p.Interval(),
	}

	switch p.Frequency() {
	case recurrence.Daily:
		opt.Freq = rrule.DAILY
	case recurrence.Weekly:
		opt.Freq = rrule.WEEKLY
		days := p.Days()
		if len(days) > 0 && p.Interval() > 1 {
			return rrule.ROption{}, notExpressible("weekly interval %d with explicit weekdays", p.Interval())
		}
		for _, d := range days {
			opt.Byweekday = append(opt.Byweekday, toRRuleDay(d))
		}
	case recurrence.Monthly:
		opt.Freq = rrule.MONTHLY
		if err := monthlyToRRule(p.Monthly(), anchor, &opt); err != nil {
			return rrule.ROption{}, err
		}
	case recurrence.Yearly:
		opt.Freq = rrule.YEARLY
		if anchor.Month() == time.February && anchor.Day() == 29 {
			return rrule.ROption{}, notExpressible("yearly on Feb 29 clamps in common years")
		}
	default:
		return rrule.ROption{}, notExpressible("frequency %s", p.Frequency())
	}

	if end, ok := p.EndDate(); ok {
		opt.Until = end
	}
	if n, ok := p.OccurrenceCount(); ok {
		opt.Count = n
	}
	return opt, nil
}

func monthlyToRRule(rule recurrence.MonthlyRule, anchor time.Time, opt *rrule.ROption) error {
	switch r := rule.(type) {
	case nil:
		if anchor.Day() > 28 {
			return notExpressible("monthly on anchor day %d clamps in short months", anchor.Day())
		}
		opt.Bymonthday = []int{anchor.Day()}
	case recurrence.DayOfMonth:
		if r.Day > 28 {
			return notExpressible("day %d clamps in short months", r.Day)
		}
		opt.Bymonthday = []int{r.Day}
	case recurrence.DayOfMonthWithFallback:
		if r.FallbackToLastDay && r.Day > 28 {
			return notExpressible("day %d falls back to the last day", r.Day)
		}
		opt.Bymonthday = []int{r.Day}
	case recurrence.NthWeekdayOfMonth:
		w := toRRuleDay(r.Weekday)
		opt.Byweekday = []rrule.Weekday{w.Nth(r.Nth)}
	case recurrence.LastWeekdayOfMonth:
		w := toRRuleDay(r.Weekday)
		opt.Byweekday = []rrule.Weekday{w.Nth(-1)}
	case recurrence.LastDayOfMonth:
		opt.Bymonthday = []int{-1}
	default:
		return notExpressible("monthly rule %T", rule)
	}
	return nil
}

// RRuleString renders p as an RRULE value (without DTSTART).
func RRuleString(p recurrence.Pattern, anchor time.Time) (string, error) {
	opt, err := ToRRule(p, anchor)
	if err != nil {
		return "", err
	}
	return opt.RRuleString(), nil
}

// FromRRule maps rule options onto a pattern. The anchor is the rule's
// DTSTART day (zero if the options carry none).
func FromRRule(opt rrule.ROption) (recurrence.Pattern, time.Time, error) {
	if len(opt.Bysetpos)+len(opt.Bymonth)+len(opt.Byyearday)+len(opt.Byweekno)+
		len(opt.Byhour)+len(opt.Byminute)+len(opt.Bysecond)+len(opt.Byeaster) > 0 {
		return recurrence.Pattern{}, time.Time{}, notExpressible("rule uses BY* parts beyond BYDAY and BYMONTHDAY")
	}

	var anchor time.Time
	if !opt.Dtstart.IsZero() {
		anchor = recurrence.DateOf(opt.Dtstart)
	}

	var (
		freq recurrence.Frequency
		opts []recurrence.Option
	)
	if opt.Interval > 0 {
		opts = append(opts, recurrence.Every(opt.Interval))
	}

	switch opt.Freq {
	case rrule.DAILY:
		freq = recurrence.Daily
		if len(opt.Byweekday)+len(opt.Bymonthday) > 0 {
			return recurrence.Pattern{}, time.Time{}, notExpressible("daily rule with BY* parts")
		}
	case rrule.WEEKLY:
		freq = recurrence.Weekly
		if len(opt.Bymonthday) > 0 {
			return recurrence.Pattern{}, time.Time{}, notExpressible("weekly rule with BYMONTHDAY")
		}
		if len(opt.Byweekday) > 0 {
			if opt.Interval > 1 {
				return recurrence.Pattern{}, time.Time{}, notExpressible("weekly interval %d with BYDAY", opt.Interval)
			}
			days := make([]recurrence.Weekday, 0, len(opt.Byweekday))
			for _, w := range opt.Byweekday {
				if w.N() != 0 {
					return recurrence.Pattern{}, time.Time{}, notExpressible("weekly BYDAY with ordinal %s", w)
				}
				days = append(days, fromRRuleDay(w))
			}
			opts = append(opts, recurrence.OnDays(days...))
		}
	case rrule.MONTHLY:
		freq = recurrence.Monthly
		rule, err := monthlyFromRRule(opt)
		if err != nil {
			return recurrence.Pattern{}, time.Time{}, err
		}
		if rule != nil {
			opts = append(opts, recurrence.WithMonthly(rule))
		}
	case rrule.YEARLY:
		freq = recurrence.Yearly
		if len(opt.Byweekday)+len(opt.Bymonthday) > 0 {
			return recurrence.Pattern{}, time.Time{}, notExpressible("yearly rule with BY* parts")
		}
	default:
		return recurrence.Pattern{}, time.Time{}, notExpressible("frequency %s", opt.Freq)
	}

	if !opt.Until.IsZero() {
		opts = append(opts, recurrence.Until(opt.Until))
	}
	if opt.Count > 0 {
		opts = append(opts, recurrence.Times(opt.Count))
	}

	p, err := recurrence.New(freq, opts...)
	if err != nil {
		return recurrence.Pattern{}, time.Time{}, err
	}
	return p, anchor, nil
}

func monthlyFromRRule(opt rrule.ROption) (recurrence.MonthlyRule, error) {
	switch {
	case len(opt.Bymonthday) == 0 && len(opt.Byweekday) == 0:
		// Dates follow DTSTART's day, which skips short months.
		if !opt.Dtstart.IsZero() && opt.Dtstart.Day() > 28 {
			return recurrence.DayOfMonthWithFallback{Day: opt.Dtstart.Day()}, nil
		}
		return nil, nil
	case len(opt.Bymonthday) == 1 && len(opt.Byweekday) == 0:
		d := opt.Bymonthday[0]
		switch {
		case d == -1:
			return recurrence.LastDayOfMonth{}, nil
		case d >= 1 && d <= 28:
			return recurrence.DayOfMonth{Day: d}, nil
		case d > 28 && d <= 31:
			return recurrence.DayOfMonthWithFallback{Day: d}, nil
		}
		return nil, notExpressible("BYMONTHDAY=%d", d)
	case len(opt.Byweekday) == 1 && len(opt.Bymonthday) == 0:
		w := opt.Byweekday[0]
		switch n := w.N(); {
		case n == -1:
			return recurrence.LastWeekdayOfMonth{Weekday: fromRRuleDay(w)}, nil
		case n >= 1 && n <= 5:
			return recurrence.NthWeekdayOfMonth{Weekday: fromRRuleDay(w), Nth: n}, nil
		}
		return nil, notExpressible("monthly BYDAY=%s", w)
	}
	return nil, notExpressible("monthly rule with several BY* values")
}

// ParseRRule parses an RRULE value, optionally preceded by a DTSTART line.
func ParseRRule(s string) (recurrence.Pattern, time.Time, error) {
	opt, err := rrule.StrToROption(s)
	if err != nil {
		return recurrence.Pattern{}, time.Time{}, fmt.Errorf("parse rrule: %w", err)
	}
	return FromRRule(*opt)
}
