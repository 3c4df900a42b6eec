package ics

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"time"

	ical "github.com/arran4/golang-ical"

	appLog "chorecal/internal/log"
	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

// SkippedEvent is a VEVENT that could not become a template.
type SkippedEvent struct {
	UID    string `json:"uid"`
	Reason string `json:"reason"`
}

// ImportResult lists the templates found in a calendar and the events that
// were left out.
type ImportResult struct {
	Templates []model.Template
	Skipped   []SkippedEvent
}

// ImportTemplates turns every recurring VEVENT of an iCalendar payload into
// a template: UID becomes the id, SUMMARY the title, DTSTART the anchor and
// RRULE the pattern. Events without an RRULE, with overrides, or with a rule
// the pattern model cannot express are skipped and reported.
func ImportTemplates(body []byte) (ImportResult, error) {
	var res ImportResult
	if len(body) == 0 {
		return res, errors.New("empty ICS body")
	}

	cal, err := ical.ParseCalendar(bytes.NewReader(body))
	if err != nil {
		appLog.Error("ics parse failed", err)
		return res, err
	}

	for _, ve := range cal.Events() {
		tmpl, err := templateFromVEvent(ve)
		if err != nil {
			uid := ""
			if p := ve.GetProperty(ical.ComponentPropertyUniqueId); p != nil {
				uid = p.Value
			}
			// Log and skip this event, but keep importing others.
			appLog.Debug("ics vevent skipped", "uid", uid, "reason", err)
			res.Skipped = append(res.Skipped, SkippedEvent{UID: uid, Reason: err.Error()})
			continue
		}
		res.Templates = append(res.Templates, tmpl)
	}

	appLog.Info("ics import completed", "templates", len(res.Templates), "skipped", len(res.Skipped))
	return res, nil
}

func templateFromVEvent(ve *ical.VEvent) (model.Template, error) {
	var out model.Template

	uidProp := ve.GetProperty(ical.ComponentPropertyUniqueId)
	if uidProp == nil || uidProp.Value == "" {
		return out, errors.New("missing UID")
	}
	out.ID = uidProp.Value

	if ve.GetProperty(ical.ComponentPropertyRecurrenceId) != nil {
		return out, errors.New("recurrence override")
	}

	if p := ve.GetProperty(ical.ComponentPropertySummary); p != nil {
		out.Title = p.Value
	}
	if out.Title == "" {
		out.Title = out.ID
	}

	anchor, err := startDay(ve)
	if err != nil {
		return out, err
	}
	out.AnchorDate = anchor

	rruleProp := ve.GetProperty(ical.ComponentPropertyRrule)
	if rruleProp == nil || rruleProp.Value == "" {
		return out, errors.New("no RRULE")
	}

	// Rule dates are evaluated against the event's start day.
	spec := "DTSTART:" + anchor.Format("20060102T150405Z") + "\nRRULE:" + rruleProp.Value
	p, _, err := ParseRRule(spec)
	if err != nil {
		return out, err
	}
	out.Pattern = &p
	return out, nil
}

// startDay reads DTSTART as a calendar day. All-day values are taken as is;
// timed values keep the local day of their own timezone.
func startDay(ve *ical.VEvent) (time.Time, error) {
	prop := ve.GetProperty(ical.ComponentPropertyDtStart)
	if prop == nil {
		return time.Time{}, errors.New("missing DTSTART")
	}

	allDay := !strings.Contains(prop.Value, "T")
	if vs, ok := prop.ICalParameters["VALUE"]; ok && len(vs) > 0 && strings.EqualFold(vs[0], "DATE") {
		allDay = true
	}

	var (
		start time.Time
		err   error
	)
	if allDay {
		start, err = ve.GetAllDayStartAt()
	} else {
		start, err = ve.GetStartAt()
	}
	if err != nil {
		return time.Time{}, fmt.Errorf("DTSTART: %w", err)
	}
	return recurrence.DateOf(start), nil
}
