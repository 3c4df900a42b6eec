package ics

import (
	"time"

	ical "github.com/arran4/golang-ical"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

const productID = "-//chorecal//Chore Calendar//EN"

// statusProperty carries the completion status, which VEVENT STATUS has no
// values for.
const statusProperty = ical.ComponentProperty("X-CHORECAL-STATUS")

// Export renders the template's occurrences as a calendar with one all-day
// event per occurrence. stamp becomes every event's DTSTAMP.
func Export(tmpl model.Template, occs []model.Occurrence, stamp time.Time) string {
	cal := ical.NewCalendarFor("chorecal")
	cal.SetProductId(productID)
	cal.SetMethod(ical.MethodPublish)
	cal.SetXWRCalName(tmpl.Title)

	var description string
	if tmpl.Pattern != nil {
		description = recurrence.Describe(*tmpl.Pattern)
	}

	for _, o := range occs {
		due := recurrence.DateOf(o.DueDate)
		ev := cal.AddEvent(o.ID + "@chorecal")
		ev.SetDtStampTime(stamp)
		ev.SetSummary(tmpl.Title)
		if description != "" {
			ev.SetDescription(description)
		}
		ev.SetAllDayStartAt(due)
		ev.SetAllDayEndAt(recurrence.AddDays(due, 1))
		if o.Status == model.StatusSkipped {
			ev.SetStatus(ical.ObjectStatusCancelled)
		} else {
			ev.SetStatus(ical.ObjectStatusConfirmed)
		}
		if o.Status != "" {
			ev.SetProperty(statusProperty, string(o.Status))
		}
	}
	return cal.Serialize()
}
