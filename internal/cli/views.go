package cli

import (
	"fmt"
	"strings"
	"time"

	"chorecal/internal/instance"
	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

// TemplateView is the JSON shape of a template.
type TemplateView struct {
	ID         string `json:"id"`
	Title      string `json:"title"`
	AnchorDate string `json:"anchor_date"`
	Schedule   string `json:"schedule"`
	Recurring  bool   `json:"recurring"`
}

func templateView(t model.Template) TemplateView {
	v := TemplateView{
		ID:         t.ID,
		Title:      t.Title,
		AnchorDate: day(t.AnchorDate),
		Schedule:   "one-off",
		Recurring:  t.Recurring(),
	}
	if t.Pattern != nil {
		v.Schedule = recurrence.Describe(*t.Pattern)
	}
	return v
}

// OccurrenceView is the JSON shape of an occurrence.
type OccurrenceView struct {
	ID      string `json:"id"`
	DueDate string `json:"due_date"`
	Status  string `json:"status"`
}

func occurrenceViews(occs []model.Occurrence) []OccurrenceView {
	out := make([]OccurrenceView, 0, len(occs))
	for _, o := range occs {
		out = append(out, OccurrenceView{ID: o.ID, DueDate: day(o.DueDate), Status: string(o.Status)})
	}
	return out
}

// ReportView is the JSON shape of a validation report.
type ReportView struct {
	TemplateID  string           `json:"template_id"`
	Valid       bool             `json:"valid"`
	WindowStart string           `json:"window_start"`
	Horizon     string           `json:"horizon"`
	Expected    int              `json:"expected"`
	Missing     []string         `json:"missing"`
	Duplicates  []string         `json:"duplicates"`
	Extras      []OccurrenceView `json:"extras"`
}

func reportView(r instance.Report) ReportView {
	return ReportView{
		TemplateID:  r.TemplateID,
		Valid:       r.IsValid(),
		WindowStart: day(r.WindowStart),
		Horizon:     day(r.Horizon),
		Expected:    len(r.Expected),
		Missing:     days(r.MissingDates),
		Duplicates:  days(r.DuplicateDates),
		Extras:      occurrenceViews(r.ExtraOccurrences),
	}
}

func (v ReportView) text() string {
	var b strings.Builder
	window := v.WindowStart + ".." + v.Horizon
	if v.Valid {
		fmt.Fprintf(&b, "%s: ok (%d expected in %s)\n", v.TemplateID, v.Expected, window)
		return b.String()
	}
	fmt.Fprintf(&b, "%s: drift found in %s\n", v.TemplateID, window)
	if len(v.Missing) > 0 {
		fmt.Fprintf(&b, "  missing:    %s\n", strings.Join(v.Missing, ", "))
	}
	if len(v.Duplicates) > 0 {
		fmt.Fprintf(&b, "  duplicates: %s\n", strings.Join(v.Duplicates, ", "))
	}
	for _, o := range v.Extras {
		fmt.Fprintf(&b, "  extra:      %s %s (%s)\n", o.DueDate, o.ID, o.Status)
	}
	return b.String()
}

func day(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format(time.DateOnly)
}

func days(ts []time.Time) []string {
	out := make([]string, 0, len(ts))
	for _, t := range ts {
		out = append(out, day(t))
	}
	return out
}
