package store

import (
	"encoding/json"
	"fmt"
	"time"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

type templateRecord struct {
	ID       string `gorm:"primaryKey;size:36"`
	Title    string `gorm:"not null"`
	AnchorOn string `gorm:"size:10;not null"`
	// Pattern is the JSON pattern document; empty for one-off chores.
	Pattern   string `gorm:"type:text"`
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (templateRecord) TableName() string { return "templates" }

type occurrenceRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	TemplateID string `gorm:"index:idx_occurrences_template_due,priority:1;size:36;not null"`
	DueOn      string `gorm:"index:idx_occurrences_template_due,priority:2;size:10;not null"`
	Status     string `gorm:"size:16;not null;default:pending"`
	CreatedAt  time.Time
}

func (occurrenceRecord) TableName() string { return "occurrences" }

func toTemplateRecord(t model.Template) (templateRecord, error) {
	rec := templateRecord{
		ID:       t.ID,
		Title:    t.Title,
		AnchorOn: recurrence.DateOf(t.AnchorDate).Format(time.DateOnly),
	}
	if t.Pattern != nil {
		if err := t.Pattern.Validate(); err != nil {
			return templateRecord{}, err
		}
		doc, err := json.Marshal(t.Pattern)
		if err != nil {
			return templateRecord{}, fmt.Errorf("encode pattern: %w", err)
		}
		rec.Pattern = string(doc)
	}
	return rec, nil
}

func (r templateRecord) template() (model.Template, error) {
	anchor, err := recurrence.ParseDate(r.AnchorOn)
	if err != nil {
		return model.Template{}, fmt.Errorf("template %s: anchor: %w", r.ID, err)
	}
	t := model.Template{ID: r.ID, Title: r.Title, AnchorDate: anchor}
	if r.Pattern != "" {
		var p recurrence.Pattern
		if err := json.Unmarshal([]byte(r.Pattern), &p); err != nil {
			return model.Template{}, fmt.Errorf("template %s: pattern: %w", r.ID, err)
		}
		t.Pattern = &p
	}
	return t, nil
}

func (r occurrenceRecord) occurrence() (model.Occurrence, error) {
	due, err := recurrence.ParseDate(r.DueOn)
	if err != nil {
		return model.Occurrence{}, fmt.Errorf("occurrence %s: due date: %w", r.ID, err)
	}
	return model.Occurrence{
		ID:         r.ID,
		TemplateID: r.TemplateID,
		DueDate:    due,
		Status:     model.OccurrenceStatus(r.Status),
		CreatedAt:  r.CreatedAt,
	}, nil
}
