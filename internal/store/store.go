package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"chorecal/internal/model"
	"chorecal/internal/recurrence"
)

// Store is the gorm-backed repository for templates and their occurrences.
// It satisfies instance.Store.
type Store struct {
	db *gorm.DB
}

func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Open opens (and migrates) the database at dsn.
func Open(dsn string) (*Store, error) {
	db, err := NewDB(dsn)
	if err != nil {
		return nil, err
	}
	return New(db), nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

func newID() string {
	return uuid.Must(uuid.NewV7()).String()
}

// CreateTemplate inserts t, assigning an id when it has none, and returns
// the stored template.
func (s *Store) CreateTemplate(ctx context.Context, t model.Template) (model.Template, error) {
	if t.ID == "" {
		t.ID = newID()
	}
	rec, err := toTemplateRecord(t)
	if err != nil {
		return model.Template{}, err
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return model.Template{}, fmt.Errorf("create template: %w", err)
	}
	return rec.template()
}

// UpsertTemplate creates or replaces the template with t.ID. Existing
// occurrences are kept; a Fix brings them in line with a changed pattern.
func (s *Store) UpsertTemplate(ctx context.Context, t model.Template) error {
	if t.ID == "" {
		return errors.New("upsert template: empty id")
	}
	rec, err := toTemplateRecord(t)
	if err != nil {
		return err
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("upsert template: %w", err)
	}
	return nil
}

func (s *Store) GetTemplate(ctx context.Context, id string) (model.Template, error) {
	var rec templateRecord
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Template{}, fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
	}
	if err != nil {
		return model.Template{}, fmt.Errorf("get template: %w", err)
	}
	return rec.template()
}

// ListTemplates returns all templates in creation order.
func (s *Store) ListTemplates(ctx context.Context) ([]model.Template, error) {
	var recs []templateRecord
	if err := s.db.WithContext(ctx).Order("created_at, id").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list templates: %w", err)
	}
	out := make([]model.Template, 0, len(recs))
	for _, rec := range recs {
		t, err := rec.template()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// DeleteTemplate removes the template and all of its occurrences.
func (s *Store) DeleteTemplate(ctx context.Context, id string) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("template_id = ?", id).Delete(&occurrenceRecord{}).Error; err != nil {
			return fmt.Errorf("delete occurrences: %w", err)
		}
		res := tx.Where("id = ?", id).Delete(&templateRecord{})
		if res.Error != nil {
			return fmt.Errorf("delete template: %w", res.Error)
		}
		if res.RowsAffected == 0 {
			return fmt.Errorf("%w: %s", ErrTemplateNotFound, id)
		}
		return nil
	})
}

// ListOccurrences returns the template's occurrences ordered by due day,
// then insertion. Ids are time-ordered, so among occurrences sharing a day
// the first listed is the oldest.
func (s *Store) ListOccurrences(ctx context.Context, templateID string) ([]model.Occurrence, error) {
	var recs []occurrenceRecord
	if err := s.db.WithContext(ctx).Where("template_id = ?", templateID).
		Order("due_on, created_at, id").
		Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("list occurrences: %w", err)
	}
	out := make([]model.Occurrence, 0, len(recs))
	for _, rec := range recs {
		o, err := rec.occurrence()
		if err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, nil
}

// InsertOccurrence stores a pending occurrence due on due's calendar day.
func (s *Store) InsertOccurrence(ctx context.Context, templateID string, due time.Time) (string, error) {
	rec := occurrenceRecord{
		ID:         newID(),
		TemplateID: templateID,
		DueOn:      recurrence.DateOf(due).Format(time.DateOnly),
		Status:     string(model.StatusPending),
	}
	if err := s.db.WithContext(ctx).Create(&rec).Error; err != nil {
		return "", fmt.Errorf("insert occurrence: %w", err)
	}
	return rec.ID, nil
}

func (s *Store) DeleteOccurrence(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&occurrenceRecord{})
	if res.Error != nil {
		return fmt.Errorf("delete occurrence: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrOccurrenceNotFound, id)
	}
	return nil
}

// SetOccurrenceStatus records a completion-workflow transition.
func (s *Store) SetOccurrenceStatus(ctx context.Context, id string, status model.OccurrenceStatus) error {
	switch status {
	case model.StatusPending, model.StatusInProgress, model.StatusCompleted, model.StatusSkipped:
	default:
		return fmt.Errorf("set occurrence status: unknown status %q", status)
	}
	res := s.db.WithContext(ctx).Model(&occurrenceRecord{}).Where("id = ?", id).Update("status", string(status))
	if res.Error != nil {
		return fmt.Errorf("set occurrence status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrOccurrenceNotFound, id)
	}
	return nil
}
