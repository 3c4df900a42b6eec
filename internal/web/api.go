package web

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/go-playground/validator/v10"

	"chorecal/internal/ics"
	"chorecal/internal/instance"
	appLog "chorecal/internal/log"
	"chorecal/internal/model"
	"chorecal/internal/recurrence"
	"chorecal/internal/scheduler"
	"chorecal/internal/store"
)

const (
	maxBodyBytes        = 1 << 20
	defaultPreviewCount = 10
	maxPreviewCount     = 366
)

var apiValidate = validator.New()

type templateDTO struct {
	ID          string              `json:"id"`
	Title       string              `json:"title"`
	AnchorDate  string              `json:"anchor_date"`
	Recurring   bool                `json:"recurring"`
	Pattern     *recurrence.Pattern `json:"pattern,omitempty"`
	Description string              `json:"description,omitempty"`
}

func toTemplateDTO(t model.Template) templateDTO {
	dto := templateDTO{
		ID:         t.ID,
		Title:      t.Title,
		AnchorDate: formatDay(t.AnchorDate),
		Recurring:  t.Recurring(),
		Pattern:    t.Pattern,
	}
	if t.Pattern != nil {
		dto.Description = recurrence.Describe(*t.Pattern)
	}
	return dto
}

type occurrenceDTO struct {
	ID         string `json:"id"`
	TemplateID string `json:"template_id"`
	DueDate    string `json:"due_date"`
	Status     string `json:"status"`
}

func toOccurrenceDTOs(occs []model.Occurrence) []occurrenceDTO {
	out := make([]occurrenceDTO, 0, len(occs))
	for _, o := range occs {
		out = append(out, occurrenceDTO{
			ID:         o.ID,
			TemplateID: o.TemplateID,
			DueDate:    formatDay(o.DueDate),
			Status:     string(o.Status),
		})
	}
	return out
}

type reportDTO struct {
	TemplateID  string          `json:"template_id"`
	Valid       bool            `json:"valid"`
	WindowStart string          `json:"window_start"`
	Horizon     string          `json:"horizon"`
	Expected    []string        `json:"expected"`
	Missing     []string        `json:"missing"`
	Duplicates  []string        `json:"duplicates"`
	Extras      []occurrenceDTO `json:"extras"`
}

func toReportDTO(r instance.Report) reportDTO {
	return reportDTO{
		TemplateID:  r.TemplateID,
		Valid:       r.IsValid(),
		WindowStart: formatDay(r.WindowStart),
		Horizon:     formatDay(r.Horizon),
		Expected:    formatDays(r.Expected),
		Missing:     formatDays(r.MissingDates),
		Duplicates:  formatDays(r.DuplicateDates),
		Extras:      toOccurrenceDTOs(r.ExtraOccurrences),
	}
}

type fixDTO struct {
	Report   reportDTO       `json:"report"`
	Deleted  []string        `json:"deleted"`
	Inserted []occurrenceDTO `json:"inserted"`
}

type createTemplateRequest struct {
	ID         string              `json:"id,omitempty" validate:"omitempty,max=64"`
	Title      string              `json:"title" validate:"required,max=200"`
	AnchorDate string              `json:"anchor_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Pattern    *recurrence.Pattern `json:"pattern,omitempty"`
}

type previewRequest struct {
	Pattern    *recurrence.Pattern `json:"pattern" validate:"required"`
	AnchorDate string              `json:"anchor_date" validate:"required,datetime=2006-01-02"`
	After      string              `json:"after,omitempty" validate:"omitempty,datetime=2006-01-02"`
	Count      int                 `json:"count,omitempty" validate:"omitempty,gte=1"`
}

type previewResponse struct {
	Description string   `json:"description"`
	RRule       string   `json:"rrule,omitempty"`
	Dates       []string `json:"dates"`
}

func (s *Server) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	tmpls, err := s.deps.Store.ListTemplates(r.Context())
	if err != nil {
		appLog.Error("api: list templates failed", err)
		writeError(w, http.StatusInternalServerError, "failed to list templates")
		return
	}
	out := make([]templateDTO, 0, len(tmpls))
	for _, t := range tmpls {
		out = append(out, toTemplateDTO(t))
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCreateTemplate(w http.ResponseWriter, r *http.Request) {
	var req createTemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	anchor := recurrence.DateOf(s.deps.Clock.Now())
	if req.AnchorDate != "" {
		d, err := recurrence.ParseDate(req.AnchorDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		anchor = d
	}

	created, err := s.deps.Store.CreateTemplate(r.Context(), model.Template{
		ID:         req.ID,
		Title:      req.Title,
		AnchorDate: anchor,
		Pattern:    req.Pattern,
	})
	if err != nil {
		appLog.Error("api: create template failed", err)
		writeError(w, http.StatusInternalServerError, "failed to create template")
		return
	}
	appLog.Info("template created", "id", created.ID, "recurring", created.Recurring())
	writeJSON(w, http.StatusCreated, toTemplateDTO(created))
}

func (s *Server) handleGetTemplate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toTemplateDTO(tmpl))
}

// handleOccurrences lists persisted occurrences in store order.
//
// GET /api/templates/{id}/occurrences?limit=N
func (s *Server) handleOccurrences(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	occs, err := s.deps.Store.ListOccurrences(r.Context(), tmpl.ID)
	if err != nil {
		appLog.Error("api: list occurrences failed", err, "template", tmpl.ID)
		writeError(w, http.StatusInternalServerError, "failed to list occurrences")
		return
	}
	if limit := parseIntDefault(r.URL.Query().Get("limit"), 0); limit > 0 && len(occs) > limit {
		occs = occs[:limit]
	}
	writeJSON(w, http.StatusOK, toOccurrenceDTOs(occs))
}

func (s *Server) handleGenerate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	inserted, err := s.deps.Generator.Generate(r.Context(), tmpl)
	if err != nil {
		appLog.Error("api: generate failed", err, "template", tmpl.ID, "inserted", len(inserted))
		writeError(w, http.StatusInternalServerError, "failed to generate occurrences")
		return
	}
	appLog.Info("occurrences generated", "template", tmpl.ID, "inserted", len(inserted))
	writeJSON(w, http.StatusOK, map[string]any{"inserted": toOccurrenceDTOs(inserted)})
}

func (s *Server) handleValidate(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	report, err := s.deps.Validator.Validate(r.Context(), tmpl)
	if err != nil {
		appLog.Error("api: validate failed", err, "template", tmpl.ID)
		writeError(w, http.StatusInternalServerError, "failed to validate occurrences")
		return
	}
	writeJSON(w, http.StatusOK, toReportDTO(report))
}

func (s *Server) handleFix(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	res, err := s.deps.Validator.Fix(r.Context(), tmpl)
	if err != nil {
		appLog.Error("api: fix failed", err, "template", tmpl.ID,
			"deleted", len(res.Deleted), "inserted", len(res.Inserted))
		writeError(w, http.StatusInternalServerError, "failed to fix occurrences")
		return
	}
	if res.Changed() {
		appLog.Info("occurrences repaired", "template", tmpl.ID,
			"deleted", len(res.Deleted), "inserted", len(res.Inserted))
	}
	deleted := res.Deleted
	if deleted == nil {
		deleted = []string{}
	}
	writeJSON(w, http.StatusOK, fixDTO{
		Report:   toReportDTO(res.Report),
		Deleted:  deleted,
		Inserted: toOccurrenceDTOs(res.Inserted),
	})
}

func (s *Server) handleCalendar(w http.ResponseWriter, r *http.Request) {
	tmpl, ok := s.lookupTemplate(w, r)
	if !ok {
		return
	}
	occs, err := s.deps.Store.ListOccurrences(r.Context(), tmpl.ID)
	if err != nil {
		appLog.Error("api: list occurrences failed", err, "template", tmpl.ID)
		writeError(w, http.StatusInternalServerError, "failed to list occurrences")
		return
	}
	body := ics.Export(tmpl, occs, s.deps.Clock.Now())

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.Header().Set("Content-Disposition", fmt.Sprintf("inline; filename=%q", tmpl.ID+".ics"))
	w.WriteHeader(http.StatusOK)
	_, _ = io.WriteString(w, body)
}

// handleDescribe renders a pattern document as English.
//
// POST /api/describe with a pattern document as the body.
func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	var p recurrence.Pattern
	if !decodeBody(w, r, &p) {
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"description": recurrence.Describe(p)})
}

// handlePreview evaluates a pattern without persisting anything.
func (s *Server) handlePreview(w http.ResponseWriter, r *http.Request) {
	var req previewRequest
	if !decodeBody(w, r, &req) {
		return
	}

	anchor, err := recurrence.ParseDate(req.AnchorDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	after := recurrence.DateOf(s.deps.Clock.Now())
	if req.After != "" {
		if after, err = recurrence.ParseDate(req.After); err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
	}
	count := req.Count
	if count == 0 {
		count = defaultPreviewCount
	}
	count = min(count, maxPreviewCount)

	resp := previewResponse{
		Description: recurrence.Describe(*req.Pattern),
		Dates:       formatDays(recurrence.NextOccurrences(*req.Pattern, anchor, after, count)),
	}
	if rule, err := ics.RRuleString(*req.Pattern, anchor); err == nil {
		resp.RRule = rule
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) handleReconcile(w http.ResponseWriter, r *http.Request) {
	if s.deps.Reconciler == nil {
		writeError(w, http.StatusNotFound, "reconciler not configured")
		return
	}
	summary, err := s.deps.Reconciler.RunOnce(r.Context())
	switch {
	case errors.Is(err, scheduler.ErrPassRunning):
		writeError(w, http.StatusConflict, err.Error())
	case err != nil:
		appLog.Error("api: reconcile failed", err)
		writeError(w, http.StatusInternalServerError, "reconcile pass failed")
	default:
		writeJSON(w, http.StatusOK, summary)
	}
}

// lookupTemplate resolves the {id} path value, writing a 404 or 500 itself
// when it cannot.
func (s *Server) lookupTemplate(w http.ResponseWriter, r *http.Request) (model.Template, bool) {
	id := r.PathValue("id")
	tmpl, err := s.deps.Store.GetTemplate(r.Context(), id)
	if errors.Is(err, store.ErrTemplateNotFound) {
		writeError(w, http.StatusNotFound, "template not found")
		return model.Template{}, false
	}
	if err != nil {
		appLog.Error("api: get template failed", err, "template", id)
		writeError(w, http.StatusInternalServerError, "failed to load template")
		return model.Template{}, false
	}
	return tmpl, true
}

// decodeBody reads a JSON body into v and runs struct validation, writing a
// 400 itself on failure.
func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := dec.Decode(v); err != nil {
		msg := "invalid request body"
		if errors.Is(err, recurrence.ErrInvalidPattern) {
			msg = err.Error()
		}
		writeError(w, http.StatusBadRequest, msg)
		return false
	}
	if err := apiValidate.Struct(v); err != nil {
		var invalid *validator.InvalidValidationError
		if !errors.As(err, &invalid) {
			writeError(w, http.StatusBadRequest, err.Error())
			return false
		}
	}
	return true
}

func formatDay(t time.Time) string {
	return t.Format(time.DateOnly)
}

func formatDays(ds []time.Time) []string {
	out := make([]string, 0, len(ds))
	for _, d := range ds {
		out = append(out, formatDay(d))
	}
	return out
}
