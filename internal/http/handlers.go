package http

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/url"
	"time"

	"survey/internal/core"
	"survey/internal/export"
	"survey/internal/log"
)

// Genders offered by the survey form. Stored values are free text.
var genderOptions = []string{"Female", "Male", "Other", "Prefer not to say"}

type flash struct {
	Kind    string
	Message string
}

type categoryField struct {
	Checkbox string
	Amount   string
	Label    string
	Checked  bool
	Value    string
}

type surveyPage struct {
	Flash      *flash
	Form       url.Values
	Genders    []string
	Categories []categoryField
}

type dashboardPage struct {
	Flash     *flash
	Stats     *core.Summary
	Responses []core.Record
}

func newSurveyPage(form url.Values, f *flash) surveyPage {
	page := surveyPage{Flash: f, Form: form, Genders: genderOptions}
	for _, category := range core.CanonicalCategories() {
		page.Categories = append(page.Categories, categoryField{
			Checkbox: core.CheckboxField(category),
			Amount:   core.AmountField(category),
			Label:    core.CategoryLabel(category),
			Checked:  form.Get(core.CheckboxField(category)) != "",
			Value:    form.Get(core.AmountField(category)),
		})
	}
	return page
}

// render executes name into a buffer so a failing template never leaves a
// half-written page.
func (s *Server) render(w http.ResponseWriter, r *http.Request, status int, name string, data any) {
	var buf bytes.Buffer
	if err := s.templates.ExecuteTemplate(&buf, name, data); err != nil {
		log.FromContext(r.Context()).ErrorContext(r.Context(), "Template execution failed",
			log.FieldError, err,
			"template", name,
			log.FieldOperation, log.OpRender)
		InternalServerError("failed to render page").Write(w)
		return
	}
	NewResponse().Status(status).BodyHTML(buf.Bytes()).Write(w)
}

func (s *Server) handleIndex(w http.ResponseWriter, r *http.Request) {
	s.render(w, r, http.StatusOK, "survey.html", newSurveyPage(nil, nil))
}

// handleSubmit stores a survey form. Browsers get the form back with a
// flash message; clients sending Accept: application/json get JSON.
func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := log.FromContext(ctx)
	asJSON := WantsJSON(r)

	form, err := ParseSubmission(w, r)
	if err != nil {
		status := http.StatusBadRequest
		if errors.Is(err, errBodyTooLarge) {
			status = http.StatusRequestEntityTooLarge
		}
		ErrorJSON(status, "invalid request body").Write(w)
		return
	}

	rec, err := s.svc.SubmitForm(ctx, form)
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		logger.WarnContext(ctx, "Survey submission rejected",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeValidation,
			log.FieldOperation, log.OpSubmit)
		if asJSON {
			ValidationErrorJSON(verr.Field, verr.Error()).Write(w)
			return
		}
		s.render(w, r, http.StatusUnprocessableEntity, "survey.html",
			newSurveyPage(form, &flash{Kind: "error", Message: "Please check your answers: " + verr.Error()}))
		return
	case err != nil:
		logger.ErrorContext(ctx, "Survey submission failed",
			log.FieldError, err,
			log.FieldErrorType, log.ErrorTypeDatabase,
			log.FieldOperation, log.OpSubmit)
		if asJSON {
			InternalServerError("failed to store the response").Write(w)
			return
		}
		s.render(w, r, http.StatusInternalServerError, "survey.html",
			newSurveyPage(form, &flash{Kind: "error", Message: "There was an error submitting your survey. Please try again."}))
		return
	}

	if asJSON {
		NewResponse().Status(http.StatusCreated).JSON(newResponseView(rec)).Write(w)
		return
	}
	s.render(w, r, http.StatusOK, "survey.html",
		newSurveyPage(nil, &flash{Kind: "success", Message: "Survey submitted successfully! Thank you for your participation."}))
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	page := dashboardPage{}

	responses, err := s.svc.Recent(ctx)
	if err == nil {
		var summary core.Summary
		var ok bool
		summary, ok, err = s.svc.Summary(ctx)
		if ok {
			page.Stats = &summary
		}
	}
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Failed to load dashboard",
			log.FieldError, err,
			log.FieldOperation, log.OpList)
		page.Flash = &flash{Kind: "error", Message: "Error loading dashboard data."}
		s.render(w, r, http.StatusInternalServerError, "dashboard.html", page)
		return
	}

	page.Responses = responses
	s.render(w, r, http.StatusOK, "dashboard.html", page)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	NewResponse().JSON(map[string]string{
		"status":    "ok",
		"timestamp": time.Now().Format(time.RFC3339),
		"uptime":    time.Since(s.startedAt).Round(time.Second).String(),
	}).Write(w)
}

// handleReady reports 503 until the response store answers a ping.
func (s *Server) handleReady(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), s.readyTimeout)
	defer cancel()

	checks := map[string]string{"templates": "ok", "storage": "ok"}
	status, code := "ready", http.StatusOK
	if err := s.svc.Ping(ctx); err != nil {
		checks["storage"] = "failed: " + err.Error()
		status, code = "not_ready", http.StatusServiceUnavailable
	}

	NewResponse().Status(code).JSON(map[string]any{
		"status":    status,
		"timestamp": time.Now().Format(time.RFC3339),
		"checks":    checks,
	}).Write(w)
}

func (s *Server) handleExportCSV(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	records, _, err := s.svc.ExportRecords(ctx, QueryBool(r, "sample"))
	if err != nil {
		log.FromContext(ctx).ErrorContext(ctx, "Export failed",
			log.FieldError, err,
			log.FieldOperation, log.OpExport)
		InternalServerError("export failed").Write(w)
		return
	}

	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, records); err != nil {
		InternalServerError("export failed").Write(w)
		return
	}
	NewResponse().
		Header("Content-Type", "text/csv; charset=utf-8").
		Header("Content-Disposition", `attachment; filename="financial_survey_data.csv"`).
		Header("Cache-Control", "no-store").
		Body(buf.Bytes()).
		Write(w)
}
