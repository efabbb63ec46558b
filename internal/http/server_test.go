package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"survey/internal/analysis"
	"survey/internal/core"
	"survey/internal/export"
	"survey/internal/middleware/ratelimit"
)

type fakeService struct {
	records   []core.Record
	submitErr error
	listErr   error
	pingErr   error
	submitted []url.Values
}

func (f *fakeService) SubmitForm(_ context.Context, form url.Values) (core.Record, error) {
	f.submitted = append(f.submitted, form)
	if f.submitErr != nil {
		return core.Record{}, f.submitErr
	}
	rec, err := core.FromForm(form, time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC))
	if err != nil {
		return core.Record{}, err
	}
	if err := rec.MarkPersisted("42"); err != nil {
		return core.Record{}, err
	}
	f.records = append(f.records, rec)
	return rec, nil
}

func (f *fakeService) Records(context.Context) ([]core.Record, error) {
	return f.records, f.listErr
}

func (f *fakeService) Recent(context.Context) ([]core.Record, error) {
	if f.listErr != nil {
		return nil, f.listErr
	}
	return core.MostRecentFirst(f.records), nil
}

func (f *fakeService) Summary(context.Context) (core.Summary, bool, error) {
	if f.listErr != nil {
		return core.Summary{}, false, f.listErr
	}
	s, ok := core.Summarize(f.records)
	return s, ok, nil
}

func (f *fakeService) Analysis(context.Context) (analysis.Report, error) {
	if f.listErr != nil {
		return analysis.Report{}, f.listErr
	}
	return analysis.Analyze(f.records), nil
}

func (f *fakeService) ExportRecords(_ context.Context, sampleFallback bool) ([]core.Record, bool, error) {
	if f.listErr != nil {
		return nil, false, f.listErr
	}
	if len(f.records) == 0 && sampleFallback {
		return core.SampleRecords(), true, nil
	}
	return f.records, false, nil
}

func (f *fakeService) Ping(context.Context) error { return f.pingErr }

func newTestServer(t *testing.T, svc *fakeService) *Server {
	t.Helper()
	srv, err := NewServer(svc, Config{Addr: ":0", RateLimit: ratelimit.Config{RequestsPerMinute: 600, Burst: 100}})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv
}

func do(srv *Server, req *http.Request) *httptest.ResponseRecorder {
	rr := httptest.NewRecorder()
	srv.Handler.ServeHTTP(rr, req)
	return rr
}

func postForm(form url.Values, accept string) *http.Request {
	req := httptest.NewRequest(http.MethodPost, "/submit", strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if accept != "" {
		req.Header.Set("Accept", accept)
	}
	return req
}

func validForm() url.Values {
	return url.Values{
		"age":                {"30"},
		"gender":             {"Female"},
		"total_income":       {"4500"},
		"utilities_checkbox": {"on"},
		"utilities_amount":   {"300"},
		"shopping_checkbox":  {"on"},
		"shopping_amount":    {"800"},
	}
}

func TestIndexAndHealth(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("index status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Financial Survey") || !strings.Contains(body, `name="school_fees_checkbox"`) {
		t.Fatalf("index body missing form fields")
	}
	if rr.Header().Get("Content-Security-Policy") == "" || rr.Header().Get("X-Request-ID") == "" {
		t.Fatalf("missing security or request id headers: %v", rr.Header())
	}

	for _, path := range []string{"/healthz", "/readyz", "/metrics"} {
		rr := do(srv, httptest.NewRequest(http.MethodGet, path, nil))
		if rr.Code != http.StatusOK {
			t.Fatalf("%s status=%d", path, rr.Code)
		}
	}

	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/nope", nil)); rr.Code != http.StatusNotFound {
		t.Fatalf("unknown path status=%d", rr.Code)
	}
}

func TestReadyReportsStorageFailure(t *testing.T) {
	srv := newTestServer(t, &fakeService{pingErr: errors.New("no route to host")})
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	if rr.Code != http.StatusServiceUnavailable {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.Contains(rr.Body.String(), "no route to host") {
		t.Fatalf("body = %s", rr.Body.String())
	}
}

func TestSubmitSuccess(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	rr := do(srv, postForm(validForm(), ""))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d body=%s", rr.Code, rr.Body.String())
	}
	if !strings.Contains(rr.Body.String(), "Survey submitted successfully") {
		t.Fatalf("missing success flash")
	}

	rr = do(srv, postForm(validForm(), "application/json"))
	if rr.Code != http.StatusCreated {
		t.Fatalf("json status=%d", rr.Code)
	}
	var view responseView
	if err := json.Unmarshal(rr.Body.Bytes(), &view); err != nil {
		t.Fatal(err)
	}
	if view.ID != "42" || view.TotalExpenses != 1100 || view.Savings != 3400 {
		t.Fatalf("view = %+v", view)
	}
}

func TestSubmitValidation(t *testing.T) {
	svc := &fakeService{}
	srv := newTestServer(t, svc)

	form := validForm()
	form.Set("total_income", "-5")

	rr := do(srv, postForm(form, ""))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	if !strings.Contains(body, "Please check your answers") {
		t.Fatalf("missing error flash")
	}
	if !strings.Contains(body, `value="30"`) {
		t.Fatalf("form values were not preserved")
	}

	rr = do(srv, postForm(form, "application/json"))
	if rr.Code != http.StatusUnprocessableEntity {
		t.Fatalf("json status=%d", rr.Code)
	}
	var body2 struct{ Error, Field string }
	if err := json.Unmarshal(rr.Body.Bytes(), &body2); err != nil {
		t.Fatal(err)
	}
	if body2.Field != "total_income" {
		t.Fatalf("field = %q", body2.Field)
	}
}

func TestSubmitStorageFailure(t *testing.T) {
	srv := newTestServer(t, &fakeService{submitErr: errors.New("disk full")})
	if rr := do(srv, postForm(validForm(), "")); rr.Code != http.StatusInternalServerError {
		t.Fatalf("status=%d", rr.Code)
	}
	if rr := do(srv, postForm(validForm(), "application/json")); rr.Code != http.StatusInternalServerError {
		t.Fatalf("json status=%d", rr.Code)
	}
}

func TestSubmitMethodAndBody(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	if rr := do(srv, httptest.NewRequest(http.MethodGet, "/submit", nil)); rr.Code != http.StatusMethodNotAllowed {
		t.Fatalf("GET /submit status=%d", rr.Code)
	}

	big := url.Values{"age": {strings.Repeat("9", maxFormBytes+1)}}
	if rr := do(srv, postForm(big, "")); rr.Code != http.StatusRequestEntityTooLarge {
		t.Fatalf("oversized body status=%d", rr.Code)
	}
}

func TestSubmitRateLimited(t *testing.T) {
	svc := &fakeService{}
	srv, err := NewServer(svc, Config{RateLimit: ratelimit.Config{RequestsPerMinute: 1, Burst: 1}})
	if err != nil {
		t.Fatal(err)
	}
	defer srv.Shutdown(context.Background())

	if rr := do(srv, postForm(validForm(), "")); rr.Code != http.StatusOK {
		t.Fatalf("first status=%d", rr.Code)
	}
	if rr := do(srv, postForm(validForm(), "")); rr.Code != http.StatusTooManyRequests {
		t.Fatalf("second status=%d", rr.Code)
	}
	if len(svc.submitted) != 1 {
		t.Fatalf("limited request reached the service")
	}
}

func TestDashboard(t *testing.T) {
	svc := &fakeService{records: core.SampleRecords()}
	srv := newTestServer(t, svc)

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	body := rr.Body.String()
	for _, want := range []string{"sample_1", "sample_5", "<strong>5</strong>", "<strong>5600.00</strong>"} {
		if !strings.Contains(body, want) {
			t.Fatalf("dashboard missing %q", want)
		}
	}

	empty := newTestServer(t, &fakeService{})
	rr = do(empty, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if !strings.Contains(rr.Body.String(), "No responses yet") {
		t.Fatalf("empty dashboard missing placeholder")
	}

	failing := newTestServer(t, &fakeService{listErr: errors.New("boom")})
	rr = do(failing, httptest.NewRequest(http.MethodGet, "/dashboard", nil))
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("failing dashboard status=%d", rr.Code)
	}
}

func TestAPIData(t *testing.T) {
	srv := newTestServer(t, &fakeService{records: core.SampleRecords()[:2]})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/data", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var views []responseView
	if err := json.Unmarshal(rr.Body.Bytes(), &views); err != nil {
		t.Fatal(err)
	}
	if len(views) != 2 || views[0].ID != "sample_1" {
		t.Fatalf("views = %+v", views)
	}
	if _, err := time.Parse(time.RFC3339, views[0].SubmissionDate); err != nil {
		t.Fatalf("submission_date %q is not ISO-8601", views[0].SubmissionDate)
	}
	if rr.Header().Get("Cache-Control") != "no-store" {
		t.Fatalf("Cache-Control = %q", rr.Header().Get("Cache-Control"))
	}
}

func TestAPISummary(t *testing.T) {
	srv := newTestServer(t, &fakeService{})
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	if got := strings.TrimSpace(rr.Body.String()); got != "{}" {
		t.Fatalf("empty summary = %s", got)
	}

	srv = newTestServer(t, &fakeService{records: core.SampleRecords()})
	rr = do(srv, httptest.NewRequest(http.MethodGet, "/api/summary", nil))
	body := rr.Body.String()
	if !strings.Contains(body, `"total_participants":5`) {
		t.Fatalf("summary = %s", body)
	}
	if strings.Index(body, `"Female"`) > strings.Index(body, `"Male"`) {
		t.Fatalf("gender distribution not in first-appearance order: %s", body)
	}
}

func TestAPIAnalysis(t *testing.T) {
	srv := newTestServer(t, &fakeService{records: core.SampleRecords()})
	rr := do(srv, httptest.NewRequest(http.MethodGet, "/api/analysis", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	var report struct {
		Participants int            `json:"participants"`
		AgeGroups    map[string]int `json:"age_groups"`
		Healthcare   map[string]any `json:"healthcare"`
	}
	if err := json.Unmarshal(rr.Body.Bytes(), &report); err != nil {
		t.Fatalf("decode: %v\n%s", err, rr.Body.String())
	}
	if report.Participants != 5 || report.AgeGroups["26-35"] != 4 || report.Healthcare == nil {
		t.Fatalf("report = %+v", report)
	}
}

func TestExportCSV(t *testing.T) {
	srv := newTestServer(t, &fakeService{})

	rr := do(srv, httptest.NewRequest(http.MethodGet, "/export.csv", nil))
	if rr.Code != http.StatusOK {
		t.Fatalf("status=%d", rr.Code)
	}
	if !strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv") {
		t.Fatalf("Content-Type = %q", rr.Header().Get("Content-Type"))
	}
	if got := strings.TrimSpace(rr.Body.String()); got != strings.Join(export.Columns, ",") {
		t.Fatalf("empty export = %q", got)
	}

	rr = do(srv, httptest.NewRequest(http.MethodGet, "/export.csv?sample=true", nil))
	if lines := strings.Count(rr.Body.String(), "\n"); lines != 6 {
		t.Fatalf("sample export has %d lines, want 6", lines)
	}

	failing := newTestServer(t, &fakeService{listErr: errors.New("boom")})
	if rr := do(failing, httptest.NewRequest(http.MethodGet, "/export.csv", nil)); rr.Code != http.StatusInternalServerError {
		t.Fatalf("failing export status=%d", rr.Code)
	}
}
