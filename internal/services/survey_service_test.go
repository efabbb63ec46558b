package services

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"survey/internal/config"
	"survey/internal/core"
	"survey/internal/export"
)

type fakeRepo struct {
	mu        sync.Mutex
	docs      []core.Document
	insertErr error
	listErr   error
	lists     int
	closed    bool
	// onList runs after the documents are read and before they are
	// returned.
	onList func()
}

func (f *fakeRepo) Insert(_ context.Context, r core.Record) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return "", f.insertErr
	}
	id := strconv.Itoa(len(f.docs) + 1)
	doc := r.Document()
	doc[core.KeyID] = id
	f.docs = append(f.docs, doc)
	return id, nil
}

func (f *fakeRepo) ListDocuments(ctx context.Context) ([]core.Document, error) {
	f.mu.Lock()
	f.lists++
	if f.listErr != nil {
		f.mu.Unlock()
		return nil, f.listErr
	}
	out := make([]core.Document, len(f.docs))
	copy(out, f.docs)
	f.mu.Unlock()

	if f.onList != nil {
		f.onList()
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func (f *fakeRepo) listCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.lists
}

// blockFirstList makes the first ListDocuments call signal listed and wait
// for release.
func (f *fakeRepo) blockFirstList() (listed, release chan struct{}) {
	listed, release = make(chan struct{}), make(chan struct{})
	var once sync.Once
	f.onList = func() {
		once.Do(func() {
			close(listed)
			<-release
		})
	}
	return listed, release
}

func (f *fakeRepo) Ping(context.Context) error { return nil }

func (f *fakeRepo) Close() error {
	f.closed = true
	return nil
}

type fakePublisher struct {
	ids    []string
	err    error
	closed bool
}

func (p *fakePublisher) PublishResponseSubmitted(_ context.Context, id string, _ time.Time) error {
	p.ids = append(p.ids, id)
	return p.err
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return errors.New("already closed")
}

var fixedNow = time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)

func newTestService(repo *fakeRepo, opts ...Option) *SurveyService {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return NewSurveyService(repo, opts...)
}

func TestSurveyService_SubmitForm(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	svc := newTestService(repo, WithPublisher(pub))

	form := url.Values{
		"age":                {"30"},
		"gender":             {"Female"},
		"total_income":       {"4500"},
		"utilities_checkbox": {"on"},
		"utilities_amount":   {"300"},
		"shopping_checkbox":  {"on"},
		"shopping_amount":    {"800"},
	}
	rec, err := svc.SubmitForm(context.Background(), form)
	if err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	if rec.ID() != "1" || !rec.Persisted() {
		t.Fatalf("record id = %q persisted = %v", rec.ID(), rec.Persisted())
	}
	if rec.TotalExpenses() != 1100 || rec.Savings() != 3400 {
		t.Fatalf("totals = %+v", rec.Totals())
	}
	if !rec.SubmittedAt.Equal(fixedNow) {
		t.Fatalf("SubmittedAt = %v, want %v", rec.SubmittedAt, fixedNow)
	}
	if len(pub.ids) != 1 || pub.ids[0] != "1" {
		t.Fatalf("published ids = %v", pub.ids)
	}
}

func TestSurveyService_SubmitFormInvalid(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo)

	_, err := svc.SubmitForm(context.Background(), url.Values{"gender": {"Male"}, "total_income": {"100"}})
	var verr *core.ValidationError
	if !errors.As(err, &verr) || verr.Field != core.FieldAge {
		t.Fatalf("err = %v, want age validation error", err)
	}
	if len(repo.docs) != 0 {
		t.Fatalf("invalid form was stored")
	}
}

func TestSurveyService_SubmitPublishFailureDoesNotFail(t *testing.T) {
	pub := &fakePublisher{err: errors.New("broker down")}
	svc := newTestService(&fakeRepo{}, WithPublisher(pub))

	rec := core.MustRecord(core.Input{Age: 40, Gender: "Male", TotalIncome: 1000})
	if _, err := svc.Submit(context.Background(), rec); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	if len(pub.ids) != 1 {
		t.Fatalf("publisher not called")
	}
}

func TestSurveyService_SubmitErrors(t *testing.T) {
	storeErr := errors.New("disk full")
	svc := newTestService(&fakeRepo{insertErr: storeErr})
	rec := core.MustRecord(core.Input{Age: 40, Gender: "Male", TotalIncome: 1000})
	if _, err := svc.Submit(context.Background(), rec); !errors.Is(err, storeErr) {
		t.Fatalf("err = %v, want wrapped %v", err, storeErr)
	}

	svc = newTestService(&fakeRepo{})
	if err := rec.MarkPersisted("7"); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Submit(context.Background(), rec); !errors.Is(err, ErrAlreadyPersisted) {
		t.Fatalf("err = %v, want ErrAlreadyPersisted", err)
	}
}

func TestSurveyService_RecordsCachedUntilSubmit(t *testing.T) {
	repo := &fakeRepo{}
	svc := newTestService(repo, WithCache(time.Hour))
	ctx := context.Background()

	if _, err := svc.Seed(ctx); err != nil {
		t.Fatalf("Seed: %v", err)
	}
	for i := 0; i < 3; i++ {
		records, err := svc.Records(ctx)
		if err != nil {
			t.Fatalf("Records: %v", err)
		}
		if len(records) != 5 {
			t.Fatalf("len = %d, want 5", len(records))
		}
	}
	if repo.lists != 1 {
		t.Fatalf("repository listed %d times, want 1", repo.lists)
	}

	rec := core.MustRecord(core.Input{Age: 50, Gender: "Female", TotalIncome: 2000})
	if _, err := svc.Submit(ctx, rec); err != nil {
		t.Fatal(err)
	}
	records, err := svc.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 6 || repo.lists != 2 {
		t.Fatalf("len = %d lists = %d, want 6 and 2", len(records), repo.lists)
	}
	for _, r := range records {
		if !r.Persisted() {
			t.Fatalf("loaded record %s not marked persisted", r.ID())
		}
	}
}

func TestSurveyService_SubmitDuringLoadIsNotMasked(t *testing.T) {
	repo := &fakeRepo{}
	listed, release := repo.blockFirstList()
	svc := newTestService(repo, WithCache(time.Hour))
	ctx := context.Background()

	stale := make(chan int, 1)
	go func() {
		records, err := svc.Records(ctx)
		if err != nil {
			t.Errorf("Records: %v", err)
		}
		stale <- len(records)
	}()

	<-listed
	form := url.Values{"age": {"41"}, "gender": {"Male"}, "total_income": {"3000"}}
	if _, err := svc.SubmitForm(ctx, form); err != nil {
		t.Fatalf("SubmitForm: %v", err)
	}
	close(release)
	if n := <-stale; n != 0 {
		t.Fatalf("load started before the submit saw %d records, want 0", n)
	}

	records, err := svc.Records(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 {
		t.Fatalf("records after submit = %d, want 1", len(records))
	}
}

func TestSurveyService_RecordsSurvivesCancelledCaller(t *testing.T) {
	repo := &fakeRepo{}
	listed, release := repo.blockFirstList()
	svc := newTestService(repo, WithCache(time.Hour))
	if _, err := svc.Seed(context.Background()); err != nil {
		t.Fatal(err)
	}

	first, cancel := context.WithCancel(context.Background())
	firstErr := make(chan error, 1)
	go func() {
		_, err := svc.Records(first)
		firstErr <- err
	}()
	<-listed

	type result struct {
		n   int
		err error
	}
	second := make(chan result, 1)
	go func() {
		records, err := svc.Records(context.Background())
		second <- result{len(records), err}
	}()

	cancel()
	if err := <-firstErr; !errors.Is(err, context.Canceled) {
		t.Fatalf("cancelled caller err = %v, want context.Canceled", err)
	}
	close(release)

	res := <-second
	if res.err != nil || res.n != 5 {
		t.Fatalf("other caller got %d records, err %v", res.n, res.err)
	}
	if n := repo.listCount(); n != 1 {
		t.Fatalf("repository listed %d times, want 1 shared load", n)
	}
}

func TestSurveyService_LoadPolicy(t *testing.T) {
	bad := core.Document{core.KeyID: "x", core.KeyAge: "old", core.KeyGender: "Male", core.KeyTotalIncome: 10.0}
	good := core.MustRecord(core.Input{Age: 20, Gender: "Female", TotalIncome: 10}).Document()

	repo := &fakeRepo{docs: []core.Document{good, bad}}
	records, report, err := newTestService(repo).Load(context.Background())
	if err != nil {
		t.Fatalf("skip policy: %v", err)
	}
	if len(records) != 1 || report.Loaded != 1 || len(report.Skipped) != 1 || report.Skipped[0].ID != "x" {
		t.Fatalf("records = %d report = %+v", len(records), report)
	}

	_, _, err = newTestService(repo, WithPolicy(PolicyAbort)).Load(context.Background())
	var rerr *RecordError
	if !errors.As(err, &rerr) || rerr.Index != 1 {
		t.Fatalf("abort policy err = %v", err)
	}
	if !errors.Is(err, core.ErrValidation) {
		t.Fatalf("abort error does not wrap ErrValidation: %v", err)
	}
}

func TestSurveyService_SummaryEmpty(t *testing.T) {
	_, ok, err := newTestService(&fakeRepo{}).Summary(context.Background())
	if err != nil || ok {
		t.Fatalf("Summary on empty store = ok %v err %v", ok, err)
	}
}

func TestSurveyService_ListError(t *testing.T) {
	listErr := errors.New("connection refused")
	svc := newTestService(&fakeRepo{listErr: listErr})
	if _, err := svc.Records(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("err = %v, want wrapped %v", err, listErr)
	}
	if _, err := svc.Analysis(context.Background()); !errors.Is(err, listErr) {
		t.Fatalf("Analysis err = %v", err)
	}
}

func TestSurveyService_Export(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "out", "export.csv")

	svc := newTestService(&fakeRepo{})
	res, err := svc.Export(ctx, path, false)
	if err != nil {
		t.Fatalf("Export: %v", err)
	}
	if res.Records != 0 || res.Sample {
		t.Fatalf("result = %+v", res)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if got := strings.TrimSpace(string(data)); got != strings.Join(export.Columns, ",") {
		t.Fatalf("empty export = %q", got)
	}

	res, err = svc.Export(ctx, path, true)
	if err != nil {
		t.Fatalf("Export with fallback: %v", err)
	}
	if res.Records != 5 || !res.Sample {
		t.Fatalf("fallback result = %+v", res)
	}
}

func TestSurveyService_ExportDefaultPathOnFreshDirectory(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv("EXPORT_PATH", "")

	path := config.Load().ExportPath
	res, err := newTestService(&fakeRepo{}).Export(context.Background(), path, true)
	if err != nil {
		t.Fatalf("Export to %s: %v", path, err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("export file missing: %v", err)
	}
	if res.Records != 5 {
		t.Fatalf("result = %+v", res)
	}
}

func TestSurveyService_Import(t *testing.T) {
	var buf bytes.Buffer
	if err := export.WriteCSV(&buf, core.SampleRecords()); err != nil {
		t.Fatal(err)
	}
	buf.WriteString("sample_6,abc,Male,100,0.0,100.0,100.00,0.0,0.0,0.0,0.0,0.0,2024-01-01 00:00:00\n")

	repo := &fakeRepo{}
	report, err := newTestService(repo).Import(context.Background(), &buf)
	if err != nil {
		t.Fatalf("Import: %v", err)
	}
	if report.Loaded != 5 || len(report.Skipped) != 1 {
		t.Fatalf("report = %+v", report)
	}
	if len(repo.docs) != 5 {
		t.Fatalf("stored %d docs, want 5", len(repo.docs))
	}
	if repo.docs[0][core.KeyID] != "1" {
		t.Fatalf("imported id = %v, want store-assigned 1", repo.docs[0][core.KeyID])
	}
}

func TestSurveyService_Close(t *testing.T) {
	repo := &fakeRepo{}
	pub := &fakePublisher{}
	err := newTestService(repo, WithPublisher(pub)).Close()
	if !repo.closed || !pub.closed {
		t.Fatalf("closed repo=%v publisher=%v", repo.closed, pub.closed)
	}
	if err == nil || !strings.Contains(err.Error(), "amqp") {
		t.Fatalf("err = %v, want amqp close error", err)
	}

	t.Run("nil components", func(t *testing.T) {
		service := &SurveyService{}
		if err := service.Close(); err != nil {
			t.Fatalf("Close should not return error with nil components: %v", err)
		}
	})
}
