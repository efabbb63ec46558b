package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"slices"
	"sync/atomic"
	"time"

	"golang.org/x/sync/singleflight"

	"survey/internal/analysis"
	"survey/internal/cache"
	"survey/internal/core"
	"survey/internal/export"
	"survey/internal/log"
	"survey/internal/metrics"
	"survey/internal/storage"
)

// ErrAlreadyPersisted is returned when submitting a record that already
// carries a storage-assigned id.
var ErrAlreadyPersisted = errors.New("record already persisted")

const (
	recordsKey = "records"
	// loadTimeout bounds a shared record load, which outlives the request
	// that started it.
	loadTimeout = 30 * time.Second
)

// Publisher announces stored responses to downstream consumers.
type Publisher interface {
	PublishResponseSubmitted(ctx context.Context, responseID string, submittedAt time.Time) error
	Close() error
}

// SurveyService orchestrates survey responses across the repository, the
// event broker and the in-process record cache.
type SurveyService struct {
	repo      storage.Repository
	publisher Publisher
	policy    Policy
	records   *cache.LRUCache[[]core.Record]
	group     singleflight.Group
	// generation changes on every write; loads started before a write do
	// not populate the cache.
	generation atomic.Uint64
	logger     *log.Logger
	events     *log.StructuredLogger
	now        func() time.Time
}

type Option func(*SurveyService)

// WithPublisher enables response events. A nil publisher disables them.
func WithPublisher(p Publisher) Option {
	return func(s *SurveyService) { s.publisher = p }
}

func WithPolicy(p Policy) Option {
	return func(s *SurveyService) { s.policy = p }
}

// WithCache keeps decoded records for ttl. Submissions purge it.
func WithCache(ttl time.Duration) Option {
	return func(s *SurveyService) { s.records = cache.NewLRUCache[[]core.Record](1, ttl) }
}

func WithClock(now func() time.Time) Option {
	return func(s *SurveyService) { s.now = now }
}

func WithLogger(logger *log.Logger) Option {
	return func(s *SurveyService) { s.logger = logger }
}

func NewSurveyService(repo storage.Repository, opts ...Option) *SurveyService {
	s := &SurveyService{
		repo:    repo,
		policy:  PolicySkip,
		records: cache.NewLRUCache[[]core.Record](1, 0),
		logger:  log.FromContext(context.Background()),
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	s.logger = s.logger.WithComponent(log.ComponentSurvey)
	s.events = log.NewStructuredLogger(s.logger)
	return s
}

// Cache exposes the record cache so it can be registered for periodic
// cleanup.
func (s *SurveyService) Cache() *cache.LRUCache[[]core.Record] {
	return s.records
}

// Submit stores r, freezes its id and announces it. A failed publish is
// logged and never fails the submission.
func (s *SurveyService) Submit(ctx context.Context, r core.Record) (core.Record, error) {
	if r.Persisted() {
		return r, fmt.Errorf("submit %s: %w", r.ID(), ErrAlreadyPersisted)
	}

	id, err := s.repo.Insert(ctx, r)
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(metrics.ResultError).Inc()
		return r, fmt.Errorf("save response: %w", err)
	}
	s.invalidate()
	if err := r.MarkPersisted(id); err != nil {
		return r, err
	}
	metrics.SubmissionsTotal.WithLabelValues(metrics.ResultStored).Inc()
	s.events.LogResponseSubmitted(ctx, id, r.Age, r.Gender, len(r.Expenses()), r.SavingsRate())

	if err := s.publish(ctx, r); err != nil {
		s.events.LogError(ctx, "Failed to publish response event", err, log.ComponentAMQP, log.OpPublish,
			log.NewFields().WithErrorType(log.ErrorTypeNetwork))
	}
	return r, nil
}

// SubmitForm validates survey form values and submits the resulting record.
// Validation failures are returned as *core.ValidationError.
func (s *SurveyService) SubmitForm(ctx context.Context, form url.Values) (core.Record, error) {
	r, err := core.FromForm(form, s.now())
	if err != nil {
		metrics.SubmissionsTotal.WithLabelValues(metrics.ResultInvalid).Inc()
		return core.Record{}, err
	}
	return s.Submit(ctx, r)
}

func (s *SurveyService) publish(ctx context.Context, r core.Record) error {
	if s.publisher == nil {
		return nil
	}
	err := s.publisher.PublishResponseSubmitted(ctx, r.ID(), r.SubmittedAt)
	metrics.EventsPublished.WithLabelValues(metrics.Outcome(err)).Inc()
	return err
}

// Load reads and decodes every stored response under the service policy.
// It always hits the repository.
func (s *SurveyService) Load(ctx context.Context) ([]core.Record, LoadReport, error) {
	docs, err := s.repo.ListDocuments(ctx)
	if err != nil {
		return nil, LoadReport{}, fmt.Errorf("list responses: %w", err)
	}
	records, report, err := DecodeDocuments(docs, s.policy)
	if err != nil {
		return nil, report, fmt.Errorf("decode responses: %w", err)
	}
	metrics.RecordsSkipped.Add(float64(len(report.Skipped)))
	metrics.Participants.Set(float64(report.Loaded))
	for _, skipped := range report.Skipped {
		s.logger.WarnContext(ctx, "Skipping invalid stored response",
			log.FieldResponseID, skipped.ID,
			log.FieldError, skipped.Err,
			log.FieldOperation, log.OpLoad)
	}
	return records, report, nil
}

// Records returns every valid stored response in insertion order. Concurrent
// callers share one repository read; the result is cached until the next
// write or the cache ttl. A caller whose ctx ends stops waiting without
// cancelling the shared read.
func (s *SurveyService) Records(ctx context.Context) ([]core.Record, error) {
	if cached, ok := s.records.Get(recordsKey); ok {
		return slices.Clone(cached), nil
	}
	ch := s.group.DoChan(recordsKey, func() (any, error) {
		gen := s.generation.Load()
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()
		records, _, err := s.Load(loadCtx)
		if err != nil {
			return nil, err
		}
		if s.generation.Load() == gen {
			s.records.Set(recordsKey, records)
		}
		return records, nil
	})
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return slices.Clone(res.Val.([]core.Record)), nil
	}
}

// invalidate drops cached records and detaches callers arriving after a
// write from any load already in flight.
func (s *SurveyService) invalidate() {
	s.generation.Add(1)
	s.group.Forget(recordsKey)
	s.records.Purge()
}

// Recent returns the stored responses most recent first.
func (s *SurveyService) Recent(ctx context.Context) ([]core.Record, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return nil, err
	}
	return core.MostRecentFirst(records), nil
}

// Summary returns corpus statistics. The boolean is false when nothing is
// stored.
func (s *SurveyService) Summary(ctx context.Context) (core.Summary, bool, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return core.Summary{}, false, err
	}
	summary, ok := core.Summarize(records)
	return summary, ok, nil
}

func (s *SurveyService) Analysis(ctx context.Context) (analysis.Report, error) {
	records, err := s.Records(ctx)
	if err != nil {
		return analysis.Report{}, err
	}
	return analysis.Analyze(records), nil
}

// ExportResult describes a finished export.
type ExportResult struct {
	Path    string
	Records int
	Sample  bool
}

// ExportRecords returns what an export would write: the stored responses or,
// when none exist and sampleFallback is set, the sample respondents.
func (s *SurveyService) ExportRecords(ctx context.Context, sampleFallback bool) ([]core.Record, bool, error) {
	records, _, err := s.Load(ctx)
	if err != nil {
		return nil, false, err
	}
	if len(records) == 0 && sampleFallback {
		return core.SampleRecords(), true, nil
	}
	return records, false, nil
}

// Export writes the CSV export to path, replacing any previous file
// atomically.
func (s *SurveyService) Export(ctx context.Context, path string, sampleFallback bool) (ExportResult, error) {
	start := s.now()
	records, sample, err := s.ExportRecords(ctx, sampleFallback)
	if err == nil {
		err = export.WriteFile(path, records)
	}
	metrics.ExportsTotal.WithLabelValues(metrics.TargetCSV, metrics.Outcome(err)).Inc()
	metrics.ExportDuration.WithLabelValues(metrics.TargetCSV).Observe(s.now().Sub(start).Seconds())
	if err != nil {
		return ExportResult{}, fmt.Errorf("export %s: %w", path, err)
	}

	s.logger.InfoContext(ctx, "Export written",
		log.FieldFile, path,
		log.FieldCount, len(records),
		"sample", sample,
		log.FieldOperation, log.OpExport)
	return ExportResult{Path: path, Records: len(records), Sample: sample}, nil
}

// Import loads a previously exported CSV and stores every valid row as a
// new response. Row ids are not carried over. Under PolicyAbort nothing is
// stored when any row is invalid.
func (s *SurveyService) Import(ctx context.Context, r io.Reader) (LoadReport, error) {
	docs, err := export.ReadCSV(r)
	if err != nil {
		return LoadReport{}, fmt.Errorf("read import: %w", err)
	}
	for _, doc := range docs {
		delete(doc, core.KeyID)
	}
	records, report, err := DecodeDocuments(docs, s.policy)
	if err != nil {
		return report, err
	}
	if err := s.insertAll(ctx, records); err != nil {
		return report, err
	}
	s.logger.InfoContext(ctx, "Import finished",
		log.FieldCount, report.Loaded,
		log.FieldSkipped, len(report.Skipped),
		log.FieldOperation, log.OpImport)
	return report, nil
}

// Seed stores the sample respondents and returns how many were stored.
func (s *SurveyService) Seed(ctx context.Context) (int, error) {
	samples := core.SampleRecords()
	for i := range samples {
		// Sample ids are synthetic; the store assigns the real ones.
		if err := samples[i].SetID(""); err != nil {
			return 0, err
		}
	}
	if err := s.insertAll(ctx, samples); err != nil {
		return 0, err
	}
	s.logger.InfoContext(ctx, "Sample responses seeded",
		log.FieldCount, len(samples),
		log.FieldOperation, log.OpSeed)
	return len(samples), nil
}

func (s *SurveyService) insertAll(ctx context.Context, records []core.Record) error {
	defer s.invalidate()
	for i, r := range records {
		if _, err := s.repo.Insert(ctx, r); err != nil {
			return fmt.Errorf("insert record %d: %w", i, err)
		}
	}
	return nil
}

func (s *SurveyService) Ping(ctx context.Context) error {
	return s.repo.Ping(ctx)
}

// Close closes both the repository and the publisher.
func (s *SurveyService) Close() error {
	var errs []error

	if s.repo != nil {
		if err := s.repo.Close(); err != nil {
			errs = append(errs, fmt.Errorf("storage: %w", err))
		}
	}

	if s.publisher != nil {
		if err := s.publisher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("amqp: %w", err))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("close survey service: %w", errors.Join(errs...))
	}

	return nil
}
