package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"golang.org/x/sync/errgroup"

	"survey/internal/amqp"
	"survey/internal/core"
	"survey/internal/export"
	"survey/internal/log"
	"survey/internal/metrics"
)

// RecordSource supplies the records an export writes.
type RecordSource interface {
	ExportRecords(ctx context.Context, sampleFallback bool) ([]core.Record, bool, error)
}

// SheetPublisher replaces the content of a spreadsheet with the export
// table.
type SheetPublisher interface {
	Publish(ctx context.Context, records []core.Record) error
}

// EventConsumer delivers response events until ctx is done.
type EventConsumer interface {
	ConsumeResponseSubmitted(ctx context.Context, handler func(context.Context, *amqp.ResponseSubmittedMessage) error) error
}

// Config holds the export worker settings.
type Config struct {
	ExportPath string
	// Schedule is a standard five-field cron expression. Empty disables it.
	Schedule string
	// Debounce is how long a trigger waits for more triggers before the
	// export runs.
	Debounce       time.Duration
	SampleFallback bool
}

// ExportWorker regenerates the CSV export, and optionally the spreadsheet,
// whenever a response event arrives or the schedule fires. Bursts of
// triggers collapse into a single run.
type ExportWorker struct {
	source   RecordSource
	sheets   SheetPublisher
	consumer EventConsumer
	config   Config
	logger   *log.Logger
	now      func() time.Time

	trigger chan struct{}

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	doneCh  chan struct{}
	runErr  error
}

func NewExportWorker(source RecordSource, sheets SheetPublisher, consumer EventConsumer, config Config, logger *log.Logger) *ExportWorker {
	if logger == nil {
		logger = log.FromContext(context.Background())
	}
	return &ExportWorker{
		source:   source,
		sheets:   sheets,
		consumer: consumer,
		config:   config,
		logger:   logger.WithComponent(log.ComponentWorker),
		now:      time.Now,
		trigger:  make(chan struct{}, 1),
	}
}

// HandleResponseSubmitted schedules an export for a stored response event.
func (w *ExportWorker) HandleResponseSubmitted(ctx context.Context, msg *amqp.ResponseSubmittedMessage) error {
	w.logger.DebugContext(ctx, "Processing response event",
		log.FieldResponseID, msg.ResponseID,
		"message_id", msg.MessageID)
	w.Trigger()
	return nil
}

// Trigger requests an export without blocking. Pending requests coalesce.
func (w *ExportWorker) Trigger() {
	select {
	case w.trigger <- struct{}{}:
	default:
	}
}

// RunOnce performs one export to every configured target. A failing target
// does not prevent the others from running.
func (w *ExportWorker) RunOnce(ctx context.Context) error {
	records, sample, err := w.source.ExportRecords(ctx, w.config.SampleFallback)
	if err != nil {
		metrics.ExportsTotal.WithLabelValues(metrics.TargetCSV, metrics.ResultError).Inc()
		return fmt.Errorf("load records: %w", err)
	}

	var errs []error
	err = w.timed(metrics.TargetCSV, func() error {
		return export.WriteFile(w.config.ExportPath, records)
	})
	if err != nil {
		errs = append(errs, fmt.Errorf("write %s: %w", w.config.ExportPath, err))
	}

	if w.sheets != nil {
		err := w.timed(metrics.TargetSheets, func() error {
			return w.sheets.Publish(ctx, records)
		})
		if err != nil {
			errs = append(errs, fmt.Errorf("publish sheet: %w", err))
		}
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}

	w.logger.InfoContext(ctx, "Export completed",
		log.FieldFile, w.config.ExportPath,
		log.FieldCount, len(records),
		"sample", sample,
		"sheets", w.sheets != nil)
	return nil
}

func (w *ExportWorker) timed(target string, fn func() error) error {
	start := w.now()
	err := fn()
	metrics.ExportsTotal.WithLabelValues(target, metrics.Outcome(err)).Inc()
	metrics.ExportDuration.WithLabelValues(target).Observe(w.now().Sub(start).Seconds())
	return err
}

// Run exports once at startup and then on every trigger until ctx is done.
// It returns nil on cancellation and the first fatal error otherwise.
func (w *ExportWorker) Run(ctx context.Context) error {
	var scheduler *cron.Cron
	if w.config.Schedule != "" {
		scheduler = cron.New()
		if _, err := scheduler.AddFunc(w.config.Schedule, w.Trigger); err != nil {
			return fmt.Errorf("parse export schedule %q: %w", w.config.Schedule, err)
		}
	}

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error { return w.loop(ctx) })

	if w.consumer != nil {
		g.Go(func() error {
			err := w.consumer.ConsumeResponseSubmitted(ctx, w.HandleResponseSubmitted)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}

	if scheduler != nil {
		scheduler.Start()
		g.Go(func() error {
			<-ctx.Done()
			<-scheduler.Stop().Done()
			return nil
		})
	}

	w.logger.InfoContext(ctx, "Export worker started",
		log.FieldFile, w.config.ExportPath,
		"schedule", w.config.Schedule,
		"debounce", w.config.Debounce,
		"events", w.consumer != nil)

	w.Trigger()
	return g.Wait()
}

func (w *ExportWorker) loop(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-w.trigger:
		}

		if w.config.Debounce > 0 {
			timer := time.NewTimer(w.config.Debounce)
			select {
			case <-ctx.Done():
				timer.Stop()
				return nil
			case <-timer.C:
			}
		}
		// Triggers that arrived while waiting are served by this run.
		select {
		case <-w.trigger:
		default:
		}

		if err := w.RunOnce(ctx); err != nil {
			w.logger.ErrorContext(ctx, "Export failed",
				log.FieldError, err,
				log.FieldOperation, log.OpExport)
		}
	}
}

// Start runs the worker in the background.
func (w *ExportWorker) Start(ctx context.Context) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return fmt.Errorf("export worker is already running")
	}
	ctx, cancel := context.WithCancel(ctx)
	w.running = true
	w.cancel = cancel
	w.doneCh = make(chan struct{})
	w.runErr = nil

	done := w.doneCh
	go func() {
		err := w.Run(ctx)
		if err != nil {
			w.logger.Error("Export worker stopped unexpectedly",
				log.FieldError, err,
				log.FieldOperation, log.OpExport)
		}
		w.mu.Lock()
		w.runErr = err
		w.running = false
		w.mu.Unlock()
		close(done)
	}()
	return nil
}

// Done is closed when a started worker returns. It is nil before Start.
func (w *ExportWorker) Done() <-chan struct{} {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.doneCh
}

// Err returns the error that ended the last run, nil after a clean stop.
func (w *ExportWorker) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runErr
}

// Stop cancels the worker and waits for the current export to finish or
// ctx to expire.
func (w *ExportWorker) Stop(ctx context.Context) error {
	w.mu.Lock()
	cancel, done := w.cancel, w.doneCh
	w.mu.Unlock()
	if cancel == nil {
		return nil
	}

	cancel()

	select {
	case <-done:
		w.logger.InfoContext(ctx, "Export worker stopped gracefully")
	case <-ctx.Done():
		w.logger.WarnContext(ctx, "Export worker stop timed out")
		return ctx.Err()
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runErr
}

// IsRunning returns whether the worker is currently running
func (w *ExportWorker) IsRunning() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}
