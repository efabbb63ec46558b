package main

import (
	"context"
	"os"

	"survey/internal/cli"
	"survey/internal/log"
	"survey/internal/worker"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentWorker)
	logger.Info("Starting survey-worker")
	cfg := cli.LoadAndValidateConfig(logger)

	// The worker only reads; it never publishes its own events.
	svc, err := cli.OpenService(context.Background(), cfg, logger, false)
	if err != nil {
		logger.Error("Failed to initialize survey service",
			log.FieldError, err,
			log.FieldBackend, cfg.DataBackend,
			log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}

	var sheets worker.SheetPublisher
	sheetsClient, err := cli.OpenSheets(context.Background(), cfg)
	if err != nil {
		logger.Error("Failed to initialize Google Sheets client", log.FieldError, err)
		_ = svc.Close()
		os.Exit(1)
	}
	if sheetsClient != nil {
		sheets = sheetsClient
		logger.Info("Google Sheets export enabled", "spreadsheet_id", cfg.GoogleSpreadsheetID)
	} else {
		logger.Info("Google Sheets disabled - no GOOGLE_SPREADSHEET_ID provided")
	}

	var consumer worker.EventConsumer
	if cfg.AMQPEnabled() {
		amqpClient, err := cli.OpenAMQP(cfg)
		if err != nil {
			logger.Error("Failed to initialize AMQP client", log.FieldError, err)
			_ = svc.Close()
			os.Exit(1)
		}
		defer amqpClient.Close()
		consumer = amqpClient
	} else {
		logger.Info("AMQP disabled - exports run on schedule only")
	}

	exportWorker := worker.NewExportWorker(svc, sheets, consumer, worker.Config{
		ExportPath:     cfg.ExportPath,
		Schedule:       cfg.ExportSchedule,
		Debounce:       cfg.ExportDebounce,
		SampleFallback: cfg.ExportSampleFallback,
	}, logger)

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		logger.Info("Shutting down worker...")
		if err := exportWorker.Stop(ctx); err != nil {
			logger.Error("Export worker stopped with error", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		}
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close survey service", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		}
	})

	if err := exportWorker.Start(ctx); err != nil {
		logger.Error("Failed to start export worker", log.FieldError, err)
		os.Exit(1)
	}
	go func() {
		<-exportWorker.Done()
		if err := exportWorker.Err(); err != nil && ctx.Err() == nil {
			logger.Error("Export worker failed, exiting", log.FieldError, err)
			_ = svc.Close()
			os.Exit(1)
		}
	}()

	cli.WaitForShutdown(ctx, done)
}
