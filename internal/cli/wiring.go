package cli

import (
	"context"
	"fmt"
	"os"

	"survey/internal/amqp"
	"survey/internal/backend"
	"survey/internal/config"
	"survey/internal/log"
	"survey/internal/services"
	gsheet "survey/internal/sheets/google"
)

// OpenService builds the survey service on the configured backend. When
// publish is set and AMQP is configured, stored responses are announced on
// the broker. The caller owns the returned service and must Close it.
func OpenService(ctx context.Context, cfg *config.Config, logger *log.Logger, publish bool) (*services.SurveyService, error) {
	policy, err := services.ParsePolicy(cfg.IngestPolicy)
	if err != nil {
		return nil, err
	}

	backendConfig, err := backend.FromAppConfig(cfg)
	if err != nil {
		return nil, err
	}
	result, err := backend.NewFactory(logger).CreateBackend(ctx, backendConfig)
	if err != nil {
		return nil, err
	}

	opts := []services.Option{
		services.WithPolicy(policy),
		services.WithCache(cfg.SummaryCacheTTL),
		services.WithLogger(logger),
	}
	if publish && cfg.AMQPEnabled() {
		client, err := OpenAMQP(cfg)
		if err != nil {
			_ = result.Cleanup()
			return nil, err
		}
		opts = append(opts, services.WithPublisher(client))
		logger.Info("AMQP publisher enabled", "exchange", cfg.AMQPExchange)
	}

	return services.NewSurveyService(result.Repository, opts...), nil
}

// OpenAMQP connects to the configured broker.
func OpenAMQP(cfg *config.Config) (*amqp.Client, error) {
	client, err := amqp.NewClient(cfg.AMQPURL, cfg.AMQPExchange, cfg.AMQPQueue)
	if err != nil {
		return nil, fmt.Errorf("connect to AMQP: %w", err)
	}
	client.SetPrefetch(cfg.AMQPPrefetch)
	return client, nil
}

// OpenSheets returns the spreadsheet export sink, or nil when it is not
// configured.
func OpenSheets(ctx context.Context, cfg *config.Config) (*gsheet.Client, error) {
	if !cfg.SheetsEnabled() {
		return nil, nil
	}
	credentials := []byte(cfg.GoogleServiceAccountJSON)
	if cfg.GoogleServiceAccountFile != "" {
		data, err := os.ReadFile(cfg.GoogleServiceAccountFile)
		if err != nil {
			return nil, fmt.Errorf("read service account file: %w", err)
		}
		credentials = data
	}
	client, err := gsheet.New(ctx, cfg.GoogleSpreadsheetID, cfg.GoogleSheetName, credentials)
	if err != nil {
		return nil, fmt.Errorf("initialize Google Sheets client: %w", err)
	}
	return client, nil
}
