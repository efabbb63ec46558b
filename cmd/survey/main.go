package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"time"

	"survey/internal/cache"
	"survey/internal/cli"
	apphttp "survey/internal/http"
	"survey/internal/log"
	"survey/internal/middleware/ratelimit"
)

const cacheSweepInterval = time.Minute

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(log.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	svc, err := cli.OpenService(context.Background(), cfg, logger, true)
	if err != nil {
		logger.Error("Failed to initialize survey service",
			log.FieldError, err,
			log.FieldBackend, cfg.DataBackend,
			log.FieldOperation, log.OpStartup)
		os.Exit(1)
	}

	caches := cache.NewManager()
	caches.Register(svc.Cache())
	caches.StartCleanup(cacheSweepInterval)

	srv, err := apphttp.NewServer(svc, apphttp.Config{
		Addr:      ":" + cfg.Port,
		RateLimit: ratelimit.DefaultConfig(),
		Logger:    logger,
	})
	if err != nil {
		logger.Error("Failed to initialize HTTP server", log.FieldError, err)
		_ = svc.Close()
		os.Exit(1)
	}

	ctx, done := cli.GracefulShutdown(logger, cfg.ShutdownTimeout, func(ctx context.Context) {
		if err := srv.Shutdown(ctx); err != nil {
			logger.Error("Server shutdown error", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		}
		caches.Stop()
		if err := svc.Close(); err != nil {
			logger.Error("Failed to close survey service", log.FieldError, err, log.FieldOperation, log.OpShutdown)
		}
	})

	logger.Info("Starting survey server",
		"port", cfg.Port,
		log.FieldBackend, cfg.DataBackend,
		"amqp", cfg.AMQPEnabled())
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("Server error", log.FieldError, err, "port", cfg.Port)
		os.Exit(1)
	}

	cli.WaitForShutdown(ctx, done)
	logger.Info("Server stopped gracefully")
}
