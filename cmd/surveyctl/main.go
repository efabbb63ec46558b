// Package main implements surveyctl, the operator CLI for exporting,
// inspecting and loading survey responses.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"survey/internal/cli"
	"survey/internal/config"
	"survey/internal/log"
	"survey/internal/services"
)

var (
	// backendOverride replaces DATA_BACKEND when set.
	backendOverride string
	logLevel        string
	version         = "dev"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd.ExecuteContext(ctx)
	stop()
	if err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:   "surveyctl",
	Short: "Operate on stored survey responses",
	Long: `surveyctl exports, summarizes, analyzes, seeds and imports survey
responses using the same configuration as the survey server.

Configuration is read from the environment and from a .env file in the
working directory.`,
	Version:      version,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		cli.LoadEnvFile()
		level := logLevel
		if level == "" {
			level = os.Getenv("LOG_LEVEL")
		}
		// Logs go to stderr so command output can be piped.
		log.SetDefault(log.New(log.Config{
			Level:     log.ParseLevel(level),
			Component: log.ComponentCLI,
			Format:    os.Getenv("LOG_FORMAT"),
			Output:    os.Stderr,
		}))
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&backendOverride, "backend", "", "data backend: memory, sqlite or mongo (defaults to DATA_BACKEND)")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "log level (defaults to LOG_LEVEL)")
}

func loadConfig() (*config.Config, error) {
	cfg := config.Load()
	if backendOverride != "" {
		cfg.DataBackend = backendOverride
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// withService opens the configured backend, runs fn and closes it again.
func withService(ctx context.Context, fn func(*config.Config, *services.SurveyService) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := log.FromContext(ctx).WithComponent(log.ComponentCLI)
	svc, err := cli.OpenService(ctx, cfg, logger, false)
	if err != nil {
		return fmt.Errorf("open %s backend: %w", cfg.DataBackend, err)
	}
	runErr := fn(cfg, svc)
	if err := svc.Close(); err != nil {
		logger.Warn("Failed to close survey service", log.FieldError, err)
	}
	return runErr
}
