package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"survey/internal/config"
	"survey/internal/services"
)

func init() {
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(importCmd)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Store the five sample respondents",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		return withService(ctx, func(cfg *config.Config, svc *services.SurveyService) error {
			n, err := svc.Seed(ctx)
			if err != nil {
				return err
			}
			cmd.Printf("Seeded %d sample responses into the %s backend\n", n, cfg.DataBackend)
			return nil
		})
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file.csv>",
	Short: "Load a CSV export into the configured backend",
	Long: `Load a CSV file previously written by "surveyctl export". Every valid
row is stored as a new response; row ids are not kept. Invalid rows are
skipped or abort the import according to INGEST_POLICY.`,
	Args: cobra.ExactArgs(1),
	RunE: runImport,
}

func runImport(cmd *cobra.Command, args []string) error {
	f, err := os.Open(args[0])
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer f.Close()

	ctx := cmd.Context()
	return withService(ctx, func(_ *config.Config, svc *services.SurveyService) error {
		report, err := svc.Import(ctx, f)
		if err != nil {
			return err
		}
		cmd.Printf("Imported %d responses from %s\n", report.Loaded, args[0])
		for _, skipped := range report.Skipped {
			cmd.Printf("  skipped row %d: %v\n", skipped.Index+1, skipped.Err)
		}
		return nil
	})
}
