package main

import (
	"github.com/spf13/cobra"

	"survey/internal/cli"
	"survey/internal/config"
	"survey/internal/services"
)

var (
	exportOut            string
	exportSampleFallback bool
	exportSheets         bool
)

func init() {
	rootCmd.AddCommand(exportCmd)
	exportCmd.Flags().StringVarP(&exportOut, "out", "o", "", "output path (defaults to EXPORT_PATH)")
	exportCmd.Flags().BoolVar(&exportSampleFallback, "sample-fallback", false, "export the sample respondents when nothing is stored")
	exportCmd.Flags().BoolVar(&exportSheets, "sheets", false, "also publish the table to the configured Google spreadsheet")
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the CSV export",
	Long: `Write every stored response to a CSV file, replacing the previous
export atomically.

Examples:
  # Export to EXPORT_PATH
  surveyctl export

  # Export to a custom path, falling back to sample data on an empty store
  surveyctl export --out /tmp/survey.csv --sample-fallback

  # Also push the table to Google Sheets
  surveyctl export --sheets`,
	Args: cobra.NoArgs,
	RunE: runExport,
}

func runExport(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(cfg *config.Config, svc *services.SurveyService) error {
		path := exportOut
		if path == "" {
			path = cfg.ExportPath
		}
		res, err := svc.Export(ctx, path, exportSampleFallback)
		if err != nil {
			return err
		}
		cmd.Printf("Wrote %d records to %s\n", res.Records, res.Path)
		if res.Sample {
			cmd.Println("No stored responses; exported sample data.")
		}

		if !exportSheets {
			return nil
		}
		if !cfg.SheetsEnabled() {
			cmd.Println("Google Sheets is not configured; set GOOGLE_SPREADSHEET_ID to publish.")
			return nil
		}
		sheets, err := cli.OpenSheets(ctx, cfg)
		if err != nil {
			return err
		}
		records, _, err := svc.ExportRecords(ctx, exportSampleFallback)
		if err != nil {
			return err
		}
		if err := sheets.Publish(ctx, records); err != nil {
			return err
		}
		cmd.Printf("Published %d records to sheet %q\n", len(records), cfg.GoogleSheetName)
		return nil
	})
}
