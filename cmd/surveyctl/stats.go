package main

import (
	"encoding/json"
	"fmt"
	"io"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"survey/internal/config"
	"survey/internal/core"
	"survey/internal/export"
	"survey/internal/services"
)

var statsJSON bool

func init() {
	rootCmd.AddCommand(statsCmd)
	rootCmd.AddCommand(analyzeCmd)
	statsCmd.Flags().BoolVar(&statsJSON, "json", false, "print the summary as JSON")
}

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Print summary statistics",
	Args:  cobra.NoArgs,
	RunE:  runStats,
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze",
	Short: "Print the segment analysis as JSON",
	Long: `Print the segment analysis: age groups, income quartile groups,
savings status, per-gender means, healthcare insights and the income to
healthcare correlation.`,
	Args: cobra.NoArgs,
	RunE: runAnalyze,
}

func runStats(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(_ *config.Config, svc *services.SurveyService) error {
		summary, ok, err := svc.Summary(ctx)
		if err != nil {
			return err
		}
		if statsJSON {
			if !ok {
				cmd.Println("{}")
				return nil
			}
			return writeJSON(cmd.OutOrStdout(), summary)
		}
		if !ok {
			cmd.Println("No responses stored.")
			return nil
		}
		return printSummary(cmd.OutOrStdout(), summary)
	})
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	return withService(ctx, func(_ *config.Config, svc *services.SurveyService) error {
		report, err := svc.Analysis(ctx)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), report)
	})
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func printSummary(w io.Writer, s core.Summary) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Participants\t%d\n", s.TotalParticipants)
	fmt.Fprintf(tw, "Average age\t%s\n", export.FormatFixed2(s.AvgAge))
	fmt.Fprintf(tw, "Average income\t%s\n", export.FormatFixed2(s.AvgIncome))
	fmt.Fprintf(tw, "Average expenses\t%s\n", export.FormatFixed2(s.AvgExpenses))
	fmt.Fprintf(tw, "Average savings\t%s\n", export.FormatFixed2(s.AvgSavings))

	fmt.Fprintln(tw, "\nGender\tCount")
	for _, g := range s.GenderDistribution {
		fmt.Fprintf(tw, "%s\t%d\n", g.Name, g.Count)
	}

	fmt.Fprintln(tw, "\nCategory\tMean (non-zero)")
	for _, c := range s.ExpenseCategories {
		fmt.Fprintf(tw, "%s\t%s\n", core.CategoryLabel(c.Name), export.FormatFixed2(c.Amount))
	}
	return tw.Flush()
}
