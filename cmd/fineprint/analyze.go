package main

import (
	"encoding/json"

	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"

	"github.com/bryanwahyu/fineprint/internal/bootstrap"
	"github.com/bryanwahyu/fineprint/internal/middleware"
)

var analyzeCmd = &cobra.Command{
	Use:   "analyze <url>",
	Short: "Analyze the fine print of one page",
	Long:  "Fetches the page and its related terms pages, asks the model for a risk summary and prints it as JSON. No quota is charged.",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		target := middleware.NormalizeURL(args[0])
		if err := middleware.ValidateURL(target); err != nil {
			return eris.Wrap(err, "analyze")
		}

		app, err := bootstrap.New(ctx, cfg)
		if err != nil {
			return err
		}
		defer app.Close()

		report, err := app.Analysis.Inspect(ctx, target)
		if err != nil {
			return eris.Wrapf(err, "analyze %s", target)
		}

		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(map[string]any{
			"id":          report.ID,
			"source_url":  report.SourceURL,
			"final_url":   report.FinalURL,
			"duration_ms": report.Duration.Milliseconds(),
			"analysis":    report.Result,
		})
	},
}

func init() {
	rootCmd.AddCommand(analyzeCmd)
}
