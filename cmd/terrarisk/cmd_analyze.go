package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var analyzeFlags struct {
	query     string
	hazards   []string
	geography []string
	mode      string
	portfolio string
	output    string
	allowPII  bool
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze [query]",
	Short: "Run the pipeline once and print the response",
	Long: `Run plan, load, rank, bundle and credential for one query.

Usage:
  terrarisk analyze "Which Gulf counties face the largest hurricane losses?"
  terrarisk analyze --query="flood exposure" --hazard=flood --geo=TX --geo=LA
  terrarisk analyze --query="..." -o run.json   # keep the response for 'terrarisk verify'`,
	Args: cobra.MaximumNArgs(1),
	RunE: runAnalyze,
}

func init() {
	f := analyzeCmd.Flags()
	f.StringVar(&analyzeFlags.query, "query", "", "Natural-language risk query")
	f.StringSliceVar(&analyzeFlags.hazards, "hazard", nil, "Hazard filter (repeatable; default hurricane)")
	f.StringSliceVar(&analyzeFlags.geography, "geo", nil, "Geography filter: county FIPS, state or county name (repeatable)")
	f.StringVar(&analyzeFlags.mode, "mode", "offline", "Analysis mode: cloud, byo_bigquery or offline")
	f.StringVar(&analyzeFlags.portfolio, "portfolio", "", "Portfolio reference for the tabular diff")
	f.BoolVar(&analyzeFlags.allowPII, "allow-pii", false, "Record the raw query in logs and the run journal")
	f.StringVarP(&analyzeFlags.output, "output", "o", "", "Also write the response JSON to this path")
}

func runAnalyze(cmd *cobra.Command, args []string) error {
	query := analyzeFlags.query
	if query == "" && len(args) > 0 {
		query = args[0]
	}
	if query == "" {
		return fmt.Errorf("query is required\n\nUsage: terrarisk analyze <query>")
	}
	req, err := requestFromFlags(query, analyzeFlags.hazards, analyzeFlags.geography, analyzeFlags.mode, analyzeFlags.portfolio)
	if err != nil {
		return err
	}
	req.AllowPII = analyzeFlags.allowPII

	logger := newLogger()
	svc, _, err := newService(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	resp, err := svc.Run(cmd.Context(), req)
	if err != nil {
		return err
	}
	if analyzeFlags.output != "" {
		if err := writeJSONFile(analyzeFlags.output, resp); err != nil {
			return fmt.Errorf("write response: %w", err)
		}
		logger.Info("response written", "path", analyzeFlags.output, "run_id", resp.RunID)
	}
	return writeJSON(cmd.OutOrStdout(), resp)
}
