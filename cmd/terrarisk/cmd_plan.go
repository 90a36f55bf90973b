package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"terrarisk/internal/scenario"
	"terrarisk/internal/types"
)

var planFlags struct {
	query   string
	hazards []string
	geo     []string
	mode    string
}

var planCmd = &cobra.Command{
	Use:   "plan [query]",
	Short: "Print the plan for a query without running it",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		query := planFlags.query
		if query == "" && len(args) > 0 {
			query = args[0]
		}
		req, err := requestFromFlags(query, planFlags.hazards, planFlags.geo, planFlags.mode, "")
		if err != nil {
			return err
		}
		svc, _, err := newService(cmd.Context(), newLogger())
		if err != nil {
			return err
		}
		defer svc.Close()
		plan, err := svc.Plan(cmd.Context(), req)
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), plan)
	},
}

var scenarioCmd = &cobra.Command{
	Use:   "scenario <hazard>",
	Short: "Print the synthetic scenario for a hazard",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := scenario.Load()
		if err != nil {
			return err
		}
		resp, err := catalog.Scenario(args[0])
		if err != nil {
			return fmt.Errorf("%w (available: %v)", err, catalog.Hazards())
		}
		return writeJSON(cmd.OutOrStdout(), resp)
	},
}

var stressMode string

var stressCmd = &cobra.Command{
	Use:   "stress <portfolio-id>",
	Short: "Print the synthetic stress summary for a portfolio",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		catalog, err := scenario.Load()
		if err != nil {
			return err
		}
		resp, err := catalog.PortfolioStress(types.PortfolioStressRequest{
			PortfolioID: args[0],
			Mode:        types.AnalysisMode(stressMode),
		})
		if err != nil {
			return err
		}
		return writeJSON(cmd.OutOrStdout(), resp)
	},
}

func init() {
	f := planCmd.Flags()
	f.StringVar(&planFlags.query, "query", "", "Natural-language risk query")
	f.StringSliceVar(&planFlags.hazards, "hazard", nil, "Hazard filter (repeatable)")
	f.StringSliceVar(&planFlags.geo, "geo", nil, "Geography filter (repeatable)")
	f.StringVar(&planFlags.mode, "mode", "offline", "Analysis mode")

	stressCmd.Flags().StringVar(&stressMode, "mode", "offline", "Analysis mode")
}
