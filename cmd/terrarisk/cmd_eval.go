package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"terrarisk/internal/eval"
)

var evalFlags struct {
	dataset   string
	threshold float64
	parallel  int
	output    string
}

var evalCmd = &cobra.Command{
	Use:   "eval",
	Short: "Score offline narratives against a golden JSONL dataset (ROUGE-L F1)",
	RunE:  runEval,
}

func init() {
	f := evalCmd.Flags()
	f.StringVar(&evalFlags.dataset, "dataset", "internal/eval/testdata/golden_qa.jsonl", "JSONL dataset of {query, expected_summary}")
	f.Float64Var(&evalFlags.threshold, "threshold", eval.DefaultThreshold, "Minimum mean score")
	f.IntVar(&evalFlags.parallel, "parallel", 4, "Cases evaluated concurrently")
	f.StringVarP(&evalFlags.output, "output", "o", "", "Write the per-case report JSON to this path")
}

func runEval(cmd *cobra.Command, _ []string) error {
	cases, err := eval.LoadDataset(evalFlags.dataset)
	if err != nil {
		return err
	}
	logger := newLogger()
	svc, _, err := newService(cmd.Context(), logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	rep, err := eval.Evaluate(cmd.Context(), svc, cases, evalFlags.parallel, evalFlags.threshold)
	if err != nil {
		return err
	}
	if evalFlags.output != "" {
		if err := writeJSONFile(evalFlags.output, rep); err != nil {
			return fmt.Errorf("write report: %w", err)
		}
	}
	fmt.Fprintf(cmd.OutOrStdout(), "ROUGE-L F1: %.3f (target >= %.2f) over %d case(s)\n", rep.Mean, rep.Threshold, len(rep.Cases))
	if !rep.Passed() {
		return fmt.Errorf("evaluation below threshold")
	}
	return nil
}
