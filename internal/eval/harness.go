// Package eval scores pipeline narratives against a golden dataset.
package eval

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/sync/errgroup"

	"terrarisk/internal/types"
)

// DefaultThreshold is the minimum mean score for a passing evaluation.
const DefaultThreshold = 0.75

var ErrEmptyDataset = errors.New("eval: dataset has no cases")

// Case is one line of the JSONL dataset.
type Case struct {
	Query           string `json:"query"`
	ExpectedSummary string `json:"expected_summary"`
}

// Runner is the pipeline under evaluation.
type Runner interface {
	Run(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, error)
}

type CaseResult struct {
	Query     string  `json:"query"`
	RunID     string  `json:"run_id"`
	Narrative string  `json:"narrative"`
	Score     float64 `json:"score"`
}

type Report struct {
	Cases     []CaseResult `json:"cases"`
	Mean      float64      `json:"mean"`
	Threshold float64      `json:"threshold"`
}

func (r Report) Passed() bool { return r.Mean >= r.Threshold }

// LoadDataset reads a JSONL dataset from path.
func LoadDataset(path string) ([]Case, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("eval: open dataset: %w", err)
	}
	defer f.Close()
	return ReadDataset(f)
}

// ReadDataset decodes one Case per non-blank line.
func ReadDataset(r io.Reader) ([]Case, error) {
	var out []Case
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" {
			continue
		}
		var c Case
		if err := json.Unmarshal([]byte(text), &c); err != nil {
			return nil, fmt.Errorf("eval: line %d: %w", line, err)
		}
		if strings.TrimSpace(c.Query) == "" {
			return nil, fmt.Errorf("eval: line %d: query is required", line)
		}
		out = append(out, c)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("eval: scan dataset: %w", err)
	}
	return out, nil
}

// Narrative joins the description claims of every credential in order.
func Narrative(resp *types.AnalysisResponse) string {
	if resp == nil {
		return ""
	}
	var parts []string
	for _, cred := range resp.ActionCredentials {
		for _, cl := range cred.Claims {
			if cl.Name == "description" {
				parts = append(parts, fmt.Sprint(cl.Value))
			}
		}
	}
	return strings.Join(parts, " ")
}

// Evaluate runs every case offline, at most parallel at a time, and scores
// it. Any pipeline failure fails the evaluation.
func Evaluate(ctx context.Context, runner Runner, cases []Case, parallel int, threshold float64) (Report, error) {
	if len(cases) == 0 {
		return Report{}, ErrEmptyDataset
	}
	if parallel < 1 {
		parallel = 1
	}
	results := make([]CaseResult, len(cases))

	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(parallel)
	for i, c := range cases {
		g.Go(func() error {
			resp, err := runner.Run(gCtx, types.AnalysisRequest{Query: c.Query, Mode: types.ModeOffline})
			if err != nil {
				return fmt.Errorf("eval: case %d: %w", i, err)
			}
			narrative := Narrative(resp)
			results[i] = CaseResult{
				Query:     c.Query,
				RunID:     resp.RunID,
				Narrative: narrative,
				Score:     RougeLF1(c.ExpectedSummary, narrative),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return Report{}, err
	}

	var sum float64
	for _, r := range results {
		sum += r.Score
	}
	return Report{Cases: results, Mean: sum / float64(len(results)), Threshold: threshold}, nil
}
