package earthai

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	genai "google.golang.org/genai"

	"terrarisk/internal/config"
	"terrarisk/internal/types"
)

const GeminiSource = "earth_ai_gemini"

var ErrInvalidJSON = errors.New("earthai: invalid JSON from model")

const planPrompt = `You are a geospatial risk analyst planning an analysis with Google Earth Engine,
FEMA National Risk Index data and BigQuery. Decompose the query into at most five ordered
steps. Reply with JSON: {"steps":[{"id":"...","description":"...","inputs":["..."],"parameters":{}}]}.
A step's inputs may name the query text or the id of an earlier step only.`

const runPrompt = `Execute the planning step below as a geospatial analyst. Reply with a JSON object
with keys "summary" (string) and "recommendations" (list of Earth Engine dataset ids).`

// GeminiClient is the network-backed planner. Without an API key it is
// constructed but every call fails with ErrPlanningUnavailable.
type GeminiClient struct {
	cli   *genai.Client
	model string
	pace  *pacer
}

func NewGeminiClient(ctx context.Context, cfg config.EarthAIConfig) (*GeminiClient, error) {
	model := strings.TrimSpace(cfg.Model)
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return &GeminiClient{model: model, pace: newPacer(cfg)}, nil
	}
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("init gemini client: %w", err)
	}
	return &GeminiClient{cli: cli, model: model, pace: newPacer(cfg)}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }

func (g *GeminiClient) Plan(ctx context.Context, query string) ([]types.PlanStep, error) {
	raw, err := g.generateJSON(ctx, planPrompt, map[string]any{"query": query})
	if err != nil {
		return nil, err
	}
	return parsePlan(raw, query)
}

func (g *GeminiClient) Run(ctx context.Context, step types.PlanStep) (map[string]any, error) {
	raw, err := g.generateJSON(ctx, runPrompt, step)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	out["step_id"] = step.ID
	out["source"] = step.Source
	out["synthetic"] = false
	return out, nil
}

func (g *GeminiClient) generateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	if g == nil || g.cli == nil {
		return nil, ErrPlanningUnavailable
	}
	in, _ := json.MarshalIndent(input, "", "  ")
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	var lastErr error
	for attempt := 0; attempt < g.pace.attempts; attempt++ {
		if err := g.pace.Wait(ctx); err != nil {
			return nil, err
		}
		resp, err := g.cli.Models.GenerateContent(ctx, g.model,
			[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
			&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
		)
		switch {
		case err != nil:
			lastErr = err
		case len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0:
			lastErr = ErrInvalidJSON
		default:
			return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
		}
		g.pace.Failed(attempt)
	}
	return nil, lastErr
}

// parsePlan turns the model reply into steps. Missing ids are assigned in
// order; inputs are kept only when they name the query or an earlier step.
func parsePlan(raw json.RawMessage, query string) ([]types.PlanStep, error) {
	var reply struct {
		Steps []struct {
			ID          string         `json:"id"`
			Description string         `json:"description"`
			Inputs      []string       `json:"inputs"`
			Parameters  map[string]any `json:"parameters"`
		} `json:"steps"`
	}
	if err := json.Unmarshal(raw, &reply); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJSON, err)
	}
	if len(reply.Steps) == 0 {
		return nil, fmt.Errorf("%w: no steps", ErrInvalidJSON)
	}
	seen := make(map[string]struct{}, len(reply.Steps))
	out := make([]types.PlanStep, 0, len(reply.Steps))
	for i, s := range reply.Steps {
		id := strings.TrimSpace(s.ID)
		if _, dup := seen[id]; id == "" || dup {
			id = fallbackID(seen, i+1)
		}
		inputs := make([]string, 0, len(s.Inputs))
		for _, in := range s.Inputs {
			if _, ok := seen[in]; ok || in == query {
				inputs = append(inputs, in)
			}
		}
		if len(inputs) == 0 {
			if i == 0 {
				inputs = []string{query}
			} else {
				inputs = []string{out[i-1].ID}
			}
		}
		seen[id] = struct{}{}
		params := types.Params{}
		for k, v := range s.Parameters {
			params[k] = v
		}
		out = append(out, types.PlanStep{
			ID:          id,
			Description: strings.TrimSpace(s.Description),
			Source:      GeminiSource,
			Inputs:      inputs,
			Parameters:  params,
		})
	}
	return out, nil
}

// fallbackID names the n-th step, suffixing it until it is unused.
func fallbackID(seen map[string]struct{}, n int) string {
	id := fmt.Sprintf("earth-ai-%d", n)
	for suffix := 2; ; suffix++ {
		if _, taken := seen[id]; !taken {
			return id
		}
		id = fmt.Sprintf("earth-ai-%d-%d", n, suffix)
	}
}
