package earthai

import (
	"context"

	"terrarisk/internal/types"
)

const StubSource = "earth_ai_stub"

// StubClient mimics multi-step Earth AI reasoning without network access.
type StubClient struct{}

func NewStubClient() *StubClient { return &StubClient{} }

func (c *StubClient) Name() string { return StubSource }

func (c *StubClient) Plan(_ context.Context, query string) ([]types.PlanStep, error) {
	return []types.PlanStep{
		{
			ID:          "earth-ai-1",
			Description: "Decompose query into geospatial objectives using synthetic Gemini reasoning.",
			Source:      StubSource,
			Inputs:      []string{query},
			Parameters:  types.Params{"mode": "analysis"},
		},
		{
			ID:          "earth-ai-2",
			Description: "Suggest Earth Engine datasets for hazard overlays.",
			Source:      StubSource,
			Inputs:      []string{"earth-ai-1"},
			Parameters:  types.Params{"datasets": []string{"NOAA_HURRICANE_WIND", "FEMA_FLOOD_ZONES"}},
		},
	}, nil
}

func (c *StubClient) Run(_ context.Context, step types.PlanStep) (map[string]any, error) {
	datasets, err := step.Parameters.StringSlice("datasets")
	if err != nil {
		return nil, err
	}
	if datasets == nil {
		datasets = []string{}
	}
	return map[string]any{
		"step_id":         step.ID,
		"description":     step.Description,
		"source":          step.Source,
		"synthetic":       true,
		"recommendations": datasets,
	}, nil
}
