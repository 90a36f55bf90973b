// Package earthai holds the planning collaborator: an interface with an
// offline deterministic variant and a network-backed Gemini variant.
package earthai

import (
	"context"
	"encoding/json"
	"errors"

	"terrarisk/internal/config"
	"terrarisk/internal/types"
)

// ErrPlanningUnavailable is returned when the network planner has not been
// provisioned. Callers must not substitute a default plan.
var ErrPlanningUnavailable = errors.New("earth ai planning unavailable: enable EARTH_AI_ENABLED and provide GEMINI_API_KEY once credentials are provisioned")

// Client decomposes a query into steps and executes individual steps.
type Client interface {
	Name() string
	Plan(ctx context.Context, query string) ([]types.PlanStep, error)
	Run(ctx context.Context, step types.PlanStep) (map[string]any, error)
}

// New selects the variant from configuration.
func New(ctx context.Context, cfg config.EarthAIConfig) (Client, error) {
	if !cfg.Enabled {
		return NewStubClient(), nil
	}
	return NewGeminiClient(ctx, cfg)
}

// SerializePlan renders steps as indented JSON for logs and provenance.
func SerializePlan(steps []types.PlanStep) (string, error) {
	raw, err := json.MarshalIndent(steps, "", "  ")
	if err != nil {
		return "", err
	}
	return string(raw), nil
}
