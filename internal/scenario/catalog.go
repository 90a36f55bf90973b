// Package scenario serves synthetic hazard scenarios and portfolio stress
// summaries from an embedded YAML catalog.
package scenario

import (
	"embed"
	"errors"
	"fmt"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	"terrarisk/internal/types"
)

//go:embed catalog/*.yaml stress.yaml
var catalogFS embed.FS

var (
	ErrUnknownScenario = errors.New("unknown scenario")
	ErrInvalidStress   = errors.New("invalid portfolio stress request")
)

// Entry is one hazard scenario as stored in the catalog.
type Entry struct {
	Hazard             types.HazardType `yaml:"hazard"`
	Summary            string           `yaml:"summary"`
	Metrics            map[string]any   `yaml:"metrics"`
	RecommendedActions []string         `yaml:"recommended_actions"`
}

type stressTemplate struct {
	Summary string         `yaml:"summary"`
	Metrics map[string]any `yaml:"metrics"`
}

// Catalog is immutable after Load.
type Catalog struct {
	entries map[types.HazardType]Entry
	stress  stressTemplate
}

// Load parses the embedded catalog.
func Load() (*Catalog, error) {
	files, err := catalogFS.ReadDir("catalog")
	if err != nil {
		return nil, fmt.Errorf("read scenario catalog: %w", err)
	}
	c := &Catalog{entries: make(map[types.HazardType]Entry, len(files))}
	for _, f := range files {
		if !strings.HasSuffix(f.Name(), ".yaml") {
			continue
		}
		data, err := catalogFS.ReadFile("catalog/" + f.Name())
		if err != nil {
			return nil, err
		}
		var e Entry
		if err := yaml.Unmarshal(data, &e); err != nil {
			return nil, fmt.Errorf("parse scenario %q: %w", f.Name(), err)
		}
		h, ok := types.ParseHazardType(string(e.Hazard))
		if !ok {
			return nil, fmt.Errorf("scenario %q: unknown hazard %q", f.Name(), e.Hazard)
		}
		e.Hazard = h
		c.entries[h] = e
	}

	data, err := catalogFS.ReadFile("stress.yaml")
	if err != nil {
		return nil, err
	}
	if err := yaml.Unmarshal(data, &c.stress); err != nil {
		return nil, fmt.Errorf("parse stress template: %w", err)
	}
	return c, nil
}

// Hazards returns the catalogued hazards, sorted.
func (c *Catalog) Hazards() []types.HazardType {
	out := make([]types.HazardType, 0, len(c.entries))
	for h := range c.entries {
		out = append(out, h)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Scenario returns the synthetic scenario for a hazard key.
func (c *Catalog) Scenario(hazard string) (types.ScenarioResponse, error) {
	h, _ := types.ParseHazardType(hazard)
	e, ok := c.entries[h]
	if !ok {
		return types.ScenarioResponse{}, fmt.Errorf("%w: %q", ErrUnknownScenario, hazard)
	}
	return types.ScenarioResponse{
		Scenario:           e.Hazard,
		Summary:            e.Summary,
		Metrics:            cloneMetrics(e.Metrics),
		RecommendedActions: append([]string{}, e.RecommendedActions...),
		Artifacts:          []types.Artifact{},
	}, nil
}

// PortfolioStress returns the synthetic stress summary for a portfolio.
func (c *Catalog) PortfolioStress(req types.PortfolioStressRequest) (types.PortfolioStressResponse, error) {
	id := strings.TrimSpace(req.PortfolioID)
	if id == "" {
		return types.PortfolioStressResponse{}, fmt.Errorf("%w: portfolio_id is required", ErrInvalidStress)
	}
	mode := req.Mode
	if mode == "" {
		mode = types.ModeOffline
	}
	if !mode.Valid() {
		return types.PortfolioStressResponse{}, fmt.Errorf("%w: unknown mode %q", ErrInvalidStress, req.Mode)
	}
	summary := strings.NewReplacer("{portfolio}", id, "{mode}", string(mode)).Replace(c.stress.Summary)
	return types.PortfolioStressResponse{
		PortfolioID: id,
		Summary:     summary,
		Metrics:     cloneMetrics(c.stress.Metrics),
		Artifacts:   []types.Artifact{},
	}, nil
}

func cloneMetrics(in map[string]any) map[string]any {
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}
