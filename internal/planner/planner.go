// Package planner composes the ordered analysis plan: steps from the
// planning collaborator followed by the fixed data-load, join and compose
// steps.
package planner

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"terrarisk/internal/config"
	"terrarisk/internal/earthai"
	"terrarisk/internal/types"
)

// Source tags of the fixed steps, in plan order.
const (
	SourceDataLoad = "nri_loader"
	SourceJoin     = "bigquery_ee"
	SourceCompose  = "report_compose"
)

// FixedSources lists the tags of the steps appended to every plan.
var FixedSources = []string{SourceDataLoad, SourceJoin, SourceCompose}

var ErrInvalidPlan = errors.New("invalid plan")

// Composer builds plans. It holds no per-request state.
type Composer struct {
	client    earthai.Client
	newID     func() string
	warehouse config.CloudConfig
}

type Option func(*Composer)

// WithWarehouse names the BigQuery and Earth Engine projects the join step
// reads from.
func WithWarehouse(w config.CloudConfig) Option {
	return func(c *Composer) { c.warehouse = w }
}

func New(client earthai.Client, opts ...Option) *Composer {
	c := &Composer{client: client, newID: uuid.NewString}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *Composer) joinParameters(mode types.AnalysisMode) types.Params {
	params := types.Params{"mode": string(mode)}
	for key, v := range map[string]string{
		"gcp_project":         c.warehouse.GCPProject,
		"bq_dataset":          c.warehouse.BigQueryDataset,
		"earthengine_project": c.warehouse.EarthEngineProject,
	} {
		if v != "" {
			params[key] = v
		}
	}
	return params
}

// BuildPlannerSteps returns the external steps in collaborator order followed
// by the three fixed steps. Collaborator errors are returned unchanged.
func (c *Composer) BuildPlannerSteps(ctx context.Context, req types.AnalysisRequest) (types.Plan, error) {
	if c == nil || c.client == nil {
		return nil, fmt.Errorf("planner: no planning client configured")
	}
	external, err := c.client.Plan(ctx, req.Query)
	if err != nil {
		return nil, err
	}

	hazards := make([]string, 0, len(req.Hazards))
	for _, h := range req.Hazards {
		hazards = append(hazards, string(h))
	}
	var portfolioRef any
	if req.PortfolioReference != "" {
		portfolioRef = req.PortfolioReference
	}
	geography := append([]string{}, req.GeographyFilter...)

	plan := make(types.Plan, 0, len(external)+len(FixedSources))
	plan = append(plan, external...)
	plan = append(plan,
		types.PlanStep{
			ID:          c.newID(),
			Description: "Load FEMA NRI metrics for requested geographies.",
			Source:      SourceDataLoad,
			Inputs:      geography,
			Parameters:  types.Params{"hazards": hazards},
		},
		types.PlanStep{
			ID:          c.newID(),
			Description: "Join hazard metrics with BigQuery Earth Engine aggregations.",
			Source:      SourceJoin,
			Inputs:      types.Plan(external).IDs(),
			Parameters:  c.joinParameters(req.ModeOrDefault()),
		},
		types.PlanStep{
			ID:          c.newID(),
			Description: "Compose mitigation narrative and ranking.",
			Source:      SourceCompose,
			Inputs:      []string{},
			Parameters:  types.Params{"portfolio_reference": portfolioRef},
		},
	)
	raw := append([]string{req.Query}, req.GeographyFilter...)
	if err := Validate(plan, raw...); err != nil {
		return nil, err
	}
	return plan, nil
}

// Validate enforces unique ids and that inputs never reference the step
// itself or a later step. Inputs listed in raw, or that are not step ids,
// are raw values.
func Validate(plan types.Plan, raw ...string) error {
	values := make(map[string]struct{}, len(raw))
	for _, v := range raw {
		values[v] = struct{}{}
	}
	position := make(map[string]int, len(plan))
	for i, step := range plan {
		if step.ID == "" {
			return fmt.Errorf("%w: step %d has an empty id", ErrInvalidPlan, i)
		}
		if prev, dup := position[step.ID]; dup {
			return fmt.Errorf("%w: duplicate step id %q at %d and %d", ErrInvalidPlan, step.ID, prev, i)
		}
		position[step.ID] = i
	}
	for i, step := range plan {
		for _, in := range step.Inputs {
			if _, isRaw := values[in]; isRaw {
				continue
			}
			j, isStep := position[in]
			if !isStep {
				continue
			}
			if j == i {
				return fmt.Errorf("%w: step %q references itself", ErrInvalidPlan, step.ID)
			}
			if j > i {
				return fmt.Errorf("%w: step %q references later step %q", ErrInvalidPlan, step.ID, in)
			}
		}
	}
	return nil
}

// Hazards narrows the data-load step's hazard parameter.
func Hazards(step types.PlanStep) ([]types.HazardType, error) {
	raw, err := step.Parameters.StringSlice("hazards")
	if err != nil {
		return nil, err
	}
	out := make([]types.HazardType, 0, len(raw))
	for _, r := range raw {
		h, ok := types.ParseHazardType(r)
		if !ok {
			return nil, fmt.Errorf("step %s: unknown hazard %q", step.ID, r)
		}
		out = append(out, h)
	}
	return out, nil
}

// Find returns the first step with the given source tag.
func Find(plan types.Plan, source string) (types.PlanStep, bool) {
	for _, s := range plan {
		if s.Source == source {
			return s, true
		}
	}
	return types.PlanStep{}, false
}
