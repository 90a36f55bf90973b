package types

import "fmt"

// PlanStep is one declared, attributable step of an analysis plan.
type PlanStep struct {
	ID          string   `json:"id"`
	Description string   `json:"description"`
	Source      string   `json:"source"`
	Inputs      []string `json:"inputs"`
	Parameters  Params   `json:"parameters"`
}

// Plan is ordered; index order is execution order.
type Plan []PlanStep

// IDs returns step ids in plan order.
func (p Plan) IDs() []string {
	out := make([]string, 0, len(p))
	for _, s := range p {
		out = append(out, s.ID)
	}
	return out
}

// Sources returns step source tags in plan order.
func (p Plan) Sources() []string {
	out := make([]string, 0, len(p))
	for _, s := range p {
		out = append(out, s.Source)
	}
	return out
}

// Params is the loosely typed parameter bag carried on the wire. Consumers
// narrow values through the typed accessors instead of asserting directly.
type Params map[string]any

func (p Params) Has(key string) bool {
	_, ok := p[key]
	return ok
}

// String returns the value for key as a string. A nil or absent value yields
// ok=false without error.
func (p Params) String(key string) (string, bool, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return "", false, nil
	}
	s, isStr := raw.(string)
	if !isStr {
		return "", false, fmt.Errorf("parameter %q: expected string, got %T", key, raw)
	}
	return s, true, nil
}

// StringSlice accepts []string and the []any form produced by JSON decoding.
func (p Params) StringSlice(key string) ([]string, error) {
	raw, ok := p[key]
	if !ok || raw == nil {
		return nil, nil
	}
	switch v := raw.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for i, item := range v {
			s, isStr := item.(string)
			if !isStr {
				return nil, fmt.Errorf("parameter %q[%d]: expected string, got %T", key, i, item)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("parameter %q: expected string list, got %T", key, raw)
	}
}
