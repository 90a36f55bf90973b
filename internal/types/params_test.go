package types

import (
	"encoding/json"
	"testing"
)

func TestParamsStringSliceNarrowsDecodedJSON(t *testing.T) {
	var step PlanStep
	raw := `{"id":"s1","description":"d","source":"x","inputs":[],"parameters":{"hazards":["hurricane","flood"],"mode":"offline"}}`
	if err := json.Unmarshal([]byte(raw), &step); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	hazards, err := step.Parameters.StringSlice("hazards")
	if err != nil {
		t.Fatalf("StringSlice: %v", err)
	}
	if len(hazards) != 2 || hazards[0] != "hurricane" || hazards[1] != "flood" {
		t.Fatalf("unexpected hazards: %#v", hazards)
	}
	mode, ok, err := step.Parameters.String("mode")
	if err != nil || !ok || mode != "offline" {
		t.Fatalf("unexpected mode: %q ok=%v err=%v", mode, ok, err)
	}
}

func TestParamsRejectsWrongTypes(t *testing.T) {
	p := Params{"hazards": "hurricane", "mode": 3, "mixed": []any{"a", 1}}
	if _, err := p.StringSlice("hazards"); err == nil {
		t.Fatalf("expected error for scalar where list expected")
	}
	if _, _, err := p.String("mode"); err == nil {
		t.Fatalf("expected error for non-string mode")
	}
	if _, err := p.StringSlice("mixed"); err == nil {
		t.Fatalf("expected error for mixed list")
	}
}

func TestParamsNilValueIsAbsent(t *testing.T) {
	p := Params{"portfolio_reference": nil}
	v, ok, err := p.String("portfolio_reference")
	if err != nil || ok || v != "" {
		t.Fatalf("expected absent value, got %q ok=%v err=%v", v, ok, err)
	}
	if !p.Has("portfolio_reference") {
		t.Fatalf("expected key to be present")
	}
}

func TestParseHazardType(t *testing.T) {
	if h, ok := ParseHazardType("  HurriCane "); !ok || h != HazardHurricane {
		t.Fatalf("unexpected parse result: %q %v", h, ok)
	}
	if _, ok := ParseHazardType("tornado"); ok {
		t.Fatalf("expected tornado to be rejected")
	}
}
