package provenance

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"terrarisk/internal/types"
)

func fixedMinter() *Minter {
	n := 0
	return &Minter{
		Now: func() time.Time { return time.Date(2024, 6, 1, 12, 0, 0, 0, time.FixedZone("EST", -5*3600)) },
		NewID: func() string {
			n++
			return "cred-" + string(rune('0'+n))
		},
	}
}

func TestMintBuildsSelfReferentialSource(t *testing.T) {
	m := fixedMinter()
	cred := m.Mint(Action{
		Type:    "report.compose",
		Inputs:  []string{"query"},
		Outputs: []string{"a", "b"},
		Source:  "reports.compose",
		Claims:  []types.Claim{{Name: "mode", Value: "offline"}},
		Mode:    "offline",
	})

	if cred.Version != CredentialVersion {
		t.Fatalf("unexpected version %q", cred.Version)
	}
	if cred.ID != "cred-1" {
		t.Fatalf("unexpected id %q", cred.ID)
	}
	if cred.Timestamp.Location() != time.UTC {
		t.Fatalf("timestamp must be UTC, got %v", cred.Timestamp.Location())
	}
	if cred.Actor != SystemActor {
		t.Fatalf("unexpected actor %+v", cred.Actor)
	}
	src := cred.Action.Source
	if src.System != "reports.compose" || src.Reference != src.System {
		t.Fatalf("unexpected source %+v", src)
	}
	if src.Mode == nil || *src.Mode != "offline" {
		t.Fatalf("expected mode offline, got %v", src.Mode)
	}
	if cred.Signatures == nil || len(cred.Signatures) != 0 {
		t.Fatalf("signatures must be an empty list, got %#v", cred.Signatures)
	}
	if cred.Trace != nil {
		t.Fatalf("trace must be unset")
	}
}

func TestMintSerializesEmptyListsAndNullTrace(t *testing.T) {
	cred := fixedMinter().Mint(Action{Type: "planner.step.x", Source: "x"})
	raw, err := json.Marshal(cred)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	var decoded map[string]any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if decoded["trace"] != nil {
		t.Fatalf("expected null trace, got %v", decoded["trace"])
	}
	for _, key := range []string{"signatures", "artifacts", "claims"} {
		list, ok := decoded[key].([]any)
		if !ok || len(list) != 0 {
			t.Fatalf("expected empty %s list, got %#v", key, decoded[key])
		}
	}
	source := decoded["action"].(map[string]any)["source"].(map[string]any)
	if source["mode"] != nil {
		t.Fatalf("expected null mode, got %v", source["mode"])
	}
}

func TestMintStepsFollowsPlanOrder(t *testing.T) {
	plan := types.Plan{
		{ID: "earth-ai-1", Description: "decompose", Source: "earth_ai_stub", Inputs: []string{"q"}},
		{ID: "x-2", Description: "load", Source: "nri_loader", Inputs: []string{"12086"}},
	}
	creds := fixedMinter().MintSteps(plan)
	got := make([]string, 0, len(creds))
	for _, c := range creds {
		got = append(got, c.Action.Type+"|"+c.Action.Outputs[0])
	}
	want := []string{"planner.step.earth_ai_stub|earth-ai-1", "planner.step.nri_loader|x-2"}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("credential order mismatch (-want +got):\n%s", diff)
	}
	if v, ok := creds[1].Claim("description"); !ok || v != "load" {
		t.Fatalf("unexpected description claim %v", v)
	}
	if diff := cmp.Diff([]string{"12086"}, creds[1].Action.Inputs); diff != "" {
		t.Fatalf("inputs mismatch:\n%s", diff)
	}
}

func TestMintCopiesInputs(t *testing.T) {
	inputs := []string{"a"}
	cred := NewMinter().Mint(Action{Type: "t", Source: "s", Inputs: inputs})
	inputs[0] = "mutated"
	if cred.Action.Inputs[0] != "a" {
		t.Fatalf("credential shares caller slice")
	}
}
