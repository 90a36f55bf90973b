package main

import (
	"bytes"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"terrarisk/internal/artifact"
	"terrarisk/internal/types"
)

func execute(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestParseHazards(t *testing.T) {
	got, err := parseHazards([]string{"Flood,wildfire", " "})
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if len(got) != 2 || got[0] != types.HazardFlood || got[1] != types.HazardWildfire {
		t.Fatalf("unexpected hazards %v", got)
	}
	if _, err := parseHazards([]string{"quake"}); err == nil {
		t.Fatalf("expected error for unknown hazard")
	}
}

func TestRequestFromFlagsRejectsUnknownMode(t *testing.T) {
	if _, err := requestFromFlags("q", nil, nil, "batch", ""); err == nil {
		t.Fatalf("expected mode error")
	}
	req, err := requestFromFlags(" q ", nil, []string{"TX"}, "CLOUD", " pf ")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	if req.Query != "q" || req.Mode != types.ModeCloud || req.PortfolioReference != "pf" {
		t.Fatalf("unexpected request %+v", req)
	}
}

func TestScenarioCommand(t *testing.T) {
	out, err := execute(t, "scenario", "flood")
	if err != nil {
		t.Fatalf("scenario: %v", err)
	}
	var resp types.ScenarioResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	if resp.Scenario != types.HazardFlood {
		t.Fatalf("scenario = %q", resp.Scenario)
	}
}

func TestAnalyzeThenVerify(t *testing.T) {
	dir := t.TempDir()
	t.Setenv("APP_ENV", "local")
	t.Setenv("ARTIFACT_BACKEND", "disk")
	t.Setenv("ARTIFACT_DIR", filepath.Join(dir, "artifacts"))
	t.Setenv("NRI_USE_FIXTURE", "true")
	t.Setenv("EARTH_AI_ENABLED", "false")
	t.Setenv("ACTION_CREDENTIAL_SCHEMA_PATH", filepath.Join("..", "..", "schemas", "action_credential_v0.json"))

	respPath := filepath.Join(dir, "run.json")
	out, err := execute(t, "analyze", "--log-level=error", "--query=Gulf hurricane exposure", "-o", respPath)
	if err != nil {
		t.Fatalf("analyze: %v\n%s", err, out)
	}
	var resp types.AnalysisResponse
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if len(resp.Artifacts) != 3 {
		t.Fatalf("expected 3 artifacts, got %d", len(resp.Artifacts))
	}

	out, err = execute(t, "verify", respPath)
	if err != nil {
		t.Fatalf("verify: %v\n%s", err, out)
	}
	if strings.Contains(out, "FAIL") {
		t.Fatalf("unexpected verification failure:\n%s", out)
	}
}

type closingStore struct {
	*artifact.MemoryStore
	closed int
}

func (s *closingStore) Close() error {
	s.closed++
	return nil
}

func TestReleaseClosesPooledStores(t *testing.T) {
	s := &closingStore{MemoryStore: artifact.NewMemoryStore()}
	release(s)
	if s.closed != 1 {
		t.Fatalf("expected one close, got %d", s.closed)
	}
	release(artifact.NewMemoryStore())
}
