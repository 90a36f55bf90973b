package analysis

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrarisk/internal/artifact"
	"terrarisk/internal/config"
	"terrarisk/internal/earthai"
	"terrarisk/internal/nri"
	"terrarisk/internal/provenance"
	"terrarisk/internal/ranking"
	"terrarisk/internal/types"
)

const schemaPath = "../../schemas/action_credential_v0.json"

func testConfig(t *testing.T, overrides map[string]string) *config.Config {
	t.Helper()
	env := map[string]string{
		"ARTIFACT_DIR":                  filepath.Join(t.TempDir(), "artifacts"),
		"ACTION_CREDENTIAL_SCHEMA_PATH": schemaPath,
		"NRI_USE_FIXTURE":               "true",
	}
	for k, v := range overrides {
		env[k] = v
	}
	cfg, err := config.FromLookup(func(k string) string { return env[k] })
	require.NoError(t, err)
	return cfg
}

func sequentialIDs() Option {
	var n atomic.Int64
	return WithRunIDFunc(func() string { return fmt.Sprintf("run-%d", n.Add(1)) })
}

func newService(t *testing.T, cfg *config.Config, opts ...Option) *Service {
	t.Helper()
	svc, err := New(context.Background(), cfg, append([]Option{sequentialIDs()}, opts...)...)
	require.NoError(t, err)
	t.Cleanup(func() { _ = svc.Close() })
	return svc
}

func baseRequest() types.AnalysisRequest {
	return types.AnalysisRequest{Query: "Which Gulf counties face the largest hurricane losses?", Mode: types.ModeOffline}
}

type unavailablePlanner struct{}

func (unavailablePlanner) Name() string { return "unavailable" }
func (unavailablePlanner) Plan(context.Context, string) ([]types.PlanStep, error) {
	return nil, earthai.ErrPlanningUnavailable
}
func (unavailablePlanner) Run(context.Context, types.PlanStep) (map[string]any, error) {
	return nil, earthai.ErrPlanningUnavailable
}

type staticSource []types.HazardRecord

func (s staticSource) Load(context.Context, []string) ([]types.HazardRecord, error) {
	return append([]types.HazardRecord{}, s...), nil
}

func TestRunCredentialsFollowStepsThenBundle(t *testing.T) {
	svc := newService(t, testConfig(t, nil))
	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	require.Len(t, resp.ActionCredentials, len(resp.Steps)+1)
	for i, step := range resp.Steps {
		cred := resp.ActionCredentials[i]
		assert.Equal(t, "planner.step."+step.Source, cred.Action.Type)
		assert.Equal(t, []string{step.ID}, cred.Action.Outputs)
		assert.Nil(t, cred.Action.Source.Mode)
	}
	last := resp.ActionCredentials[len(resp.ActionCredentials)-1]
	assert.Equal(t, "report.compose", last.Action.Type)
	require.Len(t, resp.Artifacts, 3)
	assert.Equal(t, []string{resp.Artifacts[0].URI, resp.Artifacts[1].URI, resp.Artifacts[2].URI}, last.Action.Outputs)

	n := len(resp.Steps)
	require.GreaterOrEqual(t, n, 3)
	assert.Equal(t, []string{"nri_loader", "bigquery_ee", "report_compose"},
		[]string{resp.Steps[n-3].Source, resp.Steps[n-2].Source, resp.Steps[n-1].Source})
}

func TestRunWritesNamespacedArtifactsUnderRoot(t *testing.T) {
	cfg := testConfig(t, nil)
	svc := newService(t, cfg)
	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, "run-1", resp.RunID)

	root, err := cfg.ArtifactRoot()
	require.NoError(t, err)
	want := []string{"run-1_report.pdf", "run-1_layers.geojson", "run-1_portfolio_diff.csv"}
	for i, a := range resp.Artifacts {
		assert.Equal(t, filepath.Join(root, want[i]), a.URI)
		raw, err := os.ReadFile(a.URI)
		require.NoError(t, err)
		assert.Equal(t, artifact.HashBytes(raw), a.Hash)
	}
}

func TestRunDefaultsToHurricaneRanking(t *testing.T) {
	svc := newService(t, testConfig(t, nil))
	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	raw, err := svc.Store().Get(context.Background(), resp.RunID, resp.RunID+"_portfolio_diff.csv")
	require.NoError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	require.Len(t, lines, 7)
	assert.Equal(t, "demo-portfolio,48201,hurricane,412000000", lines[1])
	for _, line := range lines[1:] {
		assert.Contains(t, line, ",hurricane,")
	}

	doc, err := svc.Store().Get(context.Background(), resp.RunID, resp.RunID+"_report.pdf")
	require.NoError(t, err)
	assert.Contains(t, string(doc), "Harris (48201): EAL 412000000 with resilience index 51.2")
	assert.Contains(t, string(doc), "Earth Engine dataset NOAA_HURRICANE_WIND")
}

func TestRunShapeIsStableAcrossRuns(t *testing.T) {
	svc := newService(t, testConfig(t, nil))
	req := baseRequest()
	req.Hazards = []types.HazardType{types.HazardFlood, types.HazardWildfire}
	req.PortfolioReference = "pf-7"

	a, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), req)
	require.NoError(t, err)

	require.NotEqual(t, a.RunID, b.RunID)
	require.Equal(t, len(a.Artifacts), len(b.Artifacts))
	require.Equal(t, len(a.ActionCredentials), len(b.ActionCredentials))
	for i := range a.Artifacts {
		assert.Equal(t, a.Artifacts[i].Type, b.Artifacts[i].Type)
		assert.NotEqual(t, a.Artifacts[i].URI, b.Artifacts[i].URI)
		assert.Equal(t,
			strings.TrimPrefix(artifact.NameFromURI(a.Artifacts[i].URI), a.RunID),
			strings.TrimPrefix(artifact.NameFromURI(b.Artifacts[i].URI), b.RunID))
	}
}

func TestRunWithNoRecordsStillBundles(t *testing.T) {
	svc := newService(t, testConfig(t, nil), WithSource(nri.EmptySource{}))
	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	require.Len(t, resp.Artifacts, 3)

	raw, err := svc.Store().Get(context.Background(), resp.RunID, resp.RunID+"_portfolio_diff.csv")
	require.NoError(t, err)
	assert.Equal(t, "portfolio_id,county_fips,hazard,expected_annual_loss\n", string(raw))
}

func TestRunPropagatesPlanningUnavailable(t *testing.T) {
	svc := newService(t, testConfig(t, nil), WithPlannerClient(unavailablePlanner{}))
	resp, err := svc.Run(context.Background(), baseRequest())
	require.Nil(t, resp)
	require.ErrorIs(t, err, earthai.ErrPlanningUnavailable)
	stage, ok := FailedStage(err)
	require.True(t, ok)
	assert.Equal(t, StagePlanned, stage)
}

func TestRunFailsRankingOnMalformedRecord(t *testing.T) {
	src := staticSource{
		{CountyFIPS: "12086", County: "Miami-Dade", State: "FL", HazardType: types.HazardHurricane, ExpectedAnnualLoss: 10},
		{CountyFIPS: "12086", County: "", State: "FL", HazardType: types.HazardHurricane, ExpectedAnnualLoss: 5},
	}
	svc := newService(t, testConfig(t, nil), WithSource(src))
	_, err := svc.Run(context.Background(), baseRequest())
	var me *ranking.MalformedRecordError
	require.ErrorAs(t, err, &me)
	stage, _ := FailedStage(err)
	assert.Equal(t, StageRanked, stage)
}

func TestRunSurfacesStorageFailure(t *testing.T) {
	blocker := filepath.Join(t.TempDir(), "not-a-dir")
	require.NoError(t, os.WriteFile(blocker, []byte("x"), 0o644))
	cfg := testConfig(t, map[string]string{"ARTIFACT_DIR": filepath.Join(blocker, "artifacts")})
	svc := newService(t, cfg)

	resp, err := svc.Run(context.Background(), baseRequest())
	require.Nil(t, resp)
	var se *artifact.StorageError
	require.ErrorAs(t, err, &se)
	stage, _ := FailedStage(err)
	assert.Equal(t, StageBundled, stage)
}

func TestRunRejectsInvalidCredentials(t *testing.T) {
	v, err := provenance.NewValidator([]byte(`{"type":"object","required":["never_present"]}`))
	require.NoError(t, err)
	svc := newService(t, testConfig(t, nil), WithValidator(v))

	_, err = svc.Run(context.Background(), baseRequest())
	require.ErrorIs(t, err, ErrCredentialInvalid)
	stage, _ := FailedStage(err)
	assert.Equal(t, StageCredentialed, stage)
}

func TestRunAcceptsMissingSchema(t *testing.T) {
	cfg := testConfig(t, map[string]string{"ACTION_CREDENTIAL_SCHEMA_PATH": filepath.Join(t.TempDir(), "missing.json")})
	svc := newService(t, cfg)
	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Len(t, resp.ActionCredentials, len(resp.Steps)+1)
}

func TestRunRejectsInvalidRequest(t *testing.T) {
	svc := newService(t, testConfig(t, nil))
	_, err := svc.Run(context.Background(), types.AnalysisRequest{Query: "  "})
	require.ErrorIs(t, err, ErrInvalidRequest)

	_, err = svc.Run(context.Background(), types.AnalysisRequest{Query: "q", Hazards: []types.HazardType{"earthquake"}})
	require.ErrorIs(t, err, ErrInvalidRequest)
}

func TestRunJournalsStageTransitions(t *testing.T) {
	cfg := testConfig(t, map[string]string{"RUN_TRACE_DIR": t.TempDir()})
	svc := newService(t, cfg)
	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)

	events, err := svc.Journal().Read(resp.RunID)
	require.NoError(t, err)
	got := make([]Stage, 0, len(events))
	for _, ev := range events {
		assert.Equal(t, "ok", ev.Status)
		got = append(got, ev.Stage)
	}
	assert.Equal(t, Stages, got)
}

func TestPlanDoesNotWriteArtifacts(t *testing.T) {
	svc := newService(t, testConfig(t, nil))
	plan, err := svc.Plan(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Len(t, plan, 5)

	_, err = svc.Plan(context.Background(), types.AnalysisRequest{})
	assert.True(t, errors.Is(err, ErrInvalidRequest))
}

type sharedGeometry struct{ f *geojson.Feature }

func (g sharedGeometry) FeatureFor(string) *geojson.Feature { return g.f }

func TestRunLeavesProviderFeaturesUntouched(t *testing.T) {
	shared := geojson.NewFeature(orb.Point{-90, 30})
	shared.Properties["name"] = "shared"
	svc := newService(t, testConfig(t, nil), WithGeometry(sharedGeometry{f: shared}))

	resp, err := svc.Run(context.Background(), baseRequest())
	require.NoError(t, err)
	assert.Equal(t, geojson.Properties{"name": "shared"}, shared.Properties)

	raw, err := svc.Store().Get(context.Background(), resp.RunID, resp.RunID+"_layers.geojson")
	require.NoError(t, err)
	fc, err := geojson.UnmarshalFeatureCollection(raw)
	require.NoError(t, err)
	require.NotEmpty(t, fc.Features)
	assert.Equal(t, "shared", fc.Features[0].Properties["name"])
	assert.Equal(t, "hurricane", fc.Features[0].Properties["hazard_type"])
}

func TestRunJournalRedactsQueryUnlessPIIAllowed(t *testing.T) {
	cfg := testConfig(t, map[string]string{"RUN_TRACE_DIR": t.TempDir()})
	svc := newService(t, cfg)

	for _, allow := range []bool{false, true} {
		req := baseRequest()
		req.AllowPII = allow
		resp, err := svc.Run(context.Background(), req)
		require.NoError(t, err)

		events, err := svc.Journal().Read(resp.RunID)
		require.NoError(t, err)
		require.NotEmpty(t, events)
		got := events[0].Fields["query"]
		if allow {
			assert.Equal(t, req.Query, got)
		} else {
			assert.Equal(t, QueryLabel(req), got)
			assert.True(t, strings.HasPrefix(got.(string), "sha256:"))
		}
	}
}
