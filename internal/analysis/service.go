// Package analysis runs the per-request pipeline: plan, load, rank, bundle
// and credential.
package analysis

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/paulmach/orb/geojson"

	"terrarisk/internal/artifact"
	"terrarisk/internal/boundaries"
	"terrarisk/internal/config"
	"terrarisk/internal/earthai"
	"terrarisk/internal/nri"
	"terrarisk/internal/planner"
	"terrarisk/internal/provenance"
	"terrarisk/internal/ranking"
	"terrarisk/internal/report"
	"terrarisk/internal/types"
)

// DefaultPortfolioID labels portfolio rows when the request has no reference.
const DefaultPortfolioID = "demo-portfolio"

// BaseSources are always cited in the report.
var BaseSources = []string{
	"Synthetic Earth AI reasoning trace",
	"FEMA National Risk Index (offline fixture)",
	"BigQuery Earth Engine (template placeholders)",
}

var ErrInvalidRequest = errors.New("invalid analysis request")

// Service is safe for concurrent use; runs share only the artifact store.
type Service struct {
	cfg       *config.Config
	client    earthai.Client
	planner   *planner.Composer
	source    nri.Source
	store     artifact.Store
	geometry  boundaries.Provider
	composer  *report.Composer
	minter    *provenance.Minter
	validator *provenance.Validator
	journal   *Journal
	events    *EventBroker
	logger    *slog.Logger
	newRunID  func() string
	closers   []io.Closer
}

type options struct {
	client    earthai.Client
	source    nri.Source
	store     artifact.Store
	geometry  boundaries.Provider
	renderer  report.Renderer
	minter    *provenance.Minter
	validator *provenance.Validator
	logger    *slog.Logger
	newRunID  func() string
}

// Option overrides a collaborator that would otherwise be built from config.
type Option func(*options)

func WithPlannerClient(c earthai.Client) Option { return func(o *options) { o.client = c } }
func WithSource(s nri.Source) Option            { return func(o *options) { o.source = s } }
func WithStore(s artifact.Store) Option         { return func(o *options) { o.store = s } }
func WithGeometry(p boundaries.Provider) Option { return func(o *options) { o.geometry = p } }
func WithRenderer(r report.Renderer) Option     { return func(o *options) { o.renderer = r } }
func WithMinter(m *provenance.Minter) Option    { return func(o *options) { o.minter = m } }
func WithValidator(v *provenance.Validator) Option {
	return func(o *options) { o.validator = v }
}

// WithLogger configures structured logging.
func WithLogger(l *slog.Logger) Option { return func(o *options) { o.logger = l } }

// WithRunIDFunc replaces the run id generator.
func WithRunIDFunc(f func() string) Option { return func(o *options) { o.newRunID = f } }

// New wires a Service. Collaborators not supplied as options are built from
// cfg; those the Service builds itself are released by Close.
func New(ctx context.Context, cfg *config.Config, opts ...Option) (*Service, error) {
	if cfg == nil {
		return nil, fmt.Errorf("analysis: config is required")
	}
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	s := &Service{cfg: cfg, logger: o.logger, newRunID: o.newRunID}
	if s.logger == nil {
		s.logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	if s.newRunID == nil {
		s.newRunID = uuid.NewString
	}

	var err error
	if s.client = o.client; s.client == nil {
		if s.client, err = earthai.New(ctx, cfg.EarthAI); err != nil {
			return nil, fmt.Errorf("analysis: planner client: %w", err)
		}
		s.own(s.client)
	}
	if s.source = o.source; s.source == nil {
		if s.source, err = nri.NewFromConfig(ctx, cfg.NRI); err != nil {
			s.Close()
			return nil, fmt.Errorf("analysis: hazard source: %w", err)
		}
		s.own(s.source)
	}
	if s.store = o.store; s.store == nil {
		if s.store, err = artifact.NewFromConfig(ctx, cfg.Artifact); err != nil {
			s.Close()
			return nil, fmt.Errorf("analysis: artifact store: %w", err)
		}
		s.own(s.store)
	}
	if s.geometry = o.geometry; s.geometry == nil {
		s.geometry = boundaries.NewSyntheticProvider()
	}
	if s.minter = o.minter; s.minter == nil {
		s.minter = provenance.NewMinter()
	}
	if s.validator = o.validator; s.validator == nil {
		s.validator = provenance.LoadValidator(cfg.CredentialSchemaPath)
		if err := s.validator.LoadError(); err != nil {
			s.logger.Warn("credential schema unavailable, validation degraded", "path", cfg.CredentialSchemaPath, "error", err)
		}
	}
	s.planner = planner.New(s.client, planner.WithWarehouse(cfg.Cloud))
	s.composer = report.NewComposer(s.store, o.renderer, s.minter)
	s.journal = NewJournal(cfg.TraceDir)
	s.events = NewEventBroker()
	return s, nil
}

func (s *Service) own(v any) {
	if c, ok := v.(io.Closer); ok {
		s.closers = append(s.closers, c)
	}
}

// Close releases collaborators built by New.
func (s *Service) Close() error {
	var errs []error
	for i := len(s.closers) - 1; i >= 0; i-- {
		if err := s.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	s.closers = nil
	return errors.Join(errs...)
}

func (s *Service) Config() *config.Config { return s.cfg }
func (s *Service) Store() artifact.Store  { return s.store }
func (s *Service) Journal() *Journal      { return s.journal }

// Events streams stage events of every run as they happen.
func (s *Service) Events() *EventBroker { return s.events }

func (s *Service) record(runID string, stage Stage, status string, fields map[string]any) {
	ev := newJournalEvent(runID, stage, status, fields)
	s.journal.Write(ev)
	s.events.Publish(ev)
}

// ValidateRequest rejects requests the pipeline cannot interpret.
func ValidateRequest(req types.AnalysisRequest) error {
	if strings.TrimSpace(req.Query) == "" {
		return fmt.Errorf("%w: query is required", ErrInvalidRequest)
	}
	if !req.ModeOrDefault().Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidRequest, req.Mode)
	}
	for _, h := range req.Hazards {
		if _, ok := types.ParseHazardType(string(h)); !ok {
			return fmt.Errorf("%w: unknown hazard %q", ErrInvalidRequest, h)
		}
	}
	return nil
}

// Plan builds the plan for req without running it.
func (s *Service) Plan(ctx context.Context, req types.AnalysisRequest) (types.Plan, error) {
	if err := ValidateRequest(req); err != nil {
		return nil, err
	}
	return s.planner.BuildPlannerSteps(ctx, req)
}

// run carries the state of one request through the stages.
type run struct {
	id      string
	req     types.AnalysisRequest
	stage   Stage
	started time.Time

	plan      types.Plan
	sources   []string
	records   []types.HazardRecord
	ranked    []types.HazardRecord
	artifacts []types.Artifact
	bundle    []types.ActionCredential
	creds     []types.ActionCredential
}

// Run executes the pipeline. On any failure it returns a *StageError naming
// the stage that was not reached and no response. Artifacts written before
// the failure are left in the store.
func (s *Service) Run(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, error) {
	r := &run{id: s.newRunID(), req: req, stage: StageNew, started: time.Now()}
	log := s.logger.With("run_id", r.id)
	query := QueryLabel(req)
	log.Info("analysis started", "mode", req.ModeOrDefault(), "query", query)
	s.record(r.id, StageNew, "ok", map[string]any{"query": query, "mode": string(req.ModeOrDefault())})

	if err := ValidateRequest(req); err != nil {
		return nil, s.fail(log, r, StagePlanned, err)
	}

	steps := []struct {
		stage Stage
		fn    func(context.Context, *run) error
	}{
		{StagePlanned, s.planStage},
		{StageDataLoaded, s.loadStage},
		{StageRanked, s.rankStage},
		{StageBundled, s.bundleStage},
		{StageCredentialed, s.credentialStage},
	}
	for _, st := range steps {
		if err := st.fn(ctx, r); err != nil {
			return nil, s.fail(log, r, st.stage, err)
		}
		s.advance(log, r, st.stage)
	}
	s.advance(log, r, StageDone)

	return &types.AnalysisResponse{
		RunID:             r.id,
		Steps:             r.plan,
		Artifacts:         r.artifacts,
		ActionCredentials: r.creds,
	}, nil
}

func (s *Service) advance(log *slog.Logger, r *run, to Stage) {
	fields := map[string]any{"from": string(r.stage)}
	switch to {
	case StagePlanned:
		fields["steps"] = len(r.plan)
	case StageDataLoaded:
		fields["records"] = len(r.records)
	case StageRanked:
		fields["ranked"] = len(r.ranked)
	case StageBundled:
		fields["artifacts"] = len(r.artifacts)
	case StageCredentialed:
		fields["credentials"] = len(r.creds)
	case StageDone:
		fields["elapsed_ms"] = time.Since(r.started).Milliseconds()
	}
	r.stage = to
	log.Debug("stage reached", "stage", to, "fields", fields)
	s.record(r.id, to, "ok", fields)
	if to == StageDone {
		log.Info("analysis finished", "artifacts", len(r.artifacts), "credentials", len(r.creds))
	}
}

func (s *Service) fail(log *slog.Logger, r *run, at Stage, err error) error {
	log.Error("analysis failed", "stage", at, "reached", r.stage, "error", err)
	s.record(r.id, at, "failed", map[string]any{"reached": string(r.stage), "error": err.Error()})
	return &StageError{Stage: at, RunID: r.id, Err: err}
}

func (s *Service) planStage(ctx context.Context, r *run) error {
	plan, err := s.planner.BuildPlannerSteps(ctx, r.req)
	if err != nil {
		return err
	}
	r.plan = plan
	return nil
}

// loadStage runs the externally planned steps, collecting any recommended
// datasets as report sources, then loads hazard records for the data-load
// step's geography inputs.
func (s *Service) loadStage(ctx context.Context, r *run) error {
	r.sources = append([]string{}, BaseSources...)
	for _, step := range r.plan {
		if isFixed(step.Source) {
			continue
		}
		out, err := s.client.Run(ctx, step)
		if err != nil {
			return fmt.Errorf("run step %s: %w", step.ID, err)
		}
		for _, ds := range recommendations(out) {
			r.sources = append(r.sources, "Earth Engine dataset "+ds)
		}
	}

	load, ok := planner.Find(r.plan, planner.SourceDataLoad)
	if !ok {
		return fmt.Errorf("%w: no %s step", planner.ErrInvalidPlan, planner.SourceDataLoad)
	}
	records, err := s.source.Load(ctx, load.Inputs)
	if err != nil {
		return err
	}
	r.records = records
	return nil
}

func (s *Service) rankStage(_ context.Context, r *run) error {
	load, _ := planner.Find(r.plan, planner.SourceDataLoad)
	hazards, err := planner.Hazards(load)
	if err != nil {
		return err
	}
	ranked, err := ranking.Rank(r.records, hazards)
	if err != nil {
		return err
	}
	r.ranked = ranked
	return nil
}

func (s *Service) bundleStage(ctx context.Context, r *run) error {
	portfolioID := strings.TrimSpace(r.req.PortfolioReference)
	if portfolioID == "" {
		portfolioID = DefaultPortfolioID
	}
	features := make([]*geojson.Feature, 0, len(r.ranked))
	highlights := make([]string, 0, len(r.ranked))
	rows := make([]types.PortfolioRow, 0, len(r.ranked))
	for _, rec := range r.ranked {
		if f := s.geometry.FeatureFor(rec.CountyFIPS); f != nil {
			features = append(features, annotate(f, rec))
		}
		highlights = append(highlights, Highlight(rec))
		rows = append(rows, types.PortfolioRow{
			PortfolioID:        portfolioID,
			CountyFIPS:         rec.CountyFIPS,
			Hazard:             string(rec.HazardType),
			ExpectedAnnualLoss: rec.ExpectedAnnualLoss,
		})
	}
	arts, creds, err := s.composer.ComposeBundle(ctx, r.req, r.id, highlights, r.sources, features, rows)
	if err != nil {
		return err
	}
	r.artifacts = arts
	r.bundle = creds
	return nil
}

func (s *Service) credentialStage(_ context.Context, r *run) error {
	creds := s.minter.MintSteps(r.plan)
	creds = append(creds, r.bundle...)
	for i, c := range creds {
		res := s.validator.Validate(c)
		switch res.Status {
		case provenance.StatusInvalid:
			return fmt.Errorf("%w: credential %d (%s): %s", ErrCredentialInvalid, i, c.Action.Type, strings.Join(res.Reasons, "; "))
		case provenance.StatusSchemaAbsent:
			if i == 0 {
				s.logger.Warn("credential schema absent, skipping validation", "run_id", r.id)
			}
		}
	}
	r.creds = creds
	return nil
}

// annotate copies f before adding the record's hazard properties, so
// providers may hand out shared features.
func annotate(f *geojson.Feature, rec types.HazardRecord) *geojson.Feature {
	out := geojson.NewFeature(f.Geometry)
	out.ID = f.ID
	out.BBox = f.BBox
	out.Properties = f.Properties.Clone()
	out.Properties["hazard_type"] = string(rec.HazardType)
	out.Properties["expected_annual_loss"] = rec.ExpectedAnnualLoss
	return out
}

// QueryLabel is the query as written to logs and the run journal. Unless
// the request allows PII only a digest of the query is recorded.
func QueryLabel(req types.AnalysisRequest) string {
	if req.AllowPII {
		return req.Query
	}
	return "sha256:" + artifact.HashBytes([]byte(req.Query))[:16]
}

// Highlight is the report line for one ranked record.
func Highlight(rec types.HazardRecord) string {
	return fmt.Sprintf("%s (%s): EAL %s with resilience index %s",
		rec.County, rec.CountyFIPS,
		strconv.FormatFloat(rec.ExpectedAnnualLoss, 'f', -1, 64),
		strconv.FormatFloat(rec.ResilienceIndex, 'f', -1, 64))
}

func isFixed(source string) bool {
	for _, s := range planner.FixedSources {
		if s == source {
			return true
		}
	}
	return false
}

func recommendations(out map[string]any) []string {
	switch v := out["recommendations"].(type) {
	case []string:
		return v
	case []any:
		res := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok && s != "" {
				res = append(res, s)
			}
		}
		return res
	}
	return nil
}
