package report

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"strconv"

	"github.com/paulmach/orb/geojson"

	"terrarisk/internal/artifact"
	"terrarisk/internal/boundaries"
	"terrarisk/internal/provenance"
	"terrarisk/internal/types"
)

const (
	KindReport        = "report"
	KindLayers        = "layers"
	KindPortfolioDiff = "portfolio_diff"

	TypePDF     = "application/pdf"
	TypeGeoJSON = "application/geo+json"
	TypeCSV     = "text/csv"

	// ComposeAction is the credential type for the bundle.
	ComposeAction = "report.compose"
	ComposeSource = "reports.compose"
)

// PortfolioHeader is written even when there are no rows.
var PortfolioHeader = []string{"portfolio_id", "county_fips", "hazard", "expected_annual_loss"}

// Composer writes the three-artifact bundle for a run and credentials it.
type Composer struct {
	store    artifact.Store
	renderer Renderer
	minter   *provenance.Minter
}

func NewComposer(store artifact.Store, renderer Renderer, minter *provenance.Minter) *Composer {
	if renderer == nil {
		renderer = NewHTMLRenderer()
	}
	if minter == nil {
		minter = provenance.NewMinter()
	}
	return &Composer{store: store, renderer: renderer, minter: minter}
}

type pending struct {
	kind, ext, mime string
	body            []byte
	meta            map[string]any
}

// ComposeBundle writes the report, geodata and tabular artifacts in that
// order and returns them with one report.compose credential. A failed write
// aborts the bundle; artifacts already written stay in the store.
func (c *Composer) ComposeBundle(
	ctx context.Context,
	req types.AnalysisRequest,
	runID string,
	highlights, sources []string,
	features []*geojson.Feature,
	rows []types.PortfolioRow,
) ([]types.Artifact, []types.ActionCredential, error) {
	if c == nil || c.store == nil {
		return nil, nil, &artifact.StorageError{Op: "compose", Err: fmt.Errorf("no artifact store configured")}
	}
	mode := string(req.ModeOrDefault())

	doc, err := c.renderer.Render(Inputs{Query: req.Query, Mode: mode, Highlights: highlights, Sources: sources})
	if err != nil {
		return nil, nil, fmt.Errorf("render report: %w", err)
	}
	layers, err := boundaries.Collection(features).MarshalJSON()
	if err != nil {
		return nil, nil, fmt.Errorf("encode layers: %w", err)
	}
	table, err := EncodePortfolio(rows)
	if err != nil {
		return nil, nil, fmt.Errorf("encode portfolio: %w", err)
	}

	bundle := []pending{
		{kind: KindReport, ext: "pdf", mime: TypePDF, body: doc, meta: map[string]any{"highlights": len(highlights), "sources": len(sources)}},
		{kind: KindLayers, ext: "geojson", mime: TypeGeoJSON, body: layers, meta: map[string]any{"features": len(features)}},
		{kind: KindPortfolioDiff, ext: "csv", mime: TypeCSV, body: table, meta: map[string]any{"rows": len(rows)}},
	}

	artifacts := make([]types.Artifact, 0, len(bundle))
	for _, p := range bundle {
		a, err := c.write(ctx, runID, p)
		if err != nil {
			return nil, nil, err
		}
		artifacts = append(artifacts, a)
	}

	outputs := make([]string, 0, len(artifacts))
	for _, a := range artifacts {
		outputs = append(outputs, a.URI)
	}
	cred := c.minter.Mint(provenance.Action{
		Type:      ComposeAction,
		Inputs:    []string{req.Query},
		Outputs:   outputs,
		Source:    ComposeSource,
		Artifacts: artifacts,
		Claims:    []types.Claim{{Name: "mode", Value: mode}},
		Mode:      mode,
	})
	return artifacts, []types.ActionCredential{cred}, nil
}

// write stores one artifact and hashes the bytes read back from the store.
func (c *Composer) write(ctx context.Context, runID string, p pending) (types.Artifact, error) {
	name := artifact.FileName(runID, p.kind, p.ext)
	if err := c.store.Put(ctx, runID, name, p.body); err != nil {
		return types.Artifact{}, &artifact.StorageError{Op: "write", Name: name, Err: err}
	}
	stored, err := c.store.Get(ctx, runID, name)
	if err != nil {
		return types.Artifact{}, &artifact.StorageError{Op: "read", Name: name, Err: err}
	}
	meta := p.meta
	meta["name"] = name
	meta["bytes"] = len(stored)
	return types.Artifact{
		URI:      c.store.URI(runID, name),
		Type:     p.mime,
		Hash:     artifact.HashBytes(stored),
		Metadata: meta,
	}, nil
}

// EncodePortfolio renders rows as CSV under PortfolioHeader.
func EncodePortfolio(rows []types.PortfolioRow) ([]byte, error) {
	var buf bytes.Buffer
	w := csv.NewWriter(&buf)
	if err := w.Write(PortfolioHeader); err != nil {
		return nil, err
	}
	for _, r := range rows {
		rec := []string{
			r.PortfolioID,
			r.CountyFIPS,
			r.Hazard,
			strconv.FormatFloat(r.ExpectedAnnualLoss, 'f', -1, 64),
		}
		if err := w.Write(rec); err != nil {
			return nil, err
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
