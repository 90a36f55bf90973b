// Package nri loads FEMA National Risk Index hazard records.
package nri

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"terrarisk/internal/config"
	"terrarisk/internal/types"
)

// DefaultColumns are the CSV columns every source must provide.
var DefaultColumns = []string{
	"state",
	"county",
	"county_fips",
	"hazard_type",
	"expected_annual_loss",
	"population",
	"resilience_index",
}

//go:embed fixtures/offline_nri.csv
var offlineFixture []byte

// Source yields hazard records in source order. A nil or empty filter means
// all geographies.
type Source interface {
	Load(ctx context.Context, filter []string) ([]types.HazardRecord, error)
}

// EmptySource is used when no data source is configured.
type EmptySource struct{}

func (EmptySource) Load(context.Context, []string) ([]types.HazardRecord, error) {
	return []types.HazardRecord{}, nil
}

// ParseError reports a CSV cell that could not be decoded.
type ParseError struct {
	Line   int
	Column string
	Value  string
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("nri: line %d column %s: cannot parse %q: %v", e.Line, e.Column, e.Value, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// NewFromConfig picks postgres, a CSV path, the bundled fixture, or nothing,
// in that order of preference.
func NewFromConfig(ctx context.Context, cfg config.NRIConfig) (Source, error) {
	switch {
	case strings.TrimSpace(cfg.PostgresDSN) != "":
		return OpenPostgresSource(ctx, cfg.PostgresDSN, cfg.Table)
	case strings.TrimSpace(cfg.SourcePath) != "":
		return NewCSVFileSource(cfg.SourcePath), nil
	case cfg.UseFixture:
		return NewFixtureSource(), nil
	default:
		return EmptySource{}, nil
	}
}

// NormalizeFIPS left-pads numeric county codes to five characters.
func NormalizeFIPS(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if len(raw) < 5 {
		return strings.Repeat("0", 5-len(raw)) + raw
	}
	return raw
}

// NormalizeHazard lower-cases a hazard tag.
func NormalizeHazard(raw string) types.HazardType {
	return types.HazardType(strings.ToLower(strings.TrimSpace(raw)))
}

func matchesFilter(r types.HazardRecord, filter []string) bool {
	if len(filter) == 0 {
		return true
	}
	for _, f := range filter {
		f = strings.TrimSpace(f)
		if f == "" {
			continue
		}
		if NormalizeFIPS(f) == r.CountyFIPS || strings.EqualFold(f, r.State) || strings.EqualFold(f, r.County) {
			return true
		}
	}
	return false
}
