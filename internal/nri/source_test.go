package nri

import (
	"context"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"terrarisk/internal/config"
	"terrarisk/internal/types"
)

func TestFixtureNormalizesFIPSAndHazard(t *testing.T) {
	records, err := NewFixtureSource().Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) == 0 {
		t.Fatalf("fixture should not be empty")
	}
	for _, r := range records {
		if len(r.CountyFIPS) != 5 {
			t.Fatalf("fips %q is not 5 characters", r.CountyFIPS)
		}
		if string(r.HazardType) != strings.ToLower(string(r.HazardType)) {
			t.Fatalf("hazard %q is not lower-cased", r.HazardType)
		}
	}
	var mobile *types.HazardRecord
	for i := range records {
		if records[i].County == "Mobile" {
			mobile = &records[i]
		}
	}
	if mobile == nil || mobile.CountyFIPS != "01097" {
		t.Fatalf("expected Mobile county padded to 01097, got %+v", mobile)
	}
}

func TestLoadAppliesGeographyFilter(t *testing.T) {
	src := NewFixtureSource()
	records, err := src.Load(context.Background(), []string{"LA", "6037"})
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for _, r := range records {
		if r.State != "LA" && r.CountyFIPS != "06037" {
			t.Fatalf("record outside filter: %+v", r)
		}
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records (2 Orleans + Los Angeles), got %d", len(records))
	}
}

func TestReadCSVPassesThroughMissingValues(t *testing.T) {
	doc := "state,county,county_fips,hazard_type,expected_annual_loss,population,resilience_index\n" +
		"FL,,12086,hurricane,,10,\n"
	records, err := ReadCSV(strings.NewReader(doc))
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if len(records) != 1 {
		t.Fatalf("expected one record, got %d", len(records))
	}
	if !math.IsNaN(records[0].ExpectedAnnualLoss) {
		t.Fatalf("missing loss should be NaN, got %v", records[0].ExpectedAnnualLoss)
	}
	if records[0].County != "" {
		t.Fatalf("missing county should stay empty")
	}
}

func TestReadCSVRejectsGarbageNumbers(t *testing.T) {
	doc := "state,county,county_fips,hazard_type,expected_annual_loss,population,resilience_index\n" +
		"FL,Lee,12071,hurricane,lots,10,1\n"
	_, err := ReadCSV(strings.NewReader(doc))
	var pe *ParseError
	if !errors.As(err, &pe) {
		t.Fatalf("expected ParseError, got %v", err)
	}
	if pe.Line != 2 || pe.Column != "expected_annual_loss" {
		t.Fatalf("unexpected parse error location: %+v", pe)
	}
}

func TestReadCSVRequiresColumns(t *testing.T) {
	if _, err := ReadCSV(strings.NewReader("state,county\nFL,Lee\n")); err == nil {
		t.Fatalf("expected missing column error")
	}
	records, err := ReadCSV(strings.NewReader(""))
	if err != nil || len(records) != 0 {
		t.Fatalf("empty document should yield no records, got %v %v", records, err)
	}
}

func TestCSVFileSource(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nri.csv")
	doc := "state,county,county_fips,hazard_type,expected_annual_loss,population,resilience_index\n" +
		"TX,Harris,48201,Flood,5,1,1\n"
	if err := os.WriteFile(path, []byte(doc), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	records, err := NewCSVFileSource(path).Load(context.Background(), nil)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(records) != 1 || records[0].HazardType != types.HazardFlood {
		t.Fatalf("unexpected records %+v", records)
	}

	if _, err := NewCSVFileSource(filepath.Join(t.TempDir(), "missing.csv")).Load(context.Background(), nil); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestNewFromConfigDefaultsToEmpty(t *testing.T) {
	src, err := NewFromConfig(context.Background(), config.NRIConfig{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	records, err := src.Load(context.Background(), nil)
	if err != nil || len(records) != 0 {
		t.Fatalf("expected empty offline-safe result, got %v %v", records, err)
	}

	src, err = NewFromConfig(context.Background(), config.NRIConfig{UseFixture: true})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, ok := src.(*CSVSource); !ok {
		t.Fatalf("expected fixture CSV source, got %T", src)
	}
}

func TestPostgresSourceRejectsBadTableName(t *testing.T) {
	if _, err := NewPostgresSource(nil, "nri; DROP TABLE x"); err == nil {
		t.Fatalf("expected invalid table name error")
	}
	if _, err := NewPostgresSource(nil, "public.nri_county_hazards"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}
