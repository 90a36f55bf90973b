package nri

import (
	"bytes"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"

	"terrarisk/internal/types"
)

// CSVSource reads records from a CSV file or an in-memory document.
type CSVSource struct {
	path string
	data []byte
}

func NewCSVFileSource(path string) *CSVSource {
	return &CSVSource{path: strings.TrimSpace(path)}
}

func NewCSVSource(data []byte) *CSVSource {
	return &CSVSource{data: data}
}

// NewFixtureSource serves the bundled offline fixture.
func NewFixtureSource() *CSVSource {
	return NewCSVSource(offlineFixture)
}

func (s *CSVSource) Load(_ context.Context, filter []string) ([]types.HazardRecord, error) {
	var r io.Reader
	switch {
	case s.data != nil:
		r = bytes.NewReader(s.data)
	case s.path != "":
		f, err := os.Open(s.path)
		if err != nil {
			return nil, fmt.Errorf("nri: open source: %w", err)
		}
		defer f.Close()
		r = f
	default:
		return []types.HazardRecord{}, nil
	}
	records, err := ReadCSV(r)
	if err != nil {
		return nil, err
	}
	out := make([]types.HazardRecord, 0, len(records))
	for _, rec := range records {
		if matchesFilter(rec, filter) {
			out = append(out, rec)
		}
	}
	return out, nil
}

// ReadCSV decodes hazard rows. Missing required columns in the header are an
// error; empty cells are passed through (an empty loss becomes NaN) so the
// ranking stage can reject the record.
func ReadCSV(r io.Reader) ([]types.HazardRecord, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return []types.HazardRecord{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("nri: read header: %w", err)
	}
	index := make(map[string]int, len(header))
	for i, h := range header {
		index[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, col := range DefaultColumns {
		if _, ok := index[col]; !ok {
			return nil, fmt.Errorf("nri: missing column %q", col)
		}
	}

	out := make([]types.HazardRecord, 0, 16)
	line := 1
	for {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		line++
		if err != nil {
			return nil, fmt.Errorf("nri: line %d: %w", line, err)
		}
		cell := func(col string) string { return strings.TrimSpace(row[index[col]]) }

		loss, err := parseFloatCell(line, "expected_annual_loss", cell("expected_annual_loss"), math.NaN())
		if err != nil {
			return nil, err
		}
		population, err := parseFloatCell(line, "population", cell("population"), 0)
		if err != nil {
			return nil, err
		}
		resilience, err := parseFloatCell(line, "resilience_index", cell("resilience_index"), 0)
		if err != nil {
			return nil, err
		}
		out = append(out, types.HazardRecord{
			CountyFIPS:         NormalizeFIPS(cell("county_fips")),
			County:             cell("county"),
			State:              cell("state"),
			HazardType:         NormalizeHazard(cell("hazard_type")),
			ExpectedAnnualLoss: loss,
			Population:         int64(population),
			ResilienceIndex:    resilience,
		})
	}
	return out, nil
}

func parseFloatCell(line int, col, raw string, empty float64) (float64, error) {
	if raw == "" {
		return empty, nil
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, &ParseError{Line: line, Column: col, Value: raw, Err: err}
	}
	return v, nil
}
