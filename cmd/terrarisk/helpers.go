package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"terrarisk/internal/types"
)

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func writeJSONFile(path string, v any) error {
	raw, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(path, append(raw, '\n'), 0o644)
}

func parseHazards(raw []string) ([]types.HazardType, error) {
	out := make([]types.HazardType, 0, len(raw))
	for _, r := range raw {
		for _, part := range strings.Split(r, ",") {
			if strings.TrimSpace(part) == "" {
				continue
			}
			h, ok := types.ParseHazardType(part)
			if !ok {
				return nil, fmt.Errorf("unknown hazard %q (want one of hurricane, wildfire, flood)", part)
			}
			out = append(out, h)
		}
	}
	return out, nil
}

func requestFromFlags(query string, hazards, geo []string, mode, portfolio string) (types.AnalysisRequest, error) {
	hz, err := parseHazards(hazards)
	if err != nil {
		return types.AnalysisRequest{}, err
	}
	m := types.AnalysisMode(strings.ToLower(strings.TrimSpace(mode)))
	if m != "" && !m.Valid() {
		return types.AnalysisRequest{}, fmt.Errorf("unknown mode %q (want cloud, byo_bigquery or offline)", mode)
	}
	return types.AnalysisRequest{
		Query:              strings.TrimSpace(query),
		GeographyFilter:    geo,
		Hazards:            hz,
		Mode:               m,
		PortfolioReference: strings.TrimSpace(portfolio),
	}, nil
}
