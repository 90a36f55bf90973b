// Package ranking filters hazard records and orders them by expected loss.
package ranking

import (
	"cmp"
	"fmt"
	"math"
	"slices"
	"strings"

	"terrarisk/internal/types"
)

// DefaultHazard is used when the caller selects no hazards.
const DefaultHazard = types.HazardHurricane

// MalformedRecordError identifies the first record that cannot be ranked.
type MalformedRecordError struct {
	Index  int
	Field  string
	Reason string
}

func (e *MalformedRecordError) Error() string {
	return fmt.Sprintf("ranking: record %d: %s %s", e.Index, e.Field, e.Reason)
}

// Rank keeps records whose hazard type is selected and sorts them by
// expected annual loss, highest first. Equal losses keep input order.
func Rank(records []types.HazardRecord, hazards []types.HazardType) ([]types.HazardRecord, error) {
	selected := selection(hazards)
	out := make([]types.HazardRecord, 0, len(records))
	for i, r := range records {
		if err := check(i, r); err != nil {
			return nil, err
		}
		if _, ok := selected[normalize(r.HazardType)]; ok {
			out = append(out, r)
		}
	}
	slices.SortStableFunc(out, func(a, b types.HazardRecord) int {
		return cmp.Compare(b.ExpectedAnnualLoss, a.ExpectedAnnualLoss)
	})
	return out, nil
}

// Selection returns the effective hazard selection for a request.
func Selection(hazards []types.HazardType) []types.HazardType {
	out := make([]types.HazardType, 0, len(hazards))
	seen := map[types.HazardType]struct{}{}
	for _, h := range hazards {
		h = normalize(h)
		if h == "" {
			continue
		}
		if _, ok := seen[h]; ok {
			continue
		}
		seen[h] = struct{}{}
		out = append(out, h)
	}
	if len(out) == 0 {
		return []types.HazardType{DefaultHazard}
	}
	return out
}

func selection(hazards []types.HazardType) map[types.HazardType]struct{} {
	set := map[types.HazardType]struct{}{}
	for _, h := range Selection(hazards) {
		set[h] = struct{}{}
	}
	return set
}

func normalize(h types.HazardType) types.HazardType {
	return types.HazardType(strings.ToLower(strings.TrimSpace(string(h))))
}

func check(i int, r types.HazardRecord) error {
	switch {
	case len(r.CountyFIPS) != 5:
		return &MalformedRecordError{Index: i, Field: "county_fips", Reason: fmt.Sprintf("must be 5 characters, got %q", r.CountyFIPS)}
	case strings.TrimSpace(r.County) == "":
		return &MalformedRecordError{Index: i, Field: "county", Reason: "is missing"}
	case normalize(r.HazardType) == "":
		return &MalformedRecordError{Index: i, Field: "hazard_type", Reason: "is missing"}
	case math.IsNaN(r.ExpectedAnnualLoss):
		return &MalformedRecordError{Index: i, Field: "expected_annual_loss", Reason: "is missing"}
	case r.ExpectedAnnualLoss < 0:
		return &MalformedRecordError{Index: i, Field: "expected_annual_loss", Reason: "is negative"}
	}
	return nil
}
