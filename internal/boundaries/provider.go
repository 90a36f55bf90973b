// Package boundaries supplies county geometry for the geodata artifact.
package boundaries

import (
	"strings"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
)

// Provider returns a feature for a geography identifier.
type Provider interface {
	FeatureFor(id string) *geojson.Feature
}

// SyntheticCenter is the placeholder point used for every county offline.
var SyntheticCenter = orb.Point{-95.7129, 37.0902}

// SyntheticProvider never fails; it places every county on SyntheticCenter.
type SyntheticProvider struct {
	Name string
}

func NewSyntheticProvider() SyntheticProvider {
	return SyntheticProvider{Name: "Synthetic County"}
}

func (p SyntheticProvider) FeatureFor(id string) *geojson.Feature {
	name := p.Name
	if name == "" {
		name = "Synthetic County"
	}
	f := geojson.NewFeature(SyntheticCenter)
	f.Properties["county_fips"] = strings.TrimSpace(id)
	f.Properties["name"] = name
	return f
}

// Collection wraps features into a FeatureCollection, skipping nils.
func Collection(features []*geojson.Feature) *geojson.FeatureCollection {
	fc := geojson.NewFeatureCollection()
	for _, f := range features {
		if f != nil {
			fc.Append(f)
		}
	}
	return fc
}
