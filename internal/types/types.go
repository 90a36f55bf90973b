package types

import (
	"strings"
	"time"
)

// Enumerations -------------------------------------------------------------------

type AnalysisMode string

const (
	ModeCloud       AnalysisMode = "cloud"
	ModeBYOBigQuery AnalysisMode = "byo_bigquery"
	ModeOffline     AnalysisMode = "offline"
)

func (m AnalysisMode) Valid() bool {
	switch m {
	case ModeCloud, ModeBYOBigQuery, ModeOffline:
		return true
	}
	return false
}

type HazardType string

const (
	HazardHurricane HazardType = "hurricane"
	HazardWildfire  HazardType = "wildfire"
	HazardFlood     HazardType = "flood"
)

// HazardTypes lists every known hazard in declaration order.
var HazardTypes = []HazardType{HazardHurricane, HazardWildfire, HazardFlood}

func (h HazardType) Valid() bool {
	switch h {
	case HazardHurricane, HazardWildfire, HazardFlood:
		return true
	}
	return false
}

// ParseHazardType normalizes case and whitespace before matching.
func ParseHazardType(raw string) (HazardType, bool) {
	h := HazardType(strings.ToLower(strings.TrimSpace(raw)))
	return h, h.Valid()
}

// Requests / responses -----------------------------------------------------------

type AnalysisRequest struct {
	Query              string       `json:"query"`
	GeographyFilter    []string     `json:"geography_filter,omitempty"`
	Hazards            []HazardType `json:"hazards,omitempty"`
	Mode               AnalysisMode `json:"mode"`
	PortfolioReference string       `json:"portfolio_reference,omitempty"`
	AllowPII           bool         `json:"allow_pii"`
}

// ModeOrDefault returns the request mode, falling back to offline.
func (r AnalysisRequest) ModeOrDefault() AnalysisMode {
	if r.Mode == "" {
		return ModeOffline
	}
	return r.Mode
}

type AnalysisResponse struct {
	RunID             string             `json:"run_id"`
	Steps             Plan               `json:"steps"`
	Artifacts         []Artifact         `json:"artifacts"`
	ActionCredentials []ActionCredential `json:"action_credentials"`
}

type ScenarioResponse struct {
	Scenario           HazardType     `json:"scenario"`
	Summary            string         `json:"summary"`
	Metrics            map[string]any `json:"metrics"`
	RecommendedActions []string       `json:"recommended_actions"`
	Artifacts          []Artifact     `json:"artifacts"`
}

type PortfolioStressRequest struct {
	PortfolioID string       `json:"portfolio_id"`
	Mode        AnalysisMode `json:"mode"`
}

type PortfolioStressResponse struct {
	PortfolioID string         `json:"portfolio_id"`
	Summary     string         `json:"summary"`
	Metrics     map[string]any `json:"metrics"`
	Artifacts   []Artifact     `json:"artifacts"`
}

// Hazard data --------------------------------------------------------------------

// HazardRecord is one county's risk metrics for a single hazard type.
type HazardRecord struct {
	CountyFIPS         string     `json:"county_fips"`
	County             string     `json:"county"`
	State              string     `json:"state"`
	HazardType         HazardType `json:"hazard_type"`
	ExpectedAnnualLoss float64    `json:"expected_annual_loss"`
	Population         int64      `json:"population"`
	ResilienceIndex    float64    `json:"resilience_index"`
}

// PortfolioRow is one line of the tabular portfolio diff artifact.
type PortfolioRow struct {
	PortfolioID        string  `json:"portfolio_id"`
	CountyFIPS         string  `json:"county_fips"`
	Hazard             string  `json:"hazard"`
	ExpectedAnnualLoss float64 `json:"expected_annual_loss"`
}

// Artifacts / provenance ---------------------------------------------------------

type Artifact struct {
	URI      string         `json:"uri"`
	Type     string         `json:"type"`
	Hash     string         `json:"hash,omitempty"`
	Metadata map[string]any `json:"metadata"`
}

type Actor struct {
	Name string `json:"name"`
	Role string `json:"role"`
}

// ActionSource names the producing subsystem. Reference currently mirrors System.
type ActionSource struct {
	System    string  `json:"system"`
	Reference string  `json:"reference"`
	Mode      *string `json:"mode"`
}

type ActionDescriptor struct {
	Type    string       `json:"type"`
	Inputs  []string     `json:"inputs"`
	Outputs []string     `json:"outputs"`
	Source  ActionSource `json:"source"`
}

type Claim struct {
	Name  string `json:"name"`
	Value any    `json:"value"`
}

type Signature struct {
	Algorithm string `json:"alg"`
	KeyID     string `json:"kid,omitempty"`
	Value     string `json:"sig"`
}

// ActionCredential is the immutable provenance record for one action.
type ActionCredential struct {
	Version    string           `json:"version"`
	ID         string           `json:"id"`
	Timestamp  time.Time        `json:"timestamp"`
	Actor      Actor            `json:"actor"`
	Action     ActionDescriptor `json:"action"`
	Artifacts  []Artifact       `json:"artifacts"`
	Claims     []Claim          `json:"claims"`
	Signatures []Signature      `json:"signatures"`
	Trace      map[string]any   `json:"trace"`
}

// Claim returns the value of the first claim with the given name.
func (c ActionCredential) Claim(name string) (any, bool) {
	for _, cl := range c.Claims {
		if cl.Name == name {
			return cl.Value, true
		}
	}
	return nil, false
}
