package provenance

import (
	"time"

	"github.com/google/uuid"

	"terrarisk/internal/types"
)

const CredentialVersion = "0.1.0"

// SystemActor is the fixed actor stamped on every credential.
var SystemActor = types.Actor{Name: "TerraRisk Agent", Role: "system"}

// Action describes one auditable action to be credentialed.
type Action struct {
	Type      string
	Inputs    []string
	Outputs   []string
	Source    string
	Artifacts []types.Artifact
	Claims    []types.Claim
	Mode      string
}

// Minter builds ActionCredentials. It keeps no state between calls; Now and
// NewID exist so tests can pin time and identity.
type Minter struct {
	Now   func() time.Time
	NewID func() string
}

func NewMinter() *Minter {
	return &Minter{
		Now:   time.Now,
		NewID: func() string { return uuid.NewString() },
	}
}

// Mint constructs a credential for a. It performs no I/O.
func (m *Minter) Mint(a Action) types.ActionCredential {
	now, newID := time.Now, uuid.NewString
	if m != nil && m.Now != nil {
		now = m.Now
	}
	if m != nil && m.NewID != nil {
		newID = m.NewID
	}

	var mode *string
	if a.Mode != "" {
		v := a.Mode
		mode = &v
	}
	claims := append([]types.Claim{}, a.Claims...)
	artifacts := append([]types.Artifact{}, a.Artifacts...)

	return types.ActionCredential{
		Version:   CredentialVersion,
		ID:        newID(),
		Timestamp: now().UTC(),
		Actor:     SystemActor,
		Action: types.ActionDescriptor{
			Type:    a.Type,
			Inputs:  append([]string{}, a.Inputs...),
			Outputs: append([]string{}, a.Outputs...),
			// reference is reserved for a distinct addressable location; until
			// then it carries the system name.
			Source: types.ActionSource{System: a.Source, Reference: a.Source, Mode: mode},
		},
		Artifacts:  artifacts,
		Claims:     claims,
		Signatures: []types.Signature{},
		Trace:      nil,
	}
}

// StepAction maps a plan step to its credential action.
func StepAction(step types.PlanStep) Action {
	return Action{
		Type:    "planner.step." + step.Source,
		Inputs:  step.Inputs,
		Outputs: []string{step.ID},
		Source:  step.Source,
		Claims:  []types.Claim{{Name: "description", Value: step.Description}},
	}
}

// MintSteps returns one credential per step, in plan order.
func (m *Minter) MintSteps(plan types.Plan) []types.ActionCredential {
	out := make([]types.ActionCredential, 0, len(plan))
	for _, step := range plan {
		out = append(out, m.Mint(StepAction(step)))
	}
	return out
}
