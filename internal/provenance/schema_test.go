package provenance

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"terrarisk/internal/types"
)

const schemaPath = "../../schemas/action_credential_v0.json"

func TestValidatorAcceptsMintedCredentials(t *testing.T) {
	v := LoadValidator(schemaPath)
	require.NoError(t, v.LoadError())
	require.True(t, v.HasSchema())

	m := NewMinter()
	step := m.Mint(StepAction(types.PlanStep{ID: "s1", Description: "d", Source: "nri_loader"}))
	assert.Equal(t, StatusValid, v.Validate(step).Status)

	bundle := m.Mint(Action{
		Type:    "report.compose",
		Inputs:  []string{"q"},
		Outputs: []string{"/tmp/r_report.pdf"},
		Source:  "reports.compose",
		Artifacts: []types.Artifact{
			{URI: "/tmp/r_report.pdf", Type: "application/pdf", Hash: "abc", Metadata: map[string]any{"kind": "report"}},
		},
		Claims: []types.Claim{{Name: "mode", Value: "offline"}},
		Mode:   "offline",
	})
	res := v.Validate(bundle)
	assert.Equal(t, StatusValid, res.Status, "reasons: %v", res.Reasons)
}

func TestValidatorReportsInvalidCredential(t *testing.T) {
	v := LoadValidator(schemaPath)
	require.True(t, v.HasSchema())

	cred := NewMinter().Mint(Action{Type: "", Source: "x"})
	res := v.Validate(cred)
	assert.Equal(t, StatusInvalid, res.Status)
	assert.NotEmpty(t, res.Reasons)
	assert.False(t, res.OK())
}

func TestMissingSchemaDegradesToAbsent(t *testing.T) {
	v := LoadValidator(filepath.Join(t.TempDir(), "missing.json"))
	assert.False(t, v.HasSchema())
	assert.Error(t, v.LoadError())

	res := v.Validate(NewMinter().Mint(Action{Type: "t", Source: "s"}))
	assert.Equal(t, StatusSchemaAbsent, res.Status)
	assert.True(t, res.OK())
}

func TestUnparseableSchemaDegradesToAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "broken.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	v := LoadValidator(path)
	assert.False(t, v.HasSchema())
	assert.Equal(t, StatusSchemaAbsent, v.Validate(types.ActionCredential{}).Status)
}
