package provenance

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/google/jsonschema-go/jsonschema"

	"terrarisk/internal/types"
)

type ValidationStatus string

const (
	StatusValid        ValidationStatus = "valid"
	StatusSchemaAbsent ValidationStatus = "schema_absent"
	StatusInvalid      ValidationStatus = "invalid"
)

type ValidationResult struct {
	Status  ValidationStatus
	Reasons []string
}

func (r ValidationResult) OK() bool { return r.Status != StatusInvalid }

// Validator checks credentials against the action credential JSON schema.
// A Validator without a schema reports StatusSchemaAbsent for every input.
type Validator struct {
	resolved *jsonschema.Resolved
	loadErr  error
}

// LoadValidator never fails: a missing or unreadable schema degrades to a
// schema-absent validator and the cause is kept for LoadError.
func LoadValidator(path string) *Validator {
	path = strings.TrimSpace(path)
	if path == "" {
		return &Validator{loadErr: errors.New("credential schema path is empty")}
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		return &Validator{loadErr: fmt.Errorf("read credential schema: %w", err)}
	}
	v, err := NewValidator(raw)
	if err != nil {
		return &Validator{loadErr: err}
	}
	return v
}

// NewValidator compiles a schema document.
func NewValidator(schemaJSON []byte) (*Validator, error) {
	var schema jsonschema.Schema
	if err := json.Unmarshal(schemaJSON, &schema); err != nil {
		return nil, fmt.Errorf("parse credential schema: %w", err)
	}
	resolved, err := schema.Resolve(nil)
	if err != nil {
		return nil, fmt.Errorf("resolve credential schema: %w", err)
	}
	return &Validator{resolved: resolved}, nil
}

// LoadError reports why no schema is available, if any.
func (v *Validator) LoadError() error {
	if v == nil {
		return errors.New("validator is nil")
	}
	return v.loadErr
}

func (v *Validator) HasSchema() bool { return v != nil && v.resolved != nil }

func (v *Validator) Validate(cred types.ActionCredential) ValidationResult {
	if !v.HasSchema() {
		return ValidationResult{Status: StatusSchemaAbsent}
	}
	raw, err := json.Marshal(cred)
	if err != nil {
		return ValidationResult{Status: StatusInvalid, Reasons: []string{err.Error()}}
	}
	var instance map[string]any
	if err := json.Unmarshal(raw, &instance); err != nil {
		return ValidationResult{Status: StatusInvalid, Reasons: []string{err.Error()}}
	}
	if err := v.resolved.Validate(instance); err != nil {
		return ValidationResult{Status: StatusInvalid, Reasons: splitReasons(err)}
	}
	return ValidationResult{Status: StatusValid}
}

func splitReasons(err error) []string {
	var out []string
	for _, line := range strings.Split(err.Error(), "\n") {
		if line = strings.TrimSpace(line); line != "" {
			out = append(out, line)
		}
	}
	return out
}
