package analysis

import (
	"errors"
	"fmt"
)

// Stage is a state of the per-request pipeline.
type Stage string

const (
	StageNew          Stage = "NEW"
	StagePlanned      Stage = "PLANNED"
	StageDataLoaded   Stage = "DATA_LOADED"
	StageRanked       Stage = "RANKED"
	StageBundled      Stage = "BUNDLED"
	StageCredentialed Stage = "CREDENTIALED"
	StageDone         Stage = "DONE"
)

// Stages lists the pipeline in transition order.
var Stages = []Stage{StageNew, StagePlanned, StageDataLoaded, StageRanked, StageBundled, StageCredentialed, StageDone}

// StageError is returned by Run when the stage named by Stage could not be
// reached.
type StageError struct {
	Stage Stage
	RunID string
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("analysis %s failed: %v", e.Stage, e.Err)
}

func (e *StageError) Unwrap() error { return e.Err }

// ErrCredentialInvalid wraps schema violations found in CREDENTIALED.
var ErrCredentialInvalid = errors.New("action credential failed schema validation")

// FailedStage reports the stage of a StageError anywhere in err's chain.
func FailedStage(err error) (Stage, bool) {
	var se *StageError
	if errors.As(err, &se) {
		return se.Stage, true
	}
	return "", false
}
