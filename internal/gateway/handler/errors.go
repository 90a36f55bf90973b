package handler

import (
	"errors"
	"fmt"

	"connectrpc.com/connect"

	"terrarisk/internal/analysis"
	"terrarisk/internal/artifact"
	"terrarisk/internal/earthai"
	"terrarisk/internal/nri"
	"terrarisk/internal/planner"
	"terrarisk/internal/ranking"
	"terrarisk/internal/scenario"
)

// toConnectError maps pipeline failures to Connect codes. The stage name,
// when known, stays in the message.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var (
		malformed *ranking.MalformedRecordError
		parse     *nri.ParseError
		storage   *artifact.StorageError
	)
	switch {
	case errors.Is(err, earthai.ErrPlanningUnavailable):
		return connect.NewError(connect.CodeUnavailable, err)
	case errors.As(err, &malformed), errors.As(err, &parse):
		return connect.NewError(connect.CodeDataLoss, err)
	case errors.As(err, &storage):
		return connect.NewError(connect.CodeInternal, err)
	case errors.Is(err, analysis.ErrInvalidRequest),
		errors.Is(err, scenario.ErrUnknownScenario),
		errors.Is(err, scenario.ErrInvalidStress):
		return connect.NewError(connect.CodeInvalidArgument, err)
	case errors.Is(err, planner.ErrInvalidPlan), errors.Is(err, analysis.ErrCredentialInvalid):
		return connect.NewError(connect.CodeFailedPrecondition, err)
	default:
		return connect.NewError(connect.CodeInternal, fmt.Errorf("analysis service failed: %w", err))
	}
}
