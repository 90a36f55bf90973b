// Package handler exposes the analysis pipeline over Connect unary
// procedures with JSON bodies.
package handler

import (
	"context"
	"log/slog"
	"net/http"

	"connectrpc.com/connect"

	"terrarisk/internal/analysis"
	"terrarisk/internal/scenario"
	"terrarisk/internal/types"
)

const ServiceName = "terrarisk.v1.AnalysisService"

const (
	AnalyzeProcedure         = "/" + ServiceName + "/Analyze"
	ReportProcedure          = "/" + ServiceName + "/Report"
	PlanProcedure            = "/" + ServiceName + "/Plan"
	ScenarioProcedure        = "/" + ServiceName + "/Scenario"
	PortfolioStressProcedure = "/" + ServiceName + "/PortfolioStress"
)

// ScenarioRequest selects a catalogued hazard scenario.
type ScenarioRequest struct {
	Hazard string `json:"hazard"`
}

// PlanResponse is the standalone planner output.
type PlanResponse struct {
	Steps types.Plan `json:"steps"`
}

// Pipeline is the part of analysis.Service the handlers need.
type Pipeline interface {
	Run(ctx context.Context, req types.AnalysisRequest) (*types.AnalysisResponse, error)
	Plan(ctx context.Context, req types.AnalysisRequest) (types.Plan, error)
}

var _ Pipeline = (*analysis.Service)(nil)

// AnalysisHandler serves the analysis procedures.
type AnalysisHandler struct {
	pipeline Pipeline
	catalog  *scenario.Catalog
	logger   *slog.Logger
}

func NewAnalysisHandler(pipeline Pipeline, catalog *scenario.Catalog, logger *slog.Logger) *AnalysisHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnalysisHandler{pipeline: pipeline, catalog: catalog, logger: logger}
}

// Routes returns the procedure paths and their handlers.
func (h *AnalysisHandler) Routes(opts ...connect.HandlerOption) map[string]http.Handler {
	opts = append([]connect.HandlerOption{connect.WithCodec(jsonCodec{})}, opts...)
	return map[string]http.Handler{
		AnalyzeProcedure:         connect.NewUnaryHandler(AnalyzeProcedure, h.Analyze, opts...),
		ReportProcedure:          connect.NewUnaryHandler(ReportProcedure, h.Report, opts...),
		PlanProcedure:            connect.NewUnaryHandler(PlanProcedure, h.Plan, opts...),
		ScenarioProcedure:        connect.NewUnaryHandler(ScenarioProcedure, h.Scenario, opts...),
		PortfolioStressProcedure: connect.NewUnaryHandler(PortfolioStressProcedure, h.PortfolioStress, opts...),
	}
}

func (h *AnalysisHandler) Analyze(ctx context.Context, req *connect.Request[types.AnalysisRequest]) (*connect.Response[types.AnalysisResponse], error) {
	return h.run(ctx, "analyze", req.Msg)
}

// Report runs the same pipeline as Analyze; the bundle is the report.
func (h *AnalysisHandler) Report(ctx context.Context, req *connect.Request[types.AnalysisRequest]) (*connect.Response[types.AnalysisResponse], error) {
	return h.run(ctx, "report", req.Msg)
}

func (h *AnalysisHandler) run(ctx context.Context, op string, req *types.AnalysisRequest) (*connect.Response[types.AnalysisResponse], error) {
	out, err := h.pipeline.Run(ctx, *req)
	if err != nil {
		h.logger.Warn("pipeline request failed", "op", op, "error", err)
		return nil, toConnectError(err)
	}
	return connect.NewResponse(out), nil
}

func (h *AnalysisHandler) Plan(ctx context.Context, req *connect.Request[types.AnalysisRequest]) (*connect.Response[PlanResponse], error) {
	plan, err := h.pipeline.Plan(ctx, *req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&PlanResponse{Steps: plan}), nil
}

func (h *AnalysisHandler) Scenario(_ context.Context, req *connect.Request[ScenarioRequest]) (*connect.Response[types.ScenarioResponse], error) {
	out, err := h.catalog.Scenario(req.Msg.Hazard)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&out), nil
}

func (h *AnalysisHandler) PortfolioStress(_ context.Context, req *connect.Request[types.PortfolioStressRequest]) (*connect.Response[types.PortfolioStressResponse], error) {
	out, err := h.catalog.PortfolioStress(*req.Msg)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&out), nil
}
