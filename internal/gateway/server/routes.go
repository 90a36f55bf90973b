package server

import (
	"net/http"

	"terrarisk/internal/gateway/handler"
	"terrarisk/internal/gateway/middleware"
)

func NewMux(
	analysisHandler *handler.AnalysisHandler,
	healthHandler *handler.HealthHandler,
	runLogHandler *handler.RunLogHandler,
	runEventsHandler *handler.RunEventsHandler,
) http.Handler {
	mux := http.NewServeMux()

	// RPC Handlers
	for path, h := range analysisHandler.Routes() {
		mux.Handle(path, h)
	}

	mux.Handle("/healthz", healthHandler)
	mux.Handle("/ws/run-events", runEventsHandler)

	// Debug Handlers
	mux.Handle("/debug/run-logs", runLogHandler)

	return middleware.CORS(mux)
}
