package handler

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"terrarisk/internal/analysis"

	"github.com/gorilla/websocket"
)

const (
	eventsWSWriteWait = 10 * time.Second
	eventsWSPongWait  = 60 * time.Second
	eventsWSPingEvery = (eventsWSPongWait * 9) / 10
)

var eventsWSUpgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true
	},
}

type eventsWSInbound struct {
	Type string `json:"type"`
}

type eventsWSOutbound struct {
	Type    string                 `json:"type"`
	RunID   string                 `json:"runId,omitempty"`
	Event   *analysis.JournalEvent `json:"event,omitempty"`
	Code    string                 `json:"code,omitempty"`
	Message string                 `json:"message,omitempty"`
}

// RunEventsHandler streams stage transitions over a websocket. The optional
// run_id query parameter narrows the stream to a single run.
type RunEventsHandler struct {
	events *analysis.EventBroker
	logger *slog.Logger
}

func NewRunEventsHandler(events *analysis.EventBroker, logger *slog.Logger) *RunEventsHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &RunEventsHandler{events: events, logger: logger}
}

func (h *RunEventsHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h.events == nil {
		http.Error(w, "event stream unavailable", http.StatusServiceUnavailable)
		return
	}
	runID := strings.TrimSpace(r.URL.Query().Get("run_id"))

	conn, err := eventsWSUpgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	if err := conn.SetReadDeadline(time.Now().Add(eventsWSPongWait)); err != nil {
		h.logger.Warn("run events ws set read deadline failed", "error", err)
		return
	}
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(eventsWSPongWait))
	})

	sub, unsubscribe := h.events.Subscribe(runID, 64)
	defer unsubscribe()

	writeCh := make(chan eventsWSOutbound, 32)
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(eventsWSPingEvery)
		defer ticker.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case out := <-writeCh:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(out); err != nil {
					return
				}
			case ev, ok := <-sub:
				if !ok {
					return
				}
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteJSON(eventsWSOutbound{Type: "stage", RunID: ev.RunID, Event: &ev}); err != nil {
					return
				}
			case <-ticker.C:
				if err := conn.SetWriteDeadline(time.Now().Add(eventsWSWriteWait)); err != nil {
					return
				}
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	pushEventsWS(writeCh, eventsWSOutbound{Type: "subscribed", RunID: runID})

	for {
		var in eventsWSInbound
		if err := conn.ReadJSON(&in); err != nil {
			cancel()
			<-writerDone
			return
		}
		switch strings.ToLower(strings.TrimSpace(in.Type)) {
		case "ping":
			pushEventsWS(writeCh, eventsWSOutbound{Type: "pong"})
		default:
			pushEventsWS(writeCh, eventsWSOutbound{
				Type:    "error",
				Code:    "invalid_argument",
				Message: "unsupported type: " + in.Type,
			})
		}
	}
}

// pushEventsWS drops the oldest queued message when the writer falls behind.
func pushEventsWS(writeCh chan eventsWSOutbound, out eventsWSOutbound) {
	select {
	case writeCh <- out:
		return
	default:
	}
	select {
	case <-writeCh:
	default:
	}
	select {
	case writeCh <- out:
	default:
	}
}
