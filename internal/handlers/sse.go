package handlers

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/andersoncleaning/telemetry/internal/broker"
	"github.com/andersoncleaning/telemetry/internal/metrics"
)

const heartbeatInterval = 30 * time.Second

var streamSources = map[string]bool{
	broker.AllSources:   true,
	metrics.SourceSDK:    true,
	metrics.SourceTunnel: true,
}

// SSEHandler serves Server-Sent Events streams of scrubbed event summaries.
type SSEHandler struct {
	broker    *broker.Broker
	heartbeat time.Duration
}

// NewSSEHandler creates an SSEHandler backed by the given broker.
func NewSSEHandler(b *broker.Broker) *SSEHandler {
	return &SSEHandler{broker: b, heartbeat: heartbeatInterval}
}

// Stream opens an SSE connection, optionally limited to one source with
// ?source=sdk|tunnel. It sends an initial "connected" event, then one
// "event" message per processed event. A heartbeat comment is sent every 30
// seconds to keep the connection alive through proxies.
func (h *SSEHandler) Stream(w http.ResponseWriter, r *http.Request) {
	source := r.URL.Query().Get("source")
	if !streamSources[source] {
		writeError(w, http.StatusBadRequest, "unknown source")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "streaming not supported")
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	ch := h.broker.Subscribe(source)
	defer h.broker.Unsubscribe(source, ch)

	// Send initial connected event
	fmt.Fprintf(w, "event: connected\ndata: ok\n\n")
	flusher.Flush()

	heartbeat := time.NewTicker(h.heartbeat)
	defer heartbeat.Stop()

	ctx := r.Context()
	for {
		select {
		case <-ctx.Done():
			return
		case s := <-ch:
			data, err := json.Marshal(s)
			if err != nil {
				slog.Warn("failed to encode event summary", slog.Any("error", err))
				continue
			}
			fmt.Fprintf(w, "event: event\ndata: %s\n\n", data)
			flusher.Flush()
		case <-heartbeat.C:
			fmt.Fprintf(w, ": heartbeat\n\n")
			flusher.Flush()
		}
	}
}
