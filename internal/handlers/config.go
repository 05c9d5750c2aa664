package handlers

import (
	"net/http"

	"github.com/andersoncleaning/telemetry/internal/config"
	"github.com/andersoncleaning/telemetry/internal/models"
)

// TunnelPath is where browser SDKs post envelopes.
const TunnelPath = "/api/sentry-tunnel"

type ConfigHandler struct {
	cfg *config.Config
}

func NewConfigHandler(cfg *config.Config) *ConfigHandler {
	return &ConfigHandler{cfg: cfg}
}

// PublicConfig returns the browser SDK settings. Only the frontend DSN is
// exposed, and the tunnel path only when the tunnel is enabled.
func (h *ConfigHandler) PublicConfig(w http.ResponseWriter, r *http.Request) {
	response := models.PublicConfigResponse{
		SentryDSN:        h.cfg.SentryDSNFrontend,
		Environment:      h.cfg.SentryEnvironment,
		Release:          h.cfg.SentryRelease,
		TracesSampleRate: h.cfg.SentryTracesSampleRate,
	}
	if h.cfg.SentryDSNFrontend != "" {
		response.Tunnel = TunnelPath
	}

	writeJSON(w, http.StatusOK, response)
}
