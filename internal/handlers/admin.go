package handlers

import (
	"errors"
	"io"
	"net/http"

	"github.com/andersoncleaning/telemetry/internal/alert"
	"github.com/andersoncleaning/telemetry/internal/config"
	"github.com/andersoncleaning/telemetry/internal/crypto"
	"github.com/andersoncleaning/telemetry/internal/event"
	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/metrics"
	"github.com/andersoncleaning/telemetry/internal/models"
	"github.com/andersoncleaning/telemetry/internal/pii"
	"github.com/andersoncleaning/telemetry/internal/policy"
	"github.com/andersoncleaning/telemetry/internal/services"
)

const maxScrubBody = 1 << 20

type AdminHandler struct {
	cfg         *config.Config
	authService *services.AuthService
	filter      *policy.Filter
	notifier    *alert.Notifier
	minSeverity alert.Severity
	metrics     *metrics.Metrics
}

func NewAdminHandler(cfg *config.Config, authService *services.AuthService, filter *policy.Filter, notifier *alert.Notifier, m *metrics.Metrics) *AdminHandler {
	minSeverity, ok := alert.ParseSeverity(cfg.AlertMinSeverity)
	if !ok {
		minSeverity = alert.SeverityError
	}
	return &AdminHandler{
		cfg:         cfg,
		authService: authService,
		filter:      filter,
		notifier:    notifier,
		minSeverity: minSeverity,
		metrics:     m,
	}
}

// Login exchanges the admin password for a bearer token.
func (h *AdminHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	valid, err := crypto.VerifyPassword(req.Password, h.cfg.AdminPasswordSalt, h.cfg.AdminPasswordHash)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to verify password", err)
		return
	}
	if !valid {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadAdminPassword, "admin login failed")
		writeError(w, http.StatusUnauthorized, "invalid password")
		return
	}

	token, expires, err := h.authService.GenerateToken("admin", services.RoleAdmin)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to generate token", err)
		return
	}

	writeJSON(w, http.StatusOK, models.LoginResponse{Token: token, ExpiresAt: expires})
}

// Scrub previews the pipeline on a posted event: the sanitized document, or
// the reason it would be dropped, and whether it would alert. Nothing is
// forwarded and no notification is sent.
func (h *AdminHandler) Scrub(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(io.LimitReader(r.Body, maxScrubBody))
	if err != nil {
		writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	e, err := event.ParseEvent(body)
	if err != nil {
		if errors.Is(err, event.ErrNotObject) {
			writeError(w, http.StatusBadRequest, "event must be a JSON object")
			return
		}
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}

	if reason, drop := h.filter.Drop(e); drop {
		writeJSON(w, http.StatusOK, models.ScrubResponse{Dropped: true, DropReason: reason})
		return
	}

	clean := pii.Sanitize(e)
	h.metrics.EventScrubbed(metrics.SourceAdmin)

	out, err := event.Marshal(clean.Map)
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to encode event", err)
		return
	}

	writeJSON(w, http.StatusOK, models.ScrubResponse{
		Event:       out,
		Fingerprint: alert.Fingerprint(clean),
		WouldAlert:  h.notifier.Enabled() && alert.ShouldAlert(clean, h.minSeverity),
	})
}

// AlertStats reports notifier counters and the dedup cache size.
func (h *AdminHandler) AlertStats(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.notifier.Stats())
}

// ResetAlertCache forgets every notified fingerprint so each error alerts again.
func (h *AdminHandler) ResetAlertCache(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, models.ResetCacheResponse{Cleared: h.notifier.ResetCache()})
}
