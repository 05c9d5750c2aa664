package handlers

import (
	"bytes"
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andersoncleaning/telemetry/internal/config"
	"github.com/andersoncleaning/telemetry/internal/envelope"
	"github.com/andersoncleaning/telemetry/internal/event"
	"github.com/andersoncleaning/telemetry/internal/logging"
	"github.com/andersoncleaning/telemetry/internal/metrics"
	"github.com/andersoncleaning/telemetry/internal/sentry"
)

const maxEnvelopeSize = 1 << 20 // 1 MB, after decompression

// forwardedItemTypes are the envelope items relayed upstream. Attachments,
// replays and user feedback may carry free-form PII and are discarded.
var forwardedItemTypes = map[string]bool{
	envelope.TypeEvent:       true,
	envelope.TypeTransaction: true,
	"session":                true,
	"sessions":               true,
	"client_report":          true,
	"check_in":               true,
}

// SentryTunnelHandler proxies Sentry envelopes from the browser through the
// backend, avoiding CORS issues with Sentry's ingest endpoint. Every event
// passes through the drop policy and the PII sanitizer before it is
// forwarded.
type SentryTunnelHandler struct {
	cfg       *config.Config
	client    *http.Client
	processor *sentry.Processor
	metrics   *metrics.Metrics
}

// NewSentryTunnelHandler creates a SentryTunnelHandler with the given configuration.
// A nil client uses a client with a 10 second timeout.
func NewSentryTunnelHandler(cfg *config.Config, processor *sentry.Processor, m *metrics.Metrics, client *http.Client) *SentryTunnelHandler {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}
	return &SentryTunnelHandler{cfg: cfg, client: client, processor: processor, metrics: m}
}

// Tunnel reads a Sentry envelope from the request body, validates the DSN
// matches the configured frontend DSN, scrubs it and forwards it to Sentry's
// ingest API.
func (h *SentryTunnelHandler) Tunnel(w http.ResponseWriter, r *http.Request) {
	if h.cfg.SentryDSNFrontend == "" {
		h.respond(w, http.StatusNotFound)
		return
	}

	body, err := envelope.ReadBody(r.Body, r.Header.Get("Content-Encoding"), maxEnvelopeSize)
	if err != nil {
		if errors.Is(err, envelope.ErrTooLarge) {
			h.respond(w, http.StatusRequestEntityTooLarge)
			return
		}
		h.respond(w, http.StatusBadRequest)
		return
	}

	env, err := envelope.Parse(body)
	if err != nil {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventBadEnvelope, "malformed sentry envelope")
		h.respond(w, http.StatusBadRequest)
		return
	}

	// Validate the DSN matches the configured frontend DSN
	if env.DSN() != h.cfg.SentryDSNFrontend {
		logging.LogSecurityEvent(r.Context(), logging.SecurityEventDSNMismatch, "sentry tunnel dsn mismatch")
		h.respond(w, http.StatusUnauthorized)
		return
	}

	target, err := ingestURL(env.DSN())
	if err != nil {
		h.respond(w, http.StatusBadRequest)
		return
	}

	env.Items = h.scrubItems(env)
	if len(env.Items) == 0 {
		// Everything was dropped by policy; the SDK only needs a success.
		h.respond(w, http.StatusOK)
		return
	}

	out, err := env.Encode()
	if err != nil {
		writeErrorWithCause(r.Context(), w, http.StatusInternalServerError, "failed to encode envelope", err)
		h.metrics.TunnelRequest(http.StatusInternalServerError)
		return
	}

	req, err := http.NewRequestWithContext(r.Context(), http.MethodPost, target, bytes.NewReader(out))
	if err != nil {
		slog.Error("failed to create sentry tunnel request", slog.Any("error", err))
		h.respond(w, http.StatusInternalServerError)
		return
	}
	req.Header.Set("Content-Type", "application/x-sentry-envelope")

	start := time.Now()
	resp, err := h.client.Do(req)
	h.metrics.UpstreamLatency(time.Since(start))
	if err != nil {
		slog.Warn("failed to forward sentry envelope", slog.Any("error", err))
		h.respond(w, http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	h.respond(w, resp.StatusCode)
}

// scrubItems returns the items to forward: event payloads sanitized (or
// removed when the policy drops them), transactions sanitized, other
// allowed types untouched.
func (h *SentryTunnelHandler) scrubItems(env *envelope.Envelope) []envelope.Item {
	var kept []envelope.Item
	for _, item := range env.Items {
		typ := item.Type()
		if !forwardedItemTypes[typ] {
			continue
		}
		if typ != envelope.TypeEvent && typ != envelope.TypeTransaction {
			kept = append(kept, item)
			continue
		}

		doc, err := event.ParseEvent(item.Payload)
		if err != nil {
			// An unreadable payload cannot be scrubbed, so it is not sent.
			slog.Warn("dropping unparseable envelope item",
				slog.String("type", typ),
				slog.Any("error", err),
			)
			continue
		}
		if doc.ID() == "" {
			doc.Map = doc.Map.With(event.KeyEventID, event.String(eventID(env)))
		}

		var clean *event.Event
		if typ == envelope.TypeTransaction {
			clean = h.processor.Sanitize(doc)
		} else {
			var ok bool
			if clean, ok = h.processor.Process(doc); !ok {
				continue
			}
		}

		payload, err := event.Marshal(clean.Map)
		if err != nil {
			slog.Warn("dropping envelope item", slog.String("type", typ), slog.Any("error", err))
			continue
		}
		item.Payload = payload
		kept = append(kept, item)
	}
	return kept
}

// respond writes a bodiless status and counts it.
func (h *SentryTunnelHandler) respond(w http.ResponseWriter, status int) {
	h.metrics.TunnelRequest(status)
	w.WriteHeader(status)
}

// eventID is the envelope's event id, or a fresh one in Sentry's 32 hex
// digit form.
func eventID(env *envelope.Envelope) string {
	if id := env.EventID(); id != "" {
		return id
	}
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// ingestURL maps a DSN (https://<key>@<host>/<project_id>) to the envelope
// endpoint of its project.
func ingestURL(dsn string) (string, error) {
	u, err := url.Parse(dsn)
	if err != nil {
		return "", err
	}
	projectID := strings.Trim(u.Path, "/")
	if u.Host == "" || projectID == "" {
		return "", errors.New("dsn has no host or project")
	}
	return "https://" + u.Host + "/api/" + projectID + "/envelope/", nil
}
