// Package sentry connects the PII sanitizer, the drop policy and the alert
// notifier to the Sentry SDK and to events relayed from browsers.
package sentry

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"

	"github.com/andersoncleaning/telemetry/internal/alert"
	"github.com/andersoncleaning/telemetry/internal/broker"
	"github.com/andersoncleaning/telemetry/internal/event"
	"github.com/andersoncleaning/telemetry/internal/metrics"
	"github.com/andersoncleaning/telemetry/internal/pii"
	"github.com/andersoncleaning/telemetry/internal/policy"
)

// Notifier is the alerting side of the pipeline.
type Notifier interface {
	Notify(e *event.Event) bool
}

// Processor runs one event through the drop policy, the sanitizer and the
// notifier. The source labels metrics ("sdk", "tunnel", "admin").
type Processor struct {
	source   string
	filter   *policy.Filter
	notifier Notifier
	metrics  *metrics.Metrics
	feed     *broker.Broker
}

// NewProcessor creates a Processor. Any of filter, notifier and m may be nil.
func NewProcessor(source string, filter *policy.Filter, notifier Notifier, m *metrics.Metrics) *Processor {
	return &Processor{source: source, filter: filter, notifier: notifier, metrics: m}
}

// WithFeed publishes a summary of every processed event to b.
func (p *Processor) WithFeed(b *broker.Broker) *Processor {
	p.feed = b
	return p
}

// Process returns the sanitized event, or false when the policy drops it.
// Alerts are raised from the sanitized event so chat messages carry no PII.
func (p *Processor) Process(e *event.Event) (*event.Event, bool) {
	if e == nil || p.dropped(e) {
		return nil, false
	}
	return p.accept(e), true
}

func (p *Processor) dropped(e *event.Event) bool {
	reason, drop := p.filter.Drop(e)
	if !drop {
		return false
	}
	p.metrics.EventDropped(p.source, reason)
	slog.Debug("event dropped by policy",
		slog.String("source", p.source),
		slog.String("reason", reason),
		slog.String("event_id", e.ID()),
	)
	return true
}

func (p *Processor) accept(e *event.Event) *event.Event {
	clean := pii.Sanitize(e)
	p.metrics.EventScrubbed(p.source)

	if p.notifier != nil {
		p.notifier.Notify(clean)
	}
	p.publish(clean)
	return clean
}

// Sanitize scrubs e without policy or alerting, for transactions.
func (p *Processor) Sanitize(e *event.Event) *event.Event {
	clean := pii.Sanitize(e)
	if clean != nil {
		p.metrics.EventScrubbed(p.source)
	}
	return clean
}

// publish sends a summary to the live feed. Top-level messages are not part
// of the sanitized sections, so free text is scrubbed here.
func (p *Processor) publish(e *event.Event) {
	if p.feed == nil {
		return
	}
	p.feed.Publish(broker.Summary{
		EventID:     e.ID(),
		Source:      p.source,
		Level:       e.Level(),
		Fingerprint: pii.ScrubFreeText(alert.Fingerprint(e)),
		Message:     event.Truncate(pii.ScrubFreeText(e.Message()), 200),
		Time:        time.Now(),
	})
}

// Hook adapts a Processor to the sentry-go client callbacks.
type Hook struct {
	processor *Processor
}

func NewHook(p *Processor) *Hook {
	return &Hook{processor: p}
}

// ScrubEvent is the BeforeSend callback. It returns nil for events the
// policy drops, and otherwise writes the sanitized fields back onto ev.
func (h *Hook) ScrubEvent(ev *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if ev == nil {
		return nil
	}
	doc := toDocument(ev)
	if h.processor.dropped(withOriginalException(doc, hint)) {
		return nil
	}
	applyDocument(ev, h.processor.accept(doc))
	return ev
}

// ScrubTransaction is the BeforeSendTransaction callback. Transactions are
// sanitized but never dropped or alerted on.
func (h *Hook) ScrubTransaction(ev *sentry.Event, hint *sentry.EventHint) *sentry.Event {
	if ev == nil {
		return nil
	}
	applyDocument(ev, h.processor.Sanitize(toDocument(ev)))
	return ev
}

// withOriginalException returns the view the drop policy sees. When the
// event carries no exception, as with CaptureMessage, the hint's error is
// added as one so ignore patterns can match it. The view is never sanitized
// or alerted on, so fingerprints and notifications are unaffected.
func withOriginalException(doc *event.Event, hint *sentry.EventHint) *event.Event {
	if hint == nil || hint.OriginalException == nil || doc.Has(event.KeyException) {
		return doc
	}
	return event.New(doc.Map.With(event.KeyException, event.List{event.Map{
		{Key: "type", Value: event.String("error")},
		{Key: "value", Value: event.String(hint.OriginalException.Error())},
	}}))
}
