package alert

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/andersoncleaning/telemetry/internal/event"
)

const (
	defaultQueueSize    = 256
	defaultDrainTimeout = 5 * time.Second
)

// Alert outcomes reported to the Recorder.
const (
	OutcomeSent           = "sent"
	OutcomeSuppressed     = "suppressed"
	OutcomeBelowThreshold = "below_threshold"
	OutcomeDropped        = "dropped"
	OutcomeFailed         = "failed"
)

// Recorder receives one call per alert decision.
type Recorder interface {
	AlertOutcome(outcome string)
}

// Config controls which events alert and how delivery is paced.
type Config struct {
	WebhookURL    string
	MinSeverity   Severity
	Timeout       time.Duration // per notification, default 10s
	QueueSize     int           // pending notifications, default 256
	RatePerMinute int           // outbound limit, 0 disables
}

// Option configures a Notifier.
type Option func(*Notifier)

// WithSender replaces the webhook transport.
func WithSender(s Sender) Option {
	return func(n *Notifier) { n.sender = s }
}

// WithCache shares a dedup cache instead of creating a private one.
func WithCache(c *DedupCache) Option {
	return func(n *Notifier) { n.cache = c }
}

// WithRecorder sets the outcome recorder, typically Prometheus counters.
func WithRecorder(r Recorder) Option {
	return func(n *Notifier) { n.recorder = r }
}

// Stats is a snapshot of notifier activity since start.
type Stats struct {
	Enabled        bool  `json:"enabled"`
	Fingerprints   int   `json:"fingerprints"`
	Sent           int64 `json:"sent"`
	Suppressed     int64 `json:"suppressed"`
	BelowThreshold int64 `json:"belowThreshold"`
	Dropped        int64 `json:"dropped"`
	Failed         int64 `json:"failed"`
}

type job struct {
	fingerprint string
	eventID     string
	msg         Message
}

// Notifier turns qualifying events into deduplicated chat notifications.
// Notify never blocks on the network: messages are queued and sent by a
// background worker, each with its own timeout. Delivery failures are
// logged and counted, never returned.
type Notifier struct {
	cfg      Config
	sender   Sender
	cache    *DedupCache
	limiter  *rate.Limiter
	recorder Recorder

	mu     sync.RWMutex
	closed bool
	queue  chan job
	done   chan struct{}

	sent, suppressed, belowThreshold, dropped, failed atomic.Int64
}

// NewNotifier creates a Notifier and starts its delivery worker. With an
// empty WebhookURL the notifier is disabled and Notify is a no-op.
func NewNotifier(cfg Config, opts ...Option) *Notifier {
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaultSendTimeout
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = defaultQueueSize
	}

	n := &Notifier{
		cfg:   cfg,
		cache: NewDedupCache(),
		queue: make(chan job, cfg.QueueSize),
		done:  make(chan struct{}),
	}
	for _, opt := range opts {
		opt(n)
	}
	if n.sender == nil {
		n.sender = NewWebhookSender(cfg.WebhookURL)
	}
	if cfg.RatePerMinute > 0 {
		n.limiter = rate.NewLimiter(rate.Limit(float64(cfg.RatePerMinute)/60.0), cfg.RatePerMinute)
	}

	go n.run()
	return n
}

// Enabled reports whether a webhook is configured.
func (n *Notifier) Enabled() bool {
	return n != nil && n.cfg.WebhookURL != ""
}

// Notify queues a notification for e if it is severe enough and its
// fingerprint has not been seen before. It reports whether a notification
// was queued.
func (n *Notifier) Notify(e *event.Event) bool {
	if !n.Enabled() || e == nil {
		return false
	}

	if !ShouldAlert(e, n.cfg.MinSeverity) {
		n.record(OutcomeBelowThreshold, &n.belowThreshold)
		return false
	}

	fingerprint := Fingerprint(e)

	n.mu.RLock()
	defer n.mu.RUnlock()
	if n.closed {
		n.record(OutcomeDropped, &n.dropped)
		slog.Warn("notifier closed, dropping notification",
			slog.String("fingerprint", fingerprint),
			slog.String("event_id", e.ID()),
		)
		return false
	}

	if !n.cache.ShouldNotify(fingerprint) {
		n.record(OutcomeSuppressed, &n.suppressed)
		slog.Debug("alert suppressed, fingerprint already notified",
			slog.String("fingerprint", fingerprint),
			slog.String("event_id", e.ID()),
		)
		return false
	}

	j := job{fingerprint: fingerprint, eventID: e.ID(), msg: FormatMessage(e)}
	select {
	case n.queue <- j:
		return true
	default:
		n.record(OutcomeDropped, &n.dropped)
		slog.Warn("alert queue full, dropping notification",
			slog.String("fingerprint", fingerprint),
			slog.String("event_id", j.eventID),
		)
		return false
	}
}

// ResetCache forgets all notified fingerprints and returns how many there were.
func (n *Notifier) ResetCache() int {
	cleared := n.cache.Clear()
	slog.Info("alert dedup cache cleared", slog.Int("fingerprints", cleared))
	return cleared
}

// Stats returns current counters.
func (n *Notifier) Stats() Stats {
	return Stats{
		Enabled:        n.Enabled(),
		Fingerprints:   n.cache.Len(),
		Sent:           n.sent.Load(),
		Suppressed:     n.suppressed.Load(),
		BelowThreshold: n.belowThreshold.Load(),
		Dropped:        n.dropped.Load(),
		Failed:         n.failed.Load(),
	}
}

// Close stops accepting notifications and waits (bounded) for queued ones
// to be delivered.
func (n *Notifier) Close() {
	n.mu.Lock()
	if n.closed {
		n.mu.Unlock()
		return
	}
	n.closed = true
	close(n.queue)
	n.mu.Unlock()

	select {
	case <-n.done:
	case <-time.After(defaultDrainTimeout):
		slog.Warn("alert queue drain timed out")
	}
}

func (n *Notifier) run() {
	defer close(n.done)
	for j := range n.queue {
		n.deliver(j)
	}
}

func (n *Notifier) deliver(j job) {
	ctx, cancel := context.WithTimeout(context.Background(), n.cfg.Timeout)
	defer cancel()

	attrs := []any{
		slog.String("fingerprint", j.fingerprint),
		slog.String("event_id", j.eventID),
	}

	if n.limiter != nil {
		if err := n.limiter.Wait(ctx); err != nil {
			n.record(OutcomeFailed, &n.failed)
			slog.Warn("alert notification rate limited", append(attrs, slog.Any("error", err))...)
			return
		}
	}

	if err := n.sender.Send(ctx, j.msg); err != nil {
		n.record(OutcomeFailed, &n.failed)
		slog.Warn("alert notification failed", append(attrs, slog.Any("error", err))...)
		return
	}

	n.record(OutcomeSent, &n.sent)
	slog.Info("alert notification sent", attrs...)
}

func (n *Notifier) record(outcome string, counter *atomic.Int64) {
	counter.Add(1)
	if n.recorder != nil {
		n.recorder.AlertOutcome(outcome)
	}
}
