package alert

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"
)

// recordingSender captures messages and can be told to fail or block.
type recordingSender struct {
	mu       sync.Mutex
	messages []Message
	err      error
	block    chan struct{}
	sent     chan struct{}
}

func newRecordingSender() *recordingSender {
	return &recordingSender{sent: make(chan struct{}, 100)}
}

func (s *recordingSender) Send(ctx context.Context, msg Message) error {
	if s.block != nil {
		<-s.block
	}
	s.mu.Lock()
	s.messages = append(s.messages, msg)
	s.mu.Unlock()
	s.sent <- struct{}{}
	return s.err
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.messages)
}

type countingRecorder struct {
	mu       sync.Mutex
	outcomes map[string]int
}

func (r *countingRecorder) AlertOutcome(outcome string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.outcomes == nil {
		r.outcomes = make(map[string]int)
	}
	r.outcomes[outcome]++
}

func waitSent(t *testing.T, s *recordingSender) {
	t.Helper()
	select {
	case <-s.sent:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for notification")
	}
}

func TestNotifier_DeduplicatesByFingerprint(t *testing.T) {
	sender := newRecordingSender()
	rec := &countingRecorder{}
	n := NewNotifier(Config{WebhookURL: "http://hooks.invalid", MinSeverity: SeverityError},
		WithSender(sender), WithRecorder(rec))

	e := parseEvent(t, `{"fingerprint":["checkout","500"],"level":"error"}`)

	if !n.Notify(e) {
		t.Fatal("first Notify should queue")
	}
	waitSent(t, sender)
	if n.Notify(e) {
		t.Error("second Notify should be suppressed")
	}

	n.ResetCache()
	if !n.Notify(e) {
		t.Error("Notify after ResetCache should queue again")
	}
	waitSent(t, sender)
	n.Close()

	if sender.count() != 2 {
		t.Errorf("sent = %d, want 2", sender.count())
	}
	stats := n.Stats()
	if stats.Sent != 2 || stats.Suppressed != 1 || stats.Fingerprints != 1 {
		t.Errorf("Stats() = %+v", stats)
	}
	rec.mu.Lock()
	defer rec.mu.Unlock()
	if rec.outcomes[OutcomeSent] != 2 || rec.outcomes[OutcomeSuppressed] != 1 {
		t.Errorf("outcomes = %v", rec.outcomes)
	}
}

func TestNotifier_SeverityGateSkipsCache(t *testing.T) {
	sender := newRecordingSender()
	n := NewNotifier(Config{WebhookURL: "http://hooks.invalid", MinSeverity: SeverityError}, WithSender(sender))
	defer n.Close()

	debug := parseEvent(t, `{"fingerprint":["same"],"level":"debug"}`)
	if n.Notify(debug) {
		t.Error("debug event should not alert")
	}
	if n.Stats().Fingerprints != 0 {
		t.Error("below-threshold events must not reach the dedup cache")
	}

	fatal := parseEvent(t, `{"fingerprint":["same"],"level":"fatal"}`)
	if !n.Notify(fatal) {
		t.Error("fatal event should alert")
	}
	waitSent(t, sender)
}

func TestNotifier_DisabledWithoutWebhook(t *testing.T) {
	sender := newRecordingSender()
	n := NewNotifier(Config{}, WithSender(sender))
	defer n.Close()

	if n.Notify(parseEvent(t, `{"level":"fatal","message":"x"}`)) {
		t.Error("Notify should be a no-op without a webhook URL")
	}
	if n.Stats().Enabled {
		t.Error("Stats().Enabled = true, want false")
	}
}

func TestNotifier_FailuresAreCountedNotReturned(t *testing.T) {
	sender := newRecordingSender()
	sender.err = errors.New("boom")
	n := NewNotifier(Config{WebhookURL: "http://hooks.invalid"}, WithSender(sender))

	if !n.Notify(parseEvent(t, `{"message":"a"}`)) {
		t.Fatal("Notify should queue")
	}
	waitSent(t, sender)
	n.Close()

	if n.Stats().Failed != 1 {
		t.Errorf("Failed = %d, want 1", n.Stats().Failed)
	}
}

func TestNotifier_DropsWhenQueueFull(t *testing.T) {
	sender := newRecordingSender()
	sender.block = make(chan struct{})
	n := NewNotifier(Config{WebhookURL: "http://hooks.invalid", QueueSize: 1}, WithSender(sender))

	// First message is taken by the worker and blocks, second fills the
	// queue, third is dropped.
	n.Notify(parseEvent(t, `{"message":"one"}`))
	deadline := time.Now().Add(time.Second)
	for len(n.queue) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	n.Notify(parseEvent(t, `{"message":"two"}`))
	if n.Notify(parseEvent(t, `{"message":"three"}`)) {
		t.Error("Notify should drop when the queue is full")
	}
	if n.Stats().Dropped != 1 {
		t.Errorf("Dropped = %d, want 1", n.Stats().Dropped)
	}

	close(sender.block)
	n.Close()
	if sender.count() != 2 {
		t.Errorf("sent = %d, want 2", sender.count())
	}
}

func TestNotifier_NotifyAfterClose(t *testing.T) {
	rec := &countingRecorder{}
	n := NewNotifier(Config{WebhookURL: "http://hooks.invalid"}, WithSender(newRecordingSender()), WithRecorder(rec))
	n.Close()
	n.Close()
	if n.Notify(parseEvent(t, `{"message":"late"}`)) {
		t.Error("Notify after Close should not queue")
	}

	stats := n.Stats()
	if stats.Dropped != 1 || stats.Fingerprints != 0 {
		t.Errorf("Stats = %+v, want the late alert dropped and its fingerprint unseen", stats)
	}
	if rec.outcomes[OutcomeDropped] != 1 {
		t.Errorf("outcomes = %v", rec.outcomes)
	}
}

func TestWebhookSender_PostsJSON(t *testing.T) {
	var got Message
	var contentType string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		contentType = r.Header.Get("Content-Type")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &got)
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL)
	msg := FormatMessage(parseEvent(t, `{"event_id":"abc","message":"m"}`))
	if err := s.Send(context.Background(), msg); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if contentType != "application/json" {
		t.Errorf("Content-Type = %q", contentType)
	}
	if got.Text != msg.Text || len(got.Blocks) != len(msg.Blocks) {
		t.Errorf("payload = %+v", got)
	}
}

func TestWebhookSender_RetriesOn5xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if attempts.Add(1) <= 2 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, WithBackoff(time.Millisecond))
	if err := s.Send(context.Background(), Message{Text: "x"}); err != nil {
		t.Fatalf("Send() error = %v", err)
	}
	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
}

func TestWebhookSender_NoRetryOn4xx(t *testing.T) {
	var attempts atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts.Add(1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	s := NewWebhookSender(srv.URL, WithBackoff(time.Millisecond))
	if err := s.Send(context.Background(), Message{Text: "x"}); err == nil {
		t.Error("Send() should fail on 404")
	}
	if attempts.Load() != 1 {
		t.Errorf("attempts = %d, want 1", attempts.Load())
	}
}

func TestNotifier_EndToEndWebhook(t *testing.T) {
	received := make(chan Message, 4)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var msg Message
		json.NewDecoder(r.Body).Decode(&msg)
		received <- msg
	}))
	defer srv.Close()

	n := NewNotifier(Config{WebhookURL: srv.URL, RatePerMinute: 60})
	defer n.Close()

	e := parseEvent(t, `{"event_id":"e9","exception":[{"type":"Boom","value":"bad"}]}`)
	n.Notify(e)
	n.Notify(e)

	select {
	case msg := <-received:
		if msg.Blocks[0].Text.Text != "🚨 Boom" {
			t.Errorf("header = %q", msg.Blocks[0].Text.Text)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("webhook not called")
	}
	select {
	case <-received:
		t.Error("duplicate event should not be posted")
	case <-time.After(100 * time.Millisecond):
	}
}
