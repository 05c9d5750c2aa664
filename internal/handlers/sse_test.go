package handlers

import (
	"bufio"
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/andersoncleaning/telemetry/internal/broker"
)

func TestSSEHandler_Stream(t *testing.T) {
	b := broker.New()
	srv := httptest.NewServer(http.HandlerFunc(NewSSEHandler(b).Stream))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	req, _ := http.NewRequestWithContext(ctx, http.MethodGet, srv.URL+"?source=tunnel", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if ct := resp.Header.Get("Content-Type"); ct != "text/event-stream" {
		t.Fatalf("Content-Type = %q", ct)
	}

	lines := bufio.NewScanner(resp.Body)
	readUntil := func(prefix string) string {
		t.Helper()
		for lines.Scan() {
			if strings.HasPrefix(lines.Text(), prefix) {
				return lines.Text()
			}
		}
		t.Fatalf("stream ended before %q: %v", prefix, lines.Err())
		return ""
	}

	readUntil("event: connected")

	// The subscription exists once the connected event was flushed.
	b.Publish(broker.Summary{EventID: "sdk-event", Source: "sdk"})
	b.Publish(broker.Summary{EventID: "abc123", Source: "tunnel", Fingerprint: "TypeError:x"})

	readUntil("event: event")
	data := readUntil("data: ")
	if !strings.Contains(data, `"eventId":"abc123"`) {
		t.Errorf("data = %s", data)
	}
}

func TestSSEHandler_UnknownSource(t *testing.T) {
	rec := httptest.NewRecorder()
	NewSSEHandler(broker.New()).Stream(rec, httptest.NewRequest(http.MethodGet, "/api/admin/events/stream?source=nope", nil))

	if rec.Code != http.StatusBadRequest {
		t.Errorf("Status = %d, want 400", rec.Code)
	}
}
