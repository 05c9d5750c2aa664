package alert

import (
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/andersoncleaning/telemetry/internal/event"
)

func parseEvent(t *testing.T, doc string) *event.Event {
	t.Helper()
	e, err := event.ParseEvent([]byte(doc))
	if err != nil {
		t.Fatalf("ParseEvent() error = %v", err)
	}
	return e
}

func TestParseSeverity(t *testing.T) {
	tests := []struct {
		in   string
		want Severity
		ok   bool
	}{
		{"debug", SeverityDebug, true},
		{"info", SeverityInfo, true},
		{"warning", SeverityWarning, true},
		{"ERROR", SeverityError, true},
		{" fatal ", SeverityFatal, true},
		{"critical", 0, false},
		{"", 0, false},
	}
	for _, tt := range tests {
		got, ok := ParseSeverity(tt.in)
		if got != tt.want || ok != tt.ok {
			t.Errorf("ParseSeverity(%q) = %v, %v; want %v, %v", tt.in, got, ok, tt.want, tt.ok)
		}
	}
	if SeverityWarning.String() != "warning" || Severity(42).String() != "unknown" {
		t.Error("String() mismatch")
	}
}

func TestShouldAlert(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want bool
	}{
		{"debug below error", `{"level":"debug"}`, false},
		{"warning below error", `{"level":"warning"}`, false},
		{"error at threshold", `{"level":"error"}`, true},
		{"fatal above", `{"level":"fatal"}`, true},
		{"missing level defaults to error", `{}`, true},
		{"unknown level", `{"level":"panic"}`, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ShouldAlert(parseEvent(t, tt.doc), SeverityError); got != tt.want {
				t.Errorf("ShouldAlert() = %v, want %v", got, tt.want)
			}
		})
	}

	if !ShouldAlert(parseEvent(t, `{"level":"info"}`), SeverityInfo) {
		t.Error("info should alert with min severity info")
	}
}

func TestFingerprint(t *testing.T) {
	long := strings.Repeat("x", 150)

	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"explicit tags", `{"fingerprint":["db","timeout"],"message":"m"}`, "db:timeout"},
		{"exception", `{"exception":{"values":[{"type":"TypeError","value":"bad"}]},"message":"m"}`, "TypeError:bad"},
		{"exception truncated", `{"exception":[{"type":"E","value":"` + long + `"}]}`, "E:" + long[:100]},
		{"message", `{"message":"disk full"}`, "message:disk full"},
		{"message truncated", `{"message":"` + long + `"}`, "message:" + long[:100]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Fingerprint(parseEvent(t, tt.doc)); got != tt.want {
				t.Errorf("Fingerprint() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestFingerprint_UnknownIsAlwaysUnique(t *testing.T) {
	e := parseEvent(t, `{"level":"error"}`)
	a, b := Fingerprint(e), Fingerprint(e)
	if !strings.HasPrefix(a, "unknown:") {
		t.Errorf("Fingerprint() = %q, want unknown: prefix", a)
	}
	if a == b {
		t.Errorf("fallback fingerprints should differ, both %q", a)
	}
}

func TestDedupCache(t *testing.T) {
	c := NewDedupCache()

	if !c.ShouldNotify("db:timeout") {
		t.Error("first observation should notify")
	}
	if c.ShouldNotify("db:timeout") {
		t.Error("second observation should be suppressed")
	}
	if !c.ShouldNotify("other") {
		t.Error("different fingerprint should notify")
	}
	if c.Len() != 2 {
		t.Errorf("Len() = %d, want 2", c.Len())
	}

	if n := c.Clear(); n != 2 {
		t.Errorf("Clear() = %d, want 2", n)
	}
	if !c.ShouldNotify("db:timeout") {
		t.Error("should notify again after Clear")
	}
}

func TestDedupCache_SingleWinnerUnderContention(t *testing.T) {
	c := NewDedupCache()
	var winners atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if c.ShouldNotify("same") {
				winners.Add(1)
			}
		}()
	}
	wg.Wait()

	if winners.Load() != 1 {
		t.Errorf("winners = %d, want 1", winners.Load())
	}
}

func TestFormatMessage(t *testing.T) {
	e := parseEvent(t, `{
		"event_id": "e-1",
		"level": "fatal",
		"environment": "production",
		"release": "site@abc1234",
		"request": {"url": "https://example.com/contact"},
		"user": {"email": "jo***@example.com"},
		"exception": {"values": [{"type": "RangeError", "value": "out of range"}]}
	}`)

	msg := FormatMessage(e)

	if msg.Text != "🚨 New FATAL in production" {
		t.Errorf("Text = %q", msg.Text)
	}
	if len(msg.Blocks) != 6 {
		t.Fatalf("Blocks = %d, want 6", len(msg.Blocks))
	}
	if msg.Blocks[0].Type != "header" || msg.Blocks[0].Text.Text != "🚨 RangeError" {
		t.Errorf("header = %+v", msg.Blocks[0])
	}
	if msg.Blocks[1].Text.Text != "*Error:* out of range" {
		t.Errorf("error section = %q", msg.Blocks[1].Text.Text)
	}
	fields := msg.Blocks[2].Fields
	want := []string{"*Environment:*\nproduction", "*Level:*\nfatal", "*Release:*\nsite@abc1234", "*User:*\njo***@example.com"}
	for i, w := range want {
		if fields[i].Text != w {
			t.Errorf("field %d = %q, want %q", i, fields[i].Text, w)
		}
	}
	if msg.Blocks[3].Text.Text != "*URL:* https://example.com/contact" {
		t.Errorf("url section = %q", msg.Blocks[3].Text.Text)
	}
	if msg.Blocks[4].Type != "divider" {
		t.Errorf("block 4 = %q, want divider", msg.Blocks[4].Type)
	}
	if msg.Blocks[5].Elements[0].Text != "Event ID: `e-1`" {
		t.Errorf("footer = %q", msg.Blocks[5].Elements[0].Text)
	}
}

func TestFormatMessage_Defaults(t *testing.T) {
	msg := FormatMessage(parseEvent(t, `{"message":"plain failure"}`))

	if msg.Text != "🚨 New ERROR in unknown" {
		t.Errorf("Text = %q", msg.Text)
	}
	if msg.Blocks[0].Text.Text != "🚨 Error" {
		t.Errorf("header = %q", msg.Blocks[0].Text.Text)
	}
	if msg.Blocks[1].Text.Text != "*Error:* plain failure" {
		t.Errorf("error = %q", msg.Blocks[1].Text.Text)
	}
	if msg.Blocks[2].Fields[3].Text != "*User:*\nAnonymous" {
		t.Errorf("user = %q", msg.Blocks[2].Fields[3].Text)
	}
	if msg.Blocks[3].Text.Text != "*URL:* N/A" {
		t.Errorf("url = %q", msg.Blocks[3].Text.Text)
	}
}
