// Package alert decides whether a telemetry event deserves a chat
// notification and delivers it. Notifications are deduplicated by error
// fingerprint for the life of the process and sent in the background so the
// event reporting path never waits on the webhook.
package alert

import (
	"strings"

	"github.com/andersoncleaning/telemetry/internal/event"
)

// Severity is an event level in ascending order of importance.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityError
	SeverityFatal
)

var severityNames = [...]string{"debug", "info", "warning", "error", "fatal"}

// ParseSeverity maps a level name to its Severity.
func ParseSeverity(s string) (Severity, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for i, name := range severityNames {
		if name == s {
			return Severity(i), true
		}
	}
	return 0, false
}

func (s Severity) String() string {
	if s < SeverityDebug || s > SeverityFatal {
		return "unknown"
	}
	return severityNames[s]
}

// ShouldAlert reports whether the event's level reaches min. Events without
// a level count as errors; unrecognized levels never alert.
func ShouldAlert(e *event.Event, min Severity) bool {
	level := e.Level()
	if level == "" {
		level = SeverityError.String()
	}
	sev, ok := ParseSeverity(level)
	if !ok {
		return false
	}
	return sev >= min
}
