package alert

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/andersoncleaning/telemetry/internal/event"
)

// fingerprintTextLimit is how much of a message identifies an error.
const fingerprintTextLimit = 100

// Fingerprint derives the identity used to deduplicate alerts, in order of
// preference: the application's explicit fingerprint tags, the first
// exception's type and message, the event message. Events with none of these
// get a value that is unique per call, so they always alert.
func Fingerprint(e *event.Event) string {
	if tags := e.Fingerprint(); len(tags) > 0 {
		return strings.Join(tags, ":")
	}

	if exc := e.Exceptions(); len(exc) > 0 {
		return exc[0].Type + ":" + event.Truncate(exc[0].Value, fingerprintTextLimit)
	}

	if msg := e.Message(); msg != "" {
		return "message:" + event.Truncate(msg, fingerprintTextLimit)
	}

	return fmt.Sprintf("unknown:%d:%s", time.Now().UnixNano(), uuid.NewString())
}
