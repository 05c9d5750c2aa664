package event

import "errors"

// Section and field names of a telemetry event.
const (
	KeyEventID     = "event_id"
	KeyLevel       = "level"
	KeyMessage     = "message"
	KeyFingerprint = "fingerprint"
	KeyEnvironment = "environment"
	KeyRelease     = "release"
	KeyRequest     = "request"
	KeyUser        = "user"
	KeyExtra       = "extra"
	KeyContexts    = "contexts"
	KeyBreadcrumbs = "breadcrumbs"
	KeyException   = "exception"
	KeyValues      = "values"
)

// ErrNotObject is returned when an event document is not a JSON object.
var ErrNotObject = errors.New("event: document is not a JSON object")

// Event is a telemetry event document.
type Event struct {
	Map
}

// New wraps a Map as an Event.
func New(m Map) *Event {
	return &Event{Map: m}
}

// ParseEvent decodes a JSON event.
func ParseEvent(data []byte) (*Event, error) {
	v, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m, ok := v.(Map)
	if !ok {
		return nil, ErrNotObject
	}
	return New(m), nil
}

// MarshalJSON implements json.Marshaler.
func (e *Event) MarshalJSON() ([]byte, error) {
	if e == nil {
		return []byte("null"), nil
	}
	return Marshal(e.Map)
}

// Exception is the type and message of one exception entry.
type Exception struct {
	Type  string
	Value string
}

// ID returns the event id, or "" when absent.
func (e *Event) ID() string {
	s, _ := e.GetString(KeyEventID)
	return s
}

// Level returns the severity level string, or "" when absent.
func (e *Event) Level() string {
	s, _ := e.GetString(KeyLevel)
	return s
}

// Environment returns the environment name, or "".
func (e *Event) Environment() string {
	s, _ := e.GetString(KeyEnvironment)
	return s
}

// Release returns the release identifier, or "".
func (e *Event) Release() string {
	s, _ := e.GetString(KeyRelease)
	return s
}

// Message returns the free-form event message. Both the plain string form
// and the structured logentry form ({"formatted": ..., "message": ...}) are
// understood.
func (e *Event) Message() string {
	v, ok := e.Get(KeyMessage)
	if !ok {
		v, ok = e.Get("logentry")
		if !ok {
			return ""
		}
	}
	switch t := v.(type) {
	case String:
		return string(t)
	case Map:
		if s, ok := t.GetString("formatted"); ok && s != "" {
			return s
		}
		s, _ := t.GetString("message")
		return s
	}
	return ""
}

// Fingerprint returns the explicit fingerprint tags set by the application.
// Non-string entries are ignored.
func (e *Event) Fingerprint() []string {
	v, ok := e.Get(KeyFingerprint)
	if !ok {
		return nil
	}
	list, ok := v.(List)
	if !ok {
		return nil
	}
	var out []string
	for _, item := range list {
		if s, ok := item.(String); ok {
			out = append(out, string(s))
		}
	}
	return out
}

// Exceptions returns the exception entries in order. The exception section
// may be a {"values": [...]} object or a bare list.
func (e *Event) Exceptions() []Exception {
	v, ok := e.Get(KeyException)
	if !ok {
		return nil
	}
	list, _ := Values(v)
	var out []Exception
	for _, item := range list {
		m, ok := item.(Map)
		if !ok {
			continue
		}
		typ, _ := m.GetString("type")
		val, ok := m.GetString("value")
		if !ok {
			val, _ = m.GetString("message")
		}
		out = append(out, Exception{Type: typ, Value: val})
	}
	return out
}

// RequestURL returns request.url, or "".
func (e *Event) RequestURL() string {
	req, ok := e.GetMap(KeyRequest)
	if !ok {
		return ""
	}
	s, _ := req.GetString("url")
	return s
}

// UserLabel identifies the affected user by id, falling back to email.
func (e *Event) UserLabel() string {
	user, ok := e.GetMap(KeyUser)
	if !ok {
		return ""
	}
	if id, ok := user.Get("id"); ok {
		switch t := id.(type) {
		case String:
			if t != "" {
				return string(t)
			}
		case Number:
			return string(t)
		}
	}
	s, _ := user.GetString("email")
	return s
}

// Values unwraps a Sentry "interface list": either {"values": [...]} or a
// bare list. The second result reports whether v had the wrapped form.
func Values(v Value) (List, bool) {
	switch t := v.(type) {
	case List:
		return t, false
	case Map:
		inner, ok := t.Get(KeyValues)
		if !ok {
			return nil, true
		}
		list, _ := inner.(List)
		return list, true
	}
	return nil, false
}

// Truncate returns at most n runes of s.
func Truncate(s string, n int) string {
	if n <= 0 {
		return ""
	}
	count := 0
	for i := range s {
		if count == n {
			return s[:i]
		}
		count++
	}
	return s
}
