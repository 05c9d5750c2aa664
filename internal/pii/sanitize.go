package pii

import (
	"strings"

	"github.com/andersoncleaning/telemetry/internal/event"
)

const keyTags = "tags"

// Sanitize returns a copy of e with PII removed from every known section.
// The input is never modified and the shape of the event is preserved, except
// that user.ip_address is deleted. Sections of an unexpected type pass
// through unchanged. Sanitize never drops an event; a nil event yields nil.
func Sanitize(e *event.Event) *event.Event {
	if e == nil {
		return nil
	}

	out := make(event.Map, 0, len(e.Map))
	for _, f := range e.Map {
		switch f.Key {
		case event.KeyRequest:
			f.Value = sanitizeRequest(f.Value)
		case event.KeyExtra, event.KeyContexts, keyTags:
			f.Value = Redact(f.Value)
		case event.KeyUser:
			f.Value = sanitizeUser(f.Value)
		case event.KeyBreadcrumbs:
			f.Value = sanitizeBreadcrumbs(f.Value)
		case event.KeyException:
			f.Value = sanitizeExceptions(f.Value)
		}
		out = append(out, f)
	}
	return event.New(out)
}

func sanitizeRequest(v event.Value) event.Value {
	req, ok := v.(event.Map)
	if !ok {
		return v
	}

	out := make(event.Map, len(req))
	for i, f := range req {
		out[i] = f
		if isNull(f.Value) {
			continue
		}
		switch f.Key {
		case "cookies":
			// Cookies are treated as sensitive as a whole.
			out[i].Value = event.Map{{Key: "filtered", Value: event.String(RedactedToken)}}
		case "headers":
			switch h := f.Value.(type) {
			case event.Map:
				out[i].Value = ScrubHeaders(h)
			case event.List:
				out[i].Value = scrubHeaderPairs(h)
			}
		case "query_string":
			switch q := f.Value.(type) {
			case event.String:
				out[i].Value = event.String(ScrubQueryString(string(q)))
			case event.List:
				out[i].Value = scrubQueryPairs(q)
			}
		case "data":
			out[i].Value = sanitizeBody(f.Value)
		}
	}
	return out
}

// sanitizeBody redacts a request body. Bodies that arrive as a string are
// redacted as JSON when they parse as a JSON container, and scrubbed as a
// form-encoded query otherwise.
func sanitizeBody(v event.Value) event.Value {
	s, ok := v.(event.String)
	if !ok {
		return Redact(v)
	}
	trimmed := strings.TrimSpace(string(s))
	if strings.HasPrefix(trimmed, "{") || strings.HasPrefix(trimmed, "[") {
		if parsed, err := event.Parse([]byte(trimmed)); err == nil {
			if b, err := event.Marshal(Redact(parsed)); err == nil {
				return event.String(b)
			}
		}
		return v
	}
	return event.String(ScrubQueryString(string(s)))
}

// scrubQueryPairs handles the [[name, value], ...] query string form.
func scrubQueryPairs(pairs event.List) event.List {
	out := make(event.List, len(pairs))
	for i, item := range pairs {
		out[i] = item
		pair, ok := item.(event.List)
		if !ok || len(pair) != 2 {
			continue
		}
		name, ok := pair[0].(event.String)
		if !ok || !isSensitiveQueryParam(string(name)) {
			continue
		}
		out[i] = event.List{name, event.String(RedactedToken)}
	}
	return out
}

func isSensitiveQueryParam(name string) bool {
	lower := strings.ToLower(name)
	for _, p := range sensitiveQueryParams {
		if strings.Contains(lower, p) {
			return true
		}
	}
	return false
}

func sanitizeUser(v event.Value) event.Value {
	user, ok := v.(event.Map)
	if !ok {
		return v
	}

	out := make(event.Map, 0, len(user))
	for _, f := range user {
		switch f.Key {
		case "ip_address":
			continue
		case "email":
			if s, ok := f.Value.(event.String); ok && s != "" {
				f.Value = event.String(RedactEmail(string(s)))
			}
		case "username":
			if s, ok := f.Value.(event.String); ok && strings.Contains(string(s), "@") {
				f.Value = event.String(RedactEmail(string(s)))
			}
		}
		out = append(out, f)
	}
	return out
}

func sanitizeBreadcrumbs(v event.Value) event.Value {
	return mapValues(v, func(item event.Value) event.Value {
		crumb, ok := item.(event.Map)
		if !ok {
			return item
		}
		data, ok := crumb.Get("data")
		if !ok || isNull(data) {
			return item
		}
		return crumb.With("data", Redact(data))
	})
}

func sanitizeExceptions(v event.Value) event.Value {
	return mapValues(v, func(item event.Value) event.Value {
		exc, ok := item.(event.Map)
		if !ok {
			return item
		}
		for _, key := range []string{"value", "message"} {
			if s, ok := exc.GetString(key); ok && s != "" {
				exc = exc.With(key, event.String(ScrubFreeText(s)))
			}
		}
		return exc
	})
}

// mapValues applies fn to every entry of a Sentry interface list, keeping
// the {"values": [...]} wrapper when present.
func mapValues(v event.Value, fn func(event.Value) event.Value) event.Value {
	list, wrapped := event.Values(v)
	if list == nil {
		return v
	}
	out := make(event.List, len(list))
	for i, item := range list {
		out[i] = fn(item)
	}
	if wrapped {
		return v.(event.Map).With(event.KeyValues, out)
	}
	return out
}

func isNull(v event.Value) bool {
	switch v.(type) {
	case nil, event.Null:
		return true
	}
	return false
}
