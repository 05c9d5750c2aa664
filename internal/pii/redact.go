package pii

import "github.com/andersoncleaning/telemetry/internal/event"

// DefaultMaxDepth bounds how far Redact descends into nested data.
const DefaultMaxDepth = 10

// Redact returns a copy of v with the value of every PII-named key replaced
// by RedactedToken, descending at most DefaultMaxDepth levels.
func Redact(v event.Value) event.Value {
	return redact(v, 0, DefaultMaxDepth)
}

// RedactDepth is Redact with an explicit depth bound. Containers found below
// maxDepth are replaced by MaxDepthToken. The cap also terminates
// self-referential application state without cycle detection.
func RedactDepth(v event.Value, maxDepth int) event.Value {
	return redact(v, 0, maxDepth)
}

func redact(v event.Value, depth, maxDepth int) event.Value {
	if depth > maxDepth {
		return event.String(MaxDepthToken)
	}

	switch t := v.(type) {
	case nil, event.Null:
		return v
	case event.List:
		out := make(event.List, len(t))
		for i, item := range t {
			out[i] = redact(item, depth+1, maxDepth)
		}
		return out
	case event.Map:
		out := make(event.Map, len(t))
		for i, f := range t {
			out[i].Key = f.Key
			switch {
			case IsField(f.Key):
				// Never descend into a PII field: its sub-structure may
				// itself identify the person.
				out[i].Value = event.String(RedactedToken)
			case isContainer(f.Value):
				out[i].Value = redact(f.Value, depth+1, maxDepth)
			default:
				out[i].Value = f.Value
			}
		}
		return out
	default:
		return v
	}
}

func isContainer(v event.Value) bool {
	switch v.(type) {
	case event.Map, event.List:
		return true
	}
	return false
}
