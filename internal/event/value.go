// Package event models telemetry events as a tree of JSON-like values.
// Free-form sections (extra, contexts, request bodies, breadcrumb data) are
// arbitrary nested data, so the whole event is carried as a Value and known
// sections are looked up by key.
package event

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// Value is one node of an event tree. The concrete types are Null, Bool,
// Number, String, List and Map.
type Value interface {
	isValue()
}

// Null is the JSON null.
type Null struct{}

// Bool is a JSON boolean.
type Bool bool

// Number is a JSON number kept as its literal text so integers such as
// timestamps or ids survive a round trip unchanged.
type Number string

// String is a JSON string.
type String string

// List is an ordered sequence of values.
type List []Value

// Field is a single key/value entry of a Map.
type Field struct {
	Key   string
	Value Value
}

// Map is an ordered key/value mapping. Key order is preserved from the
// source document.
type Map []Field

func (Null) isValue()   {}
func (Bool) isValue()   {}
func (Number) isValue() {}
func (String) isValue() {}
func (List) isValue()   {}
func (Map) isValue()    {}

// Float64 parses the number. Malformed literals yield 0.
func (n Number) Float64() float64 {
	f, _ := strconv.ParseFloat(string(n), 64)
	return f
}

// Get returns the value stored under key.
func (m Map) Get(key string) (Value, bool) {
	for _, f := range m {
		if f.Key == key {
			return f.Value, true
		}
	}
	return nil, false
}

// Has reports whether key is present.
func (m Map) Has(key string) bool {
	_, ok := m.Get(key)
	return ok
}

// GetString returns the value under key if it is a String.
func (m Map) GetString(key string) (string, bool) {
	v, ok := m.Get(key)
	if !ok {
		return "", false
	}
	s, ok := v.(String)
	return string(s), ok
}

// GetMap returns the value under key if it is a Map.
func (m Map) GetMap(key string) (Map, bool) {
	v, ok := m.Get(key)
	if !ok {
		return nil, false
	}
	mm, ok := v.(Map)
	return mm, ok
}

// Keys returns the keys in document order.
func (m Map) Keys() []string {
	keys := make([]string, len(m))
	for i, f := range m {
		keys[i] = f.Key
	}
	return keys
}

// With returns a copy of m where key holds v. An existing key keeps its
// position; a new key is appended. m itself is not modified.
func (m Map) With(key string, v Value) Map {
	out := make(Map, len(m), len(m)+1)
	copy(out, m)
	for i := range out {
		if out[i].Key == key {
			out[i].Value = v
			return out
		}
	}
	return append(out, Field{Key: key, Value: v})
}

// Without returns a copy of m with key removed.
func (m Map) Without(key string) Map {
	out := make(Map, 0, len(m))
	for _, f := range m {
		if f.Key != key {
			out = append(out, f)
		}
	}
	return out
}

// FromAny converts decoded Go data (as produced by encoding/json or held in
// sentry-go maps) into a Value. Map keys are sorted so conversion is
// deterministic. Any other type (structs, typed maps and slices) goes through
// encoding/json, as sentry-go would serialize it, so nested keys stay visible
// to redaction. Values that cannot be marshaled are rendered with fmt.
func FromAny(v interface{}) Value {
	switch t := v.(type) {
	case nil:
		return Null{}
	case Value:
		return t
	case bool:
		return Bool(t)
	case string:
		return String(t)
	case int:
		return Number(strconv.Itoa(t))
	case int8:
		return Number(strconv.FormatInt(int64(t), 10))
	case int16:
		return Number(strconv.FormatInt(int64(t), 10))
	case int32:
		return Number(strconv.FormatInt(int64(t), 10))
	case int64:
		return Number(strconv.FormatInt(t, 10))
	case uint:
		return Number(strconv.FormatUint(uint64(t), 10))
	case uint8:
		return Number(strconv.FormatUint(uint64(t), 10))
	case uint16:
		return Number(strconv.FormatUint(uint64(t), 10))
	case uint32:
		return Number(strconv.FormatUint(uint64(t), 10))
	case uint64:
		return Number(strconv.FormatUint(t, 10))
	case json.Number:
		return Number(t)
	case float32:
		return Number(strconv.FormatFloat(float64(t), 'g', -1, 32))
	case float64:
		return Number(strconv.FormatFloat(t, 'g', -1, 64))
	case json.Marshaler:
		return fromJSON(t)
	case error:
		return String(t.Error())
	case fmt.Stringer:
		return String(t.String())
	case []interface{}:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = FromAny(item)
		}
		return out
	case []string:
		out := make(List, len(t))
		for i, item := range t {
			out[i] = String(item)
		}
		return out
	case map[string]interface{}:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Map, 0, len(t))
		for _, k := range keys {
			out = append(out, Field{Key: k, Value: FromAny(t[k])})
		}
		return out
	case map[string]string:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		out := make(Map, 0, len(t))
		for _, k := range keys {
			out = append(out, Field{Key: k, Value: String(t[k])})
		}
		return out
	default:
		return fromJSON(t)
	}
}

func fromJSON(v interface{}) Value {
	data, err := json.Marshal(v)
	if err != nil {
		return String(fmt.Sprint(v))
	}
	parsed, err := Parse(data)
	if err != nil {
		return String(fmt.Sprint(v))
	}
	return parsed
}

// ToAny converts a Value back into plain Go data. Numbers become float64
// unless they are exact integers, which become int64.
func ToAny(v Value) interface{} {
	switch t := v.(type) {
	case nil, Null:
		return nil
	case Bool:
		return bool(t)
	case String:
		return string(t)
	case Number:
		if i, err := strconv.ParseInt(string(t), 10, 64); err == nil {
			return i
		}
		return t.Float64()
	case List:
		out := make([]interface{}, len(t))
		for i, item := range t {
			out[i] = ToAny(item)
		}
		return out
	case Map:
		out := make(map[string]interface{}, len(t))
		for _, f := range t {
			out[f.Key] = ToAny(f.Value)
		}
		return out
	default:
		return nil
	}
}
