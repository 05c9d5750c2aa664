// Package envelope reads and writes the Sentry envelope format: a JSON
// header line followed by items, each a JSON item header line and a payload.
// An item header may carry the payload "length" in bytes; without it the
// payload runs to the next newline.
package envelope

import (
	"bytes"
	"errors"
	"fmt"
	"strconv"

	"github.com/andersoncleaning/telemetry/internal/event"
)

// Item types that carry an error event.
const (
	TypeEvent       = "event"
	TypeTransaction = "transaction"
)

var (
	ErrEmpty     = errors.New("envelope: empty body")
	ErrTruncated = errors.New("envelope: payload shorter than declared length")
)

// Item is one envelope item.
type Item struct {
	Header  event.Map
	Payload []byte
}

// Type returns the item's "type" header.
func (i Item) Type() string {
	s, _ := i.Header.GetString("type")
	return s
}

// Envelope is a parsed envelope.
type Envelope struct {
	Header event.Map
	Items  []Item
}

// DSN returns the "dsn" envelope header, or "".
func (e *Envelope) DSN() string {
	s, _ := e.Header.GetString("dsn")
	return s
}

// EventID returns the "event_id" envelope header, or "".
func (e *Envelope) EventID() string {
	s, _ := e.Header.GetString("event_id")
	return s
}

// Parse splits data into its header and items.
func Parse(data []byte) (*Envelope, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, ErrEmpty
	}

	line, rest := nextLine(data)
	header, err := parseHeader(line)
	if err != nil {
		return nil, fmt.Errorf("envelope header: %w", err)
	}
	env := &Envelope{Header: header}

	for len(rest) > 0 {
		line, rest = nextLine(rest)
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		itemHeader, err := parseHeader(line)
		if err != nil {
			return nil, fmt.Errorf("item %d header: %w", len(env.Items), err)
		}

		var payload []byte
		if n, ok := declaredLength(itemHeader); ok {
			if n > len(rest) {
				return nil, ErrTruncated
			}
			payload = rest[:n]
			rest = rest[n:]
			if len(rest) > 0 && rest[0] == '\n' {
				rest = rest[1:]
			}
		} else {
			payload, rest = nextLine(rest)
		}

		env.Items = append(env.Items, Item{Header: itemHeader, Payload: payload})
	}
	return env, nil
}

// Encode serializes the envelope. Every item header gets an explicit length
// matching its payload, so payloads may be rewritten freely.
func (e *Envelope) Encode() ([]byte, error) {
	var buf bytes.Buffer

	header, err := event.Marshal(e.Header)
	if err != nil {
		return nil, err
	}
	buf.Write(header)
	buf.WriteByte('\n')

	for _, item := range e.Items {
		h := item.Header.With("length", event.Number(strconv.Itoa(len(item.Payload))))
		b, err := event.Marshal(h)
		if err != nil {
			return nil, err
		}
		buf.Write(b)
		buf.WriteByte('\n')
		buf.Write(item.Payload)
		buf.WriteByte('\n')
	}
	return buf.Bytes(), nil
}

func nextLine(data []byte) (line, rest []byte) {
	if i := bytes.IndexByte(data, '\n'); i >= 0 {
		return bytes.TrimSuffix(data[:i], []byte{'\r'}), data[i+1:]
	}
	return data, nil
}

func parseHeader(line []byte) (event.Map, error) {
	v, err := event.Parse(line)
	if err != nil {
		return nil, err
	}
	m, ok := v.(event.Map)
	if !ok {
		return nil, errors.New("not a JSON object")
	}
	return m, nil
}

func declaredLength(h event.Map) (int, bool) {
	v, ok := h.Get("length")
	if !ok {
		return 0, false
	}
	num, ok := v.(event.Number)
	if !ok {
		return 0, false
	}
	n, err := strconv.Atoi(string(num))
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}
