package event

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/valyala/fastjson"
)

var parserPool fastjson.ParserPool

// Parse decodes a JSON document into a Value, preserving object key order.
func Parse(data []byte) (Value, error) {
	p := parserPool.Get()
	defer parserPool.Put(p)

	v, err := p.ParseBytes(data)
	if err != nil {
		return nil, fmt.Errorf("parse json: %w", err)
	}
	// fastjson values are only valid until the parser is reused, so the
	// tree is copied out before returning.
	return fromFast(v), nil
}

func fromFast(v *fastjson.Value) Value {
	switch v.Type() {
	case fastjson.TypeNull:
		return Null{}
	case fastjson.TypeTrue:
		return Bool(true)
	case fastjson.TypeFalse:
		return Bool(false)
	case fastjson.TypeNumber:
		return Number(v.MarshalTo(nil))
	case fastjson.TypeString:
		return String(v.GetStringBytes())
	case fastjson.TypeArray:
		items := v.GetArray()
		out := make(List, len(items))
		for i, item := range items {
			out[i] = fromFast(item)
		}
		return out
	case fastjson.TypeObject:
		obj := v.GetObject()
		out := make(Map, 0, obj.Len())
		obj.Visit(func(key []byte, item *fastjson.Value) {
			out = append(out, Field{Key: string(key), Value: fromFast(item)})
		})
		return out
	default:
		return Null{}
	}
}

// Marshal encodes a Value as compact JSON.
func Marshal(v Value) ([]byte, error) {
	var buf bytes.Buffer
	if err := encode(&buf, v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// MarshalJSON implements json.Marshaler.
func (m Map) MarshalJSON() ([]byte, error) { return Marshal(m) }

// MarshalJSON implements json.Marshaler.
func (l List) MarshalJSON() ([]byte, error) { return Marshal(l) }

func encode(buf *bytes.Buffer, v Value) error {
	switch t := v.(type) {
	case nil, Null:
		buf.WriteString("null")
	case Bool:
		if t {
			buf.WriteString("true")
		} else {
			buf.WriteString("false")
		}
	case Number:
		if t == "" {
			buf.WriteString("0")
			return nil
		}
		buf.WriteString(string(t))
	case String:
		return encodeString(buf, string(t))
	case List:
		buf.WriteByte('[')
		for i, item := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encode(buf, item); err != nil {
				return err
			}
		}
		buf.WriteByte(']')
	case Map:
		buf.WriteByte('{')
		for i, f := range t {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeString(buf, f.Key); err != nil {
				return err
			}
			buf.WriteByte(':')
			if err := encode(buf, f.Value); err != nil {
				return err
			}
		}
		buf.WriteByte('}')
	default:
		return fmt.Errorf("marshal json: unsupported value %T", v)
	}
	return nil
}

func encodeString(buf *bytes.Buffer, s string) error {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	buf.Write(b)
	return nil
}
