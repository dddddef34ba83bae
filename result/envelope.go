// Package result wraps the JSON attribute objects the engine returns.
//
// Lookups of absent keys return 0.0 rather than failing, so callers can read
// fields that only some rulesets populate without checking first. The price is
// that an absent key and a stored zero look the same.
package result

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

// ExtraPrefix marks side-channel fields in rendered JSON.
const ExtraPrefix = "__"

type field struct {
	key   string
	value gjson.Result
}

type extra struct {
	name string
	raw  []byte
}

// Envelope is immutable once built. The With methods return copies.
type Envelope struct {
	raw    []byte
	fields []field
	index  map[string]int
	extras []extra
}

func Empty() Envelope { return Envelope{} }

// FromJSON parses a JSON object, keeping its key order. Keys that carry
// ExtraPrefix are split off into the side channel.
func FromJSON(b []byte) (Envelope, error) {
	if !gjson.ValidBytes(b) {
		return Envelope{}, errors.New("result: invalid json")
	}
	root := gjson.ParseBytes(b)
	if !root.IsObject() {
		return Envelope{}, fmt.Errorf("result: expected object, got %s", root.Type)
	}

	e := Envelope{raw: []byte(root.Raw)}
	var hidden []string
	root.ForEach(func(k, v gjson.Result) bool {
		key := k.String()
		if name, ok := strings.CutPrefix(key, ExtraPrefix); ok {
			e.extras = append(e.extras, extra{name: name, raw: []byte(v.Raw)})
			hidden = append(hidden, key)
			return true
		}
		e.add(key, v)
		return true
	})

	for _, key := range hidden {
		raw, err := sjson.DeleteBytes(e.raw, escapeKey(key))
		if err != nil {
			return Envelope{}, fmt.Errorf("result: strip %s: %w", key, err)
		}
		e.raw = raw
	}
	return e, nil
}

func fromResult(r gjson.Result) Envelope {
	e := Envelope{raw: []byte(r.Raw)}
	r.ForEach(func(k, v gjson.Result) bool {
		e.add(k.String(), v)
		return true
	})
	return e
}

func (e *Envelope) add(key string, v gjson.Result) {
	if e.index == nil {
		e.index = make(map[string]int)
	}
	if i, ok := e.index[key]; ok {
		e.fields[i].value = v
		return
	}
	e.index[key] = len(e.fields)
	e.fields = append(e.fields, field{key: key, value: v})
}

func (e Envelope) lookup(key string) (gjson.Result, bool) {
	i, ok := e.index[key]
	if !ok {
		return gjson.Result{}, false
	}
	return e.fields[i].value, true
}

func (e Envelope) Has(key string) bool {
	_, ok := e.index[key]
	return ok
}

func (e Envelope) Len() int { return len(e.fields) }

// Keys returns field names in their original order. Extras are not included.
func (e Envelope) Keys() []string {
	keys := make([]string, len(e.fields))
	for i, f := range e.fields {
		keys[i] = f.key
	}
	return keys
}

// Get returns the stored value, or 0.0 when the key is absent. Numbers come
// back as float64, objects as Envelope, arrays as []any, null as nil.
func (e Envelope) Get(key string) any {
	v, ok := e.lookup(key)
	if !ok {
		return 0.0
	}
	return convert(v)
}

// Float returns the numeric value under key, or 0 when absent or not a number.
func (e Envelope) Float(key string) float64 {
	v, ok := e.lookup(key)
	if !ok || v.Type != gjson.Number {
		return 0
	}
	return v.Float()
}

func (e Envelope) Int(key string) int { return int(e.Float(key)) }

func (e Envelope) String(key string) string {
	v, ok := e.lookup(key)
	if !ok || v.Type != gjson.String {
		return ""
	}
	return v.String()
}

// Object returns the nested object under key, or an empty envelope.
func (e Envelope) Object(key string) Envelope {
	v, ok := e.lookup(key)
	if !ok || !v.IsObject() {
		return Envelope{}
	}
	return fromResult(v)
}

func convert(v gjson.Result) any {
	switch v.Type {
	case gjson.Null:
		return nil
	case gjson.False, gjson.True:
		return v.Bool()
	case gjson.Number:
		return v.Float()
	case gjson.String:
		return v.String()
	}
	if v.IsObject() {
		return fromResult(v)
	}
	arr := v.Array()
	out := make([]any, len(arr))
	for i, item := range arr {
		out[i] = convert(item)
	}
	return out
}

// WithExtra returns a copy carrying a side-channel field. Extras render after
// the regular fields and are dropped by Pure.
func (e Envelope) WithExtra(name string, v any) (Envelope, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return e, fmt.Errorf("result: extra %s: %w", name, err)
	}
	out := e
	out.extras = make([]extra, 0, len(e.extras)+1)
	for _, x := range e.extras {
		if x.name != name {
			out.extras = append(out.extras, x)
		}
	}
	out.extras = append(out.extras, extra{name: name, raw: raw})
	return out, nil
}

func (e Envelope) Extra(name string) (gjson.Result, bool) {
	for _, x := range e.extras {
		if x.name == name {
			return gjson.ParseBytes(x.raw), true
		}
	}
	return gjson.Result{}, false
}

// DecodeExtra unmarshals a side-channel field into dst.
func (e Envelope) DecodeExtra(name string, dst any) error {
	for _, x := range e.extras {
		if x.name == name {
			return json.Unmarshal(x.raw, dst)
		}
	}
	return fmt.Errorf("result: no extra %q", name)
}

func (e Envelope) ExtraNames() []string {
	names := make([]string, len(e.extras))
	for i, x := range e.extras {
		names[i] = x.name
	}
	return names
}

// Pure drops the side channel, leaving what the engine produced.
func (e Envelope) Pure() Envelope {
	e.extras = nil
	return e
}

// JSON renders the fields in order, followed by any extras.
func (e Envelope) JSON() []byte {
	out := e.raw
	if len(out) == 0 {
		out = []byte("{}")
	}
	if len(e.extras) == 0 {
		return bytes.Clone(out)
	}
	out = bytes.Clone(out)
	for _, x := range e.extras {
		var err error
		out, err = sjson.SetRawBytes(out, escapeKey(ExtraPrefix+x.name), x.raw)
		if err != nil {
			// x.raw came out of json.Marshal or a parsed document
			panic(fmt.Sprintf("result: render extra %s: %v", x.name, err))
		}
	}
	return out
}

func (e Envelope) MarshalJSON() ([]byte, error) { return e.JSON(), nil }

func (e *Envelope) UnmarshalJSON(b []byte) error {
	v, err := FromJSON(b)
	if err != nil {
		return err
	}
	*e = v
	return nil
}

// Equal compares two envelopes by value, extras included. Key order does not
// matter.
func (e Envelope) Equal(o Envelope) bool {
	var a, b any
	if err := json.Unmarshal(e.JSON(), &a); err != nil {
		return false
	}
	if err := json.Unmarshal(o.JSON(), &b); err != nil {
		return false
	}
	return reflect.DeepEqual(a, b)
}

func escapeKey(key string) string {
	var sb strings.Builder
	for _, r := range key {
		switch r {
		case '\\', '.', '*', '?', '|', '#', '@', ':', '!', '=', '<', '>', '%':
			sb.WriteByte('\\')
		}
		sb.WriteRune(r)
	}
	return sb.String()
}
