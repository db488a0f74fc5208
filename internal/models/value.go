package models

import (
	"encoding/json"
	"strings"
)

// ValueKind discriminates the two shapes a metadata value can take.
type ValueKind int

const (
	KindText ValueKind = iota
	KindList
)

// Value is a metadata value: either a single string or an ordered string list.
type Value struct {
	kind ValueKind
	text string
	list []string
}

// Text returns a single-string value.
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// List returns a list value. A nil list is stored as empty.
func List(items ...string) Value {
	out := make([]string, len(items))
	copy(out, items)
	return Value{kind: KindList, list: out}
}

// Kind reports whether v is a text or list value.
func (v Value) Kind() ValueKind { return v.kind }

// IsList reports whether v holds a list.
func (v Value) IsList() bool { return v.kind == KindList }

// String renders the value as text; lists are joined with ", ".
func (v Value) String() string {
	if v.kind == KindList {
		return strings.Join(v.list, ", ")
	}
	return v.text
}

// Items returns the value as a list. A non-empty text value becomes a
// single-element list.
func (v Value) Items() []string {
	if v.kind == KindList {
		out := make([]string, len(v.list))
		copy(out, v.list)
		return out
	}
	if v.text == "" {
		return []string{}
	}
	return []string{v.text}
}

// IsEmpty reports whether the value carries no data.
func (v Value) IsEmpty() bool {
	if v.kind == KindList {
		return len(v.list) == 0
	}
	return v.text == ""
}

// MarshalJSON encodes text values as JSON strings and lists as arrays.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.kind == KindList {
		return json.Marshal(v.Items())
	}
	return json.Marshal(v.text)
}

// UnmarshalJSON accepts either a JSON string or an array of strings.
func (v *Value) UnmarshalJSON(data []byte) error {
	var items []string
	if err := json.Unmarshal(data, &items); err == nil {
		*v = List(items...)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return err
	}
	*v = Text(s)
	return nil
}

// Metadata is an insertion-ordered mapping of keys to values.
type Metadata struct {
	keys   []string
	values map[string]Value
}

// NewMetadata returns an empty Metadata.
func NewMetadata() *Metadata {
	return &Metadata{values: make(map[string]Value)}
}

// Set stores v under key. Re-setting an existing key keeps its position.
func (m *Metadata) Set(key string, v Value) {
	if m.values == nil {
		m.values = make(map[string]Value)
	}
	if _, ok := m.values[key]; !ok {
		m.keys = append(m.keys, key)
	}
	m.values[key] = v
}

// Get returns the value stored under key.
func (m *Metadata) Get(key string) (Value, bool) {
	if m == nil {
		return Value{}, false
	}
	v, ok := m.values[key]
	return v, ok
}

// Delete removes key if present.
func (m *Metadata) Delete(key string) {
	if m == nil {
		return
	}
	if _, ok := m.values[key]; !ok {
		return
	}
	delete(m.values, key)
	for i, k := range m.keys {
		if k == key {
			m.keys = append(m.keys[:i], m.keys[i+1:]...)
			break
		}
	}
}

// Keys returns the keys in insertion order.
func (m *Metadata) Keys() []string {
	if m == nil {
		return nil
	}
	out := make([]string, len(m.keys))
	copy(out, m.keys)
	return out
}

// Len returns the number of keys.
func (m *Metadata) Len() int {
	if m == nil {
		return 0
	}
	return len(m.keys)
}
