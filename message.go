package fudge

import (
	"fmt"
	"reflect"
)

// Message is the ordered, mutable field sequence described in spec.md §3.
// Duplicate names/ordinals are permitted (multi-valued fields); a Message
// has no identity of its own — see Hash for its content-addressed digest.
// Builders are not safe for concurrent use (SPEC_FULL.md §3), matching the
// teacher's "not thread-safe" note about in-memory trees.
type Message struct {
	fields []Field
	dict   *Dictionary
}

// NewMessage returns an empty Message that auto-types untyped Add calls
// using dict's preferred-type table. A nil dict falls back to the default
// built-in dictionary.
func NewMessage(dict *Dictionary) *Message {
	if dict == nil {
		dict = defaultDictionary
	}
	return &Message{dict: dict}
}

var defaultDictionary = NewDictionary().Freeze()

// Add appends a field with both name and ordinal absent.
func (m *Message) Add(value interface{}) *Message {
	return m.AddNamedOrdinal("", false, 0, false, value)
}

// AddNamed appends a field carrying only a name, fluent-builder style.
func (m *Message) AddNamed(name string, value interface{}) *Message {
	return m.AddNamedOrdinal(name, true, 0, false, value)
}

// AddOrdinal appends a field carrying only an ordinal.
func (m *Message) AddOrdinal(ordinal int16, value interface{}) *Message {
	return m.AddNamedOrdinal("", false, ordinal, true, value)
}

// AddNamedOrdinal appends a field with an explicit name/ordinal presence,
// auto-typing value via the dictionary's preferred-type table (spec.md
// §4.5). Sub-messages should be added with AddSubMessage instead.
func (m *Message) AddNamedOrdinal(name string, hasName bool, ordinal int16, hasOrdinal bool, value interface{}) *Message {
	typ, val := m.autoType(value)
	m.fields = append(m.fields, Field{
		Name: name, HasName: hasName,
		Ordinal: ordinal, HasOrdinal: hasOrdinal,
		Type: typ, Value: val,
	})
	return m
}

// AddField appends a fully-specified field verbatim.
func (m *Message) AddField(f Field) *Message {
	m.fields = append(m.fields, f)
	return m
}

// AddSubMessage appends a nested sub-message field.
func (m *Message) AddSubMessage(name string, hasName bool, ordinal int16, hasOrdinal bool, sub *Message) *Message {
	m.fields = append(m.fields, Field{
		Name: name, HasName: hasName,
		Ordinal: ordinal, HasOrdinal: hasOrdinal,
		Type: TypeMessage, Sub: sub,
	})
	return m
}

func (m *Message) autoType(value interface{}) (TypeID, interface{}) {
	if value == nil {
		return TypeIndicator, Indicator{}
	}
	if u, ok := value.(UnknownValue); ok {
		return u.TypeID, u
	}
	rt := reflect.TypeOf(value)
	if id, ok := m.dict.PreferredType(rt); ok {
		return id, value
	}
	switch rt.Kind() {
	case reflect.Int:
		return TypeLong, int64(reflect.ValueOf(value).Int())
	case reflect.Bool:
		return TypeBoolean, value
	}
	panic(fmt.Sprintf("fudge: no preferred wire type for %s; add the field explicitly or register one with Dictionary.PreferType", rt))
}

// Fields returns the ordered field slice. Callers must not mutate it other
// than through the Message's own methods.
func (m *Message) Fields() []Field { return m.fields }

// Len returns the number of fields.
func (m *Message) Len() int { return len(m.fields) }

// GetByName returns the first field with the given name.
func (m *Message) GetByName(name string) (Field, bool) {
	for _, f := range m.fields {
		if f.HasName && f.Name == name {
			return f, true
		}
	}
	return Field{}, false
}

// GetAllByName returns every field with the given name, in order.
func (m *Message) GetAllByName(name string) []Field {
	var out []Field
	for _, f := range m.fields {
		if f.HasName && f.Name == name {
			out = append(out, f)
		}
	}
	return out
}

// GetByOrdinal returns the first field with the given ordinal.
func (m *Message) GetByOrdinal(ordinal int16) (Field, bool) {
	for _, f := range m.fields {
		if f.HasOrdinal && f.Ordinal == ordinal {
			return f, true
		}
	}
	return Field{}, false
}

// GetAllByOrdinal returns every field with the given ordinal, in order.
// The object-graph serializer uses this for ordinal -1 (the type-id
// field), which may repeat when it carries more than one type name.
func (m *Message) GetAllByOrdinal(ordinal int16) []Field {
	var out []Field
	for _, f := range m.fields {
		if f.HasOrdinal && f.Ordinal == ordinal {
			out = append(out, f)
		}
	}
	return out
}

// GetInt reads a field's value as an int64, widening any narrower integer
// type silently (spec.md §4.5: "reading a field stored as byte through
// getInt widens silently").
func (m *Message) GetInt(name string) (int64, bool) {
	f, ok := m.GetByName(name)
	if !ok {
		return 0, false
	}
	return coerceInt(f.Value)
}

// GetString reads a field's value as a string.
func (m *Message) GetString(name string) (string, bool) {
	f, ok := m.GetByName(name)
	if !ok {
		return "", false
	}
	s, ok := f.Value.(string)
	return s, ok
}

// GetDouble reads a field's value as a float64, widening float32 silently.
func (m *Message) GetDouble(name string) (float64, bool) {
	f, ok := m.GetByName(name)
	if !ok {
		return 0, false
	}
	switch v := f.Value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	}
	if i, ok := coerceInt(f.Value); ok {
		return float64(i), true
	}
	return 0, false
}

func coerceInt(v interface{}) (int64, bool) {
	switch x := v.(type) {
	case int8:
		return int64(x), true
	case int16:
		return int64(x), true
	case int32:
		return int64(x), true
	case int64:
		return x, true
	case int:
		return int64(x), true
	}
	return 0, false
}

// Hash returns a content-addressed digest of the message's canonical
// binary encoding (spec.md §3: "A message has no identity; it is
// content-addressed by its bytes"). Two messages with the same fields in
// the same order hash identically regardless of how they were built.
func (m *Message) Hash() uint64 {
	w := NewWriter(nil)
	if err := w.WriteWholeMessage(m); err != nil {
		panic(err)
	}
	return contentHash(w.Bytes())
}
