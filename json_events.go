package fudge

import (
	"encoding/base64"
	"fmt"
	"strconv"
	"strings"
	"time"
)

// JSONReader adapts a JSON document to the event model (spec.md §4.4). It
// parses eagerly into an in-memory queue of events rather than incrementally
// off the lexer, because the array-homogeneity rule below requires looking
// at an entire array body before knowing whether it is one primitive-array
// field or several repeated fields; that look-ahead is naturally expressed
// once against a parsed tree instead of threaded through a token-by-token
// state machine. HasNext/MoveNext still expose the same one-event-at-a-time
// contract as Reader.
type JSONReader struct {
	events []Event
	pos    int
}

// NewJSONReader parses src (one complete JSON document, top-level object)
// into the event queue a JSONReader replays.
func NewJSONReader(src []byte, opts JSONOptions) (*JSONReader, error) {
	root, err := parseJSONDocument(src)
	if err != nil {
		return nil, err
	}
	if root.kind != jvObject {
		return nil, ParseError{Reason: "top-level JSON value must be an object"}
	}
	b := &jsonEventBuilder{opts: opts}
	if err := b.buildMessage(root); err != nil {
		return nil, err
	}
	return &JSONReader{events: b.events}, nil
}

// HasNext reports whether another event remains in the queue.
func (r *JSONReader) HasNext() bool { return r.pos < len(r.events) }

// MoveNext returns the next queued event.
func (r *JSONReader) MoveNext() (Event, error) {
	if !r.HasNext() {
		return Event{}, fmt.Errorf("fudge: JSONReader.MoveNext called with no events remaining")
	}
	ev := r.events[r.pos]
	r.pos++
	return ev, nil
}

type jsonEventBuilder struct {
	opts   JSONOptions
	events []Event
}

func (b *jsonEventBuilder) buildMessage(obj jsonValue) error {
	directivesName, directivesSuppressed := b.opts.directivesField()
	schemaName, schemaSuppressed := b.opts.schemaVersionField()
	taxName, taxSuppressed := b.opts.taxonomyField()

	var directives, schemaVersion byte
	var taxonomyID int16

	startIdx := len(b.events)
	b.events = append(b.events, Event{Kind: MessageStart})

	for _, kv := range obj.obj {
		switch {
		case !directivesSuppressed && kv.key == directivesName:
			directives = byte(jsonValueAsInt(kv.val))
		case !schemaSuppressed && kv.key == schemaName:
			schemaVersion = byte(jsonValueAsInt(kv.val))
		case !taxSuppressed && kv.key == taxName:
			taxonomyID = int16(jsonValueAsInt(kv.val))
		default:
			if err := b.emitField(kv.key, kv.val); err != nil {
				return err
			}
		}
	}

	b.events[startIdx] = Event{Kind: MessageStart, Directives: directives, SchemaVersion: schemaVersion, TaxonomyID: taxonomyID}
	b.events = append(b.events, Event{Kind: MessageEnd})
	return nil
}

// fieldKey turns a JSON object key into a (name, ordinal) pair: a key
// matching ^-?[0-9]+$ is an ordinal when NumbersAreOrdinals is set, the
// empty key is anonymous, anything else is a name (spec.md §4.4).
func (b *jsonEventBuilder) fieldKey(key string) (name string, hasName bool, ordinal int16, hasOrdinal bool) {
	if key == "" {
		return "", false, 0, false
	}
	if b.opts.NumbersAreOrdinals && isOrdinalLiteral(key) {
		if n, err := strconv.ParseInt(key, 10, 16); err == nil {
			return "", false, int16(n), true
		}
	}
	return key, true, 0, false
}

func isOrdinalLiteral(s string) bool {
	i := 0
	if len(s) > 0 && s[0] == '-' {
		i = 1
	}
	if i == len(s) {
		return false
	}
	for ; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}

func (b *jsonEventBuilder) emitField(key string, val jsonValue) error {
	name, hasName, ordinal, hasOrdinal := b.fieldKey(key)
	return b.emitResolvedField(name, hasName, ordinal, hasOrdinal, val)
}

func (b *jsonEventBuilder) emitResolvedField(name string, hasName bool, ordinal int16, hasOrdinal bool, val jsonValue) error {
	switch val.kind {
	case jvObject:
		return b.emitSubmessage(name, hasName, ordinal, hasOrdinal, val)
	case jvArray:
		return b.emitArray(name, hasName, ordinal, hasOrdinal, val)
	default:
		typ, fv, err := scalarFieldValue(val)
		if err != nil {
			return err
		}
		b.events = append(b.events, Event{Kind: SimpleField, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal, FieldType: typ, FieldValue: fv})
		return nil
	}
}

func (b *jsonEventBuilder) emitSubmessage(name string, hasName bool, ordinal int16, hasOrdinal bool, val jsonValue) error {
	b.events = append(b.events, Event{Kind: SubmessageFieldStart, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal})
	for _, kv := range val.obj {
		if err := b.emitField(kv.key, kv.val); err != nil {
			return err
		}
	}
	b.events = append(b.events, Event{Kind: SubmessageFieldEnd})
	return nil
}

// emitArray implements the homogeneous-array rule: a JSON array whose
// elements are all integers (narrowed the same way scalar integers are) or
// all doubles becomes a single primitive-array field; any other array
// (mixed kinds, strings, booleans, objects, nested arrays) is replayed as
// repeated fields sharing the same name/ordinal (spec.md §4.4).
func (b *jsonEventBuilder) emitArray(name string, hasName bool, ordinal int16, hasOrdinal bool, val jsonValue) error {
	if typ, fv, ok := homogeneousArrayValue(val.arr); ok {
		b.events = append(b.events, Event{Kind: SimpleField, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal, FieldType: typ, FieldValue: fv})
		return nil
	}
	for _, elem := range val.arr {
		if err := b.emitResolvedField(name, hasName, ordinal, hasOrdinal, elem); err != nil {
			return err
		}
	}
	return nil
}

func homogeneousArrayValue(elems []jsonValue) (TypeID, interface{}, bool) {
	if len(elems) == 0 {
		return 0, nil, false
	}
	allInt, allDouble, fitsInt32 := true, true, true
	for _, e := range elems {
		switch e.kind {
		case jvInt32:
		case jvInt64:
			fitsInt32 = false
		default:
			allInt = false
		}
		if e.kind != jvDouble {
			allDouble = false
		}
	}
	if allInt {
		if fitsInt32 {
			out := make([]int32, len(elems))
			for i, e := range elems {
				out[i] = e.i32
			}
			return TypeIntArray, out, true
		}
		out := make([]int64, len(elems))
		for i, e := range elems {
			if e.kind == jvInt32 {
				out[i] = int64(e.i32)
			} else {
				out[i] = e.i64
			}
		}
		return TypeLongArray, out, true
	}
	if allDouble {
		out := make([]float64, len(elems))
		for i, e := range elems {
			out[i] = e.f64
		}
		return TypeDoubleArray, out, true
	}
	return 0, nil, false
}

// scalarFieldValue maps one non-container JSON value to a (typ, value)
// pair. A string that parses as RFC 3339 is treated as a dateTime, since
// JSON has no native date type and RFC 3339 strings are otherwise not a
// value plain application data would produce (spec.md §6).
func scalarFieldValue(val jsonValue) (TypeID, interface{}, error) {
	switch val.kind {
	case jvNull:
		return TypeIndicator, Indicator{}, nil
	case jvBool:
		return TypeBoolean, val.bo, nil
	case jvInt32:
		return TypeInt, val.i32, nil
	case jvInt64:
		return TypeLong, val.i64, nil
	case jvDouble:
		return TypeDouble, val.f64, nil
	case jvString:
		if d, ok := parseRFC3339(val.str); ok {
			return TypeDateTime, d, nil
		}
		return TypeString, val.str, nil
	}
	return 0, nil, ParseError{Reason: "cannot map JSON value to a field"}
}

func parseRFC3339(s string) (DateTime, bool) {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return DateTime{}, false
	}
	d, err := NewDateTime(t, AccuracyNanosecond, true)
	if err != nil {
		return DateTime{}, false
	}
	return d, true
}

func jsonValueAsInt(v jsonValue) int64 {
	switch v.kind {
	case jvInt32:
		return int64(v.i32)
	case jvInt64:
		return v.i64
	case jvDouble:
		return int64(v.f64)
	}
	return 0
}

// JSONWriter consumes the event model and renders JSON (spec.md §4.4),
// mirroring Writer's frame-stack shape but with a JSON object tree instead
// of a byte buffer as the accumulator, since JSON's repeated-name-becomes-
// array rule needs every value for a name before it can be rendered.
type JSONWriter struct {
	opts   JSONOptions
	dict   *Dictionary
	frames []*jsonWriterFrame
	root   jsonValue
	done   bool

	directives    byte
	schemaVersion byte
	taxonomyID    int16
}

type jsonWriterFrame struct {
	key      string // key this frame is filed under in its parent, once closed
	hasName  bool
	ordinal  int16
	hasOrd   bool
	keyOrder []string
	values   map[string][]jsonValue
}

func newJSONWriterFrame() *jsonWriterFrame {
	return &jsonWriterFrame{values: make(map[string][]jsonValue)}
}

func (f *jsonWriterFrame) add(key string, val jsonValue) {
	if _, ok := f.values[key]; !ok {
		f.keyOrder = append(f.keyOrder, key)
	}
	f.values[key] = append(f.values[key], val)
}

func (f *jsonWriterFrame) render() jsonValue {
	out := jsonValue{kind: jvObject}
	for _, k := range f.keyOrder {
		vs := f.values[k]
		if len(vs) == 1 {
			out.obj = append(out.obj, jsonKV{key: k, val: vs[0]})
			continue
		}
		out.obj = append(out.obj, jsonKV{key: k, val: jsonValue{kind: jvArray, arr: vs}})
	}
	return out
}

// NewJSONWriter returns a JSONWriter holding dict (or the default
// dictionary); rendering does not consult it, since every event already
// carries its field type.
func NewJSONWriter(opts JSONOptions, dict *Dictionary) *JSONWriter {
	if dict == nil {
		dict = defaultDictionary
	}
	return &JSONWriter{opts: opts, dict: dict}
}

// Write consumes one event (Writer's counterpart for the JSON wire form).
func (w *JSONWriter) Write(ev Event) error {
	switch ev.Kind {
	case MessageStart:
		if len(w.frames) != 0 {
			return MalformedError{Reason: "MessageStart called while a frame is already open"}
		}
		w.directives, w.schemaVersion, w.taxonomyID = ev.Directives, ev.SchemaVersion, ev.TaxonomyID
		w.frames = append(w.frames, newJSONWriterFrame())
		return nil
	case SimpleField:
		val, err := valueToJSON(ev.FieldType, ev.FieldValue)
		if err != nil {
			return err
		}
		return w.addField(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal, val)
	case SubmessageFieldStart:
		if len(w.frames) == 0 {
			return MalformedError{Reason: "SubmessageFieldStart called outside a message"}
		}
		child := newJSONWriterFrame()
		child.key = w.fieldKey(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal)
		w.frames = append(w.frames, child)
		return nil
	case SubmessageFieldEnd:
		if len(w.frames) < 2 {
			return MalformedError{Reason: "SubmessageFieldEnd called with no open sub-message"}
		}
		child := w.frames[len(w.frames)-1]
		w.frames = w.frames[:len(w.frames)-1]
		parent := w.frames[len(w.frames)-1]
		parent.add(child.key, child.render())
		return nil
	case MessageEnd:
		if len(w.frames) != 1 {
			return MalformedError{Reason: "MessageEnd called with frames not at top level"}
		}
		root := w.frames[0].render()
		w.frames = nil
		w.root = w.injectMeta(root)
		w.done = true
		return nil
	default:
		return fmt.Errorf("fudge: JSONWriter cannot consume event kind %s", ev.Kind)
	}
}

func (w *JSONWriter) addField(name string, hasName bool, ordinal int16, hasOrdinal bool, val jsonValue) error {
	if len(w.frames) == 0 {
		return MalformedError{Reason: "field written outside a message"}
	}
	key := w.fieldKey(name, hasName, ordinal, hasOrdinal)
	w.frames[len(w.frames)-1].add(key, val)
	return nil
}

// fieldKey resolves a field's JSON key: PreferFieldNames picks the name
// when both are present; otherwise whichever of name/ordinal is present is
// used, and a field with neither is anonymous (empty key).
func (w *JSONWriter) fieldKey(name string, hasName bool, ordinal int16, hasOrdinal bool) string {
	if hasName && (w.opts.PreferFieldNames || !hasOrdinal) {
		return name
	}
	if hasOrdinal {
		return strconv.FormatInt(int64(ordinal), 10)
	}
	if hasName {
		return name
	}
	return ""
}

func (w *JSONWriter) injectMeta(root jsonValue) jsonValue {
	var prefix []jsonKV
	if name, suppressed := w.opts.directivesField(); !suppressed {
		prefix = append(prefix, jsonKV{key: name, val: jsonValue{kind: jvInt32, i32: int32(w.directives)}})
	}
	if name, suppressed := w.opts.schemaVersionField(); !suppressed {
		prefix = append(prefix, jsonKV{key: name, val: jsonValue{kind: jvInt32, i32: int32(w.schemaVersion)}})
	}
	if name, suppressed := w.opts.taxonomyField(); !suppressed {
		prefix = append(prefix, jsonKV{key: name, val: jsonValue{kind: jvInt32, i32: int32(w.taxonomyID)}})
	}
	root.obj = append(prefix, root.obj...)
	return root
}

// Bytes renders the completed document. Valid once MessageEnd has been
// written.
func (w *JSONWriter) Bytes() ([]byte, error) {
	if !w.done {
		return nil, MalformedError{Reason: "JSONWriter.Bytes called before MessageEnd"}
	}
	var sb strings.Builder
	renderJSONValue(&sb, w.root)
	return []byte(sb.String()), nil
}

// valueToJSON renders one field's (typ, value) pair to its JSON
// representation: byte arrays as base64 strings, dateTime as RFC 3339,
// numeric arrays as JSON arrays of the narrowest matching number kind.
func valueToJSON(typ TypeID, v interface{}) (jsonValue, error) {
	switch typ {
	case TypeIndicator:
		return jsonValue{kind: jvNull}, nil
	case TypeBoolean:
		b, err := asBool(v)
		return jsonValue{kind: jvBool, bo: b}, err
	case TypeByte, TypeShort, TypeInt:
		i, err := asInt(v, 32)
		if err != nil {
			return jsonValue{}, err
		}
		return jsonValue{kind: jvInt32, i32: int32(i)}, nil
	case TypeLong:
		i, err := asInt(v, 64)
		if err != nil {
			return jsonValue{}, err
		}
		return jsonValue{kind: jvInt64, i64: i}, nil
	case TypeFloat, TypeDouble:
		f, err := asFloat(v, 64)
		if err != nil {
			return jsonValue{}, err
		}
		return jsonValue{kind: jvDouble, f64: f}, nil
	case TypeString:
		s, err := asString(v)
		return jsonValue{kind: jvString, str: s}, err
	case TypeDateTime:
		d, ok := v.(DateTime)
		if !ok {
			return jsonValue{}, fmt.Errorf("fudge: cannot render %T as JSON dateTime", v)
		}
		return jsonValue{kind: jvString, str: d.RFC3339()}, nil
	case TypeShortArray, TypeIntArray, TypeLongArray:
		ints, err := asIntSlice(v)
		if err != nil {
			return jsonValue{}, err
		}
		arr := make([]jsonValue, len(ints))
		for i, n := range ints {
			if n >= -(1<<31) && n <= (1<<31-1) {
				arr[i] = jsonValue{kind: jvInt32, i32: int32(n)}
			} else {
				arr[i] = jsonValue{kind: jvInt64, i64: n}
			}
		}
		return jsonValue{kind: jvArray, arr: arr}, nil
	case TypeFloatArray:
		fs, err := asFloat32Slice(v)
		if err != nil {
			return jsonValue{}, err
		}
		arr := make([]jsonValue, len(fs))
		for i, f := range fs {
			arr[i] = jsonValue{kind: jvDouble, f64: float64(f)}
		}
		return jsonValue{kind: jvArray, arr: arr}, nil
	case TypeDoubleArray:
		fs, err := asFloat64Slice(v)
		if err != nil {
			return jsonValue{}, err
		}
		arr := make([]jsonValue, len(fs))
		for i, f := range fs {
			arr[i] = jsonValue{kind: jvDouble, f64: f}
		}
		return jsonValue{kind: jvArray, arr: arr}, nil
	default:
		if _, ok := fixedByteArrayLengths[typ]; ok || typ == TypeByteArray {
			b, err := appendBytes(nil, v)
			if err != nil {
				return jsonValue{}, err
			}
			return jsonValue{kind: jvString, str: base64.StdEncoding.EncodeToString(b)}, nil
		}
		if uv, ok := v.(UnknownValue); ok {
			return jsonValue{kind: jvString, str: base64.StdEncoding.EncodeToString(uv.Bytes)}, nil
		}
		return jsonValue{}, fmt.Errorf("fudge: no JSON rendering for type id %d", typ)
	}
}

func renderJSONValue(sb *strings.Builder, v jsonValue) {
	switch v.kind {
	case jvNull:
		sb.WriteString("null")
	case jvBool:
		if v.bo {
			sb.WriteString("true")
		} else {
			sb.WriteString("false")
		}
	case jvInt32:
		sb.WriteString(strconv.FormatInt(int64(v.i32), 10))
	case jvInt64:
		sb.WriteString(strconv.FormatInt(v.i64, 10))
	case jvDouble:
		sb.WriteString(formatJSONDouble(v.f64))
	case jvString:
		writeJSONString(sb, v.str)
	case jvArray:
		sb.WriteByte('[')
		for i, e := range v.arr {
			if i > 0 {
				sb.WriteByte(',')
			}
			renderJSONValue(sb, e)
		}
		sb.WriteByte(']')
	case jvObject:
		sb.WriteByte('{')
		for i, kv := range v.obj {
			if i > 0 {
				sb.WriteByte(',')
			}
			writeJSONString(sb, kv.key)
			sb.WriteByte(':')
			renderJSONValue(sb, kv.val)
		}
		sb.WriteByte('}')
	}
}

// formatJSONDouble uses the shortest round-tripping decimal representation
// and always keeps a fractional or exponent marker, so a whole-number
// double like 5.0 doesn't come back as the integer literal "5" when
// re-lexed (spec.md §4.4 number-kind rule).
func formatJSONDouble(f float64) string {
	s := strconv.FormatFloat(f, 'g', -1, 64)
	if !strings.ContainsAny(s, ".eE") {
		s += ".0"
	}
	return s
}

func writeJSONString(sb *strings.Builder, s string) {
	sb.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			sb.WriteString(`\"`)
		case '\\':
			sb.WriteString(`\\`)
		case '\n':
			sb.WriteString(`\n`)
		case '\r':
			sb.WriteString(`\r`)
		case '\t':
			sb.WriteString(`\t`)
		default:
			if r < 0x20 {
				fmt.Fprintf(sb, `\u%04x`, r)
			} else {
				sb.WriteRune(r)
			}
		}
	}
	sb.WriteByte('"')
}

// EncodeJSON renders m as a complete JSON document (spec.md §4.4).
func EncodeJSON(m *Message, opts JSONOptions) ([]byte, error) {
	w := NewJSONWriter(opts, nil)
	if err := writeMessageTree(w, nil, m); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// DecodeJSON parses src into a Message. Decoded field types come from the
// JSON mapping itself; dict (or the default dictionary) is attached to the
// resulting messages for auto-typing of later Add calls.
func DecodeJSON(src []byte, opts JSONOptions, dict *Dictionary) (*Message, error) {
	r, err := NewJSONReader(src, opts)
	if err != nil {
		return nil, err
	}
	return readMessageTree(r, dict)
}
