package fudge

import (
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"strconv"
	"strings"
)

// XML mapping (spec.md §2 expansion): the root element is <message>,
// carrying the envelope header as attributes; every field is a <field>
// child carrying optional name/ordinal attributes, so that a field name
// containing characters that aren't valid as an XML element name is never
// a problem. A field with children is a sub-message; otherwise its type is
// inferred from an explicit type="..." attribute (used only where content
// alone is ambiguous: strings, the array types, byte arrays, dateTime and
// null) or,
// failing that, from its text content the same way the JSON mapping infers
// scalar kinds.
const (
	xmlRootElement  = "message"
	xmlFieldElement = "field"

	xmlAttrName       = "name"
	xmlAttrOrdinal    = "ordinal"
	xmlAttrType       = "type"
	xmlAttrDirectives = "directives"
	xmlAttrSchema     = "schemaVersion"
	xmlAttrTaxonomy   = "taxonomy"

	xmlTypeIntArray    = "intArray"
	xmlTypeLongArray   = "longArray"
	xmlTypeShortArray  = "shortArray"
	xmlTypeFloatArray  = "floatArray"
	xmlTypeDoubleArray = "doubleArray"
	xmlTypeByteArray   = "byteArray"
	xmlTypeDateTime    = "dateTime"
	xmlTypeNil         = "nil"
	xmlTypeString      = "string"
)

// XMLWriter renders the event model as XML. Unlike JSONWriter it needs no
// accumulation frame: XML siblings may repeat a tag freely, so a repeated
// field is simply written as another <field> element as its event arrives.
type XMLWriter struct {
	sb     strings.Builder
	depth  int
	opened bool // root <message> written
	done   bool
}

// NewXMLWriter returns an XMLWriter ready to consume events.
func NewXMLWriter() *XMLWriter { return &XMLWriter{} }

func (w *XMLWriter) indent() {
	w.sb.WriteString(strings.Repeat("  ", w.depth))
}

// Write consumes one event.
func (w *XMLWriter) Write(ev Event) error {
	switch ev.Kind {
	case MessageStart:
		if w.opened {
			return MalformedError{Reason: "MessageStart called while a message is already open"}
		}
		w.opened = true
		fmt.Fprintf(&w.sb, "<%s %s=\"%d\" %s=\"%d\" %s=\"%d\">\n",
			xmlRootElement, xmlAttrDirectives, ev.Directives, xmlAttrSchema, ev.SchemaVersion, xmlAttrTaxonomy, ev.TaxonomyID)
		w.depth++
		return nil
	case SimpleField:
		return w.writeField(ev)
	case SubmessageFieldStart:
		w.indent()
		w.sb.WriteString(xmlOpenTag(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal, ""))
		w.sb.WriteByte('\n')
		w.depth++
		return nil
	case SubmessageFieldEnd:
		if w.depth <= 1 {
			return MalformedError{Reason: "SubmessageFieldEnd called with no open sub-message"}
		}
		w.depth--
		w.indent()
		w.sb.WriteString("</" + xmlFieldElement + ">\n")
		return nil
	case MessageEnd:
		if w.depth != 1 {
			return MalformedError{Reason: "MessageEnd called with frames not at top level"}
		}
		w.depth--
		w.sb.WriteString("</" + xmlRootElement + ">")
		w.done = true
		return nil
	default:
		return fmt.Errorf("fudge: XMLWriter cannot consume event kind %s", ev.Kind)
	}
}

func (w *XMLWriter) writeField(ev Event) error {
	typeAttr, text, err := xmlFieldContent(ev.FieldType, ev.FieldValue)
	if err != nil {
		return err
	}
	w.indent()
	w.sb.WriteString(xmlOpenTag(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal, typeAttr))
	w.sb.WriteString(text)
	w.sb.WriteString("</" + xmlFieldElement + ">\n")
	return nil
}

func xmlOpenTag(name string, hasName bool, ordinal int16, hasOrdinal bool, typeAttr string) string {
	var sb strings.Builder
	sb.WriteByte('<')
	sb.WriteString(xmlFieldElement)
	if hasName {
		fmt.Fprintf(&sb, " %s=%q", xmlAttrName, xmlEscapeAttr(name))
	}
	if hasOrdinal {
		fmt.Fprintf(&sb, " %s=\"%d\"", xmlAttrOrdinal, ordinal)
	}
	if typeAttr != "" {
		fmt.Fprintf(&sb, " %s=%q", xmlAttrType, typeAttr)
	}
	sb.WriteByte('>')
	return sb.String()
}

// xmlFieldContent renders one field's value to (type attribute, inner
// text). The type attribute is left empty when the content alone is
// unambiguous on read-back (plain numbers, booleans); strings always carry
// type="string", since their text could otherwise read back as a number,
// boolean, dateTime or null.
func xmlFieldContent(typ TypeID, v interface{}) (string, string, error) {
	switch typ {
	case TypeIndicator:
		return xmlTypeNil, "", nil
	case TypeBoolean:
		b, err := asBool(v)
		if err != nil {
			return "", "", err
		}
		if b {
			return "", "true", nil
		}
		return "", "false", nil
	case TypeByte, TypeShort, TypeInt:
		i, err := asInt(v, 32)
		if err != nil {
			return "", "", err
		}
		return "", strconv.FormatInt(i, 10), nil
	case TypeLong:
		i, err := asInt(v, 64)
		if err != nil {
			return "", "", err
		}
		return "", strconv.FormatInt(i, 10), nil
	case TypeFloat, TypeDouble:
		f, err := asFloat(v, 64)
		if err != nil {
			return "", "", err
		}
		return "", formatJSONDouble(f), nil
	case TypeString:
		s, err := asString(v)
		if err != nil {
			return "", "", err
		}
		return xmlTypeString, xmlEscapeText(s), nil
	case TypeDateTime:
		d, ok := v.(DateTime)
		if !ok {
			return "", "", fmt.Errorf("fudge: cannot render %T as XML dateTime", v)
		}
		return xmlTypeDateTime, d.RFC3339(), nil
	case TypeShortArray:
		ints, err := asIntSlice(v)
		if err != nil {
			return "", "", err
		}
		return xmlTypeShortArray, xmlIntList(ints), nil
	case TypeIntArray:
		ints, err := asIntSlice(v)
		if err != nil {
			return "", "", err
		}
		return xmlTypeIntArray, xmlIntList(ints), nil
	case TypeLongArray:
		ints, err := asIntSlice(v)
		if err != nil {
			return "", "", err
		}
		return xmlTypeLongArray, xmlIntList(ints), nil
	case TypeFloatArray:
		fs, err := asFloat32Slice(v)
		if err != nil {
			return "", "", err
		}
		parts := make([]string, len(fs))
		for i, f := range fs {
			parts[i] = formatJSONDouble(float64(f))
		}
		return xmlTypeFloatArray, strings.Join(parts, " "), nil
	case TypeDoubleArray:
		fs, err := asFloat64Slice(v)
		if err != nil {
			return "", "", err
		}
		parts := make([]string, len(fs))
		for i, f := range fs {
			parts[i] = formatJSONDouble(f)
		}
		return xmlTypeDoubleArray, strings.Join(parts, " "), nil
	default:
		if _, ok := fixedByteArrayLengths[typ]; ok || typ == TypeByteArray {
			b, err := appendBytes(nil, v)
			if err != nil {
				return "", "", err
			}
			return xmlTypeByteArray, base64.StdEncoding.EncodeToString(b), nil
		}
		if uv, ok := v.(UnknownValue); ok {
			return xmlTypeByteArray, base64.StdEncoding.EncodeToString(uv.Bytes), nil
		}
		return "", "", fmt.Errorf("fudge: no XML rendering for type id %d", typ)
	}
}

func xmlIntList(ints []int64) string {
	parts := make([]string, len(ints))
	for i, n := range ints {
		parts[i] = strconv.FormatInt(n, 10)
	}
	return strings.Join(parts, " ")
}

func xmlEscapeAttr(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "\"", "&quot;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	return s
}

func xmlEscapeText(s string) string {
	s = strings.ReplaceAll(s, "&", "&amp;")
	s = strings.ReplaceAll(s, "<", "&lt;")
	s = strings.ReplaceAll(s, ">", "&gt;")
	return s
}

// Bytes returns the completed document. Valid once MessageEnd has been
// written.
func (w *XMLWriter) Bytes() ([]byte, error) {
	if !w.done {
		return nil, MalformedError{Reason: "XMLWriter.Bytes called before MessageEnd"}
	}
	return []byte(w.sb.String()), nil
}

// XMLReader adapts an XML document to the event model. Unlike JSONReader
// it pulls tokens from encoding/xml.Decoder on demand instead of parsing
// the whole document up front: XML's repeated sibling elements already are
// the wire model's repeated fields, so there's no JSON-style
// array/repeated-field ambiguity. It does read each top-level <field>
// element (with all of its children) ahead before queuing its events, to
// tell a sub-message from a leaf.
type XMLReader struct {
	dec    *xml.Decoder
	queue  []Event
	pos    int
	opened bool
	done   bool
}

// NewXMLReader returns an XMLReader over src.
func NewXMLReader(src []byte) *XMLReader {
	return &XMLReader{dec: xml.NewDecoder(strings.NewReader(string(src)))}
}

func (r *XMLReader) HasNext() bool {
	if r.pos < len(r.queue) {
		return true
	}
	return !r.done
}

// MoveNext returns the next event, parsing further XML tokens as needed.
func (r *XMLReader) MoveNext() (Event, error) {
	for r.pos >= len(r.queue) {
		if r.done {
			return Event{}, fmt.Errorf("fudge: XMLReader.MoveNext called with no events remaining")
		}
		if err := r.fill(); err != nil {
			return Event{}, err
		}
	}
	ev := r.queue[r.pos]
	r.pos++
	return ev, nil
}

func (r *XMLReader) fill() error {
	tok, err := r.dec.Token()
	if err != nil {
		if err == io.EOF {
			return MalformedError{Reason: "document ended before </message>"}
		}
		return ParseError{Reason: err.Error()}
	}
	switch t := tok.(type) {
	case xml.StartElement:
		return r.handleStart(t)
	case xml.EndElement:
		return r.handleEnd(t)
	default:
		return nil
	}
}

func (r *XMLReader) handleStart(t xml.StartElement) error {
	if !r.opened {
		if t.Name.Local != xmlRootElement {
			return ParseError{Reason: "expected <message> root element"}
		}
		r.opened = true
		var directives, schemaVersion int64
		var taxonomyID int64
		for _, a := range t.Attr {
			switch a.Name.Local {
			case xmlAttrDirectives:
				directives, _ = strconv.ParseInt(a.Value, 10, 64)
			case xmlAttrSchema:
				schemaVersion, _ = strconv.ParseInt(a.Value, 10, 64)
			case xmlAttrTaxonomy:
				taxonomyID, _ = strconv.ParseInt(a.Value, 10, 64)
			}
		}
		r.queue = append(r.queue, Event{Kind: MessageStart, Directives: byte(directives), SchemaVersion: byte(schemaVersion), TaxonomyID: int16(taxonomyID)})
		return nil
	}
	if t.Name.Local != xmlFieldElement {
		return ParseError{Reason: "expected <field> element"}
	}
	name, hasName, ordinal, hasOrdinal, typeAttr := xmlFieldAttrs(t.Attr)

	// Look ahead: does this field have any child <field> elements (a
	// sub-message) or is it a leaf with text content?
	inner, isSub, err := r.readFieldBody()
	if err != nil {
		return err
	}
	if isSub {
		r.queue = append(r.queue, Event{Kind: SubmessageFieldStart, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal})
		r.queue = append(r.queue, inner...)
		r.queue = append(r.queue, Event{Kind: SubmessageFieldEnd})
		return nil
	}
	typ, val, err := xmlLeafValue(typeAttr, inner0Text(inner))
	if err != nil {
		return err
	}
	r.queue = append(r.queue, Event{Kind: SimpleField, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal, FieldType: typ, FieldValue: val})
	return nil
}

func (r *XMLReader) handleEnd(t xml.EndElement) error {
	if t.Name.Local == xmlRootElement {
		r.queue = append(r.queue, Event{Kind: MessageEnd})
		r.done = true
	}
	return nil
}

// readFieldBody consumes tokens up to and including this field's matching
// </field>, returning either the nested field events (if it contains child
// <field> elements) or a single synthetic text-carrying slot.
func (r *XMLReader) readFieldBody() ([]Event, bool, error) {
	var text strings.Builder
	var children []Event
	sawChild := false
	for {
		tok, err := r.dec.Token()
		if err != nil {
			return nil, false, ParseError{Reason: "unterminated field element"}
		}
		switch t := tok.(type) {
		case xml.CharData:
			text.Write(t)
		case xml.StartElement:
			sawChild = true
			if err := r.handleNestedStart(t, &children); err != nil {
				return nil, false, err
			}
		case xml.EndElement:
			if t.Name.Local == xmlFieldElement {
				if sawChild {
					return children, true, nil
				}
				return []Event{{Kind: SimpleField, FieldValue: text.String()}}, false, nil
			}
		}
	}
}

func (r *XMLReader) handleNestedStart(t xml.StartElement, children *[]Event) error {
	if t.Name.Local != xmlFieldElement {
		return ParseError{Reason: "expected <field> element"}
	}
	name, hasName, ordinal, hasOrdinal, typeAttr := xmlFieldAttrs(t.Attr)
	inner, isSub, err := r.readFieldBody()
	if err != nil {
		return err
	}
	if isSub {
		*children = append(*children, Event{Kind: SubmessageFieldStart, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal})
		*children = append(*children, inner...)
		*children = append(*children, Event{Kind: SubmessageFieldEnd})
		return nil
	}
	typ, val, err := xmlLeafValue(typeAttr, inner0Text(inner))
	if err != nil {
		return err
	}
	*children = append(*children, Event{Kind: SimpleField, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal, FieldType: typ, FieldValue: val})
	return nil
}

func inner0Text(inner []Event) string {
	if len(inner) != 1 {
		return ""
	}
	s, _ := inner[0].FieldValue.(string)
	return s
}

func xmlFieldAttrs(attrs []xml.Attr) (name string, hasName bool, ordinal int16, hasOrdinal bool, typeAttr string) {
	for _, a := range attrs {
		switch a.Name.Local {
		case xmlAttrName:
			name, hasName = a.Value, true
		case xmlAttrOrdinal:
			n, err := strconv.ParseInt(a.Value, 10, 16)
			if err == nil {
				ordinal, hasOrdinal = int16(n), true
			}
		case xmlAttrType:
			typeAttr = a.Value
		}
	}
	return
}

// xmlLeafValue maps a leaf <field>'s type attribute (if any) and text
// content to a (typ, value) pair, inferring from content the same way the
// JSON mapping does when no type attribute disambiguates it.
func xmlLeafValue(typeAttr, text string) (TypeID, interface{}, error) {
	switch typeAttr {
	case xmlTypeNil:
		return TypeIndicator, Indicator{}, nil
	case xmlTypeString:
		return TypeString, text, nil
	case xmlTypeDateTime:
		d, ok := parseRFC3339(text)
		if !ok {
			return 0, nil, ParseError{Reason: "malformed dateTime content"}
		}
		return TypeDateTime, d, nil
	case xmlTypeByteArray:
		b, err := base64.StdEncoding.DecodeString(text)
		if err != nil {
			return 0, nil, ParseError{Reason: "malformed base64 content"}
		}
		return TypeByteArray, b, nil
	case xmlTypeShortArray, xmlTypeIntArray, xmlTypeLongArray:
		ints, err := xmlParseIntList(text)
		if err != nil {
			return 0, nil, err
		}
		switch typeAttr {
		case xmlTypeShortArray:
			out := make([]int16, len(ints))
			for i, n := range ints {
				out[i] = int16(n)
			}
			return TypeShortArray, out, nil
		case xmlTypeIntArray:
			out := make([]int32, len(ints))
			for i, n := range ints {
				out[i] = int32(n)
			}
			return TypeIntArray, out, nil
		default:
			return TypeLongArray, ints, nil
		}
	case xmlTypeFloatArray, xmlTypeDoubleArray:
		fields := strings.Fields(text)
		fs := make([]float64, len(fields))
		for i, f := range fields {
			v, err := strconv.ParseFloat(f, 64)
			if err != nil {
				return 0, nil, ParseError{Reason: "malformed float array content"}
			}
			fs[i] = v
		}
		if typeAttr == xmlTypeFloatArray {
			out := make([]float32, len(fs))
			for i, f := range fs {
				out[i] = float32(f)
			}
			return TypeFloatArray, out, nil
		}
		return TypeDoubleArray, fs, nil
	}

	if text == "" {
		return TypeIndicator, Indicator{}, nil
	}
	if text == "true" {
		return TypeBoolean, true, nil
	}
	if text == "false" {
		return TypeBoolean, false, nil
	}
	if n, err := strconv.ParseInt(text, 10, 64); err == nil {
		if n >= -(1<<31) && n <= (1<<31-1) {
			return TypeInt, int32(n), nil
		}
		return TypeLong, n, nil
	}
	if f, err := strconv.ParseFloat(text, 64); err == nil {
		return TypeDouble, f, nil
	}
	if d, ok := parseRFC3339(text); ok {
		return TypeDateTime, d, nil
	}
	return TypeString, text, nil
}

func xmlParseIntList(text string) ([]int64, error) {
	fields := strings.Fields(text)
	out := make([]int64, len(fields))
	for i, f := range fields {
		n, err := strconv.ParseInt(f, 10, 64)
		if err != nil {
			return nil, ParseError{Reason: "malformed integer array content"}
		}
		out[i] = n
	}
	return out, nil
}

// EncodeXML renders m as a complete XML document.
func EncodeXML(m *Message) ([]byte, error) {
	w := NewXMLWriter()
	if err := writeMessageTree(w, nil, m); err != nil {
		return nil, err
	}
	return w.Bytes()
}

// DecodeXML parses src into a Message using dict (or the default
// dictionary).
func DecodeXML(src []byte, dict *Dictionary) (*Message, error) {
	r := NewXMLReader(src)
	return readMessageTree(r, dict)
}
