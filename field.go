package fudge

// Field is the tuple (name?, ordinal?, type, value) described in spec.md
// §3. At least one of Name/Ordinal may be absent; a Field with neither is
// anonymous.
type Field struct {
	Name        string
	HasName     bool
	Ordinal     int16
	HasOrdinal  bool
	Type        TypeID
	Value       interface{}
	// Sub is set when Type == TypeMessage; Value is unused in that case.
	Sub *Message
}

// NamedField builds a Field with a name and no ordinal.
func NamedField(name string, typ TypeID, value interface{}) Field {
	return Field{Name: name, HasName: true, Type: typ, Value: value}
}

// OrdinalField builds a Field with an ordinal and no name.
func OrdinalField(ordinal int16, typ TypeID, value interface{}) Field {
	return Field{Ordinal: ordinal, HasOrdinal: true, Type: typ, Value: value}
}

// EventKind enumerates the linear event sequence the streaming pipeline
// (C4/C5/C7/C8) passes between encodings (spec.md §2).
type EventKind int

const (
	NoElement EventKind = iota
	MessageStart
	SimpleField
	SubmessageFieldStart
	SubmessageFieldEnd
	MessageEnd
)

func (k EventKind) String() string {
	switch k {
	case NoElement:
		return "NoElement"
	case MessageStart:
		return "MessageStart"
	case SimpleField:
		return "SimpleField"
	case SubmessageFieldStart:
		return "SubmessageFieldStart"
	case SubmessageFieldEnd:
		return "SubmessageFieldEnd"
	case MessageEnd:
		return "MessageEnd"
	}
	return "Unknown"
}

// Event is the value moveNext()/NextEvent() returns: the current element's
// state, exactly as spec.md §4.2 describes it. Directives/SchemaVersion/
// TaxonomyID are only meaningful on a MessageStart event at the top level;
// they carry the envelope header (spec.md §6).
type Event struct {
	Kind       EventKind
	FieldName  string
	HasName    bool
	Ordinal    int16
	HasOrdinal bool
	FieldType  TypeID
	FieldValue interface{}

	Directives    byte
	SchemaVersion byte
	TaxonomyID    int16
}
