package fudge

// eventSource is satisfied by anything that drives the event model forward
// (Reader, JSONReader, XMLReader), letting tree (de)serialization work
// uniformly across wire formats (spec.md §2).
type eventSource interface {
	HasNext() bool
	MoveNext() (Event, error)
}

// eventSink is satisfied by anything that consumes the event model (Writer,
// JSONWriter, XMLWriter).
type eventSink interface {
	Write(Event) error
}

// readMessageTree drains src into a freshly built Message, the dual of
// writeMessageTree. It materializes the entire tree, unlike a bare
// HasNext/MoveNext consumer, for callers that want the C6 in-memory form
// rather than to act on events as they arrive.
func readMessageTree(src eventSource, dict *Dictionary) (*Message, error) {
	if dict == nil {
		dict = defaultDictionary
	}
	if !src.HasNext() {
		return nil, MalformedError{Reason: "empty event stream, expected MessageStart"}
	}
	ev, err := src.MoveNext()
	if err != nil {
		return nil, err
	}
	if ev.Kind != MessageStart {
		return nil, MalformedError{Reason: "expected MessageStart"}
	}
	m := NewMessage(dict)
	if err := readFieldsInto(src, dict, m); err != nil {
		return nil, err
	}
	return m, nil
}

func readFieldsInto(src eventSource, dict *Dictionary, m *Message) error {
	for {
		if !src.HasNext() {
			return MalformedError{Reason: "stream ended before MessageEnd"}
		}
		ev, err := src.MoveNext()
		if err != nil {
			return err
		}
		switch ev.Kind {
		case MessageEnd, SubmessageFieldEnd:
			return nil
		case SubmessageFieldStart:
			sub := NewMessage(dict)
			if err := readFieldsInto(src, dict, sub); err != nil {
				return err
			}
			m.AddSubMessage(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal, sub)
		case SimpleField:
			m.AddField(Field{
				Name: ev.FieldName, HasName: ev.HasName,
				Ordinal: ev.Ordinal, HasOrdinal: ev.HasOrdinal,
				Type: ev.FieldType, Value: ev.FieldValue,
			})
		default:
			return MalformedError{Reason: "unexpected event in field position"}
		}
	}
}

// writeMessageTree walks m and feeds sink the full event sequence for one
// top-level message, the dual of readMessageTree.
func writeMessageTree(sink eventSink, dict *Dictionary, m *Message) error {
	if dict == nil {
		dict = defaultDictionary
	}
	if err := sink.Write(Event{Kind: MessageStart}); err != nil {
		return err
	}
	if err := writeFieldsFrom(sink, dict, m.Fields()); err != nil {
		return err
	}
	return sink.Write(Event{Kind: MessageEnd})
}

func writeFieldsFrom(sink eventSink, dict *Dictionary, fields []Field) error {
	for _, f := range fields {
		if f.Type == TypeMessage {
			if err := sink.Write(Event{Kind: SubmessageFieldStart, FieldName: f.Name, HasName: f.HasName, Ordinal: f.Ordinal, HasOrdinal: f.HasOrdinal}); err != nil {
				return err
			}
			sub := f.Sub
			if sub == nil {
				sub = NewMessage(dict)
			}
			if err := writeFieldsFrom(sink, dict, sub.Fields()); err != nil {
				return err
			}
			if err := sink.Write(Event{Kind: SubmessageFieldEnd}); err != nil {
				return err
			}
			continue
		}
		ev := Event{Kind: SimpleField, FieldName: f.Name, HasName: f.HasName, Ordinal: f.Ordinal, HasOrdinal: f.HasOrdinal, FieldType: f.Type, FieldValue: f.Value}
		if err := sink.Write(ev); err != nil {
			return err
		}
	}
	return nil
}
