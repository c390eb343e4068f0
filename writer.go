package fudge

import (
	"fmt"
	"io"
)

// Writer is the binary stream writer (C4.3/C5): it consumes the linear
// event sequence and emits bytes, the dual of Reader. It is the write side
// of the event model that lets any source feed any sink without
// materializing a full tree (spec.md §2).
//
// A Writer always buffers one envelope at a time in memory, since the
// envelope size field can only be backpatched once the whole message has
// been seen. When sink is set, a completed envelope is handed to it
// (auto-flushed on MessageEnd if autoFlush, otherwise only when Flush is
// called explicitly) instead of accumulating across multiple messages, so
// that a Writer can drive an arbitrarily long message stream without
// unbounded memory growth.
type Writer struct {
	dict      *Dictionary
	buf       []byte
	frames    []writerFrame
	sink      io.Writer
	autoFlush bool
}

type writerFrame struct {
	sizeAt int // index of the reserved 4-byte size field to backpatch
}

// NewWriter returns a Writer that encodes using dict (or the default
// built-in dictionary if dict is nil) and accumulates output in memory,
// retrievable with Bytes.
func NewWriter(dict *Dictionary) *Writer {
	if dict == nil {
		dict = defaultDictionary
	}
	return &Writer{dict: dict}
}

// NewStreamWriter returns a Writer that hands each completed envelope to
// sink, per spec.md §6's AutoFlushOnMessageEnd codec setting.
func NewStreamWriter(sink io.Writer, dict *Dictionary, autoFlush bool) *Writer {
	w := NewWriter(dict)
	w.sink = sink
	w.autoFlush = autoFlush
	return w
}

// Flush writes any buffered bytes to the configured sink and resets the
// buffer. It is a no-op if no sink was configured.
func (w *Writer) Flush() error {
	if w.sink == nil || len(w.buf) == 0 {
		return nil
	}
	if _, err := w.sink.Write(w.buf); err != nil {
		return ResourceError{Err: err}
	}
	w.buf = w.buf[:0]
	return nil
}

// Bytes returns the accumulated output not yet flushed to a sink. Valid
// once every MessageStart has a matching MessageEnd.
func (w *Writer) Bytes() []byte { return w.buf }

// Write consumes one event, mirroring spec.md §4.3.
func (w *Writer) Write(ev Event) error {
	switch ev.Kind {
	case MessageStart:
		return w.startMessage(ev.Directives, ev.SchemaVersion, ev.TaxonomyID)
	case SimpleField:
		return w.writeField(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal, ev.FieldType, ev.FieldValue)
	case SubmessageFieldStart:
		return w.startSubMessage(ev.FieldName, ev.HasName, ev.Ordinal, ev.HasOrdinal)
	case SubmessageFieldEnd:
		return w.endSubMessage()
	case MessageEnd:
		return w.endMessage()
	default:
		return fmt.Errorf("fudge: writer cannot consume event kind %s", ev.Kind)
	}
}

// startMessage reserves 4 bytes for the envelope size, writes the 4-byte
// header, and pushes a frame (spec.md §4.3).
func (w *Writer) startMessage(directives, schemaVersion byte, taxonomyID int16) error {
	if len(w.frames) != 0 {
		return MalformedError{Reason: "startMessage called while a frame is already open"}
	}
	w.buf = append(w.buf, directives, schemaVersion, byte(taxonomyID>>8), byte(taxonomyID))
	sizeAt := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.frames = append(w.frames, writerFrame{sizeAt: sizeAt})
	return nil
}

// endMessage backpatches the reserved envelope size. Per spec.md §6 the
// envelope's size field counts the full 8-byte header plus payload, so it
// includes the 4 bytes written before the size field itself as well as the
// size field's own 4 bytes.
func (w *Writer) endMessage() error {
	if len(w.frames) != 1 {
		return MalformedError{Reason: "endMessage called with frames not at top level"}
	}
	frame := w.frames[len(w.frames)-1]
	w.frames = w.frames[:0]
	size := len(w.buf) - (frame.sizeAt - 4)
	putUint32(w.buf[frame.sizeAt:frame.sizeAt+4], uint32(size))
	if w.autoFlush {
		return w.Flush()
	}
	return nil
}

// startSubMessage writes the field header for a nested message (type id =
// TypeMessage) and reserves 4 bytes for its size. A sub-message's size
// always uses the 4-byte size-width, since the true size isn't known until
// endSubMessage backpatches it.
func (w *Writer) startSubMessage(name string, hasName bool, ordinal int16, hasOrdinal bool) error {
	if len(w.frames) == 0 {
		return MalformedError{Reason: "startSubMessage called outside a message"}
	}
	if err := w.writeFieldHeader(name, hasName, ordinal, hasOrdinal, TypeMessage, false, 4); err != nil {
		return err
	}
	sizeAt := len(w.buf)
	w.buf = append(w.buf, 0, 0, 0, 0)
	w.frames = append(w.frames, writerFrame{sizeAt: sizeAt})
	return nil
}

// endSubMessage backpatches the reserved size of the innermost sub-message.
// A sub-message's varSize counts only its payload — not its own 4-byte
// size field, and not the field header (prefix/type/ordinal/name) that
// precedes it, which belongs to the parent frame's accounting instead.
func (w *Writer) endSubMessage() error {
	if len(w.frames) < 2 {
		return MalformedError{Reason: "endSubMessage called with no open sub-message"}
	}
	frame := w.frames[len(w.frames)-1]
	w.frames = w.frames[:len(w.frames)-1]
	size := len(w.buf) - (frame.sizeAt + 4)
	putUint32(w.buf[frame.sizeAt:frame.sizeAt+4], uint32(size))
	return nil
}

// writeField computes the prefix byte (narrowest size-width encoding),
// writes prefix, type id, ordinal, name-length+bytes, value (spec.md §4.3).
func (w *Writer) writeField(name string, hasName bool, ordinal int16, hasOrdinal bool, typ TypeID, value interface{}) error {
	if len(w.frames) == 0 {
		return MalformedError{Reason: "writeField called outside a message"}
	}
	fixedSize, isFixed := FixedWidth(typ)

	if isFixed {
		if err := w.writeFieldHeader(name, hasName, ordinal, hasOrdinal, typ, true, 0); err != nil {
			return err
		}
		codec := w.dict.Lookup(typ, KindFixed, fixedSize)
		payload, err := codec.Write(nil, value)
		if err != nil {
			return err
		}
		if len(payload) != fixedSize {
			return MalformedError{Reason: fmt.Sprintf("fixed type %d wrote %d bytes, want %d", typ, len(payload), fixedSize)}
		}
		w.buf = append(w.buf, payload...)
		return nil
	}

	codec := w.dict.Lookup(typ, KindVariable, 0)
	payload, err := codec.Write(nil, value)
	if err != nil {
		return err
	}
	width := narrowestSizeWidth(len(payload))
	if err := w.writeFieldHeader(name, hasName, ordinal, hasOrdinal, typ, false, width); err != nil {
		return err
	}
	w.buf = putVarSize(w.buf, width, len(payload))
	w.buf = append(w.buf, payload...)
	return nil
}

func (w *Writer) writeFieldHeader(name string, hasName bool, ordinal int16, hasOrdinal bool, typ TypeID, fixedWidth bool, varSizeBytes int) error {
	if hasName && len(name) > 255 {
		return SerializationError{Reason: fmt.Sprintf("field name %q is %d UTF-8 bytes, want at most 255", name, len(name))}
	}
	p := fieldPrefix{
		fixedWidth:     fixedWidth,
		varSizeBytes:   varSizeBytes,
		ordinalPresent: hasOrdinal,
		namePresent:    hasName,
	}
	w.buf = append(w.buf, packPrefix(p), byte(typ))
	if hasOrdinal {
		w.buf = append(w.buf, byte(ordinal>>8), byte(ordinal))
	}
	if hasName {
		nb := []byte(name)
		w.buf = append(w.buf, byte(len(nb)))
		w.buf = append(w.buf, nb...)
	}
	return nil
}

func putUint32(b []byte, v uint32) {
	b[0] = byte(v >> 24)
	b[1] = byte(v >> 16)
	b[2] = byte(v >> 8)
	b[3] = byte(v)
}

// WriteWholeMessage is a convenience that walks an in-memory Message tree
// and emits the full event sequence for it as one top-level envelope, for
// callers (like Message.Hash, or the tree→binary direction of the event
// pipeline) that already have a materialized tree rather than a live event
// source.
func (w *Writer) WriteWholeMessage(m *Message) error {
	return writeMessageTree(w, w.dict, m)
}

// EncodeBinary is a convenience that writes m as one top-level binary
// envelope and returns the encoded bytes.
func EncodeBinary(m *Message, dict *Dictionary) ([]byte, error) {
	w := NewWriter(dict)
	if err := w.WriteWholeMessage(m); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}
