package fudge

import (
	"bufio"
	"bytes"
	"io"
)

// Taxonomy maps field ordinals to names for one taxonomy id, letting a
// stream omit names it can recover from an externally agreed table
// (spec.md §4.2 step 4, GLOSSARY "Taxonomy").
type Taxonomy interface {
	NameForOrdinal(ordinal int16) (string, bool)
}

// TaxonomyResolver resolves a taxonomyId read from an envelope header to
// the Taxonomy that should be consulted for the rest of that message.
type TaxonomyResolver func(taxonomyID int16) Taxonomy

// Reader is the binary stream reader (C4): it consumes bytes and exposes
// HasNext/MoveNext over the event model, exactly as spec.md §4.2
// describes.
type Reader struct {
	dict     *Dictionary
	src      *bufio.Reader
	frames   []readerFrame
	taxonomy TaxonomyResolver
	curTax   Taxonomy

	offset int
	atTop  bool
	eof    bool
}

type readerFrame struct {
	size     int
	consumed int
}

// ReaderOption configures a Reader at construction time.
type ReaderOption func(*Reader)

// WithTaxonomyResolver installs the optional taxonomy resolver named in
// spec.md §6 ("Codec settings: TaxonomyResolver").
func WithTaxonomyResolver(tr TaxonomyResolver) ReaderOption {
	return func(r *Reader) { r.taxonomy = tr }
}

// NewReader returns a Reader over src using dict (or the default built-in
// dictionary if dict is nil).
func NewReader(src io.Reader, dict *Dictionary, opts ...ReaderOption) *Reader {
	if dict == nil {
		dict = defaultDictionary
	}
	r := &Reader{dict: dict, src: bufio.NewReader(src), atTop: true}
	for _, o := range opts {
		o(r)
	}
	return r
}

// HasNext reports whether another event is available. Between envelopes
// it performs the one-byte look-ahead spec.md §4.2 describes; any error
// other than a graceful EOF is returned by the next MoveNext call, not
// here, since HasNext itself does not return an error.
func (r *Reader) HasNext() bool {
	if r.eof {
		return false
	}
	if len(r.frames) > 0 {
		return true
	}
	_, err := r.src.Peek(1)
	if err == io.EOF {
		r.eof = true
		return false
	}
	return true
}

// MoveNext advances to and returns the next event.
func (r *Reader) MoveNext() (Event, error) {
	if len(r.frames) == 0 {
		return r.startTopMessage()
	}

	top := &r.frames[len(r.frames)-1]
	if top.consumed >= top.size {
		closed := *top
		r.frames = r.frames[:len(r.frames)-1]
		if len(r.frames) > 0 {
			r.frames[len(r.frames)-1].consumed += closed.size
			return Event{Kind: SubmessageFieldEnd}, nil
		}
		r.atTop = true
		return Event{Kind: MessageEnd}, nil
	}

	return r.readField()
}

func (r *Reader) startTopMessage() (Event, error) {
	header := make([]byte, 8)
	if _, err := io.ReadFull(r.src, header); err != nil {
		if err == io.EOF {
			r.eof = true
		}
		return Event{}, r.ioErr(err)
	}
	directives := header[0]
	schemaVersion := header[1]
	taxonomyID := int16(uint16(header[2])<<8 | uint16(header[3]))
	size := int(uint32(header[4])<<24 | uint32(header[5])<<16 | uint32(header[6])<<8 | uint32(header[7]))
	if size < 8 {
		return Event{}, MalformedError{Reason: "envelope size smaller than header", Offset: r.offset, Depth: 0}
	}
	r.offset += 8
	r.atTop = false
	if r.taxonomy != nil {
		r.curTax = r.taxonomy(taxonomyID)
	} else {
		r.curTax = nil
	}
	r.frames = append(r.frames, readerFrame{size: size, consumed: 8})
	return Event{Kind: MessageStart, Directives: directives, SchemaVersion: schemaVersion, TaxonomyID: taxonomyID}, nil
}

func (r *Reader) readField() (Event, error) {
	depth := len(r.frames)
	startOffset := r.offset

	prefixByte, err := r.readByte()
	if err != nil {
		return Event{}, r.ioErr(err)
	}
	prefix := unpackPrefix(prefixByte)

	typByte, err := r.readByte()
	if err != nil {
		return Event{}, r.ioErr(err)
	}
	typ := TypeID(typByte)
	consumed := 2

	var ordinal int16
	hasOrdinal := prefix.ordinalPresent
	if hasOrdinal {
		b, err := r.readN(2)
		if err != nil {
			return Event{}, r.ioErr(err)
		}
		ordinal = int16(uint16(b[0])<<8 | uint16(b[1]))
		consumed += 2
	}

	var name string
	hasName := prefix.namePresent
	if hasName {
		nlb, err := r.readByte()
		if err != nil {
			return Event{}, r.ioErr(err)
		}
		nb, err := r.readN(int(nlb))
		if err != nil {
			return Event{}, r.ioErr(err)
		}
		if !utf8Valid(nb) {
			return Event{}, MalformedError{Reason: "bad UTF-8 in field name", Offset: startOffset, Depth: depth}
		}
		name = string(nb)
		consumed += 1 + int(nlb)
	}

	if !hasName && hasOrdinal && r.curTax != nil {
		if n, ok := r.curTax.NameForOrdinal(ordinal); ok {
			name = n
			hasName = true
		}
	}

	var size int
	if prefix.fixedWidth {
		fw, ok := FixedWidth(typ)
		if !ok {
			return Event{}, UnknownTypeError{TypeID: typ}
		}
		size = fw
	} else {
		if _, fixed := FixedWidth(typ); fixed {
			return Event{}, MalformedError{Reason: "variable-width prefix on a fixed-width type", Offset: startOffset, Depth: depth}
		}
		b, err := r.readN(prefix.varSizeBytes)
		if err != nil {
			return Event{}, r.ioErr(err)
		}
		size = readVarSize(b, prefix.varSizeBytes)
		consumed += prefix.varSizeBytes
	}

	top := &r.frames[len(r.frames)-1]
	if top.consumed+consumed+size > top.size {
		return Event{}, MalformedError{Reason: "field overruns enclosing frame", Offset: startOffset, Depth: depth}
	}

	if typ == TypeMessage {
		top.consumed += consumed
		r.frames = append(r.frames, readerFrame{size: size, consumed: 0})
		return Event{Kind: SubmessageFieldStart, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal}, nil
	}

	payload, err := r.readN(size)
	if err != nil {
		return Event{}, r.ioErr(err)
	}
	kind := KindFixed
	if !prefix.fixedWidth {
		kind = KindVariable
	}
	codec := r.dict.Lookup(typ, kind, size)
	value, err := codec.Read(payload)
	if err != nil {
		return Event{}, err
	}
	top.consumed += consumed + size

	return Event{Kind: SimpleField, FieldName: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal, FieldType: typ, FieldValue: value}, nil
}

func (r *Reader) readByte() (byte, error) {
	b, err := r.src.ReadByte()
	if err == nil {
		r.offset++
	}
	return b, err
}

func (r *Reader) readN(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	b := make([]byte, n)
	if _, err := io.ReadFull(r.src, b); err != nil {
		return nil, err
	}
	r.offset += n
	return b, nil
}

// DecodeBinary is a convenience that reads one top-level binary envelope
// from src and materializes it as a Message.
func DecodeBinary(src []byte, dict *Dictionary) (*Message, error) {
	r := NewReader(bytes.NewReader(src), dict)
	return readMessageTree(r, r.dict)
}

func (r *Reader) ioErr(err error) error {
	if err == io.EOF || err == io.ErrUnexpectedEOF {
		return MalformedError{Reason: "truncated stream", Offset: r.offset, Depth: len(r.frames)}
	}
	return ResourceError{Err: err, Offset: r.offset, Depth: len(r.frames)}
}
