package fudge

import (
	"reflect"
)

// SerializationContext tracks ref ids during a single object-graph write
// (spec.md §4.8): an identity map from already-serialized reference-kind
// values to their assigned ref id, a monotonic ref counter, a stack of the
// sub-messages currently being built (for resolving "self" in type-id
// deltas and shared-reference deltas), and which type entry last carried
// each class's type-name strings (so repeats can cite it by delta instead
// of repeating the names).
type SerializationContext struct {
	dict    *Dictionary
	typeMap *TypeMap

	nextRef    int
	refIDs     map[refKey]int
	typeProtos map[*typeEntry]int
	stack      []ctxFrame
}

type ctxFrame struct {
	msg   *Message
	refID int
}

type refKey struct {
	typ reflect.Type
	ptr uintptr
}

// NewSerializationContext returns a context writing against dict's wire
// types and tm's surrogate registry.
func NewSerializationContext(dict *Dictionary, tm *TypeMap) *SerializationContext {
	if dict == nil {
		dict = defaultDictionary
	}
	if tm == nil {
		tm = defaultTypeMap
	}
	return &SerializationContext{
		dict:       dict,
		typeMap:    tm,
		refIDs:     make(map[refKey]int),
		typeProtos: make(map[*typeEntry]int),
	}
}

// Serialize encodes v's object graph into a Message, auto-detecting v's
// surrogate and assigning ref id 0 to the root.
func Serialize(v interface{}, dict *Dictionary, tm *TypeMap) (*Message, error) {
	ctx := NewSerializationContext(dict, tm)
	return ctx.serializeValue(reflect.ValueOf(v))
}

func (ctx *SerializationContext) currentRefID() int {
	return ctx.stack[len(ctx.stack)-1].refID
}

func refKeyOf(rv reflect.Value) (refKey, bool) {
	switch rv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if rv.IsNil() {
			return refKey{}, false
		}
		return refKey{typ: rv.Type(), ptr: rv.Pointer()}, true
	}
	return refKey{}, false
}

func (ctx *SerializationContext) lookupRef(rv reflect.Value) (int, bool) {
	key, ok := refKeyOf(rv)
	if !ok {
		return 0, false
	}
	id, ok := ctx.refIDs[key]
	return id, ok
}

func (ctx *SerializationContext) registerRef(rv reflect.Value, id int) {
	if key, ok := refKeyOf(rv); ok {
		ctx.refIDs[key] = id
	}
}

// typeIDFields builds the ordinal -1 field(s) for a sub-message of entry's
// class at refID: the first time a class is seen, one string field per
// name (most specific first); every later sub-message of that class cites
// the first one with a negative delta instead (spec.md §4.8 step 2).
func (ctx *SerializationContext) typeIDFields(entry *typeEntry, refID int) []Field {
	if protoID, ok := ctx.typeProtos[entry]; ok {
		return []Field{OrdinalField(-1, TypeLong, int64(protoID-refID))}
	}
	ctx.typeProtos[entry] = refID
	fields := make([]Field, len(entry.names))
	for i, n := range entry.names {
		fields[i] = OrdinalField(-1, TypeString, n)
	}
	return fields
}

// serializeValue assigns rv the next ref id, registers its identity (a
// no-op for non-reference kinds), and asks rv's surrogate to fill a fresh
// sub-message. rv may be a pointer (dereferenced before surrogate dispatch
// but registered under its own identity), a map, a slice, or a plain
// struct/array value (inlined, never shared, since Go value types have no
// stable identity to share).
func (ctx *SerializationContext) serializeValue(rv reflect.Value) (*Message, error) {
	refID := ctx.nextRef
	ctx.nextRef++
	ctx.registerRef(rv, refID)

	elem := rv
	if elem.Kind() == reflect.Ptr {
		if elem.IsNil() {
			return nil, SerializationError{Reason: "cannot serialize a nil pointer as an object", RefID: refID}
		}
		elem = elem.Elem()
	}
	entry := ctx.typeMap.entryFor(elem.Type())

	msg := NewMessage(ctx.dict)
	ctx.stack = append(ctx.stack, ctxFrame{msg: msg, refID: refID})
	defer func() { ctx.stack = ctx.stack[:len(ctx.stack)-1] }()

	for _, f := range ctx.typeIDFields(entry, refID) {
		msg.AddField(f)
	}
	if err := entry.surrogate.Serialize(elem, msg, ctx); err != nil {
		return nil, SerializationError{Reason: err.Error(), TypeName: entry.names[0], RefID: refID}
	}
	return msg, nil
}

// fieldFor builds one Field for member value fv, choosing between an
// indicator (nil), the dictionary's preferred scalar wire type, a shared
// reference (a reference-kind value already serialized elsewhere in this
// graph, encoded as an integer delta to its ref id), or a nested
// sub-message (spec.md §4.8's object field encoding).
func (ctx *SerializationContext) fieldFor(name string, hasName bool, ordinal int16, hasOrdinal bool, fv reflect.Value) (Field, error) {
	base := Field{Name: name, HasName: hasName, Ordinal: ordinal, HasOrdinal: hasOrdinal}

	if !fv.IsValid() {
		base.Type, base.Value = TypeIndicator, Indicator{}
		return base, nil
	}
	if fv.Kind() == reflect.Interface {
		if fv.IsNil() {
			base.Type, base.Value = TypeIndicator, Indicator{}
			return base, nil
		}
		fv = fv.Elem()
	}
	switch fv.Kind() {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if fv.IsNil() {
			base.Type, base.Value = TypeIndicator, Indicator{}
			return base, nil
		}
	}

	if id, ok := ctx.dict.PreferredType(fv.Type()); ok {
		base.Type, base.Value = id, fv.Interface()
		return base, nil
	}

	switch fv.Kind() {
	case reflect.Bool:
		base.Type, base.Value = TypeBoolean, fv.Bool()
		return base, nil
	case reflect.Int8:
		base.Type, base.Value = TypeByte, int8(fv.Int())
		return base, nil
	case reflect.Int16:
		base.Type, base.Value = TypeShort, int16(fv.Int())
		return base, nil
	case reflect.Int32:
		base.Type, base.Value = TypeInt, int32(fv.Int())
		return base, nil
	case reflect.Int, reflect.Int64:
		base.Type, base.Value = TypeLong, fv.Int()
		return base, nil
	case reflect.Float32:
		base.Type, base.Value = TypeFloat, float32(fv.Float())
		return base, nil
	case reflect.Float64:
		base.Type, base.Value = TypeDouble, fv.Float()
		return base, nil
	case reflect.String:
		base.Type, base.Value = TypeString, fv.String()
		return base, nil
	case reflect.Ptr, reflect.Map, reflect.Slice:
		if refID, ok := ctx.lookupRef(fv); ok {
			base.Type, base.Value = TypeLong, int64(refID-ctx.currentRefID())
			return base, nil
		}
		sub, err := ctx.serializeValue(fv)
		if err != nil {
			return Field{}, err
		}
		base.Type, base.Sub = TypeMessage, sub
		return base, nil
	case reflect.Struct, reflect.Array:
		sub, err := ctx.serializeValue(fv)
		if err != nil {
			return Field{}, err
		}
		base.Type, base.Sub = TypeMessage, sub
		return base, nil
	}
	return Field{}, SerializationError{Reason: "no wire representation for " + fv.Type().String()}
}

// DeserializationContext mirrors SerializationContext on the read side
// (spec.md §4.8): an ordered table of every sub-message discovered by a
// single upfront tree walk, each slot lazily resolved to a Go value on
// first reference, with register-before-recurse enforced by each
// surrogate so reference cycles resolve correctly.
type DeserializationContext struct {
	dict    *Dictionary
	typeMap *TypeMap

	entries []deserEntry
	msgRef  map[*Message]int
}

type deserEntry struct {
	msg      *Message
	obj      reflect.Value
	resolved bool
}

// NewDeserializationContext returns a context reading against dict's wire
// types and tm's surrogate registry.
func NewDeserializationContext(dict *Dictionary, tm *TypeMap) *DeserializationContext {
	if dict == nil {
		dict = defaultDictionary
	}
	if tm == nil {
		tm = defaultTypeMap
	}
	return &DeserializationContext{dict: dict, typeMap: tm, msgRef: make(map[*Message]int)}
}

// DeserializeMessage decodes a Message already built in memory back into
// a Go value of (or assignable to) hint's type.
func DeserializeMessage(msg *Message, hint reflect.Type, dict *Dictionary, tm *TypeMap) (interface{}, error) {
	ctx := NewDeserializationContext(dict, tm)
	ctx.indexMessage(msg)
	obj, err := ctx.getFromRef(0, hint)
	if err != nil {
		return nil, err
	}
	return obj.Interface(), nil
}

// LoadMessage reads one top-level envelope from src and indexes its full
// sub-message tree, assigning ref ids in first-encounter (pre-order) order
// (spec.md §4.8 step 1), without resolving any object yet.
func (ctx *DeserializationContext) LoadMessage(src eventSource) (*Message, error) {
	root, err := readMessageTree(src, ctx.dict)
	if err != nil {
		return nil, err
	}
	ctx.indexMessage(root)
	return root, nil
}

func (ctx *DeserializationContext) indexMessage(msg *Message) {
	refID := len(ctx.entries)
	ctx.entries = append(ctx.entries, deserEntry{msg: msg})
	ctx.msgRef[msg] = refID
	for _, f := range msg.Fields() {
		if f.Type == TypeMessage && f.Sub != nil {
			ctx.indexMessage(f.Sub)
		}
	}
}

// Register binds refID to obj before a surrogate follows any member that
// might cycle back to it. Calling it twice for the same refID is fine —
// later calls (e.g. a list surrogate re-registering after append grows
// its backing array) simply replace the visible object.
func (ctx *DeserializationContext) Register(refID int, obj reflect.Value) {
	ctx.entries[refID].obj = obj
	ctx.entries[refID].resolved = true
}

// getFromRef resolves refID to a Go value, deserializing it on first use.
func (ctx *DeserializationContext) getFromRef(refID int, hint reflect.Type) (reflect.Value, error) {
	if refID < 0 || refID >= len(ctx.entries) {
		return reflect.Value{}, SerializationError{Reason: "relative reference out of range", RefID: refID}
	}
	if ctx.entries[refID].resolved {
		return ctx.entries[refID].obj, nil
	}
	return ctx.deserializeFromMessage(refID, hint)
}

func (ctx *DeserializationContext) deserializeFromMessage(refID int, hint reflect.Type) (reflect.Value, error) {
	msg := ctx.entries[refID].msg
	rt, err := ctx.resolveType(refID, hint)
	if err != nil {
		return reflect.Value{}, err
	}
	entry := ctx.typeMap.entryFor(rt)
	obj, err := entry.surrogate.Deserialize(msg, ctx, rt, refID)
	if err != nil {
		return reflect.Value{}, SerializationError{Reason: err.Error(), TypeName: rt.String(), RefID: refID}
	}
	if !ctx.entries[refID].resolved {
		return reflect.Value{}, ErrNoRegistration
	}
	return obj, nil
}

// resolveType reads refID's type-id field, following a chain of relative
// deltas back to the sub-message that actually carries type-name strings,
// and resolves the first name any registered type claims (spec.md §4.8
// step 3). hint is used when a message has no type-id field at all, and
// as the last resort if no candidate name resolves.
func (ctx *DeserializationContext) resolveType(refID int, hint reflect.Type) (reflect.Type, error) {
	msg := ctx.entries[refID].msg
	typeFields := msg.GetAllByOrdinal(-1)
	if len(typeFields) == 0 {
		if hint != nil {
			return hint, nil
		}
		return nil, SerializationError{Reason: "message has no type-id field and no hint type", RefID: refID}
	}
	if isIntLike(typeFields[0].Type) {
		delta, _ := coerceInt(typeFields[0].Value)
		protoID := refID + int(delta)
		if protoID >= refID {
			return nil, SerializationError{Reason: ErrForwardRef.Error(), RefID: refID, Err: ErrForwardRef}
		}
		if protoID < 0 {
			return nil, SerializationError{Reason: "relative type reference out of range", RefID: refID}
		}
		return ctx.resolveType(protoID, hint)
	}
	for _, f := range typeFields {
		if name, ok := f.Value.(string); ok {
			if rt, ok := ctx.typeMap.ResolveName(name); ok {
				return rt, nil
			}
		}
	}
	if hint != nil {
		return hint, nil
	}
	return nil, SerializationError{Reason: "no registered type matched any candidate type name", RefID: refID}
}

func isIntLike(t TypeID) bool {
	switch t {
	case TypeByte, TypeShort, TypeInt, TypeLong:
		return true
	}
	return false
}

// valueOf resolves a decoded field to a plain Go value, following a
// nested sub-message into its fully deserialized object.
func (ctx *DeserializationContext) valueOf(f Field) (interface{}, error) {
	if f.Type == TypeMessage {
		subRefID, ok := ctx.msgRef[f.Sub]
		if !ok {
			return nil, SerializationError{Reason: "sub-message not indexed"}
		}
		obj, err := ctx.getFromRef(subRefID, nil)
		if err != nil {
			return nil, err
		}
		return obj.Interface(), nil
	}
	return f.Value, nil
}

// assignField is fieldFor's dual: it sets fv from f, recognizing a
// reference-kind target field holding an integer wire value as a shared
// reference delta (relative to containerRefID, the object that owns fv)
// rather than a literal integer.
func (ctx *DeserializationContext) assignField(fv reflect.Value, f Field, containerRefID int) error {
	if f.Type == TypeIndicator {
		fv.Set(reflect.Zero(fv.Type()))
		return nil
	}
	if f.Type == TypeMessage {
		subRefID, ok := ctx.msgRef[f.Sub]
		if !ok {
			return SerializationError{Reason: "sub-message not indexed"}
		}
		obj, err := ctx.getFromRef(subRefID, fv.Type())
		if err != nil {
			return err
		}
		return ctx.setValue(fv, obj)
	}
	if isReferenceFieldKind(fv.Kind()) && isIntLike(f.Type) {
		delta, _ := coerceInt(f.Value)
		obj, err := ctx.getFromRef(containerRefID+int(delta), fv.Type())
		if err != nil {
			return err
		}
		return ctx.setValue(fv, obj)
	}
	return ctx.setScalar(fv, f)
}

func isReferenceFieldKind(k reflect.Kind) bool {
	switch k {
	case reflect.Ptr, reflect.Map, reflect.Slice:
		return true
	}
	return false
}

func (ctx *DeserializationContext) setValue(fv reflect.Value, obj reflect.Value) error {
	if obj.Type().AssignableTo(fv.Type()) {
		fv.Set(obj)
		return nil
	}
	if fv.Kind() == reflect.Ptr && obj.Kind() != reflect.Ptr && obj.CanAddr() {
		fv.Set(obj.Addr())
		return nil
	}
	if fv.Kind() != reflect.Ptr && obj.Kind() == reflect.Ptr && obj.Elem().Type().AssignableTo(fv.Type()) {
		fv.Set(obj.Elem())
		return nil
	}
	return SerializationError{Reason: "cannot assign " + obj.Type().String() + " into " + fv.Type().String()}
}

func (ctx *DeserializationContext) setScalar(fv reflect.Value, f Field) error {
	switch fv.Kind() {
	case reflect.Bool:
		b, ok := f.Value.(bool)
		if !ok {
			return SerializationError{Reason: "field is not boolean"}
		}
		fv.SetBool(b)
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		i, ok := coerceInt(f.Value)
		if !ok {
			return SerializationError{Reason: "field is not an integer"}
		}
		fv.SetInt(i)
	case reflect.Float32, reflect.Float64:
		switch v := f.Value.(type) {
		case float32:
			fv.SetFloat(float64(v))
		case float64:
			fv.SetFloat(v)
		default:
			i, ok := coerceInt(f.Value)
			if !ok {
				return SerializationError{Reason: "field is not a float"}
			}
			fv.SetFloat(float64(i))
		}
	case reflect.String:
		s, ok := f.Value.(string)
		if !ok {
			return SerializationError{Reason: "field is not a string"}
		}
		fv.SetString(s)
	case reflect.Struct:
		d, ok := f.Value.(DateTime)
		if !ok || fv.Type() != reflect.TypeOf(DateTime{}) {
			return SerializationError{Reason: "cannot assign field into struct " + fv.Type().String()}
		}
		fv.Set(reflect.ValueOf(d))
	case reflect.Slice:
		rv := reflect.ValueOf(f.Value)
		if !rv.IsValid() || !rv.Type().AssignableTo(fv.Type()) {
			return SerializationError{Reason: "cannot assign field into " + fv.Type().String()}
		}
		fv.Set(rv)
	default:
		return SerializationError{Reason: "cannot assign field into " + fv.Type().String()}
	}
	return nil
}

func addressable(rv reflect.Value) reflect.Value {
	if rv.Kind() == reflect.Ptr {
		return rv
	}
	if rv.CanAddr() {
		return rv.Addr()
	}
	tmp := reflect.New(rv.Type())
	tmp.Elem().Set(rv)
	return tmp
}
