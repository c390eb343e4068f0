package fudge

import (
	"fmt"
	"reflect"
)

// userHookSurrogate defers entirely to a type's own FudgeSerialize/
// FudgeDeserialize methods (spec.md §4.7 #1).
type userHookSurrogate struct{}

func (userHookSurrogate) Serialize(rv reflect.Value, msg *Message, ctx *SerializationContext) error {
	target := addressable(rv)
	hook, ok := target.Interface().(UserHookSerializer)
	if !ok {
		return fmt.Errorf("fudge: %s has no FudgeSerialize method", rv.Type())
	}
	return hook.FudgeSerialize(msg, ctx)
}

func (userHookSurrogate) Deserialize(msg *Message, ctx *DeserializationContext, hint reflect.Type, refID int) (reflect.Value, error) {
	if hint.Kind() == reflect.Ptr {
		hint = hint.Elem()
	}
	ptr := reflect.New(hint)
	ctx.Register(refID, ptr)
	hook, ok := ptr.Interface().(UserHookDeserializer)
	if !ok {
		return reflect.Value{}, fmt.Errorf("fudge: %s has no FudgeDeserialize method", hint)
	}
	if err := hook.FudgeDeserialize(msg, ctx); err != nil {
		return reflect.Value{}, err
	}
	return ptr, nil
}

// classicInfoSurrogate serializes via a ClassicInfoBag instead of
// reflecting over struct fields directly (spec.md §4.7 #2): the object
// writes its own (name, value) pairs; on read, an instance is allocated
// and registered before the bag is populated and handed to
// FudgeApplyInfo, so a cyclic reference back to this object during
// FudgeApplyInfo resolves to the same (still-being-filled) instance.
type classicInfoSurrogate struct{}

func (classicInfoSurrogate) Serialize(rv reflect.Value, msg *Message, ctx *SerializationContext) error {
	target := addressable(rv)
	w, ok := target.Interface().(ClassicInfoWriter)
	if !ok {
		return fmt.Errorf("fudge: %s has no FudgeWriteInfo method", rv.Type())
	}
	bag := &ClassicInfoBag{}
	w.FudgeWriteInfo(bag)
	for _, e := range bag.entries {
		f, err := ctx.fieldFor(e.Name, true, 0, false, reflect.ValueOf(e.Value))
		if err != nil {
			return err
		}
		msg.AddField(f)
	}
	return nil
}

func (classicInfoSurrogate) Deserialize(msg *Message, ctx *DeserializationContext, hint reflect.Type, refID int) (reflect.Value, error) {
	if hint.Kind() == reflect.Ptr {
		hint = hint.Elem()
	}
	ptr := reflect.New(hint)
	ctx.Register(refID, ptr)

	bag := &ClassicInfoBag{}
	for _, f := range msg.Fields() {
		if f.HasOrdinal && f.Ordinal == -1 {
			continue
		}
		if !f.HasName {
			continue
		}
		v, err := ctx.valueOf(f)
		if err != nil {
			return reflect.Value{}, err
		}
		bag.Add(f.Name, v)
	}

	reader, ok := ptr.Interface().(ClassicInfoReader)
	if !ok {
		return reflect.Value{}, fmt.Errorf("fudge: %s has no FudgeApplyInfo method", hint)
	}
	if err := reader.FudgeApplyInfo(bag, ctx); err != nil {
		return reflect.Value{}, err
	}
	return ptr, nil
}

// listSurrogate serializes a slice or array as repeated fields at
// ordinal 1, in element order (spec.md §4.7 #3).
//
// Go slices are not stable-identity the way pointers and maps are: append
// can reallocate the backing array, so a cyclic back-reference captured
// mid-deserialize may observe a shorter slice header than the one
// ultimately returned. Cyclic sharing of slice-typed members is therefore
// best-effort; pointer-to-slice avoids the issue entirely.
type listSurrogate struct{}

func (listSurrogate) Serialize(rv reflect.Value, msg *Message, ctx *SerializationContext) error {
	for i := 0; i < rv.Len(); i++ {
		f, err := ctx.fieldFor("", false, 1, true, rv.Index(i))
		if err != nil {
			return err
		}
		msg.AddField(f)
	}
	return nil
}

func (listSurrogate) Deserialize(msg *Message, ctx *DeserializationContext, hint reflect.Type, refID int) (reflect.Value, error) {
	if hint.Kind() != reflect.Slice {
		return reflect.Value{}, fmt.Errorf("fudge: list surrogate needs a slice hint, got %s", hint)
	}
	out := reflect.MakeSlice(hint, 0, msg.Len())
	ctx.Register(refID, out)
	elemType := hint.Elem()
	for _, f := range msg.Fields() {
		if f.HasOrdinal && f.Ordinal == -1 {
			continue
		}
		ev := reflect.New(elemType).Elem()
		if err := ctx.assignField(ev, f, refID); err != nil {
			return reflect.Value{}, err
		}
		out = reflect.Append(out, ev)
	}
	ctx.Register(refID, out)
	return out, nil
}

// dictionarySurrogate serializes a map as two parallel field sequences —
// keys at ordinal 1, values at ordinal 2, both in one shared order taken
// from reflect's MapKeys (Go map iteration order, not insertion order) —
// and pairs them back up positionally on read, truncating to the
// shorter side if the two sequences ever disagree in length (spec.md
// §4.7 #3).
type dictionarySurrogate struct{}

func (dictionarySurrogate) Serialize(rv reflect.Value, msg *Message, ctx *SerializationContext) error {
	keys := rv.MapKeys()
	for _, k := range keys {
		f, err := ctx.fieldFor("", false, 1, true, k)
		if err != nil {
			return err
		}
		msg.AddField(f)
	}
	for _, k := range keys {
		f, err := ctx.fieldFor("", false, 2, true, rv.MapIndex(k))
		if err != nil {
			return err
		}
		msg.AddField(f)
	}
	return nil
}

func (dictionarySurrogate) Deserialize(msg *Message, ctx *DeserializationContext, hint reflect.Type, refID int) (reflect.Value, error) {
	if hint.Kind() != reflect.Map {
		return reflect.Value{}, fmt.Errorf("fudge: dictionary surrogate needs a map hint, got %s", hint)
	}
	out := reflect.MakeMap(hint)
	ctx.Register(refID, out)

	var keyFields, valFields []Field
	for _, f := range msg.Fields() {
		switch {
		case f.HasOrdinal && f.Ordinal == 1:
			keyFields = append(keyFields, f)
		case f.HasOrdinal && f.Ordinal == 2:
			valFields = append(valFields, f)
		}
	}
	n := len(keyFields)
	if len(valFields) < n {
		n = len(valFields)
	}
	keyType, valType := hint.Key(), hint.Elem()
	for i := 0; i < n; i++ {
		kv := reflect.New(keyType).Elem()
		if err := ctx.assignField(kv, keyFields[i], refID); err != nil {
			return reflect.Value{}, err
		}
		vv := reflect.New(valType).Elem()
		if err := ctx.assignField(vv, valFields[i], refID); err != nil {
			return reflect.Value{}, err
		}
		out.SetMapIndex(kv, vv)
	}
	return out, nil
}

// beanSurrogate is the default: struct fields named per beancache.go's
// `fudge:"name,omitempty"` tag convention, each written by its resolved
// name (spec.md §4.7 #4).
type beanSurrogate struct{}

func (beanSurrogate) Serialize(rv reflect.Value, msg *Message, ctx *SerializationContext) error {
	for _, p := range globalBeanCache.propertiesOf(rv.Type()) {
		fv := rv.Field(p.index)
		if p.omitEmpty && fv.IsZero() {
			continue
		}
		f, err := ctx.fieldFor(p.name, true, 0, false, fv)
		if err != nil {
			return err
		}
		msg.AddField(f)
	}
	return nil
}

func (beanSurrogate) Deserialize(msg *Message, ctx *DeserializationContext, hint reflect.Type, refID int) (reflect.Value, error) {
	if hint.Kind() == reflect.Ptr {
		hint = hint.Elem()
	}
	ptr := reflect.New(hint)
	ctx.Register(refID, ptr)
	elem := ptr.Elem()

	byName := make(map[string]beanProperty)
	for _, p := range globalBeanCache.propertiesOf(hint) {
		byName[p.name] = p
	}
	for _, f := range msg.Fields() {
		if f.HasOrdinal && f.Ordinal == -1 {
			continue
		}
		if !f.HasName {
			continue
		}
		p, ok := byName[f.Name]
		if !ok {
			continue
		}
		if err := ctx.assignField(elem.Field(p.index), f, refID); err != nil {
			return reflect.Value{}, err
		}
	}
	return ptr, nil
}
