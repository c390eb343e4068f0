package fudge

import (
	"reflect"
	"sync"
)

// Surrogate adapts a runtime Go type to/from a Message (spec.md §4.7).
// Serialize receives the dereferenced value to encode (never a nil
// pointer/interface — the caller handles that); Deserialize must call
// ctx.Register(refID, obj) before following any member that might cycle
// back to obj, and returns the constructed object.
type Surrogate interface {
	Serialize(obj reflect.Value, msg *Message, ctx *SerializationContext) error
	Deserialize(msg *Message, ctx *DeserializationContext, hint reflect.Type, refID int) (reflect.Value, error)
}

// UserHookSerializer is the explicit write-side hook capability (spec.md
// §4.7 #1), preferred over every other surrogate when implemented.
type UserHookSerializer interface {
	FudgeSerialize(msg *Message, ctx *SerializationContext) error
}

// UserHookDeserializer is the read-side counterpart.
type UserHookDeserializer interface {
	FudgeDeserialize(msg *Message, ctx *DeserializationContext) error
}

// ClassicInfoWriter is the classic name/value bag write capability (spec.md
// §4.7 #2): the type writes its own properties into a ClassicInfoBag
// instead of exposing them for reflection.
type ClassicInfoWriter interface {
	FudgeWriteInfo(info *ClassicInfoBag)
}

// ClassicInfoReader applies a populated bag to a freshly allocated,
// already-registered instance, taking the place of a constructor the
// deserializer can't call directly without breaking the
// register-before-recurse cycle rule.
type ClassicInfoReader interface {
	FudgeApplyInfo(info *ClassicInfoBag, ctx *DeserializationContext) error
}

var (
	userHookSerializerType = reflect.TypeOf((*UserHookSerializer)(nil)).Elem()
	classicInfoWriterType  = reflect.TypeOf((*ClassicInfoWriter)(nil)).Elem()
)

type typeEntry struct {
	names     []string
	surrogate Surrogate
}

// TypeMap maps runtime types to surrogates and type-name strings, and
// resolves type-name strings back to runtime types on read (spec.md §4.7,
// §4.8 step 3). Register and RegisterNames change this TypeMap in place;
// there is no copy-on-write. Lookups, explicit registrations and the
// auto-detected entries it fills lazily are all guarded by one
// sync.RWMutex, the same kind of guard the bean property cache uses.
type TypeMap struct {
	mu            sync.RWMutex
	byType        map[reflect.Type]*typeEntry
	byName        map[string]reflect.Type
	overrideNames map[reflect.Type][]string
}

// NewTypeMap returns an empty TypeMap. Types not explicitly registered are
// resolved automatically the first time they're serialized, using the
// selection order spec.md §4.7 describes: user-hook, then classic-info,
// then list/dictionary (by Go kind), then bean as the default.
func NewTypeMap() *TypeMap {
	return &TypeMap{
		byType:        make(map[reflect.Type]*typeEntry),
		byName:        make(map[string]reflect.Type),
		overrideNames: make(map[reflect.Type][]string),
	}
}

var defaultTypeMap = NewTypeMap()

// Register installs an explicit surrogate for rt, with names (most
// specific first) used for the type-id field. If names is empty, rt's
// reflect.Type.String() is used.
func (tm *TypeMap) Register(rt reflect.Type, s Surrogate, names ...string) {
	if len(names) == 0 {
		names = []string{rt.String()}
	}
	e := &typeEntry{names: names, surrogate: s}
	tm.mu.Lock()
	tm.byType[rt] = e
	for _, n := range names {
		tm.byName[n] = rt
	}
	tm.mu.Unlock()
}

// RegisterNames overrides the type-id names used for rt without changing
// which surrogate auto-detection would otherwise pick for it.
func (tm *TypeMap) RegisterNames(rt reflect.Type, names ...string) {
	tm.mu.Lock()
	tm.overrideNames[rt] = names
	for _, n := range names {
		tm.byName[n] = rt
	}
	tm.mu.Unlock()
}

// ResolveName looks up a runtime type by one of its registered type-id
// names (spec.md §4.8 step 3).
func (tm *TypeMap) ResolveName(name string) (reflect.Type, bool) {
	tm.mu.RLock()
	defer tm.mu.RUnlock()
	rt, ok := tm.byName[name]
	return rt, ok
}

// entryFor resolves rt to its type entry, auto-detecting a surrogate by
// interface capability or Go kind when nothing was explicitly registered.
func (tm *TypeMap) entryFor(rt reflect.Type) *typeEntry {
	tm.mu.RLock()
	e, ok := tm.byType[rt]
	tm.mu.RUnlock()
	if ok {
		return e
	}

	names := tm.namesFor(rt)
	e = &typeEntry{names: names, surrogate: autoSurrogateFor(rt)}

	tm.mu.Lock()
	if existing, ok := tm.byType[rt]; ok {
		e = existing
	} else {
		tm.byType[rt] = e
		for _, n := range names {
			if _, exists := tm.byName[n]; !exists {
				tm.byName[n] = rt
			}
		}
	}
	tm.mu.Unlock()
	return e
}

func (tm *TypeMap) namesFor(rt reflect.Type) []string {
	tm.mu.RLock()
	n, ok := tm.overrideNames[rt]
	tm.mu.RUnlock()
	if ok {
		return n
	}
	return []string{rt.String()}
}

func autoSurrogateFor(rt reflect.Type) Surrogate {
	if rt.Implements(userHookSerializerType) || reflect.PtrTo(rt).Implements(userHookSerializerType) {
		return userHookSurrogate{}
	}
	if rt.Implements(classicInfoWriterType) || reflect.PtrTo(rt).Implements(classicInfoWriterType) {
		return classicInfoSurrogate{}
	}
	switch rt.Kind() {
	case reflect.Map:
		return dictionarySurrogate{}
	case reflect.Slice, reflect.Array:
		return listSurrogate{}
	default:
		return beanSurrogate{}
	}
}

// ClassicInfoBag is the ordered name/value bag a ClassicInfoWriter fills
// and a ClassicInfoReader consumes (spec.md §4.7 #2).
type ClassicInfoBag struct {
	entries []classicInfoEntry
}

type classicInfoEntry struct {
	Name  string
	Value interface{}
}

// Add appends a name/value pair in write order.
func (b *ClassicInfoBag) Add(name string, value interface{}) {
	b.entries = append(b.entries, classicInfoEntry{Name: name, Value: value})
}

// Get returns the first value registered under name.
func (b *ClassicInfoBag) Get(name string) (interface{}, bool) {
	for _, e := range b.entries {
		if e.Name == name {
			return e.Value, true
		}
	}
	return nil, false
}

// Len reports how many pairs the bag holds.
func (b *ClassicInfoBag) Len() int { return len(b.entries) }
