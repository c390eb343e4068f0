package fudge

import (
	"reflect"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/require"
)

type person struct {
	Name    string  `fudge:"name"`
	Age     int32   `fudge:"age"`
	Friend  *person `fudge:"friend,omitempty"`
	private string
}

func TestBeanSurrogateRoundTrip(t *testing.T) {
	tm := NewTypeMap()
	bob := &person{Name: "Bob", Age: 40}
	alice := &person{Name: "Alice", Age: 37, Friend: bob}

	msg, err := Serialize(alice, nil, tm)
	require.NoError(t, err)

	out, err := DeserializeMessage(msg, reflect.TypeOf(alice), nil, tm)
	require.NoError(t, err)

	got := out.(*person)
	require.Equal(t, "Alice", got.Name)
	require.Equal(t, int32(37), got.Age)
	require.NotNil(t, got.Friend)
	require.Equal(t, "Bob", got.Friend.Name)

	// The bean surrogate never round-trips unexported fields, so compare
	// the whole graph with go-cmp rather than field-by-field, ignoring the
	// unexported `private` field wherever a *person appears in the tree.
	if diff := cmp.Diff(alice, got, cmpopts.IgnoreFields(person{}, "private")); diff != "" {
		t.Errorf("alice mismatch (-want +got):\n%s", diff)
	}
}

func TestBeanSurrogateCyclicReference(t *testing.T) {
	tm := NewTypeMap()
	a := &person{Name: "A"}
	b := &person{Name: "B"}
	a.Friend = b
	b.Friend = a

	msg, err := Serialize(a, nil, tm)
	require.NoError(t, err)

	out, err := DeserializeMessage(msg, reflect.TypeOf(a), nil, tm)
	require.NoError(t, err)

	got := out.(*person)
	require.Equal(t, "A", got.Name)
	require.Equal(t, "B", got.Friend.Name)
	require.Same(t, got, got.Friend.Friend)
}

func TestListSurrogateRoundTrip(t *testing.T) {
	tm := NewTypeMap()
	people := []person{{Name: "X", Age: 1}, {Name: "Y", Age: 2}}

	msg, err := Serialize(people, nil, tm)
	require.NoError(t, err)

	out, err := DeserializeMessage(msg, reflect.TypeOf(people), nil, tm)
	require.NoError(t, err)

	got := out.([]person)
	require.Len(t, got, 2)
	require.Equal(t, "X", got[0].Name)
	require.Equal(t, "Y", got[1].Name)
}

func TestDictionarySurrogateRoundTrip(t *testing.T) {
	tm := NewTypeMap()
	in := map[string]int32{"one": 1, "two": 2, "three": 3}

	msg, err := Serialize(in, nil, tm)
	require.NoError(t, err)

	out, err := DeserializeMessage(msg, reflect.TypeOf(in), nil, tm)
	require.NoError(t, err)

	require.Equal(t, in, out.(map[string]int32))
}

type widget struct {
	SKU   string
	Price float64
}

func (w *widget) FudgeWriteInfo(info *ClassicInfoBag) {
	info.Add("sku", w.SKU)
	info.Add("price", w.Price)
}

func (w *widget) FudgeApplyInfo(info *ClassicInfoBag, ctx *DeserializationContext) error {
	if v, ok := info.Get("sku"); ok {
		w.SKU = v.(string)
	}
	if v, ok := info.Get("price"); ok {
		w.Price = v.(float64)
	}
	return nil
}

func TestClassicInfoSurrogateRoundTrip(t *testing.T) {
	tm := NewTypeMap()
	in := &widget{SKU: "WX-9", Price: 19.99}

	msg, err := Serialize(in, nil, tm)
	require.NoError(t, err)

	out, err := DeserializeMessage(msg, reflect.TypeOf(in), nil, tm)
	require.NoError(t, err)

	got := out.(*widget)
	require.Equal(t, "WX-9", got.SKU)
	require.Equal(t, 19.99, got.Price)
}

type point struct {
	X, Y int32
}

func (p *point) FudgeSerialize(msg *Message, ctx *SerializationContext) error {
	msg.AddNamed("x", p.X)
	msg.AddNamed("y", p.Y)
	return nil
}

func (p *point) FudgeDeserialize(msg *Message, ctx *DeserializationContext) error {
	if x, ok := msg.GetInt("x"); ok {
		p.X = int32(x)
	}
	if y, ok := msg.GetInt("y"); ok {
		p.Y = int32(y)
	}
	return nil
}

func TestUserHookSurrogateRoundTrip(t *testing.T) {
	tm := NewTypeMap()
	in := &point{X: 3, Y: 4}

	msg, err := Serialize(in, nil, tm)
	require.NoError(t, err)

	out, err := DeserializeMessage(msg, reflect.TypeOf(in), nil, tm)
	require.NoError(t, err)

	got := out.(*point)
	require.Equal(t, int32(3), got.X)
	require.Equal(t, int32(4), got.Y)
}

func TestTypeIDDeltaReusesNames(t *testing.T) {
	tm := NewTypeMap()
	tm.RegisterNames(reflect.TypeOf(person{}), "example.Person")

	people := []*person{{Name: "A"}, {Name: "B"}, {Name: "C"}}

	msg, err := Serialize(people, nil, tm)
	require.NoError(t, err)

	// The first element's sub-message should carry the type name; every
	// later sibling of the same class should cite it by delta instead.
	first := msg.GetAllByOrdinal(1)[0].Sub
	second := msg.GetAllByOrdinal(1)[1].Sub
	firstType, _ := first.GetByOrdinal(-1)
	secondType, _ := second.GetByOrdinal(-1)
	require.Equal(t, TypeString, firstType.Type)
	require.Equal(t, TypeLong, secondType.Type)
}
