package fudge

import (
	"reflect"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

type tagFixture struct {
	Visible string `fudge:"vis,omitempty"`
	Bare    int32
	Skipped string `fudge:"-"`
	hidden  string
}

func TestComputeBeanPropertiesHonorsTags(t *testing.T) {
	props := computeBeanProperties(reflect.TypeOf(tagFixture{}))
	require.Len(t, props, 2)
	require.Equal(t, "vis", props[0].name)
	require.True(t, props[0].omitEmpty)
	require.Equal(t, "Bare", props[1].name)
	require.False(t, props[1].omitEmpty)
}

func TestBeanCachePropertiesOfConcurrentFill(t *testing.T) {
	c := &beanCache{m: make(map[reflect.Type][]beanProperty)}
	rt := reflect.TypeOf(tagFixture{})

	var wg sync.WaitGroup
	results := make([][]beanProperty, 32)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i] = c.propertiesOf(rt)
		}(i)
	}
	wg.Wait()

	for _, r := range results {
		require.Equal(t, results[0], r)
	}
}

func TestTypeMapRegisterNamesOverridesAutoDetection(t *testing.T) {
	tm := NewTypeMap()
	rt := reflect.TypeOf(person{})
	tm.RegisterNames(rt, "example.Person", "legacy.Person")

	entry := tm.entryFor(rt)
	require.Equal(t, []string{"example.Person", "legacy.Person"}, entry.names)

	resolved, ok := tm.ResolveName("legacy.Person")
	require.True(t, ok)
	require.Equal(t, rt, resolved)
}
