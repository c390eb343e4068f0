package fudge

import (
	"reflect"
	"strings"
	"sync"
)

// beanProperty is one exported struct field the bean surrogate serializes,
// keyed by wire name. Grounded on the teacher's tagsCache (tagscache.go):
// same idea (a `fudge:"name,opts"` tag, falling back to the field name,
// `-` to skip), generalized from a tag-byte lookup to a wire-name lookup
// and made safe for concurrent use, since unlike the teacher's per-decoder
// cache this one is shared process-wide across independent encoders
// (SPEC_FULL.md §3).
type beanProperty struct {
	name      string
	index     int
	omitEmpty bool
}

type beanCache struct {
	mu sync.RWMutex
	m  map[reflect.Type][]beanProperty
}

var globalBeanCache = &beanCache{m: make(map[reflect.Type][]beanProperty)}

// propertiesOf returns the cached property table for struct type rt,
// computing and caching it on first use.
func (c *beanCache) propertiesOf(rt reflect.Type) []beanProperty {
	c.mu.RLock()
	props, ok := c.m[rt]
	c.mu.RUnlock()
	if ok {
		return props
	}

	props = computeBeanProperties(rt)

	c.mu.Lock()
	c.m[rt] = props
	c.mu.Unlock()
	return props
}

func computeBeanProperties(rt reflect.Type) []beanProperty {
	if rt.Kind() != reflect.Struct {
		return nil
	}
	var props []beanProperty
	for i := 0; i < rt.NumField(); i++ {
		f := rt.Field(i)
		if f.PkgPath != "" && !f.Anonymous {
			continue // unexported
		}
		name, opts := parseBeanTag(f.Tag.Get("fudge"))
		if name == "-" {
			continue
		}
		if name == "" {
			name = f.Name
		}
		props = append(props, beanProperty{name: name, index: i, omitEmpty: opts["omitempty"]})
	}
	return props
}

func parseBeanTag(tag string) (name string, opts map[string]bool) {
	if tag == "" {
		return "", nil
	}
	parts := strings.Split(tag, ",")
	opts = make(map[string]bool, len(parts)-1)
	for _, o := range parts[1:] {
		opts[o] = true
	}
	return parts[0], opts
}
