// Package derive composes a read projection and a write back-projection over
// a writable store, exposing a second writable store over a part of its value.
//
//	type Filters struct {
//	    Category string
//	    Page     int
//	}
//	filters := store.New(Filters{Category: "all", Page: 1})
//
//	page := derive.Field(filters,
//	    func(f Filters) int { return f.Page },
//	    func(f Filters, p int) Filters { f.Page = p; return f },
//	)
//	page.Set(2) // filters is now {all 2}
//
// Back-projections never mutate the value they are given: Key clones the map
// and Field works on a struct copy, so values read earlier from the source
// stay valid after a write.
package derive

import (
	"maps"

	"github.com/vango-dev/urlstore/pkg/store"
)

// Projection maps a source value to a derived value and back.
//
// Read(Write(out, in)) must equal out for every pair the caller considers
// valid. The package does not check this.
type Projection[In, Out any] struct {
	Read  func(In) Out
	Write func(out Out, in In) In
}

type composed[In, Out any] struct {
	src  store.Writable[In]
	p    Projection[In, Out]
	view store.Readable[Out]
}

// Compose returns a writable view of src through p. Reads recompute
// p.Read whenever src changes. Set(out) writes p.Write(out, current) back to
// src, where current is src's value at the time of the call.
func Compose[In, Out any](src store.Writable[In], p Projection[In, Out], opts ...store.Option[Out]) store.Writable[Out] {
	return &composed[In, Out]{
		src:  src,
		p:    p,
		view: store.Derive(store.Readable[In](src), p.Read, opts...),
	}
}

func (c *composed[In, Out]) Subscribe(fn func(Out)) func() { return c.view.Subscribe(fn) }

func (c *composed[In, Out]) Current() Out { return c.p.Read(c.src.Current()) }

func (c *composed[In, Out]) Set(value Out) {
	c.src.Update(func(current In) In {
		return c.p.Write(value, current)
	})
}

func (c *composed[In, Out]) Update(fn func(Out) Out) {
	c.src.Update(func(current In) In {
		return c.p.Write(fn(c.p.Read(current)), current)
	})
}

// KeyOption configures Key.
type KeyOption func(*keyConfig)

type keyConfig struct {
	deleteZero bool
}

// DeleteZero removes the key from the map when the zero value is set,
// instead of storing it.
func DeleteZero() KeyOption {
	return func(c *keyConfig) {
		c.deleteZero = true
	}
}

// Key returns a writable view of one entry of a map-valued store. Writes
// replace only that entry on a copy of the map; sibling entries are shared
// unchanged.
func Key[K comparable, V any](src store.Writable[map[K]V], key K, opts ...KeyOption) store.Writable[V] {
	var cfg keyConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	return Compose(src, Projection[map[K]V, V]{
		Read: func(m map[K]V) V {
			return m[key]
		},
		Write: func(v V, m map[K]V) map[K]V {
			next := maps.Clone(m)
			if next == nil {
				next = make(map[K]V, 1)
			}
			if cfg.deleteZero && isZero(v) {
				delete(next, key)
				return next
			}
			next[key] = v
			return next
		},
	})
}

// Field returns a writable view of one field of a struct-valued store. set
// receives a copy of the current value and returns it with the field
// replaced.
func Field[S, V any](src store.Writable[S], get func(S) V, set func(S, V) S) store.Writable[V] {
	return Compose(src, Projection[S, V]{
		Read:  get,
		Write: func(v V, s S) S { return set(s, v) },
	})
}

func isZero[V any](v V) bool {
	var zero V
	return store.Equal(v, zero)
}
