// Package resourcemap implements the hybrid persistent/transient
// resource side-table: a single associative API that dispatches
// internally by resource.Handle.Lifetime() to either a chunked
// persistent store or a dense transient store indexed directly by
// handle index. Backends use it to attach per-resource state (image
// handles, memory allocations, fences) that this module never
// interprets.
package resourcemap

import "github.com/gogpu/framegraph/resource"

const itemsPerChunk = resource.ItemsPerChunk

// persistentEntry is one chunked-array slot: the handle that currently
// owns it (so a stale lookup can be rejected) and the attached value.
type persistentEntry[T any] struct {
	handle resource.Handle
	value  T
	set    bool
}

type persistentChunk[T any] struct {
	entries [itemsPerChunk]persistentEntry[T]
}

// transientEntry is one dense-array slot.
type transientEntry[T any] struct {
	handle resource.Handle
	value  T
	set    bool
}

// Map is the unified resource side-table. The zero value is an empty
// map ready for use; New returns one.
type Map[T any] struct {
	persistent []*persistentChunk[T]
	transient  []transientEntry[T]
}

// New returns an empty Map.
func New[T any]() *Map[T] {
	return &Map[T]{}
}

func (m *Map[T]) persistentChunk(idx uint32, grow bool) *persistentChunk[T] {
	chunkIdx := int(idx / itemsPerChunk)
	if chunkIdx < len(m.persistent) {
		return m.persistent[chunkIdx]
	}
	if !grow {
		return nil
	}
	for len(m.persistent) <= chunkIdx {
		m.persistent = append(m.persistent, &persistentChunk[T]{})
	}
	return m.persistent[chunkIdx]
}

// Set attaches value to h, growing backing storage as needed.
func (m *Map[T]) Set(h resource.Handle, value T) {
	if h.Lifetime() == resource.LifetimePersistent {
		chunk := m.persistentChunk(h.Index(), true)
		chunk.entries[h.Index()%itemsPerChunk] = persistentEntry[T]{handle: h, value: value, set: true}
		return
	}
	idx := int(h.Index())
	for len(m.transient) <= idx {
		m.transient = append(m.transient, transientEntry[T]{})
	}
	m.transient[idx] = transientEntry[T]{handle: h, value: value, set: true}
}

// Get returns the value attached to h and whether one was found. A
// handle whose generation no longer matches the stored entry's handle
// (the slot was recycled for a different resource) is reported as not
// found.
func (m *Map[T]) Get(h resource.Handle) (T, bool) {
	var zero T
	if h.Lifetime() == resource.LifetimePersistent {
		chunk := m.persistentChunk(h.Index(), false)
		if chunk == nil {
			return zero, false
		}
		e := &chunk.entries[h.Index()%itemsPerChunk]
		if !e.set || e.handle != h {
			return zero, false
		}
		return e.value, true
	}
	idx := int(h.Index())
	if idx >= len(m.transient) {
		return zero, false
	}
	e := &m.transient[idx]
	if !e.set || e.handle != h {
		return zero, false
	}
	return e.value, true
}

// Remove clears any value attached to h.
func (m *Map[T]) Remove(h resource.Handle) {
	var zero T
	if h.Lifetime() == resource.LifetimePersistent {
		chunk := m.persistentChunk(h.Index(), false)
		if chunk == nil {
			return
		}
		e := &chunk.entries[h.Index()%itemsPerChunk]
		if e.set && e.handle == h {
			*e = persistentEntry[T]{value: zero}
		}
		return
	}
	idx := int(h.Index())
	if idx >= len(m.transient) {
		return
	}
	e := &m.transient[idx]
	if e.set && e.handle == h {
		*e = transientEntry[T]{value: zero}
	}
}

// ResetTransient drops every transient entry, for reuse at the start of
// a new frame once the owning transient registries have been reset.
func (m *Map[T]) ResetTransient() {
	m.transient = m.transient[:0]
}

// WithValue looks up h and calls fn with a pointer to its value and
// whether it was already present, allowing construct-in-place
// semantics. If absent, fn is called against a zero value. Whatever
// value fn leaves is always stored back under h, even if fn did not
// change it.
func (m *Map[T]) WithValue(h resource.Handle, fn func(value *T, isInitialised bool)) {
	v, ok := m.Get(h)
	fn(&v, ok)
	m.Set(h, v)
}

// ForEach calls fn for every entry currently set, persistent entries
// first in chunk/slot order, then transient entries in index order.
func (m *Map[T]) ForEach(fn func(resource.Handle, T)) {
	for _, chunk := range m.persistent {
		for _, e := range chunk.entries {
			if e.set {
				fn(e.handle, e.value)
			}
		}
	}
	for _, e := range m.transient {
		if e.set {
			fn(e.handle, e.value)
		}
	}
}
