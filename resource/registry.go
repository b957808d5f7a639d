package resource

import (
	"errors"
	"sync"
	"sync/atomic"
)

// Errors returned by registry lookups.
var (
	// ErrInvalidHandle is returned for a zero or wrong-kind handle.
	ErrInvalidHandle = errors.New("resource: invalid handle")
	// ErrStaleFrame is returned when a transient handle is used outside
	// the frame that created it.
	ErrStaleFrame = errors.New("resource: transient handle used across frames")
	// ErrGenerationMismatch is returned when a handle's generation no
	// longer matches the live occupant of its slot.
	ErrGenerationMismatch = errors.New("resource: generation mismatch, resource was recycled")
	// ErrNotFound is returned when a handle's slot was never allocated
	// or has since been disposed.
	ErrNotFound = errors.New("resource: not found")
)

// ItemsPerChunk is the fixed size of one persistent-registry chunk.
const ItemsPerChunk = 1024

// TransientRegistry holds resources scoped to one live frame graph.
// Reset reserves capacityHint slots at frame start; Allocate grows past
// them when needed, and indices stay dense. Using a handle allocated by
// a previous frame is detected via the low 16 bits of frameID (stored in
// the handle's registry-index field) and reported as ErrStaleFrame.
type TransientRegistry[T any] struct {
	kind    Kind
	mu      sync.Mutex
	frameID uint32
	slots   []transientSlot[T]
	free    []uint32
}

type transientSlot[T any] struct {
	value      T
	generation uint32
	valid      bool
}

// NewTransientRegistry creates a registry for resources of the given kind.
func NewTransientRegistry[T any](kind Kind) *TransientRegistry[T] {
	return &TransientRegistry[T]{kind: kind}
}

// Reset prepares the registry for a new frame: every previously valid
// slot is invalidated and the registry is stamped with frameID so stale
// cross-frame handles can be detected.
func (r *TransientRegistry[T]) Reset(frameID uint32, capacityHint int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.frameID = frameID
	r.slots = make([]transientSlot[T], 0, capacityHint)
	r.free = r.free[:0]
}

// Allocate reserves a fresh slot (reusing a disposed one if available)
// and returns its handle.
func (r *TransientRegistry[T]) Allocate(value T) Handle {
	r.mu.Lock()
	defer r.mu.Unlock()

	if n := len(r.free); n > 0 {
		idx := r.free[n-1]
		r.free = r.free[:n-1]
		slot := &r.slots[idx]
		slot.generation++
		slot.value = value
		slot.valid = true
		return NewHandle(r.kind, LifetimeTransient, r.frameID, slot.generation, idx)
	}

	idx := uint32(len(r.slots))
	r.slots = append(r.slots, transientSlot[T]{value: value, generation: 1, valid: true})
	return NewHandle(r.kind, LifetimeTransient, r.frameID, 1, idx)
}

// validate checks kind/lifetime/frame/generation, returning the slot
// index on success.
func (r *TransientRegistry[T]) validate(h Handle) (uint32, error) {
	if h.IsZero() || h.Kind() != r.kind || h.Lifetime() != LifetimeTransient {
		return 0, ErrInvalidHandle
	}
	if h.RegistryIndex() != r.frameID&uint32(registryMask) {
		return 0, ErrStaleFrame
	}
	idx := h.Index()
	if int(idx) >= len(r.slots) {
		return 0, ErrNotFound
	}
	slot := &r.slots[idx]
	if !slot.valid {
		return 0, ErrNotFound
	}
	if slot.generation != h.Generation() {
		return 0, ErrGenerationMismatch
	}
	return idx, nil
}

// Get returns the resource for h.
func (r *TransientRegistry[T]) Get(h Handle) (T, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var zero T
	idx, err := r.validate(h)
	if err != nil {
		return zero, err
	}
	return r.slots[idx].value, nil
}

// Dispose marks h's slot free for reuse within this same frame.
func (r *TransientRegistry[T]) Dispose(h Handle) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx, err := r.validate(h)
	if err != nil {
		return err
	}
	var zero T
	r.slots[idx].value = zero
	r.slots[idx].valid = false
	r.free = append(r.free, idx)
	return nil
}

// Capacity returns the dense slot count reserved so far this frame.
func (r *TransientRegistry[T]) Capacity() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.slots)
}

// persistentChunk is one fixed-size block of a chunked persistent registry.
type persistentChunk[T any] struct {
	slots [ItemsPerChunk]persistentSlot[T]
}

type persistentSlot[T any] struct {
	value      T
	generation uint32
	valid      bool
}

// PersistentRegistry holds resources that live across frames. Storage is
// chunked so reads never need a lock once a chunk has been published;
// growth beyond the current chunk count briefly takes a registry-wide
// mutex to append a new chunk.
type PersistentRegistry[T any] struct {
	kind      Kind
	growMu    sync.Mutex
	freeMu    sync.Mutex
	chunks    atomic.Pointer[[]*persistentChunk[T]]
	free      []uint32
	nextIndex uint32
}

// NewPersistentRegistry creates a registry for resources of the given kind.
func NewPersistentRegistry[T any](kind Kind) *PersistentRegistry[T] {
	reg := &PersistentRegistry[T]{kind: kind}
	empty := make([]*persistentChunk[T], 0)
	reg.chunks.Store(&empty)
	return reg
}

func (r *PersistentRegistry[T]) chunkFor(idx uint32) *persistentChunk[T] {
	chunks := *r.chunks.Load()
	chunkIdx := idx / ItemsPerChunk
	if int(chunkIdx) >= len(chunks) {
		return nil
	}
	return chunks[chunkIdx]
}

// growTo ensures a chunk exists to hold idx, appending one under growMu
// if necessary.
func (r *PersistentRegistry[T]) growTo(idx uint32) *persistentChunk[T] {
	chunkIdx := idx / ItemsPerChunk
	if c := r.chunkFor(idx); c != nil {
		return c
	}
	r.growMu.Lock()
	defer r.growMu.Unlock()
	chunks := *r.chunks.Load()
	if int(chunkIdx) < len(chunks) {
		return chunks[chunkIdx]
	}
	grown := make([]*persistentChunk[T], len(chunks), chunkIdx+1)
	copy(grown, chunks)
	for uint32(len(grown)) <= chunkIdx {
		grown = append(grown, &persistentChunk[T]{})
	}
	r.chunks.Store(&grown)
	return grown[chunkIdx]
}

// Allocate reserves a slot (reusing a disposed one if available).
func (r *PersistentRegistry[T]) Allocate(value T) Handle {
	r.freeMu.Lock()
	var idx uint32
	if n := len(r.free); n > 0 {
		idx = r.free[n-1]
		r.free = r.free[:n-1]
	} else {
		idx = r.nextIndex
		r.nextIndex++
	}
	r.freeMu.Unlock()

	chunk := r.growTo(idx)
	slot := &chunk.slots[idx%ItemsPerChunk]
	slot.generation++
	slot.value = value
	slot.valid = true
	return NewHandle(r.kind, LifetimePersistent, 0, slot.generation, idx)
}

func (r *PersistentRegistry[T]) validate(h Handle) (*persistentSlot[T], error) {
	if h.IsZero() || h.Kind() != r.kind || h.Lifetime() != LifetimePersistent {
		return nil, ErrInvalidHandle
	}
	chunk := r.chunkFor(h.Index())
	if chunk == nil {
		return nil, ErrNotFound
	}
	slot := &chunk.slots[h.Index()%ItemsPerChunk]
	if !slot.valid {
		return nil, ErrNotFound
	}
	if slot.generation != h.Generation() {
		return nil, ErrGenerationMismatch
	}
	return slot, nil
}

// Get returns the resource for h. Safe to call concurrently with other
// Get/Allocate calls without holding a lock on the hot path.
func (r *PersistentRegistry[T]) Get(h Handle) (T, error) {
	var zero T
	slot, err := r.validate(h)
	if err != nil {
		return zero, err
	}
	return slot.value, nil
}

// Dispose marks h's slot free; the generation bumps on the next Allocate
// that reuses the slot.
func (r *PersistentRegistry[T]) Dispose(h Handle) error {
	slot, err := r.validate(h)
	if err != nil {
		return err
	}
	var zero T
	slot.value = zero
	slot.valid = false
	r.freeMu.Lock()
	r.free = append(r.free, h.Index())
	r.freeMu.Unlock()
	return nil
}
