// Package resource defines stable identity for persistent and transient
// GPU resources, their descriptors, and subresource masks.
package resource

import "fmt"

// Kind identifies the category of GPU object a Handle refers to.
type Kind uint8

const (
	KindBuffer Kind = iota
	KindTexture
	KindArgumentBuffer
	KindArgumentBufferArray
	KindHeap
	KindSampler
	KindAccelerationStructure
	KindVisibleFunctionTable
	KindIntersectionFunctionTable
)

func (k Kind) String() string {
	switch k {
	case KindBuffer:
		return "Buffer"
	case KindTexture:
		return "Texture"
	case KindArgumentBuffer:
		return "ArgumentBuffer"
	case KindArgumentBufferArray:
		return "ArgumentBufferArray"
	case KindHeap:
		return "Heap"
	case KindSampler:
		return "Sampler"
	case KindAccelerationStructure:
		return "AccelerationStructure"
	case KindVisibleFunctionTable:
		return "VisibleFunctionTable"
	case KindIntersectionFunctionTable:
		return "IntersectionFunctionTable"
	default:
		return fmt.Sprintf("Kind(%d)", uint8(k))
	}
}

// Lifetime distinguishes resources that persist across frames from
// resources scoped to a single frame graph.
type Lifetime uint8

const (
	LifetimeTransient Lifetime = iota
	LifetimePersistent
)

func (l Lifetime) String() string {
	if l == LifetimePersistent {
		return "Persistent"
	}
	return "Transient"
}

// Handle is an opaque 64-bit resource identity. It packs kind, lifetime,
// registry-index (the owning frame's transient slot, or the global
// persistent registry slot), generation (bumped when a slot is reused),
// and a dense index used to address side-tables.
//
// Two handles are equal iff all fields match, which holds for plain ==
// since the packed representation is canonical.
type Handle struct {
	raw uint64
}

// Bit layout, low to high: index(24) | generation(16) | registryIndex(16) | kind(4) | lifetime(1).
const (
	indexBits    = 24
	genBits      = 16
	registryBits = 16
	kindBits     = 4

	indexShift    = 0
	genShift      = indexShift + indexBits
	registryShift = genShift + genBits
	kindShift     = registryShift + registryBits
	lifetimeShift = kindShift + kindBits

	indexMask    = uint64(1)<<indexBits - 1
	genMask      = uint64(1)<<genBits - 1
	registryMask = uint64(1)<<registryBits - 1
	kindMask     = uint64(1)<<kindBits - 1
	lifetimeMask = uint64(1)
)

// NewHandle packs the given fields into a Handle. Generation should
// start at 1 so that the zero Handle is always invalid.
func NewHandle(kind Kind, lifetime Lifetime, registryIndex, generation, index uint32) Handle {
	raw := (uint64(index) & indexMask) << indexShift
	raw |= (uint64(generation) & genMask) << genShift
	raw |= (uint64(registryIndex) & registryMask) << registryShift
	raw |= (uint64(kind) & kindMask) << kindShift
	raw |= (uint64(lifetime) & lifetimeMask) << lifetimeShift
	return Handle{raw: raw}
}

func (h Handle) Kind() Kind         { return Kind((h.raw >> kindShift) & kindMask) }
func (h Handle) Lifetime() Lifetime { return Lifetime((h.raw >> lifetimeShift) & lifetimeMask) }
func (h Handle) RegistryIndex() uint32 {
	return uint32((h.raw >> registryShift) & registryMask)
}
func (h Handle) Generation() uint32 { return uint32((h.raw >> genShift) & genMask) }
func (h Handle) Index() uint32      { return uint32((h.raw >> indexShift) & indexMask) }

// IsZero reports whether the handle is the invalid zero value.
func (h Handle) IsZero() bool { return h.raw == 0 }

// Equal reports whether two handles refer to the same slot and generation.
func (h Handle) Equal(other Handle) bool { return h == other }

// SameSlot reports whether two handles address the same registry slot,
// ignoring generation. Used to detect use of a stale handle against a
// slot that has since been recycled.
func (h Handle) SameSlot(other Handle) bool {
	const slotMask = indexMask<<indexShift | registryMask<<registryShift | kindMask<<kindShift | lifetimeMask<<lifetimeShift
	return h.raw&slotMask == other.raw&slotMask
}

func (h Handle) String() string {
	return fmt.Sprintf("Handle{%s/%s reg=%d gen=%d idx=%d}",
		h.Kind(), h.Lifetime(), h.RegistryIndex(), h.Generation(), h.Index())
}
