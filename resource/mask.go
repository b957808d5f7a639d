package resource

import (
	"sort"

	"github.com/gogpu/framegraph/internal/num"
)

// TextureMask is a compact bitset over (slice, mip-level) pairs of a
// texture. Bit index is slice*mipLevels + mip. A mask with full set
// denotes fullResource ("all subresources") without needing to know the
// slice/mip extents up front.
type TextureMask struct {
	mipLevels int
	bits      []uint64
	full      bool
}

// NewTextureMask returns an empty mask for a texture with the given
// number of mip levels.
func NewTextureMask(mipLevels int) *TextureMask {
	if mipLevels < 1 {
		mipLevels = 1
	}
	return &TextureMask{mipLevels: mipLevels}
}

// FullTextureMask returns a mask denoting every subresource of a texture
// with the given number of mip levels.
func FullTextureMask(mipLevels int) *TextureMask {
	m := NewTextureMask(mipLevels)
	m.full = true
	return m
}

func (m *TextureMask) bitIndex(slice, mip int) int { return slice*m.mipLevels + mip }

func (m *TextureMask) ensure(n int) {
	need := n/64 + 1
	for len(m.bits) < need {
		m.bits = append(m.bits, 0)
	}
}

// Set marks the (slice, mip) subresource as included in the mask.
func (m *TextureMask) Set(slice, mip int) {
	if m.full {
		return
	}
	idx := m.bitIndex(slice, mip)
	m.ensure(idx)
	m.bits[idx/64] |= 1 << uint(idx%64)
}

// IsSet reports whether the (slice, mip) subresource is included.
func (m *TextureMask) IsSet(slice, mip int) bool {
	if m.full {
		return true
	}
	idx := m.bitIndex(slice, mip)
	word := idx / 64
	if word >= len(m.bits) {
		return false
	}
	return m.bits[word]&(1<<uint(idx%64)) != 0
}

// IsEmpty reports whether no subresource is included.
func (m *TextureMask) IsEmpty() bool {
	if m.full {
		return false
	}
	for _, w := range m.bits {
		if w != 0 {
			return false
		}
	}
	return true
}

// IsFull reports whether the mask denotes fullResource.
func (m *TextureMask) IsFull() bool { return m.full }

// Equal reports whether m and other cover exactly the same subresources.
func (m *TextureMask) Equal(other *TextureMask) bool {
	if m.full || other.full {
		return m.full == other.full
	}
	n := num.Max(len(m.bits), len(other.bits))
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(m.bits) {
			a = m.bits[i]
		}
		if i < len(other.bits) {
			b = other.bits[i]
		}
		if a != b {
			return false
		}
	}
	return true
}

// UnionWith returns a new mask containing every subresource set in either
// m or other. Both masks must describe the same texture (same mip count).
func (m *TextureMask) UnionWith(other *TextureMask) *TextureMask {
	if m.full || other.full {
		return FullTextureMask(m.mipLevels)
	}
	out := NewTextureMask(m.mipLevels)
	n := num.Max(len(m.bits), len(other.bits))
	out.bits = make([]uint64, n)
	for i := 0; i < n; i++ {
		var a, b uint64
		if i < len(m.bits) {
			a = m.bits[i]
		}
		if i < len(other.bits) {
			b = other.bits[i]
		}
		out.bits[i] = a | b
	}
	return out
}

// Intersects reports whether m and other share any subresource.
func (m *TextureMask) Intersects(other *TextureMask) bool {
	if m.full && !other.IsEmpty() {
		return true
	}
	if other.full && !m.IsEmpty() {
		return true
	}
	n := num.Min(len(m.bits), len(other.bits))
	for i := 0; i < n; i++ {
		if m.bits[i]&other.bits[i] != 0 {
			return true
		}
	}
	return false
}

// ByteRange is a half-open [Offset, Offset+Length) span of a buffer.
type ByteRange struct {
	Offset uint64
	Length uint64
}

func (r ByteRange) end() uint64 { return r.Offset + r.Length }

// BufferMask is a sorted, disjoint set of byte ranges of a buffer, or the
// fullResource sentinel.
type BufferMask struct {
	ranges []ByteRange
	full   bool
}

// NewBufferMask returns an empty buffer mask.
func NewBufferMask() *BufferMask { return &BufferMask{} }

// FullBufferMask returns a mask denoting the entire buffer.
func FullBufferMask() *BufferMask { return &BufferMask{full: true} }

// SetRange adds [offset, offset+length) to the mask, merging with any
// overlapping or adjacent existing ranges to keep the list disjoint.
func (m *BufferMask) SetRange(offset, length uint64) {
	if m.full || length == 0 {
		return
	}
	all := append(m.ranges, ByteRange{Offset: offset, Length: length})
	sort.Slice(all, func(i, j int) bool { return all[i].Offset < all[j].Offset })

	merged := make([]ByteRange, 0, len(all))
	cur := all[0]
	for _, next := range all[1:] {
		if next.Offset <= cur.end() {
			if next.end() > cur.end() {
				cur.Length = next.end() - cur.Offset
			}
			continue
		}
		merged = append(merged, cur)
		cur = next
	}
	merged = append(merged, cur)
	m.ranges = merged
}

// IsEmpty reports whether the mask contains no bytes.
func (m *BufferMask) IsEmpty() bool { return !m.full && len(m.ranges) == 0 }

// IsFull reports whether the mask denotes fullResource.
func (m *BufferMask) IsFull() bool { return m.full }

// Equal reports whether m and other cover exactly the same byte ranges.
func (m *BufferMask) Equal(other *BufferMask) bool {
	if m.full || other.full {
		return m.full == other.full
	}
	if len(m.ranges) != len(other.ranges) {
		return false
	}
	for i, r := range m.ranges {
		if r != other.ranges[i] {
			return false
		}
	}
	return true
}

// Union returns a new mask containing every byte covered by m or other.
func (m *BufferMask) Union(other *BufferMask) *BufferMask {
	if m.full || other.full {
		return FullBufferMask()
	}
	out := NewBufferMask()
	for _, r := range m.ranges {
		out.SetRange(r.Offset, r.Length)
	}
	for _, r := range other.ranges {
		out.SetRange(r.Offset, r.Length)
	}
	return out
}

// Intersects reports whether m and other share any byte.
func (m *BufferMask) Intersects(other *BufferMask) bool {
	if m.full && !other.IsEmpty() {
		return true
	}
	if other.full && !m.IsEmpty() {
		return true
	}
	i, j := 0, 0
	for i < len(m.ranges) && j < len(other.ranges) {
		a, b := m.ranges[i], other.ranges[j]
		if a.end() <= b.Offset {
			i++
			continue
		}
		if b.end() <= a.Offset {
			j++
			continue
		}
		return true
	}
	return false
}
