// Package merge implements the render-target mergeability predicate:
// whether two draw passes' render targets may be fused into one backend
// render pass, and the accumulating-descriptor merge itself.
package merge

import (
	"github.com/gogpu/framegraph/internal/num"
	"github.com/gogpu/framegraph/resource"
)

// ClearAction is one attachment slot's load behaviour at pass start.
type ClearAction uint8

const (
	ClearDiscard ClearAction = iota
	ClearKeep
	ClearClear
)

// ColorClearValue is the RGBA clear color used when ClearAction is
// ClearClear on a colour attachment.
type ColorClearValue struct{ R, G, B, A float64 }

// ColorClearOp is a colour attachment's clear encoding.
type ColorClearOp struct {
	Action ClearAction
	Value  ColorClearValue
}

// DepthClearOp is the depth attachment's clear encoding.
type DepthClearOp struct {
	Action ClearAction
	Value  float64
}

// StencilClearOp is the stencil attachment's clear encoding.
type StencilClearOp struct {
	Action ClearAction
	Value  uint32
}

// Attachment is a view onto a texture used by a draw pass: the texture
// plus the specific mip/slice/depth-plane, and an optional MSAA resolve
// target described the same way.
type Attachment struct {
	Present     bool
	Texture     resource.Handle
	MipLevel    uint32
	Slice       uint32
	DepthPlane  uint32
	Width       uint32
	Height      uint32
	ResolveTex  resource.Handle
	ResolveMip  uint32
	ResolveSlc  uint32
	ResolveDP   uint32
	HasResolve  bool
}

func (a Attachment) sizeShifted() (uint32, uint32) {
	return a.Width >> a.MipLevel, a.Height >> a.MipLevel
}

// sameView reports whether a and b address the identical subresource
// (texture/mip/slice/depth-plane) including a matching resolve target.
func (a Attachment) sameView(b Attachment) bool {
	if a.Texture != b.Texture || a.MipLevel != b.MipLevel || a.Slice != b.Slice || a.DepthPlane != b.DepthPlane {
		return false
	}
	if a.HasResolve != b.HasResolve {
		return false
	}
	if a.HasResolve {
		if a.ResolveTex != b.ResolveTex || a.ResolveMip != b.ResolveMip || a.ResolveSlc != b.ResolveSlc || a.ResolveDP != b.ResolveDP {
			return false
		}
	}
	return true
}

// MaxColorAttachments is the maximum number of colour attachment slots
// a render-target descriptor may use.
const MaxColorAttachments = 8

// RenderTargetDescriptor is the render-target shape bound to a draw
// pass: up to 8 colour attachments, depth, stencil, an optional
// visibility-result buffer, and an array length for layered rendering.
type RenderTargetDescriptor struct {
	Color   [MaxColorAttachments]Attachment
	Depth   Attachment
	Stencil Attachment

	VisibilityBuffer    resource.Handle
	HasVisibilityBuffer bool

	ArrayLength uint32

	ColorClear   [MaxColorAttachments]ColorClearOp
	DepthClear   DepthClearOp
	StencilClear StencilClearOp
}

// SizeOf returns the minimum (width, height) over every present
// attachment, accounting for mip shift.
func SizeOf(d *RenderTargetDescriptor) (width, height uint32) {
	first := true
	consider := func(a Attachment) {
		if !a.Present {
			return
		}
		w, h := a.sizeShifted()
		if first {
			width, height = w, h
			first = false
			return
		}
		width = num.Min(width, w)
		height = num.Min(height, h)
	}
	for _, c := range d.Color {
		consider(c)
	}
	consider(d.Depth)
	consider(d.Stencil)
	return width, height
}

// slotMergeable checks one pair of corresponding attachment slots
// (colour N, depth, or stencil) against the §4.6 rule: either side
// empty, or identical subresource+resolve and B's clear op is not
// ClearClear.
func slotMergeable(a, b Attachment, bClearsSlot bool) bool {
	if !a.Present || !b.Present {
		return true
	}
	if !a.sameView(b) {
		return false
	}
	return !bClearsSlot
}

// Mergeable reports whether draw passes A and B's render targets may be
// fused into one backend render pass.
func Mergeable(a, b *RenderTargetDescriptor) bool {
	shared := false
	for i := 0; i < MaxColorAttachments; i++ {
		if !slotMergeable(a.Color[i], b.Color[i], b.ColorClear[i].Action == ClearClear) {
			return false
		}
		if a.Color[i].Present && b.Color[i].Present {
			shared = true
		}
	}
	if !slotMergeable(a.Depth, b.Depth, b.DepthClear.Action == ClearClear) {
		return false
	}
	if a.Depth.Present && b.Depth.Present {
		shared = true
	}
	if !slotMergeable(a.Stencil, b.Stencil, b.StencilClear.Action == ClearClear) {
		return false
	}
	if a.Stencil.Present && b.Stencil.Present {
		shared = true
	}

	if !shared {
		return false
	}

	if a.HasVisibilityBuffer && b.HasVisibilityBuffer && a.VisibilityBuffer != b.VisibilityBuffer {
		return false
	}

	aw, ah := SizeOf(a)
	bw, bh := SizeOf(b)
	return aw == bw && ah == bh
}

// TryMerge mutates dst (an accumulating descriptor, initially a copy of
// the first pass) by filling any of its empty slots from src, validating
// Mergeable for the pairing beforehand. It reports whether the merge
// succeeded; dst is left unmodified on failure.
func TryMerge(dst *RenderTargetDescriptor, src *RenderTargetDescriptor) bool {
	if !Mergeable(dst, src) {
		return false
	}
	for i := 0; i < MaxColorAttachments; i++ {
		if !dst.Color[i].Present && src.Color[i].Present {
			dst.Color[i] = src.Color[i]
			dst.ColorClear[i] = src.ColorClear[i]
		}
	}
	if !dst.Depth.Present && src.Depth.Present {
		dst.Depth = src.Depth
		dst.DepthClear = src.DepthClear
	}
	if !dst.Stencil.Present && src.Stencil.Present {
		dst.Stencil = src.Stencil
		dst.StencilClear = src.StencilClear
	}
	if !dst.HasVisibilityBuffer && src.HasVisibilityBuffer {
		dst.VisibilityBuffer = src.VisibilityBuffer
		dst.HasVisibilityBuffer = true
	}
	dst.ArrayLength = num.Max(dst.ArrayLength, src.ArrayLength)
	return true
}
