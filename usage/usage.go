// Package usage implements the per-resource usage log: a sorted,
// non-overlapping timeline of how a resource was touched across a frame,
// built by merging or appending usage records as passes are compiled.
package usage

import (
	"fmt"

	"github.com/gogpu/framegraph/resource"
)

// AccessKind is a sum of the ways a pass can touch a resource in one
// command range. Several bits may be set at once (e.g. shader-read-write).
type AccessKind uint32

const (
	AccessShaderRead AccessKind = 1 << iota
	AccessShaderWrite
	AccessShaderReadWrite
	AccessVertexBuffer
	AccessIndexBuffer
	AccessIndirectBuffer
	AccessConstantBuffer
	AccessRenderTargetColor
	AccessRenderTargetDepth
	AccessRenderTargetStencil
	AccessInputAttachment
	AccessBlitSource
	AccessBlitDestination
	AccessCPURead
	AccessCPUWrite
)

var accessNames = []struct {
	bit  AccessKind
	name string
}{
	{AccessShaderRead, "ShaderRead"},
	{AccessShaderWrite, "ShaderWrite"},
	{AccessShaderReadWrite, "ShaderReadWrite"},
	{AccessVertexBuffer, "VertexBuffer"},
	{AccessIndexBuffer, "IndexBuffer"},
	{AccessIndirectBuffer, "IndirectBuffer"},
	{AccessConstantBuffer, "ConstantBuffer"},
	{AccessRenderTargetColor, "RenderTargetColor"},
	{AccessRenderTargetDepth, "RenderTargetDepth"},
	{AccessRenderTargetStencil, "RenderTargetStencil"},
	{AccessInputAttachment, "InputAttachment"},
	{AccessBlitSource, "BlitSource"},
	{AccessBlitDestination, "BlitDestination"},
	{AccessCPURead, "CPURead"},
	{AccessCPUWrite, "CPUWrite"},
}

// writeKinds is the subset of AccessKind that constitutes a write for the
// purposes of the pass compiler's dependency analysis.
const writeKinds = AccessShaderWrite | AccessShaderReadWrite |
	AccessRenderTargetColor | AccessRenderTargetDepth | AccessRenderTargetStencil |
	AccessBlitDestination | AccessCPUWrite

// IsWrite reports whether any bit of k is a write access.
func (k AccessKind) IsWrite() bool { return k&writeKinds != 0 }

// IsRead reports whether any bit of k is a read access. Read-write access
// is both a read and a write.
func (k AccessKind) IsRead() bool { return k&^writeKinds != 0 || k&AccessShaderReadWrite != 0 }

// Contains reports whether every bit set in other is also set in k.
func (k AccessKind) Contains(other AccessKind) bool { return k&other == other }

func (k AccessKind) String() string {
	if k == 0 {
		return "None"
	}
	s := ""
	for _, e := range accessNames {
		if k&e.bit != 0 {
			if s != "" {
				s += "|"
			}
			s += e.name
		}
	}
	return s
}

// Stages is a bitset over the shader/pipeline stages that performed an
// access.
type Stages uint16

const (
	StageVertex Stages = 1 << iota
	StageFragment
	StageCompute
	StageTile
	StageMesh
	StageObject
	StageBlit
	StageExternal
)

func (s Stages) String() string {
	names := []struct {
		bit  Stages
		name string
	}{
		{StageVertex, "Vertex"}, {StageFragment, "Fragment"}, {StageCompute, "Compute"},
		{StageTile, "Tile"}, {StageMesh, "Mesh"}, {StageObject, "Object"},
		{StageBlit, "Blit"}, {StageExternal, "External"},
	}
	out := ""
	for _, n := range names {
		if s&n.bit != 0 {
			if out != "" {
				out += "|"
			}
			out += n.name
		}
	}
	if out == "" {
		return "None"
	}
	return out
}

// CommandRange is a half-open [Lo, Hi) range of command indices within a
// pass's (later, the schedule's) command stream.
type CommandRange struct {
	Lo, Hi int
}

// Len reports the number of commands covered.
func (r CommandRange) Len() int { return r.Hi - r.Lo }

// contiguousWith reports whether next picks up exactly where r ends.
func (r CommandRange) contiguousWith(next CommandRange) bool { return next.Lo == r.Hi }

// Shift returns r translated by delta, used when rebasing pass-local
// command indices into the schedule's global range.
func (r CommandRange) Shift(delta int) CommandRange { return CommandRange{r.Lo + delta, r.Hi + delta} }

// Mask is the subset of subresources a usage record applies to. It is
// satisfied by *resource.TextureMask and *resource.BufferMask; both
// support Union/Intersects with a same-type peer and IsEmpty/IsFull.
type Mask interface {
	IsEmpty() bool
	IsFull() bool
}

// Record is one entry of a resource's usage timeline:
// (resource, pass-index, command-range, access-kind, stages, subresource-mask).
type Record struct {
	Resource  resource.Handle
	PassIndex int
	Range     CommandRange
	Access    AccessKind
	Stages    Stages
	Mask      Mask
}

// sameShape reports whether a and b have identical access-kind, stages and
// subresource-mask, i.e. they are candidates for range-merging.
func sameShape(a, b Record) bool {
	if a.Access != b.Access || a.Stages != b.Stages {
		return false
	}
	return maskEqual(a.Mask, b.Mask)
}

func maskEqual(a, b Mask) bool {
	switch am := a.(type) {
	case *resource.TextureMask:
		bm, ok := b.(*resource.TextureMask)
		return ok && am.Equal(bm)
	case *resource.BufferMask:
		bm, ok := b.(*resource.BufferMask)
		return ok && am.Equal(bm)
	default:
		return a == b
	}
}

// Timeline is the per-resource sorted, non-overlapping usage list.
type Timeline struct {
	Resource resource.Handle
	entries  []Record
}

// NewTimeline returns an empty timeline for the given resource.
func NewTimeline(h resource.Handle) *Timeline {
	return &Timeline{Resource: h}
}

// Entries returns the timeline's current entries in command order.
func (t *Timeline) Entries() []Record { return t.entries }

// MergeOrAppend extends the last entry's command-range if it has
// identical access-kind, stages and subresource-mask and is contiguous
// with rec; otherwise it appends rec as a new entry. This is the
// compiler's only write path into a resource's timeline, called once
// per surviving usage during command-index rebasing.
func (t *Timeline) MergeOrAppend(rec Record) {
	if n := len(t.entries); n > 0 {
		last := &t.entries[n-1]
		if sameShape(*last, rec) && last.Range.contiguousWith(rec.Range) {
			last.Range.Hi = rec.Range.Hi
			return
		}
	}
	t.entries = append(t.entries, rec)
}

func (t *Timeline) String() string {
	return fmt.Sprintf("Timeline{%s, %d entries}", t.Resource, len(t.entries))
}

// Log is the per-frame collection of timelines, one per touched resource.
// It is the sole input a backend needs for barrier synthesis.
type Log struct {
	timelines map[resource.Handle]*Timeline
}

// NewLog returns an empty usage log.
func NewLog() *Log {
	return &Log{timelines: make(map[resource.Handle]*Timeline)}
}

// MergeOrAppend routes rec to the timeline for its resource, creating one
// on first use.
func (l *Log) MergeOrAppend(rec Record) {
	t, ok := l.timelines[rec.Resource]
	if !ok {
		t = NewTimeline(rec.Resource)
		l.timelines[rec.Resource] = t
	}
	t.MergeOrAppend(rec)
}

// Timeline returns the timeline for h, or nil if h was never touched.
func (l *Log) Timeline(h resource.Handle) *Timeline { return l.timelines[h] }

// ForEach calls f for every resource with a non-empty timeline.
func (l *Log) ForEach(f func(resource.Handle, *Timeline)) {
	for h, t := range l.timelines {
		f(h, t)
	}
}
