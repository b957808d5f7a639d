// Package encoder implements the typed encoder wrapper: a user-facing
// convenience layer over record.Recorder that diffs pipeline,
// depth-stencil, push-constant, and resource-set state against what was
// last bound and only re-emits the commands for what actually changed.
// It is purely a front end; every state change still goes through
// Recorder.RecordCommand/RecordUsage, so it introduces no capture
// mechanism of its own.
package encoder

import (
	"github.com/gogpu/framegraph/merge"
	"github.com/gogpu/framegraph/record"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

// MaxResourceSets is the number of argument-buffer/resource-set slots a
// pass reflection may bind.
const MaxResourceSets = 8

// FunctionRef names a shader entry point the reflection describes. The
// string is opaque to this package: it is whatever the backend's
// pipeline-reflection collaborator expects.
type FunctionRef string

// ResourceSet is anything that knows how to encode itself into an
// argument buffer and optionally perform direct bindings. Concrete set
// types are generated per-pass by the backend's reflection step, which
// is out of this module's scope; only the encoding contract lives here.
type ResourceSet interface {
	// Encode writes this set's bindings into the recorder as ordinary
	// commands/usages at the given resource-set index.
	Encode(r *record.Recorder, setIndex int) error
}

// PushConstants is a fixed-size value encoded as raw bytes so unchanged
// bytes can be detected without reflection.
type PushConstants interface {
	Bytes() []byte
}

// Reflection is the compile-time set of declarations naming a pass's
// vertex/fragment/compute functions. A pass that only dispatches compute
// work leaves Vertex/Fragment empty; one that only draws leaves Compute
// empty.
type Reflection struct {
	Vertex   FunctionRef
	Fragment FunctionRef
	Compute  FunctionRef
}

// PipelineDescriptor is the backend-opaque pipeline state a pass binds
// before issuing draw/dispatch commands. It is compared by value to
// detect changes; the only field read here is Reflection.Compute, which
// selects a compute rather than a render pipeline-state command.
type PipelineDescriptor struct {
	Reflection       Reflection
	FunctionConstants map[string]any
}

// DepthStencilDescriptor is the backend-opaque depth/stencil state.
type DepthStencilDescriptor struct {
	Data any
}

// dirtyBits tracks what changed since the last flush.
type dirtyBits struct {
	pipeline     bool
	depthStencil bool
	pushConstant bool
	sets         uint8 // bit i set => resource set i is dirty
}

func (d *dirtyBits) any() bool {
	return d.pipeline || d.depthStencil || d.pushConstant || d.sets != 0
}

// Encoder wraps a record.Recorder with dirty-flag state diffing for one
// draw or compute pass. Construct with New or NewForTarget; each pass
// owns its encoder, so it is not safe for concurrent use by multiple
// goroutines.
type Encoder struct {
	r *record.Recorder

	target           *merge.RenderTargetDescriptor
	targetRegistered bool

	pipeline      *PipelineDescriptor
	depthStencil  *DepthStencilDescriptor
	pushConst     PushConstants
	lastPushBytes []byte
	sets          [MaxResourceSets]ResourceSet

	dirty dirtyBits
}

// New wraps r for typed state diffing.
func New(r *record.Recorder) *Encoder {
	return &Encoder{r: r}
}

// NewForTarget wraps r for a draw pass rendering into target. Every
// present attachment is registered as a render-target usage at the first
// draw command, so the pass's written-resource set always covers its
// attachments without the callback declaring them by hand.
func NewForTarget(r *record.Recorder, target *merge.RenderTargetDescriptor) *Encoder {
	return &Encoder{r: r, target: target}
}

// registerTarget records one render-target usage per present attachment,
// anchored to the first draw command's index. Subsequent draws into the
// same target extend nothing; the usage merge in the compiler handles
// range growth.
func (e *Encoder) registerTarget(cmd int) error {
	if e.target == nil || e.targetRegistered {
		return nil
	}
	e.targetRegistered = true
	for _, a := range e.target.Color {
		if !a.Present {
			continue
		}
		if err := e.r.RecordUsage(a.Texture, usage.AccessRenderTargetColor, usage.StageFragment, resource.FullTextureMask(1), cmd); err != nil {
			return err
		}
	}
	if e.target.Depth.Present {
		if err := e.r.RecordUsage(e.target.Depth.Texture, usage.AccessRenderTargetDepth, usage.StageFragment, resource.FullTextureMask(1), cmd); err != nil {
			return err
		}
	}
	if e.target.Stencil.Present {
		if err := e.r.RecordUsage(e.target.Stencil.Texture, usage.AccessRenderTargetStencil, usage.StageFragment, resource.FullTextureMask(1), cmd); err != nil {
			return err
		}
	}
	return nil
}

// SetPipeline stages a new pipeline descriptor. It is marked dirty only
// if it differs from the currently staged one.
func (e *Encoder) SetPipeline(desc *PipelineDescriptor) {
	if e.pipeline != nil && samePipeline(e.pipeline, desc) {
		return
	}
	e.pipeline = desc
	e.dirty.pipeline = true
}

func samePipeline(a, b *PipelineDescriptor) bool {
	if a == b {
		return true
	}
	if b == nil {
		return false
	}
	return a.Reflection == b.Reflection && sameFunctionConstants(a.FunctionConstants, b.FunctionConstants)
}

func sameFunctionConstants(a, b map[string]any) bool {
	if len(a) != len(b) {
		return false
	}
	for k, v := range a {
		if bv, ok := b[k]; !ok || bv != v {
			return false
		}
	}
	return true
}

// SetDepthStencil stages a new depth-stencil descriptor.
func (e *Encoder) SetDepthStencil(desc *DepthStencilDescriptor) {
	if e.depthStencil != nil && desc != nil && e.depthStencil.Data == desc.Data {
		return
	}
	e.depthStencil = desc
	e.dirty.depthStencil = true
}

// SetResourceSet binds set at index, marking it dirty so it is
// re-encoded on the next flush. index must be in [0, MaxResourceSets).
func (e *Encoder) SetResourceSet(index int, set ResourceSet) {
	if index < 0 || index >= MaxResourceSets {
		return
	}
	e.sets[index] = set
	e.dirty.sets |= 1 << uint(index)
}

// SetPushConstants stages push-constant bytes. Only a byte-for-byte
// change marks them dirty.
func (e *Encoder) SetPushConstants(pc PushConstants) {
	next := pc.Bytes()
	if e.pushConst != nil && bytesEqual(e.lastPushBytes, next) {
		return
	}
	e.pushConst = pc
	e.dirty.pushConstant = true
}

func bytesEqual(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// flush issues the commands for whatever is dirty: depth-stencil, then
// pipeline (with function constants folded in), then each dirty
// resource set, then push constants.
func (e *Encoder) flush() error {
	if e.depthStencil != nil && e.dirty.depthStencil {
		if _, err := e.r.RecordCommand("setDepthStencilDescriptor", e.depthStencil); err != nil {
			return err
		}
		e.dirty.depthStencil = false
	}

	if e.pipeline != nil && e.dirty.pipeline {
		op := "setRenderPipelineState"
		if e.pipeline.Reflection.Compute != "" {
			op = "setComputePipelineState"
		}
		if _, err := e.r.RecordCommand(op, e.pipeline); err != nil {
			return err
		}
		e.dirty.pipeline = false
	}

	for i := 0; i < MaxResourceSets; i++ {
		if e.dirty.sets&(1<<uint(i)) == 0 {
			continue
		}
		set := e.sets[i]
		if set == nil {
			continue
		}
		if err := set.Encode(e.r, i); err != nil {
			return err
		}
		e.dirty.sets &^= 1 << uint(i)
	}

	if e.pushConst != nil && e.dirty.pushConstant {
		bytes := e.pushConst.Bytes()
		if _, err := e.r.RecordCommand("setPushConstants", bytes); err != nil {
			return err
		}
		e.lastPushBytes = append(e.lastPushBytes[:0], bytes...)
		e.dirty.pushConstant = false
	}

	return nil
}

// Draw flushes dirty state then records a draw command. For an encoder
// built with NewForTarget, the first draw also records the target's
// attachment usages.
func (e *Encoder) Draw(vertexCount, instanceCount, firstVertex, firstInstance uint32) error {
	if err := e.flush(); err != nil {
		return err
	}
	cmd, err := e.r.RecordCommand("draw", vertexCount, instanceCount, firstVertex, firstInstance)
	if err != nil {
		return err
	}
	return e.registerTarget(cmd)
}

// DrawIndexed flushes dirty state then records an indexed draw command.
func (e *Encoder) DrawIndexed(indexCount, instanceCount uint32, firstIndex int32, baseVertex int32, firstInstance uint32) error {
	if err := e.flush(); err != nil {
		return err
	}
	cmd, err := e.r.RecordCommand("drawIndexed", indexCount, instanceCount, firstIndex, baseVertex, firstInstance)
	if err != nil {
		return err
	}
	return e.registerTarget(cmd)
}

// Dispatch flushes dirty state then records a compute dispatch command.
func (e *Encoder) Dispatch(x, y, z uint32) error {
	if err := e.flush(); err != nil {
		return err
	}
	_, err := e.r.RecordCommand("dispatch", x, y, z)
	return err
}

// SetVertexBuffer records a vertex-buffer binding command plus its usage.
func (e *Encoder) SetVertexBuffer(slot uint32, h resource.Handle, offset uint64) error {
	cmd, err := e.r.RecordCommand("setVertexBuffer", slot, h, offset)
	if err != nil {
		return err
	}
	return e.r.RecordUsage(h, usage.AccessVertexBuffer, usage.StageVertex, resource.FullBufferMask(), cmd)
}

// SetIndexBuffer records an index-buffer binding command plus its usage.
func (e *Encoder) SetIndexBuffer(h resource.Handle, offset uint64) error {
	cmd, err := e.r.RecordCommand("setIndexBuffer", h, offset)
	if err != nil {
		return err
	}
	return e.r.RecordUsage(h, usage.AccessIndexBuffer, usage.StageVertex, resource.FullBufferMask(), cmd)
}

// HasPendingState reports whether any staged state has not yet been
// flushed by a Draw/Dispatch call, for diagnostics.
func (e *Encoder) HasPendingState() bool { return e.dirty.any() }
