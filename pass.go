// Package framegraph is the client-facing entry point: it wires the
// component packages together behind the pass-enqueuing and execute
// API. Everything here is a thin constructor over compile.PassRecord
// plus the frame.Graph methods; no new state lives in this package.
package framegraph

import (
	"github.com/gogpu/framegraph/compile"
	"github.com/gogpu/framegraph/encoder"
	"github.com/gogpu/framegraph/frame"
	"github.com/gogpu/framegraph/merge"
	"github.com/gogpu/framegraph/record"
	"github.com/gogpu/framegraph/resource"
)

// DrawTarget is the render-target descriptor a draw pass binds: up to 8
// colour attachments, depth, stencil, and their clear operations.
type DrawTarget = merge.RenderTargetDescriptor

// DrawCallback records a draw pass's commands through its typed encoder.
type DrawCallback func(e *encoder.Encoder) error

// ComputeCallback records a compute pass's commands through its typed
// encoder.
type ComputeCallback func(e *encoder.Encoder) error

// BlitCallback records a blit pass directly through the raw recorder: a
// blit has no pipeline/resource-set state for the typed encoder to diff.
type BlitCallback func(r *record.Recorder) error

// ExternalCallback records a pass whose commands are encoded by a
// collaborator outside this module (e.g. a third-party ray-tracing or
// video decode call); the raw recorder only captures its declared
// reads/writes and retained references.
type ExternalCallback func(r *record.Recorder) error

// CPUCallback runs host-side work with no GPU commands of its own. It
// always executes (its reads and writes can only be discovered by
// running it) and is dropped from the schedule once it has run, whether
// or not it survives cull.
type CPUCallback func() error

func newDrawRecord(name string, target *DrawTarget, reads, writes []resource.Handle, fn DrawCallback) *compile.PassRecord {
	return &compile.PassRecord{
		Kind:           compile.PassKindDraw,
		Name:           name,
		DeclaredReads:  reads,
		DeclaredWrites: writes,
		Mode:           record.DetermineExecutionMode(writes),
		RenderTarget:   target,
		Run: func(r *record.Recorder) error {
			if fn == nil {
				return nil
			}
			return fn(encoder.NewForTarget(r, target))
		},
	}
}

// AddDrawPass enqueues a draw pass rendering into target. reads/writes
// declare which resources besides the target's own attachments the pass
// touches (the attachments themselves are registered as render-target
// usages by the typed encoder's first Draw or DrawIndexed call in fn).
func AddDrawPass(g *frame.Graph, name string, target *DrawTarget, reads, writes []resource.Handle, fn DrawCallback) {
	g.AddPass(newDrawRecord(name, target, reads, writes, fn))
}

// AddReflectableDrawPass is AddDrawPass parameterised by a compile-time
// pass reflection value: fn receives the reflection alongside the
// encoder so it can bind
// pipeline state and resource sets the reflection names without a type
// assertion.
func AddReflectableDrawPass[R any](g *frame.Graph, name string, target *DrawTarget, reads, writes []resource.Handle, reflection R, fn func(e *encoder.Encoder, reflection R) error) {
	g.AddPass(newDrawRecord(name, target, reads, writes, func(e *encoder.Encoder) error {
		if fn == nil {
			return nil
		}
		return fn(e, reflection)
	}))
}

func newComputeRecord(name string, reads, writes []resource.Handle, fn ComputeCallback) *compile.PassRecord {
	return &compile.PassRecord{
		Kind:           compile.PassKindCompute,
		Name:           name,
		DeclaredReads:  reads,
		DeclaredWrites: writes,
		Mode:           record.DetermineExecutionMode(writes),
		Run: func(r *record.Recorder) error {
			e := encoder.New(r)
			if fn == nil {
				return nil
			}
			return fn(e)
		},
	}
}

// AddComputePass enqueues a compute pass.
func AddComputePass(g *frame.Graph, name string, reads, writes []resource.Handle, fn ComputeCallback) {
	g.AddPass(newComputeRecord(name, reads, writes, fn))
}

// AddReflectableComputePass is AddComputePass parameterised by a
// compile-time pass reflection value.
func AddReflectableComputePass[R any](g *frame.Graph, name string, reads, writes []resource.Handle, reflection R, fn func(e *encoder.Encoder, reflection R) error) {
	g.AddPass(newComputeRecord(name, reads, writes, func(e *encoder.Encoder) error {
		if fn == nil {
			return nil
		}
		return fn(e, reflection)
	}))
}

func newBlitRecord(name string, reads, writes []resource.Handle, fn BlitCallback) *compile.PassRecord {
	return &compile.PassRecord{
		Kind:           compile.PassKindBlit,
		Name:           name,
		DeclaredReads:  reads,
		DeclaredWrites: writes,
		Mode:           record.DetermineExecutionMode(writes),
		Run: func(r *record.Recorder) error {
			if fn == nil {
				return nil
			}
			return fn(r)
		},
	}
}

// AddBlitPass enqueues a blit (copy/resolve) pass.
func AddBlitPass(g *frame.Graph, name string, reads, writes []resource.Handle, fn BlitCallback) {
	g.AddPass(newBlitRecord(name, reads, writes, fn))
}

// InsertEarlyBlitPass prepends a blit pass ahead of every already-enqueued
// pass, for uploads that must precede everything else this frame.
func InsertEarlyBlitPass(g *frame.Graph, name string, reads, writes []resource.Handle, fn BlitCallback) {
	g.InsertEarly(newBlitRecord(name, reads, writes, fn))
}

// AddExternalPass enqueues a pass whose commands are encoded by a
// collaborator outside this module.
func AddExternalPass(g *frame.Graph, name string, reads, writes []resource.Handle, fn ExternalCallback) {
	g.AddPass(&compile.PassRecord{
		Kind:           compile.PassKindExternal,
		Name:           name,
		DeclaredReads:  reads,
		DeclaredWrites: writes,
		Mode:           record.DetermineExecutionMode(writes),
		Run: func(r *record.Recorder) error {
			if fn == nil {
				return nil
			}
			return fn(r)
		},
	})
}

// AddCPUPass enqueues host-side work with no GPU commands. It always
// executes during compile's usage-evaluation step since it declares no
// writes for the cull to reason about, and is dropped from the final
// schedule once it has run.
func AddCPUPass(g *frame.Graph, name string, fn CPUCallback) {
	g.AddPass(&compile.PassRecord{
		Kind: compile.PassKindCPU,
		Name: name,
		Mode: record.ExecutionEager,
		Run: func(r *record.Recorder) error {
			if fn == nil {
				return nil
			}
			return fn()
		},
	})
}
