// Package backend declares the external collaborator the pass compiler
// and frame orchestrator hand schedules to. Everything here is an
// interface or pure value type: concrete GPU API translation (Vulkan,
// Metal, D3D12) lives outside this module entirely.
package backend

import (
	"context"

	"github.com/gogpu/framegraph/compile"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

// BindingPath is an opaque backend-specific location an argument buffer
// or push-constant block binds to. The core never interprets it.
type BindingPath struct {
	Stages usage.Stages
	Index  uint32
}

// SizeAndAlignment is the result of a backend's size query for a
// resource descriptor, used by allocators the backend owns.
type SizeAndAlignment struct {
	Size      uint64
	Alignment uint64
}

// AccelerationStructureSizes bundles the scratch/result/update buffer
// sizes a backend reports for building an acceleration structure.
type AccelerationStructureSizes struct {
	AccelerationStructureSize uint64
	BuildScratchSize          uint64
	UpdateScratchSize         uint64
}

// Reflection is the opaque result of reflecting a pipeline descriptor
// against a render target or compute layout. Its shape is entirely
// backend-owned; the core only checks whether reflection succeeded.
type Reflection struct {
	Valid bool
	Data  any
}

// CompletionHandle is returned by ExecuteRenderGraph and resolves once
// the GPU has signalled the submission complete (or failed).
//
// Wait blocks the calling goroutine until the backend signals
// completion or ctx is cancelled. GPUDuration is only meaningful after
// Wait returns a nil error.
type CompletionHandle interface {
	Wait(ctx context.Context) error
	GPUDuration() (ms float64, ok bool)
}

// Backend is the external collaborator that materialises resources,
// reflects pipelines, and executes a compiled schedule. Implementations
// own all on-the-wire encoding; the core never looks inside a Reflection
// or CompletionHandle beyond the methods above.
type Backend interface {
	// MaterialisePersistent allocates the GPU-side backing for a
	// persistent resource on first use. A false return means
	// materialisation failed (e.g. OOM). No package in this module
	// calls it, so a failure is neither disposed nor reported by the
	// core.
	MaterialisePersistent(h resource.Handle, desc any) (bool, error)

	// Dispose releases any backend-side state for h. No package in this
	// module calls it; freeing a registry slot does not.
	Dispose(h resource.Handle)

	// RenderPipelineReflection reflects a render pipeline descriptor
	// against a render-target shape. A nil Reflection means reflection
	// failed. No package in this module calls it, and the typed encoder
	// has no getter that reports such a failure.
	RenderPipelineReflection(desc any, renderTarget any) (*Reflection, error)

	// ComputePipelineReflection reflects a compute pipeline descriptor.
	ComputePipelineReflection(desc any) (*Reflection, error)

	// SupportsPixelFormat reports whether format may be used with the
	// given usage hint on this backend.
	SupportsPixelFormat(format resource.PixelFormat, usageHint resource.UsageHint) bool

	// SizeAndAlignment reports the backing-memory size and alignment a
	// resource descriptor would require.
	SizeAndAlignment(desc any) (SizeAndAlignment, error)

	// AccelerationStructureSizes reports the buffer sizes needed to
	// build an acceleration structure from desc.
	AccelerationStructureSizes(desc any) (AccelerationStructureSizes, error)

	// ExecuteRenderGraph submits a compiled schedule. usedResources is
	// every resource.Handle touched by any surviving pass; dependencies
	// is the reduced dependency table the backend may consult when
	// synthesising barriers beyond what the usage timeline already
	// encodes.
	ExecuteRenderGraph(ctx context.Context, passes []*compile.PassRecord, usedResources []resource.Handle, dependencies *compile.DepTable) (CompletionHandle, error)

	// ArgumentBufferPath reports where a resource-set index binds for
	// the given stages.
	ArgumentBufferPath(index uint32, stages usage.Stages) BindingPath

	// PushConstantPath reports where push constants bind.
	PushConstantPath() BindingPath
}
