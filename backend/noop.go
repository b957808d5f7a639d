package backend

import (
	"context"
	"sync"

	"github.com/gogpu/framegraph/compile"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

// Noop is an in-memory Backend test double: it materialises every
// persistent resource successfully, reflects every pipeline descriptor
// successfully, and resolves ExecuteRenderGraph immediately.
type Noop struct {
	mu        sync.Mutex
	disposed  []resource.Handle
	Submitted int
}

// NewNoop returns a fresh no-op backend.
func NewNoop() *Noop { return &Noop{} }

func (n *Noop) MaterialisePersistent(resource.Handle, any) (bool, error) { return true, nil }

func (n *Noop) Dispose(h resource.Handle) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.disposed = append(n.disposed, h)
}

// Disposed returns every handle passed to Dispose so far, for test
// assertions.
func (n *Noop) Disposed() []resource.Handle {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]resource.Handle, len(n.disposed))
	copy(out, n.disposed)
	return out
}

func (n *Noop) RenderPipelineReflection(desc any, renderTarget any) (*Reflection, error) {
	return &Reflection{Valid: true, Data: desc}, nil
}

func (n *Noop) ComputePipelineReflection(desc any) (*Reflection, error) {
	return &Reflection{Valid: true, Data: desc}, nil
}

func (n *Noop) SupportsPixelFormat(resource.PixelFormat, resource.UsageHint) bool { return true }

func (n *Noop) SizeAndAlignment(any) (SizeAndAlignment, error) {
	return SizeAndAlignment{Size: 0, Alignment: 1}, nil
}

func (n *Noop) AccelerationStructureSizes(any) (AccelerationStructureSizes, error) {
	return AccelerationStructureSizes{}, nil
}

func (n *Noop) ExecuteRenderGraph(ctx context.Context, passes []*compile.PassRecord, used []resource.Handle, deps *compile.DepTable) (CompletionHandle, error) {
	n.mu.Lock()
	n.Submitted++
	n.mu.Unlock()
	return &noopCompletion{}, nil
}

func (n *Noop) ArgumentBufferPath(index uint32, stages usage.Stages) BindingPath {
	return BindingPath{Stages: stages, Index: index}
}

func (n *Noop) PushConstantPath() BindingPath { return BindingPath{} }

// noopCompletion resolves instantly with a token, non-zero GPU duration.
type noopCompletion struct{}

func (c *noopCompletion) Wait(ctx context.Context) error { return nil }

func (c *noopCompletion) GPUDuration() (float64, bool) { return 0.1, true }
