// Package frame implements the frame orchestrator: the inflight-frame
// semaphore, per-frame tag lifecycle, and the Execute entry point that
// compiles the enqueued passes and hands the result to a backend. A
// Graph is an explicit value the caller constructs and owns; the only
// process-wide state is the active-graph lock, which serialises
// compilation of independently-constructed graphs sharing one backend,
// and the monotonic global submission index.
package frame

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gogpu/framegraph/arena"
	"github.com/gogpu/framegraph/backend"
	"github.com/gogpu/framegraph/compile"
	"github.com/gogpu/framegraph/record"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

var globalSubmissionIndex atomic.Uint64

// GlobalSubmissionIndex returns the monotonic count of frame
// submissions accepted by a backend across every graph in this process.
func GlobalSubmissionIndex() uint64 { return globalSubmissionIndex.Load() }

var activeGraph atomic.Pointer[Graph]

// ActiveRenderGraph returns the graph currently compiling or executing,
// if any.
func ActiveRenderGraph() (*Graph, bool) {
	g := activeGraph.Load()
	return g, g != nil
}

// ActiveGraphLock serialises compilation of distinct graphs that share
// a backend. Construct one per backend/queue and pass it to every Graph
// built against that backend; graphs on distinct queues should each get
// their own lock so they can compile concurrently.
type ActiveGraphLock struct {
	mu sync.Mutex
}

// NewActiveGraphLock returns a fresh, unlocked lock.
func NewActiveGraphLock() *ActiveGraphLock { return &ActiveGraphLock{} }

// TransientRegistry is satisfied by resource.TransientRegistry[T] for any
// T; the Graph holds one per resource kind so it can reset all of them
// at frame teardown without needing to know their element types.
type TransientRegistry interface {
	Reset(frameID uint32, capacityHint int)
}

// Uploader flushes any outstanding GPU-resource uploads before a frame
// compiles. Graph.Execute skips this call when the uploader it was
// configured with is the Graph itself, since a graph never needs to
// flush into itself.
type Uploader interface {
	Flush(ctx context.Context) error
}

// FrameResourceAccessor is an optional capability a Backend may
// implement to be notified when a frame's resource access window opens,
// just before compilation starts. Graphs tolerate a backend that
// doesn't implement it.
type FrameResourceAccessor interface {
	BeginFrameResourceAccess()
}

// Config configures a Graph.
type Config struct {
	// MaxInflightFrames bounds how many of this graph's frames may be
	// executing on the GPU at once before Execute blocks.
	MaxInflightFrames int
	// TransientCapacityHint is passed through to every registered
	// transient registry's Reset at the start of each frame.
	TransientCapacityHint int
	// Backend is the external collaborator passes are submitted to.
	Backend backend.Backend
	// Lock serialises compilation with any other Graph sharing this
	// backend/queue. Required.
	Lock *ActiveGraphLock
	// Classify answers compile.ResourceFlags for a handle during
	// dependency-table construction.
	Classify compile.Classifier
	// MarkUsed, if set, is invoked on every declared read/write of a
	// lazily-executed pass before compile, so persistent-registry
	// bookkeeping can keep those resources alive across frames even when
	// the pass ends up culled.
	MarkUsed func(resource.Handle)
	// Uploader, if set, is flushed at the start of Execute unless it is
	// this same Graph (compared by identity once wrapped).
	Uploader Uploader
	// Logger receives compile/submission diagnostics. A nil Logger
	// disables logging.
	Logger *slog.Logger
}

// CompletionObserver is notified once a submitted frame's GPU work
// completes (or fails).
type CompletionObserver func(err error)

// Graph is one render-graph's per-frame state: its enqueued pass list,
// arena manager, inflight semaphore, and registered transient
// registries. Construct with NewGraph; safe for concurrent Add/InsertEarly
// calls, but Execute must not be called concurrently with itself on the
// same Graph: no two frames of the same graph compile at once. The
// inflight semaphore enforces throttling, the active-graph lock mutual
// exclusion of compilation.
type Graph struct {
	cfg Config

	passMu sync.Mutex
	passes []*compile.PassRecord
	nextIx int

	sem   *Semaphore
	arena *arena.Manager

	transMu    sync.Mutex
	transients map[resource.Kind]TransientRegistry

	frameID atomic.Uint32

	durMu   sync.Mutex
	cpuMS   float64
	gpuMS   float64
	haveDur bool
}

// NewGraph constructs a Graph from cfg. cfg.Lock and cfg.Backend must be
// non-nil.
func NewGraph(cfg Config) *Graph {
	if cfg.MaxInflightFrames < 1 {
		cfg.MaxInflightFrames = 1
	}
	return &Graph{
		cfg:        cfg,
		sem:        NewSemaphore(cfg.MaxInflightFrames),
		arena:      arena.NewManager(),
		transients: make(map[resource.Kind]TransientRegistry),
	}
}

// RegisterTransientRegistry wires a per-kind transient registry into
// this graph's per-frame Reset and teardown lifecycle, and immediately
// resets it for the graph's current frame so the client may start
// allocating transient resources against it right away.
func (g *Graph) RegisterTransientRegistry(kind resource.Kind, reg TransientRegistry) {
	g.transMu.Lock()
	defer g.transMu.Unlock()
	g.transients[kind] = reg
	reg.Reset(g.currentFrameID(), g.cfg.TransientCapacityHint)
}

// currentFrameID returns the frame ID the client is presently building
// passes against (bumped to 1 on construction so the very first frame
// has a valid, non-zero ID before any Execute call).
func (g *Graph) currentFrameID() uint32 {
	if id := g.frameID.Load(); id != 0 {
		return id
	}
	g.frameID.CompareAndSwap(0, 1)
	return g.frameID.Load()
}

func (g *Graph) logger() *slog.Logger {
	if g.cfg.Logger != nil {
		return g.cfg.Logger
	}
	return slog.New(discardHandler{})
}

// AddPass thread-safely appends rec with the next increasing pass index.
func (g *Graph) AddPass(rec *compile.PassRecord) {
	g.passMu.Lock()
	defer g.passMu.Unlock()
	rec.Index = g.nextIx
	g.nextIx++
	g.passes = append(g.passes, rec)
}

// InsertEarly prepends rec, ahead of every already-enqueued pass, for
// uploads that must run before anything else this frame. Every
// subsequently added pass still receives a strictly increasing index.
func (g *Graph) InsertEarly(rec *compile.PassRecord) {
	g.passMu.Lock()
	defer g.passMu.Unlock()
	rec.Index = -1
	g.passes = append([]*compile.PassRecord{rec}, g.passes...)
	for i, p := range g.passes {
		p.Index = i
	}
	g.nextIx = len(g.passes)
}

// HasEnqueuedPasses reports whether any pass has been added since the
// last Execute.
func (g *Graph) HasEnqueuedPasses() bool {
	g.passMu.Lock()
	defer g.passMu.Unlock()
	return len(g.passes) > 0
}

// HasMaxFramesInFlight reports whether this graph's inflight semaphore
// currently has no free permits.
func (g *Graph) HasMaxFramesInFlight() bool { return g.sem.HasMaxInFlight() }

// LastGraphDurations returns the CPU and GPU time, in milliseconds, of
// the most recently completed Execute call. ok is false before any
// frame has completed.
func (g *Graph) LastGraphDurations() (cpuMS, gpuMS float64, ok bool) {
	g.durMu.Lock()
	defer g.durMu.Unlock()
	return g.cpuMS, g.gpuMS, g.haveDur
}

func (g *Graph) setDurations(cpuMS, gpuMS float64) {
	g.durMu.Lock()
	defer g.durMu.Unlock()
	g.cpuMS, g.gpuMS, g.haveDur = cpuMS, gpuMS, true
}

// Flush satisfies Uploader so a Graph may itself be configured as
// another graph's cfg.Uploader, or passed to Config.Uploader and
// recognised as "this graph". A graph has no uploads of its own to
// flush.
func (g *Graph) Flush(ctx context.Context) error { return nil }

// takePasses atomically empties the pass list and returns it.
func (g *Graph) takePasses() []*compile.PassRecord {
	g.passMu.Lock()
	defer g.passMu.Unlock()
	out := g.passes
	g.passes = nil
	g.nextIx = 0
	return out
}

// Execute runs one frame: compile the enqueued passes and submit them to
// the backend. onSubmission fires once the backend has accepted the
// schedule (synchronously, before Execute returns); onCompletion fires
// asynchronously once the GPU reports completion of that submission.
// Either callback may be nil. A graph with nothing enqueued fires both
// callbacks immediately and never touches the backend or the inflight
// semaphore.
func (g *Graph) Execute(ctx context.Context, onSubmission, onCompletion CompletionObserver) error {
	if g.cfg.Uploader != nil && g.cfg.Uploader != Uploader(g) {
		if err := g.cfg.Uploader.Flush(ctx); err != nil {
			return fmt.Errorf("frame: flushing uploads: %w", err)
		}
	}

	passes := g.takePasses()
	if len(passes) == 0 {
		fire(onSubmission, nil)
		fire(onCompletion, nil)
		return nil
	}

	g.cfg.Lock.mu.Lock()
	defer g.cfg.Lock.mu.Unlock()

	if err := g.sem.Acquire(ctx); err != nil {
		return fmt.Errorf("frame: acquiring inflight permit: %w", err)
	}
	// A pass callback that panics is fatal to the frame, but the permit
	// must still come back before the panic propagates, or the graph
	// would leak an inflight slot it can never reclaim.
	defer func() {
		if r := recover(); r != nil {
			g.sem.Release()
			panic(r)
		}
	}()

	activeGraph.Store(g)
	defer activeGraph.Store(nil)

	if g.cfg.MarkUsed != nil {
		for _, p := range passes {
			if p.Mode != record.ExecutionLazy {
				continue
			}
			for _, h := range p.DeclaredReads {
				g.cfg.MarkUsed(h)
			}
			for _, h := range p.DeclaredWrites {
				g.cfg.MarkUsed(h)
			}
		}
	}

	frameID := g.currentFrameID()

	if accessor, ok := g.cfg.Backend.(FrameResourceAccessor); ok {
		accessor.BeginFrameResourceAccess()
	}

	start := time.Now()
	compileTag := arena.Tag{Kind: arena.TagGraphCompilation, Generation: uint64(frameID)}
	schedule, err := compile.Compile(ctx, passes, g.cfg.Classify, &compile.ArenaFree{Manager: g.arena, Tag: compileTag})
	if err != nil {
		g.sem.Release()
		return fmt.Errorf("frame: compiling: %w", err)
	}
	cpuMS := float64(time.Since(start)) / float64(time.Millisecond)
	g.logger().Debug("graph compiled", "frame", frameID, "enqueued", len(passes), "scheduled", len(schedule.Passes), "schedule", schedule)

	var usedResources []resource.Handle
	schedule.Usages.ForEach(func(h resource.Handle, _ *usage.Timeline) {
		usedResources = append(usedResources, h)
	})

	handle, err := g.cfg.Backend.ExecuteRenderGraph(ctx, schedule.Passes, usedResources, schedule.DepTable)
	if err != nil {
		g.sem.Release()
		return fmt.Errorf("frame: submitting: %w", err)
	}

	fire(onSubmission, nil)
	g.logger().Info("frame submitted", "frame", frameID, "passes", len(schedule.Passes), "cpu_ms", cpuMS)

	// Per-frame teardown runs synchronously, right here, rather than
	// after the GPU wait: the submission index counts submissions, not
	// completions, and the next frame's passes may start building (and
	// allocating transients) the instant Execute returns, so the
	// registries for frameID+1 must already be reset before that happens.
	nextFrameID := frameID + 1
	g.frameID.Store(nextFrameID)
	g.transMu.Lock()
	for _, reg := range g.transients {
		reg.Reset(nextFrameID, g.cfg.TransientCapacityHint)
	}
	g.transMu.Unlock()
	globalSubmissionIndex.Add(1)

	executionTag := arena.Tag{Kind: arena.TagGraphExecution, Generation: uint64(frameID)}
	usageTag := arena.Tag{Kind: arena.TagResourceUsageNodes, Generation: uint64(frameID)}

	go func() {
		waitErr := handle.Wait(context.Background())
		gpuMS := 0.0
		if ms, ok := handle.GPUDuration(); ok {
			gpuMS = ms
		}
		g.setDurations(cpuMS, gpuMS)
		fire(onCompletion, waitErr)

		g.arena.FreeTag(executionTag)
		g.arena.FreeTag(usageTag)
		g.sem.Release()
	}()

	return nil
}

func fire(obs CompletionObserver, err error) {
	if obs != nil {
		obs(err)
	}
}

type discardHandler struct{}

func (discardHandler) Enabled(context.Context, slog.Level) bool  { return false }
func (discardHandler) Handle(context.Context, slog.Record) error { return nil }
func (discardHandler) WithAttrs([]slog.Attr) slog.Handler        { return discardHandler{} }
func (discardHandler) WithGroup(string) slog.Handler             { return discardHandler{} }
