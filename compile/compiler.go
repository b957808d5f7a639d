// Package compile implements the pass compiler: the heart of the
// render-graph system. It evaluates per-pass resource usage, builds the
// inter-pass dependency table, culls dead passes by reverse reachability,
// reorders survivors to favour adjacent mergeable draw passes, executes
// the remaining lazy callbacks, and rebases everything onto one
// contiguous, frame-global command stream.
package compile

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/gogpu/framegraph/arena"
	"github.com/gogpu/framegraph/merge"
	"github.com/gogpu/framegraph/record"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

// PassKind tags what kind of work a pass performs. It deliberately does
// not reuse a root-level type: the root package constructs compile.
// PassRecord values from its own client-facing Pass variants, and a
// dependency the other way round would cycle.
type PassKind uint8

const (
	PassKindCPU PassKind = iota
	PassKindDraw
	PassKindCompute
	PassKindBlit
	PassKindExternal
)

func (k PassKind) String() string {
	switch k {
	case PassKindCPU:
		return "CPU"
	case PassKindDraw:
		return "Draw"
	case PassKindCompute:
		return "Compute"
	case PassKindBlit:
		return "Blit"
	case PassKindExternal:
		return "External"
	default:
		return fmt.Sprintf("PassKind(%d)", uint8(k))
	}
}

// ResourceFlags carries the side-effect-relevant facts about a resource
// that cannot be derived from resource.Handle alone (persistence can:
// resource.Handle.Lifetime()). A write to a resource with any of these
// flags set makes its pass a root of the reachability cull in step 3.
type ResourceFlags struct {
	WindowHandle      bool
	HistoryBuffer     bool
	ExternalOwnership bool
}

// Classifier answers ResourceFlags for a handle. The orchestrator
// supplies one backed by its resource maps; compile itself holds no
// resource state.
type Classifier func(resource.Handle) ResourceFlags

// Execute is the callback a pass records its commands and usages
// through. It is invoked either eagerly (step 1, for passes with no
// declared writes) or lazily (step 5, for passes that survive culling).
type Execute func(r *record.Recorder) error

// PassRecord is one enqueued pass's full compile-time state.
type PassRecord struct {
	Index int
	Kind  PassKind
	Name  string

	DeclaredReads  []resource.Handle
	DeclaredWrites []resource.Handle
	Mode           record.ExecutionMode

	// RenderTarget is non-nil only for PassKindDraw; it participates in
	// the reorder step's mergeable-ancestor preference and is itself
	// merged when TryMerge succeeds across adjacent scheduled passes.
	RenderTarget *merge.RenderTargetDescriptor

	Run Execute

	// Recorder is set once the pass's callback has run, either eagerly
	// in step 1 or lazily in step 5. Nil means "not yet executed".
	Recorder *record.Recorder

	// IsActive is set by the reverse-reachability cull (step 3).
	IsActive bool
	// UsesWindowTexture is set during step 2 if any evaluated write
	// targets a resource flagged WindowHandle.
	UsesWindowTexture bool
	// HasSideEffects is set during step 2: a write to a persistent,
	// window, history-buffer, or externally-owned resource.
	HasSideEffects bool

	// GlobalRange is filled in during step 7: the pass's commands'
	// position within the schedule's single contiguous command stream.
	GlobalRange usage.CommandRange

	readSet, writeSet map[resource.Handle]struct{}
}

func (p *PassRecord) effectiveReads() map[resource.Handle]struct{} {
	if p.readSet != nil {
		return p.readSet
	}
	if p.Recorder != nil {
		p.readSet = toSet(p.Recorder.ReadResources())
	} else {
		p.readSet = toSet(p.DeclaredReads)
	}
	return p.readSet
}

func (p *PassRecord) effectiveWrites() map[resource.Handle]struct{} {
	if p.writeSet != nil {
		return p.writeSet
	}
	if p.Recorder != nil {
		p.writeSet = toSet(p.Recorder.WrittenResources())
	} else {
		p.writeSet = toSet(p.DeclaredWrites)
	}
	return p.writeSet
}

func toSet(hs []resource.Handle) map[resource.Handle]struct{} {
	s := make(map[resource.Handle]struct{}, len(hs))
	for _, h := range hs {
		s[h] = struct{}{}
	}
	return s
}

// commandCount reports how many commands the pass has recorded so far,
// or 0 if it has not executed yet.
func (p *PassRecord) commandCount() int {
	if p.Recorder == nil {
		return 0
	}
	return p.Recorder.Commands().Len()
}

// Schedule is Compile's output: the surviving passes in execution order,
// their reduced dependency table (reindexed to the new order), and the
// frame's merged resource-usage log.
type Schedule struct {
	Passes            []*PassRecord
	DepTable          *DepTable
	Usages            *usage.Log
	TotalCommandCount int
}

// String dumps the schedule for logging: one line per pass with its
// kind, name, global command range, and incoming edges.
func (s *Schedule) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Schedule{%d passes, %d commands}", len(s.Passes), s.TotalCommandCount)
	for _, p := range s.Passes {
		fmt.Fprintf(&b, "\n  [%d] %s %q cmds=[%d,%d)", p.Index, p.Kind, p.Name, p.GlobalRange.Lo, p.GlobalRange.Hi)
		if s.DepTable == nil {
			continue
		}
		for _, j := range s.DepTable.Dependencies(p.Index) {
			fmt.Fprintf(&b, " <-%d(%s)", j, s.DepTable.Get(p.Index, j))
		}
	}
	return b.String()
}

// ArenaFree carries the graph-compilation arena context: Tag is freed at
// the end of Compile, and Manager additionally hands each pass
// callback a pass-execution-scratch arena that is freed the moment the
// callback returns. Callers that don't use an arena.Manager may pass nil.
type ArenaFree struct {
	Manager *arena.Manager
	Tag     arena.Tag
}

// Compile runs the full pipeline over passes, in the order they were
// enqueued, and returns the final schedule: usage evaluation,
// dependency-table construction, reachability culling, merge-aware
// reordering, lazy execution, index remapping, and command rebasing.
//
// A CPU pass's "evaluate usages" step is indistinguishable from its
// execution, since a CPU pass's reads/writes can only be known by
// running it. An eager CPU pass therefore executes during usage
// evaluation, before the cull decision exists; a lazy CPU pass executes
// after cull, if it is active. In both cases its callback has run by
// the time the CPU-only drop removes it from the final schedule. A lazy
// CPU pass that cull removes never runs.
func Compile(ctx context.Context, passes []*PassRecord, classify Classifier, free *ArenaFree) (*Schedule, error) {
	if len(passes) == 0 {
		return &Schedule{Usages: usage.NewLog()}, nil
	}

	if err := evaluateUsages(ctx, passes, free); err != nil {
		return nil, fmt.Errorf("compile: evaluating usages: %w", err)
	}

	dep := buildDependencyTable(passes, classify)

	active := cullUnreachable(passes, dep)

	order := reorder(passes, dep, active)

	if err := executeLazyPasses(order, free); err != nil {
		return nil, fmt.Errorf("compile: executing lazy passes: %w", err)
	}
	survivors := dropEmptyAndCPUOnly(order)

	newIndex := make(map[int]int, len(survivors))
	for newIdx, p := range survivors {
		newIndex[p.Index] = newIdx
	}
	reducedDep := dep.Remap(newIndex, len(survivors))

	log := rebaseCommands(survivors)

	if free != nil && free.Manager != nil {
		free.Manager.FreeTag(free.Tag)
	}

	total := 0
	for _, p := range survivors {
		total += p.GlobalRange.Len()
	}

	for newIdx, p := range survivors {
		p.Index = newIdx
	}

	return &Schedule{
		Passes:            survivors,
		DepTable:          reducedDep,
		Usages:            log,
		TotalCommandCount: total,
	}, nil
}

// evaluateUsages is step 1. Eager passes (empty declared writes) must
// run now so their real read/write sets are known; CPU-kind eager
// passes run serially on the calling goroutine, GPU-kind eager passes
// (draw/compute/blit/external) run concurrently via errgroup. Lazy
// passes are left untouched: their declared sets stand in until (and
// unless) step 5 runs them for real.
func evaluateUsages(ctx context.Context, passes []*PassRecord, free *ArenaFree) error {
	eg, _ := errgroup.WithContext(ctx)
	for _, p := range passes {
		if p.Mode == record.ExecutionLazy {
			continue
		}
		if p.Kind == PassKindCPU {
			if err := runPass(p, free); err != nil {
				return fmt.Errorf("pass %d (%s): %w", p.Index, p.Name, err)
			}
			continue
		}
		p := p
		eg.Go(func() error {
			if err := runPass(p, free); err != nil {
				return fmt.Errorf("pass %d (%s): %w", p.Index, p.Name, err)
			}
			return nil
		})
	}
	return eg.Wait()
}

func runPass(p *PassRecord, free *ArenaFree) error {
	r := record.NewRecorder(p.Index)
	if free != nil && free.Manager != nil {
		tag := arena.Tag{Kind: arena.TagPassExecutionScratch, PassIndex: p.Index, Generation: free.Tag.Generation}
		r.Scratch = free.Manager.Arena(tag)
		defer free.Manager.FreeTag(tag)
	}
	if p.Run != nil {
		if err := p.Run(r); err != nil {
			return err
		}
	}
	if err := r.Finish(); err != nil {
		return err
	}
	p.Recorder = r
	return nil
}

// buildDependencyTable is step 2: for every pass i and every resource it
// writes, a strictly later pass j that reads that resource gets an
// execution edge D[j][i]; a later pass that only writes the same
// resource gets an ordering edge, unless an execution edge already
// exists. Side effects and UsesWindowTexture are derived from the same
// write scan.
func buildDependencyTable(passes []*PassRecord, classify Classifier) *DepTable {
	n := len(passes)
	dep := NewDepTable(n)

	for i, p := range passes {
		for w := range p.effectiveWrites() {
			flags := classifyHandle(classify, w)
			if w.Lifetime() == resource.LifetimePersistent || flags.WindowHandle || flags.HistoryBuffer || flags.ExternalOwnership {
				p.HasSideEffects = true
			}
			if flags.WindowHandle {
				p.UsesWindowTexture = true
			}

			for j := i + 1; j < n; j++ {
				q := passes[j]
				if _, reads := q.effectiveReads()[w]; reads {
					dep.Set(j, i, DepExecution)
					continue
				}
				if _, writes := q.effectiveWrites()[w]; writes && dep.Get(j, i) != DepExecution {
					dep.Set(j, i, DepOrdering)
				}
			}
		}
	}
	return dep
}

func classifyHandle(classify Classifier, h resource.Handle) ResourceFlags {
	if classify == nil {
		return ResourceFlags{}
	}
	return classify(h)
}

// cullUnreachable is step 3: seed the active set with every pass that
// has side effects, then transitively mark reachable via execution
// edges only (an ordering edge constrains relative order if both passes
// run, but never forces the earlier one to run).
func cullUnreachable(passes []*PassRecord, dep *DepTable) []bool {
	n := len(passes)
	active := make([]bool, n)
	var mark func(i int)
	mark = func(i int) {
		if active[i] {
			return
		}
		active[i] = true
		for j := 0; j < i; j++ {
			if dep.Get(i, j) == DepExecution {
				mark(j)
			}
		}
	}
	for i, p := range passes {
		if p.HasSideEffects {
			mark(i)
		}
	}
	for i, p := range passes {
		p.IsActive = active[i]
	}
	return active
}

// reorder is step 4: visit passes from the highest original index down
// to the lowest; for each not-yet-visited active pass, DFS its
// dependencies (any non-None edge) in post-order, so a pass's
// dependencies always land earlier than it in the output. Among a
// node's dependencies, non-mergeable-render-target ancestors are visited
// (and hence appended) before mergeable ones, so a mergeable ancestor
// ends up immediately adjacent to the pass that depends on it. Ties
// break toward the original index for a stable schedule.
func reorder(passes []*PassRecord, dep *DepTable, active []bool) []*PassRecord {
	n := len(passes)
	visited := make([]bool, n)
	var out []*PassRecord

	var visit func(i int)
	visit = func(i int) {
		if visited[i] {
			return
		}
		visited[i] = true
		if !active[i] {
			// A culled pass can still appear in an active pass's
			// dependency list through an ordering edge; it constrains
			// nothing once dropped and must not re-enter the schedule.
			return
		}

		deps := dep.Dependencies(i)
		cur := passes[i]
		mergeableOf := func(j int) bool { return isMergeableAncestor(cur, passes[j]) }

		var nonMergeable, mergeable []int
		for _, j := range deps {
			if mergeableOf(j) {
				mergeable = append(mergeable, j)
			} else {
				nonMergeable = append(nonMergeable, j)
			}
		}
		for _, j := range nonMergeable {
			visit(j)
		}
		for _, j := range mergeable {
			visit(j)
		}
		out = append(out, cur)
	}

	for i := n - 1; i >= 0; i-- {
		if active[i] && !visited[i] {
			visit(i)
		}
	}
	return out
}

func isMergeableAncestor(cur, dep *PassRecord) bool {
	if cur.Kind != PassKindDraw || dep.Kind != PassKindDraw {
		return false
	}
	if cur.RenderTarget == nil || dep.RenderTarget == nil {
		return false
	}
	// dep runs before cur, so dep is the earlier pass A and cur the later
	// pass B whose clear ops decide mergeability.
	return merge.Mergeable(dep.RenderTarget, cur.RenderTarget)
}

// executeLazyPasses is step 5's first half: run the callback for every
// pass in order that hasn't executed yet (it was lazy and survived
// cull).
func executeLazyPasses(order []*PassRecord, free *ArenaFree) error {
	for _, p := range order {
		if p.Recorder != nil {
			continue
		}
		if err := runPass(p, free); err != nil {
			return fmt.Errorf("pass %d (%s): %w", p.Index, p.Name, err)
		}
	}
	return nil
}

// dropEmptyAndCPUOnly is step 5's second half: a pass that recorded zero
// commands, or that is CPU-kind (CPU passes never contribute GPU
// commands, however many they "recorded"), is removed from the final
// schedule. Its callback has already run and its side effects have
// already happened; only its place in the GPU command stream is cut.
func dropEmptyAndCPUOnly(order []*PassRecord) []*PassRecord {
	out := make([]*PassRecord, 0, len(order))
	for _, p := range order {
		if p.Kind == PassKindCPU || p.commandCount() == 0 {
			continue
		}
		out = append(out, p)
	}
	return out
}

// rebaseCommands is step 7: assign each surviving pass a contiguous
// slice of the schedule's single global command range, shift every
// recorded usage by that pass's offset, and merge it into the returned
// log. Each pass's own usage chunk array is then dropped (Recorder
// still holds its commands, which a backend needs, but resource_usages
// is no longer needed once merged).
func rebaseCommands(survivors []*PassRecord) *usage.Log {
	log := usage.NewLog()
	offset := 0
	for _, p := range survivors {
		n := p.commandCount()
		p.GlobalRange = usage.CommandRange{Lo: offset, Hi: offset + n}

		p.Recorder.Usages().ForEach(func(_ int, rec usage.Record) {
			rec.Range = rec.Range.Shift(offset)
			log.MergeOrAppend(rec)
		})
		p.Recorder.FreezeUsages()

		offset += n
	}
	return log
}
