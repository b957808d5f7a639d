package compile

import (
	"context"
	"strings"
	"testing"

	"github.com/gogpu/framegraph/arena"
	"github.com/gogpu/framegraph/merge"
	"github.com/gogpu/framegraph/record"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

func texHandle(lifetime resource.Lifetime, idx uint32) resource.Handle {
	return resource.NewHandle(resource.KindTexture, lifetime, 0, 1, idx)
}

// computePass returns a lazy compute PassRecord whose Run replays its
// declared reads/writes as one command with matching usage records, so
// a test's declared sets and its post-execution effective sets agree.
func computePass(idx int, kind PassKind, name string, reads, writes []resource.Handle) *PassRecord {
	return &PassRecord{
		Index:          idx,
		Kind:           kind,
		Name:           name,
		DeclaredReads:  reads,
		DeclaredWrites: writes,
		Mode:           record.DetermineExecutionMode(writes),
		Run: func(r *record.Recorder) error {
			cmd, err := r.RecordCommand(name)
			if err != nil {
				return err
			}
			for _, h := range reads {
				if err := r.RecordUsage(h, usage.AccessShaderRead, usage.StageCompute, resource.FullTextureMask(1), cmd); err != nil {
					return err
				}
			}
			for _, h := range writes {
				if err := r.RecordUsage(h, usage.AccessShaderWrite, usage.StageCompute, resource.FullTextureMask(1), cmd); err != nil {
					return err
				}
			}
			return nil
		},
	}
}

func passNames(passes []*PassRecord) []string {
	out := make([]string, len(passes))
	for i, p := range passes {
		out[i] = p.Name
	}
	return out
}

func containsName(passes []*PassRecord, name string) bool {
	for _, p := range passes {
		if p.Name == name {
			return true
		}
	}
	return false
}

// TestDeadPassCulling: a pass whose output
// nobody reads and which touches no persistent/side-effecting resource
// must not appear in the compiled schedule.
func TestDeadPassCulling(t *testing.T) {
	scratch := texHandle(resource.LifetimeTransient, 1)
	persistentOut := texHandle(resource.LifetimePersistent, 2)

	dead := computePass(0, PassKindCompute, "dead", nil, []resource.Handle{scratch})
	alive := computePass(1, PassKindCompute, "alive", nil, []resource.Handle{persistentOut})

	sched, err := Compile(context.Background(), []*PassRecord{dead, alive}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if containsName(sched.Passes, "dead") {
		t.Errorf("schedule = %v, want \"dead\" culled", passNames(sched.Passes))
	}
	if !containsName(sched.Passes, "alive") {
		t.Errorf("schedule = %v, want \"alive\" present (writes a persistent resource)", passNames(sched.Passes))
	}
}

// TestWAWOrderingPreserved: two passes write
// the same persistent resource with nothing reading in between. Both
// have their own side effect (the write is to a persistent resource) so
// both survive the cull; the write-after-write ordering edge between
// them must keep them in original enqueue order in the final schedule.
func TestWAWOrderingPreserved(t *testing.T) {
	out := texHandle(resource.LifetimePersistent, 1)

	p0 := computePass(0, PassKindCompute, "p0", nil, []resource.Handle{out})
	p1 := computePass(1, PassKindCompute, "p1", nil, []resource.Handle{out})

	sched, err := Compile(context.Background(), []*PassRecord{p0, p1}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	names := passNames(sched.Passes)
	if len(names) != 2 || names[0] != "p0" || names[1] != "p1" {
		t.Fatalf("schedule order = %v, want [p0 p1]", names)
	}

	if sched.DepTable.Get(1, 0) != DepOrdering {
		t.Errorf("reduced dep table (1,0) = %v, want DepOrdering", sched.DepTable.Get(1, 0))
	}
}

// TestExecutionEdgeKeepsUpstreamWriterAlive: a pass with no side effect
// of its own must still survive the cull if a side-effecting pass reads
// what it wrote.
func TestExecutionEdgeKeepsUpstreamWriterAlive(t *testing.T) {
	intermediate := texHandle(resource.LifetimeTransient, 1)
	final := texHandle(resource.LifetimePersistent, 2)

	producer := computePass(0, PassKindCompute, "producer", nil, []resource.Handle{intermediate})
	consumer := computePass(1, PassKindCompute, "consumer", []resource.Handle{intermediate}, []resource.Handle{final})

	sched, err := Compile(context.Background(), []*PassRecord{producer, consumer}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	names := passNames(sched.Passes)
	if len(names) != 2 || names[0] != "producer" || names[1] != "consumer" {
		t.Fatalf("schedule = %v, want [producer consumer]", names)
	}
	if sched.DepTable.Get(1, 0) != DepExecution {
		t.Errorf("reduced dep table (1,0) = %v, want DepExecution", sched.DepTable.Get(1, 0))
	}
}

// TestCPUPassAlwaysDroppedFromSchedule: a CPU pass can be active (needed
// for its side effect or as a dependency source) yet never appears in
// the final GPU command schedule.
func TestCPUPassAlwaysDroppedFromSchedule(t *testing.T) {
	out := texHandle(resource.LifetimePersistent, 1)
	cpu := computePass(0, PassKindCPU, "upload", nil, []resource.Handle{out})

	sched, err := Compile(context.Background(), []*PassRecord{cpu}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if containsName(sched.Passes, "upload") {
		t.Error("CPU-kind passes must never appear in the compiled schedule")
	}
	if cpu.Recorder == nil {
		t.Error("CPU pass's callback should have run (side effects already happened) even though it is dropped")
	}
}

// TestEmptyCommandPassDropped: a pass that is active (side-effecting)
// but records zero commands contributes nothing to the GPU timeline and
// must be dropped.
func TestEmptyCommandPassDropped(t *testing.T) {
	out := texHandle(resource.LifetimePersistent, 1)
	noop := &PassRecord{
		Index:          0,
		Kind:           PassKindCompute,
		Name:           "noop",
		DeclaredWrites: []resource.Handle{out},
		Mode:           record.ExecutionLazy,
		Run:            func(r *record.Recorder) error { return nil },
	}

	sched, err := Compile(context.Background(), []*PassRecord{noop}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if containsName(sched.Passes, "noop") {
		t.Error("a pass recording zero commands must be dropped from the schedule")
	}
}

// TestOrderingEdgeDoesNotResurrectCulledPass: a culled pass reachable
// from an active pass only through an ordering edge must stay out of
// the schedule, and its lazy callback must never run.
func TestOrderingEdgeDoesNotResurrectCulledPass(t *testing.T) {
	scratch := texHandle(resource.LifetimeTransient, 1)
	out := texHandle(resource.LifetimePersistent, 2)

	ran := false
	dead := &PassRecord{
		Index:          0,
		Kind:           PassKindCompute,
		Name:           "dead",
		DeclaredWrites: []resource.Handle{scratch},
		Mode:           record.ExecutionLazy,
		Run: func(r *record.Recorder) error {
			ran = true
			_, err := r.RecordCommand("dead")
			return err
		},
	}
	// Writes scratch too, so an ordering edge points back at "dead",
	// and writes out so it survives the cull itself.
	live := computePass(1, PassKindCompute, "live", nil, []resource.Handle{scratch, out})

	sched, err := Compile(context.Background(), []*PassRecord{dead, live}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if containsName(sched.Passes, "dead") {
		t.Errorf("schedule = %v, an ordering edge must not resurrect a culled pass", passNames(sched.Passes))
	}
	if ran {
		t.Error("culled lazy pass's callback ran")
	}
	if !containsName(sched.Passes, "live") {
		t.Fatalf("schedule = %v, want \"live\" present", passNames(sched.Passes))
	}
}

// TestCompileEmptyInput: compiling zero passes must not error or panic.
func TestCompileEmptyInput(t *testing.T) {
	sched, err := Compile(context.Background(), nil, nil, nil)
	if err != nil {
		t.Fatalf("Compile(nil): %v", err)
	}
	if len(sched.Passes) != 0 {
		t.Errorf("expected empty schedule, got %d passes", len(sched.Passes))
	}
}

// TestPassScratchArenaFreedAfterCallback: each pass callback gets its
// own pass-execution-scratch arena, alive during the callback and gone
// the moment it returns; the graph-compilation tag itself is freed at
// the end of Compile.
func TestPassScratchArenaFreedAfterCallback(t *testing.T) {
	mgr := arena.NewManager()
	free := &ArenaFree{Manager: mgr, Tag: arena.Tag{Kind: arena.TagGraphCompilation, Generation: 7}}

	out := texHandle(resource.LifetimePersistent, 1)
	var scratchLen int
	p := &PassRecord{
		Index:          0,
		Kind:           PassKindCompute,
		Name:           "scratchy",
		DeclaredWrites: []resource.Handle{out},
		Mode:           record.ExecutionLazy,
		Run: func(r *record.Recorder) error {
			if r.Scratch != nil {
				scratchLen = len(r.Scratch.Alloc(32))
			}
			cmd, err := r.RecordCommand("scratchy")
			if err != nil {
				return err
			}
			return r.RecordUsage(out, usage.AccessShaderWrite, usage.StageCompute, resource.FullTextureMask(1), cmd)
		},
	}

	if _, err := Compile(context.Background(), []*PassRecord{p}, nil, free); err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if scratchLen != 32 {
		t.Errorf("scratch Alloc(32) returned %d bytes inside the callback", scratchLen)
	}
	scratchTag := arena.Tag{Kind: arena.TagPassExecutionScratch, PassIndex: 0, Generation: 7}
	if mgr.HasTag(scratchTag) {
		t.Error("pass-execution-scratch tag still live after the callback returned")
	}
	if mgr.HasTag(free.Tag) {
		t.Error("graph-compilation tag still live after Compile returned")
	}
}

// TestUsesWindowTextureFlaggedByClassifier verifies the classifier-driven
// side effect/window flag path (not just intrinsic persistence).
func TestUsesWindowTextureFlaggedByClassifier(t *testing.T) {
	window := texHandle(resource.LifetimeTransient, 1)
	classify := func(h resource.Handle) ResourceFlags {
		if h == window {
			return ResourceFlags{WindowHandle: true}
		}
		return ResourceFlags{}
	}

	present := computePass(0, PassKindBlit, "present", nil, []resource.Handle{window})

	sched, err := Compile(context.Background(), []*PassRecord{present}, classify, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	if !containsName(sched.Passes, "present") {
		t.Fatal("window-writing pass should survive the cull via its own side effect")
	}
	if !present.UsesWindowTexture {
		t.Error("UsesWindowTexture should be set for a pass writing a classifier-flagged window handle")
	}
}

// TestScheduleUsagesRebased checks that step 7 produces a usage log
// whose command ranges are shifted into the schedule's single global
// range, one pass after another. p0 and p1 are independent, and reorder
// walks the passes from the highest index down, so p1 is scheduled
// first and p0 second.
func TestScheduleUsagesRebased(t *testing.T) {
	a := texHandle(resource.LifetimePersistent, 1)
	b := texHandle(resource.LifetimePersistent, 2)

	p0 := computePass(0, PassKindCompute, "p0", nil, []resource.Handle{a})
	p1 := computePass(1, PassKindCompute, "p1", nil, []resource.Handle{b})

	sched, err := Compile(context.Background(), []*PassRecord{p0, p1}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	if p1.GlobalRange != (usage.CommandRange{Lo: 0, Hi: 1}) {
		t.Errorf("p1.GlobalRange = %+v, want {0 1}", p1.GlobalRange)
	}
	if p0.GlobalRange != (usage.CommandRange{Lo: 1, Hi: 2}) {
		t.Errorf("p0.GlobalRange = %+v, want {1 2}", p0.GlobalRange)
	}

	tlA := sched.Usages.Timeline(a)
	if tlA == nil || len(tlA.Entries()) != 1 || tlA.Entries()[0].Range != (usage.CommandRange{Lo: 1, Hi: 2}) {
		t.Errorf("timeline for a = %+v, want one entry at {1 2}", tlA)
	}
	tlB := sched.Usages.Timeline(b)
	if tlB == nil || len(tlB.Entries()) != 1 || tlB.Entries()[0].Range != (usage.CommandRange{Lo: 0, Hi: 1}) {
		t.Errorf("timeline for b = %+v, want one entry at {0 1}", tlB)
	}
}

func TestScheduleStringListsPasses(t *testing.T) {
	out := texHandle(resource.LifetimePersistent, 1)
	p := computePass(0, PassKindCompute, "lighting", nil, []resource.Handle{out})

	sched, err := Compile(context.Background(), []*PassRecord{p}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}
	s := sched.String()
	if !strings.Contains(s, "lighting") || !strings.Contains(s, "Compute") {
		t.Errorf("String() = %q, want pass name and kind present", s)
	}
}

// TestReorderPrefersMergeableAncestorAdjacency: a draw pass with two
// draw-pass dependencies, one mergeable with it and one not, should end
// up directly after the mergeable one in the schedule.
func TestReorderPrefersMergeableAncestorAdjacency(t *testing.T) {
	tex := texHandle(resource.LifetimePersistent, 1)
	unrelatedTarget := texHandle(resource.LifetimePersistent, 2)
	trigger := texHandle(resource.LifetimeTransient, 3)

	rtA := &merge.RenderTargetDescriptor{}
	rtA.Color[0] = merge.Attachment{Present: true, Texture: tex, Width: 256, Height: 256}
	rtA.ColorClear[0] = merge.ColorClearOp{Action: merge.ClearKeep}

	rtB := &merge.RenderTargetDescriptor{}
	rtB.Color[0] = merge.Attachment{Present: true, Texture: tex, Width: 256, Height: 256}
	rtB.ColorClear[0] = merge.ColorClearOp{Action: merge.ClearClear}

	rtC := &merge.RenderTargetDescriptor{}
	rtC.Color[0] = merge.Attachment{Present: true, Texture: unrelatedTarget, Width: 64, Height: 64}
	rtC.ColorClear[0] = merge.ColorClearOp{Action: merge.ClearClear}

	// mergeable is enqueued first, so visiting final's dependencies in
	// plain index order would place nonMergeable between it and final.
	mergeableDraw := computePass(0, PassKindDraw, "mergeable", nil, []resource.Handle{trigger})
	mergeableDraw.RenderTarget = rtB

	nonMergeableDraw := computePass(1, PassKindDraw, "nonMergeable", nil, []resource.Handle{unrelatedTarget})
	nonMergeableDraw.RenderTarget = rtC

	// final depends on both nonMergeable (ordering, via unrelatedTarget)
	// and mergeable (execution, via trigger) plus writes tex itself.
	final := computePass(2, PassKindDraw, "final", []resource.Handle{trigger}, []resource.Handle{tex, unrelatedTarget})
	final.RenderTarget = rtA

	sched, err := Compile(context.Background(), []*PassRecord{mergeableDraw, nonMergeableDraw, final}, nil, nil)
	if err != nil {
		t.Fatalf("Compile: %v", err)
	}

	names := passNames(sched.Passes)
	if len(names) != 3 {
		t.Fatalf("schedule = %v, want all 3 passes present", names)
	}
	if names[len(names)-1] != "final" {
		t.Fatalf("schedule = %v, want \"final\" last", names)
	}
	if names[len(names)-2] != "mergeable" {
		t.Errorf("schedule = %v, want \"mergeable\" immediately before \"final\"", names)
	}
}
