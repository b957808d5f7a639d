package record

import (
	"errors"
	"fmt"
	"sync"

	"github.com/gogpu/framegraph/arena"
	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

// ErrRecorderFinished is returned by any mutating Recorder method called
// after Finish.
var ErrRecorderFinished = errors.New("record: recorder already finished")

// Command is one opaque, recorded GPU operation. The command-buffer
// encoding surface itself (how Op/Args map onto a real API call) is a
// collaborator outside this package's scope; Recorder only needs to
// store commands in order and hand them to a backend untouched.
type Command struct {
	Op   string
	Args []any
}

// Status is the recorder's two-state lifecycle: it only ever records,
// then finishes.
type Status int32

const (
	StatusRecording Status = iota
	StatusFinished
)

func (s Status) String() string {
	if s == StatusFinished {
		return "Finished"
	}
	return "Recording"
}

// Recorder captures one pass's commands, resource usages, and derived
// read/write sets during callback execution.
type Recorder struct {
	// Scratch, when set by the compiler, is this pass's
	// pass-execution-scratch arena. Anything allocated from it is
	// invalid once the pass callback returns; the compiler frees the
	// tag at that point.
	Scratch *arena.Arena

	mu sync.Mutex

	passIndex int
	status    Status

	commands *ChunkArray[Command]
	usages   *ChunkArray[usage.Record]

	readResources    map[resource.Handle]struct{}
	writtenResources map[resource.Handle]struct{}

	retained []any
}

// NewRecorder returns a fresh recorder for the pass at passIndex.
func NewRecorder(passIndex int) *Recorder {
	return &Recorder{
		passIndex:        passIndex,
		commands:         NewChunkArray[Command](DefaultChunkSize),
		usages:           NewChunkArray[usage.Record](DefaultChunkSize),
		readResources:    make(map[resource.Handle]struct{}),
		writtenResources: make(map[resource.Handle]struct{}),
	}
}

// PassIndex returns the owning pass's index.
func (r *Recorder) PassIndex() int { return r.passIndex }

// Status returns the recorder's current state.
func (r *Recorder) Status() Status {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.status
}

// RecordCommand appends one command and returns its pass-local index.
func (r *Recorder) RecordCommand(op string, args ...any) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording {
		return 0, ErrRecorderFinished
	}
	return r.commands.Append(Command{Op: op, Args: args}), nil
}

// RecordUsage appends one usage entry covering [cmdIndex, cmdIndex+1) and
// updates the pass's derived read/write resource sets. cmdIndex is
// typically the value just returned by RecordCommand for the command
// this usage belongs to; callers issuing several usages for one command
// (e.g. a draw touching multiple attachments) pass the same cmdIndex
// repeatedly.
func (r *Recorder) RecordUsage(h resource.Handle, access usage.AccessKind, stages usage.Stages, mask usage.Mask, cmdIndex int) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status != StatusRecording {
		return ErrRecorderFinished
	}

	r.usages.Append(usage.Record{
		Resource:  h,
		PassIndex: r.passIndex,
		Range:     usage.CommandRange{Lo: cmdIndex, Hi: cmdIndex + 1},
		Access:    access,
		Stages:    stages,
		Mask:      mask,
	})

	if access.IsWrite() {
		r.writtenResources[h] = struct{}{}
	}
	if access.IsRead() {
		r.readResources[h] = struct{}{}
	}
	return nil
}

// Retain keeps obj alive until the recorder (and hence the frame it
// belongs to) is torn down. Used for unmanaged references captured by a
// pass callback, e.g. a CPU-side buffer upload staged outside the
// resource registries.
func (r *Recorder) Retain(obj any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.retained = append(r.retained, obj)
}

// Finish seals the recorder: no further commands or usages may be
// recorded. Returns an error if already finished.
func (r *Recorder) Finish() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.status == StatusFinished {
		return fmt.Errorf("record: pass %d: %w", r.passIndex, ErrRecorderFinished)
	}
	r.status = StatusFinished
	return nil
}

// FreezeUsages drops the per-pass usage log once the compiler has
// merged it into the frame's per-resource timelines; the commands stay,
// the backend still needs them.
func (r *Recorder) FreezeUsages() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.usages = nil
}

// Commands returns the recorded command log.
func (r *Recorder) Commands() *ChunkArray[Command] { return r.commands }

// Usages returns the recorded usage log.
func (r *Recorder) Usages() *ChunkArray[usage.Record] { return r.usages }

// CommandRange returns the pass-local [0, n) range of recorded commands.
func (r *Recorder) CommandRange() usage.CommandRange {
	return usage.CommandRange{Lo: 0, Hi: r.commands.Len()}
}

// ReadResources returns the resources read during recording.
func (r *Recorder) ReadResources() []resource.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]resource.Handle, 0, len(r.readResources))
	for h := range r.readResources {
		out = append(out, h)
	}
	return out
}

// WrittenResources returns the resources written during recording.
func (r *Recorder) WrittenResources() []resource.Handle {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]resource.Handle, 0, len(r.writtenResources))
	for h := range r.writtenResources {
		out = append(out, h)
	}
	return out
}

// ExecutionMode decides whether a pass callback runs eagerly (during
// record time) or lazily (only if the pass survives culling).
type ExecutionMode int

const (
	// ExecutionLazy is used when the pass declared a non-empty write
	// set: reads/writes are taken from the declaration, and the
	// callback only runs if the pass survives culling.
	ExecutionLazy ExecutionMode = iota
	// ExecutionEager is used when the pass declared no writes at all:
	// the actual read/write set can only be discovered by running the
	// callback, so it always runs during record time.
	ExecutionEager
)

func (m ExecutionMode) String() string {
	if m == ExecutionEager {
		return "Eager"
	}
	return "Lazy"
}

// DetermineExecutionMode picks a pass's execution mode from its
// declared writes: a pass with an empty declared write set is executed
// eagerly (its real read/write sets can only be inferred from actual
// commands); one with any declared writes is executed lazily.
func DetermineExecutionMode(declaredWrites []resource.Handle) ExecutionMode {
	if len(declaredWrites) == 0 {
		return ExecutionEager
	}
	return ExecutionLazy
}
