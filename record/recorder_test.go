package record

import (
	"errors"
	"testing"

	"github.com/gogpu/framegraph/resource"
	"github.com/gogpu/framegraph/usage"
)

func texHandle(idx uint32) resource.Handle {
	return resource.NewHandle(resource.KindTexture, resource.LifetimeTransient, 1, 1, idx)
}

func TestRecorderRecordCommandAndUsage(t *testing.T) {
	r := NewRecorder(0)
	h := texHandle(1)

	cmd, err := r.RecordCommand("draw", 3, 1)
	if err != nil {
		t.Fatalf("RecordCommand: %v", err)
	}
	if err := r.RecordUsage(h, usage.AccessRenderTargetColor, usage.StageFragment, resource.FullTextureMask(1), cmd); err != nil {
		t.Fatalf("RecordUsage: %v", err)
	}

	if r.Commands().Len() != 1 {
		t.Fatalf("expected 1 recorded command, got %d", r.Commands().Len())
	}
	if r.Usages().Len() != 1 {
		t.Fatalf("expected 1 recorded usage, got %d", r.Usages().Len())
	}

	written := r.WrittenResources()
	if len(written) != 1 || written[0] != h {
		t.Errorf("WrittenResources() = %v, want [%v]", written, h)
	}
}

func TestRecorderReadAndWriteClassification(t *testing.T) {
	r := NewRecorder(0)
	readOnly := texHandle(1)
	written := texHandle(2)
	rw := texHandle(3)

	cmd, _ := r.RecordCommand("op")
	_ = r.RecordUsage(readOnly, usage.AccessShaderRead, usage.StageFragment, resource.FullTextureMask(1), cmd)
	_ = r.RecordUsage(written, usage.AccessShaderWrite, usage.StageCompute, resource.FullTextureMask(1), cmd)
	_ = r.RecordUsage(rw, usage.AccessShaderReadWrite, usage.StageCompute, resource.FullTextureMask(1), cmd)

	reads := map[resource.Handle]bool{}
	for _, h := range r.ReadResources() {
		reads[h] = true
	}
	writes := map[resource.Handle]bool{}
	for _, h := range r.WrittenResources() {
		writes[h] = true
	}

	if !reads[readOnly] || writes[readOnly] {
		t.Error("shader-read-only handle misclassified")
	}
	if !writes[written] || reads[written] {
		t.Error("shader-write-only handle misclassified")
	}
	if !reads[rw] || !writes[rw] {
		t.Error("read-write handle should appear in both sets")
	}
}

func TestRecorderFinishSealsAgainstFurtherRecording(t *testing.T) {
	r := NewRecorder(0)
	if err := r.Finish(); err != nil {
		t.Fatalf("first Finish: %v", err)
	}
	if err := r.Finish(); !errors.Is(err, ErrRecorderFinished) {
		t.Errorf("second Finish = %v, want ErrRecorderFinished", err)
	}
	if _, err := r.RecordCommand("op"); !errors.Is(err, ErrRecorderFinished) {
		t.Errorf("RecordCommand after Finish = %v, want ErrRecorderFinished", err)
	}
}

func TestDetermineExecutionMode(t *testing.T) {
	if DetermineExecutionMode(nil) != ExecutionEager {
		t.Error("empty declared writes should be Eager")
	}
	if DetermineExecutionMode([]resource.Handle{texHandle(1)}) != ExecutionLazy {
		t.Error("non-empty declared writes should be Lazy")
	}
}

func TestRecorderCommandRange(t *testing.T) {
	r := NewRecorder(0)
	r.RecordCommand("a")
	r.RecordCommand("b")
	r.RecordCommand("c")
	if got := r.CommandRange(); got != (usage.CommandRange{Lo: 0, Hi: 3}) {
		t.Errorf("CommandRange() = %+v, want {0 3}", got)
	}
}
