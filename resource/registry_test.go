package resource

import (
	"errors"
	"testing"
)

func TestTransientRegistryAllocateGetDispose(t *testing.T) {
	reg := NewTransientRegistry[string](KindBuffer)
	reg.Reset(1, 4)

	h := reg.Allocate("hello")
	if h.Kind() != KindBuffer || h.Lifetime() != LifetimeTransient {
		t.Fatalf("unexpected handle shape: %v", h)
	}
	if h.RegistryIndex() != 1 {
		t.Errorf("RegistryIndex() = %d, want 1", h.RegistryIndex())
	}

	got, err := reg.Get(h)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "hello" {
		t.Errorf("Get() = %q, want hello", got)
	}

	if err := reg.Dispose(h); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if _, err := reg.Get(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Dispose = %v, want ErrNotFound", err)
	}
}

func TestTransientRegistrySlotReuseBumpsGeneration(t *testing.T) {
	reg := NewTransientRegistry[int](KindTexture)
	reg.Reset(1, 2)

	a := reg.Allocate(1)
	if err := reg.Dispose(a); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	b := reg.Allocate(2)

	if a.Index() != b.Index() {
		t.Fatalf("expected slot reuse, got indices %d and %d", a.Index(), b.Index())
	}
	if b.Generation() <= a.Generation() {
		t.Errorf("expected generation to increase on reuse: a=%d b=%d", a.Generation(), b.Generation())
	}
	if _, err := reg.Get(a); !errors.Is(err, ErrGenerationMismatch) {
		t.Errorf("Get(a) after reuse = %v, want ErrGenerationMismatch", err)
	}
}

func TestTransientRegistryStaleFrameDetected(t *testing.T) {
	reg := NewTransientRegistry[int](KindBuffer)
	reg.Reset(1, 1)
	h := reg.Allocate(42)

	reg.Reset(2, 1)
	if _, err := reg.Get(h); !errors.Is(err, ErrStaleFrame) {
		t.Errorf("Get() across frames = %v, want ErrStaleFrame", err)
	}
}

func TestTransientRegistryWrongKindRejected(t *testing.T) {
	reg := NewTransientRegistry[int](KindBuffer)
	reg.Reset(1, 1)
	h := reg.Allocate(1)

	other := NewTransientRegistry[int](KindTexture)
	other.Reset(1, 1)
	if _, err := other.Get(h); !errors.Is(err, ErrInvalidHandle) {
		t.Errorf("Get() with mismatched kind = %v, want ErrInvalidHandle", err)
	}
}

func TestPersistentRegistryAllocateGetDispose(t *testing.T) {
	reg := NewPersistentRegistry[string](KindTexture)

	h := reg.Allocate("a-texture")
	if h.Lifetime() != LifetimePersistent {
		t.Fatalf("expected persistent lifetime, got %v", h.Lifetime())
	}

	got, err := reg.Get(h)
	if err != nil || got != "a-texture" {
		t.Fatalf("Get() = (%q, %v), want (a-texture, nil)", got, err)
	}

	if err := reg.Dispose(h); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	if _, err := reg.Get(h); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get after Dispose = %v, want ErrNotFound", err)
	}
}

func TestPersistentRegistryGrowsAcrossChunks(t *testing.T) {
	reg := NewPersistentRegistry[int](KindBuffer)

	handles := make([]Handle, 0, ItemsPerChunk+10)
	for i := 0; i < ItemsPerChunk+10; i++ {
		handles = append(handles, reg.Allocate(i))
	}

	for i, h := range handles {
		got, err := reg.Get(h)
		if err != nil {
			t.Fatalf("Get(%d): %v", i, err)
		}
		if got != i {
			t.Errorf("Get(%d) = %d, want %d", i, got, i)
		}
	}
}

func TestPersistentRegistrySlotReuseBumpsGeneration(t *testing.T) {
	reg := NewPersistentRegistry[int](KindHeap)

	a := reg.Allocate(1)
	if err := reg.Dispose(a); err != nil {
		t.Fatalf("Dispose: %v", err)
	}
	b := reg.Allocate(2)

	if a.Index() != b.Index() {
		t.Fatalf("expected slot reuse, got indices %d and %d", a.Index(), b.Index())
	}
	if _, err := reg.Get(a); !errors.Is(err, ErrGenerationMismatch) {
		t.Errorf("Get(a) after reuse = %v, want ErrGenerationMismatch", err)
	}
	if got, err := reg.Get(b); err != nil || got != 2 {
		t.Errorf("Get(b) = (%d, %v), want (2, nil)", got, err)
	}
}
