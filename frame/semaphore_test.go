package frame

import (
	"context"
	"testing"
	"time"
)

func TestSemaphoreAcquireRelease(t *testing.T) {
	s := NewSemaphore(2)
	if s.Available() != 2 {
		t.Fatalf("Available() = %d, want 2", s.Available())
	}
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if s.Available() != 1 {
		t.Fatalf("Available() = %d, want 1", s.Available())
	}
	s.Release()
	if s.Available() != 2 {
		t.Fatalf("Available() = %d, want 2", s.Available())
	}
}

func TestSemaphoreHasMaxInFlight(t *testing.T) {
	s := NewSemaphore(1)
	if s.HasMaxInFlight() {
		t.Fatal("HasMaxInFlight() = true before any Acquire")
	}
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}
	if !s.HasMaxInFlight() {
		t.Fatal("HasMaxInFlight() = false after exhausting the only permit")
	}
	s.Release()
	if s.HasMaxInFlight() {
		t.Fatal("HasMaxInFlight() = true after Release")
	}
}

func TestSemaphoreAcquireBlocksUntilContextCancelled(t *testing.T) {
	s := NewSemaphore(1)
	if err := s.Acquire(context.Background()); err != nil {
		t.Fatalf("Acquire: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	if err := s.Acquire(ctx); err == nil {
		t.Fatal("Acquire() with no free permits and an expiring context returned nil error")
	}
}

func TestNewSemaphoreClampsToAtLeastOne(t *testing.T) {
	s := NewSemaphore(0)
	if s.Available() != 1 {
		t.Fatalf("Available() = %d, want 1 for a zero-permit request", s.Available())
	}
}
