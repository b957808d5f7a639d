package frame

import "context"

// Semaphore is a counting semaphore with a fixed number of permits,
// bounding how many frames of one graph may be inflight simultaneously.
// Implemented as a buffered-channel token bucket.
type Semaphore struct {
	tokens chan struct{}
}

// NewSemaphore returns a semaphore with the given number of initial
// permits. permits must be at least 1.
func NewSemaphore(permits int) *Semaphore {
	if permits < 1 {
		permits = 1
	}
	s := &Semaphore{tokens: make(chan struct{}, permits)}
	for i := 0; i < permits; i++ {
		s.tokens <- struct{}{}
	}
	return s
}

// Acquire blocks until a permit is available or ctx is cancelled.
func (s *Semaphore) Acquire(ctx context.Context) error {
	select {
	case <-s.tokens:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Release returns a permit. Calling Release more times than permits were
// ever acquired is a programmer error (the channel would block forever
// trying to over-fill); callers must pair every Acquire with exactly one
// Release.
func (s *Semaphore) Release() {
	s.tokens <- struct{}{}
}

// Available reports how many permits are currently free.
func (s *Semaphore) Available() int { return len(s.tokens) }

// HasMaxInFlight reports whether the semaphore has no free permits.
func (s *Semaphore) HasMaxInFlight() bool { return len(s.tokens) == 0 }
