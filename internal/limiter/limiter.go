// Package limiter provides the process-wide concurrency budget shared by
// screenshot capture and persistence.
package limiter

import (
	"context"
	"fmt"
)

// Limiter bounds concurrent operations with a buffered-channel semaphore.
// A single instance is passed by reference into every call site that must
// share the budget.
type Limiter struct {
	slots chan struct{}
}

// New creates a Limiter allowing up to max concurrent holders. A max of zero
// or less disables limiting.
func New(max int) *Limiter {
	if max <= 0 {
		return &Limiter{}
	}
	return &Limiter{slots: make(chan struct{}, max)}
}

// Acquire blocks until a slot is free or the context finishes.
func (l *Limiter) Acquire(ctx context.Context) error {
	if l == nil || l.slots == nil {
		return nil
	}
	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("limiter slot wait canceled: %w", ctx.Err())
	}
}

// Release frees a previously acquired slot.
func (l *Limiter) Release() {
	if l == nil || l.slots == nil {
		return
	}
	select {
	case <-l.slots:
	default:
	}
}

// InFlight reports how many slots are currently held.
func (l *Limiter) InFlight() int {
	if l == nil || l.slots == nil {
		return 0
	}
	return len(l.slots)
}
