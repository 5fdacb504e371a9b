package converter

import (
	"context"
	"errors"
)

// ErrNoSlot is returned when the request ends before a conversion slot
// frees up.
var ErrNoSlot = errors.New("no conversion slot available")

// Limiter bounds how many conversions run ffmpeg at once. Waiters are not
// queued anywhere beyond their own goroutine; a cancelled request simply
// stops waiting.
type Limiter struct {
	slots chan struct{}
}

// NewLimiter creates a limiter with n slots (at least one).
func NewLimiter(n int) *Limiter {
	if n < 1 {
		n = 1
	}
	return &Limiter{slots: make(chan struct{}, n)}
}

// Acquire blocks until a slot is free or ctx is done.
func (l *Limiter) Acquire(ctx context.Context) error {
	select {
	case l.slots <- struct{}{}:
		return nil
	default:
	}

	select {
	case l.slots <- struct{}{}:
		return nil
	case <-ctx.Done():
		return errors.Join(ErrNoSlot, ctx.Err())
	}
}

// Release returns a slot taken by Acquire.
func (l *Limiter) Release() {
	<-l.slots
}

// Capacity returns the number of slots.
func (l *Limiter) Capacity() int {
	return cap(l.slots)
}

// InUse returns the number of slots currently held.
func (l *Limiter) InUse() int {
	return len(l.slots)
}
