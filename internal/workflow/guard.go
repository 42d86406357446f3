package workflow

import "context"

// acquisition is the tagged result of a non-blocking slot acquire.
type acquisition int

const (
	acquired acquisition = iota
	busy
)

// runSlot is a semaphore of size one.
type runSlot struct {
	ch chan struct{}
}

func newRunSlot() *runSlot {
	return &runSlot{ch: make(chan struct{}, 1)}
}

func (s *runSlot) tryAcquire() acquisition {
	select {
	case s.ch <- struct{}{}:
		return acquired
	default:
		return busy
	}
}

// acquire blocks until the slot is free or ctx ends.
func (s *runSlot) acquire(ctx context.Context) error {
	select {
	case s.ch <- struct{}{}:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *runSlot) release() {
	select {
	case <-s.ch:
	default:
	}
}
