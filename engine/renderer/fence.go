package renderer

import (
	"context"
	"fmt"
	"sync"
)

// submission is the last queue submission of one frame slot.
type submission struct {
	index uint64

	// done is closed once the submission has completed. It is nil until the first wait.
	done chan struct{}
}

// slotFences tracks the outstanding submission of every frame slot of a device whose
// queue signals completion per submission index.
//
// A wait polls for the slot's own submission only, so later submissions of other slots
// stay in flight. The poll itself blocks and cannot be cancelled; a wait that times out
// leaves it running and the next wait on the same slot joins it instead of starting
// another.
type slotFences struct {
	mu      *sync.Mutex
	pending map[int]*submission

	// poll blocks until the submission with the given index has completed.
	poll func(index uint64)
}

func newSlotFences(poll func(index uint64)) *slotFences {
	return &slotFences{
		mu:      &sync.Mutex{},
		pending: make(map[int]*submission),
		poll:    poll,
	}
}

// submitted records index as the latest submission of frameSlot.
func (f *slotFences) submitted(frameSlot int, index uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pending[frameSlot] = &submission{index: index}
}

// wait blocks until the latest submission of frameSlot has completed or ctx ends.
//
// Parameters:
//   - ctx: bounds the wait
//   - frameSlot: the frame slot
//
// Returns:
//   - error: ErrDeviceTimeout if ctx ends first
func (f *slotFences) wait(ctx context.Context, frameSlot int) error {
	f.mu.Lock()
	sub := f.pending[frameSlot]
	if sub == nil {
		f.mu.Unlock()
		return nil
	}
	if sub.done == nil {
		sub.done = make(chan struct{})
		go f.await(frameSlot, sub)
	}
	done := sub.done
	f.mu.Unlock()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("frame slot %d: %w", frameSlot, ErrDeviceTimeout)
	}
}

func (f *slotFences) await(frameSlot int, sub *submission) {
	f.poll(sub.index)

	f.mu.Lock()
	// A newer submission of the slot may have replaced this one meanwhile.
	if f.pending[frameSlot] == sub {
		delete(f.pending, frameSlot)
	}
	f.mu.Unlock()
	close(sub.done)
}
