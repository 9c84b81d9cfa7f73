package renderer

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

// gatedQueue completes a submission only once its gate is opened and records the
// submission indices that were polled.
type gatedQueue struct {
	mu     sync.Mutex
	gates  map[uint64]chan struct{}
	polled []uint64
}

func newGatedQueue(indices ...uint64) *gatedQueue {
	q := &gatedQueue{gates: make(map[uint64]chan struct{})}
	for _, i := range indices {
		q.gates[i] = make(chan struct{})
	}
	return q
}

func (q *gatedQueue) poll(index uint64) {
	q.mu.Lock()
	q.polled = append(q.polled, index)
	gate := q.gates[index]
	q.mu.Unlock()
	<-gate
}

func (q *gatedQueue) open(index uint64) {
	close(q.gates[index])
}

func (q *gatedQueue) polls() []uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return append([]uint64(nil), q.polled...)
}

func TestWaitFrameWaitsForItsOwnSubmission(t *testing.T) {
	q := newGatedQueue(1, 2)
	f := newSlotFences(q.poll)
	f.submitted(0, 1)
	f.submitted(1, 2)

	// Slot 1 stays in flight while slot 0 is waited on.
	q.open(1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	if err := f.wait(ctx, 0); err != nil {
		t.Fatalf("wait(0): %v", err)
	}
	if got := q.polls(); len(got) != 1 || got[0] != 1 {
		t.Fatalf("polled %v, want [1]", got)
	}

	short, cancelShort := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancelShort()
	if err := f.wait(short, 1); !errors.Is(err, ErrDeviceTimeout) {
		t.Fatalf("wait(1) = %v, want ErrDeviceTimeout", err)
	}

	q.open(2)
	if err := f.wait(ctx, 1); err != nil {
		t.Fatalf("wait(1) after completion: %v", err)
	}
	if got := q.polls(); len(got) != 2 || got[1] != 2 {
		t.Fatalf("polled %v, want [1 2]", got)
	}
}

func TestWaitFrameWithoutSubmission(t *testing.T) {
	f := newSlotFences(func(uint64) { t.Error("poll without a submission") })
	if err := f.wait(context.Background(), 3); err != nil {
		t.Fatalf("wait: %v", err)
	}
}

func TestNewerSubmissionSurvivesOlderCompletion(t *testing.T) {
	q := newGatedQueue(1, 5)
	f := newSlotFences(q.poll)
	f.submitted(0, 1)

	short, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	if err := f.wait(short, 0); !errors.Is(err, ErrDeviceTimeout) {
		t.Fatalf("wait = %v, want ErrDeviceTimeout", err)
	}

	f.submitted(0, 5)
	q.open(1)

	short2, cancel2 := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel2()
	if err := f.wait(short2, 0); !errors.Is(err, ErrDeviceTimeout) {
		t.Fatalf("wait on the newer submission = %v, want ErrDeviceTimeout", err)
	}
	q.open(5)
	if err := f.wait(context.Background(), 0); err != nil {
		t.Fatalf("wait: %v", err)
	}
}
