package buffer

import (
	"errors"
	"fmt"
)

var (
	// ErrStaleHandle is returned when a handle refers to a slot that has been released
	// (and possibly reused) since the handle was issued.
	ErrStaleHandle = errors.New("buffer: stale handle")

	// ErrInvalidHandle is returned for the zero Handle or an index outside the arena.
	ErrInvalidHandle = errors.New("buffer: invalid handle")
)

// Usage is a bit set describing how a buffer may be used by the device.
type Usage uint32

const (
	// UsageUniform allows the buffer to be bound as a uniform buffer.
	UsageUniform Usage = 1 << iota

	// UsageStorage allows the buffer to be bound as a (read-only or read-write) storage buffer.
	UsageStorage

	// UsageCopySrc allows the buffer to be the source of a copy, required for readback.
	UsageCopySrc

	// UsageCopyDst allows the buffer to be the destination of queue writes and copies.
	UsageCopyDst
)

// Has reports whether every bit in flag is set on u.
func (u Usage) Has(flag Usage) bool {
	return u&flag == flag
}

// Descriptor describes a buffer to create through the device.
type Descriptor struct {
	Label string
	Size  uint64
	Usage Usage
}

// Handle is an arena-indexed, generation-checked reference to a device buffer.
// The zero Handle is never valid. Handles are plain values: holding one does not
// keep the buffer alive, and a handle to a released buffer is detected as stale
// instead of aliasing whatever reuses the slot.
type Handle struct {
	index      uint32
	generation uint32
}

// IsZero reports whether h is the zero Handle.
func (h Handle) IsZero() bool {
	return h.generation == 0
}

// Index returns the arena slot of the handle.
func (h Handle) Index() uint32 {
	return h.index
}

// Generation returns the generation the handle was issued with.
func (h Handle) Generation() uint32 {
	return h.generation
}

// String implements fmt.Stringer.
func (h Handle) String() string {
	return fmt.Sprintf("buffer#%d.%d", h.index, h.generation)
}
