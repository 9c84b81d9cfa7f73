package light

import (
	"errors"
	"fmt"
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"go.uber.org/zap"
)

var (
	// ErrCapacityExceeded is returned by SetLights when more clusterable lights are given than the Store holds.
	ErrCapacityExceeded = errors.New("light: light count exceeds store capacity")

	// ErrInvalidLight is returned by SetLights for a light with a negative or non-finite radius.
	ErrInvalidLight = errors.New("light: invalid light")
)

// store is the implementation of the Store interface.
type store struct {
	mu *sync.Mutex

	r        renderer.Renderer
	log      *zap.Logger
	capacity int

	handle   buffer.Handle
	provider bind_group_provider.BindGroupProvider

	// count is the number of records of the most recent accepted light set; uploaded is
	// the number resident in the buffer after the last Sync.
	count    int
	uploaded int
	pending  []byte
	dirty    bool
	revision uint64
}

// Store is the GPU-resident array of light records read by the culling and shading stages.
//
// The light set is replaced wholesale through SetLights; the new records are staged on the
// host and only uploaded by Sync, which the cluster pipeline calls right after waiting on a
// frame fence so an upload never overlaps a culling dispatch of the same frame slot.
// Directional and disabled lights are skipped; indices in the cluster light lists refer
// to positions among the uploaded records, in the order they were given.
type Store interface {
	// SetLights replaces the light set. Nothing changes when an error is returned.
	//
	// Parameters:
	//   - lights: the new light set
	//
	// Returns:
	//   - error: ErrCapacityExceeded or ErrInvalidLight
	SetLights(lights []Light) error

	// Sync uploads the staged light set, if any. The returned count is read under the same
	// lock as the upload, so a SetLights racing with the caller never changes it; that set
	// is picked up by the next Sync.
	//
	// Returns:
	//   - int: the number of records resident in the light buffer
	//   - error: an error if the buffer write failed
	Sync() (int, error)

	// Buffer returns the handle of the light storage buffer. The Store owns it.
	//
	// Returns:
	//   - buffer.Handle: the light buffer
	Buffer() buffer.Handle

	// Count returns the number of records in the most recent light set, which may not be
	// uploaded yet.
	//
	// Returns:
	//   - int: the record count
	Count() int

	// Capacity returns the maximum number of records.
	//
	// Returns:
	//   - int: the capacity
	Capacity() int

	// Revision increments on every accepted SetLights.
	//
	// Returns:
	//   - uint64: the light set revision
	Revision() uint64

	// Release frees the light buffer.
	//
	// Returns:
	//   - error: an error if the buffer was already released
	Release() error
}

var _ Store = &store{}

// NewStore creates a Store and allocates its light buffer.
//
// Parameters:
//   - r: the renderer that allocates the buffer
//   - options: functional options
//
// Returns:
//   - Store: the new store
//   - error: an error if the buffer could not be created
func NewStore(r renderer.Renderer, options ...StoreBuilderOption) (Store, error) {
	s := &store{
		mu:       &sync.Mutex{},
		r:        r,
		capacity: DefaultCapacity,
	}
	for _, opt := range options {
		opt(s)
	}
	if s.log == nil {
		s.log = logger.New("light")
	}
	if s.capacity <= 0 {
		return nil, fmt.Errorf("light: capacity %d must be positive", s.capacity)
	}

	h, err := r.CreateBuffer(buffer.Descriptor{
		Label: "Light Store",
		Size:  uint64(s.capacity * (&GPULight{}).Size()),
		Usage: buffer.UsageStorage | buffer.UsageCopyDst | buffer.UsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("light: create store buffer: %w", err)
	}
	s.handle = h
	s.provider = bind_group_provider.NewBindGroupProvider("Light Store", bind_group_provider.WithBuffer(0, h))
	return s, nil
}

func (s *store) SetLights(lights []Light) error {
	for i, l := range lights {
		if !Clusterable(l) {
			continue
		}
		r := float64(l.Radius())
		if r < 0 || math.IsNaN(r) || math.IsInf(r, 0) {
			return fmt.Errorf("%w: light %d radius %v", ErrInvalidLight, i, l.Radius())
		}
	}

	data, count := MarshalLightBuffer(lights)
	if count > s.capacity {
		return fmt.Errorf("%w: %d lights, capacity %d", ErrCapacityExceeded, count, s.capacity)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.pending = data
	s.count = count
	s.dirty = true
	s.revision++

	s.log.Debug("light set replaced",
		zap.Int("given", len(lights)),
		zap.Int("stored", count),
		zap.Uint64("revision", s.revision),
	)
	return nil
}

func (s *store) Sync() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.dirty {
		return s.uploaded, nil
	}
	if len(s.pending) > 0 {
		if err := s.r.WriteBuffers([]bind_group_provider.BufferWrite{{
			Provider: s.provider,
			Binding:  0,
			Offset:   0,
			Data:     s.pending,
		}}); err != nil {
			return s.uploaded, fmt.Errorf("light: upload %d lights: %w", s.count, err)
		}
	}
	s.uploaded = s.count
	s.pending = nil
	s.dirty = false
	return s.uploaded, nil
}

func (s *store) Buffer() buffer.Handle {
	return s.handle
}

func (s *store) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.count
}

func (s *store) Capacity() int {
	return s.capacity
}

func (s *store) Revision() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revision
}

func (s *store) Release() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.provider.Reset()
	return s.r.ReleaseBuffer(s.handle)
}
