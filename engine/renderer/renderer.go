package renderer

import (
	"context"
	"fmt"
	"runtime"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// renderer is the implementation of the Renderer interface.
type renderer struct {
	mu *sync.Mutex

	pipelineCache map[string]pipeline.Pipeline

	backendType RendererBackendType
	backend     RendererBackend

	log *zap.Logger

	// Pre-creation config collected from builder options
	forceFallbackAdapter bool
	compatibleSurface    *wgpu.SurfaceDescriptor
	computeWorkers       int
}

// Renderer is the resource allocator and command interface used by the clustering core.
//
// It owns every device buffer behind arena-indexed handles, caches compute pipelines by key,
// creates bind groups from backend-independent layouts, and records compute command streams
// that are submitted per frame slot. Validation (bounds, alignment, stale handles, unknown
// bindings) happens here so every backend rejects the same programmer errors.
type Renderer interface {
	// Backend returns the backend type selected at construction.
	//
	// Returns:
	//   - RendererBackendType: the backend type
	Backend() RendererBackendType

	// Pipeline retrieves the cached Pipeline associated with the given key.
	//
	// Parameters:
	//   - key: the unique identifier for the Pipeline to retrieve
	//
	// Returns:
	//   - pipeline.Pipeline: the Pipeline associated with the key, or nil if not found
	Pipeline(key string) pipeline.Pipeline

	// Pipelines retrieves a copy of the pipeline cache.
	//
	// Returns:
	//   - map[string]pipeline.Pipeline: a map of pipeline keys to their corresponding Pipeline objects
	Pipelines() map[string]pipeline.Pipeline

	// RegisterPipelines creates the backend objects for one or more compute pipelines and caches
	// them by PipelineKey. Pipelines whose keys are already registered are skipped.
	//
	// Parameters:
	//   - pipelines: the Pipelines to register
	//
	// Returns:
	//   - error: an error if pipeline creation fails
	RegisterPipelines(pipelines ...pipeline.Pipeline) error

	// CreateBuffer allocates a zero-initialized device buffer.
	//
	// Parameters:
	//   - desc: label, size and usage of the buffer
	//
	// Returns:
	//   - buffer.Handle: the owning handle
	//   - error: an error if the device could not allocate the buffer
	CreateBuffer(desc buffer.Descriptor) (buffer.Handle, error)

	// ReleaseBuffer frees a device buffer. Every copy of h becomes stale.
	//
	// Parameters:
	//   - h: the buffer to free
	//
	// Returns:
	//   - error: buffer.ErrStaleHandle or buffer.ErrInvalidHandle if h does not resolve
	ReleaseBuffer(h buffer.Handle) error

	// BufferSize returns the size in bytes of a live buffer.
	//
	// Parameters:
	//   - h: the buffer handle
	//
	// Returns:
	//   - uint64: the buffer size
	//   - error: an error if h does not resolve
	BufferSize(h buffer.Handle) (uint64, error)

	// InitBindGroup creates the backend bind group for a provider. Bindings without a buffer
	// get a new buffer owned by the provider, sized from bufferSizeOverrides or MinBindingSize.
	//
	// Parameters:
	//   - provider: the BindGroupProvider to initialize
	//   - descriptor: the layout of the bind group
	//   - bufferUsageOverrides: extra usage flags ORed into created buffers, keyed by binding (nil safe)
	//   - bufferSizeOverrides: sizes for created buffers, keyed by binding (nil safe)
	//
	// Returns:
	//   - error: an error if a buffer or the bind group could not be created
	InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor bind_group_provider.LayoutDescriptor, bufferUsageOverrides map[int]buffer.Usage, bufferSizeOverrides map[int]uint64) error

	// ReleaseBindGroup frees the backend bind group of a provider and the buffers it owns.
	// Buffers bound by reference are left alone.
	//
	// Parameters:
	//   - provider: the provider to release
	//
	// Returns:
	//   - error: aggregated release errors
	ReleaseBindGroup(provider bind_group_provider.BindGroupProvider) error

	// WriteBuffers enqueues all staged writes. Writes are ordered before the next submission.
	// Every write is validated before any is applied.
	//
	// Parameters:
	//   - writes: a slice of BufferWrite structs describing the data to write
	//
	// Returns:
	//   - error: ErrUnknownBinding, ErrMisalignedWrite, ErrOutOfBounds or a stale handle error
	WriteBuffers(writes []bind_group_provider.BufferWrite) error

	// ReadBuffer copies a range of a buffer back to host memory after prior submissions complete.
	//
	// Parameters:
	//   - h: the buffer to read
	//   - offset: byte offset, multiple of 4
	//   - size: byte count, multiple of 4
	//
	// Returns:
	//   - []byte: the buffer contents
	//   - error: an error if the range is invalid or the readback failed
	ReadBuffer(h buffer.Handle, offset, size uint64) ([]byte, error)

	// BeginComputeFrame starts recording a compute command stream.
	//
	// Returns:
	//   - error: ErrComputeFrameActive or a backend error
	BeginComputeFrame() error

	// DispatchCompute records a dispatch of a registered pipeline.
	//
	// Parameters:
	//   - pipelineKey: the key of a registered pipeline
	//   - computeProvider: the initialized provider bound at group 0
	//   - workGroupCount: workgroups in x, y and z
	//
	// Returns:
	//   - error: ErrPipelineNotFound, ErrBindGroupNotInitialized, ErrNoComputeFrame or a backend error
	DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// Barrier records a buffer memory dependency.
	//
	// Parameters:
	//   - b: the barrier description
	//
	// Returns:
	//   - error: ErrNoComputeFrame or a stale handle error
	Barrier(b Barrier) error

	// EndComputeFrame submits the recorded command stream and signals the fence of frameSlot
	// when the device completes it.
	//
	// Parameters:
	//   - frameSlot: the frame-in-flight slot the submission belongs to
	//
	// Returns:
	//   - error: ErrNoComputeFrame or a backend submission error
	EndComputeFrame(frameSlot int) error

	// WaitFrame blocks until the last submission of frameSlot completed.
	//
	// Parameters:
	//   - ctx: bounds the wait; a deadline turns a hang into ErrDeviceTimeout
	//   - frameSlot: the slot to wait for
	//
	// Returns:
	//   - error: ErrDeviceTimeout if ctx ends first
	WaitFrame(ctx context.Context, frameSlot int) error

	// QueueFamilies reports the queue families used for compute and graphics work.
	//
	// Returns:
	//   - compute: the compute queue family
	//   - graphics: the graphics queue family
	QueueFamilies() (compute, graphics uint32)

	// Stats returns cumulative device counters.
	//
	// Returns:
	//   - DeviceStats: the counters
	Stats() DeviceStats

	// Release frees every device object.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

var _ Renderer = &renderer{}

// NewRenderer creates a Renderer on the requested backend. Device creation failures are
// returned; callers treat them as fatal.
//
// Parameters:
//   - backendType: the backend to create
//   - options: functional options
//
// Returns:
//   - Renderer: the renderer
//   - error: an error if the device could not be created
func NewRenderer(backendType RendererBackendType, options ...RendererBuilderOption) (Renderer, error) {
	r := &renderer{
		mu:            &sync.Mutex{},
		pipelineCache: make(map[string]pipeline.Pipeline),
		backendType:   backendType,
	}

	for _, opt := range options {
		opt(r)
	}
	if r.log == nil {
		r.log = logger.New("renderer")
	}

	var err error
	switch backendType {
	case BackendTypeSoftware:
		workers := r.computeWorkers
		if workers <= 0 {
			workers = runtime.NumCPU()
		}
		r.backend = newSoftwareRendererBackend(workers)
	case BackendTypeWGPU:
		r.backend, err = newWGPURendererBackend(r.compatibleSurface, r.forceFallbackAdapter)
	default:
		err = fmt.Errorf("renderer: unknown backend type %d", backendType)
	}
	if err != nil {
		return nil, err
	}

	r.log.Info("device created", zap.Stringer("backend", backendType))
	return r, nil
}

func (r *renderer) Backend() RendererBackendType {
	return r.backendType
}

func (r *renderer) Pipeline(key string) pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.pipelineCache[key]
}

func (r *renderer) Pipelines() map[string]pipeline.Pipeline {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make(map[string]pipeline.Pipeline, len(r.pipelineCache))
	for k, v := range r.pipelineCache {
		out[k] = v
	}
	return out
}

func (r *renderer) RegisterPipelines(pipelines ...pipeline.Pipeline) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range pipelines {
		key := p.PipelineKey()
		if _, exists := r.pipelineCache[key]; exists {
			continue
		}
		if p.Shader() == nil {
			return fmt.Errorf("renderer: pipeline %q has no compute shader", key)
		}
		if err := r.backend.RegisterComputePipeline(p); err != nil {
			return fmt.Errorf("renderer: register pipeline %q: %w", key, err)
		}
		r.pipelineCache[key] = p
	}
	return nil
}

func (r *renderer) CreateBuffer(desc buffer.Descriptor) (buffer.Handle, error) {
	if desc.Size == 0 || desc.Size%4 != 0 {
		return buffer.Handle{}, fmt.Errorf("renderer: buffer %q size %d: %w", desc.Label, desc.Size, ErrMisalignedWrite)
	}
	h, err := r.backend.CreateBuffer(desc)
	if err != nil {
		return buffer.Handle{}, fmt.Errorf("renderer: create buffer %q: %w", desc.Label, err)
	}
	return h, nil
}

func (r *renderer) ReleaseBuffer(h buffer.Handle) error {
	return r.backend.ReleaseBuffer(h)
}

func (r *renderer) BufferSize(h buffer.Handle) (uint64, error) {
	desc, err := r.backend.BufferDescriptor(h)
	if err != nil {
		return 0, err
	}
	return desc.Size, nil
}

func (r *renderer) InitBindGroup(provider bind_group_provider.BindGroupProvider, descriptor bind_group_provider.LayoutDescriptor, bufferUsageOverrides map[int]buffer.Usage, bufferSizeOverrides map[int]uint64) error {
	if len(descriptor.Entries) == 0 {
		return nil
	}

	for _, entry := range descriptor.Entries {
		required := requiredUsage(entry.Type)

		if h, ok := provider.Buffer(entry.Binding); ok {
			desc, err := r.backend.BufferDescriptor(h)
			if err != nil {
				return fmt.Errorf("renderer: %s binding %d: %w", provider.Label(), entry.Binding, err)
			}
			if !desc.Usage.Has(required) {
				return fmt.Errorf("renderer: %s binding %d (%s) on %q: %w", provider.Label(), entry.Binding, entry.Type, desc.Label, ErrIncompatibleUsage)
			}
			continue
		}

		usage := required | buffer.UsageCopyDst
		if entry.Type != bind_group_provider.BindingTypeUniform {
			usage |= buffer.UsageCopySrc
		}
		if overrideUsage, ok := bufferUsageOverrides[entry.Binding]; ok {
			usage |= overrideUsage
		}
		size := entry.MinBindingSize
		if overrideSize, ok := bufferSizeOverrides[entry.Binding]; ok {
			size = overrideSize
		}

		h, err := r.CreateBuffer(buffer.Descriptor{
			Label: fmt.Sprintf("%s Buffer %d", provider.Label(), entry.Binding),
			Size:  size,
			Usage: usage,
		})
		if err != nil {
			return err
		}
		provider.SetOwnedBuffer(entry.Binding, h)
	}

	if old := provider.BindGroup(); old != nil {
		r.backend.ReleaseBindGroupObjects(old, provider.BindGroupLayout())
	}
	if err := r.backend.CreateBindGroup(provider, descriptor); err != nil {
		return fmt.Errorf("renderer: create bind group %q: %w", provider.Label(), err)
	}
	return nil
}

func (r *renderer) ReleaseBindGroup(provider bind_group_provider.BindGroupProvider) error {
	bg, bgl, owned := provider.Reset()
	r.backend.ReleaseBindGroupObjects(bg, bgl)

	var err error
	for _, h := range owned {
		err = multierr.Append(err, r.backend.ReleaseBuffer(h))
	}
	return err
}

func (r *renderer) WriteBuffers(writes []bind_group_provider.BufferWrite) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	handles := make([]buffer.Handle, len(writes))
	for i, w := range writes {
		h, ok := w.Provider.Buffer(w.Binding)
		if !ok {
			return fmt.Errorf("renderer: write to %s binding %d: %w", w.Provider.Label(), w.Binding, ErrUnknownBinding)
		}
		if err := r.checkRange(h, w.Offset, uint64(len(w.Data))); err != nil {
			return fmt.Errorf("renderer: write to %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
		handles[i] = h
	}

	for i, w := range writes {
		if err := r.backend.WriteBuffer(handles[i], w.Offset, w.Data); err != nil {
			return fmt.Errorf("renderer: write to %s binding %d: %w", w.Provider.Label(), w.Binding, err)
		}
	}
	return nil
}

func (r *renderer) ReadBuffer(h buffer.Handle, offset, size uint64) ([]byte, error) {
	if err := r.checkRange(h, offset, size); err != nil {
		return nil, fmt.Errorf("renderer: read %s: %w", h, err)
	}
	if size == 0 {
		return []byte{}, nil
	}
	return r.backend.ReadBuffer(h, offset, size)
}

func (r *renderer) BeginComputeFrame() error {
	return r.backend.BeginComputeFrame()
}

func (r *renderer) DispatchCompute(pipelineKey string, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	r.mu.Lock()
	p, exists := r.pipelineCache[pipelineKey]
	r.mu.Unlock()

	if !exists {
		return fmt.Errorf("%w: %q", ErrPipelineNotFound, pipelineKey)
	}
	if computeProvider == nil || computeProvider.BindGroup() == nil {
		return fmt.Errorf("renderer: dispatch %q: %w", pipelineKey, ErrBindGroupNotInitialized)
	}

	return r.backend.DispatchCompute(p, computeProvider, workGroupCount)
}

func (r *renderer) Barrier(b Barrier) error {
	return r.backend.Barrier(b)
}

func (r *renderer) EndComputeFrame(frameSlot int) error {
	return r.backend.EndComputeFrame(frameSlot)
}

func (r *renderer) WaitFrame(ctx context.Context, frameSlot int) error {
	return r.backend.WaitFrame(ctx, frameSlot)
}

func (r *renderer) QueueFamilies() (uint32, uint32) {
	return r.backend.QueueFamilies()
}

func (r *renderer) Stats() DeviceStats {
	return r.backend.Stats()
}

func (r *renderer) Release() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.pipelineCache = make(map[string]pipeline.Pipeline)
	return r.backend.Release()
}

// checkRange validates that [offset, offset+size) is a word-aligned range inside h.
func (r *renderer) checkRange(h buffer.Handle, offset, size uint64) error {
	desc, err := r.backend.BufferDescriptor(h)
	if err != nil {
		return err
	}
	if offset%4 != 0 || size%4 != 0 {
		return fmt.Errorf("offset %d size %d: %w", offset, size, ErrMisalignedWrite)
	}
	if offset+size > desc.Size {
		return fmt.Errorf("range [%d, %d) of %q (%d bytes): %w", offset, offset+size, desc.Label, desc.Size, ErrOutOfBounds)
	}
	return nil
}

// requiredUsage maps a binding type to the buffer usage it needs.
func requiredUsage(t bind_group_provider.BindingType) buffer.Usage {
	if t == bind_group_provider.BindingTypeUniform {
		return buffer.UsageUniform
	}
	return buffer.UsageStorage
}
