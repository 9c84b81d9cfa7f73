package renderer

import (
	"context"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
)

// RendererBackendType identifies the compute device implementation used by the Renderer.
type RendererBackendType int

const (
	// BackendTypeWGPU selects the WebGPU-based backend. Kernels run as WGSL compute shaders.
	BackendTypeWGPU RendererBackendType = iota

	// BackendTypeSoftware selects the host backend. Kernels run as Go functions on a worker
	// pool over word-addressed buffers; queue submissions complete synchronously.
	BackendTypeSoftware
)

// String implements fmt.Stringer.
func (t RendererBackendType) String() string {
	switch t {
	case BackendTypeWGPU:
		return "wgpu"
	case BackendTypeSoftware:
		return "software"
	default:
		return "unknown"
	}
}

// ParseBackendType maps a backend name ("wgpu" or "software") to its RendererBackendType.
//
// Parameters:
//   - name: the backend name
//
// Returns:
//   - RendererBackendType: the matching backend type
//   - bool: false if the name is not recognized
func ParseBackendType(name string) (RendererBackendType, bool) {
	switch name {
	case "wgpu", "gpu":
		return BackendTypeWGPU, true
	case "software", "cpu":
		return BackendTypeSoftware, true
	default:
		return 0, false
	}
}

// DeviceStats are cumulative counters maintained by a backend.
type DeviceStats struct {
	Submissions        uint64
	Dispatches         uint64
	Workgroups         uint64
	Barriers           uint64
	OwnershipTransfers uint64
	BytesWritten       uint64
	BytesRead          uint64
}

// RendererBackend is the device-level interface every backend implements. The Renderer
// performs validation and bookkeeping and delegates the device work to it.
type RendererBackend interface {
	// RegisterComputePipeline creates the backend pipeline object for p and stores it on p.
	RegisterComputePipeline(p pipeline.Pipeline) error

	// CreateBuffer allocates a zero-initialized buffer and returns its handle.
	CreateBuffer(desc buffer.Descriptor) (buffer.Handle, error)

	// ReleaseBuffer frees a buffer. The handle and all copies of it become stale.
	ReleaseBuffer(h buffer.Handle) error

	// BufferDescriptor returns the descriptor a live buffer was created with.
	BufferDescriptor(h buffer.Handle) (buffer.Descriptor, error)

	// CreateBindGroup creates the backend layout and bind group for a provider whose
	// bindings are all populated.
	CreateBindGroup(provider bind_group_provider.BindGroupProvider, descriptor bind_group_provider.LayoutDescriptor) error

	// ReleaseBindGroupObjects frees backend bind group and layout objects.
	ReleaseBindGroupObjects(bindGroup, bindGroupLayout any)

	// WriteBuffer enqueues a write that is ordered before the next submission.
	WriteBuffer(h buffer.Handle, offset uint64, data []byte) error

	// ReadBuffer copies a buffer range back to host memory, waiting for prior submissions.
	ReadBuffer(h buffer.Handle, offset, size uint64) ([]byte, error)

	// BeginComputeFrame starts recording a command stream.
	BeginComputeFrame() error

	// DispatchCompute records a dispatch into the open command stream.
	DispatchCompute(p pipeline.Pipeline, provider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error

	// Barrier records a memory dependency into the open command stream.
	Barrier(b Barrier) error

	// EndComputeFrame submits the command stream and associates it with a frame slot fence.
	EndComputeFrame(frameSlot int) error

	// WaitFrame blocks until the last submission for frameSlot completed or ctx is done.
	WaitFrame(ctx context.Context, frameSlot int) error

	// QueueFamilies reports the queue family used for compute and for graphics work.
	QueueFamilies() (compute, graphics uint32)

	// Stats returns the backend counters.
	Stats() DeviceStats

	// Release frees every object owned by the backend.
	Release() error
}
