package renderer

import (
	"errors"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
)

var (
	// ErrDeviceTimeout is returned when a frame fence is not signaled before the wait deadline.
	// It indicates device loss or a hang and is not recoverable.
	ErrDeviceTimeout = errors.New("renderer: timed out waiting for frame fence")

	// ErrNoComputeFrame is returned when commands are recorded outside BeginComputeFrame/EndComputeFrame.
	ErrNoComputeFrame = errors.New("renderer: no compute frame is being recorded")

	// ErrComputeFrameActive is returned by BeginComputeFrame while another frame is being recorded.
	ErrComputeFrameActive = errors.New("renderer: compute frame already being recorded")

	// ErrPipelineNotFound is returned when dispatching a pipeline key that was never registered.
	ErrPipelineNotFound = errors.New("renderer: pipeline not found")

	// ErrUnknownBinding is returned when a write or bind group references a binding with no buffer.
	ErrUnknownBinding = errors.New("renderer: binding has no buffer")

	// ErrMisalignedWrite is returned when a write offset or size is not a multiple of 4 bytes.
	ErrMisalignedWrite = errors.New("renderer: buffer access offset and size must be multiples of 4")

	// ErrOutOfBounds is returned when a buffer access exceeds the buffer size.
	ErrOutOfBounds = errors.New("renderer: buffer access out of bounds")

	// ErrBindGroupNotInitialized is returned when dispatching with a provider that has no bind group.
	ErrBindGroupNotInitialized = errors.New("renderer: bind group not initialized")

	// ErrIncompatibleUsage is returned when a buffer is bound in a way its usage does not allow.
	ErrIncompatibleUsage = errors.New("renderer: buffer usage incompatible with binding")

	// ErrKernelFailed is returned when a host kernel panics during a dispatch.
	ErrKernelFailed = errors.New("renderer: kernel failed")
)

// Stage identifies a point in the device pipeline for barrier scopes.
type Stage int

const (
	// StageCompute covers compute shader reads and writes.
	StageCompute Stage = iota

	// StageFragment covers fragment shader reads.
	StageFragment

	// StageTransfer covers queue writes and copies.
	StageTransfer

	// StageHost covers host readback.
	StageHost
)

// String implements fmt.Stringer.
func (s Stage) String() string {
	switch s {
	case StageCompute:
		return "compute"
	case StageFragment:
		return "fragment"
	case StageTransfer:
		return "transfer"
	case StageHost:
		return "host"
	default:
		return "unknown"
	}
}

// Barrier is a buffer memory dependency between a producer and a consumer stage. When the
// queue families differ the barrier also transfers ownership of the buffers.
type Barrier struct {
	Label          string
	Buffers        []buffer.Handle
	Src            Stage
	Dst            Stage
	SrcQueueFamily uint32
	DstQueueFamily uint32
}

// OwnershipTransfer reports whether the barrier moves the buffers between queue families.
func (b Barrier) OwnershipTransfer() bool {
	return b.SrcQueueFamily != b.DstQueueFamily
}
