package cluster

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidGrid is returned when a Grid has a zero dimension or overflows the index list.
	ErrInvalidGrid = errors.New("cluster: invalid grid")

	// ErrInvalidParams is returned for camera parameters that cannot produce a cluster grid
	// (near <= 0, far <= near, empty viewport, grid mismatch).
	ErrInvalidParams = errors.New("cluster: invalid cluster params")

	// ErrInvalidFrameSlot is the panic value for a frame slot outside [0, FrameOverlapCount).
	ErrInvalidFrameSlot = errors.New("cluster: frame slot out of range")

	// ErrMissingReset is returned by RunLightCulling when the slot's global index counter
	// was not reset since the slot was last culled.
	ErrMissingReset = errors.New("cluster: light culling without global index reset")

	// ErrParamsNotSet is returned when a stage runs before SetClusterParams for its slot.
	ErrParamsNotSet = errors.New("cluster: cluster params not set for frame slot")

	// ErrAABBNotGenerated is returned by RunLightCulling when the slot's cluster AABBs were
	// never generated or were generated for different camera geometry.
	ErrAABBNotGenerated = errors.New("cluster: cluster AABBs not generated for current params")

	// ErrNoFrame is returned by per-frame operations called outside BeginFrame/EndFrame.
	ErrNoFrame = errors.New("cluster: no frame in progress")

	// ErrFrameInProgress is returned by BeginFrame when the previous frame was not ended.
	ErrFrameInProgress = errors.New("cluster: frame already in progress")

	// ErrSlotNotCurrent is returned when a stage is given a slot other than the one BeginFrame selected.
	ErrSlotNotCurrent = errors.New("cluster: frame slot is not the current frame slot")

	// ErrReleased is returned by every operation after Release.
	ErrReleased = errors.New("cluster: pipeline released")
)

// Stage names used in StageError and log fields.
const (
	StageBeginFrame  = "begin_frame"
	StageReset       = "reset_global_index"
	StageParams      = "set_cluster_params"
	StageAABB        = "aabb_generation"
	StageCulling     = "light_culling"
	StageBarrier     = "barrier"
	StageSubmit      = "submit"
	StageReadback    = "readback"
	StageLightUpload = "light_upload"
)

// StageError is a runtime failure of one clustering stage. The frame's lighting data is
// undefined after it; there is no retry.
type StageError struct {
	Stage string
	Frame uint64
	Slot  int
	Err   error
}

// Error implements error.
func (e *StageError) Error() string {
	return fmt.Sprintf("cluster: %s failed (frame %d, slot %d): %v", e.Stage, e.Frame, e.Slot, e.Err)
}

// Unwrap returns the underlying error.
func (e *StageError) Unwrap() error {
	return e.Err
}
