package camera

import (
	"math"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

type cameraImpl struct {
	mu *sync.Mutex

	up [3]float32

	// position and target are used when no controller is attached.
	position [3]float32
	target   [3]float32

	fov    float32
	near   float32
	far    float32
	width  uint32
	height uint32

	viewMatrix              mgl32.Mat4
	projectionMatrix        mgl32.Mat4
	viewProjectionMatrix    mgl32.Mat4
	inverseProjectionMatrix mgl32.Mat4

	revision uint64

	controller CameraController
}

// State is a consistent copy of the values the cluster pipeline derives a frame from.
type State struct {
	InverseProjection mgl32.Mat4
	View              mgl32.Mat4
	Near              float32
	Far               float32
	Width             uint32
	Height            uint32
	Revision          uint64
}

// Camera holds perspective settings and computes the view and projection matrices the
// cluster pipeline is driven by. Position and target come from an attached
// CameraController when there is one, otherwise from SetLookAt.
//
// Projections follow the WebGPU clip space convention (depth in [0, 1], right-handed view
// space looking down -Z). Every change to the matrices increments Revision.
type Camera interface {
	// Up returns the camera's up vector.
	//
	// Returns:
	//   - x, y, z: up vector components
	Up() (x, y, z float32)

	// Position returns the camera's world-space position.
	//
	// Returns:
	//   - mgl32.Vec3: the eye position
	Position() mgl32.Vec3

	// Fov returns the vertical field of view in radians.
	//
	// Returns:
	//   - float32: field of view in radians
	Fov() float32

	// Aspect returns the aspect ratio (width / height) of the viewport.
	//
	// Returns:
	//   - float32: the aspect ratio
	Aspect() float32

	// Near returns the near clipping plane distance.
	//
	// Returns:
	//   - float32: near plane distance
	Near() float32

	// Far returns the far clipping plane distance.
	//
	// Returns:
	//   - float32: far plane distance
	Far() float32

	// Viewport returns the framebuffer size in pixels.
	//
	// Returns:
	//   - width, height: the viewport size
	Viewport() (width, height uint32)

	// ViewMatrix returns the current world-to-view matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the view matrix
	ViewMatrix() mgl32.Mat4

	// ProjectionMatrix returns the current projection matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the projection matrix
	ProjectionMatrix() mgl32.Mat4

	// ViewProjectionMatrix returns the combined view-projection matrix.
	//
	// Returns:
	//   - mgl32.Mat4: the combined view-projection matrix
	ViewProjectionMatrix() mgl32.Mat4

	// InverseProjectionMatrix returns the inverse of the current projection matrix.
	// Used by the cluster AABB generator to unproject tile corners into view space.
	//
	// Returns:
	//   - mgl32.Mat4: the inverse projection matrix
	InverseProjectionMatrix() mgl32.Mat4

	// Revision returns a counter that increments whenever the matrices change.
	//
	// Returns:
	//   - uint64: the revision
	Revision() uint64

	// State returns the matrices, clip planes, viewport and revision under one lock, so
	// a concurrent resize or orbit never mixes two revisions into one frame.
	//
	// Returns:
	//   - State: the camera state
	State() State

	// Controller returns the attached CameraController, or nil.
	//
	// Returns:
	//   - CameraController: the attached controller or nil
	Controller() CameraController

	// Update reads position/target from the controller and recomputes matrices.
	// Should be called once per frame. Without a controller this is a no-op.
	Update()

	// SetUp sets the camera's up vector.
	//
	// Parameters:
	//   - x, y, z: up vector components
	SetUp(x, y, z float32)

	// SetLookAt sets the eye position and target used when no controller is attached.
	//
	// Parameters:
	//   - eye: world-space eye position
	//   - target: world-space look-at point
	SetLookAt(eye, target [3]float32)

	// SetFov sets the vertical field of view in radians and recomputes matrices.
	//
	// Parameters:
	//   - fov: field of view in radians
	SetFov(fov float32)

	// SetNear sets the near clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - near: near plane distance
	SetNear(near float32)

	// SetFar sets the far clipping plane distance and recomputes matrices.
	//
	// Parameters:
	//   - far: far plane distance
	SetFar(far float32)

	// SetViewport sets the framebuffer size; the aspect ratio follows it.
	//
	// Parameters:
	//   - width, height: the viewport size in pixels
	SetViewport(width, height uint32)

	// SetController attaches a CameraController to the camera.
	//
	// Parameters:
	//   - ctrl: the controller to attach
	SetController(ctrl CameraController)
}

var _ Camera = &cameraImpl{}

// NewCamera creates a new Camera with default perspective settings: 45° vertical fov,
// near 0.1, far 100, a 1280x720 viewport, looking from (0, 0, 5) at the origin.
//
// Parameters:
//   - options: functional options to configure the camera
//
// Returns:
//   - Camera: the newly created camera
func NewCamera(options ...CameraBuilderOption) Camera {
	c := &cameraImpl{
		mu:       &sync.Mutex{},
		up:       [3]float32{0, 1, 0},
		position: [3]float32{0, 0, 5},
		target:   [3]float32{0, 0, 0},
		fov:      45.0 * (math.Pi / 180.0), // radians
		near:     0.1,
		far:      100.0,
		width:    1280,
		height:   720,
	}
	for _, option := range options {
		option(c)
	}
	c.updateMatrices()
	return c
}

func (c *cameraImpl) Up() (x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.up[0], c.up[1], c.up[2]
}

func (c *cameraImpl) Position() mgl32.Vec3 {
	c.mu.Lock()
	defer c.mu.Unlock()
	eye, _ := c.eyeAndTarget()
	return eye
}

func (c *cameraImpl) Fov() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.fov
}

func (c *cameraImpl) Aspect() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.aspect()
}

func (c *cameraImpl) Near() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.near
}

func (c *cameraImpl) Far() float32 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.far
}

func (c *cameraImpl) Viewport() (uint32, uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.width, c.height
}

func (c *cameraImpl) ViewMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewMatrix
}

func (c *cameraImpl) ProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.projectionMatrix
}

func (c *cameraImpl) ViewProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewProjectionMatrix
}

func (c *cameraImpl) InverseProjectionMatrix() mgl32.Mat4 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.inverseProjectionMatrix
}

func (c *cameraImpl) Revision() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.revision
}

func (c *cameraImpl) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return State{
		InverseProjection: c.inverseProjectionMatrix,
		View:              c.viewMatrix,
		Near:              c.near,
		Far:               c.far,
		Width:             c.width,
		Height:            c.height,
		Revision:          c.revision,
	}
}

func (c *cameraImpl) Controller() CameraController {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.controller
}

func (c *cameraImpl) Update() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.controller == nil {
		return
	}
	c.updateMatrices()
}

func (c *cameraImpl) SetUp(x, y, z float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.up = [3]float32{x, y, z}
	c.updateMatrices()
}

func (c *cameraImpl) SetLookAt(eye, target [3]float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.position = eye
	c.target = target
	c.updateMatrices()
}

func (c *cameraImpl) SetFov(fov float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.fov = fov
	c.updateMatrices()
}

func (c *cameraImpl) SetNear(near float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.near = near
	c.updateMatrices()
}

func (c *cameraImpl) SetFar(far float32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.far = far
	c.updateMatrices()
}

func (c *cameraImpl) SetViewport(width, height uint32) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.width = width
	c.height = height
	c.updateMatrices()
}

func (c *cameraImpl) SetController(ctrl CameraController) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.controller = ctrl
	c.updateMatrices()
}

// aspect returns width / height, or 1 for an empty viewport. Caller must hold the mutex.
func (c *cameraImpl) aspect() float32 {
	if c.height == 0 {
		return 1
	}
	return float32(c.width) / float32(c.height)
}

// eyeAndTarget resolves the eye and target from the controller or the fixed look-at.
// Caller must hold the mutex.
func (c *cameraImpl) eyeAndTarget() (mgl32.Vec3, mgl32.Vec3) {
	if c.controller != nil {
		px, py, pz := c.controller.Position()
		tx, ty, tz := c.controller.Target()
		return mgl32.Vec3{px, py, pz}, mgl32.Vec3{tx, ty, tz}
	}
	return mgl32.Vec3(c.position), mgl32.Vec3(c.target)
}

// updateMatrices recalculates the view, projection, view-projection, and inverse projection
// matrices and bumps the revision if any of them changed. Caller must hold the mutex.
func (c *cameraImpl) updateMatrices() {
	eye, target := c.eyeAndTarget()

	view := mgl32.LookAtV(eye, target, mgl32.Vec3(c.up))
	proj := common.Perspective(c.fov, c.aspect(), c.near, c.far)

	if c.revision > 0 && view == c.viewMatrix && proj == c.projectionMatrix {
		return
	}

	c.viewMatrix = view
	c.projectionMatrix = proj
	c.viewProjectionMatrix = proj.Mul4(view)
	c.inverseProjectionMatrix = proj.Inv()
	c.revision++
}
