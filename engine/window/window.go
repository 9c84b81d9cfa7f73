package window

import (
	"fmt"
	"runtime"

	"github.com/cogentcore/webgpu/wgpu"
)

// Key identifies the keys the demo viewer reacts to. Other keys are reported as KeyUnknown.
type Key int

const (
	KeyUnknown Key = iota
	KeySpace
	KeyR
	KeyL
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// String implements fmt.Stringer.
func (k Key) String() string {
	switch k {
	case KeySpace:
		return "space"
	case KeyR:
		return "r"
	case KeyL:
		return "l"
	case KeyUp:
		return "up"
	case KeyDown:
		return "down"
	case KeyLeft:
		return "left"
	case KeyRight:
		return "right"
	default:
		return "unknown"
	}
}

// Window is the presentation window of the cluster viewer. It owns the platform surface
// the renderer's adapter must be compatible with and turns input into camera-friendly
// events: framebuffer resizes, scroll zoom, pointer drags and key presses.
type Window interface {
	// SetUpdateCallback sets the function called each message loop iteration.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetUpdateCallback(callback func())

	// SetResizeCallback sets the function called when the framebuffer is resized.
	//
	// Parameters:
	//   - callback: function receiving the new framebuffer width and height in pixels
	SetResizeCallback(callback func(width, height uint32))

	// SetScrollCallback sets the callback for mouse wheel events.
	//
	// Parameters:
	//   - callback: function receiving the scroll delta (positive = zoom in)
	SetScrollCallback(callback func(delta float32))

	// SetDragCallback sets the callback for pointer movement while the left or middle
	// button is held.
	//
	// Parameters:
	//   - callback: function receiving the movement in pixels since the last event
	SetDragCallback(callback func(dx, dy float32))

	// SetKeyCallback sets the callback for key presses, including repeats.
	//
	// Parameters:
	//   - callback: function receiving the pressed key
	SetKeyCallback(callback func(key Key))

	// SetTitle replaces the window title.
	//
	// Parameters:
	//   - title: the new title text
	SetTitle(title string)

	// SurfaceDescriptor returns a wgpu.SurfaceDescriptor for the window, created by the
	// wgpuglfw bridge for the current platform.
	//
	// Returns:
	//   - *wgpu.SurfaceDescriptor: the descriptor, or nil if the window is not initialized
	SurfaceDescriptor() *wgpu.SurfaceDescriptor

	// IsRunning reports whether the window is still open.
	//
	// Returns:
	//   - bool: false once the window was closed or Escape was pressed
	IsRunning() bool

	// Close destroys the window and releases platform resources.
	//
	// Returns:
	//   - error: an error if the window was never initialized
	Close() error

	// ProcessMessages runs the message loop until the window closes, calling the update
	// callback once per iteration.
	ProcessMessages()

	// Size returns the framebuffer size in pixels.
	//
	// Returns:
	//   - width, height: the framebuffer size
	Size() (width, height uint32)
}

// engineWindow is the implementation of the Window interface.
type engineWindow struct {
	title     string
	width     int
	height    int
	minWidth  int
	minHeight int
	maxWidth  int
	maxHeight int
	resizable bool

	// internalWindow holds the platform window (glfwWindow).
	internalWindow any

	onUpdate func()
	onResize func(width, height uint32)
	onScroll func(delta float32)
	onDrag   func(dx, dy float32)
	onKey    func(key Key)
}

var _ Window = &engineWindow{}

// NewWindow creates and shows a Window. It must be called from the main goroutine.
//
// Parameters:
//   - options: functional options to configure the window
//
// Returns:
//   - Window: the window
//   - error: an error if the platform window could not be created
func NewWindow(options ...WindowBuilderOption) (Window, error) {
	w := &engineWindow{
		title:     "Clustered Lighting",
		width:     1280,
		height:    720,
		minWidth:  320,
		minHeight: 180,
		maxWidth:  3840,
		maxHeight: 2160,
		resizable: true,
	}
	for _, opt := range options {
		opt(w)
	}
	if err := newPlatformWindow(w); err != nil {
		return nil, fmt.Errorf("window: create platform window: %w", err)
	}
	return w, nil
}

func (w *engineWindow) SetUpdateCallback(callback func()) {
	w.onUpdate = callback
}

func (w *engineWindow) SetResizeCallback(callback func(width, height uint32)) {
	w.onResize = callback
}

func (w *engineWindow) SetScrollCallback(callback func(delta float32)) {
	w.onScroll = callback
}

func (w *engineWindow) SetDragCallback(callback func(dx, dy float32)) {
	w.onDrag = callback
}

func (w *engineWindow) SetKeyCallback(callback func(key Key)) {
	w.onKey = callback
}

func (w *engineWindow) SetTitle(title string) {
	w.title = title
	platformSetTitle(w)
}

func (w *engineWindow) SurfaceDescriptor() *wgpu.SurfaceDescriptor {
	return platformGetSurfaceDescriptor(w)
}

func (w *engineWindow) IsRunning() bool {
	return platformIsRunningCheck(w)
}

func (w *engineWindow) Close() error {
	return platformCloseWindow(w)
}

func (w *engineWindow) ProcessMessages() {
	for w.IsRunning() {
		if !platformProcessMessages(w) {
			break
		}
		if w.onUpdate != nil {
			w.onUpdate()
		}
		runtime.Gosched()
	}
}

func (w *engineWindow) Size() (uint32, uint32) {
	return uint32(max(w.width, 0)), uint32(max(w.height, 0))
}
