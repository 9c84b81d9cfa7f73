package engine

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/profiler"
	"github.com/Carmen-Shannon/oxy-cluster/engine/window"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// viewportSetter is implemented by parameter sources that follow the window size, such as
// camera.Camera.
type viewportSetter interface {
	SetViewport(width, height uint32)
}

// engine implements the Engine interface.
// Coordinates the tick goroutine, the frame goroutine and the optional window.
type engine struct {
	tickRateChannel chan time.Duration // Channel for dynamic tick rate updates

	running atomic.Bool
	wg      sync.WaitGroup

	quitChannel chan struct{}
	quitOnce    sync.Once // Ensures quitChannel is only closed once

	window   window.Window
	pipeline cluster.Pipeline
	source   cluster.ParamsSource
	logger   *zap.Logger

	profiler         *profiler.Profiler
	profilingEnabled atomic.Bool

	engineTickRate time.Duration
	tickCallback   func(deltaTime float32)
	frameCallback  func(result cluster.FrameResult, err error)
	windowCallback func()

	renderFrameLimit time.Duration // minimum frame duration; 0 = uncapped
	maxFrames        uint64        // 0 = run until quit

	frames    atomic.Uint64
	errMu     sync.Mutex
	fatalErrs error
}

// Engine drives a cluster.Pipeline once per frame.
// It runs a fixed-rate tick loop for scene updates next to an uncapped (or frame-limited)
// frame loop, and pumps the window's message loop when a window is attached.
type Engine interface {
	// Window returns the attached window, or nil for headless engines.
	//
	// Returns:
	//   - window.Window: the window instance
	Window() window.Window

	// Pipeline returns the pipeline executed each frame.
	//
	// Returns:
	//   - cluster.Pipeline: the pipeline
	Pipeline() cluster.Pipeline

	// Profiler returns the profiler ticked each frame while profiling is enabled.
	Profiler() *profiler.Profiler

	// EnableProfiler enables performance profiling output to the log.
	EnableProfiler()

	// DisableProfiler disables performance profiling output.
	DisableProfiler()

	// SetTickRate sets the engine tick rate in frames per second.
	// The tick callback will be called at this rate for scene updates.
	//
	// Parameters:
	//   - fps: target ticks per second (defaults to 60 if <= 0)
	SetTickRate(fps float64)

	// SetTickCallback registers the function called each engine tick.
	// Use this for animation, light movement and input processing.
	//
	// Parameters:
	//   - callback: function to call at the configured tick rate, receiving the delta time in seconds
	SetTickCallback(callback func(deltaTime float32))

	// SetFrameCallback registers the function called after each executed frame.
	//
	// Parameters:
	//   - callback: function receiving the frame result and the frame's error, if any
	SetFrameCallback(callback func(result cluster.FrameResult, err error))

	// SetWindowCallback registers the function called on the window's goroutine once per
	// message loop iteration. Window calls such as SetTitle belong here.
	//
	// Parameters:
	//   - callback: function to call (or nil to disable)
	SetWindowCallback(callback func())

	// SetRenderFrameLimit sets an optional frame rate cap in frames per second.
	// Pass 0 to uncap the frame loop (default).
	//
	// Parameters:
	//   - fps: maximum frames per second (0 = uncapped)
	SetRenderFrameLimit(fps float64)

	// Frames returns the number of frames the frame loop has attempted.
	Frames() uint64

	// Run starts the engine and blocks until the window closes, Quit is called, the frame
	// limit is reached, ctx is cancelled or the pipeline becomes unusable. With a window
	// attached Run must be called from the main goroutine and closes the window on return.
	//
	// Parameters:
	//   - ctx: context whose cancellation stops the engine
	//
	// Returns:
	//   - error: fatal errors that stopped the engine, or ctx.Err() after cancellation
	Run(ctx context.Context) error

	// Quit signals all engine goroutines to stop.
	// Safe to call multiple times; subsequent calls are no-ops.
	Quit()
}

// NewEngine creates a new Engine for the pipeline.
// Options are applied directly to the engine struct via the option-builder pattern.
//
// Parameters:
//   - p: the pipeline executed each frame
//   - source: the camera (or any other ParamsSource) the frame parameters are derived from
//   - options: functional options for engine configuration (window, profiling, tick rate, etc.)
//
// Returns:
//   - Engine: the newly created engine
func NewEngine(p cluster.Pipeline, source cluster.ParamsSource, options ...EngineBuilderOption) Engine {
	e := &engine{
		tickRateChannel: make(chan time.Duration, 1),
		quitChannel:     make(chan struct{}),
		pipeline:        p,
		source:          source,
		engineTickRate:  time.Second / 60,
	}

	for _, opt := range options {
		opt(e)
	}

	if e.logger == nil {
		e.logger = logger.New("engine")
	}
	if e.profiler == nil {
		e.profiler = profiler.NewProfiler(profiler.WithClusterStats(p.Stats))
	}

	if e.window != nil {
		if vs, ok := source.(viewportSetter); ok {
			e.window.SetResizeCallback(vs.SetViewport)
			vs.SetViewport(e.window.Size())
		}
	}

	return e
}

func (e *engine) Window() window.Window {
	return e.window
}

func (e *engine) Pipeline() cluster.Pipeline {
	return e.pipeline
}

func (e *engine) Profiler() *profiler.Profiler {
	return e.profiler
}

func (e *engine) Frames() uint64 {
	return e.frames.Load()
}

func (e *engine) Run(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	e.running.Store(true)
	defer e.running.Store(false)
	e.handle(runCtx)

	if e.window != nil {
		e.window.SetUpdateCallback(func() {
			if e.quitting() {
				_ = e.window.Close()
				return
			}
			if e.windowCallback != nil {
				e.windowCallback()
			}
		})
		e.window.ProcessMessages()
		e.signalQuit()
		_ = e.window.Close()
	}

	e.wg.Wait()

	e.errMu.Lock()
	err := e.fatalErrs
	e.errMu.Unlock()
	return multierr.Append(err, ctx.Err())
}

// Quit signals all engine goroutines to stop and shuts down the engine.
// Safe to call multiple times; subsequent calls are no-ops due to sync.Once.
func (e *engine) Quit() {
	e.signalQuit()
}

// signalQuit closes the quit channel to signal all goroutines to exit.
func (e *engine) signalQuit() {
	e.quitOnce.Do(func() {
		close(e.quitChannel)
	})
}

func (e *engine) quitting() bool {
	select {
	case <-e.quitChannel:
		return true
	default:
		return false
	}
}

func (e *engine) fatal(err error) {
	e.errMu.Lock()
	e.fatalErrs = multierr.Append(e.fatalErrs, err)
	e.errMu.Unlock()
	e.signalQuit()
}

// handle launches the tick, frame and quit goroutines.
// Each goroutine is tracked by the engine's WaitGroup.
func (e *engine) handle(ctx context.Context) {
	e.wg.Add(3)
	go e.handleEngine()
	go e.handleFrames(ctx)
	go e.handleQuit(ctx)
}

// handleEngine runs the fixed-rate tick loop in its own goroutine.
// Fires the tick callback at the configured tick rate and listens for dynamic rate changes
// via tickRateChannel. Exits when the quit channel is closed.
func (e *engine) handleEngine() {
	defer e.wg.Done()

	ticker := time.NewTicker(e.engineTickRate)
	defer ticker.Stop()

	lastTick := time.Now()

	for {
		select {
		case <-e.quitChannel:
			return
		case <-ticker.C:
			now := time.Now()
			dt := float32(now.Sub(lastTick).Seconds())
			lastTick = now

			if e.tickCallback != nil {
				e.tickCallback(dt)
			}
		case newRate := <-e.tickRateChannel:
			ticker.Reset(newRate)
			e.engineTickRate = newRate
		}
	}
}

// handleFrames runs the frame loop in its own goroutine: one Pipeline.Execute per
// iteration, then the frame callback and the profiler.
// A failed frame is logged by the pipeline with its stage and the loop moves on; only a
// released pipeline stops the engine.
// Recovers from panics to avoid crashing the process and signals quit on recovery.
func (e *engine) handleFrames(ctx context.Context) {
	defer e.wg.Done()
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("frame goroutine recovered from panic", zap.Any("panic", r))
			e.fatal(fmt.Errorf("engine: frame loop panic: %v", r))
		}
	}()

	for {
		if e.quitting() || ctx.Err() != nil {
			return
		}
		start := time.Now()

		result, err := e.pipeline.Execute(ctx, e.source)
		n := e.frames.Add(1)
		if e.frameCallback != nil {
			e.frameCallback(result, err)
		}
		if errors.Is(err, cluster.ErrReleased) {
			e.fatal(err)
			return
		}

		if e.profilingEnabled.Load() && e.profiler != nil {
			e.profiler.Tick()
		}

		if e.maxFrames > 0 && n >= e.maxFrames {
			e.logger.Debug("frame limit reached", zap.Uint64("frames", n))
			e.signalQuit()
			return
		}

		// Frame rate limiting
		if e.renderFrameLimit > 0 {
			if remaining := e.renderFrameLimit - time.Since(start); remaining > 0 {
				select {
				case <-e.quitChannel:
					return
				case <-time.After(remaining):
				}
			}
		}
	}
}

// handleQuit blocks until the quit channel is closed or ctx is cancelled.
func (e *engine) handleQuit(ctx context.Context) {
	defer e.wg.Done()
	select {
	case <-e.quitChannel:
	case <-ctx.Done():
		e.signalQuit()
	}
}

// EnableProfiler enables performance profiling output to the log.
func (e *engine) EnableProfiler() {
	e.profilingEnabled.Store(true)
}

// DisableProfiler disables performance profiling output.
func (e *engine) DisableProfiler() {
	e.profilingEnabled.Store(false)
}

// SetTickRate sets the engine tick rate in frames per second.
// If the engine is running, the change takes effect immediately.
func (e *engine) SetTickRate(fps float64) {
	if fps <= 0 {
		fps = 60
	}
	newRate := time.Duration(float64(time.Second) / fps)

	if !e.running.Load() {
		e.engineTickRate = newRate
		return
	}

	// Non-blocking send; a pending update is replaced.
	select {
	case e.tickRateChannel <- newRate:
	default:
		select {
		case <-e.tickRateChannel:
		default:
		}
		e.tickRateChannel <- newRate
	}
}

// SetTickCallback registers the function called each engine tick.
func (e *engine) SetTickCallback(callback func(deltaTime float32)) {
	e.tickCallback = callback
}

// SetFrameCallback registers the function called after each frame.
func (e *engine) SetFrameCallback(callback func(result cluster.FrameResult, err error)) {
	e.frameCallback = callback
}

// SetWindowCallback registers the function called each window message loop iteration.
func (e *engine) SetWindowCallback(callback func()) {
	e.windowCallback = callback
}

// SetRenderFrameLimit sets an optional frame rate cap.
// Pass 0 to uncap the frame loop.
func (e *engine) SetRenderFrameLimit(fps float64) {
	e.renderFrameLimit = frameDuration(fps)
}

func frameDuration(fps float64) time.Duration {
	if fps <= 0 {
		return 0
	}
	return time.Duration(float64(time.Second) / fps)
}
