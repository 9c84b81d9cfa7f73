package cluster

import (
	"time"

	"go.uber.org/zap"
)

// PipelineBuilderOption is a functional option applied to a Pipeline during construction via NewPipeline.
type PipelineBuilderOption func(*pipelineImpl)

// WithGrid sets the cluster grid. Defaults to DefaultGrid().
//
// Parameters:
//   - g: the grid
//
// Returns:
//   - PipelineBuilderOption: a function that applies the grid option to a pipeline
func WithGrid(g Grid) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.grid = g
	}
}

// WithFrameOverlapCount sets the number of frames in flight. Each frame slot gets its own
// cluster buffers. Defaults to 2.
//
// Parameters:
//   - n: the number of frame slots
//
// Returns:
//   - PipelineBuilderOption: a function that applies the frame overlap option to a pipeline
func WithFrameOverlapCount(n int) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.frameOverlap = n
	}
}

// WithFenceTimeout bounds how long BeginFrame waits for the previous submission of a slot.
// Defaults to 2 seconds.
//
// Parameters:
//   - d: the timeout
//
// Returns:
//   - PipelineBuilderOption: a function that applies the fence timeout option to a pipeline
func WithFenceTimeout(d time.Duration) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.fenceTimeout = d
	}
}

// WithLogger sets the logger. Defaults to logger.New("cluster").
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - PipelineBuilderOption: a function that applies the logger option to a pipeline
func WithLogger(l *zap.Logger) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.log = l
	}
}

// WithOverflowHook installs a callback invoked from EndFrame once per cluster that
// dropped lights in the frame. Setting a hook enables the per-frame readback of the
// dropped counters, which waits for the frame to complete.
//
// Parameters:
//   - hook: the callback
//
// Returns:
//   - PipelineBuilderOption: a function that applies the overflow hook option to a pipeline
func WithOverflowHook(hook func(OverflowEvent)) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.overflowHook = hook
	}
}

// WithStatsReadback makes EndFrame read back the global index counter and dropped counters
// into Stats.
func WithStatsReadback(enabled bool) PipelineBuilderOption {
	return func(p *pipelineImpl) {
		p.statsReadback = enabled
	}
}
