package profiler

import (
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"go.uber.org/zap"
)

// ProfilerBuilderOption is a functional option for configuring a Profiler.
type ProfilerBuilderOption func(*Profiler)

// WithLogger sets the logger samples are written to.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithLogger(l *zap.Logger) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.logger = l
	}
}

// WithUpdateInterval sets how often a sample is taken. Non-positive values are ignored.
//
// Parameters:
//   - d: the reporting interval
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithUpdateInterval(d time.Duration) ProfilerBuilderOption {
	return func(p *Profiler) {
		if d > 0 {
			p.updateInterval = d
		}
	}
}

// WithClusterStats adds cluster pipeline counters to every sample.
//
// Parameters:
//   - source: returns the current cumulative counters, typically cluster.Pipeline.Stats
//
// Returns:
//   - ProfilerBuilderOption: option function to apply
func WithClusterStats(source func() cluster.Stats) ProfilerBuilderOption {
	return func(p *Profiler) {
		p.clusterStats = source
	}
}

// WithClock replaces the wall clock.
func WithClock(now func() time.Time) ProfilerBuilderOption {
	return func(p *Profiler) {
		if now != nil {
			p.now = now
		}
	}
}
