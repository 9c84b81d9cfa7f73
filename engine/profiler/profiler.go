package profiler

import (
	"runtime"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"go.uber.org/zap"
)

const mib = 1024 * 1024

// Sample is one reporting window of the profiler.
type Sample struct {
	// FPS is the number of ticks per second over the window.
	FPS float64

	// HeapMB is the live heap at the end of the window.
	HeapMB float64

	// SysMB is the memory obtained from the OS.
	SysMB float64

	// AllocRateMB is the allocation churn in MB per second over the window.
	AllocRateMB float64

	// GCCount is the cumulative number of completed GC cycles.
	GCCount uint32

	// LastPause is the pause of the most recent GC cycle.
	LastPause time.Duration

	// MaxPause is the longest pause among cycles completed during the window.
	MaxPause time.Duration

	// Cluster holds the cumulative pipeline counters when a stats source is configured.
	Cluster cluster.Stats

	// DroppedLights is the number of lights dropped by cluster overflow during the window.
	DroppedLights uint64

	// AABBRebuilds is the number of cluster bounds rebuilds during the window.
	AABBRebuilds uint64
}

// Profiler tracks frame rate, memory statistics and cluster pipeline counters.
// Outputs a structured log entry at a configurable interval.
type Profiler struct {
	frameCount     int
	lastTime       time.Time
	updateInterval time.Duration
	memStats       runtime.MemStats
	lastGCCount    uint32
	lastTotalAlloc uint64

	logger       *zap.Logger
	now          func() time.Time
	readMem      func(*runtime.MemStats)
	clusterStats func() cluster.Stats
	lastCluster  cluster.Stats

	// mu guards last, which Last reads from other goroutines.
	mu   sync.Mutex
	last Sample
}

// NewProfiler creates a new Profiler.
// Update interval defaults to 1 second.
//
// Parameters:
//   - options: functional options (WithLogger, WithUpdateInterval, WithClusterStats, ...)
//
// Returns:
//   - *Profiler: the newly created profiler instance
func NewProfiler(options ...ProfilerBuilderOption) *Profiler {
	p := &Profiler{
		updateInterval: time.Second,
		now:            time.Now,
		readMem:        runtime.ReadMemStats,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.logger == nil {
		p.logger = logger.New("profiler")
	}
	if p.clusterStats != nil {
		p.lastCluster = p.clusterStats()
	}
	p.lastTime = p.now()
	return p
}

// Tick should be called once per frame to track frame timing.
// Logs performance statistics when the update interval has elapsed.
//
// Returns:
//   - bool: true if a sample was taken this tick, false otherwise
func (p *Profiler) Tick() bool {
	p.frameCount++
	currentTime := p.now()
	elapsed := currentTime.Sub(p.lastTime)
	if elapsed < p.updateInterval {
		return false
	}

	p.readMem(&p.memStats)
	s := Sample{
		FPS:         float64(p.frameCount) / elapsed.Seconds(),
		HeapMB:      float64(p.memStats.Alloc) / mib,
		SysMB:       float64(p.memStats.Sys) / mib,
		AllocRateMB: float64(p.memStats.TotalAlloc-p.lastTotalAlloc) / mib / elapsed.Seconds(),
		GCCount:     p.memStats.NumGC,
	}
	s.LastPause, s.MaxPause = p.pauses()

	fields := []zap.Field{
		zap.Float64("fps", s.FPS),
		zap.Float64("heap_mb", s.HeapMB),
		zap.Float64("alloc_rate_mb_s", s.AllocRateMB),
		zap.Uint32("gc", s.GCCount),
		zap.Duration("gc_last_pause", s.LastPause),
		zap.Duration("gc_max_pause", s.MaxPause),
		zap.Float64("sys_mb", s.SysMB),
	}
	if p.clusterStats != nil {
		s.Cluster = p.clusterStats()
		s.DroppedLights = s.Cluster.TotalDroppedLights - p.lastCluster.TotalDroppedLights
		s.AABBRebuilds = s.Cluster.AABBRebuilds - p.lastCluster.AABBRebuilds
		p.lastCluster = s.Cluster
		fields = append(fields,
			zap.Uint64("cluster_frames", s.Cluster.Frames),
			zap.Uint64("aabb_rebuilds", s.AABBRebuilds),
			zap.Uint32("light_indices", s.Cluster.LastIndexCount),
			zap.Uint64("dropped_lights", s.DroppedLights),
			zap.Uint64("cluster_errors", s.Cluster.Errors),
		)
	}
	p.logger.Info("frame stats", fields...)

	p.frameCount = 0
	p.lastTime = currentTime
	p.lastGCCount = s.GCCount
	p.lastTotalAlloc = p.memStats.TotalAlloc

	p.mu.Lock()
	p.last = s
	p.mu.Unlock()
	return true
}

// Last returns the most recent sample, or the zero Sample before the first one.
// Safe to call while another goroutine ticks.
func (p *Profiler) Last() Sample {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.last
}

// pauses returns the most recent GC pause and the longest pause since the previous sample.
// PauseNs is a circular buffer of the last 256 pauses.
func (p *Profiler) pauses() (last, longest time.Duration) {
	gcCount := p.memStats.NumGC
	if gcCount == 0 {
		return 0, 0
	}
	last = time.Duration(p.memStats.PauseNs[(gcCount-1)%256])

	start := p.lastGCCount
	if gcCount-start > 256 {
		start = gcCount - 256
	}
	for i := start; i < gcCount; i++ {
		longest = max(longest, time.Duration(p.memStats.PauseNs[i%256]))
	}
	return last, longest
}
