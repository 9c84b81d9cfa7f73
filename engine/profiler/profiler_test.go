package profiler

import (
	"runtime"
	"testing"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
)

type fakeClock struct {
	t time.Time
}

func (c *fakeClock) now() time.Time { return c.t }

func (c *fakeClock) advance(d time.Duration) { c.t = c.t.Add(d) }

func TestTickReportsOncePerInterval(t *testing.T) {
	clock := &fakeClock{t: time.Unix(1000, 0)}
	p := NewProfiler(WithLogger(logger.Nop()), WithClock(clock.now))
	p.readMem = func(m *runtime.MemStats) {
		m.Alloc = 8 * mib
		m.Sys = 32 * mib
		m.TotalAlloc = 4 * mib
	}

	for i := 0; i < 9; i++ {
		clock.advance(100 * time.Millisecond)
		if p.Tick() {
			t.Fatalf("tick %d reported before the interval elapsed", i)
		}
	}
	clock.advance(100 * time.Millisecond)
	if !p.Tick() {
		t.Fatal("tick at one second did not report")
	}

	s := p.Last()
	if s.FPS != 10 {
		t.Errorf("FPS = %v, want 10", s.FPS)
	}
	if s.HeapMB != 8 || s.SysMB != 32 {
		t.Errorf("HeapMB, SysMB = %v, %v, want 8, 32", s.HeapMB, s.SysMB)
	}
	if s.AllocRateMB != 4 {
		t.Errorf("AllocRateMB = %v, want 4", s.AllocRateMB)
	}
}

func TestGCPauses(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	p := NewProfiler(WithLogger(logger.Nop()), WithClock(clock.now), WithUpdateInterval(time.Millisecond))

	var ms runtime.MemStats
	ms.NumGC = 3
	ms.PauseNs[0] = 5000
	ms.PauseNs[1] = 90000
	ms.PauseNs[2] = 20000
	p.readMem = func(m *runtime.MemStats) { *m = ms }

	clock.advance(time.Millisecond)
	if !p.Tick() {
		t.Fatal("Tick did not report")
	}
	s := p.Last()
	if s.GCCount != 3 || s.LastPause != 20*time.Microsecond || s.MaxPause != 90*time.Microsecond {
		t.Fatalf("GC = %d last %v max %v, want 3 last 20µs max 90µs", s.GCCount, s.LastPause, s.MaxPause)
	}

	// Only pauses of cycles completed since the previous sample count toward the max.
	ms.NumGC = 4
	ms.PauseNs[3] = 1000
	clock.advance(time.Millisecond)
	p.Tick()
	if s := p.Last(); s.MaxPause != time.Microsecond {
		t.Fatalf("MaxPause = %v, want 1µs", s.MaxPause)
	}
}

func TestClusterStatsDeltas(t *testing.T) {
	clock := &fakeClock{t: time.Unix(0, 0)}
	stats := cluster.Stats{Frames: 10, AABBRebuilds: 2, TotalDroppedLights: 5}
	p := NewProfiler(
		WithLogger(logger.Nop()),
		WithClock(clock.now),
		WithClusterStats(func() cluster.Stats { return stats }),
	)
	p.readMem = func(*runtime.MemStats) {}

	stats.Frames = 70
	stats.AABBRebuilds = 3
	stats.TotalDroppedLights = 12
	clock.advance(time.Second)
	if !p.Tick() {
		t.Fatal("Tick did not report")
	}
	s := p.Last()
	if s.Cluster.Frames != 70 {
		t.Errorf("Cluster.Frames = %d, want 70", s.Cluster.Frames)
	}
	if s.DroppedLights != 7 || s.AABBRebuilds != 1 {
		t.Errorf("DroppedLights, AABBRebuilds = %d, %d, want 7, 1", s.DroppedLights, s.AABBRebuilds)
	}
}
