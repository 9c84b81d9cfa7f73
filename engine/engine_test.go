package engine

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/go-gl/mathgl/mgl32"
)

func newTestPipeline(t *testing.T) (cluster.Pipeline, light.Store) {
	t.Helper()
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithComputeWorkers(2), renderer.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(func() { _ = r.Release() })

	store, err := light.NewStore(r, light.WithCapacity(64), light.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewStore: %v", err)
	}
	t.Cleanup(func() { _ = store.Release() })

	p, err := cluster.NewPipeline(r, store,
		cluster.WithGrid(cluster.Grid{SliceCountX: 4, SliceCountY: 4, SliceCountZ: 8, MaxLightsPerCluster: 8}),
		cluster.WithLogger(logger.Nop()),
	)
	if err != nil {
		t.Fatalf("NewPipeline: %v", err)
	}
	t.Cleanup(func() { _ = p.Release() })
	return p, store
}

func testCamera() camera.Camera {
	return camera.NewCamera(
		camera.WithLookAt([3]float32{0, 0, 0}, [3]float32{0, 0, -1}),
		camera.WithNear(0.1),
		camera.WithFar(100),
		camera.WithViewport(640, 360),
	)
}

// brokenSource reports a near plane of zero, which every frame rejects.
type brokenSource struct{}

func (brokenSource) State() camera.State {
	return camera.State{
		InverseProjection: mgl32.Ident4(),
		View:              mgl32.Ident4(),
		Far:               100,
		Width:             640,
		Height:            360,
		Revision:          1,
	}
}

func TestRunStopsAtFrameLimit(t *testing.T) {
	p, store := newTestPipeline(t)
	if err := store.SetLights([]light.Light{light.NewPointLight([3]float32{0, 0, -5}, 1)}); err != nil {
		t.Fatalf("SetLights: %v", err)
	}

	var mu sync.Mutex
	var results []cluster.FrameResult
	e := NewEngine(p, testCamera(), WithMaxFrames(5), WithLogger(logger.Nop()))
	e.SetFrameCallback(func(res cluster.FrameResult, err error) {
		if err != nil {
			t.Errorf("frame %d: %v", res.Frame, err)
		}
		mu.Lock()
		results = append(results, res)
		mu.Unlock()
	})

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := e.Frames(); got != 5 {
		t.Fatalf("Frames = %d, want 5", got)
	}
	if len(results) != 5 {
		t.Fatalf("%d frame callbacks, want 5", len(results))
	}
	for i, res := range results {
		if res.Frame != uint64(i+1) || res.Slot != i%2 {
			t.Errorf("result %d = %+v", i, res)
		}
	}
	stats := p.Stats()
	if stats.Frames != 5 || stats.AABBRebuilds != 2 || stats.AABBSkips != 3 {
		t.Fatalf("stats = %+v, want 5 frames, 2 rebuilds, 3 skips", stats)
	}
}

func TestRunKeepsGoingAfterFrameErrors(t *testing.T) {
	p, _ := newTestPipeline(t)

	var failures atomic.Int32
	e := NewEngine(p, brokenSource{}, WithMaxFrames(3), WithLogger(logger.Nop()))
	e.SetFrameCallback(func(_ cluster.FrameResult, err error) {
		if cluster.IsStageError(err, cluster.StageParams) {
			failures.Add(1)
		}
	})

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if got := failures.Load(); got != 3 {
		t.Fatalf("%d parameter failures, want 3", got)
	}
	if got := p.Stats().Errors; got != 3 {
		t.Fatalf("Stats.Errors = %d, want 3", got)
	}
}

func TestRunStopsOnReleasedPipeline(t *testing.T) {
	p, _ := newTestPipeline(t)
	if err := p.Release(); err != nil {
		t.Fatalf("Release: %v", err)
	}

	e := NewEngine(p, testCamera(), WithLogger(logger.Nop()))
	if err := e.Run(context.Background()); !errors.Is(err, cluster.ErrReleased) {
		t.Fatalf("Run = %v, want ErrReleased", err)
	}
	if got := e.Frames(); got != 1 {
		t.Fatalf("Frames = %d, want 1", got)
	}
}

func TestRunHonorsCancelledContext(t *testing.T) {
	p, _ := newTestPipeline(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	e := NewEngine(p, testCamera(), WithLogger(logger.Nop()))
	if err := e.Run(ctx); !errors.Is(err, context.Canceled) {
		t.Fatalf("Run = %v, want context.Canceled", err)
	}
	if got := e.Frames(); got != 0 {
		t.Fatalf("Frames = %d, want 0", got)
	}
}

func TestTickCallbackRunsAlongsideFrames(t *testing.T) {
	p, _ := newTestPipeline(t)

	var ticks atomic.Int32
	e := NewEngine(p, testCamera(),
		WithMaxFrames(20),
		WithRenderFrameLimit(100),
		WithTickRate(1000),
		WithLogger(logger.Nop()),
	)
	e.SetTickCallback(func(float32) { ticks.Add(1) })

	if err := e.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}
	if ticks.Load() == 0 {
		t.Fatal("tick callback never ran")
	}

	// Quit after Run is a no-op.
	e.Quit()
}
