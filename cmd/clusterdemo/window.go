package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/window"
	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	windowTitle         = "Clustered Lighting"
	titleUpdateInterval = 500 * time.Millisecond
	lightCountStep      = 1.25
)

// runWindow runs the pipeline every frame on a WebGPU device created for a window surface.
func runWindow(ctx *cli.Context) (err error) {
	setupLogging(ctx)

	cfg, err := readSceneConfig(ctx)
	if err != nil {
		return err
	}

	w, err := window.NewWindow(
		window.WithTitle(windowTitle),
		window.WithSize(ctx.Int("width"), ctx.Int("height")),
	)
	if err != nil {
		return err
	}
	cfg.width, cfg.height = w.Size()

	r, err := renderer.NewRenderer(renderer.BackendTypeWGPU, renderer.WithCompatibleSurface(w.SurfaceDescriptor()))
	if err != nil {
		return multierr.Append(fmt.Errorf("create wgpu device: %w", err), w.Close())
	}
	defer func() { err = multierr.Append(err, r.Release()) }()

	d, err := newDemo(r, cfg, cluster.WithStatsReadback(true))
	if err != nil {
		return multierr.Append(err, w.Close())
	}
	defer func() { err = multierr.Append(err, d.release()) }()

	eng := engine.NewEngine(d.pipeline, d.cam,
		engine.WithWindow(w),
		engine.WithProfiling(true),
		engine.WithRenderFrameLimit(ctx.Float64("fps-limit")),
	)
	eng.SetTickCallback(d.field.tick)
	bindInput(w, d)

	lastTitle := time.Now()
	eng.SetWindowCallback(func() {
		if time.Since(lastTitle) < titleUpdateInterval {
			return
		}
		lastTitle = time.Now()
		stats := d.pipeline.Stats()
		w.SetTitle(fmt.Sprintf("%s | %.0f fps | %d lights | %d indices | %d dropped",
			windowTitle, eng.Profiler().Last().FPS, d.store.Count(), stats.LastIndexCount, stats.LastDroppedLights))
	})

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	start := time.Now()
	if err := eng.Run(runCtx); err != nil && runCtx.Err() == nil {
		return err
	}
	displayRunStats(ctx.App.Writer, d.pipeline.Stats(), r.Stats(), d.overflowEvents(), time.Since(start))
	return nil
}

func bindInput(w window.Window, d *demo) {
	w.SetScrollCallback(d.field.zoom)
	w.SetDragCallback(d.field.drag)
	w.SetKeyCallback(func(key window.Key) {
		switch key {
		case window.KeySpace:
			d.field.togglePause()
		case window.KeyL:
			d.field.reshuffle()
		case window.KeyUp:
			d.field.scale(lightCountStep)
		case window.KeyDown:
			d.field.scale(1 / lightCountStep)
		case window.KeyR:
			d.pipeline.ForceAABBRebuild()
		default:
			return
		}
		log.Debug("key handled", zap.Stringer("key", key))
	})
}
