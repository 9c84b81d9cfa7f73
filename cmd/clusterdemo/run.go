package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"slices"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

// runHeadless runs the pipeline for a fixed number of frames without a window.
func runHeadless(ctx *cli.Context) (err error) {
	setupLogging(ctx)

	cfg, err := readSceneConfig(ctx)
	if err != nil {
		return err
	}
	backend, ok := renderer.ParseBackendType(ctx.String("backend"))
	if !ok {
		return fmt.Errorf("unknown backend %q", ctx.String("backend"))
	}
	frames := ctx.Int("frames")
	if frames <= 0 {
		return fmt.Errorf("--frames must be positive, got %d", frames)
	}

	r, err := renderer.NewRenderer(backend, renderer.WithComputeWorkers(ctx.Int("workers")))
	if err != nil {
		return fmt.Errorf("create %s device: %w", backend, err)
	}
	defer func() { err = multierr.Append(err, r.Release()) }()

	d, err := newDemo(r, cfg, cluster.WithStatsReadback(true))
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, d.release()) }()

	eng := engine.NewEngine(d.pipeline, d.cam,
		engine.WithMaxFrames(uint64(frames)),
		engine.WithProfiling(ctx.Bool("profile")),
	)
	if ctx.Bool("animate") {
		eng.SetTickCallback(d.field.tick)
	}

	runCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	log.Info("running",
		zap.Stringer("backend", backend),
		zap.Int("lights", d.field.count()),
		zap.Stringer("grid", cfg.grid),
		zap.Int("frames", frames),
	)
	start := time.Now()
	if err := eng.Run(runCtx); err != nil {
		return err
	}
	elapsed := time.Since(start)

	displayRunStats(ctx.App.Writer, d.pipeline.Stats(), r.Stats(), d.overflowEvents(), elapsed)

	snap, err := finalFrame(runCtx, d)
	if err != nil {
		return err
	}
	displaySliceOccupancy(ctx.App.Writer, snap)

	if ctx.Bool("verify") {
		mismatches, err := verifyFrame(runCtx, d, snap)
		if err != nil {
			return err
		}
		if mismatches > 0 {
			return fmt.Errorf("verification failed: %d clusters disagree with the brute force assignment", mismatches)
		}
		fmt.Fprintln(ctx.App.Writer, "verification passed")
	}
	return nil
}

// finalFrame runs one more frame with the scene at rest and returns its light lists.
func finalFrame(ctx context.Context, d *demo) (*cluster.Snapshot, error) {
	res, err := d.pipeline.Execute(ctx, d.cam)
	if err != nil {
		return nil, err
	}
	d.finalSlot = res.Slot
	return d.pipeline.Snapshot(ctx, res.Slot)
}

// verifyFrame checks every cluster of snap against cluster.BruteForce. The kept subset
// of an overflowing cluster is backend-defined, so a cluster matches when its list holds
// min(reference, capacity) lights that all appear in the reference.
func verifyFrame(ctx context.Context, d *demo, snap *cluster.Snapshot) (int, error) {
	data, err := d.pipeline.ClusterAABBs(d.finalSlot).Read()
	if err != nil {
		return 0, fmt.Errorf("read cluster bounds: %w", err)
	}
	g := snap.Grid
	ref := cluster.BruteForce(g, cluster.UnmarshalAABBs(data), d.cam.ViewMatrix(), d.field.gpuLights())

	mismatches := 0
	for c := uint32(0); c < g.NumClusters(); c++ {
		got := snap.Lights(c)
		want := min(len(ref[c]), int(g.MaxLightsPerCluster))
		ok := len(got) == want
		for _, idx := range got {
			if _, found := slices.BinarySearch(ref[c], idx); !found {
				ok = false
			}
		}
		if !ok {
			mismatches++
			log.Debug("cluster mismatch", zap.Uint32("cluster", c), zap.Int("got", len(got)), zap.Int("want", want))
		}
	}
	return mismatches, ctx.Err()
}
