package main

import (
	"context"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
)

func TestParseGrid(t *testing.T) {
	g, err := parseGrid("16x9x24", 150)
	if err != nil {
		t.Fatalf("parseGrid: %v", err)
	}
	if g != cluster.DefaultGrid() {
		t.Fatalf("parseGrid = %v, want %v", g, cluster.DefaultGrid())
	}

	for _, bad := range []string{"16x9", "axbxc", "0x9x24"} {
		if _, err := parseGrid(bad, 150); err == nil {
			t.Errorf("parseGrid(%q) succeeded", bad)
		}
	}
	if _, err := parseGrid("16x9x24", 0); err == nil {
		t.Error("parseGrid accepted a zero capacity")
	}
}

func TestDemoFrameMatchesBruteForce(t *testing.T) {
	r, err := renderer.NewRenderer(renderer.BackendTypeSoftware, renderer.WithComputeWorkers(4), renderer.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	defer r.Release()

	cfg := sceneConfig{
		lights:     400,
		seed:       7,
		radiusMin:  0.5,
		radiusMax:  2,
		extent:     20,
		grid:       cluster.Grid{SliceCountX: 8, SliceCountY: 6, SliceCountZ: 12, MaxLightsPerCluster: 16},
		overlap:    2,
		near:       0.1,
		far:        100,
		orbitSpeed: 0.25,
		width:      800,
		height:     600,
	}
	d, err := newDemo(r, cfg, cluster.WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("newDemo: %v", err)
	}
	defer d.release()

	d.field.tick(0.5)

	snap, err := finalFrame(context.Background(), d)
	if err != nil {
		t.Fatalf("finalFrame: %v", err)
	}
	if snap.TotalCount() == 0 {
		t.Fatal("no light reached any cluster")
	}
	mismatches, err := verifyFrame(context.Background(), d, snap)
	if err != nil {
		t.Fatalf("verifyFrame: %v", err)
	}
	if mismatches != 0 {
		t.Fatalf("%d clusters disagree with the brute force assignment", mismatches)
	}
}
