package main

import (
	"fmt"
	"math"
	"math/rand"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/Carmen-Shannon/oxy-cluster/engine/cluster"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/urfave/cli"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	// Pointer drag to orbit angle.
	dragSensitivity float32 = 0.005

	// Fraction of the radius one scroll step zooms by.
	zoomStep float32 = 0.1

	// Vertical drift of the lights.
	driftAmplitude float32 = 2
	driftFrequency float32 = 0.8
)

// sceneConfig collects the flags shared by the run and window commands.
type sceneConfig struct {
	lights     int
	seed       int64
	radiusMin  float32
	radiusMax  float32
	extent     float32
	grid       cluster.Grid
	overlap    int
	near       float32
	far        float32
	orbitSpeed float32
	width      uint32
	height     uint32
}

func readSceneConfig(ctx *cli.Context) (sceneConfig, error) {
	cfg := sceneConfig{
		lights:     ctx.Int("lights"),
		seed:       ctx.Int64("seed"),
		radiusMin:  float32(ctx.Float64("radius-min")),
		radiusMax:  float32(ctx.Float64("radius-max")),
		extent:     float32(ctx.Float64("extent")),
		overlap:    ctx.Int("overlap"),
		near:       float32(ctx.Float64("near")),
		far:        float32(ctx.Float64("far")),
		orbitSpeed: float32(ctx.Float64("orbit-speed")),
		width:      uint32(max(ctx.Int("width"), 1)),
		height:     uint32(max(ctx.Int("height"), 1)),
	}

	g, err := parseGrid(ctx.String("grid"), ctx.Int("max-lights"))
	if err != nil {
		return cfg, err
	}
	cfg.grid = g

	switch {
	case cfg.lights < 0:
		return cfg, fmt.Errorf("--lights must not be negative, got %d", cfg.lights)
	case cfg.radiusMin < 0 || cfg.radiusMax < cfg.radiusMin:
		return cfg, fmt.Errorf("light radius range [%v, %v] is invalid", cfg.radiusMin, cfg.radiusMax)
	case cfg.extent <= 0:
		return cfg, fmt.Errorf("--extent must be positive, got %v", cfg.extent)
	case cfg.near <= 0 || cfg.far <= cfg.near:
		return cfg, fmt.Errorf("near %v and far %v do not satisfy 0 < near < far", cfg.near, cfg.far)
	}
	return cfg, nil
}

// parseGrid reads a grid written as XxYxZ.
func parseGrid(s string, maxLights int) (cluster.Grid, error) {
	var x, y, z uint32
	if _, err := fmt.Sscanf(s, "%dx%dx%d", &x, &y, &z); err != nil {
		return cluster.Grid{}, fmt.Errorf("grid %q is not XxYxZ: %w", s, err)
	}
	if maxLights <= 0 {
		return cluster.Grid{}, fmt.Errorf("--max-lights must be positive, got %d", maxLights)
	}
	g := cluster.Grid{SliceCountX: x, SliceCountY: y, SliceCountZ: z, MaxLightsPerCluster: uint32(maxLights)}
	return g, g.Validate()
}

// demo bundles the objects one pipeline run needs.
type demo struct {
	cfg      sceneConfig
	store    light.Store
	pipeline cluster.Pipeline
	cam      camera.Camera
	field    *lightField

	// finalSlot is the frame slot of the last frame run by finalFrame.
	finalSlot int

	mu        sync.Mutex
	overflows uint64
}

func newDemo(r renderer.Renderer, cfg sceneConfig, opts ...cluster.PipelineBuilderOption) (*demo, error) {
	d := &demo{cfg: cfg}

	// Headroom for the Up key.
	capacity := max(cfg.lights*2, 64)
	store, err := light.NewStore(r, light.WithCapacity(capacity))
	if err != nil {
		return nil, fmt.Errorf("create light store: %w", err)
	}
	d.store = store

	opts = append([]cluster.PipelineBuilderOption{
		cluster.WithGrid(cfg.grid),
		cluster.WithFrameOverlapCount(cfg.overlap),
		cluster.WithOverflowHook(d.onOverflow),
	}, opts...)
	p, err := cluster.NewPipeline(r, store, opts...)
	if err != nil {
		return nil, multierr.Append(fmt.Errorf("create cluster pipeline: %w", err), store.Release())
	}
	d.pipeline = p

	ctrl := camera.NewOrbitController(
		camera.WithRadius(cfg.extent*1.25),
		camera.WithElevation(0.35),
		camera.WithTarget(0, 0, 0),
		camera.WithRadiusBounds(cfg.near*10, cfg.far*0.9),
	)
	d.cam = camera.NewCamera(
		camera.WithFov(float32(60*math.Pi/180)),
		camera.WithNear(cfg.near),
		camera.WithFar(cfg.far),
		camera.WithViewport(cfg.width, cfg.height),
		camera.WithController(ctrl),
	)
	d.cam.Update()

	d.field = newLightField(store, d.cam, cfg)
	if err := d.field.populate(cfg.lights); err != nil {
		return nil, multierr.Append(err, d.release())
	}
	return d, nil
}

func (d *demo) onOverflow(ev cluster.OverflowEvent) {
	d.mu.Lock()
	d.overflows++
	d.mu.Unlock()
	log.Debug("cluster overflow",
		zap.Uint64("frame", ev.Frame),
		zap.Uint32("cluster", ev.Cluster),
		zap.Uint32("dropped", ev.Dropped),
	)
}

func (d *demo) overflowEvents() uint64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.overflows
}

func (d *demo) release() error {
	var err error
	if d.pipeline != nil {
		err = multierr.Append(err, d.pipeline.Release())
	}
	return multierr.Append(err, d.store.Release())
}

// lightField owns the scene's point lights and the camera controller. The tick goroutine
// and window input both mutate it, so every access goes through mu.
type lightField struct {
	mu     sync.Mutex
	store  light.Store
	cam    camera.Camera
	cfg    sceneConfig
	rng    *rand.Rand
	lights []light.Light
	base   [][3]float32
	phase  []float32
	time   float32
	paused bool
}

func newLightField(store light.Store, cam camera.Camera, cfg sceneConfig) *lightField {
	return &lightField{
		store: store,
		cam:   cam,
		cfg:   cfg,
		rng:   rand.New(rand.NewSource(cfg.seed)),
	}
}

// populate replaces the light set with n new random lights.
func (f *lightField) populate(n int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.populateLocked(n)
}

func (f *lightField) populateLocked(n int) error {
	n = min(max(n, 0), f.store.Capacity())
	e := f.cfg.extent
	f.lights = make([]light.Light, n)
	f.base = make([][3]float32, n)
	f.phase = make([]float32, n)
	for i := range f.lights {
		pos := [3]float32{
			(f.rng.Float32()*2 - 1) * e,
			(f.rng.Float32()*2 - 1) * e * 0.25,
			(f.rng.Float32()*2 - 1) * e,
		}
		radius := f.cfg.radiusMin + f.rng.Float32()*(f.cfg.radiusMax-f.cfg.radiusMin)
		f.base[i] = pos
		f.phase[i] = f.rng.Float32() * 2 * math.Pi
		f.lights[i] = light.NewPointLight(pos, radius,
			light.WithColor(0.3+f.rng.Float32()*0.7, 0.3+f.rng.Float32()*0.7, 0.3+f.rng.Float32()*0.7, 1),
			light.WithIntensity(1+f.rng.Float32()*3),
		)
	}
	return f.store.SetLights(f.lights)
}

// tick advances the drift animation and the camera orbit.
func (f *lightField) tick(dt float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.paused {
		return
	}
	f.time += dt
	for i, l := range f.lights {
		b := f.base[i]
		l.SetPosition(b[0], b[1]+driftAmplitude*float32(math.Sin(float64(f.time*driftFrequency+f.phase[i]))), b[2])
	}
	if err := f.store.SetLights(f.lights); err != nil {
		log.Warn("light update rejected", zap.Error(err))
	}
	if ctrl := f.cam.Controller(); ctrl != nil {
		ctrl.Orbit(f.cfg.orbitSpeed * dt)
	}
	f.cam.Update()
}

func (f *lightField) togglePause() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.paused = !f.paused
}

func (f *lightField) reshuffle() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.populateLocked(len(f.lights)); err != nil {
		log.Warn("reshuffle failed", zap.Error(err))
	}
}

// scale multiplies the light count by factor, within the store's capacity.
func (f *lightField) scale(factor float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := max(int(float32(len(f.lights))*factor), 1)
	if err := f.populateLocked(n); err != nil {
		log.Warn("light count change failed", zap.Error(err))
	}
}

func (f *lightField) zoom(delta float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctrl := f.cam.Controller()
	if ctrl == nil {
		return
	}
	ctrl.SetRadius(ctrl.Radius() * (1 - delta*zoomStep))
	f.cam.Update()
}

func (f *lightField) drag(dx, dy float32) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ctrl := f.cam.Controller()
	if ctrl == nil {
		return
	}
	ctrl.Orbit(-dx * dragSensitivity)
	ctrl.SetElevation(ctrl.Elevation() + dy*dragSensitivity)
	f.cam.Update()
}

func (f *lightField) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.lights)
}

// gpuLights returns the records of the current light set in store order.
func (f *lightField) gpuLights() []light.GPULight {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]light.GPULight, 0, len(f.lights))
	for _, l := range f.lights {
		if light.Clusterable(l) {
			out = append(out, light.ToGPULight(l))
		}
	}
	return out
}
