package cluster

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

const (
	defaultFrameOverlapCount = 2
	defaultFenceTimeout      = 2 * time.Second
)

// OverflowEvent reports a cluster that intersected more lights than it can hold in one
// frame. Dropped is the number of intersecting lights left out of its list.
type OverflowEvent struct {
	Frame   uint64
	Slot    int
	Cluster uint32
	Dropped uint32
}

// Stats are cumulative pipeline counters. The Last* fields are only filled when stats
// readback or an overflow hook is enabled.
type Stats struct {
	Frames               uint64
	AABBRebuilds         uint64
	AABBSkips            uint64
	CullDispatches       uint64
	Errors               uint64
	TotalDroppedLights   uint64
	LastIndexCount       uint32
	LastDroppedLights    uint32
	LastOverflowClusters uint32
}

// FrameResult describes one frame run by Execute.
type FrameResult struct {
	Frame       uint64
	Slot        int
	AABBRebuilt bool
}

// frameSlot holds everything one frame in flight owns.
type frameSlot struct {
	uniforms buffer.Handle
	aabbs    buffer.Handle
	global   buffer.Handle
	cells    buffer.Handle
	indices  buffer.Handle
	dropped  buffer.Handle

	aabbProvider    bind_group_provider.BindGroupProvider
	cullProvider    bind_group_provider.BindGroupProvider
	shadingProvider bind_group_provider.BindGroupProvider

	params     Params
	paramsSet  bool
	resetArmed bool

	aabbKey   geometryKey
	aabbValid bool

	// Per-frame flags, cleared by BeginFrame.
	aabbRebuilt bool
	culled      bool
}

func (s *frameSlot) handles() []buffer.Handle {
	return []buffer.Handle{s.uniforms, s.aabbs, s.global, s.cells, s.indices, s.dropped}
}

// pipelineImpl is the implementation of the Pipeline interface.
type pipelineImpl struct {
	mu *sync.Mutex

	r     renderer.Renderer
	store light.Store
	log   *zap.Logger

	grid          Grid
	frameOverlap  int
	fenceTimeout  time.Duration
	overflowHook  func(OverflowEvent)
	statsReadback bool

	aabbPipeline pipeline.Pipeline
	cullPipeline pipeline.Pipeline

	slots []*frameSlot

	// frames counts frames begun; the current frame number is frames while current >= 0.
	frames     uint64
	current    int
	lightCount uint32

	stats    Stats
	released bool
}

// Pipeline is the clustered light assignment pipeline.
//
// Every frame slot owns its own AABB buffer, global index counter, light cell buffer and
// light index list, so a frame can be recorded while the previous one is still executing.
// A frame is driven either step by step:
//
//	slot, _ := p.BeginFrame(ctx)
//	p.ResetGlobalIndex(slot)
//	p.SetClusterParams(params, slot)
//	p.RunAABBGeneration()
//	p.RunLightCulling(slot)
//	p.EndFrame(slot)
//
// or in one call with Execute. Runtime failures are returned as *StageError and logged
// with the stage, frame and slot; passing a frame slot outside [0, FrameOverlapCount())
// panics.
type Pipeline interface {
	// Grid returns the cluster grid.
	//
	// Returns:
	//   - Grid: the grid
	Grid() Grid

	// FrameOverlapCount returns the number of frame slots.
	//
	// Returns:
	//   - int: the number of frames in flight
	FrameOverlapCount() int

	// BeginFrame selects the next frame slot, waits until its previous submission completed,
	// uploads pending light changes and starts recording.
	//
	// Parameters:
	//   - ctx: bounds the fence wait together with the fence timeout
	//
	// Returns:
	//   - int: the frame slot
	//   - error: ErrFrameInProgress, or a *StageError wrapping renderer.ErrDeviceTimeout
	BeginFrame(ctx context.Context) (int, error)

	// ResetGlobalIndex zeroes the global index counter of a slot and arms the slot for culling.
	//
	// Parameters:
	//   - slot: the current frame slot
	//
	// Returns:
	//   - error: a *StageError
	ResetGlobalIndex(slot int) error

	// SetClusterParams uploads the cluster uniforms of a slot.
	//
	// Parameters:
	//   - params: camera-derived params for this pipeline's grid
	//   - slot: the current frame slot
	//
	// Returns:
	//   - error: a *StageError wrapping ErrInvalidParams
	SetClusterParams(params Params, slot int) error

	// RunAABBGeneration records the cluster AABB pass for the current slot. The pass is
	// skipped when the slot's AABBs were built from the same projection and clip planes.
	//
	// Returns:
	//   - error: a *StageError
	RunAABBGeneration() error

	// RunLightCulling records the culling pass for a slot followed by the barrier that
	// hands the light lists to the fragment stage.
	//
	// Parameters:
	//   - slot: the current frame slot
	//
	// Returns:
	//   - error: a *StageError wrapping ErrMissingReset, ErrParamsNotSet or ErrAABBNotGenerated
	RunLightCulling(slot int) error

	// EndFrame submits the recorded work for a slot.
	//
	// Parameters:
	//   - slot: the current frame slot
	//
	// Returns:
	//   - error: a *StageError
	EndFrame(slot int) error

	// Execute runs a full frame for a camera.
	//
	// Parameters:
	//   - ctx: bounds the fence wait
	//   - src: the camera
	//
	// Returns:
	//   - FrameResult: the frame and slot that ran
	//   - error: the first stage failure
	Execute(ctx context.Context, src ParamsSource) (FrameResult, error)

	// ForceAABBRebuild makes the next RunAABBGeneration of every slot rebuild its AABBs.
	ForceAABBRebuild()

	// LightCells returns a read-only view of a slot's light cell buffer.
	LightCells(slot int) BufferView

	// LightIndexList returns a read-only view of a slot's light index list.
	LightIndexList(slot int) BufferView

	// ClusterAABBs returns a read-only view of a slot's AABB buffer.
	ClusterAABBs(slot int) BufferView

	// GlobalIndex returns a read-only view of a slot's global index counter.
	GlobalIndex(slot int) BufferView

	// ShadingBindings returns the initialized provider of the shading bind group of a slot
	// (see ShadingLayout).
	//
	// Parameters:
	//   - slot: the frame slot
	//
	// Returns:
	//   - bind_group_provider.BindGroupProvider: the provider
	ShadingBindings(slot int) bind_group_provider.BindGroupProvider

	// Snapshot waits for a slot and reads its light lists back.
	//
	// Parameters:
	//   - ctx: bounds the fence wait
	//   - slot: the frame slot
	//
	// Returns:
	//   - *Snapshot: the light lists
	//   - error: an error if the wait or readback failed
	Snapshot(ctx context.Context, slot int) (*Snapshot, error)

	// Stats returns the pipeline counters.
	//
	// Returns:
	//   - Stats: the counters
	Stats() Stats

	// Release frees every buffer and bind group the pipeline owns. The light store and the
	// renderer are left alone.
	//
	// Returns:
	//   - error: aggregated release errors
	Release() error
}

var _ Pipeline = &pipelineImpl{}

// NewPipeline creates the cluster pipelines and the buffers of every frame slot. Failures
// here are initialization failures and are meant to be fatal.
//
// Parameters:
//   - r: the renderer
//   - store: the light store culled against
//   - options: functional options
//
// Returns:
//   - Pipeline: the pipeline
//   - error: ErrInvalidGrid or a resource creation error
func NewPipeline(r renderer.Renderer, store light.Store, options ...PipelineBuilderOption) (Pipeline, error) {
	p := &pipelineImpl{
		mu:           &sync.Mutex{},
		r:            r,
		store:        store,
		grid:         DefaultGrid(),
		frameOverlap: defaultFrameOverlapCount,
		fenceTimeout: defaultFenceTimeout,
		current:      -1,
	}
	for _, opt := range options {
		opt(p)
	}
	if p.log == nil {
		p.log = logger.New("cluster")
	}

	if err := p.grid.Validate(); err != nil {
		return nil, err
	}
	if p.frameOverlap < 1 {
		return nil, fmt.Errorf("cluster: frame overlap count %d must be at least 1", p.frameOverlap)
	}
	if p.fenceTimeout <= 0 {
		p.fenceTimeout = defaultFenceTimeout
	}

	p.aabbPipeline = newAABBPipeline(p.grid)
	p.cullPipeline = newCullPipeline(p.grid)
	if err := r.RegisterPipelines(p.aabbPipeline, p.cullPipeline); err != nil {
		return nil, fmt.Errorf("cluster: register pipelines: %w", err)
	}

	for i := 0; i < p.frameOverlap; i++ {
		s, err := p.createSlot(i)
		if err != nil {
			return nil, multierr.Append(err, p.Release())
		}
		p.slots = append(p.slots, s)
	}

	p.log.Info("cluster pipeline created",
		zap.Stringer("grid", p.grid),
		zap.Uint32("clusters", p.grid.NumClusters()),
		zap.Int("frames_in_flight", p.frameOverlap),
		zap.Stringer("backend", r.Backend()),
	)
	return p, nil
}

func (p *pipelineImpl) createSlot(index int) (*frameSlot, error) {
	storage := buffer.UsageStorage | buffer.UsageCopyDst | buffer.UsageCopySrc
	s := &frameSlot{}

	create := func(name string, size uint64, usage buffer.Usage) (buffer.Handle, error) {
		return p.r.CreateBuffer(buffer.Descriptor{
			Label: fmt.Sprintf("Cluster %s [%d]", name, index),
			Size:  size,
			Usage: usage,
		})
	}

	var err error
	if s.uniforms, err = create("Uniforms", clusterUniformsByteSize, buffer.UsageUniform|buffer.UsageCopyDst); err != nil {
		return nil, err
	}
	// Every buffer created so far is released on failure.
	fail := func(err error) (*frameSlot, error) {
		for _, h := range s.handles() {
			if !h.IsZero() {
				err = multierr.Append(err, p.r.ReleaseBuffer(h))
			}
		}
		return nil, err
	}

	if s.aabbs, err = create("AABBs", aabbBufferSize(p.grid), storage); err != nil {
		return fail(err)
	}
	if s.global, err = create("Global Index", globalIndexBufferSize, storage); err != nil {
		return fail(err)
	}
	if s.cells, err = create("Light Cells", lightCellBufferSize(p.grid), storage); err != nil {
		return fail(err)
	}
	if s.indices, err = create("Light Indices", indexListBufferSize(p.grid), storage); err != nil {
		return fail(err)
	}
	if s.dropped, err = create("Dropped", droppedBufferSize(p.grid), storage); err != nil {
		return fail(err)
	}

	s.aabbProvider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Cluster AABB [%d]", index),
		bind_group_provider.WithBuffers(map[int]buffer.Handle{
			aabbBindingUniforms: s.uniforms,
			aabbBindingAABBs:    s.aabbs,
		}),
	)
	s.cullProvider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Light Cull [%d]", index),
		bind_group_provider.WithBuffers(map[int]buffer.Handle{
			cullBindingUniforms: s.uniforms,
			cullBindingLights:   p.store.Buffer(),
			cullBindingAABBs:    s.aabbs,
			cullBindingGlobal:   s.global,
			cullBindingCells:    s.cells,
			cullBindingIndices:  s.indices,
			cullBindingDropped:  s.dropped,
		}),
	)
	s.shadingProvider = bind_group_provider.NewBindGroupProvider(fmt.Sprintf("Cluster Shading [%d]", index),
		bind_group_provider.WithBuffers(map[int]buffer.Handle{
			ShadingBindingUniforms: s.uniforms,
			ShadingBindingLights:   p.store.Buffer(),
			ShadingBindingCells:    s.cells,
			ShadingBindingIndices:  s.indices,
		}),
	)

	if err := p.r.InitBindGroup(s.aabbProvider, p.aabbPipeline.Shader().BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return fail(err)
	}
	if err := p.r.InitBindGroup(s.cullProvider, p.cullPipeline.Shader().BindGroupLayoutDescriptor(0), nil, nil); err != nil {
		return fail(multierr.Append(err, p.r.ReleaseBindGroup(s.aabbProvider)))
	}
	if err := p.r.InitBindGroup(s.shadingProvider, ShadingLayout(), nil, nil); err != nil {
		err = multierr.Combine(err, p.r.ReleaseBindGroup(s.aabbProvider), p.r.ReleaseBindGroup(s.cullProvider))
		return fail(err)
	}
	return s, nil
}

func (p *pipelineImpl) Grid() Grid {
	return p.grid
}

func (p *pipelineImpl) FrameOverlapCount() int {
	return p.frameOverlap
}

func (p *pipelineImpl) ForceAABBRebuild() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.slots {
		s.aabbValid = false
	}
}

func (p *pipelineImpl) LightCells(slot int) BufferView {
	return p.view(p.slot(slot).cells)
}

func (p *pipelineImpl) LightIndexList(slot int) BufferView {
	return p.view(p.slot(slot).indices)
}

func (p *pipelineImpl) ClusterAABBs(slot int) BufferView {
	return p.view(p.slot(slot).aabbs)
}

func (p *pipelineImpl) GlobalIndex(slot int) BufferView {
	return p.view(p.slot(slot).global)
}

func (p *pipelineImpl) ShadingBindings(slot int) bind_group_provider.BindGroupProvider {
	return p.slot(slot).shadingProvider
}

func (p *pipelineImpl) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats
}

func (p *pipelineImpl) Release() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil
	}
	p.released = true

	var err error
	for _, s := range p.slots {
		err = multierr.Combine(err,
			p.r.ReleaseBindGroup(s.aabbProvider),
			p.r.ReleaseBindGroup(s.cullProvider),
			p.r.ReleaseBindGroup(s.shadingProvider),
		)
		for _, h := range s.handles() {
			err = multierr.Append(err, p.r.ReleaseBuffer(h))
		}
	}
	return err
}

// slot resolves a frame slot index. An out of range index is a programming error.
func (p *pipelineImpl) slot(index int) *frameSlot {
	if index < 0 || index >= p.frameOverlap {
		panic(fmt.Errorf("%w: %d not in [0, %d)", ErrInvalidFrameSlot, index, p.frameOverlap))
	}
	return p.slots[index]
}

// fail wraps err in a StageError, logs it and counts it. Callers hold p.mu.
func (p *pipelineImpl) fail(stage string, slot int, err error) error {
	p.stats.Errors++
	se := &StageError{Stage: stage, Frame: p.frames, Slot: slot, Err: err}
	p.log.Error("cluster stage failed",
		zap.String("stage", stage),
		zap.Uint64("frame", p.frames),
		zap.Int("slot", slot),
		zap.Error(err),
	)
	return se
}
