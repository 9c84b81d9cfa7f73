package cluster

import (
	"context"
	"errors"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"go.uber.org/multierr"
	"go.uber.org/zap"
)

func (p *pipelineImpl) BeginFrame(ctx context.Context) (int, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.released {
		return -1, ErrReleased
	}
	if p.current >= 0 {
		return -1, fmt.Errorf("%w: slot %d", ErrFrameInProgress, p.current)
	}

	index := int(p.frames % uint64(p.frameOverlap))
	s := p.slots[index]

	waitCtx, cancel := context.WithTimeout(ctx, p.fenceTimeout)
	defer cancel()
	if err := p.r.WaitFrame(waitCtx, index); err != nil {
		return -1, p.fail(StageBeginFrame, index, err)
	}

	lightCount, err := p.store.Sync()
	if err != nil {
		return -1, p.fail(StageLightUpload, index, err)
	}
	if err := p.r.BeginComputeFrame(); err != nil {
		return -1, p.fail(StageBeginFrame, index, err)
	}

	p.frames++
	p.current = index
	p.lightCount = uint32(lightCount)
	s.aabbRebuilt = false
	s.culled = false
	return index, nil
}

func (p *pipelineImpl) ResetGlobalIndex(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}

	s := p.slot(slot)
	if err := p.checkCurrent(slot); err != nil {
		return p.fail(StageReset, slot, err)
	}

	if err := p.r.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: s.cullProvider,
		Binding:  cullBindingGlobal,
		Data:     make([]byte, globalIndexBufferSize),
	}}); err != nil {
		return p.fail(StageReset, slot, err)
	}
	s.resetArmed = true
	return nil
}

func (p *pipelineImpl) SetClusterParams(params Params, slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}

	s := p.slot(slot)
	if err := p.checkCurrent(slot); err != nil {
		return p.fail(StageParams, slot, err)
	}
	if params.Grid != p.grid {
		return p.fail(StageParams, slot, fmt.Errorf("%w: params grid %s, pipeline grid %s", ErrInvalidParams, params.Grid, p.grid))
	}
	if err := params.Validate(); err != nil {
		return p.fail(StageParams, slot, err)
	}

	uniforms := params.Uniforms(p.lightCount)
	if err := p.r.WriteBuffers([]bind_group_provider.BufferWrite{{
		Provider: s.aabbProvider,
		Binding:  aabbBindingUniforms,
		Data:     uniforms.Marshal(),
	}}); err != nil {
		return p.fail(StageParams, slot, err)
	}
	s.params = params
	s.paramsSet = true
	return nil
}

func (p *pipelineImpl) RunAABBGeneration() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}

	if p.current < 0 {
		return p.fail(StageAABB, -1, ErrNoFrame)
	}
	slot := p.current
	s := p.slots[slot]
	if !s.paramsSet {
		return p.fail(StageAABB, slot, ErrParamsNotSet)
	}

	key := s.params.geometryKey()
	if s.aabbValid && s.aabbKey == key {
		p.stats.AABBSkips++
		return nil
	}

	s.aabbValid = false
	groups := p.aabbPipeline.WorkgroupCount([3]uint32{p.grid.NumClusters(), 1, 1})
	if err := p.r.DispatchCompute(p.aabbPipeline.PipelineKey(), s.aabbProvider, groups); err != nil {
		return p.fail(StageAABB, slot, err)
	}
	if err := p.r.Barrier(renderer.Barrier{
		Label:   "cluster aabbs",
		Buffers: []buffer.Handle{s.aabbs},
		Src:     renderer.StageCompute,
		Dst:     renderer.StageCompute,
	}); err != nil {
		return p.fail(StageBarrier, slot, err)
	}

	s.aabbKey = key
	s.aabbValid = true
	s.aabbRebuilt = true
	p.stats.AABBRebuilds++
	p.log.Debug("cluster aabbs rebuilt", zap.Uint64("frame", p.frames), zap.Int("slot", slot))
	return nil
}

func (p *pipelineImpl) RunLightCulling(slot int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return ErrReleased
	}

	s := p.slot(slot)
	if err := p.checkCurrent(slot); err != nil {
		return p.fail(StageCulling, slot, err)
	}
	if !s.resetArmed {
		return p.fail(StageCulling, slot, ErrMissingReset)
	}
	if !s.paramsSet {
		return p.fail(StageCulling, slot, ErrParamsNotSet)
	}
	if !s.aabbValid || s.aabbKey != s.params.geometryKey() {
		return p.fail(StageCulling, slot, ErrAABBNotGenerated)
	}

	groups := [3]uint32{p.grid.SliceCountX, p.grid.SliceCountY, p.grid.SliceCountZ}
	if err := p.r.DispatchCompute(p.cullPipeline.PipelineKey(), s.cullProvider, groups); err != nil {
		return p.fail(StageCulling, slot, err)
	}
	s.resetArmed = false

	compute, graphics := p.r.QueueFamilies()
	if err := p.r.Barrier(renderer.Barrier{
		Label:          "cluster light lists",
		Buffers:        []buffer.Handle{s.cells, s.indices},
		Src:            renderer.StageCompute,
		Dst:            renderer.StageFragment,
		SrcQueueFamily: compute,
		DstQueueFamily: graphics,
	}); err != nil {
		return p.fail(StageBarrier, slot, err)
	}

	s.culled = true
	p.stats.CullDispatches++
	return nil
}

func (p *pipelineImpl) EndFrame(slot int) error {
	events, err := p.endFrame(slot)
	// The hook runs without p.mu held so it may call back into the pipeline.
	for _, e := range events {
		p.overflowHook(e)
	}
	return err
}

func (p *pipelineImpl) endFrame(slot int) ([]OverflowEvent, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrReleased
	}

	s := p.slot(slot)
	if err := p.checkCurrent(slot); err != nil {
		return nil, p.fail(StageSubmit, slot, err)
	}

	p.current = -1
	p.stats.Frames++
	if err := p.r.EndComputeFrame(slot); err != nil {
		s.aabbValid = false
		return nil, p.fail(StageSubmit, slot, err)
	}

	if !s.culled || (!p.statsReadback && p.overflowHook == nil) {
		return nil, nil
	}
	events, err := p.readback(s, slot)
	if err != nil {
		return nil, p.fail(StageReadback, slot, err)
	}
	if p.overflowHook == nil {
		return nil, nil
	}
	return events, nil
}

func (p *pipelineImpl) Execute(ctx context.Context, src ParamsSource) (FrameResult, error) {
	slot, err := p.BeginFrame(ctx)
	if err != nil {
		return FrameResult{}, err
	}

	p.mu.Lock()
	result := FrameResult{Frame: p.frames, Slot: slot}
	p.mu.Unlock()

	err = p.runFrame(src, slot)
	// The recorded work is submitted even after a failed stage so the slot's fence stays
	// consistent; the frame's light lists are undefined in that case.
	err = multierr.Append(err, p.EndFrame(slot))

	p.mu.Lock()
	result.AABBRebuilt = p.slots[slot].aabbRebuilt
	p.mu.Unlock()
	return result, err
}

func (p *pipelineImpl) runFrame(src ParamsSource, slot int) error {
	params, err := NewParams(src, p.grid)
	if err != nil {
		p.mu.Lock()
		defer p.mu.Unlock()
		return p.fail(StageParams, slot, err)
	}
	if err := p.ResetGlobalIndex(slot); err != nil {
		return err
	}
	if err := p.SetClusterParams(params, slot); err != nil {
		return err
	}
	if err := p.RunAABBGeneration(); err != nil {
		return err
	}
	return p.RunLightCulling(slot)
}

// readback waits for the slot and collects the global index counter and dropped counters.
// Callers hold p.mu.
func (p *pipelineImpl) readback(s *frameSlot, slot int) ([]OverflowEvent, error) {
	ctx, cancel := context.WithTimeout(context.Background(), p.fenceTimeout)
	defer cancel()
	if err := p.r.WaitFrame(ctx, slot); err != nil {
		return nil, err
	}

	global, err := p.r.ReadBuffer(s.global, 0, 4)
	if err != nil {
		return nil, err
	}
	data, err := p.r.ReadBuffer(s.dropped, 0, droppedBufferSize(p.grid))
	if err != nil {
		return nil, err
	}

	var events []OverflowEvent
	var droppedLights, overflowClusters uint32
	for cluster, dropped := range common.BytesToWords(data) {
		if dropped == 0 {
			continue
		}
		droppedLights += dropped
		overflowClusters++
		events = append(events, OverflowEvent{Frame: p.frames, Slot: slot, Cluster: uint32(cluster), Dropped: dropped})
	}

	p.stats.LastIndexCount = common.Uint(global, 0)
	p.stats.LastDroppedLights = droppedLights
	p.stats.LastOverflowClusters = overflowClusters
	p.stats.TotalDroppedLights += uint64(droppedLights)
	if overflowClusters > 0 {
		p.log.Warn("cluster light lists overflowed",
			zap.Uint64("frame", p.frames),
			zap.Int("slot", slot),
			zap.Uint32("clusters", overflowClusters),
			zap.Uint32("dropped_lights", droppedLights),
		)
	}
	return events, nil
}

// checkCurrent verifies a frame is being recorded on slot. Callers hold p.mu.
func (p *pipelineImpl) checkCurrent(slot int) error {
	if p.current < 0 {
		return ErrNoFrame
	}
	if slot != p.current {
		return fmt.Errorf("%w: got %d, recording %d", ErrSlotNotCurrent, slot, p.current)
	}
	return nil
}

// IsStageError reports whether err is a StageError of the given stage.
func IsStageError(err error, stage string) bool {
	var se *StageError
	return errors.As(err, &se) && se.Stage == stage
}
