package renderer

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/multierr"
)

type wgpuRendererBackendImpl struct {
	mu     *sync.Mutex
	device *wgpu.Device
	queue  *wgpu.Queue

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	surface  *wgpu.Surface

	buffers *buffer.Arena[*wgpu.Buffer]

	// Per-frame compute state, valid between BeginComputeFrame and EndComputeFrame.
	computeFrameEncoder *wgpu.CommandEncoder

	fences *slotFences

	stats DeviceStats
}

// wgpuRendererBackend extends RendererBackend with WGPU-specific accessors.
type wgpuRendererBackend interface {
	RendererBackend

	Device() *wgpu.Device
	Queue() *wgpu.Queue
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Surface() *wgpu.Surface
}

var _ wgpuRendererBackend = &wgpuRendererBackendImpl{}

func newWGPURendererBackend(surfaceDescriptor *wgpu.SurfaceDescriptor, forceFallbackAdapter bool) (wgpuRendererBackend, error) {
	runtime.LockOSThread()
	w := &wgpuRendererBackendImpl{
		mu:       &sync.Mutex{},
		instance: wgpu.CreateInstance(nil),
		buffers:  buffer.NewArena[*wgpu.Buffer](),
	}
	w.fences = newSlotFences(func(index uint64) {
		w.device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: w.queue, SubmissionIndex: wgpu.SubmissionIndex(index)})
	})
	if surfaceDescriptor != nil {
		w.surface = w.instance.CreateSurface(surfaceDescriptor)
	}

	a, err := w.instance.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
		CompatibleSurface:    w.surface,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: request adapter: %w", err)
	}
	w.adapter = a

	d, err := a.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "Cluster Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: wgpu.DefaultLimits(),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: request device: %w", err)
	}
	w.device = d
	w.queue = d.GetQueue()

	return w, nil
}

func (b *wgpuRendererBackendImpl) Device() *wgpu.Device {
	return b.device
}

func (b *wgpuRendererBackendImpl) Queue() *wgpu.Queue {
	return b.queue
}

func (b *wgpuRendererBackendImpl) Instance() *wgpu.Instance {
	return b.instance
}

func (b *wgpuRendererBackendImpl) Adapter() *wgpu.Adapter {
	return b.adapter
}

func (b *wgpuRendererBackendImpl) Surface() *wgpu.Surface {
	return b.surface
}

func (b *wgpuRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	if p.Shader() == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}

	computeShader := p.Shader()
	s, err := b.device.CreateShaderModule(&wgpu.ShaderModuleDescriptor{
		Label: computeShader.Key(),
		WGSLDescriptor: &wgpu.ShaderModuleWGSLDescriptor{
			Code: computeShader.Source(),
		},
	})
	if err != nil {
		return err
	}

	descriptors := computeShader.BindGroupLayoutDescriptors()
	groups := make([]int, 0, len(descriptors))
	for g := range descriptors {
		groups = append(groups, g)
	}
	sort.Ints(groups)

	maxGroup := -1
	if len(groups) > 0 {
		maxGroup = groups[len(groups)-1]
	}
	bindGroupLayouts := make([]*wgpu.BindGroupLayout, maxGroup+1)
	for _, g := range groups {
		desc := toWGPULayout(descriptors[g])
		bgl, bglErr := b.device.CreateBindGroupLayout(&desc)
		if bglErr != nil {
			return fmt.Errorf("failed to create bind group layout for group %d: %w", g, bglErr)
		}
		bindGroupLayouts[g] = bgl
	}

	layout, err := b.device.CreatePipelineLayout(&wgpu.PipelineLayoutDescriptor{
		Label:            p.PipelineKey(),
		BindGroupLayouts: bindGroupLayouts,
	})
	if err != nil {
		return err
	}

	created, err := b.device.CreateComputePipeline(&wgpu.ComputePipelineDescriptor{
		Label:  p.PipelineKey() + " Compute Pipeline",
		Layout: layout,
		Compute: wgpu.ProgrammableStageDescriptor{
			Module:     s,
			EntryPoint: computeShader.EntryPoint(),
		},
	})
	if err != nil {
		return err
	}

	p.SetComputePipeline(created)
	return nil
}

func (b *wgpuRendererBackendImpl) CreateBuffer(desc buffer.Descriptor) (buffer.Handle, error) {
	buf, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label,
		Size:  desc.Size,
		Usage: toWGPUUsage(desc.Usage),
	})
	if err != nil {
		return buffer.Handle{}, err
	}
	return b.buffers.Insert(buf, desc), nil
}

func (b *wgpuRendererBackendImpl) ReleaseBuffer(h buffer.Handle) error {
	buf, err := b.buffers.Remove(h)
	if err != nil {
		return err
	}
	buf.Release()
	return nil
}

func (b *wgpuRendererBackendImpl) BufferDescriptor(h buffer.Handle) (buffer.Descriptor, error) {
	_, desc, err := b.buffers.Get(h)
	return desc, err
}

func (b *wgpuRendererBackendImpl) CreateBindGroup(provider bind_group_provider.BindGroupProvider, descriptor bind_group_provider.LayoutDescriptor) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	layoutDesc := toWGPULayout(descriptor)
	layout, err := b.device.CreateBindGroupLayout(&layoutDesc)
	if err != nil {
		return err
	}

	entries := make([]wgpu.BindGroupEntry, len(descriptor.Entries))
	for i, entry := range descriptor.Entries {
		h, ok := provider.Buffer(entry.Binding)
		if !ok {
			layout.Release()
			return fmt.Errorf("binding %d: %w", entry.Binding, ErrUnknownBinding)
		}
		buf, _, getErr := b.buffers.Get(h)
		if getErr != nil {
			layout.Release()
			return fmt.Errorf("binding %d: %w", entry.Binding, getErr)
		}
		entries[i] = wgpu.BindGroupEntry{
			Binding: uint32(entry.Binding),
			Buffer:  buf,
			Offset:  0,
			Size:    wgpu.WholeSize,
		}
	}

	bindGroup, err := b.device.CreateBindGroup(&wgpu.BindGroupDescriptor{
		Label:   provider.Label() + " Bind Group",
		Layout:  layout,
		Entries: entries,
	})
	if err != nil {
		layout.Release()
		return err
	}

	provider.SetBindGroupLayout(layout, descriptor)
	provider.SetBindGroup(bindGroup)
	return nil
}

func (b *wgpuRendererBackendImpl) ReleaseBindGroupObjects(bindGroup, bindGroupLayout any) {
	if bg, ok := bindGroup.(*wgpu.BindGroup); ok && bg != nil {
		bg.Release()
	}
	if bgl, ok := bindGroupLayout.(*wgpu.BindGroupLayout); ok && bgl != nil {
		bgl.Release()
	}
}

func (b *wgpuRendererBackendImpl) WriteBuffer(h buffer.Handle, offset uint64, data []byte) error {
	buf, _, err := b.buffers.Get(h)
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.queue.WriteBuffer(buf, offset, data)
	b.stats.BytesWritten += uint64(len(data))
	return nil
}

func (b *wgpuRendererBackendImpl) ReadBuffer(h buffer.Handle, offset, size uint64) ([]byte, error) {
	src, desc, err := b.buffers.Get(h)
	if err != nil {
		return nil, err
	}
	if !desc.Usage.Has(buffer.UsageCopySrc) {
		return nil, fmt.Errorf("read %q: %w", desc.Label, ErrIncompatibleUsage)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	staging, err := b.device.CreateBuffer(&wgpu.BufferDescriptor{
		Label: desc.Label + " Readback",
		Size:  size,
		Usage: wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
	})
	if err != nil {
		return nil, err
	}
	defer staging.Release()

	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, err
	}
	encoder.CopyBufferToBuffer(src, offset, staging, 0, size)
	commandBuffer, err := encoder.Finish(nil)
	encoder.Release()
	if err != nil {
		return nil, err
	}
	index := b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	var status wgpu.BufferMapAsyncStatus
	if err := staging.MapAsync(wgpu.MapModeRead, 0, size, func(s wgpu.BufferMapAsyncStatus) {
		status = s
	}); err != nil {
		return nil, err
	}
	b.device.Poll(true, &wgpu.WrappedSubmissionIndex{Queue: b.queue, SubmissionIndex: index})
	if status != wgpu.BufferMapAsyncStatusSuccess {
		return nil, fmt.Errorf("map %q for reading: status %d", desc.Label, status)
	}

	out := make([]byte, size)
	copy(out, staging.GetMappedRange(0, uint(size)))
	staging.Unmap()

	b.stats.BytesRead += size
	return out, nil
}

func (b *wgpuRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder != nil {
		return ErrComputeFrameActive
	}
	encoder, err := b.device.CreateCommandEncoder(nil)
	if err != nil {
		return err
	}
	b.computeFrameEncoder = encoder
	return nil
}

func (b *wgpuRendererBackendImpl) DispatchCompute(
	p pipeline.Pipeline,
	computeProvider bind_group_provider.BindGroupProvider,
	workGroupCount [3]uint32,
) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}

	computePipeline, ok := p.Pipeline().(*wgpu.ComputePipeline)
	if !ok {
		return fmt.Errorf("%w: %q has no compute pipeline object", ErrPipelineNotFound, p.PipelineKey())
	}
	bindGroup, ok := computeProvider.BindGroup().(*wgpu.BindGroup)
	if !ok {
		return ErrBindGroupNotInitialized
	}

	pass := b.computeFrameEncoder.BeginComputePass(nil)
	pass.SetPipeline(computePipeline)
	pass.SetBindGroup(0, bindGroup, nil)
	pass.DispatchWorkgroups(workGroupCount[0], workGroupCount[1], workGroupCount[2])
	pass.End()
	pass.Release()

	b.stats.Dispatches++
	b.stats.Workgroups += uint64(workGroupCount[0]) * uint64(workGroupCount[1]) * uint64(workGroupCount[2])
	return nil
}

// Barrier validates the buffers and counts the dependency. WebGPU tracks buffer usage
// between passes itself and exposes a single queue, so nothing is recorded.
func (b *wgpuRendererBackendImpl) Barrier(barrier Barrier) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}
	for _, h := range barrier.Buffers {
		if _, _, err := b.buffers.Get(h); err != nil {
			return fmt.Errorf("barrier %q: %w", barrier.Label, err)
		}
	}
	b.stats.Barriers++
	if barrier.OwnershipTransfer() {
		b.stats.OwnershipTransfers++
	}
	return nil
}

func (b *wgpuRendererBackendImpl) EndComputeFrame(frameSlot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.computeFrameEncoder == nil {
		return ErrNoComputeFrame
	}

	commandBuffer, err := b.computeFrameEncoder.Finish(nil)
	b.computeFrameEncoder.Release()
	b.computeFrameEncoder = nil
	if err != nil {
		return err
	}

	index := b.queue.Submit(commandBuffer)
	commandBuffer.Release()

	b.fences.submitted(frameSlot, uint64(index))
	b.stats.Submissions++
	return nil
}

func (b *wgpuRendererBackendImpl) WaitFrame(ctx context.Context, frameSlot int) error {
	return b.fences.wait(ctx, frameSlot)
}

func (b *wgpuRendererBackendImpl) QueueFamilies() (uint32, uint32) {
	return 0, 0
}

func (b *wgpuRendererBackendImpl) Stats() DeviceStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *wgpuRendererBackendImpl) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.computeFrameEncoder != nil {
		b.computeFrameEncoder.Release()
		b.computeFrameEncoder = nil
		err = multierr.Append(err, ErrComputeFrameActive)
	}
	for _, buf := range b.buffers.Drain() {
		buf.Release()
	}
	if b.queue != nil {
		b.queue.Release()
	}
	if b.device != nil {
		b.device.Release()
	}
	if b.adapter != nil {
		b.adapter.Release()
	}
	if b.surface != nil {
		b.surface.Release()
	}
	if b.instance != nil {
		b.instance.Release()
	}
	return err
}

// toWGPULayout converts a backend-independent layout into a WGPU bind group layout descriptor.
func toWGPULayout(d bind_group_provider.LayoutDescriptor) wgpu.BindGroupLayoutDescriptor {
	entries := make([]wgpu.BindGroupLayoutEntry, len(d.Entries))
	for i, e := range d.Entries {
		var bindingType wgpu.BufferBindingType
		switch e.Type {
		case bind_group_provider.BindingTypeUniform:
			bindingType = wgpu.BufferBindingTypeUniform
		case bind_group_provider.BindingTypeStorage:
			bindingType = wgpu.BufferBindingTypeStorage
		case bind_group_provider.BindingTypeReadOnlyStorage:
			bindingType = wgpu.BufferBindingTypeReadOnlyStorage
		}
		entries[i] = wgpu.BindGroupLayoutEntry{
			Binding:    uint32(e.Binding),
			Visibility: toWGPUStages(e.Visibility),
			Buffer: wgpu.BufferBindingLayout{
				Type:           bindingType,
				MinBindingSize: e.MinBindingSize,
			},
		}
	}
	return wgpu.BindGroupLayoutDescriptor{
		Label:   d.Label,
		Entries: entries,
	}
}

func toWGPUStages(s bind_group_provider.ShaderStage) wgpu.ShaderStage {
	var out wgpu.ShaderStage
	if s&bind_group_provider.ShaderStageCompute != 0 {
		out |= wgpu.ShaderStageCompute
	}
	if s&bind_group_provider.ShaderStageFragment != 0 {
		out |= wgpu.ShaderStageFragment
	}
	if s&bind_group_provider.ShaderStageVertex != 0 {
		out |= wgpu.ShaderStageVertex
	}
	return out
}

func toWGPUUsage(u buffer.Usage) wgpu.BufferUsage {
	var out wgpu.BufferUsage
	if u.Has(buffer.UsageUniform) {
		out |= wgpu.BufferUsageUniform
	}
	if u.Has(buffer.UsageStorage) {
		out |= wgpu.BufferUsageStorage
	}
	if u.Has(buffer.UsageCopySrc) {
		out |= wgpu.BufferUsageCopySrc
	}
	if u.Has(buffer.UsageCopyDst) {
		out |= wgpu.BufferUsageCopyDst
	}
	return out
}
