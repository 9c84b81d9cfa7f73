package renderer

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Carmen-Shannon/automation/tools/worker"
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"go.uber.org/multierr"
)

// softwareBuffer is device memory on the software backend.
type softwareBuffer struct {
	words []uint32
}

// softwareBindGroup resolves binding indices to buffer storage. It satisfies shader.Bindings.
type softwareBindGroup struct {
	label string
	words map[int][]uint32
}

func (g *softwareBindGroup) Words(binding int) []uint32 {
	return g.words[binding]
}

// softwareBindGroupLayout is the layout object stored on providers by the software backend.
type softwareBindGroupLayout struct {
	desc bind_group_provider.LayoutDescriptor
}

// softwarePipeline is the pipeline object stored on pipelines by the software backend.
type softwarePipeline struct {
	key    string
	kernel shader.Kernel
}

// softwareCommand is one recorded command. Barriers carry no work: dispatches execute in
// recording order and each completes before the next one starts.
type softwareCommand struct {
	pipeline  *softwarePipeline
	bindGroup *softwareBindGroup
	groups    [3]uint32
}

type softwareRendererBackendImpl struct {
	mu *sync.Mutex

	buffers *buffer.Arena[*softwareBuffer]

	// computePool runs workgroups of a dispatch in parallel.
	computePool    worker.DynamicWorkerPool
	computeWorkers int

	recording bool
	commands  []softwareCommand

	stats DeviceStats
}

var _ RendererBackend = &softwareRendererBackendImpl{}

func newSoftwareRendererBackend(workers int) *softwareRendererBackendImpl {
	workers = max(workers, 1)
	return &softwareRendererBackendImpl{
		mu:             &sync.Mutex{},
		buffers:        buffer.NewArena[*softwareBuffer](),
		computePool:    worker.NewDynamicWorkerPool(workers, 256, 1*time.Second),
		computeWorkers: workers,
	}
}

func (b *softwareRendererBackendImpl) RegisterComputePipeline(p pipeline.Pipeline) error {
	s := p.Shader()
	if s == nil {
		return errors.New("compute shader must be set to create a compute pipeline")
	}
	if s.Kernel() == nil {
		return fmt.Errorf("shader %q has no host kernel", s.Key())
	}
	p.SetComputePipeline(&softwarePipeline{key: p.PipelineKey(), kernel: s.Kernel()})
	return nil
}

func (b *softwareRendererBackendImpl) CreateBuffer(desc buffer.Descriptor) (buffer.Handle, error) {
	return b.buffers.Insert(&softwareBuffer{words: make([]uint32, desc.Size/4)}, desc), nil
}

func (b *softwareRendererBackendImpl) ReleaseBuffer(h buffer.Handle) error {
	_, err := b.buffers.Remove(h)
	return err
}

func (b *softwareRendererBackendImpl) BufferDescriptor(h buffer.Handle) (buffer.Descriptor, error) {
	_, desc, err := b.buffers.Get(h)
	return desc, err
}

func (b *softwareRendererBackendImpl) CreateBindGroup(provider bind_group_provider.BindGroupProvider, descriptor bind_group_provider.LayoutDescriptor) error {
	group := &softwareBindGroup{
		label: provider.Label(),
		words: make(map[int][]uint32, len(descriptor.Entries)),
	}
	for _, entry := range descriptor.Entries {
		h, ok := provider.Buffer(entry.Binding)
		if !ok {
			return fmt.Errorf("binding %d: %w", entry.Binding, ErrUnknownBinding)
		}
		buf, _, err := b.buffers.Get(h)
		if err != nil {
			return fmt.Errorf("binding %d: %w", entry.Binding, err)
		}
		group.words[entry.Binding] = buf.words
	}

	provider.SetBindGroupLayout(&softwareBindGroupLayout{desc: descriptor}, descriptor)
	provider.SetBindGroup(group)
	return nil
}

func (b *softwareRendererBackendImpl) ReleaseBindGroupObjects(bindGroup, bindGroupLayout any) {}

func (b *softwareRendererBackendImpl) WriteBuffer(h buffer.Handle, offset uint64, data []byte) error {
	buf, _, err := b.buffers.Get(h)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	copy(buf.words[offset/4:], common.BytesToWords(data))
	b.stats.BytesWritten += uint64(len(data))
	return nil
}

func (b *softwareRendererBackendImpl) ReadBuffer(h buffer.Handle, offset, size uint64) ([]byte, error) {
	buf, _, err := b.buffers.Get(h)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.stats.BytesRead += size
	return common.WordsToBytes(buf.words[offset/4 : (offset+size)/4]), nil
}

func (b *softwareRendererBackendImpl) BeginComputeFrame() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.recording {
		return ErrComputeFrameActive
	}
	b.recording = true
	b.commands = b.commands[:0]
	return nil
}

func (b *softwareRendererBackendImpl) DispatchCompute(p pipeline.Pipeline, computeProvider bind_group_provider.BindGroupProvider, workGroupCount [3]uint32) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return ErrNoComputeFrame
	}
	sp, ok := p.Pipeline().(*softwarePipeline)
	if !ok {
		return fmt.Errorf("%w: %q has no compute pipeline object", ErrPipelineNotFound, p.PipelineKey())
	}
	group, ok := computeProvider.BindGroup().(*softwareBindGroup)
	if !ok {
		return ErrBindGroupNotInitialized
	}

	b.commands = append(b.commands, softwareCommand{pipeline: sp, bindGroup: group, groups: workGroupCount})
	return nil
}

func (b *softwareRendererBackendImpl) Barrier(barrier Barrier) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
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

// EndComputeFrame executes the recorded stream. Submission completes before it returns, so
// the frame slot fence is signaled immediately.
func (b *softwareRendererBackendImpl) EndComputeFrame(frameSlot int) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.recording {
		return ErrNoComputeFrame
	}
	b.recording = false

	var err error
	for _, cmd := range b.commands {
		err = multierr.Append(err, b.execute(cmd))
		b.stats.Dispatches++
		b.stats.Workgroups += uint64(cmd.groups[0]) * uint64(cmd.groups[1]) * uint64(cmd.groups[2])
	}
	b.commands = b.commands[:0]
	b.stats.Submissions++
	return err
}

// execute runs every workgroup of one dispatch on the compute pool and waits for all of them.
func (b *softwareRendererBackendImpl) execute(cmd softwareCommand) error {
	total := cmd.groups[0] * cmd.groups[1] * cmd.groups[2]
	if total == 0 {
		return nil
	}

	chunks := min(uint32(b.computeWorkers), total)
	per := (total + chunks - 1) / chunks

	var (
		wg      sync.WaitGroup
		errMu   sync.Mutex
		failure error
	)
	for i := uint32(0); i < chunks; i++ {
		start := i * per
		end := min(start+per, total)
		if start >= end {
			break
		}

		wg.Add(1)
		id := int(i)
		b.computePool.SubmitTask(worker.Task{
			ID: id,
			Do: func() (res any, err error) {
				defer wg.Done()
				defer func() {
					if r := recover(); r != nil {
						errMu.Lock()
						failure = multierr.Append(failure, fmt.Errorf("%w: %s: %v", ErrKernelFailed, cmd.pipeline.key, r))
						errMu.Unlock()
					}
				}()

				for flat := start; flat < end; flat++ {
					x := flat % cmd.groups[0]
					y := (flat / cmd.groups[0]) % cmd.groups[1]
					z := flat / (cmd.groups[0] * cmd.groups[1])
					cmd.pipeline.kernel(cmd.bindGroup, [3]uint32{x, y, z})
				}
				return nil, nil
			},
		})
	}
	wg.Wait()
	return failure
}

func (b *softwareRendererBackendImpl) WaitFrame(ctx context.Context, frameSlot int) error {
	return nil
}

func (b *softwareRendererBackendImpl) QueueFamilies() (uint32, uint32) {
	return 0, 0
}

func (b *softwareRendererBackendImpl) Stats() DeviceStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.stats
}

func (b *softwareRendererBackendImpl) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	var err error
	if b.recording {
		b.recording = false
		b.commands = nil
		err = ErrComputeFrameActive
	}
	b.buffers.Drain()
	return err
}
