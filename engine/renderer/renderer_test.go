package renderer

import (
	"errors"
	"runtime"
	"sync/atomic"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/logger"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

var testLayout = bind_group_provider.LayoutDescriptor{
	Label: "test",
	Entries: []bind_group_provider.LayoutEntry{
		{Binding: 0, Type: bind_group_provider.BindingTypeStorage, Visibility: bind_group_provider.ShaderStageCompute, MinBindingSize: 4},
		{Binding: 1, Type: bind_group_provider.BindingTypeStorage, Visibility: bind_group_provider.ShaderStageCompute, MinBindingSize: 64 * 4},
	},
}

func newTestRenderer(t *testing.T) Renderer {
	t.Helper()
	r, err := NewRenderer(BackendTypeSoftware, WithComputeWorkers(4), WithLogger(logger.Nop()))
	if err != nil {
		t.Fatalf("NewRenderer: %v", err)
	}
	t.Cleanup(func() { _ = r.Release() })
	return r
}

func countingPipeline(key string) pipeline.Pipeline {
	kernel := func(b shader.Bindings, id [3]uint32) {
		counter := b.Words(0)
		ids := b.Words(1)
		atomic.AddUint32(&counter[0], 1)
		ids[id[0]] = id[0] + 1
	}
	s := shader.NewShader(key, "@compute @workgroup_size(1) fn main() {}",
		shader.WithBindGroupLayout(0, testLayout),
		shader.WithKernel(kernel),
	)
	return pipeline.NewPipeline(key, pipeline.WithComputeShader(s))
}

func TestSoftwareDispatchRunsEveryWorkgroup(t *testing.T) {
	r := newTestRenderer(t)
	if err := r.RegisterPipelines(countingPipeline("count")); err != nil {
		t.Fatalf("RegisterPipelines: %v", err)
	}

	provider := bind_group_provider.NewBindGroupProvider("count")
	if err := r.InitBindGroup(provider, testLayout, nil, nil); err != nil {
		t.Fatalf("InitBindGroup: %v", err)
	}

	if err := r.BeginComputeFrame(); err != nil {
		t.Fatalf("BeginComputeFrame: %v", err)
	}
	if err := r.DispatchCompute("count", provider, [3]uint32{64, 1, 1}); err != nil {
		t.Fatalf("DispatchCompute: %v", err)
	}
	if err := r.EndComputeFrame(0); err != nil {
		t.Fatalf("EndComputeFrame: %v", err)
	}

	counter, _ := provider.Buffer(0)
	data, err := r.ReadBuffer(counter, 0, 4)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if got := common.Uint(data, 0); got != 64 {
		t.Fatalf("counter = %d, want 64", got)
	}

	ids, _ := provider.Buffer(1)
	data, err = r.ReadBuffer(ids, 0, 64*4)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	for i := 0; i < 64; i++ {
		if got := common.Uint(data, i*4); got != uint32(i+1) {
			t.Fatalf("ids[%d] = %d, want %d", i, got, i+1)
		}
	}

	stats := r.Stats()
	if stats.Submissions != 1 || stats.Dispatches != 1 || stats.Workgroups != 64 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestKernelPanicIsReported(t *testing.T) {
	r := newTestRenderer(t)
	s := shader.NewShader("boom", "@compute @workgroup_size(1) fn main() {}",
		shader.WithBindGroupLayout(0, testLayout),
		shader.WithKernel(func(b shader.Bindings, id [3]uint32) {
			_ = b.Words(1)[1000]
		}),
	)
	if err := r.RegisterPipelines(pipeline.NewPipeline("boom", pipeline.WithComputeShader(s))); err != nil {
		t.Fatalf("RegisterPipelines: %v", err)
	}
	provider := bind_group_provider.NewBindGroupProvider("boom")
	if err := r.InitBindGroup(provider, testLayout, nil, nil); err != nil {
		t.Fatalf("InitBindGroup: %v", err)
	}

	_ = r.BeginComputeFrame()
	_ = r.DispatchCompute("boom", provider, [3]uint32{2, 1, 1})
	if err := r.EndComputeFrame(0); !errors.Is(err, ErrKernelFailed) {
		t.Fatalf("EndComputeFrame err = %v, want ErrKernelFailed", err)
	}
}

func TestDispatchValidation(t *testing.T) {
	r := newTestRenderer(t)
	provider := bind_group_provider.NewBindGroupProvider("v")

	if err := r.DispatchCompute("missing", provider, [3]uint32{1, 1, 1}); !errors.Is(err, ErrPipelineNotFound) {
		t.Fatalf("err = %v, want ErrPipelineNotFound", err)
	}

	if err := r.RegisterPipelines(countingPipeline("count")); err != nil {
		t.Fatalf("RegisterPipelines: %v", err)
	}
	if err := r.DispatchCompute("count", provider, [3]uint32{1, 1, 1}); !errors.Is(err, ErrBindGroupNotInitialized) {
		t.Fatalf("err = %v, want ErrBindGroupNotInitialized", err)
	}

	if err := r.InitBindGroup(provider, testLayout, nil, nil); err != nil {
		t.Fatalf("InitBindGroup: %v", err)
	}
	if err := r.DispatchCompute("count", provider, [3]uint32{1, 1, 1}); !errors.Is(err, ErrNoComputeFrame) {
		t.Fatalf("err = %v, want ErrNoComputeFrame", err)
	}

	_ = r.BeginComputeFrame()
	if err := r.BeginComputeFrame(); !errors.Is(err, ErrComputeFrameActive) {
		t.Fatalf("err = %v, want ErrComputeFrameActive", err)
	}
	_ = r.EndComputeFrame(0)
}

func TestWriteBuffersValidation(t *testing.T) {
	r := newTestRenderer(t)
	provider := bind_group_provider.NewBindGroupProvider("w")
	if err := r.InitBindGroup(provider, testLayout, nil, nil); err != nil {
		t.Fatalf("InitBindGroup: %v", err)
	}

	tests := []struct {
		name  string
		write bind_group_provider.BufferWrite
		want  error
	}{
		{"unknown binding", bind_group_provider.BufferWrite{Provider: provider, Binding: 7, Data: make([]byte, 4)}, ErrUnknownBinding},
		{"misaligned", bind_group_provider.BufferWrite{Provider: provider, Binding: 1, Offset: 2, Data: make([]byte, 4)}, ErrMisalignedWrite},
		{"out of bounds", bind_group_provider.BufferWrite{Provider: provider, Binding: 0, Data: make([]byte, 8)}, ErrOutOfBounds},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.WriteBuffers([]bind_group_provider.BufferWrite{tt.write}); !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
		})
	}

	data := make([]byte, 8)
	common.PutUints(data, 0, 11, 22)
	if err := r.WriteBuffers([]bind_group_provider.BufferWrite{{Provider: provider, Binding: 1, Offset: 8, Data: data}}); err != nil {
		t.Fatalf("WriteBuffers: %v", err)
	}
	h, _ := provider.Buffer(1)
	got, err := r.ReadBuffer(h, 8, 8)
	if err != nil {
		t.Fatalf("ReadBuffer: %v", err)
	}
	if common.Uint(got, 0) != 11 || common.Uint(got, 4) != 22 {
		t.Fatalf("read back %v", got)
	}
}

func TestReleaseBindGroupFreesOwnedBuffersOnly(t *testing.T) {
	r := newTestRenderer(t)
	shared, err := r.CreateBuffer(buffer.Descriptor{Label: "shared", Size: 4, Usage: buffer.UsageStorage | buffer.UsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}

	provider := bind_group_provider.NewBindGroupProvider("p", bind_group_provider.WithBuffer(0, shared))
	if err := r.InitBindGroup(provider, testLayout, nil, nil); err != nil {
		t.Fatalf("InitBindGroup: %v", err)
	}
	owned, _ := provider.Buffer(1)
	if !provider.Owned(1) || provider.Owned(0) {
		t.Fatalf("ownership: binding0=%v binding1=%v", provider.Owned(0), provider.Owned(1))
	}

	if err := r.ReleaseBindGroup(provider); err != nil {
		t.Fatalf("ReleaseBindGroup: %v", err)
	}
	if _, err := r.BufferSize(shared); err != nil {
		t.Fatalf("shared buffer released: %v", err)
	}
	if _, err := r.BufferSize(owned); !errors.Is(err, buffer.ErrStaleHandle) {
		t.Fatalf("owned buffer err = %v, want ErrStaleHandle", err)
	}
}

func TestInitBindGroupRejectsIncompatibleUsage(t *testing.T) {
	r := newTestRenderer(t)
	uniform, err := r.CreateBuffer(buffer.Descriptor{Label: "ubo", Size: 4, Usage: buffer.UsageUniform | buffer.UsageCopyDst})
	if err != nil {
		t.Fatalf("CreateBuffer: %v", err)
	}
	provider := bind_group_provider.NewBindGroupProvider("p", bind_group_provider.WithBuffer(0, uniform))
	if err := r.InitBindGroup(provider, testLayout, nil, nil); !errors.Is(err, ErrIncompatibleUsage) {
		t.Fatalf("err = %v, want ErrIncompatibleUsage", err)
	}
}

func TestBarrierCountsOwnershipTransfers(t *testing.T) {
	r := newTestRenderer(t)
	h, _ := r.CreateBuffer(buffer.Descriptor{Label: "b", Size: 4, Usage: buffer.UsageStorage})

	if err := r.Barrier(Barrier{Buffers: []buffer.Handle{h}}); !errors.Is(err, ErrNoComputeFrame) {
		t.Fatalf("err = %v, want ErrNoComputeFrame", err)
	}

	_ = r.BeginComputeFrame()
	_ = r.Barrier(Barrier{Buffers: []buffer.Handle{h}, Src: StageCompute, Dst: StageFragment})
	_ = r.Barrier(Barrier{Buffers: []buffer.Handle{h}, Src: StageCompute, Dst: StageFragment, SrcQueueFamily: 1})
	_ = r.EndComputeFrame(0)

	stats := r.Stats()
	if stats.Barriers != 2 || stats.OwnershipTransfers != 1 {
		t.Fatalf("stats = %+v", stats)
	}
}

func TestParseBackendType(t *testing.T) {
	for name, want := range map[string]RendererBackendType{"wgpu": BackendTypeWGPU, "cpu": BackendTypeSoftware, "software": BackendTypeSoftware} {
		got, ok := ParseBackendType(name)
		if !ok || got != want {
			t.Errorf("ParseBackendType(%q) = %v, %v", name, got, ok)
		}
	}
	if _, ok := ParseBackendType("vulkan"); ok {
		t.Errorf("ParseBackendType(vulkan) accepted")
	}
}

func TestSoftwareWorkerCountDefaultsToCPUs(t *testing.T) {
	for _, n := range []int{0, -2} {
		r, err := NewRenderer(BackendTypeSoftware, WithComputeWorkers(n), WithLogger(logger.Nop()))
		if err != nil {
			t.Fatalf("NewRenderer: %v", err)
		}
		got := r.(*renderer).backend.(*softwareRendererBackendImpl).computeWorkers
		_ = r.Release()
		if got != runtime.NumCPU() {
			t.Errorf("WithComputeWorkers(%d): %d workers, want %d", n, got, runtime.NumCPU())
		}
	}

	r := newTestRenderer(t)
	if got := r.(*renderer).backend.(*softwareRendererBackendImpl).computeWorkers; got != 4 {
		t.Errorf("WithComputeWorkers(4): %d workers", got)
	}
}
