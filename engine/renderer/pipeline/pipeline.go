package pipeline

import "github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"

// pipeline is the implementation of the Pipeline interface.
type pipeline struct {
	pipelineKey string

	computeShader shader.Shader

	// computePipeline is the backend pipeline object (e.g. *wgpu.ComputePipeline), set by the
	// Renderer when the pipeline is registered.
	computePipeline any
}

// Pipeline describes a compute pipeline: a cache key, the shader it runs, and the backend
// object created for it on registration.
type Pipeline interface {
	// PipelineKey returns the unique key the pipeline is cached under.
	//
	// Returns:
	//   - string: the pipeline key
	PipelineKey() string

	// Shader returns the compute shader of the pipeline.
	//
	// Returns:
	//   - shader.Shader: the compute shader, or nil if none was set
	Shader() shader.Shader

	// Pipeline returns the backend pipeline object, or nil before registration.
	//
	// Returns:
	//   - any: the backend pipeline
	Pipeline() any

	// SetComputePipeline stores the backend pipeline object.
	//
	// Parameters:
	//   - p: the backend pipeline
	SetComputePipeline(p any)

	// WorkgroupCount returns the number of workgroups needed to cover the given number of
	// invocations in each dimension using the shader's workgroup size.
	//
	// Parameters:
	//   - invocations: total invocations per dimension
	//
	// Returns:
	//   - [3]uint32: workgroups per dimension
	WorkgroupCount(invocations [3]uint32) [3]uint32
}

var _ Pipeline = &pipeline{}

// NewPipeline creates a new compute Pipeline.
//
// Parameters:
//   - pipelineKey: the unique key used to cache the pipeline
//   - opts: functional options
//
// Returns:
//   - Pipeline: the new pipeline
func NewPipeline(pipelineKey string, opts ...PipelineBuilderOption) Pipeline {
	p := &pipeline{
		pipelineKey: pipelineKey,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *pipeline) PipelineKey() string {
	return p.pipelineKey
}

func (p *pipeline) Shader() shader.Shader {
	return p.computeShader
}

func (p *pipeline) Pipeline() any {
	return p.computePipeline
}

func (p *pipeline) SetComputePipeline(cp any) {
	p.computePipeline = cp
}

func (p *pipeline) WorkgroupCount(invocations [3]uint32) [3]uint32 {
	size := [3]uint32{1, 1, 1}
	if p.computeShader != nil {
		size = p.computeShader.WorkgroupSize()
	}
	var out [3]uint32
	for i := range 3 {
		s := max(size[i], 1)
		out[i] = (invocations[i] + s - 1) / s
	}
	return out
}
