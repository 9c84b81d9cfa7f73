package cluster

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/pipeline"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

// Bindings of the AABB generation bind group.
const (
	aabbBindingUniforms = 0
	aabbBindingAABBs    = 1
)

// Bindings of the light culling bind group.
const (
	cullBindingUniforms = 0
	cullBindingLights   = 1
	cullBindingAABBs    = 2
	cullBindingGlobal   = 3
	cullBindingCells    = 4
	cullBindingIndices  = 5
	cullBindingDropped  = 6
)

// Bindings of the shading bind group, see ShadingLayout.
const (
	ShadingBindingUniforms = 0
	ShadingBindingLights   = 1
	ShadingBindingCells    = 2
	ShadingBindingIndices  = 3
)

// ShadingGroup is the bind group index ClusterLookupSource declares its bindings at.
const ShadingGroup = 1

// aabbPipelineKey and cullPipelineKey include the grid so pipelines of differently sized
// grids can share a renderer.
func aabbPipelineKey(g Grid) string {
	return fmt.Sprintf("cluster_aabb/%s", g)
}

func cullPipelineKey(g Grid) string {
	return fmt.Sprintf("light_cull/%s", g)
}

func newAABBPipeline(g Grid) pipeline.Pipeline {
	s := shader.NewShader(aabbPipelineKey(g), ClusterAABBSource,
		shader.WithBindingSizes(0, map[int]uint64{
			aabbBindingUniforms: clusterUniformsByteSize,
			aabbBindingAABBs:    aabbBufferSize(g),
		}),
		shader.WithKernel(aabbKernel),
	)
	return pipeline.NewPipeline(aabbPipelineKey(g), pipeline.WithComputeShader(s))
}

func newCullPipeline(g Grid) pipeline.Pipeline {
	s := shader.NewShader(cullPipelineKey(g), LightCullSource,
		shader.WithBindingSizes(0, map[int]uint64{
			cullBindingUniforms: clusterUniformsByteSize,
			cullBindingLights:   light.GPULightWords * 4,
			cullBindingAABBs:    aabbBufferSize(g),
			cullBindingGlobal:   globalIndexBufferSize,
			cullBindingCells:    lightCellBufferSize(g),
			cullBindingIndices:  indexListBufferSize(g),
			cullBindingDropped:  droppedBufferSize(g),
		}),
		shader.WithKernel(cullKernel),
	)
	return pipeline.NewPipeline(cullPipelineKey(g), pipeline.WithComputeShader(s))
}

// ShadingLayout returns the layout of the bind group a forward shading pass binds to read
// the cluster light lists, as declared by ClusterLookupSource. Every storage binding is
// read-only.
//
// Returns:
//   - bind_group_provider.LayoutDescriptor: the shading layout
func ShadingLayout() bind_group_provider.LayoutDescriptor {
	visibility := bind_group_provider.ShaderStageFragment | bind_group_provider.ShaderStageCompute
	layouts, _ := shader.ParseBindGroupLayouts(ClusterLookupSource, visibility)
	desc := layouts[ShadingGroup]
	desc.Label = "Cluster Shading"
	sizes := map[int]uint64{
		ShadingBindingUniforms: clusterUniformsByteSize,
		ShadingBindingLights:   light.GPULightWords * 4,
		ShadingBindingCells:    lightCellWords * 4,
	}
	for i, e := range desc.Entries {
		if size, ok := sizes[e.Binding]; ok {
			desc.Entries[i].MinBindingSize = size
		}
	}
	return desc
}

func aabbBufferSize(g Grid) uint64 {
	return uint64(g.NumClusters()) * aabbWords * 4
}

func lightCellBufferSize(g Grid) uint64 {
	return uint64(g.NumClusters()) * lightCellWords * 4
}

func indexListBufferSize(g Grid) uint64 {
	return uint64(g.IndexListCapacity()) * 4
}

func droppedBufferSize(g Grid) uint64 {
	return uint64(g.NumClusters()) * 4
}
