package cluster

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

// The layouts parsed from the WGSL declare the bindings the host kernels and providers use.
func TestShaderLayoutsMatchKernelBindings(t *testing.T) {
	g := DefaultGrid()
	aabb := newAABBPipeline(g).Shader()
	cull := newCullPipeline(g).Shader()

	const (
		uniform   = bind_group_provider.BindingTypeUniform
		storage   = bind_group_provider.BindingTypeStorage
		read      = bind_group_provider.BindingTypeReadOnlyStorage
		lightSize = light.GPULightWords * 4
	)
	tests := []struct {
		s       shader.Shader
		binding int
		name    string
		typ     bind_group_provider.BindingType
		size    uint64
	}{
		{aabb, aabbBindingUniforms, "uniforms", uniform, clusterUniformsByteSize},
		{aabb, aabbBindingAABBs, "cluster_aabbs", storage, aabbBufferSize(g)},
		{cull, cullBindingUniforms, "uniforms", uniform, clusterUniformsByteSize},
		{cull, cullBindingLights, "lights", read, lightSize},
		{cull, cullBindingAABBs, "cluster_aabbs", read, aabbBufferSize(g)},
		{cull, cullBindingGlobal, "global_index", storage, globalIndexBufferSize},
		{cull, cullBindingCells, "light_cells", storage, lightCellBufferSize(g)},
		{cull, cullBindingIndices, "light_indices", storage, indexListBufferSize(g)},
		{cull, cullBindingDropped, "dropped_counts", storage, droppedBufferSize(g)},
	}
	for _, tt := range tests {
		if got := tt.s.BindingVarName(0, tt.binding); got != tt.name {
			t.Errorf("%s binding %d declares %q, want %q", tt.s.Key(), tt.binding, got, tt.name)
		}
		e, ok := tt.s.BindGroupLayoutDescriptor(0).Entry(tt.binding)
		if !ok {
			t.Errorf("%s binding %d missing from layout", tt.s.Key(), tt.binding)
			continue
		}
		if e.Type != tt.typ || e.MinBindingSize != tt.size {
			t.Errorf("%s binding %d = %s size %d, want %s size %d", tt.s.Key(), tt.binding, e.Type, e.MinBindingSize, tt.typ, tt.size)
		}
	}
	if n := len(aabb.BindGroupLayoutDescriptor(0).Entries); n != 2 {
		t.Errorf("aabb layout has %d entries, want 2", n)
	}
	if n := len(cull.BindGroupLayoutDescriptor(0).Entries); n != 7 {
		t.Errorf("cull layout has %d entries, want 7", n)
	}

	if aabb.EntryPoint() != "main" || cull.EntryPoint() != "main" {
		t.Errorf("entry points %q, %q", aabb.EntryPoint(), cull.EntryPoint())
	}
	if aabb.WorkgroupSize() != [3]uint32{aabbWorkgroupSize, 1, 1} || aabbWorkgroupSize == 0 {
		t.Errorf("aabb workgroup size %v, host kernel covers %d clusters", aabb.WorkgroupSize(), aabbWorkgroupSize)
	}
}

func TestShadingLayoutMatchesLookupShader(t *testing.T) {
	layout := ShadingLayout()
	_, names := shader.ParseBindGroupLayouts(ClusterLookupSource, bind_group_provider.ShaderStageFragment)

	want := map[int]string{
		ShadingBindingUniforms: "cluster_uniforms",
		ShadingBindingLights:   "cluster_lights",
		ShadingBindingCells:    "cluster_cells",
		ShadingBindingIndices:  "cluster_indices",
	}
	if len(layout.Entries) != len(want) {
		t.Fatalf("%d entries, want %d", len(layout.Entries), len(want))
	}
	for binding, name := range want {
		if got := names[ShadingGroup][binding]; got != name {
			t.Errorf("binding %d declares %q, want %q", binding, got, name)
		}
		e, _ := layout.Entry(binding)
		if binding != ShadingBindingUniforms && e.Type != bind_group_provider.BindingTypeReadOnlyStorage {
			t.Errorf("binding %d is %s, want read-only storage", binding, e.Type)
		}
		if e.Visibility&bind_group_provider.ShaderStageFragment == 0 || e.MinBindingSize == 0 {
			t.Errorf("binding %d = %+v", binding, e)
		}
	}
}
