package shader

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
)

const testSource = `
struct Params {
    count: u32,
};

// @group(0) @binding(9) var<uniform> commented_out: Params;
@group(0) @binding(0) var<uniform> params: Params;
@group(0) @binding(2) var<storage, read_write> counter: array<atomic<u32>>;
@group(0) @binding(1) var<storage, read> values: array<f32>;
@group(1) @binding(0) var<storage> colors: array<vec4<f32>>;
@group(1) @binding(1) var tex: texture_2d<f32>;

/* @compute @workgroup_size(1) fn decoy() {} */
@compute @workgroup_size(8, 4)
fn cull(@builtin(global_invocation_id) id: vec3<u32>) {
}
`

func TestParseBindGroupLayouts(t *testing.T) {
	layouts, names := ParseBindGroupLayouts(testSource, bind_group_provider.ShaderStageCompute)
	if len(layouts) != 2 {
		t.Fatalf("%d groups, want 2", len(layouts))
	}

	tests := []struct {
		group, binding int
		name           string
		typ            bind_group_provider.BindingType
		size           uint64
	}{
		{0, 0, "params", bind_group_provider.BindingTypeUniform, 0},
		{0, 1, "values", bind_group_provider.BindingTypeReadOnlyStorage, 4},
		{0, 2, "counter", bind_group_provider.BindingTypeStorage, 4},
		{1, 0, "colors", bind_group_provider.BindingTypeReadOnlyStorage, 16},
	}
	for _, tt := range tests {
		e, ok := layouts[tt.group].Entry(tt.binding)
		if !ok {
			t.Errorf("group %d binding %d missing", tt.group, tt.binding)
			continue
		}
		if e.Type != tt.typ || e.MinBindingSize != tt.size || e.Visibility != bind_group_provider.ShaderStageCompute {
			t.Errorf("group %d binding %d = %+v, want type %s size %d", tt.group, tt.binding, e, tt.typ, tt.size)
		}
		if got := names[tt.group][tt.binding]; got != tt.name {
			t.Errorf("group %d binding %d name %q, want %q", tt.group, tt.binding, got, tt.name)
		}
	}

	for i, e := range layouts[0].Entries {
		if e.Binding != i {
			t.Fatalf("group 0 entries out of order: %+v", layouts[0].Entries)
		}
	}
	if len(layouts[1].Entries) != 1 {
		t.Errorf("texture binding was not skipped: %+v", layouts[1].Entries)
	}
	if _, ok := layouts[0].Entry(9); ok {
		t.Error("commented declaration was parsed")
	}
}

func TestNewShaderReflectsSource(t *testing.T) {
	s := NewShader("cull", testSource, WithBindingSizes(0, map[int]uint64{0: 16, 2: 128}))

	if s.EntryPoint() != "cull" {
		t.Errorf("EntryPoint = %q, want cull", s.EntryPoint())
	}
	if s.WorkgroupSize() != [3]uint32{8, 4, 1} {
		t.Errorf("WorkgroupSize = %v, want [8 4 1]", s.WorkgroupSize())
	}
	layout := s.BindGroupLayoutDescriptor(0)
	if layout.Label != "cull [0]" {
		t.Errorf("Label = %q", layout.Label)
	}
	for binding, want := range map[int]uint64{0: 16, 1: 4, 2: 128} {
		if e, _ := layout.Entry(binding); e.MinBindingSize != want {
			t.Errorf("binding %d MinBindingSize = %d, want %d", binding, e.MinBindingSize, want)
		}
	}
	if s.BindingVarName(1, 0) != "colors" || s.BindingVarName(3, 3) != "" {
		t.Errorf("BindingVarName = %q, %q", s.BindingVarName(1, 0), s.BindingVarName(3, 3))
	}
}

func TestParseWorkgroupSizeDefaults(t *testing.T) {
	if got := ParseWorkgroupSize("@compute @workgroup_size(64) fn main() {}"); got != [3]uint32{64, 1, 1} {
		t.Errorf("ParseWorkgroupSize = %v", got)
	}
	if got := ParseWorkgroupSize("fn helper() {}"); got != [3]uint32{1, 1, 1} {
		t.Errorf("ParseWorkgroupSize without annotation = %v", got)
	}
}
