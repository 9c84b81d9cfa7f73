package pipeline

import (
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
)

func TestWorkgroupCount(t *testing.T) {
	s := shader.NewShader("k", "@compute @workgroup_size(64) fn main() {}")
	p := NewPipeline("k", WithComputeShader(s))

	tests := []struct {
		in   [3]uint32
		want [3]uint32
	}{
		{[3]uint32{3456, 1, 1}, [3]uint32{54, 1, 1}},
		{[3]uint32{3457, 1, 1}, [3]uint32{55, 1, 1}},
		{[3]uint32{1, 1, 1}, [3]uint32{1, 1, 1}},
		{[3]uint32{0, 1, 1}, [3]uint32{0, 1, 1}},
	}
	for _, tt := range tests {
		if got := p.WorkgroupCount(tt.in); got != tt.want {
			t.Errorf("WorkgroupCount(%v) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestWorkgroupCountWithoutShader(t *testing.T) {
	p := NewPipeline("bare")
	if got := p.WorkgroupCount([3]uint32{16, 9, 24}); got != [3]uint32{16, 9, 24} {
		t.Fatalf("WorkgroupCount = %v", got)
	}
}
