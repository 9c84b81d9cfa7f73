package cluster

import (
	"math/rand"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

func testUniforms(t *testing.T) GPUClusterUniforms {
	t.Helper()
	params, err := NewParams(testCamera(), DefaultGrid())
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	return params.Uniforms(0)
}

func TestClusterAABBsAreOrdered(t *testing.T) {
	u := testUniforms(t)
	g := u.Grid()
	for i := uint32(0); i < g.NumClusters(); i++ {
		x, y, z := g.Coords(i)
		minPoint, maxPoint := ComputeClusterAABB(u, x, y, z)
		for k := 0; k < 3; k++ {
			if minPoint[k] > maxPoint[k] {
				t.Fatalf("cluster %d: min %v > max %v", i, minPoint, maxPoint)
			}
		}
		wantNear := -SliceDepth(u.Near, u.Far, u.SliceCountZ, z)
		wantFar := -SliceDepth(u.Near, u.Far, u.SliceCountZ, z+1)
		if !mgl32.FloatEqualThreshold(maxPoint.Z(), wantNear, 1e-4*-wantNear) ||
			!mgl32.FloatEqualThreshold(minPoint.Z(), wantFar, 1e-4*-wantFar) {
			t.Fatalf("cluster %d z range [%v, %v], want [%v, %v]", i, minPoint.Z(), maxPoint.Z(), wantFar, wantNear)
		}
	}
}

// Every view-space point inside the frustum lies in the AABB of the cluster the lookup
// assigns it to.
func TestLookupAgreesWithAABBs(t *testing.T) {
	cam := testCamera()
	params, err := NewParams(cam, DefaultGrid())
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}
	u := params.Uniforms(0)
	rng := rand.New(rand.NewSource(7))

	for i := 0; i < 2000; i++ {
		nx := rng.Float32()*1.98 - 0.99
		ny := rng.Float32()*1.98 - 0.99
		depth := params.Near + rng.Float32()*(params.Far-params.Near)*0.999

		onNear := common.TransformPoint(params.InverseProjection, mgl32.Vec3{nx, ny, 0})
		p := onNear.Mul(-depth / onNear.Z())

		fragX := (nx + 1) / 2 * params.ScreenWidth
		fragY := (1 - ny) / 2 * params.ScreenHeight
		cluster := ClusterIndex(params, fragX, fragY, depth)

		x, y, z := params.Grid.Coords(cluster)
		minPoint, maxPoint := ComputeClusterAABB(u, x, y, z)
		eps := 1e-3 * depth
		for k := 0; k < 3; k++ {
			if p[k] < minPoint[k]-eps || p[k] > maxPoint[k]+eps {
				t.Fatalf("point %v (depth %v) assigned to cluster (%d, %d, %d) with AABB [%v, %v]", p, depth, x, y, z, minPoint, maxPoint)
			}
		}
	}
}

func TestParamsValidation(t *testing.T) {
	g := DefaultGrid()
	base, err := NewParams(testCamera(), g)
	if err != nil {
		t.Fatalf("NewParams: %v", err)
	}

	tests := []struct {
		name   string
		mutate func(*Params)
	}{
		{"zero near", func(p *Params) { p.Near = 0 }},
		{"far before near", func(p *Params) { p.Far = p.Near / 2 }},
		{"empty viewport", func(p *Params) { p.ScreenWidth = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := base
			tt.mutate(&p)
			if err := p.Validate(); err == nil {
				t.Fatalf("Validate accepted %+v", p)
			}
		})
	}
}
