package cluster

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/go-gl/mathgl/mgl32"
)

func TestDefaultGridClusterCount(t *testing.T) {
	g := DefaultGrid()
	if err := g.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}
	if got := g.NumClusters(); got != 3456 {
		t.Fatalf("NumClusters = %d, want 3456", got)
	}
	if got := g.IndexListCapacity(); got != 3456*150 {
		t.Fatalf("IndexListCapacity = %d, want %d", got, 3456*150)
	}
}

func TestLinearIndexRoundTrip(t *testing.T) {
	g := DefaultGrid()
	seen := make(map[uint32]bool, g.NumClusters())
	for z := uint32(0); z < g.SliceCountZ; z++ {
		for y := uint32(0); y < g.SliceCountY; y++ {
			for x := uint32(0); x < g.SliceCountX; x++ {
				i := g.LinearIndex(x, y, z)
				if i >= g.NumClusters() || seen[i] {
					t.Fatalf("LinearIndex(%d, %d, %d) = %d is out of range or repeated", x, y, z, i)
				}
				seen[i] = true
				if gx, gy, gz := g.Coords(i); gx != x || gy != y || gz != z {
					t.Fatalf("Coords(%d) = (%d, %d, %d), want (%d, %d, %d)", i, gx, gy, gz, x, y, z)
				}
			}
		}
	}
}

func TestGridValidate(t *testing.T) {
	tests := []struct {
		name string
		grid Grid
	}{
		{"zero x", Grid{0, 9, 24, 150}},
		{"zero z", Grid{16, 9, 0, 150}},
		{"zero capacity", Grid{16, 9, 24, 0}},
		{"index list overflow", Grid{1024, 1024, 64, 1024}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.grid.Validate(); !errors.Is(err, ErrInvalidGrid) {
				t.Fatalf("Validate = %v, want ErrInvalidGrid", err)
			}
		})
	}
}

func TestSliceRoundTrip(t *testing.T) {
	const (
		near = 0.1
		far  = 100
		z    = 24
	)
	if got := SliceDepth(near, far, z, 0); got != near {
		t.Fatalf("SliceDepth(0) = %v, want %v", got, near)
	}
	if got := SliceDepth(near, far, z, z); got != far {
		t.Fatalf("SliceDepth(Z) = %v, want %v", got, far)
	}

	for k := uint32(0); k < z; k++ {
		lo := SliceDepth(near, far, z, k)
		hi := SliceDepth(near, far, z, k+1)
		if hi <= lo {
			t.Fatalf("slice %d is empty: [%v, %v)", k, lo, hi)
		}
		if got := SliceIndex(lo, near, far, z); got != k {
			t.Errorf("SliceIndex(SliceDepth(%d) = %v) = %d", k, lo, got)
		}
		mid := float32(math.Sqrt(float64(lo) * float64(hi)))
		if got := SliceIndex(mid, near, far, z); got != k {
			t.Errorf("SliceIndex(%v) = %d, want %d", mid, got, k)
		}
	}

	if got := SliceIndex(0.01, near, far, z); got != 0 {
		t.Errorf("depth before near maps to %d, want 0", got)
	}
	if got := SliceIndex(1000, near, far, z); got != z-1 {
		t.Errorf("depth past far maps to %d, want %d", got, z-1)
	}
}

// shaderSliceDepth and shaderSliceIndex evaluate slice_depth and slice_index of
// cluster_common.wgsl step for step in float32.
func shaderSliceDepth(u GPUClusterUniforms, k uint32) float32 {
	if k == 0 {
		return u.Near
	}
	if k >= u.SliceCountZ {
		return u.Far
	}
	e := float32(k) / float32(u.SliceCountZ)
	return u.Near * float32(math.Pow(float64(u.Far/u.Near), float64(e)))
}

func shaderSliceIndex(u GPUClusterUniforms, depth float32) uint32 {
	if depth <= u.Near {
		return 0
	}
	if depth >= u.Far {
		return u.SliceCountZ - 1
	}
	l := float32(math.Log2(float64(depth)))
	f := float32(math.Floor(float64(l*u.SliceScaling + u.SliceBias)))
	k := uint32(min(max(f, 0), float32(u.SliceCountZ-1)))
	for k > 0 && shaderSliceDepth(u, k) > depth {
		k--
	}
	for k+1 < u.SliceCountZ && shaderSliceDepth(u, k+1) <= depth {
		k++
	}
	return k
}

// wgslFunction returns the source of the named WGSL function.
func wgslFunction(t *testing.T, src, name string) string {
	t.Helper()
	start := strings.Index(src, "fn "+name+"(")
	if start < 0 {
		t.Fatalf("function %s not found", name)
	}
	end := strings.Index(src[start:], "\n}\n")
	if end < 0 {
		t.Fatalf("function %s is not terminated", name)
	}
	return src[start : start+end]
}

// At every slice boundary and one ULP either side, the fragment lookup lands in the
// slice whose planes, as the AABB kernel computes them, contain the depth.
func TestShaderSliceIndexMatchesAABBPlanes(t *testing.T) {
	body := wgslFunction(t, clusterHeaderSource, "slice_index")
	for _, want := range []string{"slice_depth(u, k)", "slice_depth(u, k + 1u)"} {
		if !strings.Contains(body, want) {
			t.Fatalf("slice_index does not settle against %s:\n%s", want, body)
		}
	}

	u := testUniforms(t)
	z := u.SliceCountZ
	inSlice := func(depth float32, k uint32, plane func(uint32) float32) bool {
		return depth >= plane(k) && (k+1 == z || depth < plane(k+1))
	}
	shaderPlane := func(k uint32) float32 { return shaderSliceDepth(u, k) }
	hostPlane := func(k uint32) float32 { return SliceDepth(u.Near, u.Far, z, k) }

	for k := uint32(1); k < z; k++ {
		b := shaderPlane(k)
		hb := hostPlane(k)
		for _, d := range []float32{math.Nextafter32(b, 0), b, math.Nextafter32(b, u.Far)} {
			got := shaderSliceIndex(u, d)
			if !inSlice(d, got, shaderPlane) {
				t.Errorf("depth %v: shader slice %d, planes [%v, %v)", d, got, shaderPlane(got), shaderPlane(got+1))
			}
			if b == hb && got != SliceIndex(d, u.Near, u.Far, z) {
				t.Errorf("depth %v: shader slice %d, host slice %d", d, got, SliceIndex(d, u.Near, u.Far, z))
			}
		}
		for _, d := range []float32{math.Nextafter32(hb, 0), hb, math.Nextafter32(hb, u.Far)} {
			if got := SliceIndex(d, u.Near, u.Far, z); !inSlice(d, got, hostPlane) {
				t.Errorf("depth %v: host slice %d, planes [%v, %v)", d, got, hostPlane(got), hostPlane(got+1))
			}
		}
	}
}

func TestSliceConstantsMatchClosedForm(t *testing.T) {
	const near, far, z = 0.1, 100, 24
	scaling := SliceScaling(near, far, z)
	bias := SliceBias(near, far, z)
	for k := uint32(0); k < z; k++ {
		lo := float64(SliceDepth(near, far, z, k))
		hi := float64(SliceDepth(near, far, z, k+1))
		mid := math.Sqrt(lo * hi)
		got := uint32(math.Floor(math.Log2(mid)*float64(scaling) + float64(bias)))
		if got != k {
			t.Errorf("floor(log2(%v)*scaling+bias) = %d, want %d", mid, got, k)
		}
	}
}

func TestTileCoords(t *testing.T) {
	g := DefaultGrid()
	tests := []struct {
		x, y         float32
		wantX, wantY uint32
	}{
		{0, 0, 0, 0},
		{1599.5, 899.5, 15, 8},
		{100, 150, 1, 1},
		{-5, 2000, 0, 8},
	}
	for _, tt := range tests {
		gx, gy := TileCoords(tt.x, tt.y, 1600, 900, g)
		if gx != tt.wantX || gy != tt.wantY {
			t.Errorf("TileCoords(%v, %v) = (%d, %d), want (%d, %d)", tt.x, tt.y, gx, gy, tt.wantX, tt.wantY)
		}
	}
}

func TestSphereIntersectsAABB(t *testing.T) {
	minPoint := mgl32.Vec3{-1, -1, -1}
	maxPoint := mgl32.Vec3{1, 1, 1}
	tests := []struct {
		name   string
		center mgl32.Vec3
		radius float32
		want   bool
	}{
		{"center inside", mgl32.Vec3{0.5, 0, 0}, 0.1, true},
		{"overlapping face", mgl32.Vec3{1.5, 0, 0}, 0.6, true},
		{"touching face", mgl32.Vec3{2, 0, 0}, 1, true},
		{"separate", mgl32.Vec3{3, 0, 0}, 1, false},
		{"near corner but outside", mgl32.Vec3{2, 2, 2}, 1.5, false},
		{"zero radius inside", mgl32.Vec3{0, 0, 0}, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SphereIntersectsAABB(tt.center, tt.radius, minPoint, maxPoint); got != tt.want {
				t.Fatalf("SphereIntersectsAABB = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestGPUTypeSizes(t *testing.T) {
	if got := (&GPUClusterUniforms{}).Size(); got != clusterUniformsByteSize {
		t.Errorf("GPUClusterUniforms size = %d, want %d", got, clusterUniformsByteSize)
	}
	if got := (&GPUClusterAABB{}).Size(); got != aabbWords*4 {
		t.Errorf("GPUClusterAABB size = %d, want %d", got, aabbWords*4)
	}
	if got := (&GPULightCell{}).Size(); got != lightCellWords*4 {
		t.Errorf("GPULightCell size = %d, want %d", got, lightCellWords*4)
	}
}

func TestUniformsDecodeWhatIsUploaded(t *testing.T) {
	u := GPUClusterUniforms{
		InvProj:             mgl32.Ident4(),
		View:                mgl32.Translate3D(1, 2, 3),
		ScreenSize:          [2]float32{1600, 900},
		Near:                0.1,
		Far:                 100,
		SliceScaling:        SliceScaling(0.1, 100, 24),
		SliceBias:           SliceBias(0.1, 100, 24),
		SliceCountX:         16,
		SliceCountY:         9,
		SliceCountZ:         24,
		MaxLightsPerCluster: 150,
		LightCount:          7,
	}
	if got := UniformsFromWords(common.BytesToWords(u.Marshal())); got != u {
		t.Fatalf("decoded uniforms = %+v, want %+v", got, u)
	}
}
