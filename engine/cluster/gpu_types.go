package cluster

import (
	_ "embed"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// Word offsets of the fields of GPUClusterUniforms inside the uniform buffer.
const (
	uniformWordInvProj      = 0
	uniformWordView         = 16
	uniformWordScreen       = 32
	uniformWordNear         = 34
	uniformWordFar          = 35
	uniformWordScaling      = 36
	uniformWordBias         = 37
	uniformWordSliceCounts  = 38
	uniformWordMaxLights    = 41
	uniformWordLightCount   = 42
	uniformWords            = 44
	aabbWords               = 8
	lightCellWords          = 2
	globalIndexBufferSize   = 16
	clusterUniformsByteSize = uniformWords * 4
)

// clusterHeaderSource holds the WGSL structs and helpers shared by every cluster shader.
// It is prepended to each shader body.
//
//go:embed assets/cluster_common.wgsl
var clusterHeaderSource string

//go:embed assets/cluster_aabb.wgsl
var clusterAABBBody string

//go:embed assets/light_cull.wgsl
var lightCullBody string

//go:embed assets/cluster_lookup.wgsl
var clusterLookupBody string

// ClusterAABBSource is the complete WGSL of the AABB generation shader.
var ClusterAABBSource = clusterHeaderSource + clusterAABBBody

// LightCullSource is the complete WGSL of the light culling shader.
var LightCullSource = clusterHeaderSource + light.GPULightSource + lightCullBody

// ClusterLookupSource is the WGSL snippet a forward shading pass includes to find the
// lights of the fragment's cluster. It declares the bindings of ShadingLayout at
// bind group ShadingGroup.
var ClusterLookupSource = clusterHeaderSource + light.GPULightSource + clusterLookupBody

// GPUClusterUniforms is the GPU-aligned cluster parameter record.
// Matches the WGSL ClusterUniforms struct layout exactly (see assets/cluster_common.wgsl).
// Size: 176 bytes.
type GPUClusterUniforms struct {
	InvProj             mgl32.Mat4 // offset   0: inverse projection
	View                mgl32.Mat4 // offset  64: world to view
	ScreenSize          [2]float32 // offset 128: viewport in pixels
	Near                float32    // offset 136
	Far                 float32    // offset 140
	SliceScaling        float32    // offset 144: Z / log2(far/near)
	SliceBias           float32    // offset 148: -Z * log2(near) / log2(far/near)
	SliceCountX         uint32     // offset 152
	SliceCountY         uint32     // offset 156
	SliceCountZ         uint32     // offset 160
	MaxLightsPerCluster uint32     // offset 164
	LightCount          uint32     // offset 168
	_pad                uint32     // offset 172: padding to 16-byte alignment
}

// Size returns the size of the GPUClusterUniforms struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (176)
func (u *GPUClusterUniforms) Size() int {
	return int(unsafe.Sizeof(*u))
}

// Marshal serializes the uniforms into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 176-byte buffer ready for GPU upload
func (u *GPUClusterUniforms) Marshal() []byte {
	buf := make([]byte, clusterUniformsByteSize)
	off := common.PutFloats(buf, 0, u.InvProj[:]...)
	off = common.PutFloats(buf, off, u.View[:]...)
	off = common.PutFloats(buf, off, u.ScreenSize[0], u.ScreenSize[1], u.Near, u.Far, u.SliceScaling, u.SliceBias)
	common.PutUints(buf, off, u.SliceCountX, u.SliceCountY, u.SliceCountZ, u.MaxLightsPerCluster, u.LightCount, 0)
	return buf
}

// Grid returns the grid the uniforms describe.
func (u *GPUClusterUniforms) Grid() Grid {
	return Grid{
		SliceCountX:         u.SliceCountX,
		SliceCountY:         u.SliceCountY,
		SliceCountZ:         u.SliceCountZ,
		MaxLightsPerCluster: u.MaxLightsPerCluster,
	}
}

// UniformsFromWords decodes a uniform buffer seen as 32-bit words. Host kernels use it to
// read their parameters.
//
// Parameters:
//   - w: the uniform buffer, at least 44 words
//
// Returns:
//   - GPUClusterUniforms: the decoded record
func UniformsFromWords(w []uint32) GPUClusterUniforms {
	f := func(k int) float32 { return math.Float32frombits(w[k]) }
	var u GPUClusterUniforms
	for i := 0; i < 16; i++ {
		u.InvProj[i] = f(uniformWordInvProj + i)
		u.View[i] = f(uniformWordView + i)
	}
	u.ScreenSize = [2]float32{f(uniformWordScreen), f(uniformWordScreen + 1)}
	u.Near = f(uniformWordNear)
	u.Far = f(uniformWordFar)
	u.SliceScaling = f(uniformWordScaling)
	u.SliceBias = f(uniformWordBias)
	u.SliceCountX = w[uniformWordSliceCounts]
	u.SliceCountY = w[uniformWordSliceCounts+1]
	u.SliceCountZ = w[uniformWordSliceCounts+2]
	u.MaxLightsPerCluster = w[uniformWordMaxLights]
	u.LightCount = w[uniformWordLightCount]
	return u
}

// GPUClusterAABB is the view-space bounding box of one cluster.
// Matches the WGSL ClusterAABB struct layout exactly.
// Size: 32 bytes. The w components are unused and zero.
type GPUClusterAABB struct {
	Min [4]float32 // offset  0
	Max [4]float32 // offset 16
}

// Size returns the size of the GPUClusterAABB struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (32)
func (a *GPUClusterAABB) Size() int {
	return int(unsafe.Sizeof(*a))
}

// Bounds returns the min and max corners as vectors.
func (a GPUClusterAABB) Bounds() (mgl32.Vec3, mgl32.Vec3) {
	return mgl32.Vec3{a.Min[0], a.Min[1], a.Min[2]}, mgl32.Vec3{a.Max[0], a.Max[1], a.Max[2]}
}

func putAABB(words []uint32, cluster uint32, minP, maxP mgl32.Vec3) {
	w := words[cluster*aabbWords : (cluster+1)*aabbWords]
	for i := 0; i < 3; i++ {
		w[i] = math.Float32bits(minP[i])
		w[4+i] = math.Float32bits(maxP[i])
	}
	w[3], w[7] = 0, 0
}

func aabbFromWords(words []uint32, cluster uint32) GPUClusterAABB {
	w := words[cluster*aabbWords : (cluster+1)*aabbWords]
	f := func(k int) float32 { return math.Float32frombits(w[k]) }
	return GPUClusterAABB{
		Min: [4]float32{f(0), f(1), f(2), f(3)},
		Max: [4]float32{f(4), f(5), f(6), f(7)},
	}
}

// UnmarshalAABBs decodes an AABB buffer.
//
// Parameters:
//   - data: the buffer contents
//
// Returns:
//   - []GPUClusterAABB: one box per cluster
func UnmarshalAABBs(data []byte) []GPUClusterAABB {
	words := common.BytesToWords(data)
	out := make([]GPUClusterAABB, len(words)/aabbWords)
	for i := range out {
		out[i] = aabbFromWords(words, uint32(i))
	}
	return out
}

// GPULightCell is the per-cluster light list descriptor: Count entries of the light index
// list starting at Offset. Offset is always cluster * MaxLightsPerCluster.
// Size: 8 bytes.
type GPULightCell struct {
	Count  uint32 // offset 0
	Offset uint32 // offset 4
}

// Size returns the size of the GPULightCell struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (8)
func (c *GPULightCell) Size() int {
	return int(unsafe.Sizeof(*c))
}

// UnmarshalLightCells decodes a light cell buffer.
//
// Parameters:
//   - data: the buffer contents
//
// Returns:
//   - []GPULightCell: one cell per cluster
func UnmarshalLightCells(data []byte) []GPULightCell {
	words := common.BytesToWords(data)
	out := make([]GPULightCell, len(words)/lightCellWords)
	for i := range out {
		out[i] = GPULightCell{Count: words[i*2], Offset: words[i*2+1]}
	}
	return out
}
