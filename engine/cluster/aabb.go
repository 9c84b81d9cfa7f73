package cluster

import (
	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// aabbWorkgroupSize is the number of clusters one workgroup of the AABB kernel covers.
var aabbWorkgroupSize = shader.ParseWorkgroupSize(ClusterAABBSource)[0]

// ComputeClusterAABB builds the view-space bounding box of cluster (x, y, z).
//
// The four corners of the XY tile are unprojected onto the near plane, the rays from the
// eye through them are intersected with the two depth planes bounding slice z, and the box
// is the component-wise min and max of the eight resulting points. The host kernel and the
// WGSL shader run the same steps.
//
// Parameters:
//   - u: the cluster uniforms
//   - x, y, z: cluster coordinates
//
// Returns:
//   - minPoint, maxPoint: the box corners in view space
func ComputeClusterAABB(u GPUClusterUniforms, x, y, z uint32) (minPoint, maxPoint mgl32.Vec3) {
	tilesX, tilesY := float32(u.SliceCountX), float32(u.SliceCountY)
	u0, v0 := float32(x)/tilesX, float32(y)/tilesY
	u1, v1 := float32(x+1)/tilesX, float32(y+1)/tilesY

	corners := [4]mgl32.Vec3{
		screenToView(u.InvProj, u0, v0),
		screenToView(u.InvProj, u1, v0),
		screenToView(u.InvProj, u0, v1),
		screenToView(u.InvProj, u1, v1),
	}

	zNear := SliceViewZ(u.Near, u.Far, u.SliceCountZ, z)
	zFar := SliceViewZ(u.Near, u.Far, u.SliceCountZ, z+1)

	minPoint = mgl32.Vec3{posInf, posInf, posInf}
	maxPoint = mgl32.Vec3{negInf, negInf, negInf}
	for _, c := range corners {
		for _, p := range [2]mgl32.Vec3{intersectDepthPlane(c, zNear), intersectDepthPlane(c, zFar)} {
			for i := 0; i < 3; i++ {
				minPoint[i] = min(minPoint[i], p[i])
				maxPoint[i] = max(maxPoint[i], p[i])
			}
		}
	}
	return minPoint, maxPoint
}

const (
	posInf float32 = 3.0e38
	negInf float32 = -3.0e38
)

// screenToView unprojects a normalized screen position (origin top-left) on the near plane.
func screenToView(invProj mgl32.Mat4, u, v float32) mgl32.Vec3 {
	return common.TransformPoint(invProj, mgl32.Vec3{u*2 - 1, 1 - v*2, 0})
}

// intersectDepthPlane scales the ray from the eye through p to the plane at view z.
func intersectDepthPlane(p mgl32.Vec3, z float32) mgl32.Vec3 {
	return p.Mul(z / p.Z())
}

// aabbKernel is the host implementation of cluster_aabb.wgsl: one invocation per cluster,
// 64 invocations per workgroup.
func aabbKernel(b shader.Bindings, workgroupID [3]uint32) {
	u := UniformsFromWords(b.Words(aabbBindingUniforms))
	aabbs := b.Words(aabbBindingAABBs)
	g := u.Grid()
	total := g.NumClusters()

	for lid := uint32(0); lid < aabbWorkgroupSize; lid++ {
		index := workgroupID[0]*aabbWorkgroupSize + lid
		if index >= total {
			return
		}
		x, y, z := g.Coords(index)
		minPoint, maxPoint := ComputeClusterAABB(u, x, y, z)
		putAABB(aabbs, index, minPoint, maxPoint)
	}
}
