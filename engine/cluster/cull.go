package cluster

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/shader"
	"github.com/go-gl/mathgl/mgl32"
)

// SphereIntersectsAABB reports whether a sphere touches a box: the squared distance from
// the center to the closest point of the box is at most radius squared. Touching counts.
//
// Parameters:
//   - center: sphere center
//   - radius: sphere radius
//   - minPoint, maxPoint: box corners
//
// Returns:
//   - bool: true if they intersect
func SphereIntersectsAABB(center mgl32.Vec3, radius float32, minPoint, maxPoint mgl32.Vec3) bool {
	var dist2 float32
	for i := 0; i < 3; i++ {
		closest := min(max(center[i], minPoint[i]), maxPoint[i])
		d := center[i] - closest
		dist2 += d * d
	}
	return dist2 <= radius*radius
}

// lightViewCenter transforms a light position to view space.
func lightViewCenter(view mgl32.Mat4, l light.GPULight) mgl32.Vec3 {
	return view.Mul4x1(mgl32.Vec4{l.Position[0], l.Position[1], l.Position[2], 1}).Vec3()
}

// cullKernel is the host implementation of light_cull.wgsl: one workgroup per cluster.
//
// Lights are tested in store order, so on overflow a cluster keeps the first
// MaxLightsPerCluster intersecting lights. Each workgroup owns its cell, its index list
// region and its dropped counter; only the global index counter is shared.
func cullKernel(b shader.Bindings, workgroupID [3]uint32) {
	u := UniformsFromWords(b.Words(cullBindingUniforms))
	g := u.Grid()
	cluster := g.LinearIndex(workgroupID[0], workgroupID[1], workgroupID[2])
	region := g.RegionOffset(cluster)

	lights := b.Words(cullBindingLights)
	indices := b.Words(cullBindingIndices)
	minPoint, maxPoint := aabbFromWords(b.Words(cullBindingAABBs), cluster).Bounds()

	var total uint32
	for i := uint32(0); i < u.LightCount; i++ {
		l := light.GPULightFromWords(lights, int(i))
		if !SphereIntersectsAABB(lightViewCenter(u.View, l), l.Radius, minPoint, maxPoint) {
			continue
		}
		if total < g.MaxLightsPerCluster {
			indices[region+total] = i
		}
		total++
	}

	count := min(total, g.MaxLightsPerCluster)
	cells := b.Words(cullBindingCells)
	cells[cluster*lightCellWords] = count
	cells[cluster*lightCellWords+1] = region

	atomic.AddUint32(&b.Words(cullBindingGlobal)[0], count)
	b.Words(cullBindingDropped)[cluster] = total - count
}
