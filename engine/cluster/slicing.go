package cluster

import "math"

// SliceScaling returns Z / log2(far/near).
func SliceScaling(near, far float32, sliceCountZ uint32) float32 {
	return float32(float64(sliceCountZ) / math.Log2(float64(far)/float64(near)))
}

// SliceBias returns -Z * log2(near) / log2(far/near).
//
// The slice of a depth d is floor(log2(d)*scaling + bias), which expands to
// Z * (log2(d) - log2(near)) / log2(far/near).
func SliceBias(near, far float32, sliceCountZ uint32) float32 {
	return float32(-float64(sliceCountZ) * math.Log2(float64(near)) / math.Log2(float64(far)/float64(near)))
}

// SliceDepth returns the positive view depth of the near boundary of slice k:
// near * (far/near)^(k/Z). SliceDepth(0) is near and SliceDepth(Z) is far.
//
// Parameters:
//   - near, far: the clip planes
//   - sliceCountZ: number of depth slices
//   - k: slice boundary, 0..Z
//
// Returns:
//   - float32: the boundary depth
func SliceDepth(near, far float32, sliceCountZ, k uint32) float32 {
	if k == 0 {
		return near
	}
	if k == sliceCountZ {
		return far
	}
	return float32(float64(near) * math.Pow(float64(far)/float64(near), float64(k)/float64(sliceCountZ)))
}

// SliceViewZ returns the view-space z coordinate of slice boundary k. View space looks
// down -Z, so this is -SliceDepth.
func SliceViewZ(near, far float32, sliceCountZ, k uint32) float32 {
	return -SliceDepth(near, far, sliceCountZ, k)
}

// SliceIndex maps a positive view depth to its slice, clamped to [0, Z-1].
//
// The closed form floor(log2(depth)*scaling + bias) can land one slice off right at a
// boundary because of rounding; the result is corrected against SliceDepth so the two
// always agree: SliceDepth(k) <= depth < SliceDepth(k+1).
//
// Parameters:
//   - depth: positive view depth
//   - near, far: the clip planes
//   - sliceCountZ: number of depth slices
//
// Returns:
//   - uint32: the slice index
func SliceIndex(depth, near, far float32, sliceCountZ uint32) uint32 {
	if depth <= near {
		return 0
	}
	if depth >= far {
		return sliceCountZ - 1
	}

	scaling := float64(sliceCountZ) / math.Log2(float64(far)/float64(near))
	bias := -float64(sliceCountZ) * math.Log2(float64(near)) / math.Log2(float64(far)/float64(near))
	k := int64(math.Floor(math.Log2(float64(depth))*scaling + bias))
	k = min(max(k, 0), int64(sliceCountZ)-1)

	idx := uint32(k)
	for idx > 0 && SliceDepth(near, far, sliceCountZ, idx) > depth {
		idx--
	}
	for idx+1 < sliceCountZ && SliceDepth(near, far, sliceCountZ, idx+1) <= depth {
		idx++
	}
	return idx
}

// TileCoords maps a framebuffer position to its XY tile. The origin is the top-left
// corner, matching the fragment position builtin. Positions outside the viewport clamp
// to the border tiles.
//
// Parameters:
//   - screenX, screenY: framebuffer position in pixels
//   - width, height: viewport size in pixels
//   - g: the cluster grid
//
// Returns:
//   - x, y: the tile coordinates
func TileCoords(screenX, screenY, width, height float32, g Grid) (x, y uint32) {
	tile := func(p, size float32, count uint32) uint32 {
		if size <= 0 || p <= 0 {
			return 0
		}
		t := int64(math.Floor(float64(p) / float64(size) * float64(count)))
		return uint32(min(max(t, 0), int64(count)-1))
	}
	return tile(screenX, width, g.SliceCountX), tile(screenY, height, g.SliceCountY)
}
