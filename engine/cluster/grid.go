package cluster

import (
	"fmt"
	"math"
)

// Reference grid dimensions.
const (
	DefaultSliceCountX         = 16
	DefaultSliceCountY         = 9
	DefaultSliceCountZ         = 24
	DefaultMaxLightsPerCluster = 150
)

// Grid is the fixed partition of view space into clusters. X and Y slicing is uniform in
// normalized screen space, Z slicing is logarithmic in view depth. A Grid never changes
// for the lifetime of a Pipeline.
type Grid struct {
	SliceCountX         uint32
	SliceCountY         uint32
	SliceCountZ         uint32
	MaxLightsPerCluster uint32
}

// DefaultGrid returns the 16 x 9 x 24 grid with 150 lights per cluster.
func DefaultGrid() Grid {
	return Grid{
		SliceCountX:         DefaultSliceCountX,
		SliceCountY:         DefaultSliceCountY,
		SliceCountZ:         DefaultSliceCountZ,
		MaxLightsPerCluster: DefaultMaxLightsPerCluster,
	}
}

// Validate checks that every dimension is positive and that the light index list fits
// in 32-bit addressing.
//
// Returns:
//   - error: ErrInvalidGrid describing the first problem found
func (g Grid) Validate() error {
	if g.SliceCountX == 0 || g.SliceCountY == 0 || g.SliceCountZ == 0 {
		return fmt.Errorf("%w: slice counts %dx%dx%d", ErrInvalidGrid, g.SliceCountX, g.SliceCountY, g.SliceCountZ)
	}
	if g.MaxLightsPerCluster == 0 {
		return fmt.Errorf("%w: max lights per cluster is zero", ErrInvalidGrid)
	}
	clusters := uint64(g.SliceCountX) * uint64(g.SliceCountY) * uint64(g.SliceCountZ)
	if clusters*uint64(g.MaxLightsPerCluster) > math.MaxUint32 {
		return fmt.Errorf("%w: %d clusters x %d lights overflows the index list", ErrInvalidGrid, clusters, g.MaxLightsPerCluster)
	}
	return nil
}

// NumClusters returns X*Y*Z.
func (g Grid) NumClusters() uint32 {
	return g.SliceCountX * g.SliceCountY * g.SliceCountZ
}

// IndexListCapacity returns the number of entries of the light index list.
func (g Grid) IndexListCapacity() uint32 {
	return g.MaxLightsPerCluster * g.NumClusters()
}

// LinearIndex is the one cluster linearization shared by AABB generation, culling and
// lookup: x + y*X + z*X*Y. The WGSL header implements the same formula.
//
// Parameters:
//   - x, y, z: cluster coordinates
//
// Returns:
//   - uint32: the linear cluster index
func (g Grid) LinearIndex(x, y, z uint32) uint32 {
	return x + y*g.SliceCountX + z*g.SliceCountX*g.SliceCountY
}

// Coords is the inverse of LinearIndex.
//
// Parameters:
//   - index: a linear cluster index
//
// Returns:
//   - x, y, z: the cluster coordinates
func (g Grid) Coords(index uint32) (x, y, z uint32) {
	plane := g.SliceCountX * g.SliceCountY
	z = index / plane
	rem := index % plane
	return rem % g.SliceCountX, rem / g.SliceCountX, z
}

// RegionOffset returns the first index-list entry reserved for a cluster.
func (g Grid) RegionOffset(cluster uint32) uint32 {
	return cluster * g.MaxLightsPerCluster
}

// String implements fmt.Stringer.
func (g Grid) String() string {
	return fmt.Sprintf("%dx%dx%d/%d", g.SliceCountX, g.SliceCountY, g.SliceCountZ, g.MaxLightsPerCluster)
}
