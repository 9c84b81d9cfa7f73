package cluster

import (
	"context"
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/common"
	"github.com/Carmen-Shannon/oxy-cluster/engine/light"
	"github.com/go-gl/mathgl/mgl32"
)

// ClusterIndex returns the cluster a fragment falls in: its XY tile from the framebuffer
// position and its Z slice from the positive view depth. It is the host counterpart of
// cluster_index_for_fragment in ClusterLookupSource.
//
// Parameters:
//   - p: the params of the frame
//   - fragX, fragY: framebuffer position in pixels, origin top-left
//   - viewDepth: positive view depth
//
// Returns:
//   - uint32: the linear cluster index
func ClusterIndex(p Params, fragX, fragY, viewDepth float32) uint32 {
	x, y := TileCoords(fragX, fragY, p.ScreenWidth, p.ScreenHeight, p.Grid)
	z := SliceIndex(viewDepth, p.Near, p.Far, p.Grid.SliceCountZ)
	return p.Grid.LinearIndex(x, y, z)
}

// Snapshot is a host copy of the light lists of one frame slot.
type Snapshot struct {
	Grid        Grid
	Cells       []GPULightCell
	Indices     []uint32
	GlobalIndex uint32
	Dropped     []uint32
}

// Lights returns the light indices assigned to a cluster.
//
// Parameters:
//   - cluster: the linear cluster index
//
// Returns:
//   - []uint32: the light indices, in list order
func (s *Snapshot) Lights(cluster uint32) []uint32 {
	cell := s.Cells[cluster]
	return s.Indices[cell.Offset : cell.Offset+cell.Count]
}

// TotalCount returns the sum of every cell count.
func (s *Snapshot) TotalCount() uint32 {
	var total uint32
	for _, c := range s.Cells {
		total += c.Count
	}
	return total
}

// LightsAt returns the lights of the cluster a fragment falls in.
//
// Parameters:
//   - p: the params the snapshot was culled with
//   - fragX, fragY: framebuffer position in pixels
//   - viewDepth: positive view depth
//
// Returns:
//   - []uint32: the light indices
func (s *Snapshot) LightsAt(p Params, fragX, fragY, viewDepth float32) []uint32 {
	return s.Lights(ClusterIndex(p, fragX, fragY, viewDepth))
}

func (p *pipelineImpl) Snapshot(ctx context.Context, slot int) (*Snapshot, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.released {
		return nil, ErrReleased
	}

	s := p.slot(slot)
	if p.current == slot {
		return nil, fmt.Errorf("cluster: snapshot of slot %d while it is being recorded: %w", slot, ErrFrameInProgress)
	}
	if err := p.r.WaitFrame(ctx, slot); err != nil {
		return nil, p.fail(StageReadback, slot, err)
	}

	read := func(v BufferView) ([]byte, error) {
		data, err := v.Read()
		if err != nil {
			return nil, p.fail(StageReadback, slot, err)
		}
		return data, nil
	}

	cells, err := read(p.view(s.cells))
	if err != nil {
		return nil, err
	}
	indices, err := read(p.view(s.indices))
	if err != nil {
		return nil, err
	}
	global, err := read(p.view(s.global))
	if err != nil {
		return nil, err
	}
	dropped, err := read(p.view(s.dropped))
	if err != nil {
		return nil, err
	}

	return &Snapshot{
		Grid:        p.grid,
		Cells:       UnmarshalLightCells(cells),
		Indices:     common.BytesToWords(indices),
		GlobalIndex: common.Uint(global, 0),
		Dropped:     common.BytesToWords(dropped),
	}, nil
}

// BruteForce assigns every light to every cluster whose AABB it intersects, without a
// capacity limit. It is the reference the culling pass is checked against.
//
// Parameters:
//   - g: the grid
//   - aabbs: one box per cluster
//   - view: the world to view matrix
//   - lights: the light records, in store order
//
// Returns:
//   - [][]uint32: per cluster, the intersecting light indices in ascending order
func BruteForce(g Grid, aabbs []GPUClusterAABB, view mgl32.Mat4, lights []light.GPULight) [][]uint32 {
	out := make([][]uint32, g.NumClusters())
	centers := make([]mgl32.Vec3, len(lights))
	for i, l := range lights {
		centers[i] = lightViewCenter(view, l)
	}
	for c := range out {
		minPoint, maxPoint := aabbs[c].Bounds()
		for i, l := range lights {
			if SphereIntersectsAABB(centers[i], l.Radius, minPoint, maxPoint) {
				out[c] = append(out[c], uint32(i))
			}
		}
	}
	return out
}
