package cluster

import (
	"fmt"
	"math"

	"github.com/Carmen-Shannon/oxy-cluster/engine/camera"
	"github.com/go-gl/mathgl/mgl32"
)

// ParamsSource is the camera parameter provider. camera.Camera satisfies it.
type ParamsSource interface {
	// State returns every camera value of one revision.
	State() camera.State
}

// Params is the per-frame camera-derived input of the AABB generator and the culling
// stage. It is uploaded to the slot's cluster uniform buffer by SetClusterParams.
type Params struct {
	InverseProjection mgl32.Mat4
	View              mgl32.Mat4
	ScreenWidth       float32
	ScreenHeight      float32
	Near              float32
	Far               float32
	SliceScaling      float32
	SliceBias         float32
	Grid              Grid

	// Revision is the camera revision the params were taken from. Informational.
	Revision uint64
}

// NewParams snapshots a camera into Params for a grid and derives the slice constants.
//
// Parameters:
//   - src: the camera
//   - grid: the cluster grid
//
// Returns:
//   - Params: the validated params
//   - error: ErrInvalidParams if the camera cannot drive the grid
func NewParams(src ParamsSource, grid Grid) (Params, error) {
	st := src.State()
	p := Params{
		InverseProjection: st.InverseProjection,
		View:              st.View,
		ScreenWidth:       float32(st.Width),
		ScreenHeight:      float32(st.Height),
		Near:              st.Near,
		Far:               st.Far,
		Grid:              grid,
		Revision:          st.Revision,
	}
	if err := p.Validate(); err != nil {
		return Params{}, err
	}
	p.SliceScaling = SliceScaling(p.Near, p.Far, grid.SliceCountZ)
	p.SliceBias = SliceBias(p.Near, p.Far, grid.SliceCountZ)
	return p, nil
}

// Validate checks 0 < near < far, a non-empty viewport and a valid grid.
//
// Returns:
//   - error: ErrInvalidParams or ErrInvalidGrid
func (p Params) Validate() error {
	if err := p.Grid.Validate(); err != nil {
		return err
	}
	finite := func(v float32) bool {
		return !math.IsNaN(float64(v)) && !math.IsInf(float64(v), 0)
	}
	if !finite(p.Near) || !finite(p.Far) || p.Near <= 0 || p.Far <= p.Near {
		return fmt.Errorf("%w: near %v far %v", ErrInvalidParams, p.Near, p.Far)
	}
	if p.ScreenWidth <= 0 || p.ScreenHeight <= 0 {
		return fmt.Errorf("%w: viewport %vx%v", ErrInvalidParams, p.ScreenWidth, p.ScreenHeight)
	}
	return nil
}

// Uniforms converts the params into the GPU uniform record.
//
// Parameters:
//   - lightCount: number of records in the light store
//
// Returns:
//   - GPUClusterUniforms: the uniform record
func (p Params) Uniforms(lightCount uint32) GPUClusterUniforms {
	return GPUClusterUniforms{
		InvProj:             p.InverseProjection,
		View:                p.View,
		ScreenSize:          [2]float32{p.ScreenWidth, p.ScreenHeight},
		Near:                p.Near,
		Far:                 p.Far,
		SliceScaling:        p.SliceScaling,
		SliceBias:           p.SliceBias,
		SliceCountX:         p.Grid.SliceCountX,
		SliceCountY:         p.Grid.SliceCountY,
		SliceCountZ:         p.Grid.SliceCountZ,
		MaxLightsPerCluster: p.Grid.MaxLightsPerCluster,
		LightCount:          lightCount,
	}
}

// geometryKey identifies everything the cluster AABBs depend on. The view matrix is not
// part of it: AABBs live in view space.
type geometryKey struct {
	invProj   mgl32.Mat4
	near, far float32
}

func (p Params) geometryKey() geometryKey {
	return geometryKey{invProj: p.InverseProjection, near: p.Near, far: p.Far}
}
