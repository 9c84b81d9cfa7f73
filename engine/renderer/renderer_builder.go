package renderer

import (
	"github.com/cogentcore/webgpu/wgpu"
	"go.uber.org/zap"
)

// RendererBuilderOption is a functional option applied to a renderer during construction via NewRenderer.
type RendererBuilderOption func(*renderer)

// WithForceSoftwareRenderer forces WGPU to use a CPU/software fallback adapter instead of
// hardware GPU acceleration. This requires a software Vulkan ICD to be installed on the system
// (e.g. SwiftShader or lavapipe). Has no effect on BackendTypeSoftware.
//
// Parameters:
//   - force: true to force the software fallback adapter, false to use hardware (default)
//
// Returns:
//   - RendererBuilderOption: a function that applies the force software renderer option to a renderer
func WithForceSoftwareRenderer(force bool) RendererBuilderOption {
	return func(r *renderer) {
		r.forceFallbackAdapter = force
	}
}

// WithCompatibleSurface makes the WGPU backend pick an adapter that can present to the given
// surface, so the clustering device is the same adapter the shading pass renders on.
//
// Parameters:
//   - desc: the platform surface descriptor (see window.Window.SurfaceDescriptor)
//
// Returns:
//   - RendererBuilderOption: a function that applies the surface option to a renderer
func WithCompatibleSurface(desc *wgpu.SurfaceDescriptor) RendererBuilderOption {
	return func(r *renderer) {
		r.compatibleSurface = desc
	}
}

// WithComputeWorkers sets the worker count of the software backend. Zero or a negative
// count selects runtime.NumCPU().
//
// Parameters:
//   - n: number of workers
//
// Returns:
//   - RendererBuilderOption: a function that applies the worker option to a renderer
func WithComputeWorkers(n int) RendererBuilderOption {
	return func(r *renderer) {
		r.computeWorkers = n
	}
}

// WithLogger sets the logger used by the renderer.
//
// Parameters:
//   - l: the logger
//
// Returns:
//   - RendererBuilderOption: a function that applies the logger option to a renderer
func WithLogger(l *zap.Logger) RendererBuilderOption {
	return func(r *renderer) {
		r.log = l
	}
}
