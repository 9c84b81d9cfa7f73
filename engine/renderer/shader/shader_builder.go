package shader

import "github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"

// ShaderBuilderOption is a functional option applied to a shader during construction via NewShader.
type ShaderBuilderOption func(*shader)

// WithEntryPoint sets the WGSL entry point name. Defaults to "main".
//
// Parameters:
//   - entryPoint: the entry point function name
//
// Returns:
//   - ShaderBuilderOption: a function that applies the entry point option to a shader
func WithEntryPoint(entryPoint string) ShaderBuilderOption {
	return func(s *shader) {
		s.entryPoint = entryPoint
	}
}

// WithBindingSizes sets the MinBindingSize of parsed bindings, typically runtime-sized
// arrays whose length is only known on the host.
//
// Parameters:
//   - group: the bind group index
//   - sizes: minimum sizes in bytes, keyed by binding
//
// Returns:
//   - ShaderBuilderOption: a function that applies the sizes to a shader
func WithBindingSizes(group int, sizes map[int]uint64) ShaderBuilderOption {
	return func(s *shader) {
		desc := s.bindGroupLayoutDescriptors[group]
		for i, e := range desc.Entries {
			if size, ok := sizes[e.Binding]; ok {
				desc.Entries[i].MinBindingSize = size
			}
		}
	}
}

// WithBindGroupLayout replaces the layout of one bind group used by the shader.
//
// Parameters:
//   - group: the bind group index
//   - desc: the layout descriptor
//
// Returns:
//   - ShaderBuilderOption: a function that applies the layout option to a shader
func WithBindGroupLayout(group int, desc bind_group_provider.LayoutDescriptor) ShaderBuilderOption {
	return func(s *shader) {
		s.bindGroupLayoutDescriptors[group] = desc
	}
}

// WithKernel attaches the host implementation of the entry point.
//
// Parameters:
//   - k: the host kernel
//
// Returns:
//   - ShaderBuilderOption: a function that applies the kernel option to a shader
func WithKernel(k Kernel) ShaderBuilderOption {
	return func(s *shader) {
		s.kernel = k
	}
}
