package bind_group_provider

import "github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"

// BindGroupProviderOption is a functional option used to configure a BindGroupProvider during construction.
type BindGroupProviderOption func(*bindGroupProvider)

// WithBuffer binds an existing buffer, owned elsewhere, at a specific binding index.
//
// Parameters:
//   - binding: the binding index for this buffer
//   - h: the handle of the buffer to bind
//
// Returns:
//   - BindGroupProviderOption: a function that sets the buffer for the specified binding
func WithBuffer(binding int, h buffer.Handle) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		p.buffers[binding] = h
	}
}

// WithBuffers binds multiple existing buffers using a map of binding indices to handles.
//
// Parameters:
//   - buffers: a map of binding indices to buffer handles
//
// Returns:
//   - BindGroupProviderOption: a function that sets multiple buffers for this provider
func WithBuffers(buffers map[int]buffer.Handle) BindGroupProviderOption {
	return func(p *bindGroupProvider) {
		for binding, h := range buffers {
			p.buffers[binding] = h
		}
	}
}
