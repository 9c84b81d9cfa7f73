package bind_group_provider

import (
	"sort"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/buffer"
)

// bindGroupProvider is the unexported implementation of BindGroupProvider.
type bindGroupProvider struct {
	// label is a debug label added for convenience.
	label string

	// The following fields are backend objects populated by the Renderer during InitBindGroup.

	// bindGroup is the backend bind group (e.g. *wgpu.BindGroup), or nil if not initialized.
	bindGroup any
	// bindGroupLayout is the backend bind group layout, or nil if not initialized.
	bindGroupLayout any
	// layout is the backend-independent descriptor the bind group was created from.
	layout LayoutDescriptor

	// buffers holds the buffer handles bound by this provider, keyed by binding index.
	buffers map[int]buffer.Handle
	// owned marks bindings whose buffers were created by InitBindGroup on behalf of this provider.
	// Everything else is a non-owning reference to a buffer owned by another component.
	owned map[int]bool
}

// BindGroupProvider describes the buffers a compute or shading stage binds in one bind group.
//
// Components that own device buffers (the cluster pipeline, the light store) pre-set their
// handles on a provider; the Renderer then creates the backend bind group from a
// LayoutDescriptor. Bindings that have no handle yet are created by the Renderer and become
// owned by the provider.
//
// Usage pattern:
//  1. Owner creates buffers via Renderer.CreateBuffer and a provider via NewBindGroupProvider
//  2. Owner sets handles with SetBuffer (or WithBuffer)
//  3. Renderer.InitBindGroup(provider, layout, ...) creates the backend bind group
//  4. Renderer.WriteBuffers / DispatchCompute use the provider by binding index
type BindGroupProvider interface {
	// Label returns the debug label for this provider.
	//
	// Returns:
	//   - string: the debug label
	Label() string

	// BindGroup returns the backend bind group object, or nil if not initialized.
	//
	// Returns:
	//   - any: the backend bind group
	BindGroup() any

	// BindGroupLayout returns the backend bind group layout object, or nil if not initialized.
	//
	// Returns:
	//   - any: the backend bind group layout
	BindGroupLayout() any

	// Layout returns the descriptor used to initialize the bind group.
	//
	// Returns:
	//   - LayoutDescriptor: the layout descriptor, empty before initialization
	Layout() LayoutDescriptor

	// Buffer returns the handle bound at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - buffer.Handle: the bound handle
	//   - bool: false if nothing is bound at binding
	Buffer(binding int) (buffer.Handle, bool)

	// Buffers returns a copy of all bound handles keyed by binding index.
	//
	// Returns:
	//   - map[int]buffer.Handle: the bound handles
	Buffers() map[int]buffer.Handle

	// Bindings returns the bound binding indices in ascending order.
	//
	// Returns:
	//   - []int: sorted binding indices
	Bindings() []int

	// Owned reports whether the buffer at binding was created for this provider.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - bool: true if the provider owns the buffer
	Owned(binding int) bool

	// SetBindGroup stores the backend bind group object.
	//
	// Parameters:
	//   - bg: the backend bind group
	SetBindGroup(bg any)

	// SetBindGroupLayout stores the backend bind group layout and the descriptor it came from.
	//
	// Parameters:
	//   - bgl: the backend bind group layout
	//   - layout: the backend-independent descriptor
	SetBindGroupLayout(bgl any, layout LayoutDescriptor)

	// SetBuffer binds a buffer owned by another component at a binding index.
	//
	// Parameters:
	//   - binding: the binding index
	//   - h: the buffer handle
	SetBuffer(binding int, h buffer.Handle)

	// SetOwnedBuffer binds a buffer created on behalf of this provider.
	//
	// Parameters:
	//   - binding: the binding index
	//   - h: the buffer handle
	SetOwnedBuffer(binding int, h buffer.Handle)

	// Reset drops the backend objects and returns the handles of owned buffers so the
	// Renderer can release them. Non-owned handles are forgotten but not released.
	//
	// Returns:
	//   - bindGroup: the backend bind group that was stored, or nil
	//   - bindGroupLayout: the backend bind group layout that was stored, or nil
	//   - owned: handles of buffers owned by this provider
	Reset() (bindGroup any, bindGroupLayout any, owned []buffer.Handle)
}

var _ BindGroupProvider = &bindGroupProvider{}

// NewBindGroupProvider creates a new BindGroupProvider with the given debug label.
//
// Parameters:
//   - label: debug label used for backend object names
//   - options: functional options applied after defaults
//
// Returns:
//   - BindGroupProvider: the new provider
func NewBindGroupProvider(label string, options ...BindGroupProviderOption) BindGroupProvider {
	p := &bindGroupProvider{
		label:   label,
		buffers: make(map[int]buffer.Handle),
		owned:   make(map[int]bool),
	}
	for _, opt := range options {
		opt(p)
	}
	return p
}

func (p *bindGroupProvider) Label() string {
	return p.label
}

func (p *bindGroupProvider) BindGroup() any {
	return p.bindGroup
}

func (p *bindGroupProvider) BindGroupLayout() any {
	return p.bindGroupLayout
}

func (p *bindGroupProvider) Layout() LayoutDescriptor {
	return p.layout
}

func (p *bindGroupProvider) Buffer(binding int) (buffer.Handle, bool) {
	h, ok := p.buffers[binding]
	return h, ok
}

func (p *bindGroupProvider) Buffers() map[int]buffer.Handle {
	out := make(map[int]buffer.Handle, len(p.buffers))
	for k, v := range p.buffers {
		out[k] = v
	}
	return out
}

func (p *bindGroupProvider) Bindings() []int {
	keys := make([]int, 0, len(p.buffers))
	for k := range p.buffers {
		keys = append(keys, k)
	}
	sort.Ints(keys)
	return keys
}

func (p *bindGroupProvider) Owned(binding int) bool {
	return p.owned[binding]
}

func (p *bindGroupProvider) SetBindGroup(bg any) {
	p.bindGroup = bg
}

func (p *bindGroupProvider) SetBindGroupLayout(bgl any, layout LayoutDescriptor) {
	p.bindGroupLayout = bgl
	p.layout = layout
}

func (p *bindGroupProvider) SetBuffer(binding int, h buffer.Handle) {
	p.buffers[binding] = h
	delete(p.owned, binding)
}

func (p *bindGroupProvider) SetOwnedBuffer(binding int, h buffer.Handle) {
	p.buffers[binding] = h
	p.owned[binding] = true
}

func (p *bindGroupProvider) Reset() (any, any, []buffer.Handle) {
	bg, bgl := p.bindGroup, p.bindGroupLayout
	var owned []buffer.Handle
	for _, binding := range p.Bindings() {
		if p.owned[binding] {
			owned = append(owned, p.buffers[binding])
		}
	}

	p.bindGroup = nil
	p.bindGroupLayout = nil
	p.layout = LayoutDescriptor{}
	p.buffers = make(map[int]buffer.Handle)
	p.owned = make(map[int]bool)
	return bg, bgl, owned
}
