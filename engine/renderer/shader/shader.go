package shader

import (
	"fmt"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
)

// Bindings gives a host kernel access to the buffers of bind group 0 as 32-bit words.
// Word slices alias device memory: plain loads and stores are allowed for data that no
// other workgroup touches during the dispatch, and sync/atomic must be used for anything
// shared (counters).
type Bindings interface {
	// Words returns the storage of the buffer bound at binding.
	//
	// Parameters:
	//   - binding: the binding index
	//
	// Returns:
	//   - []uint32: the buffer contents, nil if nothing is bound
	Words(binding int) []uint32
}

// Kernel is the host implementation of a compute entry point. It is invoked once per
// workgroup and is responsible for iterating the workgroup's local invocations itself.
type Kernel func(b Bindings, workgroupID [3]uint32)

// shader is the implementation of the Shader interface.
// It holds all of the persistent shader data required for compute pipeline creation.
type shader struct {
	key                        string
	source                     string
	entryPoint                 string
	workGroupSize              [3]uint32
	bindGroupLayoutDescriptors map[int]bind_group_provider.LayoutDescriptor
	bindingVarNames            map[int]map[int]string
	kernel                     Kernel
}

// Shader defines the interface for a compute shader. It exposes the WGSL source used by
// GPU backends, the equivalent host Kernel used by the software backend, and the bind group
// layouts both must agree on.
type Shader interface {
	// Key retrieves the unique identifier for this shader, used for caching and lookups.
	//
	// Returns:
	//   - string: the shader's unique key
	Key() string

	// Source retrieves the WGSL shader source code.
	//
	// Returns:
	//   - string: the WGSL source code of the shader
	Source() string

	// EntryPoint returns the entry point name for this shader.
	//
	// Returns:
	//   - string: the entry point name (e.g. "main")
	EntryPoint() string

	// WorkgroupSize returns the workgroup size declared by the WGSL entry point.
	//
	// Returns:
	//   - [3]uint32: the workgroup size as [x, y, z]
	WorkgroupSize() [3]uint32

	// BindGroupLayoutDescriptor retrieves the layout descriptor of a bind group.
	//
	// Parameters:
	//   - group: the bind group index
	//
	// Returns:
	//   - bind_group_provider.LayoutDescriptor: the descriptor, or an empty descriptor if not set
	BindGroupLayoutDescriptor(group int) bind_group_provider.LayoutDescriptor

	// BindGroupLayoutDescriptors retrieves all layout descriptors keyed by group index.
	//
	// Returns:
	//   - map[int]bind_group_provider.LayoutDescriptor: descriptors keyed by group index
	BindGroupLayoutDescriptors() map[int]bind_group_provider.LayoutDescriptor

	// BindingVarName returns the WGSL variable declared at a group and binding.
	//
	// Parameters:
	//   - group: the bind group index
	//   - binding: the binding index
	//
	// Returns:
	//   - string: the variable name, or an empty string if nothing is declared there
	BindingVarName(group, binding int) string

	// Kernel returns the host implementation of the entry point, or nil if the shader can only
	// run on a GPU backend.
	//
	// Returns:
	//   - Kernel: the host kernel
	Kernel() Kernel
}

var _ Shader = &shader{}

// NewShader creates a new compute Shader with all specified options applied.
// The entry point, workgroup size and bind group layouts are parsed from the WGSL source;
// options refine or override them.
//
// Parameters:
//   - key: a unique identifier for the shader, used for caching and lookups
//   - source: the WGSL source code
//   - opts: functional options for entry point, workgroup size, layouts and host kernel
//
// Returns:
//   - Shader: a new Shader instance with the provided configuration
func NewShader(key, source string, opts ...ShaderBuilderOption) Shader {
	if source == "" {
		panic(fmt.Sprintf("shader: %s must have WGSL source", key))
	}
	s := &shader{
		key:           key,
		source:        source,
		entryPoint:    parseEntryPoint(source),
		workGroupSize: ParseWorkgroupSize(source),
	}
	if s.entryPoint == "" {
		s.entryPoint = "main"
	}
	s.bindGroupLayoutDescriptors, s.bindingVarNames = ParseBindGroupLayouts(source, bind_group_provider.ShaderStageCompute)
	for g, desc := range s.bindGroupLayoutDescriptors {
		desc.Label = fmt.Sprintf("%s [%d]", key, g)
		s.bindGroupLayoutDescriptors[g] = desc
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *shader) Key() string {
	return s.key
}

func (s *shader) Source() string {
	return s.source
}

func (s *shader) EntryPoint() string {
	return s.entryPoint
}

func (s *shader) WorkgroupSize() [3]uint32 {
	return s.workGroupSize
}

func (s *shader) BindGroupLayoutDescriptor(group int) bind_group_provider.LayoutDescriptor {
	return s.bindGroupLayoutDescriptors[group]
}

func (s *shader) BindGroupLayoutDescriptors() map[int]bind_group_provider.LayoutDescriptor {
	return s.bindGroupLayoutDescriptors
}

func (s *shader) BindingVarName(group, binding int) string {
	return s.bindingVarNames[group][binding]
}

func (s *shader) Kernel() Kernel {
	return s.kernel
}
