package bind_group_provider

// BindingType identifies how a buffer binding is exposed to a shader stage.
type BindingType int

const (
	// BindingTypeUniform binds the buffer as a uniform buffer (var<uniform>).
	BindingTypeUniform BindingType = iota

	// BindingTypeStorage binds the buffer as a read-write storage buffer (var<storage, read_write>).
	BindingTypeStorage

	// BindingTypeReadOnlyStorage binds the buffer as a read-only storage buffer (var<storage, read>).
	// Consumers of buffers owned by another component are always bound this way.
	BindingTypeReadOnlyStorage
)

// String implements fmt.Stringer.
func (t BindingType) String() string {
	switch t {
	case BindingTypeUniform:
		return "uniform"
	case BindingTypeStorage:
		return "storage"
	case BindingTypeReadOnlyStorage:
		return "read-only-storage"
	default:
		return "unknown"
	}
}

// ShaderStage is a bit set of the shader stages a binding is visible to.
type ShaderStage uint32

const (
	// ShaderStageCompute makes the binding visible to compute shaders.
	ShaderStageCompute ShaderStage = 1 << iota

	// ShaderStageFragment makes the binding visible to fragment shaders.
	ShaderStageFragment

	// ShaderStageVertex makes the binding visible to vertex shaders.
	ShaderStageVertex
)

// LayoutEntry describes a single buffer binding within a bind group.
type LayoutEntry struct {
	Binding        int
	Type           BindingType
	Visibility     ShaderStage
	MinBindingSize uint64
}

// LayoutDescriptor describes the layout of a bind group independently of the backend.
type LayoutDescriptor struct {
	Label   string
	Entries []LayoutEntry
}

// Entry looks up the entry for a binding index.
//
// Parameters:
//   - binding: the binding index to find
//
// Returns:
//   - LayoutEntry: the matching entry
//   - bool: false if the descriptor has no entry for binding
func (d LayoutDescriptor) Entry(binding int) (LayoutEntry, bool) {
	for _, e := range d.Entries {
		if e.Binding == binding {
			return e, true
		}
	}
	return LayoutEntry{}, false
}
