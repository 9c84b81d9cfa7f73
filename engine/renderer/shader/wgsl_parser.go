package shader

import (
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/Carmen-Shannon/oxy-cluster/engine/renderer/bind_group_provider"
)

// wgslScalarSizes maps the WGSL types a buffer binding can be sized from without struct
// layout information to their byte size.
var wgslScalarSizes = map[string]uint64{
	"u32":         4,
	"i32":         4,
	"f32":         4,
	"atomic<u32>": 4,
	"atomic<i32>": 4,
	"vec2<f32>":   8,
	"vec2f":       8,
	"vec4<f32>":   16,
	"vec4f":       16,
	"vec4<u32>":   16,
	"vec4u":       16,
	"mat4x4<f32>": 64,
	"mat4x4f":     64,
}

var (
	// computeEntryRegex matches @compute functions and captures the entry point name
	computeEntryRegex = regexp.MustCompile(`(?s)@compute\b.*?\bfn\s+(\w+)`)

	// workgroupSizeRegex captures 1-3 integer dimensions from @workgroup_size(x[, y[, z]])
	workgroupSizeRegex = regexp.MustCompile(`@workgroup_size\(\s*(\d+)\s*(?:,\s*(\d+)\s*(?:,\s*(\d+)\s*)?)?\)`)

	// bindGroupDeclRegex captures group, binding, optional address space, variable name, and type
	// from declarations like: @group(0) @binding(1) var<storage, read> lights: array<Light>;
	bindGroupDeclRegex = regexp.MustCompile(`@group\((\d+)\)\s*@binding\((\d+)\)\s*var(?:<([^>]*)>)?\s+(\w+)\s*:\s*([^;]+?)\s*;`)

	// runtimeArrayRegex captures the element type of a runtime-sized array<T>
	runtimeArrayRegex = regexp.MustCompile(`^array<\s*(.+?)\s*>$`)
)

// ParseBindGroupLayouts extracts all @group(N) @binding(M) buffer declarations from WGSL
// source and returns them as layout descriptors grouped by group index. Each descriptor's
// entries are sorted by binding index. The provided visibility is applied to all entries,
// corresponding to the shader stages that declared them. Non-buffer resources (textures,
// samplers) are skipped.
//
// MinBindingSize is only filled in for scalar, vector and matrix types and runtime arrays
// of them; bindings of struct types are left at zero for the caller to size.
//
// Parameters:
//   - source: the raw WGSL source code string
//   - visibility: the shader stage visibility to set on each entry
//
// Returns:
//   - map[int]bind_group_provider.LayoutDescriptor: layout descriptors keyed by group index
//   - map[int]map[int]string: variable names keyed by group and binding index
func ParseBindGroupLayouts(source string, visibility bind_group_provider.ShaderStage) (map[int]bind_group_provider.LayoutDescriptor, map[int]map[int]string) {
	groups := make(map[int][]bind_group_provider.LayoutEntry)
	varNames := make(map[int]map[int]string)
	cleaned := stripComments(source)

	for _, match := range bindGroupDeclRegex.FindAllStringSubmatch(cleaned, -1) {
		group, _ := strconv.Atoi(match[1])
		binding, _ := strconv.Atoi(match[2])
		addressSpace := strings.TrimSpace(match[3])
		varName := strings.TrimSpace(match[4])
		typeName := strings.TrimSpace(match[5])

		bindingType, ok := classifyBuffer(addressSpace)
		if !ok {
			continue
		}
		groups[group] = append(groups[group], bind_group_provider.LayoutEntry{
			Binding:        binding,
			Type:           bindingType,
			Visibility:     visibility,
			MinBindingSize: typeSize(typeName),
		})

		if varNames[group] == nil {
			varNames[group] = make(map[int]string)
		}
		varNames[group][binding] = varName
	}

	result := make(map[int]bind_group_provider.LayoutDescriptor, len(groups))
	for g, entries := range groups {
		sort.Slice(entries, func(i, j int) bool {
			return entries[i].Binding < entries[j].Binding
		})
		result[g] = bind_group_provider.LayoutDescriptor{Entries: entries}
	}
	return result, varNames
}

// ParseWorkgroupSize extracts the @workgroup_size(x, y, z) dimensions from WGSL source.
// Omitted dimensions default to 1. Returns [1, 1, 1] if no @workgroup_size annotation is found.
//
// Parameters:
//   - source: the raw WGSL source code string
//
// Returns:
//   - [3]uint32: the workgroup size as [x, y, z]
func ParseWorkgroupSize(source string) [3]uint32 {
	result := [3]uint32{1, 1, 1}
	match := workgroupSizeRegex.FindStringSubmatch(stripComments(source))
	if match == nil {
		return result
	}
	for i := range 3 {
		if match[i+1] == "" {
			continue
		}
		if v, err := strconv.ParseUint(match[i+1], 10, 32); err == nil {
			result[i] = uint32(v)
		}
	}
	return result
}

// parseEntryPoint returns the name of the @compute function, or an empty string if the
// source declares none.
func parseEntryPoint(source string) string {
	if match := computeEntryRegex.FindStringSubmatch(stripComments(source)); match != nil {
		return match[1]
	}
	return ""
}

// classifyBuffer maps a var address space to the binding type. WGSL storage defaults to
// read access.
func classifyBuffer(addressSpace string) (bind_group_provider.BindingType, bool) {
	switch {
	case addressSpace == "uniform":
		return bind_group_provider.BindingTypeUniform, true
	case strings.HasPrefix(addressSpace, "storage"):
		if strings.Contains(addressSpace, "read_write") {
			return bind_group_provider.BindingTypeStorage, true
		}
		return bind_group_provider.BindingTypeReadOnlyStorage, true
	}
	return 0, false
}

func typeSize(typeName string) uint64 {
	if m := runtimeArrayRegex.FindStringSubmatch(typeName); m != nil && !strings.Contains(m[1], ",") {
		typeName = m[1]
	}
	return wgslScalarSizes[strings.ReplaceAll(typeName, " ", "")]
}

// stripComments removes both line and block comments from WGSL source.
func stripComments(source string) string {
	return stripLineComments(stripBlockComments(source))
}

// stripLineComments removes single-line // comments from WGSL source so they
// do not interfere with declaration parsing
func stripLineComments(source string) string {
	var sb strings.Builder
	for line := range strings.SplitSeq(source, "\n") {
		if idx := strings.Index(line, "//"); idx >= 0 {
			line = line[:idx]
		}
		sb.WriteString(line)
		sb.WriteByte('\n')
	}
	return sb.String()
}

// stripBlockComments removes block comments (/* ... */) from WGSL source,
// handling nested block comments
func stripBlockComments(source string) string {
	var sb strings.Builder
	sb.Grow(len(source))
	depth := 0
	for i := 0; i < len(source); i++ {
		if i+1 < len(source) {
			if source[i] == '/' && source[i+1] == '*' {
				depth++
				i++
				continue
			}
			if source[i] == '*' && source[i+1] == '/' {
				if depth > 0 {
					depth--
				}
				i++
				continue
			}
		}
		if depth == 0 {
			sb.WriteByte(source[i])
		}
	}
	return sb.String()
}
