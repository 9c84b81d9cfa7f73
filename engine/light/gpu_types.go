package light

import (
	_ "embed"
	"encoding/binary"
	"math"
	"unsafe"

	"github.com/Carmen-Shannon/oxy-cluster/common"
)

// DefaultCapacity is the number of light records a Store holds when no capacity is configured.
const DefaultCapacity = 1024

// GPULightWords is the size of one GPULight record in 32-bit words.
const GPULightWords = 12

// GPULightSource is the canonical WGSL definition of the Light struct.
// Matches GPULight layout exactly (48 bytes, std430 aligned).
//
//go:embed assets/light.wgsl
var GPULightSource string

// GPULight is the GPU-aligned representation of a single light source.
// Matches the WGSL Light struct layout exactly (see GPULightSource).
// Size: 48 bytes (std430 / WGSL aligned).
type GPULight struct {
	Position  [4]float32 // offset  0: world-space position, w = 1
	Color     [4]float32 // offset 16: RGBA color
	Radius    float32    // offset 32: bounding sphere radius
	Intensity float32    // offset 36: scalar multiplier
	LightType uint32     // offset 40: 1 = point, 2 = spot
	_pad      uint32     // offset 44: padding to 48-byte alignment
}

// Size returns the size of the GPULight struct in bytes.
//
// Returns:
//   - int: the struct size in bytes (48)
func (g *GPULight) Size() int {
	return int(unsafe.Sizeof(*g))
}

// Marshal serializes the GPULight struct into a byte buffer suitable for GPU upload.
//
// Returns:
//   - []byte: 48-byte buffer ready for GPU upload
func (g *GPULight) Marshal() []byte {
	buf := make([]byte, 48)
	off := common.PutFloats(buf, 0, g.Position[:]...)
	off = common.PutFloats(buf, off, g.Color[:]...)
	off = common.PutFloats(buf, off, g.Radius, g.Intensity)
	binary.LittleEndian.PutUint32(buf[off:off+4], g.LightType)
	binary.LittleEndian.PutUint32(buf[off+4:off+8], 0) // padding
	return buf
}

// GPULightFromWords decodes the record at index i of a word-addressed light buffer.
//
// Parameters:
//   - words: the light buffer as 32-bit words
//   - i: the light index
//
// Returns:
//   - GPULight: the decoded record
func GPULightFromWords(words []uint32, i int) GPULight {
	w := words[i*GPULightWords : (i+1)*GPULightWords]
	f := func(k int) float32 { return math.Float32frombits(w[k]) }
	return GPULight{
		Position:  [4]float32{f(0), f(1), f(2), f(3)},
		Color:     [4]float32{f(4), f(5), f(6), f(7)},
		Radius:    f(8),
		Intensity: f(9),
		LightType: w[10],
	}
}

// ToGPULight converts a Light into its GPU-aligned representation.
//
// Parameters:
//   - l: the Light to convert
//
// Returns:
//   - GPULight: the GPU-ready light struct
func ToGPULight(l Light) GPULight {
	pos := l.Position()
	return GPULight{
		Position:  [4]float32{pos[0], pos[1], pos[2], 1},
		Color:     l.Color(),
		Radius:    l.Radius(),
		Intensity: l.Intensity(),
		LightType: uint32(l.Type()),
	}
}

// Clusterable reports whether a light takes part in cluster assignment: it must be
// enabled and have a position.
//
// Parameters:
//   - l: the light
//
// Returns:
//   - bool: true if the light is uploaded to the Store
func Clusterable(l Light) bool {
	return l != nil && l.Enabled() && l.Type() != LightTypeDirectional
}

// MarshalLightBuffer serializes every clusterable light into a contiguous buffer of
// GPULight records, preserving order.
//
// Parameters:
//   - lights: the lights to marshal
//
// Returns:
//   - []byte: the serialized records
//   - int: the number of records written
func MarshalLightBuffer(lights []Light) ([]byte, int) {
	lightSize := (&GPULight{}).Size()

	count := 0
	for _, l := range lights {
		if Clusterable(l) {
			count++
		}
	}

	buf := make([]byte, count*lightSize)
	offset := 0
	for _, l := range lights {
		if !Clusterable(l) {
			continue
		}
		gpu := ToGPULight(l)
		copy(buf[offset:offset+lightSize], gpu.Marshal())
		offset += lightSize
	}
	return buf, count
}
