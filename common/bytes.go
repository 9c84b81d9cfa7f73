package common

import (
	"encoding/binary"
	"math"
)

// PutFloats writes the values as little-endian float32 words starting at offset.
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset of the first value
//   - values: the values to write
//
// Returns:
//   - int: the byte offset just past the last written value
func PutFloats(buf []byte, offset int, values ...float32) int {
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], math.Float32bits(v))
		offset += 4
	}
	return offset
}

// PutUints writes the values as little-endian uint32 words starting at offset.
//
// Parameters:
//   - buf: destination buffer
//   - offset: byte offset of the first value
//   - values: the values to write
//
// Returns:
//   - int: the byte offset just past the last written value
func PutUints(buf []byte, offset int, values ...uint32) int {
	for _, v := range values {
		binary.LittleEndian.PutUint32(buf[offset:offset+4], v)
		offset += 4
	}
	return offset
}

// Float reads a little-endian float32 at the given byte offset.
func Float(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
}

// Uint reads a little-endian uint32 at the given byte offset.
func Uint(buf []byte, offset int) uint32 {
	return binary.LittleEndian.Uint32(buf[offset : offset+4])
}

// BytesToWords decodes a little-endian byte slice into 32-bit words. Trailing bytes
// that do not form a full word are ignored.
func BytesToWords(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = binary.LittleEndian.Uint32(data[i*4:])
	}
	return words
}

// WordsToBytes encodes 32-bit words into a little-endian byte slice.
func WordsToBytes(words []uint32) []byte {
	data := make([]byte, len(words)*4)
	for i, w := range words {
		binary.LittleEndian.PutUint32(data[i*4:], w)
	}
	return data
}
