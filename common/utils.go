package common

import (
	"encoding/binary"
	"math"
)

// Coalesce returns the first non-zero value from the provided values, or the zero value if all are zero.
//
// Parameters:
//   - values: a variadic list of values to check for non-zero status
//
// Returns:
//   - T: the first non-zero value from the input, or the zero value if all are zero
func Coalesce[T comparable](values ...T) T {
	var zero T
	for _, v := range values {
		if v != zero {
			return v
		}
	}
	return zero
}

// PutFloat32s writes each float as 4 little-endian bytes into buf starting at offset 0.
// The buffer must hold at least 4*len(values) bytes.
//
// Parameters:
//   - buf: destination byte slice
//   - values: the floats to encode
func PutFloat32s(buf []byte, values ...float32) {
	for i, v := range values {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

// Float32At decodes the little-endian float stored at byte offset off.
//
// Parameters:
//   - buf: source byte slice
//   - off: byte offset of the float
//
// Returns:
//   - float32: the decoded value
func Float32At(buf []byte, off int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[off:]))
}
