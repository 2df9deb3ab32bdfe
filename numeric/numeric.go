// Package numeric implements the sortable fixed-width encodings used by
// NUMERIC and DATETIME fields (spec §9 Open Question, decided in
// DESIGN.md): values are transformed so that unsigned byte-lexicographic
// comparison of the encoded form matches numeric comparison of the
// original value, letting the same FST-backed term dictionary that stores
// text terms also store and range-search numeric ones.
package numeric

import (
	"encoding/binary"
	"math"
)

// EncodeInt64 produces a sortable 8-byte big-endian encoding of a signed
// integer by flipping its sign bit.
func EncodeInt64(v int64) []byte {
	u := uint64(v) ^ (1 << 63)
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, u)
	return buf
}

// DecodeInt64 reverses EncodeInt64.
func DecodeInt64(b []byte) int64 {
	u := binary.BigEndian.Uint64(b) ^ (1 << 63)
	return int64(u)
}

// EncodeFloat64 produces a sortable 8-byte big-endian encoding of a float,
// using the standard Lucene "NumericUtils" trick: non-negative floats have
// their sign bit set, negative floats have every bit flipped, so the IEEE
// 754 bit pattern's natural ordering lines up with numeric ordering
// including across the zero and sign boundary.
func EncodeFloat64(v float64) []byte {
	bits := math.Float64bits(v)
	if bits&(1<<63) != 0 {
		bits = ^bits
	} else {
		bits |= 1 << 63
	}
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, bits)
	return buf
}

// DecodeFloat64 reverses EncodeFloat64.
func DecodeFloat64(b []byte) float64 {
	bits := binary.BigEndian.Uint64(b)
	if bits&(1<<63) != 0 {
		bits &^= 1 << 63
	} else {
		bits = ^bits
	}
	return math.Float64frombits(bits)
}
