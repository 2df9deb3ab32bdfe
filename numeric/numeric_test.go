package numeric

import (
	"bytes"
	"math"
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEncodeInt64_RoundTrip(t *testing.T) {
	for _, v := range []int64{0, 1, -1, math.MaxInt64, math.MinInt64, 42, -42} {
		got := DecodeInt64(EncodeInt64(v))
		assert.Equal(t, v, got)
	}
}

func TestEncodeInt64_PreservesOrder(t *testing.T) {
	values := []int64{math.MinInt64, -1000, -1, 0, 1, 1000, math.MaxInt64}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = EncodeInt64(v)
	}
	assert.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}))
}

func TestEncodeFloat64_RoundTrip(t *testing.T) {
	for _, v := range []float64{0, 1.5, -1.5, math.MaxFloat64, -math.MaxFloat64, 3.14159} {
		got := DecodeFloat64(EncodeFloat64(v))
		assert.Equal(t, v, got)
	}
}

func TestEncodeFloat64_PreservesOrder(t *testing.T) {
	values := []float64{-math.MaxFloat64, -100.5, -1, 0, 1, 100.5, math.MaxFloat64}
	encoded := make([][]byte, len(values))
	for i, v := range values {
		encoded[i] = EncodeFloat64(v)
	}
	assert.True(t, sort.SliceIsSorted(encoded, func(i, j int) bool {
		return bytes.Compare(encoded[i], encoded[j]) < 0
	}))
}

func TestEncodeInt64_FixedWidth(t *testing.T) {
	assert.Len(t, EncodeInt64(0), 8)
	assert.Len(t, EncodeFloat64(0), 8)
}
