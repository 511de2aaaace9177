package wire

import "math"

// FixedFromFloat64 converts f to 24.8 fixed point, rounding to the nearest
// representable value.
func FixedFromFloat64(f float64) int32 {
	return int32(math.Round(f * 256))
}

// FixedToFloat64 converts a 24.8 fixed point value to a float.
func FixedToFloat64(v int32) float64 {
	return float64(v) / 256
}

// FixedFromInt converts an integer to 24.8 fixed point.
func FixedFromInt(i int32) int32 {
	return i * 256
}
