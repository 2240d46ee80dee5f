// Copyright 2023-2026 The GoMLX Authors. SPDX-License-Identifier: Apache-2.0

package tensors

import (
	"math"

	"github.com/gomlx/exceptions"
	"github.com/gomlx/gopjrt/dtypes"
	"github.com/gomlx/gopjrt/dtypes/bfloat16"
	"github.com/x448/float16"
)

// Round converts value to the closest value representable by dtype, and returns it as a float64.
//
// Integer dtypes truncate towards zero and wrap around like Go integer conversions; NaN becomes 0.
// It panics for dtypes not supported by this package (complex and unsigned types).
func Round(dtype dtypes.DType, value float64) float64 {
	switch dtype {
	case dtypes.Float64:
		return value
	case dtypes.Float32:
		return float64(float32(value))
	case dtypes.Float16:
		return float64(float16.Fromfloat32(float32(value)).Float32())
	case dtypes.BFloat16:
		return float64(bfloat16.FromFloat32(float32(value)).Float32())
	case dtypes.Int64:
		return float64(toInt64(value))
	case dtypes.Int32:
		return float64(int32(toInt64(value)))
	case dtypes.Int16:
		return float64(int16(toInt64(value)))
	case dtypes.Int8:
		return float64(int8(toInt64(value)))
	case dtypes.Bool:
		if value != 0 && !math.IsNaN(value) {
			return 1
		}
		return 0
	default:
		exceptions.Panicf("tensors: dtype %s not supported", dtype)
	}
	return 0
}

// IsSupported returns whether Round (and hence Tensor) supports the given dtype.
func IsSupported(dtype dtypes.DType) bool {
	switch dtype {
	case dtypes.Float64, dtypes.Float32, dtypes.Float16, dtypes.BFloat16,
		dtypes.Int64, dtypes.Int32, dtypes.Int16, dtypes.Int8, dtypes.Bool:
		return true
	}
	return false
}

// toInt64 truncates towards zero, saturating at the int64 limits, since converting out-of-range floats
// to integers is implementation-defined in Go.
func toInt64(value float64) int64 {
	switch {
	case math.IsNaN(value):
		return 0
	case value >= math.MaxInt64:
		return math.MaxInt64
	case value <= math.MinInt64:
		return math.MinInt64
	}
	return int64(math.Trunc(value))
}
