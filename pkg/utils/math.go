// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package utils

import "math"

// Percentage returns round(100 * part / total) clamped to [0, 100].
// A zero total yields 0 rather than a division error.
func Percentage(part, total int) int {
	if total <= 0 {
		return 0
	}
	pct := int(math.Round(100 * float64(part) / float64(total)))
	if pct < 0 {
		return 0
	}
	if pct > 100 {
		return 100
	}
	return pct
}

// AverageFloat32 returns the arithmetic mean of values, 0 for an empty slice.
func AverageFloat32(values []float32) float32 {
	if len(values) == 0 {
		return 0
	}
	var sum float32
	for _, v := range values {
		sum += v
	}
	return sum / float32(len(values))
}
