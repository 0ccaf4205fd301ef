// Copyright (c) 2025 Rehearsly Labs
//
// Licensed under the MIT License. See LICENSE.md for details.
package utils

import "testing"

func TestPercentage(t *testing.T) {
	tests := []struct {
		name     string
		part     int
		total    int
		expected int
	}{
		{"zero total", 5, 0, 0},
		{"negative total", 5, -1, 0},
		{"zero part", 0, 10, 0},
		{"seven of ten", 7, 10, 70},
		{"rounds half up", 1, 3, 33},
		{"rounds up", 2, 3, 67},
		{"full", 10, 10, 100},
		{"clamps above hundred", 12, 10, 100},
		{"negative part clamps", -3, 10, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Percentage(tt.part, tt.total); got != tt.expected {
				t.Errorf("Percentage(%d, %d) = %d, expected %d", tt.part, tt.total, got, tt.expected)
			}
		})
	}
}
