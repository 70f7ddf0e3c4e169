// SPDX-License-Identifier: EPL-2.0

package utils

import (
	"math"
	"testing"
)

func TestCubicInterpolate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name           string
		y0, y1, y2, y3 float64
		x              float64
		want           float64
	}{
		{"start returns y1", 0, 1, 2, 3, 0, 1},
		{"end returns y2", 0, 1, 2, 3, 1, 2},
		{"linear data stays linear", 1, 2, 3, 4, 0.25, 2.25},
		{"constant", 0.7, 0.7, 0.7, 0.7, 0.6, 0.7},
		{"symmetric step midpoint", -1, -1, 1, 1, 0.5, 0},
		{"peak overshoots between samples", 0, 1, 1, 0, 0.5, 1.125},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := CubicInterpolate(tt.y0, tt.y1, tt.y2, tt.y3, tt.x)
			if math.Abs(got-tt.want) > 1e-12 {
				t.Errorf("CubicInterpolate() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestCubicInterpolate_Float32MatchesFloat64(t *testing.T) {
	t.Parallel()

	for x := float32(0); x <= 1; x += 0.125 {
		got := CubicInterpolate[float32](0.5, 0.9, 0.7, 0.3, x)
		want := CubicInterpolate(0.5, 0.9, 0.7, 0.3, float64(x))
		if math.Abs(float64(got)-want) > 1e-6 {
			t.Errorf("x=%v: float32 %v, float64 %v", x, got, want)
		}
	}
}

func BenchmarkCubicInterpolate(b *testing.B) {
	samples := make([]float32, 8000)

	b.ReportAllocs()
	for range b.N {
		for j := range samples {
			x := float32(j%100) / 100
			samples[j] = CubicInterpolate[float32](0.1, 0.5, 0.3, -0.2, x)
		}
	}
}

func TestCubicInterpolate_ZeroAllocs(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping allocation test in short mode")
	}

	allocs := testing.AllocsPerRun(1000, func() {
		_ = CubicInterpolate[float32](0.5, 1.0, 0.8, 0.3, 0.5)
	})
	if allocs > 0 {
		t.Errorf("CubicInterpolate allocated %v times, want 0", allocs)
	}
}
