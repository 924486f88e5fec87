package telemetry

import (
	"math"
	"testing"
)

func TestComputeFieldStats(t *testing.T) {
	// Three cells of (a, b, Δa, Δb).
	data := []float32{
		1, 0, 0, 0,
		0.5, 0.2, 0, 0,
		0, 1, 0, 0,
	}
	s := ComputeFieldStats(data, 4)

	check := func(name string, got, want float64) {
		t.Helper()
		if math.Abs(got-want) > 1e-6 {
			t.Errorf("%s = %v, want %v", name, got, want)
		}
	}
	check("MeanA", s.MeanA, 0.5)
	check("MinA", s.MinA, 0)
	check("MaxA", s.MaxA, 1)
	check("StdA", s.StdA, math.Sqrt(1.0/6))
	check("MeanB", s.MeanB, 0.4)
	check("P50B", s.P50B, 0.2)
	check("MaxB", s.MaxB, 1)
	check("CoverageB", s.CoverageB, 1.0/3)
}

func TestComputeFieldStats_Empty(t *testing.T) {
	if s := ComputeFieldStats(nil, 4); s != (FieldStats{}) {
		t.Errorf("empty input = %+v, want zero value", s)
	}
	if s := ComputeFieldStats([]float32{1, 2, 3}, 1); s != (FieldStats{}) {
		t.Errorf("single channel = %+v, want zero value", s)
	}
}
