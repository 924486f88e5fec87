package telemetry

import (
	"log/slog"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// CoverageThreshold is the B concentration above which a cell counts as
// part of the pattern.
const CoverageThreshold = 0.25

// FieldStats summarises the concentrations of one grid snapshot.
type FieldStats struct {
	Frame   int64   `csv:"frame"`
	SimTime float64 `csv:"sim_time"`

	MeanA float64 `csv:"a_mean"`
	StdA  float64 `csv:"a_std"`
	MinA  float64 `csv:"a_min"`
	MaxA  float64 `csv:"a_max"`

	MeanB float64 `csv:"b_mean"`
	StdB  float64 `csv:"b_std"`
	MinB  float64 `csv:"b_min"`
	MaxB  float64 `csv:"b_max"`
	P50B  float64 `csv:"b_p50"`
	P90B  float64 `csv:"b_p90"`

	// Fraction of cells with B above CoverageThreshold.
	CoverageB float64 `csv:"b_coverage"`
}

// ComputeFieldStats reads interleaved (a, b, Δa, Δb) cells.
func ComputeFieldStats(data []float32, channels int) FieldStats {
	if channels < 2 {
		return FieldStats{}
	}
	n := len(data) / channels
	if n == 0 {
		return FieldStats{}
	}

	a := make([]float64, n)
	b := make([]float64, n)
	covered := 0
	for i := 0; i < n; i++ {
		a[i] = float64(data[i*channels])
		b[i] = float64(data[i*channels+1])
		if b[i] > CoverageThreshold {
			covered++
		}
	}

	var s FieldStats
	s.MeanA, s.StdA = meanStd(a)
	s.MinA, s.MaxA = floats.Min(a), floats.Max(a)
	s.MeanB, s.StdB = meanStd(b)
	s.MinB, s.MaxB = floats.Min(b), floats.Max(b)

	sort.Float64s(b)
	s.P50B = stat.Quantile(0.5, stat.Empirical, b, nil)
	s.P90B = stat.Quantile(0.9, stat.Empirical, b, nil)
	s.CoverageB = float64(covered) / float64(n)
	return s
}

// meanStd returns the mean and population standard deviation.
func meanStd(x []float64) (mean, std float64) {
	mean = stat.Mean(x, nil)
	if len(x) < 2 {
		return mean, 0
	}
	return mean, stat.PopStdDev(x, nil)
}

// LogValue implements slog.LogValuer for structured logging.
func (s FieldStats) LogValue() slog.Value {
	return slog.GroupValue(
		slog.Int64("frame", s.Frame),
		slog.Float64("sim_time", s.SimTime),
		slog.Float64("a_mean", s.MeanA),
		slog.Float64("a_std", s.StdA),
		slog.Float64("b_mean", s.MeanB),
		slog.Float64("b_std", s.StdB),
		slog.Float64("b_max", s.MaxB),
		slog.Float64("b_p90", s.P90B),
		slog.Float64("b_coverage", s.CoverageB),
	)
}

// LogStats logs the snapshot using slog.
func (s FieldStats) LogStats() {
	slog.Info("stats", "field", s)
}
