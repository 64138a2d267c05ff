package telemetry

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"
)

// Summary is the fixed five-statistic reduction of one high-frequency array.
// All fields are NaN when the array held no usable samples — the missing
// marker stays distinguishable from a measured zero.
type Summary struct {
	Mean   float64
	Max    float64
	Min    float64
	Std    float64
	Median float64
}

// SummaryStats lists the statistic names in canonical column order, matching
// the field order of Summary.
var SummaryStats = []string{"mean", "max", "min", "std", "median"}

// Values returns the statistics in canonical column order.
func (s Summary) Values() []float64 {
	return []float64{s.Mean, s.Max, s.Min, s.Std, s.Median}
}

// Summarize reduces a numeric array to its five-statistic summary. Non-finite
// entries are excluded from the computation; if nothing remains, every
// statistic is NaN. The standard deviation is the population form, so a
// single-sample array yields std 0.
func Summarize(values []float64) Summary {
	valid := values[:0:0]
	for _, v := range values {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			continue
		}
		valid = append(valid, v)
	}
	if len(valid) == 0 {
		nan := math.NaN()
		return Summary{Mean: nan, Max: nan, Min: nan, Std: nan, Median: nan}
	}

	return Summary{
		Mean:   stat.Mean(valid, nil),
		Max:    floats.Max(valid),
		Min:    floats.Min(valid),
		Std:    math.Sqrt(stat.PopVariance(valid, nil)),
		Median: median(valid),
	}
}

// median returns the midpoint of the sorted data: the middle element for odd
// counts, the mean of the two middle elements for even counts.
func median(values []float64) float64 {
	sorted := make([]float64, len(values))
	copy(sorted, values)
	sort.Float64s(sorted)

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	return (sorted[n/2-1] + sorted[n/2]) / 2
}

// MajorityVote returns the most frequent value in a categorical array. Ties
// break toward the value that occurred first; an empty array votes "".
func MajorityVote(values []string) string {
	if len(values) == 0 {
		return ""
	}
	counts := make(map[string]int, len(values))
	for _, v := range values {
		counts[v]++
	}
	best := values[0]
	for _, v := range values {
		if counts[v] > counts[best] {
			best = v
		}
	}
	return best
}
