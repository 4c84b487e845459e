// Package stats holds small order statistics shared by the graph summaries.
package stats

import (
	"sort"

	"gonum.org/v1/gonum/stat"
)

// Percentile returns the empirical p-th percentile of sorted: the smallest
// value with at least p percent of the samples at or below it. An empty
// slice yields 0. sorted must be in ascending order.
func Percentile(sorted []float64, p int) float64 {
	if len(sorted) == 0 {
		return 0
	}
	p = min(max(p, 0), 100)
	return stat.Quantile(float64(p)/100, stat.Empirical, sorted, nil)
}

// SortedInts converts xs to an ascending float slice for Percentile.
func SortedInts(xs []int) []float64 {
	out := make([]float64, len(xs))
	for i, x := range xs {
		out[i] = float64(x)
	}
	sort.Float64s(out)
	return out
}
