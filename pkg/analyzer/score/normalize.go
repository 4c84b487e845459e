package score

// =============================================================================
// METRIC NORMALIZATION
// =============================================================================
//
// Each raw metric is min-max normalized to [0,1] across the current graph
// before weighting, so the weights compare like with like:
//
//   - degree: in-degree plus out-degree
//   - betweenness: already a fraction, rescaled to the graph's own range
//   - PageRank: a probability mass, rescaled to the graph's own range
//
// A metric that is constant over the graph carries no ranking signal and
// normalizes to 0 everywhere.
// =============================================================================

// MinMax rescales xs to [0,1]. A constant (or empty) input yields zeros.
func MinMax(xs []float64) []float64 {
	out := make([]float64, len(xs))
	if len(xs) == 0 {
		return out
	}

	lo, hi := xs[0], xs[0]
	for _, x := range xs[1:] {
		if x < lo {
			lo = x
		}
		if x > hi {
			hi = x
		}
	}

	span := hi - lo
	if span <= 0 {
		return out
	}
	for i, x := range xs {
		out[i] = clamp((x-lo)/span, 0, 1)
	}
	return out
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
