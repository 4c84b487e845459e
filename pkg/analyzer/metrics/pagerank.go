package metrics

import (
	"math"

	"github.com/panbanda/callscope/pkg/callgraph"
)

// PageRank computes PageRank using sparse power iteration.
// This is O(E * iterations) instead of gonum's O(V^2 * iterations).
//
// Ranks start uniform at 1/n. The mass of nodes without callees is spread
// uniformly over all nodes on every iteration, so the ranks always sum to 1.
// Iteration stops when the L1 change drops below tolerance or after
// maxIterations; in the latter case the result is marked approximate.
// Self-loops are ordinary out-edges here.
func PageRank(g *callgraph.Graph, damping, tolerance float64, maxIterations int) ([]float64, PageRankStats) {
	stats := PageRankStats{
		Damping:       damping,
		Tolerance:     tolerance,
		MaxIterations: maxIterations,
	}

	n := g.Len()
	if n == 0 {
		stats.Converged = true
		return nil, stats
	}

	rank := make([]float64, n)
	newRank := make([]float64, n)
	initial := 1.0 / float64(n)
	for i := range rank {
		rank[i] = initial
	}

	teleport := (1.0 - damping) / float64(n)

	for iter := 0; iter < maxIterations; iter++ {
		// Dangling mass is shared by every node.
		dangling := 0.0
		for i := 0; i < n; i++ {
			if g.OutDegree(i) == 0 {
				dangling += rank[i]
			}
		}
		base := teleport + damping*dangling/float64(n)
		for i := range newRank {
			newRank[i] = base
		}

		// Distribute rank along edges
		for i := 0; i < n; i++ {
			out := g.Out(i)
			if len(out) == 0 {
				continue
			}
			contrib := damping * rank[i] / float64(len(out))
			for _, j := range out {
				newRank[j] += contrib
			}
		}

		// Check convergence
		diff := 0.0
		for i := range rank {
			diff += math.Abs(newRank[i] - rank[i])
		}

		rank, newRank = newRank, rank
		stats.Iterations = iter + 1
		stats.Residual = diff

		if diff < tolerance {
			stats.Converged = true
			break
		}
	}

	stats.Approximate = !stats.Converged
	return rank, stats
}
