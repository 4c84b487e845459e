// Package metrics computes degree, betweenness and PageRank over the
// canonical call graph.
package metrics

import (
	"context"

	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/callgraph"
	"gonum.org/v1/gonum/graph/network"
)

const (
	DefaultDamping       = 0.85
	DefaultTolerance     = 1e-6
	DefaultMaxIterations = 100
)

// Analyzer computes node metrics.
type Analyzer struct {
	damping       float64
	tolerance     float64
	maxIterations int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithDamping sets the PageRank damping factor.
func WithDamping(d float64) Option {
	return func(a *Analyzer) {
		a.damping = d
	}
}

// WithTolerance sets the L1 convergence threshold of PageRank.
func WithTolerance(tol float64) Option {
	return func(a *Analyzer) {
		a.tolerance = tol
	}
}

// WithMaxIterations caps the PageRank power iteration.
func WithMaxIterations(n int) Option {
	return func(a *Analyzer) {
		a.maxIterations = n
	}
}

// New creates a new metrics analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		damping:       DefaultDamping,
		tolerance:     DefaultTolerance,
		maxIterations: DefaultMaxIterations,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compile-time check that Analyzer implements GraphAnalyzer.
var _ analyzer.GraphAnalyzer[*Metrics] = (*Analyzer)(nil)

// Analyze computes degree, betweenness and PageRank for every node.
func (a *Analyzer) Analyze(ctx context.Context, g *callgraph.Graph) (*Metrics, error) {
	m := &Metrics{
		Nodes: make([]NodeMetric, g.Len()),
	}

	for i := range m.Nodes {
		m.Nodes[i] = NodeMetric{
			Name:      g.Name(i),
			InDegree:  g.InDegree(i),
			OutDegree: g.OutDegree(i),
		}
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	for i, b := range Betweenness(g) {
		m.Nodes[i].Betweenness = b
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	ranks, stats := PageRank(g, a.damping, a.tolerance, a.maxIterations)
	for i, r := range ranks {
		m.Nodes[i].PageRank = r
	}
	m.PageRank = stats

	return m, nil
}

// Betweenness returns the betweenness centrality of every node: the fraction
// of shortest paths between ordered pairs of other nodes that pass through
// it, normalized by (n-1)(n-2). It uses gonum's Brandes implementation on the
// directed projection.
func Betweenness(g *callgraph.Graph) []float64 {
	n := g.Len()
	out := make([]float64, n)
	if n < 3 {
		return out
	}

	raw := network.Betweenness(g.Directed())
	scale := 1.0 / float64((n-1)*(n-2))
	for id, b := range raw {
		out[id] = b * scale
	}
	return out
}
