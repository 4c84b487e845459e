// Package hotpath ranks call chains by the edge betweenness of the calls
// they traverse.
package hotpath

import (
	"context"
	"sort"

	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/callgraph"
	"gonum.org/v1/gonum/graph/network"
)

const (
	DefaultMaxDepth   = 5
	DefaultTop        = 10
	DefaultMaxEntries = 10
)

// Path is one scored call chain.
type Path struct {
	Nodes []string `json:"nodes" toon:"nodes" yaml:"nodes"`
	// Score is the summed edge betweenness of the path's calls, each
	// normalized by n(n-1).
	Score float64 `json:"score" toon:"score" yaml:"score"`
	// Samples is filled from an external profile when one is supplied.
	Samples int64 `json:"samples,omitempty" toon:"samples,omitempty" yaml:"samples,omitempty"`
}

// Len returns the number of calls on the path.
func (p Path) Len() int {
	return len(p.Nodes) - 1
}

// Result holds the highest scoring paths.
type Result struct {
	Paths   []Path   `json:"paths" toon:"paths" yaml:"paths"`
	Entries []string `json:"entries" toon:"entries" yaml:"entries"`
	// Explored is the number of candidate paths scored.
	Explored int `json:"explored" toon:"explored" yaml:"explored"`
}

// Analyzer enumerates and scores call paths.
type Analyzer struct {
	maxDepth   int
	top        int
	maxEntries int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxDepth bounds path length in nodes.
func WithMaxDepth(n int) Option {
	return func(a *Analyzer) {
		a.maxDepth = n
	}
}

// WithTop sets how many paths are returned.
func WithTop(n int) Option {
	return func(a *Analyzer) {
		a.top = n
	}
}

// WithMaxEntries limits how many entry nodes are expanded.
func WithMaxEntries(n int) Option {
	return func(a *Analyzer) {
		a.maxEntries = n
	}
}

// New creates a new hot path analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		maxDepth:   DefaultMaxDepth,
		top:        DefaultTop,
		maxEntries: DefaultMaxEntries,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.maxDepth < 2 {
		a.maxDepth = 2
	}
	return a
}

// Compile-time check that Analyzer implements EntryAnalyzer.
var _ analyzer.EntryAnalyzer[*Result] = (*Analyzer)(nil)

// EdgeBetweenness returns the normalized betweenness of every call, keyed by
// caller and callee position. Self-loops carry no shortest paths and are
// absent.
func EdgeBetweenness(g *callgraph.Graph) map[[2]int]float64 {
	n := g.Len()
	out := make(map[[2]int]float64)
	if n < 2 {
		return out
	}
	scale := 1.0 / float64(n*(n-1))
	for k, v := range network.EdgeBetweenness(g.Directed()) {
		out[[2]int{int(k[0]), int(k[1])}] = v * scale
	}
	return out
}

// AnalyzeFrom scores every maximal simple path that starts at one of the
// first maxEntries entries and has at most maxDepth nodes. A path is maximal
// when it cannot be extended without exceeding the depth bound or repeating
// a node.
func (a *Analyzer) AnalyzeFrom(ctx context.Context, g *callgraph.Graph, entries callgraph.EntrySet) (*Result, error) {
	roots := entries.Nodes
	if a.maxEntries > 0 && len(roots) > a.maxEntries {
		roots = roots[:a.maxEntries]
	}
	res := &Result{
		Paths:   []Path{},
		Entries: make([]string, 0, len(roots)),
	}
	for _, r := range roots {
		res.Entries = append(res.Entries, g.Name(r))
	}
	if len(roots) == 0 {
		return res, nil
	}

	eb := EdgeBetweenness(g)
	onPath := make([]bool, g.Len())
	var candidates []Path

	var walk func(path []int, score float64)
	walk = func(path []int, score float64) {
		last := path[len(path)-1]
		extended := false
		if len(path) < a.maxDepth {
			for _, next := range g.Out(last) {
				if onPath[next] {
					continue
				}
				extended = true
				onPath[next] = true
				walk(append(path, next), score+eb[[2]int{last, next}])
				onPath[next] = false
			}
		}
		if !extended && len(path) > 1 {
			nodes := make([]string, len(path))
			for i, n := range path {
				nodes[i] = g.Name(n)
			}
			candidates = append(candidates, Path{Nodes: nodes, Score: score})
		}
	}

	for _, r := range roots {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		onPath[r] = true
		walk([]int{r}, 0)
		onPath[r] = false
	}

	res.Explored = len(candidates)
	sortPaths(candidates)
	if a.top > 0 && len(candidates) > a.top {
		candidates = candidates[:a.top]
	}
	res.Paths = append(res.Paths, candidates...)
	return res, nil
}

// Analyze runs AnalyzeFrom with the default entry set.
func (a *Analyzer) Analyze(ctx context.Context, g *callgraph.Graph) (*Result, error) {
	return a.AnalyzeFrom(ctx, g, callgraph.Entries(g, callgraph.EntrySpec{}))
}

// sortPaths orders by score descending, then by node sequence.
func sortPaths(paths []Path) {
	sort.SliceStable(paths, func(i, j int) bool {
		if paths[i].Score != paths[j].Score {
			return paths[i].Score > paths[j].Score
		}
		a, b := paths[i].Nodes, paths[j].Nodes
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
