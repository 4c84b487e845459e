// Package critpath finds the deepest call chains reachable from the entry
// points of a call graph.
package critpath

import (
	"context"
	"sort"

	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/callgraph"
)

// Result reports the maximum call depth and every path that reaches it.
type Result struct {
	// Depth is the edge count of the longest simple path.
	Depth   int        `json:"depth" toon:"depth" yaml:"depth"`
	Paths   [][]string `json:"paths" toon:"paths" yaml:"paths"`
	Entries []string   `json:"entries" toon:"entries" yaml:"entries"`
	// Truncated is set when exploration was cut at the configured maximum
	// depth.
	Truncated bool `json:"truncated,omitempty" toon:"truncated,omitempty" yaml:"truncated,omitempty"`
}

// Analyzer searches for critical paths.
type Analyzer struct {
	maxDepth int
	maxPaths int
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithMaxDepth bounds the explored path length in edges (0 = unbounded).
func WithMaxDepth(depth int) Option {
	return func(a *Analyzer) {
		a.maxDepth = depth
	}
}

// WithMaxPaths caps how many tied maximal paths are kept (0 = all).
func WithMaxPaths(n int) Option {
	return func(a *Analyzer) {
		a.maxPaths = n
	}
}

// New creates a new critical path analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compile-time check that Analyzer implements EntryAnalyzer.
var _ analyzer.EntryAnalyzer[*Result] = (*Analyzer)(nil)

// frame is one level of the explicit DFS stack.
type frame struct {
	node int
	next int // index into the node's successor list
}

// AnalyzeFrom runs a depth-first search from every entry. Each search keeps
// a visited set for the current path only, so cycles are entered but never
// repeated within one path, which bounds every path by the node count.
// Successors are explored in ascending name order, so paths are found in
// lexicographic order within each entry and the reported ties are ordered by
// entry name then by path.
func (a *Analyzer) AnalyzeFrom(ctx context.Context, g *callgraph.Graph, entries callgraph.EntrySet) (*Result, error) {
	res := &Result{
		Paths:   [][]string{},
		Entries: entries.Names(g),
	}
	if g.Len() == 0 || len(entries.Nodes) == 0 {
		return res, nil
	}

	onPath := make([]bool, g.Len())
	best := -1
	var found [][]int

	record := func(stack []frame) {
		depth := len(stack) - 1
		if depth < best {
			return
		}
		if depth > best {
			best = depth
			found = found[:0]
		}
		if a.maxPaths > 0 && len(found) >= a.maxPaths {
			return
		}
		path := make([]int, len(stack))
		for i, f := range stack {
			path[i] = f.node
		}
		found = append(found, path)
	}

	for _, entry := range entries.Nodes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		stack := []frame{{node: entry}}
		onPath[entry] = true

		for len(stack) > 0 {
			top := &stack[len(stack)-1]
			succ := g.Out(top.node)

			if a.maxDepth > 0 && len(stack)-1 >= a.maxDepth {
				for _, next := range succ[top.next:] {
					if !onPath[next] {
						res.Truncated = true
						break
					}
				}
				top.next = len(succ)
			}

			pushed := false
			for top.next < len(succ) {
				next := succ[top.next]
				top.next++
				if onPath[next] {
					continue
				}
				onPath[next] = true
				stack = append(stack, frame{node: next})
				pushed = true
				break
			}
			if pushed {
				continue
			}

			// Every path is recorded once, when its last node is popped.
			record(stack)
			onPath[top.node] = false
			stack = stack[:len(stack)-1]
		}
	}

	res.Depth = best
	res.Paths = make([][]string, len(found))
	for i, p := range found {
		names := make([]string, len(p))
		for j, n := range p {
			names[j] = g.Name(n)
		}
		res.Paths[i] = names
	}
	sortPaths(res.Paths)
	return res, nil
}

// Analyze runs AnalyzeFrom with the default entry set.
func (a *Analyzer) Analyze(ctx context.Context, g *callgraph.Graph) (*Result, error) {
	return a.AnalyzeFrom(ctx, g, callgraph.Entries(g, callgraph.EntrySpec{}))
}

func sortPaths(paths [][]string) {
	sort.SliceStable(paths, func(i, j int) bool {
		a, b := paths[i], paths[j]
		for k := 0; k < len(a) && k < len(b); k++ {
			if a[k] != b[k] {
				return a[k] < b[k]
			}
		}
		return len(a) < len(b)
	})
}
