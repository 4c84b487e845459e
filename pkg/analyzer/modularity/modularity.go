// Package modularity partitions the call graph into densely connected
// modules with the Louvain method.
package modularity

import (
	"context"
	"math/rand/v2"
	"sort"

	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/callgraph"
	"gonum.org/v1/gonum/graph"
	"gonum.org/v1/gonum/graph/community"
)

const (
	DefaultResolution = 1.0
	DefaultSeed       = 1
)

// Module is one community of functions.
type Module struct {
	ID      int      `json:"id" toon:"id" yaml:"id"`
	Members []string `json:"members" toon:"members" yaml:"members"`
	// Internal counts calls between members; External counts calls that
	// cross the module boundary in either direction.
	Internal int `json:"internal_edges" toon:"internal_edges" yaml:"internal_edges"`
	External int `json:"external_edges" toon:"external_edges" yaml:"external_edges"`
}

// Size returns the member count.
func (m Module) Size() int {
	return len(m.Members)
}

// Result is a partition of every node into modules.
type Result struct {
	Modules    []Module `json:"modules" toon:"modules" yaml:"modules"`
	Q          float64  `json:"q" toon:"q" yaml:"q"`
	Resolution float64  `json:"resolution" toon:"resolution" yaml:"resolution"`
	Seed       uint64   `json:"seed" toon:"seed" yaml:"seed"`
}

// ModuleOf returns the module ID of the named node, or -1.
func (r *Result) ModuleOf(name string) int {
	for _, m := range r.Modules {
		i := sort.SearchStrings(m.Members, name)
		if i < len(m.Members) && m.Members[i] == name {
			return m.ID
		}
	}
	return -1
}

// Analyzer detects modules.
type Analyzer struct {
	resolution float64
	seed       uint64
}

// Option is a functional option for configuring Analyzer.
type Option func(*Analyzer)

// WithResolution sets the Louvain resolution parameter.
func WithResolution(r float64) Option {
	return func(a *Analyzer) {
		a.resolution = r
	}
}

// WithSeed sets the seed of the node visiting order.
func WithSeed(seed uint64) Option {
	return func(a *Analyzer) {
		a.seed = seed
	}
}

// New creates a new modularity analyzer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		resolution: DefaultResolution,
		seed:       DefaultSeed,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Compile-time check that Analyzer implements GraphAnalyzer.
var _ analyzer.GraphAnalyzer[*Result] = (*Analyzer)(nil)

// Analyze runs Louvain on the undirected projection. The random source is
// seeded from the analyzer configuration and gonum node IDs follow name
// order, so the same graph always yields the same partition.
func (a *Analyzer) Analyze(ctx context.Context, g *callgraph.Graph) (*Result, error) {
	res := &Result{
		Modules:    []Module{},
		Resolution: a.resolution,
		Seed:       a.seed,
	}
	if g.Len() == 0 {
		return res, nil
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	u := g.Undirected()
	var groups [][]int
	if u.Edges().Len() == 0 {
		for i := 0; i < g.Len(); i++ {
			groups = append(groups, []int{i})
		}
	} else {
		reduced := community.Modularize(u, a.resolution, rand.NewPCG(a.seed, a.seed))
		communities := reduced.Communities()
		res.Q = community.Q(u, communities, a.resolution)
		groups = toIndices(communities)
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	membership := make([]int, g.Len())
	for id, members := range groups {
		for _, n := range members {
			membership[n] = id
		}
	}
	internal := make([]int, len(groups))
	external := make([]int, len(groups))
	for i := 0; i < g.Len(); i++ {
		for _, j := range g.Out(i) {
			if membership[i] == membership[j] {
				internal[membership[i]]++
			} else {
				external[membership[i]]++
				external[membership[j]]++
			}
		}
	}

	for id, members := range groups {
		names := make([]string, len(members))
		for k, n := range members {
			names[k] = g.Name(n)
		}
		res.Modules = append(res.Modules, Module{
			Members:  names,
			Internal: internal[id],
			External: external[id],
		})
	}
	sort.Slice(res.Modules, func(i, j int) bool {
		return res.Modules[i].Members[0] < res.Modules[j].Members[0]
	})
	for i := range res.Modules {
		res.Modules[i].ID = i
	}
	return res, nil
}

// toIndices converts gonum communities to sorted node positions, dropping
// empty communities.
func toIndices(communities [][]graph.Node) [][]int {
	var out [][]int
	for _, c := range communities {
		if len(c) == 0 {
			continue
		}
		ids := make([]int, len(c))
		for k, n := range c {
			ids[k] = int(n.ID())
		}
		sort.Ints(ids)
		out = append(out, ids)
	}
	sort.Slice(out, func(i, j int) bool { return out[i][0] < out[j][0] })
	return out
}
