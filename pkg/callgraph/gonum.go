package callgraph

import (
	"sort"

	"github.com/panbanda/callscope/pkg/stats"
	"gonum.org/v1/gonum/graph/simple"
	"gonum.org/v1/gonum/graph/topo"
)

// Directed returns the gonum projection of g with node IDs equal to node
// positions. Self-loops are omitted since simple graphs cannot hold them.
func (g *Graph) Directed() *simple.DirectedGraph {
	d := simple.NewDirectedGraph()
	for i := range g.nodes {
		d.AddNode(simple.Node(int64(i)))
	}
	for i, succ := range g.succ {
		for _, j := range succ {
			if i != j {
				d.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
			}
		}
	}
	return d
}

// Undirected returns the undirected projection: u and v are adjacent if
// either calls the other. Self-loops are omitted.
func (g *Graph) Undirected() *simple.UndirectedGraph {
	u := simple.NewUndirectedGraph()
	for i := range g.nodes {
		u.AddNode(simple.Node(int64(i)))
	}
	for i, succ := range g.succ {
		for _, j := range succ {
			if i != j && !u.HasEdgeBetween(int64(i), int64(j)) {
				u.SetEdge(simple.Edge{F: simple.Node(int64(i)), T: simple.Node(int64(j))})
			}
		}
	}
	return u
}

// Summary provides aggregate graph statistics.
type Summary struct {
	TotalNodes       int        `json:"total_nodes" toon:"total_nodes" yaml:"total_nodes"`
	TotalEdges       int        `json:"total_edges" toon:"total_edges" yaml:"total_edges"`
	SelfLoops        int        `json:"self_loops" toon:"self_loops" yaml:"self_loops"`
	UnresolvedNodes  int        `json:"unresolved_nodes" toon:"unresolved_nodes" yaml:"unresolved_nodes"`
	AvgDegree        float64    `json:"avg_degree" toon:"avg_degree" yaml:"avg_degree"`
	MaxDegree        int        `json:"max_degree" toon:"max_degree" yaml:"max_degree"`
	P90Degree        float64    `json:"p90_degree" toon:"p90_degree" yaml:"p90_degree"`
	Density          float64    `json:"density" toon:"density" yaml:"density"`
	Components       int        `json:"components" toon:"components" yaml:"components"`
	LargestComponent int        `json:"largest_component" toon:"largest_component" yaml:"largest_component"`
	WeaklyConnected  bool       `json:"weakly_connected" toon:"weakly_connected" yaml:"weakly_connected"`
	IsCyclic         bool       `json:"is_cyclic" toon:"is_cyclic" yaml:"is_cyclic"`
	Cycles           [][]string `json:"cycles,omitempty" toon:"cycles,omitempty" yaml:"cycles,omitempty"`
}

// Summarize computes connectivity and cycle statistics.
func (g *Graph) Summarize() Summary {
	s := Summary{
		TotalNodes: len(g.nodes),
		TotalEdges: g.edges,
		SelfLoops:  g.selfLoops,
	}
	if len(g.nodes) == 0 {
		return s
	}

	for _, n := range g.nodes {
		if n.Unresolved {
			s.UnresolvedNodes++
		}
	}

	s.AvgDegree = 2 * float64(g.edges) / float64(len(g.nodes))
	degrees := make([]int, len(g.nodes))
	for i := range g.nodes {
		degrees[i] = g.InDegree(i) + g.OutDegree(i)
		s.MaxDegree = max(s.MaxDegree, degrees[i])
	}
	s.P90Degree = stats.Percentile(stats.SortedInts(degrees), 90)
	if len(g.nodes) > 1 {
		s.Density = float64(g.edges) / float64(len(g.nodes)*(len(g.nodes)-1))
	}

	components := topo.ConnectedComponents(g.Undirected())
	s.Components = len(components)
	for _, comp := range components {
		if len(comp) > s.LargestComponent {
			s.LargestComponent = len(comp)
		}
	}
	s.WeaklyConnected = s.Components == 1

	for _, scc := range topo.TarjanSCC(g.Directed()) {
		if len(scc) < 2 {
			continue
		}
		names := make([]string, len(scc))
		for k, n := range scc {
			names[k] = g.nodes[n.ID()].Name
		}
		sort.Strings(names)
		s.Cycles = append(s.Cycles, names)
	}
	for i := range g.nodes {
		if g.HasSelfLoop(i) {
			s.Cycles = append(s.Cycles, []string{g.nodes[i].Name})
		}
	}
	sort.SliceStable(s.Cycles, func(i, j int) bool {
		if s.Cycles[i][0] != s.Cycles[j][0] {
			return s.Cycles[i][0] < s.Cycles[j][0]
		}
		return len(s.Cycles[i]) > len(s.Cycles[j])
	})
	s.IsCyclic = len(s.Cycles) > 0
	return s
}
