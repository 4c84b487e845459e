// Package callgraph holds the canonical call graph: a deduplicated directed
// graph keyed by function name, built once and read concurrently afterwards.
package callgraph

import "sort"

// Node is a function in the canonical graph.
type Node struct {
	Name string `json:"name" toon:"name" yaml:"name"`
	// Unresolved marks nodes named by a raw identifier that had no
	// declaration in its fragment.
	Unresolved bool     `json:"unresolved,omitempty" toon:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Sources    []string `json:"sources,omitempty" toon:"sources,omitempty" yaml:"sources,omitempty"`
}

// Edge is a caller/callee pair.
type Edge struct {
	From string `json:"from" toon:"from" yaml:"from"`
	To   string `json:"to" toon:"to" yaml:"to"`
}

// Graph is the immutable canonical call graph. Nodes are ordered by name and
// addressed by their position; adjacency lists are sorted by that position.
// Slices returned by Out and In are shared and must not be modified.
type Graph struct {
	nodes     []Node
	index     map[string]int
	succ      [][]int
	pred      [][]int
	edges     int
	selfLoops int
}

// Len returns the number of nodes.
func (g *Graph) Len() int { return len(g.nodes) }

// EdgeCount returns the number of distinct edges, self-loops included.
func (g *Graph) EdgeCount() int { return g.edges }

// SelfLoopCount returns the number of self-calling functions.
func (g *Graph) SelfLoopCount() int { return g.selfLoops }

// Name returns the name of node i.
func (g *Graph) Name(i int) string { return g.nodes[i].Name }

// Node returns node i.
func (g *Graph) Node(i int) Node { return g.nodes[i] }

// Index returns the position of the named node.
func (g *Graph) Index(name string) (int, bool) {
	i, ok := g.index[name]
	return i, ok
}

// Has reports whether the graph contains the named node.
func (g *Graph) Has(name string) bool {
	_, ok := g.index[name]
	return ok
}

// Names returns all node names in ascending order.
func (g *Graph) Names() []string {
	out := make([]string, len(g.nodes))
	for i, n := range g.nodes {
		out[i] = n.Name
	}
	return out
}

// Nodes returns a copy of the node list.
func (g *Graph) Nodes() []Node {
	return append([]Node(nil), g.nodes...)
}

// Out returns the successor positions of node i.
func (g *Graph) Out(i int) []int { return g.succ[i] }

// In returns the predecessor positions of node i.
func (g *Graph) In(i int) []int { return g.pred[i] }

// OutDegree returns the number of distinct callees of node i.
func (g *Graph) OutDegree(i int) int { return len(g.succ[i]) }

// InDegree returns the number of distinct callers of node i.
func (g *Graph) InDegree(i int) int { return len(g.pred[i]) }

// HasSelfLoop reports whether node i calls itself.
func (g *Graph) HasSelfLoop(i int) bool {
	j := sort.SearchInts(g.succ[i], i)
	return j < len(g.succ[i]) && g.succ[i][j] == i
}

// HasEdge reports whether from calls to.
func (g *Graph) HasEdge(from, to string) bool {
	fi, ok := g.index[from]
	if !ok {
		return false
	}
	ti, ok := g.index[to]
	if !ok {
		return false
	}
	j := sort.SearchInts(g.succ[fi], ti)
	return j < len(g.succ[fi]) && g.succ[fi][j] == ti
}

// Successors returns the callees of the named node in ascending order.
func (g *Graph) Successors(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.names(g.succ[i])
}

// Predecessors returns the callers of the named node in ascending order.
func (g *Graph) Predecessors(name string) []string {
	i, ok := g.index[name]
	if !ok {
		return nil
	}
	return g.names(g.pred[i])
}

// Edges returns all edges ordered by caller then callee.
func (g *Graph) Edges() []Edge {
	out := make([]Edge, 0, g.edges)
	for i, succ := range g.succ {
		for _, j := range succ {
			out = append(out, Edge{From: g.nodes[i].Name, To: g.nodes[j].Name})
		}
	}
	return out
}

func (g *Graph) names(idx []int) []string {
	out := make([]string, len(idx))
	for k, i := range idx {
		out[k] = g.nodes[i].Name
	}
	return out
}

// Builder accumulates nodes and edges before freezing them into a Graph.
type Builder struct {
	nodes map[string]*Node
	edges map[Edge]struct{}
}

// NewBuilder creates an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		nodes: make(map[string]*Node),
		edges: make(map[Edge]struct{}),
	}
}

// AddNode records a node. A node is unresolved only if every mention of it
// was unresolved.
func (b *Builder) AddNode(name, source string, unresolved bool) {
	n, ok := b.nodes[name]
	if !ok {
		n = &Node{Name: name, Unresolved: unresolved}
		b.nodes[name] = n
	} else if !unresolved {
		n.Unresolved = false
	}
	if source != "" && (len(n.Sources) == 0 || n.Sources[len(n.Sources)-1] != source) {
		n.Sources = append(n.Sources, source)
	}
}

// AddEdge records a call, creating both endpoints on first reference.
// Duplicate calls collapse to one edge.
func (b *Builder) AddEdge(from, to string) {
	if _, ok := b.nodes[from]; !ok {
		b.AddNode(from, "", false)
	}
	if _, ok := b.nodes[to]; !ok {
		b.AddNode(to, "", false)
	}
	b.edges[Edge{From: from, To: to}] = struct{}{}
}

// Build freezes the accumulated nodes and edges.
func (b *Builder) Build() *Graph {
	g := &Graph{
		nodes: make([]Node, 0, len(b.nodes)),
		index: make(map[string]int, len(b.nodes)),
	}
	for _, n := range b.nodes {
		sources := append([]string(nil), n.Sources...)
		sort.Strings(sources)
		sources = compact(sources)
		g.nodes = append(g.nodes, Node{Name: n.Name, Unresolved: n.Unresolved, Sources: sources})
	}
	sort.Slice(g.nodes, func(i, j int) bool { return g.nodes[i].Name < g.nodes[j].Name })
	for i, n := range g.nodes {
		g.index[n.Name] = i
	}

	g.succ = make([][]int, len(g.nodes))
	g.pred = make([][]int, len(g.nodes))
	for e := range b.edges {
		from, to := g.index[e.From], g.index[e.To]
		g.succ[from] = append(g.succ[from], to)
		g.pred[to] = append(g.pred[to], from)
		if from == to {
			g.selfLoops++
		}
	}
	for i := range g.nodes {
		sort.Ints(g.succ[i])
		sort.Ints(g.pred[i])
	}
	g.edges = len(b.edges)
	return g
}

func compact(s []string) []string {
	if len(s) < 2 {
		return s
	}
	out := s[:1]
	for _, v := range s[1:] {
		if v != out[len(out)-1] {
			out = append(out, v)
		}
	}
	return out
}

// New builds a graph from explicit node names and edges.
func New(nodes []string, edges []Edge) *Graph {
	b := NewBuilder()
	for _, n := range nodes {
		b.AddNode(n, "", false)
	}
	for _, e := range edges {
		b.AddEdge(e.From, e.To)
	}
	return b.Build()
}

// Empty returns a graph with no nodes.
func Empty() *Graph {
	return NewBuilder().Build()
}
