package callgraph

import (
	"fmt"

	"gonum.org/v1/gonum/graph/encoding"
	"gonum.org/v1/gonum/graph/encoding/dot"
	"gonum.org/v1/gonum/graph/simple"
)

// Subgraph returns the graph induced by the named nodes. Unknown names are
// ignored.
func (g *Graph) Subgraph(names []string) *Graph {
	keep := make(map[int]bool, len(names))
	b := NewBuilder()
	for _, name := range names {
		i, ok := g.index[name]
		if !ok {
			continue
		}
		keep[i] = true
		n := g.nodes[i]
		if len(n.Sources) == 0 {
			b.AddNode(n.Name, "", n.Unresolved)
		}
		for _, src := range n.Sources {
			b.AddNode(n.Name, src, n.Unresolved)
		}
	}
	for i := range keep {
		for _, j := range g.succ[i] {
			if keep[j] {
				b.AddEdge(g.nodes[i].Name, g.nodes[j].Name)
			}
		}
	}
	return b.Build()
}

// dotNode is a node rendered with its function name as DOT ID.
type dotNode struct {
	id    int64
	name  string
	attrs []encoding.Attribute
}

func (n dotNode) ID() int64 { return n.id }

func (n dotNode) DOTID() string { return n.name }

func (n dotNode) Attributes() []encoding.Attribute { return n.attrs }

// MarshalDOT renders g as a DOT digraph. attrs, when non-nil, supplies extra
// node attributes by name. Self-loops are not rendered.
func (g *Graph) MarshalDOT(name string, attrs func(string) []encoding.Attribute) ([]byte, error) {
	d := simple.NewDirectedGraph()
	nodes := make([]dotNode, len(g.nodes))
	for i, n := range g.nodes {
		nodes[i] = dotNode{id: int64(i), name: n.Name}
		if attrs != nil {
			nodes[i].attrs = attrs(n.Name)
		}
		d.AddNode(nodes[i])
	}
	for i, succ := range g.succ {
		for _, j := range succ {
			if i != j {
				d.SetEdge(simple.Edge{F: nodes[i], T: nodes[j]})
			}
		}
	}
	out, err := dot.Marshal(d, name, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling %s: %w", name, err)
	}
	return out, nil
}
