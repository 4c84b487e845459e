package callgraph

import (
	"fmt"
	"path"
	"sort"
)

// EntrySpec selects the roots for reachability and critical-path analysis.
type EntrySpec struct {
	Names   []string `json:"names,omitempty" toon:"names,omitempty" yaml:"names,omitempty"`
	Pattern string   `json:"pattern,omitempty" toon:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Explicit reports whether any entry points are named.
func (s EntrySpec) Explicit() bool {
	return len(s.Names) > 0 || s.Pattern != ""
}

// Validate checks the glob pattern.
func (s EntrySpec) Validate() error {
	if s.Pattern == "" {
		return nil
	}
	if _, err := path.Match(s.Pattern, ""); err != nil {
		return fmt.Errorf("invalid entry pattern %q: %w", s.Pattern, err)
	}
	return nil
}

// EntrySet is the resolved set of entry nodes.
type EntrySet struct {
	// Nodes holds positions in ascending name order.
	Nodes []int
	// Missing lists explicitly named entries that are not in the graph.
	Missing []string
	// Fallback is set when an explicit selection matched nothing and the
	// zero in-degree nodes were used instead.
	Fallback bool
}

// Names returns the entry names in ascending order.
func (e EntrySet) Names(g *Graph) []string {
	return g.names(e.Nodes)
}

// Entries resolves the selection against g. Explicit names and pattern matches are
// combined; without either, every node with no callers is an entry.
func Entries(g *Graph, spec EntrySpec) EntrySet {
	var set EntrySet
	if spec.Explicit() {
		seen := make(map[int]bool)
		for _, name := range spec.Names {
			if i, ok := g.index[name]; ok {
				seen[i] = true
			} else {
				set.Missing = append(set.Missing, name)
			}
		}
		if spec.Pattern != "" {
			for i, n := range g.nodes {
				if ok, _ := path.Match(spec.Pattern, n.Name); ok {
					seen[i] = true
				}
			}
		}
		for i := range seen {
			set.Nodes = append(set.Nodes, i)
		}
		sort.Ints(set.Nodes)
		sort.Strings(set.Missing)
		if len(set.Nodes) > 0 {
			return set
		}
		set.Fallback = true
	}

	for i := range g.nodes {
		if len(g.pred[i]) == 0 {
			set.Nodes = append(set.Nodes, i)
		}
	}
	return set
}
