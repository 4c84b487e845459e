package analysis

import (
	"fmt"
	"sort"

	"github.com/panbanda/callscope/pkg/analyzer/score"
	"gonum.org/v1/gonum/graph/encoding"
)

// Reduced selects the functions kept in the reduced call graph.
type Reduced struct {
	Threshold float64  `json:"threshold" toon:"threshold" yaml:"threshold"`
	Nodes     []string `json:"nodes" toon:"nodes" yaml:"nodes"`
	// Fallback is set when no function reached the threshold and the top
	// tenth by score was kept instead.
	Fallback bool `json:"fallback,omitempty" toon:"fallback,omitempty" yaml:"fallback,omitempty"`
}

// Reduce keeps every function whose composite score is at least threshold.
// When none qualifies, the top max(1, n/10) functions by score are kept.
// Nodes are returned in ascending name order.
func Reduce(r *score.Ranking, threshold float64) *Reduced {
	red := &Reduced{Threshold: threshold, Nodes: []string{}}
	for _, e := range r.Entries {
		if e.Score >= threshold {
			red.Nodes = append(red.Nodes, e.Name)
		}
	}
	if len(red.Nodes) == 0 && len(r.Entries) > 0 {
		n := len(r.Entries) / 10
		if n < 1 {
			n = 1
		}
		for _, e := range r.Top(n) {
			red.Nodes = append(red.Nodes, e.Name)
		}
		red.Fallback = true
	}
	sort.Strings(red.Nodes)
	return red
}

// ReducedDOT renders the reduced call graph as DOT. Each node carries its
// composite score and rank as attributes.
func (r *Result) ReducedDOT() ([]byte, error) {
	if r.Reduced == nil || r.Ranking == nil {
		return nil, fmt.Errorf("no ranking available for the reduced graph")
	}
	scores := make(map[string]score.Entry, len(r.Ranking.Entries))
	for _, e := range r.Ranking.Entries {
		scores[e.Name] = e
	}
	sub := r.Graph.Subgraph(r.Reduced.Nodes)
	return sub.MarshalDOT("reduced", func(name string) []encoding.Attribute {
		e := scores[name]
		return []encoding.Attribute{
			{Key: "score", Value: fmt.Sprintf("%.4f", e.Score)},
			{Key: "rank", Value: fmt.Sprintf("%d", e.Rank)},
		}
	})
}
