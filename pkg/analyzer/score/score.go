// Package score combines degree, betweenness and PageRank into the structural
// centrality score and ranks functions by it.
package score

import (
	"context"
	"sort"

	"github.com/panbanda/callscope/pkg/analyzer/metrics"
)

// Analyzer ranks functions by their weighted structural centrality.
type Analyzer struct {
	weights Weights
}

// Option configures the Analyzer.
type Option func(*Analyzer)

// WithWeights sets custom weights for the composite score.
func WithWeights(w Weights) Option {
	return func(a *Analyzer) {
		a.weights = w
	}
}

// New creates a new scorer.
func New(opts ...Option) *Analyzer {
	a := &Analyzer{
		weights: DefaultWeights(),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Analyze scores every node of m.
func (a *Analyzer) Analyze(ctx context.Context, m *metrics.Metrics) (*Ranking, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Rank(m, a.weights), nil
}

// Rank computes the composite score of every node and sorts descending by
// score, breaking ties by ascending name.
func Rank(m *metrics.Metrics, w Weights) *Ranking {
	w = w.Normalized()
	n := len(m.Nodes)

	degree := make([]float64, n)
	between := make([]float64, n)
	pagerank := make([]float64, n)
	for i, nm := range m.Nodes {
		degree[i] = float64(nm.Degree())
		between[i] = nm.Betweenness
		pagerank[i] = nm.PageRank
	}
	degree = MinMax(degree)
	between = MinMax(between)
	pagerank = MinMax(pagerank)

	r := &Ranking{
		Weights: w,
		Entries: make([]Entry, n),
	}
	for i, nm := range m.Nodes {
		r.Entries[i] = Entry{
			Name:        nm.Name,
			Degree:      degree[i],
			Betweenness: between[i],
			PageRank:    pagerank[i],
			Score:       w.Degree*degree[i] + w.Betweenness*between[i] + w.PageRank*pagerank[i],
		}
	}

	sortEntries(r.Entries, func(e Entry) float64 { return e.Score })
	return r
}

// ByPageRank ranks nodes by raw PageRank alone, ties by ascending name.
func ByPageRank(m *metrics.Metrics) []string {
	entries := make([]Entry, len(m.Nodes))
	for i, nm := range m.Nodes {
		entries[i] = Entry{Name: nm.Name, PageRank: nm.PageRank}
	}
	sortEntries(entries, func(e Entry) float64 { return e.PageRank })

	names := make([]string, len(entries))
	for i, e := range entries {
		names[i] = e.Name
	}
	return names
}

func sortEntries(entries []Entry, key func(Entry) float64) {
	sort.SliceStable(entries, func(i, j int) bool {
		ki, kj := key(entries[i]), key(entries[j])
		if ki != kj {
			return ki > kj
		}
		return entries[i].Name < entries[j].Name
	})
	for i := range entries {
		entries[i].Rank = i + 1
	}
}
