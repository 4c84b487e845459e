package score

import (
	"fmt"
	"strconv"
	"strings"
)

// Weights defines the weight of each normalized metric in the composite
// structural centrality score.
type Weights struct {
	Degree      float64 `json:"degree" toon:"degree" yaml:"degree" koanf:"degree" toml:"degree"`
	Betweenness float64 `json:"betweenness" toon:"betweenness" yaml:"betweenness" koanf:"betweenness" toml:"betweenness"`
	PageRank    float64 `json:"pagerank" toon:"pagerank" yaml:"pagerank" koanf:"pagerank" toml:"pagerank"`
}

// DefaultWeights returns equal thirds.
func DefaultWeights() Weights {
	return Weights{
		Degree:      1.0 / 3.0,
		Betweenness: 1.0 / 3.0,
		PageRank:    1.0 / 3.0,
	}
}

// Validate rejects negative weights and an all-zero weighting.
func (w Weights) Validate() error {
	if w.Degree < 0 || w.Betweenness < 0 || w.PageRank < 0 {
		return fmt.Errorf("weights must be non-negative: %s", w)
	}
	if w.Degree+w.Betweenness+w.PageRank == 0 {
		return fmt.Errorf("at least one weight must be positive")
	}
	return nil
}

// Normalized returns the weights scaled to sum to 1.
func (w Weights) Normalized() Weights {
	total := w.Degree + w.Betweenness + w.PageRank
	if total <= 0 {
		return DefaultWeights()
	}
	return Weights{
		Degree:      w.Degree / total,
		Betweenness: w.Betweenness / total,
		PageRank:    w.PageRank / total,
	}
}

func (w Weights) String() string {
	return fmt.Sprintf("degree=%.3f,betweenness=%.3f,pagerank=%.3f", w.Degree, w.Betweenness, w.PageRank)
}

// ParseWeights parses "degree,betweenness,pagerank", e.g. "1,2,1" or
// "0.5,0.25,0.25".
func ParseWeights(s string) (Weights, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 3 {
		return Weights{}, fmt.Errorf("weights %q: want degree,betweenness,pagerank", s)
	}
	vals := make([]float64, 3)
	for i, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err != nil {
			return Weights{}, fmt.Errorf("weights %q: %w", s, err)
		}
		vals[i] = v
	}
	w := Weights{Degree: vals[0], Betweenness: vals[1], PageRank: vals[2]}
	if err := w.Validate(); err != nil {
		return Weights{}, err
	}
	return w, nil
}

// Entry is one function in the ranking.
type Entry struct {
	Rank        int     `json:"rank" toon:"rank" yaml:"rank"`
	Name        string  `json:"name" toon:"name" yaml:"name"`
	Score       float64 `json:"score" toon:"score" yaml:"score"`
	Degree      float64 `json:"degree" toon:"degree" yaml:"degree"`
	Betweenness float64 `json:"betweenness" toon:"betweenness" yaml:"betweenness"`
	PageRank    float64 `json:"pagerank" toon:"pagerank" yaml:"pagerank"`
}

// Ranking is the composite score of every function, highest first.
type Ranking struct {
	Weights Weights `json:"weights" toon:"weights" yaml:"weights"`
	Entries []Entry `json:"entries" toon:"entries" yaml:"entries"`
}

// Scores returns the composite score by function name.
func (r *Ranking) Scores() map[string]float64 {
	out := make(map[string]float64, len(r.Entries))
	for _, e := range r.Entries {
		out[e.Name] = e.Score
	}
	return out
}

// Position returns the 1-based rank of name, or 0 when absent.
func (r *Ranking) Position(name string) int {
	for _, e := range r.Entries {
		if e.Name == name {
			return e.Rank
		}
	}
	return 0
}

// Top returns at most k leading entries.
func (r *Ranking) Top(k int) []Entry {
	if k <= 0 || k >= len(r.Entries) {
		return r.Entries
	}
	return r.Entries[:k]
}
