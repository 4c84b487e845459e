package score

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/panbanda/callscope/pkg/analyzer/metrics"
)

// Comparison measures how well the composite ranking and PageRank alone
// recover an externally supplied set of important functions.
type Comparison struct {
	K                  int      `json:"k" toon:"k" yaml:"k"`
	GroundTruth        int      `json:"ground_truth" toon:"ground_truth" yaml:"ground_truth"`
	CompositePrecision float64  `json:"composite_precision" toon:"composite_precision" yaml:"composite_precision"`
	PageRankPrecision  float64  `json:"pagerank_precision" toon:"pagerank_precision" yaml:"pagerank_precision"`
	Improvement        float64  `json:"improvement" toon:"improvement" yaml:"improvement"`
	CompositeHits      []string `json:"composite_hits,omitempty" toon:"composite_hits,omitempty" yaml:"composite_hits,omitempty"`
	PageRankHits       []string `json:"pagerank_hits,omitempty" toon:"pagerank_hits,omitempty" yaml:"pagerank_hits,omitempty"`
}

// Compare computes precision@k of the composite ranking and of PageRank
// alone against truth. k <= 0 uses the size of truth.
func Compare(r *Ranking, m *metrics.Metrics, truth []string, k int) Comparison {
	want := make(map[string]bool, len(truth))
	for _, t := range truth {
		want[t] = true
	}
	if k <= 0 {
		k = len(want)
	}
	if k > len(r.Entries) {
		k = len(r.Entries)
	}

	c := Comparison{K: k, GroundTruth: len(want)}
	if k == 0 {
		return c
	}

	for _, e := range r.Entries[:k] {
		if want[e.Name] {
			c.CompositeHits = append(c.CompositeHits, e.Name)
		}
	}
	for _, name := range ByPageRank(m)[:k] {
		if want[name] {
			c.PageRankHits = append(c.PageRankHits, name)
		}
	}

	c.CompositePrecision = float64(len(c.CompositeHits)) / float64(k)
	c.PageRankPrecision = float64(len(c.PageRankHits)) / float64(k)
	c.Improvement = c.CompositePrecision - c.PageRankPrecision
	return c
}

// LoadGroundTruth reads one function name per line; blank lines and lines
// starting with # are ignored.
func LoadGroundTruth(path string) ([]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening ground truth: %w", err)
	}
	defer f.Close()

	var names []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		names = append(names, line)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("reading ground truth: %w", err)
	}
	return names, nil
}
