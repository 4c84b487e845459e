// Package deadcode reports functions that no entry point can reach.
package deadcode

import (
	"context"
	"sync"

	"github.com/RoaringBitmap/roaring/v2"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/callgraph"
)

// ReachabilitySet tracks visited node positions in a Roaring bitmap.
type ReachabilitySet struct {
	bitmap     *roaring.Bitmap
	totalNodes uint32
	mu         sync.RWMutex
}

// NewReachabilitySet creates an empty set over capacity nodes.
func NewReachabilitySet(capacity uint32) *ReachabilitySet {
	return &ReachabilitySet{
		bitmap:     roaring.New(),
		totalNodes: capacity,
	}
}

// Set marks a node as reachable.
func (r *ReachabilitySet) Set(index uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bitmap.Add(index)
}

// IsSet checks if a node is reachable.
func (r *ReachabilitySet) IsSet(index uint32) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bitmap.Contains(index)
}

// SetBatch marks multiple nodes as reachable.
func (r *ReachabilitySet) SetBatch(indices []uint32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.bitmap.AddMany(indices)
}

// CountSet returns the number of reachable nodes.
func (r *ReachabilitySet) CountSet() uint64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.bitmap.GetCardinality()
}

// Unset returns the positions below capacity that were never reached, in
// ascending order.
func (r *ReachabilitySet) Unset() []uint32 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	all := roaring.New()
	all.AddRange(0, uint64(r.totalNodes))
	all.AndNot(r.bitmap)
	return all.ToArray()
}

// Result is the dead-code report of one graph.
type Result struct {
	Dead       []string `json:"dead" toon:"dead" yaml:"dead"`
	DeadCount  int      `json:"dead_count" toon:"dead_count" yaml:"dead_count"`
	Total      int      `json:"total" toon:"total" yaml:"total"`
	Reachable  int      `json:"reachable" toon:"reachable" yaml:"reachable"`
	Fraction   float64  `json:"fraction" toon:"fraction" yaml:"fraction"`
	Percentage float64  `json:"percentage" toon:"percentage" yaml:"percentage"`
	Entries    []string `json:"entries" toon:"entries" yaml:"entries"`
}

// IsDead reports whether the named function is in the dead set.
func (r *Result) IsDead(name string) bool {
	for _, d := range r.Dead {
		if d == name {
			return true
		}
	}
	return false
}

// Analyzer detects unreachable functions.
type Analyzer struct{}

// New creates a new dead code analyzer.
func New() *Analyzer {
	return &Analyzer{}
}

// Compile-time check that Analyzer implements EntryAnalyzer.
var _ analyzer.EntryAnalyzer[*Result] = (*Analyzer)(nil)

// AnalyzeFrom marks everything reachable from the entries and reports the
// rest as dead.
func (a *Analyzer) AnalyzeFrom(ctx context.Context, g *callgraph.Graph, entries callgraph.EntrySet) (*Result, error) {
	res := &Result{
		Dead:    []string{},
		Total:   g.Len(),
		Entries: entries.Names(g),
	}
	if g.Len() == 0 {
		return res, nil
	}

	reach := Reachable(g, entries.Nodes)
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	for _, i := range reach.Unset() {
		res.Dead = append(res.Dead, g.Name(int(i)))
	}
	res.DeadCount = len(res.Dead)
	res.Reachable = int(reach.CountSet())
	res.Fraction = float64(res.DeadCount) / float64(res.Total)
	res.Percentage = res.Fraction * 100
	return res, nil
}

// Analyze runs AnalyzeFrom with the default entry set.
func (a *Analyzer) Analyze(ctx context.Context, g *callgraph.Graph) (*Result, error) {
	return a.AnalyzeFrom(ctx, g, callgraph.Entries(g, callgraph.EntrySpec{}))
}

// Reachable runs a breadth-first traversal from all roots at once.
func Reachable(g *callgraph.Graph, roots []int) *ReachabilitySet {
	reach := NewReachabilitySet(uint32(g.Len()))

	queue := make([]uint32, 0, g.Len())
	for _, r := range roots {
		queue = append(queue, uint32(r))
	}
	reach.SetBatch(queue)

	// Index-based queue avoids reslicing.
	head := 0
	for head < len(queue) {
		current := queue[head]
		head++
		for _, next := range g.Out(int(current)) {
			if !reach.IsSet(uint32(next)) {
				reach.Set(uint32(next))
				queue = append(queue, uint32(next))
			}
		}
	}
	return reach
}
