package analysis

import (
	"github.com/panbanda/callscope/pkg/analyzer/critpath"
	"github.com/panbanda/callscope/pkg/analyzer/deadcode"
	"github.com/panbanda/callscope/pkg/analyzer/hotpath"
	"github.com/panbanda/callscope/pkg/analyzer/metrics"
	"github.com/panbanda/callscope/pkg/analyzer/modularity"
	"github.com/panbanda/callscope/pkg/analyzer/score"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/diag"
	"github.com/panbanda/callscope/pkg/profile"
)

// Result is the complete analysis of one call graph. A nil analysis field
// means that analysis failed; the failure is in Diagnostics.
type Result struct {
	Dir       string   `json:"dir,omitempty" toon:"dir,omitempty" yaml:"dir,omitempty"`
	Fragments []string `json:"fragments,omitempty" toon:"fragments,omitempty" yaml:"fragments,omitempty"`
	Skipped   []string `json:"skipped,omitempty" toon:"skipped,omitempty" yaml:"skipped,omitempty"`
	Cached    bool     `json:"cached,omitempty" toon:"cached,omitempty" yaml:"cached,omitempty"`

	Summary       callgraph.Summary `json:"summary" toon:"summary" yaml:"summary"`
	Entries       []string          `json:"entries" toon:"entries" yaml:"entries"`
	EntryFallback bool              `json:"entry_fallback,omitempty" toon:"entry_fallback,omitempty" yaml:"entry_fallback,omitempty"`

	Metrics      *metrics.Metrics    `json:"metrics,omitempty" toon:"metrics,omitempty" yaml:"metrics,omitempty"`
	Ranking      *score.Ranking      `json:"ranking,omitempty" toon:"ranking,omitempty" yaml:"ranking,omitempty"`
	Comparison   *score.Comparison   `json:"comparison,omitempty" toon:"comparison,omitempty" yaml:"comparison,omitempty"`
	CriticalPath *critpath.Result    `json:"critical_path,omitempty" toon:"critical_path,omitempty" yaml:"critical_path,omitempty"`
	HotPaths     *hotpath.Result     `json:"hot_paths,omitempty" toon:"hot_paths,omitempty" yaml:"hot_paths,omitempty"`
	Modularity   *modularity.Result  `json:"modularity,omitempty" toon:"modularity,omitempty" yaml:"modularity,omitempty"`
	DeadCode     *deadcode.Result    `json:"dead_code,omitempty" toon:"dead_code,omitempty" yaml:"dead_code,omitempty"`
	Functions    []FunctionStats     `json:"functions" toon:"functions" yaml:"functions"`
	Reduced      *Reduced            `json:"reduced,omitempty" toon:"reduced,omitempty" yaml:"reduced,omitempty"`
	ProfileTotal int64               `json:"profile_total,omitempty" toon:"profile_total,omitempty" yaml:"profile_total,omitempty"`
	Diagnostics  diag.Summary        `json:"diagnostics" toon:"diagnostics" yaml:"diagnostics"`

	Graph  *callgraph.Graph `json:"-" toon:"-" yaml:"-"`
	Stream *Stream          `json:"-" toon:"-" yaml:"-"`
}

// Approximate reports whether PageRank stopped at the iteration cap.
func (r *Result) Approximate() bool {
	return r.Metrics != nil && r.Metrics.PageRank.Approximate
}

// FunctionStats is one row of the per-function statistics table.
type FunctionStats struct {
	Name        string  `json:"name" toon:"name" yaml:"name"`
	InDegree    int     `json:"in_degree" toon:"in_degree" yaml:"in_degree"`
	OutDegree   int     `json:"out_degree" toon:"out_degree" yaml:"out_degree"`
	Betweenness float64 `json:"betweenness" toon:"betweenness" yaml:"betweenness"`
	PageRank    float64 `json:"pagerank" toon:"pagerank" yaml:"pagerank"`
	Score       float64 `json:"score" toon:"score" yaml:"score"`
	Rank        int     `json:"rank" toon:"rank" yaml:"rank"`
	Module      int     `json:"module" toon:"module" yaml:"module"`
	Entry       bool    `json:"entry" toon:"entry" yaml:"entry"`
	Dead        bool    `json:"dead" toon:"dead" yaml:"dead"`
	Unresolved  bool    `json:"unresolved,omitempty" toon:"unresolved,omitempty" yaml:"unresolved,omitempty"`
	Samples     int64   `json:"samples,omitempty" toon:"samples,omitempty" yaml:"samples,omitempty"`
}

// buildFunctions joins the per-analysis results into one row per node, in
// graph node order. Columns of failed analyses keep their zero value, and
// Module is -1 when modularity is unavailable.
func buildFunctions(res *Result, prof *profile.Profile) []FunctionStats {
	g := res.Graph
	rows := make([]FunctionStats, g.Len())

	entry := make(map[string]bool, len(res.Entries))
	for _, e := range res.Entries {
		entry[e] = true
	}
	var dead map[string]bool
	if res.DeadCode != nil {
		dead = make(map[string]bool, len(res.DeadCode.Dead))
		for _, d := range res.DeadCode.Dead {
			dead[d] = true
		}
	}
	module := make(map[string]int)
	if res.Modularity != nil {
		for _, m := range res.Modularity.Modules {
			for _, name := range m.Members {
				module[name] = m.ID
			}
		}
	}
	var ranked map[string]score.Entry
	if res.Ranking != nil {
		ranked = make(map[string]score.Entry, len(res.Ranking.Entries))
		for _, e := range res.Ranking.Entries {
			ranked[e.Name] = e
		}
	}

	for i, n := range g.Nodes() {
		row := FunctionStats{
			Name:       n.Name,
			InDegree:   g.InDegree(i),
			OutDegree:  g.OutDegree(i),
			Module:     -1,
			Entry:      entry[n.Name],
			Dead:       dead[n.Name],
			Unresolved: n.Unresolved,
			Samples:    prof.Samples(n.Name),
		}
		if res.Metrics != nil {
			row.Betweenness = res.Metrics.Nodes[i].Betweenness
			row.PageRank = res.Metrics.Nodes[i].PageRank
		}
		if e, ok := ranked[n.Name]; ok {
			row.Score = e.Score
			row.Rank = e.Rank
		}
		if id, ok := module[n.Name]; ok {
			row.Module = id
		}
		rows[i] = row
	}
	return rows
}

func annotateHotPaths(hp *hotpath.Result, prof *profile.Profile) {
	if hp == nil || prof == nil {
		return
	}
	for i := range hp.Paths {
		hp.Paths[i].Samples = prof.SumOf(hp.Paths[i].Nodes)
	}
}
