package analysis

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/panbanda/callscope/internal/cache"
	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/analyzer/score"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/diag"
	"github.com/panbanda/callscope/pkg/profile"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mainEntry() *callgraph.EntrySpec {
	return &callgraph.EntrySpec{Names: []string{"main"}}
}

func TestAnalyze_EndToEnd(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)

	res, err := New().Analyze(context.Background(), dir, AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)

	assert.Equal(t, []string{"compute_cgraph.dot", "main_cgraph.dot", "unused_cgraph.dot"}, res.Fragments)
	assert.Equal(t, 12, res.Summary.TotalNodes)
	assert.Equal(t, 12, res.Summary.TotalEdges)
	assert.Equal(t, testutil.SampleFunctions, res.Graph.Names())
	for _, e := range testutil.SampleEdges {
		assert.True(t, res.Graph.HasEdge(e[0], e[1]), "missing edge %s -> %s", e[0], e[1])
	}
	assert.Equal(t, []string{"main"}, res.Entries)
	assert.Equal(t, 0, res.Diagnostics.Total)

	// Dead code: exactly unused_function, 1 of 12.
	require.NotNil(t, res.DeadCode)
	assert.Equal(t, []string{"unused_function"}, res.DeadCode.Dead)
	assert.InDelta(t, 1.0/12, res.DeadCode.Fraction, 1e-12)

	// Critical path: depth 4 via compute_series, tied with the helper_B route.
	require.NotNil(t, res.CriticalPath)
	assert.Equal(t, 4, res.CriticalPath.Depth)
	require.NotEmpty(t, res.CriticalPath.Paths)
	assert.Equal(t, []string{"main", "process", "compute_series", "square", "multiply"}, res.CriticalPath.Paths[0])

	// Modularity: not everything in one module.
	require.NotNil(t, res.Modularity)
	assert.Greater(t, len(res.Modularity.Modules), 1)
	for _, m := range res.Modularity.Modules {
		assert.Less(t, m.Size(), 12)
	}

	// Scorer: the hub functions outrank the leaf utility.
	require.NotNil(t, res.Ranking)
	add := res.Ranking.Position("add")
	assert.Less(t, res.Ranking.Position("process"), add)
	assert.Less(t, res.Ranking.Position("compute_series"), add)
	assert.Equal(t, "process", res.Ranking.Entries[0].Name)

	require.NotNil(t, res.Metrics)
	assert.False(t, res.Approximate())

	require.NotNil(t, res.HotPaths)
	require.NotEmpty(t, res.HotPaths.Paths)
	assert.Equal(t, "main", res.HotPaths.Paths[0].Nodes[0])

	require.Len(t, res.Functions, 12)
	for _, f := range res.Functions {
		assert.Equal(t, f.Name == "unused_function", f.Dead, f.Name)
		assert.Equal(t, f.Name == "main", f.Entry, f.Name)
		assert.GreaterOrEqual(t, f.Module, 0)
		assert.Positive(t, f.Rank)
	}

	require.NotNil(t, res.Reduced)
	assert.Len(t, res.Reduced.Nodes, 12)
	assert.False(t, res.Reduced.Fallback)
}

func TestAnalyze_DefaultEntries(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	res, err := New().Analyze(context.Background(), dir, AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"main", "unused_function"}, res.Entries)
	assert.Empty(t, res.DeadCode.Dead)
}

func TestAnalyze_EntryFromConfig(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Entry.Pattern = "ma*"
	res, err := New(WithConfig(cfg)).Analyze(context.Background(), testutil.WriteSampleFragments(t), AnalyzeOptions{})
	require.NoError(t, err)
	assert.Equal(t, []string{"main"}, res.Entries)
	assert.Equal(t, []string{"unused_function"}, res.DeadCode.Dead)
}

func TestAnalyze_InputMissing(t *testing.T) {
	tests := []struct {
		name  string
		setup func(t *testing.T) string
	}{
		{"absent", func(t *testing.T) string { return filepath.Join(t.TempDir(), "nope") }},
		{"empty", func(t *testing.T) string { return t.TempDir() }},
		{"only_combined_output", func(t *testing.T) string {
			dir := t.TempDir()
			testutil.WriteFile(t, filepath.Join(dir, "old.dot"), "// callscope: combined call graph\ndigraph callgraph {\n}\n")
			return dir
		}},
		{"all_malformed", func(t *testing.T) string {
			dir := t.TempDir()
			testutil.WriteFile(t, filepath.Join(dir, "bad.dot"), "digraph bad {\n  a -> b;\n")
			return dir
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New().Analyze(context.Background(), tt.setup(t), AnalyzeOptions{})
			require.Error(t, err)
			assert.True(t, errors.Is(err, diag.ErrInputMissing), "got %v", err)
		})
	}
}

func TestAnalyze_MalformedFragmentSkipped(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	testutil.WriteFile(t, filepath.Join(dir, "broken_cgraph.dot"), "digraph broken {\n  Node1 [label=\"x\"];\n")

	res, err := New().Analyze(context.Background(), dir, AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)
	assert.Equal(t, []string{"broken_cgraph.dot"}, res.Skipped)
	assert.Equal(t, 1, res.Diagnostics.ByKind[diag.KindMalformedFragment])
	assert.Equal(t, 12, res.Summary.TotalNodes)
}

func TestAnalyze_UnresolvedReference(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	testutil.WriteFile(t, filepath.Join(dir, "extra_cgraph.dot"), testutil.Digraph("extra",
		`Node1 [label="extra"];`,
		`Node1 -> Node9;`,
	))

	res, err := New().Analyze(context.Background(), dir, AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Diagnostics.ByKind[diag.KindUnresolvedReference])
	require.True(t, res.Graph.Has("extra_cgraph.dot:Node9"))
	assert.False(t, res.Graph.Has("Node9"))

	for _, f := range res.Functions {
		if f.Name == "extra_cgraph.dot:Node9" {
			assert.True(t, f.Unresolved)
		}
	}
}

func TestAnalyze_FailureIsolation(t *testing.T) {
	var logs bytes.Buffer
	svc := New(WithLogger(slog.New(slog.NewTextHandler(&logs, nil))))
	svc.stageHook = func(stage string) {
		if stage == StageModularity {
			panic("boom")
		}
	}

	res, err := svc.Analyze(context.Background(), testutil.WriteSampleFragments(t), AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)

	assert.Nil(t, res.Modularity)
	assert.NotNil(t, res.Ranking)
	assert.NotNil(t, res.CriticalPath)
	assert.NotNil(t, res.HotPaths)
	assert.NotNil(t, res.DeadCode)

	require.Equal(t, 1, res.Diagnostics.ByKind[diag.KindAnalysisFailed])
	d := res.Diagnostics.Items[0]
	assert.Equal(t, StageModularity, d.Subject)
	assert.Contains(t, d.Message, "boom")
	for _, f := range res.Functions {
		assert.Equal(t, -1, f.Module)
	}
	assert.Contains(t, logs.String(), "analysis_failed")
}

func TestAnalyze_NonConvergence(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.PageRank.MaxIterations = 1

	res, err := New(WithConfig(cfg)).Analyze(context.Background(), testutil.WriteSampleFragments(t), AnalyzeOptions{})
	require.NoError(t, err)
	assert.True(t, res.Approximate())
	assert.Equal(t, 1, res.Diagnostics.ByKind[diag.KindNonConvergence])
	assert.NotNil(t, res.Ranking)
}

func TestAnalyze_Weights(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	w := score.Weights{PageRank: 1}
	res, err := New().Analyze(context.Background(), dir, AnalyzeOptions{Weights: &w})
	require.NoError(t, err)
	assert.Equal(t, score.ByPageRank(res.Metrics)[0], res.Ranking.Entries[0].Name)

	bad := score.Weights{Degree: -1, PageRank: 1}
	_, err = New().Analyze(context.Background(), dir, AnalyzeOptions{Weights: &bad})
	assert.Error(t, err)
}

func TestAnalyze_Cache(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	c, err := cache.New(filepath.Join(t.TempDir(), "cache"), 24, true)
	require.NoError(t, err)
	svc := New(WithCache(c))

	first, err := svc.Analyze(context.Background(), dir, AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)
	assert.False(t, first.Cached)

	second, err := svc.Analyze(context.Background(), dir, AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)
	assert.True(t, second.Cached)
	assert.Equal(t, first.Stream.Resolved, second.Stream.Resolved)
	assert.Equal(t, first.Ranking, second.Ranking)

	testutil.WriteFile(t, filepath.Join(dir, "unused_cgraph.dot"), testutil.Digraph("u", `Node1 [label="other"];`))
	third, err := svc.Analyze(context.Background(), dir, AnalyzeOptions{Entry: mainEntry()})
	require.NoError(t, err)
	assert.False(t, third.Cached)
	assert.True(t, third.Graph.Has("other"))
}

func TestAnalyze_Progress(t *testing.T) {
	var (
		mu   sync.Mutex
		seen []string
	)
	tracker := analyzer.NewTracker(func(_, _ int, name string) {
		mu.Lock()
		seen = append(seen, name)
		mu.Unlock()
	})
	ctx := analyzer.WithTracker(context.Background(), tracker)

	var loaded atomic.Int32
	svc := New(WithProgress(func() { loaded.Add(1) }))
	_, err := svc.Analyze(ctx, testutil.WriteSampleFragments(t), AnalyzeOptions{})
	require.NoError(t, err)

	assert.ElementsMatch(t, Stages, seen)
	assert.Equal(t, len(Stages), tracker.Total())
	assert.Equal(t, int32(3), loaded.Load())
}

func TestAnalyze_ProfileAndGroundTruth(t *testing.T) {
	prof, err := profile.Parse(strings.NewReader("function,samples\nsquare,30\nmultiply,20\nghost,5\n"))
	require.NoError(t, err)

	res, err := New().Analyze(context.Background(), testutil.WriteSampleFragments(t), AnalyzeOptions{
		Entry:       mainEntry(),
		Profile:     prof,
		GroundTruth: []string{"process", "compute_series"},
		TopK:        2,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(55), res.ProfileTotal)
	for _, f := range res.Functions {
		assert.Equal(t, prof.Samples(f.Name), f.Samples, f.Name)
	}
	top := res.HotPaths.Paths[0]
	assert.Equal(t, int64(50), top.Samples)

	require.NotNil(t, res.Comparison)
	assert.Equal(t, 2, res.Comparison.K)
}

func TestAnalyze_ReducedFallback(t *testing.T) {
	threshold := 0.99
	res, err := New().Analyze(context.Background(), testutil.WriteSampleFragments(t), AnalyzeOptions{Threshold: &threshold})
	require.NoError(t, err)

	require.NotNil(t, res.Reduced)
	assert.True(t, res.Reduced.Fallback)
	assert.Equal(t, []string{res.Ranking.Entries[0].Name}, res.Reduced.Nodes)

	out, err := res.ReducedDOT()
	require.NoError(t, err)
	assert.Contains(t, string(out), "digraph reduced")
	assert.Contains(t, string(out), res.Reduced.Nodes[0])
	assert.Contains(t, string(out), "rank=1")
}

func TestReduce(t *testing.T) {
	r := &score.Ranking{Entries: []score.Entry{
		{Rank: 1, Name: "b", Score: 0.9},
		{Rank: 2, Name: "a", Score: 0.5},
		{Rank: 3, Name: "c", Score: 0.1},
	}}
	red := Reduce(r, 0.5)
	assert.Equal(t, []string{"a", "b"}, red.Nodes)
	assert.False(t, red.Fallback)

	red = Reduce(r, 0.95)
	assert.Equal(t, []string{"b"}, red.Nodes)
	assert.True(t, red.Fallback)

	red = Reduce(&score.Ranking{}, 0.5)
	assert.Empty(t, red.Nodes)
}

func TestAnalyzeGraph_Empty(t *testing.T) {
	res, err := New().AnalyzeGraph(context.Background(), callgraph.Empty(), AnalyzeOptions{})
	require.NoError(t, err)

	assert.Equal(t, 1, res.Diagnostics.ByKind[diag.KindEmptyGraph])
	assert.Empty(t, res.Functions)
	assert.Equal(t, 0, res.CriticalPath.Depth)
	assert.Empty(t, res.Modularity.Modules)
	assert.Empty(t, res.DeadCode.Dead)
	assert.Empty(t, res.Ranking.Entries)
	assert.Empty(t, res.HotPaths.Paths)
}

func TestPrepare_Idempotent(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	svc := New()

	first, err := svc.Prepare(context.Background(), dir)
	require.NoError(t, err)

	// Writing the combined stream back into the directory must not change
	// the next combination.
	require.NoError(t, os.WriteFile(filepath.Join(dir, "combined.dot"), []byte(first.Combined), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "previous.dot"), []byte(first.Combined), 0644))

	second, err := svc.Prepare(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, first.Combined, second.Combined)
	assert.Equal(t, first.Resolved, second.Resolved)
	assert.Equal(t, 3, second.Scopes)
}

func TestAnalyze_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := New().Analyze(ctx, testutil.WriteSampleFragments(t), AnalyzeOptions{})
	assert.ErrorIs(t, err, context.Canceled)
}
