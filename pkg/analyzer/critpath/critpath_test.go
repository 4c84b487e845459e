package critpath

import (
	"context"
	"testing"

	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func edges(pairs ...string) []callgraph.Edge {
	var out []callgraph.Edge
	for i := 0; i+1 < len(pairs); i += 2 {
		out = append(out, callgraph.Edge{From: pairs[i], To: pairs[i+1]})
	}
	return out
}

func sampleGraph() *callgraph.Graph {
	var es []callgraph.Edge
	for _, e := range testutil.SampleEdges {
		es = append(es, callgraph.Edge{From: e[0], To: e[1]})
	}
	return callgraph.New(testutil.SampleFunctions, es)
}

func TestAnalyzeFrom_Sample(t *testing.T) {
	g := sampleGraph()
	entries := callgraph.Entries(g, callgraph.EntrySpec{Names: []string{"main"}})

	res, err := New().AnalyzeFrom(context.Background(), g, entries)
	require.NoError(t, err)

	assert.Equal(t, 4, res.Depth)
	assert.Equal(t, []string{"main"}, res.Entries)
	require.Len(t, res.Paths, 2)
	assert.Equal(t, []string{"main", "process", "compute_series", "square", "multiply"}, res.Paths[0])
	assert.Equal(t, []string{"main", "process", "helper_B", "square", "multiply"}, res.Paths[1])
	assert.False(t, res.Truncated)
}

func TestAnalyze_DefaultEntries(t *testing.T) {
	res, err := New().Analyze(context.Background(), sampleGraph())
	require.NoError(t, err)
	assert.Equal(t, 4, res.Depth)
	assert.Equal(t, []string{"main", "unused_function"}, res.Entries)
	assert.Len(t, res.Paths, 2)
}

func TestAnalyzeFrom_Cycles(t *testing.T) {
	tests := []struct {
		name  string
		edges []callgraph.Edge
		entry string
		depth int
		paths [][]string
	}{
		{
			name:  "mutual_recursion",
			edges: edges("a", "b", "b", "a"),
			entry: "a",
			depth: 1,
			paths: [][]string{{"a", "b"}},
		},
		{
			name:  "self_loop",
			edges: edges("f", "f", "f", "g"),
			entry: "f",
			depth: 1,
			paths: [][]string{{"f", "g"}},
		},
		{
			name:  "cycle_with_exit",
			edges: edges("s", "x", "x", "y", "y", "x", "y", "z"),
			entry: "s",
			depth: 3,
			paths: [][]string{{"s", "x", "y", "z"}},
		},
		{
			name:  "diamond",
			edges: edges("r", "a", "r", "b", "a", "c", "b", "c"),
			entry: "r",
			depth: 2,
			paths: [][]string{{"r", "a", "c"}, {"r", "b", "c"}},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := callgraph.New(nil, tt.edges)
			entries := callgraph.Entries(g, callgraph.EntrySpec{Names: []string{tt.entry}})
			res, err := New().AnalyzeFrom(context.Background(), g, entries)
			require.NoError(t, err)
			assert.Equal(t, tt.depth, res.Depth)
			assert.Equal(t, tt.paths, res.Paths)
		})
	}
}

func TestAnalyzeFrom_TiesAcrossEntries(t *testing.T) {
	g := callgraph.New(nil, edges("b", "y", "a", "x", "a", "w"))
	entries := callgraph.Entries(g, callgraph.EntrySpec{})
	res, err := New().AnalyzeFrom(context.Background(), g, entries)
	require.NoError(t, err)

	assert.Equal(t, 1, res.Depth)
	assert.Equal(t, [][]string{{"a", "w"}, {"a", "x"}, {"b", "y"}}, res.Paths)
}

func TestAnalyzeFrom_MaxDepth(t *testing.T) {
	g := callgraph.New(nil, edges("a", "b", "b", "c", "c", "d"))
	entries := callgraph.Entries(g, callgraph.EntrySpec{})

	res, err := New(WithMaxDepth(2)).AnalyzeFrom(context.Background(), g, entries)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Depth)
	assert.Equal(t, [][]string{{"a", "b", "c"}}, res.Paths)
	assert.True(t, res.Truncated)

	res, err = New(WithMaxDepth(3)).AnalyzeFrom(context.Background(), g, entries)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Depth)
	assert.False(t, res.Truncated)
}

func TestAnalyzeFrom_MaxPaths(t *testing.T) {
	g := callgraph.New(nil, edges("r", "a", "r", "b", "r", "c"))
	entries := callgraph.Entries(g, callgraph.EntrySpec{})
	res, err := New(WithMaxPaths(2)).AnalyzeFrom(context.Background(), g, entries)
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"r", "a"}, {"r", "b"}}, res.Paths)
}

func TestAnalyzeFrom_Empty(t *testing.T) {
	res, err := New().AnalyzeFrom(context.Background(), callgraph.Empty(), callgraph.EntrySet{})
	require.NoError(t, err)
	assert.Equal(t, 0, res.Depth)
	assert.Empty(t, res.Paths)

	g := callgraph.New(nil, edges("a", "b", "b", "a"))
	res, err = New().Analyze(context.Background(), g)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Depth)
	assert.Empty(t, res.Entries)
}

func TestAnalyzeFrom_Cancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	g := sampleGraph()
	_, err := New().AnalyzeFrom(ctx, g, callgraph.Entries(g, callgraph.EntrySpec{}))
	assert.ErrorIs(t, err, context.Canceled)
}
