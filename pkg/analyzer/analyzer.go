// Package analyzer defines the contract shared by the call-graph analyses.
package analyzer

import (
	"context"

	"github.com/panbanda/callscope/pkg/callgraph"
)

// GraphAnalyzer is implemented by every analysis over the canonical graph.
// Implementations only read the graph, so one graph may be handed to several
// analyzers running concurrently.
type GraphAnalyzer[T any] interface {
	// Analyze runs the analysis. The context carries cancellation and an
	// optional progress tracker.
	Analyze(ctx context.Context, g *callgraph.Graph) (T, error)
}

// EntryAnalyzer is a GraphAnalyzer rooted at a set of entry nodes.
type EntryAnalyzer[T any] interface {
	AnalyzeFrom(ctx context.Context, g *callgraph.Graph, entries callgraph.EntrySet) (T, error)
}
