package mcpserver

// Tool descriptions with interpretation guidance for LLMs.

func describeAnalyzeCallgraph() string {
	return `Analyzes the call graph of a C program from a directory of per-file DOT call-graph fragments (as produced by Doxygen) and reports structurally important functions.

USE WHEN:
- Deciding which functions to read first in an unfamiliar C codebase
- Finding unreachable functions that can be deleted
- Understanding the deepest call chains before changing a leaf function
- Splitting a program into cohesive modules

INTERPRETING RESULTS:
- score is a weighted mix of normalized degree, betweenness and PageRank in [0,1]; rank 1 is the most central function
- betweenness > 0.1: the function sits on many shortest call paths; changes ripple widely
- critical_path.depth is the longest cycle-free call chain from an entry point, in calls
- hot_paths are call chains through the busiest edges; samples appear only when a profile was supplied
- modularity q > 0.3 indicates a meaningful module structure
- dead_code lists functions unreachable from the entry points; a function called only through pointers will show up here
- diagnostics are recoverable problems; non_convergence means PageRank values are approximate

METRICS RETURNED:
- functions: in/out degree, betweenness, pagerank, score, rank, module, entry, dead
- critical_path, hot_paths, modularity, dead_code, summary and diagnostics`
}

func describeCombineFragments() string {
	return `Combines a directory of per-file DOT call-graph fragments into one graph and optionally resolves node identifiers to function names.

USE WHEN:
- Feeding a whole-program call graph to a renderer or another tool
- Checking which fragments are malformed or have unresolved references
- Estimating how much context the combined graph would take

INTERPRETING RESULTS:
- included lists fragments in the combined stream; skipped lists malformed ones
- every fragment body is preceded by a "// fragment: <file>" line
- after resolution, node identifiers are replaced by quoted function names; unresolved counts identifiers with no declaration in their fragment
- tokens is an estimate of the stream size for LLM context budgets

METRICS RETURNED:
- included, skipped, scopes, unresolved, tokens
- the combined (or resolved) DOT stream as a second text block`
}
