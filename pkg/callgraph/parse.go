package callgraph

import (
	"fmt"
	"strings"

	"github.com/panbanda/callscope/pkg/diag"
	"github.com/panbanda/callscope/pkg/fragment"
	"gonum.org/v1/gonum/graph/formats/dot"
	"gonum.org/v1/gonum/graph/formats/dot/ast"
)

// ParseResult is the canonical graph built from a resolved stream.
type ParseResult struct {
	Graph       *Graph
	Chunks      int
	Skipped     []string
	Diagnostics []diag.Diagnostic
}

// Parse builds the canonical graph from a resolved stream. Every chunk is
// parsed on its own; a chunk that is not well-formed DOT is skipped with a
// malformed-fragment diagnostic and the remaining chunks still contribute.
func Parse(resolved string) *ParseResult {
	res := &ParseResult{}
	b := NewBuilder()

	for _, chunk := range fragment.Split(resolved) {
		res.Chunks++
		file, err := dot.ParseString("digraph {\n" + strings.Join(chunk.Lines, "\n") + "\n}\n")
		if err != nil {
			res.Skipped = append(res.Skipped, chunk.Source)
			res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
				Kind:    diag.KindMalformedFragment,
				Source:  chunk.Source,
				Line:    chunk.Line,
				Message: fmt.Sprintf("not well-formed after resolution: %v", err),
			})
			continue
		}
		for _, g := range file.Graphs {
			addStmts(b, chunk.Source, g.Stmts)
		}
	}

	res.Graph = b.Build()
	if res.Graph.Len() == 0 {
		res.Diagnostics = append(res.Diagnostics, diag.Diagnostic{
			Kind:    diag.KindEmptyGraph,
			Message: "call graph has no nodes",
		})
	}
	return res
}

func addStmts(b *Builder, source string, stmts []ast.Stmt) {
	for _, stmt := range stmts {
		switch s := stmt.(type) {
		case *ast.NodeStmt:
			name, unresolved := scopedName(source, s.Node.ID)
			b.AddNode(name, source, unresolved)
		case *ast.EdgeStmt:
			from := vertexNodes(b, source, s.From)
			for e := s.To; e != nil; e = e.To {
				to := vertexNodes(b, source, e.Vertex)
				for _, f := range from {
					for _, t := range to {
						b.AddEdge(f, t)
					}
				}
				from = to
			}
		case *ast.Subgraph:
			addStmts(b, source, s.Stmts)
		}
	}
}

// vertexNodes registers the nodes named by an edge endpoint and returns
// their names. A subgraph endpoint stands for every node inside it.
func vertexNodes(b *Builder, source string, v ast.Vertex) []string {
	switch v := v.(type) {
	case *ast.Node:
		name, unresolved := scopedName(source, v.ID)
		b.AddNode(name, source, unresolved)
		return []string{name}
	case *ast.Subgraph:
		var names []string
		for _, stmt := range v.Stmts {
			switch s := stmt.(type) {
			case *ast.NodeStmt:
				name, unresolved := scopedName(source, s.Node.ID)
				b.AddNode(name, source, unresolved)
				names = append(names, name)
			case *ast.EdgeStmt:
				addStmts(b, source, []ast.Stmt{s})
				names = append(names, vertexNodes(b, source, s.From)...)
				for e := s.To; e != nil; e = e.To {
					names = append(names, vertexNodes(b, source, e.Vertex)...)
				}
			case *ast.Subgraph:
				names = append(names, vertexNodes(b, source, s)...)
			}
		}
		return names
	}
	return nil
}

// scopedName returns the graph name for a DOT ID found in source. A raw
// identifier only means something inside its own fragment, so an unresolved
// one is qualified with the fragment name and never meets the same token
// from another fragment or a function of that name.
func scopedName(source, id string) (string, bool) {
	name, unresolved := nodeName(id)
	if unresolved {
		return UnresolvedName(source, name), true
	}
	return name, false
}

// UnresolvedName is the node name given to raw identifier id left
// unresolved in fragment source.
func UnresolvedName(source, id string) string {
	if source == "" {
		return id
	}
	return source + ":" + id
}

// nodeName unquotes a DOT ID. Resolved names are quoted; a bare ID is a raw
// identifier that was left unresolved.
func nodeName(id string) (string, bool) {
	if len(id) >= 2 && id[0] == '"' && id[len(id)-1] == '"' {
		return unescape(id[1 : len(id)-1]), false
	}
	if len(id) >= 2 && id[0] == '<' && id[len(id)-1] == '>' {
		return id[1 : len(id)-1], false
	}
	return id, true
}

func unescape(s string) string {
	if !strings.Contains(s, `\`) {
		return s
	}
	var b strings.Builder
	for i := 0; i < len(s); i++ {
		if s[i] == '\\' && i+1 < len(s) {
			switch s[i+1] {
			case '"', '\\':
				b.WriteByte(s[i+1])
				i++
				continue
			case '\n':
				i++
				continue
			}
		}
		b.WriteByte(s[i])
	}
	return b.String()
}
