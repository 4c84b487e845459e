package mcpserver

import (
	"bytes"
	"context"
	"errors"
	"sort"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/report"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/panbanda/callscope/pkg/analyzer/score"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/diag"
)

// DefaultTop is the number of functions returned when the caller does not
// ask for a specific count.
const DefaultTop = 20

// AnalyzeInput selects the fragment directory and analysis options.
type AnalyzeInput struct {
	Dir          string   `json:"dir" jsonschema:"Directory containing the per-file DOT call-graph fragments."`
	Entry        []string `json:"entry,omitempty" jsonschema:"Entry-point function names, e.g. main. Defaults to functions without callers."`
	EntryPattern string   `json:"entry_pattern,omitempty" jsonschema:"Glob matched against function names to select entry points."`
	Weights      string   `json:"weights,omitempty" jsonschema:"Scoring weights as degree,betweenness,pagerank. Default equal thirds."`
	Top          int      `json:"top,omitempty" jsonschema:"Number of top-ranked functions to return. Default 20; -1 returns all."`
	Format       string   `json:"format,omitempty" jsonschema:"Output format: toon (default), json, yaml, or markdown."`
}

// CombineInput selects the fragment directory to combine.
type CombineInput struct {
	Dir     string `json:"dir" jsonschema:"Directory containing the per-file DOT call-graph fragments."`
	Resolve bool   `json:"resolve,omitempty" jsonschema:"Replace fragment-local node identifiers with function names."`
	Budget  int    `json:"budget,omitempty" jsonschema:"Context budget in tokens for the size estimate. Default 128000."`
	Format  string `json:"format,omitempty" jsonschema:"Format of the summary block: toon (default), json, or yaml."`
}

// CombineSummary describes a combined stream.
type CombineSummary struct {
	Included    []string           `json:"included" toon:"included" yaml:"included"`
	Skipped     []string           `json:"skipped,omitempty" toon:"skipped,omitempty" yaml:"skipped,omitempty"`
	Scopes      int                `json:"scopes" toon:"scopes" yaml:"scopes"`
	Unresolved  int                `json:"unresolved" toon:"unresolved" yaml:"unresolved"`
	Resolved    bool               `json:"resolved" toon:"resolved" yaml:"resolved"`
	Tokens      output.TokenBudget `json:"tokens" toon:"tokens" yaml:"tokens"`
	Diagnostics []diag.Diagnostic  `json:"diagnostics,omitempty" toon:"diagnostics,omitempty" yaml:"diagnostics,omitempty"`
}

func getFormat(s string) output.Format {
	if s == "" {
		return output.FormatTOON
	}
	f := output.ParseFormat(s)
	if f == output.FormatText {
		return output.FormatTOON
	}
	return f
}

func toolResult(data any, format output.Format) (*mcp.CallToolResult, any, error) {
	var text string
	if r, ok := data.(output.Renderable); ok && format == output.FormatMarkdown {
		var buf bytes.Buffer
		if err := r.RenderMarkdown(&buf); err != nil {
			return nil, nil, err
		}
		text = buf.String()
	} else {
		if r, ok := data.(output.Renderable); ok {
			data = r.RenderData()
		}
		out, err := output.Marshal(format, data)
		if err != nil {
			return nil, nil, err
		}
		text = string(out)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}, nil, nil
}

func toolError(msg string) (*mcp.CallToolResult, any, error) {
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: "Error: " + msg},
		},
		IsError: true,
	}, nil, nil
}

func (s *Server) handleAnalyzeCallgraph(ctx context.Context, req *mcp.CallToolRequest, input AnalyzeInput) (*mcp.CallToolResult, any, error) {
	if input.Dir == "" {
		return toolError("dir is required")
	}

	var opts analysis.AnalyzeOptions
	if len(input.Entry) > 0 || input.EntryPattern != "" {
		opts.Entry = &callgraph.EntrySpec{Names: input.Entry, Pattern: input.EntryPattern}
	}
	if input.Weights != "" {
		w, err := score.ParseWeights(input.Weights)
		if err != nil {
			return toolError(err.Error())
		}
		opts.Weights = &w
	}

	res, err := s.analysisService().Analyze(ctx, input.Dir, opts)
	if err != nil {
		if errors.Is(err, diag.ErrInputMissing) {
			return toolError("no call-graph fragments: " + err.Error())
		}
		return toolError(err.Error())
	}

	top := input.Top
	if top == 0 {
		top = DefaultTop
	}
	format := getFormat(input.Format)
	if format == output.FormatMarkdown {
		return toolResult(report.New(res, report.Options{Top: max(top, 0)}), format)
	}
	return toolResult(compact(res, top), format)
}

// compact trims a result for LLM consumption: functions ordered by rank and
// cut to top, without the per-analysis tables they duplicate.
func compact(res *analysis.Result, top int) *analysis.Result {
	view := *res
	view.Metrics = nil
	view.Ranking = nil

	fns := append([]analysis.FunctionStats(nil), res.Functions...)
	sort.SliceStable(fns, func(i, j int) bool {
		ri, rj := fns[i].Rank, fns[j].Rank
		if ri == 0 || rj == 0 {
			return ri != 0 && rj == 0
		}
		return ri < rj
	})
	if top > 0 && len(fns) > top {
		fns = fns[:top]
	}
	view.Functions = fns
	return &view
}

func (s *Server) handleCombineFragments(ctx context.Context, req *mcp.CallToolRequest, input CombineInput) (*mcp.CallToolResult, any, error) {
	if input.Dir == "" {
		return toolError("dir is required")
	}

	st, err := s.analysisService().Prepare(ctx, input.Dir)
	if err != nil {
		return toolError(err.Error())
	}

	stream := st.Combined
	if input.Resolve {
		stream = st.Resolved
	}
	summary := CombineSummary{
		Included:    st.Included,
		Skipped:     st.Skipped,
		Scopes:      st.Scopes,
		Unresolved:  st.Unresolved,
		Resolved:    input.Resolve,
		Tokens:      output.Budget(stream, input.Budget),
		Diagnostics: st.Diagnostics,
	}

	format := getFormat(input.Format)
	if format == output.FormatMarkdown {
		format = output.FormatTOON
	}
	head, err := output.Marshal(format, summary)
	if err != nil {
		return nil, nil, err
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{
			&mcp.TextContent{Text: string(head)},
			&mcp.TextContent{Text: stream},
		},
	}, nil, nil
}
