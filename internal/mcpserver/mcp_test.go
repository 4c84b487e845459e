package mcpserver

import (
	"context"
	"encoding/json"
	"path/filepath"
	"strings"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/panbanda/callscope/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func resultText(t *testing.T, res *mcp.CallToolResult, i int) string {
	t.Helper()
	require.NotNil(t, res)
	require.Greater(t, len(res.Content), i)
	tc, ok := res.Content[i].(*mcp.TextContent)
	require.True(t, ok, "content is %T", res.Content[i])
	return tc.Text
}

func TestServerCreation(t *testing.T) {
	s := NewServer("1.0.0-test")
	require.NotNil(t, s)
	require.NotNil(t, s.server)

	assert.NotNil(t, NewServer(""))
}

func TestToolDescriptions(t *testing.T) {
	for name, desc := range map[string]string{
		"analyze_callgraph": describeAnalyzeCallgraph(),
		"combine_fragments": describeCombineFragments(),
	} {
		t.Run(name, func(t *testing.T) {
			assert.Contains(t, desc, "USE WHEN:")
			assert.Contains(t, desc, "INTERPRETING RESULTS:")
			assert.Contains(t, desc, "METRICS RETURNED:")
		})
	}
}

func TestGetFormat(t *testing.T) {
	tests := []struct {
		in   string
		want output.Format
	}{
		{"", output.FormatTOON},
		{"text", output.FormatTOON},
		{"json", output.FormatJSON},
		{"yaml", output.FormatYAML},
		{"md", output.FormatMarkdown},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, getFormat(tt.in), tt.in)
	}
}

func TestToolError(t *testing.T) {
	res, _, err := toolError("boom")
	require.NoError(t, err)
	assert.True(t, res.IsError)
	assert.Equal(t, "Error: boom", resultText(t, res, 0))
}

func TestHandleAnalyzeCallgraph(t *testing.T) {
	s := NewServer("test")
	dir := testutil.WriteSampleFragments(t)

	res, _, err := s.handleAnalyzeCallgraph(context.Background(), nil, AnalyzeInput{
		Dir:    dir,
		Entry:  []string{"main"},
		Top:    3,
		Format: "json",
	})
	require.NoError(t, err)
	require.False(t, res.IsError, resultText(t, res, 0))

	var got analysis.Result
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res, 0)), &got))
	require.Len(t, got.Functions, 3)
	assert.Equal(t, 1, got.Functions[0].Rank)
	assert.Equal(t, "process", got.Functions[0].Name)
	assert.Nil(t, got.Metrics)
	assert.Nil(t, got.Ranking)
	assert.Equal(t, []string{"unused_function"}, got.DeadCode.Dead)
	assert.Equal(t, 4, got.CriticalPath.Depth)
}

func TestHandleAnalyzeCallgraph_Formats(t *testing.T) {
	s := NewServer("test")
	dir := testutil.WriteSampleFragments(t)

	tests := []struct {
		format string
		want   string
	}{
		{"", "critical_path"},
		{"yaml", "dead_code:"},
		{"markdown", "## Critical Path"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			res, _, err := s.handleAnalyzeCallgraph(context.Background(), nil, AnalyzeInput{Dir: dir, Format: tt.format})
			require.NoError(t, err)
			assert.Contains(t, resultText(t, res, 0), tt.want)
		})
	}
}

func TestHandleAnalyzeCallgraph_Errors(t *testing.T) {
	s := NewServer("test")

	tests := []struct {
		name  string
		input AnalyzeInput
		want  string
	}{
		{"missing dir", AnalyzeInput{}, "dir is required"},
		{"absent dir", AnalyzeInput{Dir: filepath.Join(t.TempDir(), "nope")}, "no call-graph fragments"},
		{"bad weights", AnalyzeInput{Dir: testutil.WriteSampleFragments(t), Weights: "1,x,1"}, "Error:"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res, _, err := s.handleAnalyzeCallgraph(context.Background(), nil, tt.input)
			require.NoError(t, err)
			assert.True(t, res.IsError)
			assert.Contains(t, resultText(t, res, 0), tt.want)
		})
	}
}

func TestHandleCombineFragments(t *testing.T) {
	s := NewServer("test")
	dir := testutil.WriteSampleFragments(t)

	res, _, err := s.handleCombineFragments(context.Background(), nil, CombineInput{Dir: dir, Format: "json"})
	require.NoError(t, err)
	require.Len(t, res.Content, 2)

	var summary CombineSummary
	require.NoError(t, json.Unmarshal([]byte(resultText(t, res, 0)), &summary))
	assert.Equal(t, []string{"compute_cgraph.dot", "main_cgraph.dot", "unused_cgraph.dot"}, summary.Included)
	assert.False(t, summary.Resolved)
	assert.Positive(t, summary.Tokens.Tokens)

	stream := resultText(t, res, 1)
	assert.Contains(t, stream, "// fragment: main_cgraph.dot")
	assert.Contains(t, stream, "Node1 -> Node2")

	res, _, err = s.handleCombineFragments(context.Background(), nil, CombineInput{Dir: dir, Resolve: true})
	require.NoError(t, err)
	resolved := resultText(t, res, 1)
	assert.Contains(t, resolved, `"main" -> "process"`)
	assert.Contains(t, resultText(t, res, 0), "resolved: true")
}

func TestHandleCombineFragments_Missing(t *testing.T) {
	res, _, err := NewServer("test").handleCombineFragments(context.Background(), nil, CombineInput{Dir: t.TempDir()})
	require.NoError(t, err)
	assert.True(t, res.IsError)
}

func TestLoadPrompts(t *testing.T) {
	defs, err := loadPrompts()
	require.NoError(t, err)
	require.NotEmpty(t, defs)

	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			assert.NotEmpty(t, def.Description)
			assert.NotEmpty(t, def.Body)
			assert.False(t, strings.HasPrefix(def.Body, "---"))
			require.NotEmpty(t, def.Arguments)
			assert.Equal(t, "dir", def.Arguments[0].Name)
			assert.True(t, def.Arguments[0].Required)
		})
	}
}

func TestParseFrontmatter(t *testing.T) {
	fm, body := parseFrontmatter([]byte("---\ndescription: Test\narguments:\n  - name: dir\n---\nBody {{dir}}\n"))
	assert.Equal(t, "Test", fm.Description)
	require.Len(t, fm.Arguments, 1)
	assert.Equal(t, "Body {{dir}}\n", body)

	fm, body = parseFrontmatter([]byte("no frontmatter"))
	assert.Empty(t, fm.Description)
	assert.Equal(t, "no frontmatter", body)

	_, body = parseFrontmatter([]byte("---\nunterminated"))
	assert.Equal(t, "---\nunterminated", body)
}

func TestSubstituteArgs(t *testing.T) {
	declared := []promptArgument{{Name: "dir"}, {Name: "top", Default: "10"}}

	got := substituteArgs("{{dir}} top {{top}}", declared, map[string]string{"dir": "docs/dot"})
	assert.Equal(t, "docs/dot top 10", got)

	got = substituteArgs("{{dir}} top {{top}}", declared, map[string]string{"dir": "x", "top": "3"})
	assert.Equal(t, "x top 3", got)
}

func TestPromptHandler(t *testing.T) {
	defs, err := loadPrompts()
	require.NoError(t, err)

	for _, def := range defs {
		t.Run(def.Name, func(t *testing.T) {
			res, err := makePromptHandler(def)(context.Background(), &mcp.GetPromptRequest{
				Params: &mcp.GetPromptParams{Name: def.Name, Arguments: map[string]string{"dir": "/work/dot"}},
			})
			require.NoError(t, err)
			require.Len(t, res.Messages, 1)
			assert.Equal(t, mcp.Role("user"), res.Messages[0].Role)

			text := res.Messages[0].Content.(*mcp.TextContent).Text
			assert.Contains(t, text, "/work/dot")
			assert.Contains(t, text, "analyze_callgraph")
			assert.NotContains(t, text, "{{")
		})
	}
}

func TestServerSession(t *testing.T) {
	ctx := context.Background()
	s := NewServer("test")

	serverTransport, clientTransport := mcp.NewInMemoryTransports()
	ss, err := s.server.Connect(ctx, serverTransport, nil)
	require.NoError(t, err)
	defer ss.Close()

	client := mcp.NewClient(&mcp.Implementation{Name: "test-client", Version: "1.0.0"}, nil)
	cs, err := client.Connect(ctx, clientTransport, nil)
	require.NoError(t, err)
	defer cs.Close()

	tools, err := cs.ListTools(ctx, &mcp.ListToolsParams{})
	require.NoError(t, err)
	var names []string
	for _, tool := range tools.Tools {
		names = append(names, tool.Name)
	}
	assert.ElementsMatch(t, []string{"analyze_callgraph", "combine_fragments"}, names)

	res, err := cs.CallTool(ctx, &mcp.CallToolParams{
		Name:      "analyze_callgraph",
		Arguments: map[string]any{"dir": testutil.WriteSampleFragments(t), "entry": []string{"main"}, "format": "json"},
	})
	require.NoError(t, err)
	require.False(t, res.IsError)
	assert.Contains(t, resultText(t, res, 0), `"unused_function"`)

	prompts, err := cs.ListPrompts(ctx, &mcp.ListPromptsParams{})
	require.NoError(t, err)
	assert.NotEmpty(t, prompts.Prompts)
}

func TestGenerateManifest(t *testing.T) {
	data, err := GenerateManifest("1.2.3")
	require.NoError(t, err)

	var m Manifest
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "1.2.3", m.Version)
	assert.Equal(t, "ghcr.io/panbanda/callscope:1.2.3", m.Packages[0].Identifier)

	require.Len(t, m.Packages, 1)
	assert.Equal(t, []Argument{{Type: "positional", Value: "mcp"}}, m.Packages[0].PackageArguments)
	require.Len(t, m.Packages[0].EnvironmentVariables, 1)
	assert.Equal(t, "CALLSCOPE_CONFIG", m.Packages[0].EnvironmentVariables[0].Name)
	assert.Contains(t, m.Description, "analyze_callgraph, combine_fragments")

	for _, v := range []string{"", "dev"} {
		data, err = GenerateManifest(v)
		require.NoError(t, err)
		assert.Contains(t, string(data), `"version": "0.0.0"`)
	}

	data, err = GenerateManifest("v2.0.1")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, &m))
	assert.Equal(t, "2.0.1", m.Version)
	assert.Equal(t, "ghcr.io/panbanda/callscope:2.0.1", m.Packages[0].Identifier)
}
