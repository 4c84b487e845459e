package fragment

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/panbanda/callscope/internal/testutil"
	"github.com/panbanda/callscope/pkg/diag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	f := Parse("a.dot", []byte("digraph {\r\n  a -> b;   \n}\n"))
	assert.Equal(t, "a.dot", f.Name)
	assert.Equal(t, []string{"digraph {", "  a -> b;", "}"}, f.Lines)
	assert.NotZero(t, f.Fingerprint)

	g := Parse("b.dot", []byte("digraph {\r\n  a -> b;   \n}\n"))
	assert.Equal(t, f.Fingerprint, g.Fingerprint)
}

func TestIsTag(t *testing.T) {
	name, ok := IsTag(Tag("main_cgraph.dot"))
	assert.True(t, ok)
	assert.Equal(t, "main_cgraph.dot", name)

	_, ok = IsTag("// LATEX_PDF_SIZE")
	assert.False(t, ok)
}

func TestCombine_Empty(t *testing.T) {
	c := Combine(nil)
	assert.Equal(t, CombinedMarker+"\ndigraph callgraph {\n}\n", c.Text)
	assert.Empty(t, c.Included)
	assert.Empty(t, c.Diagnostics)
}

func TestCombine_StripsOuterBracesOnly(t *testing.T) {
	frag := Parse("a.dot", []byte(`digraph "a"
{
  Node1 [label="main"];
  subgraph cluster_x {
    Node2 [label="helper"];
  }
  Node1 -> Node2;
}
`))
	c := Combine([]Fragment{frag})

	want := CombinedMarker + `
digraph callgraph {
// fragment: a.dot
  Node1 [label="main"];
  subgraph cluster_x {
    Node2 [label="helper"];
  }
  Node1 -> Node2;
}
`
	assert.Equal(t, want, c.Text)
	assert.Equal(t, []string{"a.dot"}, c.Included)
}

func TestCombine_InlineBraces(t *testing.T) {
	frag := Parse("a.dot", []byte(`digraph G { a -> b;
  b -> c; }`))
	c := Combine([]Fragment{frag})
	assert.Contains(t, c.Text, "// fragment: a.dot\n a -> b;\n  b -> c;\n}")
}

func TestCombine_BracesInStringsIgnored(t *testing.T) {
	frag := Parse("a.dot", []byte("digraph {\n  Node1 [label=\"f{}\"];\n}\n"))
	c := Combine([]Fragment{frag})
	require.Empty(t, c.Diagnostics)
	assert.Contains(t, c.Text, `  Node1 [label="f{}"];`)
}

func TestCombine_MalformedSkipped(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"unclosed", "digraph {\n  a -> b;\n"},
		{"extra_close", "digraph {\n  a -> b;\n}\n}\n"},
		{"no_body", "a -> b;\n"},
		{"open_string", "digraph {\n  a [label=\"x];\n}\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			good := Parse("good.dot", []byte("digraph {\n  x -> y;\n}\n"))
			bad := Parse("bad.dot", []byte(tt.content))
			c := Combine([]Fragment{bad, good})

			assert.Equal(t, []string{"bad.dot"}, c.Skipped)
			assert.Equal(t, []string{"good.dot"}, c.Included)
			require.Len(t, c.Diagnostics, 1)
			assert.Equal(t, diag.KindMalformedFragment, c.Diagnostics[0].Kind)
			assert.Equal(t, "bad.dot", c.Diagnostics[0].Source)
			assert.NotContains(t, c.Text, "bad.dot")
		})
	}
}

func TestCombine_Duplicates(t *testing.T) {
	content := []byte("digraph {\n  a -> b;\n}\n")
	c := Combine([]Fragment{Parse("a.dot", content), Parse("b.dot", content)})
	assert.Equal(t, [][2]string{{"a.dot", "b.dot"}}, c.Duplicates)
	assert.Equal(t, []string{"a.dot", "b.dot"}, c.Included)
}

func TestCombine_Idempotent(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)

	first, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	out1 := Combine(first).Text

	// Write the combined output into the input directory under both the
	// default name and a custom name; neither may be read back.
	testutil.WriteFile(t, filepath.Join(dir, DefaultCombinedName), out1)
	testutil.WriteFile(t, filepath.Join(dir, "renamed.dot"), out1)

	second, err := LoadDir(context.Background(), dir)
	require.NoError(t, err)
	out2 := Combine(second).Text

	assert.Equal(t, out1, out2)
	assert.Len(t, second, len(testutil.SampleFragments))
}

func TestLoadDir_Order(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	frags, err := LoadDir(context.Background(), dir, WithWorkers(1))
	require.NoError(t, err)

	var names []string
	for _, f := range frags {
		names = append(names, f.Name)
		assert.Equal(t, filepath.Join(dir, f.Name), f.Path)
	}
	assert.Equal(t, []string{"compute_cgraph.dot", "main_cgraph.dot", "unused_cgraph.dot"}, names)
}

func TestLoadDir_PatternAndExclude(t *testing.T) {
	dir := t.TempDir()
	testutil.CreateFileTree(t, dir, map[string]string{
		"a.dot":   testutil.Digraph("a", "x -> y;"),
		"b.gv":    testutil.Digraph("b", "y -> z;"),
		"out.dot": testutil.Digraph("out", "q -> r;"),
		"notes":   "ignore me",
	})

	frags, err := LoadDir(context.Background(), dir, WithExclude("out.dot"))
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "a.dot", frags[0].Name)

	frags, err = LoadDir(context.Background(), dir, WithPattern("*.gv"))
	require.NoError(t, err)
	require.Len(t, frags, 1)
	assert.Equal(t, "b.gv", frags[0].Name)
}

func TestLoadDir_Progress(t *testing.T) {
	dir := testutil.WriteSampleFragments(t)
	ticks := 0
	_, err := LoadDir(context.Background(), dir, WithWorkers(1), WithProgress(func() { ticks++ }))
	require.NoError(t, err)
	assert.Equal(t, len(testutil.SampleFragments), ticks)
}

func TestLoadDir_InputMissing(t *testing.T) {
	t.Run("absent", func(t *testing.T) {
		_, err := LoadDir(context.Background(), filepath.Join(t.TempDir(), "nope"))
		assert.True(t, errors.Is(err, diag.ErrInputMissing))
	})

	t.Run("empty", func(t *testing.T) {
		_, err := LoadDir(context.Background(), t.TempDir())
		assert.True(t, errors.Is(err, diag.ErrInputMissing))
	})

	t.Run("not_a_directory", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "file.dot")
		require.NoError(t, os.WriteFile(path, []byte("digraph {}"), 0644))
		_, err := LoadDir(context.Background(), path)
		assert.True(t, errors.Is(err, diag.ErrInputMissing))
	})

	t.Run("only_combined_output", func(t *testing.T) {
		dir := t.TempDir()
		testutil.WriteFile(t, filepath.Join(dir, "x.dot"), Combine(nil).Text)
		_, err := LoadDir(context.Background(), dir)
		assert.True(t, errors.Is(err, diag.ErrInputMissing))
	})
}

func TestSplit(t *testing.T) {
	a := Parse("a.dot", []byte("digraph {\n  Node1 -> Node2;\n}\n"))
	b := Parse("b.dot", []byte("digraph {\n  subgraph s {\n    Node1;\n  }\n}\n"))
	text := Combine([]Fragment{a, b}).Text

	chunks := Split(text)
	require.Len(t, chunks, 2)
	assert.Equal(t, "a.dot", chunks[0].Source)
	assert.Equal(t, 3, chunks[0].Line)
	assert.Equal(t, []string{"  Node1 -> Node2;"}, chunks[0].Lines)
	assert.Equal(t, "b.dot", chunks[1].Source)
	assert.Equal(t, "  subgraph s {\n    Node1;\n  }", strings.Join(chunks[1].Lines, "\n"))

	assert.Empty(t, Split(Combine(nil).Text))
}
