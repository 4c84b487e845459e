package testutil

import (
	"path/filepath"
	"strings"
	"testing"
)

// Function names of the sample program call graph.
var SampleFunctions = []string{
	"add", "compute_product", "compute_series", "cycle_1", "cycle_2", "helper_A",
	"helper_B", "main", "multiply", "process", "square", "unused_function",
}

// SampleEdges lists the caller/callee pairs of the sample program.
var SampleEdges = [][2]string{
	{"main", "process"},
	{"process", "compute_series"},
	{"process", "compute_product"},
	{"process", "helper_B"},
	{"compute_series", "add"},
	{"compute_series", "square"},
	{"square", "multiply"},
	{"helper_B", "helper_A"},
	{"helper_B", "square"},
	{"main", "cycle_1"},
	{"cycle_1", "cycle_2"},
	{"cycle_2", "cycle_1"},
}

// Doxygen-style fragments of the sample program. Every fragment numbers its
// nodes from Node1, so the same raw identifier names different functions in
// different fragments. The compute fragment declares both Node1 and Node12.
var SampleFragments = map[string]string{
	"main_cgraph.dot": `digraph "main"
{
 // LATEX_PDF_SIZE
  bgcolor="transparent";
  edge [fontname=Helvetica,fontsize=10,labelfontname=Helvetica,labelfontsize=10];
  node [fontname=Helvetica,fontsize=10,shape=box,height=0.2,width=0.4];
  rankdir="LR";
  Node1 [id="Node000001",label="main",height=0.2,width=0.4,color="gray40", fillcolor="grey60", style="filled", fontcolor="black",tooltip=" "];
  Node1 -> Node2 [id="edge1_Node000001_Node000002",color="steelblue1",style="solid",tooltip=" "];
  Node2 [id="Node000002",label="process",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",URL="$main_8c.html#a1",tooltip=" "];
  Node2 -> Node3 [id="edge2_Node000002_Node000003",color="steelblue1",style="solid",tooltip=" "];
  Node3 [id="Node000003",label="compute_series",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node2 -> Node4 [id="edge3_Node000002_Node000004",color="steelblue1",style="solid",tooltip=" "];
  Node4 [id="Node000004",label="compute_product",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node2 -> Node5 [id="edge4_Node000002_Node000005",color="steelblue1",style="solid",tooltip=" "];
  Node5 [id="Node000005",label="helper_B",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node1 -> Node6 [id="edge5_Node000001_Node000006",color="steelblue1",style="solid",tooltip=" "];
  Node6 [id="Node000006",label="cycle_1",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node6 -> Node7 [id="edge6_Node000006_Node000007",color="steelblue1",style="solid",tooltip=" "];
  Node7 [id="Node000007",label="cycle_2",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node7 -> Node6 [id="edge7_Node000007_Node000006",color="steelblue1",style="solid",tooltip=" "];
}
`,
	"compute_cgraph.dot": `digraph "compute_series"
{
 // LATEX_PDF_SIZE
  bgcolor="transparent";
  edge [fontname=Helvetica,fontsize=10,labelfontname=Helvetica,labelfontsize=10];
  node [fontname=Helvetica,fontsize=10,shape=box,height=0.2,width=0.4];
  rankdir="LR";
  Node1 [id="Node000001",label="compute_series",height=0.2,width=0.4,color="gray40", fillcolor="grey60", style="filled", fontcolor="black",tooltip=" "];
  Node1 -> Node2 [id="edge1_Node000001_Node000002",color="steelblue1",style="solid",tooltip=" "];
  Node2 [id="Node000002",label="add",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node1 -> Node12 [id="edge2_Node000001_Node000012",color="steelblue1",style="solid",tooltip=" "];
  Node12 [id="Node000012",label="square",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node12 -> Node4 [id="edge3_Node000012_Node000004",color="steelblue1",style="solid",tooltip=" "];
  Node4 [id="Node000004",label="multiply",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node5 [id="Node000005",label="helper_B",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node5 -> Node6 [id="edge4_Node000005_Node000006",color="steelblue1",style="solid",tooltip=" "];
  Node6 [id="Node000006",label="helper_A",height=0.2,width=0.4,color="grey40", fillcolor="white", style="filled",tooltip=" "];
  Node5 -> Node12 [id="edge5_Node000005_Node000012",color="steelblue1",style="solid",tooltip=" "];
}
`,
	"unused_cgraph.dot": `digraph "unused_function"
{
  node [fontname=Helvetica,fontsize=10,shape=box,height=0.2,width=0.4];
  Node1 [id="Node000001",label="unused_function",height=0.2,width=0.4,color="gray40", fillcolor="grey60", style="filled", fontcolor="black",tooltip=" "];
}
`,
}

// WriteSampleFragments writes the sample fragments into a fresh temporary
// directory and returns its path.
func WriteSampleFragments(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	CreateFileTree(t, dir, SampleFragments)
	return dir
}

// WriteFragments writes fragments keyed by file name into dir.
func WriteFragments(t *testing.T, dir string, fragments map[string]string) {
	t.Helper()
	for name, content := range fragments {
		WriteFile(t, filepath.Join(dir, name), content)
	}
}

// Digraph wraps body lines in a minimal fragment declaration.
func Digraph(name string, body ...string) string {
	var b strings.Builder
	b.WriteString("digraph \"" + name + "\"\n{\n")
	for _, line := range body {
		b.WriteString("  " + line + "\n")
	}
	b.WriteString("}\n")
	return b.String()
}
