// Package report turns analysis results into renderable sections.
package report

import (
	"fmt"
	"io"
	"sort"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/panbanda/callscope/pkg/diag"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
	"golang.org/x/text/message"
)

// Options controls what the report shows.
type Options struct {
	// Top limits the functions table; 0 shows every function.
	Top int
}

// Analysis is the renderable report of one analysis run. Structured formats
// serialize the underlying result unchanged.
type Analysis struct {
	result *analysis.Result
	opts   Options
}

var _ output.Renderable = (*Analysis)(nil)

// New wraps res for rendering.
func New(res *analysis.Result, opts Options) *Analysis {
	return &Analysis{result: res, opts: opts}
}

func (a *Analysis) RenderData() any {
	return a.result
}

func (a *Analysis) RenderText(w io.Writer, colored bool) error {
	return a.build(colored).RenderText(w, colored)
}

func (a *Analysis) RenderMarkdown(w io.Writer) error {
	return a.build(false).RenderMarkdown(w)
}

var (
	printer   = message.NewPrinter(language.English)
	titleCase = cases.Title(language.English)
)

func num(n int64) string {
	return printer.Sprintf("%d", n)
}

// kindLabel turns a diagnostic kind into a title, e.g. "Analysis Failed".
func kindLabel(k diag.Kind) string {
	return titleCase.String(strings.ReplaceAll(string(k), "_", " "))
}

func (a *Analysis) build(colored bool) *output.Report {
	res := a.result
	rep := &output.Report{Title: "Call Graph Analysis", Data: res}

	rep.Sections = append(rep.Sections, summarySection(res))
	rep.Sections = append(rep.Sections, FunctionsTable(res, a.opts.Top, colored))
	if res.CriticalPath != nil {
		rep.Sections = append(rep.Sections, criticalPathSection(res))
	}
	if res.HotPaths != nil && len(res.HotPaths.Paths) > 0 {
		rep.Sections = append(rep.Sections, hotPathsTable(res))
	}
	if res.Modularity != nil {
		rep.Sections = append(rep.Sections, modulesTable(res))
	}
	if res.DeadCode != nil {
		rep.Sections = append(rep.Sections, deadCodeSection(res, colored))
	}
	if res.Comparison != nil {
		rep.Sections = append(rep.Sections, comparisonSection(res))
	}
	if res.Diagnostics.Total > 0 {
		rep.Sections = append(rep.Sections, DiagnosticsTable(res.Diagnostics, colored))
	}
	return rep
}

func summarySection(res *analysis.Result) *output.Section {
	s := res.Summary
	lines := []string{
		fmt.Sprintf("Functions:   %s", num(int64(s.TotalNodes))),
		fmt.Sprintf("Calls:       %s", num(int64(s.TotalEdges))),
		fmt.Sprintf("Degree:      avg %.2f, p90 %.0f, max %d", s.AvgDegree, s.P90Degree, s.MaxDegree),
		fmt.Sprintf("Components:  %d (largest %d)", s.Components, s.LargestComponent),
		fmt.Sprintf("Fragments:   %d", len(res.Fragments)),
	}
	if s.SelfLoops > 0 {
		lines = append(lines, fmt.Sprintf("Self-calls:  %d", s.SelfLoops))
	}
	if s.UnresolvedNodes > 0 {
		lines = append(lines, fmt.Sprintf("Unresolved:  %d", s.UnresolvedNodes))
	}
	if len(s.Cycles) > 0 {
		cycles := make([]string, len(s.Cycles))
		for i, c := range s.Cycles {
			cycles[i] = strings.Join(c, ", ")
		}
		lines = append(lines, fmt.Sprintf("Cycles:      %s", strings.Join(cycles, "; ")))
	}
	entries := strings.Join(res.Entries, ", ")
	if res.EntryFallback {
		entries += " (no caller)"
	}
	lines = append(lines, fmt.Sprintf("Entries:     %s", entries))
	if len(res.Skipped) > 0 {
		lines = append(lines, fmt.Sprintf("Skipped:     %s", strings.Join(res.Skipped, ", ")))
	}
	if res.Metrics != nil {
		pr := res.Metrics.PageRank
		state := "converged"
		if pr.Approximate {
			state = "approximate"
		}
		lines = append(lines, fmt.Sprintf("PageRank:    %s after %d iterations", state, pr.Iterations))
	}
	if res.ProfileTotal > 0 {
		lines = append(lines, fmt.Sprintf("Samples:     %s", num(res.ProfileTotal)))
	}
	return &output.Section{Title: "Summary", Content: strings.Join(lines, "\n"), Data: res.Summary}
}

// FunctionsTable renders the per-function statistics, ordered by rank. With
// top > 0 only the first top rows are shown.
func FunctionsTable(res *analysis.Result, top int, colored bool) *output.Table {
	rows := append([]analysis.FunctionStats(nil), res.Functions...)
	sort.SliceStable(rows, func(i, j int) bool {
		ri, rj := rows[i].Rank, rows[j].Rank
		if ri != rj && ri != 0 && rj != 0 {
			return ri < rj
		}
		if (ri == 0) != (rj == 0) {
			return rj == 0
		}
		return rows[i].Name < rows[j].Name
	})
	if top > 0 && len(rows) > top {
		rows = rows[:top]
	}

	profiled := res.ProfileTotal > 0
	headers := []string{"Rank", "Function", "In", "Out", "Betweenness", "PageRank", "Score", "Module", "Flags"}
	if profiled {
		headers = append(headers, "Samples")
	}

	cells := make([][]string, len(rows))
	for i, f := range rows {
		rank, module := "-", "-"
		if f.Rank > 0 {
			rank = strconv.Itoa(f.Rank)
		}
		if f.Module >= 0 {
			module = strconv.Itoa(f.Module)
		}
		row := []string{
			rank,
			f.Name,
			strconv.Itoa(f.InDegree),
			strconv.Itoa(f.OutDegree),
			fmt.Sprintf("%.4f", f.Betweenness),
			fmt.Sprintf("%.4f", f.PageRank),
			fmt.Sprintf("%.4f", f.Score),
			module,
			flags(f, colored),
		}
		if profiled {
			row = append(row, num(f.Samples))
		}
		cells[i] = row
	}

	footer := make([]string, len(headers))
	footer[1] = fmt.Sprintf("%d of %d", len(rows), len(res.Functions))
	return output.NewTable("Functions", headers, cells, footer, rows)
}

func flags(f analysis.FunctionStats, colored bool) string {
	var out []string
	if f.Entry {
		out = append(out, "entry")
	}
	if f.Dead {
		if colored {
			out = append(out, color.RedString("dead"))
		} else {
			out = append(out, "dead")
		}
	}
	if f.Unresolved {
		out = append(out, "unresolved")
	}
	return strings.Join(out, ",")
}

func criticalPathSection(res *analysis.Result) *output.Section {
	cp := res.CriticalPath
	content := fmt.Sprintf("Maximum depth %d", cp.Depth)
	if cp.Truncated {
		content += " (depth capped)"
	}

	sec := &output.Section{Title: "Critical Path", Content: content, Data: cp}
	for i, p := range cp.Paths {
		sec.Sections = append(sec.Sections, output.Section{
			Title:   fmt.Sprintf("Path %d", i+1),
			Content: strings.Join(p, " -> "),
		})
	}
	return sec
}

func hotPathsTable(res *analysis.Result) *output.Table {
	hp := res.HotPaths
	profiled := res.ProfileTotal > 0
	headers := []string{"#", "Path", "Score"}
	if profiled {
		headers = append(headers, "Samples")
	}
	rows := make([][]string, len(hp.Paths))
	for i, p := range hp.Paths {
		row := []string{strconv.Itoa(i + 1), strings.Join(p.Nodes, " -> "), fmt.Sprintf("%.4f", p.Score)}
		if profiled {
			row = append(row, num(p.Samples))
		}
		rows[i] = row
	}
	return output.NewTable("Hot Paths", headers, rows, nil, hp)
}

func modulesTable(res *analysis.Result) *output.Table {
	m := res.Modularity
	rows := make([][]string, len(m.Modules))
	for i, mod := range m.Modules {
		rows[i] = []string{
			strconv.Itoa(mod.ID),
			strconv.Itoa(mod.Size()),
			strconv.Itoa(mod.Internal),
			strconv.Itoa(mod.External),
			strings.Join(mod.Members, ", "),
		}
	}
	footer := []string{"", "", "", "Q", fmt.Sprintf("%.4f", m.Q)}
	return output.NewTable("Modules", []string{"Module", "Size", "Internal", "External", "Members"}, rows, footer, m)
}

func deadCodeSection(res *analysis.Result, colored bool) *output.Section {
	dc := res.DeadCode
	content := fmt.Sprintf("%d of %d functions unreachable (%.1f%%)", dc.DeadCount, dc.Total, dc.Percentage)
	if len(dc.Dead) > 0 {
		names := strings.Join(dc.Dead, "\n")
		if colored {
			names = color.RedString(names)
		}
		content += "\n\n" + names
	}
	return &output.Section{Title: "Dead Code", Content: content, Data: dc}
}

func comparisonSection(res *analysis.Result) *output.Section {
	c := res.Comparison
	content := fmt.Sprintf(
		"Precision@%d against %d known functions\n  composite: %.2f\n  pagerank:  %.2f\n  change:    %+.2f",
		c.K, c.GroundTruth, c.CompositePrecision, c.PageRankPrecision, c.Improvement,
	)
	return &output.Section{Title: "Ranking Accuracy", Content: content, Data: c}
}

// DiagnosticsTable lists recoverable diagnostics, most severe kinds colored
// when colored is set.
func DiagnosticsTable(s diag.Summary, colored bool) *output.Table {
	rows := make([][]string, len(s.Items))
	for i, d := range s.Items {
		kind := kindLabel(d.Kind)
		if colored {
			kind = output.KindColor(d.Kind, kind)
		}
		loc := d.Source
		if d.Line > 0 {
			loc = fmt.Sprintf("%s:%d", d.Source, d.Line)
		}
		rows[i] = []string{kind, loc, d.Subject, d.Message}
	}
	return output.NewTable("Diagnostics", []string{"Kind", "Location", "Subject", "Message"}, rows, nil, s)
}
