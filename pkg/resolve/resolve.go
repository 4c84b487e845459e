// Package resolve rewrites the raw node identifiers of a combined call-graph
// stream into quoted function-name labels, one fragment scope at a time.
package resolve

import (
	"fmt"
	"sort"
	"strings"

	"github.com/panbanda/callscope/pkg/diag"
	"github.com/panbanda/callscope/pkg/fragment"
)

// Scope is the immutable symbol table of one chunk. Identifiers are only
// meaningful inside the chunk that declared them.
type Scope struct {
	tag        string
	source     string
	line       int
	symbols    map[string]string
	unresolved []string
}

// Tag returns the provenance tag line that opened the chunk.
func (s Scope) Tag() string { return s.tag }

// Source returns the fragment name from the provenance tag.
func (s Scope) Source() string { return s.source }

// Line returns the 1-based line of the provenance tag in the stream.
func (s Scope) Line() int { return s.line }

// Len returns the number of declared identifiers.
func (s Scope) Len() int { return len(s.symbols) }

// Lookup returns the label declared for id in this chunk.
func (s Scope) Lookup(id string) (string, bool) {
	label, ok := s.symbols[id]
	return label, ok
}

// Symbols returns a copy of the identifier map.
func (s Scope) Symbols() map[string]string {
	out := make(map[string]string, len(s.symbols))
	for k, v := range s.symbols {
		out[k] = v
	}
	return out
}

// Unresolved returns the sorted edge endpoints that had no declaration.
func (s Scope) Unresolved() []string {
	return append([]string(nil), s.unresolved...)
}

// Result is the resolved stream with its per-chunk scopes.
type Result struct {
	Text        string
	Scopes      []Scope
	Diagnostics []diag.Diagnostic
}

// UnresolvedCount returns the number of distinct unresolved identifiers
// summed over all chunks.
func (r *Result) UnresolvedCount() int {
	n := 0
	for _, s := range r.Scopes {
		n += len(s.unresolved)
	}
	return n
}

// Resolve rewrites every raw node identifier in text to its quoted label.
// Each chunk is handled in two phases: its symbol table is built from the
// node declarations, then its lines are rewritten in one token-driven pass.
// Tokens are maximal, so an identifier is only replaced when the whole token
// matches, and "N12" is never rewritten through a declaration of "N1".
// Edge endpoints without a declaration in the same chunk stay as they are
// and are reported.
func Resolve(text string) *Result {
	trailingNewline := strings.HasSuffix(text, "\n")
	lines := strings.Split(strings.TrimSuffix(text, "\n"), "\n")
	if text == "" {
		lines = nil
	}

	r := &Result{}
	out := make([]string, 0, len(lines))

	var (
		open    bool
		tag     string
		source  string
		tagLine int
		start   int
	)
	flush := func(end int) {
		if !open {
			return
		}
		scope, rewritten, diags := resolveChunk(tag, source, tagLine, lines[start:end], start+1)
		r.Scopes = append(r.Scopes, scope)
		r.Diagnostics = append(r.Diagnostics, diags...)
		out = append(out, rewritten...)
	}

	for i, line := range lines {
		name, ok := fragment.IsTag(line)
		if !ok {
			if !open {
				out = append(out, line)
			}
			continue
		}
		flush(i)
		out = append(out, line)
		open, tag, source, tagLine, start = true, line, name, i+1, i+1
	}
	flush(len(lines))

	r.Text = strings.Join(out, "\n")
	if trailingNewline {
		r.Text += "\n"
	}
	return r
}

// resolveChunk builds the scope of one chunk and rewrites its lines.
// firstLine is the 1-based stream line number of lines[0].
func resolveChunk(tag, source string, tagLine int, lines []string, firstLine int) (Scope, []string, []diag.Diagnostic) {
	tokenized := make([][]token, len(lines))
	symbols := make(map[string]string)
	for i, line := range lines {
		tokenized[i] = tokenize(line)
		if id, label, ok := declaration(tokenized[i]); ok {
			if _, dup := symbols[id]; !dup {
				symbols[id] = label
			}
		}
	}

	var diags []diag.Diagnostic
	unresolved := make(map[string]bool)
	rewritten := make([]string, len(lines))

	for i, toks := range tokenized {
		edge := isEdgeLine(toks)
		reported := make(map[string]bool)

		var b strings.Builder
		forEachNodeRef(toks, func(idx int, ref bool) {
			tok := toks[idx]
			if !ref {
				b.WriteString(tok.text)
				return
			}
			if id, quoted := tok.quotedID(); quoted {
				// Undeclared quoted IDs already name a function.
				if label, ok := symbols[id]; ok {
					b.WriteString(label)
				} else {
					b.WriteString(tok.text)
				}
				return
			}
			if label, ok := symbols[tok.text]; ok {
				b.WriteString(label)
				return
			}
			if edge && !reported[tok.text] {
				reported[tok.text] = true
				unresolved[tok.text] = true
				diags = append(diags, diag.Diagnostic{
					Kind:    diag.KindUnresolvedReference,
					Source:  source,
					Line:    firstLine + i,
					Subject: tok.text,
					Message: fmt.Sprintf("edge endpoint %s has no declaration in %s", tok.text, source),
				})
			}
			b.WriteString(tok.text)
		})
		rewritten[i] = b.String()
	}

	names := make([]string, 0, len(unresolved))
	for id := range unresolved {
		names = append(names, id)
	}
	sort.Strings(names)

	return Scope{
		tag:        tag,
		source:     source,
		line:       tagLine,
		symbols:    symbols,
		unresolved: names,
	}, rewritten, diags
}

// declaration matches `<id> [ ... label=<value> ... ]` and returns the id and
// its label, already quoted for DOT.
func declaration(toks []token) (string, string, bool) {
	i := skipSpace(toks, 0)
	if i >= len(toks) {
		return "", "", false
	}
	id, ok := toks[i].quotedID()
	if !ok {
		if !toks[i].isID() || isKeyword(toks[i].text) {
			return "", "", false
		}
		id = toks[i].text
	}

	i = skipSpace(toks, i+1)
	if i >= len(toks) || !toks[i].is("[") {
		return "", "", false
	}

	for i++; i < len(toks) && !toks[i].is("]"); i++ {
		if toks[i].kind != tokIdent || toks[i].text != "label" {
			continue
		}
		j := skipSpace(toks, i+1)
		if j >= len(toks) || !toks[j].is("=") {
			continue
		}
		j = skipSpace(toks, j+1)
		if j >= len(toks) {
			break
		}
		switch {
		case toks[j].kind == tokString:
			return id, toks[j].text, true
		case toks[j].isID():
			return id, quote(toks[j].text), true
		}
	}
	return "", "", false
}

// forEachNodeRef walks the tokens of a line and reports, for each one,
// whether it is a node reference: an identifier, numeral or quoted identifier
// outside attribute lists and comments that is not a keyword, a subgraph name, or part of an
// `=` assignment.
func forEachNodeRef(toks []token, fn func(idx int, ref bool)) {
	brackets := 0
	comment := false
	for i, tok := range toks {
		if !comment && isCommentStart(toks, i) {
			comment = true
		}
		if comment {
			fn(i, false)
			continue
		}
		switch {
		case tok.is("["):
			brackets++
		case tok.is("]"):
			if brackets > 0 {
				brackets--
			}
		}
		_, quoted := tok.quotedID()
		ref := brackets == 0 && (quoted || tok.isID() && !isKeyword(tok.text)) &&
			!prevIs(toks, i, "=") && !nextIs(toks, i, "=") && !afterSubgraph(toks, i)
		fn(i, ref)
	}
}

// isEdgeLine reports whether the line holds an edge operator outside
// attribute lists.
func isEdgeLine(toks []token) bool {
	brackets := 0
	for i := 0; i+1 < len(toks); i++ {
		if isCommentStart(toks, i) {
			return false
		}
		switch {
		case toks[i].is("["):
			brackets++
		case toks[i].is("]"):
			if brackets > 0 {
				brackets--
			}
		case brackets == 0 && toks[i].is("-") && (toks[i+1].is(">") || toks[i+1].is("-")):
			return true
		}
	}
	return false
}

func isCommentStart(toks []token, i int) bool {
	return toks[i].is("#") || toks[i].is("/") && i+1 < len(toks) && (toks[i+1].is("/") || toks[i+1].is("*"))
}

func skipSpace(toks []token, i int) int {
	for i < len(toks) && toks[i].kind == tokSpace {
		i++
	}
	return i
}

func prevIs(toks []token, i int, s string) bool {
	for j := i - 1; j >= 0; j-- {
		if toks[j].kind != tokSpace {
			return toks[j].is(s)
		}
	}
	return false
}

func nextIs(toks []token, i int, s string) bool {
	j := skipSpace(toks, i+1)
	return j < len(toks) && toks[j].is(s)
}

func afterSubgraph(toks []token, i int) bool {
	for j := i - 1; j >= 0; j-- {
		if toks[j].kind != tokSpace {
			return toks[j].kind == tokIdent && strings.EqualFold(toks[j].text, "subgraph")
		}
	}
	return false
}

func quote(s string) string {
	return `"` + strings.ReplaceAll(strings.ReplaceAll(s, `\`, `\\`), `"`, `\"`) + `"`
}
