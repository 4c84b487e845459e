package fragment

import (
	"fmt"
	"strings"

	"github.com/panbanda/callscope/pkg/diag"
)

// Combined is the merged stream of a fragment set.
type Combined struct {
	Text string

	// Included lists the fragment names merged into Text, in order.
	Included []string

	// Skipped lists malformed fragments left out of Text.
	Skipped []string

	// Duplicates pairs fragments with identical content (first, duplicate).
	Duplicates [][2]string

	Diagnostics []diag.Diagnostic
}

// Combine merges fragments into one outer graph declaration. The outer braces
// of each fragment are stripped, inner braces are kept, and the fragment body
// is preceded by its provenance tag. The output depends only on the fragment
// contents and order, so combining the same set twice is byte-identical.
func Combine(frags []Fragment) *Combined {
	c := &Combined{}
	seen := make(map[uint64]string, len(frags))

	var b strings.Builder
	b.WriteString(CombinedMarker)
	b.WriteByte('\n')
	b.WriteString("digraph " + GraphName + " {\n")

	for _, f := range frags {
		body, err := stripOuter(f.Lines)
		if err != nil {
			c.Skipped = append(c.Skipped, f.Name)
			c.Diagnostics = append(c.Diagnostics, diag.Diagnostic{
				Kind:    diag.KindMalformedFragment,
				Source:  f.Name,
				Message: err.Error(),
			})
			continue
		}

		if first, ok := seen[f.Fingerprint]; ok && f.Fingerprint != 0 {
			c.Duplicates = append(c.Duplicates, [2]string{first, f.Name})
		} else {
			seen[f.Fingerprint] = f.Name
		}

		c.Included = append(c.Included, f.Name)
		b.WriteString(Tag(f.Name))
		b.WriteByte('\n')
		for _, line := range body {
			b.WriteString(line)
			b.WriteByte('\n')
		}
	}

	b.WriteString("}\n")
	c.Text = b.String()
	return c
}

// stripOuter returns the lines inside the fragment's outermost braces. Brace
// depth is tracked character by character outside quoted strings; the outer
// opening and closing braces are removed and a line left blank by that
// removal is dropped.
func stripOuter(lines []string) ([]string, error) {
	var out []string
	depth := 0
	opened := false

	for n, line := range lines {
		var kept strings.Builder
		inQuote := false
		escaped := false

		for i := 0; i < len(line); i++ {
			ch := line[i]
			if inQuote {
				if depth > 0 {
					kept.WriteByte(ch)
				}
				switch {
				case escaped:
					escaped = false
				case ch == '\\':
					escaped = true
				case ch == '"':
					inQuote = false
				}
				continue
			}

			switch ch {
			case '"':
				inQuote = true
			case '{':
				depth++
				if depth == 1 {
					opened = true
					continue
				}
			case '}':
				depth--
				if depth < 0 {
					return nil, fmt.Errorf("line %d: unexpected closing brace", n+1)
				}
				if depth == 0 {
					continue
				}
			}
			if depth > 0 {
				kept.WriteByte(ch)
			}
		}

		if inQuote {
			return nil, fmt.Errorf("line %d: unterminated string", n+1)
		}

		text := strings.TrimRight(kept.String(), " \t")
		if strings.TrimSpace(text) != "" {
			out = append(out, text)
		}
	}

	if !opened {
		return nil, fmt.Errorf("no graph body found")
	}
	if depth != 0 {
		return nil, fmt.Errorf("unbalanced braces: %d left open", depth)
	}
	return out, nil
}
