package resolve

// tokenKind classifies a lexical token of a DOT line.
type tokenKind int

const (
	tokOther tokenKind = iota
	tokIdent
	tokNumber
	tokString
	tokSpace
)

type token struct {
	kind tokenKind
	text string
}

// isID reports whether the token can name a node: an identifier or a numeral.
func (t token) isID() bool {
	return t.kind == tokIdent || t.kind == tokNumber
}

// quotedID returns the text of a quoted string that spells a plain
// identifier, so `"N1"` names the same node as `N1`.
func (t token) quotedID() (string, bool) {
	if t.kind != tokString || len(t.text) < 3 || t.text[len(t.text)-1] != '"' {
		return "", false
	}
	inner := t.text[1 : len(t.text)-1]
	for i := 0; i < len(inner); i++ {
		if !isIdentByte(inner[i]) {
			return "", false
		}
	}
	return inner, true
}

func (t token) is(s string) bool {
	return t.kind == tokOther && t.text == s
}

func isIdentByte(c byte) bool {
	return c == '_' || c >= 'a' && c <= 'z' || c >= 'A' && c <= 'Z' || c >= '0' && c <= '9' || c >= 0x80
}

func isDigit(c byte) bool {
	return c >= '0' && c <= '9'
}

// tokenize splits a line into maximal tokens. Identifiers are maximal runs of
// identifier bytes, so "Node12" is never seen as "Node1" followed by "2".
// Numerals with a fractional part ("0.2") are one token. Quoted strings keep
// their quotes and escapes.
func tokenize(line string) []token {
	var toks []token
	i := 0
	for i < len(line) {
		c := line[i]
		switch {
		case c == '"':
			j := i + 1
			for j < len(line) {
				if line[j] == '\\' && j+1 < len(line) {
					j += 2
					continue
				}
				if line[j] == '"' {
					j++
					break
				}
				j++
			}
			toks = append(toks, token{tokString, line[i:j]})
			i = j
		case c == ' ' || c == '\t':
			j := i
			for j < len(line) && (line[j] == ' ' || line[j] == '\t') {
				j++
			}
			toks = append(toks, token{tokSpace, line[i:j]})
			i = j
		case isDigit(c) || c == '.' && i+1 < len(line) && isDigit(line[i+1]):
			j := i + 1
			seenDot := c == '.'
			for j < len(line) {
				if isDigit(line[j]) {
					j++
					continue
				}
				if line[j] == '.' && !seenDot {
					seenDot = true
					j++
					continue
				}
				break
			}
			// Digits followed by letters form an identifier.
			if !seenDot && j < len(line) && isIdentByte(line[j]) {
				for j < len(line) && isIdentByte(line[j]) {
					j++
				}
				toks = append(toks, token{tokIdent, line[i:j]})
				i = j
				continue
			}
			toks = append(toks, token{tokNumber, line[i:j]})
			i = j
		case isIdentByte(c):
			j := i
			for j < len(line) && isIdentByte(line[j]) {
				j++
			}
			toks = append(toks, token{tokIdent, line[i:j]})
			i = j
		default:
			toks = append(toks, token{tokOther, line[i : i+1]})
			i++
		}
	}
	return toks
}

// keywords of the DOT language, matched case-insensitively.
var keywords = map[string]bool{
	"node": true, "edge": true, "graph": true, "digraph": true, "subgraph": true, "strict": true,
}

func isKeyword(s string) bool {
	if len(s) > 8 {
		return false
	}
	var buf [8]byte
	for i := 0; i < len(s); i++ {
		c := s[i]
		if c >= 'A' && c <= 'Z' {
			c += 'a' - 'A'
		}
		buf[i] = c
	}
	return keywords[string(buf[:len(s)])]
}
