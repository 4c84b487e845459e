package fragment

import "strings"

// Chunk is the part of a combined stream that belongs to one fragment.
type Chunk struct {
	Source string
	Tag    string
	// Line is the 1-based line number of the provenance tag in the stream.
	Line  int
	Lines []string
}

// Split cuts a combined stream into chunks at provenance tags. Lines before
// the first tag belong to the outer declaration and are dropped, as is the
// closing brace of the outer declaration.
func Split(text string) []Chunk {
	lines := strings.Split(strings.TrimRight(text, "\n"), "\n")

	last := len(lines) - 1
	for last >= 0 && strings.TrimSpace(lines[last]) == "" {
		last--
	}
	if last >= 0 && strings.TrimSpace(lines[last]) == "}" {
		lines = lines[:last]
	}

	var chunks []Chunk
	for i, line := range lines {
		if name, ok := IsTag(line); ok {
			chunks = append(chunks, Chunk{Source: name, Tag: line, Line: i + 1})
			continue
		}
		if len(chunks) == 0 {
			continue
		}
		cur := &chunks[len(chunks)-1]
		cur.Lines = append(cur.Lines, line)
	}
	return chunks
}
