// Package diag defines the diagnostic taxonomy shared by every pipeline stage.
package diag

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

// ErrInputMissing is returned when the fragment directory is absent or
// contains no fragments. It is the only fatal condition.
var ErrInputMissing = errors.New("input missing")

// Kind classifies a diagnostic.
type Kind string

const (
	KindInputMissing        Kind = "input_missing"
	KindMalformedFragment   Kind = "malformed_fragment"
	KindUnresolvedReference Kind = "unresolved_reference"
	KindEmptyGraph          Kind = "empty_graph"
	KindNonConvergence      Kind = "non_convergence"
	KindAnalysisFailed      Kind = "analysis_failed"
)

// String returns the string representation.
func (k Kind) String() string {
	return string(k)
}

// Fatal reports whether the kind aborts the run.
func (k Kind) Fatal() bool {
	return k == KindInputMissing
}

// Diagnostic is a single recoverable (or fatal) condition observed during a run.
type Diagnostic struct {
	Kind    Kind   `json:"kind" toon:"kind" yaml:"kind"`
	Source  string `json:"source,omitempty" toon:"source,omitempty" yaml:"source,omitempty"`
	Line    int    `json:"line,omitempty" toon:"line,omitempty" yaml:"line,omitempty"`
	Subject string `json:"subject,omitempty" toon:"subject,omitempty" yaml:"subject,omitempty"`
	Message string `json:"message" toon:"message" yaml:"message"`
}

func (d Diagnostic) Error() string {
	switch {
	case d.Source != "" && d.Line > 0:
		return fmt.Sprintf("%s: %s:%d: %s", d.Kind, d.Source, d.Line, d.Message)
	case d.Source != "":
		return fmt.Sprintf("%s: %s: %s", d.Kind, d.Source, d.Message)
	default:
		return fmt.Sprintf("%s: %s", d.Kind, d.Message)
	}
}

// Collector accumulates diagnostics from concurrent stages.
type Collector struct {
	mu    sync.Mutex
	items []Diagnostic
}

// NewCollector creates an empty collector.
func NewCollector() *Collector {
	return &Collector{}
}

// Add appends a diagnostic (thread-safe).
func (c *Collector) Add(d Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, d)
	c.mu.Unlock()
}

// Addf appends a diagnostic built from a format string.
func (c *Collector) Addf(kind Kind, source string, line int, format string, args ...any) {
	c.Add(Diagnostic{Kind: kind, Source: source, Line: line, Message: fmt.Sprintf(format, args...)})
}

// Merge appends every diagnostic from ds.
func (c *Collector) Merge(ds []Diagnostic) {
	c.mu.Lock()
	c.items = append(c.items, ds...)
	c.mu.Unlock()
}

// Len returns the number of collected diagnostics.
func (c *Collector) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Items returns a sorted copy of the collected diagnostics.
func (c *Collector) Items() []Diagnostic {
	c.mu.Lock()
	out := make([]Diagnostic, len(c.items))
	copy(out, c.items)
	c.mu.Unlock()

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Kind != out[j].Kind {
			return out[i].Kind < out[j].Kind
		}
		if out[i].Source != out[j].Source {
			return out[i].Source < out[j].Source
		}
		if out[i].Line != out[j].Line {
			return out[i].Line < out[j].Line
		}
		return out[i].Subject < out[j].Subject
	})
	return out
}

// Count returns the number of diagnostics of the given kind.
func (c *Collector) Count(kind Kind) int {
	c.mu.Lock()
	defer c.mu.Unlock()
	n := 0
	for _, d := range c.items {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// Summary aggregates diagnostics by kind.
type Summary struct {
	Total  int          `json:"total" toon:"total" yaml:"total"`
	ByKind map[Kind]int `json:"by_kind,omitempty" toon:"by_kind,omitempty" yaml:"by_kind,omitempty"`
	Items  []Diagnostic `json:"items,omitempty" toon:"items,omitempty" yaml:"items,omitempty"`
}

// Summary returns the aggregate view of the collected diagnostics.
func (c *Collector) Summary() Summary {
	items := c.Items()
	s := Summary{Total: len(items), Items: items}
	if len(items) > 0 {
		s.ByKind = make(map[Kind]int)
		for _, d := range items {
			s.ByKind[d.Kind]++
		}
	}
	return s
}
