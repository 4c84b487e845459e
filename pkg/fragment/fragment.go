// Package fragment loads per-translation-unit call-graph fragments and
// combines them into a single provenance-tagged stream.
package fragment

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/cespare/xxhash/v2"
	"github.com/panbanda/callscope/internal/fileproc"
	"github.com/panbanda/callscope/pkg/diag"
)

const (
	// TagPrefix starts every provenance tag line in a combined stream.
	TagPrefix = "// fragment: "

	// CombinedMarker is the first line of every combined stream. Files
	// starting with it are never read back as fragments.
	CombinedMarker = "// callscope: combined call graph"

	// GraphName is the identifier of the outer graph declaration.
	GraphName = "callgraph"

	DefaultPattern      = "*.dot"
	DefaultCombinedName = "combined.dot"
)

// Fragment is one externally produced graph description.
type Fragment struct {
	Name        string
	Path        string
	Lines       []string
	Fingerprint uint64
}

// Parse builds a Fragment from raw file content.
func Parse(name string, data []byte) Fragment {
	var lines []string
	sc := bufio.NewScanner(bytes.NewReader(data))
	sc.Buffer(make([]byte, 0, 64*1024), 16*1024*1024)
	for sc.Scan() {
		lines = append(lines, strings.TrimRight(sc.Text(), " \t\r"))
	}
	return Fragment{
		Name:        name,
		Lines:       lines,
		Fingerprint: xxhash.Sum64(data),
	}
}

// Tag returns the provenance tag line for a fragment name.
func Tag(name string) string {
	return TagPrefix + name
}

// IsTag reports whether line is a provenance tag and returns the fragment name.
func IsTag(line string) (string, bool) {
	trimmed := strings.TrimSpace(line)
	if !strings.HasPrefix(trimmed, TagPrefix) {
		return "", false
	}
	return strings.TrimSpace(strings.TrimPrefix(trimmed, TagPrefix)), true
}

type loadOptions struct {
	pattern    string
	exclude    map[string]bool
	maxWorkers int
	onProgress fileproc.ProgressFunc
}

// LoadOption configures LoadDir.
type LoadOption func(*loadOptions)

// WithPattern sets the glob that fragment file names must match.
func WithPattern(pattern string) LoadOption {
	return func(o *loadOptions) {
		if pattern != "" {
			o.pattern = pattern
		}
	}
}

// WithExclude skips files with the given base names.
func WithExclude(names ...string) LoadOption {
	return func(o *loadOptions) {
		for _, n := range names {
			if n != "" {
				o.exclude[filepath.Base(n)] = true
			}
		}
	}
}

// WithWorkers bounds the number of concurrent file reads.
func WithWorkers(n int) LoadOption {
	return func(o *loadOptions) {
		o.maxWorkers = n
	}
}

// WithProgress registers a callback invoked after each file is read.
func WithProgress(fn func()) LoadOption {
	return func(o *loadOptions) {
		o.onProgress = fn
	}
}

// ListDir returns the sorted fragment file paths in dir. It fails with
// diag.ErrInputMissing when dir is absent or not a directory.
func ListDir(dir string, opts ...LoadOption) ([]string, error) {
	o := applyOptions(opts)

	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("fragment directory %s: %w", dir, diag.ErrInputMissing)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("fragment directory %s is not a directory: %w", dir, diag.ErrInputMissing)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading fragment directory %s: %w", dir, err)
	}

	var paths []string
	for _, e := range entries {
		if e.IsDir() || o.exclude[e.Name()] {
			continue
		}
		match, err := filepath.Match(o.pattern, e.Name())
		if err != nil {
			return nil, fmt.Errorf("invalid fragment pattern %q: %w", o.pattern, err)
		}
		if match {
			paths = append(paths, filepath.Join(dir, e.Name()))
		}
	}
	sort.Strings(paths)
	return paths, nil
}

// LoadDir reads every fragment in dir in lexical file-name order. Previously
// combined output (by name or by its marker line) is excluded. A directory
// with zero fragments fails with diag.ErrInputMissing.
func LoadDir(ctx context.Context, dir string, opts ...LoadOption) ([]Fragment, error) {
	o := applyOptions(opts)

	paths, err := ListDir(dir, opts...)
	if err != nil {
		return nil, err
	}

	frags, errs := fileproc.ForEachFileIndexed(ctx, paths, o.maxWorkers, func(path string) (Fragment, error) {
		data, err := os.ReadFile(path)
		if err != nil {
			return Fragment{}, err
		}
		f := Parse(filepath.Base(path), data)
		f.Path = path
		return f, nil
	}, o.onProgress)
	if errs != nil {
		return nil, fmt.Errorf("reading fragments: %w", errs)
	}

	kept := frags[:0]
	for _, f := range frags {
		if !isCombined(f) {
			kept = append(kept, f)
		}
	}

	if len(kept) == 0 {
		return nil, fmt.Errorf("no fragments matching %q in %s: %w", o.pattern, dir, diag.ErrInputMissing)
	}
	return kept, nil
}

func applyOptions(opts []LoadOption) *loadOptions {
	o := &loadOptions{
		pattern: DefaultPattern,
		exclude: map[string]bool{DefaultCombinedName: true},
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func isCombined(f Fragment) bool {
	for _, line := range f.Lines {
		if strings.TrimSpace(line) == "" {
			continue
		}
		return strings.TrimSpace(line) == CombinedMarker
	}
	return false
}
