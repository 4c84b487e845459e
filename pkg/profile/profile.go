// Package profile loads externally measured per-function sample counts used
// to annotate reports. Samples never influence scoring.
package profile

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"
)

// Profile maps function names to sample counts.
type Profile struct {
	samples map[string]int64
	total   int64
}

// Parse reads `function,samples` records. A first record whose sample field
// is not a number is treated as a header. Blank lines and lines starting
// with '#' are ignored; repeated functions accumulate.
func Parse(r io.Reader) (*Profile, error) {
	cr := csv.NewReader(r)
	cr.Comment = '#'
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	p := &Profile{samples: make(map[string]int64)}
	for row := 1; ; row++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading profile: %w", err)
		}
		if len(rec) < 2 {
			return nil, fmt.Errorf("profile record %d: want function,samples, got %d field(s)", row, len(rec))
		}
		name := strings.TrimSpace(rec[0])
		n, err := strconv.ParseInt(strings.TrimSpace(rec[1]), 10, 64)
		if err != nil {
			if row == 1 {
				continue
			}
			return nil, fmt.Errorf("profile record %d: invalid sample count %q", row, rec[1])
		}
		if n < 0 {
			return nil, fmt.Errorf("profile record %d: negative sample count %d", row, n)
		}
		if name == "" {
			continue
		}
		p.samples[name] += n
		p.total += n
	}
	return p, nil
}

// Load reads a profile file.
func Load(path string) (*Profile, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening profile: %w", err)
	}
	defer f.Close()
	return Parse(f)
}

// Samples returns the count recorded for name.
func (p *Profile) Samples(name string) int64 {
	if p == nil {
		return 0
	}
	return p.samples[name]
}

// SumOf returns the summed samples of the given functions.
func (p *Profile) SumOf(names []string) int64 {
	var sum int64
	for _, n := range names {
		sum += p.Samples(n)
	}
	return sum
}

// Share returns the fraction of all samples attributed to name.
func (p *Profile) Share(name string) float64 {
	if p == nil || p.total == 0 {
		return 0
	}
	return float64(p.samples[name]) / float64(p.total)
}

// Total returns the sum of all samples.
func (p *Profile) Total() int64 {
	if p == nil {
		return 0
	}
	return p.total
}

// Functions returns the profiled function names in ascending order.
func (p *Profile) Functions() []string {
	if p == nil {
		return nil
	}
	names := make([]string, 0, len(p.samples))
	for n := range p.samples {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Unknown returns profiled functions for which known reports false.
func (p *Profile) Unknown(known func(string) bool) []string {
	var out []string
	for _, n := range p.Functions() {
		if !known(n) {
			out = append(out, n)
		}
	}
	return out
}
