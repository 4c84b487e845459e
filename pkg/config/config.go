package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	"github.com/panbanda/callscope/pkg/analyzer/score"
	"github.com/panbanda/callscope/pkg/callgraph"
	gotoml "github.com/pelletier/go-toml"
)

// Config holds all configuration options for callscope.
type Config struct {
	// Fragment discovery
	Input InputConfig `koanf:"input" toml:"input"`

	// Entry points for reachability and critical paths
	Entry EntryConfig `koanf:"entry" toml:"entry"`

	Scoring      ScoringConfig      `koanf:"scoring" toml:"scoring"`
	PageRank     PageRankConfig     `koanf:"pagerank" toml:"pagerank"`
	CriticalPath CriticalPathConfig `koanf:"critical_path" toml:"critical_path"`
	HotPaths     HotPathConfig      `koanf:"hot_paths" toml:"hot_paths"`
	Modularity   ModularityConfig   `koanf:"modularity" toml:"modularity"`
	Reduce       ReduceConfig       `koanf:"reduce" toml:"reduce"`

	// Cache settings
	Cache CacheConfig `koanf:"cache" toml:"cache"`

	// Output settings
	Output OutputConfig `koanf:"output" toml:"output"`
}

// InputConfig selects fragment files.
type InputConfig struct {
	Pattern      string   `koanf:"pattern" toml:"pattern"`
	CombinedName string   `koanf:"combined_name" toml:"combined_name"`
	Exclude      []string `koanf:"exclude" toml:"exclude"`
	Workers      int      `koanf:"workers" toml:"workers"` // 0 = NumCPU * 2
}

// EntryConfig designates entry points. Empty means every function without
// callers.
type EntryConfig struct {
	Names   []string `koanf:"names" toml:"names"`
	Pattern string   `koanf:"pattern" toml:"pattern"`
}

// ScoringConfig controls the composite centrality score.
type ScoringConfig struct {
	Weights     score.Weights `koanf:"weights" toml:"weights"`
	TopK        int           `koanf:"top_k" toml:"top_k"`
	GroundTruth string        `koanf:"ground_truth" toml:"ground_truth"`
}

// PageRankConfig holds the power iteration parameters.
type PageRankConfig struct {
	Damping       float64 `koanf:"damping" toml:"damping"`
	Tolerance     float64 `koanf:"tolerance" toml:"tolerance"`
	MaxIterations int     `koanf:"max_iterations" toml:"max_iterations"`
}

// CriticalPathConfig bounds the longest-path search.
type CriticalPathConfig struct {
	MaxDepth int `koanf:"max_depth" toml:"max_depth"` // 0 = unbounded
	MaxPaths int `koanf:"max_paths" toml:"max_paths"` // 0 = all ties
}

// HotPathConfig bounds hot path enumeration.
type HotPathConfig struct {
	MaxDepth   int `koanf:"max_depth" toml:"max_depth"`
	Top        int `koanf:"top" toml:"top"`
	MaxEntries int `koanf:"max_entries" toml:"max_entries"`
}

// ModularityConfig controls Louvain.
type ModularityConfig struct {
	Resolution float64 `koanf:"resolution" toml:"resolution"`
	Seed       uint64  `koanf:"seed" toml:"seed"`
}

// ReduceConfig controls the reduced graph export.
type ReduceConfig struct {
	Threshold float64 `koanf:"threshold" toml:"threshold"`
}

// CacheConfig controls caching behavior.
type CacheConfig struct {
	Enabled bool   `koanf:"enabled" toml:"enabled"`
	Dir     string `koanf:"dir" toml:"dir"`
	TTL     int    `koanf:"ttl" toml:"ttl"` // TTL in hours
}

// OutputConfig controls output formatting.
type OutputConfig struct {
	Format  string `koanf:"format" toml:"format"` // text, json, markdown, toon, yaml
	Color   bool   `koanf:"color" toml:"color"`
	Verbose bool   `koanf:"verbose" toml:"verbose"`
}

// Formats lists the accepted output formats.
var Formats = []string{"text", "json", "markdown", "toon", "yaml"}

// DefaultConfig returns a config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Input: InputConfig{
			Pattern:      "*.dot",
			CombinedName: "combined.dot",
		},
		Scoring: ScoringConfig{
			Weights: score.DefaultWeights(),
			TopK:    5,
		},
		PageRank: PageRankConfig{
			Damping:       0.85,
			Tolerance:     1e-6,
			MaxIterations: 100,
		},
		HotPaths: HotPathConfig{
			MaxDepth:   5,
			Top:        10,
			MaxEntries: 10,
		},
		Modularity: ModularityConfig{
			Resolution: 1.0,
			Seed:       1,
		},
		Cache: CacheConfig{
			Enabled: true,
			Dir:     ".callscope/cache",
			TTL:     24,
		},
		Output: OutputConfig{
			Format:  "text",
			Color:   true,
			Verbose: false,
		},
	}
}

// Load loads configuration from a file. Values absent from the file keep
// their defaults.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := DefaultConfig()

	// Determine parser based on extension
	var parser koanf.Parser
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".toml":
		parser = toml.Parser()
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		parser = toml.Parser()
	}

	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, fmt.Errorf("loading config %s: %w", path, err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	return cfg, nil
}

// Find returns the first config file in the standard locations, or "".
func Find() string {
	configNames := []string{
		"callscope.toml",
		"callscope.yaml",
		"callscope.yml",
		"callscope.json",
		".callscope.toml",
		".callscope.yaml",
		".callscope.yml",
		".callscope.json",
	}

	// Search in current directory and .callscope directory
	searchDirs := []string{".", ".callscope"}

	for _, dir := range searchDirs {
		for _, name := range configNames {
			path := filepath.Join(dir, name)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

// LoadOrDefault tries to load config from standard locations or returns defaults.
func LoadOrDefault() *Config {
	if path := Find(); path != "" {
		if cfg, err := Load(path); err == nil {
			return cfg
		}
	}
	return DefaultConfig()
}

// LoadResult is a loaded configuration and the file it came from.
type LoadResult struct {
	Config *Config
	Source string // empty when defaults were used
}

type loadOptions struct {
	path string
}

// LoadOption configures LoadConfig.
type LoadOption func(*loadOptions)

// WithPath loads the given file instead of searching the standard locations.
func WithPath(path string) LoadOption {
	return func(o *loadOptions) {
		o.path = path
	}
}

// LoadConfig loads and validates configuration. Unlike LoadOrDefault, a file
// that fails to parse or validate is an error.
func LoadConfig(opts ...LoadOption) (*LoadResult, error) {
	o := &loadOptions{}
	for _, opt := range opts {
		opt(o)
	}

	path := o.path
	if path == "" {
		path = Find()
	}
	if path == "" {
		return &LoadResult{Config: DefaultConfig()}, nil
	}

	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}
	return &LoadResult{Config: cfg, Source: path}, nil
}

// Validate checks value ranges. All problems are reported together.
func (c *Config) Validate() error {
	var errs []error

	if _, err := filepath.Match(c.Input.Pattern, ""); err != nil || c.Input.Pattern == "" {
		errs = append(errs, fmt.Errorf("input.pattern %q is not a valid glob", c.Input.Pattern))
	}
	if c.Input.Workers < 0 {
		errs = append(errs, fmt.Errorf("input.workers must be >= 0"))
	}
	if err := c.EntrySpec().Validate(); err != nil {
		errs = append(errs, fmt.Errorf("entry: %w", err))
	}
	if err := c.Scoring.Weights.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("scoring.weights: %w", err))
	}
	if c.Scoring.TopK < 0 {
		errs = append(errs, fmt.Errorf("scoring.top_k must be >= 0"))
	}
	if c.PageRank.Damping <= 0 || c.PageRank.Damping >= 1 {
		errs = append(errs, fmt.Errorf("pagerank.damping %g must be in (0,1)", c.PageRank.Damping))
	}
	if c.PageRank.Tolerance <= 0 {
		errs = append(errs, fmt.Errorf("pagerank.tolerance must be positive"))
	}
	if c.PageRank.MaxIterations <= 0 {
		errs = append(errs, fmt.Errorf("pagerank.max_iterations must be positive"))
	}
	if c.CriticalPath.MaxDepth < 0 || c.CriticalPath.MaxPaths < 0 {
		errs = append(errs, fmt.Errorf("critical_path limits must be >= 0"))
	}
	if c.HotPaths.MaxDepth < 2 {
		errs = append(errs, fmt.Errorf("hot_paths.max_depth must be at least 2"))
	}
	if c.HotPaths.Top < 0 || c.HotPaths.MaxEntries < 0 {
		errs = append(errs, fmt.Errorf("hot_paths limits must be >= 0"))
	}
	if c.Modularity.Resolution <= 0 {
		errs = append(errs, fmt.Errorf("modularity.resolution must be positive"))
	}
	if c.Reduce.Threshold < 0 || c.Reduce.Threshold > 1 {
		errs = append(errs, fmt.Errorf("reduce.threshold %g must be in [0,1]", c.Reduce.Threshold))
	}
	if !validFormat(c.Output.Format) {
		errs = append(errs, fmt.Errorf("output.format %q must be one of %s", c.Output.Format, strings.Join(Formats, ", ")))
	}

	return errors.Join(errs...)
}

// EntrySpec returns the entry selection for the call graph.
func (c *Config) EntrySpec() callgraph.EntrySpec {
	return callgraph.EntrySpec{
		Names:   c.Entry.Names,
		Pattern: c.Entry.Pattern,
	}
}

// ExcludedNames returns the input file names never treated as fragments.
func (c *Config) ExcludedNames() []string {
	return append([]string{c.Input.CombinedName}, c.Input.Exclude...)
}

// TOML renders the configuration as TOML.
func (c *Config) TOML() ([]byte, error) {
	return gotoml.Marshal(*c)
}

func validFormat(f string) bool {
	for _, v := range Formats {
		if f == v {
			return true
		}
	}
	return false
}
