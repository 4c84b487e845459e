// Package analysis runs the callscope pipeline: fragments are combined and
// resolved in sequence, then the independent analyses run concurrently over
// the immutable call graph.
package analysis

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"path/filepath"
	"strconv"
	"time"

	"github.com/panbanda/callscope/internal/cache"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/analyzer/critpath"
	"github.com/panbanda/callscope/pkg/analyzer/deadcode"
	"github.com/panbanda/callscope/pkg/analyzer/hotpath"
	"github.com/panbanda/callscope/pkg/analyzer/metrics"
	"github.com/panbanda/callscope/pkg/analyzer/modularity"
	"github.com/panbanda/callscope/pkg/analyzer/score"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/diag"
	"github.com/panbanda/callscope/pkg/fragment"
	"github.com/panbanda/callscope/pkg/profile"
	"github.com/panbanda/callscope/pkg/resolve"
	"github.com/sourcegraph/conc"
	"github.com/sourcegraph/conc/panics"
)

// streamVersion is part of every cache digest. Bump it when combining or
// resolution output changes.
const streamVersion = "callscope-stream/1"

// Analysis names, as reported in progress and diagnostics.
const (
	StageMetrics      = "metrics"
	StageCriticalPath = "critical_path"
	StageHotPaths     = "hot_paths"
	StageModularity   = "modularity"
	StageDeadCode     = "dead_code"
)

// Stages lists the concurrent analyses in report order.
var Stages = []string{StageMetrics, StageCriticalPath, StageHotPaths, StageModularity, StageDeadCode}

// Service orchestrates call-graph analysis.
type Service struct {
	config     *config.Config
	logger     *slog.Logger
	cache      *cache.Cache
	onProgress func()

	// stageHook runs at the start of every analysis; tests use it to inject
	// failures.
	stageHook func(stage string)
}

// Option configures a Service.
type Option func(*Service)

// WithConfig sets the configuration.
func WithConfig(cfg *config.Config) Option {
	return func(s *Service) {
		s.config = cfg
	}
}

// WithLogger sets the structured logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// WithCache enables the resolved-stream cache.
func WithCache(c *cache.Cache) Option {
	return func(s *Service) {
		s.cache = c
	}
}

// WithProgress registers a callback invoked after each fragment is read.
func WithProgress(fn func()) Option {
	return func(s *Service) {
		s.onProgress = fn
	}
}

// New creates a new analysis service.
func New(opts ...Option) *Service {
	s := &Service{
		config: config.DefaultConfig(),
		logger: slog.New(slog.DiscardHandler),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Config returns the effective configuration.
func (s *Service) Config() *config.Config {
	return s.config
}

// Stream is the combined and resolved text of one fragment directory.
type Stream struct {
	Dir         string            `json:"dir"`
	Included    []string          `json:"included"`
	Skipped     []string          `json:"skipped,omitempty"`
	Duplicates  [][2]string       `json:"duplicates,omitempty"`
	Combined    string            `json:"combined"`
	Resolved    string            `json:"resolved"`
	Scopes      int               `json:"scopes"`
	Unresolved  int               `json:"unresolved"`
	Diagnostics []diag.Diagnostic `json:"diagnostics,omitempty"`

	// Cached is set when the stream was served from the cache.
	Cached bool `json:"-"`
}

// Prepare loads, combines and resolves the fragments in dir. These stages
// run strictly in sequence. A missing or empty directory, or one whose
// fragments are all malformed, fails with diag.ErrInputMissing.
func (s *Service) Prepare(ctx context.Context, dir string) (*Stream, error) {
	start := time.Now()
	frags, err := fragment.LoadDir(ctx, dir,
		fragment.WithPattern(s.config.Input.Pattern),
		fragment.WithExclude(s.config.ExcludedNames()...),
		fragment.WithWorkers(s.config.Input.Workers),
		fragment.WithProgress(s.onProgress),
	)
	if err != nil {
		return nil, err
	}
	s.logger.Debug("fragments loaded", "dir", dir, "count", len(frags), "elapsed", time.Since(start))

	key := streamKey(dir)
	digest := fragmentDigest(frags)
	if data, ok := s.cache.Load(key, digest); ok {
		var st Stream
		if err := json.Unmarshal(data, &st); err == nil {
			st.Cached = true
			s.logger.Debug("resolved stream served from cache", "dir", dir)
			return &st, nil
		}
	}

	combined := fragment.Combine(frags)
	for _, d := range combined.Duplicates {
		s.logger.Debug("duplicate fragment content", "first", d[0], "duplicate", d[1])
	}
	if len(combined.Included) == 0 {
		return nil, fmt.Errorf("no well-formed fragments in %s: %w", dir, diag.ErrInputMissing)
	}

	start = time.Now()
	resolved := resolve.Resolve(combined.Text)
	s.logger.Debug("stream resolved", "scopes", len(resolved.Scopes), "unresolved", resolved.UnresolvedCount(), "elapsed", time.Since(start))

	st := &Stream{
		Dir:         dir,
		Included:    combined.Included,
		Skipped:     combined.Skipped,
		Duplicates:  combined.Duplicates,
		Combined:    combined.Text,
		Resolved:    resolved.Text,
		Scopes:      len(resolved.Scopes),
		Unresolved:  resolved.UnresolvedCount(),
		Diagnostics: append(append([]diag.Diagnostic(nil), combined.Diagnostics...), resolved.Diagnostics...),
	}

	if data, err := json.Marshal(st); err == nil {
		if err := s.cache.Store(key, digest, data); err != nil {
			s.logger.Debug("cache store failed", "error", err)
		}
	}
	return st, nil
}

// AnalyzeOptions overrides configuration for a single run.
type AnalyzeOptions struct {
	// Entry replaces the configured entry selection when non-nil.
	Entry *callgraph.EntrySpec
	// Weights replaces the configured scoring weights when non-nil.
	Weights *score.Weights
	// Threshold replaces the configured reduced-graph threshold when non-nil.
	Threshold *float64

	Profile     *profile.Profile
	GroundTruth []string
	TopK        int
}

// Analyze runs the whole pipeline over a fragment directory.
func (s *Service) Analyze(ctx context.Context, dir string, opts AnalyzeOptions) (*Result, error) {
	st, err := s.Prepare(ctx, dir)
	if err != nil {
		return nil, err
	}
	return s.AnalyzeStream(ctx, st, opts)
}

// AnalyzeStream builds the call graph from a prepared stream and analyzes it.
func (s *Service) AnalyzeStream(ctx context.Context, st *Stream, opts AnalyzeOptions) (*Result, error) {
	col := diag.NewCollector()
	col.Merge(st.Diagnostics)

	parsed := callgraph.Parse(st.Resolved)
	col.Merge(parsed.Diagnostics)
	if parsed.Chunks > 0 && len(parsed.Skipped) == parsed.Chunks {
		return nil, fmt.Errorf("no parseable fragments in %s: %w", st.Dir, diag.ErrInputMissing)
	}

	res, err := s.analyzeGraph(ctx, parsed.Graph, opts, col)
	if err != nil {
		return nil, err
	}
	res.Dir = st.Dir
	res.Fragments = st.Included
	res.Skipped = append(append([]string(nil), st.Skipped...), parsed.Skipped...)
	res.Cached = st.Cached
	res.Stream = st
	return res, nil
}

// AnalyzeGraph analyzes an already built graph.
func (s *Service) AnalyzeGraph(ctx context.Context, g *callgraph.Graph, opts AnalyzeOptions) (*Result, error) {
	col := diag.NewCollector()
	if g.Len() == 0 {
		col.Add(diag.Diagnostic{Kind: diag.KindEmptyGraph, Message: "call graph has no nodes"})
	}
	return s.analyzeGraph(ctx, g, opts, col)
}

func (s *Service) analyzeGraph(ctx context.Context, g *callgraph.Graph, opts AnalyzeOptions, col *diag.Collector) (*Result, error) {
	cfg := s.config

	spec := cfg.EntrySpec()
	if opts.Entry != nil {
		spec = *opts.Entry
	}
	if err := spec.Validate(); err != nil {
		return nil, err
	}
	weights := cfg.Scoring.Weights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	if err := weights.Validate(); err != nil {
		return nil, err
	}

	entries := callgraph.Entries(g, spec)
	for _, name := range entries.Missing {
		s.logger.Debug("entry point not in graph", "entry", name)
	}
	if entries.Fallback {
		s.logger.Warn("no entry point matched; using functions without callers")
	}

	res := &Result{
		Graph:         g,
		Summary:       g.Summarize(),
		Entries:       entries.Names(g),
		EntryFallback: entries.Fallback,
	}

	tracker := analyzer.TrackerFromContext(ctx)
	tracker.Expect(Stages...)

	wg := conc.NewWaitGroup()
	run := func(stage string, fn func() error) {
		wg.Go(func() {
			defer tracker.Finish(stage)
			start := time.Now()

			var err error
			if r := panics.Try(func() {
				if s.stageHook != nil {
					s.stageHook(stage)
				}
				err = fn()
			}); r != nil {
				err = r.AsError()
			}
			if err != nil {
				col.Add(diag.Diagnostic{
					Kind:    diag.KindAnalysisFailed,
					Subject: stage,
					Message: err.Error(),
				})
				return
			}
			s.logger.Debug("analysis finished", "analysis", stage, "elapsed", time.Since(start))
		})
	}

	run(StageMetrics, func() error {
		m, err := metrics.New(
			metrics.WithDamping(cfg.PageRank.Damping),
			metrics.WithTolerance(cfg.PageRank.Tolerance),
			metrics.WithMaxIterations(cfg.PageRank.MaxIterations),
		).Analyze(ctx, g)
		if err != nil {
			return err
		}
		r, err := score.New(score.WithWeights(weights)).Analyze(ctx, m)
		if err != nil {
			return err
		}
		res.Metrics, res.Ranking = m, r
		return nil
	})

	run(StageCriticalPath, func() error {
		r, err := critpath.New(
			critpath.WithMaxDepth(cfg.CriticalPath.MaxDepth),
			critpath.WithMaxPaths(cfg.CriticalPath.MaxPaths),
		).AnalyzeFrom(ctx, g, entries)
		res.CriticalPath = r
		return err
	})

	run(StageHotPaths, func() error {
		r, err := hotpath.New(
			hotpath.WithMaxDepth(cfg.HotPaths.MaxDepth),
			hotpath.WithTop(cfg.HotPaths.Top),
			hotpath.WithMaxEntries(cfg.HotPaths.MaxEntries),
		).AnalyzeFrom(ctx, g, entries)
		res.HotPaths = r
		return err
	})

	run(StageModularity, func() error {
		r, err := modularity.New(
			modularity.WithResolution(cfg.Modularity.Resolution),
			modularity.WithSeed(cfg.Modularity.Seed),
		).Analyze(ctx, g)
		res.Modularity = r
		return err
	})

	run(StageDeadCode, func() error {
		r, err := deadcode.New().AnalyzeFrom(ctx, g, entries)
		res.DeadCode = r
		return err
	})

	wg.Wait()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if res.Metrics != nil && res.Metrics.PageRank.Approximate {
		col.Add(diag.Diagnostic{
			Kind:    diag.KindNonConvergence,
			Subject: "pagerank",
			Message: fmt.Sprintf("no convergence within %d iterations (residual %.3g); ranks are approximate",
				res.Metrics.PageRank.Iterations, res.Metrics.PageRank.Residual),
		})
	}

	if res.Ranking != nil && len(opts.GroundTruth) > 0 {
		k := opts.TopK
		if k == 0 {
			k = cfg.Scoring.TopK
		}
		cmp := score.Compare(res.Ranking, res.Metrics, opts.GroundTruth, k)
		res.Comparison = &cmp
	}

	threshold := cfg.Reduce.Threshold
	if opts.Threshold != nil {
		threshold = *opts.Threshold
	}
	if res.Ranking != nil {
		res.Reduced = Reduce(res.Ranking, threshold)
	}

	res.Functions = buildFunctions(res, opts.Profile)
	annotateHotPaths(res.HotPaths, opts.Profile)
	if opts.Profile != nil {
		res.ProfileTotal = opts.Profile.Total()
		for _, name := range opts.Profile.Unknown(g.Has) {
			s.logger.Debug("profiled function not in call graph", "function", name)
		}
	}

	res.Diagnostics = col.Summary()
	for _, d := range res.Diagnostics.Items {
		s.logger.Warn("diagnostic", "kind", d.Kind, "source", d.Source, "line", d.Line, "subject", d.Subject, "message", d.Message)
	}
	return res, nil
}

func streamKey(dir string) string {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	return "stream:" + dir
}

// fragmentDigest identifies a fragment set by names and content, in order.
func fragmentDigest(frags []fragment.Fragment) string {
	parts := [][]byte{[]byte(streamVersion)}
	for _, f := range frags {
		parts = append(parts, []byte(f.Name), []byte(strconv.Itoa(len(f.Lines))))
		for _, line := range f.Lines {
			parts = append(parts, []byte(line))
		}
	}
	return cache.Digest(parts...)
}
