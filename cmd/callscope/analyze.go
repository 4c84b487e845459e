package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/progress"
	"github.com/panbanda/callscope/internal/report"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/panbanda/callscope/pkg/analyzer"
	"github.com/panbanda/callscope/pkg/analyzer/score"
	"github.com/panbanda/callscope/pkg/callgraph"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/panbanda/callscope/pkg/profile"
	"github.com/urfave/cli/v2"
)

func analyzeCmd() *cli.Command {
	return &cli.Command{
		Name:      "analyze",
		Usage:     "Combine, resolve and analyze the call-graph fragments in a directory",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.StringSliceFlag{
				Name:    "entry",
				Aliases: []string{"e"},
				Usage:   "Entry point function (repeatable); default is every function without callers",
			},
			&cli.StringFlag{
				Name:  "entry-pattern",
				Usage: "Glob selecting additional entry points, e.g. 'main*'",
			},
			&cli.StringFlag{
				Name:  "weights",
				Usage: "Score weights as degree,betweenness,pagerank, e.g. 1,2,1",
			},
			&cli.StringFlag{
				Name:  "combined",
				Usage: "Write the combined stream to file",
			},
			&cli.StringFlag{
				Name:  "resolved",
				Usage: "Write the resolved stream to file",
			},
			&cli.StringFlag{
				Name:  "reduced",
				Usage: "Write the reduced call graph as DOT to file",
			},
			&cli.Float64Flag{
				Name:  "threshold",
				Usage: "Minimum composite score kept in the reduced graph (0-1)",
			},
			&cli.StringFlag{
				Name:  "profile",
				Usage: "CSV of function,samples used to annotate the report",
			},
			&cli.StringFlag{
				Name:  "ground-truth",
				Usage: "File listing known critical functions, one per line",
			},
			&cli.IntFlag{
				Name:  "top",
				Value: 20,
				Usage: "Number of functions shown in the table (0 for all)",
			},
		},
		Action: runAnalyzeCmd,
	}
}

func runAnalyzeCmd(c *cli.Context) error {
	dir := getDir(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := analyzeOptions(c, cfg)
	if err != nil {
		return err
	}

	format := getFormat(c, cfg)
	isVerbose := verbose(c, cfg)
	logger := newLogger(os.Stderr, isVerbose)
	progressOn := showProgress(format, isVerbose)

	var spinner *progress.Tracker
	if progressOn {
		spinner = progress.NewSpinner("Loading fragments...")
	}
	svc, err := newService(c, cfg, logger, analysis.WithProgress(spinner.Tick))
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := svc.Prepare(ctx, dir)
	if err != nil {
		spinner.FinishError(err)
		return err
	}
	spinner.FinishSuccess()

	if err := writeStreams(c, st, logger); err != nil {
		return err
	}

	var tracker *progress.Tracker
	if progressOn {
		tracker = progress.NewTracker("Analyzing", len(analysis.Stages))
		ctx = analyzer.WithTracker(ctx, analyzer.NewTracker(tracker.Stages()))
	}
	res, err := svc.AnalyzeStream(ctx, st, opts)
	if err != nil {
		tracker.FinishError(err)
		return err
	}
	tracker.FinishSuccess()

	if path := c.String("reduced"); path != "" {
		if err := writeReduced(path, res); err != nil {
			return err
		}
		logger.Debug("reduced graph written", "path", path, "nodes", len(res.Reduced.Nodes))
	}

	formatter, err := output.NewFormatter(format, c.String("output"), cfg.Output.Color)
	if err != nil {
		return err
	}
	defer formatter.Close()

	return formatter.Output(report.New(res, report.Options{Top: c.Int("top")}))
}

// analyzeOptions turns the command flags into per-run overrides. Flags that
// are not set leave the configured values in effect.
func analyzeOptions(c *cli.Context, cfg *config.Config) (analysis.AnalyzeOptions, error) {
	var opts analysis.AnalyzeOptions

	if c.IsSet("entry") || c.IsSet("entry-pattern") {
		spec := callgraph.EntrySpec{
			Names:   c.StringSlice("entry"),
			Pattern: c.String("entry-pattern"),
		}
		if err := spec.Validate(); err != nil {
			return opts, err
		}
		opts.Entry = &spec
	}

	if s := c.String("weights"); s != "" {
		w, err := score.ParseWeights(s)
		if err != nil {
			return opts, err
		}
		opts.Weights = &w
	}

	if c.IsSet("threshold") {
		t := c.Float64("threshold")
		if t < 0 || t > 1 {
			return opts, fmt.Errorf("--threshold %g must be in [0,1]", t)
		}
		opts.Threshold = &t
	}

	if path := c.String("profile"); path != "" {
		prof, err := profile.Load(path)
		if err != nil {
			return opts, err
		}
		opts.Profile = prof
	}

	truth := c.String("ground-truth")
	if truth == "" {
		truth = cfg.Scoring.GroundTruth
	}
	if truth != "" {
		names, err := score.LoadGroundTruth(truth)
		if err != nil {
			return opts, err
		}
		opts.GroundTruth = names
	}

	return opts, nil
}

// writeStreams writes the intermediate streams requested by --combined and
// --resolved.
func writeStreams(c *cli.Context, st *analysis.Stream, logger *slog.Logger) error {
	if path := c.String("combined"); path != "" {
		if err := writeFile(path, []byte(st.Combined)); err != nil {
			return err
		}
		logger.Debug("combined stream written", "path", path, "tokens", output.EstimateTokens(st.Combined))
	}
	if path := c.String("resolved"); path != "" {
		if err := writeFile(path, []byte(st.Resolved)); err != nil {
			return err
		}
		logger.Debug("resolved stream written", "path", path, "tokens", output.EstimateTokens(st.Resolved))
	}
	return nil
}

func writeReduced(path string, res *analysis.Result) error {
	data, err := res.ReducedDOT()
	if err != nil {
		return fmt.Errorf("reduced graph: %w", err)
	}
	return writeFile(path, data)
}

// runAnalysis is the watch-mode variant of analyze: it reports into w and
// never returns an error, so one bad run does not stop watching.
func runAnalysis(ctx context.Context, svc *analysis.Service, dir string, opts analysis.AnalyzeOptions, format output.Format, top int, w io.Writer) {
	colored := svc.Config().Output.Color
	res, err := svc.Analyze(ctx, dir, opts)
	if err != nil {
		if ctx.Err() == nil {
			newStatus(w, colored).Error("Analysis failed: %v", err)
		}
		return
	}
	formatter := output.NewFormatterTo(format, w, colored)
	if err := formatter.Output(report.New(res, report.Options{Top: top})); err != nil {
		newStatus(w, colored).Error("Rendering failed: %v", err)
	}
}
