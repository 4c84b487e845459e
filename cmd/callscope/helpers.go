package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/mattn/go-isatty"
	"github.com/panbanda/callscope/internal/cache"
	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/panbanda/callscope/pkg/config"
	"github.com/urfave/cli/v2"
)

// getDir returns the fragment directory argument, defaulting to ".".
func getDir(c *cli.Context) string {
	if c.Args().Len() > 0 {
		return c.Args().First()
	}
	return "."
}

// loadConfig loads the file named by --config, or the first config found in
// the standard locations. An invalid file is an error.
func loadConfig(c *cli.Context) (*config.Config, error) {
	result, err := config.LoadConfig(configLoadOptions(c)...)
	if err != nil {
		return nil, err
	}
	return result.Config, nil
}

// getFormat returns --format, falling back to the configured format.
func getFormat(c *cli.Context, cfg *config.Config) output.Format {
	if f := c.String("format"); f != "" {
		return output.ParseFormat(f)
	}
	return output.ParseFormat(cfg.Output.Format)
}

func verbose(c *cli.Context, cfg *config.Config) bool {
	return c.Bool("verbose") || cfg.Output.Verbose
}

// newLogger writes structured logs to w at Info, or Debug with --verbose.
func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// showProgress reports whether progress bars should be drawn. They only go
// to an interactive stderr and never mix with verbose logs.
func showProgress(format output.Format, verbose bool) bool {
	if verbose || format != output.FormatText {
		return false
	}
	return isatty.IsTerminal(os.Stderr.Fd()) || isatty.IsCygwinTerminal(os.Stderr.Fd())
}

// newService builds an analysis service with the configured cache.
func newService(c *cli.Context, cfg *config.Config, logger *slog.Logger, opts ...analysis.Option) (*analysis.Service, error) {
	ch, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && !c.Bool("no-cache"))
	if err != nil {
		return nil, fmt.Errorf("opening cache: %w", err)
	}
	opts = append([]analysis.Option{
		analysis.WithConfig(cfg),
		analysis.WithLogger(logger),
		analysis.WithCache(ch),
	}, opts...)
	return analysis.New(opts...), nil
}

// newStatus returns a formatter for CLI status lines written to w.
func newStatus(w io.Writer, colored bool) *output.Formatter {
	return output.NewFormatterTo(output.FormatText, w, colored)
}

// signalContext is cancelled on Ctrl+C or SIGTERM.
func signalContext() (context.Context, context.CancelFunc) {
	return signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
}

// writeFile writes an auxiliary output such as the combined stream.
func writeFile(path string, data []byte) error {
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", path, err)
	}
	return nil
}
