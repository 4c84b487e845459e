package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/panbanda/callscope/internal/watch"
	"github.com/urfave/cli/v2"
)

func watchCmd() *cli.Command {
	return &cli.Command{
		Name:      "watch",
		Usage:     "Watch a fragment directory and re-analyze on change",
		ArgsUsage: "<dir>",
		Flags: []cli.Flag{
			&cli.DurationFlag{
				Name:  "debounce",
				Value: watch.DefaultDebounce,
				Usage: "How long fragments must be unchanged before re-analyzing",
			},
			&cli.StringSliceFlag{
				Name:    "entry",
				Aliases: []string{"e"},
				Usage:   "Entry point function (repeatable)",
			},
			&cli.StringFlag{
				Name:  "entry-pattern",
				Usage: "Glob selecting additional entry points",
			},
			&cli.StringFlag{
				Name:  "weights",
				Usage: "Score weights as degree,betweenness,pagerank",
			},
			&cli.IntFlag{
				Name:  "top",
				Value: 20,
				Usage: "Number of functions shown in the table (0 for all)",
			},
		},
		Action: runWatchCmd,
	}
}

func runWatchCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	opts, err := analyzeOptions(c, cfg)
	if err != nil {
		return err
	}

	dir, err := filepath.Abs(getDir(c))
	if err != nil {
		return fmt.Errorf("invalid path: %w", err)
	}
	if info, err := os.Stat(dir); err != nil || !info.IsDir() {
		return fmt.Errorf("%s is not a directory", dir)
	}

	logger := newLogger(os.Stderr, verbose(c, cfg))
	svc, err := newService(c, cfg, logger)
	if err != nil {
		return err
	}

	watcher, err := watch.NewWatcher(dir, cfg, c.Duration("debounce"))
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}
	defer watcher.Stop()

	format := getFormat(c, cfg)
	top := c.Int("top")
	watcher.SetCallback(func(ctx context.Context, changed []string) {
		logger.Debug("fragments changed", "count", len(changed))
		runAnalysis(ctx, svc, dir, opts, format, top, os.Stdout)
	})

	ctx, cancel := signalContext()
	defer cancel()

	// Report the current state before waiting for changes.
	runAnalysis(ctx, svc, dir, opts, format, top, os.Stdout)

	err = watcher.Start(ctx)
	if errors.Is(err, context.Canceled) {
		fmt.Fprintln(c.App.Writer)
		newStatus(c.App.Writer, cfg.Output.Color).Info("Stopping watch...")
		return nil
	}
	return err
}
