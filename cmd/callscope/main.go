package main

import (
	"os"

	"github.com/fatih/color"
	"github.com/urfave/cli/v2"
)

var (
	version = "dev"
	commit  = "none"    //nolint:unused // set via ldflags at build time
	date    = "unknown" //nolint:unused // set via ldflags at build time
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		color.Red("Error: %v", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	return &cli.App{
		Name:     "callscope",
		Usage:    "Call graph analysis for C programs",
		Version:  version,
		Metadata: make(map[string]interface{}),
		Description: `callscope merges the per-file call-graph DOT fragments written by
Doxygen with CALL_GRAPH = YES (foo_cgraph.dot) into one graph, resolves node
identifiers to function names, and ranks functions by degree, betweenness
and PageRank.

It also reports critical paths from the entry points, hot paths, modules
found by Louvain community detection, and functions unreachable from any
entry point.`,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to config file (TOML, YAML, or JSON)",
				EnvVars: []string{"CALLSCOPE_CONFIG"},
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json, markdown, toon, yaml (default from config, text)",
			},
			&cli.StringFlag{
				Name:    "output",
				Aliases: []string{"o"},
				Usage:   "Write output to file",
			},
			&cli.BoolFlag{
				Name:  "no-cache",
				Usage: "Disable the resolved stream cache",
			},
			&cli.BoolFlag{
				Name:  "verbose",
				Usage: "Enable verbose output",
			},
		},
		Commands: []*cli.Command{
			analyzeCmd(),
			combineCmd(),
			resolveCmd(),
			watchCmd(),
			mcpCmd(),
			configCmd(),
		},
	}
}
