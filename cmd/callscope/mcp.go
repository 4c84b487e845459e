package main

import (
	"fmt"
	"os"

	"github.com/panbanda/callscope/internal/cache"
	"github.com/panbanda/callscope/internal/mcpserver"
	"github.com/urfave/cli/v2"
)

func mcpCmd() *cli.Command {
	return &cli.Command{
		Name:  "mcp",
		Usage: "Start MCP (Model Context Protocol) server for LLM tool integration",
		Description: `Starts an MCP server over stdio transport that exposes callscope's
call-graph analysis as tools that LLMs can invoke.

To use with Claude Desktop, add to your config:
  {
    "mcpServers": {
      "callscope": {
        "command": "callscope",
        "args": ["mcp"]
      }
    }
  }

Available tools:
  - analyze_callgraph    Rank functions, critical paths, modules and dead code
  - combine_fragments    Combined or resolved fragment stream for direct reading`,
		Action: runMCPCmd,
		Subcommands: []*cli.Command{
			{
				Name:   "manifest",
				Usage:  "Print the MCP registry manifest (server.json)",
				Action: runMCPManifestCmd,
			},
		},
	}
}

func runMCPCmd(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	ch, err := cache.New(cfg.Cache.Dir, cfg.Cache.TTL, cfg.Cache.Enabled && !c.Bool("no-cache"))
	if err != nil {
		return fmt.Errorf("opening cache: %w", err)
	}

	ctx, cancel := signalContext()
	defer cancel()

	server := mcpserver.NewServer(version,
		mcpserver.WithConfig(cfg),
		mcpserver.WithCache(ch),
		mcpserver.WithLogger(newLogger(os.Stderr, verbose(c, cfg))),
	)
	return server.Run(ctx)
}

func runMCPManifestCmd(c *cli.Context) error {
	data, err := mcpserver.GenerateManifest(version)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, string(data))
	return nil
}
