package main

import (
	"io"
	"os"

	"github.com/panbanda/callscope/internal/output"
	"github.com/panbanda/callscope/internal/service/analysis"
	"github.com/urfave/cli/v2"
)

func combineCmd() *cli.Command {
	return &cli.Command{
		Name:      "combine",
		Usage:     "Concatenate the fragments in a directory into one tagged stream",
		ArgsUsage: "<dir>",
		Flags:     streamFlags(),
		Action: func(c *cli.Context) error {
			return runStreamCmd(c, false)
		},
	}
}

func resolveCmd() *cli.Command {
	return &cli.Command{
		Name:      "resolve",
		Usage:     "Combine fragments and rewrite node identifiers to function names",
		ArgsUsage: "<dir>",
		Flags:     streamFlags(),
		Action: func(c *cli.Context) error {
			return runStreamCmd(c, true)
		},
	}
}

func streamFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:    "output",
			Aliases: []string{"o"},
			Usage:   "Write the stream to file",
		},
		&cli.IntFlag{
			Name:  "budget",
			Value: output.DefaultBudget,
			Usage: "Token budget reported against the stream size",
		},
	}
}

// streamReport is the structured form of combine and resolve.
type streamReport struct {
	Dir         string             `json:"dir" toon:"dir" yaml:"dir"`
	Included    []string           `json:"included" toon:"included" yaml:"included"`
	Skipped     []string           `json:"skipped,omitempty" toon:"skipped,omitempty" yaml:"skipped,omitempty"`
	Scopes      int                `json:"scopes" toon:"scopes" yaml:"scopes"`
	Unresolved  int                `json:"unresolved" toon:"unresolved" yaml:"unresolved"`
	Resolved    bool               `json:"resolved" toon:"resolved" yaml:"resolved"`
	Tokens      output.TokenBudget `json:"tokens" toon:"tokens" yaml:"tokens"`
	Diagnostics int                `json:"diagnostics" toon:"diagnostics" yaml:"diagnostics"`
	Stream      string             `json:"stream" toon:"stream" yaml:"stream"`
}

func runStreamCmd(c *cli.Context, resolved bool) error {
	dir := getDir(c)

	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	logger := newLogger(os.Stderr, verbose(c, cfg))

	svc, err := newService(c, cfg, logger)
	if err != nil {
		return err
	}

	ctx, cancel := signalContext()
	defer cancel()

	st, err := svc.Prepare(ctx, dir)
	if err != nil {
		return err
	}
	for _, d := range st.Diagnostics {
		logger.Warn("diagnostic", "kind", d.Kind, "source", d.Source, "line", d.Line, "subject", d.Subject, "message", d.Message)
	}

	text := st.Combined
	if resolved {
		text = st.Resolved
	}
	budget := output.Budget(text, c.Int("budget"))

	format := getFormat(c, cfg)
	if format.Structured() {
		formatter, err := output.NewFormatter(format, c.String("output"), false)
		if err != nil {
			return err
		}
		defer formatter.Close()
		return formatter.Output(newStreamReport(st, text, resolved, budget))
	}

	if path := c.String("output"); path != "" {
		if err := writeFile(path, []byte(text)); err != nil {
			return err
		}
		newStatus(c.App.Writer, cfg.Output.Color).Success("Wrote %s: %d fragments, %s tokens (%.1f%% of budget)",
			path, len(st.Included), output.FormatTokenCount(budget.Tokens), budget.UsagePercent)
		return nil
	}

	_, err = io.WriteString(c.App.Writer, text)
	return err
}

func newStreamReport(st *analysis.Stream, text string, resolved bool, budget output.TokenBudget) *streamReport {
	return &streamReport{
		Dir:         st.Dir,
		Included:    st.Included,
		Skipped:     st.Skipped,
		Scopes:      st.Scopes,
		Unresolved:  st.Unresolved,
		Resolved:    resolved,
		Tokens:      budget,
		Diagnostics: len(st.Diagnostics),
		Stream:      text,
	}
}
