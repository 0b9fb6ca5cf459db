// Command gotwig renders Twig templates from directories or a SQLite
// database with YAML or JSON data.
package main

import (
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

func main() {
	a := newApp(os.Stdout, os.Stderr)
	if err := a.rootCmd().Execute(); err != nil {
		a.logger.Error("gotwig failed", "error", err)
		os.Exit(1)
	}
}

// app carries the state shared by all subcommands of one invocation.
type app struct {
	stdout io.Writer
	stderr io.Writer
	logger *slog.Logger

	configPath string
	logLevel   string
	cfg        cliConfig
}

func newApp(stdout, stderr io.Writer) *app {
	return &app{
		stdout: stdout,
		stderr: stderr,
		logger: slog.New(slog.NewTextHandler(stderr, nil)),
	}
}

func (a *app) rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "gotwig",
		Short:         "Render Twig templates",
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			logger, err := newLogger(a.stderr, a.logLevel)
			if err != nil {
				return err
			}
			a.logger = logger
			return a.loadConfig(cmd)
		},
	}
	root.SetOut(a.stdout)
	root.SetErr(a.stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.configPath, "config", "", "YAML config file")
	flags.StringVar(&a.logLevel, "log-level", "warn", "log level: debug, info, warn or error")
	flags.StringArrayVarP(&a.cfg.Dirs, "dir", "d", nil, "template directory (repeatable, first match wins)")
	flags.BoolVar(&a.cfg.Strict, "strict", false, "fail on undefined variables")
	flags.IntVar(&a.cfg.MaxDepth, "max-depth", 0, "nesting limit for parsing and rendering")
	flags.BoolVar(&a.cfg.TrimBlocks, "trim-blocks", false, "drop the first newline after a tag")
	flags.BoolVar(&a.cfg.LstripBlocks, "lstrip-blocks", false, "strip indentation before a tag")
	flags.StringVar(&a.cfg.DB, "db", "", "SQLite database holding templates")
	flags.StringVar(&a.cfg.Table, "table", "", "template table in --db (default \"templates\")")

	root.AddCommand(a.renderCmd(), a.checkCmd(), a.tokensCmd(), a.astCmd())
	return root
}

func newLogger(w io.Writer, level string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, err
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: lvl})), nil
}
