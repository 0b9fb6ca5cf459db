package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"

	"github.com/deicod/gotwig/lexer"
	"github.com/deicod/gotwig/nodes"
	"github.com/deicod/gotwig/runtime"
)

func (a *app) renderCmd() *cobra.Command {
	var (
		dataPath string
		sets     []string
		outPath  string
		jobs     int
	)
	cmd := &cobra.Command{
		Use:   "render NAME...",
		Short: "Render templates to stdout or a file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := loadData(dataPath)
			if err != nil {
				return err
			}
			for _, s := range sets {
				if err := setValue(data, s); err != nil {
					return err
				}
			}

			loader, closeLoader, err := a.loader(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLoader()

			br := runtime.NewBatchRenderer(a.options(loader)...)
			outputs, err := br.RenderAll(cmd.Context(), args, data, jobs)
			if err != nil {
				return err
			}
			result := strings.Join(outputs, "")

			if outPath == "" {
				_, err := fmt.Fprint(a.stdout, result)
				return err
			}
			if err := atomic.WriteFile(outPath, strings.NewReader(result)); err != nil {
				return fmt.Errorf("write %s: %w", outPath, err)
			}
			a.logger.Info("wrote output", "path", outPath, "bytes", len(result), "templates", len(args))
			return nil
		},
	}
	cmd.Flags().StringVar(&dataPath, "data", "", "YAML or JSON file with the render context")
	cmd.Flags().StringArrayVar(&sets, "set", nil, "context value key=value (repeatable, dotted keys nest)")
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "write output to this file instead of stdout")
	cmd.Flags().IntVarP(&jobs, "jobs", "j", 4, "templates rendered concurrently")
	return cmd
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check NAME...",
		Short: "Compile and resolve templates, reporting errors",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeLoader, err := a.loader(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLoader()
			env := runtime.NewEnvironment(a.options(loader)...)

			var failed []error
			for _, name := range args {
				err := checkTemplate(env, name)
				if err != nil {
					failed = append(failed, err)
					fmt.Fprintf(a.stdout, "FAIL %s: %v\n", name, err)
					continue
				}
				fmt.Fprintf(a.stdout, "ok   %s\n", name)
			}
			if len(failed) > 0 {
				return fmt.Errorf("%d of %d templates failed: %w", len(failed), len(args), errors.Join(failed...))
			}
			return nil
		},
	}
}

func checkTemplate(env *runtime.Environment, name string) error {
	t, err := env.Load(name)
	if err != nil {
		return err
	}
	_, err = env.Resolve(t)
	return err
}

func (a *app) tokensCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tokens NAME",
		Short: "Print the lexer tokens of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			src, err := a.source(cmd, args[0])
			if err != nil {
				return err
			}
			config := lexer.DefaultLexerConfig()
			config.TrimBlocks = a.cfg.TrimBlocks
			config.LstripBlocks = a.cfg.LstripBlocks
			stream, err := lexer.NewLexer(config).Tokenize(src, args[0])
			if err != nil {
				return err
			}
			for _, tok := range stream.Tokens() {
				fmt.Fprintln(a.stdout, tok)
			}
			return nil
		},
	}
}

func (a *app) astCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "ast NAME",
		Short: "Print the parsed tree of a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			loader, closeLoader, err := a.loader(cmd.Context())
			if err != nil {
				return err
			}
			defer closeLoader()
			t, err := runtime.NewEnvironment(a.options(loader)...).Load(args[0])
			if err != nil {
				return err
			}
			fmt.Fprint(a.stdout, nodes.Dump(t.AST()))
			return nil
		},
	}
}

func (a *app) source(cmd *cobra.Command, name string) (string, error) {
	loader, closeLoader, err := a.loader(cmd.Context())
	if err != nil {
		return "", err
	}
	defer closeLoader()
	src, err := loader.Load(name)
	if err != nil {
		return "", err
	}
	return string(src), nil
}
