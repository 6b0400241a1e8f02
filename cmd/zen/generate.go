package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/benbjohnson/zen"
)

// GenerateCommand represents a command for generating test inputs.
type GenerateCommand struct {
	main *Main

	MaxDepth int
	Searcher string
	Seed     int64
}

// NewGenerateCommand returns a new instance of GenerateCommand.
func NewGenerateCommand(m *Main) *GenerateCommand {
	return &GenerateCommand{main: m}
}

// Command returns the cobra command for the "generate" subcommand.
func (c *GenerateCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "generate <package> <function>",
		Short: "Generate one input per feasible path through a function",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.OutOrStdout(), cmd.Flags(), args[0], args[1])
		},
	}
	cmd.Flags().IntVar(&c.MaxDepth, "max-depth", 0, "maximum branch decisions per path (default from config)")
	cmd.Flags().StringVar(&c.Searcher, "searcher", "", "path order: dfs, bfs or random (default from config)")
	cmd.Flags().Int64Var(&c.Seed, "seed", 0, "random searcher seed (default from config)")
	return cmd
}

type flagSet interface {
	Changed(name string) bool
}

// Run executes the "generate" subcommand.
func (c *GenerateCommand) Run(w io.Writer, flags flagSet, pattern, name string) error {
	m := c.main
	cfg := m.Config.Generate
	if flags.Changed("max-depth") {
		cfg.MaxDepth = c.MaxDepth
	}
	if flags.Changed("searcher") {
		cfg.Searcher = c.Searcher
	}
	if flags.Changed("seed") {
		cfg.Seed = c.Seed
	}

	ctx := m.NewContext()
	f, err := m.Lift(ctx, pattern, name)
	if err != nil {
		return err
	}

	s, closeFn, err := m.NewSolver(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	searcher, err := zen.NewSearcher(cfg.Searcher, cfg.Seed)
	if err != nil {
		return err
	}

	// Only paths that return within the lifting bounds are reported.
	witnesses, err := ctx.GenerateInputs(f.Function, s, zen.GenerateOptions{
		MaxDepth:     cfg.MaxDepth,
		Precondition: func([]*zen.Expr) *zen.Expr { return f.Complete },
		Searcher:     searcher,
	})
	if err != nil {
		return err
	}
	m.Logger.Info("generated inputs", zap.String("function", name), zap.Int("witnesses", len(witnesses)))

	for _, wt := range witnesses {
		fmt.Fprintf(w, "%s(%s) = %v\n", name, formatArgs(f.Inputs, wt.Inputs), wt.Output.Interface())
	}
	return nil
}

func formatArgs(inputs, values []*zen.Expr) string {
	a := make([]string, len(values))
	for i, v := range values {
		a[i] = fmt.Sprintf("%s=%v", inputs[i].Name, v.Interface())
	}
	return strings.Join(a, ", ")
}
