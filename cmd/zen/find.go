package main

import (
	"fmt"
	"io"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/benbjohnson/zen"
)

// FindCommand represents a command for finding inputs that produce an output.
type FindCommand struct {
	main *Main

	Output string
	All    bool
	Limit  int
}

// NewFindCommand returns a new instance of FindCommand.
func NewFindCommand(m *Main) *FindCommand {
	return &FindCommand{main: m}
}

// Command returns the cobra command for the "find" subcommand.
func (c *FindCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "find <package> <function> --output <value>",
		Short: "Find inputs for which a function returns a given value",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.OutOrStdout(), args[0], args[1])
		},
	}
	cmd.Flags().StringVarP(&c.Output, "output", "o", "", "expected output value")
	cmd.Flags().BoolVar(&c.All, "all", false, "print every matching input")
	cmd.Flags().IntVar(&c.Limit, "limit", 0, "maximum inputs printed with --all")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

// Run executes the "find" subcommand.
func (c *FindCommand) Run(w io.Writer, pattern, name string) error {
	m := c.main
	ctx := m.NewContext()
	f, err := m.Lift(ctx, pattern, name)
	if err != nil {
		return err
	}

	want, err := ParseValue(ctx, f.Output.Type, c.Output)
	if err != nil {
		return fmt.Errorf("invalid output: %w", err)
	}

	s, closeFn, err := m.NewSolver(ctx)
	if err != nil {
		return err
	}
	defer closeFn()

	invariant := func(_ []*zen.Expr, out *zen.Expr) *zen.Expr {
		return ctx.And(f.Complete, ctx.Eq(out, want))
	}

	if !c.All {
		inputs, ok, err := f.Find(s, invariant)
		if err != nil {
			return err
		} else if !ok {
			return fmt.Errorf("no inputs to %s produce %s", name, c.Output)
		}
		fmt.Fprintf(w, "%s(%s) = %v\n", name, formatArgs(f.Inputs, inputs), want.Interface())
		return nil
	}

	results, err := f.FindAll(s, invariant, zen.FindOptions{Limit: c.Limit})
	if err != nil {
		return err
	}
	for _, inputs := range results {
		fmt.Fprintf(w, "%s(%s) = %v\n", name, formatArgs(f.Inputs, inputs), want.Interface())
	}
	return nil
}

// ParseValue parses a boolean or integer constant of type t.
func ParseValue(ctx *zen.Context, t *zen.Type, s string) (*zen.Expr, error) {
	switch {
	case t.Kind == zen.KindBool:
		v, err := strconv.ParseBool(s)
		if err != nil {
			return nil, err
		}
		return ctx.Bool(v), nil
	case t.Kind == zen.KindBitVec && t.Signed:
		v, err := strconv.ParseInt(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return ctx.Value(t, v)
	case t.Kind == zen.KindBitVec:
		v, err := strconv.ParseUint(s, 0, 64)
		if err != nil {
			return nil, err
		}
		return ctx.Value(t, v)
	default:
		return nil, fmt.Errorf("%w: cannot parse value of type %s", zen.ErrUnsupported, t)
	}
}
