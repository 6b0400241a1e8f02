package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/benbjohnson/zen/lift"
)

// ShowCommand prints the SSA form of a function and its lifted expression.
type ShowCommand struct {
	main *Main

	SSA bool
}

// NewShowCommand returns a new instance of ShowCommand.
func NewShowCommand(m *Main) *ShowCommand {
	return &ShowCommand{main: m}
}

// Command returns the cobra command for the "show" subcommand.
func (c *ShowCommand) Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <package> <function>",
		Short: "Print the symbolic expression of a function",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.Run(cmd.OutOrStdout(), args[0], args[1])
		},
	}
	cmd.Flags().BoolVar(&c.SSA, "ssa", false, "also print the SSA form")
	return cmd
}

// Run executes the "show" subcommand.
func (c *ShowCommand) Run(w io.Writer, pattern, name string) error {
	m := c.main
	fn, err := m.LoadFunction(pattern, name)
	if err != nil {
		return err
	}
	if c.SSA {
		if _, err := fn.WriteTo(w); err != nil {
			return err
		}
		fmt.Fprintln(w)
	}

	ctx := m.NewContext()
	f, err := lift.Function(ctx, fn, lift.Options{
		MaxBlockVisits: m.MaxBlockVisits,
		MaxInlineDepth: m.MaxInlineDepth,
		Logger:         m.Logger,
	})
	if err != nil {
		return err
	}

	for _, in := range f.Inputs {
		fmt.Fprintf(w, "input %s %s\n", in.Name, in.Type)
	}
	fmt.Fprintf(w, "output %s\n", f.Output)
	fmt.Fprintf(w, "complete %s\n", f.Complete)
	return nil
}
