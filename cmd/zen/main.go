package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/bdd"
	"github.com/benbjohnson/zen/lift"
	"github.com/benbjohnson/zen/sat"
	"github.com/benbjohnson/zen/z3"
)

func main() {
	if err := NewMain().Run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// Main represents the program and the state shared by its subcommands.
type Main struct {
	ConfigPath string
	Verbose    bool
	Backend    string

	// Lifting bounds.
	MaxBlockVisits int
	MaxInlineDepth int

	Config zen.Config
	Logger *zap.Logger
}

// NewMain returns a new instance of Main.
func NewMain() *Main {
	return &Main{
		Config: zen.DefaultConfig(),
		Logger: zap.NewNop(),
	}
}

// Run executes the program with the given command line arguments.
func (m *Main) Run(ctx context.Context, args []string) error {
	cmd := m.rootCommand()
	cmd.SetArgs(args)
	return cmd.ExecuteContext(ctx)
}

func (m *Main) rootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "zen",
		Short:         "Zen is a tool for symbolic analysis of Go functions.",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return m.init()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			_ = m.Logger.Sync()
		},
	}

	flags := cmd.PersistentFlags()
	flags.StringVarP(&m.ConfigPath, "config", "c", "", "path to YAML configuration file")
	flags.BoolVarP(&m.Verbose, "verbose", "v", false, "enable verbose logging")
	flags.StringVar(&m.Backend, "backend", "", "solver backend: auto, bdd, sat or z3")
	flags.IntVar(&m.MaxBlockVisits, "max-visits", lift.DefaultMaxBlockVisits, "maximum visits of a block per call")
	flags.IntVar(&m.MaxInlineDepth, "inline-depth", lift.DefaultMaxInlineDepth, "maximum depth of inlined calls")

	cmd.AddCommand(NewGenerateCommand(m).Command())
	cmd.AddCommand(NewFindCommand(m).Command())
	cmd.AddCommand(NewShowCommand(m).Command())
	return cmd
}

// init loads the configuration and builds the logger.
func (m *Main) init() error {
	if m.ConfigPath != "" {
		cfg, err := zen.LoadConfig(m.ConfigPath)
		if err != nil {
			return err
		}
		m.Config = cfg
	}
	if m.Backend != "" {
		m.Config.Backend = m.Backend
	}
	if err := m.Config.Validate(); err != nil {
		return err
	}

	var err error
	if m.Verbose {
		m.Logger, err = zap.NewDevelopment()
	} else {
		m.Logger, err = zap.NewProduction()
	}
	return err
}

// NewContext returns a new expression context for one command.
func (m *Main) NewContext() *zen.Context {
	return zen.NewContext(zen.WithLogger(m.Logger), zen.WithCacheSize(m.Config.CacheSize))
}

// NewSolver returns the configured backend. The returned function releases
// any native resources held by the backend.
func (m *Main) NewSolver(ctx *zen.Context) (zen.Solver, func() error, error) {
	nop := func() error { return nil }

	newBDD := func() (*bdd.Solver, error) {
		return bdd.NewSolver(ctx,
			bdd.WithLogger(m.Logger),
			bdd.WithNodeSize(m.Config.BDD.NodeSize),
			bdd.WithCacheSize(m.Config.BDD.CacheSize),
			bdd.WithVarnum(m.Config.BDD.Varnum),
		)
	}

	switch m.Config.Backend {
	case zen.BackendBDD:
		s, err := newBDD()
		return s, nop, err
	case zen.BackendSAT:
		return sat.NewSolver(ctx, sat.WithLogger(m.Logger), sat.WithTimeout(m.Config.Z3.Timeout)), nop, nil
	case zen.BackendZ3:
		s := z3.NewSolver(ctx, z3.WithLogger(m.Logger), z3.WithTimeout(m.Config.Z3.Timeout))
		return s, s.Close, nil
	default:
		bounded, err := newBDD()
		if err != nil {
			return nil, nil, err
		}
		general := z3.NewSolver(ctx, z3.WithLogger(m.Logger), z3.WithTimeout(m.Config.Z3.Timeout))
		return &zen.AutoSolver{Context: ctx, Bounded: bounded, General: general}, general.Close, nil
	}
}

// LoadFunction builds the SSA form of the named package-level function.
func (m *Main) LoadFunction(pattern, name string) (*ssa.Function, error) {
	initial, err := packages.Load(&packages.Config{Mode: packages.LoadAllSyntax}, pattern)
	if err != nil {
		return nil, err
	} else if packages.PrintErrors(initial) > 0 {
		return nil, fmt.Errorf("packages contain errors")
	}

	// Build program in SSA form.
	prog, pkgs := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	for i, pkg := range pkgs {
		if pkg == nil {
			return nil, fmt.Errorf("cannot build SSA for package %s", initial[i])
		}
	}
	prog.Build()

	for _, pkg := range pkgs {
		if fn, ok := pkg.Members[name].(*ssa.Function); ok {
			return fn, nil
		}
	}
	return nil, fmt.Errorf("function %q not found in %s", name, pattern)
}

// Lift loads and lifts the named function.
func (m *Main) Lift(ctx *zen.Context, pattern, name string) (*lift.Lifted, error) {
	fn, err := m.LoadFunction(pattern, name)
	if err != nil {
		return nil, err
	}
	return lift.Function(ctx, fn, lift.Options{
		MaxBlockVisits: m.MaxBlockVisits,
		MaxInlineDepth: m.MaxInlineDepth,
		Logger:         m.Logger,
	})
}
