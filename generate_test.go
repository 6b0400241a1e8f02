package zen_test

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/sat"
)

// classify returns 0, 1 or 2 depending on the magnitude of its input.
func classify(ctx *zen.Context) *zen.Function {
	return ctx.Function([]*zen.Type{zen.Uint8}, func(args ...*zen.Expr) *zen.Expr {
		x := args[0]
		return ctx.If(ctx.Lt(x, ctx.Uint8(10)), ctx.Uint8(0),
			ctx.If(ctx.Lt(x, ctx.Uint8(100)), ctx.Uint8(1), ctx.Uint8(2)))
	})
}

func TestContext_GenerateInputs(t *testing.T) {
	t.Run("Paths", func(t *testing.T) {
		ctx := zen.NewContext()
		f := classify(ctx)

		witnesses := MustGenerateInputs(t, ctx, f, zen.GenerateOptions{})
		require.Len(t, witnesses, 3)
		if diff := cmp.Diff([]any{uint8(0), uint8(1), uint8(2)}, witnessOutputs(witnesses)); diff != "" {
			t.Fatal(diff)
		}

		// Every witness reproduces its output and satisfies its path.
		for _, w := range witnesses {
			out, err := f.EvaluateExpr(w.Inputs...)
			require.NoError(t, err)
			require.Same(t, w.Output, out)
			require.NotEmpty(t, w.Path)

			bindings := map[*zen.Expr]*zen.Expr{f.Inputs[0]: w.Inputs[0]}
			for _, cond := range w.Path {
				v, err := ctx.Evaluate(cond, bindings)
				require.NoError(t, err)
				require.True(t, v.IsTrue(), cond.String())
			}
		}
	})

	t.Run("Searchers", func(t *testing.T) {
		for _, searcher := range []zen.Searcher{
			zen.NewDFSSearcher(),
			zen.NewBFSSearcher(),
			zen.NewRandomSearcher(rand.New(rand.NewSource(1))),
		} {
			ctx := zen.NewContext()
			witnesses := MustGenerateInputs(t, ctx, classify(ctx), zen.GenerateOptions{Searcher: searcher})
			if diff := cmp.Diff([]any{uint8(0), uint8(1), uint8(2)}, witnessOutputs(witnesses)); diff != "" {
				t.Fatalf("%T: %s", searcher, diff)
			}
		}
	})

	t.Run("Precondition", func(t *testing.T) {
		ctx := zen.NewContext()
		witnesses := MustGenerateInputs(t, ctx, classify(ctx), zen.GenerateOptions{
			Precondition: func(inputs []*zen.Expr) *zen.Expr { return ctx.Ge(inputs[0], ctx.Uint8(50)) },
		})
		if diff := cmp.Diff([]any{uint8(1), uint8(2)}, witnessOutputs(witnesses)); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("UnsatisfiablePrecondition", func(t *testing.T) {
		ctx := zen.NewContext()
		witnesses := MustGenerateInputs(t, ctx, classify(ctx), zen.GenerateOptions{
			Precondition: func(inputs []*zen.Expr) *zen.Expr {
				return ctx.And(ctx.Lt(inputs[0], ctx.Uint8(5)), ctx.Gt(inputs[0], ctx.Uint8(200)))
			},
		})
		require.Empty(t, witnesses)
	})

	t.Run("MaxDepth", func(t *testing.T) {
		ctx := zen.NewContext()
		witnesses := MustGenerateInputs(t, ctx, classify(ctx), zen.GenerateOptions{MaxDepth: 1})
		require.Len(t, witnesses, 2)
	})

	t.Run("Bindings", func(t *testing.T) {
		ctx := zen.NewContext()
		f := ctx.Function([]*zen.Type{zen.Bool, zen.Int8}, func(args ...*zen.Expr) *zen.Expr {
			return ctx.If(args[0],
				ctx.If(ctx.Lt(args[1], ctx.Int8(0)), ctx.Uint8(1), ctx.Uint8(2)),
				ctx.Uint8(3))
		})

		witnesses := MustGenerateInputs(t, ctx, f, zen.GenerateOptions{
			Bindings: map[*zen.Expr]*zen.Expr{f.Inputs[0]: ctx.True()},
		})
		if diff := cmp.Diff([]any{uint8(1), uint8(2)}, witnessOutputs(witnesses)); diff != "" {
			t.Fatal(diff)
		}
		for _, w := range witnesses {
			require.Same(t, ctx.True(), w.Inputs[0])
		}
	})

	t.Run("ErrBinding", func(t *testing.T) {
		ctx := zen.NewContext()
		f := classify(ctx)
		_, err := ctx.GenerateInputs(f, sat.NewSolver(ctx), zen.GenerateOptions{
			Bindings: map[*zen.Expr]*zen.Expr{f.Inputs[0]: ctx.Var(zen.Uint8, "y")},
		})
		require.ErrorIs(t, err, zen.ErrType)
	})

	t.Run("ErrBindingType", func(t *testing.T) {
		ctx := zen.NewContext()
		f := classify(ctx)
		_, err := ctx.GenerateInputs(f, sat.NewSolver(ctx), zen.GenerateOptions{
			Bindings: map[*zen.Expr]*zen.Expr{f.Inputs[0]: ctx.Uint16(3)},
		})
		require.ErrorIs(t, err, zen.ErrType)
	})

	t.Run("ErrBindingNotInput", func(t *testing.T) {
		ctx := zen.NewContext()
		f := classify(ctx)
		_, err := ctx.GenerateInputs(f, sat.NewSolver(ctx), zen.GenerateOptions{
			Bindings: map[*zen.Expr]*zen.Expr{ctx.Var(zen.Uint8, "y"): ctx.Uint8(3)},
		})
		require.ErrorIs(t, err, zen.ErrType)
	})

	t.Run("NoBranches", func(t *testing.T) {
		ctx := zen.NewContext()
		f := ctx.Function([]*zen.Type{zen.Uint8}, func(args ...*zen.Expr) *zen.Expr {
			return ctx.Add(args[0], ctx.Uint8(1))
		})
		witnesses := MustGenerateInputs(t, ctx, f, zen.GenerateOptions{})
		require.Len(t, witnesses, 1)
		require.Empty(t, witnesses[0].Path)
	})
}

func TestNewSearcher(t *testing.T) {
	for _, name := range []string{"", zen.SearcherDFS, zen.SearcherBFS, zen.SearcherRandom} {
		s, err := zen.NewSearcher(name, 0)
		require.NoError(t, err, name)
		require.NotNil(t, s)
	}
	_, err := zen.NewSearcher("best-first", 0)
	require.ErrorContains(t, err, `unknown searcher: "best-first"`)
}

// MustGenerateInputs enumerates the paths of f with a SAT backend. Fatal on error.
func MustGenerateInputs(tb testing.TB, ctx *zen.Context, f *zen.Function, opts zen.GenerateOptions) []zen.Witness {
	tb.Helper()
	witnesses, err := ctx.GenerateInputs(f, sat.NewSolver(ctx), opts)
	if err != nil {
		tb.Fatal(err)
	}
	return witnesses
}

// witnessOutputs returns the sorted host values of the witness outputs.
func witnessOutputs(witnesses []zen.Witness) []any {
	a := make([]*zen.Expr, len(witnesses))
	for i, w := range witnesses {
		a[i] = w.Output
	}
	zen.SortValues(a)

	var values []any
	for _, x := range a {
		values = append(values, x.Interface())
	}
	return values
}
