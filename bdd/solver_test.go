package bdd_test

import (
	"errors"
	"math/big"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/bdd"
)

func TestSolver_Solve(t *testing.T) {
	t.Run("Sat", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		x, y := ctx.Var(zen.Uint8, "x"), ctx.Var(zen.Uint8, "y")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.Add(x, y), ctx.Uint8(10)),
			ctx.Lt(ctx.Uint8(7), x),
		}, []*zen.Expr{x, y})
		require.NoError(t, err)
		require.True(t, ok)

		a, b := values[0].Interface().(uint8), values[1].Interface().(uint8)
		if a+b != 10 || a <= 7 {
			t.Fatalf("unexpected witness: x=%d y=%d", a, b)
		}
	})

	t.Run("Unsat", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		x := ctx.Var(zen.Uint8, "x")

		ok, _, err := s.Solve([]*zen.Expr{ctx.Lt(x, ctx.Uint8(3)), ctx.Lt(ctx.Uint8(5), x)}, []*zen.Expr{x})
		require.NoError(t, err)
		require.False(t, ok)
	})

	t.Run("Varnum", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx, bdd.WithVarnum(8))
		x := ctx.Var(zen.Uint8, "x")

		ok, values, err := s.Solve([]*zen.Expr{ctx.Eq(x, ctx.Uint8(42))}, []*zen.Expr{x})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, ctx.Uint8(42), values[0])

		y := ctx.Var(zen.Uint16, "y")
		_, _, err = s.Solve([]*zen.Expr{ctx.Lt(y, ctx.Uint16(3))}, []*zen.Expr{y})
		require.ErrorIs(t, err, bdd.ErrVarnum)
		require.ErrorContains(t, err, "need 24, have 8")
	})

	t.Run("UnconstrainedVar", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		o := ctx.Var(zen.OptionOf(zen.Uint16), "o")

		ok, values, err := s.Solve(nil, []*zen.Expr{o})
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, values[0].IsConstant())
		require.True(t, values[0].Type.Equal(zen.OptionOf(zen.Uint16)))
	})

	t.Run("Object", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		typ, err := zen.ObjectOf("Packet",
			zen.Field{Name: "dst", Type: zen.Uint32},
			zen.Field{Name: "proto", Type: zen.OptionOf(zen.Uint8)},
		)
		require.NoError(t, err)

		p := ctx.Var(typ, "p")
		dst, _ := ctx.GetField(p, "dst")
		proto, _ := ctx.GetField(p, "proto")
		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(dst, ctx.Uint32(0x0a000001)),
			ctx.Eq(proto, ctx.Some(ctx.Uint8(6))),
		}, []*zen.Expr{p})
		require.NoError(t, err)
		require.True(t, ok)

		want := zen.Fields{"dst": uint32(0x0a000001), "proto": zen.Optional{Valid: true, Value: uint8(6)}}
		if diff := cmp.Diff(want, values[0].Interface()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Char", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		c := ctx.Var(zen.Char, "c")
		max, _ := ctx.Char(zen.MaxChar)

		// Only valid codepoints can satisfy c >= max.
		ok, values, err := s.Solve([]*zen.Expr{ctx.Le(max, c)}, []*zen.Expr{c})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, max, values[0])
	})
}

func TestSolver_Errors(t *testing.T) {
	t.Run("Mul", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		x, y := ctx.Var(zen.Uint8, "x"), ctx.Var(zen.Uint8, "y")

		_, _, err := s.Solve([]*zen.Expr{ctx.Eq(ctx.Mul(x, y), ctx.Uint8(6))}, []*zen.Expr{x, y})
		if !errors.Is(err, zen.ErrUnsupported) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("MulConstant", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		x := ctx.Var(zen.Uint8, "x")

		ok, values, err := s.Solve([]*zen.Expr{ctx.Eq(ctx.Mul(x, ctx.Uint8(3)), ctx.Uint8(21))}, []*zen.Expr{x})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint8(21), uint8(values[0].Interface().(uint8)*3))
	})

	t.Run("Unbounded", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		str := ctx.Var(zen.String, "s")
		abc, _ := ctx.String("abc")

		_, _, err := s.Solve([]*zen.Expr{ctx.SeqContains(str, abc)}, []*zen.Expr{str})
		if !errors.Is(err, zen.ErrBackendNotApplicable) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestSolver_SatCount(t *testing.T) {
	ctx := zen.NewContext()
	s := MustNewSolver(t, ctx)

	x := ctx.Var(zen.Uint8, "x")
	o := ctx.Var(zen.OptionOf(zen.Uint8), "o")
	l := ctx.Var(zen.ListOf(zen.Bool, 2), "l")

	for _, tt := range []struct {
		name string
		expr *zen.Expr
		want int64
	}{
		{"Lt", ctx.Lt(x, ctx.Uint8(5)), 5},
		{"Some", ctx.IsSome(o), 256},
		{"Option", ctx.Le(ctx.OptionValue(o), ctx.Uint8(255)), 257},
		{"List", ctx.Le(ctx.ListLength(l), ctx.Uint16(2)), 7},
		{"NoVars", ctx.True(), 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			n, err := s.SatCount(tt.expr)
			require.NoError(t, err)
			if n.Cmp(big.NewInt(tt.want)) != 0 {
				t.Fatalf("SatCount(%s)=%s, expected %d", tt.expr, n, tt.want)
			}
		})
	}
}

// Ensure FindAll returns each satisfying value exactly once in a stable order.
func TestFunction_FindAll(t *testing.T) {
	ctx := zen.NewContext()
	s := MustNewSolver(t, ctx)
	f := ctx.Function([]*zen.Type{zen.Uint16}, func(args ...*zen.Expr) *zen.Expr { return args[0] })
	le10 := func(inputs []*zen.Expr, _ *zen.Expr) *zen.Expr { return ctx.Le(inputs[0], ctx.Uint16(10)) }

	var prev []uint16
	for i := 0; i < 2; i++ {
		results, err := f.FindAll(s, le10, zen.FindOptions{})
		require.NoError(t, err)

		var got []uint16
		for _, r := range results {
			got = append(got, r[0].Interface().(uint16))
		}
		if diff := cmp.Diff([]uint16{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10}, got); diff != "" {
			t.Fatalf("unexpected results: %s\n%s", diff, spew.Sdump(got))
		} else if prev != nil {
			require.Equal(t, prev, got)
		}
		prev = got
	}

	t.Run("Limit", func(t *testing.T) {
		results, err := f.FindAll(s, le10, zen.FindOptions{Limit: 3})
		require.NoError(t, err)
		require.Len(t, results, 3)
	})
}

func TestFunction_Find(t *testing.T) {
	ctx := zen.NewContext()
	s := MustNewSolver(t, ctx)
	f := ctx.Function([]*zen.Type{zen.Uint8, zen.Uint8}, func(args ...*zen.Expr) *zen.Expr {
		return ctx.If(ctx.Lt(args[0], args[1]), ctx.Sub(args[1], args[0]), ctx.Uint8(0))
	})

	inputs, ok, err := f.Find(s, func(_ []*zen.Expr, out *zen.Expr) *zen.Expr {
		return ctx.Eq(out, ctx.Uint8(200))
	})
	require.NoError(t, err)
	require.True(t, ok)

	out, err := f.EvaluateExpr(inputs...)
	require.NoError(t, err)
	require.Equal(t, ctx.Uint8(200), out)

	_, ok, err = f.Find(s, func(inputs []*zen.Expr, out *zen.Expr) *zen.Expr {
		return ctx.And(ctx.Eq(inputs[0], inputs[1]), ctx.Eq(out, ctx.Uint8(1)))
	})
	require.NoError(t, err)
	require.False(t, ok)
}

// MustNewSolver returns a new bounded solver. Fatal on error.
func MustNewSolver(tb testing.TB, ctx *zen.Context, opts ...bdd.SolverOption) *bdd.Solver {
	tb.Helper()
	s, err := bdd.NewSolver(ctx, opts...)
	if err != nil {
		tb.Fatal(err)
	}
	return s
}
