package sat_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/sat"
)

func TestSolver_Solve(t *testing.T) {
	t.Run("Sat", func(t *testing.T) {
		ctx := zen.NewContext()
		s := sat.NewSolver(ctx)
		x, y := ctx.Var(zen.Uint16, "x"), ctx.Var(zen.Int8, "y")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.Sub(x, ctx.Uint16(1000)), ctx.Uint16(24)),
			ctx.Lt(y, ctx.Int8(-100)),
		}, []*zen.Expr{x, y})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint16(1024), values[0].Interface())
		if v := values[1].Interface().(int8); v >= -100 {
			t.Fatalf("unexpected y: %d", v)
		}
	})

	t.Run("Unsat", func(t *testing.T) {
		ctx := zen.NewContext()
		s := sat.NewSolver(ctx)
		x := ctx.Var(zen.Uint8, "x")

		ok, _, err := s.Solve([]*zen.Expr{ctx.Lt(x, ctx.Uint8(3)), ctx.Lt(ctx.Uint8(5), x)}, []*zen.Expr{x})
		require.NoError(t, err)
		require.False(t, ok)
		require.Equal(t, 1, s.Stats().SolveN)
	})

	t.Run("Unreferenced", func(t *testing.T) {
		ctx := zen.NewContext()
		s := sat.NewSolver(ctx)
		x, y := ctx.Var(zen.Uint8, "x"), ctx.Var(zen.Uint32, "y")

		ok, values, err := s.Solve([]*zen.Expr{ctx.Eq(x, ctx.Uint8(9))}, []*zen.Expr{x, y})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, ctx.Uint8(9), values[0])
		require.True(t, values[1].IsConstant())
	})

	t.Run("List", func(t *testing.T) {
		ctx := zen.NewContext()
		s := sat.NewSolver(ctx)
		l := ctx.Var(zen.ListOf(zen.Uint8, 3), "l")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.ListLength(l), ctx.Uint16(2)),
			ctx.Eq(ctx.ListAt(l, ctx.Uint16(1)), ctx.Some(ctx.Uint8(7))),
			ctx.Eq(ctx.ListAt(l, ctx.Uint16(0)), ctx.Some(ctx.Uint8(3))),
		}, []*zen.Expr{l})
		require.NoError(t, err)
		require.True(t, ok)
		if diff := cmp.Diff([]any{uint8(3), uint8(7)}, values[0].Interface()); diff != "" {
			t.Fatal(diff)
		}
	})
}

func TestSolver_Errors(t *testing.T) {
	ctx := zen.NewContext()
	s := sat.NewSolver(ctx)
	x, y := ctx.Var(zen.Uint8, "x"), ctx.Var(zen.Uint8, "y")

	if _, _, err := s.Solve([]*zen.Expr{ctx.Eq(ctx.Mul(x, y), ctx.Uint8(6))}, nil); !errors.Is(err, zen.ErrUnsupported) {
		t.Fatalf("unexpected error: %v", err)
	}

	str := ctx.Var(zen.String, "s")
	if err := s.Check(ctx.Eq(ctx.SeqLength(str), ctx.Integer(3))); !errors.Is(err, zen.ErrBackendNotApplicable) {
		t.Fatalf("unexpected error: %v", err)
	}
}

// Ensure FindAll enumerates every witness on the SAT engine.
func TestFunction_FindAll(t *testing.T) {
	ctx := zen.NewContext()
	s := sat.NewSolver(ctx)
	f := ctx.Function([]*zen.Type{zen.Uint8}, func(args ...*zen.Expr) *zen.Expr {
		return ctx.BitAnd(args[0], ctx.Uint8(0x0f))
	})

	results, err := f.FindAll(s, func(inputs []*zen.Expr, out *zen.Expr) *zen.Expr {
		return ctx.And(ctx.Eq(out, ctx.Uint8(3)), ctx.Lt(inputs[0], ctx.Uint8(64)))
	}, zen.FindOptions{})
	require.NoError(t, err)

	var got []uint8
	for _, r := range results {
		got = append(got, r[0].Interface().(uint8))
	}
	if diff := cmp.Diff([]uint8{0x03, 0x13, 0x23, 0x33}, got); diff != "" {
		t.Fatal(diff)
	}
}
