package z3_test

import (
	"math/big"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/z3"
)

func TestSolver_Solve(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		t.Run("True", func(t *testing.T) {
			ctx := zen.NewContext()
			s := MustNewSolver(t, ctx)
			if satisfiable, _, err := s.Solve([]*zen.Expr{ctx.True()}, nil); err != nil {
				t.Fatal(err)
			} else if !satisfiable {
				t.Fatal("expected satisfiable")
			}
		})
		t.Run("False", func(t *testing.T) {
			ctx := zen.NewContext()
			s := MustNewSolver(t, ctx)
			if satisfiable, _, err := s.Solve([]*zen.Expr{ctx.False()}, nil); err != nil {
				t.Fatal(err)
			} else if satisfiable {
				t.Fatal("expected unsatisfiable")
			}
		})
	})

	t.Run("BitVec", func(t *testing.T) {
		t.Run("Unsigned", func(t *testing.T) {
			ctx := zen.NewContext()
			s := MustNewSolver(t, ctx)
			x := ctx.Var(zen.Uint16, "x")

			ok, values, err := s.Solve([]*zen.Expr{ctx.Eq(ctx.Mul(x, x), ctx.Uint16(0xAB09))}, []*zen.Expr{x})
			require.NoError(t, err)
			require.True(t, ok)
			v := values[0].Interface().(uint16)
			if v*v != 0xAB09 {
				t.Fatalf("unexpected witness: %d", v)
			}
		})

		t.Run("Signed", func(t *testing.T) {
			ctx := zen.NewContext()
			s := MustNewSolver(t, ctx)
			x := ctx.Var(zen.Int8, "x")

			ok, values, err := s.Solve([]*zen.Expr{
				ctx.Lt(x, ctx.Int8(-120)),
				ctx.Lt(ctx.Int8(-122), x),
			}, []*zen.Expr{x})
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, int8(-121), values[0].Interface())
		})

		t.Run("Cast", func(t *testing.T) {
			ctx := zen.NewContext()
			s := MustNewSolver(t, ctx)
			x := ctx.Var(zen.Int8, "x")

			ok, values, err := s.Solve([]*zen.Expr{
				ctx.Eq(ctx.Cast(x, zen.Uint32), ctx.Uint32(0xFFFFFFFE)),
			}, []*zen.Expr{x})
			require.NoError(t, err)
			require.True(t, ok)
			require.Equal(t, int8(-2), values[0].Interface())
		})
	})

	t.Run("Int", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		x, y := ctx.Var(zen.BigInt, "x"), ctx.Var(zen.BigInt, "y")

		huge, _ := new(big.Int).SetString("100000000000000000000", 10)
		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.Add(x, y), ctx.BigInt(huge)),
			ctx.Eq(ctx.Sub(x, y), ctx.Integer(2)),
		}, []*zen.Expr{x, y})
		require.NoError(t, err)
		require.True(t, ok)

		want := new(big.Int).Add(new(big.Int).Rsh(huge, 1), big.NewInt(1))
		require.Equal(t, ctx.BigInt(want), values[0])
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
			ctx.Not(ctx.IsSome(proto)),
		}, []*zen.Expr{p})
		require.NoError(t, err)
		require.True(t, ok)

		want := zen.Fields{"dst": uint32(0x0a000001), "proto": zen.Optional{}}
		if diff := cmp.Diff(want, values[0].Interface()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("List", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		l := ctx.Var(zen.ListOf(zen.Uint8, 4), "l")
		l2 := ctx.ListAppend(l, ctx.Uint8(99))

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.ListLength(l2), ctx.Uint16(2)),
			ctx.Eq(ctx.ListAt(l2, ctx.Uint16(0)), ctx.Some(ctx.Uint8(5))),
		}, []*zen.Expr{l})
		require.NoError(t, err)
		require.True(t, ok)
		if diff := cmp.Diff([]any{uint8(5)}, values[0].Interface()); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("String", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		str := ctx.Var(zen.String, "s")
		foo, _ := ctx.String("foo")
		bar, _ := ctx.String("bar")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.SeqContains(str, foo),
			ctx.SeqContains(str, bar),
			ctx.Eq(ctx.SeqLength(str), ctx.Integer(6)),
			ctx.Eq(ctx.SeqAt(str, ctx.Integer(0)), ctx.Some(MustChar(t, ctx, 'b'))),
		}, []*zen.Expr{str})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, "barfoo", values[0].Interface())
	})

	t.Run("Map", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		m := ctx.Var(zen.MapOf(zen.Uint8, zen.Uint16), "m")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.MapGet(m, ctx.Uint8(1)), ctx.Some(ctx.Uint16(100))),
			ctx.Eq(ctx.MapGet(ctx.MapDelete(m, ctx.Uint8(1)), ctx.Uint8(1)), ctx.None(zen.OptionOf(zen.Uint16))),
		}, []*zen.Expr{m})
		require.NoError(t, err)
		require.True(t, ok)

		got := ctx.MapGet(values[0], ctx.Uint8(1))
		require.Equal(t, ctx.Some(ctx.Uint16(100)), got)
	})

	t.Run("Set", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		a, b := ctx.Var(zen.SetOf(zen.Uint8), "a"), ctx.Var(zen.SetOf(zen.Uint8), "b")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.SetContains(ctx.SetIntersect(a, b), ctx.Uint8(7)),
			ctx.Not(ctx.SetContains(a, ctx.Uint8(8))),
		}, []*zen.Expr{a, b})
		require.NoError(t, err)
		require.True(t, ok)
		require.True(t, ctx.SetContains(values[0], ctx.Uint8(7)).IsTrue())
		require.True(t, ctx.SetContains(values[1], ctx.Uint8(7)).IsTrue())
		require.True(t, ctx.SetContains(values[0], ctx.Uint8(8)).IsFalse())
	})

	t.Run("Bag", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		b := ctx.Var(zen.BagOf(zen.Bool), "b")

		ok, values, err := s.Solve([]*zen.Expr{
			ctx.Eq(ctx.BagCount(ctx.BagAdd(b, ctx.True()), ctx.True()), ctx.Integer(3)),
		}, []*zen.Expr{b})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, ctx.Integer(2), ctx.BagCount(values[0], ctx.True()))
	})

	t.Run("SetDefault", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		a := ctx.Var(zen.SetOf(zen.Uint8), "a")

		constraint := ctx.SetContains(a, ctx.Uint8(7))
		ok, values, err := s.Solve([]*zen.Expr{constraint}, []*zen.Expr{a})
		require.NoError(t, err)
		require.True(t, ok)
		MustSatisfy(t, ctx, constraint, map[*zen.Expr]*zen.Expr{a: values[0]})
	})

	t.Run("SetNotEmpty", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		a := ctx.Var(zen.SetOf(zen.Uint8), "a")

		constraint := ctx.Not(ctx.Eq(a, ctx.SetEmpty(zen.SetOf(zen.Uint8))))
		ok, values, err := s.Solve([]*zen.Expr{constraint}, []*zen.Expr{a})
		require.NoError(t, err)
		require.True(t, ok)
		MustSatisfy(t, ctx, constraint, map[*zen.Expr]*zen.Expr{a: values[0]})
	})

	t.Run("MapWideKey", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		m := ctx.Var(zen.MapOf(zen.Uint16, zen.Uint8), "m")

		constraints := []*zen.Expr{
			ctx.Eq(ctx.MapGet(m, ctx.Uint16(300)), ctx.Some(ctx.Uint8(5))),
			ctx.IsSome(ctx.MapGet(m, ctx.Uint16(1000))),
		}
		ok, values, err := s.Solve(constraints, []*zen.Expr{m})
		require.NoError(t, err)
		require.True(t, ok)
		for _, c := range constraints {
			MustSatisfy(t, ctx, c, map[*zen.Expr]*zen.Expr{m: values[0]})
		}
	})

	t.Run("Char", func(t *testing.T) {
		ctx := zen.NewContext()
		s := MustNewSolver(t, ctx)
		c := ctx.Var(zen.Char, "c")

		// Only valid codepoints can satisfy c >= max.
		ok, values, err := s.Solve([]*zen.Expr{ctx.Le(MustChar(t, ctx, zen.MaxChar), c)}, []*zen.Expr{c})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, MustChar(t, ctx, zen.MaxChar), values[0])
	})
}

func TestSolver_Timeout(t *testing.T) {
	ctx := zen.NewContext()
	s := MustNewSolver(t, ctx, z3.WithTimeout(10*time.Second))
	x := ctx.Var(zen.Uint8, "x")

	ok, _, err := s.Solve([]*zen.Expr{ctx.Lt(x, ctx.Uint8(1))}, []*zen.Expr{x})
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, 1, s.Stats().SolveN)
}

// Ensure every path over a map input gets its own witness.
func TestContext_GenerateInputs_Map(t *testing.T) {
	ctx := zen.NewContext()
	s := MustNewSolver(t, ctx)
	f := ctx.Function([]*zen.Type{zen.MapOf(zen.Uint8, zen.Bool)}, func(args ...*zen.Expr) *zen.Expr {
		return ctx.If(ctx.IsSome(ctx.MapGet(args[0], ctx.Uint8(1))), ctx.Uint8(1), ctx.Uint8(2))
	})

	witnesses, err := ctx.GenerateInputs(f, s, zen.GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, witnesses, 2)

	var outputs []any
	for _, w := range witnesses {
		out, err := f.EvaluateExpr(w.Inputs...)
		require.NoError(t, err)
		require.Same(t, w.Output, out)
		for _, cond := range w.Path {
			MustSatisfy(t, ctx, cond, map[*zen.Expr]*zen.Expr{f.Inputs[0]: w.Inputs[0]})
		}
		outputs = append(outputs, out.Interface())
	}
	require.ElementsMatch(t, []any{uint8(1), uint8(2)}, outputs)
}

// Ensure every path over a set input gets its own witness.
func TestContext_GenerateInputs_Set(t *testing.T) {
	ctx := zen.NewContext()
	s := MustNewSolver(t, ctx)
	f := ctx.Function([]*zen.Type{zen.SetOf(zen.Uint8)}, func(args ...*zen.Expr) *zen.Expr {
		return ctx.If(ctx.SetContains(args[0], ctx.Uint8(9)), ctx.Uint8(1), ctx.Uint8(2))
	})

	witnesses, err := ctx.GenerateInputs(f, s, zen.GenerateOptions{})
	require.NoError(t, err)
	require.Len(t, witnesses, 2)

	var outputs []any
	for _, w := range witnesses {
		out, err := f.EvaluateExpr(w.Inputs...)
		require.NoError(t, err)
		require.Same(t, w.Output, out)
		outputs = append(outputs, out.Interface())
	}
	require.ElementsMatch(t, []any{uint8(1), uint8(2)}, outputs)
}

// Ensure auto-selection routes unbounded queries to the general backend.
func TestAutoSolver(t *testing.T) {
	ctx := zen.NewContext()
	general := MustNewSolver(t, ctx)
	auto := &zen.AutoSolver{Context: ctx, General: general}

	f := ctx.Function([]*zen.Type{zen.String}, func(args ...*zen.Expr) *zen.Expr {
		return ctx.SeqLength(args[0])
	})
	inputs, ok, err := f.Find(auto, func(_ []*zen.Expr, out *zen.Expr) *zen.Expr {
		return ctx.Eq(out, ctx.Integer(3))
	})
	require.NoError(t, err)
	require.True(t, ok)
	require.Len(t, []rune(inputs[0].Interface().(string)), 3)
}

// MustNewSolver returns a Z3 solver closed when the test ends.
func MustNewSolver(tb testing.TB, ctx *zen.Context, opts ...z3.SolverOption) *z3.Solver {
	tb.Helper()
	s := z3.NewSolver(ctx, opts...)
	tb.Cleanup(func() {
		if err := s.Close(); err != nil {
			tb.Fatal(err)
		}
	})
	return s
}

// MustSatisfy evaluates constraint under bindings. Fatal unless it is true.
func MustSatisfy(tb testing.TB, ctx *zen.Context, constraint *zen.Expr, bindings map[*zen.Expr]*zen.Expr) {
	tb.Helper()
	x, err := ctx.Evaluate(constraint, bindings)
	if err != nil {
		tb.Fatal(err)
	} else if !x.IsTrue() {
		tb.Fatalf("%s is %s under %v", constraint, x, bindings)
	}
}

// MustChar returns a character constant. Fatal on error.
func MustChar(tb testing.TB, ctx *zen.Context, r rune) *zen.Expr {
	tb.Helper()
	c, err := ctx.Char(r)
	if err != nil {
		tb.Fatal(err)
	}
	return c
}
