package lift_test

import (
	"errors"
	"testing"

	"github.com/davecgh/go-spew/spew"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/bdd"
	"github.com/benbjohnson/zen/lift"
)

func TestFunction(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/basic")

	t.Run("Branch", func(t *testing.T) {
		f := MustLift(t, prog, "Abs")
		for _, tt := range []struct {
			in, out int8
		}{{5, 5}, {-5, 5}, {0, 0}, {-128, -128}} {
			if got, err := f.Evaluate(tt.in); err != nil {
				t.Fatal(err)
			} else if got != tt.out {
				t.Fatalf("Abs(%d)=%v, expected %d", tt.in, got, tt.out)
			}
		}
	})

	t.Run("Switch", func(t *testing.T) {
		f := MustLift(t, prog, "Classify")
		var got []any
		for _, x := range []uint8{0, 9, 10, 99, 100, 255} {
			v, err := f.Evaluate(x)
			require.NoError(t, err)
			got = append(got, v)
		}
		if diff := cmp.Diff([]any{uint8(0), uint8(0), uint8(1), uint8(1), uint8(2), uint8(2)}, got); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("Loop", func(t *testing.T) {
		ctx := zen.NewContext()
		f := MustLiftIn(t, ctx, prog, "Sum", lift.Options{})

		got, err := f.Evaluate(uint8(4))
		require.NoError(t, err)
		require.Equal(t, uint16(6), got)

		// The loop header is entered once per iteration plus the exit.
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Uint8(7)).IsTrue())
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Uint8(8)).IsFalse())
	})

	t.Run("LoopBound", func(t *testing.T) {
		ctx := zen.NewContext()
		f := MustLiftIn(t, ctx, prog, "Sum", lift.Options{MaxBlockVisits: 2})
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Uint8(1)).IsTrue())
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Uint8(2)).IsFalse())
	})

	t.Run("Call", func(t *testing.T) {
		f := MustLift(t, prog, "Twice")
		got, err := f.Evaluate(int32(20))
		require.NoError(t, err)
		require.Equal(t, int32(41), got)
	})

	t.Run("Convert", func(t *testing.T) {
		f := MustLift(t, prog, "Widen")
		got, err := f.Evaluate(int8(-3), uint8(200))
		require.NoError(t, err)
		require.Equal(t, int64(197), got)
	})

	t.Run("Tuple", func(t *testing.T) {
		f := MustLift(t, prog, "Diff")
		for _, args := range [][2]uint8{{3, 10}, {10, 3}} {
			got, err := f.Evaluate(args[0], args[1])
			require.NoError(t, err)
			require.Equal(t, uint8(7), got, spew.Sdump(args))
		}
	})

	t.Run("ShortCircuit", func(t *testing.T) {
		f := MustLift(t, prog, "Mask")
		for x, want := range map[uint16]bool{0x12ab: true, 0xffff: true, 0x1300: false, 0: false} {
			got, err := f.Evaluate(x)
			require.NoError(t, err)
			require.Equal(t, want, got, "Mask(%#x)", x)
		}
	})

	t.Run("Recursion", func(t *testing.T) {
		ctx := zen.NewContext()
		f := MustLiftIn(t, ctx, prog, "Fact", lift.Options{})

		got, err := f.Evaluate(uint8(5))
		require.NoError(t, err)
		require.Equal(t, uint32(120), got)
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Uint8(5)).IsTrue())
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Uint8(6)).IsFalse())
	})

	t.Run("Panic", func(t *testing.T) {
		ctx := zen.NewContext()
		f := MustLiftIn(t, ctx, prog, "MustPositive", lift.Options{})

		got, err := f.Evaluate(int16(3))
		require.NoError(t, err)
		require.Equal(t, int16(3), got)
		require.True(t, MustEvaluate(t, ctx, f.Complete, f.Inputs[0], ctx.Int16(0)).IsFalse())
	})

	t.Run("Unsupported", func(t *testing.T) {
		for name, pos := range map[string]string{"Div": "basic.go:64:", "Shift": "basic.go:68:"} {
			_, err := lift.Function(zen.NewContext(), MustFindFunction(t, prog, name), lift.Options{})
			if !errors.Is(err, zen.ErrUnsupported) {
				t.Fatalf("%s: unexpected error: %v", name, err)
			}
			require.ErrorContains(t, err, pos, name)
		}
	})
}

// Ensure a lifted function can be searched for inputs and enumerated by path.
func TestFunction_Solve(t *testing.T) {
	prog := MustBuildProgram(t, "./testdata/basic")

	t.Run("Find", func(t *testing.T) {
		ctx := zen.NewContext()
		f := MustLiftIn(t, ctx, prog, "Abs", lift.Options{})
		s := MustNewBDDSolver(t, ctx)

		inputs, ok, err := f.Find(s, func(_ []*zen.Expr, out *zen.Expr) *zen.Expr {
			return ctx.Lt(out, ctx.Int8(0))
		})
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, int8(-128), inputs[0].Interface())
	})

	t.Run("GenerateInputs", func(t *testing.T) {
		ctx := zen.NewContext()
		f := MustLiftIn(t, ctx, prog, "Classify", lift.Options{})
		s := MustNewBDDSolver(t, ctx)

		witnesses, err := ctx.GenerateInputs(f.Function, s, zen.GenerateOptions{})
		require.NoError(t, err)

		var outputs []*zen.Expr
		for _, w := range witnesses {
			outputs = append(outputs, w.Output)
		}
		zen.SortValues(outputs)

		var got []any
		for _, out := range outputs {
			got = append(got, out.Interface())
		}
		if diff := cmp.Diff([]any{uint8(0), uint8(1), uint8(2)}, got); diff != "" {
			t.Fatal(diff)
		}
	})
}

// MustBuildProgram builds an SSA program at the given path. Fatal on error.
func MustBuildProgram(tb testing.TB, path string) *ssa.Program {
	tb.Helper()

	initial, err := packages.Load(&packages.Config{Mode: packages.LoadAllSyntax}, path)
	if err != nil {
		tb.Fatal(err)
	} else if packages.PrintErrors(initial) > 0 {
		tb.Fatal("packages contain errors")
	}

	prog, pkgs := ssautil.AllPackages(initial, ssa.BuilderMode(0))
	for i, pkg := range pkgs {
		if pkg == nil {
			tb.Fatalf("cannot build SSA for package %s", initial[i])
		}
		pkg.SetDebugMode(true)
	}
	prog.Build()
	return prog
}

// MustFindFunction returns a function from any package in the program with the given name.
func MustFindFunction(tb testing.TB, prog *ssa.Program, name string) *ssa.Function {
	tb.Helper()

	for _, pkg := range prog.AllPackages() {
		if m := pkg.Members[name]; m == nil {
			continue
		} else if fn, ok := m.(*ssa.Function); !ok {
			tb.Fatalf("member %q is %T, not a function", name, m)
		} else {
			return fn
		}
	}
	tb.Fatalf("function %q not found", name)
	return nil
}

// MustLift lifts the named function in a new context. Fatal on error.
func MustLift(tb testing.TB, prog *ssa.Program, name string) *lift.Lifted {
	tb.Helper()
	return MustLiftIn(tb, zen.NewContext(), prog, name, lift.Options{})
}

// MustLiftIn lifts the named function in ctx. Fatal on error.
func MustLiftIn(tb testing.TB, ctx *zen.Context, prog *ssa.Program, name string, opts lift.Options) *lift.Lifted {
	tb.Helper()
	f, err := lift.Function(ctx, MustFindFunction(tb, prog, name), opts)
	if err != nil {
		tb.Fatal(err)
	}
	return f
}

// MustEvaluate evaluates e with v bound to x. Fatal on error.
func MustEvaluate(tb testing.TB, ctx *zen.Context, e, v, x *zen.Expr) *zen.Expr {
	tb.Helper()
	out, err := ctx.Evaluate(e, map[*zen.Expr]*zen.Expr{v: x})
	if err != nil {
		tb.Fatal(err)
	}
	return out
}

// MustNewBDDSolver returns a decision diagram solver. Fatal on error.
func MustNewBDDSolver(tb testing.TB, ctx *zen.Context) *bdd.Solver {
	tb.Helper()
	s, err := bdd.NewSolver(ctx)
	if err != nil {
		tb.Fatal(err)
	}
	return s
}
