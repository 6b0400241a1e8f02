package bitblast_test

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/internal/bitblast"
)

// boolAlgebra evaluates functions directly on concrete bits.
type boolAlgebra struct{}

func (boolAlgebra) True() bool { return true }
func (boolAlgebra) False() bool { return false }
func (boolAlgebra) Not(x bool) bool { return !x }
func (boolAlgebra) And(x, y bool) bool { return x && y }
func (boolAlgebra) Or(x, y bool) bool { return x || y }
func (boolAlgebra) Xor(x, y bool) bool { return x != y }
func (boolAlgebra) Ite(c, t, e bool) bool { return (c && t) || (!c && e) }

// newCompiler returns a compiler that assigns each variable the encoding of
// its value in bindings.
func newCompiler(tb testing.TB, bindings map[*zen.Expr]*zen.Expr) *bitblast.Compiler[bool] {
	return bitblast.New[bool](boolAlgebra{}, func(v *zen.Expr) ([]bool, error) {
		x, ok := bindings[v]
		if !ok {
			tb.Fatalf("unbound variable: %s", v)
		}
		return zen.EncodeBits(x)
	}, 0)
}

// Ensure lowered expressions agree with concrete evaluation.
func TestCompiler_Compile(t *testing.T) {
	c := zen.NewContext()
	x, y := c.Var(zen.Uint8, "x"), c.Var(zen.Uint8, "y")
	s := c.Var(zen.Int8, "s")

	pair, err := zen.ObjectOf("Pair", zen.Field{Name: "a", Type: zen.Uint8}, zen.Field{Name: "b", Type: zen.Bool})
	if err != nil {
		t.Fatal(err)
	}
	p := c.Var(pair, "p")
	list := zen.ListOf(zen.Uint8, 3)
	l := c.Var(list, "l")

	a, _ := c.GetField(p, "a")
	b, _ := c.GetField(p, "b")
	withA, _ := c.WithField(p, "a", c.Add(x, y))

	exprs := map[string]*zen.Expr{
		"add":       c.Add(x, y),
		"sub":       c.Sub(x, y),
		"mul":       c.Mul(x, c.Uint8(3)),
		"bitand":    c.BitAnd(x, y),
		"bitor":     c.BitOr(x, c.BitNot(y)),
		"bitxor":    c.BitXor(x, y),
		"lt":        c.Lt(x, y),
		"le":        c.Le(y, x),
		"slt":       c.Lt(s, c.Int8(-3)),
		"sle":       c.Le(c.Int8(-100), s),
		"if":        c.If(c.Lt(x, y), x, y),
		"cast":      c.Cast(s, zen.Int16),
		"trunc":     c.Cast(c.Cast(x, zen.Uint16), zen.Uint8),
		"field":     c.If(b, a, c.Uint8(0)),
		"withfield": withA,
		"some":      c.Some(x),
		"isSome":    c.IsSome(c.If(c.Lt(x, y), c.Some(y), c.None(zen.OptionOf(zen.Uint8)))),
		"append":    c.ListAppend(l, x),
		"length":    c.ListLength(c.ListAppend(l, y)),
		"at":        c.ListAt(l, c.Uint16(1)),
	}

	pv, _ := c.Object(pair, c.Uint8(7), c.True())
	lv := c.ListAppend(c.ListAppend(c.ListEmpty(list), c.Uint8(4)), c.Uint8(5))
	for _, vals := range [][3]uint8{{0, 0, 0}, {3, 250, 0x80}, {200, 100, 0xfd}, {9, 9, 0x7f}} {
		bindings := map[*zen.Expr]*zen.Expr{
			x: c.Uint8(vals[0]),
			y: c.Uint8(vals[1]),
			s: c.Int8(int8(vals[2])),
			p: pv,
			l: lv,
		}
		compiler := newCompiler(t, bindings)

		for name, expr := range exprs {
			t.Run(name, func(t *testing.T) {
				want, err := c.Evaluate(expr, bindings)
				if err != nil {
					t.Fatal(err)
				}
				wantBits, err := zen.EncodeBits(want)
				if err != nil {
					t.Fatal(err)
				}

				got, err := compiler.Compile(expr)
				if err != nil {
					t.Fatal(err)
				} else if diff := cmp.Diff(wantBits, got); diff != "" {
					t.Fatalf("%s with %v: %s", expr, vals, diff)
				}
			})
		}
	}
}

func TestCompiler_WellFormed(t *testing.T) {
	c := zen.NewContext()
	compiler := newCompiler(t, nil)

	t.Run("Char", func(t *testing.T) {
		max, _ := c.Char(zen.MaxChar)
		bits, _ := zen.EncodeBits(max)
		if !compiler.WellFormed(zen.Char, bits) {
			t.Fatal("expected max char to be well-formed")
		}
		bits[16], bits[17], bits[18], bits[19], bits[20] = true, true, true, true, true
		if compiler.WellFormed(zen.Char, bits) {
			t.Fatal("expected out of range char to be rejected")
		}
	})

	t.Run("Option", func(t *testing.T) {
		typ := zen.OptionOf(zen.Uint8)
		bits, _ := zen.EncodeBits(c.None(typ))
		if !compiler.WellFormed(typ, bits) {
			t.Fatal("expected none to be well-formed")
		}
		bits[3] = true
		if compiler.WellFormed(typ, bits) {
			t.Fatal("expected junk payload to be rejected")
		}
	})

	t.Run("List", func(t *testing.T) {
		typ := zen.ListOf(zen.Bool, 2)
		bits, _ := zen.EncodeBits(c.ListAppend(c.ListEmpty(typ), c.True()))
		if !compiler.WellFormed(typ, bits) {
			t.Fatal("expected list to be well-formed")
		}

		// Slot past the length.
		junk := append([]bool(nil), bits...)
		junk[3] = true
		if compiler.WellFormed(typ, junk) {
			t.Fatal("expected junk slot to be rejected")
		}

		// Length past the capacity.
		over := append([]bool(nil), bits...)
		over[0], over[1] = true, true
		if compiler.WellFormed(typ, over) {
			t.Fatal("expected length 3 to be rejected")
		}
	})
}

func TestCompiler_Errors(t *testing.T) {
	c := zen.NewContext()
	x, y := c.Var(zen.Uint8, "x"), c.Var(zen.Uint8, "y")
	bindings := map[*zen.Expr]*zen.Expr{x: c.Uint8(1), y: c.Uint8(2)}

	t.Run("Mul", func(t *testing.T) {
		if _, err := newCompiler(t, bindings).Compile(c.Mul(x, y)); !errors.Is(err, zen.ErrUnsupported) {
			t.Fatalf("unexpected error: %v", err)
		}
	})

	t.Run("Unbounded", func(t *testing.T) {
		i := c.Var(zen.BigInt, "i")
		if _, err := newCompiler(t, bindings).Compile(c.Lt(i, c.Integer(4))); !errors.Is(err, zen.ErrBackendNotApplicable) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}
