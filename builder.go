package zen

import (
	"fmt"
	"math/big"
	"unicode/utf8"
)

// True returns the boolean constant true.
func (c *Context) True() *Expr { return c.Bool(true) }

// False returns the boolean constant false.
func (c *Context) False() *Expr { return c.Bool(false) }

// Bool returns a boolean constant.
func (c *Context) Bool(v bool) *Expr {
	var value uint64
	if v {
		value = 1
	}
	return c.intern(&Expr{Op: OpConst, Type: Bool, Value: value})
}

// Uint returns a bitvec constant of type t. The value is truncated to the
// width of t.
func (c *Context) Uint(t *Type, v uint64) *Expr {
	assert(t.Kind == KindBitVec, "uint: not a bitvec type: %s", t)
	return c.intern(&Expr{Op: OpConst, Type: t, Value: v & bitmask(t.Width)})
}

// Int returns a bitvec constant of type t holding the two's complement
// representation of v truncated to the width of t.
func (c *Context) Int(t *Type, v int64) *Expr {
	return c.Uint(t, uint64(v))
}

// Uint8 returns an 8-bit unsigned constant.
func (c *Context) Uint8(v uint8) *Expr { return c.Uint(Uint8, uint64(v)) }

// Uint16 returns a 16-bit unsigned constant.
func (c *Context) Uint16(v uint16) *Expr { return c.Uint(Uint16, uint64(v)) }

// Uint32 returns a 32-bit unsigned constant.
func (c *Context) Uint32(v uint32) *Expr { return c.Uint(Uint32, uint64(v)) }

// Uint64 returns a 64-bit unsigned constant.
func (c *Context) Uint64(v uint64) *Expr { return c.Uint(Uint64, v) }

// Int8 returns an 8-bit signed constant.
func (c *Context) Int8(v int8) *Expr { return c.Int(Int8, int64(v)) }

// Int16 returns a 16-bit signed constant.
func (c *Context) Int16(v int16) *Expr { return c.Int(Int16, int64(v)) }

// Int32 returns a 32-bit signed constant.
func (c *Context) Int32(v int32) *Expr { return c.Int(Int32, int64(v)) }

// Int64 returns a 64-bit signed constant.
func (c *Context) Int64(v int64) *Expr { return c.Int(Int64, v) }

// BigInt returns an unbounded integer constant.
func (c *Context) BigInt(v *big.Int) *Expr {
	return c.intern(&Expr{Op: OpConst, Type: BigInt, Big: new(big.Int).Set(v)})
}

// Integer returns an unbounded integer constant.
func (c *Context) Integer(v int64) *Expr {
	return c.BigInt(big.NewInt(v))
}

// Char returns a character constant.
func (c *Context) Char(r rune) (*Expr, error) {
	if r < 0 || r > MaxChar {
		return nil, fmt.Errorf("%w: codepoint %#x", ErrDomain, r)
	}
	return c.char(r), nil
}

func (c *Context) char(r rune) *Expr {
	return c.intern(&Expr{Op: OpConst, Type: Char, Value: uint64(r)})
}

// String returns a string constant. s must be valid UTF-8.
func (c *Context) String(s string) (*Expr, error) {
	if !utf8.ValidString(s) {
		return nil, fmt.Errorf("%w: invalid utf-8 string %q", ErrDomain, s)
	}
	return c.str(s), nil
}

func (c *Context) str(s string) *Expr {
	return c.intern(&Expr{Op: OpConst, Type: String, Str: s})
}

// Default returns the default value of t: false, zero, the empty string,
// None, an object of defaults, or an empty container.
func (c *Context) Default(t *Type) *Expr {
	switch t.Kind {
	case KindBool:
		return c.False()
	case KindBitVec:
		return c.Uint(t, 0)
	case KindInt:
		return c.Integer(0)
	case KindChar:
		return c.char(0)
	case KindString:
		return c.str("")
	case KindOption:
		return c.None(t)
	case KindObject:
		args := make([]*Expr, len(t.Fields))
		for i, f := range t.Fields {
			args[i] = c.Default(f.Type)
		}
		return c.intern(&Expr{Op: OpObject, Type: t, Args: args})
	case KindList:
		return c.ListEmpty(t)
	case KindSeq:
		return c.SeqEmpty(t)
	case KindMap:
		return c.MapEmpty(t)
	case KindSet:
		return c.SetEmpty(t)
	case KindBag:
		return c.BagEmpty(t)
	default:
		panic("unreachable")
	}
}

func assertKind(x *Expr, kind Kind, op string) {
	assert(x.Type.Kind == kind, "%s: expected %s operand, got %s", op, kind, x.Type)
}

func assertSameType(lhs, rhs *Expr, op string) {
	assert(lhs.Type.Equal(rhs.Type), "%s: type mismatch: %s != %s", op, lhs.Type, rhs.Type)
}

// Not returns the logical negation of x.
func (c *Context) Not(x *Expr) *Expr {
	assertKind(x, KindBool, "not")

	switch x.Op {
	case OpConst:
		return c.Bool(x.Value == 0)
	case OpNot:
		return x.Args[0]
	}
	return c.intern(&Expr{Op: OpNot, Type: Bool, Args: []*Expr{x}})
}

// isNegation returns true if a is Not(b) or b is Not(a).
func isNegation(a, b *Expr) bool {
	return (a.Op == OpNot && a.Args[0] == b) || (b.Op == OpNot && b.Args[0] == a)
}

// And returns the conjunction of lhs & rhs.
func (c *Context) And(lhs, rhs *Expr) *Expr {
	assertKind(lhs, KindBool, "and")
	assertKind(rhs, KindBool, "and")

	// If constant is on left side, swap to right side.
	if lhs.Op == OpConst && rhs.Op != OpConst {
		lhs, rhs = rhs, lhs
	}

	if rhs.Op == OpConst {
		if rhs.IsTrue() {
			return lhs
		}
		return rhs
	}
	if lhs == rhs {
		return lhs
	} else if isNegation(lhs, rhs) {
		return c.False()
	}
	return c.intern(&Expr{Op: OpAnd, Type: Bool, Args: []*Expr{lhs, rhs}})
}

// Or returns the disjunction of lhs & rhs.
func (c *Context) Or(lhs, rhs *Expr) *Expr {
	assertKind(lhs, KindBool, "or")
	assertKind(rhs, KindBool, "or")

	// If constant is on left side, swap to right side.
	if lhs.Op == OpConst && rhs.Op != OpConst {
		lhs, rhs = rhs, lhs
	}

	if rhs.Op == OpConst {
		if rhs.IsTrue() {
			return rhs
		}
		return lhs
	}
	if lhs == rhs {
		return lhs
	} else if isNegation(lhs, rhs) {
		return c.True()
	}
	return c.intern(&Expr{Op: OpOr, Type: Bool, Args: []*Expr{lhs, rhs}})
}

// AndAll returns the conjunction of all exprs. Returns true if empty.
func (c *Context) AndAll(exprs ...*Expr) *Expr {
	x := c.True()
	for _, expr := range exprs {
		x = c.And(x, expr)
	}
	return x
}

// OrAll returns the disjunction of all exprs. Returns false if empty.
func (c *Context) OrAll(exprs ...*Expr) *Expr {
	x := c.False()
	for _, expr := range exprs {
		x = c.Or(x, expr)
	}
	return x
}

// Implies returns the implication lhs => rhs.
func (c *Context) Implies(lhs, rhs *Expr) *Expr {
	return c.Or(c.Not(lhs), rhs)
}

// BitNot returns the bitwise complement of x.
func (c *Context) BitNot(x *Expr) *Expr {
	assertKind(x, KindBitVec, "bvnot")

	switch x.Op {
	case OpConst:
		return c.Uint(x.Type, ^x.Value)
	case OpBitNot:
		return x.Args[0]
	}
	return c.intern(&Expr{Op: OpBitNot, Type: x.Type, Args: []*Expr{x}})
}

// BitAnd returns the bitwise AND of lhs & rhs.
func (c *Context) BitAnd(lhs, rhs *Expr) *Expr {
	assertKind(lhs, KindBitVec, "bvand")
	assertSameType(lhs, rhs, "bvand")

	// Compute constant if both sides are constant.
	if lhs.Op == OpConst && rhs.Op == OpConst {
		return c.Uint(lhs.Type, lhs.Value&rhs.Value)
	}

	// If constant is on left side, swap to right side.
	if lhs.Op == OpConst {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs.Op == OpConst {
		if rhs.isAllOnes() {
			return lhs
		} else if rhs.Value == 0 {
			return rhs
		}
	}
	if lhs == rhs {
		return lhs
	}
	return c.intern(&Expr{Op: OpBitAnd, Type: lhs.Type, Args: []*Expr{lhs, rhs}})
}

// BitOr returns the bitwise OR of lhs & rhs.
func (c *Context) BitOr(lhs, rhs *Expr) *Expr {
	assertKind(lhs, KindBitVec, "bvor")
	assertSameType(lhs, rhs, "bvor")

	// Compute constant if both sides are constant.
	if lhs.Op == OpConst && rhs.Op == OpConst {
		return c.Uint(lhs.Type, lhs.Value|rhs.Value)
	}

	// If constant is on left side, swap to right side.
	if lhs.Op == OpConst {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs.Op == OpConst {
		if rhs.isAllOnes() {
			return rhs
		} else if rhs.Value == 0 {
			return lhs
		}
	}
	if lhs == rhs {
		return lhs
	}
	return c.intern(&Expr{Op: OpBitOr, Type: lhs.Type, Args: []*Expr{lhs, rhs}})
}

// BitXor returns the bitwise XOR of lhs & rhs.
func (c *Context) BitXor(lhs, rhs *Expr) *Expr {
	assertKind(lhs, KindBitVec, "bvxor")
	assertSameType(lhs, rhs, "bvxor")

	// If constant is on right side, swap to left side.
	if lhs.Op != OpConst && rhs.Op == OpConst {
		lhs, rhs = rhs, lhs
	}

	// Compute constant if both sides are constant.
	if lhs.Op == OpConst {
		if lhs.Value == 0 {
			return rhs
		} else if rhs.Op == OpConst {
			return c.Uint(lhs.Type, lhs.Value^rhs.Value)
		}
	}
	if lhs == rhs {
		return c.Uint(lhs.Type, 0)
	}
	return c.intern(&Expr{Op: OpBitXor, Type: lhs.Type, Args: []*Expr{lhs, rhs}})
}

// zero returns the numeric zero of t.
func (c *Context) zero(t *Type) *Expr {
	if t.Kind == KindInt {
		return c.Integer(0)
	}
	return c.Uint(t, 0)
}

// one returns the numeric one of t.
func (c *Context) one(t *Type) *Expr {
	if t.Kind == KindInt {
		return c.Integer(1)
	}
	return c.Uint(t, 1)
}

func assertNumeric(lhs, rhs *Expr, op string) {
	assert(lhs.Type.IsNumeric(), "%s: expected numeric operand, got %s", op, lhs.Type)
	assertSameType(lhs, rhs, op)
}

// Add returns the sum of lhs & rhs. Bitvec addition wraps.
func (c *Context) Add(lhs, rhs *Expr) *Expr {
	assertNumeric(lhs, rhs, "add")

	// Move constant expression to left hand side.
	if lhs.Op != OpConst && rhs.Op == OpConst {
		lhs, rhs = rhs, lhs
	}

	if lhs.Op == OpConst {
		if lhs.isZero() {
			return rhs
		} else if rhs.Op == OpConst {
			return c.addConst(lhs, rhs)
		}

		// Merge constant LHS with constant in RHS expression.
		if rhs.Op == OpAdd && rhs.Args[0].Op == OpConst { // X + (Y+z) == (X+Y) + z
			return c.Add(c.Add(lhs, rhs.Args[0]), rhs.Args[1])
		} else if rhs.Op == OpSub && rhs.Args[0].Op == OpConst { // X + (Y-z) == (X+Y) - z
			return c.Sub(c.Add(lhs, rhs.Args[0]), rhs.Args[1])
		}
	}

	// Refactor constant LHS.LHS to a standalone value on LHS.
	if lhs.Op == OpAdd && lhs.Args[0].Op == OpConst { // (X+y) + z = X + (y+z)
		return c.Add(lhs.Args[0], c.Add(lhs.Args[1], rhs))
	} else if lhs.Op == OpSub && lhs.Args[0].Op == OpConst { // (X-y) + z = X + (z-y)
		return c.Add(lhs.Args[0], c.Sub(rhs, lhs.Args[1]))
	}

	// Refactor constant RHS.LHS to a standalone value on LHS.
	if rhs.Op == OpAdd && rhs.Args[0].Op == OpConst { // a + (K+b) = K + (a+b)
		return c.Add(rhs.Args[0], c.Add(lhs, rhs.Args[1]))
	} else if rhs.Op == OpSub && rhs.Args[0].Op == OpConst { // a + (K-b) = K + (a-b)
		return c.Add(rhs.Args[0], c.Sub(lhs, rhs.Args[1]))
	}

	return c.intern(&Expr{Op: OpAdd, Type: lhs.Type, Args: []*Expr{lhs, rhs}})
}

// Sub returns the difference of lhs & rhs. Bitvec subtraction wraps.
func (c *Context) Sub(lhs, rhs *Expr) *Expr {
	assertNumeric(lhs, rhs, "sub")

	// Subtracting a value from itself is zero.
	if lhs == rhs {
		return c.zero(lhs.Type)
	}

	// Compute constant if both sides are constant.
	if lhs.Op == OpConst && rhs.Op == OpConst {
		return c.subConst(lhs, rhs)
	}

	// If constant is on right side, refactor to addition with LHS & RHS flipped.
	if rhs.Op == OpConst {
		return c.Add(c.subConst(c.zero(rhs.Type), rhs), lhs)
	}

	// Combine with children of RHS expression, if possible.
	if lhs.Op == OpConst {
		if rhs.Op == OpAdd && rhs.Args[0].Op == OpConst { // X - (Y+z) == (X-Y) - z
			return c.Sub(c.Sub(lhs, rhs.Args[0]), rhs.Args[1])
		} else if rhs.Op == OpSub && rhs.Args[0].Op == OpConst { // X - (Y-z) == (X-Y) + z
			return c.Add(c.Sub(lhs, rhs.Args[0]), rhs.Args[1])
		}
	}

	// Refactor constant LHS.LHS to a standalone value on LHS.
	if lhs.Op == OpAdd && lhs.Args[0].Op == OpConst { // (X+y) - z = X + (y-z)
		return c.Add(lhs.Args[0], c.Sub(lhs.Args[1], rhs))
	} else if lhs.Op == OpSub && lhs.Args[0].Op == OpConst { // (X-y) - z = X - (y+z)
		return c.Sub(lhs.Args[0], c.Add(lhs.Args[1], rhs))
	}

	// Refactor constant RHS.LHS to a standalone value on LHS.
	if rhs.Op == OpAdd && rhs.Args[0].Op == OpConst { // x - (Y+z) = (x-z) - Y
		return c.Sub(c.Sub(lhs, rhs.Args[1]), rhs.Args[0])
	} else if rhs.Op == OpSub && rhs.Args[0].Op == OpConst { // x - (Y-z) = (x+z) - Y
		return c.Sub(c.Add(lhs, rhs.Args[1]), rhs.Args[0])
	}

	return c.intern(&Expr{Op: OpSub, Type: lhs.Type, Args: []*Expr{lhs, rhs}})
}

// Neg returns the arithmetic negation of x.
func (c *Context) Neg(x *Expr) *Expr {
	return c.Sub(c.zero(x.Type), x)
}

// Mul returns the product of lhs & rhs. Bitvec multiplication wraps.
func (c *Context) Mul(lhs, rhs *Expr) *Expr {
	assertNumeric(lhs, rhs, "mul")

	// If constant is on right side, swap to left side.
	if rhs.Op == OpConst && lhs.Op != OpConst {
		lhs, rhs = rhs, lhs
	}

	if lhs.Op == OpConst {
		if rhs.Op == OpConst {
			return c.mulConst(lhs, rhs)
		}

		// Optimize for multiplication with a constant 1 or 0.
		if lhs.isOne() {
			return rhs
		} else if lhs.isZero() {
			return lhs
		}
	}
	return c.intern(&Expr{Op: OpMul, Type: lhs.Type, Args: []*Expr{lhs, rhs}})
}

func (c *Context) addConst(lhs, rhs *Expr) *Expr {
	if lhs.Type.Kind == KindInt {
		return c.BigInt(new(big.Int).Add(lhs.Big, rhs.Big))
	}
	return c.Uint(lhs.Type, lhs.Value+rhs.Value)
}

func (c *Context) subConst(lhs, rhs *Expr) *Expr {
	if lhs.Type.Kind == KindInt {
		return c.BigInt(new(big.Int).Sub(lhs.Big, rhs.Big))
	}
	return c.Uint(lhs.Type, lhs.Value-rhs.Value)
}

func (c *Context) mulConst(lhs, rhs *Expr) *Expr {
	if lhs.Type.Kind == KindInt {
		return c.BigInt(new(big.Int).Mul(lhs.Big, rhs.Big))
	}
	return c.Uint(lhs.Type, lhs.Value*rhs.Value)
}

// Eq returns an expression that represents the equality of lhs and rhs.
// Equality is structural for every type.
func (c *Context) Eq(lhs, rhs *Expr) *Expr {
	assertSameType(lhs, rhs, "eq")

	if lhs == rhs {
		return c.True()
	}

	// If constant is on right side, swap to left side.
	if !lhs.constant && rhs.constant {
		lhs, rhs = rhs, lhs
	}

	// Constants are canonical so distinct constants are distinct values.
	if lhs.constant && rhs.constant {
		return c.False()
	}

	switch lhs.Type.Kind {
	case KindBool:
		if lhs.IsTrue() {
			return rhs
		} else if lhs.IsFalse() {
			return c.Not(rhs)
		}

	case KindBitVec, KindInt:
		if lhs.Op == OpConst && rhs.Op == OpAdd && rhs.Args[0].Op == OpConst { // X = Y + z => X - Y = z
			return c.Eq(c.Sub(lhs, rhs.Args[0]), rhs.Args[1])
		}

	case KindOption:
		switch {
		case lhs.Op == OpNone:
			return c.Not(c.IsSome(rhs))
		case rhs.Op == OpNone:
			return c.Not(c.IsSome(lhs))
		case lhs.Op == OpSome && rhs.Op == OpSome:
			return c.Eq(lhs.Args[0], rhs.Args[0])
		case lhs.Op == OpSome:
			return c.And(c.IsSome(rhs), c.Eq(lhs.Args[0], c.OptionValue(rhs)))
		}

	case KindObject:
		if lhs.Op == OpObject && rhs.Op == OpObject {
			x := c.True()
			for i := range lhs.Args {
				x = c.And(x, c.Eq(lhs.Args[i], rhs.Args[i]))
			}
			return x
		}
	}

	return c.intern(&Expr{Op: OpEq, Type: Bool, Args: []*Expr{lhs, rhs}})
}

// Ne returns an expression that represents the inequality of lhs and rhs.
func (c *Context) Ne(lhs, rhs *Expr) *Expr {
	return c.Not(c.Eq(lhs, rhs))
}

func assertOrdered(lhs, rhs *Expr, op string) {
	assert(lhs.Type.IsOrdered(), "%s: expected ordered operand, got %s", op, lhs.Type)
	assertSameType(lhs, rhs, op)
}

// Lt returns an expression that represents lhs < rhs. Bitvec comparison
// follows the signedness of the operand type.
func (c *Context) Lt(lhs, rhs *Expr) *Expr {
	assertOrdered(lhs, rhs, "lt")

	if lhs == rhs {
		return c.False()
	} else if lhs.Op == OpConst && rhs.Op == OpConst {
		return c.Bool(compareConst(lhs, rhs) < 0)
	}

	// Nothing is below the minimum value of an unsigned type.
	if rhs.Op == OpConst && rhs.Value == 0 && rhs.Type.Kind != KindInt && !rhs.Type.Signed {
		return c.False()
	}
	return c.intern(&Expr{Op: OpLt, Type: Bool, Args: []*Expr{lhs, rhs}})
}

// Le returns an expression that represents lhs <= rhs.
func (c *Context) Le(lhs, rhs *Expr) *Expr {
	assertOrdered(lhs, rhs, "le")

	if lhs == rhs {
		return c.True()
	} else if lhs.Op == OpConst && rhs.Op == OpConst {
		return c.Bool(compareConst(lhs, rhs) <= 0)
	}

	// The minimum value of an unsigned type is below everything.
	if lhs.Op == OpConst && lhs.Value == 0 && lhs.Type.Kind != KindInt && !lhs.Type.Signed {
		return c.True()
	}
	return c.intern(&Expr{Op: OpLe, Type: Bool, Args: []*Expr{lhs, rhs}})
}

// Gt returns an expression that represents lhs > rhs.
func (c *Context) Gt(lhs, rhs *Expr) *Expr { return c.Lt(rhs, lhs) }

// Ge returns an expression that represents lhs >= rhs.
func (c *Context) Ge(lhs, rhs *Expr) *Expr { return c.Le(rhs, lhs) }

// If returns a conditional expression.
func (c *Context) If(cond, then, els *Expr) *Expr {
	assertKind(cond, KindBool, "if")
	assertSameType(then, els, "if")

	if cond.IsTrue() {
		return then
	} else if cond.IsFalse() {
		return els
	} else if then == els {
		return then
	}

	// Normalize negated conditions.
	if cond.Op == OpNot {
		return c.If(cond.Args[0], els, then)
	}

	// Nested conditionals on the same condition take the matching branch.
	if then.Op == OpIf && then.Args[0] == cond {
		return c.If(cond, then.Args[1], els)
	} else if els.Op == OpIf && els.Args[0] == cond {
		return c.If(cond, then, els.Args[2])
	}

	if then.Type.Kind == KindBool {
		switch {
		case then.IsTrue():
			return c.Or(cond, els)
		case then.IsFalse():
			return c.And(c.Not(cond), els)
		case els.IsTrue():
			return c.Or(c.Not(cond), then)
		case els.IsFalse():
			return c.And(cond, then)
		}
	}

	return c.intern(&Expr{Op: OpIf, Type: then.Type, Args: []*Expr{cond, then, els}})
}

// Cast converts x to type t. Supported conversions are between bitvec types
// (truncating or extending by the signedness of the source) and between
// bitvec and unbounded integers.
func (c *Context) Cast(x *Expr, t *Type) *Expr {
	if x.Type.Equal(t) {
		return x
	}

	switch {
	case x.Type.Kind == KindBitVec && t.Kind == KindBitVec:
		if x.Op == OpConst {
			v := x.Value
			if x.Type.Signed && t.Width > x.Type.Width {
				v = uint64(signExtend(v, x.Type.Width))
			}
			return c.Uint(t, v)
		}

		// Narrowing a widened value restores the original.
		if x.Op == OpCast && x.Args[0].Type.Equal(t) && x.Type.Width >= t.Width {
			return x.Args[0]
		}

	case x.Type.Kind == KindBitVec && t.Kind == KindInt:
		if x.Op == OpConst {
			if x.Type.Signed {
				return c.Integer(x.Int64())
			}
			return c.BigInt(new(big.Int).SetUint64(x.Value))
		}

	case x.Type.Kind == KindInt && t.Kind == KindBitVec:
		if x.Op == OpConst {
			mask := new(big.Int).SetUint64(bitmask(t.Width))
			return c.Uint(t, new(big.Int).And(x.Big, mask).Uint64())
		}

	default:
		panic(fmt.Sprintf("assert: cast: unsupported conversion %s -> %s", x.Type, t))
	}

	return c.intern(&Expr{Op: OpCast, Type: t, Args: []*Expr{x}})
}
