// Package bitblast lowers finite expressions to vectors of Boolean functions.
//
// The lowering is generic over the Boolean representation so the same
// encoding serves decision diagrams and SAT circuits. Bit layouts follow
// zen.EncodeBits.
package bitblast

import (
	"fmt"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/internal/cache"
)

// Algebra is a Boolean function representation.
type Algebra[B any] interface {
	True() B
	False() B
	Not(x B) B
	And(x, y B) B
	Or(x, y B) B
	Xor(x, y B) B
	Ite(c, t, e B) B
}

// VarFunc returns the bits allocated to a variable.
type VarFunc[B any] func(v *zen.Expr) ([]B, error)

// Compiler lowers expressions into bit vectors, memoizing by node identity.
type Compiler[B any] struct {
	alg   Algebra[B]
	vars  VarFunc[B]
	cache *cache.Finite[uint64, []B]
}

// New returns a new compiler. cacheSize bounds the memo table; zero or less
// is unbounded.
func New[B any](alg Algebra[B], vars VarFunc[B], cacheSize int) *Compiler[B] {
	return &Compiler[B]{
		alg:   alg,
		vars:  vars,
		cache: cache.New[uint64, []B](cacheSize),
	}
}

// Algebra returns the underlying Boolean representation.
func (c *Compiler[B]) Algebra() Algebra[B] { return c.alg }

// Bool compiles a Boolean expression to a single function.
func (c *Compiler[B]) Bool(e *zen.Expr) (B, error) {
	if e.Type.Kind != zen.KindBool {
		var zero B
		return zero, fmt.Errorf("%w: expected bool expression, got %s", zen.ErrType, e.Type)
	}
	bits, err := c.Compile(e)
	if err != nil {
		var zero B
		return zero, err
	}
	return bits[0], nil
}

// Compile returns the bit vector of e.
func (c *Compiler[B]) Compile(e *zen.Expr) ([]B, error) {
	if bits, ok := c.cache.Get(e.ID()); ok {
		return bits, nil
	}
	if !e.Type.Finite() {
		return nil, fmt.Errorf("%w: %s has unbounded type %s", zen.ErrBackendNotApplicable, e.Op, e.Type)
	}

	bits, err := c.compile(e)
	if err != nil {
		return nil, err
	}
	c.cache.Set(e.ID(), bits)
	return bits, nil
}

func (c *Compiler[B]) args(e *zen.Expr) ([][]B, error) {
	a := make([][]B, len(e.Args))
	for i, arg := range e.Args {
		bits, err := c.Compile(arg)
		if err != nil {
			return nil, err
		}
		a[i] = bits
	}
	return a, nil
}

func (c *Compiler[B]) compile(e *zen.Expr) ([]B, error) {
	if e.IsConstant() {
		return c.constant(e)
	} else if e.Op == zen.OpVar {
		bits, err := c.vars(e)
		if err != nil {
			return nil, err
		}
		if w, _ := e.Type.BitWidth(); uint(len(bits)) != w {
			return nil, fmt.Errorf("variable %s: expected %d bits, got %d", e, w, len(bits))
		}
		return bits, nil
	}

	// Multiplication needs a constant operand before lowering anything else.
	if e.Op == zen.OpMul && !e.Args[0].IsConstant() && !e.Args[1].IsConstant() {
		return nil, fmt.Errorf("%w: multiplication of two non-constant values: %s", zen.ErrUnsupported, e)
	}

	args, err := c.args(e)
	if err != nil {
		return nil, err
	}

	alg := c.alg
	switch e.Op {
	case zen.OpNot:
		return []B{alg.Not(args[0][0])}, nil
	case zen.OpAnd:
		return []B{alg.And(args[0][0], args[1][0])}, nil
	case zen.OpOr:
		return []B{alg.Or(args[0][0], args[1][0])}, nil

	case zen.OpBitNot:
		return c.mapBits(args[0], alg.Not), nil
	case zen.OpBitAnd:
		return c.zipBits(args[0], args[1], alg.And), nil
	case zen.OpBitOr:
		return c.zipBits(args[0], args[1], alg.Or), nil
	case zen.OpBitXor:
		return c.zipBits(args[0], args[1], alg.Xor), nil

	case zen.OpAdd:
		sum, _ := c.add(args[0], args[1], alg.False())
		return sum, nil
	case zen.OpSub:
		return c.sub(args[0], args[1]), nil
	case zen.OpMul:
		if e.Args[0].IsConstant() {
			return c.mulConst(args[1], e.Args[0].Value), nil
		}
		return c.mulConst(args[0], e.Args[1].Value), nil

	case zen.OpEq:
		return []B{c.Eq(args[0], args[1])}, nil
	case zen.OpLt:
		return []B{c.less(e.Args[0].Type, args[0], args[1], false)}, nil
	case zen.OpLe:
		return []B{c.less(e.Args[0].Type, args[0], args[1], true)}, nil

	case zen.OpIf:
		return c.ite(args[0][0], args[1], args[2]), nil

	case zen.OpCast:
		return c.cast(e.Args[0].Type, e.Type, args[0])

	case zen.OpObject:
		var bits []B
		for _, a := range args {
			bits = append(bits, a...)
		}
		return bits, nil
	case zen.OpGetField:
		t := e.Args[0].Type
		off := t.FieldOffset(e.Index)
		w, _ := t.Fields[e.Index].Type.BitWidth()
		return args[0][off : off+w], nil
	case zen.OpWithField:
		t := e.Args[0].Type
		off := t.FieldOffset(e.Index)
		w, _ := t.Fields[e.Index].Type.BitWidth()
		bits := append([]B(nil), args[0]...)
		copy(bits[off:off+w], args[1])
		return bits, nil

	case zen.OpSome:
		return append([]B{alg.True()}, args[0]...), nil
	case zen.OpIsSome:
		return args[0][:1], nil
	case zen.OpOptionValue:
		// Absent payloads are zero, which is the default value.
		return args[0][1:], nil

	case zen.OpListAppend:
		return c.listAppend(e.Type, args[0], args[1]), nil
	case zen.OpListLength:
		lw := zen.LengthWidth(e.Args[0].Type.Cap)
		return c.extend(args[0][:lw], zen.WidthLength, false), nil
	case zen.OpListAt:
		return c.listAt(e.Args[0].Type, args[0], args[1]), nil

	default:
		return nil, fmt.Errorf("%w: no finite encoding for %s", zen.ErrBackendNotApplicable, e.Op)
	}
}

func (c *Compiler[B]) constant(e *zen.Expr) ([]B, error) {
	values, err := zen.EncodeBits(e)
	if err != nil {
		return nil, err
	}
	return c.Const(values), nil
}

// Const returns constant functions for a bit assignment.
func (c *Compiler[B]) Const(values []bool) []B {
	bits := make([]B, len(values))
	for i, v := range values {
		bits[i] = c.lit(v)
	}
	return bits
}

func (c *Compiler[B]) lit(v bool) B {
	if v {
		return c.alg.True()
	}
	return c.alg.False()
}

func (c *Compiler[B]) word(v uint64, width uint) []B {
	bits := make([]B, width)
	for i := range bits {
		bits[i] = c.lit(i < 64 && v&(1<<uint(i)) != 0)
	}
	return bits
}

func (c *Compiler[B]) mapBits(x []B, fn func(B) B) []B {
	bits := make([]B, len(x))
	for i := range x {
		bits[i] = fn(x[i])
	}
	return bits
}

func (c *Compiler[B]) zipBits(x, y []B, fn func(B, B) B) []B {
	bits := make([]B, len(x))
	for i := range x {
		bits[i] = fn(x[i], y[i])
	}
	return bits
}

// Eq returns the function that is true when x and y are bitwise equal.
func (c *Compiler[B]) Eq(x, y []B) B {
	alg := c.alg
	eq := alg.True()
	for i := range x {
		eq = alg.And(eq, alg.Not(alg.Xor(x[i], y[i])))
	}
	return eq
}

func (c *Compiler[B]) ite(cond B, x, y []B) []B {
	bits := make([]B, len(x))
	for i := range x {
		bits[i] = c.alg.Ite(cond, x[i], y[i])
	}
	return bits
}

// add returns the ripple-carry sum of x and y and the final carry.
func (c *Compiler[B]) add(x, y []B, carry B) ([]B, B) {
	alg := c.alg
	sum := make([]B, len(x))
	for i := range x {
		t := alg.Xor(x[i], y[i])
		sum[i] = alg.Xor(t, carry)
		carry = alg.Or(alg.And(x[i], y[i]), alg.And(carry, t))
	}
	return sum, carry
}

func (c *Compiler[B]) sub(x, y []B) []B {
	diff, _ := c.add(x, c.mapBits(y, c.alg.Not), c.alg.True())
	return diff
}

func (c *Compiler[B]) mulConst(x []B, k uint64) []B {
	product := c.word(0, uint(len(x)))
	for i := 0; i < len(x) && i < 64; i++ {
		if k&(1<<uint(i)) == 0 {
			continue
		}
		shifted := make([]B, len(x))
		for j := range shifted {
			if j < i {
				shifted[j] = c.alg.False()
			} else {
				shifted[j] = x[j-i]
			}
		}
		product, _ = c.add(product, shifted, c.alg.False())
	}
	return product
}

// ult returns x < y (or x <= y if orEqual) over unsigned bit vectors.
func (c *Compiler[B]) ult(x, y []B, orEqual bool) B {
	alg := c.alg
	lt := c.lit(orEqual)
	for i := range x {
		// Higher bits override lower ones.
		lt = alg.Ite(alg.Xor(x[i], y[i]), y[i], lt)
	}
	return lt
}

func (c *Compiler[B]) less(t *zen.Type, x, y []B, orEqual bool) B {
	if t.Kind == zen.KindBitVec && t.Signed {
		// Flipping the sign bit maps two's complement order to unsigned order.
		n := len(x) - 1
		x = append(append([]B(nil), x[:n]...), c.alg.Not(x[n]))
		y = append(append([]B(nil), y[:n]...), c.alg.Not(y[n]))
	}
	return c.ult(x, y, orEqual)
}

func (c *Compiler[B]) extend(x []B, width uint, signed bool) []B {
	if uint(len(x)) >= width {
		return x[:width]
	}
	fill := c.alg.False()
	if signed && len(x) > 0 {
		fill = x[len(x)-1]
	}
	bits := append(make([]B, 0, width), x...)
	for uint(len(bits)) < width {
		bits = append(bits, fill)
	}
	return bits
}

func (c *Compiler[B]) cast(from, to *zen.Type, x []B) ([]B, error) {
	if from.Kind != zen.KindBitVec || to.Kind != zen.KindBitVec {
		return nil, fmt.Errorf("%w: cast %s -> %s", zen.ErrBackendNotApplicable, from, to)
	}
	return c.extend(x, to.Width, from.Signed), nil
}

// slot returns the bits of list slot i.
func slot[B any](t *zen.Type, l []B, i int) []B {
	lw := zen.LengthWidth(t.Cap)
	w, _ := t.Elem.BitWidth()
	off := lw + uint(i)*w
	return l[off : off+w]
}

func (c *Compiler[B]) listAppend(t *zen.Type, l, x []B) []B {
	lw := zen.LengthWidth(t.Cap)
	n := l[:lw]
	full := c.Eq(n, c.word(uint64(t.Cap), lw))

	inc, _ := c.add(n, c.word(1, lw), c.alg.False())
	bits := c.ite(full, n, inc)
	for i := 0; i < t.Cap; i++ {
		at := c.alg.And(c.alg.Not(full), c.Eq(n, c.word(uint64(i), lw)))
		bits = append(bits, c.ite(at, x, slot(t, l, i))...)
	}
	return bits
}

func (c *Compiler[B]) listAt(t *zen.Type, l, index []B) []B {
	lw := zen.LengthWidth(t.Cap)
	n := l[:lw]

	w, _ := t.Elem.BitWidth()
	result := c.word(0, 1+w)
	for i := t.Cap - 1; i >= 0; i-- {
		present := c.alg.And(
			c.Eq(index, c.word(uint64(i), uint(len(index)))),
			c.ult(c.word(uint64(i), lw), n, false),
		)
		some := append([]B{c.alg.True()}, slot(t, l, i)...)
		result = c.ite(present, some, result)
	}
	return result
}

// WellFormed returns the function that holds exactly when bits is the
// canonical encoding of a valid value of t: characters are in range, absent
// option payloads are zero, and list slots past the length are zero.
func (c *Compiler[B]) WellFormed(t *zen.Type, bits []B) B {
	alg := c.alg
	switch t.Kind {
	case zen.KindBool, zen.KindBitVec:
		return alg.True()

	case zen.KindChar:
		return c.ult(bits, c.word(zen.MaxChar, zen.WidthChar), true)

	case zen.KindOption:
		return alg.Ite(bits[0], c.WellFormed(t.Elem, bits[1:]), c.zero(bits[1:]))

	case zen.KindObject:
		wf := alg.True()
		var off uint
		for _, f := range t.Fields {
			w, _ := f.Type.BitWidth()
			wf = alg.And(wf, c.WellFormed(f.Type, bits[off:off+w]))
			off += w
		}
		return wf

	case zen.KindList:
		lw := zen.LengthWidth(t.Cap)
		n := bits[:lw]
		wf := c.ult(n, c.word(uint64(t.Cap), lw), true)
		for i := 0; i < t.Cap; i++ {
			s := slot(t, bits, i)
			used := c.ult(c.word(uint64(i), lw), n, false)
			wf = alg.And(wf, alg.Ite(used, c.WellFormed(t.Elem, s), c.zero(s)))
		}
		return wf

	default:
		panic(fmt.Sprintf("bitblast: no finite encoding for %s", t))
	}
}

func (c *Compiler[B]) zero(bits []B) B {
	alg := c.alg
	z := alg.True()
	for _, b := range bits {
		z = alg.And(z, alg.Not(b))
	}
	return z
}
