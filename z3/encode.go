package z3

/*
#include <z3.h>
#include <stdlib.h>
*/
import "C"

import (
	"fmt"
	"strconv"
	"unsafe"

	"github.com/benbjohnson/zen"
)

// toAST returns the Z3 term of a zen expression.
func (ctx *Context) toAST(expr *zen.Expr) (C.Z3_ast, error) {
	if ast, ok := ctx.asts.Get(expr.ID()); ok {
		return ast, nil
	}
	ast, err := ctx.lower(expr)
	if err != nil {
		return nil, err
	} else if err := ctx.err(expr.Op.String()); err != nil {
		return nil, err
	}
	ctx.asts.Set(expr.ID(), ast)
	return ast, nil
}

func (ctx *Context) lower(expr *zen.Expr) (C.Z3_ast, error) {
	switch expr.Op {
	case zen.OpConst:
		return ctx.toConstantAST(expr)
	case zen.OpVar:
		s, err := ctx.sortOf(expr.Type)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_const(ctx.raw, ctx.symbol(varName(expr)), s.raw), nil
	case zen.OpNone:
		return ctx.makeOption(expr.Type, false, ctx.zctx.Default(expr.Type.Elem))
	case zen.OpListEmpty:
		return ctx.makeList(expr.Type, 0, nil)
	case zen.OpSeqEmpty:
		s, err := ctx.sortOf(expr.Type)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_seq_empty(ctx.raw, s.raw), nil
	case zen.OpMapEmpty:
		return ctx.makeConstArray(expr.Type.Key, ctx.zctx.None(zen.OptionOf(expr.Type.Elem)))
	case zen.OpSetEmpty:
		return ctx.makeConstArray(expr.Type.Key, ctx.zctx.False())
	case zen.OpBagEmpty:
		return ctx.makeConstArray(expr.Type.Key, ctx.zctx.Integer(0))
	case zen.OpSome:
		return ctx.makeOption(expr.Type, true, expr.Args[0])
	}

	args := make([]C.Z3_ast, len(expr.Args))
	for i, arg := range expr.Args {
		ast, err := ctx.toAST(arg)
		if err != nil {
			return nil, err
		}
		args[i] = ast
	}
	argType := func(i int) *zen.Type { return expr.Args[i].Type }

	switch expr.Op {
	case zen.OpNot:
		return C.Z3_mk_not(ctx.raw, args[0]), nil
	case zen.OpAnd:
		return ctx.and(args...), nil
	case zen.OpOr:
		return C.Z3_mk_or(ctx.raw, 2, &args[0]), nil

	case zen.OpBitNot:
		return C.Z3_mk_bvnot(ctx.raw, args[0]), nil
	case zen.OpBitAnd:
		return C.Z3_mk_bvand(ctx.raw, args[0], args[1]), nil
	case zen.OpBitOr:
		return C.Z3_mk_bvor(ctx.raw, args[0], args[1]), nil
	case zen.OpBitXor:
		return C.Z3_mk_bvxor(ctx.raw, args[0], args[1]), nil

	case zen.OpAdd:
		if expr.Type.Kind == zen.KindInt {
			return C.Z3_mk_add(ctx.raw, 2, &args[0]), nil
		}
		return C.Z3_mk_bvadd(ctx.raw, args[0], args[1]), nil
	case zen.OpSub:
		if expr.Type.Kind == zen.KindInt {
			return C.Z3_mk_sub(ctx.raw, 2, &args[0]), nil
		}
		return C.Z3_mk_bvsub(ctx.raw, args[0], args[1]), nil
	case zen.OpMul:
		if expr.Type.Kind == zen.KindInt {
			return C.Z3_mk_mul(ctx.raw, 2, &args[0]), nil
		}
		return C.Z3_mk_bvmul(ctx.raw, args[0], args[1]), nil

	case zen.OpEq:
		return ctx.eq(args[0], args[1]), nil
	case zen.OpLt:
		return ctx.less(argType(0), args[0], args[1], false), nil
	case zen.OpLe:
		return ctx.less(argType(0), args[0], args[1], true), nil

	case zen.OpIf:
		return C.Z3_mk_ite(ctx.raw, args[0], args[1], args[2]), nil
	case zen.OpCast:
		return ctx.toCastAST(argType(0), expr.Type, args[0])

	case zen.OpObject:
		s, err := ctx.sortOf(expr.Type)
		if err != nil {
			return nil, err
		}
		return ctx.app(s.mk, args...), nil
	case zen.OpGetField:
		s, err := ctx.sortOf(argType(0))
		if err != nil {
			return nil, err
		}
		return ctx.app(s.projs[expr.Index], args[0]), nil
	case zen.OpWithField:
		s, err := ctx.sortOf(expr.Type)
		if err != nil {
			return nil, err
		}
		fields := make([]C.Z3_ast, len(s.projs))
		for i, proj := range s.projs {
			fields[i] = ctx.app(proj, args[0])
		}
		fields[expr.Index] = args[1]
		return ctx.app(s.mk, fields...), nil

	case zen.OpIsSome, zen.OpOptionValue:
		s, err := ctx.sortOf(argType(0))
		if err != nil {
			return nil, err
		}
		if expr.Op == zen.OpIsSome {
			return ctx.app(s.projs[0], args[0]), nil
		}
		return ctx.app(s.projs[1], args[0]), nil

	case zen.OpListAppend:
		return ctx.toListAppendAST(expr.Type, args[0], args[1])
	case zen.OpListLength:
		s, err := ctx.sortOf(argType(0))
		if err != nil {
			return nil, err
		}
		return ctx.app(s.projs[0], args[0]), nil
	case zen.OpListAt:
		return ctx.toListAtAST(argType(0), args[0], args[1])

	case zen.OpSeqUnit:
		return C.Z3_mk_seq_unit(ctx.raw, args[0]), nil
	case zen.OpSeqConcat:
		return C.Z3_mk_seq_concat(ctx.raw, 2, &args[0]), nil
	case zen.OpSeqLength:
		return C.Z3_mk_seq_length(ctx.raw, args[0]), nil
	case zen.OpSeqAt:
		return ctx.toSeqAtAST(expr.Type, args[0], args[1])
	case zen.OpSeqContains:
		return C.Z3_mk_seq_contains(ctx.raw, args[0], args[1]), nil

	case zen.OpMapSet:
		value, err := ctx.makeOptionAST(zen.OptionOf(argType(2)), true, args[2])
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_store(ctx.raw, args[0], args[1], value), nil
	case zen.OpMapDelete:
		none, err := ctx.toAST(ctx.zctx.None(zen.OptionOf(argType(0).Elem)))
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_store(ctx.raw, args[0], args[1], none), nil
	case zen.OpMapGet, zen.OpSetContains, zen.OpBagCount:
		return C.Z3_mk_select(ctx.raw, args[0], args[1]), nil

	case zen.OpSetAdd:
		t, err := ctx.makeTrue()
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_store(ctx.raw, args[0], args[1], t), nil
	case zen.OpSetUnion:
		return C.Z3_mk_set_union(ctx.raw, 2, &args[0]), nil
	case zen.OpSetIntersect:
		return C.Z3_mk_set_intersect(ctx.raw, 2, &args[0]), nil

	case zen.OpBagAdd:
		one, err := ctx.makeInt("1")
		if err != nil {
			return nil, err
		}
		count := [2]C.Z3_ast{C.Z3_mk_select(ctx.raw, args[0], args[1]), one}
		return C.Z3_mk_store(ctx.raw, args[0], args[1], C.Z3_mk_add(ctx.raw, 2, &count[0])), nil

	default:
		return nil, fmt.Errorf("z3.Context.toAST: unexpected operation: %s", expr.Op)
	}
}

func (ctx *Context) toConstantAST(expr *zen.Expr) (C.Z3_ast, error) {
	switch expr.Type.Kind {
	case zen.KindBool:
		if expr.IsTrue() {
			return ctx.makeTrue()
		}
		return ctx.makeFalse()
	case zen.KindBitVec:
		return ctx.makeUint64(expr.Type.Width, expr.Value)
	case zen.KindChar:
		return ctx.makeUint64(zen.WidthChar, expr.Value)
	case zen.KindInt:
		return ctx.makeInt(expr.Big.String())
	case zen.KindString:
		return ctx.makeString(expr.Type, expr.Str)
	default:
		return nil, fmt.Errorf("z3.Context.toConstantAST: unexpected constant type: %s", expr.Type)
	}
}

func (ctx *Context) toCastAST(from, to *zen.Type, src C.Z3_ast) (C.Z3_ast, error) {
	switch {
	case from.Kind == zen.KindBitVec && to.Kind == zen.KindBitVec:
		if to.Width < from.Width {
			return C.Z3_mk_extract(ctx.raw, C.uint(to.Width-1), 0, src), nil
		} else if from.Signed {
			return C.Z3_mk_sign_ext(ctx.raw, C.uint(to.Width-from.Width), src), nil
		}
		return C.Z3_mk_zero_ext(ctx.raw, C.uint(to.Width-from.Width), src), nil
	case from.Kind == zen.KindBitVec && to.Kind == zen.KindInt:
		return C.Z3_mk_bv2int(ctx.raw, src, C.bool(from.Signed)), nil
	case from.Kind == zen.KindInt && to.Kind == zen.KindBitVec:
		return C.Z3_mk_int2bv(ctx.raw, C.uint(to.Width), src), nil
	default:
		return nil, fmt.Errorf("z3.Context.toCastAST: unexpected conversion: %s -> %s", from, to)
	}
}

// toListAppendAST stores x in the first free slot of l. Full lists are
// unchanged.
func (ctx *Context) toListAppendAST(t *zen.Type, l, x C.Z3_ast) (C.Z3_ast, error) {
	s, err := ctx.sortOf(t)
	if err != nil {
		return nil, err
	}
	n := ctx.app(s.projs[0], l)
	capacity, err := ctx.makeUint64(zen.WidthLength, uint64(t.Cap))
	if err != nil {
		return nil, err
	}
	one, err := ctx.makeUint64(zen.WidthLength, 1)
	if err != nil {
		return nil, err
	}

	fields := []C.Z3_ast{
		C.Z3_mk_ite(ctx.raw, C.Z3_mk_bvult(ctx.raw, n, capacity), C.Z3_mk_bvadd(ctx.raw, n, one), n),
	}
	for i := 0; i < t.Cap; i++ {
		k, err := ctx.makeUint64(zen.WidthLength, uint64(i))
		if err != nil {
			return nil, err
		}
		fields = append(fields, C.Z3_mk_ite(ctx.raw, ctx.eq(n, k), x, ctx.app(s.projs[i+1], l)))
	}
	return ctx.app(s.mk, fields...), nil
}

func (ctx *Context) toListAtAST(t *zen.Type, l, index C.Z3_ast) (C.Z3_ast, error) {
	s, err := ctx.sortOf(t)
	if err != nil {
		return nil, err
	}
	ast, err := ctx.toAST(ctx.zctx.None(zen.OptionOf(t.Elem)))
	if err != nil {
		return nil, err
	}
	n := ctx.app(s.projs[0], l)
	for i := t.Cap - 1; i >= 0; i-- {
		k, err := ctx.makeUint64(zen.WidthLength, uint64(i))
		if err != nil {
			return nil, err
		}
		some, err := ctx.makeOptionAST(zen.OptionOf(t.Elem), true, ctx.app(s.projs[i+1], l))
		if err != nil {
			return nil, err
		}
		hit := ctx.and(ctx.eq(index, k), C.Z3_mk_bvult(ctx.raw, k, n))
		ast = C.Z3_mk_ite(ctx.raw, hit, some, ast)
	}
	return ast, nil
}

func (ctx *Context) toSeqAtAST(t *zen.Type, seq, index C.Z3_ast) (C.Z3_ast, error) {
	none, err := ctx.toAST(ctx.zctx.None(t))
	if err != nil {
		return nil, err
	}
	zero, err := ctx.makeInt("0")
	if err != nil {
		return nil, err
	}
	some, err := ctx.makeOptionAST(t, true, C.Z3_mk_seq_nth(ctx.raw, seq, index))
	if err != nil {
		return nil, err
	}
	inRange := ctx.and(C.Z3_mk_le(ctx.raw, zero, index), C.Z3_mk_lt(ctx.raw, index, C.Z3_mk_seq_length(ctx.raw, seq)))
	return C.Z3_mk_ite(ctx.raw, inRange, some, none), nil
}

func (ctx *Context) less(t *zen.Type, lhs, rhs C.Z3_ast, orEqual bool) C.Z3_ast {
	switch {
	case t.Kind == zen.KindInt && orEqual:
		return C.Z3_mk_le(ctx.raw, lhs, rhs)
	case t.Kind == zen.KindInt:
		return C.Z3_mk_lt(ctx.raw, lhs, rhs)
	case t.Signed && orEqual:
		return C.Z3_mk_bvsle(ctx.raw, lhs, rhs)
	case t.Signed:
		return C.Z3_mk_bvslt(ctx.raw, lhs, rhs)
	case orEqual:
		return C.Z3_mk_bvule(ctx.raw, lhs, rhs)
	default:
		return C.Z3_mk_bvult(ctx.raw, lhs, rhs)
	}
}

// makeOption returns an option of type t holding the lowered value.
func (ctx *Context) makeOption(t *zen.Type, some bool, value *zen.Expr) (C.Z3_ast, error) {
	v, err := ctx.toAST(value)
	if err != nil {
		return nil, err
	}
	return ctx.makeOptionAST(t, some, v)
}

func (ctx *Context) makeOptionAST(t *zen.Type, some bool, value C.Z3_ast) (C.Z3_ast, error) {
	s, err := ctx.sortOf(t)
	if err != nil {
		return nil, err
	}
	flag, err := ctx.makeTrue()
	if !some {
		flag, err = ctx.makeFalse()
	}
	if err != nil {
		return nil, err
	}
	return ctx.app(s.mk, flag, value), nil
}

// makeList returns a list of type t holding n elements in its first slots.
func (ctx *Context) makeList(t *zen.Type, n int, elems []C.Z3_ast) (C.Z3_ast, error) {
	s, err := ctx.sortOf(t)
	if err != nil {
		return nil, err
	}
	length, err := ctx.makeUint64(zen.WidthLength, uint64(n))
	if err != nil {
		return nil, err
	}
	def, err := ctx.toAST(ctx.zctx.Default(t.Elem))
	if err != nil {
		return nil, err
	}

	fields := []C.Z3_ast{length}
	for i := 0; i < t.Cap; i++ {
		if i < len(elems) {
			fields = append(fields, elems[i])
		} else {
			fields = append(fields, def)
		}
	}
	return ctx.app(s.mk, fields...), nil
}

func (ctx *Context) makeConstArray(key *zen.Type, value *zen.Expr) (C.Z3_ast, error) {
	k, err := ctx.sortOf(key)
	if err != nil {
		return nil, err
	}
	v, err := ctx.toAST(value)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_const_array(ctx.raw, k.raw, v), ctx.err("Z3_mk_const_array")
}

// makeString returns a string as a sequence of character units.
func (ctx *Context) makeString(t *zen.Type, s string) (C.Z3_ast, error) {
	st, err := ctx.sortOf(t)
	if err != nil {
		return nil, err
	}
	var units []C.Z3_ast
	for _, r := range s {
		ch, err := ctx.makeUint64(zen.WidthChar, uint64(r))
		if err != nil {
			return nil, err
		}
		units = append(units, C.Z3_mk_seq_unit(ctx.raw, ch))
	}

	switch len(units) {
	case 0:
		return C.Z3_mk_seq_empty(ctx.raw, st.raw), ctx.err("Z3_mk_seq_empty")
	case 1:
		return units[0], nil
	default:
		return C.Z3_mk_seq_concat(ctx.raw, C.uint(len(units)), &units[0]), ctx.err("Z3_mk_seq_concat")
	}
}

func (ctx *Context) app(d C.Z3_func_decl, args ...C.Z3_ast) C.Z3_ast {
	if len(args) == 0 {
		return C.Z3_mk_app(ctx.raw, d, 0, nil)
	}
	return C.Z3_mk_app(ctx.raw, d, C.uint(len(args)), &args[0])
}

func (ctx *Context) and(args ...C.Z3_ast) C.Z3_ast {
	return C.Z3_mk_and(ctx.raw, C.uint(len(args)), &args[0])
}

func (ctx *Context) eq(lhs, rhs C.Z3_ast) C.Z3_ast {
	return C.Z3_mk_eq(ctx.raw, lhs, rhs)
}

func (ctx *Context) implies(lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	return C.Z3_mk_implies(ctx.raw, lhs, rhs), ctx.err("Z3_mk_implies")
}

func (ctx *Context) makeTrue() (C.Z3_ast, error) {
	return C.Z3_mk_true(ctx.raw), ctx.err("Z3_mk_true")
}

func (ctx *Context) makeFalse() (C.Z3_ast, error) {
	return C.Z3_mk_false(ctx.raw), ctx.err("Z3_mk_false")
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// makeInt returns an integer numeral from its decimal representation.
func (ctx *Context) makeInt(numeral string) (C.Z3_ast, error) {
	cs := C.CString(numeral)
	defer C.free(unsafe.Pointer(cs))
	return C.Z3_mk_numeral(ctx.raw, cs, C.Z3_mk_int_sort(ctx.raw)), ctx.err("Z3_mk_numeral")
}

func varName(v *zen.Expr) string {
	return v.Name + "!" + strconv.FormatUint(v.Value, 10)
}
