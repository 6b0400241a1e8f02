package z3

/*
#include <z3.h>
*/
import "C"

import (
	"fmt"

	"github.com/benbjohnson/zen"
)

// sort is the Z3 sort of a type. Options, objects and lists are tuples:
//
//	option  (some bool, value elem)
//	object  fields in declaration order
//	list    (len u16, slot0 ... slotN-1)
//
// Characters are 21-bit vectors, strings are sequences of characters, maps
// are arrays from keys to options, sets are arrays to booleans and bags are
// arrays to integers.
type sort struct {
	raw   C.Z3_sort
	mk    C.Z3_func_decl   // tuple constructor
	projs []C.Z3_func_decl // tuple accessors
}

// sortOf returns the sort of t, declaring tuple sorts on first use.
func (ctx *Context) sortOf(t *zen.Type) (*sort, error) {
	if s, ok := ctx.sorts[t.String()]; ok {
		return s, nil
	}

	var s *sort
	var err error
	switch t.Kind {
	case zen.KindBool:
		s = &sort{raw: C.Z3_mk_bool_sort(ctx.raw)}
	case zen.KindBitVec:
		s = &sort{raw: C.Z3_mk_bv_sort(ctx.raw, C.uint(t.Width))}
	case zen.KindChar:
		s = &sort{raw: C.Z3_mk_bv_sort(ctx.raw, C.uint(zen.WidthChar))}
	case zen.KindInt:
		s = &sort{raw: C.Z3_mk_int_sort(ctx.raw)}
	case zen.KindString, zen.KindSeq:
		elem, err := ctx.sortOf(t.SeqElem())
		if err != nil {
			return nil, err
		}
		s = &sort{raw: C.Z3_mk_seq_sort(ctx.raw, elem.raw)}
	case zen.KindOption:
		s, err = ctx.tupleSort(t, []string{"some", "value"}, []*zen.Type{zen.Bool, t.Elem})
	case zen.KindObject:
		names, types := make([]string, len(t.Fields)), make([]*zen.Type, len(t.Fields))
		for i, f := range t.Fields {
			names[i], types[i] = f.Name, f.Type
		}
		s, err = ctx.tupleSort(t, names, types)
	case zen.KindList:
		names, types := []string{"len"}, []*zen.Type{zen.Uint16}
		for i := 0; i < t.Cap; i++ {
			names, types = append(names, fmt.Sprintf("slot%d", i)), append(types, t.Elem)
		}
		s, err = ctx.tupleSort(t, names, types)
	case zen.KindMap:
		s, err = ctx.arraySort(t.Key, zen.OptionOf(t.Elem))
	case zen.KindSet:
		s, err = ctx.arraySort(t.Key, zen.Bool)
	case zen.KindBag:
		s, err = ctx.arraySort(t.Key, zen.BigInt)
	default:
		return nil, fmt.Errorf("z3: unexpected type: %s", t)
	}
	if err != nil {
		return nil, err
	} else if err := ctx.err("Z3_mk_sort"); err != nil {
		return nil, err
	}

	ctx.sorts[t.String()] = s
	return s, nil
}

func (ctx *Context) tupleSort(t *zen.Type, names []string, types []*zen.Type) (*sort, error) {
	symbols := make([]C.Z3_symbol, len(names))
	sorts := make([]C.Z3_sort, len(names))
	for i := range names {
		fs, err := ctx.sortOf(types[i])
		if err != nil {
			return nil, err
		}
		symbols[i], sorts[i] = ctx.symbol(t.String()+"."+names[i]), fs.raw
	}

	s := &sort{projs: make([]C.Z3_func_decl, len(names))}
	if len(names) == 0 {
		s.raw = C.Z3_mk_tuple_sort(ctx.raw, ctx.symbol(t.String()), 0, nil, nil, &s.mk, nil)
	} else {
		s.raw = C.Z3_mk_tuple_sort(ctx.raw, ctx.symbol(t.String()), C.uint(len(names)), &symbols[0], &sorts[0], &s.mk, &s.projs[0])
	}
	return s, ctx.err("Z3_mk_tuple_sort")
}

func (ctx *Context) arraySort(key, value *zen.Type) (*sort, error) {
	k, err := ctx.sortOf(key)
	if err != nil {
		return nil, err
	}
	v, err := ctx.sortOf(value)
	if err != nil {
		return nil, err
	}
	return &sort{raw: C.Z3_mk_array_sort(ctx.raw, k.raw, v.raw)}, ctx.err("Z3_mk_array_sort")
}

// needsWellFormed returns true if some values of the sort of t do not
// represent a value of t.
func needsWellFormed(t *zen.Type) bool {
	switch t.Kind {
	case zen.KindChar, zen.KindString, zen.KindOption, zen.KindList, zen.KindMap, zen.KindBag:
		return true
	case zen.KindObject:
		for _, f := range t.Fields {
			if needsWellFormed(f.Type) {
				return true
			}
		}
		return false
	case zen.KindSeq:
		return needsWellFormed(t.Elem)
	default:
		return false
	}
}

// wellFormed returns a constraint restricting x to valid values of t:
// characters in range, canonical absent options and list slots, and
// non-negative bag counts.
func (ctx *Context) wellFormed(t *zen.Type, x C.Z3_ast) (C.Z3_ast, error) {
	var conds []C.Z3_ast
	add := func(ast C.Z3_ast, err error) error {
		if err != nil {
			return err
		}
		conds = append(conds, ast)
		return nil
	}

	switch t.Kind {
	case zen.KindChar:
		max, err := ctx.makeUint64(zen.WidthChar, zen.MaxChar)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_bvule(ctx.raw, x, max), ctx.err("Z3_mk_bvule")

	case zen.KindOption:
		s, err := ctx.sortOf(t)
		if err != nil {
			return nil, err
		}
		some, value := ctx.app(s.projs[0], x), ctx.app(s.projs[1], x)
		def, err := ctx.toAST(ctx.zctx.Default(t.Elem))
		if err != nil {
			return nil, err
		}
		if err := add(ctx.implies(C.Z3_mk_not(ctx.raw, some), ctx.eq(value, def))); err != nil {
			return nil, err
		}
		if needsWellFormed(t.Elem) {
			if err := add(ctx.wellFormed(t.Elem, value)); err != nil {
				return nil, err
			}
		}

	case zen.KindObject:
		s, err := ctx.sortOf(t)
		if err != nil {
			return nil, err
		}
		for i, f := range t.Fields {
			if needsWellFormed(f.Type) {
				if err := add(ctx.wellFormed(f.Type, ctx.app(s.projs[i], x))); err != nil {
					return nil, err
				}
			}
		}

	case zen.KindList:
		s, err := ctx.sortOf(t)
		if err != nil {
			return nil, err
		}
		n := ctx.app(s.projs[0], x)
		capacity, err := ctx.makeUint64(zen.WidthLength, uint64(t.Cap))
		if err != nil {
			return nil, err
		}
		conds = append(conds, C.Z3_mk_bvule(ctx.raw, n, capacity))
		def, err := ctx.toAST(ctx.zctx.Default(t.Elem))
		if err != nil {
			return nil, err
		}
		for i := 0; i < t.Cap; i++ {
			slot := ctx.app(s.projs[i+1], x)
			k, err := ctx.makeUint64(zen.WidthLength, uint64(i))
			if err != nil {
				return nil, err
			}
			used := C.Z3_mk_bvult(ctx.raw, k, n)
			if err := add(ctx.implies(C.Z3_mk_not(ctx.raw, used), ctx.eq(slot, def))); err != nil {
				return nil, err
			}
			if needsWellFormed(t.Elem) {
				wf, err := ctx.wellFormed(t.Elem, slot)
				if err != nil {
					return nil, err
				} else if err := add(ctx.implies(used, wf)); err != nil {
					return nil, err
				}
			}
		}

	case zen.KindString, zen.KindSeq:
		if !needsWellFormed(t.SeqElem()) {
			break
		}
		i, err := ctx.boundVar(zen.BigInt)
		if err != nil {
			return nil, err
		}
		zero, err := ctx.makeInt("0")
		if err != nil {
			return nil, err
		}
		wf, err := ctx.wellFormed(t.SeqElem(), C.Z3_mk_seq_nth(ctx.raw, x, i))
		if err != nil {
			return nil, err
		}
		inRange := ctx.and(C.Z3_mk_le(ctx.raw, zero, i), C.Z3_mk_lt(ctx.raw, i, C.Z3_mk_seq_length(ctx.raw, x)))
		if err := add(ctx.forall(i, C.Z3_mk_implies(ctx.raw, inRange, wf))); err != nil {
			return nil, err
		}

	case zen.KindMap, zen.KindBag:
		k, err := ctx.boundVar(t.Key)
		if err != nil {
			return nil, err
		}
		v := C.Z3_mk_select(ctx.raw, x, k)
		var body C.Z3_ast
		if t.Kind == zen.KindMap {
			body, err = ctx.wellFormed(zen.OptionOf(t.Elem), v)
		} else {
			var zero C.Z3_ast
			if zero, err = ctx.makeInt("0"); err == nil {
				body = C.Z3_mk_le(ctx.raw, zero, v)
			}
		}
		if err != nil {
			return nil, err
		}
		if err := add(ctx.forall(k, body)); err != nil {
			return nil, err
		}
	}

	if len(conds) == 0 {
		return ctx.makeTrue()
	}
	return ctx.and(conds...), ctx.err("wellFormed")
}

// boundVar returns a fresh constant of type t for use as a quantified
// variable.
func (ctx *Context) boundVar(t *zen.Type) (C.Z3_ast, error) {
	s, err := ctx.sortOf(t)
	if err != nil {
		return nil, err
	}
	ctx.bound++
	return C.Z3_mk_const(ctx.raw, ctx.symbol(fmt.Sprintf("q!%d", ctx.bound)), s.raw), ctx.err("Z3_mk_const")
}

func (ctx *Context) forall(bound, body C.Z3_ast) (C.Z3_ast, error) {
	vars := [1]C.Z3_app{C.Z3_to_app(ctx.raw, bound)}
	return C.Z3_mk_forall_const(ctx.raw, 0, 1, &vars[0], 0, nil, body), ctx.err("Z3_mk_forall_const")
}
