package z3

/*
#include <z3.h>
*/
import "C"

import (
	"errors"
	"fmt"
	"math/big"

	"github.com/benbjohnson/zen"
)

// decoder reads zen constants out of a Z3 model.
type decoder struct {
	ctx   *Context
	model C.Z3_model

	// keys holds the key terms of map, set and bag operations in the
	// constraints, grouped by key type.
	keys map[string][]C.Z3_ast
}

// newDecoder returns a decoder for model. Array values are read at every
// key the constraints can observe.
func (ctx *Context) newDecoder(model C.Z3_model, constraints []*zen.Expr) (*decoder, error) {
	d := &decoder{ctx: ctx, model: model, keys: make(map[string][]C.Z3_ast)}

	var err error
	for _, c := range constraints {
		zen.Inspect(c, func(e *zen.Expr) bool {
			if err != nil {
				return false
			}
			switch e.Op {
			case zen.OpMapGet, zen.OpMapSet, zen.OpMapDelete,
				zen.OpSetContains, zen.OpSetAdd, zen.OpBagAdd, zen.OpBagCount:
				var k C.Z3_ast
				if k, err = ctx.toAST(e.Args[1]); err != nil {
					return false
				}
				name := e.Args[0].Type.Key.String()
				d.keys[name] = append(d.keys[name], k)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}
	return d, nil
}

// decode evaluates term in the model and returns its value as a zen constant.
func (d *decoder) decode(t *zen.Type, term C.Z3_ast) (*zen.Expr, error) {
	ctx, zctx := d.ctx, d.ctx.zctx
	switch t.Kind {
	case zen.KindBool:
		v, err := ctx.eval(d.model, term)
		if err != nil {
			return nil, err
		}
		return zctx.Bool(C.Z3_get_bool_value(ctx.raw, v) == C.Z3_L_TRUE), nil

	case zen.KindBitVec, zen.KindChar, zen.KindInt:
		n, err := ctx.evalNumeral(d.model, term)
		if err != nil {
			return nil, err
		}
		switch t.Kind {
		case zen.KindBitVec:
			return zctx.Uint(t, n.Uint64()), nil
		case zen.KindChar:
			return zctx.Char(rune(n.Int64()))
		default:
			return zctx.BigInt(n), nil
		}

	case zen.KindOption:
		s, err := ctx.sortOf(t)
		if err != nil {
			return nil, err
		}
		some, err := d.decode(zen.Bool, ctx.app(s.projs[0], term))
		if err != nil {
			return nil, err
		} else if some.IsFalse() {
			return zctx.None(t), nil
		}
		x, err := d.decode(t.Elem, ctx.app(s.projs[1], term))
		if err != nil {
			return nil, err
		}
		return zctx.Some(x), nil

	case zen.KindObject:
		s, err := ctx.sortOf(t)
		if err != nil {
			return nil, err
		}
		fields := make([]*zen.Expr, len(t.Fields))
		for i, f := range t.Fields {
			if fields[i], err = d.decode(f.Type, ctx.app(s.projs[i], term)); err != nil {
				return nil, err
			}
		}
		return zctx.Object(t, fields...)

	case zen.KindList:
		s, err := ctx.sortOf(t)
		if err != nil {
			return nil, err
		}
		n, err := ctx.evalNumeral(d.model, ctx.app(s.projs[0], term))
		if err != nil {
			return nil, err
		} else if n.Cmp(big.NewInt(int64(t.Cap))) > 0 {
			return nil, fmt.Errorf("%w: list length %s exceeds capacity of %s", zen.ErrDomain, n, t)
		}
		l := zctx.ListEmpty(t)
		for i := 0; i < int(n.Int64()); i++ {
			x, err := d.decode(t.Elem, ctx.app(s.projs[i+1], term))
			if err != nil {
				return nil, err
			}
			l = zctx.ListAppend(l, x)
		}
		return l, nil

	case zen.KindString, zen.KindSeq:
		return d.decodeSeq(t, term)

	case zen.KindMap, zen.KindSet, zen.KindBag:
		return d.decodeArray(t, term)

	default:
		return nil, fmt.Errorf("z3: cannot decode type %s", t)
	}
}

func (d *decoder) decodeSeq(t *zen.Type, term C.Z3_ast) (*zen.Expr, error) {
	ctx := d.ctx
	n, err := ctx.evalNumeral(d.model, C.Z3_mk_seq_length(ctx.raw, term))
	if err != nil {
		return nil, err
	} else if !n.IsInt64() {
		return nil, fmt.Errorf("z3: sequence length out of range: %s", n)
	}

	elems := make([]*zen.Expr, n.Int64())
	for i := range elems {
		index, err := ctx.makeInt(fmt.Sprint(i))
		if err != nil {
			return nil, err
		}
		if elems[i], err = d.decode(t.SeqElem(), C.Z3_mk_seq_nth(ctx.raw, term, index)); err != nil {
			return nil, err
		}
	}

	if t.Kind == zen.KindString {
		runes := make([]rune, len(elems))
		for i, e := range elems {
			runes[i] = rune(e.Value)
		}
		return ctx.zctx.String(string(runes))
	}
	s := ctx.zctx.SeqEmpty(t)
	for _, e := range elems {
		s = ctx.zctx.SeqConcat(s, ctx.zctx.SeqUnit(t, e))
	}
	return s, nil
}

// maxEnumKeyWidth is the widest key type whose keys are all read when an
// array value has a non-empty default.
const maxEnumKeyWidth = 8

// decodeArray reads a map, set or bag by selecting the array at its stored
// keys and at every key term of the constraints. When the model gives the
// array a non-empty default and the key type is small, every key is read.
func (d *decoder) decodeArray(t *zen.Type, term C.Z3_ast) (*zen.Expr, error) {
	ctx, zctx := d.ctx, d.ctx.zctx
	v, err := ctx.eval(d.model, term)
	if err != nil {
		return nil, err
	}
	stored, def, err := ctx.arrayEntries(d.model, v)
	if err != nil {
		return nil, err
	}

	candidates := append(stored, d.keys[t.Key.String()]...)
	if def == nil || !d.isEmptyEntry(t, def) {
		all, err := d.allKeys(t.Key)
		if err != nil {
			return nil, err
		}
		candidates = append(candidates, all...)
	}

	x := zctx.Default(t)
	seen := make(map[uint64]struct{})
	for _, k := range candidates {
		kv, err := ctx.eval(d.model, k)
		if err != nil {
			return nil, err
		}
		key, err := d.decode(t.Key, kv)
		if errors.Is(err, zen.ErrDomain) {
			continue // key outside the valid range of its type
		} else if err != nil {
			return nil, err
		}
		if _, ok := seen[key.ID()]; ok {
			continue
		}
		seen[key.ID()] = struct{}{}

		entry := C.Z3_mk_select(ctx.raw, v, kv)
		switch t.Kind {
		case zen.KindMap:
			value, err := d.decode(zen.OptionOf(t.Elem), entry)
			if err != nil {
				return nil, err
			} else if value.Op == zen.OpSome {
				x = zctx.MapSet(x, key, value.Args[0])
			}
		case zen.KindSet:
			value, err := d.decode(zen.Bool, entry)
			if err != nil {
				return nil, err
			} else if value.IsTrue() {
				x = zctx.SetAdd(x, key)
			}
		case zen.KindBag:
			n, err := ctx.evalNumeral(d.model, entry)
			if err != nil {
				return nil, err
			}
			for j := int64(0); j < n.Int64(); j++ {
				x = zctx.BagAdd(x, key)
			}
		}
	}
	return x, nil
}

// isEmptyEntry returns true if v is the value of an absent key in t.
func (d *decoder) isEmptyEntry(t *zen.Type, v C.Z3_ast) bool {
	var elem *zen.Type
	switch t.Kind {
	case zen.KindMap:
		elem = zen.OptionOf(t.Elem)
	case zen.KindSet:
		elem = zen.Bool
	default:
		elem = zen.BigInt
	}
	x, err := d.decode(elem, v)
	return err == nil && x == d.ctx.zctx.Default(elem)
}

// allKeys returns every value of a key type narrow enough to enumerate.
// Returns nil for wider types.
func (d *decoder) allKeys(t *zen.Type) ([]C.Z3_ast, error) {
	var keys []*zen.Expr
	switch {
	case t.Kind == zen.KindBool:
		keys = []*zen.Expr{d.ctx.zctx.False(), d.ctx.zctx.True()}
	case t.Kind == zen.KindBitVec && t.Width <= maxEnumKeyWidth:
		for i := uint64(0); i < 1<<t.Width; i++ {
			keys = append(keys, d.ctx.zctx.Uint(t, i))
		}
	default:
		return nil, nil
	}

	asts := make([]C.Z3_ast, len(keys))
	for i, k := range keys {
		ast, err := d.ctx.toAST(k)
		if err != nil {
			return nil, err
		}
		asts[i] = ast
	}
	return asts, nil
}

// arrayEntries returns the stored keys of an array value, outermost first,
// and its default value. The default is nil when the value has a form other
// than stores over a constant array or a function interpretation.
func (ctx *Context) arrayEntries(model C.Z3_model, v C.Z3_ast) (keys []C.Z3_ast, def C.Z3_ast, err error) {
	for {
		if C.Z3_get_ast_kind(ctx.raw, v) != C.Z3_APP_AST {
			return keys, nil, nil
		}
		app := C.Z3_to_app(ctx.raw, v)
		switch C.Z3_get_decl_kind(ctx.raw, C.Z3_get_app_decl(ctx.raw, app)) {
		case C.Z3_OP_STORE:
			keys = append(keys, C.Z3_get_app_arg(ctx.raw, app, 1))
			v = C.Z3_get_app_arg(ctx.raw, app, 0)

		case C.Z3_OP_CONST_ARRAY:
			return keys, C.Z3_get_app_arg(ctx.raw, app, 0), nil

		case C.Z3_OP_AS_ARRAY:
			fn := C.Z3_get_as_array_func_decl(ctx.raw, v)
			interp := C.Z3_model_get_func_interp(ctx.raw, model, fn)
			if err := ctx.err("Z3_model_get_func_interp"); err != nil {
				return nil, nil, err
			} else if interp == nil {
				return keys, nil, nil
			}
			C.Z3_func_interp_inc_ref(ctx.raw, interp)
			defer C.Z3_func_interp_dec_ref(ctx.raw, interp)

			n := uint(C.Z3_func_interp_get_num_entries(ctx.raw, interp))
			for i := uint(0); i < n; i++ {
				entry := C.Z3_func_interp_get_entry(ctx.raw, interp, C.uint(i))
				C.Z3_func_entry_inc_ref(ctx.raw, entry)
				keys = append(keys, C.Z3_func_entry_get_arg(ctx.raw, entry, 0))
				C.Z3_func_entry_dec_ref(ctx.raw, entry)
			}
			def = C.Z3_func_interp_get_else(ctx.raw, interp)
			return keys, def, ctx.err("Z3_func_interp_get_else")

		default:
			return keys, nil, nil
		}
	}
}

// eval returns the value of term in model, completing the model as needed.
func (ctx *Context) eval(model C.Z3_model, term C.Z3_ast) (C.Z3_ast, error) {
	var v C.Z3_ast
	if !C.Z3_model_eval(ctx.raw, model, term, C.bool(true), &v) {
		return nil, fmt.Errorf("z3: cannot evaluate %s", ctx.astToString(term))
	}
	return v, ctx.err("Z3_model_eval")
}

func (ctx *Context) evalNumeral(model C.Z3_model, term C.Z3_ast) (*big.Int, error) {
	v, err := ctx.eval(model, term)
	if err != nil {
		return nil, err
	}
	s := C.GoString(C.Z3_get_numeral_string(ctx.raw, v))
	if err := ctx.err("Z3_get_numeral_string"); err != nil {
		return nil, err
	}
	n, ok := new(big.Int).SetString(s, 10)
	if !ok {
		return nil, fmt.Errorf("z3: invalid numeral: %q", s)
	}
	return n, nil
}
