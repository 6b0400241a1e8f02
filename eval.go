package zen

import (
	"errors"
	"fmt"
)

// ErrUnbound is returned when evaluating an expression that still depends on
// variables after substitution.
var ErrUnbound = errors.New("unbound variable")

// Substitute replaces variables in e by the expressions bound to them and
// rebuilds every affected node through the simplifying constructors.
// Substituting constants for every variable therefore yields a constant.
func (c *Context) Substitute(e *Expr, bindings map[*Expr]*Expr) *Expr {
	for v, x := range bindings {
		assert(v.Op == OpVar, "substitute: not a variable: %s", v)
		assert(v.Type.Equal(x.Type), "substitute: type mismatch for %s: %s != %s", v, v.Type, x.Type)
	}
	s := &substituter{ctx: c, bindings: bindings, memo: make(map[uint64]*Expr)}
	return s.substitute(e)
}

type substituter struct {
	ctx      *Context
	bindings map[*Expr]*Expr
	memo     map[uint64]*Expr
}

func (s *substituter) substitute(e *Expr) *Expr {
	if e.constant {
		return e
	} else if e.Op == OpVar {
		if x, ok := s.bindings[e]; ok {
			return x
		}
		return e
	}
	if x, ok := s.memo[e.id]; ok {
		return x
	}

	var changed bool
	args := make([]*Expr, len(e.Args))
	for i, arg := range e.Args {
		args[i] = s.substitute(arg)
		changed = changed || args[i] != arg
	}

	x := e
	if changed {
		x = s.ctx.rebuild(e, args)
	}
	s.memo[e.id] = x
	return x
}

// rebuild returns the canonical node for e's operation applied to args.
func (c *Context) rebuild(e *Expr, args []*Expr) *Expr {
	switch e.Op {
	case OpNot:
		return c.Not(args[0])
	case OpAnd:
		return c.And(args[0], args[1])
	case OpOr:
		return c.Or(args[0], args[1])
	case OpBitNot:
		return c.BitNot(args[0])
	case OpBitAnd:
		return c.BitAnd(args[0], args[1])
	case OpBitOr:
		return c.BitOr(args[0], args[1])
	case OpBitXor:
		return c.BitXor(args[0], args[1])
	case OpAdd:
		return c.Add(args[0], args[1])
	case OpSub:
		return c.Sub(args[0], args[1])
	case OpMul:
		return c.Mul(args[0], args[1])
	case OpEq:
		return c.Eq(args[0], args[1])
	case OpLt:
		return c.Lt(args[0], args[1])
	case OpLe:
		return c.Le(args[0], args[1])
	case OpIf:
		return c.If(args[0], args[1], args[2])
	case OpCast:
		return c.Cast(args[0], e.Type)
	case OpObject:
		return c.intern(&Expr{Op: OpObject, Type: e.Type, Args: args})
	case OpGetField:
		return c.getField(args[0], e.Index)
	case OpWithField:
		return c.withField(args[0], e.Index, args[1])
	case OpSome:
		return c.Some(args[0])
	case OpIsSome:
		return c.IsSome(args[0])
	case OpOptionValue:
		return c.OptionValue(args[0])
	case OpListAppend:
		return c.ListAppend(args[0], args[1])
	case OpListLength:
		return c.ListLength(args[0])
	case OpListAt:
		return c.ListAt(args[0], args[1])
	case OpSeqUnit:
		return c.SeqUnit(e.Type, args[0])
	case OpSeqConcat:
		return c.SeqConcat(args[0], args[1])
	case OpSeqLength:
		return c.SeqLength(args[0])
	case OpSeqAt:
		return c.SeqAt(args[0], args[1])
	case OpSeqContains:
		return c.SeqContains(args[0], args[1])
	case OpMapSet:
		return c.MapSet(args[0], args[1], args[2])
	case OpMapGet:
		return c.MapGet(args[0], args[1])
	case OpMapDelete:
		return c.MapDelete(args[0], args[1])
	case OpSetAdd:
		return c.SetAdd(args[0], args[1])
	case OpSetContains:
		return c.SetContains(args[0], args[1])
	case OpSetUnion:
		return c.SetUnion(args[0], args[1])
	case OpSetIntersect:
		return c.SetIntersect(args[0], args[1])
	case OpBagAdd:
		return c.BagAdd(args[0], args[1])
	case OpBagCount:
		return c.BagCount(args[0], args[1])
	default:
		panic(fmt.Sprintf("assert: rebuild: unexpected operation %s", e.Op))
	}
}

// Evaluate evaluates e under bindings to a constant.
// Returns ErrUnbound if e depends on a variable missing from bindings.
func (c *Context) Evaluate(e *Expr, bindings map[*Expr]*Expr) (*Expr, error) {
	for v, x := range bindings {
		if !x.constant {
			return nil, fmt.Errorf("%w: binding for %s is not a constant: %s", ErrType, v, x)
		}
	}

	x := c.Substitute(e, bindings)
	if !x.constant {
		vars := FindVars(x)
		return nil, fmt.Errorf("%w: %s", ErrUnbound, vars[0])
	}
	return x, nil
}
