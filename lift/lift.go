// Package lift converts Go functions in SSA form into symbolic functions.
//
// Only straight-line integer and boolean code is lifted: parameters and
// results must be booleans or fixed-width integers, and calls must have a
// static callee with a body. Branches are merged into conditional
// expressions, so every path through the function is represented in a single
// output expression.
package lift

import (
	"fmt"
	"go/constant"
	"go/token"
	"go/types"
	"maps"

	"go.uber.org/zap"
	"golang.org/x/tools/go/ssa"

	"github.com/benbjohnson/zen"
)

// Default bounds.
const (
	DefaultMaxBlockVisits = 8
	DefaultMaxInlineDepth = 4
)

// Options configures lifting.
type Options struct {
	// Maximum number of times a path may enter the same block within one
	// call. Paths that exceed it are cut off.
	MaxBlockVisits int

	// Maximum depth of inlined calls. Deeper calls cut off the path.
	MaxInlineDepth int

	Logger *zap.Logger
}

// Lifted is the result of lifting a function.
type Lifted struct {
	*zen.Function

	// Complete holds when the inputs reach a return statement within the
	// unrolling and inlining bounds without panicking. The output is the
	// default value of its type on other inputs.
	Complete *zen.Expr
}

// Function lifts fn into a symbolic function built in ctx. Inputs are named
// after the function parameters.
//
// Functions without results output the index of the block of the return
// statement they reach. Functions with more than one result output an object
// with fields r0, r1 and so on.
func Function(ctx *zen.Context, fn *ssa.Function, opts Options) (*Lifted, error) {
	if opts.MaxBlockVisits <= 0 {
		opts.MaxBlockVisits = DefaultMaxBlockVisits
	}
	if opts.MaxInlineDepth <= 0 {
		opts.MaxInlineDepth = DefaultMaxInlineDepth
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	l := &lifter{ctx: ctx, opts: opts, logger: opts.Logger}

	if len(fn.Blocks) == 0 {
		return nil, fmt.Errorf("lift: %s: %w: function has no body", fn, zen.ErrUnsupported)
	} else if fn.Signature.Recv() != nil {
		return nil, fmt.Errorf("lift: %s: %w: methods", fn, zen.ErrUnsupported)
	} else if len(fn.FreeVars) > 0 {
		return nil, fmt.Errorf("lift: %s: %w: closures", fn, zen.ErrUnsupported)
	}

	inputs := make([]*zen.Expr, len(fn.Params))
	for i, p := range fn.Params {
		t, err := typeOf(p.Type())
		if err != nil {
			return nil, fmt.Errorf("lift: %s: parameter %s: %w", fn, p.Name(), err)
		}
		inputs[i] = ctx.Var(t, p.Name())
	}

	fr, err := l.newFrame(fn, inputs, 0)
	if err != nil {
		return nil, err
	}
	out, complete, err := l.exec(fr, fn.Blocks[0], nil)
	if err != nil {
		return nil, err
	}

	l.logger.Debug("lift", zap.Stringer("fn", fn), zap.Int("params", len(inputs)), zap.Int("blocks", len(fn.Blocks)))
	return &Lifted{Function: ctx.NewFunction(inputs, out), Complete: complete}, nil
}

type lifter struct {
	ctx    *zen.Context
	opts   Options
	logger *zap.Logger
}

// frame is the state of one call along one path.
type frame struct {
	fn       *ssa.Function
	result   *zen.Type
	depth    int
	bindings map[ssa.Value]*zen.Expr
	visits   map[*ssa.BasicBlock]int
}

func (l *lifter) newFrame(fn *ssa.Function, args []*zen.Expr, depth int) (*frame, error) {
	result, err := resultType(fn)
	if err != nil {
		return nil, fmt.Errorf("lift: %s: %w", fn, err)
	}
	fr := &frame{
		fn:       fn,
		result:   result,
		depth:    depth,
		bindings: make(map[ssa.Value]*zen.Expr),
		visits:   make(map[*ssa.BasicBlock]int),
	}
	for i, p := range fn.Params {
		fr.bindings[p] = args[i]
	}
	return fr, nil
}

// fork returns a copy of the frame for one successor of a branch.
func (fr *frame) fork() *frame {
	other := *fr
	other.bindings = maps.Clone(fr.bindings)
	other.visits = maps.Clone(fr.visits)
	return &other
}

// cutoff returns the output of a path that does not complete.
func (l *lifter) cutoff(fr *frame) (*zen.Expr, *zen.Expr, error) {
	return l.ctx.Default(fr.result), l.ctx.False(), nil
}

// exec executes blk entered from prev until the frame returns, and returns
// the merged result of every path together with the condition under which
// the result is complete.
func (l *lifter) exec(fr *frame, blk, prev *ssa.BasicBlock) (*zen.Expr, *zen.Expr, error) {
	fr.visits[blk]++
	if fr.visits[blk] > l.opts.MaxBlockVisits {
		l.logger.Debug("block visit limit", zap.Stringer("fn", fr.fn), zap.Int("block", blk.Index))
		return l.cutoff(fr)
	}

	// Panicking blocks are never lifted.
	if _, ok := blk.Instrs[len(blk.Instrs)-1].(*ssa.Panic); ok {
		return l.cutoff(fr)
	}

	// Phi nodes read their edges simultaneously.
	if err := l.execPhis(fr, blk, prev); err != nil {
		return nil, nil, err
	}

	complete := l.ctx.True()
	for _, in := range blk.Instrs {
		switch instr := in.(type) {
		case *ssa.Phi, *ssa.DebugRef:
			continue

		case *ssa.If:
			return l.execIf(fr, blk, instr, complete)

		case *ssa.Jump:
			out, ok, err := l.exec(fr, blk.Succs[0], blk)
			if err != nil {
				return nil, nil, err
			}
			return out, l.ctx.And(complete, ok), nil

		case *ssa.Return:
			out, err := l.execReturn(fr, blk, instr)
			if err != nil {
				return nil, nil, err
			}
			return out, complete, nil

		case *ssa.Call:
			ok, err := l.execCall(fr, instr)
			if err != nil {
				return nil, nil, err
			}
			complete = l.ctx.And(complete, ok)

		case ssa.Value:
			x, err := l.value(fr, instr)
			if err != nil {
				return nil, nil, fmt.Errorf("lift: %s: %s: %w", fr.fn, l.position(in), err)
			}
			fr.bindings[instr] = x

		default:
			return nil, nil, fmt.Errorf("lift: %s: %s: %w: %T instruction", fr.fn, l.position(in), zen.ErrUnsupported, in)
		}
	}
	return nil, nil, fmt.Errorf("lift: %s: block %d has no terminator", fr.fn, blk.Index)
}

func (l *lifter) execPhis(fr *frame, blk, prev *ssa.BasicBlock) error {
	var phis []*ssa.Phi
	for _, instr := range blk.Instrs {
		if phi, ok := instr.(*ssa.Phi); ok {
			phis = append(phis, phi)
		}
	}
	if len(phis) == 0 {
		return nil
	}

	i := blockIndex(blk.Preds, prev)
	if i < 0 {
		return fmt.Errorf("lift: %s: block %d entered from unknown predecessor", fr.fn, blk.Index)
	}
	values := make([]*zen.Expr, len(phis))
	for j, phi := range phis {
		x, err := l.eval(fr, phi.Edges[i])
		if err != nil {
			return err
		}
		values[j] = x
	}
	for j, phi := range phis {
		fr.bindings[phi] = values[j]
	}
	return nil
}

func (l *lifter) execIf(fr *frame, blk *ssa.BasicBlock, instr *ssa.If, complete *zen.Expr) (*zen.Expr, *zen.Expr, error) {
	cond, err := l.eval(fr, instr.Cond)
	if err != nil {
		return nil, nil, err
	}

	// Constant conditions follow a single successor.
	if cond.IsTrue() || cond.IsFalse() {
		succ := blk.Succs[0]
		if cond.IsFalse() {
			succ = blk.Succs[1]
		}
		out, ok, err := l.exec(fr, succ, blk)
		if err != nil {
			return nil, nil, err
		}
		return out, l.ctx.And(complete, ok), nil
	}

	thenOut, thenOK, err := l.exec(fr.fork(), blk.Succs[0], blk)
	if err != nil {
		return nil, nil, err
	}
	elseOut, elseOK, err := l.exec(fr.fork(), blk.Succs[1], blk)
	if err != nil {
		return nil, nil, err
	}
	return l.ctx.If(cond, thenOut, elseOut), l.ctx.And(complete, l.ctx.If(cond, thenOK, elseOK)), nil
}

func (l *lifter) execReturn(fr *frame, blk *ssa.BasicBlock, instr *ssa.Return) (*zen.Expr, error) {
	switch len(instr.Results) {
	case 0:
		return l.ctx.Uint16(uint16(blk.Index)), nil
	case 1:
		return l.eval(fr, instr.Results[0])
	}

	fields := make([]*zen.Expr, len(instr.Results))
	for i, v := range instr.Results {
		x, err := l.eval(fr, v)
		if err != nil {
			return nil, err
		}
		fields[i] = x
	}
	return l.ctx.Object(fr.result, fields...)
}

// execCall inlines a static call and binds its result. Returns the condition
// under which the callee completes.
func (l *lifter) execCall(fr *frame, instr *ssa.Call) (*zen.Expr, error) {
	callee := instr.Call.StaticCallee()
	switch {
	case callee == nil:
		return nil, fmt.Errorf("lift: %s: %s: %w: dynamic call", fr.fn, l.position(instr), zen.ErrUnsupported)
	case len(callee.Blocks) == 0:
		return nil, fmt.Errorf("lift: %s: %s: %w: call to %s without body", fr.fn, l.position(instr), zen.ErrUnsupported, callee)
	case len(callee.FreeVars) > 0:
		return nil, fmt.Errorf("lift: %s: %s: %w: closure call", fr.fn, l.position(instr), zen.ErrUnsupported)
	}

	args := make([]*zen.Expr, len(instr.Call.Args))
	for i, arg := range instr.Call.Args {
		x, err := l.eval(fr, arg)
		if err != nil {
			return nil, err
		}
		args[i] = x
	}

	// Calls past the inline depth cut off the path. The result is still
	// bound so the caller can continue.
	cf, err := l.newFrame(callee, args, fr.depth+1)
	if err != nil {
		return nil, err
	}
	if cf.depth > l.opts.MaxInlineDepth {
		l.logger.Debug("inline depth limit", zap.Stringer("fn", callee), zap.Int("depth", cf.depth))
		fr.bindings[instr] = l.ctx.Default(cf.result)
		return l.ctx.False(), nil
	}

	out, ok, err := l.exec(cf, callee.Blocks[0], nil)
	if err != nil {
		return nil, err
	}
	fr.bindings[instr] = out
	return ok, nil
}

// value evaluates a value-producing instruction.
func (l *lifter) value(fr *frame, instr ssa.Value) (*zen.Expr, error) {
	switch instr := instr.(type) {
	case *ssa.BinOp:
		x, err := l.eval(fr, instr.X)
		if err != nil {
			return nil, err
		}
		y, err := l.eval(fr, instr.Y)
		if err != nil {
			return nil, err
		}
		return l.binOp(instr.Op, x, y)

	case *ssa.UnOp:
		x, err := l.eval(fr, instr.X)
		if err != nil {
			return nil, err
		}
		switch instr.Op {
		case token.NOT:
			return l.ctx.Not(x), nil
		case token.SUB:
			return l.ctx.Neg(x), nil
		case token.XOR:
			return l.ctx.BitNot(x), nil
		default:
			return nil, fmt.Errorf("%w: unary operator %s", zen.ErrUnsupported, instr.Op)
		}

	case *ssa.Convert:
		x, err := l.eval(fr, instr.X)
		if err != nil {
			return nil, err
		}
		t, err := typeOf(instr.Type())
		if err != nil {
			return nil, err
		} else if x.Type.Kind != zen.KindBitVec || t.Kind != zen.KindBitVec {
			return nil, fmt.Errorf("%w: conversion from %s to %s", zen.ErrUnsupported, x.Type, t)
		}
		return l.ctx.Cast(x, t), nil

	case *ssa.ChangeType:
		return l.eval(fr, instr.X)

	case *ssa.Extract:
		x, err := l.eval(fr, instr.Tuple)
		if err != nil {
			return nil, err
		}
		return l.ctx.GetField(x, fmt.Sprintf("r%d", instr.Index))

	default:
		return nil, fmt.Errorf("%w: %T instruction", zen.ErrUnsupported, instr)
	}
}

func (l *lifter) binOp(op token.Token, x, y *zen.Expr) (*zen.Expr, error) {
	c := l.ctx
	switch op {
	case token.EQL:
		return c.Eq(x, y), nil
	case token.NEQ:
		return c.Ne(x, y), nil
	}

	if x.Type.Kind != zen.KindBitVec {
		return nil, fmt.Errorf("%w: operator %s on %s", zen.ErrUnsupported, op, x.Type)
	}
	switch op {
	case token.ADD:
		return c.Add(x, y), nil
	case token.SUB:
		return c.Sub(x, y), nil
	case token.MUL:
		return c.Mul(x, y), nil
	case token.AND:
		return c.BitAnd(x, y), nil
	case token.OR:
		return c.BitOr(x, y), nil
	case token.XOR:
		return c.BitXor(x, y), nil
	case token.AND_NOT:
		return c.BitAnd(x, c.BitNot(y)), nil
	case token.LSS:
		return c.Lt(x, y), nil
	case token.LEQ:
		return c.Le(x, y), nil
	case token.GTR:
		return c.Gt(x, y), nil
	case token.GEQ:
		return c.Ge(x, y), nil
	default:
		return nil, fmt.Errorf("%w: operator %s", zen.ErrUnsupported, op)
	}
}

// eval returns the expression bound to an operand.
func (l *lifter) eval(fr *frame, v ssa.Value) (*zen.Expr, error) {
	if c, ok := v.(*ssa.Const); ok {
		return l.constant(c)
	}
	x, ok := fr.bindings[v]
	if !ok {
		return nil, fmt.Errorf("lift: %s: %w: unbound value %s", fr.fn, zen.ErrUnsupported, v.Name())
	}
	return x, nil
}

func (l *lifter) constant(c *ssa.Const) (*zen.Expr, error) {
	t, err := typeOf(c.Type())
	if err != nil {
		return nil, err
	} else if c.Value == nil {
		return l.ctx.Default(t), nil
	}

	switch c.Value.Kind() {
	case constant.Bool:
		return l.ctx.Bool(constant.BoolVal(c.Value)), nil
	case constant.Int:
		if t.Signed {
			v, exact := constant.Int64Val(c.Value)
			if !exact {
				return nil, fmt.Errorf("%w: inexact constant %s", zen.ErrDomain, c.Value)
			}
			return l.ctx.Int(t, v), nil
		}
		v, exact := constant.Uint64Val(c.Value)
		if !exact {
			return nil, fmt.Errorf("%w: inexact constant %s", zen.ErrDomain, c.Value)
		}
		return l.ctx.Uint(t, v), nil
	default:
		return nil, fmt.Errorf("%w: %s constant", zen.ErrUnsupported, c.Value.Kind())
	}
}

func (l *lifter) position(instr ssa.Instruction) token.Position {
	fn := instr.Parent()
	if fn == nil || fn.Prog == nil {
		return token.Position{}
	}
	return fn.Prog.Fset.Position(instr.Pos())
}

// typeOf returns the symbolic type of a Go boolean or integer type.
func typeOf(t types.Type) (*zen.Type, error) {
	basic, ok := t.Underlying().(*types.Basic)
	if !ok {
		return nil, fmt.Errorf("%w: type %s", zen.ErrUnsupported, t)
	}
	switch basic.Kind() {
	case types.Bool, types.UntypedBool:
		return zen.Bool, nil
	case types.Int8:
		return zen.Int8, nil
	case types.Int16:
		return zen.Int16, nil
	case types.Int32:
		return zen.Int32, nil
	case types.Int, types.Int64:
		return zen.Int64, nil
	case types.Uint8:
		return zen.Uint8, nil
	case types.Uint16:
		return zen.Uint16, nil
	case types.Uint32:
		return zen.Uint32, nil
	case types.Uint, types.Uint64, types.Uintptr:
		return zen.Uint64, nil
	default:
		return nil, fmt.Errorf("%w: type %s", zen.ErrUnsupported, t)
	}
}

// resultType returns the output type of a frame of fn.
func resultType(fn *ssa.Function) (*zen.Type, error) {
	results := fn.Signature.Results()
	switch results.Len() {
	case 0:
		return zen.Uint16, nil
	case 1:
		return typeOf(results.At(0).Type())
	}

	fields := make([]zen.Field, results.Len())
	for i := range fields {
		t, err := typeOf(results.At(i).Type())
		if err != nil {
			return nil, err
		}
		fields[i] = zen.Field{Name: fmt.Sprintf("r%d", i), Type: t}
	}
	return zen.ObjectOf(fn.Name()+".results", fields...)
}

// blockIndex returns the index of blk within blks. Returns -1 if not found.
func blockIndex(blks []*ssa.BasicBlock, blk *ssa.BasicBlock) int {
	for i := range blks {
		if blks[i] == blk {
			return i
		}
	}
	return -1
}
