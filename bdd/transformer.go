package bdd

import (
	"fmt"

	"github.com/dalzilio/rudd"
	"go.uber.org/zap"

	"github.com/benbjohnson/zen"
)

// State path prefixes. Sets of type T are stored on the "state" variables of
// T; relation outputs use the primed copy, which is unified with the
// canonical one so their bits are interleaved.
const (
	StatePath     = "state"
	NextStatePath = "state'"
)

// stateVars holds the canonical and primed variables of one state type.
type stateVars struct {
	typ        *zen.Type
	cur, next  *zen.Expr
	curCube    rudd.Node
	nextCube   rudd.Node
	wfCur      rudd.Node
	wfNext     rudd.Node
	identity   rudd.Node // cur == next
	curIndices []int
}

// state returns the state variables of type t, allocating them on first use.
func (s *Solver) state(t *zen.Type) (*stateVars, error) {
	if sv, ok := s.states[t.String()]; ok {
		return sv, nil
	}

	w, ok := t.BitWidth()
	if !ok {
		return nil, fmt.Errorf("%w: state type %s is unbounded", zen.ErrBackendNotApplicable, t)
	}

	curKey, nextKey := NewKey(StatePath, t), NewKey(NextStatePath, t)
	if err := s.registry.Declare(curKey, w); err != nil {
		return nil, err
	} else if err := s.registry.Declare(nextKey, w); err != nil {
		return nil, err
	} else if err := s.registry.Unify(curKey, nextKey); err != nil {
		return nil, err
	}

	sv := &stateVars{
		typ:  t,
		cur:  s.ctx.Var(t, curKey.String()),
		next: s.ctx.Var(t, nextKey.String()),
	}
	s.keys[sv.cur.ID()] = curKey
	s.keys[sv.next.ID()] = nextKey

	curIndices, err := s.varIndices(sv.cur)
	if err != nil {
		return nil, err
	}
	nextIndices, err := s.varIndices(sv.next)
	if err != nil {
		return nil, err
	}
	sv.curIndices = curIndices
	sv.curCube = s.bdd.Makeset(curIndices)
	sv.nextCube = s.bdd.Makeset(nextIndices)

	if sv.wfCur, err = s.wellFormed(sv.cur); err != nil {
		return nil, err
	} else if sv.wfNext, err = s.wellFormed(sv.next); err != nil {
		return nil, err
	} else if sv.identity, err = s.compile(s.ctx.Eq(sv.cur, sv.next)); err != nil {
		return nil, err
	}

	s.states[t.String()] = sv
	return sv, s.err()
}

// StatePredicate is a Boolean predicate over a transformer input and output.
type StatePredicate func(in, out *zen.Expr) *zen.Expr

// Transformer is a function compiled into a relation between its input and
// output values.
type Transformer struct {
	solver   *Solver
	fn       *zen.Function
	in, out  *stateVars
	output   *zen.Expr // function output over the input state variable
	relation rudd.Node
}

// Transformer compiles a one-input function into a relation. Functions
// reaching unbounded types fail with zen.ErrBackendNotApplicable.
func (s *Solver) Transformer(f *zen.Function) (*Transformer, error) {
	if len(f.Inputs) != 1 {
		return nil, fmt.Errorf("%w: transformer requires one input, got %d", zen.ErrType, len(f.Inputs))
	}
	if err := s.ctx.CheckBounded(f.Inputs[0], f.Output); err != nil {
		return nil, err
	}

	in, err := s.state(f.Inputs[0].Type)
	if err != nil {
		return nil, err
	}
	out, err := s.state(f.Output.Type)
	if err != nil {
		return nil, err
	}

	output, err := f.Apply(in.cur)
	if err != nil {
		return nil, err
	}
	eq, err := s.compile(s.ctx.Eq(out.next, output))
	if err != nil {
		return nil, err
	}

	t := &Transformer{
		solver:   s,
		fn:       f,
		in:       in,
		out:      out,
		output:   output,
		relation: s.and(eq, in.wfCur, out.wfNext),
	}
	s.logger.Debug("transformer",
		zap.Stringer("input", in.typ),
		zap.Stringer("output", out.typ),
		zap.Int("vars", s.bdd.Varnum()),
	)
	return t, s.err()
}

func (s *Solver) and(nodes ...rudd.Node) rudd.Node {
	n := s.bdd.True()
	for _, x := range nodes {
		n = s.bdd.Apply(n, x, rudd.OPand)
	}
	return n
}

// Function returns the compiled function.
func (t *Transformer) Function() *zen.Function { return t.fn }

// InputType returns the type of the input state.
func (t *Transformer) InputType() *zen.Type { return t.in.typ }

// OutputType returns the type of the output state.
func (t *Transformer) OutputType() *zen.Type { return t.out.typ }

// InputSet returns the inputs for which pred holds of the input and the
// function output. A nil predicate returns every valid input. The predicate
// must only refer to its arguments.
func (t *Transformer) InputSet(pred StatePredicate) (*StateSet, error) {
	s := t.solver
	if pred == nil {
		return s.newStateSet(t.in, t.in.wfCur), nil
	}

	n, err := s.compile(pred(t.in.cur, t.output))
	if err != nil {
		return nil, err
	}
	return s.newStateSet(t.in, s.and(n, t.in.wfCur)), s.err()
}

// OutputSet returns the outputs produced from an input for which pred holds
// of the input and that output. A nil predicate returns every valid output
// value, whether or not the function produces it.
func (t *Transformer) OutputSet(pred StatePredicate) (*StateSet, error) {
	s := t.solver
	if pred == nil {
		return s.newStateSet(t.out, t.out.wfCur), nil
	}

	n, err := s.compile(pred(t.in.cur, t.out.next))
	if err != nil {
		return nil, err
	}
	img := s.bdd.AppEx(t.relation, n, rudd.OPand, t.in.curCube)
	return s.newStateSet(t.out, t.out.rename(s, img)), s.err()
}

// TransformForward returns the image of set: every output the function
// produces from an input in set.
func (t *Transformer) TransformForward(set *StateSet) (*StateSet, error) {
	if err := t.checkSet(set, t.in); err != nil {
		return nil, err
	}
	s := t.solver
	img := s.bdd.AppEx(set.node, t.relation, rudd.OPand, t.in.curCube)
	return s.newStateSet(t.out, t.out.rename(s, img)), s.err()
}

// TransformBackwards returns the preimage of set: every input for which the
// function produces an output in set.
func (t *Transformer) TransformBackwards(set *StateSet) (*StateSet, error) {
	if err := t.checkSet(set, t.out); err != nil {
		return nil, err
	}
	s := t.solver
	next := s.bdd.AppEx(set.node, t.out.identity, rudd.OPand, t.out.curCube)
	pre := s.bdd.AppEx(next, t.relation, rudd.OPand, t.out.nextCube)
	return s.newStateSet(t.in, pre), s.err()
}

func (t *Transformer) checkSet(set *StateSet, sv *stateVars) error {
	if set.solver != t.solver {
		return fmt.Errorf("%w: state set belongs to a different solver", zen.ErrType)
	} else if set.state != sv {
		return fmt.Errorf("%w: expected state set of %s, got %s", zen.ErrType, sv.typ, set.state.typ)
	}
	return nil
}

// rename moves a diagram over the primed variables onto the canonical ones.
func (sv *stateVars) rename(s *Solver, n rudd.Node) rudd.Node {
	return s.bdd.AppEx(n, sv.identity, rudd.OPand, sv.nextCube)
}
