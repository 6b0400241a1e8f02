package bdd

import (
	"fmt"
	"math/big"

	"github.com/dalzilio/rudd"

	"github.com/benbjohnson/zen"
)

// StateSet is a set of values of one type, stored as a diagram over the
// canonical state variables of that type. Sets of the same type from one
// Solver can be combined regardless of the transformer that produced them.
type StateSet struct {
	solver *Solver
	state  *stateVars
	node   rudd.Node
}

func (s *Solver) newStateSet(sv *stateVars, n rudd.Node) *StateSet {
	return &StateSet{solver: s, state: sv, node: n}
}

// StateSet returns the set of values of type t satisfying pred. A nil
// predicate returns every valid value.
func (s *Solver) StateSet(t *zen.Type, pred func(x *zen.Expr) *zen.Expr) (*StateSet, error) {
	sv, err := s.state(t)
	if err != nil {
		return nil, err
	} else if pred == nil {
		return s.newStateSet(sv, sv.wfCur), nil
	}

	n, err := s.compile(pred(sv.cur))
	if err != nil {
		return nil, err
	}
	return s.newStateSet(sv, s.and(n, sv.wfCur)), s.err()
}

// Type returns the element type of the set.
func (set *StateSet) Type() *zen.Type { return set.state.typ }

// ID returns the diagram node identifier. Equal sets have equal IDs.
func (set *StateSet) ID() int { return *set.node }

func (set *StateSet) check(other *StateSet) {
	if set.solver != other.solver || set.state != other.state {
		panic(fmt.Sprintf("assert: incompatible state sets: %s and %s", set.state.typ, other.state.typ))
	}
}

// Intersect returns the values in both sets.
func (set *StateSet) Intersect(other *StateSet) *StateSet {
	set.check(other)
	return set.solver.newStateSet(set.state, set.solver.bdd.Apply(set.node, other.node, rudd.OPand))
}

// Union returns the values in either set.
func (set *StateSet) Union(other *StateSet) *StateSet {
	set.check(other)
	return set.solver.newStateSet(set.state, set.solver.bdd.Apply(set.node, other.node, rudd.OPor))
}

// Complement returns the valid values not in set.
func (set *StateSet) Complement() *StateSet {
	s := set.solver
	return s.newStateSet(set.state, s.and(set.state.wfCur, s.bdd.Not(set.node)))
}

// Equals returns true if both sets hold the same values.
func (set *StateSet) Equals(other *StateSet) bool {
	set.check(other)
	return equal(set.node, other.node)
}

// IsEmpty returns true if the set holds no value.
func (set *StateSet) IsEmpty() bool {
	return set.solver.isFalse(set.node)
}

// IsFull returns true if the set holds every valid value of its type.
func (set *StateSet) IsFull() bool {
	return equal(set.node, set.state.wfCur)
}

// Contains returns true if the constant value is in the set.
func (set *StateSet) Contains(value *zen.Expr) (bool, error) {
	if !value.Type.Equal(set.state.typ) {
		return false, fmt.Errorf("%w: cannot use %s as %s", zen.ErrType, value.Type, set.state.typ)
	}
	s := set.solver
	n, err := s.compile(s.ctx.Eq(set.state.cur, value))
	if err != nil {
		return false, err
	}
	return !s.isFalse(s.bdd.Apply(set.node, n, rudd.OPand)), nil
}

// Element returns a value in the set, or false if the set is empty.
func (set *StateSet) Element() (*zen.Expr, bool, error) {
	s := set.solver
	if set.IsEmpty() {
		return nil, false, nil
	}
	assignment, err := s.pick(set.node)
	if err != nil {
		return nil, false, err
	}
	x, err := s.decode(set.state.cur, assignment)
	if err != nil {
		return nil, false, err
	}
	return x, true, nil
}

// Count returns the number of values in the set.
func (set *StateSet) Count() *big.Int {
	return set.solver.count(set.node, uint(len(set.state.curIndices)))
}
