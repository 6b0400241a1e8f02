package zen

import (
	"fmt"
	"slices"

	"github.com/benbjohnson/immutable"
	"go.uber.org/zap"
)

// PathState is one partially explored path through the conditional structure
// of an expression. States are persistent: forking shares the decisions and
// path condition of the parent.
type PathState struct {
	id     int
	parent *PathState

	// Branch taken for each decided condition, keyed by expression id.
	decisions *immutable.SortedMap

	// Path condition as a list of conjuncts.
	constraints *immutable.List

	depth int
}

func newPathState() *PathState {
	return &PathState{
		decisions:   immutable.NewSortedMap(&uint64Comparer{}),
		constraints: immutable.NewList(),
	}
}

// ID returns an autoincrementing ID assigned by the enumerator.
func (s *PathState) ID() int { return s.id }

// Depth returns the number of branch decisions on the path.
func (s *PathState) Depth() int { return s.depth }

// Decision returns the branch taken for cond, if cond has been decided.
func (s *PathState) Decision(cond *Expr) (taken, ok bool) {
	v, ok := s.decisions.Get(cond.id)
	if !ok {
		return false, false
	}
	return v.(bool), true
}

// Constraints returns the path condition as a list of conjuncts.
func (s *PathState) Constraints() []*Expr {
	a := make([]*Expr, 0, s.constraints.Len())
	itr := s.constraints.Iterator()
	for !itr.Done() {
		_, v := itr.Next()
		a = append(a, v.(*Expr))
	}
	return a
}

// AddConstraint adds expr to the path condition. Conjunctions are split into
// separate constraints.
func (s *PathState) AddConstraint(expr *Expr) {
	if expr.Op == OpConst {
		assert(expr.IsTrue(), "invalid false constraint")
		return
	}

	// Split logical conjunctions into two separate constraints.
	if expr.Op == OpAnd {
		s.AddConstraint(expr.Args[0])
		s.AddConstraint(expr.Args[1])
		return
	}

	s.constraints = s.constraints.Append(expr)
}

// Fork returns a child state that records the branch taken for cond. The
// caller adds the matching literal to the path condition.
func (s *PathState) Fork(cond *Expr, taken bool) *PathState {
	return &PathState{
		parent:      s,
		decisions:   s.decisions.Set(cond.id, taken),
		constraints: s.constraints,
		depth:       s.depth + 1,
	}
}

// uint64Comparer compares two 64-bit unsigned integers. Implements immutable.Comparer.
type uint64Comparer struct{}

// Compare returns -1 if a is less than b, returns 1 if a is greater than b, and
// returns 0 if a is equal to b. Panic if a or b is not a uint64.
func (c *uint64Comparer) Compare(a, b interface{}) int {
	if i, j := a.(uint64), b.(uint64); i < j {
		return -1
	} else if i > j {
		return 1
	}
	return 0
}

// GenerateOptions configures path enumeration.
type GenerateOptions struct {
	// Maximum number of branch decisions per path. A path that reaches the
	// limit is solved as-is. Zero or less is unlimited.
	MaxDepth int

	// Optional condition over the inputs conjoined into every path.
	Precondition func(inputs []*Expr) *Expr

	// Constant values for a subset of the inputs.
	Bindings map[*Expr]*Expr

	// Exploration order. Defaults to depth-first.
	Searcher Searcher
}

// Witness is a concrete input assignment reaching one path.
type Witness struct {
	Inputs []*Expr
	Output *Expr
	Path   []*Expr
}

// GenerateInputs enumerates the feasible paths through the conditional
// structure of f and returns one witness per path.
func (c *Context) GenerateInputs(f *Function, s Solver, opts GenerateOptions) ([]Witness, error) {
	g := &generator{ctx: c, fn: f, solver: s, opts: opts, searcher: opts.Searcher}
	if g.searcher == nil {
		g.searcher = NewDFSSearcher()
	}
	return g.run()
}

type generator struct {
	ctx      *Context
	fn       *Function
	solver   Solver
	opts     GenerateOptions
	searcher Searcher

	output   *Expr
	inputs   []*Expr // unbound inputs
	bindings map[*Expr]*Expr

	nextID int
}

func (g *generator) run() ([]Witness, error) {
	c := g.ctx

	// Pre-bound inputs are substituted away before the search.
	g.bindings = make(map[*Expr]*Expr, len(g.opts.Bindings))
	for v, x := range g.opts.Bindings {
		if !slices.Contains(g.fn.Inputs, v) {
			return nil, fmt.Errorf("%w: binding for %s is not a function input", ErrType, v)
		} else if !x.Type.Equal(v.Type) {
			return nil, fmt.Errorf("%w: binding for %s has type %s, expected %s", ErrType, v, x.Type, v.Type)
		} else if !x.constant {
			return nil, fmt.Errorf("%w: binding for %s is not a constant: %s", ErrType, v, x)
		}
		g.bindings[v] = x
	}
	for _, in := range g.fn.Inputs {
		if _, ok := g.bindings[in]; !ok {
			g.inputs = append(g.inputs, in)
		}
	}
	g.output = c.Substitute(g.fn.Output, g.bindings)

	root := newPathState()
	if g.opts.Precondition != nil {
		pre := c.Substitute(g.opts.Precondition(g.fn.Inputs), g.bindings)
		if pre.IsFalse() {
			return nil, nil
		}
		root.AddConstraint(pre)
	}
	if ok, err := g.feasible(root); err != nil {
		return nil, err
	} else if !ok {
		return nil, nil
	}
	g.addState(root)

	var witnesses []Witness
	for {
		state := g.searcher.SelectState()
		if state == nil {
			break
		}

		cond := g.next(state)
		if cond == nil || (g.opts.MaxDepth > 0 && state.depth >= g.opts.MaxDepth) {
			w, ok, err := g.witness(state)
			if err != nil {
				return nil, err
			} else if ok {
				witnesses = append(witnesses, w)
			}
			continue
		}

		for _, taken := range []bool{false, true} {
			child := state.Fork(cond, taken)
			child.AddConstraint(g.literal(cond, taken))

			ok, err := g.feasible(child)
			if err != nil {
				return nil, err
			} else if !ok {
				c.logger.Debug("prune path", zap.Int("parent", state.id), zap.Bool("taken", taken), zap.Stringer("cond", cond))
				continue
			}
			g.addState(child)
		}
	}

	c.logger.Debug("generate inputs", zap.Int("paths", g.nextID), zap.Int("witnesses", len(witnesses)))
	return witnesses, nil
}

func (g *generator) literal(cond *Expr, taken bool) *Expr {
	if taken {
		return cond
	}
	return g.ctx.Not(cond)
}

func (g *generator) addState(state *PathState) {
	g.nextID++
	state.id = g.nextID
	g.searcher.AddState(state)
}

func (g *generator) feasible(state *PathState) (bool, error) {
	ok, _, err := g.solver.Solve(state.Constraints(), nil)
	return ok, err
}

// next returns the first undecided If condition reachable from the output
// under the decisions of state. Conditions nested inside a condition are
// returned before the condition itself. Returns nil at a leaf.
func (g *generator) next(state *PathState) *Expr {
	seen := make(map[uint64]struct{})
	var visit func(e *Expr) *Expr
	visit = func(e *Expr) *Expr {
		if e.constant || e.Op == OpVar {
			return nil
		} else if _, ok := seen[e.id]; ok {
			return nil
		}
		seen[e.id] = struct{}{}

		if e.Op != OpIf {
			for _, arg := range e.Args {
				if cond := visit(arg); cond != nil {
					return cond
				}
			}
			return nil
		}

		cond := e.Args[0]
		if x := visit(cond); x != nil {
			return x
		}
		taken, ok := state.Decision(cond)
		if !ok {
			return cond
		} else if taken {
			return visit(e.Args[1])
		}
		return visit(e.Args[2])
	}
	return visit(g.output)
}

func (g *generator) witness(state *PathState) (Witness, bool, error) {
	path := state.Constraints()
	ok, values, err := g.solver.Solve(path, g.inputs)
	if err != nil {
		return Witness{}, false, err
	} else if !ok {
		return Witness{}, false, nil
	}

	bindings := make(map[*Expr]*Expr, len(g.fn.Inputs))
	for v, x := range g.bindings {
		bindings[v] = x
	}
	for i, v := range g.inputs {
		bindings[v] = values[i]
	}

	inputs := make([]*Expr, len(g.fn.Inputs))
	for i, in := range g.fn.Inputs {
		inputs[i] = bindings[in]
	}
	out, err := g.ctx.Evaluate(g.fn.Output, bindings)
	if err != nil {
		return Witness{}, false, fmt.Errorf("evaluate witness: %w", err)
	}

	g.ctx.logger.Debug("witness", zap.Int("state", state.id), zap.Int("depth", state.depth), zap.Stringer("output", out))
	return Witness{Inputs: inputs, Output: out, Path: path}, true, nil
}
