// Package sat implements a bounded backend on a CDCL SAT solver.
//
// Expressions are lowered by the shared bit-blaster into an and-inverter
// circuit, converted to CNF and solved with gini. A fresh circuit is built
// for every query so the solver holds no state between calls.
package sat

import (
	"fmt"
	"time"

	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"go.uber.org/zap"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/internal/bitblast"
)

var _ zen.Solver = (*Solver)(nil)
var _ zen.Checker = (*Solver)(nil)

// Solver is a bounded backend over gini.
type Solver struct {
	ctx     *zen.Context
	logger  *zap.Logger
	timeout time.Duration
	stats   Stats
}

// Stats holds solver statistics.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
	Vars      int // circuit inputs of the last query
	Gates     int // circuit size of the last query
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithLogger sets the solver logger. Defaults to the context logger.
func WithLogger(logger *zap.Logger) SolverOption {
	return func(s *Solver) { s.logger = logger }
}

// WithTimeout bounds each query. Zero means no limit.
func WithTimeout(d time.Duration) SolverOption {
	return func(s *Solver) { s.timeout = d }
}

// NewSolver returns a new SAT backend for expressions built in ctx.
func NewSolver(ctx *zen.Context, opts ...SolverOption) *Solver {
	s := &Solver{ctx: ctx, logger: ctx.Logger()}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Context returns the expression context of the solver.
func (s *Solver) Context() *zen.Context { return s.ctx }

// Stats returns solver statistics.
func (s *Solver) Stats() Stats { return s.stats }

// Check implements zen.Checker.
func (s *Solver) Check(exprs ...*zen.Expr) error {
	return s.ctx.CheckBounded(exprs...)
}

// Solve implements zen.Solver.
func (s *Solver) Solve(constraints []*zen.Expr, vars []*zen.Expr) (satisfiable bool, values []*zen.Expr, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
		s.logger.Debug("sat solve",
			zap.Int("constraints", len(constraints)),
			zap.Int("vars", len(vars)),
			zap.Int("gates", s.stats.Gates),
			zap.Bool("satisfiable", satisfiable),
			zap.Duration("elapsed", time.Since(t)),
			zap.Error(err),
		)
	}()

	all := append(constraints[:len(constraints):len(constraints)], vars...)
	if err := s.ctx.CheckBounded(all...); err != nil {
		return false, nil, err
	}

	q := newQuery(s.ctx)
	root := q.c.T
	for _, x := range constraints {
		lit, err := q.compiler.Bool(x)
		if err != nil {
			return false, nil, err
		}
		root = q.c.And(root, lit)
	}
	for _, v := range zen.FindVars(all...) {
		bits, err := q.compiler.Compile(v)
		if err != nil {
			return false, nil, err
		}
		root = q.c.And(root, q.compiler.WellFormed(v.Type, bits))
	}
	s.stats.Vars, s.stats.Gates = len(q.inputs), q.c.Len()

	if root == q.c.F {
		return false, nil, nil
	}

	g := gini.New()
	q.c.ToCnf(g)
	g.Add(root)
	g.Add(0)

	// Inputs outside every clause still need a solver variable to be read.
	for _, id := range q.order {
		for _, m := range q.inputs[id] {
			g.Add(m)
			g.Add(m.Not())
			g.Add(0)
		}
	}

	switch s.solve(g) {
	case -1:
		return false, nil, nil
	case 0:
		return false, nil, fmt.Errorf("sat: %w after %s", zen.ErrSolverTimeout, s.timeout)
	}

	values = make([]*zen.Expr, len(vars))
	for i, v := range vars {
		bits := q.inputs[v.ID()]
		a := make([]bool, len(bits))
		for j, m := range bits {
			a[j] = g.Value(m)
		}
		if values[i], err = s.ctx.DecodeBits(v.Type, a); err != nil {
			return false, nil, err
		}
	}
	return true, values, nil
}

func (s *Solver) solve(g *gini.Gini) int {
	if s.timeout > 0 {
		return g.Try(s.timeout)
	}
	return g.Solve()
}

// query holds the circuit of a single Solve call.
type query struct {
	c        *logic.C
	compiler *bitblast.Compiler[z.Lit]
	inputs   map[uint64][]z.Lit
	order    []uint64 // variable ids in allocation order
}

func newQuery(ctx *zen.Context) *query {
	q := &query{c: logic.NewC(), inputs: make(map[uint64][]z.Lit)}
	q.compiler = bitblast.New[z.Lit](circuit{q.c}, q.vars, ctx.CacheSize())
	return q
}

// vars allocates one circuit input per bit of v.
func (q *query) vars(v *zen.Expr) ([]z.Lit, error) {
	if bits, ok := q.inputs[v.ID()]; ok {
		return bits, nil
	}
	w, ok := v.Type.BitWidth()
	if !ok {
		return nil, fmt.Errorf("%w: variable %s has unbounded type %s", zen.ErrBackendNotApplicable, v, v.Type)
	}
	bits := make([]z.Lit, w)
	for i := range bits {
		bits[i] = q.c.Lit()
	}
	q.inputs[v.ID()] = bits
	q.order = append(q.order, v.ID())
	return bits, nil
}

// circuit adapts an and-inverter graph to bitblast.Algebra.
type circuit struct {
	c *logic.C
}

func (a circuit) True() z.Lit { return a.c.T }
func (a circuit) False() z.Lit { return a.c.F }
func (a circuit) Not(x z.Lit) z.Lit { return x.Not() }
func (a circuit) And(x, y z.Lit) z.Lit { return a.c.And(x, y) }
func (a circuit) Or(x, y z.Lit) z.Lit { return a.c.Or(x, y) }
func (a circuit) Xor(x, y z.Lit) z.Lit { return a.c.Xor(x, y) }
func (a circuit) Ite(i, t, e z.Lit) z.Lit { return a.c.Choice(i, t, e) }
