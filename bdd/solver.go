// Package bdd implements the bounded backend on binary decision diagrams.
//
// Every finite expression is lowered bit by bit into diagrams. Because
// diagrams are canonical, the same package also provides state sets and
// transformers: relations between the input and output values of a function
// that support image, preimage and set algebra.
package bdd

import (
	"errors"
	"fmt"
	"math/big"
	"strconv"
	"time"

	"github.com/dalzilio/rudd"
	"go.uber.org/zap"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/internal/bitblast"
)

// Default diagram table sizes.
const (
	DefaultNodeSize  = 10000
	DefaultCacheSize = 5000
	DefaultVarnum    = 4096
)

// ErrVarnum is returned when a query needs more diagram variables than the
// solver was created with.
var ErrVarnum = errors.New("bdd: diagram variables exhausted")

var _ zen.Solver = (*Solver)(nil)
var _ zen.Checker = (*Solver)(nil)

// Solver is a bounded backend over a single diagram manager. Diagrams from
// one Solver can be combined freely; diagrams from different solvers cannot.
type Solver struct {
	ctx      *zen.Context
	bdd      *rudd.BDD
	registry *Registry
	compiler *bitblast.Compiler[rudd.Node]
	logger   *zap.Logger

	nodeSize  int
	cacheSize int
	varnum    int

	// Registry key per variable id. Variables not listed get a private key.
	keys map[uint64]Key

	// State variables by type signature.
	states map[string]*stateVars

	stats Stats
}

// Stats holds solver statistics.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithLogger sets the solver logger. Defaults to the context logger.
func WithLogger(logger *zap.Logger) SolverOption {
	return func(s *Solver) { s.logger = logger }
}

// WithNodeSize sets the initial size of the diagram node table.
func WithNodeSize(n int) SolverOption {
	return func(s *Solver) { s.nodeSize = n }
}

// WithVarnum sets the number of diagram variables. The diagram manager
// cannot add variables after creation.
func WithVarnum(n int) SolverOption {
	return func(s *Solver) { s.varnum = n }
}

// WithCacheSize sets the size of the diagram operation caches.
func WithCacheSize(n int) SolverOption {
	return func(s *Solver) { s.cacheSize = n }
}

// NewSolver returns a new bounded solver for expressions built in ctx.
func NewSolver(ctx *zen.Context, opts ...SolverOption) (*Solver, error) {
	s := &Solver{
		ctx:       ctx,
		logger:    ctx.Logger(),
		nodeSize:  DefaultNodeSize,
		cacheSize: DefaultCacheSize,
		varnum:    DefaultVarnum,
		keys:      make(map[uint64]Key),
		states:    make(map[string]*stateVars),
	}
	for _, opt := range opts {
		opt(s)
	}

	b, err := rudd.New(s.varnum, rudd.Nodesize(s.nodeSize), rudd.Cachesize(s.cacheSize))
	if err != nil {
		return nil, fmt.Errorf("bdd: %w", err)
	}
	s.bdd = b

	s.registry = NewRegistry(func(n int) error {
		if n > s.bdd.Varnum() {
			return fmt.Errorf("%w: need %d, have %d (see WithVarnum)", ErrVarnum, n, s.bdd.Varnum())
		}
		return nil
	})
	s.compiler = bitblast.New[rudd.Node](algebra{s.bdd}, s.vars, ctx.CacheSize())
	return s, nil
}

// Context returns the expression context of the solver.
func (s *Solver) Context() *zen.Context { return s.ctx }

// Registry returns the variable allocation registry.
func (s *Solver) Registry() *Registry { return s.registry }

// Stats returns solver statistics.
func (s *Solver) Stats() Stats { return s.stats }

// Check implements zen.Checker.
func (s *Solver) Check(exprs ...*zen.Expr) error {
	return s.ctx.CheckBounded(exprs...)
}

// key returns the registry key of variable v.
func (s *Solver) key(v *zen.Expr) Key {
	if k, ok := s.keys[v.ID()]; ok {
		return k
	}
	k := NewKey(v.Name+"#"+strconv.FormatUint(v.Value, 10), v.Type)
	s.keys[v.ID()] = k
	return k
}

// varIndices returns the diagram variables holding the bits of v.
func (s *Solver) varIndices(v *zen.Expr) ([]int, error) {
	w, ok := v.Type.BitWidth()
	if !ok {
		return nil, fmt.Errorf("%w: variable %s has unbounded type %s", zen.ErrBackendNotApplicable, v, v.Type)
	}
	k := s.key(v)
	if err := s.registry.Declare(k, w); err != nil {
		return nil, err
	}
	return s.registry.Vars(k)
}

func (s *Solver) vars(v *zen.Expr) ([]rudd.Node, error) {
	indices, err := s.varIndices(v)
	if err != nil {
		return nil, err
	}
	bits := make([]rudd.Node, len(indices))
	for i, j := range indices {
		bits[i] = s.bdd.Ithvar(j)
	}
	return bits, nil
}

// compile returns the diagram of a Boolean expression.
func (s *Solver) compile(e *zen.Expr) (rudd.Node, error) {
	n, err := s.compiler.Bool(e)
	if err != nil {
		return nil, err
	}
	return n, s.err()
}

// wellFormed returns the diagram constraining the bits of v to valid values.
func (s *Solver) wellFormed(v *zen.Expr) (rudd.Node, error) {
	bits, err := s.compiler.Compile(v)
	if err != nil {
		return nil, err
	}
	return s.compiler.WellFormed(v.Type, bits), s.err()
}

func (s *Solver) err() error {
	if msg := s.bdd.Error(); msg != "" {
		return fmt.Errorf("bdd: %s", msg)
	}
	return nil
}

// formula returns the conjunction of constraints together with validity
// constraints for every variable they mention and every variable in vars.
func (s *Solver) formula(constraints, vars []*zen.Expr) (rudd.Node, error) {
	if err := s.ctx.CheckBounded(append(constraints[:len(constraints):len(constraints)], vars...)...); err != nil {
		return nil, err
	}

	n := s.bdd.True()
	for _, c := range constraints {
		x, err := s.compile(c)
		if err != nil {
			return nil, err
		}
		n = s.bdd.Apply(n, x, rudd.OPand)
	}
	for _, v := range zen.FindVars(append(constraints[:len(constraints):len(constraints)], vars...)...) {
		wf, err := s.wellFormed(v)
		if err != nil {
			return nil, err
		}
		n = s.bdd.Apply(n, wf, rudd.OPand)
	}
	return n, s.err()
}

// Solve implements zen.Solver.
func (s *Solver) Solve(constraints []*zen.Expr, vars []*zen.Expr) (satisfiable bool, values []*zen.Expr, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
		s.logger.Debug("bdd solve",
			zap.Int("constraints", len(constraints)),
			zap.Int("vars", len(vars)),
			zap.Bool("satisfiable", satisfiable),
			zap.Duration("elapsed", time.Since(t)),
			zap.Error(err),
		)
	}()

	n, err := s.formula(constraints, vars)
	if err != nil {
		return false, nil, err
	} else if s.isFalse(n) {
		return false, nil, nil
	}

	assignment, err := s.pick(n)
	if err != nil {
		return false, nil, err
	}
	values = make([]*zen.Expr, len(vars))
	for i, v := range vars {
		if values[i], err = s.decode(v, assignment); err != nil {
			return false, nil, err
		}
	}
	return true, values, nil
}

// SatCount returns the number of valid assignments to the variables of e
// that satisfy e.
func (s *Solver) SatCount(e *zen.Expr) (*big.Int, error) {
	n, err := s.formula([]*zen.Expr{e}, nil)
	if err != nil {
		return nil, err
	}

	var width uint
	for _, v := range zen.FindVars(e) {
		w, _ := v.Type.BitWidth()
		width += w
	}
	return s.count(n, width), nil
}

// count returns the number of assignments of n over width relevant bits.
func (s *Solver) count(n rudd.Node, width uint) *big.Int {
	total := s.bdd.Satcount(n)
	free := s.bdd.Varnum() - int(width)
	return total.Rsh(total, uint(free))
}

func (s *Solver) isFalse(n rudd.Node) bool { return equal(n, s.bdd.False()) }

// equal reports whether two diagrams are the same function.
func equal(a, b rudd.Node) bool {
	return *a == *b
}

var errStop = errors.New("stop")

// pick returns the first satisfying assignment of n. Unconstrained bits are
// false. Allsat may call back again after errStop, so later assignments are
// ignored.
func (s *Solver) pick(n rudd.Node) ([]bool, error) {
	var assignment []bool
	err := s.bdd.Allsat(func(a []int) error {
		if assignment != nil {
			return errStop
		}
		assignment = make([]bool, len(a))
		for i, v := range a {
			assignment[i] = v == 1
		}
		return errStop
	}, n)
	if err != nil && !errors.Is(err, errStop) {
		return nil, fmt.Errorf("bdd: %w", err)
	} else if assignment == nil {
		return nil, fmt.Errorf("bdd: no assignment for satisfiable diagram")
	}
	return assignment, nil
}

// decode reads the value of v from an assignment.
func (s *Solver) decode(v *zen.Expr, assignment []bool) (*zen.Expr, error) {
	indices, err := s.varIndices(v)
	if err != nil {
		return nil, err
	}
	bits := make([]bool, len(indices))
	for i, j := range indices {
		if j < len(assignment) {
			bits[i] = assignment[j]
		}
	}
	return s.ctx.DecodeBits(v.Type, bits)
}

// algebra adapts a diagram manager to bitblast.Algebra.
type algebra struct {
	b *rudd.BDD
}

func (a algebra) True() rudd.Node { return a.b.True() }
func (a algebra) False() rudd.Node { return a.b.False() }
func (a algebra) Not(x rudd.Node) rudd.Node { return a.b.Not(x) }
func (a algebra) And(x, y rudd.Node) rudd.Node { return a.b.Apply(x, y, rudd.OPand) }
func (a algebra) Or(x, y rudd.Node) rudd.Node { return a.b.Apply(x, y, rudd.OPor) }
func (a algebra) Xor(x, y rudd.Node) rudd.Node { return a.b.Apply(x, y, rudd.OPxor) }
func (a algebra) Ite(c, t, e rudd.Node) rudd.Node { return a.b.Ite(c, t, e) }
