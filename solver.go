package zen

import (
	"fmt"

	"github.com/hashicorp/go-set/v3"
	"go.uber.org/zap"
)

// Backend names used in configuration.
const (
	BackendAuto = "auto"
	BackendBDD  = "bdd"
	BackendSAT  = "sat"
	BackendZ3   = "z3"
)

// Solver represents a satisfiability backend.
type Solver interface {
	// Solve checks the conjunction of constraints. When satisfiable, values
	// holds one constant per entry of vars.
	Solve(constraints []*Expr, vars []*Expr) (satisfiable bool, values []*Expr, err error)
}

// Checker is implemented by solvers that can reject a query before solving.
type Checker interface {
	Check(exprs ...*Expr) error
}

// CheckBounded verifies that every node reachable from exprs can be encoded
// by a bounded backend. It returns ErrBackendNotApplicable if a reachable
// type has no finite encoding and ErrUnsupported for a multiplication of two
// non-constant operands.
func (c *Context) CheckBounded(exprs ...*Expr) error {
	visited := set.New[uint64](0)
	for _, expr := range exprs {
		if err := c.checkBounded(expr, visited); err != nil {
			return err
		}
	}
	return nil
}

func (c *Context) checkBounded(expr *Expr, visited *set.Set[uint64]) error {
	if !visited.Insert(expr.id) {
		return nil
	} else if err, ok := c.bounded.Get(expr.id); ok {
		return err
	}

	err := func() error {
		if !expr.Type.Finite() {
			return fmt.Errorf("%w: %s has unbounded type %s", ErrBackendNotApplicable, expr.Op, expr.Type)
		} else if expr.Op == OpMul && !expr.Args[0].constant && !expr.Args[1].constant {
			return fmt.Errorf("%w: multiplication of two non-constant values: %s", ErrUnsupported, expr)
		}
		for _, arg := range expr.Args {
			if err := c.checkBounded(arg, visited); err != nil {
				return err
			}
		}
		return nil
	}()
	c.bounded.Set(expr.id, err)
	return err
}

// AutoSolver routes each query to Bounded when every reachable type is finite
// and no unsupported operation occurs, and to General otherwise.
type AutoSolver struct {
	Context *Context
	Bounded Solver
	General Solver
}

// Solve implements Solver.
func (s *AutoSolver) Solve(constraints []*Expr, vars []*Expr) (bool, []*Expr, error) {
	return s.Select(append(constraints[:len(constraints):len(constraints)], vars...)...).Solve(constraints, vars)
}

// Select returns the backend used for a query over exprs.
func (s *AutoSolver) Select(exprs ...*Expr) Solver {
	if s.Bounded == nil {
		return s.General
	} else if s.General == nil {
		return s.Bounded
	}

	if err := s.Context.CheckBounded(exprs...); err != nil {
		s.Context.logger.Debug("select general backend", zap.Error(err))
		return s.General
	}
	return s.Bounded
}

// SelectSolver returns bounded if exprs can be encoded by a bounded backend
// and general otherwise.
func (c *Context) SelectSolver(bounded, general Solver, exprs ...*Expr) Solver {
	return (&AutoSolver{Context: c, Bounded: bounded, General: general}).Select(exprs...)
}

// Check implements Checker. It succeeds if either backend accepts exprs.
func (s *AutoSolver) Check(exprs ...*Expr) error {
	if s.General != nil {
		return nil
	}
	return s.Context.CheckBounded(exprs...)
}
