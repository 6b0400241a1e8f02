package zen

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Function is a symbolic function: an output expression over input variables.
type Function struct {
	ctx    *Context
	Inputs []*Expr
	Output *Expr
}

// Function builds a function by applying body to fresh input variables of
// the given types.
func (c *Context) Function(types []*Type, body func(args ...*Expr) *Expr) *Function {
	inputs := make([]*Expr, len(types))
	for i, t := range types {
		inputs[i] = c.Var(t, fmt.Sprintf("arg%d", i))
	}
	return c.NewFunction(inputs, body(inputs...))
}

// NewFunction returns a function from existing input variables and output.
func (c *Context) NewFunction(inputs []*Expr, output *Expr) *Function {
	for _, in := range inputs {
		assert(in.Op == OpVar, "function input is not a variable: %s", in)
	}
	return &Function{ctx: c, Inputs: inputs, Output: output}
}

// Context returns the context the function was built in.
func (f *Function) Context() *Context { return f.ctx }

func (f *Function) bind(args []*Expr) (map[*Expr]*Expr, error) {
	if len(args) != len(f.Inputs) {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrType, len(f.Inputs), len(args))
	}
	bindings := make(map[*Expr]*Expr, len(args))
	for i, arg := range args {
		if !arg.Type.Equal(f.Inputs[i].Type) {
			return nil, fmt.Errorf("%w: argument %d: cannot use %s as %s", ErrType, i, arg.Type, f.Inputs[i].Type)
		}
		bindings[f.Inputs[i]] = arg
	}
	return bindings, nil
}

// Apply returns the function output with args substituted for its inputs.
func (f *Function) Apply(args ...*Expr) (*Expr, error) {
	bindings, err := f.bind(args)
	if err != nil {
		return nil, err
	}
	return f.ctx.Substitute(f.Output, bindings), nil
}

// EvaluateExpr evaluates the function on constant arguments.
func (f *Function) EvaluateExpr(args ...*Expr) (*Expr, error) {
	bindings, err := f.bind(args)
	if err != nil {
		return nil, err
	}
	return f.ctx.Evaluate(f.Output, bindings)
}

// Evaluate evaluates the function on host values and returns the host value
// of the result.
func (f *Function) Evaluate(args ...any) (any, error) {
	if len(args) != len(f.Inputs) {
		return nil, fmt.Errorf("%w: expected %d arguments, got %d", ErrType, len(f.Inputs), len(args))
	}
	exprs := make([]*Expr, len(args))
	for i, arg := range args {
		x, err := f.ctx.Value(f.Inputs[i].Type, arg)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		exprs[i] = x
	}

	out, err := f.EvaluateExpr(exprs...)
	if err != nil {
		return nil, err
	}
	return out.Interface(), nil
}

// Invariant is a Boolean predicate over a function's inputs and output.
type Invariant func(inputs []*Expr, output *Expr) *Expr

// Find returns inputs for which invariant holds, or false if there are none.
func (f *Function) Find(s Solver, invariant Invariant) ([]*Expr, bool, error) {
	cond := invariant(f.Inputs, f.Output)
	assertKind(cond, KindBool, "find")

	ok, values, err := s.Solve([]*Expr{cond}, f.Inputs)
	if err != nil {
		return nil, false, err
	} else if !ok {
		return nil, false, nil
	}
	return values, true, nil
}

// FindOptions configures FindAll.
type FindOptions struct {
	// Maximum number of witnesses. Zero or less is unlimited.
	Limit int
}

// FindAll returns every input assignment for which invariant holds, sorted by
// the value order of the inputs. Each witness is blocked before re-solving so
// the result contains no duplicates.
func (f *Function) FindAll(s Solver, invariant Invariant, opts FindOptions) ([][]*Expr, error) {
	c := f.ctx
	cond := invariant(f.Inputs, f.Output)
	assertKind(cond, KindBool, "find")

	constraints := []*Expr{cond}
	seen := make(map[string]struct{})
	var results [][]*Expr
	for opts.Limit <= 0 || len(results) < opts.Limit {
		ok, values, err := s.Solve(constraints, f.Inputs)
		if err != nil {
			return nil, err
		} else if !ok {
			break
		}

		k := witnessKey(values)
		if _, ok := seen[k]; ok {
			return nil, fmt.Errorf("find all: solver returned blocked witness %s", k)
		}
		seen[k] = struct{}{}
		results = append(results, values)

		eqs := make([]*Expr, len(values))
		for i, v := range values {
			eqs[i] = c.Eq(f.Inputs[i], v)
		}
		constraints = append(constraints, c.Not(c.AndAll(eqs...)))
	}

	sort.SliceStable(results, func(i, j int) bool { return compareWitness(results[i], results[j]) < 0 })
	c.logger.Debug("find all", zap.Int("witnesses", len(results)), zap.Int("limit", opts.Limit))
	return results, nil
}

func witnessKey(values []*Expr) string {
	var buf []byte
	for _, v := range values {
		buf = fmt.Appendf(buf, "%d,", v.id)
	}
	return string(buf)
}

func compareWitness(a, b []*Expr) int {
	for i := range a {
		if cmp := Compare(a[i], b[i]); cmp != 0 {
			return cmp
		}
	}
	return 0
}
