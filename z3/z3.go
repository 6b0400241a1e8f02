// Package z3 implements the general backend on an embedded Z3 solver.
//
// Every type has a Z3 sort, so the backend accepts expressions over
// unbounded integers, sequences, maps, sets and bags as well as finite ones.
package z3

import (
	"errors"
	"fmt"
	"strings"
	"time"
	"unsafe"

	"go.uber.org/zap"

	"github.com/benbjohnson/zen"
	"github.com/benbjohnson/zen/internal/cache"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// ErrInvalidModel is returned when a model cannot be read back as values
// satisfying the constraints it was found for.
var ErrInvalidModel = errors.New("z3: invalid model")

// Ensure solver implements interface.
var _ zen.Solver = (*Solver)(nil)

// Solver represents a solver that uses an embedded Z3 solver.
type Solver struct {
	ctx     *Context
	logger  *zap.Logger
	timeout time.Duration
	stats   Stats
}

// SolverOption configures a Solver.
type SolverOption func(*Solver)

// WithLogger sets the solver logger. Defaults to the context logger.
func WithLogger(logger *zap.Logger) SolverOption {
	return func(s *Solver) { s.logger = logger }
}

// WithTimeout bounds each check. Zero means no limit.
func WithTimeout(d time.Duration) SolverOption {
	return func(s *Solver) { s.timeout = d }
}

// NewSolver returns a new instance of Solver for expressions built in ctx.
func NewSolver(ctx *zen.Context, opts ...SolverOption) *Solver {
	s := &Solver{
		ctx:    NewContext(ctx),
		logger: ctx.Logger(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Close deletes the underlying Z3 context.
func (s *Solver) Close() error {
	return s.ctx.Close()
}

// Stats returns statistics for the solver.
func (s *Solver) Stats() Stats {
	return s.stats
}

// Solve implements zen.Solver.
func (s *Solver) Solve(constraints []*zen.Expr, vars []*zen.Expr) (satisfiable bool, values []*zen.Expr, err error) {
	t := time.Now()
	defer func() {
		s.stats.SolveN++
		s.stats.SolveTime += time.Since(t)
		s.logger.Debug("z3 solve",
			zap.Int("constraints", len(constraints)),
			zap.Int("vars", len(vars)),
			zap.Bool("satisfiable", satisfiable),
			zap.Duration("elapsed", time.Since(t)),
			zap.Error(err),
		)
	}()

	solver := C.Z3_mk_solver(s.ctx.raw)
	if err := s.ctx.err("Z3_mk_solver"); err != nil {
		return false, nil, err
	}
	C.Z3_solver_inc_ref(s.ctx.raw, solver)
	defer C.Z3_solver_dec_ref(s.ctx.raw, solver)

	if s.timeout > 0 {
		if err := s.ctx.setTimeout(solver, s.timeout); err != nil {
			return false, nil, err
		}
	}

	// Assert constraints, then the validity of every variable they mention.
	assert := func(ast C.Z3_ast) error {
		C.Z3_solver_assert(s.ctx.raw, solver, ast)
		return s.ctx.err("Z3_solver_assert")
	}
	for _, constraint := range constraints {
		ast, err := s.ctx.toAST(constraint)
		if err != nil {
			return false, nil, err
		} else if err := assert(ast); err != nil {
			return false, nil, err
		}
	}
	for _, v := range zen.FindVars(append(constraints[:len(constraints):len(constraints)], vars...)...) {
		if !needsWellFormed(v.Type) {
			continue
		}
		x, err := s.ctx.toAST(v)
		if err != nil {
			return false, nil, err
		}
		wf, err := s.ctx.wellFormed(v.Type, x)
		if err != nil {
			return false, nil, err
		} else if err := assert(wf); err != nil {
			return false, nil, err
		}
	}

	// Check equations with the solver.
	// Exit immediately if unsatisfiable or the solver encountered an error.
	ret := C.Z3_solver_check(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_check"); err != nil {
		return false, nil, err
	} else if ret == C.Z3_L_FALSE {
		return false, nil, nil
	} else if ret == C.Z3_L_UNDEF {
		reason := C.GoString(C.Z3_solver_get_reason_unknown(s.ctx.raw, solver))
		switch {
		case strings.Contains(reason, "timeout"):
			return false, nil, zen.ErrSolverTimeout
		case strings.Contains(reason, "canceled"):
			return false, nil, zen.ErrSolverCanceled
		case strings.Contains(reason, "(resource limits reached)"):
			return false, nil, zen.ErrSolverResourceLimit
		case strings.Contains(reason, "unknown"), strings.Contains(reason, "incomplete"):
			return false, nil, zen.ErrSolverUnknown
		default:
			return false, nil, fmt.Errorf("z3: %s", reason)
		}
	} else if len(vars) == 0 {
		return true, nil, nil // no variables, ignore model
	}

	// Calculate a model for the given formula.
	model := C.Z3_solver_get_model(s.ctx.raw, solver)
	if err := s.ctx.err("Z3_solver_get_model"); err != nil {
		return true, nil, err
	}
	C.Z3_model_inc_ref(s.ctx.raw, model)
	defer C.Z3_model_dec_ref(s.ctx.raw, model)

	dec, err := s.ctx.newDecoder(model, constraints)
	if err != nil {
		return true, nil, err
	}
	bindings := make(map[*zen.Expr]*zen.Expr)
	for _, v := range zen.FindVars(append(constraints[:len(constraints):len(constraints)], vars...)...) {
		x, err := s.ctx.toAST(v)
		if err != nil {
			return true, nil, err
		}
		if bindings[v], err = dec.decode(v.Type, x); err != nil {
			return true, nil, err
		}
	}

	// Decoded values must satisfy the constraints they were solved for.
	for _, constraint := range constraints {
		if x, err := s.ctx.zctx.Evaluate(constraint, bindings); err != nil {
			return true, nil, err
		} else if !x.IsTrue() {
			return true, nil, fmt.Errorf("%w: decoded model violates %s", ErrInvalidModel, constraint)
		}
	}

	values = make([]*zen.Expr, len(vars))
	for i, v := range vars {
		values[i] = bindings[v]
	}
	return true, values, nil
}

// Context represents a Z3 context object that is used for constructing
// expressions. Sorts and lowered expressions are cached for the lifetime of
// the context.
type Context struct {
	raw   C.Z3_context
	zctx  *zen.Context
	sorts map[string]*sort
	asts  *cache.Finite[uint64, C.Z3_ast]
	bound int // quantifier variable counter
}

// NewContext returns a new instance of Context.
func NewContext(zctx *zen.Context) *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{
		raw:   raw,
		zctx:  zctx,
		sorts: make(map[string]*sort),
		asts:  cache.New[uint64, C.Z3_ast](zctx.CacheSize()),
	}
}

// Close deletes the underlying Z3 context.
func (ctx *Context) Close() error {
	C.Z3_del_context(ctx.raw)
	return nil
}

// err returns the error for the last API call. Returns nil if last call was successful.
func (ctx *Context) err(op string) error {
	if code := C.Z3_get_error_code(ctx.raw); code != C.Z3_OK {
		return &Error{Code: int(code), Op: op, Message: C.GoString(C.Z3_get_error_msg(ctx.raw, code))}
	}
	return nil
}

func (ctx *Context) symbol(name string) C.Z3_symbol {
	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	return C.Z3_mk_string_symbol(ctx.raw, cname)
}

func (ctx *Context) setTimeout(solver C.Z3_solver, d time.Duration) error {
	params := C.Z3_mk_params(ctx.raw)
	C.Z3_params_inc_ref(ctx.raw, params)
	defer C.Z3_params_dec_ref(ctx.raw, params)

	C.Z3_params_set_uint(ctx.raw, params, ctx.symbol("timeout"), C.uint(d.Milliseconds()))
	C.Z3_solver_set_params(ctx.raw, solver, params)
	return ctx.err("Z3_solver_set_params")
}

func (ctx *Context) astToString(ast C.Z3_ast) string {
	return C.GoString(C.Z3_ast_to_string(ctx.raw, ast))
}

// Error represents an error from the Z3 API.
type Error struct {
	Code    int
	Op      string
	Message string
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s (%d)", e.Op, e.Message, e.Code)
}

// Possible error codes.
const (
	ErrorCodeOK = iota
	ErrorCodeSortError
	ErrorCodeIOB
	ErrorCodeInvalidArg
	ErrorCodeParserError
	ErrorCodeNoParser
	ErrorCodeInvalidPattern
	ErrorCodeMemoutFail
	ErrorCodeFileAccessError
	ErrorCodeInternalFatal
	ErrorCodeInvalidUsage
	ErrorCodeDecRefError
	ErrorCodeException
)

// Stats holds solver statistics.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
