//go:build z3

// Package z3 implements a refine.Backend on top of an embedded Z3 solver.
package z3

import (
	"fmt"
	"strings"
	"time"
	"unsafe"

	"github.com/benbjohnson/refine"
	"github.com/pkg/errors"
)

/*
#cgo LDFLAGS: -lz3
#include <z3.h>
#include <stdlib.h>
#include <stdio.h>
*/
import "C"

// Ensure backend implements interface.
var _ refine.Backend = (*Backend)(nil)

// Backend represents a decision procedure using an embedded Z3 solver.
type Backend struct {
	ctx    *Context
	solver C.Z3_solver
	model  C.Z3_model
	stats  Stats
}

// New returns a new instance of Backend. A non-zero timeout bounds each check.
func New(timeout time.Duration) (*Backend, error) {
	ctx := NewContext()

	solver := C.Z3_mk_solver(ctx.raw)
	if err := ctx.err("Z3_mk_solver"); err != nil {
		ctx.Close()
		return nil, err
	}
	C.Z3_solver_inc_ref(ctx.raw, solver)

	if timeout > 0 {
		if err := ctx.setTimeout(solver, timeout); err != nil {
			C.Z3_solver_dec_ref(ctx.raw, solver)
			ctx.Close()
			return nil, err
		}
	}
	return &Backend{ctx: ctx, solver: solver}, nil
}

// Factory returns a refine.BackendFactory creating Z3 backends.
func Factory(timeout time.Duration) refine.BackendFactory {
	return func() (refine.Backend, error) {
		return New(timeout)
	}
}

// Close deletes the underlying Z3 solver & context.
func (b *Backend) Close() error {
	b.releaseModel()
	C.Z3_solver_dec_ref(b.ctx.raw, b.solver)
	return b.ctx.Close()
}

// Stats returns statistics for the backend.
func (b *Backend) Stats() Stats {
	return b.stats
}

// Push opens a new assertion scope.
func (b *Backend) Push() error {
	C.Z3_solver_push(b.ctx.raw, b.solver)
	return b.ctx.err("Z3_solver_push")
}

// Pop discards the innermost assertion scope.
func (b *Backend) Pop() error {
	C.Z3_solver_pop(b.ctx.raw, b.solver, 1)
	return b.ctx.err("Z3_solver_pop")
}

// Assert adds c to the current scope.
func (b *Backend) Assert(c refine.Clause) error {
	ast, err := b.ctx.toClauseAST(c)
	if err != nil {
		return err
	}
	C.Z3_solver_assert(b.ctx.raw, b.solver, ast)
	return b.ctx.err("Z3_solver_assert")
}

// Check returns Valid if c holds in every model of the asserted clauses.
func (b *Backend) Check(c refine.Clause) (_ refine.Validity, err error) {
	t := time.Now()
	defer func() {
		b.stats.SolveN++
		b.stats.SolveTime += time.Since(t)
	}()

	ast, err := b.ctx.toClauseAST(c)
	if err != nil {
		return refine.Unknown, err
	}
	negated := C.Z3_mk_not(b.ctx.raw, ast)
	if err := b.ctx.err("Z3_mk_not"); err != nil {
		return refine.Unknown, err
	}

	// Look for a model in which the clause does not hold.
	if err := b.Push(); err != nil {
		return refine.Unknown, err
	}
	defer func() {
		if e := b.Pop(); e != nil && err == nil {
			err = e
		}
	}()

	C.Z3_solver_assert(b.ctx.raw, b.solver, negated)
	if err := b.ctx.err("Z3_solver_assert"); err != nil {
		return refine.Unknown, err
	}

	b.releaseModel()
	ret := C.Z3_solver_check(b.ctx.raw, b.solver)
	if err := b.ctx.err("Z3_solver_check"); err != nil {
		return refine.Unknown, err
	}

	switch ret {
	case C.Z3_L_FALSE:
		return refine.Valid, nil
	case C.Z3_L_TRUE:
		b.model = C.Z3_solver_get_model(b.ctx.raw, b.solver)
		if err := b.ctx.err("Z3_solver_get_model"); err != nil {
			b.model = nil
			return refine.Invalid, err
		}
		C.Z3_model_inc_ref(b.ctx.raw, b.model)
		return refine.Invalid, nil
	}

	reason := C.GoString(C.Z3_solver_get_reason_unknown(b.ctx.raw, b.solver))
	switch {
	case strings.Contains(reason, "timeout"):
		return refine.Unknown, refine.ErrSolverTimeout
	case strings.Contains(reason, "canceled"):
		return refine.Unknown, refine.ErrSolverCanceled
	case strings.Contains(reason, "(resource limits reached)"):
		return refine.Unknown, refine.ErrSolverResourceLimit
	case strings.Contains(reason, "unknown"):
		return refine.Unknown, refine.ErrSolverUnknown
	default:
		return refine.Unknown, fmt.Errorf("z3: %s", reason)
	}
}

func (b *Backend) releaseModel() {
	if b.model != nil {
		C.Z3_model_dec_ref(b.ctx.raw, b.model)
		b.model = nil
	}
}

// Value returns the value of v in the counterexample of the last check.
func (b *Backend) Value(v *refine.VarExpr) (uint64, bool) {
	if b.model == nil {
		return 0, false
	}
	sym, err := b.ctx.makeVar(v.Name, v.Width)
	if err != nil {
		return 0, false
	}

	var result C.Z3_ast
	if !C.Z3_model_eval(b.ctx.raw, b.model, sym, C.bool(true), &result) {
		return 0, false
	}
	var value C.uint64_t
	if !C.Z3_get_numeral_uint64(b.ctx.raw, result, &value) {
		return 0, false
	}
	return uint64(value), true
}

// Context represents a Z3 context object that is used for constructing expressions.
type Context struct {
	raw C.Z3_context
}

// NewContext returns a new instance of Context.
func NewContext() *Context {
	config := C.Z3_mk_config()
	defer C.Z3_del_config(config)

	raw := C.Z3_mk_context(config)
	C.Z3_set_error_handler(raw, nil)
	C.Z3_set_ast_print_mode(raw, C.Z3_PRINT_SMTLIB2_COMPLIANT)
	return &Context{raw: raw}
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

func (ctx *Context) setTimeout(solver C.Z3_solver, timeout time.Duration) error {
	params := C.Z3_mk_params(ctx.raw)
	C.Z3_params_inc_ref(ctx.raw, params)
	defer C.Z3_params_dec_ref(ctx.raw, params)

	cname := C.CString("timeout")
	defer C.free(unsafe.Pointer(cname))
	C.Z3_params_set_uint(ctx.raw, params, C.Z3_mk_string_symbol(ctx.raw, cname), C.uint(timeout/time.Millisecond))
	C.Z3_solver_set_params(ctx.raw, solver, params)
	return ctx.err("Z3_solver_set_params")
}

// toClauseAST returns a boolean Z3_ast for a clause.
func (ctx *Context) toClauseAST(c refine.Clause) (C.Z3_ast, error) {
	switch c := c.(type) {
	case *refine.BoolExpr:
		lhs, err := ctx.toAST(c.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ctx.toAST(c.RHS)
		if err != nil {
			return nil, err
		}
		return ctx.compare(c.Pred, lhs, rhs)

	case *refine.NotClause:
		src, err := ctx.toClauseAST(c.Clause)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, src), ctx.err("Z3_mk_not")

	case *refine.BinaryClause:
		lhs, err := ctx.toClauseAST(c.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := ctx.toClauseAST(c.RHS)
		if err != nil {
			return nil, err
		}

		args := [2]C.Z3_ast{lhs, rhs}
		switch c.Op {
		case refine.CLAUSE_AND:
			return C.Z3_mk_and(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_and")
		case refine.CLAUSE_OR:
			return C.Z3_mk_or(ctx.raw, 2, &args[0]), ctx.err("Z3_mk_or")
		case refine.CLAUSE_XOR:
			return C.Z3_mk_xor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_xor")
		}
		return nil, errors.Wrapf(refine.ErrInvalidOperator, "z3: %s", c.Op)

	default:
		return nil, fmt.Errorf("z3.Context.toClauseAST: invalid clause type: %T", c)
	}
}

// toAST returns a bit-vector Z3_ast for an expression. Width-1 values are
// one-bit vectors rather than booleans.
func (ctx *Context) toAST(expr refine.Expr) (C.Z3_ast, error) {
	switch expr := expr.(type) {
	case *refine.ConstantExpr:
		return ctx.makeUint64(expr.Width, expr.Value)
	case *refine.VarExpr:
		return ctx.makeVar(expr.Name, expr.Width)
	case *refine.UnaryExpr:
		return ctx.toUnaryAST(expr)
	case *refine.BinaryExpr:
		return ctx.toBinaryAST(expr)
	default:
		return nil, fmt.Errorf("z3.Context.toAST: invalid expression type: %T", expr)
	}
}

func (ctx *Context) toUnaryAST(expr *refine.UnaryExpr) (C.Z3_ast, error) {
	src, err := ctx.toAST(expr.Src)
	if err != nil {
		return nil, err
	}
	sw := refine.ExprWidth(expr.Src)

	switch expr.Op {
	case refine.SEXT:
		return C.Z3_mk_sign_ext(ctx.raw, C.uint(expr.Width-sw), src), ctx.err("Z3_mk_sign_ext")
	case refine.ZEXT:
		return C.Z3_mk_zero_ext(ctx.raw, C.uint(expr.Width-sw), src), ctx.err("Z3_mk_zero_ext")
	case refine.TRUNC:
		return C.Z3_mk_extract(ctx.raw, C.uint(expr.Width-1), 0, src), ctx.err("Z3_mk_extract")
	case refine.NOT:
		return C.Z3_mk_bvnot(ctx.raw, src), ctx.err("Z3_mk_bvnot")
	case refine.NEG:
		return C.Z3_mk_bvneg(ctx.raw, src), ctx.err("Z3_mk_bvneg")
	default:
		return nil, errors.Wrapf(refine.ErrInvalidOperator, "z3: %s", expr.Op)
	}
}

func (ctx *Context) toBinaryAST(expr *refine.BinaryExpr) (C.Z3_ast, error) {
	lhs, err := ctx.toAST(expr.LHS)
	if err != nil {
		return nil, err
	}
	rhs, err := ctx.toAST(expr.RHS)
	if err != nil {
		return nil, err
	}

	// Comparisons produce a one-bit vector.
	if expr.Op.IsCompare() {
		cond, err := ctx.compare(expr.Op, lhs, rhs)
		if err != nil {
			return nil, err
		}
		one, err := ctx.makeUint64(1, 1)
		if err != nil {
			return nil, err
		}
		zero, err := ctx.makeUint64(1, 0)
		if err != nil {
			return nil, err
		}
		return C.Z3_mk_ite(ctx.raw, cond, one, zero), ctx.err("Z3_mk_ite")
	}

	switch expr.Op {
	case refine.ADD:
		return C.Z3_mk_bvadd(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvadd")
	case refine.SUB:
		return C.Z3_mk_bvsub(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsub")
	case refine.MUL:
		return C.Z3_mk_bvmul(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvmul")
	case refine.UDIV:
		return C.Z3_mk_bvudiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvudiv")
	case refine.SDIV:
		return C.Z3_mk_bvsdiv(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsdiv")
	case refine.UREM:
		return C.Z3_mk_bvurem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvurem")
	case refine.SREM:
		return C.Z3_mk_bvsrem(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsrem")
	case refine.AND:
		return C.Z3_mk_bvand(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvand")
	case refine.OR:
		return C.Z3_mk_bvor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvor")
	case refine.XOR:
		return C.Z3_mk_bvxor(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvxor")
	case refine.SHL:
		return C.Z3_mk_bvshl(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvshl")
	case refine.LSHR:
		return C.Z3_mk_bvlshr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvlshr")
	case refine.ASHR:
		return C.Z3_mk_bvashr(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvashr")
	default:
		return nil, errors.Wrapf(refine.ErrInvalidOperator, "z3: %s", expr.Op)
	}
}

// compare returns a boolean Z3_ast comparing two bit-vectors.
func (ctx *Context) compare(op refine.BinaryOp, lhs, rhs C.Z3_ast) (C.Z3_ast, error) {
	switch op {
	case refine.EQ:
		return C.Z3_mk_eq(ctx.raw, lhs, rhs), ctx.err("Z3_mk_eq")
	case refine.NE:
		eq := C.Z3_mk_eq(ctx.raw, lhs, rhs)
		if err := ctx.err("Z3_mk_eq"); err != nil {
			return nil, err
		}
		return C.Z3_mk_not(ctx.raw, eq), ctx.err("Z3_mk_not")
	case refine.ULT:
		return C.Z3_mk_bvult(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvult")
	case refine.ULE:
		return C.Z3_mk_bvule(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvule")
	case refine.UGT:
		return C.Z3_mk_bvugt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvugt")
	case refine.UGE:
		return C.Z3_mk_bvuge(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvuge")
	case refine.SLT:
		return C.Z3_mk_bvslt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvslt")
	case refine.SLE:
		return C.Z3_mk_bvsle(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsle")
	case refine.SGT:
		return C.Z3_mk_bvsgt(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsgt")
	case refine.SGE:
		return C.Z3_mk_bvsge(ctx.raw, lhs, rhs), ctx.err("Z3_mk_bvsge")
	default:
		return nil, errors.Wrapf(refine.ErrInvalidPredicate, "z3: %s", op)
	}
}

func (ctx *Context) makeBVSort(width uint) (C.Z3_sort, error) {
	return C.Z3_mk_bv_sort(ctx.raw, C.uint(width)), ctx.err("Z3_mk_bv_sort")
}

func (ctx *Context) makeUint64(width uint, value uint64) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}
	return C.Z3_mk_unsigned_int64(ctx.raw, C.uint64_t(value), t), ctx.err("Z3_mk_unsigned_int64")
}

// makeVar returns the bit-vector constant named name.
func (ctx *Context) makeVar(name string, width uint) (C.Z3_ast, error) {
	t, err := ctx.makeBVSort(width)
	if err != nil {
		return nil, err
	}

	cname := C.CString(name)
	defer C.free(unsafe.Pointer(cname))
	sym := C.Z3_mk_string_symbol(ctx.raw, cname)

	return C.Z3_mk_const(ctx.raw, sym, t), ctx.err("Z3_mk_const")
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

// Stats represents statistics for the backend.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
