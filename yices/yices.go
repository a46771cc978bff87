//go:build yices

// Package yices implements a refine.Backend on top of the Yices 2 SMT solver.
//
// Yices keeps a single global term table, so only one Backend may be open at
// a time. The solver session in package refine already enforces this.
package yices

import (
	"fmt"
	"time"

	"github.com/benbjohnson/refine"
	yices2 "github.com/ianamason/yices2_go_bindings/yices_api"
	"github.com/pkg/errors"
)

// Ensure backend implements interface.
var _ refine.Backend = (*Backend)(nil)

// Backend represents a decision procedure using a Yices context.
type Backend struct {
	ctx   yices2.ContextT
	model *yices2.ModelT

	// Maximum time spent in a single check. Zero means no limit.
	Timeout time.Duration

	stats Stats
}

// New initializes Yices & returns a new backend.
func New() (*Backend, error) {
	yices2.Init()

	var cfg yices2.ConfigT
	yices2.InitConfig(&cfg)
	defer yices2.CloseConfig(&cfg)
	if code := yices2.DefaultConfigForLogic(cfg, "QF_BV"); code < 0 {
		yices2.Exit()
		return nil, newError("DefaultConfigForLogic")
	}

	b := &Backend{}
	yices2.InitContext(cfg, &b.ctx)
	return b, nil
}

// Factory returns a refine.BackendFactory creating Yices backends.
func Factory(timeout time.Duration) refine.BackendFactory {
	return func() (refine.Backend, error) {
		b, err := New()
		if err != nil {
			return nil, err
		}
		b.Timeout = timeout
		return b, nil
	}
}

// Close frees the context & shuts down Yices.
func (b *Backend) Close() error {
	b.releaseModel()
	yices2.CloseContext(&b.ctx)
	yices2.Exit()
	return nil
}

// Stats returns statistics for the backend.
func (b *Backend) Stats() Stats {
	return b.stats
}

// Push opens a new assertion scope.
func (b *Backend) Push() error {
	if yices2.Push(b.ctx) < 0 {
		return newError("Push")
	}
	return nil
}

// Pop discards the innermost assertion scope.
func (b *Backend) Pop() error {
	if yices2.Pop(b.ctx) < 0 {
		return newError("Pop")
	}
	return nil
}

// Assert adds c to the current scope.
func (b *Backend) Assert(c refine.Clause) error {
	t, err := clauseTerm(c)
	if err != nil {
		return err
	}
	if yices2.AssertFormula(b.ctx, t) < 0 {
		return newError("AssertFormula")
	}
	return nil
}

// Check returns Valid if c holds in every model of the asserted clauses.
func (b *Backend) Check(c refine.Clause) (_ refine.Validity, err error) {
	t := time.Now()
	defer func() {
		b.stats.SolveN++
		b.stats.SolveTime += time.Since(t)
	}()

	term, err := clauseTerm(c)
	if err != nil {
		return refine.Unknown, err
	}

	if err := b.Push(); err != nil {
		return refine.Unknown, err
	}
	defer func() {
		if e := b.Pop(); e != nil && err == nil {
			err = e
		}
	}()

	if yices2.AssertFormula(b.ctx, yices2.Not(term)) < 0 {
		return refine.Unknown, newError("AssertFormula")
	}

	if b.Timeout > 0 {
		timer := time.AfterFunc(b.Timeout, func() { yices2.StopSearch(b.ctx) })
		defer timer.Stop()
	}

	b.releaseModel()
	switch status := yices2.CheckContext(b.ctx, yices2.ParamT{}); status {
	case yices2.StatusUnsat:
		return refine.Valid, nil
	case yices2.StatusSat:
		b.model = yices2.GetModel(b.ctx, 1)
		return refine.Invalid, nil
	case yices2.StatusInterrupted:
		return refine.Unknown, refine.ErrSolverTimeout
	case yices2.StatusError:
		return refine.Unknown, newError("CheckContext")
	default:
		return refine.Unknown, errors.Wrapf(refine.ErrSolverUnknown, "yices: status %d", status)
	}
}

func (b *Backend) releaseModel() {
	if b.model != nil {
		yices2.CloseModel(b.model)
		b.model = nil
	}
}

// Value returns the value of v in the counterexample of the last check.
func (b *Backend) Value(v *refine.VarExpr) (uint64, bool) {
	if b.model == nil {
		return 0, false
	}

	bits := make([]int32, v.Width)
	if yices2.GetBvValue(*b.model, symbol(v.Name, v.Width), bits) < 0 {
		return 0, false
	}

	var value uint64
	for i, bit := range bits {
		if bit != 0 {
			value |= 1 << uint(i)
		}
	}
	return value, true
}

// clauseTerm returns a boolean term for a clause.
func clauseTerm(c refine.Clause) (yices2.TermT, error) {
	switch c := c.(type) {
	case *refine.BoolExpr:
		lhs, err := exprTerm(c.LHS)
		if err != nil {
			return yices2.NullTerm, err
		}
		rhs, err := exprTerm(c.RHS)
		if err != nil {
			return yices2.NullTerm, err
		}
		return compare(c.Pred, lhs, rhs)

	case *refine.NotClause:
		src, err := clauseTerm(c.Clause)
		if err != nil {
			return yices2.NullTerm, err
		}
		return yices2.Not(src), nil

	case *refine.BinaryClause:
		lhs, err := clauseTerm(c.LHS)
		if err != nil {
			return yices2.NullTerm, err
		}
		rhs, err := clauseTerm(c.RHS)
		if err != nil {
			return yices2.NullTerm, err
		}
		switch c.Op {
		case refine.CLAUSE_AND:
			return yices2.And2(lhs, rhs), nil
		case refine.CLAUSE_OR:
			return yices2.Or2(lhs, rhs), nil
		case refine.CLAUSE_XOR:
			return yices2.Xor2(lhs, rhs), nil
		}
		return yices2.NullTerm, errors.Wrapf(refine.ErrInvalidOperator, "yices: %s", c.Op)

	default:
		return yices2.NullTerm, fmt.Errorf("yices: invalid clause type: %T", c)
	}
}

// exprTerm returns a bit-vector term for an expression.
func exprTerm(expr refine.Expr) (yices2.TermT, error) {
	switch expr := expr.(type) {
	case *refine.ConstantExpr:
		return yices2.BvconstUint64(uint32(expr.Width), expr.Value), nil

	case *refine.VarExpr:
		return symbol(expr.Name, expr.Width), nil

	case *refine.UnaryExpr:
		src, err := exprTerm(expr.Src)
		if err != nil {
			return yices2.NullTerm, err
		}
		sw := uint32(refine.ExprWidth(expr.Src))

		switch expr.Op {
		case refine.SEXT:
			return yices2.SignExtend(src, uint32(expr.Width)-sw), nil
		case refine.ZEXT:
			return yices2.ZeroExtend(src, uint32(expr.Width)-sw), nil
		case refine.TRUNC:
			return yices2.Bvextract(src, 0, uint32(expr.Width)-1), nil
		case refine.NOT:
			return yices2.Bvnot(src), nil
		case refine.NEG:
			return yices2.Bvneg(src), nil
		}
		return yices2.NullTerm, errors.Wrapf(refine.ErrInvalidOperator, "yices: %s", expr.Op)

	case *refine.BinaryExpr:
		lhs, err := exprTerm(expr.LHS)
		if err != nil {
			return yices2.NullTerm, err
		}
		rhs, err := exprTerm(expr.RHS)
		if err != nil {
			return yices2.NullTerm, err
		}
		return binaryTerm(expr.Op, lhs, rhs)

	default:
		return yices2.NullTerm, fmt.Errorf("yices: invalid expression type: %T", expr)
	}
}

func binaryTerm(op refine.BinaryOp, lhs, rhs yices2.TermT) (yices2.TermT, error) {
	if op.IsCompare() {
		cond, err := compare(op, lhs, rhs)
		if err != nil {
			return yices2.NullTerm, err
		}
		return yices2.Ite(cond, yices2.BvconstUint64(1, 1), yices2.BvconstUint64(1, 0)), nil
	}

	switch op {
	case refine.ADD:
		return yices2.Bvadd(lhs, rhs), nil
	case refine.SUB:
		return yices2.Bvsub(lhs, rhs), nil
	case refine.MUL:
		return yices2.Bvmul(lhs, rhs), nil
	case refine.UDIV:
		return yices2.Bvdiv(lhs, rhs), nil
	case refine.SDIV:
		return yices2.Bvsdiv(lhs, rhs), nil
	case refine.UREM:
		return yices2.Bvrem(lhs, rhs), nil
	case refine.SREM:
		return yices2.Bvsrem(lhs, rhs), nil
	case refine.AND:
		return yices2.Bvand2(lhs, rhs), nil
	case refine.OR:
		return yices2.Bvor2(lhs, rhs), nil
	case refine.XOR:
		return yices2.Bvxor2(lhs, rhs), nil
	case refine.SHL:
		return yices2.Bvshl(lhs, rhs), nil
	case refine.LSHR:
		return yices2.Bvlshr(lhs, rhs), nil
	case refine.ASHR:
		return yices2.Bvashr(lhs, rhs), nil
	}
	return yices2.NullTerm, errors.Wrapf(refine.ErrInvalidOperator, "yices: %s", op)
}

func compare(op refine.BinaryOp, lhs, rhs yices2.TermT) (yices2.TermT, error) {
	switch op {
	case refine.EQ:
		return yices2.BveqAtom(lhs, rhs), nil
	case refine.NE:
		return yices2.BvneqAtom(lhs, rhs), nil
	case refine.ULT:
		return yices2.BvltAtom(lhs, rhs), nil
	case refine.ULE:
		return yices2.BvleAtom(lhs, rhs), nil
	case refine.UGT:
		return yices2.BvgtAtom(lhs, rhs), nil
	case refine.UGE:
		return yices2.BvgeAtom(lhs, rhs), nil
	case refine.SLT:
		return yices2.BvsltAtom(lhs, rhs), nil
	case refine.SLE:
		return yices2.BvsleAtom(lhs, rhs), nil
	case refine.SGT:
		return yices2.BvsgtAtom(lhs, rhs), nil
	case refine.SGE:
		return yices2.BvsgeAtom(lhs, rhs), nil
	}
	return yices2.NullTerm, errors.Wrapf(refine.ErrInvalidPredicate, "yices: %s", op)
}

// symbol returns the uninterpreted term named name, creating it on first use.
func symbol(name string, width uint) yices2.TermT {
	if t := yices2.GetTermByName(name); t != yices2.NullTerm {
		return t
	}
	t := yices2.NewUninterpretedTerm(yices2.BvType(uint32(width)))
	yices2.SetTermName(t, name)
	return t
}

// Error represents an error reported by Yices.
type Error struct {
	Op      string
	Message string
}

func newError(op string) *Error {
	return &Error{Op: op, Message: yices2.ErrorString()}
}

// Error returns the error as a string.
func (e *Error) Error() string {
	return fmt.Sprintf("yices: %s: %s", e.Op, e.Message)
}

// Stats represents statistics for the backend.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
