// Package bitblast implements a refine.Backend by translating bit-vector
// formulas into a boolean circuit and solving it with the gini SAT solver.
package bitblast

import (
	"fmt"
	"time"

	"github.com/benbjohnson/refine"
	"github.com/go-air/gini"
	"github.com/go-air/gini/logic"
	"github.com/go-air/gini/z"
	"github.com/pkg/errors"
)

// Ensure backend implements interface.
var _ refine.Backend = (*Backend)(nil)

// Backend represents a bit-blasting decision procedure. Each bit of a
// bit-vector is a literal in a shared circuit; asserted formulas are kept
// per scope and the circuit is converted to CNF on every check.
type Backend struct {
	c      *logic.C
	vars   map[string][]z.Lit
	scopes [][]z.Lit

	// Solver & circuit variables from the last satisfiable check.
	model     *gini.Gini
	modelVars map[string][]z.Lit

	// Timeout bounds each check. Zero means no limit.
	Timeout time.Duration

	stats Stats
}

// New returns a new instance of Backend.
func New() *Backend {
	return &Backend{
		c:      logic.NewC(),
		vars:   make(map[string][]z.Lit),
		scopes: make([][]z.Lit, 1),
	}
}

// Factory returns a refine.BackendFactory creating backends with a timeout.
func Factory(timeout time.Duration) refine.BackendFactory {
	return func() (refine.Backend, error) {
		b := New()
		b.Timeout = timeout
		return b, nil
	}
}

// Stats returns statistics for the backend.
func (b *Backend) Stats() Stats {
	return b.stats
}

// Close releases the circuit.
func (b *Backend) Close() error {
	b.c, b.vars, b.scopes, b.model = nil, nil, nil, nil
	return nil
}

// Push opens a new assertion scope.
func (b *Backend) Push() error {
	b.scopes = append(b.scopes, nil)
	return nil
}

// Pop discards the assertions of the innermost scope.
func (b *Backend) Pop() error {
	if len(b.scopes) <= 1 {
		return errors.New("bitblast: pop without push")
	}
	b.scopes = b.scopes[:len(b.scopes)-1]
	return nil
}

// Assert adds c to the innermost scope.
func (b *Backend) Assert(c refine.Clause) error {
	m, err := b.clause(c)
	if err != nil {
		return err
	}
	b.scopes[len(b.scopes)-1] = append(b.scopes[len(b.scopes)-1], m)
	return nil
}

// Check returns Valid if c holds in every model of the asserted formulas,
// and Invalid if a counterexample exists.
func (b *Backend) Check(c refine.Clause) (refine.Validity, error) {
	t := time.Now()
	defer func() {
		b.stats.SolveN++
		b.stats.SolveTime += time.Since(t)
	}()

	m, err := b.clause(c)
	if err != nil {
		return refine.Unknown, err
	}

	g := gini.New()
	b.c.ToCnf(g)
	for _, scope := range b.scopes {
		for _, root := range scope {
			g.Add(root)
			g.Add(z.LitNull)
		}
	}
	g.Assume(m.Not())

	switch b.solve(g) {
	case 1:
		b.model, b.modelVars = g, b.snapshotVars()
		return refine.Invalid, nil
	case -1:
		b.model = nil
		return refine.Valid, nil
	default:
		b.model = nil
		return refine.Unknown, refine.ErrSolverTimeout
	}
}

func (b *Backend) solve(g *gini.Gini) int {
	if b.Timeout <= 0 {
		return g.Solve()
	}
	return g.GoSolve().Try(b.Timeout)
}

func (b *Backend) snapshotVars() map[string][]z.Lit {
	m := make(map[string][]z.Lit, len(b.vars))
	for k, v := range b.vars {
		m[k] = v
	}
	return m
}

// Value returns the value of v in the last counterexample.
func (b *Backend) Value(v *refine.VarExpr) (uint64, bool) {
	if b.model == nil {
		return 0, false
	}
	bits, ok := b.modelVars[v.Name]
	if !ok {
		return 0, false
	}
	var value uint64
	for i, bit := range bits {
		if b.model.Value(bit) {
			value |= 1 << uint(i)
		}
	}
	return value, true
}

// clause returns the literal representing the truth of c.
func (b *Backend) clause(c refine.Clause) (z.Lit, error) {
	switch c := c.(type) {
	case *refine.BoolExpr:
		lhs, err := b.expr(c.LHS)
		if err != nil {
			return z.LitNull, err
		}
		rhs, err := b.expr(c.RHS)
		if err != nil {
			return z.LitNull, err
		}
		return b.compare(c.Pred, lhs, rhs)

	case *refine.NotClause:
		m, err := b.clause(c.Clause)
		if err != nil {
			return z.LitNull, err
		}
		return m.Not(), nil

	case *refine.BinaryClause:
		lhs, err := b.clause(c.LHS)
		if err != nil {
			return z.LitNull, err
		}
		rhs, err := b.clause(c.RHS)
		if err != nil {
			return z.LitNull, err
		}
		switch c.Op {
		case refine.CLAUSE_AND:
			return b.c.And(lhs, rhs), nil
		case refine.CLAUSE_OR:
			return b.c.Or(lhs, rhs), nil
		case refine.CLAUSE_XOR:
			return b.xor(lhs, rhs), nil
		}
		return z.LitNull, errors.Wrapf(refine.ErrInvalidOperator, "bitblast: %s", c.Op)

	default:
		return z.LitNull, fmt.Errorf("bitblast: invalid clause type: %T", c)
	}
}

// expr returns the bits of e, least significant first.
func (b *Backend) expr(e refine.Expr) ([]z.Lit, error) {
	switch e := e.(type) {
	case *refine.ConstantExpr:
		return b.constant(e.Value, e.Width), nil

	case *refine.VarExpr:
		if bits, ok := b.vars[e.Name]; ok {
			if uint(len(bits)) != e.Width {
				return nil, errors.Wrapf(refine.ErrWidthMismatch, "bitblast: %s: %d != %d", e.Name, len(bits), e.Width)
			}
			return bits, nil
		}
		bits := make([]z.Lit, e.Width)
		for i := range bits {
			bits[i] = b.c.Lit()
		}
		b.vars[e.Name] = bits
		return bits, nil

	case *refine.UnaryExpr:
		src, err := b.expr(e.Src)
		if err != nil {
			return nil, err
		}
		return b.unary(e.Op, src, e.Width)

	case *refine.BinaryExpr:
		lhs, err := b.expr(e.LHS)
		if err != nil {
			return nil, err
		}
		rhs, err := b.expr(e.RHS)
		if err != nil {
			return nil, err
		}
		if e.Op.IsCompare() {
			m, err := b.compare(e.Op, lhs, rhs)
			if err != nil {
				return nil, err
			}
			return []z.Lit{m}, nil
		}
		return b.binary(e.Op, lhs, rhs)

	default:
		return nil, fmt.Errorf("bitblast: invalid expression type: %T", e)
	}
}

func (b *Backend) constant(value uint64, width uint) []z.Lit {
	bits := make([]z.Lit, width)
	for i := range bits {
		if value&(1<<uint(i)) != 0 {
			bits[i] = b.c.T
		} else {
			bits[i] = b.c.F
		}
	}
	return bits
}

func (b *Backend) unary(op refine.UnaryOp, src []z.Lit, width uint) ([]z.Lit, error) {
	switch op {
	case refine.ZEXT:
		return b.extend(src, width, b.c.F), nil
	case refine.SEXT:
		return b.extend(src, width, src[len(src)-1]), nil
	case refine.TRUNC:
		return src[:width], nil
	case refine.NOT:
		return b.not(src), nil
	case refine.NEG:
		return b.neg(src), nil
	default:
		return nil, errors.Wrapf(refine.ErrInvalidOperator, "bitblast: %s", op)
	}
}

func (b *Backend) binary(op refine.BinaryOp, lhs, rhs []z.Lit) ([]z.Lit, error) {
	if len(lhs) != len(rhs) {
		return nil, errors.Wrapf(refine.ErrWidthMismatch, "bitblast: %s: %d != %d", op, len(lhs), len(rhs))
	}

	switch op {
	case refine.ADD:
		sum, _ := b.add(lhs, rhs, b.c.F)
		return sum, nil
	case refine.SUB:
		return b.sub(lhs, rhs), nil
	case refine.MUL:
		return b.mul(lhs, rhs), nil
	case refine.UDIV:
		q, _ := b.udivrem(lhs, rhs)
		return q, nil
	case refine.UREM:
		_, r := b.udivrem(lhs, rhs)
		return r, nil
	case refine.SDIV:
		return b.sdiv(lhs, rhs), nil
	case refine.SREM:
		return b.srem(lhs, rhs), nil
	case refine.AND:
		return b.bitwise(lhs, rhs, b.c.And), nil
	case refine.OR:
		return b.bitwise(lhs, rhs, b.c.Or), nil
	case refine.XOR:
		return b.bitwise(lhs, rhs, b.xor), nil
	case refine.SHL:
		return b.shift(lhs, rhs, shiftLeft), nil
	case refine.LSHR:
		return b.shift(lhs, rhs, shiftLogicalRight), nil
	case refine.ASHR:
		return b.shift(lhs, rhs, shiftArithmeticRight), nil
	default:
		return nil, errors.Wrapf(refine.ErrInvalidOperator, "bitblast: %s", op)
	}
}

func (b *Backend) compare(op refine.BinaryOp, lhs, rhs []z.Lit) (z.Lit, error) {
	if len(lhs) != len(rhs) {
		return z.LitNull, errors.Wrapf(refine.ErrWidthMismatch, "bitblast: %s: %d != %d", op, len(lhs), len(rhs))
	}

	switch op {
	case refine.EQ:
		return b.eq(lhs, rhs), nil
	case refine.NE:
		return b.eq(lhs, rhs).Not(), nil
	case refine.ULT:
		return b.ult(lhs, rhs), nil
	case refine.ULE:
		return b.ult(rhs, lhs).Not(), nil
	case refine.UGT:
		return b.ult(rhs, lhs), nil
	case refine.UGE:
		return b.ult(lhs, rhs).Not(), nil
	case refine.SLT:
		return b.slt(lhs, rhs), nil
	case refine.SLE:
		return b.slt(rhs, lhs).Not(), nil
	case refine.SGT:
		return b.slt(rhs, lhs), nil
	case refine.SGE:
		return b.slt(lhs, rhs).Not(), nil
	default:
		return z.LitNull, errors.Wrapf(refine.ErrInvalidPredicate, "bitblast: %s", op)
	}
}

// Stats represents statistics for the backend.
type Stats struct {
	SolveN    int
	SolveTime time.Duration
}
