package refine

import (
	"encoding/binary"
	"fmt"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/pkg/errors"
)

// Clause represents a boolean combination of comparisons.
type Clause interface {
	String() string
	clause()
}

func (*BinaryClause) clause() {}
func (*BoolExpr) clause()     {}
func (*NotClause) clause()    {}

// BoolExpr is the leaf clause: a comparison of two expressions.
type BoolExpr struct {
	Pred BinaryOp
	LHS  Expr
	RHS  Expr
}

// NewBoolExpr returns a new comparison. Returns ErrInvalidPredicate if pred
// is not a comparison or ErrWidthMismatch if the operand widths differ.
func NewBoolExpr(pred BinaryOp, lhs, rhs Expr) (*BoolExpr, error) {
	if !pred.IsCompare() {
		return nil, errors.Wrapf(ErrInvalidPredicate, "%s", pred)
	} else if lw, rw := ExprWidth(lhs), ExprWidth(rhs); lw != rw {
		return nil, errors.Wrapf(ErrWidthMismatch, "%s: %d != %d", pred, lw, rw)
	}

	if lhs == rhs {
		rhs = CloneExpr(rhs)
	}
	return &BoolExpr{Pred: pred, LHS: lhs, RHS: rhs}, nil
}

// String returns the string representation of the clause.
func (c *BoolExpr) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Pred, c.LHS, c.RHS)
}

// NewTruthClause returns a constant clause that is always v.
func NewTruthClause(v bool) *BoolExpr {
	pred := NE
	if v {
		pred = EQ
	}
	return &BoolExpr{Pred: pred, LHS: NewConstantExpr(0, WidthBool), RHS: NewConstantExpr(0, WidthBool)}
}

// NotClause represents the negation of a clause.
type NotClause struct {
	Clause Clause
}

// NewNotClause returns the negation of c.
func NewNotClause(c Clause) *NotClause {
	return &NotClause{Clause: c}
}

// String returns the string representation of the clause.
func (c *NotClause) String() string {
	return fmt.Sprintf("(NOT %s)", c.Clause)
}

// ClauseOp represents a boolean connective.
type ClauseOp int

// BinaryClause connectives.
const (
	clause_op_begin = ClauseOp(iota)
	CLAUSE_AND
	CLAUSE_OR
	CLAUSE_XOR
	clause_op_end
)

// String returns the string representation of the connective.
func (op ClauseOp) String() string {
	switch op {
	case CLAUSE_AND:
		return "AND"
	case CLAUSE_OR:
		return "OR"
	case CLAUSE_XOR:
		return "XOR"
	default:
		return fmt.Sprintf("ClauseOp<%d>", op)
	}
}

// BinaryClause represents two clauses joined by a connective.
type BinaryClause struct {
	Op  ClauseOp
	LHS Clause
	RHS Clause
}

// NewBinaryClause returns a new instance of BinaryClause. If lhs & rhs are
// the same node then rhs is cloned.
func NewBinaryClause(op ClauseOp, lhs, rhs Clause) (*BinaryClause, error) {
	if op <= clause_op_begin || op >= clause_op_end {
		return nil, errors.Wrapf(ErrInvalidOperator, "clause op %d", int(op))
	}
	if lhs == rhs {
		rhs = CloneClause(rhs)
	}
	return &BinaryClause{Op: op, LHS: lhs, RHS: rhs}, nil
}

// String returns the string representation of the clause.
func (c *BinaryClause) String() string {
	return fmt.Sprintf("(%s %s %s)", c.Op, c.LHS, c.RHS)
}

// NewDisjunction folds clauses together with OR. Returns nil if empty.
func NewDisjunction(clauses ...Clause) Clause {
	return foldClauses(CLAUSE_OR, clauses)
}

// NewConjunction folds clauses together with AND. Returns nil if empty.
func NewConjunction(clauses ...Clause) Clause {
	return foldClauses(CLAUSE_AND, clauses)
}

func foldClauses(op ClauseOp, clauses []Clause) Clause {
	if len(clauses) == 0 {
		return nil
	}
	c := clauses[0]
	for _, other := range clauses[1:] {
		c = &BinaryClause{Op: op, LHS: c, RHS: other}
	}
	return c
}

// CloneClause returns a deep copy of c.
func CloneClause(c Clause) Clause {
	switch c := c.(type) {
	case nil:
		return nil
	case *BoolExpr:
		return &BoolExpr{Pred: c.Pred, LHS: CloneExpr(c.LHS), RHS: CloneExpr(c.RHS)}
	case *NotClause:
		return &NotClause{Clause: CloneClause(c.Clause)}
	case *BinaryClause:
		return &BinaryClause{Op: c.Op, LHS: CloneClause(c.LHS), RHS: CloneClause(c.RHS)}
	default:
		panic("unreachable")
	}
}

// RewriteClause returns a copy of c with every expression leaf replaced by fn(leaf).
func RewriteClause(c Clause, fn func(Expr) Expr) Clause {
	switch c := c.(type) {
	case *BoolExpr:
		return &BoolExpr{Pred: c.Pred, LHS: RewriteExpr(c.LHS, fn), RHS: RewriteExpr(c.RHS, fn)}
	case *NotClause:
		return &NotClause{Clause: RewriteClause(c.Clause, fn)}
	case *BinaryClause:
		return &BinaryClause{Op: c.Op, LHS: RewriteClause(c.LHS, fn), RHS: RewriteClause(c.RHS, fn)}
	default:
		panic("unreachable")
	}
}

// WalkClauseExprs calls fn for every expression node within c.
func WalkClauseExprs(c Clause, fn func(Expr) bool) {
	switch c := c.(type) {
	case *BoolExpr:
		WalkExpr(c.LHS, fn)
		WalkExpr(c.RHS, fn)
	case *NotClause:
		WalkClauseExprs(c.Clause, fn)
	case *BinaryClause:
		WalkClauseExprs(c.LHS, fn)
		WalkClauseExprs(c.RHS, fn)
	}
}

// CompareClause returns an integer comparing two clauses.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareClause(a, b Clause) int {
	if ak, bk := clauseKind(a), clauseKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *BoolExpr:
		b := b.(*BoolExpr)
		if a.Pred < b.Pred {
			return -1
		} else if a.Pred > b.Pred {
			return 1
		}
		if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
			return cmp
		}
		return CompareExpr(a.RHS, b.RHS)
	case *NotClause:
		return CompareClause(a.Clause, b.(*NotClause).Clause)
	case *BinaryClause:
		b := b.(*BinaryClause)
		if a.Op < b.Op {
			return -1
		} else if a.Op > b.Op {
			return 1
		}
		if cmp := CompareClause(a.LHS, b.LHS); cmp != 0 {
			return cmp
		}
		return CompareClause(a.RHS, b.RHS)
	default:
		panic("unreachable")
	}
}

func clauseKind(c Clause) int {
	switch c.(type) {
	case *BoolExpr:
		return 1
	case *NotClause:
		return 2
	case *BinaryClause:
		return 3
	default:
		panic("unreachable")
	}
}

// ConstraintSet is a deterministically ordered list of clauses.
type ConstraintSet []Clause

// Sort sorts the set into canonical order and removes duplicates.
func (cs ConstraintSet) Sort() ConstraintSet {
	sort.SliceStable(cs, func(i, j int) bool { return CompareClause(cs[i], cs[j]) < 0 })

	other := cs[:0]
	for i, c := range cs {
		if i > 0 && CompareClause(c, other[len(other)-1]) == 0 {
			continue
		}
		other = append(other, c)
	}
	return other
}

// Fingerprint returns a structural hash of the sorted set.
func (cs ConstraintSet) Fingerprint() uint64 {
	h := xxhash.New()
	writeUint(h, uint64(len(cs)))
	for _, c := range cs {
		hashClause(h, c)
	}
	return h.Sum64()
}

func hashClause(h *xxhash.Digest, c Clause) {
	writeUint(h, uint64(clauseKind(c)))
	switch c := c.(type) {
	case *BoolExpr:
		writeUint(h, uint64(c.Pred))
		hashExpr(h, c.LHS)
		hashExpr(h, c.RHS)
	case *NotClause:
		hashClause(h, c.Clause)
	case *BinaryClause:
		writeUint(h, uint64(c.Op))
		hashClause(h, c.LHS)
		hashClause(h, c.RHS)
	}
}

func hashExpr(h *xxhash.Digest, e Expr) {
	writeUint(h, uint64(exprKind(e)))
	writeUint(h, uint64(ExprWidth(e)))
	switch e := e.(type) {
	case *ConstantExpr:
		writeUint(h, e.Value)
	case *VarExpr:
		writeString(h, e.Name)
	case *ValueExpr:
		writeString(h, ValueName(e.Value))
	case *UseExpr:
		writeString(h, ValueName(e.Value))
		writeString(h, InstrName(e.User))
	case *UnaryExpr:
		writeUint(h, uint64(e.Op))
		writeBool(h, e.NSW)
		hashExpr(h, e.Src)
	case *BinaryExpr:
		writeUint(h, uint64(e.Op))
		writeBool(h, e.NSW)
		hashExpr(h, e.LHS)
		hashExpr(h, e.RHS)
	}
}

func writeUint(h *xxhash.Digest, v uint64) {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], v)
	h.Write(buf[:])
}

func writeString(h *xxhash.Digest, s string) {
	writeUint(h, uint64(len(s)))
	h.WriteString(s)
}

func writeBool(h *xxhash.Digest, v bool) {
	if v {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
}
