package refine

// Truth is the result of statically evaluating a clause.
type Truth int

const (
	TruthUnknown Truth = iota
	TruthTrue
	TruthFalse
)

func truthOf(b bool) Truth {
	if b {
		return TruthTrue
	}
	return TruthFalse
}

// Simplify returns an algebraically simplified copy of expr. The result is
// equivalent under fixed-width modular arithmetic.
func Simplify(expr Expr) Expr {
	switch expr := expr.(type) {
	case *UnaryExpr:
		return simplifyUnary(expr.Op, Simplify(expr.Src), expr.Width, expr.NSW)
	case *BinaryExpr:
		return simplifyBinary(expr.Op, Simplify(expr.LHS), Simplify(expr.RHS), expr.NSW)
	default:
		return CloneExpr(expr)
	}
}

// SimplifyClause returns a simplified copy of c. If the clause statically
// evaluates to true or false then the returned clause is nil.
func SimplifyClause(c Clause) (Clause, Truth) {
	switch c := c.(type) {
	case *BoolExpr:
		return simplifyBoolExpr(c.Pred, Simplify(c.LHS), Simplify(c.RHS))

	case *NotClause:
		inner, t := SimplifyClause(c.Clause)
		switch t {
		case TruthTrue:
			return nil, TruthFalse
		case TruthFalse:
			return nil, TruthTrue
		}
		if inner, ok := inner.(*NotClause); ok { // !!x => x
			return inner.Clause, TruthUnknown
		}
		if inner, ok := inner.(*BoolExpr); ok { // !(a < b) => a >= b
			return &BoolExpr{Pred: inner.Pred.Negate(), LHS: inner.LHS, RHS: inner.RHS}, TruthUnknown
		}
		return &NotClause{Clause: inner}, TruthUnknown

	case *BinaryClause:
		lhs, lt := SimplifyClause(c.LHS)
		rhs, rt := SimplifyClause(c.RHS)
		switch c.Op {
		case CLAUSE_AND:
			if lt == TruthFalse || rt == TruthFalse {
				return nil, TruthFalse
			} else if lt == TruthTrue {
				return rhs, rt
			} else if rt == TruthTrue {
				return lhs, lt
			}
		case CLAUSE_OR:
			if lt == TruthTrue || rt == TruthTrue {
				return nil, TruthTrue
			} else if lt == TruthFalse {
				return rhs, rt
			} else if rt == TruthFalse {
				return lhs, lt
			}
		case CLAUSE_XOR:
			if lt != TruthUnknown && rt != TruthUnknown {
				return nil, truthOf(lt != rt)
			} else if lt == TruthFalse {
				return rhs, rt
			} else if rt == TruthFalse {
				return lhs, lt
			} else if lt == TruthTrue {
				return SimplifyClause(&NotClause{Clause: rhs})
			} else if rt == TruthTrue {
				return SimplifyClause(&NotClause{Clause: lhs})
			}
		}
		if CompareClause(lhs, rhs) == 0 {
			if c.Op == CLAUSE_XOR {
				return nil, TruthFalse
			}
			return lhs, TruthUnknown
		}
		return &BinaryClause{Op: c.Op, LHS: lhs, RHS: rhs}, TruthUnknown

	default:
		panic("unreachable")
	}
}

func simplifyBoolExpr(pred BinaryOp, lhs, rhs Expr) (Clause, Truth) {
	// Compute truth if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return nil, truthOf(lhs.Compare(pred, rhs))
		}
	}

	// Reflexive comparisons.
	if CompareExpr(lhs, rhs) == 0 {
		switch pred {
		case EQ, ULE, UGE, SLE, SGE:
			return nil, TruthTrue
		default:
			return nil, TruthFalse
		}
	}

	// Move constant expression to right hand side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs, pred = rhs, lhs, pred.Swap()
	}

	// Trivial unsigned bounds.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		switch {
		case pred == UGE && rhs.IsZero(), pred == ULE && rhs.IsAllOnes():
			return nil, TruthTrue
		case pred == ULT && rhs.IsZero(), pred == UGT && rhs.IsAllOnes():
			return nil, TruthFalse
		}
	}

	// Boolean comparisons against a constant compare the inner predicate.
	if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Width == WidthBool && (pred == EQ || pred == NE) {
		if inner, ok := lhs.(*BinaryExpr); ok && inner.Op.IsCompare() {
			if rhs.IsTrue() == (pred == EQ) { // (x < y) == 1 => x < y
				return simplifyBoolExpr(inner.Op, inner.LHS, inner.RHS)
			}
			return simplifyBoolExpr(inner.Op.Negate(), inner.LHS, inner.RHS)
		}
	}
	return &BoolExpr{Pred: pred, LHS: lhs, RHS: rhs}, TruthUnknown
}

func simplifyUnary(op UnaryOp, src Expr, width uint, nsw bool) Expr {
	if src, ok := src.(*ConstantExpr); ok {
		switch op {
		case SEXT:
			return src.SExt(width)
		case ZEXT:
			return src.ZExt(width)
		case TRUNC:
			return src.Trunc(width)
		case NOT:
			return src.Not()
		case NEG:
			return src.Neg()
		}
	}

	switch op {
	case NOT, NEG: // ~~x => x, --x => x
		if inner, ok := src.(*UnaryExpr); ok && inner.Op == op {
			return inner.Src
		}
	case TRUNC: // trunc(ext(x)) => x
		if inner, ok := src.(*UnaryExpr); ok && (inner.Op == SEXT || inner.Op == ZEXT) && ExprWidth(inner.Src) == width {
			return inner.Src
		}
	}
	return &UnaryExpr{Op: op, Src: src, Width: width, NSW: nsw}
}

func simplifyBinary(op BinaryOp, lhs, rhs Expr, nsw bool) Expr {
	// Compute constant if both sides are constant.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*ConstantExpr); ok {
			return lhs.Eval(op, rhs)
		}
	}

	if op.IsCompare() {
		if CompareExpr(lhs, rhs) == 0 {
			switch op {
			case EQ, ULE, UGE, SLE, SGE:
				return NewBoolConstantExpr(true)
			default:
				return NewBoolConstantExpr(false)
			}
		}
		return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}
	}

	switch op {
	case ADD:
		return simplifyAdd(lhs, rhs, nsw)
	case SUB:
		return simplifySub(lhs, rhs, nsw)
	case MUL:
		return simplifyMul(lhs, rhs, nsw)
	case UDIV, SDIV:
		if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Value == 1 {
			return lhs
		}
	case UREM, SREM:
		if rhs, ok := rhs.(*ConstantExpr); ok && rhs.Value == 1 {
			return NewConstantExpr(0, rhs.Width)
		}
	case AND:
		return simplifyAnd(lhs, rhs)
	case OR:
		return simplifyOr(lhs, rhs)
	case XOR:
		return simplifyXor(lhs, rhs)
	case SHL, LSHR, ASHR:
		if rhs, ok := rhs.(*ConstantExpr); ok && rhs.IsZero() {
			return lhs
		} else if lhs, ok := lhs.(*ConstantExpr); ok && lhs.IsZero() {
			return lhs
		}
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs, NSW: nsw}
}

// simplifyAdd returns the expression representing the sum of lhs & rhs.
func simplifyAdd(lhs, rhs Expr, nsw bool) Expr {
	// Move constant expression to left hand side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.IsZero() {
			return rhs
		}

		// Merge constant LHS with constant in RHS binary expression.
		if rhs, ok := rhs.(*BinaryExpr); ok && IsConstantExpr(rhs.LHS) {
			if rhs.Op == ADD { // X + (Y+z) == (X+Y) + z
				return simplifyAdd(lhs.Add(rhs.LHS.(*ConstantExpr)), rhs.RHS, false)
			} else if rhs.Op == SUB { // X + (Y-z) == (X+Y) - z
				return simplifySub(lhs.Add(rhs.LHS.(*ConstantExpr)), rhs.RHS, false)
			}
		}
	}
	return &BinaryExpr{Op: ADD, LHS: lhs, RHS: rhs, NSW: nsw}
}

// simplifySub returns an expression representing the difference of lhs & rhs.
func simplifySub(lhs, rhs Expr, nsw bool) Expr {
	// Subtracting a value from itself is zero.
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}

	// If constant is on right side, refactor to addition of its negation.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsZero() {
			return lhs
		}
		return simplifyAdd(rhs.Neg(), lhs, false)
	}

	// Combine with children of RHS binary expression, if possible.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if rhs, ok := rhs.(*BinaryExpr); ok && IsConstantExpr(rhs.LHS) {
			if rhs.Op == ADD { // X - (Y+z) == (X-Y) - z
				return simplifySub(lhs.Sub(rhs.LHS.(*ConstantExpr)), rhs.RHS, false)
			} else if rhs.Op == SUB { // X - (Y-z) == (X-Y) + z
				return simplifyAdd(lhs.Sub(rhs.LHS.(*ConstantExpr)), rhs.RHS, false)
			}
		}
	}
	return &BinaryExpr{Op: SUB, LHS: lhs, RHS: rhs, NSW: nsw}
}

// simplifyMul returns an expression that represents the product of lhs & rhs.
func simplifyMul(lhs, rhs Expr, nsw bool) Expr {
	// If constant is on right side, swap to left side.
	if IsConstantExpr(rhs) && !IsConstantExpr(lhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for multiplication with a constant 1 or 0.
	if lhs, ok := lhs.(*ConstantExpr); ok {
		if lhs.Value == 1 {
			return rhs
		} else if lhs.IsZero() {
			return lhs
		}
	}
	return &BinaryExpr{Op: MUL, LHS: lhs, RHS: rhs, NSW: nsw}
}

// simplifyAnd returns an expression that represents the bitwise AND of lhs & rhs.
func simplifyAnd(lhs, rhs Expr) Expr {
	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return lhs
		} else if rhs.IsZero() {
			return rhs
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return &BinaryExpr{Op: AND, LHS: lhs, RHS: rhs}
}

// simplifyOr returns an expression that represents the bitwise OR of lhs & rhs.
func simplifyOr(lhs, rhs Expr) Expr {
	// If constant is on left side, swap to right side.
	if IsConstantExpr(lhs) && !IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	// Optimize for if constant is all ones or zeros.
	if rhs, ok := rhs.(*ConstantExpr); ok {
		if rhs.IsAllOnes() {
			return rhs
		} else if rhs.IsZero() {
			return lhs
		}
	}
	if CompareExpr(lhs, rhs) == 0 {
		return lhs
	}
	return &BinaryExpr{Op: OR, LHS: lhs, RHS: rhs}
}

// simplifyXor returns an expression that represents the bitwise XOR of lhs & rhs.
func simplifyXor(lhs, rhs Expr) Expr {
	// If constant is on right side, swap to left side.
	if !IsConstantExpr(lhs) && IsConstantExpr(rhs) {
		lhs, rhs = rhs, lhs
	}

	if lhs, ok := lhs.(*ConstantExpr); ok && lhs.IsZero() {
		return rhs
	}
	if CompareExpr(lhs, rhs) == 0 {
		return NewConstantExpr(0, ExprWidth(lhs))
	}
	return &BinaryExpr{Op: XOR, LHS: lhs, RHS: rhs}
}
