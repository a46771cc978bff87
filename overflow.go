package refine

// OverflowGuards returns the clauses under which the arithmetic within c
// neither wraps nor traps. Signed wrap is only guarded on operations marked
// NSW. Division & remainder always require a valid divisor.
func OverflowGuards(c Clause) []Clause {
	var guards []Clause
	WalkClauseExprs(c, func(e Expr) bool {
		if g := overflowGuard(e); g != nil {
			guards = append(guards, g)
		}
		return true
	})
	return guards
}

func overflowGuard(e Expr) Clause {
	switch e := e.(type) {
	case *UnaryExpr:
		if e.Op == NEG && e.NSW {
			return guardNE(e.Src, MinSigned(e.Width))
		}

	case *BinaryExpr:
		l, r := e.LHS, e.RHS
		w := ExprWidth(l)

		switch e.Op {
		case ADD:
			if !e.NSW {
				return nil
			}
			// Operands with different signs never overflow, otherwise the
			// sum must keep the sign of the operands.
			return guardOr(
				guardXor(isNegative(l), isNegative(r)),
				guardNot(guardXor(isNegative(r), isNegative(e))),
			)

		case SUB:
			if !e.NSW {
				return nil
			}
			return guardOr(
				guardNot(guardXor(isNegative(l), isNegative(r))),
				guardNot(guardXor(isNegative(l), isNegative(e))),
			)

		case MUL:
			if !e.NSW {
				return nil
			}
			quo := &BinaryExpr{Op: SDIV, LHS: CloneExpr(e), RHS: CloneExpr(l)}
			return guardOr(
				guardEQ(l, NewConstantExpr(0, w)),
				guardAnd(
					guardEQ(quo, r),
					guardNot(guardAnd(
						guardEQ(l, NewConstantExpr(bitmask(w), w)),
						guardEQ(r, MinSigned(w)),
					)),
				),
			)

		case SDIV, SREM:
			return guardAnd(
				guardNE(r, NewConstantExpr(0, w)),
				guardNot(guardAnd(
					guardEQ(l, MinSigned(w)),
					guardEQ(r, NewConstantExpr(bitmask(w), w)),
				)),
			)

		case UDIV, UREM:
			return guardNE(r, NewConstantExpr(0, w))

		case SHL:
			if !e.NSW {
				return nil
			}
			back := &BinaryExpr{Op: ASHR, LHS: CloneExpr(e), RHS: CloneExpr(r)}
			return guardAnd(
				&BoolExpr{Pred: ULT, LHS: CloneExpr(r), RHS: NewConstantExpr(uint64(w), w)},
				guardEQ(back, l),
			)
		}
	}
	return nil
}

func isNegative(e Expr) Clause {
	return &BoolExpr{Pred: SLT, LHS: CloneExpr(e), RHS: NewConstantExpr(0, ExprWidth(e))}
}

func guardEQ(lhs, rhs Expr) Clause {
	return &BoolExpr{Pred: EQ, LHS: CloneExpr(lhs), RHS: CloneExpr(rhs)}
}

func guardNE(lhs, rhs Expr) Clause {
	return &BoolExpr{Pred: NE, LHS: CloneExpr(lhs), RHS: CloneExpr(rhs)}
}

func guardNot(c Clause) Clause { return &NotClause{Clause: c} }

func guardAnd(lhs, rhs Clause) Clause {
	return &BinaryClause{Op: CLAUSE_AND, LHS: lhs, RHS: rhs}
}

func guardOr(lhs, rhs Clause) Clause {
	return &BinaryClause{Op: CLAUSE_OR, LHS: lhs, RHS: rhs}
}

func guardXor(lhs, rhs Clause) Clause {
	return &BinaryClause{Op: CLAUSE_XOR, LHS: lhs, RHS: rhs}
}
