package refine_test

import (
	"testing"

	"github.com/benbjohnson/refine"
)

func TestSimplify(t *testing.T) {
	x, y := refine.NewVarExpr("x", 8), refine.NewVarExpr("y", 8)
	c := func(v uint64) *refine.ConstantExpr { return refine.NewConstantExpr(v, 8) }
	unary := func(op refine.UnaryOp, src refine.Expr, width uint) refine.Expr {
		e, err := refine.NewUnaryExpr(op, src, width)
		if err != nil {
			t.Fatal(err)
		}
		return e
	}

	for _, tt := range []struct {
		name string
		expr refine.Expr
		exp  string
	}{
		{"Constant", MustBinaryExpr(refine.MUL, c(3), c(5)), "(const 15 8)"},
		{"AddZero", MustBinaryExpr(refine.ADD, x, c(0)), "x"},
		{"AddConstantLeft", MustBinaryExpr(refine.ADD, x, c(2)), "(add (const 2 8) x)"},
		{"AddMerge", MustBinaryExpr(refine.ADD, c(1), MustBinaryExpr(refine.ADD, c(2), x)), "(add (const 3 8) x)"},
		{"SubConstant", MustBinaryExpr(refine.SUB, x, c(3)), "(add (const 253 8) x)"},
		{"SubSelf", MustBinaryExpr(refine.SUB, x, refine.CloneExpr(x)), "(const 0 8)"},
		{"SubMerge", MustBinaryExpr(refine.SUB, c(10), MustBinaryExpr(refine.ADD, c(4), x)), "(sub (const 6 8) x)"},
		{"MulOne", MustBinaryExpr(refine.MUL, x, c(1)), "x"},
		{"MulZero", MustBinaryExpr(refine.MUL, c(0), x), "(const 0 8)"},
		{"DivOne", MustBinaryExpr(refine.UDIV, x, c(1)), "x"},
		{"RemOne", MustBinaryExpr(refine.SREM, x, c(1)), "(const 0 8)"},
		{"AndAllOnes", MustBinaryExpr(refine.AND, c(0xFF), x), "x"},
		{"AndZero", MustBinaryExpr(refine.AND, x, c(0)), "(const 0 8)"},
		{"OrZero", MustBinaryExpr(refine.OR, x, c(0)), "x"},
		{"OrSelf", MustBinaryExpr(refine.OR, x, refine.CloneExpr(x)), "x"},
		{"XorSelf", MustBinaryExpr(refine.XOR, x, refine.CloneExpr(x)), "(const 0 8)"},
		{"ShiftZero", MustBinaryExpr(refine.SHL, x, c(0)), "x"},
		{"Sext", unary(refine.SEXT, c(0xFF), 16), "(const 65535 16)"},
		{"TruncExt", unary(refine.TRUNC, unary(refine.ZEXT, x, 16), 8), "x"},
		{"DoubleNot", unary(refine.NOT, unary(refine.NOT, x, 8), 8), "x"},
		{"Unchanged", MustBinaryExpr(refine.ADD, x, y), "(add x y)"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			if got := refine.Simplify(tt.expr).String(); got != tt.exp {
				t.Fatalf("Simplify()=%s, expected %s", got, tt.exp)
			}
		})
	}

	t.Run("NSW", func(t *testing.T) {
		e := MustBinaryExpr(refine.ADD, x, y)
		e.NSW = true
		if got := refine.Simplify(e).(*refine.BinaryExpr); !got.NSW {
			t.Fatal("expected nsw flag to be kept")
		}
	})
}

func TestSimplifyClause(t *testing.T) {
	x, y := refine.NewVarExpr("x", 8), refine.NewVarExpr("y", 8)
	c := func(v uint64) *refine.ConstantExpr { return refine.NewConstantExpr(v, 8) }
	ult := MustBoolExpr(refine.ULT, x, y)

	for _, tt := range []struct {
		name  string
		c     refine.Clause
		truth refine.Truth
		exp   string
	}{
		{"ConstantTrue", MustBoolExpr(refine.EQ, c(5), c(5)), refine.TruthTrue, ""},
		{"ConstantFalse", MustBoolExpr(refine.SLT, c(0), c(0xFF)), refine.TruthFalse, ""},
		{"Reflexive", MustBoolExpr(refine.SLE, x, refine.CloneExpr(x)), refine.TruthTrue, ""},
		{"Irreflexive", MustBoolExpr(refine.NE, x, refine.CloneExpr(x)), refine.TruthFalse, ""},
		{"UnsignedLowerBound", MustBoolExpr(refine.UGE, x, c(0)), refine.TruthTrue, ""},
		{"UnsignedUpperBound", MustBoolExpr(refine.UGT, x, c(0xFF)), refine.TruthFalse, ""},
		{"ConstantRight", MustBoolExpr(refine.ULT, c(3), x), refine.TruthUnknown, "(ugt x (const 3 8))"},
		{"Folded", MustBoolExpr(refine.EQ, MustBinaryExpr(refine.ADD, x, c(0)), y), refine.TruthUnknown, "(eq x y)"},
		{"InnerTrue", MustBoolExpr(refine.EQ, MustBinaryExpr(refine.ULT, x, y), refine.NewBoolConstantExpr(true)), refine.TruthUnknown, "(ult x y)"},
		{"InnerFalse", MustBoolExpr(refine.EQ, MustBinaryExpr(refine.ULT, x, y), refine.NewBoolConstantExpr(false)), refine.TruthUnknown, "(uge x y)"},
		{"Not", refine.NewNotClause(ult), refine.TruthUnknown, "(uge x y)"},
		{"NotNot", refine.NewNotClause(refine.NewNotClause(ult)), refine.TruthUnknown, "(ult x y)"},
		{"NotTrue", refine.NewNotClause(refine.NewTruthClause(true)), refine.TruthFalse, ""},
		{"AndTrue", refine.NewConjunction(refine.NewTruthClause(true), ult), refine.TruthUnknown, "(ult x y)"},
		{"AndFalse", refine.NewConjunction(ult, refine.NewTruthClause(false)), refine.TruthFalse, ""},
		{"OrTrue", refine.NewDisjunction(ult, refine.NewTruthClause(true)), refine.TruthTrue, ""},
		{"OrFalse", refine.NewDisjunction(refine.NewTruthClause(false), ult), refine.TruthUnknown, "(ult x y)"},
		{"OrSelf", refine.NewDisjunction(ult, refine.CloneClause(ult)), refine.TruthUnknown, "(ult x y)"},
		{"XorSelf", &refine.BinaryClause{Op: refine.CLAUSE_XOR, LHS: ult, RHS: refine.CloneClause(ult)}, refine.TruthFalse, ""},
		{"XorTrue", &refine.BinaryClause{Op: refine.CLAUSE_XOR, LHS: refine.NewTruthClause(true), RHS: ult}, refine.TruthUnknown, "(uge x y)"},
	} {
		t.Run(tt.name, func(t *testing.T) {
			got, truth := refine.SimplifyClause(tt.c)
			if truth != tt.truth {
				t.Fatalf("unexpected truth: %d", truth)
			} else if truth != refine.TruthUnknown {
				if got != nil {
					t.Fatalf("expected nil clause, got %s", got)
				}
				return
			} else if got.String() != tt.exp {
				t.Fatalf("SimplifyClause()=%s, expected %s", got, tt.exp)
			}
		})
	}
}
