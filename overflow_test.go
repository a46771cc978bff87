package refine_test

import (
	"testing"

	"github.com/benbjohnson/refine"
	"github.com/benbjohnson/refine/bitblast"
)

func TestOverflowGuards(t *testing.T) {
	x, y := refine.NewVarExpr("x", 8), refine.NewVarExpr("y", 8)
	nsw := func(op refine.BinaryOp, lhs, rhs refine.Expr) *refine.BinaryExpr {
		e := MustBinaryExpr(op, lhs, rhs)
		e.NSW = true
		return e
	}

	for _, tt := range []struct {
		name string
		expr refine.Expr
		n    int
	}{
		{"Leaf", x, 0},
		{"Add", MustBinaryExpr(refine.ADD, x, y), 0},
		{"AddNSW", nsw(refine.ADD, x, y), 1},
		{"SubNSW", nsw(refine.SUB, x, y), 1},
		{"MulNSW", nsw(refine.MUL, x, y), 1},
		{"ShlNSW", nsw(refine.SHL, x, y), 1},
		{"UDiv", MustBinaryExpr(refine.UDIV, x, y), 1},
		{"SRem", MustBinaryExpr(refine.SREM, x, y), 1},
		{"Nested", nsw(refine.MUL, nsw(refine.ADD, x, y), MustBinaryExpr(refine.UDIV, x, y)), 3},
		{"Neg", &refine.UnaryExpr{Op: refine.NEG, Src: x, Width: 8}, 0},
		{"NegNSW", &refine.UnaryExpr{Op: refine.NEG, Src: x, Width: 8, NSW: true}, 1},
	} {
		t.Run(tt.name, func(t *testing.T) {
			c := MustBoolExpr(refine.EQ, tt.expr, refine.NewConstantExpr(0, refine.ExprWidth(tt.expr)))
			if got := len(refine.OverflowGuards(c)); got != tt.n {
				t.Fatalf("len(OverflowGuards())=%d, expected %d", got, tt.n)
			}
		})
	}
}

// Guards hold exactly for operand values that do not wrap.
func TestOverflowGuards_Semantics(t *testing.T) {
	x, y := refine.NewVarExpr("x", 8), refine.NewVarExpr("y", 8)
	c := func(v int64) *refine.ConstantExpr { return refine.NewSignedConstantExpr(v, 8) }

	for _, tt := range []struct {
		name string
		op   refine.BinaryOp
		a, b int64
		ok   bool
	}{
		{"AddOK", refine.ADD, 126, 1, true},
		{"AddOverflow", refine.ADD, 127, 1, false},
		{"AddUnderflow", refine.ADD, -128, -1, false},
		{"AddMixedSigns", refine.ADD, 127, -128, true},
		{"SubOK", refine.SUB, -127, 1, true},
		{"SubUnderflow", refine.SUB, -128, 1, false},
		{"MulOK", refine.MUL, 11, 11, true},
		{"MulOverflow", refine.MUL, 16, 8, false},
		{"MulMinByMinusOne", refine.MUL, -1, -128, false},
		{"SDivOK", refine.SDIV, -128, 2, true},
		{"SDivZero", refine.SDIV, 5, 0, false},
		{"SDivMinByMinusOne", refine.SDIV, -128, -1, false},
		{"ShlOK", refine.SHL, 1, 6, true},
		{"ShlSignChange", refine.SHL, 1, 7, false},
		{"ShlTooFar", refine.SHL, 0, 8, false},
	} {
		t.Run(tt.name, func(t *testing.T) {
			e := MustBinaryExpr(tt.op, x, y)
			e.NSW = true
			guards := refine.OverflowGuards(MustBoolExpr(refine.EQ, e, c(0)))
			if len(guards) != 1 {
				t.Fatalf("unexpected guard count: %d", len(guards))
			}

			b := bitblast.New()
			defer MustCloseBackend(t, b)
			MustAssertBackend(t, b, guards[0])
			MustAssertBackend(t, b, MustBoolExpr(refine.EQ, x, c(tt.a)))
			MustAssertBackend(t, b, MustBoolExpr(refine.EQ, y, c(tt.b)))

			// The asserted set is inconsistent iff false is valid.
			v, err := b.Check(refine.NewTruthClause(false))
			if err != nil {
				t.Fatal(err)
			} else if got := v == refine.Invalid; got != tt.ok {
				t.Fatalf("guard holds=%v, expected %v", got, tt.ok)
			}
		})
	}
}

func MustAssertBackend(tb testing.TB, b refine.Backend, c refine.Clause) {
	tb.Helper()
	if err := b.Assert(c); err != nil {
		tb.Fatal(err)
	}
}

func MustCloseBackend(tb testing.TB, b refine.Backend) {
	tb.Helper()
	if err := b.Close(); err != nil {
		tb.Fatal(err)
	}
}
