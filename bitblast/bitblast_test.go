package bitblast_test

import (
	"testing"

	"github.com/benbjohnson/refine"
	"github.com/benbjohnson/refine/bitblast"
	"github.com/stretchr/testify/require"
)

func TestBackend_Check(t *testing.T) {
	t.Run("Constant", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		if v, err := b.Check(MustBoolExpr(refine.EQ, x, x)); err != nil {
			t.Fatal(err)
		} else if v != refine.Valid {
			t.Fatalf("unexpected validity: %s", v)
		}
		if v, err := b.Check(MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(0, 8))); err != nil {
			t.Fatal(err)
		} else if v != refine.Invalid {
			t.Fatalf("unexpected validity: %s", v)
		}
	})

	t.Run("Mul", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		MustAssert(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.MUL, x, refine.NewConstantExpr(3, 8)), refine.NewConstantExpr(21, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(7, 8)))
	})

	t.Run("UDivByZero", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		zero := refine.NewConstantExpr(0, 8)
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.UDIV, x, zero), refine.NewConstantExpr(0xFF, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.UREM, x, zero), x))
	})

	t.Run("UDiv", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		MustAssert(t, b, MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(200, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.UDIV, x, refine.NewConstantExpr(7, 8)), refine.NewConstantExpr(28, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.UREM, x, refine.NewConstantExpr(7, 8)), refine.NewConstantExpr(4, 8)))
	})

	t.Run("SDiv", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		MustAssert(t, b, MustBoolExpr(refine.EQ, x, refine.NewSignedConstantExpr(-7, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.SDIV, x, refine.NewConstantExpr(2, 8)), refine.NewSignedConstantExpr(-3, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.SREM, x, refine.NewConstantExpr(2, 8)), refine.NewSignedConstantExpr(-1, 8)))
	})

	t.Run("Shift", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		MustAssert(t, b, MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(0x80, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.LSHR, x, refine.NewConstantExpr(7, 8)), refine.NewConstantExpr(1, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.ASHR, x, refine.NewConstantExpr(7, 8)), refine.NewConstantExpr(0xFF, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.ASHR, x, refine.NewConstantExpr(100, 8)), refine.NewConstantExpr(0xFF, 8)))
		MustValid(t, b, MustBoolExpr(refine.EQ, MustBinaryExpr(refine.SHL, x, refine.NewConstantExpr(1, 8)), refine.NewConstantExpr(0, 8)))
	})

	t.Run("Signed", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		MustAssert(t, b, MustBoolExpr(refine.SLT, x, refine.NewConstantExpr(0, 8)))
		MustAssert(t, b, MustBoolExpr(refine.SGT, x, refine.NewSignedConstantExpr(-3, 8)))
		MustValid(t, b, refine.NewDisjunction(
			MustBoolExpr(refine.EQ, x, refine.NewSignedConstantExpr(-1, 8)),
			MustBoolExpr(refine.EQ, x, refine.NewSignedConstantExpr(-2, 8)),
		))
	})

	t.Run("PushPop", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 32)
		c := MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(5, 32))

		require.NoError(t, b.Push())
		MustAssert(t, b, c)
		MustValid(t, b, c)
		require.NoError(t, b.Pop())

		v, err := b.Check(c)
		require.NoError(t, err)
		require.Equal(t, refine.Invalid, v)
		require.Error(t, b.Pop())
	})

	t.Run("Counterexample", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		MustAssert(t, b, MustBoolExpr(refine.UGT, x, refine.NewConstantExpr(250, 8)))

		v, err := b.Check(MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(0, 8)))
		require.NoError(t, err)
		require.Equal(t, refine.Invalid, v)

		value, ok := b.Value(x)
		require.True(t, ok)
		require.Greater(t, value, uint64(250))
	})

	t.Run("CompareInExpr", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		x := refine.NewVarExpr("x", 8)
		cmp := MustBinaryExpr(refine.ULT, x, refine.NewConstantExpr(10, 8))
		MustAssert(t, b, MustBoolExpr(refine.EQ, cmp, refine.NewBoolConstantExpr(true)))
		MustValid(t, b, MustBoolExpr(refine.ULE, x, refine.NewConstantExpr(9, 8)))
	})

	t.Run("ErrWidthMismatch", func(t *testing.T) {
		b := bitblast.New()
		defer MustClose(b)

		MustAssert(t, b, MustBoolExpr(refine.EQ, refine.NewVarExpr("x", 8), refine.NewConstantExpr(1, 8)))
		err := b.Assert(MustBoolExpr(refine.EQ, refine.NewVarExpr("x", 16), refine.NewConstantExpr(1, 16)))
		require.ErrorIs(t, err, refine.ErrWidthMismatch)
	})
}

// MustClose closes b. Panic on error.
func MustClose(b *bitblast.Backend) {
	if err := b.Close(); err != nil {
		panic(err)
	}
}

// MustAssert asserts c on b. Fails the test on error.
func MustAssert(tb testing.TB, b *bitblast.Backend, c refine.Clause) {
	tb.Helper()
	if err := b.Assert(c); err != nil {
		tb.Fatal(err)
	}
}

// MustValid fails the test unless c holds in every model.
func MustValid(tb testing.TB, b *bitblast.Backend, c refine.Clause) {
	tb.Helper()
	if v, err := b.Check(c); err != nil {
		tb.Fatal(err)
	} else if v != refine.Valid {
		tb.Fatalf("expected valid: %s", c)
	}
}

// MustBoolExpr returns a new comparison. Panic on error.
func MustBoolExpr(pred refine.BinaryOp, lhs, rhs refine.Expr) *refine.BoolExpr {
	c, err := refine.NewBoolExpr(pred, lhs, rhs)
	if err != nil {
		panic(err)
	}
	return c
}

// MustBinaryExpr returns a new binary expression. Panic on error.
func MustBinaryExpr(op refine.BinaryOp, lhs, rhs refine.Expr) *refine.BinaryExpr {
	e, err := refine.NewBinaryExpr(op, lhs, rhs)
	if err != nil {
		panic(err)
	}
	return e
}
