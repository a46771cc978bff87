package refine_test

import (
	"testing"

	"github.com/benbjohnson/refine"
	"github.com/benbjohnson/refine/bitblast"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"
)

func TestAcquireSession(t *testing.T) {
	t.Run("Exclusive", func(t *testing.T) {
		s := MustAcquireSession(t)
		if _, err := refine.AcquireSession(bitblast.Factory(0)); !errors.Is(err, refine.ErrSolverUnavailable) {
			t.Fatalf("unexpected error: %v", err)
		}

		require.NoError(t, s.Release())
		require.NoError(t, s.Release())

		other, err := refine.AcquireSession(bitblast.Factory(0))
		require.NoError(t, err)
		require.NoError(t, other.Release())
	})

	t.Run("FactoryError", func(t *testing.T) {
		_, err := refine.AcquireSession(func() (refine.Backend, error) {
			return nil, errors.New("marker")
		})
		require.ErrorIs(t, err, refine.ErrSolverUnavailable)
		require.EqualError(t, err, "create backend: marker: solver unavailable")

		// A failed acquisition leaves the slot free.
		MustAcquireSession(t)
	})

	t.Run("Reset", func(t *testing.T) {
		s := MustAcquireSession(t)
		x := refine.NewVarExpr("x", 8)
		require.NoError(t, s.Backend().Assert(MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(1, 8))))

		v, err := s.Backend().Check(MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(1, 8)))
		require.NoError(t, err)
		require.Equal(t, refine.Valid, v)

		require.NoError(t, s.Reset())
		v, err = s.Backend().Check(MustBoolExpr(refine.EQ, x, refine.NewConstantExpr(1, 8)))
		require.NoError(t, err)
		require.Equal(t, refine.Invalid, v)
	})
}

func TestErrSolverTimeout(t *testing.T) {
	require.ErrorIs(t, refine.ErrSolverTimeout, refine.ErrSolverUnavailable)
	require.Equal(t, refine.ErrSolverUnavailable, errors.Cause(refine.ErrSolverTimeout))
}

func TestValidity_String(t *testing.T) {
	require.Equal(t, "valid", refine.Valid.String())
	require.Equal(t, "invalid", refine.Invalid.String())
	require.Equal(t, "unknown", refine.Unknown.String())
}
