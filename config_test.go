package refine_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/benbjohnson/refine"
	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig(t *testing.T) {
	t.Run("TOML", func(t *testing.T) {
		path := MustWriteFile(t, "refine.toml", `
max-rounds = 4

[solver]
backend = "bitblast"
timeout = "5s"
identify-fixed = true

[capture]
may-assign = false

[alias]
slow-queries = 10
`)
		config, err := refine.LoadConfig(path)
		require.NoError(t, err)

		exp := refine.DefaultConfig()
		exp.MaxRounds = 4
		exp.Solver.Timeout = 5 * time.Second
		exp.Solver.IdentifyFixed = true
		exp.Capture.MayAssign = false
		exp.Alias.SlowQueries = 10
		if diff := cmp.Diff(exp, config); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("YAML", func(t *testing.T) {
		path := MustWriteFile(t, "refine.yaml", `
max-rounds: 2
solver:
  timeout: 250ms
overflow:
  guard: false
alias:
  refine: false
`)
		config, err := refine.LoadConfig(path)
		require.NoError(t, err)

		exp := refine.DefaultConfig()
		exp.MaxRounds = 2
		exp.Solver.Timeout = 250 * time.Millisecond
		exp.Overflow.Guard = false
		exp.Alias.Refine = false
		if diff := cmp.Diff(exp, config); diff != "" {
			t.Fatal(diff)
		}
	})

	t.Run("ErrUnknownKey", func(t *testing.T) {
		path := MustWriteFile(t, "refine.toml", "[solver]\nbackned = \"z3\"\n")
		_, err := refine.LoadConfig(path)
		require.ErrorContains(t, err, "unknown key: solver.backned")
	})

	t.Run("ErrUnknownKeyYAML", func(t *testing.T) {
		path := MustWriteFile(t, "refine.yml", "solver:\n  backned: z3\n")
		_, err := refine.LoadConfig(path)
		require.ErrorContains(t, err, "field backned not found")
	})

	t.Run("ErrInvalid", func(t *testing.T) {
		path := MustWriteFile(t, "refine.toml", "max-rounds = 0\n")
		_, err := refine.LoadConfig(path)
		require.ErrorContains(t, err, "max-rounds must be positive")
	})

	t.Run("ErrNotExist", func(t *testing.T) {
		_, err := refine.LoadConfig(filepath.Join(t.TempDir(), "missing.toml"))
		require.ErrorIs(t, err, os.ErrNotExist)
	})
}

func TestConfig_Validate(t *testing.T) {
	require.NoError(t, refine.DefaultConfig().Validate())

	config := refine.DefaultConfig()
	config.Solver.Backend = "cvc5"
	require.ErrorContains(t, config.Validate(), `unknown solver backend: "cvc5"`)

	config = refine.DefaultConfig()
	config.Solver.Timeout = -time.Second
	require.ErrorContains(t, config.Validate(), "solver timeout must not be negative")
}

// MustWriteFile writes data to a new file in a temporary directory & returns its path.
func MustWriteFile(tb testing.TB, name, data string) string {
	tb.Helper()
	path := filepath.Join(tb.TempDir(), name)
	if err := os.WriteFile(path, []byte(data), 0666); err != nil {
		tb.Fatal(err)
	}
	return path
}
