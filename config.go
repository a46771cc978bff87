package refine

import (
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Default configuration values.
const (
	DefaultMaxRounds   = 8
	DefaultBackend     = "bitblast"
	DefaultLayoutLimit = 64
	DefaultSlowQueries = 5
)

// Config represents the configuration of an analysis run.
type Config struct {
	MaxRounds int            `toml:"max-rounds" yaml:"max-rounds"`
	Solver    SolverConfig   `toml:"solver" yaml:"solver"`
	Overflow  OverflowConfig `toml:"overflow" yaml:"overflow"`
	Capture   CaptureConfig  `toml:"capture" yaml:"capture"`
	Alias     AliasConfig    `toml:"alias" yaml:"alias"`
}

// SolverConfig selects & tunes the decision procedure.
type SolverConfig struct {
	Backend string        `toml:"backend" yaml:"backend"`
	Timeout time.Duration `toml:"timeout" yaml:"timeout"`

	// If set, fixed integers without a literal value are identified from
	// solver models after every round.
	IdentifyFixed bool `toml:"identify-fixed" yaml:"identify-fixed"`
}

// OverflowConfig controls the guards asserted for arithmetic.
type OverflowConfig struct {
	Guard bool `toml:"guard" yaml:"guard"`
}

// CaptureConfig enables the individual kinds of captured facts.
type CaptureConfig struct {
	Memory      bool `toml:"memory" yaml:"memory"`
	MayAssign   bool `toml:"may-assign" yaml:"may-assign"`
	Unreachable bool `toml:"unreachable" yaml:"unreachable"`
	Summaries   bool `toml:"summaries" yaml:"summaries"`

	// Maximum number of objects constrained by the layout summary.
	LayoutLimit int `toml:"layout-limit" yaml:"layout-limit"`
}

// AliasConfig controls solver-backed alias refinement.
type AliasConfig struct {
	Refine      bool `toml:"refine" yaml:"refine"`
	SlowQueries int  `toml:"slow-queries" yaml:"slow-queries"`
}

// DefaultConfig returns a configuration with every feature enabled.
func DefaultConfig() Config {
	return Config{
		MaxRounds: DefaultMaxRounds,
		Solver: SolverConfig{
			Backend: DefaultBackend,
		},
		Overflow: OverflowConfig{
			Guard: true,
		},
		Capture: CaptureConfig{
			Memory:      true,
			MayAssign:   true,
			Unreachable: true,
			Summaries:   true,
			LayoutLimit: DefaultLayoutLimit,
		},
		Alias: AliasConfig{
			Refine:      true,
			SlowQueries: DefaultSlowQueries,
		},
	}
}

// LoadConfig reads the configuration at path on top of the defaults. Files
// ending in .yaml or .yml are decoded as YAML, everything else as TOML.
func LoadConfig(path string) (Config, error) {
	config := DefaultConfig()

	f, err := os.Open(path)
	if err != nil {
		return config, err
	}
	defer f.Close()

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(&config); err != nil {
			return config, errors.Wrapf(err, "decode %s", path)
		}
	default:
		meta, err := toml.DecodeReader(f, &config)
		if err != nil {
			return config, errors.Wrapf(err, "decode %s", path)
		} else if undecoded := meta.Undecoded(); len(undecoded) > 0 {
			return config, errors.Errorf("%s: unknown key: %s", path, undecoded[0])
		}
	}

	return config, config.Validate()
}

// Validate returns an error if the configuration cannot be used.
func (c Config) Validate() error {
	if c.MaxRounds <= 0 {
		return errors.Errorf("max-rounds must be positive: %d", c.MaxRounds)
	}
	switch c.Solver.Backend {
	case "bitblast", "z3", "yices":
	default:
		return errors.Errorf("unknown solver backend: %q", c.Solver.Backend)
	}
	if c.Solver.Timeout < 0 {
		return errors.Errorf("solver timeout must not be negative: %s", c.Solver.Timeout)
	}
	return nil
}
