package refine

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// DriverState represents the phase of the fixpoint iteration.
type DriverState int

const (
	StateIdle DriverState = iota
	StateCapturing
	StateSolving
	StateComparing
	StateDone
)

// String returns the string representation of the state.
func (s DriverState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateSolving:
		return "solving"
	case StateComparing:
		return "comparing"
	case StateDone:
		return "done"
	default:
		return fmt.Sprintf("DriverState<%d>", s)
	}
}

// Driver alternates capture & solving until the constraint set stops
// changing. Alias answers refined by the solver in one round change what
// memory facts are captured in the next.
type Driver struct {
	prog    *Program
	config  Config
	factory BackendFactory

	once    *ExecOnce
	base    *BaseOracle
	refined *RefinedOracle
	session *Session
	solver  *Solver
	fixed   *FixedValueSet

	state  DriverState
	rounds int

	Logger *log.Entry
}

// NewDriver returns a new driver for prog.
func NewDriver(prog *Program, config Config, factory BackendFactory) *Driver {
	return &Driver{
		prog:    prog,
		config:  config,
		factory: factory,
		Logger:  log.WithField("component", "driver"),
	}
}

// Open acquires the solver session & creates an empty solver.
func (d *Driver) Open() error {
	session, err := AcquireSession(d.factory)
	if err != nil {
		return err
	}
	d.session = session

	d.once = NewExecOnce(d.prog)
	d.base = NewBaseOracle()

	d.solver = NewSolver(session, d.prog)
	d.solver.Guard = d.config.Overflow.Guard
	d.solver.Logger = d.Logger.WithField("component", "solver")

	if d.config.Alias.Refine {
		d.refined = NewRefinedOracle(d.base, d.solver)
		d.refined.SlowQueries = d.config.Alias.SlowQueries
		d.refined.Logger = d.Logger.WithField("component", "alias")
	}
	return nil
}

// Close releases the solver session.
func (d *Driver) Close() error {
	if d.session == nil {
		return nil
	}
	err := d.session.Release()
	d.session = nil
	return err
}

// Run iterates until the fingerprint of the constraint set is unchanged
// between two rounds. Returns ErrNoFixpoint if that does not happen within
// the configured number of rounds.
func (d *Driver) Run(ctx context.Context) error {
	if d.session == nil {
		return errors.New("driver not open")
	}

	for round := 1; ; round++ {
		if err := ctx.Err(); err != nil {
			return err
		} else if round > d.config.MaxRounds {
			return errors.Wrapf(ErrNoFixpoint, "after %d rounds", d.config.MaxRounds)
		}

		prev := d.solver.Fingerprint()
		if err := d.round(); err != nil {
			return err
		}
		d.rounds++

		d.state = StateComparing
		next := d.solver.Fingerprint()
		d.Logger.WithFields(log.Fields{
			"round":       round,
			"constraints": d.solver.NumConstraints(),
			"fingerprint": fmt.Sprintf("%016x", next),
		}).Info("round complete")

		if next == prev {
			d.state = StateDone
			return nil
		}
	}
}

func (d *Driver) round() error {
	d.state = StateCapturing
	if d.refined != nil {
		d.refined.Recalculate()
	}

	d.fixed = Classify(d.prog, d.once)
	if d.refined != nil {
		d.refined.SetFixed(d.fixed)
	}

	cs, err := Capture(d.prog, d.once, d.fixed, d.AliasOracle(), d.config.Capture)
	if err != nil {
		return err
	}

	d.state = StateSolving
	d.solver.SetFixed(d.fixed)
	if err := d.solver.Recalculate(cs); err != nil {
		return err
	}

	if d.config.Solver.IdentifyFixed {
		n, err := d.solver.IdentifyFixedValues()
		if err != nil {
			d.Logger.WithError(err).Warn("identify fixed values")
		} else {
			d.Logger.Debugf("identified %d fixed values", n)
		}
	}
	return nil
}

// AliasOracle returns the oracle used during capture.
func (d *Driver) AliasOracle() AliasOracle {
	if d.refined != nil {
		return d.refined
	}
	return d.base
}

// RefinedOracle returns the solver-backed oracle, if enabled.
func (d *Driver) RefinedOracle() *RefinedOracle { return d.refined }

// Program returns the analyzed program.
func (d *Driver) Program() *Program { return d.prog }

// Solver returns the solver of the current round.
func (d *Driver) Solver() *Solver { return d.solver }

// Fixed returns the fixed values of the current round.
func (d *Driver) Fixed() *FixedValueSet { return d.fixed }

// State returns the current state of the iteration.
func (d *Driver) State() DriverState { return d.state }

// Rounds returns the number of rounds completed over all runs.
func (d *Driver) Rounds() int { return d.rounds }
