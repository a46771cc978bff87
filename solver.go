package refine

import (
	"go/types"
	"sort"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
)

// Solver answers queries about program quantities against the constraint
// set of the current round.
type Solver struct {
	session *Session
	prog    *Program
	fixed   *FixedValueSet

	input       ConstraintSet
	constraints []Clause
	equiv       *EquivalenceMap
	symbols     map[string]*VarExpr
	identified  map[ssa.Value]*ConstantExpr

	// Guard asserts overflow guards alongside every clause & query.
	Guard bool

	Logger *log.Entry
}

// NewSolver returns a new solver over an empty constraint set.
func NewSolver(session *Session, prog *Program) *Solver {
	return &Solver{
		session:    session,
		prog:       prog,
		equiv:      NewEquivalenceMap(),
		symbols:    make(map[string]*VarExpr),
		identified: make(map[ssa.Value]*ConstantExpr),
		Guard:      true,
		Logger:     log.WithField("component", "solver"),
	}
}

// SetFixed sets the fixed values used for branch realization.
func (s *Solver) SetFixed(fixed *FixedValueSet) {
	s.fixed = fixed
}

// Recalculate rebuilds the solver state from cs. Returns an error wrapping
// ErrInconsistentConstraints if the clauses cannot hold together.
func (s *Solver) Recalculate(cs ConstraintSet) error {
	if err := s.session.Reset(); err != nil {
		return err
	}
	s.input = cs
	s.constraints = nil
	s.symbols = make(map[string]*VarExpr)
	s.identified = make(map[ssa.Value]*ConstantExpr)
	s.equiv = BuildEquivalenceMap(cs)

	for _, c := range cs {
		substituted := s.equiv.Replace(c)
		guards := s.guards(substituted)

		simplified, truth := SimplifyClause(substituted)
		switch truth {
		case TruthTrue:
			continue
		case TruthFalse:
			return errors.Wrapf(ErrInconsistentConstraints, "%s", c)
		}

		if err := s.assert(simplified); err != nil {
			return err
		}
		for _, g := range guards {
			if err := s.assert(g); err != nil {
				return err
			}
		}
	}

	if ok, err := s.consistent(); err != nil {
		return err
	} else if !ok {
		core := s.Diagnose()
		s.Logger.Errorf("inconsistent constraints: %d clause core", len(core))
		for _, c := range core {
			s.Logger.Errorf("  %s", c)
		}
		return errors.Wrapf(ErrInconsistentConstraints, "core: %v", core)
	}

	s.Logger.Debugf("recalculated: %d constraints, %d equivalences", len(s.constraints), s.equiv.Len())
	return nil
}

// guards returns the simplified overflow guards of c. Guards that are
// statically false are skipped since wrapping is defined behavior.
func (s *Solver) guards(c Clause) []Clause {
	if !s.Guard {
		return nil
	}

	var a []Clause
	for _, g := range OverflowGuards(c) {
		simplified, truth := SimplifyClause(g)
		switch truth {
		case TruthTrue:
			continue
		case TruthFalse:
			s.Logger.Debugf("overflow guard always false, skipping: %s", c)
			continue
		}
		a = append(a, simplified)
	}
	return a
}

// assert records c & asserts its symbolic form on the backend.
func (s *Solver) assert(c Clause) error {
	if err := s.session.Backend().Assert(s.symbolize(c)); err != nil {
		return errors.Wrapf(err, "assert: %s", c)
	}
	s.constraints = append(s.constraints, c)
	return nil
}

func (s *Solver) consistent() (bool, error) {
	v, err := s.session.Backend().Check(NewTruthClause(false))
	if err != nil {
		return false, err
	}
	return v != Valid, nil
}

// Diagnose returns a minimal subset of the asserted clauses that cannot
// hold together, found by removing one clause at a time. The backend is
// left holding every asserted clause.
func (s *Solver) Diagnose() []Clause {
	defer s.reassert()

	core := append([]Clause{}, s.constraints...)
	for i := 0; i < len(core); {
		trial := append(append([]Clause{}, core[:i]...), core[i+1:]...)
		if s.inconsistentSubset(trial) {
			core = trial
			continue
		}
		i++
	}
	return core
}

// inconsistentSubset checks clauses on a fresh backend.
func (s *Solver) inconsistentSubset(clauses []Clause) bool {
	if err := s.session.Reset(); err != nil {
		return false
	}

	b := s.session.Backend()
	for _, c := range clauses {
		if err := b.Assert(s.symbolize(c)); err != nil {
			return false
		}
	}
	v, err := b.Check(NewTruthClause(false))
	return err == nil && v == Valid
}

func (s *Solver) reassert() {
	if err := s.session.Reset(); err != nil {
		return
	}
	for _, c := range s.constraints {
		if err := s.session.Backend().Assert(s.symbolize(c)); err != nil {
			s.Logger.WithError(err).Errorf("reassert: %s", c)
		}
	}
}

// symbolize returns a copy of c with every program reference replaced by a
// solver symbol.
func (s *Solver) symbolize(c Clause) Clause {
	return RewriteClause(c, func(e Expr) Expr {
		switch e := e.(type) {
		case *ValueExpr:
			return s.symbol(ValueName(e.Value), e.Width)
		case *UseExpr:
			return s.symbol(ValueName(e.Value), e.Width)
		case *VarExpr:
			return s.symbol(e.Name, e.Width)
		default:
			return CloneExpr(e)
		}
	})
}

func (s *Solver) symbol(name string, width uint) *VarExpr {
	sym, ok := s.symbols[name]
	if !ok {
		sym = NewVarExpr(name, width)
		s.symbols[name] = sym
	}
	return &VarExpr{Name: sym.Name, Width: sym.Width}
}

// Provable returns true if c holds in every execution consistent with the
// constraint set & the path conditions of the quantities c references.
func (s *Solver) Provable(c Clause) (_ bool, err error) {
	canonical, truth := SimplifyClause(s.equiv.Replace(c))
	switch truth {
	case TruthTrue:
		return true, nil
	case TruthFalse:
		return false, nil
	}

	b := s.session.Backend()
	if err := b.Push(); err != nil {
		return false, err
	}
	defer func() {
		if e := b.Pop(); e != nil && err == nil {
			err = e
		}
	}()

	r := newRealizer(s.prog, s.fixed)
	r.clause(c)
	for _, pc := range r.clauses {
		if err := s.assertQuery(pc); err != nil {
			return false, err
		}
	}
	for _, g := range s.guards(s.equiv.Replace(c)) {
		if err := b.Assert(s.symbolize(g)); err != nil {
			return false, err
		}
	}

	v, err := b.Check(s.symbolize(canonical))
	if err != nil {
		return false, errors.Wrapf(err, "check: %s", canonical)
	}
	return v == Valid, nil
}

// assertQuery asserts a path condition in the current query scope.
func (s *Solver) assertQuery(c Clause) error {
	simplified, truth := SimplifyClause(s.equiv.Replace(c))
	switch truth {
	case TruthTrue:
		return nil
	case TruthFalse:
		simplified = NewTruthClause(false)
	}
	return s.session.Backend().Assert(s.symbolize(simplified))
}

// Satisfiable returns true if c holds in at least one execution.
func (s *Solver) Satisfiable(c Clause) (bool, error) {
	ok, err := s.Provable(NewNotClause(c))
	if err != nil {
		return true, err
	}
	return !ok, nil
}

// GetFixedValue returns the literal value of v if the constraint set
// determines one.
func (s *Solver) GetFixedValue(v ssa.Value) (*ConstantExpr, bool) {
	if !IsQuantity(v) {
		return nil, false
	}
	e, err := NewValueExpr(v)
	if err != nil {
		return nil, false
	}
	if c, ok := s.equiv.Root(e).(*ConstantExpr); ok {
		return c, true
	}
	if c, ok := s.identified[v]; ok {
		return CloneExpr(c).(*ConstantExpr), true
	}
	return nil, false
}

// IsFixedInteger returns true if v is a fixed integer with a known value.
func (s *Solver) IsFixedInteger(v ssa.Value) bool {
	if !s.fixed.Contains(v) || !isInteger(v.Type()) {
		return false
	}
	_, ok := s.GetFixedValue(v)
	return ok
}

// FixedIntegers returns the fixed integers with a known value, sorted by name.
func (s *Solver) FixedIntegers() []ssa.Value {
	var a []ssa.Value
	for _, v := range s.fixed.Values() {
		if _, ok := v.(*ssa.Const); ok {
			continue
		}
		if s.IsFixedInteger(v) {
			a = append(a, v)
		}
	}
	return a
}

// IdentifyFixedValues tries to find a value for every fixed integer that
// has no literal representative: a candidate is read from a model of the
// constraint set and then proven to be the only possibility.
func (s *Solver) IdentifyFixedValues() (int, error) {
	b := s.session.Backend()
	if v, err := b.Check(NewTruthClause(false)); err != nil {
		return 0, err
	} else if v != Invalid {
		return 0, nil
	}

	// Collect candidates before any further query replaces the model.
	type candidate struct {
		value ssa.Value
		model uint64
		width uint
	}
	var candidates []candidate
	for _, v := range s.fixed.Values() {
		if _, ok := v.(*ssa.Const); ok || !isInteger(v.Type()) {
			continue
		} else if _, ok := s.GetFixedValue(v); ok {
			continue
		}

		e, err := NewValueExpr(v)
		if err != nil {
			continue
		}
		root, ok := s.equiv.Root(e).(*ValueExpr)
		if !ok {
			continue
		}
		sym, ok := s.symbols[ValueName(root.Value)]
		if !ok {
			continue
		}
		if value, ok := b.Value(sym); ok {
			candidates = append(candidates, candidate{value: v, model: value, width: root.Width})
		}
	}

	var n int
	for _, cand := range candidates {
		e, _ := NewValueExpr(cand.value)
		lit := NewConstantExpr(cand.model, cand.width)
		ok, err := s.Provable(&BoolExpr{Pred: EQ, LHS: e, RHS: lit})
		if err != nil {
			return n, err
		} else if ok {
			s.identified[cand.value] = lit
			n++
		}
	}
	return n, nil
}

// Counterexample returns the symbol values of the last query that failed,
// if the backend keeps models.
func (s *Solver) Counterexample() map[string]uint64 {
	b := s.session.Backend()
	m := make(map[string]uint64)
	for name, sym := range s.symbols {
		if value, ok := b.Value(sym); ok {
			m[name] = value
		}
	}
	return m
}

// NumConstraints returns the number of asserted clauses.
func (s *Solver) NumConstraints() int {
	return len(s.constraints)
}

// Constraint returns the i-th asserted clause.
func (s *Solver) Constraint(i int) Clause {
	return s.constraints[i]
}

// Constraints returns the input constraint set of the current round.
func (s *Solver) Constraints() ConstraintSet {
	return s.input
}

// Fingerprint returns the fingerprint of the current round's input set.
func (s *Solver) Fingerprint() uint64 {
	return s.input.Fingerprint()
}

// Symbols returns the names of every symbol known to the backend.
func (s *Solver) Symbols() []string {
	a := make([]string, 0, len(s.symbols))
	for name := range s.symbols {
		a = append(a, name)
	}
	sort.Strings(a)
	return a
}

func isInteger(typ types.Type) bool {
	basic, ok := typ.Underlying().(*types.Basic)
	return ok && basic.Info()&types.IsInteger != 0
}
