package refine

import (
	"sort"

	"golang.org/x/tools/go/ssa"
)

// FixedValueSet is the set of quantities whose value is a single,
// well-defined number for the whole run.
type FixedValueSet struct {
	m map[ssa.Value]struct{}
}

// NewFixedValueSet returns a set containing values.
func NewFixedValueSet(values ...ssa.Value) *FixedValueSet {
	s := &FixedValueSet{m: make(map[ssa.Value]struct{})}
	for _, v := range values {
		s.Add(v)
	}
	return s
}

// Add inserts v into the set.
func (s *FixedValueSet) Add(v ssa.Value) {
	s.m[v] = struct{}{}
}

// Contains returns true if v is fixed. Literal constants of quantity type
// are always fixed.
func (s *FixedValueSet) Contains(v ssa.Value) bool {
	if s == nil {
		return false
	}
	if c, ok := v.(*ssa.Const); ok {
		return IsQuantity(c)
	}
	_, ok := s.m[v]
	return ok
}

// Len returns the number of values in the set.
func (s *FixedValueSet) Len() int {
	if s == nil {
		return 0
	}
	return len(s.m)
}

// Values returns the values in the set sorted by name.
func (s *FixedValueSet) Values() []ssa.Value {
	if s == nil {
		return nil
	}
	a := make([]ssa.Value, 0, len(s.m))
	for v := range s.m {
		a = append(a, v)
	}
	sort.Slice(a, func(i, j int) bool { return ValueName(a[i]) < ValueName(a[j]) })
	return a
}

// Classify returns the fixed quantities of prog: every global, every value
// computed in a block that executes once, the parameters of functions that
// execute once from a single call site & the literals those values use.
func Classify(prog *Program, once ExecOnceOracle) *FixedValueSet {
	s := NewFixedValueSet()
	for _, g := range globals(prog.SSA) {
		s.Add(g)
	}

	var rands []*ssa.Value
	for _, fn := range prog.Functions() {
		if !once.FunctionOnce(fn) {
			continue
		}

		if prog.SingleCallSite(fn) != nil {
			for _, param := range fn.Params {
				if IsQuantity(param) {
					s.Add(param)
				}
			}
		}

		for _, b := range fn.Blocks {
			if !once.BlockOnce(b) {
				continue
			}
			for _, instr := range b.Instrs {
				if v, ok := instr.(ssa.Value); ok && IsQuantity(v) {
					s.Add(v)
				}
				for _, op := range instr.Operands(rands[:0]) {
					if c, ok := (*op).(*ssa.Const); ok && IsQuantity(c) {
						s.Add(c)
					}
				}
			}
		}
	}
	return s
}

// globals returns every package-level variable in prog.
func globals(prog *ssa.Program) []*ssa.Global {
	var a []*ssa.Global
	for _, pkg := range prog.AllPackages() {
		for _, m := range pkg.Members {
			if g, ok := m.(*ssa.Global); ok {
				a = append(a, g)
			}
		}
	}
	sort.Slice(a, func(i, j int) bool { return a[i].String() < a[j].String() })
	return a
}
