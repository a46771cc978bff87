package refine

import (
	"golang.org/x/tools/go/ssa"
)

// avoidBranch returns the clause under which the If terminator does not
// take successor succ. Returns false if the condition is not fixed.
func avoidBranch(fixed *FixedValueSet, instr *ssa.If, succ int) (Clause, bool) {
	if !fixed.Contains(instr.Cond) {
		return nil, false
	}
	cond, err := NewValueExpr(instr.Cond)
	if err != nil {
		return nil, false
	}

	// Succs[0] is taken when the condition holds.
	value := uint64(1)
	if succ == 0 {
		value = 0
	}
	return &BoolExpr{Pred: EQ, LHS: cond, RHS: NewConstantExpr(value, WidthBool)}, true
}

// realizer collects the path conditions under which a set of instructions
// execute.
type realizer struct {
	prog    *Program
	fixed   *FixedValueSet
	visited map[ssa.Instruction]bool
	clauses []Clause
}

func newRealizer(prog *Program, fixed *FixedValueSet) *realizer {
	return &realizer{
		prog:    prog,
		fixed:   fixed,
		visited: make(map[ssa.Instruction]bool),
	}
}

// clause realizes every program reference in c.
func (r *realizer) clause(c Clause) {
	WalkClauseExprs(c, func(e Expr) bool {
		switch e := e.(type) {
		case *ValueExpr:
			r.value(e.Value)
		case *UseExpr:
			r.instr(e.User)
		}
		return true
	})
}

func (r *realizer) value(v ssa.Value) {
	switch v := v.(type) {
	case *ssa.Parameter:
		if site := r.prog.SingleCallSite(v.Parent()); site != nil {
			r.instr(site)
		}
	case ssa.Instruction:
		r.instr(v)
	}
}

// instr realizes the branches dominating instr and, transitively, the
// single call site of its function.
func (r *realizer) instr(instr ssa.Instruction) {
	if r.prog == nil || r.visited[instr] || instr.Block() == nil {
		return
	}
	r.visited[instr] = true

	r.branches(instr.Block())

	if site := r.prog.SingleCallSite(instr.Parent()); site != nil {
		r.instr(site)
	}
}

// branches walks the dominator chain of b. Every successor of a dominating
// branch that cannot reach the dominated block without passing through the
// branch again is avoided.
func (r *realizer) branches(b *ssa.BasicBlock) {
	for dom, p := b, b.Idom(); p != nil; dom, p = p, p.Idom() {
		term, ok := p.Instrs[len(p.Instrs)-1].(*ssa.If)
		if !ok {
			continue
		}

		reach := FloodBackward(dom, p)
		for i, succ := range p.Succs {
			if reach[succ] {
				continue
			}
			if c, ok := avoidBranch(r.fixed, term, i); ok {
				r.clauses = append(r.clauses, c)
			}
		}
	}
}
