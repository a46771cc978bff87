package refine

import (
	"golang.org/x/tools/go/ssa"
)

// ExecOnceOracle answers whether code executes at most once per run.
type ExecOnceOracle interface {
	FunctionOnce(fn *ssa.Function) bool
	BlockOnce(b *ssa.BasicBlock) bool
}

// Ensure type implements interface.
var _ ExecOnceOracle = (*ExecOnce)(nil)

// ExecOnce computes the functions that execute at most once as a least
// fixpoint. Entry points execute once if nothing else calls them. Any other
// function executes once if it cannot be called indirectly and has exactly
// one call site located in a block that executes once.
type ExecOnce struct {
	prog  *Program
	funcs map[*ssa.Function]bool
}

// NewExecOnce returns a new oracle computed over prog.
func NewExecOnce(prog *Program) *ExecOnce {
	o := &ExecOnce{prog: prog, funcs: make(map[*ssa.Function]bool)}

	for _, fn := range prog.Functions() {
		if prog.IsEntry(fn) && len(prog.CallSites(fn)) == 0 && !prog.IsAddressTaken(fn) {
			o.funcs[fn] = true
		}
	}

	for changed := true; changed; {
		changed = false
		for _, fn := range prog.Functions() {
			if o.funcs[fn] {
				continue
			}
			site := prog.SingleCallSite(fn)
			if site == nil || !o.BlockOnce(site.Block()) {
				continue
			}
			o.funcs[fn], changed = true, true
		}
	}
	return o
}

// FunctionOnce returns true if fn is invoked at most once. Functions that
// are never invoked are not considered to execute once.
func (o *ExecOnce) FunctionOnce(fn *ssa.Function) bool {
	return o.funcs[fn]
}

// BlockOnce returns true if b belongs to a function that executes once and
// b is not part of a loop.
func (o *ExecOnce) BlockOnce(b *ssa.BasicBlock) bool {
	if b == nil || !o.funcs[b.Parent()] {
		return false
	}
	return !o.prog.InCycle(b)
}
