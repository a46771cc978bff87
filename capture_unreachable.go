package refine

import (
	"golang.org/x/tools/go/ssa"
)

// captureUnreachable emits a guard for every branch of fn that leads only
// to a panic. Only branches that execute once and lie on every path from
// entry to return are considered: if the function returns, the branch was
// taken the other way.
func (c *Capturer) captureUnreachable(fn *ssa.Function) {
	if !c.once.FunctionOnce(fn) {
		return
	}

	for _, b := range fn.Blocks {
		if len(b.Instrs) == 0 || !c.once.BlockOnce(b) || !IsOnEveryPath(b) {
			continue
		}
		term, ok := b.Instrs[len(b.Instrs)-1].(*ssa.If)
		if !ok {
			continue
		}

		for i, succ := range b.Succs {
			if !c.prog.AlwaysPanics(succ) {
				continue
			}
			if clause, ok := avoidBranch(c.fixed, term, i); ok {
				c.Logger.Debugf("unreachable: %s -> %s", InstrName(term), succ)
				c.emit(clause)
			}
		}
	}
}
