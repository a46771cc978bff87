package refine

import (
	"sort"

	"golang.org/x/tools/go/callgraph"
	"golang.org/x/tools/go/callgraph/cha"
	"golang.org/x/tools/go/ssa"
	"golang.org/x/tools/go/ssa/ssautil"
)

// Program wraps an SSA program with the whole-program facts used by the
// capturer & oracles: a call graph, call sites and address-taken functions.
type Program struct {
	SSA   *ssa.Program
	Graph *callgraph.Graph

	funcs     []*ssa.Function
	entries   map[*ssa.Function]bool
	addrTaken map[*ssa.Function]bool
	sites     map[*ssa.Function][]ssa.CallInstruction
	callees   map[ssa.CallInstruction][]*ssa.Function
	stores    []*ssa.Store

	cyclic    map[*ssa.BasicBlock]bool
	panicking map[*ssa.BasicBlock]bool
}

// NewProgram returns a new Program for prog. The program must be built.
func NewProgram(prog *ssa.Program) *Program {
	p := &Program{
		SSA:       prog,
		Graph:     cha.CallGraph(prog),
		entries:   make(map[*ssa.Function]bool),
		addrTaken: make(map[*ssa.Function]bool),
		sites:     make(map[*ssa.Function][]ssa.CallInstruction),
		callees:   make(map[ssa.CallInstruction][]*ssa.Function),
	}

	for fn := range ssautil.AllFunctions(prog) {
		p.funcs = append(p.funcs, fn)
	}
	sort.Slice(p.funcs, func(i, j int) bool { return p.funcs[i].String() < p.funcs[j].String() })

	for _, pkg := range prog.AllPackages() {
		if fn := pkg.Func("init"); fn != nil {
			p.entries[fn] = true
		}
		if pkg.Pkg.Name() == "main" {
			if fn := pkg.Func("main"); fn != nil {
				p.entries[fn] = true
			}
		}
	}

	p.indexCallGraph()
	p.indexInstructions()
	return p
}

func (p *Program) indexCallGraph() {
	for _, fn := range p.funcs {
		node := p.Graph.Nodes[fn]
		if node == nil {
			continue
		}

		seen := make(map[ssa.CallInstruction]bool)
		for _, edge := range node.In {
			if edge.Site == nil || seen[edge.Site] {
				continue
			}
			seen[edge.Site] = true
			p.sites[fn] = append(p.sites[fn], edge.Site)
		}
		sort.Slice(p.sites[fn], func(i, j int) bool {
			return InstrName(p.sites[fn][i]) < InstrName(p.sites[fn][j])
		})

		for _, edge := range node.Out {
			if edge.Site != nil {
				p.callees[edge.Site] = append(p.callees[edge.Site], edge.Callee.Func)
			}
		}
	}
}

// indexInstructions records address-taken functions & every store.
func (p *Program) indexInstructions() {
	var rands []*ssa.Value
	for _, fn := range p.funcs {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				switch instr := instr.(type) {
				case *ssa.Store:
					p.stores = append(p.stores, instr)
				case *ssa.DebugRef:
					// Source references to a function do not let it escape.
					continue
				}

				var callee ssa.Value
				if call, ok := instr.(ssa.CallInstruction); ok && !call.Common().IsInvoke() {
					callee = call.Common().Value
				}
				for _, op := range instr.Operands(rands[:0]) {
					if fn, ok := (*op).(*ssa.Function); ok && *op != callee {
						p.addrTaken[fn] = true
					}
				}
			}
		}
	}
}

// Functions returns every function in the program, sorted by name.
func (p *Program) Functions() []*ssa.Function {
	return p.funcs
}

// Stores returns every store in the program in a deterministic order.
func (p *Program) Stores() []*ssa.Store {
	return p.stores
}

// IsEntry returns true if fn is invoked by the runtime: main.main or a
// package initializer.
func (p *Program) IsEntry(fn *ssa.Function) bool {
	return p.entries[fn]
}

// IsAddressTaken returns true if fn is used other than as a static callee.
func (p *Program) IsAddressTaken(fn *ssa.Function) bool {
	return p.addrTaken[fn]
}

// CallSites returns the distinct call sites that may invoke fn.
func (p *Program) CallSites(fn *ssa.Function) []ssa.CallInstruction {
	return p.sites[fn]
}

// SingleCallSite returns the only call site of fn, if there is exactly one
// and fn cannot be called indirectly.
func (p *Program) SingleCallSite(fn *ssa.Function) ssa.CallInstruction {
	if p.addrTaken[fn] || len(p.sites[fn]) != 1 {
		return nil
	}
	return p.sites[fn][0]
}

// Callees returns the functions that may be invoked by call.
func (p *Program) Callees(call ssa.CallInstruction) []*ssa.Function {
	if fn := call.Common().StaticCallee(); fn != nil {
		return []*ssa.Function{fn}
	}
	return p.callees[call]
}

// MainInit returns the initializer of the main package that precedes
// main.main, if fn is main.main.
func (p *Program) MainInit(fn *ssa.Function) *ssa.Function {
	if fn.Pkg == nil || fn.Pkg.Pkg.Name() != "main" || fn.Name() != "main" || fn.Signature.Recv() != nil {
		return nil
	}
	return fn.Pkg.Func("init")
}

// FindFunction returns the function whose qualified name ("pkg.Func" or
// "(*pkg.T).Method") or bare name matches name.
func (p *Program) FindFunction(name string) *ssa.Function {
	var found *ssa.Function
	for _, fn := range p.funcs {
		if fn.String() == name {
			return fn
		} else if found == nil && fn.Synthetic == "" && fn.Name() == name {
			found = fn
		}
	}
	return found
}

// LookupValue returns the value bound to the source variable name within
// fn. Requires SSA built in debug mode. Falls back to a package-level
// variable of the same name.
func LookupValue(fn *ssa.Function, name string) (ssa.Value, bool) {
	var found ssa.Value
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			ref, ok := instr.(*ssa.DebugRef)
			if !ok || ref.IsAddr {
				continue
			} else if obj := ref.Object(); obj == nil || obj.Name() != name {
				continue
			}
			// The last binding wins.
			found = ref.X
		}
	}
	if found != nil {
		return found, true
	}

	if fn.Pkg != nil {
		if g := fn.Pkg.Var(name); g != nil {
			return g, true
		}
	}
	return nil, false
}

// IsPackageInit returns true if fn is a package initializer.
func IsPackageInit(fn *ssa.Function) bool {
	return fn.Pkg != nil && fn.Synthetic == "package initializer"
}

// ReturnBlocks returns the blocks of fn that end in a return.
func ReturnBlocks(fn *ssa.Function) []*ssa.BasicBlock {
	var a []*ssa.BasicBlock
	for _, b := range fn.Blocks {
		if len(b.Instrs) == 0 {
			continue
		}
		if _, ok := b.Instrs[len(b.Instrs)-1].(*ssa.Return); ok {
			a = append(a, b)
		}
	}
	return a
}

// SingleReturn returns the only return instruction of fn, if any.
func SingleReturn(fn *ssa.Function) *ssa.Return {
	blocks := ReturnBlocks(fn)
	if len(blocks) != 1 {
		return nil
	}
	return blocks[0].Instrs[len(blocks[0].Instrs)-1].(*ssa.Return)
}

// IsOnEveryPath returns true if every path from the entry of b's function
// to a return passes through b.
func IsOnEveryPath(b *ssa.BasicBlock) bool {
	returns := ReturnBlocks(b.Parent())
	if len(returns) == 0 {
		return false
	}
	for _, ret := range returns {
		if !b.Dominates(ret) {
			return false
		}
	}
	return true
}

// InCycle returns true if b can reach itself.
func (p *Program) InCycle(b *ssa.BasicBlock) bool {
	if p.cyclic == nil {
		p.cyclic = make(map[*ssa.BasicBlock]bool)
	}
	if v, ok := p.cyclic[b]; ok {
		return v
	}

	seen := make(map[*ssa.BasicBlock]bool)
	stack := append([]*ssa.BasicBlock{}, b.Succs...)
	for len(stack) > 0 {
		other := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if other == b {
			p.cyclic[b] = true
			return true
		} else if seen[other] {
			continue
		}
		seen[other] = true
		stack = append(stack, other.Succs...)
	}
	p.cyclic[b] = false
	return false
}

// AlwaysPanics returns true if every path leaving b ends in a panic.
func (p *Program) AlwaysPanics(b *ssa.BasicBlock) bool {
	if p.panicking == nil {
		p.panicking = make(map[*ssa.BasicBlock]bool)
	}
	return p.alwaysPanics(b, make(map[*ssa.BasicBlock]bool))
}

func (p *Program) alwaysPanics(b *ssa.BasicBlock, visiting map[*ssa.BasicBlock]bool) bool {
	if v, ok := p.panicking[b]; ok {
		return v
	} else if visiting[b] {
		return false // loops may run forever
	}
	visiting[b] = true
	defer delete(visiting, b)

	if len(b.Instrs) == 0 {
		return false
	}

	v := false
	switch b.Instrs[len(b.Instrs)-1].(type) {
	case *ssa.Panic:
		v = true
	case *ssa.Jump, *ssa.If:
		v = len(b.Succs) > 0
		for _, succ := range b.Succs {
			if !p.alwaysPanics(succ, visiting) {
				v = false
				break
			}
		}
	}

	// Results under an in-progress cycle are not final.
	if len(visiting) == 1 || v {
		p.panicking[b] = v
	}
	return v
}

// FloodBackward returns the blocks from which from can be reached without
// passing through sink. The sink itself is included if it precedes from.
// from is always included.
func FloodBackward(from, sink *ssa.BasicBlock) map[*ssa.BasicBlock]bool {
	seen := map[*ssa.BasicBlock]bool{from: true}
	if from == sink {
		return seen
	}

	stack := []*ssa.BasicBlock{from}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, pred := range b.Preds {
			if seen[pred] {
				continue
			}
			seen[pred] = true
			if pred != sink {
				stack = append(stack, pred)
			}
		}
	}
	return seen
}

// FloodForward returns every block reachable from b, including b.
func FloodForward(b *ssa.BasicBlock) map[*ssa.BasicBlock]bool {
	seen := map[*ssa.BasicBlock]bool{b: true}
	stack := []*ssa.BasicBlock{b}
	for len(stack) > 0 {
		b := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		for _, succ := range b.Succs {
			if !seen[succ] {
				seen[succ] = true
				stack = append(stack, succ)
			}
		}
	}
	return seen
}
