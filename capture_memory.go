package refine

import (
	"go/token"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// span is the part of a function that lies strictly between two points.
// A nil from is the function entry; a nil to is every return.
type span struct {
	fn       *ssa.Function
	from, to ssa.Instruction
}

// captureLoad emits the value of a load: the single writer reaching it, or
// else a disjunction over every value stored to its address.
func (c *Capturer) captureLoad(load *ssa.UnOp) error {
	if c.spawnedMayWrite(load.X) {
		return nil
	}

	if value, ok := c.mustAssign(load); ok {
		if ExprWidth(value) != mustWidth(load) {
			return nil
		}
		return c.emitEq(load, value)
	}

	if c.Config.MayAssign {
		if err := c.branchAssign(load); err != nil {
			return err
		}
		return c.mayAssign(load)
	}
	return nil
}

// branchAssign emits, for every fixed branch dominating the load, the value
// the load must read when the branch is taken: the last store to the
// address in the successor block, if nothing between it and the load may
// write the address. The clause is "branch avoided, or load == value".
func (c *Capturer) branchAssign(load *ssa.UnOp) error {
	lhs, err := NewValueExpr(load)
	if err != nil {
		return err
	}

	for p := load.Block().Idom(); p != nil; p = p.Idom() {
		term, ok := p.Instrs[len(p.Instrs)-1].(*ssa.If)
		if !ok || !c.once.BlockOnce(p) {
			continue
		}

		for i, succ := range p.Succs {
			if succ == load.Block() {
				continue
			}
			store := lastStore(succ, func(addr ssa.Value) bool {
				return c.alias.Alias(addr, load.X) == MustAlias
			})
			if store == nil {
				continue
			}

			value, ok := c.operand(store.Val)
			if !ok || ExprWidth(value) != ExprWidth(lhs) {
				continue
			} else if c.pathMayWrite(store, load, load.X) {
				continue
			}

			avoid, ok := avoidBranch(c.fixed, term, i)
			if !ok {
				continue
			}
			eq, err := NewBoolExpr(EQ, CloneExpr(lhs), value)
			if err != nil {
				return err
			}
			c.emit(NewDisjunction(avoid, eq))
		}
	}
	return nil
}

// pathMayWrite returns true if an instruction on a path from the block of
// from to the block of to may write addr. Both lie in the same function, in
// different blocks.
func (c *Capturer) pathMayWrite(from, to ssa.Instruction, addr ssa.Value) bool {
	back := FloodBackward(to.Block(), from.Block())
	for b := range FloodForward(from.Block()) {
		if !back[b] {
			continue
		}

		start, end := 0, len(b.Instrs)
		if b == from.Block() {
			start = instrIndex(from) + 1
		} else if b == to.Block() {
			end = instrIndex(to)
		}
		for _, instr := range b.Instrs[start:end] {
			if c.instrMayWrite(instr, addr) {
				return true
			}
		}
	}
	return false
}

// lastStore returns the last store in b whose address matches.
func lastStore(b *ssa.BasicBlock, match func(addr ssa.Value) bool) *ssa.Store {
	for i := len(b.Instrs) - 1; i >= 0; i-- {
		if store, ok := b.Instrs[i].(*ssa.Store); ok && match(store.Addr) {
			return store
		}
	}
	return nil
}

func mustWidth(v ssa.Value) uint {
	w, _ := TypeWidth(v.Type())
	return w
}

// mustAssign searches backward from the load for the nearest instruction
// that must write or read the same address. The value is only returned if
// nothing between that instruction and the load may write the address.
func (c *Capturer) mustAssign(load *ssa.UnOp) (Expr, bool) {
	addr := load.X
	spans := []span{{fn: load.Parent(), to: load}}

	var instr ssa.Instruction = load
	for {
		value, writer, found := c.findWriter(instr, addr)
		if found {
			spans[len(spans)-1].from = writer
			if value == nil || c.spansMayWrite(spans, addr) {
				return nil, false
			}
			return value, true
		}

		// Continue searching in the code that precedes the function.
		fn := instr.Parent()
		if site := c.prog.SingleCallSite(fn); site != nil {
			if !c.once.BlockOnce(site.Block()) {
				return nil, false
			}
			spans = append(spans, span{fn: site.Parent(), to: site})
			instr = site
			continue
		}

		if init := c.prog.MainInit(fn); init != nil {
			ret := SingleReturn(init)
			if ret == nil {
				return nil, false
			}
			spans = append(spans, span{fn: init})
			if len(ret.Block().Instrs) == 0 {
				return nil, false
			}
			instr = ret
			continue
		}

		// Package-level variables are zero when their initializer starts.
		if IsPackageInit(fn) {
			if root, ok := ResolveAddr(addr); ok {
				if g, ok := root.Root.(*ssa.Global); ok && g.Pkg == fn.Pkg {
					if c.spansMayWrite(spans, addr) {
						return nil, false
					}
					return NewConstantExpr(0, mustWidth(load)), true
				}
			}
		}
		return nil, false
	}
}

// findWriter walks backward from instr through its block & then the
// immediate dominators. Returns the value written by the nearest store,
// load or zeroing allocation that must alias addr. A nil value with found
// set means the nearest writer's value is not fixed.
func (c *Capturer) findWriter(instr ssa.Instruction, addr ssa.Value) (value Expr, writer ssa.Instruction, found bool) {
	b := instr.Block()
	index := instrIndex(instr)

	for b != nil {
		for i := index - 1; i >= 0; i-- {
			switch other := b.Instrs[i].(type) {
			case *ssa.Store:
				if c.alias.Alias(other.Addr, addr) == MustAlias {
					value, _ := c.operand(other.Val)
					return value, other, true
				}
			case *ssa.UnOp:
				if other.Op == token.MUL && c.alias.Alias(other.X, addr) == MustAlias {
					value, _ := c.operand(other)
					return value, other, true
				}
			case *ssa.Alloc:
				if root, ok := ResolveAddr(addr); ok && root.Root == other {
					if w, ok := TypeWidth(deref(addr.Type())); ok {
						return NewConstantExpr(0, w), other, true
					}
					return nil, other, true
				}
			}
		}

		b = b.Idom()
		if b != nil {
			index = len(b.Instrs)
		}
	}
	return nil, nil, false
}

// spansMayWrite returns true if any instruction within the spans may write addr.
func (c *Capturer) spansMayWrite(spans []span, addr ssa.Value) bool {
	for _, s := range spans {
		if c.spanMayWrite(s, addr) {
			return true
		}
	}
	return false
}

func (c *Capturer) spanMayWrite(s span, addr ssa.Value) bool {
	var fromBlock *ssa.BasicBlock
	if s.from != nil {
		fromBlock = s.from.Block()
	}

	var targets []*ssa.BasicBlock
	if s.to != nil {
		targets = []*ssa.BasicBlock{s.to.Block()}
	} else {
		targets = ReturnBlocks(s.fn)
	}

	for _, target := range targets {
		for b := range FloodBackward(target, fromBlock) {
			start, end := 0, len(b.Instrs)
			if b == fromBlock {
				start = instrIndex(s.from) + 1
			}
			if s.to != nil && b == target {
				end = instrIndex(s.to)
			}
			for _, instr := range b.Instrs[start:end] {
				if c.instrMayWrite(instr, addr) {
					return true
				}
			}
		}
	}
	return false
}

// instrMayWrite returns true if executing instr may change the memory at addr.
func (c *Capturer) instrMayWrite(instr ssa.Instruction, addr ssa.Value) bool {
	switch instr := instr.(type) {
	case *ssa.Store:
		return c.alias.Alias(instr.Addr, addr) != NoAlias
	case ssa.CallInstruction:
		return c.callMayWrite(instr, addr, make(map[*ssa.Function]bool))
	case *ssa.RunDefers:
		return hasDefer(instr.Parent())
	}
	return false
}

// callMayWrite returns true if the call may write addr, directly or through
// the functions it calls.
func (c *Capturer) callMayWrite(call ssa.CallInstruction, addr ssa.Value, visiting map[*ssa.Function]bool) bool {
	common := call.Common()
	if b, ok := common.Value.(*ssa.Builtin); ok {
		return builtinMayWrite(b, addr)
	}

	callees := c.prog.Callees(call)
	if len(callees) == 0 {
		return true
	}
	for _, fn := range callees {
		if c.functionMayWrite(fn, addr, visiting) {
			return true
		}
	}
	return false
}

func (c *Capturer) functionMayWrite(fn *ssa.Function, addr ssa.Value, visiting map[*ssa.Function]bool) bool {
	if visiting[fn] {
		return false
	}
	visiting[fn] = true

	if isSummarized(fn) {
		root, ok := ResolveAddr(addr)
		if !ok {
			return true
		}
		g, ok := root.Root.(*ssa.Global)
		return ok && g.Pkg == fn.Pkg
	}

	// Functions without a body only reach memory through their arguments.
	if len(fn.Blocks) == 0 {
		return opaqueMayWrite(fn.Signature)
	}

	summary := c.writeSummary(fn)
	for _, store := range summary.stores {
		if c.alias.Alias(store, addr) != NoAlias {
			return true
		}
	}
	for _, call := range summary.calls {
		if c.callMayWrite(call, addr, visiting) {
			return true
		}
	}
	return false
}

// writeSummary lists the stores & calls of a function.
type writeSummary struct {
	stores []ssa.Value
	calls  []ssa.CallInstruction
}

func (c *Capturer) writeSummary(fn *ssa.Function) *writeSummary {
	if s, ok := c.writes[fn]; ok {
		return s
	}

	s := &writeSummary{}
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			switch instr := instr.(type) {
			case *ssa.Store:
				s.stores = append(s.stores, instr.Addr)
			case ssa.CallInstruction:
				s.calls = append(s.calls, instr)
			}
		}
	}
	for _, anon := range fn.AnonFuncs {
		s.calls = append(s.calls, c.writeSummary(anon).calls...)
		s.stores = append(s.stores, c.writeSummary(anon).stores...)
	}
	c.writes[fn] = s
	return s
}

// spawnedMayWrite returns true if any function started with a go statement
// may write addr.
func (c *Capturer) spawnedMayWrite(addr ssa.Value) bool {
	for _, instr := range c.spawned {
		if c.callMayWrite(instr, addr, make(map[*ssa.Function]bool)) {
			return true
		}
	}
	return false
}

// mayAssign emits the disjunction of every value that may be stored to the
// address of the load, including its zero value. Requires every such store
// to write a fixed value & no opaque call to be able to write the address.
func (c *Capturer) mayAssign(load *ssa.UnOp) error {
	root, ok := ResolveAddr(load.X)
	if !ok {
		return nil
	}
	if !c.opaqueCallsSafe(load.X) {
		return nil
	}

	width := mustWidth(load)
	values := []Expr{NewConstantExpr(0, width)}
	for _, store := range c.prog.Stores() {
		if c.alias.Alias(store.Addr, load.X) == NoAlias {
			continue
		}
		value, ok := c.operand(store.Val)
		if !ok || ExprWidth(value) != width {
			return nil
		}
		values = append(values, value)
	}

	// An allocation is zeroed each time it executes.
	if _, ok := root.Root.(*ssa.Alloc); ok && !c.once.BlockOnce(root.Root.(*ssa.Alloc).Block()) {
		return nil
	}

	lhs, err := NewValueExpr(load)
	if err != nil {
		return err
	}
	var clauses []Clause
	for i, value := range values {
		dup := false
		for _, prev := range values[:i] {
			if CompareExpr(prev, value) == 0 {
				dup = true
				break
			}
		}
		if dup {
			continue
		}
		clause, err := NewBoolExpr(EQ, CloneExpr(lhs), value)
		if err != nil {
			return err
		}
		clauses = append(clauses, clause)
	}
	c.emit(NewDisjunction(clauses...))
	return nil
}

// opaqueCallsSafe returns true if no call whose effect is not visible as a
// store in the program may write addr.
func (c *Capturer) opaqueCallsSafe(addr ssa.Value) bool {
	for _, fn := range c.prog.Functions() {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				call, ok := instr.(ssa.CallInstruction)
				if !ok {
					continue
				}
				if builtin, ok := call.Common().Value.(*ssa.Builtin); ok {
					if builtinMayWrite(builtin, addr) {
						return false
					}
					continue
				}
				callees := c.prog.Callees(call)
				if len(callees) == 0 {
					return false
				}
				for _, callee := range callees {
					if len(callee.Blocks) == 0 && c.functionMayWrite(callee, addr, make(map[*ssa.Function]bool)) {
						return false
					}
				}
			}
		}
	}
	return true
}

// opaqueMayWrite returns true if a call with signature sig, whose body is
// not visible, may write memory: only through a pointer-carrying receiver
// or parameter.
func opaqueMayWrite(sig *types.Signature) bool {
	if recv := sig.Recv(); recv != nil && mayCarryPointer(recv.Type()) {
		return true
	}
	params := sig.Params()
	for i := 0; i < params.Len(); i++ {
		if mayCarryPointer(params.At(i).Type()) {
			return true
		}
	}
	return false
}

// builtinMayWrite returns true if a builtin may write addr. Only copy,
// append & clear write memory and only through slices.
func builtinMayWrite(b *ssa.Builtin, addr ssa.Value) bool {
	switch b.Name() {
	case "copy", "append", "clear":
		root, ok := ResolveAddr(addr)
		if !ok {
			return true
		}
		return len(root.Path) > 0 || !isScalar(deref(root.Root.Type()))
	default:
		return false
	}
}

func goStatements(prog *Program) []*ssa.Go {
	var a []*ssa.Go
	for _, fn := range prog.Functions() {
		for _, b := range fn.Blocks {
			for _, instr := range b.Instrs {
				if instr, ok := instr.(*ssa.Go); ok {
					a = append(a, instr)
				}
			}
		}
	}
	return a
}

func hasDefer(fn *ssa.Function) bool {
	for _, b := range fn.Blocks {
		for _, instr := range b.Instrs {
			if _, ok := instr.(*ssa.Defer); ok {
				return true
			}
		}
	}
	return false
}

func deref(typ types.Type) types.Type {
	if ptr, ok := typ.Underlying().(*types.Pointer); ok {
		return ptr.Elem()
	}
	return typ
}

// isScalar returns true if typ contains no slices, arrays or structs.
func isScalar(typ types.Type) bool {
	switch typ.Underlying().(type) {
	case *types.Basic, *types.Pointer:
		return true
	}
	return false
}

// mayCarryPointer returns true if a value of typ can reference memory.
func mayCarryPointer(typ types.Type) bool {
	switch typ := typ.Underlying().(type) {
	case *types.Basic:
		return typ.Kind() == types.UnsafePointer || typ.Kind() == types.Uintptr
	case *types.Array:
		return mayCarryPointer(typ.Elem())
	case *types.Struct:
		for i := 0; i < typ.NumFields(); i++ {
			if mayCarryPointer(typ.Field(i).Type()) {
				return true
			}
		}
		return false
	}
	return true
}
