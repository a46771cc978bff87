package refine

import (
	"strings"

	"golang.org/x/tools/go/ssa"
)

// Library functions with known result ranges. These do not write memory
// outside of their own package.
var summaries = map[string]map[string]summaryKind{
	"math/rand": {
		"Intn":   summaryBelowArg,
		"Int31n": summaryBelowArg,
		"Int63n": summaryBelowArg,
		"Int":    summaryNonNegative,
		"Int31":  summaryNonNegative,
		"Int63":  summaryNonNegative,
	},
	"strings": {
		"Index":         summaryIndex,
		"IndexByte":     summaryIndex,
		"IndexRune":     summaryIndex,
		"IndexAny":      summaryIndex,
		"IndexFunc":     summaryIndex,
		"LastIndex":     summaryIndex,
		"LastIndexByte": summaryIndex,
		"LastIndexAny":  summaryIndex,
		"LastIndexFunc": summaryIndex,
	},
	"bytes": {
		"Index":         summaryIndex,
		"IndexByte":     summaryIndex,
		"IndexRune":     summaryIndex,
		"IndexAny":      summaryIndex,
		"IndexFunc":     summaryIndex,
		"LastIndex":     summaryIndex,
		"LastIndexByte": summaryIndex,
		"LastIndexAny":  summaryIndex,
		"LastIndexFunc": summaryIndex,
	},
}

type summaryKind int

const (
	summaryNone summaryKind = iota
	summaryNonNegative
	summaryBelowArg // [0, n)
	summaryIndex    // >= -1
)

func summaryOf(fn *ssa.Function) summaryKind {
	if fn == nil || fn.Pkg == nil {
		return summaryNone
	}
	m := summaries[fn.Pkg.Pkg.Path()]
	if m == nil {
		return summaryNone
	}
	// Methods are only summarized on math/rand.Rand.
	if recv := fn.Signature.Recv(); recv != nil && !strings.HasSuffix(recv.Type().String(), "math/rand.Rand") {
		return summaryNone
	}
	return m[fn.Name()]
}

func isSummarized(fn *ssa.Function) bool {
	return summaryOf(fn) != summaryNone
}

// captureSummary emits the range of a call result.
func (c *Capturer) captureSummary(call *ssa.Call) error {
	v, err := NewValueExpr(call)
	if err != nil {
		return nil
	}
	width := ExprWidth(v)
	common := call.Common()

	if b, ok := common.Value.(*ssa.Builtin); ok {
		switch b.Name() {
		case "len", "cap", "copy":
			return c.emitCompare(SGE, v, NewConstantExpr(0, width))
		}
		return nil
	}

	switch summaryOf(common.StaticCallee()) {
	case summaryNonNegative:
		return c.emitCompare(SGE, v, NewConstantExpr(0, width))

	case summaryBelowArg:
		if err := c.emitCompare(SGE, v, NewConstantExpr(0, width)); err != nil {
			return err
		}
		if len(common.Args) == 0 {
			return nil
		}
		n, ok := c.operand(common.Args[len(common.Args)-1])
		if !ok || ExprWidth(n) != width {
			return nil
		}
		return c.emitCompare(SLT, v, n)

	case summaryIndex:
		return c.emitCompare(SGE, v, NewSignedConstantExpr(-1, width))
	}
	return nil
}

func (c *Capturer) emitCompare(pred BinaryOp, lhs, rhs Expr) error {
	clause, err := NewBoolExpr(pred, CloneExpr(lhs), rhs)
	if err != nil {
		return err
	}
	c.emit(clause)
	return nil
}

// captureLayout emits the address space constraints of fixed globals &
// allocations: objects are not nil, fit in the address space & do not
// overlap each other.
func (c *Capturer) captureLayout() error {
	type object struct {
		addr Expr
		size uint64
	}

	var objects []object
	for _, v := range c.fixed.Values() {
		switch v.(type) {
		case *ssa.Global, *ssa.Alloc:
		default:
			continue
		}

		size := SizeOf(deref(v.Type()))
		if size <= 0 {
			continue
		}
		addr, err := NewValueExpr(v)
		if err != nil {
			return err
		}
		objects = append(objects, object{addr: addr, size: uint64(size)})
	}

	if limit := c.Config.LayoutLimit; limit > 0 && len(objects) > limit {
		c.Logger.Debugf("layout: %d objects, limited to %d", len(objects), limit)
		objects = objects[:limit]
	}

	for _, obj := range objects {
		if err := c.emitCompare(NE, obj.addr, NewConstantExpr(0, WidthPtr)); err != nil {
			return err
		}
		if err := c.emitCompare(ULE, obj.addr, NewConstantExpr(bitmask(WidthPtr)-obj.size, WidthPtr)); err != nil {
			return err
		}
	}

	for i := range objects {
		for j := i + 1; j < len(objects); j++ {
			a, b := objects[i], objects[j]
			before, err := endsBefore(a.addr, a.size, b.addr)
			if err != nil {
				return err
			}
			after, err := endsBefore(b.addr, b.size, a.addr)
			if err != nil {
				return err
			}
			clause, err := NewBinaryClause(CLAUSE_OR, before, after)
			if err != nil {
				return err
			}
			c.emit(clause)
		}
	}
	return nil
}

// endsBefore returns (a + size) <= b.
func endsBefore(a Expr, size uint64, b Expr) (Clause, error) {
	end, err := NewBinaryExpr(ADD, CloneExpr(a), NewConstantExpr(size, WidthPtr))
	if err != nil {
		return nil, err
	}
	return NewBoolExpr(ULE, end, CloneExpr(b))
}
