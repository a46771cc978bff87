package refine

import (
	"fmt"
	"go/constant"
	"go/types"

	"golang.org/x/tools/go/ssa"
)

// sizes is the layout used for field offsets & allocation sizes.
var sizes = types.SizesFor("gc", "amd64")

// TypeWidth returns the bit width of a quantity type. Only integers,
// booleans & pointers are quantities.
func TypeWidth(typ types.Type) (uint, bool) {
	switch typ := typ.Underlying().(type) {
	case *types.Basic:
		switch typ.Kind() {
		case types.Bool, types.UntypedBool:
			return WidthBool, true
		case types.Int8, types.Uint8:
			return Width8, true
		case types.Int16, types.Uint16:
			return Width16, true
		case types.Int32, types.Uint32:
			return Width32, true
		case types.Int64, types.Uint64:
			return Width64, true
		case types.Int, types.Uint, types.Uintptr, types.UntypedInt, types.UntypedRune:
			return uint(sizes.Sizeof(typ) * 8), true
		case types.UnsafePointer:
			return WidthPtr, true
		}
	case *types.Pointer:
		return WidthPtr, true
	}
	return 0, false
}

// IsQuantity returns true if v is an integer, boolean or pointer value.
func IsQuantity(v ssa.Value) bool {
	if _, ok := v.(*ssa.Function); ok {
		return false
	}
	_, ok := TypeWidth(v.Type())
	return ok
}

// IsSigned returns true if typ is a signed integer type.
func IsSigned(typ types.Type) bool {
	basic, ok := typ.Underlying().(*types.Basic)
	return ok && basic.Info()&types.IsInteger != 0 && basic.Info()&types.IsUnsigned == 0
}

// IsPointer returns true if typ is a pointer-like quantity.
func IsPointer(typ types.Type) bool {
	switch typ := typ.Underlying().(type) {
	case *types.Pointer:
		return true
	case *types.Basic:
		return typ.Kind() == types.UnsafePointer || typ.Kind() == types.Uintptr
	}
	return false
}

// SizeOf returns the size of typ in bytes.
func SizeOf(typ types.Type) int64 {
	return sizes.Sizeof(typ)
}

// constValue returns the raw bits of a literal constant.
func constValue(c *ssa.Const) uint64 {
	if c.Value == nil {
		return 0 // nil pointer
	}
	switch c.Value.Kind() {
	case constant.Bool:
		if constant.BoolVal(c.Value) {
			return 1
		}
		return 0
	case constant.Int:
		if v, ok := constant.Int64Val(c.Value); ok {
			return uint64(v)
		}
		v, _ := constant.Uint64Val(c.Value)
		return v
	}
	return 0
}

// ValueName returns a program-wide name for v that is stable across runs.
func ValueName(v ssa.Value) string {
	switch v := v.(type) {
	case *ssa.Global:
		return v.String()
	case *ssa.Function:
		return v.String()
	case *ssa.Const:
		return v.String()
	case *ssa.Parameter:
		return fmt.Sprintf("%s:$%s", v.Parent(), v.Name())
	case *ssa.FreeVar:
		return fmt.Sprintf("%s:^%s", v.Parent(), v.Name())
	}
	if fn := v.Parent(); fn != nil {
		return fmt.Sprintf("%s:%s", fn, v.Name())
	}
	return v.Name()
}

// InstrName returns a program-wide name for an instruction's position.
func InstrName(instr ssa.Instruction) string {
	b := instr.Block()
	if b == nil {
		return fmt.Sprintf("%s:?", instr.Parent())
	}
	return fmt.Sprintf("%s:%d.%d", instr.Parent(), b.Index, instrIndex(instr))
}

// instrIndex returns the index of instr within its block.
func instrIndex(instr ssa.Instruction) int {
	for i, other := range instr.Block().Instrs {
		if other == instr {
			return i
		}
	}
	return -1
}
