package refine

import (
	"fmt"
	"strings"

	"github.com/pkg/errors"
	"golang.org/x/tools/go/ssa"
)

// Expr represents an arithmetic expression over program quantities.
type Expr interface {
	String() string
	expr()
}

func (*BinaryExpr) expr()   {}
func (*ConstantExpr) expr() {}
func (*UnaryExpr) expr()    {}
func (*UseExpr) expr()      {}
func (*ValueExpr) expr()    {}
func (*VarExpr) expr()      {}

// ExprWidth returns the bit width of the expression.
func ExprWidth(expr Expr) uint {
	switch expr := expr.(type) {
	case *ConstantExpr:
		return expr.Width
	case *ValueExpr:
		return expr.Width
	case *UseExpr:
		return expr.Width
	case *VarExpr:
		return expr.Width
	case *UnaryExpr:
		return expr.Width
	case *BinaryExpr:
		if expr.Op.IsCompare() {
			return WidthBool
		}
		return ExprWidth(expr.LHS)
	default:
		panic("unreachable")
	}
}

// BinaryOp represents a binary expression operation.
type BinaryOp int

// BinaryExpr operations.
const (
	arithmetic_op_begin = BinaryOp(iota)
	ADD
	SUB
	MUL
	UDIV
	SDIV
	UREM
	SREM
	AND
	OR
	XOR
	SHL
	LSHR
	ASHR
	arithmetic_op_end

	compare_op_begin
	EQ
	NE
	ULT
	ULE
	UGT
	UGE
	SLT
	SLE
	SGT
	SGE
	compare_op_end
)

var binaryOps = [...]string{
	ADD:  "add",
	SUB:  "sub",
	MUL:  "mul",
	UDIV: "udiv",
	SDIV: "sdiv",
	UREM: "urem",
	SREM: "srem",
	AND:  "and",
	OR:   "or",
	XOR:  "xor",
	SHL:  "shl",
	LSHR: "lshr",
	ASHR: "ashr",
	EQ:   "eq",
	NE:   "ne",
	ULT:  "ult",
	ULE:  "ule",
	UGT:  "ugt",
	UGE:  "uge",
	SLT:  "slt",
	SLE:  "sle",
	SGT:  "sgt",
	SGE:  "sge",
}

// String returns the string representation of the operation.
func (op BinaryOp) String() string {
	if op >= 0 && op < BinaryOp(len(binaryOps)) && binaryOps[op] != "" {
		return binaryOps[op]
	}
	return fmt.Sprintf("BinaryOp<%d>", op)
}

// IsArithmetic returns true if op is an arithmetic operator.
func (op BinaryOp) IsArithmetic() bool {
	return op > arithmetic_op_begin && op < arithmetic_op_end
}

// IsCompare returns true if op is a comparison operator.
func (op BinaryOp) IsCompare() bool {
	return op > compare_op_begin && op < compare_op_end
}

// Swap returns the predicate with its operands reversed, e.g. ULT => UGT.
func (op BinaryOp) Swap() BinaryOp {
	switch op {
	case ULT:
		return UGT
	case ULE:
		return UGE
	case UGT:
		return ULT
	case UGE:
		return ULE
	case SLT:
		return SGT
	case SLE:
		return SGE
	case SGT:
		return SLT
	case SGE:
		return SLE
	default:
		return op
	}
}

// Negate returns the inverse predicate, e.g. ULT => UGE.
func (op BinaryOp) Negate() BinaryOp {
	switch op {
	case EQ:
		return NE
	case NE:
		return EQ
	case ULT:
		return UGE
	case ULE:
		return UGT
	case UGT:
		return ULE
	case UGE:
		return ULT
	case SLT:
		return SGE
	case SLE:
		return SGT
	case SGT:
		return SLE
	case SGE:
		return SLT
	default:
		panic(fmt.Sprintf("negate: not a predicate: %s", op))
	}
}

// ParsePredicate returns the predicate for s. Either a predicate name
// ("ult") or a Go comparison operator ("<") is accepted. Operators are
// mapped to the signed or unsigned predicate depending on signed.
func ParsePredicate(s string, signed bool) (BinaryOp, error) {
	switch s {
	case "==":
		return EQ, nil
	case "!=":
		return NE, nil
	case "<":
		if signed {
			return SLT, nil
		}
		return ULT, nil
	case "<=":
		if signed {
			return SLE, nil
		}
		return ULE, nil
	case ">":
		if signed {
			return SGT, nil
		}
		return UGT, nil
	case ">=":
		if signed {
			return SGE, nil
		}
		return UGE, nil
	}

	for op := compare_op_begin + 1; op < compare_op_end; op++ {
		if binaryOps[op] == s {
			return op, nil
		}
	}
	return 0, errors.Wrapf(ErrInvalidPredicate, "%q", s)
}

// BinaryExpr represents an operation on two expressions.
type BinaryExpr struct {
	Op  BinaryOp
	LHS Expr
	RHS Expr

	// NSW marks signed arithmetic that is assumed not to wrap.
	NSW bool
}

// NewBinaryExpr returns a new instance of BinaryExpr. Both operands must
// have the same width. If lhs & rhs are the same node then rhs is cloned.
func NewBinaryExpr(op BinaryOp, lhs, rhs Expr) (*BinaryExpr, error) {
	if !op.IsArithmetic() && !op.IsCompare() {
		return nil, errors.Wrapf(ErrInvalidOperator, "binary op %d", int(op))
	} else if lw, rw := ExprWidth(lhs), ExprWidth(rhs); lw != rw {
		return nil, errors.Wrapf(ErrWidthMismatch, "%s: %d != %d", op, lw, rw)
	}

	if lhs == rhs {
		rhs = CloneExpr(rhs)
	}
	return &BinaryExpr{Op: op, LHS: lhs, RHS: rhs}, nil
}

// String returns the string representation of the expression.
func (e *BinaryExpr) String() string {
	if e.NSW {
		return fmt.Sprintf("(%s.nsw %s %s)", e.Op, e.LHS, e.RHS)
	}
	return fmt.Sprintf("(%s %s %s)", e.Op, e.LHS, e.RHS)
}

// UnaryOp represents a unary expression operation.
type UnaryOp int

// UnaryExpr operations.
const (
	unary_op_begin = UnaryOp(iota)
	SEXT
	ZEXT
	TRUNC
	NOT
	NEG
	unary_op_end
)

var unaryOps = [...]string{
	SEXT:  "sext",
	ZEXT:  "zext",
	TRUNC: "trunc",
	NOT:   "bvnot",
	NEG:   "neg",
}

// String returns the string representation of the operation.
func (op UnaryOp) String() string {
	if op >= 0 && op < UnaryOp(len(unaryOps)) && unaryOps[op] != "" {
		return unaryOps[op]
	}
	return fmt.Sprintf("UnaryOp<%d>", op)
}

// UnaryExpr represents an operation on a single expression. Casts carry
// their target width; NOT & NEG preserve the source width.
type UnaryExpr struct {
	Op    UnaryOp
	Src   Expr
	Width uint

	// NSW marks a signed negation that is assumed not to wrap.
	NSW bool
}

// NewUnaryExpr returns a new instance of UnaryExpr.
func NewUnaryExpr(op UnaryOp, src Expr, width uint) (*UnaryExpr, error) {
	sw := ExprWidth(src)
	switch op {
	case SEXT, ZEXT:
		if width <= sw || width > Width64 {
			return nil, errors.Wrapf(ErrWidthMismatch, "%s: %d => %d", op, sw, width)
		}
	case TRUNC:
		if width >= sw || width == 0 {
			return nil, errors.Wrapf(ErrWidthMismatch, "%s: %d => %d", op, sw, width)
		}
	case NOT, NEG:
		if width != sw {
			return nil, errors.Wrapf(ErrWidthMismatch, "%s: %d => %d", op, sw, width)
		}
	default:
		return nil, errors.Wrapf(ErrInvalidOperator, "unary op %d", int(op))
	}
	return &UnaryExpr{Op: op, Src: src, Width: width}, nil
}

// NewCastExpr returns src converted to width. Returns src unchanged if the
// width already matches.
func NewCastExpr(src Expr, width uint, signed bool) (Expr, error) {
	sw := ExprWidth(src)
	switch {
	case width == sw:
		return src, nil
	case width < sw:
		return NewUnaryExpr(TRUNC, src, width)
	case signed:
		return NewUnaryExpr(SEXT, src, width)
	default:
		return NewUnaryExpr(ZEXT, src, width)
	}
}

// String returns the string representation of the expression.
func (e *UnaryExpr) String() string {
	switch e.Op {
	case SEXT, ZEXT, TRUNC:
		return fmt.Sprintf("(%s %s %d)", e.Op, e.Src, e.Width)
	}
	if e.NSW {
		return fmt.Sprintf("(%s.nsw %s)", e.Op, e.Src)
	}
	return fmt.Sprintf("(%s %s)", e.Op, e.Src)
}

// ValueExpr represents a reference to a fixed program quantity.
type ValueExpr struct {
	Value ssa.Value
	Width uint
}

// NewValueExpr returns an expression referencing v. Literal constants are
// converted to ConstantExpr.
func NewValueExpr(v ssa.Value) (Expr, error) {
	width, ok := TypeWidth(v.Type())
	if !ok {
		return nil, errors.Wrapf(ErrInvalidOperator, "not a quantity: %s (%s)", v.Name(), v.Type())
	}
	if c, ok := v.(*ssa.Const); ok {
		return NewConstantExpr(constValue(c), width), nil
	}
	return &ValueExpr{Value: v, Width: width}, nil
}

// String returns the string representation of the expression.
func (e *ValueExpr) String() string {
	return ValueName(e.Value)
}

// UseExpr represents the value of an operand as seen by a single user
// instruction. It is used to keep call arguments context-sensitive.
type UseExpr struct {
	User  ssa.Instruction
	Value ssa.Value
	Width uint
}

// NewUseExpr returns an expression referencing v at user.
func NewUseExpr(user ssa.Instruction, v ssa.Value) (Expr, error) {
	width, ok := TypeWidth(v.Type())
	if !ok {
		return nil, errors.Wrapf(ErrInvalidOperator, "not a quantity: %s (%s)", v.Name(), v.Type())
	}
	if c, ok := v.(*ssa.Const); ok {
		return NewConstantExpr(constValue(c), width), nil
	}
	return &UseExpr{User: user, Value: v, Width: width}, nil
}

// String returns the string representation of the expression.
func (e *UseExpr) String() string {
	return fmt.Sprintf("(use %s %s)", ValueName(e.Value), InstrName(e.User))
}

// VarExpr represents a free bit-vector symbol. Solver backends only ever
// see VarExpr leaves; program references are mapped to them on translation.
type VarExpr struct {
	Name  string
	Width uint
}

// NewVarExpr returns a new instance of VarExpr.
func NewVarExpr(name string, width uint) *VarExpr {
	return &VarExpr{Name: name, Width: width}
}

// String returns the string representation of the expression.
func (e *VarExpr) String() string {
	return e.Name
}

// ConstantExpr represents a fixed-width integer literal.
type ConstantExpr struct {
	Value uint64
	Width uint
}

// NewConstantExpr returns a new instance of ConstantExpr.
func NewConstantExpr(value uint64, width uint) *ConstantExpr {
	assert(width > 0 && width <= Width64, "invalid constant width: %d", width)
	return &ConstantExpr{
		Value: value & bitmask(width),
		Width: width,
	}
}

// NewBoolConstantExpr is an ease of use function for creating constant boolean expressions.
func NewBoolConstantExpr(value bool) *ConstantExpr {
	if value {
		return &ConstantExpr{Value: 1, Width: WidthBool}
	}
	return &ConstantExpr{Value: 0, Width: WidthBool}
}

// NewSignedConstantExpr returns a constant from a signed value.
func NewSignedConstantExpr(value int64, width uint) *ConstantExpr {
	return NewConstantExpr(uint64(value), width)
}

// String returns the string representation of the expression.
func (e *ConstantExpr) String() string {
	return fmt.Sprintf("(const %d %d)", e.Value, e.Width)
}

// Int64 returns the value interpreted as a signed integer.
func (e *ConstantExpr) Int64() int64 {
	return signExtend(e.Value, e.Width)
}

// IsTrue returns true if this is a boolean true expression.
func (e *ConstantExpr) IsTrue() bool {
	return e.Width == WidthBool && e.Value != 0
}

// IsFalse returns true if this is a boolean false expression.
func (e *ConstantExpr) IsFalse() bool {
	return e.Width == WidthBool && e.Value == 0
}

// IsAllOnes returns true if all bits in the value are one.
func (e *ConstantExpr) IsAllOnes() bool {
	return e.Value == bitmask(e.Width)
}

// IsZero returns true if the value is zero.
func (e *ConstantExpr) IsZero() bool {
	return e.Value == 0
}

// Add returns the sum of e and other.
func (e *ConstantExpr) Add(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "add: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value+other.Value, e.Width)
}

// Sub returns the difference of e and other.
func (e *ConstantExpr) Sub(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "sub: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value-other.Value, e.Width)
}

// Mul returns the product of e and other.
func (e *ConstantExpr) Mul(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "mul: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value*other.Value, e.Width)
}

// UDiv returns the quotient of unsigned division of e and other.
// Division by zero yields all ones, matching bit-vector semantics.
func (e *ConstantExpr) UDiv(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "udiv: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		return NewConstantExpr(bitmask(e.Width), e.Width)
	}
	return NewConstantExpr(e.Value/other.Value, e.Width)
}

// SDiv returns the quotient of signed division of e and other.
func (e *ConstantExpr) SDiv(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "sdiv: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		if e.Int64() < 0 {
			return NewConstantExpr(1, e.Width)
		}
		return NewConstantExpr(bitmask(e.Width), e.Width)
	}
	return NewSignedConstantExpr(e.Int64()/other.Int64(), e.Width)
}

// URem returns the remainder of unsigned division of e and other.
func (e *ConstantExpr) URem(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "urem: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		return e
	}
	return NewConstantExpr(e.Value%other.Value, e.Width)
}

// SRem returns the remainder of signed division of e and other.
// The sign of the result follows the dividend.
func (e *ConstantExpr) SRem(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "srem: width mismatch: %d != %d", e.Width, other.Width)
	if other.Value == 0 {
		return e
	}
	return NewSignedConstantExpr(e.Int64()%other.Int64(), e.Width)
}

// And returns the bitwise AND of e and other.
func (e *ConstantExpr) And(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "and: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value&other.Value, e.Width)
}

// Or returns the bitwise OR of e and other.
func (e *ConstantExpr) Or(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "or: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value|other.Value, e.Width)
}

// Xor returns the bitwise XOR of e and other.
func (e *ConstantExpr) Xor(other *ConstantExpr) *ConstantExpr {
	assert(e.Width == other.Width, "xor: width mismatch: %d != %d", e.Width, other.Width)
	return NewConstantExpr(e.Value^other.Value, e.Width)
}

// Shl returns the value of e shifted left by other number of bits.
func (e *ConstantExpr) Shl(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value<<other.Value, e.Width)
}

// LShr returns the value of e logically shifted right by other number of bits.
func (e *ConstantExpr) LShr(other *ConstantExpr) *ConstantExpr {
	if other.Value >= uint64(e.Width) {
		return NewConstantExpr(0, e.Width)
	}
	return NewConstantExpr(e.Value>>other.Value, e.Width)
}

// AShr returns the value of e arithmetically shifted right by other number of bits.
func (e *ConstantExpr) AShr(other *ConstantExpr) *ConstantExpr {
	n := other.Value
	if n >= uint64(e.Width) {
		n = uint64(e.Width) - 1
	}
	return NewSignedConstantExpr(e.Int64()>>n, e.Width)
}

// Neg returns the two's complement negation of e.
func (e *ConstantExpr) Neg() *ConstantExpr {
	return NewConstantExpr(-e.Value, e.Width)
}

// Not returns the bitwise NOT of the expression.
func (e *ConstantExpr) Not() *ConstantExpr {
	return NewConstantExpr(^e.Value, e.Width)
}

// Compare evaluates the predicate op against e and other.
func (e *ConstantExpr) Compare(op BinaryOp, other *ConstantExpr) bool {
	assert(e.Width == other.Width, "%s: width mismatch: %d != %d", op, e.Width, other.Width)
	switch op {
	case EQ:
		return e.Value == other.Value
	case NE:
		return e.Value != other.Value
	case ULT:
		return e.Value < other.Value
	case ULE:
		return e.Value <= other.Value
	case UGT:
		return e.Value > other.Value
	case UGE:
		return e.Value >= other.Value
	case SLT:
		return e.Int64() < other.Int64()
	case SLE:
		return e.Int64() <= other.Int64()
	case SGT:
		return e.Int64() > other.Int64()
	case SGE:
		return e.Int64() >= other.Int64()
	default:
		panic(fmt.Sprintf("compare: not a predicate: %s", op))
	}
}

// ZExt returns the zero-extension of e to a new width.
func (e *ConstantExpr) ZExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewConstantExpr(e.Value, width)
}

// SExt returns the sign-extension of e to a new width.
func (e *ConstantExpr) SExt(width uint) *ConstantExpr {
	if e.Width == width {
		return e
	}
	return NewSignedConstantExpr(e.Int64(), width)
}

// Trunc returns the low width bits of e.
func (e *ConstantExpr) Trunc(width uint) *ConstantExpr {
	return NewConstantExpr(e.Value, width)
}

// Eval applies a binary operation to two constants.
func (e *ConstantExpr) Eval(op BinaryOp, other *ConstantExpr) *ConstantExpr {
	switch op {
	case ADD:
		return e.Add(other)
	case SUB:
		return e.Sub(other)
	case MUL:
		return e.Mul(other)
	case UDIV:
		return e.UDiv(other)
	case SDIV:
		return e.SDiv(other)
	case UREM:
		return e.URem(other)
	case SREM:
		return e.SRem(other)
	case AND:
		return e.And(other)
	case OR:
		return e.Or(other)
	case XOR:
		return e.Xor(other)
	case SHL:
		return e.Shl(other)
	case LSHR:
		return e.LShr(other)
	case ASHR:
		return e.AShr(other)
	default:
		return NewBoolConstantExpr(e.Compare(op, other))
	}
}

// MinSigned returns the smallest signed value representable in width bits.
func MinSigned(width uint) *ConstantExpr {
	return NewConstantExpr(1<<(width-1), width)
}

// MaxSigned returns the largest signed value representable in width bits.
func MaxSigned(width uint) *ConstantExpr {
	return NewConstantExpr(bitmask(width)>>1, width)
}

func bitmask(width uint) uint64 {
	return (1 << width) - 1
}

// signExtend interprets the low width bits of v as a signed integer.
func signExtend(v uint64, width uint) int64 {
	shift := 64 - width
	return int64(v<<shift) >> shift
}

// IsConstantExpr returns true if expr is an instance of ConstantExpr.
func IsConstantExpr(expr Expr) bool {
	_, ok := expr.(*ConstantExpr)
	return ok
}

// IsConstantTrue returns true if expr is an instance of ConstantExpr and is true.
func IsConstantTrue(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsTrue()
}

// IsConstantFalse returns true if expr is an instance of ConstantExpr and is false.
func IsConstantFalse(expr Expr) bool {
	tmp, ok := expr.(*ConstantExpr)
	return ok && tmp.IsFalse()
}

// IsLeafExpr returns true if expr has no sub-expressions.
func IsLeafExpr(expr Expr) bool {
	switch expr.(type) {
	case *ConstantExpr, *ValueExpr, *UseExpr, *VarExpr:
		return true
	default:
		return false
	}
}

// CloneExpr returns a deep copy of expr. Program references are shared.
func CloneExpr(expr Expr) Expr {
	switch expr := expr.(type) {
	case nil:
		return nil
	case *ConstantExpr:
		other := *expr
		return &other
	case *ValueExpr:
		other := *expr
		return &other
	case *UseExpr:
		other := *expr
		return &other
	case *VarExpr:
		other := *expr
		return &other
	case *UnaryExpr:
		return &UnaryExpr{Op: expr.Op, Src: CloneExpr(expr.Src), Width: expr.Width, NSW: expr.NSW}
	case *BinaryExpr:
		return &BinaryExpr{Op: expr.Op, LHS: CloneExpr(expr.LHS), RHS: CloneExpr(expr.RHS), NSW: expr.NSW}
	default:
		panic("unreachable")
	}
}

// CompareExpr returns an integer comparing two expressions.
// The result will be 0 if a==b, -1 if a < b, and +1 if a > b.
func CompareExpr(a, b Expr) int {
	if a == nil && b != nil {
		return -1
	} else if a != nil && b == nil {
		return 1
	} else if a == nil && b == nil {
		return 0
	}

	if ak, bk := exprKind(a), exprKind(b); ak < bk {
		return -1
	} else if ak > bk {
		return 1
	}

	switch a := a.(type) {
	case *ConstantExpr:
		return compareConstantExpr(a, b.(*ConstantExpr))
	case *VarExpr:
		return compareVarExpr(a, b.(*VarExpr))
	case *ValueExpr:
		return strings.Compare(ValueName(a.Value), ValueName(b.(*ValueExpr).Value))
	case *UseExpr:
		return compareUseExpr(a, b.(*UseExpr))
	case *UnaryExpr:
		return compareUnaryExpr(a, b.(*UnaryExpr))
	case *BinaryExpr:
		return compareBinaryExpr(a, b.(*BinaryExpr))
	default:
		panic("unreachable")
	}
}

func compareConstantExpr(a, b *ConstantExpr) int {
	if a.Width < b.Width {
		return -1
	} else if a.Width > b.Width {
		return 1
	}

	if a.Value < b.Value {
		return -1
	} else if a.Value > b.Value {
		return 1
	}
	return 0
}

func compareVarExpr(a, b *VarExpr) int {
	if cmp := strings.Compare(a.Name, b.Name); cmp != 0 {
		return cmp
	}
	return compareUint(a.Width, b.Width)
}

func compareUseExpr(a, b *UseExpr) int {
	if cmp := strings.Compare(ValueName(a.Value), ValueName(b.Value)); cmp != 0 {
		return cmp
	}
	return strings.Compare(InstrName(a.User), InstrName(b.User))
}

func compareUnaryExpr(a, b *UnaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := compareUint(a.Width, b.Width); cmp != 0 {
		return cmp
	}
	if cmp := compareBool(a.NSW, b.NSW); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.Src, b.Src)
}

func compareBinaryExpr(a, b *BinaryExpr) int {
	if a.Op < b.Op {
		return -1
	} else if a.Op > b.Op {
		return 1
	}
	if cmp := compareBool(a.NSW, b.NSW); cmp != 0 {
		return cmp
	}
	if cmp := CompareExpr(a.LHS, b.LHS); cmp != 0 {
		return cmp
	}
	return CompareExpr(a.RHS, b.RHS)
}

func compareUint(a, b uint) int {
	if a < b {
		return -1
	} else if a > b {
		return 1
	}
	return 0
}

func compareBool(a, b bool) int {
	if !a && b {
		return -1
	} else if a && !b {
		return 1
	}
	return 0
}

// exprKind returns a numeric value for the type of expression.
// Only used internally for equality checks and sorting.
func exprKind(expr Expr) int {
	switch expr.(type) {
	case *ConstantExpr:
		return 1
	case *VarExpr:
		return 2
	case *ValueExpr:
		return 3
	case *UseExpr:
		return 4
	case *UnaryExpr:
		return 5
	case *BinaryExpr:
		return 6
	default:
		panic("unreachable")
	}
}

// WalkExpr calls fn for expr and every sub-expression, parents first.
// Children are skipped if fn returns false.
func WalkExpr(expr Expr, fn func(Expr) bool) {
	if !fn(expr) {
		return
	}
	switch expr := expr.(type) {
	case *UnaryExpr:
		WalkExpr(expr.Src, fn)
	case *BinaryExpr:
		WalkExpr(expr.LHS, fn)
		WalkExpr(expr.RHS, fn)
	}
}

// RewriteExpr returns a copy of expr with every leaf replaced by fn(leaf).
// Interior nodes are copied; fn must return a width-compatible leaf.
func RewriteExpr(expr Expr, fn func(Expr) Expr) Expr {
	switch expr := expr.(type) {
	case *UnaryExpr:
		return &UnaryExpr{Op: expr.Op, Src: RewriteExpr(expr.Src, fn), Width: expr.Width, NSW: expr.NSW}
	case *BinaryExpr:
		return &BinaryExpr{Op: expr.Op, LHS: RewriteExpr(expr.LHS, fn), RHS: RewriteExpr(expr.RHS, fn), NSW: expr.NSW}
	default:
		other := fn(expr)
		assert(ExprWidth(other) == ExprWidth(expr), "rewrite: width mismatch: %s => %s", expr, other)
		return other
	}
}
