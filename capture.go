package refine

import (
	"go/token"
	"go/types"

	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
	"golang.org/x/tools/go/ssa"
)

// Capturer translates static facts about fixed quantities into clauses.
type Capturer struct {
	prog  *Program
	once  ExecOnceOracle
	fixed *FixedValueSet
	alias AliasOracle

	Config CaptureConfig
	Logger *log.Entry

	clauses ConstraintSet
	writes  map[*ssa.Function]*writeSummary
	spawned []*ssa.Go
}

// NewCapturer returns a new capturer for a single round.
func NewCapturer(prog *Program, once ExecOnceOracle, fixed *FixedValueSet, aa AliasOracle, config CaptureConfig) *Capturer {
	return &Capturer{
		prog:   prog,
		once:   once,
		fixed:  fixed,
		alias:  aa,
		Config: config,
		Logger: log.WithField("component", "capture"),
		writes: make(map[*ssa.Function]*writeSummary),
	}
}

// Capture returns the sorted constraint set for the fixed values of prog.
func Capture(prog *Program, once ExecOnceOracle, fixed *FixedValueSet, aa AliasOracle, config CaptureConfig) (ConstraintSet, error) {
	return NewCapturer(prog, once, fixed, aa, config).Capture()
}

// Capture returns the sorted constraint set. Facts that cannot be proven
// are omitted. Errors are only returned for malformed expressions.
func (c *Capturer) Capture() (ConstraintSet, error) {
	c.clauses = nil
	c.spawned = goStatements(c.prog)

	for _, v := range c.fixed.Values() {
		if err := c.captureValue(v); err != nil {
			return nil, errors.Wrapf(err, "capture %s", ValueName(v))
		}
	}

	if c.Config.Unreachable {
		for _, fn := range c.prog.Functions() {
			c.captureUnreachable(fn)
		}
	}

	if c.Config.Summaries {
		if err := c.captureLayout(); err != nil {
			return nil, errors.Wrap(err, "capture layout")
		}
	}

	cs := c.clauses.Sort()
	c.Logger.Debugf("captured %d clauses over %d fixed values", len(cs), c.fixed.Len())
	return cs, nil
}

func (c *Capturer) captureValue(v ssa.Value) error {
	if !IsQuantity(v) {
		return nil
	}

	switch v := v.(type) {
	case *ssa.Parameter:
		return c.captureParameter(v)
	case *ssa.BinOp:
		return c.captureBinOp(v)
	case *ssa.UnOp:
		return c.captureUnOp(v)
	case *ssa.Convert:
		return c.captureConvert(v)
	case *ssa.ChangeType:
		return c.captureChangeType(v)
	case *ssa.Phi:
		return c.capturePhi(v)
	case *ssa.FieldAddr:
		return c.captureFieldAddr(v)
	case *ssa.IndexAddr:
		return c.captureIndexAddr(v)
	case *ssa.Call:
		return c.captureCall(v)
	case *ssa.Extract:
		return c.captureExtract(v)
	}
	return nil
}

// operand returns the expression for v if v is a fixed quantity.
func (c *Capturer) operand(v ssa.Value) (Expr, bool) {
	if !IsQuantity(v) || !c.fixed.Contains(v) {
		return nil, false
	}
	e, err := NewValueExpr(v)
	if err != nil {
		return nil, false
	}
	return e, true
}

func (c *Capturer) emit(clause Clause) {
	c.clauses = append(c.clauses, clause)
}

// emitEq emits v == rhs.
func (c *Capturer) emitEq(v ssa.Value, rhs Expr) error {
	lhs, err := NewValueExpr(v)
	if err != nil {
		return err
	}
	clause, err := NewBoolExpr(EQ, lhs, rhs)
	if err != nil {
		return err
	}
	c.emit(clause)
	return nil
}

func (c *Capturer) captureParameter(param *ssa.Parameter) error {
	fn := param.Parent()
	site := c.prog.SingleCallSite(fn)
	if site == nil {
		return nil
	}

	// Bound receivers & free variables do not appear among the arguments.
	args := site.Common().Args
	if site.Common().IsInvoke() {
		args = append([]ssa.Value{site.Common().Value}, args...)
	}
	index := -1
	for i, p := range fn.Params {
		if p == param {
			index = i
		}
	}
	if index < 0 || index >= len(args) || len(args) != len(fn.Params) {
		return nil
	}

	arg := args[index]
	if !c.fixed.Contains(arg) || !IsQuantity(arg) {
		return nil
	}
	use, err := NewUseExpr(site, arg)
	if err != nil {
		return err
	}
	return c.emitEq(param, use)
}

func (c *Capturer) captureBinOp(instr *ssa.BinOp) error {
	x, ok := c.operand(instr.X)
	if !ok {
		return nil
	}
	y, ok := c.operand(instr.Y)
	if !ok {
		return nil
	}

	switch typ := instr.X.Type().Underlying().(type) {
	case *types.Basic:
		info := typ.Info()
		if info&types.IsBoolean != 0 {
			return c.captureBinOpBoolean(instr, x, y)
		} else if info&types.IsInteger != 0 {
			return c.captureBinOpInteger(instr, x, y, info&types.IsUnsigned == 0)
		} else if typ.Kind() == types.UnsafePointer {
			return c.captureBinOpPointer(instr, x, y)
		}
	case *types.Pointer:
		return c.captureBinOpPointer(instr, x, y)
	}
	return nil
}

func (c *Capturer) captureBinOpBoolean(instr *ssa.BinOp, x, y Expr) error {
	switch instr.Op {
	case token.EQL:
		return c.emitBinary(instr, EQ, x, y, false)
	case token.NEQ:
		return c.emitBinary(instr, NE, x, y, false)
	case token.AND:
		return c.emitBinary(instr, AND, x, y, false)
	case token.OR:
		return c.emitBinary(instr, OR, x, y, false)
	case token.XOR:
		return c.emitBinary(instr, XOR, x, y, false)
	}
	return nil
}

func (c *Capturer) captureBinOpPointer(instr *ssa.BinOp, x, y Expr) error {
	switch instr.Op {
	case token.EQL:
		return c.emitBinary(instr, EQ, x, y, false)
	case token.NEQ:
		return c.emitBinary(instr, NE, x, y, false)
	}
	return nil
}

func (c *Capturer) captureBinOpInteger(instr *ssa.BinOp, x, y Expr, signed bool) error {
	switch instr.Op {
	case token.ADD:
		return c.emitBinary(instr, ADD, x, y, signed)
	case token.SUB:
		return c.emitBinary(instr, SUB, x, y, signed)
	case token.MUL:
		return c.emitBinary(instr, MUL, x, y, signed)
	case token.QUO:
		if signed {
			return c.emitBinary(instr, SDIV, x, y, false)
		}
		return c.emitBinary(instr, UDIV, x, y, false)
	case token.REM:
		if signed {
			return c.emitBinary(instr, SREM, x, y, false)
		}
		return c.emitBinary(instr, UREM, x, y, false)
	case token.AND:
		return c.emitBinary(instr, AND, x, y, false)
	case token.OR:
		return c.emitBinary(instr, OR, x, y, false)
	case token.XOR:
		return c.emitBinary(instr, XOR, x, y, false)
	case token.AND_NOT:
		not, err := NewUnaryExpr(NOT, y, ExprWidth(y))
		if err != nil {
			return err
		}
		return c.emitBinary(instr, AND, x, not, false)
	case token.SHL:
		count, ok := shiftCount(y, ExprWidth(x))
		if !ok {
			return nil
		}
		return c.emitBinary(instr, SHL, x, count, signed)
	case token.SHR:
		count, ok := shiftCount(y, ExprWidth(x))
		if !ok {
			return nil
		}
		if signed {
			return c.emitBinary(instr, ASHR, x, count, false)
		}
		return c.emitBinary(instr, LSHR, x, count, false)
	case token.EQL:
		return c.emitBinary(instr, EQ, x, y, false)
	case token.NEQ:
		return c.emitBinary(instr, NE, x, y, false)
	case token.LSS:
		if signed {
			return c.emitBinary(instr, SLT, x, y, false)
		}
		return c.emitBinary(instr, ULT, x, y, false)
	case token.LEQ:
		if signed {
			return c.emitBinary(instr, SLE, x, y, false)
		}
		return c.emitBinary(instr, ULE, x, y, false)
	case token.GTR:
		if signed {
			return c.emitBinary(instr, SGT, x, y, false)
		}
		return c.emitBinary(instr, UGT, x, y, false)
	case token.GEQ:
		if signed {
			return c.emitBinary(instr, SGE, x, y, false)
		}
		return c.emitBinary(instr, UGE, x, y, false)
	}
	return nil
}

// emitBinary emits v == (op x y).
func (c *Capturer) emitBinary(v ssa.Value, op BinaryOp, x, y Expr, nsw bool) error {
	rhs, err := NewBinaryExpr(op, x, y)
	if err != nil {
		return err
	}
	rhs.NSW = nsw
	return c.emitEq(v, rhs)
}

// shiftCount returns the count converted to width. Counts are unsigned. A
// constant count wider than the operand saturates at the width; a symbolic
// one cannot be narrowed.
func shiftCount(count Expr, width uint) (Expr, bool) {
	cw := ExprWidth(count)
	switch {
	case cw == width:
		return count, true
	case cw < width:
		e, err := NewUnaryExpr(ZEXT, count, width)
		return e, err == nil
	}

	if count, ok := count.(*ConstantExpr); ok {
		if count.Value >= uint64(width) {
			return NewConstantExpr(uint64(width), width), true
		}
		return NewConstantExpr(count.Value, width), true
	}
	return nil, false
}

func (c *Capturer) captureUnOp(instr *ssa.UnOp) error {
	switch instr.Op {
	case token.MUL:
		if c.Config.Memory {
			return c.captureLoad(instr)
		}
		return nil
	case token.ARROW:
		return nil
	}

	x, ok := c.operand(instr.X)
	if !ok {
		return nil
	}

	switch instr.Op {
	case token.NOT:
		e, err := NewUnaryExpr(NOT, x, ExprWidth(x))
		if err != nil {
			return err
		}
		return c.emitEq(instr, e)
	case token.SUB:
		e, err := NewUnaryExpr(NEG, x, ExprWidth(x))
		if err != nil {
			return err
		}
		e.NSW = IsSigned(instr.X.Type())
		return c.emitEq(instr, e)
	case token.XOR:
		e, err := NewUnaryExpr(NOT, x, ExprWidth(x))
		if err != nil {
			return err
		}
		return c.emitEq(instr, e)
	}
	return nil
}

func (c *Capturer) captureConvert(instr *ssa.Convert) error {
	x, ok := c.operand(instr.X)
	if !ok {
		return nil
	}
	width, ok := TypeWidth(instr.Type())
	if !ok {
		return nil
	}
	e, err := NewCastExpr(x, width, IsSigned(instr.X.Type()))
	if err != nil {
		return err
	}
	return c.emitEq(instr, e)
}

func (c *Capturer) captureChangeType(instr *ssa.ChangeType) error {
	x, ok := c.operand(instr.X)
	if !ok {
		return nil
	}
	return c.emitEq(instr, x)
}

// capturePhi emits a disjunction over the incoming values. Phis with a
// back-edge merge values from different iterations and are skipped.
func (c *Capturer) capturePhi(instr *ssa.Phi) error {
	b := instr.Block()
	var clauses []Clause
	for i, edge := range instr.Edges {
		if b.Dominates(b.Preds[i]) {
			return nil
		}
		x, ok := c.operand(edge)
		if !ok {
			return nil
		}
		lhs, err := NewValueExpr(instr)
		if err != nil {
			return err
		}
		clause, err := NewBoolExpr(EQ, lhs, x)
		if err != nil {
			return err
		}
		clauses = append(clauses, clause)
	}

	if clause := NewDisjunction(clauses...); clause != nil {
		c.emit(clause)
	}
	return nil
}

// captureFieldAddr emits v == x + offset.
func (c *Capturer) captureFieldAddr(instr *ssa.FieldAddr) error {
	x, ok := c.operand(instr.X)
	if !ok {
		return nil
	}
	ptr, ok := instr.X.Type().Underlying().(*types.Pointer)
	if !ok {
		return nil
	}
	st, ok := ptr.Elem().Underlying().(*types.Struct)
	if !ok {
		return nil
	}

	fields := make([]*types.Var, st.NumFields())
	for i := range fields {
		fields[i] = st.Field(i)
	}
	offset := sizes.Offsetsof(fields)[instr.Field]

	return c.emitBinary(instr, ADD, x, NewConstantExpr(uint64(offset), WidthPtr), false)
}

// captureIndexAddr emits v == x + index*size for pointers to arrays.
func (c *Capturer) captureIndexAddr(instr *ssa.IndexAddr) error {
	if !isArrayPointer(instr.X) {
		return nil
	}
	x, ok := c.operand(instr.X)
	if !ok {
		return nil
	}
	index, ok := c.operand(instr.Index)
	if !ok {
		return nil
	}

	elem := instr.X.Type().Underlying().(*types.Pointer).Elem().Underlying().(*types.Array).Elem()
	index, err := NewCastExpr(index, WidthPtr, IsSigned(instr.Index.Type()))
	if err != nil {
		return err
	}
	scaled, err := NewBinaryExpr(MUL, index, NewConstantExpr(uint64(SizeOf(elem)), WidthPtr))
	if err != nil {
		return err
	}
	return c.emitBinary(instr, ADD, x, scaled, false)
}

// captureCall emits library summaries & the equality between the result
// and the single returned value of the callee.
func (c *Capturer) captureCall(instr *ssa.Call) error {
	if c.Config.Summaries {
		if err := c.captureSummary(instr); err != nil {
			return err
		}
	}

	ret := c.returned(instr)
	if ret == nil || len(ret.Results) != 1 {
		return nil
	}
	x, ok := c.operand(ret.Results[0])
	if !ok {
		return nil
	}
	return c.emitEq(instr, x)
}

func (c *Capturer) captureExtract(instr *ssa.Extract) error {
	call, ok := instr.Tuple.(*ssa.Call)
	if !ok {
		return nil
	}
	ret := c.returned(call)
	if ret == nil || instr.Index >= len(ret.Results) {
		return nil
	}
	x, ok := c.operand(ret.Results[instr.Index])
	if !ok {
		return nil
	}
	return c.emitEq(instr, x)
}

// returned returns the single return of a call's static callee.
func (c *Capturer) returned(call *ssa.Call) *ssa.Return {
	fn := call.Common().StaticCallee()
	if fn == nil || len(fn.Blocks) == 0 {
		return nil
	}
	return SingleReturn(fn)
}
