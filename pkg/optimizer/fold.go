package optimizer

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

var foldUnary = map[ir.Op]ast.UnaryOp{
	ir.OpNeg: ast.Negate,
	ir.OpCom: ast.Complement,
	ir.OpNot: ast.Not,
}

var foldBinary = map[ir.Op]ast.BinaryOp{
	ir.OpAdd: ast.Add, ir.OpSub: ast.Subtract, ir.OpMul: ast.Multiply,
	ir.OpDiv: ast.Divide, ir.OpRem: ast.Remainder,
	ir.OpAnd: ast.BitAnd, ir.OpOr: ast.BitOr, ir.OpXor: ast.BitXor,
	ir.OpShl: ast.ShiftLeft, ir.OpShr: ast.ShiftRight,
	ir.OpCEq: ast.EqualTo, ir.OpCNeq: ast.NotEqualTo,
	ir.OpCLt: ast.LessThan, ir.OpCLe: ast.LessOrEqual,
	ir.OpCGt: ast.GreaterThan, ir.OpCGe: ast.GreaterOrEqual,
}

func constOf(v ir.Value) (ast.Const, bool) {
	c, ok := v.(ir.Const)
	if !ok {
		return nil, false
	}
	return c.Value, true
}

// FoldConstants evaluates instructions whose operands are all constants. Integer
// division and remainder by zero are left for run time.
func FoldConstants(body []*ir.Instruction, symbols *symtab.Table) ([]*ir.Instruction, bool) {
	changed := false
	out := body[:0:0]
	for _, instr := range body {
		folded, keep := foldInstr(instr, symbols)
		if folded != instr || !keep {
			changed = true
		}
		if keep {
			out = append(out, folded)
		}
	}
	return out, changed
}

// foldInstr returns the replacement for instr, or keep == false when it goes away.
func foldInstr(instr *ir.Instruction, symbols *symtab.Table) (*ir.Instruction, bool) {
	copyTo := func(c ast.Const) (*ir.Instruction, bool) {
		dt := symbols.TypeOf(instr.Dst.(ir.Var).Name)
		return ir.Copy(ir.Const{Value: ast.Convert(c, dt)}, instr.Dst), true
	}

	switch op := instr.Op; {
	case op.IsUnary():
		if c, ok := constOf(instr.Args[0]); ok {
			if v, ok := ast.EvalUnary(foldUnary[op], c); ok {
				return copyTo(v)
			}
		}
	case op.IsBinary():
		a, okA := constOf(instr.Args[0])
		b, okB := constOf(instr.Args[1])
		if okA && okB {
			if v, ok := ast.EvalBinary(foldBinary[op], a, b); ok {
				return copyTo(v)
			}
		}
	case op.IsConversion():
		if c, ok := constOf(instr.Args[0]); ok {
			return copyTo(c)
		}
	case op == ir.OpCopy:
		// A copy between same-sized types keeps the source constant's type; retag it
		// so later uses of the destination see the right type.
		if c, ok := constOf(instr.Args[0]); ok {
			dt := symbols.TypeOf(instr.Dst.(ir.Var).Name)
			// Pointers hold unsigned long constants and signed char holds char ones, so
			// compare with the type Convert produces rather than dt itself.
			if ast.IsScalar(dt) && !ast.Equal(c.Type(), ast.Convert(c, dt).Type()) {
				return copyTo(c)
			}
		}
	case op == ir.OpJz || op == ir.OpJnz:
		if c, ok := constOf(instr.Args[0]); ok {
			if ast.IsZero(c) == (op == ir.OpJz) {
				return ir.Jmp(instr.Label), true
			}
			return nil, false
		}
	}
	return instr, true
}
