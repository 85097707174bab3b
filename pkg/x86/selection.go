package x86

import (
	"fmt"
	"math"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

// retPtr holds the address a function returning a large aggregate writes through.
const retPtr = "ret..ptr"

// asmTypeOf maps a C object type to the operand type used to move it.
func asmTypeOf(symbols *symtab.Table, t ast.Type) AsmType {
	switch t := t.(type) {
	case ast.Char, ast.SChar, ast.UChar:
		return Byte
	case ast.Int, ast.UInt:
		return Longword
	case ast.Double:
		return Double
	case ast.Array:
		size := symbols.SizeOf(t)
		align := symbols.AlignOf(t)
		if size >= 16 {
			align = 16
		}
		return byteArray(size, align)
	case ast.Struct:
		return byteArray(symbols.SizeOf(t), symbols.AlignOf(t))
	}
	return Quadword
}

func isAggregate(t ast.Type) bool {
	switch t.(type) {
	case ast.Array, ast.Struct:
		return true
	}
	return false
}

// constPool interns the floating-point constants a translation unit needs.
type constPool struct {
	names map[[2]uint64]string
	list  []StaticConst
}

func (p *constPool) double(v float64, align int64) string {
	key := [2]uint64{math.Float64bits(v), uint64(align)}
	if name, ok := p.names[key]; ok {
		return name
	}
	if p.names == nil {
		p.names = make(map[[2]uint64]string)
	}
	name := fmt.Sprintf("double..%d", len(p.list))
	p.names[key] = name
	p.list = append(p.list, StaticConst{Name: name, Align: align, Bits: key[0]})
	return name
}

type selector struct {
	prog    *ir.Program
	symbols *symtab.Table
	consts  *constPool
	labels  *int
	out     []Instr
	// extra records pseudo-registers selection invents itself.
	extra  map[string]AsmType
	hidden bool
}

func (s *selector) emit(instrs ...Instr) { s.out = append(s.out, instrs...) }

func (s *selector) label(kind string) string {
	*s.labels++
	return fmt.Sprintf("%s..%d", kind, *s.labels)
}

func (s *selector) typeOf(v ir.Value) ast.Type { return s.prog.TypeOf(v) }

func (s *selector) asmType(v ir.Value) AsmType { return asmTypeOf(s.symbols, s.typeOf(v)) }

func (s *selector) size(v ir.Value) int64 { return s.symbols.SizeOf(s.typeOf(v)) }

func (s *selector) operand(v ir.Value) Operand {
	switch v := v.(type) {
	case ir.Const:
		if d, ok := v.Value.(ast.ConstDouble); ok {
			return Data{Name: s.consts.double(d.V, 8)}
		}
		return Imm{ast.Int64(v.Value)}
	case ir.Var:
		if s.symbols.IsStatic(v.Name) {
			return Data{Name: v.Name}
		}
		if isAggregate(s.symbols.TypeOf(v.Name)) {
			return PseudoMem{Name: v.Name}
		}
		return Pseudo{Name: v.Name}
	}
	panic(fmt.Sprintf("x86: unexpected value %T", v))
}

// byteOf returns the operand for offset off inside the object called name.
func (s *selector) byteOf(name string, off int64) Operand {
	if s.symbols.IsStatic(name) {
		return Data{Name: name, Offset: off}
	}
	return PseudoMem{Name: name, Offset: off}
}

func (s *selector) at(v ir.Value) func(int64) Operand {
	name := v.(ir.Var).Name
	return func(off int64) Operand { return s.byteOf(name, off) }
}

func atReg(r Register) func(int64) Operand {
	return func(off int64) Operand { return Memory{Base: r, Offset: off} }
}

// copyBytes copies size bytes in the widest moves that fit.
func (s *selector) copyBytes(src, dst func(int64) Operand, size int64) {
	for off := int64(0); off < size; {
		t := Byte
		switch {
		case size-off >= 8:
			t = Quadword
		case size-off >= 4:
			t = Longword
		}
		s.emit(Mov{T: t, Src: src(off), Dst: dst(off)})
		off += t.Size
	}
}

// loadEightbyte moves the eightbyte at off of an aggregate of the given size into r.
func (s *selector) loadEightbyte(src func(int64) Operand, off, size int64, r Register) {
	if r.IsXMM() {
		s.emit(Mov{T: Double, Src: src(off), Dst: Reg{r}})
		return
	}
	switch n := min(size-off, 8); n {
	case 8:
		s.emit(Mov{T: Quadword, Src: src(off), Dst: Reg{r}})
	case 4:
		s.emit(Mov{T: Longword, Src: src(off), Dst: Reg{r}})
	default:
		for i := n - 1; i >= 0; i-- {
			s.emit(Mov{T: Byte, Src: src(off + i), Dst: Reg{r}})
			if i > 0 {
				s.emit(Binary{Op: Sal, T: Quadword, Src: Imm{8}, Dst: Reg{r}})
			}
		}
	}
}

// storeEightbyte is the inverse of loadEightbyte. It clobbers r.
func (s *selector) storeEightbyte(r Register, dst func(int64) Operand, off, size int64) {
	if r.IsXMM() {
		s.emit(Mov{T: Double, Src: Reg{r}, Dst: dst(off)})
		return
	}
	switch n := min(size-off, 8); n {
	case 8:
		s.emit(Mov{T: Quadword, Src: Reg{r}, Dst: dst(off)})
	case 4:
		s.emit(Mov{T: Longword, Src: Reg{r}, Dst: dst(off)})
	default:
		for i := int64(0); i < n; i++ {
			s.emit(Mov{T: Byte, Src: Reg{r}, Dst: dst(off + i)})
			if i < n-1 {
				s.emit(Binary{Op: Shr, T: Quadword, Src: Imm{8}, Dst: Reg{r}})
			}
		}
	}
}

func (s *selector) function(fn *ir.Func) *Function {
	ft, ok := s.symbols.TypeOf(fn.Name).(ast.FunType)
	if !ok {
		fail("%s is not a function", fn.Name)
	}
	_, s.hidden = retLoc(s.symbols, ft.Ret)
	if s.hidden {
		s.extra[retPtr] = Quadword
		s.emit(Mov{T: Quadword, Src: Reg{DI}, Dst: Pseudo{retPtr}})
	}

	locs, _ := assignArgs(s.symbols, ft.Params, s.hidden)
	for i, name := range fn.Params {
		loc := locs[i]
		v := ir.Var{Name: name}
		stackAt := func(off int64) Operand {
			return Memory{Base: BP, Offset: 16 + 8*int64(loc.stack) + off}
		}
		if isAggregate(loc.t) {
			size := s.symbols.SizeOf(loc.t)
			if loc.onStack() {
				s.copyBytes(stackAt, s.at(v), size)
				continue
			}
			for k, r := range loc.regs {
				s.storeEightbyte(r, s.at(v), int64(k)*8, size)
			}
			continue
		}
		t := asmTypeOf(s.symbols, loc.t)
		if loc.onStack() {
			s.emit(Mov{T: t, Src: stackAt(0), Dst: s.operand(v)})
		} else {
			s.emit(Mov{T: t, Src: Reg{loc.regs[0]}, Dst: s.operand(v)})
		}
	}

	for _, instr := range fn.Body {
		s.instr(instr)
	}
	return &Function{Name: fn.Name, Global: fn.Global, Instrs: s.out}
}

var signedConds = map[ir.Op]CondCode{
	ir.OpCEq: E, ir.OpCNeq: NE, ir.OpCLt: L, ir.OpCLe: LE, ir.OpCGt: G, ir.OpCGe: GE,
}

var unsignedConds = map[ir.Op]CondCode{
	ir.OpCEq: E, ir.OpCNeq: NE, ir.OpCLt: B, ir.OpCLe: BE, ir.OpCGt: A, ir.OpCGe: AE,
}

var arithOps = map[ir.Op]BinaryOp{
	ir.OpAdd: Add, ir.OpSub: Sub, ir.OpMul: Mult, ir.OpDiv: DivDouble,
	ir.OpAnd: And, ir.OpOr: Or, ir.OpXor: Xor,
}

func (s *selector) instr(instr *ir.Instruction) {
	switch op := instr.Op; {
	case op == ir.OpRet:
		s.ret(instr)
	case op == ir.OpCopy:
		s.copy(instr.Args[0], instr.Dst)
	case op.IsUnary():
		s.unary(instr)
	case op.IsRelational():
		s.relational(instr)
	case op.IsBinary():
		s.binary(instr)
	case op == ir.OpJmp:
		s.emit(Jmp{instr.Label})
	case op == ir.OpJz || op == ir.OpJnz:
		s.branch(instr)
	case op == ir.OpLabel:
		s.emit(Label{instr.Label})
	case op == ir.OpCall:
		s.call(instr)
	case op.IsConversion():
		s.conversion(instr)
	case op == ir.OpAddr:
		s.emit(Lea{Src: s.operand(instr.Args[0]), Dst: s.operand(instr.Dst)})
	case op == ir.OpLoad:
		s.emit(Mov{T: Quadword, Src: s.operand(instr.Args[0]), Dst: Reg{AX}})
		if isAggregate(s.typeOf(instr.Dst)) {
			s.copyBytes(atReg(AX), s.at(instr.Dst), s.size(instr.Dst))
			return
		}
		s.emit(Mov{T: s.asmType(instr.Dst), Src: Memory{Base: AX}, Dst: s.operand(instr.Dst)})
	case op == ir.OpStore:
		src := instr.Args[0]
		s.emit(Mov{T: Quadword, Src: s.operand(instr.Args[1]), Dst: Reg{AX}})
		if isAggregate(s.typeOf(src)) {
			s.copyBytes(s.at(src), atReg(AX), s.size(src))
			return
		}
		s.emit(Mov{T: s.asmType(src), Src: s.operand(src), Dst: Memory{Base: AX}})
	case op == ir.OpAddPtr:
		s.addPtr(instr)
	case op == ir.OpCopyToOffset:
		src := instr.Args[0]
		if isAggregate(s.typeOf(src)) {
			s.copyBytes(s.at(src), func(off int64) Operand {
				return s.byteOf(instr.Label, instr.Offset+off)
			}, s.size(src))
			return
		}
		s.emit(Mov{T: s.asmType(src), Src: s.operand(src), Dst: s.byteOf(instr.Label, instr.Offset)})
	case op == ir.OpCopyFromOffset:
		if isAggregate(s.typeOf(instr.Dst)) {
			s.copyBytes(func(off int64) Operand {
				return s.byteOf(instr.Label, instr.Offset+off)
			}, s.at(instr.Dst), s.size(instr.Dst))
			return
		}
		s.emit(Mov{T: s.asmType(instr.Dst), Src: s.byteOf(instr.Label, instr.Offset), Dst: s.operand(instr.Dst)})
	default:
		fail("cannot select instruction %q", instr.String())
	}
}

func (s *selector) copy(src, dst ir.Value) {
	if isAggregate(s.typeOf(dst)) {
		s.copyBytes(s.at(src), s.at(dst), s.size(dst))
		return
	}
	s.emit(Mov{T: s.asmType(dst), Src: s.operand(src), Dst: s.operand(dst)})
}

func (s *selector) ret(instr *ir.Instruction) {
	if len(instr.Args) == 0 {
		s.emit(Ret{})
		return
	}
	v := instr.Args[0]
	t := s.typeOf(v)
	switch {
	case s.hidden:
		s.emit(Mov{T: Quadword, Src: Pseudo{retPtr}, Dst: Reg{AX}})
		s.copyBytes(s.at(v), atReg(AX), s.size(v))
	case isAggregate(t):
		regs, _ := retLoc(s.symbols, t)
		for k, r := range regs {
			s.loadEightbyte(s.at(v), int64(k)*8, s.size(v), r)
		}
	default:
		r := AX
		if _, ok := t.(ast.Double); ok {
			r = XMM0
		}
		s.emit(Mov{T: s.asmType(v), Src: s.operand(v), Dst: Reg{r}})
	}
	s.emit(Ret{})
}

func (s *selector) unary(instr *ir.Instruction) {
	src, dst := instr.Args[0], instr.Dst
	t := s.asmType(src)
	switch instr.Op {
	case ir.OpNot:
		end := ""
		if t == Double {
			s.zeroXMM0()
			s.emit(Cmp{T: Double, Src: s.operand(src), Dst: Reg{XMM0}})
			end = s.label("nan")
		} else {
			s.emit(Cmp{T: t, Src: Imm{0}, Dst: s.operand(src)})
		}
		s.emit(Mov{T: s.asmType(dst), Src: Imm{0}, Dst: s.operand(dst)})
		if end != "" {
			s.emit(JmpCC{P, end})
		}
		s.emit(SetCC{E, s.operand(dst)})
		if end != "" {
			s.emit(Label{end})
		}
	case ir.OpNeg:
		s.emit(Mov{T: t, Src: s.operand(src), Dst: s.operand(dst)})
		if t == Double {
			mask := Data{Name: s.consts.double(math.Copysign(0, -1), 16)}
			s.emit(Binary{Op: Xor, T: Double, Src: mask, Dst: s.operand(dst)})
			return
		}
		s.emit(Unary{Op: Neg, T: t, Dst: s.operand(dst)})
	case ir.OpCom:
		s.emit(Mov{T: t, Src: s.operand(src), Dst: s.operand(dst)})
		s.emit(Unary{Op: Not, T: t, Dst: s.operand(dst)})
	}
}

func (s *selector) zeroXMM0() {
	s.emit(Binary{Op: Xor, T: Double, Src: Reg{XMM0}, Dst: Reg{XMM0}})
}

func (s *selector) binary(instr *ir.Instruction) {
	a, b, dst := instr.Args[0], instr.Args[1], instr.Dst
	t := s.asmType(a)
	signed := ast.IsSigned(s.typeOf(a))
	switch instr.Op {
	case ir.OpDiv, ir.OpRem:
		if t == Double {
			break
		}
		s.emit(Mov{T: t, Src: s.operand(a), Dst: Reg{AX}})
		if signed {
			s.emit(Cdq{t}, Idiv{T: t, Src: s.operand(b)})
		} else {
			s.emit(Mov{T: t, Src: Imm{0}, Dst: Reg{DX}}, Div{T: t, Src: s.operand(b)})
		}
		res := AX
		if instr.Op == ir.OpRem {
			res = DX
		}
		s.emit(Mov{T: t, Src: Reg{res}, Dst: s.operand(dst)})
		return
	case ir.OpShl, ir.OpShr:
		op := Sal
		if instr.Op == ir.OpShr {
			op = Shr
			if signed {
				op = Sar
			}
		}
		s.emit(Mov{T: t, Src: s.operand(a), Dst: s.operand(dst)})
		count := s.operand(b)
		if imm, ok := count.(Imm); ok {
			count = Imm{imm.V & 0xff}
		} else {
			s.emit(Mov{T: s.asmType(b), Src: count, Dst: Reg{CX}})
			count = Reg{CX}
		}
		s.emit(Binary{Op: op, T: t, Src: count, Dst: s.operand(dst)})
		return
	}
	s.emit(
		Mov{T: t, Src: s.operand(a), Dst: s.operand(dst)},
		Binary{Op: arithOps[instr.Op], T: t, Src: s.operand(b), Dst: s.operand(dst)},
	)
}

func (s *selector) relational(instr *ir.Instruction) {
	a, b, dst := instr.Args[0], instr.Args[1], instr.Dst
	ta := s.typeOf(a)
	t := asmTypeOf(s.symbols, ta)
	dt := s.asmType(dst)
	if t != Double {
		conds := unsignedConds
		if ast.IsSigned(ta) {
			conds = signedConds
		}
		s.emit(
			Cmp{T: t, Src: s.operand(b), Dst: s.operand(a)},
			Mov{T: dt, Src: Imm{0}, Dst: s.operand(dst)},
			SetCC{conds[instr.Op], s.operand(dst)},
		)
		return
	}

	// Unordered operands set CF, ZF and PF, so < and <= test the swapped > and >=,
	// and equality tests check PF first.
	switch instr.Op {
	case ir.OpCLt, ir.OpCLe, ir.OpCGt, ir.OpCGe:
		lhs, rhs, cond := a, b, A
		if instr.Op == ir.OpCLt || instr.Op == ir.OpCLe {
			lhs, rhs = b, a
		}
		if instr.Op == ir.OpCLe || instr.Op == ir.OpCGe {
			cond = AE
		}
		s.emit(
			Cmp{T: Double, Src: s.operand(rhs), Dst: s.operand(lhs)},
			Mov{T: dt, Src: Imm{0}, Dst: s.operand(dst)},
			SetCC{cond, s.operand(dst)},
		)
	case ir.OpCEq, ir.OpCNeq:
		unordered, cond := int64(0), E
		if instr.Op == ir.OpCNeq {
			unordered, cond = 1, NE
		}
		end := s.label("nan")
		s.emit(
			Cmp{T: Double, Src: s.operand(b), Dst: s.operand(a)},
			Mov{T: dt, Src: Imm{unordered}, Dst: s.operand(dst)},
			JmpCC{P, end},
			SetCC{cond, s.operand(dst)},
			Label{end},
		)
	}
}

func (s *selector) branch(instr *ir.Instruction) {
	v := instr.Args[0]
	t := s.asmType(v)
	if t != Double {
		cond := E
		if instr.Op == ir.OpJnz {
			cond = NE
		}
		s.emit(Cmp{T: t, Src: Imm{0}, Dst: s.operand(v)}, JmpCC{cond, instr.Label})
		return
	}
	s.zeroXMM0()
	s.emit(Cmp{T: Double, Src: s.operand(v), Dst: Reg{XMM0}})
	if instr.Op == ir.OpJnz {
		s.emit(JmpCC{P, instr.Label}, JmpCC{NE, instr.Label})
		return
	}
	skip := s.label("nan")
	s.emit(JmpCC{P, skip}, JmpCC{E, instr.Label}, Label{skip})
}

func (s *selector) addPtr(instr *ir.Instruction) {
	ptr, index, scale := instr.Args[0], instr.Args[1], instr.Offset
	s.emit(Mov{T: Quadword, Src: s.operand(ptr), Dst: Reg{AX}})
	if c, ok := index.(ir.Const); ok {
		s.emit(Lea{Src: Memory{Base: AX, Offset: ast.Int64(c.Value) * scale}, Dst: s.operand(instr.Dst)})
		return
	}
	s.emit(Mov{T: Quadword, Src: s.operand(index), Dst: Reg{DX}})
	switch scale {
	case 1, 2, 4, 8:
	default:
		s.emit(Binary{Op: Mult, T: Quadword, Src: Imm{scale}, Dst: Reg{DX}})
		scale = 1
	}
	s.emit(Lea{Src: Indexed{Base: AX, Index: DX, Scale: scale}, Dst: s.operand(instr.Dst)})
}

func truncImm(op Operand, t AsmType) Operand {
	imm, ok := op.(Imm)
	if !ok {
		return op
	}
	switch t {
	case Byte:
		return Imm{int64(int8(imm.V))}
	case Longword:
		return Imm{int64(int32(imm.V))}
	}
	return imm
}

const two63 = 9223372036854775808.0

func (s *selector) conversion(instr *ir.Instruction) {
	src, dst := instr.Args[0], instr.Dst
	st, dt := s.asmType(src), s.asmType(dst)
	so, do := s.operand(src), s.operand(dst)
	switch instr.Op {
	case ir.OpSignExt:
		s.emit(Movsx{SrcT: st, DstT: dt, Src: so, Dst: do})
	case ir.OpZeroExt:
		s.emit(MovZeroExtend{SrcT: st, DstT: dt, Src: so, Dst: do})
	case ir.OpTrunc:
		s.emit(Mov{T: dt, Src: truncImm(so, dt), Dst: do})
	case ir.OpDToSI:
		if dt == Byte {
			s.emit(Cvttsd2si{T: Longword, Src: so, Dst: Reg{AX}}, Mov{T: Byte, Src: Reg{AX}, Dst: do})
			return
		}
		s.emit(Cvttsd2si{T: dt, Src: so, Dst: do})
	case ir.OpDToUI:
		switch dt {
		case Byte:
			s.emit(Cvttsd2si{T: Longword, Src: so, Dst: Reg{AX}}, Mov{T: Byte, Src: Reg{AX}, Dst: do})
		case Longword:
			s.emit(Cvttsd2si{T: Quadword, Src: so, Dst: Reg{AX}}, Mov{T: Longword, Src: Reg{AX}, Dst: do})
		default:
			bound := Data{Name: s.consts.double(two63, 8)}
			high, end := s.label("d2ul.high"), s.label("d2ul.end")
			s.emit(
				Cmp{T: Double, Src: bound, Dst: so},
				JmpCC{AE, high},
				Cvttsd2si{T: Quadword, Src: so, Dst: do},
				Jmp{end},
				Label{high},
				Mov{T: Double, Src: so, Dst: Reg{XMM1}},
				Binary{Op: Sub, T: Double, Src: bound, Dst: Reg{XMM1}},
				Cvttsd2si{T: Quadword, Src: Reg{XMM1}, Dst: do},
				Binary{Op: Add, T: Quadword, Src: Imm{math.MinInt64}, Dst: do},
				Label{end},
			)
		}
	case ir.OpSIToD:
		if st == Byte {
			s.emit(Movsx{SrcT: Byte, DstT: Longword, Src: so, Dst: Reg{AX}}, Cvtsi2sd{T: Longword, Src: Reg{AX}, Dst: do})
			return
		}
		s.emit(Cvtsi2sd{T: st, Src: so, Dst: do})
	case ir.OpUIToD:
		switch st {
		case Byte:
			s.emit(MovZeroExtend{SrcT: Byte, DstT: Longword, Src: so, Dst: Reg{AX}}, Cvtsi2sd{T: Longword, Src: Reg{AX}, Dst: do})
		case Longword:
			s.emit(MovZeroExtend{SrcT: Longword, DstT: Quadword, Src: so, Dst: Reg{AX}}, Cvtsi2sd{T: Quadword, Src: Reg{AX}, Dst: do})
		default:
			high, end := s.label("ul2d.high"), s.label("ul2d.end")
			s.emit(
				Cmp{T: Quadword, Src: Imm{0}, Dst: so},
				JmpCC{L, high},
				Cvtsi2sd{T: Quadword, Src: so, Dst: do},
				Jmp{end},
				Label{high},
				Mov{T: Quadword, Src: so, Dst: Reg{AX}},
				Mov{T: Quadword, Src: Reg{AX}, Dst: Reg{DX}},
				Binary{Op: Shr, T: Quadword, Src: Imm{1}, Dst: Reg{DX}},
				Binary{Op: And, T: Quadword, Src: Imm{1}, Dst: Reg{AX}},
				Binary{Op: Or, T: Quadword, Src: Reg{AX}, Dst: Reg{DX}},
				Cvtsi2sd{T: Quadword, Src: Reg{DX}, Dst: do},
				Binary{Op: Add, T: Double, Src: do, Dst: do},
				Label{end},
			)
		}
	}
}

func (s *selector) call(instr *ir.Instruction) {
	ft, ok := s.symbols.TypeOf(instr.Label).(ast.FunType)
	if !ok {
		fail("call of non-function %s", instr.Label)
	}
	regs, hidden := retLoc(s.symbols, ft.Ret)
	locs, words := assignArgs(s.symbols, ft.Params, hidden)

	padding := int64(0)
	if words%2 == 1 {
		padding = 8
		s.emit(Binary{Op: Sub, T: Quadword, Src: Imm{8}, Dst: Reg{SP}})
	}

	var result func(int64) Operand
	if instr.Dst != nil && isAggregate(s.typeOf(instr.Dst)) {
		result = s.at(instr.Dst)
	} else if hidden {
		scratch := s.label("call.result")
		s.extra[scratch] = byteArray(s.symbols.SizeOf(ft.Ret), s.symbols.AlignOf(ft.Ret))
		result = func(off int64) Operand { return PseudoMem{Name: scratch, Offset: off} }
	}
	if hidden {
		s.emit(Lea{Src: result(0), Dst: Reg{DI}})
	}

	for i, arg := range instr.Args {
		loc := locs[i]
		if loc.onStack() {
			continue
		}
		if isAggregate(loc.t) {
			for k, r := range loc.regs {
				s.loadEightbyte(s.at(arg), int64(k)*8, s.size(arg), r)
			}
			continue
		}
		s.emit(Mov{T: asmTypeOf(s.symbols, loc.t), Src: s.operand(arg), Dst: Reg{loc.regs[0]}})
	}
	for i := len(instr.Args) - 1; i >= 0; i-- {
		arg, loc := instr.Args[i], locs[i]
		if !loc.onStack() {
			continue
		}
		if isAggregate(loc.t) {
			size := s.size(arg)
			for off := (size+7)/8*8 - 8; off >= 0; off -= 8 {
				if size-off >= 8 {
					s.emit(Push{s.at(arg)(off)})
					continue
				}
				s.loadEightbyte(s.at(arg), off, size, AX)
				s.emit(Push{Reg{AX}})
			}
			continue
		}
		t, op := asmTypeOf(s.symbols, loc.t), s.operand(arg)
		if _, isImm := op.(Imm); isImm || t == Quadword || t == Double {
			s.emit(Push{op})
			continue
		}
		s.emit(Mov{T: t, Src: op, Dst: Reg{AX}}, Push{Reg{AX}})
	}

	s.emit(Call{instr.Label})
	if n := 8*int64(words) + padding; n > 0 {
		s.emit(Binary{Op: Add, T: Quadword, Src: Imm{n}, Dst: Reg{SP}})
	}

	if instr.Dst == nil || hidden {
		return
	}
	if isAggregate(s.typeOf(instr.Dst)) {
		for k, r := range regs {
			s.storeEightbyte(r, result, int64(k)*8, s.size(instr.Dst))
		}
		return
	}
	s.emit(Mov{T: s.asmType(instr.Dst), Src: Reg{regs[0]}, Dst: s.operand(instr.Dst)})
}
