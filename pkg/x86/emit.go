package x86

import (
	"bytes"
	"fmt"
	"math"
	"strconv"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

var (
	quadNames = map[Register]string{AX: "rax", CX: "rcx", DX: "rdx", DI: "rdi", SI: "rsi", R8: "r8", R9: "r9", R10: "r10", R11: "r11", SP: "rsp", BP: "rbp"}
	longNames = map[Register]string{AX: "eax", CX: "ecx", DX: "edx", DI: "edi", SI: "esi", R8: "r8d", R9: "r9d", R10: "r10d", R11: "r11d", SP: "esp", BP: "ebp"}
	byteNames = map[Register]string{AX: "al", CX: "cl", DX: "dl", DI: "dil", SI: "sil", R8: "r8b", R9: "r9b", R10: "r10b", R11: "r11b", SP: "spl", BP: "bpl"}
)

func regName(r Register, t AsmType) string {
	if r.IsXMM() {
		n := int(r - XMM0)
		if r >= XMM14 {
			n = 14 + int(r-XMM14)
		}
		return "%xmm" + strconv.Itoa(n)
	}
	switch t {
	case Byte:
		return "%" + byteNames[r]
	case Longword:
		return "%" + longNames[r]
	}
	return "%" + quadNames[r]
}

func suffix(t AsmType) string {
	switch t {
	case Byte:
		return "b"
	case Longword:
		return "l"
	}
	return "q"
}

type emitter struct {
	buf     *bytes.Buffer
	cfg     *config.Config
	symbols *symtab.Table
	consts  map[string]bool
}

func (e *emitter) darwin() bool { return e.cfg.Platform == config.Darwin }

func (e *emitter) printf(format string, args ...any) { fmt.Fprintf(e.buf, format, args...) }

func (e *emitter) line(format string, args ...any) {
	e.buf.WriteByte('\t')
	fmt.Fprintf(e.buf, format, args...)
	e.buf.WriteByte('\n')
}

func (e *emitter) symbol(name string) string {
	if e.darwin() {
		return "_" + name
	}
	return name
}

func (e *emitter) local(name string) string {
	if e.darwin() {
		return "L" + name
	}
	return ".L" + name
}

func (e *emitter) align(n int64) {
	if e.darwin() {
		e.line(".balign %d", n)
		return
	}
	e.line(".align %d", n)
}

func (e *emitter) operand(op Operand, t AsmType) string {
	switch op := op.(type) {
	case Imm:
		return "$" + strconv.FormatInt(op.V, 10)
	case Reg:
		return regName(op.R, t)
	case Memory:
		if op.Offset == 0 {
			return "(" + regName(op.Base, Quadword) + ")"
		}
		return fmt.Sprintf("%d(%s)", op.Offset, regName(op.Base, Quadword))
	case Indexed:
		return fmt.Sprintf("(%s,%s,%d)", regName(op.Base, Quadword), regName(op.Index, Quadword), op.Scale)
	case Data:
		name := e.symbol(op.Name)
		if e.consts[op.Name] {
			name = e.local(op.Name)
		}
		if op.Offset != 0 {
			name += fmt.Sprintf("%+d", op.Offset)
		}
		return name + "(%rip)"
	}
	panic(fmt.Sprintf("x86: operand %T left after stack allocation", op))
}

func (e *emitter) two(mnemonic string, src Operand, st AsmType, dst Operand, dt AsmType) {
	e.line("%s %s, %s", mnemonic, e.operand(src, st), e.operand(dst, dt))
}

var binaryNames = map[BinaryOp]string{
	Add: "add", Sub: "sub", Mult: "imul", And: "and", Or: "or", Xor: "xor",
	Sal: "sal", Sar: "sar", Shr: "shr",
}

var doubleNames = map[BinaryOp]string{
	Add: "addsd", Sub: "subsd", Mult: "mulsd", DivDouble: "divsd", Xor: "xorpd",
}

func (e *emitter) instr(instr Instr) {
	switch i := instr.(type) {
	case Mov:
		switch {
		case i.T == Double:
			e.two("movsd", i.Src, Double, i.Dst, Double)
		case largeImm(i.Src, i.T):
			e.two("movabsq", i.Src, Quadword, i.Dst, Quadword)
		default:
			e.two("mov"+suffix(i.T), i.Src, i.T, i.Dst, i.T)
		}
	case Movsx:
		e.two("movs"+suffix(i.SrcT)+suffix(i.DstT), i.Src, i.SrcT, i.Dst, i.DstT)
	case MovZeroExtend:
		e.two("movz"+suffix(i.SrcT)+suffix(i.DstT), i.Src, i.SrcT, i.Dst, i.DstT)
	case Lea:
		e.two("leaq", i.Src, Quadword, i.Dst, Quadword)
	case Cvttsd2si:
		e.two("cvttsd2si"+suffix(i.T), i.Src, Double, i.Dst, i.T)
	case Cvtsi2sd:
		e.two("cvtsi2sd"+suffix(i.T), i.Src, i.T, i.Dst, Double)
	case Unary:
		name := "neg"
		if i.Op == Not {
			name = "not"
		}
		e.line("%s%s %s", name, suffix(i.T), e.operand(i.Dst, i.T))
	case Binary:
		switch {
		case i.T == Double:
			e.two(doubleNames[i.Op], i.Src, Double, i.Dst, Double)
		case i.Op == Sal || i.Op == Sar || i.Op == Shr:
			e.two(binaryNames[i.Op]+suffix(i.T), i.Src, Byte, i.Dst, i.T)
		default:
			e.two(binaryNames[i.Op]+suffix(i.T), i.Src, i.T, i.Dst, i.T)
		}
	case Cmp:
		if i.T == Double {
			e.two("comisd", i.Src, Double, i.Dst, Double)
			return
		}
		e.two("cmp"+suffix(i.T), i.Src, i.T, i.Dst, i.T)
	case Idiv:
		e.line("idiv%s %s", suffix(i.T), e.operand(i.Src, i.T))
	case Div:
		e.line("div%s %s", suffix(i.T), e.operand(i.Src, i.T))
	case Cdq:
		if i.T == Quadword {
			e.line("cqo")
		} else {
			e.line("cdq")
		}
	case Jmp:
		e.line("jmp %s", e.local(i.Target))
	case JmpCC:
		e.line("j%s %s", i.Cond, e.local(i.Target))
	case SetCC:
		e.line("set%s %s", i.Cond, e.operand(i.Dst, Byte))
	case Label:
		e.printf("%s:\n", e.local(i.Name))
	case Push:
		e.line("pushq %s", e.operand(i.Src, Quadword))
	case Call:
		target := e.symbol(i.Name)
		if !e.darwin() && !e.symbols.IsDefinedFunction(i.Name) {
			target += "@PLT"
		}
		e.line("call %s", target)
	case Ret:
		e.line("movq %%rbp, %%rsp")
		e.line("popq %%rbp")
		e.line("ret")
	}
}

func (e *emitter) function(fn *Function) {
	if fn.Global {
		e.line(".globl %s", e.symbol(fn.Name))
	}
	e.line(".text")
	e.printf("%s:\n", e.symbol(fn.Name))
	e.line("pushq %%rbp")
	e.line("movq %%rsp, %%rbp")
	for _, instr := range fn.Instrs {
		e.instr(instr)
	}
}

func (e *emitter) double(v float64) {
	if math.IsInf(v, 0) || math.IsNaN(v) || v == 0 && math.Signbit(v) {
		e.line(".quad %d", int64(math.Float64bits(v)))
		return
	}
	e.line(".double %s", strconv.FormatFloat(v, 'g', -1, 64))
}

func (e *emitter) item(it symtab.StaticInit) {
	switch it := it.(type) {
	case symtab.ConstInit:
		switch c := it.Value.(type) {
		case ast.ConstChar, ast.ConstUChar:
			e.line(".byte %d", ast.Int64(c))
		case ast.ConstInt, ast.ConstUInt:
			e.line(".long %d", ast.Int64(c))
		case ast.ConstDouble:
			e.double(c.V)
		default:
			e.line(".quad %d", ast.Int64(c))
		}
	case symtab.ZeroInit:
		e.line(".zero %d", it.N)
	case symtab.StringInit:
		if it.NullTerminated {
			e.line(".asciz \"%s\"", ir.Escape(it.Value))
		} else {
			e.line(".ascii \"%s\"", ir.Escape(it.Value))
		}
	case symtab.PointerInit:
		e.line(".quad %s", e.symbol(it.Name))
	}
}

func (e *emitter) section(g *ir.Data) string {
	switch {
	case g.ReadOnly && e.darwin():
		for _, it := range g.Items {
			if _, ok := it.(symtab.StringInit); !ok {
				return ".const"
			}
		}
		return ".cstring"
	case g.ReadOnly:
		return ".section .rodata"
	case symtab.IsZero(g.Items):
		return ".bss"
	}
	return ".data"
}

func (e *emitter) static(g *ir.Data) {
	if g.Global {
		e.line(".globl %s", e.symbol(g.Name))
	}
	e.line("%s", e.section(g))
	e.align(g.Align)
	e.printf("%s:\n", e.symbol(g.Name))
	for _, it := range g.Items {
		e.item(it)
	}
}

func (e *emitter) constant(c StaticConst) {
	switch {
	case !e.darwin():
		e.line(".section .rodata")
	case c.Align == 16:
		e.line(".literal16")
	default:
		e.line(".literal8")
	}
	e.align(c.Align)
	e.printf("%s:\n", e.local(c.Name))
	e.double(math.Float64frombits(c.Bits))
	if e.darwin() && c.Align == 16 {
		e.line(".quad 0")
	}
}

// Emit writes the assembly for funcs, the program's statics and consts.
func Emit(buf *bytes.Buffer, cfg *config.Config, prog *ir.Program, funcs []*Function, consts []StaticConst) {
	e := &emitter{buf: buf, cfg: cfg, symbols: prog.Symbols, consts: make(map[string]bool)}
	for _, c := range consts {
		e.consts[c.Name] = true
	}
	for _, fn := range funcs {
		e.function(fn)
	}
	for _, g := range prog.Globals {
		e.static(g)
	}
	for _, c := range consts {
		e.constant(c)
	}
	if !e.darwin() {
		e.line(`.section .note.GNU-stack,"",@progbits`)
	}
}
