package x86

import (
	"github.com/xplshn/xcc/pkg/symtab"
	"github.com/xplshn/xcc/pkg/util"
)

// mapOperands returns instr with fn applied to each of its operands.
func mapOperands(instr Instr, fn func(Operand) Operand) Instr {
	switch i := instr.(type) {
	case Mov:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Movsx:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case MovZeroExtend:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Lea:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Cvttsd2si:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Cvtsi2sd:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Unary:
		i.Dst = fn(i.Dst)
		return i
	case Binary:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Cmp:
		i.Src, i.Dst = fn(i.Src), fn(i.Dst)
		return i
	case Idiv:
		i.Src = fn(i.Src)
		return i
	case Div:
		i.Src = fn(i.Src)
		return i
	case SetCC:
		i.Dst = fn(i.Dst)
		return i
	case Push:
		i.Src = fn(i.Src)
		return i
	}
	return instr
}

// frame hands out stack slots below the frame pointer.
type frame struct {
	symbols *symtab.Table
	extra   map[string]AsmType
	slots   map[string]int64
	size    int64
}

func (f *frame) slot(name string) int64 {
	if off, ok := f.slots[name]; ok {
		return off
	}
	t, ok := f.extra[name]
	if !ok {
		t = asmTypeOf(f.symbols, f.symbols.TypeOf(name))
	}
	f.size = util.AlignUp(f.size+t.Size, t.Align)
	f.slots[name] = -f.size
	return -f.size
}

func (f *frame) replace(op Operand) Operand {
	switch op := op.(type) {
	case Pseudo:
		return Memory{Base: BP, Offset: f.slot(op.Name)}
	case PseudoMem:
		return Memory{Base: BP, Offset: f.slot(op.Name) + op.Offset}
	}
	return op
}

// allocateStack gives every pseudo-register in fn its own stack slot and
// reserves the frame, rounded up to 16 bytes, at function entry.
func allocateStack(fn *Function, symbols *symtab.Table, extra map[string]AsmType) {
	f := &frame{symbols: symbols, extra: extra, slots: make(map[string]int64)}
	for i, instr := range fn.Instrs {
		fn.Instrs[i] = mapOperands(instr, f.replace)
	}
	fn.Frame = util.AlignUp(f.size, 16)
	if fn.Frame > 0 {
		reserve := Binary{Op: Sub, T: Quadword, Src: Imm{fn.Frame}, Dst: Reg{SP}}
		fn.Instrs = append([]Instr{reserve}, fn.Instrs...)
	}
}
