// Package ir defines the three-address code ("TAC") that sits between the typed
// syntax tree and the code generators.
//
// A function body is a flat list of instructions. Operands are either typed
// constants or named variables; the type of a variable is recorded in the symbol
// table under the same name.
package ir

import (
	"fmt"
	"strings"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/symtab"
)

type Op int

const (
	OpRet Op = iota

	// Unary: Dst = op Args[0]
	OpNeg
	OpCom
	OpNot

	// Binary: Dst = Args[0] op Args[1]
	OpAdd
	OpSub
	OpMul
	OpDiv
	OpRem
	OpAnd
	OpOr
	OpXor
	OpShl
	OpShr
	OpCEq
	OpCNeq
	OpCLt
	OpCLe
	OpCGt
	OpCGe

	OpCopy
	OpJmp
	OpJz
	OpJnz
	OpLabel
	OpCall

	// Conversions: Dst = op Args[0]
	OpSignExt
	OpZeroExt
	OpTrunc
	OpDToSI
	OpDToUI
	OpSIToD
	OpUIToD

	OpAddr           // Dst = &Args[0]
	OpLoad           // Dst = *Args[0]
	OpStore          // *Args[1] = Args[0]
	OpAddPtr         // Dst = Args[0] + Args[1] * Offset
	OpCopyToOffset   // Name[Offset] = Args[0]
	OpCopyFromOffset // Dst = Name[Offset]
)

var opNames = map[Op]string{
	OpRet: "return", OpNeg: "-", OpCom: "~", OpNot: "!",
	OpAdd: "+", OpSub: "-", OpMul: "*", OpDiv: "/", OpRem: "%",
	OpAnd: "&", OpOr: "|", OpXor: "^", OpShl: "<<", OpShr: ">>",
	OpCEq: "==", OpCNeq: "!=", OpCLt: "<", OpCLe: "<=", OpCGt: ">", OpCGe: ">=",
	OpCopy: "copy", OpJmp: "jump", OpJz: "jump_if_zero", OpJnz: "jump_if_not_zero",
	OpLabel: "label", OpCall: "call",
	OpSignExt: "sign_extend", OpZeroExt: "zero_extend", OpTrunc: "truncate",
	OpDToSI: "double_to_int", OpDToUI: "double_to_uint", OpSIToD: "int_to_double", OpUIToD: "uint_to_double",
	OpAddr: "get_address", OpLoad: "load", OpStore: "store", OpAddPtr: "add_ptr",
	OpCopyToOffset: "copy_to_offset", OpCopyFromOffset: "copy_from_offset",
}

func (op Op) String() string { return opNames[op] }

func (op Op) IsUnary() bool      { return op >= OpNeg && op <= OpNot }
func (op Op) IsBinary() bool     { return op >= OpAdd && op <= OpCGe }
func (op Op) IsRelational() bool { return op >= OpCEq && op <= OpCGe }
func (op Op) IsConversion() bool { return op >= OpSignExt && op <= OpUIToD }
func (op Op) IsJump() bool       { return op == OpJmp || op == OpJz || op == OpJnz }

// Value is an instruction operand.
type Value interface {
	isValue()
	String() string
}

type Const struct{ Value ast.Const }

type Var struct{ Name string }

func (Const) isValue() {}
func (Var) isValue()   {}

func (c Const) String() string { return c.Value.String() }
func (v Var) String() string   { return v.Name }

// Instruction is one TAC instruction. Which fields are meaningful depends on Op:
// Label names the jump target, the label, the callee, or the aggregate accessed by
// CopyToOffset and CopyFromOffset; Offset is the byte offset of those two and the
// scale of AddPtr.
type Instruction struct {
	Op     Op
	Dst    Value
	Args   []Value
	Label  string
	Offset int64
}

func (i *Instruction) String() string {
	args := make([]string, len(i.Args))
	for k, a := range i.Args {
		args[k] = a.String()
	}
	switch {
	case i.Op == OpRet:
		if len(i.Args) == 0 {
			return "return"
		}
		return "return " + args[0]
	case i.Op.IsUnary():
		return fmt.Sprintf("%s = %s%s", i.Dst, i.Op, args[0])
	case i.Op.IsBinary():
		return fmt.Sprintf("%s = %s %s %s", i.Dst, args[0], i.Op, args[1])
	case i.Op.IsConversion():
		return fmt.Sprintf("%s = %s %s", i.Dst, i.Op, args[0])
	}
	switch i.Op {
	case OpCopy:
		return fmt.Sprintf("%s = %s", i.Dst, args[0])
	case OpJmp:
		return "jump " + i.Label
	case OpJz, OpJnz:
		return fmt.Sprintf("%s %s, %s", i.Op, args[0], i.Label)
	case OpLabel:
		return i.Label + ":"
	case OpCall:
		call := fmt.Sprintf("%s(%s)", i.Label, strings.Join(args, ", "))
		if i.Dst == nil {
			return call
		}
		return fmt.Sprintf("%s = %s", i.Dst, call)
	case OpAddr:
		return fmt.Sprintf("%s = &%s", i.Dst, args[0])
	case OpLoad:
		return fmt.Sprintf("%s = *%s", i.Dst, args[0])
	case OpStore:
		return fmt.Sprintf("*%s = %s", args[1], args[0])
	case OpAddPtr:
		return fmt.Sprintf("%s = %s + %s * %d", i.Dst, args[0], args[1], i.Offset)
	case OpCopyToOffset:
		return fmt.Sprintf("%s[%d] = %s", i.Label, i.Offset, args[0])
	case OpCopyFromOffset:
		return fmt.Sprintf("%s = %s[%d]", i.Dst, i.Label, i.Offset)
	}
	return "?"
}

// Clone returns a copy of i that shares nothing with it.
func (i *Instruction) Clone() *Instruction {
	out := *i
	out.Args = append([]Value(nil), i.Args...)
	return &out
}

// Func is a function definition. Params are the unique names of its parameters.
type Func struct {
	Name   string
	Global bool
	Params []string
	Body   []*Instruction
}

// Data is an object with static storage duration.
type Data struct {
	Name     string
	Global   bool
	ReadOnly bool
	Type     ast.Type
	Align    int64
	Items    []symtab.StaticInit
}

type Program struct {
	Funcs   []*Func
	Globals []*Data
	// Symbols holds the type of every variable the program names.
	Symbols *symtab.Table
}

// Instruction constructors

func Ret(v Value) *Instruction {
	if v == nil {
		return &Instruction{Op: OpRet}
	}
	return &Instruction{Op: OpRet, Args: []Value{v}}
}

func Unary(op Op, src, dst Value) *Instruction {
	return &Instruction{Op: op, Dst: dst, Args: []Value{src}}
}

func Binary(op Op, a, b, dst Value) *Instruction {
	return &Instruction{Op: op, Dst: dst, Args: []Value{a, b}}
}

func Copy(src, dst Value) *Instruction { return Unary(OpCopy, src, dst) }

func Jmp(target string) *Instruction { return &Instruction{Op: OpJmp, Label: target} }

func Jz(cond Value, target string) *Instruction {
	return &Instruction{Op: OpJz, Args: []Value{cond}, Label: target}
}

func Jnz(cond Value, target string) *Instruction {
	return &Instruction{Op: OpJnz, Args: []Value{cond}, Label: target}
}

func NewLabel(name string) *Instruction { return &Instruction{Op: OpLabel, Label: name} }

// Call builds a call of name; dst is nil when the result is unused or void.
func Call(name string, args []Value, dst Value) *Instruction {
	return &Instruction{Op: OpCall, Label: name, Args: args, Dst: dst}
}

func Store(src, ptr Value) *Instruction { return &Instruction{Op: OpStore, Args: []Value{src, ptr}} }

func AddPtr(ptr, index Value, scale int64, dst Value) *Instruction {
	return &Instruction{Op: OpAddPtr, Args: []Value{ptr, index}, Offset: scale, Dst: dst}
}

func CopyToOffset(src Value, dst string, offset int64) *Instruction {
	return &Instruction{Op: OpCopyToOffset, Args: []Value{src}, Label: dst, Offset: offset}
}

func CopyFromOffset(src string, offset int64, dst Value) *Instruction {
	return &Instruction{Op: OpCopyFromOffset, Label: src, Offset: offset, Dst: dst}
}

// TypeOf returns the C type of a value.
func (p *Program) TypeOf(v Value) ast.Type {
	switch v := v.(type) {
	case Const:
		return v.Value.Type()
	case Var:
		return p.Symbols.TypeOf(v.Name)
	}
	return nil
}

func (p *Program) FindFunc(name string) *Func {
	for _, f := range p.Funcs {
		if f.Name == name {
			return f
		}
	}
	return nil
}

// String renders the program in the textual form used by --dump-tac.
func (p *Program) String() string {
	var sb strings.Builder
	for _, g := range p.Globals {
		kind := "static"
		if g.ReadOnly {
			kind = "constant"
		}
		if g.Global {
			kind = "global " + kind
		}
		items := make([]string, len(g.Items))
		for i, it := range g.Items {
			items[i] = it.String()
		}
		fmt.Fprintf(&sb, "%s %s %s = {%s}\n", kind, g.Type, g.Name, strings.Join(items, ", "))
	}
	for _, f := range p.Funcs {
		sb.WriteString(f.String())
	}
	return sb.String()
}

func (f *Func) String() string {
	var sb strings.Builder
	if f.Global {
		sb.WriteString("global ")
	}
	fmt.Fprintf(&sb, "function %s(%s)\n", f.Name, strings.Join(f.Params, ", "))
	for _, i := range f.Body {
		if i.Op == OpLabel {
			fmt.Fprintf(&sb, "  %s\n", i)
		} else {
			fmt.Fprintf(&sb, "    %s\n", i)
		}
	}
	return sb.String()
}

// Escape renders s for a double-quoted assembler string, with octal escapes for
// every byte that is not printable ASCII.
func Escape(s string) string {
	var sb strings.Builder
	for i := 0; i < len(s); i++ {
		c := s[i]
		switch {
		case c == '"' || c == '\\':
			sb.WriteByte('\\')
			sb.WriteByte(c)
		case c < 0x20 || c >= 0x7f:
			fmt.Fprintf(&sb, "\\%03o", c)
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String()
}
