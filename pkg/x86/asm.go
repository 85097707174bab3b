// Package x86 generates x86-64 assembly for the System V ABI from TAC.
//
// Code generation runs in three steps over an abstract instruction set: selection
// maps every TAC instruction to instructions whose operands may still name
// pseudo-registers, pseudo-registers are then assigned stack slots, and finally
// operands that x86-64 cannot encode are rewritten through scratch registers.
// The emitter prints the result in GAS syntax.
package x86

// TypeKind classifies the operand size of an instruction.
type TypeKind int

const (
	KByte TypeKind = iota
	KLongword
	KQuadword
	KDouble
	KByteArray
)

type AsmType struct {
	Kind  TypeKind
	Size  int64
	Align int64
}

var (
	Byte     = AsmType{KByte, 1, 1}
	Longword = AsmType{KLongword, 4, 4}
	Quadword = AsmType{KQuadword, 8, 8}
	Double   = AsmType{KDouble, 8, 8}
)

func byteArray(size, align int64) AsmType { return AsmType{KByteArray, size, align} }

// Registers. The XMM registers follow the general purpose ones.
type Register int

const (
	AX Register = iota
	CX
	DX
	DI
	SI
	R8
	R9
	R10
	R11
	SP
	BP
	XMM0
	XMM1
	XMM2
	XMM3
	XMM4
	XMM5
	XMM6
	XMM7
	XMM14 Register = iota + 6
	XMM15
)

func (r Register) IsXMM() bool { return r >= XMM0 }

var (
	intArgRegs = []Register{DI, SI, DX, CX, R8, R9}
	sseArgRegs = []Register{XMM0, XMM1, XMM2, XMM3, XMM4, XMM5, XMM6, XMM7}
	intRetRegs = []Register{AX, DX}
	sseRetRegs = []Register{XMM0, XMM1}
)

// Operands

type Operand interface{ isOperand() }

type (
	Imm struct{ V int64 }
	Reg struct{ R Register }
	// Pseudo is a scalar variable not yet given a home.
	Pseudo struct{ Name string }
	// PseudoMem is a byte offset into an aggregate variable not yet given a home.
	PseudoMem struct {
		Name   string
		Offset int64
	}
	Memory struct {
		Base   Register
		Offset int64
	}
	Indexed struct {
		Base, Index Register
		Scale       int64
	}
	// Data is a RIP-relative reference to a static object.
	Data struct {
		Name   string
		Offset int64
	}
)

func (Imm) isOperand()       {}
func (Reg) isOperand()       {}
func (Pseudo) isOperand()    {}
func (PseudoMem) isOperand() {}
func (Memory) isOperand()    {}
func (Indexed) isOperand()   {}
func (Data) isOperand()      {}

func isMemory(op Operand) bool {
	switch op.(type) {
	case Memory, Indexed, Data, Pseudo, PseudoMem:
		return true
	}
	return false
}

// CondCode is the condition tested by SetCC and JmpCC.
type CondCode int

const (
	E CondCode = iota
	NE
	L
	LE
	G
	GE
	B
	BE
	A
	AE
	P
	NP
)

var condNames = [...]string{"e", "ne", "l", "le", "g", "ge", "b", "be", "a", "ae", "p", "np"}

func (c CondCode) String() string { return condNames[c] }

type UnaryOp int

const (
	Neg UnaryOp = iota
	Not
)

type BinaryOp int

const (
	Add BinaryOp = iota
	Sub
	Mult
	DivDouble
	And
	Or
	Xor
	Sal
	Sar
	Shr
)

// Instructions

type Instr interface{ isInstr() }

type (
	Mov struct {
		T        AsmType
		Src, Dst Operand
	}
	Movsx struct {
		SrcT, DstT AsmType
		Src, Dst   Operand
	}
	MovZeroExtend struct {
		SrcT, DstT AsmType
		Src, Dst   Operand
	}
	Lea       struct{ Src, Dst Operand }
	Cvttsd2si struct {
		T        AsmType
		Src, Dst Operand
	}
	Cvtsi2sd struct {
		T        AsmType
		Src, Dst Operand
	}
	Unary struct {
		Op  UnaryOp
		T   AsmType
		Dst Operand
	}
	Binary struct {
		Op       BinaryOp
		T        AsmType
		Src, Dst Operand
	}
	Cmp struct {
		T        AsmType
		Src, Dst Operand
	}
	Idiv struct {
		T   AsmType
		Src Operand
	}
	Div struct {
		T   AsmType
		Src Operand
	}
	Cdq   struct{ T AsmType }
	Jmp   struct{ Target string }
	JmpCC struct {
		Cond   CondCode
		Target string
	}
	SetCC struct {
		Cond CondCode
		Dst  Operand
	}
	Label struct{ Name string }
	Push  struct{ Src Operand }
	Call  struct{ Name string }
	Ret   struct{}
)

func (Mov) isInstr()           {}
func (Movsx) isInstr()         {}
func (MovZeroExtend) isInstr() {}
func (Lea) isInstr()           {}
func (Cvttsd2si) isInstr()     {}
func (Cvtsi2sd) isInstr()      {}
func (Unary) isInstr()         {}
func (Binary) isInstr()        {}
func (Cmp) isInstr()           {}
func (Idiv) isInstr()          {}
func (Div) isInstr()           {}
func (Cdq) isInstr()           {}
func (Jmp) isInstr()           {}
func (JmpCC) isInstr()         {}
func (SetCC) isInstr()         {}
func (Label) isInstr()         {}
func (Push) isInstr()          {}
func (Call) isInstr()          {}
func (Ret) isInstr()           {}

// Function is one function in abstract assembly.
type Function struct {
	Name   string
	Global bool
	Instrs []Instr
	// Frame is the stack size below the saved frame pointer, a multiple of 16.
	Frame int64
}

// StaticConst is read-only data the code generator creates itself, such as
// floating-point literals.
type StaticConst struct {
	Name  string
	Align int64
	Bits  uint64
}
