package x86

import (
	"bytes"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

func v(name string) ir.Value { return ir.Var{Name: name} }

func long(n int64) ir.Value { return ir.Const{Value: ast.ConstLong{V: n}} }

func i32(n int32) ir.Value { return ir.Const{Value: ast.ConstInt{V: n}} }

func defineFunc(symbols *symtab.Table, name string, ft ast.FunType, defined bool) {
	symbols.Add(name, ft, symtab.FunAttr{Defined: defined, Global: true})
}

func addStruct(symbols *symtab.Table, tag string, names []string, types []ast.Type) ast.Struct {
	symbols.AddStruct(symbols.Layout(tag, false, names, types))
	return ast.Struct{Tag: tag}
}

func lines(s string) []string {
	var out []string
	for _, l := range strings.Split(strings.TrimRight(s, "\n"), "\n") {
		out = append(out, strings.TrimSpace(l))
	}
	return out
}

func generate(t *testing.T, prog *ir.Program, platform config.Platform) []string {
	t.Helper()
	cfg := config.NewConfig()
	cfg.Platform = platform
	buf, err := NewBackend().Generate(prog, cfg)
	if err != nil {
		t.Fatalf("Generate() error: %v", err)
	}
	return lines(buf.String())
}

// containsInOrder reports whether want appears in got as a subsequence.
func containsInOrder(got, want []string) bool {
	i := 0
	for _, g := range got {
		if i < len(want) && g == want[i] {
			i++
		}
	}
	return i == len(want)
}

func TestClassify(t *testing.T) {
	symbols := symtab.New()
	tests := []struct {
		name string
		typ  ast.Type
		want []Class
	}{
		{"two doubles", addStruct(symbols, "dd", []string{"a", "b"}, []ast.Type{ast.Double{}, ast.Double{}}), []Class{ClassSSE, ClassSSE}},
		{"int and double", addStruct(symbols, "id", []string{"a", "b"}, []ast.Type{ast.Int{}, ast.Double{}}), []Class{ClassInteger, ClassSSE}},
		{"three chars", addStruct(symbols, "c3", []string{"c"}, []ast.Type{ast.Array{Elem: ast.Char{}, Size: 3}}), []Class{ClassInteger}},
		{"int pair then double", addStruct(symbols, "iid", []string{"a", "b", "c"}, []ast.Type{ast.Int{}, ast.Int{}, ast.Double{}}), []Class{ClassInteger, ClassSSE}},
		{"double then char", addStruct(symbols, "dc", []string{"a", "b"}, []ast.Type{ast.Double{}, ast.Char{}}), []Class{ClassSSE, ClassInteger}},
		{"too large", addStruct(symbols, "big", []string{"a", "b", "c"}, []ast.Type{ast.Long{}, ast.Long{}, ast.Long{}}), []Class{ClassMemory}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, Classify(symbols, tt.typ)); diff != "" {
				t.Errorf("Classify() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAssignArgs(t *testing.T) {
	symbols := symtab.New()
	pair := addStruct(symbols, "pair", []string{"a", "b"}, []ast.Type{ast.Long{}, ast.Double{}})

	var ints []ast.Type
	for range 7 {
		ints = append(ints, ast.Int{})
	}
	locs, words := assignArgs(symbols, ints, false)
	if words != 1 || !locs[6].onStack() || locs[5].regs[0] != R9 {
		t.Errorf("seven ints: words=%d, last=%+v", words, locs[6])
	}

	locs, _ = assignArgs(symbols, []ast.Type{ast.Int{}}, true)
	if locs[0].regs[0] != SI {
		t.Errorf("hidden return pointer should take %%rdi, first argument got %v", locs[0].regs)
	}

	locs, words = assignArgs(symbols, []ast.Type{ast.Double{}, pair, ast.Long{}}, false)
	if diff := cmp.Diff([]Register{DI, XMM1}, locs[1].regs); diff != "" || words != 0 {
		t.Errorf("struct argument registers mismatch (-want +got):\n%s", diff)
	}
	if locs[2].regs[0] != SI {
		t.Errorf("long after struct got %v, want %%rsi", locs[2].regs)
	}

	// A struct needing two integer registers goes on the stack when only one is left.
	two := addStruct(symbols, "two", []string{"a", "b"}, []ast.Type{ast.Long{}, ast.Long{}})
	locs, words = assignArgs(symbols, []ast.Type{ast.Long{}, ast.Long{}, ast.Long{}, ast.Long{}, ast.Long{}, two, ast.Long{}}, false)
	if !locs[5].onStack() || words != 2 || locs[6].regs[0] != R9 {
		t.Errorf("struct spill: words=%d, struct=%+v, next=%+v", words, locs[5], locs[6])
	}
}

func render(instrs []Instr) []string {
	var buf bytes.Buffer
	e := &emitter{buf: &buf, cfg: config.NewConfig(), symbols: symtab.New()}
	for _, i := range instrs {
		e.instr(i)
	}
	return lines(buf.String())
}

func TestFix(t *testing.T) {
	m := func(off int64) Operand { return Memory{Base: BP, Offset: off} }
	tests := []struct {
		name string
		in   Instr
		want []string
	}{
		{"mov memory to memory", Mov{Longword, m(-4), m(-8)}, []string{"movl -4(%rbp), %r10d", "movl %r10d, -8(%rbp)"}},
		{"mov double memory to memory", Mov{Double, m(-8), m(-16)}, []string{"movsd -8(%rbp), %xmm14", "movsd %xmm14, -16(%rbp)"}},
		{"mov large immediate", Mov{Quadword, Imm{1 << 32}, m(-8)}, []string{"movabsq $4294967296, %r10", "movq %r10, -8(%rbp)"}},
		{"mov truncates byte immediate", Mov{Byte, Imm{255}, m(-1)}, []string{"movb $-1, -1(%rbp)"}},
		{"cmp against immediate", Cmp{Longword, Imm{0}, Imm{5}}, []string{"movl $5, %r11d", "cmpl $0, %r11d"}},
		{"cmp memory operands", Cmp{Quadword, m(-8), m(-16)}, []string{"movq -8(%rbp), %r10", "cmpq %r10, -16(%rbp)"}},
		{"imul into memory", Binary{Mult, Quadword, Imm{3}, m(-8)}, []string{"movq -8(%rbp), %r11", "imulq $3, %r11", "movq %r11, -8(%rbp)"}},
		{"add large immediate", Binary{Add, Quadword, Imm{1 << 32}, m(-8)}, []string{"movabsq $4294967296, %r10", "addq %r10, -8(%rbp)"}},
		{"shift by cl", Binary{Sal, Longword, Reg{CX}, m(-4)}, []string{"sall %cl, -4(%rbp)"}},
		{"idiv immediate", Idiv{Longword, Imm{3}}, []string{"movl $3, %r10d", "idivl %r10d"}},
		{"movsx immediate to memory", Movsx{Byte, Quadword, Imm{-1}, m(-8)}, []string{"movb $-1, %r10b", "movsbq %r10b, %r11", "movq %r11, -8(%rbp)"}},
		{"zero extend longword", MovZeroExtend{Longword, Quadword, m(-4), m(-16)}, []string{"movl -4(%rbp), %r11d", "movq %r11, -16(%rbp)"}},
		{"zero extend into register", MovZeroExtend{Longword, Quadword, m(-4), Reg{AX}}, []string{"movl -4(%rbp), %eax"}},
		{"double arithmetic into memory", Binary{Add, Double, m(-16), m(-8)}, []string{"movsd -8(%rbp), %xmm15", "addsd -16(%rbp), %xmm15", "movsd %xmm15, -8(%rbp)"}},
		{"comisd memory", Cmp{Double, m(-16), m(-8)}, []string{"movsd -8(%rbp), %xmm15", "comisd -16(%rbp), %xmm15"}},
		{"lea into memory", Lea{m(-16), m(-24)}, []string{"leaq -16(%rbp), %r11", "movq %r11, -24(%rbp)"}},
		{"cvttsd2si into memory", Cvttsd2si{Longword, m(-8), m(-12)}, []string{"cvttsd2sil -8(%rbp), %r11d", "movl %r11d, -12(%rbp)"}},
		{"cvtsi2sd immediate", Cvtsi2sd{Quadword, Imm{7}, m(-8)}, []string{"movq $7, %r10", "cvtsi2sdq %r10, %xmm15", "movsd %xmm15, -8(%rbp)"}},
		{"push large immediate", Push{Imm{-1 << 40}}, []string{"movabsq $-1099511627776, %r10", "pushq %r10"}},
		{"legal instruction unchanged", Mov{Quadword, Reg{AX}, m(-8)}, []string{"movq %rax, -8(%rbp)"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if diff := cmp.Diff(tt.want, render(fix(tt.in))); diff != "" {
				t.Errorf("fix() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAllocateStack(t *testing.T) {
	symbols := symtab.New()
	s := addStruct(symbols, "s", []string{"a", "b", "c"}, []ast.Type{ast.Int{}, ast.Int{}, ast.Int{}})
	symbols.AddLocal("a", ast.Int{})
	symbols.AddLocal("b", ast.Long{})
	symbols.AddLocal("c", ast.Char{})
	symbols.AddLocal("s.1", s)

	fn := &Function{Instrs: []Instr{
		Mov{Longword, Imm{1}, Pseudo{"a"}},
		Mov{Quadword, Imm{2}, Pseudo{"b"}},
		Mov{Byte, Imm{3}, Pseudo{"c"}},
		Mov{Longword, Imm{4}, PseudoMem{"s.1", 8}},
		Mov{Longword, Pseudo{"a"}, Reg{AX}},
	}}
	allocateStack(fn, symbols, nil)
	want := []string{
		"subq $32, %rsp",
		"movl $1, -4(%rbp)",
		"movq $2, -16(%rbp)",
		"movb $3, -17(%rbp)",
		"movl $4, -24(%rbp)",
		"movl -4(%rbp), %eax",
	}
	if diff := cmp.Diff(want, render(fn.Instrs)); diff != "" {
		t.Errorf("allocateStack() mismatch (-want +got):\n%s", diff)
	}
	if fn.Frame%16 != 0 {
		t.Errorf("frame size %d is not a multiple of 16", fn.Frame)
	}
}

func returnTwoPlusThree() *ir.Program {
	symbols := symtab.New()
	defineFunc(symbols, "main", ast.FunType{Ret: ast.Int{}}, true)
	symbols.AddLocal("tmp.0", ast.Int{})
	return &ir.Program{
		Symbols: symbols,
		Funcs: []*ir.Func{{
			Name:   "main",
			Global: true,
			Body: []*ir.Instruction{
				ir.Binary(ir.OpAdd, i32(2), i32(3), v("tmp.0")),
				ir.Ret(v("tmp.0")),
			},
		}},
	}
}

func TestGenerateLinux(t *testing.T) {
	want := []string{
		".globl main",
		".text",
		"main:",
		"pushq %rbp",
		"movq %rsp, %rbp",
		"subq $16, %rsp",
		"movl $2, -4(%rbp)",
		"addl $3, -4(%rbp)",
		"movl -4(%rbp), %eax",
		"movq %rbp, %rsp",
		"popq %rbp",
		"ret",
		`.section .note.GNU-stack,"",@progbits`,
	}
	if diff := cmp.Diff(want, generate(t, returnTwoPlusThree(), config.Linux)); diff != "" {
		t.Errorf("Generate() mismatch (-want +got):\n%s", diff)
	}
}

func TestGenerateDarwin(t *testing.T) {
	got := generate(t, returnTwoPlusThree(), config.Darwin)
	if !containsInOrder(got, []string{".globl _main", "_main:", "pushq %rbp"}) {
		t.Errorf("missing Mach-O symbol names:\n%s", strings.Join(got, "\n"))
	}
	for _, l := range got {
		if strings.Contains(l, "GNU-stack") {
			t.Errorf("Mach-O output carries a GNU-stack note")
		}
	}
}

func TestCallPassesStackArguments(t *testing.T) {
	symbols := symtab.New()
	params := make([]ast.Type, 7)
	args := make([]ir.Value, 7)
	for i := range params {
		params[i] = ast.Long{}
		args[i] = long(int64(i + 1))
	}
	defineFunc(symbols, "f", ast.FunType{Params: params, Ret: ast.Long{}}, false)
	defineFunc(symbols, "main", ast.FunType{Ret: ast.Long{}}, true)
	symbols.AddLocal("tmp.0", ast.Long{})
	prog := &ir.Program{Symbols: symbols, Funcs: []*ir.Func{{
		Name: "main", Global: true,
		Body: []*ir.Instruction{ir.Call("f", args, v("tmp.0")), ir.Ret(v("tmp.0"))},
	}}}

	want := []string{
		"subq $8, %rsp",
		"movq $1, %rdi",
		"movq $2, %rsi",
		"movq $3, %rdx",
		"movq $4, %rcx",
		"movq $5, %r8",
		"movq $6, %r9",
		"pushq $7",
		"call f@PLT",
		"addq $16, %rsp",
		"movq %rax, -8(%rbp)",
	}
	if got := generate(t, prog, config.Linux); !containsInOrder(got, want) {
		t.Errorf("call sequence not found in:\n%s", strings.Join(got, "\n"))
	}
	if got := generate(t, prog, config.Darwin); !containsInOrder(got, []string{"call _f"}) {
		t.Errorf("Darwin call not found in:\n%s", strings.Join(got, "\n"))
	}
}

func TestDoubleConstantsAndComparisons(t *testing.T) {
	symbols := symtab.New()
	defineFunc(symbols, "eq", ast.FunType{Params: []ast.Type{ast.Double{}}, Ret: ast.Int{}}, true)
	symbols.AddLocal("x.1", ast.Double{})
	symbols.AddLocal("tmp.2", ast.Int{})
	half := ir.Const{Value: ast.ConstDouble{V: 2.5}}
	prog := &ir.Program{Symbols: symbols, Funcs: []*ir.Func{{
		Name: "eq", Global: true, Params: []string{"x.1"},
		Body: []*ir.Instruction{
			ir.Binary(ir.OpCEq, v("x.1"), half, v("tmp.2")),
			ir.Ret(v("tmp.2")),
		},
	}}}

	want := []string{
		"movsd %xmm0, -8(%rbp)",
		"movsd -8(%rbp), %xmm15",
		"comisd .Ldouble..0(%rip), %xmm15",
		"movl $0, -12(%rbp)",
		"jp .Lnan..1",
		"sete -12(%rbp)",
		".Lnan..1:",
		".section .rodata",
		".align 8",
		".Ldouble..0:",
		".double 2.5",
	}
	if got := generate(t, prog, config.Linux); !containsInOrder(got, want) {
		t.Errorf("NaN-aware comparison not found in:\n%s", strings.Join(got, "\n"))
	}
}

func TestStructReturnInRegisters(t *testing.T) {
	symbols := symtab.New()
	pair := addStruct(symbols, "pair", []string{"a", "b"}, []ast.Type{ast.Long{}, ast.Double{}})
	defineFunc(symbols, "get", ast.FunType{Ret: pair}, true)
	symbols.AddLocal("p.1", pair)
	prog := &ir.Program{Symbols: symbols, Funcs: []*ir.Func{{
		Name: "get", Global: true,
		Body: []*ir.Instruction{ir.Ret(v("p.1"))},
	}}}
	want := []string{"movq -16(%rbp), %rax", "movsd -8(%rbp), %xmm0", "ret"}
	if got := generate(t, prog, config.Linux); !containsInOrder(got, want) {
		t.Errorf("struct return not found in:\n%s", strings.Join(got, "\n"))
	}
}

func TestStaticData(t *testing.T) {
	symbols := symtab.New()
	prog := &ir.Program{Symbols: symbols, Globals: []*ir.Data{
		{Name: "x", Global: true, Type: ast.Int{}, Align: 4, Items: []symtab.StaticInit{symtab.ConstInit{Value: ast.ConstInt{V: 3}}}},
		{Name: "y.2", Type: ast.Long{}, Align: 8, Items: []symtab.StaticInit{symtab.ZeroInit{N: 8}}},
		{Name: "string.3", ReadOnly: true, Type: ast.Array{Elem: ast.Char{}, Size: 4}, Align: 1,
			Items: []symtab.StaticInit{symtab.StringInit{Value: "hi\n", NullTerminated: true}}},
		{Name: "p", Global: true, Type: ast.Pointer{Ref: ast.Char{}}, Align: 8, Items: []symtab.StaticInit{symtab.PointerInit{Name: "string.3"}}},
	}}

	want := []string{
		".globl x", ".data", ".align 4", "x:", ".long 3",
		".bss", ".align 8", "y.2:", ".zero 8",
		".section .rodata", ".align 1", "string.3:", `.asciz "hi\012"`,
		".globl p", ".data", ".align 8", "p:", ".quad string.3",
	}
	if got := generate(t, prog, config.Linux); !containsInOrder(got, want) {
		t.Errorf("static data not found in:\n%s", strings.Join(got, "\n"))
	}

	darwin := []string{".globl _x", ".balign 4", "_x:", ".cstring", "_string.3:", ".quad _string.3"}
	if got := generate(t, prog, config.Darwin); !containsInOrder(got, darwin) {
		t.Errorf("Mach-O static data not found in:\n%s", strings.Join(got, "\n"))
	}
}

func TestUnknownCallTargetFails(t *testing.T) {
	symbols := symtab.New()
	defineFunc(symbols, "main", ast.FunType{Ret: ast.Int{}}, true)
	prog := &ir.Program{Symbols: symbols, Funcs: []*ir.Func{{
		Name: "main", Global: true,
		Body: []*ir.Instruction{ir.Call("missing", nil, nil), ir.Ret(i32(0))},
	}}}
	if _, err := NewBackend().Generate(prog, config.NewConfig()); err == nil {
		t.Fatal("Generate() succeeded for a call of an undeclared function")
	}
}
