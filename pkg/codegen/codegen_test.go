package codegen

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/lexer"
	"github.com/xplshn/xcc/pkg/parser"
	"github.com/xplshn/xcc/pkg/resolve"
	"github.com/xplshn/xcc/pkg/symtab"
	"github.com/xplshn/xcc/pkg/typeChecker"
)

func lower(t *testing.T, src string) *ir.Program {
	t.Helper()
	cfg := config.NewConfig()
	pool := intern.NewPool()
	toks, err := lexer.Tokenize([]byte(src), pool)
	if err != nil {
		t.Fatalf("Tokenize: %v", err)
	}
	prog, err := parser.Parse(toks)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	prog, err = resolve.Resolve(prog, pool)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	symbols := symtab.New()
	typed, types, err := typeChecker.NewTypeChecker(cfg, symbols, pool).Check(prog)
	if err != nil {
		t.Fatalf("Check: %v", err)
	}
	out, err := NewContext(cfg, symbols, pool, types).GenerateIR(typed)
	if err != nil {
		t.Fatalf("GenerateIR: %v", err)
	}
	return out
}

func ops(f *ir.Func) []ir.Op {
	out := make([]ir.Op, len(f.Body))
	for i, instr := range f.Body {
		out[i] = instr.Op
	}
	return out
}

func TestImplicitReturn(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"int main(void) { int x = 1; }", "return 0"},
		{"long f(void) { }", "return 0L"},
		{"double d(void) { }", "return 0"},
		{"void v(void) { }", "return"},
	}
	for _, tt := range tests {
		prog := lower(t, tt.src)
		body := prog.Funcs[0].Body
		if got := body[len(body)-1].String(); got != tt.want {
			t.Errorf("%s: last instruction %q, want %q", tt.src, got, tt.want)
		}
	}
}

func TestExplicitReturnIsNotDuplicated(t *testing.T) {
	prog := lower(t, "int main(void) { return 3; }")
	if diff := cmp.Diff([]ir.Op{ir.OpRet}, ops(prog.Funcs[0])); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestShortCircuit(t *testing.T) {
	prog := lower(t, "int main(void) { int a = 2; return a && 3; }")
	want := []ir.Op{
		ir.OpCopy,
		ir.OpJz, ir.OpJz, ir.OpCopy, ir.OpJmp,
		ir.OpLabel, ir.OpCopy, ir.OpLabel,
		ir.OpRet,
	}
	if diff := cmp.Diff(want, ops(prog.Funcs[0])); diff != "" {
		t.Errorf("ops mismatch (-want +got):\n%s", diff)
	}
}

func TestLoopLabels(t *testing.T) {
	prog := lower(t, `int main(void) {
	int i = 0;
	while (i < 10) {
		if (i == 5) break;
		i = i + 1;
		continue;
	}
	return i;
}`)
	var labels, jumps []string
	for _, instr := range prog.Funcs[0].Body {
		switch instr.Op {
		case ir.OpLabel:
			labels = append(labels, instr.Label)
		case ir.OpJmp, ir.OpJz, ir.OpJnz:
			jumps = append(jumps, instr.Label)
		}
	}
	defined := make(map[string]bool)
	for _, l := range labels {
		if defined[l] {
			t.Errorf("label %s defined twice", l)
		}
		defined[l] = true
	}
	for _, j := range jumps {
		if !defined[j] {
			t.Errorf("jump to undefined label %s", j)
		}
	}
	var loop bool
	for _, l := range labels {
		if strings.HasPrefix(l, "break_") {
			loop = defined["continue_"+strings.TrimPrefix(l, "break_")]
		}
	}
	if !loop {
		t.Errorf("no matching break/continue labels in %v", labels)
	}
}

func TestSwitchComparesEachCase(t *testing.T) {
	prog := lower(t, `int main(void) {
	int x = 2;
	switch (x) {
	case 1: return 10;
	case 2: return 20;
	default: return 30;
	}
}`)
	subs := 0
	for _, instr := range prog.Funcs[0].Body {
		if instr.Op == ir.OpSub {
			subs++
		}
	}
	if subs != 2 {
		t.Errorf("switch emitted %d comparisons, want 2\n%s", subs, prog)
	}
}

func TestStatics(t *testing.T) {
	prog := lower(t, `int g = 5;
static long s;
long big[4];
int main(void) { char *p = "hi"; return g; }`)
	got := make(map[string][]symtab.StaticInit)
	var readOnly []string
	for _, d := range prog.Globals {
		got[d.Name] = d.Items
		if d.ReadOnly {
			readOnly = append(readOnly, d.Name)
		}
	}
	if diff := cmp.Diff([]symtab.StaticInit{symtab.ConstInit{Value: ast.ConstInt{V: 5}}}, got["g"]); diff != "" {
		t.Errorf("g mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]symtab.StaticInit{symtab.ZeroInit{N: 8}}, got["s"]); diff != "" {
		t.Errorf("s mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]symtab.StaticInit{symtab.ZeroInit{N: 32}}, got["big"]); diff != "" {
		t.Errorf("big mismatch (-want +got):\n%s", diff)
	}
	if len(readOnly) != 1 {
		t.Errorf("read-only objects %v, want one string literal", readOnly)
	}
	for _, d := range prog.Globals {
		if d.Name == "big" && d.Align != 16 {
			t.Errorf("big aligned to %d, want 16", d.Align)
		}
	}
}

func TestArrayInitializerZeroFills(t *testing.T) {
	prog := lower(t, "int main(void) { int a[4] = {1, 2}; return a[3]; }")
	var offsets []int64
	for _, instr := range prog.Funcs[0].Body {
		if instr.Op == ir.OpCopyToOffset {
			offsets = append(offsets, instr.Offset)
		}
	}
	if len(offsets) < 3 || offsets[0] != 0 || offsets[1] != 4 {
		t.Fatalf("CopyToOffset offsets %v", offsets)
	}
	if last := offsets[len(offsets)-1]; last >= 16 {
		t.Errorf("write at offset %d past the end of a 16-byte array", last)
	}
}

func TestQBEIL(t *testing.T) {
	prog := lower(t, `static int counter;
int add(int a, int b) { return a + b; }
int main(void) { counter = add(1, 2); return counter; }`)
	il, err := GenerateQBEIL(prog, config.NewConfig())
	if err != nil {
		t.Fatal(err)
	}
	for _, want := range []string{"export function w $add(", "export function w $main()", "call $add(", "ret"} {
		if !strings.Contains(il, want) {
			t.Errorf("IL lacks %q:\n%s", want, il)
		}
	}
	if strings.Contains(il, "export data $counter") {
		t.Errorf("static object exported:\n%s", il)
	}
}
