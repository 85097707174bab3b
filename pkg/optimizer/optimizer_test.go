package optimizer

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

func table(vars map[string]ast.Type) *symtab.Table {
	t := symtab.New()
	for name, typ := range vars {
		t.AddLocal(name, typ)
	}
	return t
}

func render(body []*ir.Instruction) []string {
	out := make([]string, len(body))
	for i, instr := range body {
		out[i] = instr.String()
	}
	return out
}

func v(name string) ir.Value { return ir.Var{Name: name} }

func i32(n int32) ir.Value { return ir.Const{Value: ast.ConstInt{V: n}} }

func onlyFeature(f config.Feature) *config.Config {
	cfg := config.NewConfig()
	cfg.SetFeature(f, true)
	return cfg
}

func allPasses() *config.Config {
	cfg := config.NewConfig()
	cfg.SetOptimize(true)
	return cfg
}

func TestFoldConstants(t *testing.T) {
	symbols := table(map[string]ast.Type{
		"a": ast.Int{}, "u": ast.UInt{}, "l": ast.Long{}, "d": ast.Double{}, "c": ast.Char{},
	})
	tests := []struct {
		name string
		in   *ir.Instruction
		want []string
	}{
		{"add", ir.Binary(ir.OpAdd, i32(1), i32(2), v("a")), []string{"a = 3"}},
		{"unsigned wrap", ir.Binary(ir.OpAdd, ir.Const{Value: ast.ConstUInt{V: 4294967295}}, ir.Const{Value: ast.ConstUInt{V: 1}}, v("u")), []string{"u = 0U"}},
		{"signed wrap", ir.Binary(ir.OpMul, i32(2147483647), i32(2), v("a")), []string{"a = -2"}},
		{"compare", ir.Binary(ir.OpCLt, i32(-1), i32(0), v("a")), []string{"a = 1"}},
		{"unsigned compare", ir.Binary(ir.OpCLt, ir.Const{Value: ast.ConstUInt{V: 4294967295}}, ir.Const{Value: ast.ConstUInt{V: 0}}, v("a")), []string{"a = 0"}},
		{"negate", ir.Unary(ir.OpNeg, i32(5), v("a")), []string{"a = -5"}},
		{"not", ir.Unary(ir.OpNot, ir.Const{Value: ast.ConstDouble{V: 0}}, v("a")), []string{"a = 1"}},
		{"sign extend", ir.Unary(ir.OpSignExt, i32(-1), v("l")), []string{"l = -1L"}},
		{"truncate", ir.Unary(ir.OpTrunc, i32(300), v("c")), []string{"c = 44"}},
		{"int to double", ir.Unary(ir.OpSIToD, i32(3), v("d")), []string{"d = 3"}},
		{"double to int", ir.Unary(ir.OpDToSI, ir.Const{Value: ast.ConstDouble{V: -2.7}}, v("a")), []string{"a = -2"}},
		{"retag copy", ir.Copy(i32(-1), v("u")), []string{"u = 4294967295U"}},
		{"division by zero", ir.Binary(ir.OpDiv, i32(7), i32(0), v("a")), []string{"a = 7 / 0"}},
		{"remainder by zero", ir.Binary(ir.OpRem, ir.Const{Value: ast.ConstLong{V: 7}}, ir.Const{Value: ast.ConstLong{V: 0}}, v("l")), []string{"l = 7L % 0L"}},
		{"jump if zero taken", ir.Jz(i32(0), "L"), []string{"jump L"}},
		{"jump if zero not taken", ir.Jz(i32(1), "L"), []string{}},
		{"jump if not zero taken", ir.Jnz(i32(2), "L"), []string{"jump L"}},
		{"variable operand", ir.Binary(ir.OpAdd, v("a"), i32(1), v("a")), []string{"a = a + 1"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, _ := FoldConstants([]*ir.Instruction{tt.in}, symbols)
			if diff := cmp.Diff(tt.want, render(got)); diff != "" {
				t.Errorf("FoldConstants mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestFoldConstantsSettles(t *testing.T) {
	symbols := table(map[string]ast.Type{
		"p": ast.Pointer{Ref: ast.Int{}}, "s": ast.SChar{}, "c": ast.Char{}, "u": ast.UChar{}, "d": ast.Double{},
	})
	tests := []struct {
		name string
		in   *ir.Instruction
		want string
	}{
		{"null pointer", ir.Copy(i32(0), v("p")), "p = 0UL"},
		{"signed char", ir.Copy(i32(3), v("s")), "s = 3"},
		{"char", ir.Copy(i32(3), v("c")), "c = 3"},
		{"unsigned char", ir.Copy(i32(250), v("u")), "u = 250"},
		{"double", ir.Copy(i32(2), v("d")), "d = 2"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body, changed := FoldConstants([]*ir.Instruction{tt.in}, symbols)
			if !changed {
				t.Fatal("first pass reported no change")
			}
			body, changed = FoldConstants(body, symbols)
			if changed {
				t.Errorf("second pass still changing: %v", render(body))
			}
			if diff := cmp.Diff([]string{tt.want}, render(body)); diff != "" {
				t.Errorf("FoldConstants mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestOptimizeNullPointer(t *testing.T) {
	symbols := table(map[string]ast.Type{"p": ast.Pointer{Ref: ast.Int{}}, "s": ast.SChar{}, "t": ast.Int{}})
	body := []*ir.Instruction{
		ir.Copy(i32(0), v("p")),
		ir.Copy(i32(3), v("s")),
		ir.Unary(ir.OpSignExt, v("s"), v("t")),
		ir.Jz(v("p"), "L"),
		ir.Ret(i32(1)),
		ir.NewLabel("L"),
		ir.Ret(v("t")),
	}
	got := render(OptimizeFunc(body, symbols, allPasses()))
	if diff := cmp.Diff([]string{"return 3"}, got); diff != "" {
		t.Errorf("OptimizeFunc mismatch (-want +got):\n%s", diff)
	}
}

func TestBuildGraph(t *testing.T) {
	body := []*ir.Instruction{
		ir.Copy(i32(0), v("i")),
		ir.NewLabel("top"),
		ir.Jz(v("i"), "end"),
		ir.Binary(ir.OpSub, v("i"), i32(1), v("i")),
		ir.Jmp("top"),
		ir.NewLabel("end"),
		ir.Ret(v("i")),
	}
	g := BuildGraph(body)
	if len(g.Blocks) != 4 {
		t.Fatalf("got %d blocks, want 4", len(g.Blocks))
	}
	wantSuccs := [][]int{{1}, {3, 2}, {1}, {ExitID}}
	for i, b := range g.Blocks {
		if diff := cmp.Diff(wantSuccs[i], b.Succs); diff != "" {
			t.Errorf("block %d successors (-want +got):\n%s", i, diff)
		}
	}
	if diff := cmp.Diff([]int{EntryID}, g.Blocks[0].Preds); diff != "" {
		t.Errorf("first block predecessors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]int{0, 2}, g.Blocks[1].Preds); diff != "" {
		t.Errorf("loop header predecessors (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff(render(body), render(g.Instructions())); diff != "" {
		t.Errorf("Instructions does not round-trip (-want +got):\n%s", diff)
	}
}

func TestEliminateUnreachable(t *testing.T) {
	symbols := table(map[string]ast.Type{"x": ast.Int{}})
	tests := []struct {
		name string
		in   []*ir.Instruction
		want []string
	}{
		{
			"code after return",
			[]*ir.Instruction{ir.Ret(i32(1)), ir.Copy(i32(2), v("x")), ir.Ret(v("x"))},
			[]string{"return 1"},
		},
		{
			"jump to next block",
			[]*ir.Instruction{ir.Copy(i32(2), v("x")), ir.Jmp("L"), ir.NewLabel("L"), ir.Ret(v("x"))},
			[]string{"x = 2", "return x"},
		},
		{
			"skipped block",
			[]*ir.Instruction{
				ir.Jmp("end"),
				ir.NewLabel("dead"),
				ir.Copy(i32(2), v("x")),
				ir.NewLabel("end"),
				ir.Ret(i32(0)),
			},
			[]string{"return 0"},
		},
		{
			"both branches live",
			[]*ir.Instruction{
				ir.Jz(v("x"), "else"),
				ir.Ret(i32(1)),
				ir.NewLabel("else"),
				ir.Ret(i32(2)),
			},
			[]string{"jump_if_zero x, else", "return 1", "else:", "return 2"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OptimizeFunc(tt.in, symbols, onlyFeature(config.FeatEliminateUnreachable))
			if diff := cmp.Diff(tt.want, render(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestPropagateCopies(t *testing.T) {
	symbols := table(map[string]ast.Type{"x": ast.Int{}, "y": ast.Int{}, "p": ast.Pointer{Ref: ast.Int{}}, "u": ast.UInt{}})
	symbols.Add("g", ast.Int{}, symtab.StaticAttr{Global: true})

	tests := []struct {
		name string
		in   []*ir.Instruction
		want []string
	}{
		{
			"straight line",
			[]*ir.Instruction{ir.Copy(i32(3), v("x")), ir.Copy(v("x"), v("y")), ir.Ret(v("y"))},
			[]string{"x = 3", "y = 3", "return 3"},
		},
		{
			"redefinition kills",
			[]*ir.Instruction{
				ir.Copy(i32(3), v("x")),
				ir.Copy(v("x"), v("y")),
				ir.Binary(ir.OpAdd, v("x"), i32(1), v("x")),
				ir.Ret(v("y")),
			},
			[]string{"x = 3", "y = 3", "x = 3 + 1", "return 3"},
		},
		{
			"call kills static",
			[]*ir.Instruction{ir.Copy(i32(1), v("g")), ir.Call("f", nil, nil), ir.Ret(v("g"))},
			[]string{"g = 1", "f()", "return g"},
		},
		{
			"store kills aliased",
			[]*ir.Instruction{
				ir.Unary(ir.OpAddr, v("x"), v("p")),
				ir.Copy(i32(1), v("x")),
				ir.Store(i32(2), v("p")),
				ir.Ret(v("x")),
			},
			[]string{"p = &x", "x = 1", "*p = 2", "return x"},
		},
		{
			"different types do not propagate",
			[]*ir.Instruction{ir.Copy(v("x"), v("u")), ir.Ret(v("u"))},
			[]string{"u = x", "return u"},
		},
		{
			"redundant copy back",
			[]*ir.Instruction{ir.Copy(v("x"), v("y")), ir.Copy(v("y"), v("x")), ir.Ret(v("x"))},
			[]string{"y = x", "return x"},
		},
		{
			"disagreeing paths",
			[]*ir.Instruction{
				ir.Jz(v("y"), "else"),
				ir.Copy(i32(1), v("x")),
				ir.Jmp("end"),
				ir.NewLabel("else"),
				ir.Copy(i32(2), v("x")),
				ir.NewLabel("end"),
				ir.Ret(v("x")),
			},
			[]string{"jump_if_zero y, else", "x = 1", "jump end", "else:", "x = 2", "end:", "return x"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OptimizeFunc(tt.in, symbols, onlyFeature(config.FeatPropagateCopies))
			if diff := cmp.Diff(tt.want, render(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestEliminateDeadStores(t *testing.T) {
	symbols := table(map[string]ast.Type{"x": ast.Int{}, "y": ast.Int{}, "p": ast.Pointer{Ref: ast.Int{}}, "r": ast.Int{}})
	symbols.Add("g", ast.Int{}, symtab.StaticAttr{Global: true})

	tests := []struct {
		name string
		in   []*ir.Instruction
		want []string
	}{
		{
			"unused write",
			[]*ir.Instruction{ir.Copy(i32(1), v("x")), ir.Ret(i32(0))},
			[]string{"return 0"},
		},
		{
			"overwritten before use",
			[]*ir.Instruction{ir.Copy(i32(1), v("x")), ir.Copy(i32(2), v("x")), ir.Ret(v("x"))},
			[]string{"x = 2", "return x"},
		},
		{
			"static stays",
			[]*ir.Instruction{ir.Copy(i32(1), v("g")), ir.Ret(i32(0))},
			[]string{"g = 1", "return 0"},
		},
		{
			"aliased stays",
			[]*ir.Instruction{ir.Unary(ir.OpAddr, v("x"), v("p")), ir.Store(i32(1), v("p")), ir.Copy(i32(3), v("x")), ir.Ret(i32(0))},
			[]string{"p = &x", "*p = 1", "x = 3", "return 0"},
		},
		{
			"call with dead result stays",
			[]*ir.Instruction{ir.Call("f", nil, v("r")), ir.Ret(i32(0))},
			[]string{"r = f()", "return 0"},
		},
		{
			"live around a loop",
			[]*ir.Instruction{
				ir.Copy(i32(10), v("x")),
				ir.NewLabel("top"),
				ir.Jz(v("x"), "end"),
				ir.Binary(ir.OpSub, v("x"), i32(1), v("x")),
				ir.Copy(i32(5), v("y")),
				ir.Jmp("top"),
				ir.NewLabel("end"),
				ir.Ret(i32(0)),
			},
			[]string{"x = 10", "top:", "jump_if_zero x, end", "x = x - 1", "jump top", "end:", "return 0"},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := OptimizeFunc(tt.in, symbols, onlyFeature(config.FeatEliminateDeadStores))
			if diff := cmp.Diff(tt.want, render(got)); diff != "" {
				t.Errorf("mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestAllPassesTogether(t *testing.T) {
	symbols := table(map[string]ast.Type{"x": ast.Int{}, "y": ast.Int{}, "t": ast.Int{}})
	body := []*ir.Instruction{
		ir.Copy(i32(4), v("x")),
		ir.Binary(ir.OpMul, v("x"), i32(2), v("t")),
		ir.Jz(v("t"), "zero"),
		ir.Copy(v("t"), v("y")),
		ir.Ret(v("y")),
		ir.NewLabel("zero"),
		ir.Ret(i32(-1)),
	}
	got := OptimizeFunc(body, symbols, allPasses())
	if diff := cmp.Diff([]string{"return 8"}, render(got)); diff != "" {
		t.Errorf("mismatch (-want +got):\n%s", diff)
	}
}

func TestOptimizationIsIdempotent(t *testing.T) {
	symbols := table(map[string]ast.Type{"i": ast.Int{}, "s": ast.Int{}, "t": ast.Int{}})
	body := []*ir.Instruction{
		ir.Copy(i32(0), v("i")),
		ir.Copy(i32(0), v("s")),
		ir.NewLabel("top"),
		ir.Binary(ir.OpCLt, v("i"), i32(10), v("t")),
		ir.Jz(v("t"), "end"),
		ir.Binary(ir.OpAdd, v("s"), v("i"), v("s")),
		ir.Binary(ir.OpAdd, v("i"), i32(1), v("i")),
		ir.Jmp("top"),
		ir.NewLabel("end"),
		ir.Ret(v("s")),
	}
	once := OptimizeFunc(body, symbols, allPasses())
	twice := OptimizeFunc(once, symbols, allPasses())
	if diff := cmp.Diff(render(once), render(twice)); diff != "" {
		t.Errorf("second run changed the body (-first +second):\n%s", diff)
	}
	if len(once) == 0 || once[len(once)-1].String() != "return s" {
		t.Errorf("loop result lost: %v", render(once))
	}
}

func TestOptimizeLeavesInputAlone(t *testing.T) {
	symbols := table(map[string]ast.Type{"x": ast.Int{}, "y": ast.Int{}})
	body := []*ir.Instruction{ir.Copy(i32(3), v("x")), ir.Copy(v("x"), v("y")), ir.Ret(v("y"))}
	before := render(body)
	OptimizeFunc(body, symbols, allPasses())
	if diff := cmp.Diff(before, render(body)); diff != "" {
		t.Errorf("input body was modified (-before +after):\n%s", diff)
	}
}
