package symtab

import (
	"math"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/intern"
)

func TestAddReplaces(t *testing.T) {
	tab := New()
	tab.Add("x", ast.Int{}, StaticAttr{Init: InitialValue{Kind: Tentative}})
	tab.Add("y", ast.Long{}, LocalAttr{})
	tab.Add("x", ast.Int{}, StaticAttr{Init: InitialValue{Kind: Initialized}, Global: true})

	var names []string
	for _, e := range tab.Entries() {
		names = append(names, e.Name)
	}
	if diff := cmp.Diff([]string{"x", "y"}, names); diff != "" {
		t.Errorf("entry order mismatch (-want +got):\n%s", diff)
	}
	attr := tab.Get("x").Attrs.(StaticAttr)
	if attr.Init.Kind != Initialized || !attr.Global {
		t.Errorf("x attrs = %+v, want replaced entry", attr)
	}
	if !tab.IsStatic("x") || tab.IsStatic("y") || tab.IsStatic("missing") {
		t.Errorf("IsStatic mismatch")
	}
	if diff := cmp.Diff([]string{"x"}, tab.Statics()); diff != "" {
		t.Errorf("statics mismatch (-want +got):\n%s", diff)
	}
}

func TestAddString(t *testing.T) {
	tab := New()
	pool := intern.NewPool()
	a := tab.AddString(pool, "hi")
	b := tab.AddString(pool, "hi")
	if a == b {
		t.Fatalf("string constants share the name %q", a)
	}
	e := tab.Get(a)
	if !ast.Equal(e.Type, ast.Array{Elem: ast.Char{}, Size: 3}) {
		t.Errorf("type = %s, want char[3]", e.Type)
	}
	if !tab.IsStatic(a) {
		t.Errorf("string constant is not static")
	}
}

func TestLayout(t *testing.T) {
	tests := []struct {
		name        string
		union       bool
		types       []ast.Type
		wantOffsets []int64
		wantSize    int64
		wantAlign   int64
	}{
		{"padding", false, []ast.Type{ast.Char{}, ast.Int{}, ast.Char{}}, []int64{0, 4, 8}, 12, 4},
		{"long", false, []ast.Type{ast.Int{}, ast.Long{}}, []int64{0, 8}, 16, 8},
		{"chars", false, []ast.Type{ast.Char{}, ast.Array{Elem: ast.Char{}, Size: 2}}, []int64{0, 1}, 3, 1},
		{"union", true, []ast.Type{ast.Char{}, ast.Double{}, ast.Array{Elem: ast.Char{}, Size: 9}}, []int64{0, 0, 0}, 16, 8},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tab := New()
			names := make([]string, len(tt.types))
			for i := range names {
				names[i] = string(rune('a' + i))
			}
			def := tab.Layout("s", tt.union, names, tt.types)
			var offsets []int64
			for _, m := range def.Members {
				offsets = append(offsets, m.Offset)
			}
			if diff := cmp.Diff(tt.wantOffsets, offsets); diff != "" {
				t.Errorf("offsets mismatch (-want +got):\n%s", diff)
			}
			if def.Size != tt.wantSize || def.Alignment != tt.wantAlign {
				t.Errorf("size/align = %d/%d, want %d/%d", def.Size, def.Alignment, tt.wantSize, tt.wantAlign)
			}
		})
	}
}

func TestNestedSizes(t *testing.T) {
	tab := New()
	tab.AddStruct(tab.Layout("inner", false, []string{"c", "d"}, []ast.Type{ast.Char{}, ast.Double{}}))
	inner := ast.Struct{Tag: "inner"}
	outer := tab.Layout("outer", false, []string{"x", "in"}, []ast.Type{ast.Char{}, ast.Array{Elem: inner, Size: 2}})
	if m, _ := outer.Member("in"); m.Offset != 8 {
		t.Errorf("offset of in = %d, want 8", m.Offset)
	}
	if outer.Size != 40 {
		t.Errorf("size = %d, want 40", outer.Size)
	}
	if tab.IsComplete(ast.Struct{Tag: "missing"}) || !tab.IsComplete(inner) || tab.IsComplete(ast.Void{}) {
		t.Errorf("IsComplete mismatch")
	}
}

func TestIsZero(t *testing.T) {
	tests := []struct {
		name  string
		inits []StaticInit
		want  bool
	}{
		{"empty", nil, true},
		{"zeros", []StaticInit{ConstInit{ast.ConstInt{V: 0}}, ZeroInit{N: 4}}, true},
		{"positive zero", []StaticInit{ConstInit{ast.ConstDouble{V: 0}}}, true},
		{"negative zero", []StaticInit{ConstInit{ast.ConstDouble{V: math.Copysign(0, -1)}}}, false},
		{"nonzero", []StaticInit{ConstInit{ast.ConstLong{V: 1}}}, false},
		{"pointer", []StaticInit{PointerInit{Name: "x"}}, false},
	}
	for _, tt := range tests {
		if got := IsZero(tt.inits); got != tt.want {
			t.Errorf("%s: IsZero = %v, want %v", tt.name, got, tt.want)
		}
	}
}
