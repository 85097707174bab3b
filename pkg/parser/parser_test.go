package parser

import (
	"errors"
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/lexer"
	"github.com/xplshn/xcc/pkg/util"
)

func parse(t *testing.T, src string) *ast.Program {
	t.Helper()
	toks, err := lexer.Tokenize([]byte(src), intern.NewPool())
	if err != nil {
		t.Fatalf("Tokenize(%q) error: %v", src, err)
	}
	prog, err := Parse(toks)
	if err != nil {
		t.Fatalf("Parse(%q) error: %v", src, err)
	}
	return prog
}

func TestDeclaratorTypes(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Type
	}{
		{"int x;", ast.Int{}},
		{"unsigned long x;", ast.ULong{}},
		{"long unsigned int x;", ast.ULong{}},
		{"signed char x;", ast.SChar{}},
		{"char x;", ast.Char{}},
		{"int *arr[3];", ast.Array{Elem: ast.Pointer{Ref: ast.Int{}}, Size: 3}},
		{"int (*arr)[3];", ast.Pointer{Ref: ast.Array{Elem: ast.Int{}, Size: 3}}},
		{"double m[2][3];", ast.Array{Elem: ast.Array{Elem: ast.Double{}, Size: 3}, Size: 2}},
		{"int a[2 * 3 + 1];", ast.Array{Elem: ast.Int{}, Size: 7}},
		{"struct s *p;", ast.Pointer{Ref: ast.Struct{Tag: "s"}}},
		{"union u x;", ast.Struct{Tag: "u", Union: true}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := parse(t, tt.src)
			vd, ok := prog.Decls[len(prog.Decls)-1].(*ast.VarDecl)
			if !ok {
				t.Fatalf("got %T, want *ast.VarDecl", prog.Decls[0])
			}
			if !ast.Equal(vd.Type, tt.want) {
				t.Errorf("type = %s, want %s", vd.Type, tt.want)
			}
		})
	}
}

func TestFunctionDeclarator(t *testing.T) {
	prog := parse(t, "long f(int a, char *b[4]);")
	fd := prog.Decls[0].(*ast.FuncDecl)
	want := ast.FunType{
		Params: []ast.Type{ast.Int{}, ast.Array{Elem: ast.Pointer{Ref: ast.Char{}}, Size: 4}},
		Ret:    ast.Long{},
	}
	if !ast.Equal(fd.Type, want) {
		t.Errorf("type = %s, want %s", fd.Type, want)
	}
	if diff := cmp.Diff([]string{"a", "b"}, fd.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if fd.Body != nil {
		t.Errorf("declaration has a body")
	}
}

func TestUnnamedParameters(t *testing.T) {
	prog := parse(t, "int putchar(int); long g(char *, double [3]);")
	g := prog.Decls[1].(*ast.FuncDecl)
	want := ast.FunType{
		Params: []ast.Type{ast.Pointer{Ref: ast.Char{}}, ast.Array{Elem: ast.Double{}, Size: 3}},
		Ret:    ast.Long{},
	}
	if !ast.Equal(g.Type, want) {
		t.Errorf("type = %s, want %s", g.Type, want)
	}
	if diff := cmp.Diff([]string{"", ""}, g.Params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
}

func TestMultipleDeclarators(t *testing.T) {
	prog := parse(t, "static int a = 1, *b, c[2];")
	if len(prog.Decls) != 3 {
		t.Fatalf("got %d declarations, want 3", len(prog.Decls))
	}
	for _, d := range prog.Decls {
		if vd := d.(*ast.VarDecl); vd.Storage != ast.Static {
			t.Errorf("%s: storage = %v, want static", vd.Name, vd.Storage)
		}
	}
}

func TestStructDefinitions(t *testing.T) {
	prog := parse(t, "struct outer { struct inner { int x; } in; struct { char c; } anon; } v;")
	var tags []string
	for _, d := range prog.Decls {
		if sd, ok := d.(*ast.StructDecl); ok {
			tags = append(tags, sd.Tag)
		}
	}
	if diff := cmp.Diff([]string{"inner", "anon.0", "outer"}, tags); diff != "" {
		t.Errorf("struct order mismatch (-want +got):\n%s", diff)
	}
	if _, ok := prog.Decls[len(prog.Decls)-1].(*ast.VarDecl); !ok {
		t.Errorf("last declaration is %T, want *ast.VarDecl", prog.Decls[len(prog.Decls)-1])
	}

	fwd := parse(t, "struct s;").Decls[0].(*ast.StructDecl)
	if fwd.Members != nil {
		t.Errorf("forward declaration has members %v", fwd.Members)
	}
}

func TestPrecedence(t *testing.T) {
	prog := parse(t, "int f(void) { return a = b ? c : d || e && f | g ^ h & i == j < k << l + m * n; }")
	ret := prog.Decls[0].(*ast.FuncDecl).Body.Items[0].(*ast.Return)

	asg, ok := ret.Expr.(*ast.Assignment)
	if !ok {
		t.Fatalf("top node is %T, want *ast.Assignment", ret.Expr)
	}
	cond := asg.Right.(*ast.Conditional)
	e := cond.Else
	for _, op := range []ast.BinaryOp{ast.Or, ast.And, ast.BitOr, ast.BitXor, ast.BitAnd,
		ast.EqualTo, ast.LessThan, ast.ShiftLeft, ast.Add, ast.Multiply} {
		b, ok := e.(*ast.Binary)
		if !ok || b.Op != op {
			t.Fatalf("got %#v, want binary %s", e, op)
		}
		e = b.Right
	}
}

func TestAssociativity(t *testing.T) {
	prog := parse(t, "int f(void) { a = b = c; x - y - z; }")
	items := prog.Decls[0].(*ast.FuncDecl).Body.Items

	asg := items[0].(*ast.ExprStmt).Expr.(*ast.Assignment)
	if _, ok := asg.Right.(*ast.Assignment); !ok {
		t.Errorf("assignment is not right associative")
	}
	sub := items[1].(*ast.ExprStmt).Expr.(*ast.Binary)
	if _, ok := sub.Left.(*ast.Binary); !ok {
		t.Errorf("subtraction is not left associative")
	}
}

func TestDanglingElse(t *testing.T) {
	prog := parse(t, "int f(void) { if (a) if (b) return 1; else return 2; }")
	outer := prog.Decls[0].(*ast.FuncDecl).Body.Items[0].(*ast.If)
	if outer.Else != nil {
		t.Fatalf("else attached to the outer if")
	}
	if inner := outer.Then.(*ast.If); inner.Else == nil {
		t.Errorf("else not attached to the inner if")
	}
}

func TestCastsAndSizeof(t *testing.T) {
	prog := parse(t, "int f(void) { (long)(unsigned char *)p; sizeof(int[3]); sizeof x; -(double)1; }")
	items := prog.Decls[0].(*ast.FuncDecl).Body.Items

	cast := items[0].(*ast.ExprStmt).Expr.(*ast.Cast)
	if !ast.Equal(cast.Target, ast.Long{}) {
		t.Errorf("outer cast to %s", cast.Target)
	}
	if inner := cast.Expr.(*ast.Cast); !ast.Equal(inner.Target, ast.Pointer{Ref: ast.UChar{}}) {
		t.Errorf("inner cast to %s", inner.Target)
	}
	st := items[1].(*ast.ExprStmt).Expr.(*ast.SizeOfType)
	if !ast.Equal(st.Type, ast.Array{Elem: ast.Int{}, Size: 3}) {
		t.Errorf("sizeof type %s", st.Type)
	}
	if _, ok := items[2].(*ast.ExprStmt).Expr.(*ast.SizeOfExpr); !ok {
		t.Errorf("sizeof x is %T", items[2].(*ast.ExprStmt).Expr)
	}
	if _, ok := items[3].(*ast.ExprStmt).Expr.(*ast.Unary).Expr.(*ast.Cast); !ok {
		t.Errorf("negation does not wrap the cast")
	}
}

func TestConstantTyping(t *testing.T) {
	tests := []struct {
		src  string
		want ast.Const
	}{
		{"2147483647", ast.ConstInt{V: 2147483647}},
		{"2147483648", ast.ConstLong{V: 2147483648}},
		{"5l", ast.ConstLong{V: 5}},
		{"5u", ast.ConstUInt{V: 5}},
		{"4294967296u", ast.ConstULong{V: 4294967296}},
		{"5ul", ast.ConstULong{V: 5}},
		{"'a'", ast.ConstInt{V: 97}},
		{"1.5", ast.ConstDouble{V: 1.5}},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			prog := parse(t, "int x = "+tt.src+";")
			got := prog.Decls[0].(*ast.VarDecl).Init.(*ast.SingleInit).Expr.(*ast.Constant).Value
			if got != tt.want {
				t.Errorf("constant = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestStatements(t *testing.T) {
	src := `int f(int n) {
		for (int i = 0; i < n; i = i + 1) { continue; }
		for (;;) break;
		do n = n - 1; while (n);
		switch (n) { case 1: return 1; default: ; }
	top:
		goto top;
	}`
	items := parse(t, src).Decls[0].(*ast.FuncDecl).Body.Items
	wantTypes := []string{"*ast.For", "*ast.For", "*ast.DoWhile", "*ast.Switch", "*ast.Labeled"}
	var got []string
	for _, it := range items {
		got = append(got, typeName(it))
	}
	if diff := cmp.Diff(wantTypes, got); diff != "" {
		t.Errorf("statement kinds mismatch (-want +got):\n%s", diff)
	}
	if _, ok := items[0].(*ast.For).Init.(*ast.InitDecl); !ok {
		t.Errorf("for init is not a declaration")
	}
	empty := items[1].(*ast.For)
	if empty.Cond != nil || empty.Post != nil || empty.Init.(*ast.InitExpr).Expr != nil {
		t.Errorf("empty for header parsed as %#v", empty)
	}
}

func typeName(v any) string {
	switch v.(type) {
	case *ast.For:
		return "*ast.For"
	case *ast.DoWhile:
		return "*ast.DoWhile"
	case *ast.Switch:
		return "*ast.Switch"
	case *ast.Labeled:
		return "*ast.Labeled"
	}
	return "other"
}

func TestNodeIDsAreUnique(t *testing.T) {
	prog := parse(t, "int f(int a) { return a * (a + 1) - f(a - 1) + sizeof a; }")
	ret := prog.Decls[0].(*ast.FuncDecl).Body.Items[0].(*ast.Return)
	seen := map[ast.NodeID]bool{}
	var walk func(e ast.Expr)
	walk = func(e ast.Expr) {
		if seen[e.NodeID()] {
			t.Errorf("duplicate id %d", e.NodeID())
		}
		seen[e.NodeID()] = true
		if e.NodeID() >= prog.NextID {
			t.Errorf("id %d not below NextID %d", e.NodeID(), prog.NextID)
		}
		switch e := e.(type) {
		case *ast.Binary:
			walk(e.Left)
			walk(e.Right)
		case *ast.FunctionCall:
			for _, a := range e.Args {
				walk(a)
			}
		case *ast.SizeOfExpr:
			walk(e.Expr)
		}
	}
	walk(ret.Expr)
}

func TestParseIsDeterministic(t *testing.T) {
	src := "struct p { int x; }; int g(struct p *q) { return q->x + 2; }"
	if diff := cmp.Diff(parse(t, src), parse(t, src)); diff != "" {
		t.Errorf("two parses differ (-first +second):\n%s", diff)
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		src  string
		want string
	}{
		{"int main(void) { return 0 }", "expected ';', but found '}'"},
		{"int main(void) { return; ", "expected '}', but found end of file"},
		{"int x[0];", "array size must be positive"},
		{"int x[y];", "array size must be an integer constant"},
		{"int long char x;", "invalid combination"},
		{"signed unsigned x;", "both 'signed' and 'unsigned'"},
		{"int int x;", "duplicate type specifier"},
		{"int;", "does not declare anything"},
		{"int f(void) { return 1 + ; }", "expected expression, but found ';'"},
		{"int (*fp)(void);", "function pointers"},
		{"int f(void) { lbl: int x; }", "a label can only be part of a statement"},
		{"int f(void) { for (static int i = 0;;); }", "storage class static"},
		{"struct s {};", "must declare at least one member"},
	}
	for _, tt := range tests {
		t.Run(tt.src, func(t *testing.T) {
			toks, err := lexer.Tokenize([]byte(tt.src), intern.NewPool())
			if err != nil {
				t.Fatalf("Tokenize error: %v", err)
			}
			_, err = Parse(toks)
			if err == nil {
				t.Fatalf("Parse(%q) succeeded, want error containing %q", tt.src, tt.want)
			}
			var uerr *util.Error
			if !errors.As(err, &uerr) || uerr.Kind != util.ParseError {
				t.Fatalf("error %v is not a parse error", err)
			}
			if !strings.Contains(err.Error(), tt.want) {
				t.Errorf("error = %q, want it to contain %q", err, tt.want)
			}
		})
	}
}
