package resolve

import "github.com/xplshn/xcc/pkg/ast"

func (r *resolver) expr(e ast.Expr, sc *scope) ast.Expr {
	switch e := e.(type) {
	case *ast.Constant, *ast.String:
		return e
	case *ast.Var:
		entry, ok := sc.idents[e.Name]
		if !ok {
			r.errorf(e.Span, "use of undeclared identifier '%s'", e.Name)
		}
		return &ast.Var{Meta: e.Meta, Name: entry.name}
	case *ast.FunctionCall:
		entry, ok := sc.idents[e.Name]
		if !ok {
			r.errorf(e.Span, "call to undeclared function '%s'", e.Name)
		}
		out := &ast.FunctionCall{Meta: e.Meta, Name: entry.name, Args: make([]ast.Expr, len(e.Args))}
		for i, a := range e.Args {
			out.Args[i] = r.expr(a, sc)
		}
		return out
	case *ast.Unary:
		return &ast.Unary{Meta: e.Meta, Op: e.Op, Expr: r.expr(e.Expr, sc)}
	case *ast.Postfix:
		return &ast.Postfix{Meta: e.Meta, Op: e.Op, Expr: r.expr(e.Expr, sc)}
	case *ast.Binary:
		return &ast.Binary{Meta: e.Meta, Op: e.Op, Left: r.expr(e.Left, sc), Right: r.expr(e.Right, sc)}
	case *ast.Assignment:
		return &ast.Assignment{Meta: e.Meta, Compound: e.Compound, Op: e.Op,
			Left: r.expr(e.Left, sc), Right: r.expr(e.Right, sc)}
	case *ast.Conditional:
		return &ast.Conditional{Meta: e.Meta,
			Cond: r.expr(e.Cond, sc), Then: r.expr(e.Then, sc), Else: r.expr(e.Else, sc)}
	case *ast.Cast:
		return &ast.Cast{Meta: e.Meta, Target: r.typ(e.Target, sc, e.Span), Expr: r.expr(e.Expr, sc)}
	case *ast.AddressOf:
		return &ast.AddressOf{Meta: e.Meta, Expr: r.expr(e.Expr, sc)}
	case *ast.Dereference:
		return &ast.Dereference{Meta: e.Meta, Expr: r.expr(e.Expr, sc)}
	case *ast.Subscript:
		return &ast.Subscript{Meta: e.Meta, Left: r.expr(e.Left, sc), Index: r.expr(e.Index, sc)}
	case *ast.SizeOfType:
		return &ast.SizeOfType{Meta: e.Meta, Type: r.typ(e.Type, sc, e.Span)}
	case *ast.SizeOfExpr:
		return &ast.SizeOfExpr{Meta: e.Meta, Expr: r.expr(e.Expr, sc)}
	case *ast.Member:
		return &ast.Member{Meta: e.Meta, Expr: r.expr(e.Expr, sc), Field: e.Field}
	case *ast.Arrow:
		return &ast.Arrow{Meta: e.Meta, Expr: r.expr(e.Expr, sc), Field: e.Field}
	}
	panic("resolve: unexpected expression")
}
