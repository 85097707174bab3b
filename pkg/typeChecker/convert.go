package typeChecker

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/util"
)

// rank orders the integer types for the usual arithmetic conversions.
func rank(t ast.Type) int {
	switch t.(type) {
	case ast.Char, ast.SChar, ast.UChar:
		return 1
	case ast.Int, ast.UInt:
		return 2
	}
	return 3
}

// promote applies the integer promotions: character types become int.
func promote(t ast.Type) ast.Type {
	if ast.IsCharacter(t) {
		return ast.Int{}
	}
	return t
}

// commonType implements the usual arithmetic conversions.
func commonType(a, b ast.Type) ast.Type {
	a, b = promote(a), promote(b)
	if ast.Equal(a, b) {
		return a
	}
	if _, ok := a.(ast.Double); ok {
		return a
	}
	if _, ok := b.(ast.Double); ok {
		return b
	}
	switch {
	case rank(a) > rank(b):
		return a
	case rank(b) > rank(a):
		return b
	case ast.IsSigned(a):
		return b
	}
	return a
}

// convertTo wraps e in a Cast to t unless it already has that type.
func (tc *TypeChecker) convertTo(e ast.Expr, t ast.Type) ast.Expr {
	from := tc.typeOf(e)
	if ast.Equal(from, t) {
		return e
	}
	if c, ok := e.(*ast.Constant); ok && ast.IsInteger(from) && ast.IsInteger(t) {
		v := ast.Convert(c.Value, t)
		changed := ast.Int64(ast.Convert(v, from)) != ast.Int64(c.Value)
		if changed || ast.IsSigned(from) != ast.IsSigned(t) && ast.Int64(c.Value) < 0 {
			tc.warn(config.WarnOverflow, e.NodeSpan(), "implicit conversion from '%s' to '%s' changes value from %s to %s",
				from, t, c.Value, v)
		}
	}
	cast := &ast.Cast{Meta: tc.newMeta(e.NodeSpan()), Target: t, Expr: e}
	return tc.setType(cast, t)
}

// isNullPointerConstant reports whether e is an integer constant expression with
// value zero, or such an expression cast to void *.
func (tc *TypeChecker) isNullPointerConstant(e ast.Expr) bool {
	t := tc.typeOf(e)
	if c, ok := e.(*ast.Cast); ok && ast.IsVoidPointer(t) {
		return ast.IsInteger(tc.typeOf(c.Expr)) && tc.isNullPointerConstant(c.Expr)
	}
	if !ast.IsInteger(t) {
		return false
	}
	v, ok := ast.EvalInt(e)
	return ok && v == 0
}

// convertByAssignment converts e as if assigned to an object of type t.
func (tc *TypeChecker) convertByAssignment(e ast.Expr, t ast.Type, what string) ast.Expr {
	from := tc.typeOf(e)
	switch {
	case ast.Equal(from, t):
		return e
	case ast.IsArithmetic(from) && ast.IsArithmetic(t):
		return tc.convertTo(e, t)
	case ast.IsPointer(t) && tc.isNullPointerConstant(e):
		return tc.convertTo(e, t)
	case ast.IsVoidPointer(t) && ast.IsPointer(from), ast.IsPointer(t) && ast.IsVoidPointer(from):
		return tc.convertTo(e, t)
	}
	tc.errorf(util.ReasonIncompatible, e.NodeSpan(), "incompatible types in %s: '%s' to '%s'", what, from, t)
	return nil
}

// commonPointerType finds the type two pointer operands of a comparison or
// conditional convert to.
func (tc *TypeChecker) commonPointerType(a, b ast.Expr) ast.Type {
	ta, tb := tc.typeOf(a), tc.typeOf(b)
	switch {
	case ast.Equal(ta, tb):
		return ta
	case tc.isNullPointerConstant(a):
		return tb
	case tc.isNullPointerConstant(b):
		return ta
	case ast.IsVoidPointer(ta) && ast.IsPointer(tb), ast.IsVoidPointer(tb) && ast.IsPointer(ta):
		return ast.Pointer{Ref: ast.Void{}}
	}
	tc.errorf(util.ReasonIncompatible, a.NodeSpan().Join(b.NodeSpan()),
		"incompatible pointer types '%s' and '%s'", ta, tb)
	return nil
}

func isLvalue(e ast.Expr) bool {
	switch e := e.(type) {
	case *ast.Var, *ast.Dereference, *ast.Subscript, *ast.Arrow, *ast.String:
		return true
	case *ast.Member:
		return isLvalue(e.Expr)
	}
	return false
}

func (tc *TypeChecker) isPointerToComplete(t ast.Type) bool {
	p, ok := t.(ast.Pointer)
	return ok && tc.symbols.IsComplete(p.Ref)
}
