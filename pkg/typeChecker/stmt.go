package typeChecker

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/util"
)

func (tc *TypeChecker) checkBlock(b *ast.Block) *ast.Block {
	out := &ast.Block{Span: b.Span, Items: make([]ast.BlockItem, 0, len(b.Items))}
	for _, item := range b.Items {
		switch item := item.(type) {
		case *ast.VarDecl:
			out.Items = append(out.Items, tc.checkLocalVarDecl(item))
		case *ast.FuncDecl:
			out.Items = append(out.Items, tc.checkFuncDecl(item))
		case *ast.StructDecl:
			out.Items = append(out.Items, tc.checkStructDecl(item))
		case ast.Stmt:
			out.Items = append(out.Items, tc.checkStmt(item))
		}
	}
	return out
}

func (tc *TypeChecker) checkStmt(s ast.Stmt) ast.Stmt {
	switch s := s.(type) {
	case *ast.Return:
		return tc.checkReturn(s)
	case *ast.ExprStmt:
		return &ast.ExprStmt{Expr: tc.checkAndConvert(s.Expr)}
	case *ast.If:
		out := &ast.If{Cond: tc.checkScalar(s.Cond, "if statement"), Then: tc.checkStmt(s.Then), Span: s.Span}
		if s.Else != nil {
			out.Else = tc.checkStmt(s.Else)
		}
		return out
	case *ast.Compound:
		return &ast.Compound{Block: tc.checkBlock(s.Block)}
	case *ast.While:
		return &ast.While{Cond: tc.checkScalar(s.Cond, "while statement"), Body: tc.checkStmt(s.Body), Label: s.Label, Span: s.Span}
	case *ast.DoWhile:
		body := tc.checkStmt(s.Body)
		return &ast.DoWhile{Body: body, Cond: tc.checkScalar(s.Cond, "do statement"), Label: s.Label, Span: s.Span}
	case *ast.For:
		out := &ast.For{Label: s.Label, Span: s.Span}
		switch fi := s.Init.(type) {
		case *ast.InitDecl:
			if fi.Decl.Storage != ast.NoStorage {
				tc.errorf(util.ReasonStorageClass, fi.Decl.Span, "declaration of '%s' in for loop initializer has storage class", fi.Decl.Name)
			}
			out.Init = &ast.InitDecl{Decl: tc.checkLocalVarDecl(fi.Decl)}
		case *ast.InitExpr:
			ie := &ast.InitExpr{}
			if fi.Expr != nil {
				ie.Expr = tc.checkAndConvert(fi.Expr)
			}
			out.Init = ie
		}
		if s.Cond != nil {
			out.Cond = tc.checkScalar(s.Cond, "for statement")
		}
		if s.Post != nil {
			out.Post = tc.checkAndConvert(s.Post)
		}
		out.Body = tc.checkStmt(s.Body)
		return out
	case *ast.Switch:
		return tc.checkSwitch(s)
	case *ast.Case:
		value, ok := tc.cases[s.Label]
		if !ok {
			tc.errorf(util.ReasonInvalidOperand, s.Span, "case label outside of a checked switch")
		}
		c := &ast.Constant{Meta: tc.newMeta(s.Value.NodeSpan()), Value: value}
		tc.setType(c, value.Type())
		return &ast.Case{Value: c, Body: tc.checkStmt(s.Body), Label: s.Label, Span: s.Span}
	case *ast.Default:
		return &ast.Default{Body: tc.checkStmt(s.Body), Label: s.Label, Span: s.Span}
	case *ast.Labeled:
		return &ast.Labeled{Name: s.Name, Body: tc.checkStmt(s.Body), Span: s.Span}
	}
	return s
}

func (tc *TypeChecker) checkReturn(s *ast.Return) ast.Stmt {
	_, retVoid := tc.retType.(ast.Void)
	switch {
	case s.Expr == nil && retVoid:
		return &ast.Return{Span: s.Span}
	case s.Expr == nil:
		tc.errorf(util.ReasonIncompatible, s.Span, "non-void function should return a value")
	case retVoid:
		tc.errorf(util.ReasonIncompatible, s.Span, "void function should not return a value")
	}
	expr := tc.convertByAssignment(tc.checkAndConvert(s.Expr), tc.retType, "return")
	return &ast.Return{Expr: expr, Span: s.Span}
}

// checkSwitch promotes the controlling expression and converts every case value
// to its type. Two values that become equal after conversion are duplicates.
func (tc *TypeChecker) checkSwitch(s *ast.Switch) ast.Stmt {
	expr := tc.checkAndConvert(s.Expr)
	t := tc.typeOf(expr)
	if !ast.IsInteger(t) {
		tc.errorf(util.ReasonInvalidOperand, s.Expr.NodeSpan(), "switch statement requires an integer expression, but has type '%s'", t)
	}
	t = promote(t)
	expr = tc.convertTo(expr, t)

	out := &ast.Switch{Expr: expr, Label: s.Label, Span: s.Span}
	seen := make(map[ast.Const]bool)
	for _, c := range s.Cases {
		if c.Value == nil {
			out.Cases = append(out.Cases, c)
			continue
		}
		v := ast.Convert(c.Value, t)
		if seen[v] {
			tc.errorf(util.ReasonConflict, s.Span, "duplicate case value '%s' after conversion to '%s'", v, t)
		}
		seen[v] = true
		tc.cases[c.Label] = v
		out.Cases = append(out.Cases, ast.SwitchCase{Value: v, Label: c.Label})
	}
	out.Body = tc.checkStmt(s.Body)
	return out
}
