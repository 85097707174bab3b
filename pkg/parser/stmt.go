package parser

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/token"
)

func (p *Parser) parseBlock() *ast.Block {
	start := p.expect(token.LBrace).Span
	block := &ast.Block{}
	for !p.check(token.RBrace) {
		if p.check(token.EOF) {
			p.errorf(p.current.Span, "expected '}', but found end of file")
		}
		block.Items = append(block.Items, p.parseBlockItem()...)
	}
	p.advance()
	block.Span = p.spanFrom(start)
	return block
}

func (p *Parser) parseBlockItem() []ast.BlockItem {
	if isSpecifier(p.current.Type) {
		decls := p.parseDeclaration()
		items := make([]ast.BlockItem, len(decls))
		for i, d := range decls {
			items[i] = d
		}
		return items
	}
	return []ast.BlockItem{p.parseStmt()}
}

func (p *Parser) parseStmt() ast.Stmt {
	tok := p.current
	switch tok.Type {
	case token.Return:
		p.advance()
		ret := &ast.Return{}
		if !p.check(token.Semi) {
			ret.Expr = p.parseExpression()
		}
		p.expect(token.Semi)
		ret.Span = p.spanFrom(tok.Span)
		return ret

	case token.If:
		p.advance()
		p.expect(token.LParen)
		cond := p.parseExpression()
		p.expect(token.RParen)
		stmt := &ast.If{Cond: cond, Then: p.parseStmt()}
		// else binds to the innermost if.
		if p.match(token.Else) {
			stmt.Else = p.parseStmt()
		}
		stmt.Span = p.spanFrom(tok.Span)
		return stmt

	case token.LBrace:
		return &ast.Compound{Block: p.parseBlock()}

	case token.Break:
		p.advance()
		p.expect(token.Semi)
		return &ast.Break{Span: p.spanFrom(tok.Span)}

	case token.Continue:
		p.advance()
		p.expect(token.Semi)
		return &ast.Continue{Span: p.spanFrom(tok.Span)}

	case token.While:
		p.advance()
		p.expect(token.LParen)
		cond := p.parseExpression()
		p.expect(token.RParen)
		body := p.parseStmt()
		return &ast.While{Cond: cond, Body: body, Span: p.spanFrom(tok.Span)}

	case token.Do:
		p.advance()
		body := p.parseStmt()
		p.expect(token.While)
		p.expect(token.LParen)
		cond := p.parseExpression()
		p.expect(token.RParen)
		p.expect(token.Semi)
		return &ast.DoWhile{Body: body, Cond: cond, Span: p.spanFrom(tok.Span)}

	case token.For:
		return p.parseFor()

	case token.Switch:
		p.advance()
		p.expect(token.LParen)
		expr := p.parseExpression()
		p.expect(token.RParen)
		body := p.parseStmt()
		return &ast.Switch{Expr: expr, Body: body, Span: p.spanFrom(tok.Span)}

	case token.Case:
		p.advance()
		value := p.parseExpr(condPrec)
		p.expect(token.Colon)
		body := p.parseLabeledBody()
		return &ast.Case{Value: value, Body: body, Span: p.spanFrom(tok.Span)}

	case token.Default:
		p.advance()
		p.expect(token.Colon)
		body := p.parseLabeledBody()
		return &ast.Default{Body: body, Span: p.spanFrom(tok.Span)}

	case token.Goto:
		p.advance()
		name := p.expect(token.Ident).Value
		p.expect(token.Semi)
		return &ast.Goto{Name: name, Span: p.spanFrom(tok.Span)}

	case token.Semi:
		p.advance()
		return &ast.Null{}

	case token.Ident:
		if p.peek().Type == token.Colon {
			p.advance()
			p.advance()
			body := p.parseLabeledBody()
			return &ast.Labeled{Name: tok.Value, Body: body, Span: p.spanFrom(tok.Span)}
		}
	}

	expr := p.parseExpression()
	p.expect(token.Semi)
	return &ast.ExprStmt{Expr: expr}
}

// A label must be followed by a statement, not a declaration.
func (p *Parser) parseLabeledBody() ast.Stmt {
	if isSpecifier(p.current.Type) {
		p.errorf(p.current.Span, "a label can only be part of a statement, but found %s", p.describe(p.current))
	}
	if p.check(token.RBrace) {
		p.errorf(p.current.Span, "expected statement after label, but found %s", p.describe(p.current))
	}
	return p.parseStmt()
}

func (p *Parser) parseFor() ast.Stmt {
	start := p.expect(token.For).Span
	p.expect(token.LParen)

	var init ast.ForInit
	if isSpecifier(p.current.Type) {
		declStart := p.current.Span
		decls := p.parseDeclaration()
		vd, ok := decls[len(decls)-1].(*ast.VarDecl)
		if len(decls) != 1 || !ok {
			p.errorf(p.spanFrom(declStart), "expected a single variable declaration in for loop initializer")
		}
		init = &ast.InitDecl{Decl: vd}
	} else {
		fi := &ast.InitExpr{}
		if !p.check(token.Semi) {
			fi.Expr = p.parseExpression()
		}
		p.expect(token.Semi)
		init = fi
	}

	stmt := &ast.For{Init: init}
	if !p.check(token.Semi) {
		stmt.Cond = p.parseExpression()
	}
	p.expect(token.Semi)
	if !p.check(token.RParen) {
		stmt.Post = p.parseExpression()
	}
	p.expect(token.RParen)
	stmt.Body = p.parseStmt()
	stmt.Span = p.spanFrom(start)
	return stmt
}
