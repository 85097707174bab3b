package parser

import (
	"errors"
	"math"
	"strconv"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/token"
)

// Binding powers, lowest to highest.
const (
	lowestPrec = 0
	assignPrec = 1
	condPrec   = 3
)

var binaryPrec = map[token.Type]int{
	token.Star: 50, token.Slash: 50, token.Rem: 50,
	token.Plus: 45, token.Minus: 45,
	token.Shl: 40, token.Shr: 40,
	token.Lt: 35, token.Lte: 35, token.Gt: 35, token.Gte: 35,
	token.EqEq: 30, token.Neq: 30,
	token.And:    25,
	token.Xor:    20,
	token.Or:     15,
	token.AndAnd: 10,
	token.OrOr:   5,
}

var binaryOps = map[token.Type]ast.BinaryOp{
	token.Star: ast.Multiply, token.Slash: ast.Divide, token.Rem: ast.Remainder,
	token.Plus: ast.Add, token.Minus: ast.Subtract,
	token.Shl: ast.ShiftLeft, token.Shr: ast.ShiftRight,
	token.Lt: ast.LessThan, token.Lte: ast.LessOrEqual, token.Gt: ast.GreaterThan, token.Gte: ast.GreaterOrEqual,
	token.EqEq: ast.EqualTo, token.Neq: ast.NotEqualTo,
	token.And: ast.BitAnd, token.Xor: ast.BitXor, token.Or: ast.BitOr,
	token.AndAnd: ast.And, token.OrOr: ast.Or,
}

var compoundOps = map[token.Type]ast.BinaryOp{
	token.PlusEq: ast.Add, token.MinusEq: ast.Subtract, token.StarEq: ast.Multiply,
	token.SlashEq: ast.Divide, token.RemEq: ast.Remainder,
	token.AndEq: ast.BitAnd, token.OrEq: ast.BitOr, token.XorEq: ast.BitXor,
	token.ShlEq: ast.ShiftLeft, token.ShrEq: ast.ShiftRight,
}

func (p *Parser) parseExpression() ast.Expr { return p.parseExpr(lowestPrec) }

// parseExpr is a precedence climber. Assignment and ?: associate to the right.
func (p *Parser) parseExpr(minPrec int) ast.Expr {
	start := p.current.Span
	left := p.parseUnary()
	for {
		tok := p.current
		switch {
		case tok.Type == token.Eq && assignPrec >= minPrec:
			p.advance()
			right := p.parseExpr(assignPrec)
			left = &ast.Assignment{Meta: p.meta(start), Left: left, Right: right}

		case isCompound(tok.Type) && assignPrec >= minPrec:
			p.advance()
			right := p.parseExpr(assignPrec)
			left = &ast.Assignment{Meta: p.meta(start), Compound: true, Op: compoundOps[tok.Type], Left: left, Right: right}

		case tok.Type == token.Question && condPrec >= minPrec:
			p.advance()
			then := p.parseExpression()
			p.expect(token.Colon)
			els := p.parseExpr(condPrec)
			left = &ast.Conditional{Meta: p.meta(start), Cond: left, Then: then, Else: els}

		default:
			prec, ok := binaryPrec[tok.Type]
			if !ok || prec < minPrec {
				return left
			}
			p.advance()
			right := p.parseExpr(prec + 1)
			left = &ast.Binary{Meta: p.meta(start), Op: binaryOps[tok.Type], Left: left, Right: right}
		}
	}
}

func isCompound(t token.Type) bool {
	_, ok := compoundOps[t]
	return ok
}

func (p *Parser) parseUnary() ast.Expr {
	tok := p.current
	var op ast.UnaryOp
	switch tok.Type {
	case token.Minus:
		op = ast.Negate
	case token.Complement:
		op = ast.Complement
	case token.Not:
		op = ast.Not
	case token.Plus:
		op = ast.Plus
	case token.Inc:
		op = ast.PreInc
	case token.Dec:
		op = ast.PreDec
	case token.Star:
		p.advance()
		inner := p.parseUnary()
		return &ast.Dereference{Meta: p.meta(tok.Span), Expr: inner}
	case token.And:
		p.advance()
		inner := p.parseUnary()
		return &ast.AddressOf{Meta: p.meta(tok.Span), Expr: inner}
	case token.Sizeof:
		p.advance()
		if p.check(token.LParen) && isTypeSpecifier(p.peek().Type) {
			p.advance()
			typ := p.parseTypeName()
			p.expect(token.RParen)
			return &ast.SizeOfType{Meta: p.meta(tok.Span), Type: typ}
		}
		inner := p.parseUnary()
		return &ast.SizeOfExpr{Meta: p.meta(tok.Span), Expr: inner}
	case token.LParen:
		if isTypeSpecifier(p.peek().Type) {
			p.advance()
			typ := p.parseTypeName()
			p.expect(token.RParen)
			inner := p.parseUnary()
			return &ast.Cast{Meta: p.meta(tok.Span), Target: typ, Expr: inner}
		}
		return p.parsePostfix()
	default:
		return p.parsePostfix()
	}
	p.advance()
	inner := p.parseUnary()
	return &ast.Unary{Meta: p.meta(tok.Span), Op: op, Expr: inner}
}

func (p *Parser) parsePostfix() ast.Expr {
	start := p.current.Span
	expr := p.parsePrimary()
	for {
		switch {
		case p.match(token.LBracket):
			index := p.parseExpression()
			p.expect(token.RBracket)
			expr = &ast.Subscript{Meta: p.meta(start), Left: expr, Index: index}
		case p.match(token.Dot):
			field := p.expect(token.Ident).Value
			expr = &ast.Member{Meta: p.meta(start), Expr: expr, Field: field}
		case p.match(token.Arrow):
			field := p.expect(token.Ident).Value
			expr = &ast.Arrow{Meta: p.meta(start), Expr: expr, Field: field}
		case p.match(token.Inc):
			expr = &ast.Postfix{Meta: p.meta(start), Op: ast.PostInc, Expr: expr}
		case p.match(token.Dec):
			expr = &ast.Postfix{Meta: p.meta(start), Op: ast.PostDec, Expr: expr}
		default:
			return expr
		}
	}
}

func (p *Parser) parsePrimary() ast.Expr {
	tok := p.current
	switch tok.Type {
	case token.IntConst:
		p.advance()
		return &ast.Constant{Meta: p.meta(tok.Span), Value: p.intConstant(tok)}
	case token.CharConst:
		p.advance()
		v, _ := strconv.Atoi(tok.Value)
		return &ast.Constant{Meta: p.meta(tok.Span), Value: ast.ConstInt{V: int32(v)}}
	case token.DoubleConst:
		p.advance()
		v, err := strconv.ParseFloat(tok.Value, 64)
		if err != nil && !errors.Is(err, strconv.ErrRange) {
			p.errorf(tok.Span, "invalid floating constant '%s'", tok.Value)
		}
		return &ast.Constant{Meta: p.meta(tok.Span), Value: ast.ConstDouble{V: v}}
	case token.String:
		p.advance()
		return &ast.String{Meta: p.meta(tok.Span), Value: tok.Value}
	case token.Ident:
		p.advance()
		if !p.check(token.LParen) {
			return &ast.Var{Meta: p.meta(tok.Span), Name: tok.Value}
		}
		p.advance()
		var args []ast.Expr
		if !p.check(token.RParen) {
			for {
				args = append(args, p.parseExpr(assignPrec))
				if !p.match(token.Comma) {
					break
				}
			}
		}
		p.expect(token.RParen)
		return &ast.FunctionCall{Meta: p.meta(tok.Span), Name: tok.Value, Args: args}
	case token.LParen:
		p.advance()
		expr := p.parseExpression()
		p.expect(token.RParen)
		return expr
	}
	p.errorf(tok.Span, "expected expression, but found %s", p.describe(tok))
	return nil
}

// intConstant types an integer literal: the first of its candidate types that can
// represent the value.
func (p *Parser) intConstant(tok token.Token) ast.Const {
	v, err := strconv.ParseUint(tok.Value, 10, 64)
	if err != nil {
		p.errorf(tok.Span, "integer constant '%s' is too large", tok.Lexeme())
	}
	switch tok.Suffix {
	case token.SuffixNone:
		if v <= math.MaxInt32 {
			return ast.ConstInt{V: int32(v)}
		}
		return ast.ConstLong{V: int64(v)}
	case token.SuffixL:
		return ast.ConstLong{V: int64(v)}
	case token.SuffixU:
		if v <= math.MaxUint32 {
			return ast.ConstUInt{V: uint32(v)}
		}
		return ast.ConstULong{V: v}
	}
	return ast.ConstULong{V: v}
}
