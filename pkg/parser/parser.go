package parser

import (
	"fmt"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

// Parser holds the state for the parsing process
type Parser struct {
	tokens   []token.Token
	pos      int
	current  token.Token
	previous token.Token
	nextID   ast.NodeID
	anon     int
	// struct definitions met while parsing specifiers; flushed before the declaration
	// that contains them
	pendingStructs []ast.Decl
}

// bailout carries the first syntax error up to Parse.
type bailout struct{ err *util.Error }

// NewParser creates and initializes a new Parser from a token stream ending in EOF
func NewParser(tokens []token.Token) *Parser {
	if len(tokens) == 0 || tokens[len(tokens)-1].Type != token.EOF {
		tokens = append(tokens, token.Token{Type: token.EOF})
	}
	return &Parser{tokens: tokens, current: tokens[0]}
}

// Parse builds the AST of a translation unit.
func Parse(tokens []token.Token) (*ast.Program, error) {
	return NewParser(tokens).Parse()
}

func (p *Parser) Parse() (prog *ast.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			prog, err = nil, b.err
		}
	}()

	prog = &ast.Program{}
	for !p.check(token.EOF) {
		prog.Decls = append(prog.Decls, p.parseDeclaration()...)
	}
	prog.NextID = p.nextID
	return prog, nil
}

// Parser helpers
func (p *Parser) advance() {
	if p.pos < len(p.tokens)-1 {
		p.previous = p.current
		p.pos++
		p.current = p.tokens[p.pos]
	}
}

func (p *Parser) peek() token.Token {
	if p.pos+1 < len(p.tokens) {
		return p.tokens[p.pos+1]
	}
	return p.tokens[len(p.tokens)-1]
}

func (p *Parser) check(tokType token.Type) bool { return p.current.Type == tokType }

func (p *Parser) match(tokType token.Type) bool {
	if !p.check(tokType) {
		return false
	}
	p.advance()
	return true
}

func (p *Parser) expect(tokType token.Type) token.Token {
	if !p.check(tokType) {
		p.errorf(p.current.Span, "expected %s, but found %s", tokType, p.describe(p.current))
	}
	p.advance()
	return p.previous
}

func (p *Parser) describe(tok token.Token) string {
	switch tok.Type {
	case token.Ident:
		return fmt.Sprintf("identifier '%s'", tok.Value)
	case token.IntConst, token.DoubleConst:
		return fmt.Sprintf("constant '%s'", tok.Lexeme())
	}
	return tok.Type.String()
}

func (p *Parser) errorf(span token.Span, format string, args ...any) {
	panic(bailout{util.Errorf(util.ParseError, span, format, args...)})
}

func (p *Parser) meta(start token.Span) ast.Meta {
	id := p.nextID
	p.nextID++
	return ast.Meta{ID: id, Span: token.Span{Lo: start.Lo, Hi: p.previous.Span.Hi}}
}

func (p *Parser) spanFrom(start token.Span) token.Span {
	return token.Span{Lo: start.Lo, Hi: p.previous.Span.Hi}
}

func (p *Parser) takePendingStructs() []ast.Decl {
	out := p.pendingStructs
	p.pendingStructs = nil
	return out
}
