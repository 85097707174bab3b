package parser

import (
	"strconv"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/token"
)

func isSpecifier(t token.Type) bool {
	switch t {
	case token.Int, token.Long, token.Unsigned, token.Signed, token.Char, token.Double,
		token.Void, token.Struct, token.Union, token.Static, token.Extern:
		return true
	}
	return false
}

func isTypeSpecifier(t token.Type) bool {
	return isSpecifier(t) && t != token.Static && t != token.Extern
}

// Declarators are parsed into this small tree first and applied to the base type
// afterwards, reading outward from the identifier.
type declarator interface{ isDeclarator() }

type (
	identDeclarator struct {
		name string
		span token.Span
	}
	pointerDeclarator struct{ inner declarator }
	arrayDeclarator   struct {
		inner declarator
		size  int64
	}
	funDeclarator struct {
		params []paramInfo
		inner  declarator
	}
)

type paramInfo struct {
	base ast.Type
	decl declarator
	span token.Span
}

func (identDeclarator) isDeclarator()   {}
func (pointerDeclarator) isDeclarator() {}
func (arrayDeclarator) isDeclarator()   {}
func (funDeclarator) isDeclarator()     {}

// parseDeclaration parses one declaration, which may introduce several names.
func (p *Parser) parseDeclaration() []ast.Decl {
	start := p.current.Span
	base, storage, tagOnly := p.parseSpecifiers(true)
	decls := p.takePendingStructs()

	if p.match(token.Semi) {
		if !tagOnly {
			p.errorf(p.spanFrom(start), "declaration does not declare anything")
		}
		if len(decls) == 0 {
			// `struct s;` declares an incomplete type in the current scope.
			st := base.(ast.Struct)
			decls = append(decls, &ast.StructDecl{Tag: st.Tag, Union: st.Union, Span: p.spanFrom(start)})
		}
		return decls
	}

	for first := true; ; first = false {
		d := p.parseDeclarator()
		name, typ, params := p.processDeclarator(d, base)
		decls = append(decls, p.takePendingStructs()...)
		if fn, ok := typ.(ast.FunType); ok {
			decl := &ast.FuncDecl{Name: name, Type: fn, Params: params, Storage: storage}
			if first && p.check(token.LBrace) {
				decl.Body = p.parseBlock()
				decl.Span = p.spanFrom(start)
				return append(decls, decl)
			}
			decl.Span = p.spanFrom(start)
			decls = append(decls, decl)
		} else {
			decl := &ast.VarDecl{Name: name, Type: typ, Storage: storage}
			if p.match(token.Eq) {
				decl.Init = p.parseInitializer()
			}
			decl.Span = p.spanFrom(start)
			decls = append(decls, decl)
		}
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.Semi)
	return decls
}

// parseSpecifiers reads type specifiers and storage classes. tagOnly reports whether
// the type came from a struct or union specifier, so `struct s;` is meaningful.
func (p *Parser) parseSpecifiers(allowStorage bool) (typ ast.Type, storage ast.StorageClass, tagOnly bool) {
	start := p.current.Span
	var specs []token.Type
	for isSpecifier(p.current.Type) {
		tok := p.current
		switch tok.Type {
		case token.Static, token.Extern:
			if !allowStorage {
				p.errorf(tok.Span, "storage class %s is not allowed here", tok.Type)
			}
			if storage != ast.NoStorage {
				p.errorf(tok.Span, "multiple storage classes in declaration")
			}
			storage = ast.Static
			if tok.Type == token.Extern {
				storage = ast.Extern
			}
			p.advance()
		case token.Struct, token.Union:
			if typ != nil || len(specs) > 0 {
				p.errorf(tok.Span, "invalid type specifier %s", tok.Type)
			}
			typ = p.parseStructSpecifier()
			tagOnly = true
		default:
			if typ != nil {
				p.errorf(tok.Span, "invalid type specifier %s", tok.Type)
			}
			specs = append(specs, tok.Type)
			p.advance()
		}
	}
	if typ != nil {
		return typ, storage, tagOnly
	}
	if len(specs) == 0 {
		p.errorf(p.current.Span, "expected a type specifier, but found %s", p.describe(p.current))
	}
	return p.typeFromSpecifiers(specs, p.spanFrom(start)), storage, false
}

func (p *Parser) typeFromSpecifiers(specs []token.Type, span token.Span) ast.Type {
	count := make(map[token.Type]int)
	for _, s := range specs {
		count[s]++
		if count[s] > 1 {
			p.errorf(span, "duplicate type specifier %s", s)
		}
	}
	if count[token.Signed] > 0 && count[token.Unsigned] > 0 {
		p.errorf(span, "both 'signed' and 'unsigned' in declaration specifiers")
	}
	only := func(t token.Type) bool { return len(specs) == 1 && specs[0] == t }

	switch {
	case only(token.Void):
		return ast.Void{}
	case only(token.Double):
		return ast.Double{}
	case count[token.Void] > 0 || count[token.Double] > 0:
		p.errorf(span, "invalid combination of type specifiers")
	case count[token.Char] > 0:
		if count[token.Int] > 0 || count[token.Long] > 0 {
			p.errorf(span, "invalid combination of type specifiers")
		}
		switch {
		case count[token.Signed] > 0:
			return ast.SChar{}
		case count[token.Unsigned] > 0:
			return ast.UChar{}
		}
		return ast.Char{}
	case count[token.Unsigned] > 0 && count[token.Long] > 0:
		return ast.ULong{}
	case count[token.Unsigned] > 0:
		return ast.UInt{}
	case count[token.Long] > 0:
		return ast.Long{}
	}
	return ast.Int{}
}

func (p *Parser) parseStructSpecifier() ast.Type {
	kw := p.current
	p.advance()
	union := kw.Type == token.Union

	var tag string
	if p.check(token.Ident) {
		tag = p.current.Value
		p.advance()
	} else if !p.check(token.LBrace) {
		p.errorf(p.current.Span, "expected identifier or '{' after %s, but found %s", kw.Type, p.describe(p.current))
	}

	if !p.check(token.LBrace) {
		return ast.Struct{Tag: tag, Union: union}
	}

	if tag == "" {
		tag = "anon." + strconv.Itoa(p.anon)
		p.anon++
	}
	p.advance()
	var members []ast.MemberDecl
	for !p.check(token.RBrace) {
		mstart := p.current.Span
		base, _, tagOnly := p.parseSpecifiers(false)
		if tagOnly && p.check(token.Semi) {
			p.errorf(p.current.Span, "declaration does not declare a member")
		}
		for {
			d := p.parseDeclarator()
			if _, isFun := d.(funDeclarator); isFun {
				p.errorf(p.spanFrom(mstart), "a member cannot be a function")
			}
			name, typ, _ := p.processDeclarator(d, base)
			members = append(members, ast.MemberDecl{Name: name, Type: typ, Span: p.spanFrom(mstart)})
			if !p.match(token.Comma) {
				break
			}
		}
		p.expect(token.Semi)
	}
	if len(members) == 0 {
		p.errorf(p.current.Span, "%s must declare at least one member", kw.Type)
	}
	p.expect(token.RBrace)
	p.pendingStructs = append(p.pendingStructs, &ast.StructDecl{
		Tag: tag, Union: union, Members: members, Span: p.spanFrom(kw.Span),
	})
	return ast.Struct{Tag: tag, Union: union}
}

func (p *Parser) parseDeclarator() declarator {
	if p.match(token.Star) {
		return pointerDeclarator{inner: p.parseDeclarator()}
	}
	var simple declarator
	switch {
	case p.check(token.Ident):
		simple = identDeclarator{name: p.current.Value, span: p.current.Span}
		p.advance()
	case p.match(token.LParen):
		simple = p.parseDeclarator()
		p.expect(token.RParen)
	default:
		p.errorf(p.current.Span, "expected identifier, but found %s", p.describe(p.current))
	}

	if p.check(token.LParen) {
		return funDeclarator{params: p.parseParams(), inner: simple}
	}
	return p.parseArraySuffixes(simple)
}

// parseParamDeclarator also accepts a parameter without a name, as in
// "int putchar(int);" or "long f(char *)".
func (p *Parser) parseParamDeclarator() declarator {
	if p.match(token.Star) {
		return pointerDeclarator{inner: p.parseParamDeclarator()}
	}
	if p.check(token.Comma) || p.check(token.RParen) {
		return identDeclarator{span: p.current.Span}
	}
	if p.check(token.LBracket) {
		return p.parseArraySuffixes(identDeclarator{span: p.current.Span})
	}
	return p.parseDeclarator()
}

func (p *Parser) parseArraySuffixes(inner declarator) declarator {
	for p.match(token.LBracket) {
		inner = arrayDeclarator{inner: inner, size: p.parseArraySize()}
	}
	return inner
}

func (p *Parser) parseArraySize() int64 {
	start := p.current.Span
	e := p.parseExpr(condPrec)
	size, ok := ast.EvalInt(e)
	if !ok {
		p.errorf(p.spanFrom(start), "array size must be an integer constant")
	}
	if size <= 0 {
		p.errorf(p.spanFrom(start), "array size must be positive")
	}
	p.expect(token.RBracket)
	return size
}

func (p *Parser) parseParams() []paramInfo {
	p.expect(token.LParen)
	var params []paramInfo
	if p.check(token.Void) && p.peek().Type == token.RParen {
		p.advance()
		p.advance()
		return params
	}
	if p.match(token.RParen) {
		return params
	}
	for {
		start := p.current.Span
		base, _, _ := p.parseSpecifiers(false)
		d := p.parseParamDeclarator()
		params = append(params, paramInfo{base: base, decl: d, span: p.spanFrom(start)})
		if !p.match(token.Comma) {
			break
		}
	}
	p.expect(token.RParen)
	return params
}

// processDeclarator applies a declarator to its base type, returning the declared
// name, its type and, for functions, the parameter names.
func (p *Parser) processDeclarator(d declarator, base ast.Type) (string, ast.Type, []string) {
	switch d := d.(type) {
	case identDeclarator:
		return d.name, base, nil
	case pointerDeclarator:
		return p.processDeclarator(d.inner, ast.Pointer{Ref: base})
	case arrayDeclarator:
		return p.processDeclarator(d.inner, ast.Array{Elem: base, Size: d.size})
	case funDeclarator:
		ident, ok := d.inner.(identDeclarator)
		if !ok {
			p.errorf(p.previous.Span, "function pointers and complex function declarators are not supported")
		}
		fn := ast.FunType{Ret: base}
		var names []string
		for _, param := range d.params {
			pname, ptype, _ := p.processDeclarator(param.decl, param.base)
			if _, isFun := ptype.(ast.FunType); isFun {
				p.errorf(param.span, "function pointers are not supported as parameters")
			}
			names = append(names, pname)
			fn.Params = append(fn.Params, ptype)
		}
		return ident.name, fn, names
	}
	panic("unreachable declarator")
}

// Abstract declarators appear in casts and sizeof.
type abstractDeclarator interface{ isAbstract() }

type (
	abstractBase    struct{}
	abstractPointer struct{ inner abstractDeclarator }
	abstractArray   struct {
		inner abstractDeclarator
		size  int64
	}
)

func (abstractBase) isAbstract()    {}
func (abstractPointer) isAbstract() {}
func (abstractArray) isAbstract()   {}

func (p *Parser) parseTypeName() ast.Type {
	pending := len(p.pendingStructs)
	base, _, _ := p.parseSpecifiers(false)
	if len(p.pendingStructs) > pending {
		p.errorf(p.previous.Span, "a structure cannot be defined inside a type name")
	}
	return processAbstract(p.parseAbstractDeclarator(), base)
}

func (p *Parser) parseAbstractDeclarator() abstractDeclarator {
	if p.match(token.Star) {
		return abstractPointer{inner: p.parseAbstractDeclarator()}
	}
	var inner abstractDeclarator = abstractBase{}
	if p.check(token.LParen) && (p.peek().Type == token.Star || p.peek().Type == token.LParen || p.peek().Type == token.LBracket) {
		p.advance()
		inner = p.parseAbstractDeclarator()
		p.expect(token.RParen)
	}
	for p.match(token.LBracket) {
		inner = abstractArray{inner: inner, size: p.parseArraySize()}
	}
	return inner
}

func processAbstract(d abstractDeclarator, base ast.Type) ast.Type {
	switch d := d.(type) {
	case abstractPointer:
		return processAbstract(d.inner, ast.Pointer{Ref: base})
	case abstractArray:
		return processAbstract(d.inner, ast.Array{Elem: base, Size: d.size})
	}
	return base
}

func (p *Parser) parseInitializer() ast.Initializer {
	if !p.check(token.LBrace) {
		return &ast.SingleInit{Expr: p.parseExpr(assignPrec)}
	}
	start := p.current.Span
	p.advance()
	var inits []ast.Initializer
	for {
		inits = append(inits, p.parseInitializer())
		if !p.match(token.Comma) || p.check(token.RBrace) {
			break
		}
	}
	p.expect(token.RBrace)
	return &ast.CompoundInit{Inits: inits, Span: p.spanFrom(start)}
}
