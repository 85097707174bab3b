// Package resolve gives every declared entity a unique name and attaches labels to
// loops, switches and the statements that jump out of them.
//
// Resolution renames block-scope variables to fresh "name.N" symbols so later passes
// never have to think about shadowing, renames structure tags the same way, and
// renames goto labels per function. Labeling then walks the renamed tree and fills
// the Label fields of loops, switches, break, continue, case and default.
package resolve

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

type identEntry struct {
	name         string
	currentScope bool
	hasLinkage   bool
}

type tagEntry struct {
	tag          string
	union        bool
	currentScope bool
}

type scope struct {
	idents map[string]identEntry
	tags   map[string]tagEntry
}

func newScope() *scope {
	return &scope{idents: make(map[string]identEntry), tags: make(map[string]tagEntry)}
}

// inner copies the visible bindings into a new scope, marking them as inherited.
func (s *scope) inner() *scope {
	n := newScope()
	for k, v := range s.idents {
		v.currentScope = false
		n.idents[k] = v
	}
	for k, v := range s.tags {
		v.currentScope = false
		n.tags[k] = v
	}
	return n
}

type gotoLabels struct {
	unique  map[string]string
	defined map[string]bool
	used    map[string]token.Span
	order   []string
}

type resolver struct {
	pool   *intern.Pool
	labels *gotoLabels
	// struct declarations introduced implicitly by a tag use; flushed in front of the
	// item that used them
	implicit []ast.Decl
}

type bailout struct{ err *util.Error }

func (r *resolver) errorf(span token.Span, format string, args ...any) {
	panic(bailout{util.Errorf(util.ResolveError, span, format, args...)})
}

func (r *resolver) typeErrorf(reason util.Reason, span token.Span, format string, args ...any) {
	panic(bailout{util.TypeErrorf(reason, span, format, args...)})
}

func catch(err *error) {
	if r := recover(); r != nil {
		b, ok := r.(bailout)
		if !ok {
			panic(r)
		}
		*err = b.err
	}
}

// Resolve runs identifier resolution followed by loop and switch labeling.
func Resolve(prog *ast.Program, pool *intern.Pool) (*ast.Program, error) {
	out, err := ResolveIdentifiers(prog, pool)
	if err != nil {
		return nil, err
	}
	return LabelLoops(out, pool)
}

// ResolveIdentifiers renames variables, structure tags and goto labels to unique
// symbols and reports undeclared or conflicting names.
func ResolveIdentifiers(prog *ast.Program, pool *intern.Pool) (out *ast.Program, err error) {
	defer catch(&err)
	r := &resolver{pool: pool}
	sc := newScope()
	out = &ast.Program{NextID: prog.NextID}
	for _, d := range prog.Decls {
		var nd ast.Decl
		switch d := d.(type) {
		case *ast.FuncDecl:
			nd = r.funcDecl(d, sc, true)
		case *ast.VarDecl:
			nd = r.fileVarDecl(d, sc)
		case *ast.StructDecl:
			nd = r.structDecl(d, sc)
		}
		out.Decls = append(out.Decls, r.takeImplicit()...)
		out.Decls = append(out.Decls, nd)
	}
	return out, nil
}

func (r *resolver) takeImplicit() []ast.Decl {
	out := r.implicit
	r.implicit = nil
	return out
}

func (r *resolver) fileVarDecl(d *ast.VarDecl, sc *scope) *ast.VarDecl {
	if prev, ok := sc.idents[d.Name]; ok && !prev.hasLinkage {
		r.errorf(d.Span, "'%s' redeclared as a different kind of symbol", d.Name)
	}
	sc.idents[d.Name] = identEntry{name: d.Name, currentScope: true, hasLinkage: true}
	nd := *d
	nd.Type = r.typ(d.Type, sc, d.Span)
	if d.Init != nil {
		nd.Init = r.init(d.Init, sc)
	}
	return &nd
}

func (r *resolver) funcDecl(d *ast.FuncDecl, sc *scope, fileScope bool) *ast.FuncDecl {
	if !fileScope {
		if d.Body != nil {
			r.errorf(d.Span, "nested function definition of '%s' is not allowed", d.Name)
		}
		if d.Storage == ast.Static {
			r.typeErrorf(util.ReasonStorageClass, d.Span, "invalid storage class for block-scope function '%s'", d.Name)
		}
	}
	if prev, ok := sc.idents[d.Name]; ok && prev.currentScope && !prev.hasLinkage {
		r.errorf(d.Span, "redeclaration of '%s'", d.Name)
	}
	sc.idents[d.Name] = identEntry{name: d.Name, currentScope: true, hasLinkage: true}

	inner := sc.inner()
	nd := *d
	nd.Params = make([]string, len(d.Params))
	fn := ast.FunType{Ret: r.typ(d.Type.Ret, inner, d.Span)}
	for i, p := range d.Params {
		if p == "" {
			if d.Body != nil {
				r.errorf(d.Span, "parameter name omitted in definition of '%s'", d.Name)
			}
			fn.Params = append(fn.Params, r.typ(d.Type.Params[i], inner, d.Span))
			continue
		}
		if prev, ok := inner.idents[p]; ok && prev.currentScope {
			r.errorf(d.Span, "redefinition of parameter '%s'", p)
		}
		unique := r.pool.Fresh(p)
		inner.idents[p] = identEntry{name: unique, currentScope: true}
		nd.Params[i] = unique
		fn.Params = append(fn.Params, r.typ(d.Type.Params[i], inner, d.Span))
	}
	nd.Type = fn

	if d.Body != nil {
		r.labels = &gotoLabels{
			unique:  make(map[string]string),
			defined: make(map[string]bool),
			used:    make(map[string]token.Span),
		}
		nd.Body = r.block(d.Body, inner)
		for _, name := range r.labels.order {
			if !r.labels.defined[name] {
				r.errorf(r.labels.used[name], "use of undeclared label '%s'", name)
			}
		}
		r.labels = nil
	}
	return &nd
}

func (r *resolver) localVarDecl(d *ast.VarDecl, sc *scope) *ast.VarDecl {
	if prev, ok := sc.idents[d.Name]; ok && prev.currentScope {
		if !(prev.hasLinkage && d.Storage == ast.Extern) {
			r.errorf(d.Span, "conflicting local declarations of '%s'", d.Name)
		}
	}
	nd := *d
	if d.Storage == ast.Extern {
		sc.idents[d.Name] = identEntry{name: d.Name, currentScope: true, hasLinkage: true}
		nd.Type = r.typ(d.Type, sc, d.Span)
		if d.Init != nil {
			nd.Init = r.init(d.Init, sc)
		}
		return &nd
	}
	unique := r.pool.Fresh(d.Name)
	sc.idents[d.Name] = identEntry{name: unique, currentScope: true}
	nd.Name = unique
	nd.Type = r.typ(d.Type, sc, d.Span)
	if d.Init != nil {
		nd.Init = r.init(d.Init, sc)
	}
	return &nd
}

// structDecl binds a tag in the current scope. A definition completes a tag declared
// earlier in the same scope; otherwise it introduces a new type.
func (r *resolver) structDecl(d *ast.StructDecl, sc *scope) *ast.StructDecl {
	prev, ok := sc.tags[d.Tag]
	var unique string
	switch {
	case ok && prev.currentScope:
		if prev.union != d.Union {
			r.errorf(d.Span, "use of '%s' with tag type that does not match previous declaration", d.Tag)
		}
		unique = prev.tag
	default:
		unique = r.pool.Fresh(d.Tag)
		sc.tags[d.Tag] = tagEntry{tag: unique, union: d.Union, currentScope: true}
	}
	nd := &ast.StructDecl{Tag: unique, Union: d.Union, Span: d.Span}
	if d.Members != nil {
		nd.Members = make([]ast.MemberDecl, len(d.Members))
		for i, m := range d.Members {
			nd.Members[i] = ast.MemberDecl{Name: m.Name, Type: r.typ(m.Type, sc, m.Span), Span: m.Span}
		}
	}
	return nd
}

// typ rewrites structure tags inside t. A tag that is not visible declares a new
// incomplete type in the current scope.
func (r *resolver) typ(t ast.Type, sc *scope, span token.Span) ast.Type {
	switch t := t.(type) {
	case ast.Pointer:
		return ast.Pointer{Ref: r.typ(t.Ref, sc, span)}
	case ast.Array:
		return ast.Array{Elem: r.typ(t.Elem, sc, span), Size: t.Size}
	case ast.FunType:
		fn := ast.FunType{Ret: r.typ(t.Ret, sc, span)}
		for _, p := range t.Params {
			fn.Params = append(fn.Params, r.typ(p, sc, span))
		}
		return fn
	case ast.Struct:
		entry, ok := sc.tags[t.Tag]
		if !ok {
			unique := r.pool.Fresh(t.Tag)
			sc.tags[t.Tag] = tagEntry{tag: unique, union: t.Union, currentScope: true}
			r.implicit = append(r.implicit, &ast.StructDecl{Tag: unique, Union: t.Union, Span: span})
			return ast.Struct{Tag: unique, Union: t.Union}
		}
		if entry.union != t.Union {
			r.errorf(span, "use of '%s' with tag type that does not match previous declaration", t.Tag)
		}
		return ast.Struct{Tag: entry.tag, Union: t.Union}
	}
	return t
}

func (r *resolver) init(i ast.Initializer, sc *scope) ast.Initializer {
	switch i := i.(type) {
	case *ast.SingleInit:
		return &ast.SingleInit{Expr: r.expr(i.Expr, sc)}
	case *ast.CompoundInit:
		out := &ast.CompoundInit{Span: i.Span, Inits: make([]ast.Initializer, len(i.Inits))}
		for k, sub := range i.Inits {
			out.Inits[k] = r.init(sub, sc)
		}
		return out
	}
	return i
}

func (r *resolver) block(b *ast.Block, sc *scope) *ast.Block {
	out := &ast.Block{Span: b.Span}
	for _, item := range b.Items {
		var ni ast.BlockItem
		switch item := item.(type) {
		case *ast.VarDecl:
			ni = r.localVarDecl(item, sc)
		case *ast.FuncDecl:
			ni = r.funcDecl(item, sc, false)
		case *ast.StructDecl:
			ni = r.structDecl(item, sc)
		case ast.Stmt:
			ni = r.stmt(item, sc)
		}
		for _, d := range r.takeImplicit() {
			out.Items = append(out.Items, d)
		}
		out.Items = append(out.Items, ni)
	}
	return out
}

func (r *resolver) stmt(s ast.Stmt, sc *scope) ast.Stmt {
	switch s := s.(type) {
	case *ast.Return:
		out := &ast.Return{Span: s.Span}
		if s.Expr != nil {
			out.Expr = r.expr(s.Expr, sc)
		}
		return out
	case *ast.ExprStmt:
		return &ast.ExprStmt{Expr: r.expr(s.Expr, sc)}
	case *ast.If:
		out := &ast.If{Cond: r.expr(s.Cond, sc), Then: r.stmt(s.Then, sc), Span: s.Span}
		if s.Else != nil {
			out.Else = r.stmt(s.Else, sc)
		}
		return out
	case *ast.Compound:
		return &ast.Compound{Block: r.block(s.Block, sc.inner())}
	case *ast.While:
		return &ast.While{Cond: r.expr(s.Cond, sc), Body: r.stmt(s.Body, sc), Span: s.Span}
	case *ast.DoWhile:
		return &ast.DoWhile{Body: r.stmt(s.Body, sc), Cond: r.expr(s.Cond, sc), Span: s.Span}
	case *ast.For:
		inner := sc.inner()
		out := &ast.For{Span: s.Span}
		switch fi := s.Init.(type) {
		case *ast.InitDecl:
			out.Init = &ast.InitDecl{Decl: r.localVarDecl(fi.Decl, inner)}
		case *ast.InitExpr:
			ie := &ast.InitExpr{}
			if fi.Expr != nil {
				ie.Expr = r.expr(fi.Expr, inner)
			}
			out.Init = ie
		}
		if s.Cond != nil {
			out.Cond = r.expr(s.Cond, inner)
		}
		if s.Post != nil {
			out.Post = r.expr(s.Post, inner)
		}
		out.Body = r.stmt(s.Body, inner)
		return out
	case *ast.Switch:
		return &ast.Switch{Expr: r.expr(s.Expr, sc), Body: r.stmt(s.Body, sc), Span: s.Span}
	case *ast.Case:
		return &ast.Case{Value: r.expr(s.Value, sc), Body: r.stmt(s.Body, sc), Span: s.Span}
	case *ast.Default:
		return &ast.Default{Body: r.stmt(s.Body, sc), Span: s.Span}
	case *ast.Labeled:
		if r.labels.defined[s.Name] {
			r.errorf(s.Span, "duplicate label '%s'", s.Name)
		}
		r.labels.defined[s.Name] = true
		return &ast.Labeled{Name: r.gotoLabel(s.Name), Body: r.stmt(s.Body, sc), Span: s.Span}
	case *ast.Goto:
		if _, ok := r.labels.used[s.Name]; !ok {
			r.labels.used[s.Name] = s.Span
			r.labels.order = append(r.labels.order, s.Name)
		}
		return &ast.Goto{Name: r.gotoLabel(s.Name), Span: s.Span}
	case *ast.Break:
		return &ast.Break{Span: s.Span}
	case *ast.Continue:
		return &ast.Continue{Span: s.Span}
	}
	return s
}

// gotoLabel returns the unique name of a label, minting it on first mention.
func (r *resolver) gotoLabel(name string) string {
	if unique, ok := r.labels.unique[name]; ok {
		return unique
	}
	unique := r.pool.Fresh(name)
	r.labels.unique[name] = unique
	return unique
}
