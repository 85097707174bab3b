package typeChecker

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/symtab"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

type TypeChecker struct {
	cfg      *config.Config
	symbols  *symtab.Table
	pool     *intern.Pool
	types    ast.TypeMap
	nextID   ast.NodeID
	retType  ast.Type
	cases    map[string]ast.Const
	warnings []*util.Error
}

type bailout struct{ err *util.Error }

func NewTypeChecker(cfg *config.Config, symbols *symtab.Table, pool *intern.Pool) *TypeChecker {
	return &TypeChecker{
		cfg:     cfg,
		symbols: symbols,
		pool:    pool,
		types:   make(ast.TypeMap),
		cases:   make(map[string]ast.Const),
	}
}

// Warnings returns the diagnostics that did not stop the check.
func (tc *TypeChecker) Warnings() []*util.Error { return tc.warnings }

// Check type-checks a resolved program. It returns a new tree in which every
// implicit conversion is an explicit Cast, together with the type of every
// expression. Declarations are recorded in the symbol table.
func (tc *TypeChecker) Check(prog *ast.Program) (out *ast.Program, types ast.TypeMap, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			out, types, err = nil, nil, b.err
		}
	}()

	tc.nextID = prog.NextID
	out = &ast.Program{}
	for _, d := range prog.Decls {
		switch d := d.(type) {
		case *ast.FuncDecl:
			out.Decls = append(out.Decls, tc.checkFuncDecl(d))
		case *ast.VarDecl:
			out.Decls = append(out.Decls, tc.checkFileVarDecl(d))
		case *ast.StructDecl:
			out.Decls = append(out.Decls, tc.checkStructDecl(d))
		}
	}
	out.NextID = tc.nextID
	return out, tc.types, nil
}

func (tc *TypeChecker) errorf(reason util.Reason, span token.Span, format string, args ...any) {
	e := util.TypeErrorf(reason, span, format, args...)
	e.Msg = tc.pool.Unmangle(e.Msg)
	panic(bailout{e})
}

func (tc *TypeChecker) warn(wt config.Warning, span token.Span, format string, args ...any) {
	if w := util.Warn(tc.cfg, wt, span, format, args...); w != nil {
		w.Msg = tc.pool.Unmangle(w.Msg)
		tc.warnings = append(tc.warnings, w)
	}
}

func (tc *TypeChecker) newMeta(span token.Span) ast.Meta {
	id := tc.nextID
	tc.nextID++
	return ast.Meta{ID: id, Span: span}
}

func (tc *TypeChecker) typeOf(e ast.Expr) ast.Type { return tc.types[e.NodeID()] }

func (tc *TypeChecker) setType(e ast.Expr, t ast.Type) ast.Expr {
	tc.types[e.NodeID()] = t
	return e
}

// validateType rejects array types whose element type is incomplete.
func (tc *TypeChecker) validateType(t ast.Type, span token.Span) {
	switch t := t.(type) {
	case ast.Array:
		if !tc.symbols.IsComplete(t.Elem) {
			tc.errorf(util.ReasonIncomplete, span, "array has incomplete element type '%s'", t.Elem)
		}
		tc.validateType(t.Elem, span)
	case ast.Pointer:
		tc.validateType(t.Ref, span)
	case ast.FunType:
		tc.validateType(t.Ret, span)
		for _, p := range t.Params {
			tc.validateType(p, span)
		}
	}
}

func (tc *TypeChecker) requireComplete(t ast.Type, span token.Span, what string) {
	if !tc.symbols.IsComplete(t) {
		tc.errorf(util.ReasonIncomplete, span, "%s has incomplete type '%s'", what, t)
	}
}

// Structure declarations

func (tc *TypeChecker) checkStructDecl(d *ast.StructDecl) *ast.StructDecl {
	if d.Members == nil {
		return d
	}
	if _, ok := tc.symbols.Struct(d.Tag); ok {
		tc.errorf(util.ReasonConflict, d.Span, "redefinition of '%s'", ast.Struct{Tag: d.Tag, Union: d.Union})
	}
	seen := make(map[string]bool)
	names := make([]string, len(d.Members))
	types := make([]ast.Type, len(d.Members))
	for i, m := range d.Members {
		if seen[m.Name] {
			tc.errorf(util.ReasonDuplicateMember, m.Span, "duplicate member '%s'", m.Name)
		}
		seen[m.Name] = true
		tc.validateType(m.Type, m.Span)
		if _, isFun := m.Type.(ast.FunType); isFun {
			tc.errorf(util.ReasonInvalidOperand, m.Span, "member '%s' declared as a function", m.Name)
		}
		tc.requireComplete(m.Type, m.Span, "member '"+m.Name+"'")
		names[i], types[i] = m.Name, m.Type
	}
	tc.symbols.AddStruct(tc.symbols.Layout(d.Tag, d.Union, names, types))
	return d
}

// Function declarations

// adjustParam turns array parameters into pointers.
func adjustParam(t ast.Type) ast.Type {
	if a, ok := t.(ast.Array); ok {
		return ast.Pointer{Ref: a.Elem}
	}
	return t
}

func (tc *TypeChecker) checkFuncDecl(d *ast.FuncDecl) *ast.FuncDecl {
	fn := ast.FunType{Ret: d.Type.Ret}
	if _, ok := fn.Ret.(ast.Array); ok {
		tc.errorf(util.ReasonIncompatible, d.Span, "function '%s' cannot return an array", d.Name)
	}
	for _, p := range d.Type.Params {
		if _, ok := p.(ast.Void); ok {
			tc.errorf(util.ReasonIncomplete, d.Span, "parameter of '%s' has void type", d.Name)
		}
		fn.Params = append(fn.Params, adjustParam(p))
	}
	tc.validateType(fn, d.Span)

	defined := d.Body != nil
	global := d.Storage != ast.Static
	if old, ok := tc.symbols.Lookup(d.Name); ok {
		oldFn, isFun := old.Type.(ast.FunType)
		if !isFun || !ast.Equal(oldFn, fn) {
			tc.errorf(util.ReasonConflict, d.Span, "conflicting types for '%s'", d.Name)
		}
		attrs := old.Attrs.(symtab.FunAttr)
		if attrs.Defined && defined {
			tc.errorf(util.ReasonConflict, d.Span, "redefinition of '%s'", d.Name)
		}
		if attrs.Global && d.Storage == ast.Static {
			tc.errorf(util.ReasonConflict, d.Span, "static declaration of '%s' follows non-static declaration", d.Name)
		}
		global = attrs.Global
		defined = defined || attrs.Defined
	}
	tc.symbols.Add(d.Name, fn, symtab.FunAttr{Defined: defined, Global: global})

	out := &ast.FuncDecl{Name: d.Name, Type: fn, Params: d.Params, Storage: d.Storage, Span: d.Span}
	if d.Body == nil {
		return out
	}
	if _, isVoid := fn.Ret.(ast.Void); !isVoid {
		tc.requireComplete(fn.Ret, d.Span, "return value of '"+d.Name+"'")
	}
	for i, p := range d.Params {
		tc.requireComplete(fn.Params[i], d.Span, "parameter '"+p+"'")
		tc.symbols.AddLocal(p, fn.Params[i])
	}
	tc.retType = fn.Ret
	out.Body = tc.checkBlock(d.Body)
	tc.retType = nil
	return out
}

// Variable declarations

func (tc *TypeChecker) checkFileVarDecl(d *ast.VarDecl) *ast.VarDecl {
	tc.validateType(d.Type, d.Span)
	if _, ok := d.Type.(ast.Void); ok {
		tc.errorf(util.ReasonIncomplete, d.Span, "variable '%s' declared void", d.Name)
	}
	if d.Storage != ast.Extern || d.Init != nil {
		tc.requireComplete(d.Type, d.Span, "variable '"+d.Name+"'")
	}

	var init symtab.InitialValue
	switch {
	case d.Init != nil:
		init.Kind = symtab.Initialized
	case d.Storage == ast.Extern:
		init.Kind = symtab.NoInitializer
	default:
		init.Kind = symtab.Tentative
	}

	global := d.Storage != ast.Static
	if old, ok := tc.symbols.Lookup(d.Name); ok {
		attrs, isStatic := old.Attrs.(symtab.StaticAttr)
		if !isStatic {
			tc.errorf(util.ReasonConflict, d.Span, "'%s' redeclared as a different kind of symbol", d.Name)
		}
		if !ast.Equal(old.Type, d.Type) {
			tc.errorf(util.ReasonConflict, d.Span, "conflicting types for '%s'", d.Name)
		}
		if d.Storage == ast.Extern {
			global = attrs.Global
		} else if attrs.Global != global {
			tc.errorf(util.ReasonConflict, d.Span, "conflicting linkage for '%s'", d.Name)
		}
		switch {
		case attrs.Init.Kind == symtab.Initialized:
			if init.Kind == symtab.Initialized {
				tc.errorf(util.ReasonConflict, d.Span, "redefinition of '%s'", d.Name)
			}
			init = attrs.Init
		case attrs.Init.Kind == symtab.Tentative && init.Kind != symtab.Initialized:
			init = attrs.Init
		}
	}
	// The entry exists before the initializer is evaluated so that it may take the
	// variable's own address.
	tc.symbols.Add(d.Name, d.Type, symtab.StaticAttr{Init: init, Global: global})
	if d.Init != nil {
		init.Inits = tc.staticInit(d.Type, d.Init)
		tc.symbols.Add(d.Name, d.Type, symtab.StaticAttr{Init: init, Global: global})
	}
	return &ast.VarDecl{Name: d.Name, Type: d.Type, Storage: d.Storage, Span: d.Span}
}

func (tc *TypeChecker) checkLocalVarDecl(d *ast.VarDecl) *ast.VarDecl {
	tc.validateType(d.Type, d.Span)
	if _, ok := d.Type.(ast.Void); ok {
		tc.errorf(util.ReasonIncomplete, d.Span, "variable '%s' declared void", d.Name)
	}
	out := &ast.VarDecl{Name: d.Name, Type: d.Type, Storage: d.Storage, Span: d.Span}

	switch d.Storage {
	case ast.Extern:
		if d.Init != nil {
			tc.errorf(util.ReasonInitializer, d.Span, "'extern' variable '%s' has an initializer", d.Name)
		}
		if old, ok := tc.symbols.Lookup(d.Name); ok {
			if _, isStatic := old.Attrs.(symtab.StaticAttr); !isStatic {
				tc.errorf(util.ReasonConflict, d.Span, "'%s' redeclared as a different kind of symbol", d.Name)
			}
			if !ast.Equal(old.Type, d.Type) {
				tc.errorf(util.ReasonConflict, d.Span, "conflicting types for '%s'", d.Name)
			}
			return out
		}
		tc.symbols.Add(d.Name, d.Type, symtab.StaticAttr{Init: symtab.InitialValue{Kind: symtab.NoInitializer}, Global: true})
		return out

	case ast.Static:
		tc.requireComplete(d.Type, d.Span, "variable '"+d.Name+"'")
		inits := []symtab.StaticInit{symtab.ZeroInit{N: tc.symbols.SizeOf(d.Type)}}
		tc.symbols.Add(d.Name, d.Type, symtab.StaticAttr{Init: symtab.InitialValue{Kind: symtab.Initialized, Inits: inits}})
		if d.Init != nil {
			inits = tc.staticInit(d.Type, d.Init)
			tc.symbols.Add(d.Name, d.Type, symtab.StaticAttr{Init: symtab.InitialValue{Kind: symtab.Initialized, Inits: inits}})
		}
		return out
	}

	tc.requireComplete(d.Type, d.Span, "variable '"+d.Name+"'")
	tc.symbols.AddLocal(d.Name, d.Type)
	if d.Init != nil {
		out.Init = tc.checkInit(d.Type, d.Init)
	}
	return out
}
