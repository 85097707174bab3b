package typeChecker

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/symtab"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

func isCharArray(t ast.Type) (ast.Array, bool) {
	a, ok := t.(ast.Array)
	return a, ok && ast.IsCharacter(a.Elem)
}

func (tc *TypeChecker) checkStringFits(s *ast.String, a ast.Array) {
	if int64(len(s.Value)) > a.Size {
		tc.errorf(util.ReasonInitializer, s.Span, "initializer-string for char array is too long (%d chars into %d)", len(s.Value), a.Size)
	}
}

// checkInit checks the initializer of an automatic object of type t. Elements that
// a compound initializer leaves out are zero-filled during lowering.
func (tc *TypeChecker) checkInit(t ast.Type, init ast.Initializer) ast.Initializer {
	switch init := init.(type) {
	case *ast.SingleInit:
		if s, ok := init.Expr.(*ast.String); ok {
			if a, ok := isCharArray(t); ok {
				tc.checkStringFits(s, a)
				return &ast.SingleInit{Expr: tc.checkExpr(s)}
			}
		}
		if _, ok := t.(ast.Array); ok {
			tc.errorf(util.ReasonInitializer, init.InitSpan(), "array must be initialized with a brace-enclosed initializer")
		}
		return &ast.SingleInit{Expr: tc.convertByAssignment(tc.checkAndConvert(init.Expr), t, "initialization")}

	case *ast.CompoundInit:
		out := &ast.CompoundInit{Span: init.Span, Inits: make([]ast.Initializer, len(init.Inits))}
		switch t := t.(type) {
		case ast.Array:
			if int64(len(init.Inits)) > t.Size {
				tc.errorf(util.ReasonInitializer, init.Span, "excess elements in array initializer")
			}
			for i, sub := range init.Inits {
				out.Inits[i] = tc.checkInit(t.Elem, sub)
			}
		case ast.Struct:
			def := tc.structDef(t, init.Span)
			if len(init.Inits) > len(def.Members) || t.Union && len(init.Inits) > 1 {
				tc.errorf(util.ReasonInitializer, init.Span, "excess elements in %s initializer", t)
			}
			for i, sub := range init.Inits {
				out.Inits[i] = tc.checkInit(def.Members[i].Type, sub)
			}
		default:
			tc.errorf(util.ReasonInitializer, init.Span, "compound initializer for scalar type '%s'", t)
		}
		return out
	}
	return init
}

func (tc *TypeChecker) structDef(t ast.Struct, span token.Span) *symtab.StructDef {
	def, ok := tc.symbols.Struct(t.Tag)
	if !ok {
		tc.errorf(util.ReasonIncomplete, span, "initializing incomplete type '%s'", t)
	}
	return def
}

// staticInit evaluates the initializer of an object with static storage duration.
func (tc *TypeChecker) staticInit(t ast.Type, init ast.Initializer) []symtab.StaticInit {
	return mergeZeros(tc.staticInitList(t, init))
}

func (tc *TypeChecker) staticInitList(t ast.Type, init ast.Initializer) []symtab.StaticInit {
	switch init := init.(type) {
	case *ast.SingleInit:
		if s, ok := init.Expr.(*ast.String); ok {
			if a, ok := isCharArray(t); ok {
				tc.checkStringFits(s, a)
				out := []symtab.StaticInit{symtab.StringInit{Value: s.Value, NullTerminated: int64(len(s.Value)) < a.Size}}
				if pad := a.Size - int64(len(s.Value)) - 1; pad > 0 {
					out = append(out, symtab.ZeroInit{N: pad})
				}
				return out
			}
			if p, ok := t.(ast.Pointer); ok && ast.Equal(p.Ref, ast.Char{}) {
				tc.checkExpr(s)
				return []symtab.StaticInit{symtab.PointerInit{Name: tc.symbols.AddString(tc.pool, s.Value)}}
			}
		}
		switch t.(type) {
		case ast.Array, ast.Struct:
			tc.errorf(util.ReasonInitializer, init.InitSpan(), "initializer for '%s' must be brace-enclosed", t)
		}
		typed := tc.convertByAssignment(tc.checkAndConvert(init.Expr), t, "initialization")
		if ast.IsPointer(t) {
			return []symtab.StaticInit{tc.staticAddress(typed)}
		}
		c, ok := tc.evalConst(typed)
		if !ok {
			tc.errorf(util.ReasonInitializer, init.InitSpan(), "initializer element is not a compile-time constant")
		}
		c = ast.Convert(c, t)
		ci := symtab.ConstInit{Value: c}
		if symtab.IsZero([]symtab.StaticInit{ci}) {
			return []symtab.StaticInit{symtab.ZeroInit{N: tc.symbols.SizeOf(t)}}
		}
		return []symtab.StaticInit{ci}

	case *ast.CompoundInit:
		var out []symtab.StaticInit
		switch t := t.(type) {
		case ast.Array:
			if int64(len(init.Inits)) > t.Size {
				tc.errorf(util.ReasonInitializer, init.Span, "excess elements in array initializer")
			}
			for _, sub := range init.Inits {
				out = append(out, tc.staticInitList(t.Elem, sub)...)
			}
			if rest := t.Size - int64(len(init.Inits)); rest > 0 {
				out = append(out, symtab.ZeroInit{N: rest * tc.symbols.SizeOf(t.Elem)})
			}
		case ast.Struct:
			def := tc.structDef(t, init.Span)
			if len(init.Inits) > len(def.Members) || t.Union && len(init.Inits) > 1 {
				tc.errorf(util.ReasonInitializer, init.Span, "excess elements in %s initializer", t)
			}
			var offset int64
			for i, sub := range init.Inits {
				m := def.Members[i]
				if m.Offset > offset {
					out = append(out, symtab.ZeroInit{N: m.Offset - offset})
				}
				out = append(out, tc.staticInitList(m.Type, sub)...)
				offset = m.Offset + tc.symbols.SizeOf(m.Type)
			}
			if def.Size > offset {
				out = append(out, symtab.ZeroInit{N: def.Size - offset})
			}
		default:
			tc.errorf(util.ReasonInitializer, init.Span, "compound initializer for scalar type '%s'", t)
		}
		return out
	}
	return nil
}

// staticAddress evaluates a pointer initializer: a null pointer constant, or the
// address of an object with static storage duration.
func (tc *TypeChecker) staticAddress(e ast.Expr) symtab.StaticInit {
	if tc.isNullPointerConstant(e) {
		return symtab.ZeroInit{N: 8}
	}
	inner := e
	for {
		c, ok := inner.(*ast.Cast)
		if !ok || !ast.IsPointer(tc.typeOf(c.Expr)) {
			break
		}
		inner = c.Expr
	}
	if addr, ok := inner.(*ast.AddressOf); ok {
		switch target := addr.Expr.(type) {
		case *ast.Var:
			if tc.symbols.IsStatic(target.Name) {
				return symtab.PointerInit{Name: target.Name}
			}
		case *ast.String:
			return symtab.PointerInit{Name: tc.symbols.AddString(tc.pool, target.Value)}
		}
	}
	if c, ok := tc.evalConst(e); ok && ast.IsZero(c) {
		return symtab.ZeroInit{N: 8}
	}
	tc.errorf(util.ReasonInitializer, e.NodeSpan(), "initializer element is not a compile-time constant")
	return nil
}

// evalConst folds a typed constant expression.
func (tc *TypeChecker) evalConst(e ast.Expr) (ast.Const, bool) {
	switch e := e.(type) {
	case *ast.Constant:
		return e.Value, true
	case *ast.Cast:
		v, ok := tc.evalConst(e.Expr)
		if !ok || !ast.IsScalar(e.Target) {
			return nil, false
		}
		return ast.Convert(v, e.Target), true
	case *ast.Unary:
		v, ok := tc.evalConst(e.Expr)
		if !ok {
			return nil, false
		}
		return ast.EvalUnary(e.Op, v)
	case *ast.Binary:
		if ast.IsPointer(tc.typeOf(e)) {
			return nil, false
		}
		l, ok := tc.evalConst(e.Left)
		if !ok {
			return nil, false
		}
		if e.Op == ast.And && ast.IsZero(l) {
			return ast.ConstInt{V: 0}, true
		}
		if e.Op == ast.Or && !ast.IsZero(l) {
			return ast.ConstInt{V: 1}, true
		}
		r, ok := tc.evalConst(e.Right)
		if !ok {
			return nil, false
		}
		if e.Op == ast.And || e.Op == ast.Or {
			return ast.ConstInt{V: int32(b2i(!ast.IsZero(r)))}, true
		}
		return ast.EvalBinary(e.Op, l, r)
	case *ast.Conditional:
		c, ok := tc.evalConst(e.Cond)
		if !ok {
			return nil, false
		}
		if !ast.IsZero(c) {
			return tc.evalConst(e.Then)
		}
		return tc.evalConst(e.Else)
	case *ast.SizeOfType:
		return ast.ConstULong{V: uint64(tc.symbols.SizeOf(e.Type))}, true
	case *ast.SizeOfExpr:
		return ast.ConstULong{V: uint64(tc.symbols.SizeOf(tc.typeOf(e.Expr)))}, true
	}
	return nil, false
}

func b2i(b bool) int {
	if b {
		return 1
	}
	return 0
}

// mergeZeros joins adjacent zero runs.
func mergeZeros(inits []symtab.StaticInit) []symtab.StaticInit {
	var out []symtab.StaticInit
	for _, i := range inits {
		if z, ok := i.(symtab.ZeroInit); ok {
			if z.N == 0 {
				continue
			}
			if n := len(out); n > 0 {
				if prev, ok := out[n-1].(symtab.ZeroInit); ok {
					out[n-1] = symtab.ZeroInit{N: prev.N + z.N}
					continue
				}
			}
		}
		out = append(out, i)
	}
	return out
}
