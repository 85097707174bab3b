package codegen

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
	"github.com/xplshn/xcc/pkg/token"
	"github.com/xplshn/xcc/pkg/util"
)

// result is the outcome of lowering an expression: a value, or an object that has
// not been read yet.
type result interface{ isResult() }

type (
	plain     struct{ val ir.Value }
	deref     struct{ ptr ir.Value }
	subObject struct {
		base   string
		offset int64
	}
)

func (plain) isResult()     {}
func (deref) isResult()     {}
func (subObject) isResult() {}

// Context lowers one type-checked program to TAC. Temporaries and string
// constants are added to the symbol table as they are created.
type Context struct {
	cfg     *config.Config
	symbols *symtab.Table
	pool    *intern.Pool
	types   ast.TypeMap
	prog    *ir.Program
	body    []*ir.Instruction
}

type bailout struct{ err *util.Error }

func NewContext(cfg *config.Config, symbols *symtab.Table, pool *intern.Pool, types ast.TypeMap) *Context {
	return &Context{cfg: cfg, symbols: symbols, pool: pool, types: types}
}

// GenerateIR lowers every function definition and collects the static objects
// recorded in the symbol table.
func (ctx *Context) GenerateIR(prog *ast.Program) (out *ir.Program, err error) {
	defer func() {
		if r := recover(); r != nil {
			b, ok := r.(bailout)
			if !ok {
				panic(r)
			}
			out, err = nil, b.err
		}
	}()

	ctx.prog = &ir.Program{Symbols: ctx.symbols}
	for _, d := range prog.Decls {
		if f, ok := d.(*ast.FuncDecl); ok && f.Body != nil {
			ctx.prog.Funcs = append(ctx.prog.Funcs, ctx.genFunc(f))
		}
	}
	ctx.genStatics()
	return ctx.prog, nil
}

func (ctx *Context) errorf(span token.Span, format string, args ...any) {
	panic(bailout{util.Errorf(util.CodegenError, span, format, args...)})
}

func (ctx *Context) emit(instr *ir.Instruction) { ctx.body = append(ctx.body, instr) }

func (ctx *Context) typeOf(e ast.Expr) ast.Type { return ctx.types[e.NodeID()] }

func (ctx *Context) newTemp(t ast.Type) ir.Var {
	name := ctx.pool.Fresh("tmp")
	ctx.symbols.AddLocal(name, t)
	return ir.Var{Name: name}
}

func (ctx *Context) newLabel(prefix string) string { return ctx.pool.Fresh(prefix) }

func breakLabel(label string) string    { return "break_" + label }
func continueLabel(label string) string { return "continue_" + label }

func (ctx *Context) genFunc(d *ast.FuncDecl) *ir.Func {
	ctx.body = nil
	ctx.block(d.Body)
	if n := len(ctx.body); n == 0 || ctx.body[n-1].Op != ir.OpRet {
		ctx.emit(ir.Ret(ctx.zeroValue(d.Type.Ret)))
	}
	global := true
	if e, ok := ctx.symbols.Lookup(d.Name); ok {
		if attrs, ok := e.Attrs.(symtab.FunAttr); ok {
			global = attrs.Global
		}
	}
	return &ir.Func{Name: d.Name, Global: global, Params: d.Params, Body: ctx.body}
}

// zeroValue is what a function returns when control reaches its closing brace.
func (ctx *Context) zeroValue(t ast.Type) ir.Value {
	switch t.(type) {
	case ast.Void:
		return nil
	case ast.Struct:
		return ctx.newTemp(t)
	}
	return ir.Const{Value: ast.Convert(ast.ConstInt{V: 0}, t)}
}

// Statements

func (ctx *Context) block(b *ast.Block) {
	for _, item := range b.Items {
		switch item := item.(type) {
		case *ast.VarDecl:
			ctx.localVar(item)
		case ast.Stmt:
			ctx.stmt(item)
		}
	}
}

func (ctx *Context) localVar(d *ast.VarDecl) {
	if d.Storage != ast.NoStorage || d.Init == nil {
		return
	}
	ctx.initialize(d.Name, d.Type, 0, d.Init, true)
}

func (ctx *Context) stmt(s ast.Stmt) {
	switch s := s.(type) {
	case *ast.Return:
		var v ir.Value
		if s.Expr != nil {
			v = ctx.value(s.Expr)
		}
		ctx.emit(ir.Ret(v))
	case *ast.ExprStmt:
		ctx.expr(s.Expr)
	case *ast.If:
		c := ctx.value(s.Cond)
		end := ctx.newLabel("if_end")
		if s.Else == nil {
			ctx.emit(ir.Jz(c, end))
			ctx.stmt(s.Then)
		} else {
			els := ctx.newLabel("if_else")
			ctx.emit(ir.Jz(c, els))
			ctx.stmt(s.Then)
			ctx.emit(ir.Jmp(end))
			ctx.emit(ir.NewLabel(els))
			ctx.stmt(s.Else)
		}
		ctx.emit(ir.NewLabel(end))
	case *ast.Compound:
		ctx.block(s.Block)
	case *ast.Break:
		ctx.emit(ir.Jmp(breakLabel(s.Label)))
	case *ast.Continue:
		ctx.emit(ir.Jmp(continueLabel(s.Label)))
	case *ast.While:
		ctx.emit(ir.NewLabel(continueLabel(s.Label)))
		ctx.emit(ir.Jz(ctx.value(s.Cond), breakLabel(s.Label)))
		ctx.stmt(s.Body)
		ctx.emit(ir.Jmp(continueLabel(s.Label)))
		ctx.emit(ir.NewLabel(breakLabel(s.Label)))
	case *ast.DoWhile:
		start := "start_" + s.Label
		ctx.emit(ir.NewLabel(start))
		ctx.stmt(s.Body)
		ctx.emit(ir.NewLabel(continueLabel(s.Label)))
		ctx.emit(ir.Jnz(ctx.value(s.Cond), start))
		ctx.emit(ir.NewLabel(breakLabel(s.Label)))
	case *ast.For:
		switch fi := s.Init.(type) {
		case *ast.InitDecl:
			ctx.localVar(fi.Decl)
		case *ast.InitExpr:
			if fi.Expr != nil {
				ctx.expr(fi.Expr)
			}
		}
		start := "start_" + s.Label
		ctx.emit(ir.NewLabel(start))
		if s.Cond != nil {
			ctx.emit(ir.Jz(ctx.value(s.Cond), breakLabel(s.Label)))
		}
		ctx.stmt(s.Body)
		ctx.emit(ir.NewLabel(continueLabel(s.Label)))
		if s.Post != nil {
			ctx.expr(s.Post)
		}
		ctx.emit(ir.Jmp(start))
		ctx.emit(ir.NewLabel(breakLabel(s.Label)))
	case *ast.Switch:
		ctx.switchStmt(s)
	case *ast.Case:
		ctx.emit(ir.NewLabel(s.Label))
		ctx.stmt(s.Body)
	case *ast.Default:
		ctx.emit(ir.NewLabel(s.Label))
		ctx.stmt(s.Body)
	case *ast.Labeled:
		ctx.emit(ir.NewLabel(s.Name))
		ctx.stmt(s.Body)
	case *ast.Goto:
		ctx.emit(ir.Jmp(s.Name))
	case *ast.Null:
	default:
		ctx.errorf(token.Span{}, "unexpected statement %T", s)
	}
}

// switchStmt compares the controlling value against each case in turn. A zero
// difference selects the case.
func (ctx *Context) switchStmt(s *ast.Switch) {
	v := ctx.value(s.Expr)
	t := ctx.typeOf(s.Expr)
	fallback := breakLabel(s.Label)
	for _, c := range s.Cases {
		if c.Value == nil {
			fallback = c.Label
			continue
		}
		diff := ctx.newTemp(t)
		ctx.emit(ir.Binary(ir.OpSub, v, ir.Const{Value: c.Value}, diff))
		ctx.emit(ir.Jz(diff, c.Label))
	}
	ctx.emit(ir.Jmp(fallback))
	ctx.stmt(s.Body)
	ctx.emit(ir.NewLabel(breakLabel(s.Label)))
}

// Expressions

// value lowers e and reads the result.
func (ctx *Context) value(e ast.Expr) ir.Value {
	return ctx.load(ctx.expr(e), ctx.typeOf(e))
}

func (ctx *Context) load(r result, t ast.Type) ir.Value {
	switch r := r.(type) {
	case deref:
		dst := ctx.newTemp(t)
		ctx.emit(ir.Unary(ir.OpLoad, r.ptr, dst))
		return dst
	case subObject:
		dst := ctx.newTemp(t)
		ctx.emit(ir.CopyFromOffset(r.base, r.offset, dst))
		return dst
	}
	return r.(plain).val
}

func (ctx *Context) assign(lhs result, v ir.Value) {
	switch l := lhs.(type) {
	case plain:
		ctx.emit(ir.Copy(v, l.val))
	case deref:
		ctx.emit(ir.Store(v, l.ptr))
	case subObject:
		ctx.emit(ir.CopyToOffset(v, l.base, l.offset))
	}
}

// offsetPtr adds a byte offset to a pointer.
func (ctx *Context) offsetPtr(ptr ir.Value, offset int64, t ast.Type) ir.Value {
	if offset == 0 {
		return ptr
	}
	dst := ctx.newTemp(t)
	ctx.emit(ir.AddPtr(ptr, ir.Const{Value: ast.ConstLong{V: offset}}, 1, dst))
	return dst
}

func (ctx *Context) memberOffset(t ast.Type, field string, span token.Span) int64 {
	st, _ := t.(ast.Struct)
	def, ok := ctx.symbols.Struct(st.Tag)
	if !ok {
		ctx.errorf(span, "member access into incomplete type '%s'", t)
	}
	m, _ := def.Member(field)
	return m.Offset
}

func (ctx *Context) expr(e ast.Expr) result {
	switch e := e.(type) {
	case *ast.Constant:
		return plain{ir.Const{Value: e.Value}}
	case *ast.String:
		return plain{ir.Var{Name: ctx.symbols.AddString(ctx.pool, e.Value)}}
	case *ast.Var:
		return plain{ir.Var{Name: e.Name}}
	case *ast.Cast:
		if _, isVoid := e.Target.(ast.Void); isVoid {
			ctx.expr(e.Expr)
			return plain{nil}
		}
		return plain{ctx.convert(ctx.value(e.Expr), ctx.typeOf(e.Expr), e.Target)}
	case *ast.Unary:
		return ctx.unary(e)
	case *ast.Postfix:
		return ctx.incDec(e.Expr, e.Op == ast.PostInc, true, e.OpType)
	case *ast.Binary:
		return ctx.binary(e)
	case *ast.Assignment:
		return ctx.assignment(e)
	case *ast.Conditional:
		return ctx.conditional(e)
	case *ast.FunctionCall:
		args := make([]ir.Value, len(e.Args))
		for i, a := range e.Args {
			args[i] = ctx.value(a)
		}
		var dst ir.Value
		if _, isVoid := ctx.typeOf(e).(ast.Void); !isVoid {
			dst = ctx.newTemp(ctx.typeOf(e))
		}
		ctx.emit(ir.Call(e.Name, args, dst))
		return plain{dst}
	case *ast.AddressOf:
		switch r := ctx.expr(e.Expr).(type) {
		case plain:
			dst := ctx.newTemp(ctx.typeOf(e))
			ctx.emit(ir.Unary(ir.OpAddr, r.val, dst))
			return plain{dst}
		case deref:
			return plain{r.ptr}
		case subObject:
			base := ctx.newTemp(ctx.typeOf(e))
			ctx.emit(ir.Unary(ir.OpAddr, ir.Var{Name: r.base}, base))
			return plain{ctx.offsetPtr(base, r.offset, ctx.typeOf(e))}
		}
	case *ast.Dereference:
		return deref{ctx.value(e.Expr)}
	case *ast.Subscript:
		ptr, idx := ctx.value(e.Left), ctx.value(e.Index)
		pt := ctx.typeOf(e.Left)
		if !ast.IsPointer(pt) {
			ptr, idx, pt = idx, ptr, ctx.typeOf(e.Index)
		}
		dst := ctx.newTemp(pt)
		ctx.emit(ir.AddPtr(ptr, idx, ctx.symbols.SizeOf(pt.(ast.Pointer).Ref), dst))
		return deref{dst}
	case *ast.SizeOfType:
		return plain{ir.Const{Value: ast.ConstULong{V: uint64(ctx.symbols.SizeOf(e.Type))}}}
	case *ast.SizeOfExpr:
		return plain{ir.Const{Value: ast.ConstULong{V: uint64(ctx.symbols.SizeOf(ctx.typeOf(e.Expr)))}}}
	case *ast.Member:
		offset := ctx.memberOffset(ctx.typeOf(e.Expr), e.Field, e.Span)
		switch r := ctx.expr(e.Expr).(type) {
		case plain:
			return subObject{r.val.(ir.Var).Name, offset}
		case subObject:
			return subObject{r.base, r.offset + offset}
		case deref:
			return deref{ctx.offsetPtr(r.ptr, offset, ast.Pointer{Ref: ctx.typeOf(e)})}
		}
	case *ast.Arrow:
		ptr := ctx.value(e.Expr)
		offset := ctx.memberOffset(ctx.typeOf(e.Expr).(ast.Pointer).Ref, e.Field, e.Span)
		return deref{ctx.offsetPtr(ptr, offset, ast.Pointer{Ref: ctx.typeOf(e)})}
	}
	ctx.errorf(e.NodeSpan(), "unexpected expression %T", e)
	return nil
}

var unaryOps = map[ast.UnaryOp]ir.Op{
	ast.Negate:     ir.OpNeg,
	ast.Complement: ir.OpCom,
	ast.Not:        ir.OpNot,
}

var binaryOps = map[ast.BinaryOp]ir.Op{
	ast.Add: ir.OpAdd, ast.Subtract: ir.OpSub, ast.Multiply: ir.OpMul,
	ast.Divide: ir.OpDiv, ast.Remainder: ir.OpRem,
	ast.BitAnd: ir.OpAnd, ast.BitOr: ir.OpOr, ast.BitXor: ir.OpXor,
	ast.ShiftLeft: ir.OpShl, ast.ShiftRight: ir.OpShr,
	ast.EqualTo: ir.OpCEq, ast.NotEqualTo: ir.OpCNeq,
	ast.LessThan: ir.OpCLt, ast.LessOrEqual: ir.OpCLe,
	ast.GreaterThan: ir.OpCGt, ast.GreaterOrEqual: ir.OpCGe,
}

func (ctx *Context) unary(e *ast.Unary) result {
	switch e.Op {
	case ast.PreInc, ast.PreDec:
		return ctx.incDec(e.Expr, e.Op == ast.PreInc, false, e.OpType)
	case ast.Plus:
		return plain{ctx.value(e.Expr)}
	}
	src := ctx.value(e.Expr)
	dst := ctx.newTemp(ctx.typeOf(e))
	ctx.emit(ir.Unary(unaryOps[e.Op], src, dst))
	return plain{dst}
}

// incDec lowers ++ and --. The object is read once; a postfix form yields the
// value it had before the update.
func (ctx *Context) incDec(target ast.Expr, inc, post bool, opType ast.Type) result {
	lhs := ctx.expr(target)
	t := ctx.typeOf(target)
	cur := ctx.load(lhs, t)
	if _, isPlain := lhs.(plain); isPlain && post {
		saved := ctx.newTemp(t)
		ctx.emit(ir.Copy(cur, saved))
		cur = saved
	}

	var next ir.Value
	if p, ok := t.(ast.Pointer); ok {
		step := int64(1)
		if !inc {
			step = -1
		}
		n := ctx.newTemp(t)
		ctx.emit(ir.AddPtr(cur, ir.Const{Value: ast.ConstLong{V: step}}, ctx.symbols.SizeOf(p.Ref), n))
		next = n
	} else {
		op := ir.OpAdd
		if !inc {
			op = ir.OpSub
		}
		one := ir.Const{Value: ast.Convert(ast.ConstInt{V: 1}, opType)}
		n := ctx.newTemp(opType)
		ctx.emit(ir.Binary(op, ctx.convert(cur, t, opType), one, n))
		next = ctx.convert(n, opType, t)
	}
	ctx.assign(lhs, next)
	if post {
		return plain{cur}
	}
	return plain{next}
}

func (ctx *Context) binary(e *ast.Binary) result {
	if e.Op == ast.And || e.Op == ast.Or {
		return ctx.logical(e)
	}
	lt, rt := ctx.typeOf(e.Left), ctx.typeOf(e.Right)
	a, b := ctx.value(e.Left), ctx.value(e.Right)
	t := ctx.typeOf(e)

	switch {
	case ast.IsPointer(t):
		ptr, idx, pt := a, b, lt
		if ast.IsPointer(rt) {
			ptr, idx, pt = b, a, rt
		}
		if e.Op == ast.Subtract {
			neg := ctx.newTemp(ast.Long{})
			ctx.emit(ir.Unary(ir.OpNeg, idx, neg))
			idx = neg
		}
		dst := ctx.newTemp(t)
		ctx.emit(ir.AddPtr(ptr, idx, ctx.symbols.SizeOf(pt.(ast.Pointer).Ref), dst))
		return plain{dst}
	case e.Op == ast.Subtract && ast.IsPointer(lt):
		diff := ctx.newTemp(ast.Long{})
		ctx.emit(ir.Binary(ir.OpSub, a, b, diff))
		dst := ctx.newTemp(ast.Long{})
		size := ctx.symbols.SizeOf(lt.(ast.Pointer).Ref)
		ctx.emit(ir.Binary(ir.OpDiv, diff, ir.Const{Value: ast.ConstLong{V: size}}, dst))
		return plain{dst}
	}
	dst := ctx.newTemp(t)
	ctx.emit(ir.Binary(binaryOps[e.Op], a, b, dst))
	return plain{dst}
}

// logical lowers && and || to jumps; the right operand is evaluated only when the
// left one does not decide the result.
func (ctx *Context) logical(e *ast.Binary) result {
	dst := ctx.newTemp(ast.Int{})
	zero, one := ir.Const{Value: ast.ConstInt{V: 0}}, ir.Const{Value: ast.ConstInt{V: 1}}
	if e.Op == ast.And {
		short, end := ctx.newLabel("and_false"), ctx.newLabel("and_end")
		ctx.emit(ir.Jz(ctx.value(e.Left), short))
		ctx.emit(ir.Jz(ctx.value(e.Right), short))
		ctx.emit(ir.Copy(one, dst))
		ctx.emit(ir.Jmp(end))
		ctx.emit(ir.NewLabel(short))
		ctx.emit(ir.Copy(zero, dst))
		ctx.emit(ir.NewLabel(end))
		return plain{dst}
	}
	short, end := ctx.newLabel("or_true"), ctx.newLabel("or_end")
	ctx.emit(ir.Jnz(ctx.value(e.Left), short))
	ctx.emit(ir.Jnz(ctx.value(e.Right), short))
	ctx.emit(ir.Copy(zero, dst))
	ctx.emit(ir.Jmp(end))
	ctx.emit(ir.NewLabel(short))
	ctx.emit(ir.Copy(one, dst))
	ctx.emit(ir.NewLabel(end))
	return plain{dst}
}

func (ctx *Context) assignment(e *ast.Assignment) result {
	lhs := ctx.expr(e.Left)
	if !e.Compound {
		v := ctx.value(e.Right)
		ctx.assign(lhs, v)
		if l, ok := lhs.(plain); ok {
			return l
		}
		return plain{v}
	}

	lt := ctx.typeOf(e.Left)
	cur := ctx.load(lhs, lt)
	rhs := ctx.value(e.Right)
	var next ir.Value
	if p, ok := lt.(ast.Pointer); ok {
		if e.Op == ast.Subtract {
			neg := ctx.newTemp(ast.Long{})
			ctx.emit(ir.Unary(ir.OpNeg, rhs, neg))
			rhs = neg
		}
		n := ctx.newTemp(lt)
		ctx.emit(ir.AddPtr(cur, rhs, ctx.symbols.SizeOf(p.Ref), n))
		next = n
	} else {
		n := ctx.newTemp(e.OpType)
		ctx.emit(ir.Binary(binaryOps[e.Op], ctx.convert(cur, lt, e.OpType), rhs, n))
		next = ctx.convert(n, e.OpType, lt)
	}
	ctx.assign(lhs, next)
	return plain{next}
}

func (ctx *Context) conditional(e *ast.Conditional) result {
	els, end := ctx.newLabel("cond_else"), ctx.newLabel("cond_end")
	ctx.emit(ir.Jz(ctx.value(e.Cond), els))

	if _, isVoid := ctx.typeOf(e).(ast.Void); isVoid {
		ctx.expr(e.Then)
		ctx.emit(ir.Jmp(end))
		ctx.emit(ir.NewLabel(els))
		ctx.expr(e.Else)
		ctx.emit(ir.NewLabel(end))
		return plain{nil}
	}

	dst := ctx.newTemp(ctx.typeOf(e))
	ctx.emit(ir.Copy(ctx.value(e.Then), dst))
	ctx.emit(ir.Jmp(end))
	ctx.emit(ir.NewLabel(els))
	ctx.emit(ir.Copy(ctx.value(e.Else), dst))
	ctx.emit(ir.NewLabel(end))
	return plain{dst}
}
