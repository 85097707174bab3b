package typeChecker

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/util"
)

// checkAndConvert checks e in a value context, where arrays decay to a pointer to
// their first element.
func (tc *TypeChecker) checkAndConvert(e ast.Expr) ast.Expr {
	typed := tc.checkExpr(e)
	if a, ok := tc.typeOf(typed).(ast.Array); ok {
		decay := &ast.AddressOf{Meta: tc.newMeta(typed.NodeSpan()), Expr: typed}
		return tc.setType(decay, ast.Pointer{Ref: a.Elem})
	}
	return typed
}

// checkScalar checks a controlling expression.
func (tc *TypeChecker) checkScalar(e ast.Expr, what string) ast.Expr {
	typed := tc.checkAndConvert(e)
	if !ast.IsScalar(tc.typeOf(typed)) {
		tc.errorf(util.ReasonNonScalar, e.NodeSpan(), "%s requires a scalar operand, but has type '%s'", what, tc.typeOf(typed))
	}
	return typed
}

func (tc *TypeChecker) checkExpr(e ast.Expr) ast.Expr {
	switch e := e.(type) {
	case *ast.Constant:
		return tc.setType(&ast.Constant{Meta: e.Meta, Value: e.Value}, e.Value.Type())
	case *ast.String:
		return tc.setType(&ast.String{Meta: e.Meta, Value: e.Value},
			ast.Array{Elem: ast.Char{}, Size: int64(len(e.Value)) + 1})
	case *ast.Var:
		t := tc.symbols.TypeOf(e.Name)
		if _, isFun := t.(ast.FunType); isFun {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "function '%s' used as a variable", e.Name)
		}
		return tc.setType(&ast.Var{Meta: e.Meta, Name: e.Name}, t)
	case *ast.Cast:
		return tc.checkCast(e)
	case *ast.Unary:
		return tc.checkUnary(e)
	case *ast.Postfix:
		return tc.checkPostfix(e)
	case *ast.Binary:
		return tc.checkBinary(e)
	case *ast.Assignment:
		return tc.checkAssignment(e)
	case *ast.Conditional:
		return tc.checkConditional(e)
	case *ast.FunctionCall:
		return tc.checkCall(e)
	case *ast.AddressOf:
		inner := tc.checkExpr(e.Expr)
		if !isLvalue(inner) {
			tc.errorf(util.ReasonNotLvalue, e.Span, "cannot take the address of an rvalue")
		}
		return tc.setType(&ast.AddressOf{Meta: e.Meta, Expr: inner}, ast.Pointer{Ref: tc.typeOf(inner)})
	case *ast.Dereference:
		inner := tc.checkAndConvert(e.Expr)
		p, ok := tc.typeOf(inner).(ast.Pointer)
		if !ok {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "cannot dereference non-pointer type '%s'", tc.typeOf(inner))
		}
		if _, isVoid := p.Ref.(ast.Void); isVoid {
			tc.errorf(util.ReasonIncomplete, e.Span, "cannot dereference a pointer to void")
		}
		return tc.setType(&ast.Dereference{Meta: e.Meta, Expr: inner}, p.Ref)
	case *ast.Subscript:
		return tc.checkSubscript(e)
	case *ast.SizeOfType:
		tc.validateType(e.Type, e.Span)
		tc.requireComplete(e.Type, e.Span, "operand of sizeof")
		return tc.setType(&ast.SizeOfType{Meta: e.Meta, Type: e.Type}, ast.ULong{})
	case *ast.SizeOfExpr:
		inner := tc.checkExpr(e.Expr)
		tc.requireComplete(tc.typeOf(inner), e.Span, "operand of sizeof")
		return tc.setType(&ast.SizeOfExpr{Meta: e.Meta, Expr: inner}, ast.ULong{})
	case *ast.Member:
		inner := tc.checkExpr(e.Expr)
		st, ok := tc.typeOf(inner).(ast.Struct)
		if !ok {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "member reference base type '%s' is not a structure or union", tc.typeOf(inner))
		}
		return tc.setType(&ast.Member{Meta: e.Meta, Expr: inner, Field: e.Field}, tc.memberType(st, e.Field, e))
	case *ast.Arrow:
		inner := tc.checkAndConvert(e.Expr)
		p, ok := tc.typeOf(inner).(ast.Pointer)
		st, isStruct := ast.Struct{}, false
		if ok {
			st, isStruct = p.Ref.(ast.Struct)
		}
		if !isStruct {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "member reference type '%s' is not a pointer to a structure or union", tc.typeOf(inner))
		}
		return tc.setType(&ast.Arrow{Meta: e.Meta, Expr: inner, Field: e.Field}, tc.memberType(st, e.Field, e))
	}
	panic("typeChecker: unexpected expression")
}

func (tc *TypeChecker) memberType(st ast.Struct, field string, e ast.Expr) ast.Type {
	def, ok := tc.symbols.Struct(st.Tag)
	if !ok {
		tc.errorf(util.ReasonIncomplete, e.NodeSpan(), "member access into incomplete type '%s'", st)
	}
	m, ok := def.Member(field)
	if !ok {
		tc.errorf(util.ReasonInvalidOperand, e.NodeSpan(), "no member named '%s' in '%s'", field, st)
	}
	return m.Type
}

func (tc *TypeChecker) checkCast(e *ast.Cast) ast.Expr {
	tc.validateType(e.Target, e.Span)
	inner := tc.checkAndConvert(e.Expr)
	from := tc.typeOf(inner)
	if _, ok := e.Target.(ast.Void); ok {
		return tc.setType(&ast.Cast{Meta: e.Meta, Target: e.Target, Expr: inner}, e.Target)
	}
	if !ast.IsScalar(e.Target) {
		tc.errorf(util.ReasonNonScalar, e.Span, "cannot cast to non-scalar type '%s'", e.Target)
	}
	if !ast.IsScalar(from) {
		tc.errorf(util.ReasonNonScalar, e.Span, "cannot cast from non-scalar type '%s'", from)
	}
	_, toDouble := e.Target.(ast.Double)
	_, fromDouble := from.(ast.Double)
	if toDouble && ast.IsPointer(from) || fromDouble && ast.IsPointer(e.Target) {
		tc.errorf(util.ReasonIncompatible, e.Span, "cannot cast between '%s' and '%s'", from, e.Target)
	}
	if ast.IsPointer(from) && ast.IsPointer(e.Target) && !ast.IsVoidPointer(from) && !ast.IsVoidPointer(e.Target) &&
		!ast.Equal(from, e.Target) {
		tc.warn(config.WarnPointerConversion, e.Span, "cast from '%s' to '%s' converts between unrelated pointer types", from, e.Target)
	}
	return tc.setType(&ast.Cast{Meta: e.Meta, Target: e.Target, Expr: inner}, e.Target)
}

// incDecType returns the type an increment of an object of type t is computed in.
func (tc *TypeChecker) incDecType(t ast.Type, e ast.Expr) ast.Type {
	switch {
	case ast.IsArithmetic(t):
		return commonType(t, ast.Int{})
	case tc.isPointerToComplete(t):
		return t
	}
	tc.errorf(util.ReasonInvalidOperand, e.NodeSpan(), "cannot increment or decrement a value of type '%s'", t)
	return nil
}

func (tc *TypeChecker) checkLvalueOperand(e ast.Expr, at ast.Expr) ast.Expr {
	inner := tc.checkExpr(e)
	if !isLvalue(inner) {
		tc.errorf(util.ReasonNotLvalue, at.NodeSpan(), "expression is not assignable")
	}
	if _, isArray := tc.typeOf(inner).(ast.Array); isArray {
		tc.errorf(util.ReasonNotLvalue, at.NodeSpan(), "array type '%s' is not assignable", tc.typeOf(inner))
	}
	if _, isStr := inner.(*ast.String); isStr {
		tc.errorf(util.ReasonNotLvalue, at.NodeSpan(), "string literal is not assignable")
	}
	return inner
}

func (tc *TypeChecker) checkUnary(e *ast.Unary) ast.Expr {
	switch e.Op {
	case ast.PreInc, ast.PreDec:
		inner := tc.checkLvalueOperand(e.Expr, e)
		t := tc.typeOf(inner)
		return tc.setType(&ast.Unary{Meta: e.Meta, Op: e.Op, Expr: inner, OpType: tc.incDecType(t, e)}, t)
	case ast.Not:
		inner := tc.checkScalar(e.Expr, "'!'")
		return tc.setType(&ast.Unary{Meta: e.Meta, Op: e.Op, Expr: inner}, ast.Int{})
	}

	inner := tc.checkAndConvert(e.Expr)
	t := tc.typeOf(inner)
	if !ast.IsArithmetic(t) {
		tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid argument type '%s' to unary expression", t)
	}
	if _, isDouble := t.(ast.Double); isDouble && e.Op == ast.Complement {
		tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid argument type 'double' to '~'")
	}
	t = promote(t)
	inner = tc.convertTo(inner, t)
	return tc.setType(&ast.Unary{Meta: e.Meta, Op: e.Op, Expr: inner}, t)
}

func (tc *TypeChecker) checkPostfix(e *ast.Postfix) ast.Expr {
	inner := tc.checkLvalueOperand(e.Expr, e)
	t := tc.typeOf(inner)
	return tc.setType(&ast.Postfix{Meta: e.Meta, Op: e.Op, Expr: inner, OpType: tc.incDecType(t, e)}, t)
}

func (tc *TypeChecker) checkBinary(e *ast.Binary) ast.Expr {
	if e.Op == ast.And || e.Op == ast.Or {
		left := tc.checkScalar(e.Left, "'"+e.Op.String()+"'")
		right := tc.checkScalar(e.Right, "'"+e.Op.String()+"'")
		return tc.setType(&ast.Binary{Meta: e.Meta, Op: e.Op, Left: left, Right: right}, ast.Int{})
	}

	left := tc.checkAndConvert(e.Left)
	right := tc.checkAndConvert(e.Right)
	lt, rt := tc.typeOf(left), tc.typeOf(right)
	out := &ast.Binary{Meta: e.Meta, Op: e.Op}

	switch {
	case e.Op.IsShift():
		if !ast.IsInteger(lt) || !ast.IsInteger(rt) {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid operands to '%s' ('%s' and '%s')", e.Op, lt, rt)
		}
		t := promote(lt)
		out.Left, out.Right = tc.convertTo(left, t), tc.convertTo(right, t)
		return tc.setType(out, t)

	case e.Op == ast.Add && ast.IsPointer(lt) && ast.IsInteger(rt),
		e.Op == ast.Add && ast.IsInteger(lt) && ast.IsPointer(rt),
		e.Op == ast.Subtract && ast.IsPointer(lt) && ast.IsInteger(rt):
		ptr := lt
		if ast.IsInteger(lt) {
			ptr = rt
		}
		if !tc.isPointerToComplete(ptr) {
			tc.errorf(util.ReasonPointerArith, e.Span, "arithmetic on a pointer to an incomplete type '%s'", ptr)
		}
		out.Left, out.Right = left, right
		if ast.IsInteger(lt) {
			out.Left = tc.convertTo(left, ast.Long{})
		} else {
			out.Right = tc.convertTo(right, ast.Long{})
		}
		return tc.setType(out, ptr)

	case e.Op == ast.Subtract && ast.IsPointer(lt) && ast.IsPointer(rt):
		if !ast.Equal(lt, rt) || !tc.isPointerToComplete(lt) {
			tc.errorf(util.ReasonPointerArith, e.Span, "invalid pointer subtraction between '%s' and '%s'", lt, rt)
		}
		out.Left, out.Right = left, right
		return tc.setType(out, ast.Long{})

	case (e.Op == ast.EqualTo || e.Op == ast.NotEqualTo) && (ast.IsPointer(lt) || ast.IsPointer(rt)):
		t := tc.commonPointerType(left, right)
		out.Left, out.Right = tc.convertTo(left, t), tc.convertTo(right, t)
		return tc.setType(out, ast.Int{})

	case e.Op.IsRelational() && ast.IsPointer(lt) && ast.IsPointer(rt):
		if !ast.Equal(lt, rt) {
			tc.errorf(util.ReasonIncompatible, e.Span, "comparison of distinct pointer types '%s' and '%s'", lt, rt)
		}
		out.Left, out.Right = left, right
		return tc.setType(out, ast.Int{})
	}

	if !ast.IsArithmetic(lt) || !ast.IsArithmetic(rt) {
		reason := util.ReasonInvalidOperand
		if ast.IsPointer(lt) || ast.IsPointer(rt) {
			reason = util.ReasonPointerArith
		}
		tc.errorf(reason, e.Span, "invalid operands to '%s' ('%s' and '%s')", e.Op, lt, rt)
	}
	t := commonType(lt, rt)
	if _, isDouble := t.(ast.Double); isDouble && (e.Op == ast.Remainder || e.Op.IsBitwise()) {
		tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid operands to '%s' ('%s' and '%s')", e.Op, lt, rt)
	}
	out.Left, out.Right = tc.convertTo(left, t), tc.convertTo(right, t)
	if e.Op.IsRelational() {
		return tc.setType(out, ast.Int{})
	}
	return tc.setType(out, t)
}

func (tc *TypeChecker) checkAssignment(e *ast.Assignment) ast.Expr {
	left := tc.checkLvalueOperand(e.Left, e)
	lt := tc.typeOf(left)
	out := &ast.Assignment{Meta: e.Meta, Compound: e.Compound, Op: e.Op, Left: left}

	if !e.Compound {
		out.Right = tc.convertByAssignment(tc.checkAndConvert(e.Right), lt, "assignment")
		return tc.setType(out, lt)
	}

	right := tc.checkAndConvert(e.Right)
	rt := tc.typeOf(right)
	switch {
	case ast.IsPointer(lt) && (e.Op == ast.Add || e.Op == ast.Subtract):
		if !ast.IsInteger(rt) || !tc.isPointerToComplete(lt) {
			tc.errorf(util.ReasonPointerArith, e.Span, "invalid operands to '%s=' ('%s' and '%s')", e.Op, lt, rt)
		}
		out.Right, out.OpType = tc.convertTo(right, ast.Long{}), lt
	case !ast.IsArithmetic(lt) || !ast.IsArithmetic(rt):
		tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid operands to '%s=' ('%s' and '%s')", e.Op, lt, rt)
	case e.Op.IsShift():
		if !ast.IsInteger(lt) || !ast.IsInteger(rt) {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid operands to '%s=' ('%s' and '%s')", e.Op, lt, rt)
		}
		out.OpType = promote(lt)
		out.Right = tc.convertTo(right, out.OpType)
	default:
		out.OpType = commonType(lt, rt)
		if _, isDouble := out.OpType.(ast.Double); isDouble && (e.Op == ast.Remainder || e.Op.IsBitwise()) {
			tc.errorf(util.ReasonInvalidOperand, e.Span, "invalid operands to '%s=' ('%s' and '%s')", e.Op, lt, rt)
		}
		out.Right = tc.convertTo(right, out.OpType)
	}
	return tc.setType(out, lt)
}

func (tc *TypeChecker) checkConditional(e *ast.Conditional) ast.Expr {
	cond := tc.checkScalar(e.Cond, "conditional operator")
	then := tc.checkAndConvert(e.Then)
	els := tc.checkAndConvert(e.Else)
	tt, et := tc.typeOf(then), tc.typeOf(els)
	out := &ast.Conditional{Meta: e.Meta, Cond: cond}

	var t ast.Type
	_, thenVoid := tt.(ast.Void)
	_, elseVoid := et.(ast.Void)
	switch {
	case thenVoid && elseVoid:
		t = ast.Void{}
	case ast.IsArithmetic(tt) && ast.IsArithmetic(et):
		t = commonType(tt, et)
	case ast.IsPointer(tt) || ast.IsPointer(et):
		t = tc.commonPointerType(then, els)
	default:
		_, thenStruct := tt.(ast.Struct)
		if !thenStruct || !ast.Equal(tt, et) {
			tc.errorf(util.ReasonIncompatible, e.Span, "incompatible operand types ('%s' and '%s') in conditional", tt, et)
		}
		t = tt
	}
	out.Then, out.Else = tc.convertTo(then, t), tc.convertTo(els, t)
	return tc.setType(out, t)
}

func (tc *TypeChecker) checkCall(e *ast.FunctionCall) ast.Expr {
	fn, ok := tc.symbols.TypeOf(e.Name).(ast.FunType)
	if !ok {
		tc.errorf(util.ReasonInvalidOperand, e.Span, "called object '%s' is not a function", e.Name)
	}
	if len(fn.Params) != len(e.Args) {
		tc.errorf(util.ReasonIncompatible, e.Span, "function '%s' expects %d arguments, but %d were given",
			e.Name, len(fn.Params), len(e.Args))
	}
	out := &ast.FunctionCall{Meta: e.Meta, Name: e.Name, Args: make([]ast.Expr, len(e.Args))}
	for i, a := range e.Args {
		out.Args[i] = tc.convertByAssignment(tc.checkAndConvert(a), fn.Params[i], "argument")
	}
	if _, isVoid := fn.Ret.(ast.Void); !isVoid {
		tc.requireComplete(fn.Ret, e.Span, "return value of '"+e.Name+"'")
	}
	return tc.setType(out, fn.Ret)
}

func (tc *TypeChecker) checkSubscript(e *ast.Subscript) ast.Expr {
	left := tc.checkAndConvert(e.Left)
	index := tc.checkAndConvert(e.Index)
	lt, it := tc.typeOf(left), tc.typeOf(index)

	var ptr ast.Type
	switch {
	case tc.isPointerToComplete(lt) && ast.IsInteger(it):
		ptr = lt
		index = tc.convertTo(index, ast.Long{})
	case ast.IsInteger(lt) && tc.isPointerToComplete(it):
		ptr = it
		left = tc.convertTo(left, ast.Long{})
	default:
		tc.errorf(util.ReasonPointerArith, e.Span, "subscripted value of type '%s' with index of type '%s'", lt, it)
	}
	return tc.setType(&ast.Subscript{Meta: e.Meta, Left: left, Index: index}, ptr.(ast.Pointer).Ref)
}
