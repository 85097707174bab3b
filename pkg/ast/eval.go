package ast

// EvalInt evaluates an integer constant expression with 64-bit arithmetic, before
// any type information exists. It is used for array bounds and to detect duplicate
// case labels early; the type checker redoes the evaluation with C types.
func EvalInt(e Expr) (int64, bool) {
	switch e := e.(type) {
	case *Constant:
		if _, ok := e.Value.(ConstDouble); ok {
			return 0, false
		}
		return Int64(e.Value), true
	case *Cast:
		if !IsInteger(e.Target) {
			return 0, false
		}
		v, ok := EvalInt(e.Expr)
		if !ok {
			return 0, false
		}
		return Int64(FromBits(v, e.Target)), true
	case *Unary:
		v, ok := EvalInt(e.Expr)
		if !ok {
			return 0, false
		}
		switch e.Op {
		case Negate:
			return -v, true
		case Complement:
			return ^v, true
		case Not:
			return b2i(v == 0), true
		case Plus:
			return v, true
		}
	case *Binary:
		l, ok := EvalInt(e.Left)
		if !ok {
			return 0, false
		}
		if e.Op == And && l == 0 {
			return 0, true
		}
		if e.Op == Or && l != 0 {
			return 1, true
		}
		r, ok := EvalInt(e.Right)
		if !ok {
			return 0, false
		}
		return evalBinary(e.Op, l, r)
	case *Conditional:
		c, ok := EvalInt(e.Cond)
		if !ok {
			return 0, false
		}
		if c != 0 {
			return EvalInt(e.Then)
		}
		return EvalInt(e.Else)
	}
	return 0, false
}

func evalBinary(op BinaryOp, l, r int64) (int64, bool) {
	switch op {
	case Add:
		return l + r, true
	case Subtract:
		return l - r, true
	case Multiply:
		return l * r, true
	case Divide:
		if r == 0 {
			return 0, false
		}
		return l / r, true
	case Remainder:
		if r == 0 {
			return 0, false
		}
		return l % r, true
	case BitAnd:
		return l & r, true
	case BitOr:
		return l | r, true
	case BitXor:
		return l ^ r, true
	case ShiftLeft:
		return l << uint64(r&63), true
	case ShiftRight:
		return l >> uint64(r&63), true
	case And:
		return b2i(l != 0 && r != 0), true
	case Or:
		return b2i(l != 0 || r != 0), true
	case EqualTo:
		return b2i(l == r), true
	case NotEqualTo:
		return b2i(l != r), true
	case LessThan:
		return b2i(l < r), true
	case LessOrEqual:
		return b2i(l <= r), true
	case GreaterThan:
		return b2i(l > r), true
	case GreaterOrEqual:
		return b2i(l >= r), true
	}
	return 0, false
}

func b2i(b bool) int64 {
	if b {
		return 1
	}
	return 0
}
