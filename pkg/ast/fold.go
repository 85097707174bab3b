package ast

import "math"

func boolConst(b bool) Const {
	if b {
		return ConstInt{1}
	}
	return ConstInt{0}
}

// EvalUnary applies op to a constant of its operand type. PreInc and PreDec are not
// constant operations.
func EvalUnary(op UnaryOp, c Const) (Const, bool) {
	if d, ok := c.(ConstDouble); ok {
		switch op {
		case Negate:
			return ConstDouble{-d.V}, true
		case Plus:
			return d, true
		case Not:
			return boolConst(d.V == 0), true
		}
		return nil, false
	}
	bits := Int64(c)
	switch op {
	case Negate:
		return FromBits(-bits, c.Type()), true
	case Complement:
		return FromBits(^bits, c.Type()), true
	case Plus:
		return c, true
	case Not:
		return boolConst(bits == 0), true
	}
	return nil, false
}

// EvalBinary applies op to two constants of the same type with C semantics: integer
// arithmetic wraps and doubles follow IEEE-754. Integer division or remainder by
// zero is not a constant operation.
func EvalBinary(op BinaryOp, l, r Const) (Const, bool) {
	if ld, ok := l.(ConstDouble); ok {
		return evalDouble(op, ld.V, Float64(r))
	}
	t := l.Type()
	if IsSigned(t) {
		return evalSigned(op, Int64(l), Int64(r), t)
	}
	return evalUnsigned(op, uint64(Int64(l)), uint64(Int64(r)), t, r)
}

func evalDouble(op BinaryOp, l, r float64) (Const, bool) {
	switch op {
	case Add:
		return ConstDouble{l + r}, true
	case Subtract:
		return ConstDouble{l - r}, true
	case Multiply:
		return ConstDouble{l * r}, true
	case Divide:
		return ConstDouble{l / r}, true
	case EqualTo:
		return boolConst(l == r), true
	case NotEqualTo:
		return boolConst(l != r), true
	case LessThan:
		return boolConst(l < r), true
	case LessOrEqual:
		return boolConst(l <= r), true
	case GreaterThan:
		return boolConst(l > r), true
	case GreaterOrEqual:
		return boolConst(l >= r), true
	case And:
		return boolConst(l != 0 && r != 0), true
	case Or:
		return boolConst(l != 0 || r != 0), true
	}
	return nil, false
}

// width returns the bit width of an integer type.
func width(t Type) uint64 {
	switch t.(type) {
	case Char, SChar, UChar:
		return 8
	case Int, UInt:
		return 32
	}
	return 64
}

func evalSigned(op BinaryOp, l, r int64, t Type) (Const, bool) {
	var v int64
	switch op {
	case Add:
		v = l + r
	case Subtract:
		v = l - r
	case Multiply:
		v = l * r
	case Divide, Remainder:
		if r == 0 {
			return nil, false
		}
		// The quotient of the most negative value by -1 wraps.
		if r == -1 {
			if op == Divide {
				v = -l
			} else {
				v = 0
			}
			break
		}
		if op == Divide {
			v = l / r
		} else {
			v = l % r
		}
	case BitAnd:
		v = l & r
	case BitOr:
		v = l | r
	case BitXor:
		v = l ^ r
	case ShiftLeft:
		v = l << (uint64(r) & (width(t) - 1))
	case ShiftRight:
		v = l >> (uint64(r) & (width(t) - 1))
	case EqualTo:
		return boolConst(l == r), true
	case NotEqualTo:
		return boolConst(l != r), true
	case LessThan:
		return boolConst(l < r), true
	case LessOrEqual:
		return boolConst(l <= r), true
	case GreaterThan:
		return boolConst(l > r), true
	case GreaterOrEqual:
		return boolConst(l >= r), true
	case And:
		return boolConst(l != 0 && r != 0), true
	case Or:
		return boolConst(l != 0 || r != 0), true
	default:
		return nil, false
	}
	return FromBits(v, t), true
}

func evalUnsigned(op BinaryOp, l, r uint64, t Type, rc Const) (Const, bool) {
	if width(t) == 32 {
		l, r = l&math.MaxUint32, r&math.MaxUint32
	}
	// Shift counts keep the type of the left operand but only their value matters.
	if op.IsShift() {
		r = uint64(Int64(rc))
	}
	var v uint64
	switch op {
	case Add:
		v = l + r
	case Subtract:
		v = l - r
	case Multiply:
		v = l * r
	case Divide:
		if r == 0 {
			return nil, false
		}
		v = l / r
	case Remainder:
		if r == 0 {
			return nil, false
		}
		v = l % r
	case BitAnd:
		v = l & r
	case BitOr:
		v = l | r
	case BitXor:
		v = l ^ r
	case ShiftLeft:
		v = l << (r & (width(t) - 1))
	case ShiftRight:
		v = l >> (r & (width(t) - 1))
	case EqualTo:
		return boolConst(l == r), true
	case NotEqualTo:
		return boolConst(l != r), true
	case LessThan:
		return boolConst(l < r), true
	case LessOrEqual:
		return boolConst(l <= r), true
	case GreaterThan:
		return boolConst(l > r), true
	case GreaterOrEqual:
		return boolConst(l >= r), true
	case And:
		return boolConst(l != 0 && r != 0), true
	case Or:
		return boolConst(l != 0 || r != 0), true
	default:
		return nil, false
	}
	return FromBits(int64(v), t), true
}
