package ast

import (
	"math"
	"testing"
)

func TestConvert(t *testing.T) {
	tests := []struct {
		in   Const
		to   Type
		want Const
	}{
		{ConstInt{-1}, ULong{}, ConstULong{math.MaxUint64}},
		{ConstInt{-1}, UInt{}, ConstUInt{math.MaxUint32}},
		{ConstUInt{math.MaxUint32}, Long{}, ConstLong{math.MaxUint32}},
		{ConstLong{300}, Char{}, ConstChar{44}},
		{ConstLong{300}, UChar{}, ConstUChar{44}},
		{ConstChar{-1}, UInt{}, ConstUInt{math.MaxUint32}},
		{ConstDouble{-3.9}, Int{}, ConstInt{-3}},
		{ConstDouble{1e19}, ULong{}, ConstULong{10000000000000000000}},
		{ConstULong{math.MaxUint64}, Double{}, ConstDouble{18446744073709551615.0}},
		{ConstInt{7}, Pointer{Ref: Int{}}, ConstULong{7}},
	}
	for _, tt := range tests {
		if got := Convert(tt.in, tt.to); got != tt.want {
			t.Errorf("Convert(%#v, %s) = %#v, want %#v", tt.in, tt.to, got, tt.want)
		}
	}
}

func TestEvalBinary(t *testing.T) {
	tests := []struct {
		name string
		op   BinaryOp
		l, r Const
		want Const
	}{
		{"int wraps", Add, ConstInt{math.MaxInt32}, ConstInt{1}, ConstInt{math.MinInt32}},
		{"uint wraps", Subtract, ConstUInt{0}, ConstUInt{1}, ConstUInt{math.MaxUint32}},
		{"signed division truncates", Divide, ConstInt{-7}, ConstInt{2}, ConstInt{-3}},
		{"signed remainder", Remainder, ConstLong{-7}, ConstLong{2}, ConstLong{-1}},
		{"min by minus one", Divide, ConstInt{math.MinInt32}, ConstInt{-1}, ConstInt{math.MinInt32}},
		{"unsigned division", Divide, ConstUInt{math.MaxUint32}, ConstUInt{2}, ConstUInt{math.MaxUint32 / 2}},
		{"unsigned compare", LessThan, ConstUInt{1}, ConstUInt{math.MaxUint32}, ConstInt{1}},
		{"signed compare", LessThan, ConstInt{1}, ConstInt{-1}, ConstInt{0}},
		{"arithmetic shift", ShiftRight, ConstInt{-8}, ConstInt{1}, ConstInt{-4}},
		{"logical shift", ShiftRight, ConstUInt{0x80000000}, ConstUInt{31}, ConstUInt{1}},
		{"double", Multiply, ConstDouble{1.5}, ConstDouble{2}, ConstDouble{3}},
		{"double compare", GreaterOrEqual, ConstDouble{2}, ConstDouble{2}, ConstInt{1}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := EvalBinary(tt.op, tt.l, tt.r)
			if !ok || got != tt.want {
				t.Errorf("EvalBinary(%s, %v, %v) = %#v, %v, want %#v", tt.op, tt.l, tt.r, got, ok, tt.want)
			}
		})
	}
}

func TestDivisionByZeroIsNotFolded(t *testing.T) {
	for _, op := range []BinaryOp{Divide, Remainder} {
		for _, c := range []Const{ConstInt{0}, ConstUInt{0}, ConstLong{0}, ConstULong{0}} {
			if v, ok := EvalBinary(op, c, c); ok {
				t.Errorf("EvalBinary(%s, %v, %v) folded to %v", op, c, c, v)
			}
		}
	}
	v, ok := EvalBinary(Divide, ConstDouble{1}, ConstDouble{0})
	if !ok || !math.IsInf(v.(ConstDouble).V, 1) {
		t.Errorf("double division by zero = %v, %v, want +Inf", v, ok)
	}
}

func TestEvalUnaryNaN(t *testing.T) {
	nan := ConstDouble{math.NaN()}
	got, _ := EvalBinary(NotEqualTo, nan, nan)
	if got != (ConstInt{1}) {
		t.Errorf("NaN != NaN = %v, want 1", got)
	}
	got, _ = EvalUnary(Not, nan)
	if got != (ConstInt{0}) {
		t.Errorf("!NaN = %v, want 0", got)
	}
}

func TestEvalInt(t *testing.T) {
	one := &Constant{Value: ConstInt{1}}
	two := &Constant{Value: ConstInt{2}}
	tests := []struct {
		name string
		e    Expr
		want int64
		ok   bool
	}{
		{"sum", &Binary{Op: Add, Left: one, Right: two}, 3, true},
		{"negate", &Unary{Op: Negate, Expr: two}, -2, true},
		{"cast truncates", &Cast{Target: Char{}, Expr: &Constant{Value: ConstInt{257}}}, 1, true},
		{"conditional", &Conditional{Cond: one, Then: two, Else: one}, 2, true},
		{"variable", &Var{Name: "x"}, 0, false},
		{"division by zero", &Binary{Op: Divide, Left: one, Right: &Constant{Value: ConstInt{0}}}, 0, false},
		{"short circuit", &Binary{Op: Or, Left: one, Right: &Var{Name: "x"}}, 1, true},
	}
	for _, tt := range tests {
		got, ok := EvalInt(tt.e)
		if got != tt.want || ok != tt.ok {
			t.Errorf("%s: EvalInt = %d, %v, want %d, %v", tt.name, got, ok, tt.want, tt.ok)
		}
	}
}
