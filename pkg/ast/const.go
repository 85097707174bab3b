package ast

import (
	"math"
	"strconv"
)

// Const is a typed literal value shared by the AST, TAC and the static initializers.
// Every implementation is a comparable value type.
type Const interface {
	isConst()
	Type() Type
	String() string
}

type (
	ConstChar   struct{ V int8 }
	ConstUChar  struct{ V uint8 }
	ConstInt    struct{ V int32 }
	ConstUInt   struct{ V uint32 }
	ConstLong   struct{ V int64 }
	ConstULong  struct{ V uint64 }
	ConstDouble struct{ V float64 }
)

func (ConstChar) isConst()   {}
func (ConstUChar) isConst()  {}
func (ConstInt) isConst()    {}
func (ConstUInt) isConst()   {}
func (ConstLong) isConst()   {}
func (ConstULong) isConst()  {}
func (ConstDouble) isConst() {}

func (ConstChar) Type() Type   { return Char{} }
func (ConstUChar) Type() Type  { return UChar{} }
func (ConstInt) Type() Type    { return Int{} }
func (ConstUInt) Type() Type   { return UInt{} }
func (ConstLong) Type() Type   { return Long{} }
func (ConstULong) Type() Type  { return ULong{} }
func (ConstDouble) Type() Type { return Double{} }

func (c ConstChar) String() string   { return strconv.Itoa(int(c.V)) }
func (c ConstUChar) String() string  { return strconv.Itoa(int(c.V)) }
func (c ConstInt) String() string    { return strconv.FormatInt(int64(c.V), 10) }
func (c ConstUInt) String() string   { return strconv.FormatUint(uint64(c.V), 10) + "U" }
func (c ConstLong) String() string   { return strconv.FormatInt(c.V, 10) + "L" }
func (c ConstULong) String() string  { return strconv.FormatUint(c.V, 10) + "UL" }
func (c ConstDouble) String() string { return strconv.FormatFloat(c.V, 'g', -1, 64) }

// Int64 returns the value as a two's-complement 64-bit integer. Doubles truncate.
func Int64(c Const) int64 {
	switch c := c.(type) {
	case ConstChar:
		return int64(c.V)
	case ConstUChar:
		return int64(c.V)
	case ConstInt:
		return int64(c.V)
	case ConstUInt:
		return int64(c.V)
	case ConstLong:
		return c.V
	case ConstULong:
		return int64(c.V)
	case ConstDouble:
		return doubleToInt64(c.V)
	}
	return 0
}

func Float64(c Const) float64 {
	switch c := c.(type) {
	case ConstDouble:
		return c.V
	case ConstULong:
		return float64(c.V)
	}
	return float64(Int64(c))
}

func IsZero(c Const) bool {
	if d, ok := c.(ConstDouble); ok {
		return d.V == 0
	}
	return Int64(c) == 0
}

// Convert reinterprets c as a value of type t with C conversion semantics:
// integers wrap, doubles truncate toward zero.
func Convert(c Const, t Type) Const {
	if _, ok := t.(Double); ok {
		return ConstDouble{Float64(c)}
	}
	var bits int64
	if d, ok := c.(ConstDouble); ok {
		if _, ok := t.(ULong); ok && d.V >= 9223372036854775808.0 {
			return ConstULong{doubleToUint64(d.V)}
		}
		bits = doubleToInt64(d.V)
	} else {
		bits = Int64(c)
	}
	return FromBits(bits, t)
}

// FromBits truncates a 64-bit pattern to the integer type t. Pointers map to ULong.
func FromBits(bits int64, t Type) Const {
	switch t.(type) {
	case Char, SChar:
		return ConstChar{int8(bits)}
	case UChar:
		return ConstUChar{uint8(bits)}
	case Int:
		return ConstInt{int32(bits)}
	case UInt:
		return ConstUInt{uint32(bits)}
	case Long:
		return ConstLong{bits}
	case Double:
		return ConstDouble{float64(bits)}
	}
	return ConstULong{uint64(bits)}
}

func doubleToInt64(f float64) int64 {
	if math.IsNaN(f) || f >= 9223372036854775808.0 || f < -9223372036854775808.0 {
		return math.MinInt64
	}
	return int64(f)
}

func doubleToUint64(f float64) uint64 {
	if math.IsNaN(f) || f < 0 || f >= 18446744073709551616.0 {
		return 1 << 63
	}
	return uint64(f)
}
