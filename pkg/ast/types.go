package ast

import (
	"fmt"
	"strings"
)

// Type is a C type. Compare types with Equal, never with ==.
type Type interface {
	isType()
	String() string
}

type (
	Char   struct{}
	SChar  struct{}
	UChar  struct{}
	Int    struct{}
	UInt   struct{}
	Long   struct{}
	ULong  struct{}
	Double struct{}
	Void   struct{}

	Pointer struct{ Ref Type }

	Array struct {
		Elem Type
		Size int64
	}

	FunType struct {
		Params []Type
		Ret    Type
	}

	// Struct names a structure or union by its tag; the resolver makes tags unique.
	Struct struct {
		Tag   string
		Union bool
	}
)

func (Char) isType()    {}
func (SChar) isType()   {}
func (UChar) isType()   {}
func (Int) isType()     {}
func (UInt) isType()    {}
func (Long) isType()    {}
func (ULong) isType()   {}
func (Double) isType()  {}
func (Void) isType()    {}
func (Pointer) isType() {}
func (Array) isType()   {}
func (FunType) isType() {}
func (Struct) isType()  {}

func (Char) String() string     { return "char" }
func (SChar) String() string    { return "signed char" }
func (UChar) String() string    { return "unsigned char" }
func (Int) String() string      { return "int" }
func (UInt) String() string     { return "unsigned int" }
func (Long) String() string     { return "long" }
func (ULong) String() string    { return "unsigned long" }
func (Double) String() string   { return "double" }
func (Void) String() string     { return "void" }
func (p Pointer) String() string { return p.Ref.String() + "*" }
func (a Array) String() string   { return fmt.Sprintf("%s[%d]", a.Elem, a.Size) }

func (s Struct) String() string {
	if s.Union {
		return "union " + s.Tag
	}
	return "struct " + s.Tag
}

func (f FunType) String() string {
	params := make([]string, len(f.Params))
	for i, p := range f.Params {
		params[i] = p.String()
	}
	return fmt.Sprintf("%s(%s)", f.Ret, strings.Join(params, ", "))
}

// Equal reports structural type identity. char, signed char and unsigned char are
// three distinct types.
func Equal(a, b Type) bool {
	switch at := a.(type) {
	case Pointer:
		bt, ok := b.(Pointer)
		return ok && Equal(at.Ref, bt.Ref)
	case Array:
		bt, ok := b.(Array)
		return ok && at.Size == bt.Size && Equal(at.Elem, bt.Elem)
	case FunType:
		bt, ok := b.(FunType)
		if !ok || len(at.Params) != len(bt.Params) || !Equal(at.Ret, bt.Ret) {
			return false
		}
		for i := range at.Params {
			if !Equal(at.Params[i], bt.Params[i]) {
				return false
			}
		}
		return true
	case nil:
		return b == nil
	}
	return a == b
}

func IsCharacter(t Type) bool {
	switch t.(type) {
	case Char, SChar, UChar:
		return true
	}
	return false
}

func IsInteger(t Type) bool {
	switch t.(type) {
	case Char, SChar, UChar, Int, UInt, Long, ULong:
		return true
	}
	return false
}

func IsArithmetic(t Type) bool {
	_, isDouble := t.(Double)
	return isDouble || IsInteger(t)
}

func IsPointer(t Type) bool {
	_, ok := t.(Pointer)
	return ok
}

func IsScalar(t Type) bool { return IsArithmetic(t) || IsPointer(t) }

func IsSigned(t Type) bool {
	switch t.(type) {
	case Char, SChar, Int, Long:
		return true
	}
	return false
}

func IsVoidPointer(t Type) bool {
	p, ok := t.(Pointer)
	if !ok {
		return false
	}
	_, ok = p.Ref.(Void)
	return ok
}
