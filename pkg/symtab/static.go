package symtab

import (
	"fmt"

	"github.com/xplshn/xcc/pkg/ast"
)

type InitKind int

const (
	Tentative InitKind = iota
	Initialized
	NoInitializer
)

type InitialValue struct {
	Kind  InitKind
	Inits []StaticInit
}

// StaticInit is one element of a static-storage initializer.
type StaticInit interface {
	isStaticInit()
	// Bytes is the number of bytes the element occupies.
	Bytes() int64
	String() string
}

type (
	ConstInit struct{ Value ast.Const }

	ZeroInit struct{ N int64 }

	StringInit struct {
		Value          string
		NullTerminated bool
	}

	PointerInit struct{ Name string }
)

func (ConstInit) isStaticInit()   {}
func (ZeroInit) isStaticInit()    {}
func (StringInit) isStaticInit()  {}
func (PointerInit) isStaticInit() {}

func (c ConstInit) Bytes() int64 {
	switch c.Value.(type) {
	case ast.ConstChar, ast.ConstUChar:
		return 1
	case ast.ConstInt, ast.ConstUInt:
		return 4
	}
	return 8
}

func (z ZeroInit) Bytes() int64 { return z.N }

func (s StringInit) Bytes() int64 {
	if s.NullTerminated {
		return int64(len(s.Value)) + 1
	}
	return int64(len(s.Value))
}

func (PointerInit) Bytes() int64 { return 8 }

func (c ConstInit) String() string   { return c.Value.String() }
func (z ZeroInit) String() string    { return fmt.Sprintf("zero[%d]", z.N) }
func (p PointerInit) String() string { return "&" + p.Name }

func (s StringInit) String() string {
	if s.NullTerminated {
		return fmt.Sprintf("%q", s.Value)
	}
	return fmt.Sprintf("%q (no NUL)", s.Value)
}

// IsZero reports whether every byte of the initializer list is zero.
func IsZero(inits []StaticInit) bool {
	for _, i := range inits {
		switch i := i.(type) {
		case ConstInit:
			if !ast.IsZero(i.Value) {
				return false
			}
			if d, ok := i.Value.(ast.ConstDouble); ok && d.V == 0 && 1/d.V < 0 {
				return false
			}
		case ZeroInit:
		default:
			return false
		}
	}
	return true
}
