package x86

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/symtab"
)

// Class is the System V classification of one eightbyte of an aggregate.
type Class int

const (
	ClassInteger Class = iota
	ClassSSE
	ClassMemory
)

func (c Class) String() string {
	switch c {
	case ClassSSE:
		return "SSE"
	case ClassMemory:
		return "MEMORY"
	}
	return "INTEGER"
}

// leaf is a scalar inside an aggregate with its byte offset.
type leaf struct {
	t      ast.Type
	offset int64
}

func flatten(symbols *symtab.Table, t ast.Type, base int64, out []leaf) []leaf {
	switch t := t.(type) {
	case ast.Struct:
		def, _ := symbols.Struct(t.Tag)
		for _, m := range def.Members {
			out = flatten(symbols, m.Type, base+m.Offset, out)
		}
	case ast.Array:
		size := symbols.SizeOf(t.Elem)
		for i := int64(0); i < t.Size; i++ {
			out = flatten(symbols, t.Elem, base+i*size, out)
		}
	default:
		out = append(out, leaf{t, base})
	}
	return out
}

// Classify returns one class per eightbyte of the aggregate t. Aggregates larger
// than 16 bytes are passed in memory and classify as a single ClassMemory.
func Classify(symbols *symtab.Table, t ast.Type) []Class {
	size := symbols.SizeOf(t)
	if size > 16 {
		return []Class{ClassMemory}
	}
	n := (size + 7) / 8
	classes := make([]Class, n)
	sse := make([]bool, n)
	for i := range sse {
		sse[i] = true
	}
	for _, l := range flatten(symbols, t, 0, nil) {
		if _, ok := l.t.(ast.Double); !ok {
			sse[l.offset/8] = false
		}
	}
	for i, s := range sse {
		if s {
			classes[i] = ClassSSE
		}
	}
	return classes
}

func inMemory(classes []Class) bool { return len(classes) > 0 && classes[0] == ClassMemory }

// argLoc says where one argument or parameter travels.
type argLoc struct {
	t ast.Type
	// regs holds one register per eightbyte when the value travels in registers.
	regs []Register
	// stack is the index of the first stack eightbyte when the value travels in memory.
	stack int
}

func (a argLoc) onStack() bool { return a.regs == nil }

// assignArgs decides the location of every argument of a call. hiddenRet reserves
// the first integer register for the address of a returned aggregate. It also
// returns the number of eightbytes passed on the stack.
func assignArgs(symbols *symtab.Table, types []ast.Type, hiddenRet bool) ([]argLoc, int) {
	nextInt, nextSSE, stack := 0, 0, 0
	if hiddenRet {
		nextInt = 1
	}
	locs := make([]argLoc, len(types))
	for i, t := range types {
		loc := argLoc{t: t}
		switch t.(type) {
		case ast.Double:
			if nextSSE < len(sseArgRegs) {
				loc.regs = []Register{sseArgRegs[nextSSE]}
				nextSSE++
			}
		case ast.Struct:
			classes := Classify(symbols, t)
			needInt, needSSE := 0, 0
			for _, c := range classes {
				switch c {
				case ClassInteger:
					needInt++
				case ClassSSE:
					needSSE++
				}
			}
			if !inMemory(classes) && nextInt+needInt <= len(intArgRegs) && nextSSE+needSSE <= len(sseArgRegs) {
				for _, c := range classes {
					if c == ClassSSE {
						loc.regs = append(loc.regs, sseArgRegs[nextSSE])
						nextSSE++
					} else {
						loc.regs = append(loc.regs, intArgRegs[nextInt])
						nextInt++
					}
				}
			}
		default:
			if nextInt < len(intArgRegs) {
				loc.regs = []Register{intArgRegs[nextInt]}
				nextInt++
			}
		}
		if loc.onStack() {
			loc.stack = stack
			stack += int((symbols.SizeOf(t) + 7) / 8)
		}
		locs[i] = loc
	}
	return locs, stack
}

// retLoc returns the registers holding a returned value, one per eightbyte, and
// whether the value is instead returned through a caller-supplied address.
func retLoc(symbols *symtab.Table, t ast.Type) ([]Register, bool) {
	switch t.(type) {
	case ast.Void:
		return nil, false
	case ast.Double:
		return []Register{XMM0}, false
	case ast.Struct:
		classes := Classify(symbols, t)
		if inMemory(classes) {
			return nil, true
		}
		var regs []Register
		nextInt, nextSSE := 0, 0
		for _, c := range classes {
			if c == ClassSSE {
				regs = append(regs, sseRetRegs[nextSSE])
				nextSSE++
			} else {
				regs = append(regs, intRetRegs[nextInt])
				nextInt++
			}
		}
		return regs, false
	}
	return []Register{AX}, false
}
