package codegen

import (
	"encoding/binary"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

// scalarSize is the storage size of a scalar type; pointers are 8 bytes.
func (ctx *Context) scalarSize(t ast.Type) int64 {
	if ast.IsPointer(t) {
		return 8
	}
	return ctx.symbols.SizeOf(t)
}

// convert emits the conversion of v from one scalar type to another and returns
// the converted value.
func (ctx *Context) convert(v ir.Value, from, to ast.Type) ir.Value {
	if ast.Equal(from, to) {
		return v
	}
	if _, ok := to.(ast.Void); ok {
		return v
	}
	_, fromDouble := from.(ast.Double)
	_, toDouble := to.(ast.Double)

	var op ir.Op
	switch {
	case fromDouble && toDouble:
		return v
	case toDouble:
		op = ir.OpSIToD
		if !ast.IsSigned(from) {
			op = ir.OpUIToD
		}
	case fromDouble:
		op = ir.OpDToSI
		if !ast.IsSigned(to) {
			op = ir.OpDToUI
		}
	default:
		fs, ts := ctx.scalarSize(from), ctx.scalarSize(to)
		switch {
		case fs == ts:
			op = ir.OpCopy
		case ts < fs:
			op = ir.OpTrunc
		case ast.IsSigned(from):
			op = ir.OpSignExt
		default:
			op = ir.OpZeroExt
		}
	}
	dst := ctx.newTemp(to)
	ctx.emit(ir.Unary(op, v, dst))
	return dst
}

// initialize stores init into the automatic object name at the given offset. whole
// is set when the initializer covers the complete object.
func (ctx *Context) initialize(name string, t ast.Type, offset int64, init ast.Initializer, whole bool) {
	switch init := init.(type) {
	case *ast.SingleInit:
		if s, ok := init.Expr.(*ast.String); ok {
			if a, ok := t.(ast.Array); ok {
				ctx.initString(name, offset, s.Value, a.Size)
				return
			}
		}
		v := ctx.value(init.Expr)
		if whole {
			ctx.emit(ir.Copy(v, ir.Var{Name: name}))
		} else {
			ctx.emit(ir.CopyToOffset(v, name, offset))
		}

	case *ast.CompoundInit:
		switch t := t.(type) {
		case ast.Array:
			es := ctx.symbols.SizeOf(t.Elem)
			for i, sub := range init.Inits {
				ctx.initialize(name, t.Elem, offset+int64(i)*es, sub, false)
			}
			n := int64(len(init.Inits))
			ctx.zeroFill(name, offset+n*es, (t.Size-n)*es)
		case ast.Struct:
			def, _ := ctx.symbols.Struct(t.Tag)
			var end int64
			for i, sub := range init.Inits {
				m := def.Members[i]
				ctx.initialize(name, m.Type, offset+m.Offset, sub, false)
				end = m.Offset + ctx.symbols.SizeOf(m.Type)
			}
			ctx.zeroFill(name, offset+end, def.Size-end)
		}
	}
}

// initString copies a string literal into a char array, padding with zeros up to
// the array size. Bytes are moved in the widest chunks that fit.
func (ctx *Context) initString(name string, offset int64, s string, size int64) {
	buf := make([]byte, size)
	copy(buf, s)
	for i := int64(0); i < size; {
		switch rest := size - i; {
		case rest >= 8:
			v := int64(binary.LittleEndian.Uint64(buf[i:]))
			ctx.emit(ir.CopyToOffset(ir.Const{Value: ast.ConstLong{V: v}}, name, offset+i))
			i += 8
		case rest >= 4:
			v := int32(binary.LittleEndian.Uint32(buf[i:]))
			ctx.emit(ir.CopyToOffset(ir.Const{Value: ast.ConstInt{V: v}}, name, offset+i))
			i += 4
		default:
			ctx.emit(ir.CopyToOffset(ir.Const{Value: ast.ConstChar{V: int8(buf[i])}}, name, offset+i))
			i++
		}
	}
}

// zeroFill clears n bytes of name starting at offset.
func (ctx *Context) zeroFill(name string, offset, n int64) {
	for n > 0 {
		var c ast.Const
		var w int64
		switch {
		case n >= 8:
			c, w = ast.ConstLong{V: 0}, 8
		case n >= 4:
			c, w = ast.ConstInt{V: 0}, 4
		default:
			c, w = ast.ConstChar{V: 0}, 1
		}
		ctx.emit(ir.CopyToOffset(ir.Const{Value: c}, name, offset))
		offset += w
		n -= w
	}
}

// genStatics turns every static object and string constant in the symbol table
// into a data definition, in the order they were declared.
func (ctx *Context) genStatics() {
	for _, e := range ctx.symbols.Entries() {
		switch a := e.Attrs.(type) {
		case symtab.StaticAttr:
			var items []symtab.StaticInit
			switch a.Init.Kind {
			case symtab.Initialized:
				items = a.Init.Inits
			case symtab.Tentative:
				items = []symtab.StaticInit{symtab.ZeroInit{N: ctx.symbols.SizeOf(e.Type)}}
			default:
				continue
			}
			ctx.prog.Globals = append(ctx.prog.Globals, &ir.Data{
				Name: e.Name, Global: a.Global, Type: e.Type, Align: ctx.alignOf(e.Type), Items: items,
			})
		case symtab.ConstantAttr:
			ctx.prog.Globals = append(ctx.prog.Globals, &ir.Data{
				Name: e.Name, ReadOnly: true, Type: e.Type, Align: ctx.alignOf(e.Type), Items: []symtab.StaticInit{a.Init},
			})
		}
	}
}

// alignOf raises arrays of 16 bytes or more to 16-byte alignment, as the System V
// ABI asks of them.
func (ctx *Context) alignOf(t ast.Type) int64 {
	if _, ok := t.(ast.Array); ok && ctx.symbols.SizeOf(t) >= 16 {
		return 16
	}
	return ctx.symbols.AlignOf(t)
}
