package codegen

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/config"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

// qbeBackend translates TAC to QBE IL. Scalar locals whose address is never taken
// become QBE temporaries; every other object lives in memory and is reached
// through loads and stores.
type qbeBackend struct {
	out        *strings.Builder
	prog       *ir.Program
	cfg        *config.Config
	memory     map[string]bool
	tmp        int
	terminated bool
}

func NewQBEBackend() Backend { return &qbeBackend{} }

// GenerateQBEIL renders prog as QBE IL without running QBE on it.
func GenerateQBEIL(prog *ir.Program, cfg *config.Config) (string, error) {
	return (&qbeBackend{}).GenerateIL(prog, cfg)
}

var qbeNames = strings.NewReplacer(".", "_")

// GenerateIL renders prog as QBE IL text.
func (b *qbeBackend) GenerateIL(prog *ir.Program, cfg *config.Config) (string, error) {
	var sb strings.Builder
	b.out, b.prog, b.cfg = &sb, prog, cfg
	b.tmp = 0

	b.genStructTypes()
	for _, g := range prog.Globals {
		b.genGlobal(g)
	}
	for _, fn := range prog.Funcs {
		b.genFunc(fn)
	}
	return sb.String(), nil
}

func (b *qbeBackend) newTemp() string {
	b.tmp++
	return fmt.Sprintf("%%__t%d", b.tmp)
}

func (b *qbeBackend) newLabel() string {
	b.tmp++
	return fmt.Sprintf("@__L%d", b.tmp)
}

func (b *qbeBackend) emitf(format string, args ...any) {
	b.out.WriteByte('\t')
	fmt.Fprintf(b.out, format, args...)
	b.out.WriteByte('\n')
}

// Types

func isAggregate(t ast.Type) bool {
	switch t.(type) {
	case ast.Struct, ast.Array:
		return true
	}
	return false
}

// class is the QBE base type holding values of t.
func class(t ast.Type) string {
	switch t.(type) {
	case ast.Long, ast.ULong, ast.Pointer:
		return "l"
	case ast.Double:
		return "d"
	}
	return "w"
}

func loadOp(t ast.Type) string {
	switch t.(type) {
	case ast.Char, ast.SChar:
		return "loadsb"
	case ast.UChar:
		return "loadub"
	}
	return "load" + class(t)
}

func storeOp(t ast.Type) string {
	if ast.IsCharacter(t) {
		return "storeb"
	}
	return "store" + class(t)
}

func (b *qbeBackend) abiType(t ast.Type) string {
	if st, ok := t.(ast.Struct); ok {
		return ":" + qbeNames.Replace(st.Tag)
	}
	return class(t)
}

func (b *qbeBackend) fieldType(t ast.Type) string {
	switch t := t.(type) {
	case ast.Char, ast.SChar, ast.UChar:
		return "b"
	case ast.Array:
		return fmt.Sprintf("%s %d", b.fieldType(t.Elem), t.Size)
	}
	return b.abiType(t)
}

// genStructTypes declares every structure layout before its first use. Layouts
// are emitted inner-first so that nested types are already known to QBE.
func (b *qbeBackend) genStructTypes() {
	done := make(map[string]bool)
	var tags []string
	for _, e := range b.prog.Symbols.Entries() {
		collectTags(e.Type, &tags)
	}
	var emit func(tag string)
	emit = func(tag string) {
		if done[tag] {
			return
		}
		done[tag] = true
		def, ok := b.prog.Symbols.Struct(tag)
		if !ok {
			return
		}
		var inner []string
		for _, m := range def.Members {
			collectTags(m.Type, &inner)
		}
		for _, t := range inner {
			emit(t)
		}
		b.genStructType(def)
	}
	sort.Strings(tags)
	for _, tag := range tags {
		emit(tag)
	}
}

func collectTags(t ast.Type, tags *[]string) {
	switch t := t.(type) {
	case ast.Struct:
		*tags = append(*tags, t.Tag)
	case ast.Array:
		collectTags(t.Elem, tags)
	case ast.FunType:
		for _, p := range t.Params {
			collectTags(p, tags)
		}
		collectTags(t.Ret, tags)
	}
}

func (b *qbeBackend) genStructType(def *symtab.StructDef) {
	name := qbeNames.Replace(def.Tag)
	if def.Union {
		var cases []string
		for _, m := range def.Members {
			cases = append(cases, "{ "+b.fieldType(m.Type)+" }")
		}
		fmt.Fprintf(b.out, "type :%s = align %d { %s }\n", name, def.Alignment, strings.Join(cases, " "))
		return
	}
	var fields []string
	var offset int64
	for _, m := range def.Members {
		if m.Offset > offset {
			fields = append(fields, fmt.Sprintf("b %d", m.Offset-offset))
		}
		fields = append(fields, b.fieldType(m.Type))
		offset = m.Offset + b.prog.Symbols.SizeOf(m.Type)
	}
	fmt.Fprintf(b.out, "type :%s = align %d { %s }\n", name, def.Alignment, strings.Join(fields, ", "))
}

// Data

func (b *qbeBackend) genGlobal(g *ir.Data) {
	linkage := ""
	if g.Global {
		linkage = "export "
	}
	var items []string
	for _, it := range g.Items {
		switch it := it.(type) {
		case symtab.ZeroInit:
			items = append(items, fmt.Sprintf("z %d", it.N))
		case symtab.StringInit:
			if it.Value != "" {
				items = append(items, fmt.Sprintf("b \"%s\"", ir.Escape(it.Value)))
			}
			if it.NullTerminated {
				items = append(items, "b 0")
			}
		case symtab.PointerInit:
			items = append(items, "l $"+qbeNames.Replace(it.Name))
		case symtab.ConstInit:
			switch c := it.Value.(type) {
			case ast.ConstDouble:
				items = append(items, fmt.Sprintf("l %d", int64(math.Float64bits(c.V))))
			case ast.ConstChar, ast.ConstUChar:
				items = append(items, fmt.Sprintf("b %d", ast.Int64(c)))
			default:
				items = append(items, fmt.Sprintf("%s %d", class(c.Type()), ast.Int64(c)))
			}
		}
	}
	fmt.Fprintf(b.out, "%sdata $%s = align %d { %s }\n", linkage, qbeNames.Replace(g.Name), g.Align, strings.Join(items, ", "))
}

// Functions

func (b *qbeBackend) isStatic(name string) bool { return b.prog.Symbols.IsStatic(name) }

// addr is the QBE operand holding the address of a memory-resident object.
func (b *qbeBackend) addr(name string) string {
	if b.isStatic(name) {
		return "$" + qbeNames.Replace(name)
	}
	return "%" + qbeNames.Replace(name)
}

func (b *qbeBackend) typeOf(v ir.Value) ast.Type { return b.prog.TypeOf(v) }

func (b *qbeBackend) genFunc(fn *ir.Func) {
	ft, _ := b.prog.Symbols.TypeOf(fn.Name).(ast.FunType)

	b.memory = make(map[string]bool)
	for _, instr := range fn.Body {
		if instr.Op == ir.OpAddr {
			if v, ok := instr.Args[0].(ir.Var); ok {
				b.memory[v.Name] = true
			}
		}
	}

	linkage := ""
	if fn.Global {
		linkage = "export "
	}
	ret := ""
	if _, isVoid := ft.Ret.(ast.Void); !isVoid {
		ret = b.abiType(ft.Ret) + " "
	}

	var params []string
	var spills []string
	for _, p := range fn.Params {
		t := b.prog.Symbols.TypeOf(p)
		name := qbeNames.Replace(p)
		switch {
		case isAggregate(t):
			params = append(params, b.abiType(t)+" %"+name)
		case b.memory[p]:
			params = append(params, class(t)+" %__in_"+name)
			spills = append(spills, p)
		default:
			params = append(params, class(t)+" %"+name)
		}
	}
	fmt.Fprintf(b.out, "\n%sfunction %s$%s(%s) {\n@start\n", linkage, ret, qbeNames.Replace(fn.Name), strings.Join(params, ", "))

	b.genAllocs(fn)
	for _, p := range spills {
		t := b.prog.Symbols.TypeOf(p)
		b.emitf("%s %%__in_%s, %s", storeOp(t), qbeNames.Replace(p), b.addr(p))
	}
	for _, p := range fn.Params {
		t := b.prog.Symbols.TypeOf(p)
		if ast.IsCharacter(t) && !b.memory[p] {
			name := "%" + qbeNames.Replace(p)
			b.emitf("%s =w %s %s", name, extOp(t), name)
		}
	}

	b.terminated = false
	for _, instr := range fn.Body {
		b.genInstr(instr)
	}
	if !b.terminated {
		b.emitf("ret")
	}
	b.out.WriteString("}\n")
}

// genAllocs reserves stack memory for aggregates and address-taken scalars.
func (b *qbeBackend) genAllocs(fn *ir.Func) {
	params := make(map[string]bool)
	for _, p := range fn.Params {
		params[p] = true
	}
	seen := make(map[string]bool)
	visit := func(v ir.Value) {
		vr, ok := v.(ir.Var)
		if !ok || seen[vr.Name] || b.isStatic(vr.Name) {
			return
		}
		seen[vr.Name] = true
		t := b.prog.Symbols.TypeOf(vr.Name)
		if isAggregate(t) {
			b.memory[vr.Name] = true
			if params[vr.Name] {
				return
			}
		} else if !b.memory[vr.Name] {
			return
		}
		align := b.prog.Symbols.AlignOf(t)
		switch {
		case align <= 4:
			b.emitf("%s =l alloc4 %d", b.addr(vr.Name), b.prog.Symbols.SizeOf(t))
		case align <= 8:
			b.emitf("%s =l alloc8 %d", b.addr(vr.Name), b.prog.Symbols.SizeOf(t))
		default:
			b.emitf("%s =l alloc16 %d", b.addr(vr.Name), b.prog.Symbols.SizeOf(t))
		}
	}
	for _, p := range fn.Params {
		visit(ir.Var{Name: p})
	}
	for _, instr := range fn.Body {
		for _, a := range instr.Args {
			visit(a)
		}
		if instr.Dst != nil {
			visit(instr.Dst)
		}
		if instr.Op == ir.OpCopyToOffset || instr.Op == ir.OpCopyFromOffset {
			visit(ir.Var{Name: instr.Label})
		}
	}
}

func extOp(t ast.Type) string {
	if ast.IsSigned(t) {
		return "extsb"
	}
	return "extub"
}

// read returns an operand holding the value of v. Aggregates are represented by
// their address.
func (b *qbeBackend) read(v ir.Value) string {
	switch v := v.(type) {
	case ir.Const:
		if d, ok := v.Value.(ast.ConstDouble); ok {
			t := b.newTemp()
			b.emitf("%s =d cast %d", t, int64(math.Float64bits(d.V)))
			return t
		}
		return fmt.Sprintf("%d", ast.Int64(v.Value))
	case ir.Var:
		t := b.prog.Symbols.TypeOf(v.Name)
		if isAggregate(t) {
			return b.addr(v.Name)
		}
		if b.isStatic(v.Name) || b.memory[v.Name] {
			tmp := b.newTemp()
			b.emitf("%s =%s %s %s", tmp, class(t), loadOp(t), b.addr(v.Name))
			return tmp
		}
		return "%" + qbeNames.Replace(v.Name)
	}
	return ""
}

// write assigns the result of a QBE instruction (rhs, computed in class) to dst.
// Character results are brought back to their canonical extended form.
func (b *qbeBackend) write(dst ir.Value, rhs string) {
	v := dst.(ir.Var)
	t := b.prog.Symbols.TypeOf(v.Name)
	if b.isStatic(v.Name) || b.memory[v.Name] {
		tmp := b.newTemp()
		b.emitf("%s =%s %s", tmp, class(t), rhs)
		b.emitf("%s %s, %s", storeOp(t), tmp, b.addr(v.Name))
		return
	}
	name := "%" + qbeNames.Replace(v.Name)
	b.emitf("%s =%s %s", name, class(t), rhs)
	if ast.IsCharacter(t) {
		b.emitf("%s =w %s %s", name, extOp(t), name)
	}
}

// copyBytes copies size bytes between two addresses.
func (b *qbeBackend) copyBytes(dst, src string, size int64) {
	for off := int64(0); off < size; {
		w, cls, load, store := int64(1), "w", "loadub", "storeb"
		switch rest := size - off; {
		case rest >= 8:
			w, cls, load, store = 8, "l", "loadl", "storel"
		case rest >= 4:
			w, cls, load, store = 4, "w", "loadw", "storew"
		}
		s, d, v := b.newTemp(), b.newTemp(), b.newTemp()
		b.emitf("%s =l add %s, %d", s, src, off)
		b.emitf("%s =l add %s, %d", d, dst, off)
		b.emitf("%s =%s %s %s", v, cls, load, s)
		b.emitf("%s %s, %s", store, v, d)
		off += w
	}
}

func (b *qbeBackend) zero(t ast.Type) string {
	if _, ok := t.(ast.Double); ok {
		return b.read(ir.Const{Value: ast.ConstDouble{V: 0}})
	}
	return "0"
}

// truth converts a scalar to a w operand that is non-zero when v is.
func (b *qbeBackend) truth(v ir.Value) string {
	t := b.typeOf(v)
	op := b.read(v)
	if class(t) == "w" {
		return op
	}
	c := b.newTemp()
	b.emitf("%s =w cne%s %s, %s", c, class(t), op, b.zero(t))
	return c
}

var qbeArith = map[ir.Op]string{
	ir.OpAdd: "add", ir.OpSub: "sub", ir.OpMul: "mul",
	ir.OpAnd: "and", ir.OpOr: "or", ir.OpXor: "xor", ir.OpShl: "shl",
}

var qbeCompare = map[ir.Op][3]string{
	// signed, unsigned, double
	ir.OpCEq:  {"ceq", "ceq", "ceq"},
	ir.OpCNeq: {"cne", "cne", "cne"},
	ir.OpCLt:  {"cslt", "cult", "clt"},
	ir.OpCLe:  {"csle", "cule", "cle"},
	ir.OpCGt:  {"csgt", "cugt", "cgt"},
	ir.OpCGe:  {"csge", "cuge", "cge"},
}

func (b *qbeBackend) startBlock() {
	if b.terminated {
		fmt.Fprintf(b.out, "%s\n", b.newLabel())
		b.terminated = false
	}
}

func (b *qbeBackend) genInstr(instr *ir.Instruction) {
	if instr.Op == ir.OpLabel {
		fmt.Fprintf(b.out, "@%s\n", qbeNames.Replace(instr.Label))
		b.terminated = false
		return
	}
	b.startBlock()

	switch op := instr.Op; {
	case op == ir.OpRet:
		if len(instr.Args) == 0 {
			b.emitf("ret")
		} else {
			b.emitf("ret %s", b.read(instr.Args[0]))
		}
		b.terminated = true

	case op == ir.OpJmp:
		b.emitf("jmp @%s", qbeNames.Replace(instr.Label))
		b.terminated = true

	case op == ir.OpJz || op == ir.OpJnz:
		c := b.truth(instr.Args[0])
		next := b.newLabel()
		target := "@" + qbeNames.Replace(instr.Label)
		if op == ir.OpJz {
			b.emitf("jnz %s, %s, %s", c, next, target)
		} else {
			b.emitf("jnz %s, %s, %s", c, target, next)
		}
		fmt.Fprintf(b.out, "%s\n", next)

	case op == ir.OpCopy:
		t := b.typeOf(instr.Dst)
		if isAggregate(t) {
			b.copyBytes(b.addr(instr.Dst.(ir.Var).Name), b.read(instr.Args[0]), b.prog.Symbols.SizeOf(t))
			return
		}
		b.write(instr.Dst, "copy "+b.read(instr.Args[0]))

	case op.IsUnary():
		t := b.typeOf(instr.Args[0])
		src := b.read(instr.Args[0])
		switch op {
		case ir.OpNeg:
			b.write(instr.Dst, "neg "+src)
		case ir.OpCom:
			b.write(instr.Dst, fmt.Sprintf("xor %s, -1", src))
		case ir.OpNot:
			b.write(instr.Dst, fmt.Sprintf("ceq%s %s, %s", class(t), src, b.zero(t)))
		}

	case op.IsRelational():
		t := b.typeOf(instr.Args[0])
		x, y := b.read(instr.Args[0]), b.read(instr.Args[1])
		names := qbeCompare[op]
		name := names[0]
		switch {
		case class(t) == "d":
			name = names[2]
		case !ast.IsSigned(t):
			name = names[1]
		}
		b.write(instr.Dst, fmt.Sprintf("%s%s %s, %s", name, class(t), x, y))

	case op.IsBinary():
		t := b.typeOf(instr.Args[0])
		x, y := b.read(instr.Args[0]), b.read(instr.Args[1])
		name, ok := qbeArith[op]
		if !ok {
			signed := ast.IsSigned(t) || class(t) == "d"
			switch op {
			case ir.OpDiv:
				name = map[bool]string{true: "div", false: "udiv"}[signed]
			case ir.OpRem:
				name = map[bool]string{true: "rem", false: "urem"}[signed]
			case ir.OpShr:
				name = map[bool]string{true: "sar", false: "shr"}[signed]
			}
		}
		b.write(instr.Dst, fmt.Sprintf("%s %s, %s", name, x, y))

	case op.IsConversion():
		b.genConversion(instr)

	case op == ir.OpCall:
		b.genCall(instr)

	case op == ir.OpAddr:
		b.write(instr.Dst, "copy "+b.addr(instr.Args[0].(ir.Var).Name))

	case op == ir.OpLoad:
		t := b.typeOf(instr.Dst)
		ptr := b.read(instr.Args[0])
		if isAggregate(t) {
			b.copyBytes(b.addr(instr.Dst.(ir.Var).Name), ptr, b.prog.Symbols.SizeOf(t))
			return
		}
		b.write(instr.Dst, loadOp(t)+" "+ptr)

	case op == ir.OpStore:
		t := b.typeOf(instr.Args[0])
		src, ptr := b.read(instr.Args[0]), b.read(instr.Args[1])
		if isAggregate(t) {
			b.copyBytes(ptr, src, b.prog.Symbols.SizeOf(t))
			return
		}
		b.emitf("%s %s, %s", storeOp(t), src, ptr)

	case op == ir.OpAddPtr:
		ptr, idx := b.read(instr.Args[0]), b.read(instr.Args[1])
		scaled := idx
		if instr.Offset != 1 {
			scaled = b.newTemp()
			b.emitf("%s =l mul %s, %d", scaled, idx, instr.Offset)
		}
		b.write(instr.Dst, fmt.Sprintf("add %s, %s", ptr, scaled))

	case op == ir.OpCopyToOffset:
		t := b.typeOf(instr.Args[0])
		src := b.read(instr.Args[0])
		at := b.newTemp()
		b.emitf("%s =l add %s, %d", at, b.addr(instr.Label), instr.Offset)
		if isAggregate(t) {
			b.copyBytes(at, src, b.prog.Symbols.SizeOf(t))
			return
		}
		b.emitf("%s %s, %s", storeOp(t), src, at)

	case op == ir.OpCopyFromOffset:
		t := b.typeOf(instr.Dst)
		at := b.newTemp()
		b.emitf("%s =l add %s, %d", at, b.addr(instr.Label), instr.Offset)
		if isAggregate(t) {
			b.copyBytes(b.addr(instr.Dst.(ir.Var).Name), at, b.prog.Symbols.SizeOf(t))
			return
		}
		b.write(instr.Dst, loadOp(t)+" "+at)
	}
}

func (b *qbeBackend) genConversion(instr *ir.Instruction) {
	from, to := b.typeOf(instr.Args[0]), b.typeOf(instr.Dst)
	src := b.read(instr.Args[0])
	switch instr.Op {
	case ir.OpSignExt, ir.OpZeroExt:
		switch {
		case class(to) == "w":
			// Character values are already extended to 32 bits.
			b.write(instr.Dst, "copy "+src)
		case ast.IsCharacter(from):
			b.write(instr.Dst, extOp(from)+" "+src)
		case instr.Op == ir.OpSignExt:
			b.write(instr.Dst, "extsw "+src)
		default:
			b.write(instr.Dst, "extuw "+src)
		}
	case ir.OpTrunc:
		if ast.IsCharacter(to) {
			b.write(instr.Dst, extOp(to)+" "+src)
			return
		}
		b.write(instr.Dst, "copy "+src)
	case ir.OpDToSI:
		b.write(instr.Dst, "dtosi "+src)
	case ir.OpDToUI:
		if class(to) == "w" && !ast.IsCharacter(to) {
			// unsigned int: convert through a 64-bit signed value.
			wide := b.newTemp()
			b.emitf("%s =l dtosi %s", wide, src)
			b.write(instr.Dst, "copy "+wide)
			return
		}
		b.write(instr.Dst, "dtoui "+src)
	case ir.OpSIToD:
		b.write(instr.Dst, map[string]string{"w": "swtof ", "l": "sltof "}[class(from)]+src)
	case ir.OpUIToD:
		b.write(instr.Dst, map[string]string{"w": "uwtof ", "l": "ultof "}[class(from)]+src)
	}
}

func (b *qbeBackend) genCall(instr *ir.Instruction) {
	ft, _ := b.prog.Symbols.TypeOf(instr.Label).(ast.FunType)
	args := make([]string, len(instr.Args))
	for i, a := range instr.Args {
		args[i] = b.abiType(b.typeOf(a)) + " " + b.read(a)
	}
	call := fmt.Sprintf("call $%s(%s)", qbeNames.Replace(instr.Label), strings.Join(args, ", "))
	if instr.Dst == nil {
		b.emitf("%s", call)
		return
	}
	t := b.typeOf(instr.Dst)
	if isAggregate(t) {
		res := b.newTemp()
		b.emitf("%s =%s %s", res, b.abiType(ft.Ret), call)
		b.copyBytes(b.addr(instr.Dst.(ir.Var).Name), res, b.prog.Symbols.SizeOf(t))
		return
	}
	b.write(instr.Dst, call)
}
