// Package symtab is the symbol table shared by every pass after parsing.
//
// The resolver and the type checker add identifiers and structure layouts, TAC
// lowering adds temporaries and string constants, and the optimizer and code
// generator only read it.
package symtab

import (
	"sort"

	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/intern"
	"github.com/xplshn/xcc/pkg/util"
)

// Attrs describes the storage and linkage of a symbol.
type Attrs interface{ isAttrs() }

type (
	FunAttr struct {
		Defined bool
		Global  bool
	}

	StaticAttr struct {
		Init   InitialValue
		Global bool
	}

	// ConstantAttr marks read-only data the compiler itself creates, such as string
	// literals that are not used to initialize an array.
	ConstantAttr struct{ Init StaticInit }

	LocalAttr struct{}
)

func (FunAttr) isAttrs()      {}
func (StaticAttr) isAttrs()   {}
func (ConstantAttr) isAttrs() {}
func (LocalAttr) isAttrs()    {}

type Entry struct {
	Name  string
	Type  ast.Type
	Attrs Attrs
}

type Table struct {
	entries map[string]*Entry
	order   []string
	structs map[string]*StructDef
}

func New() *Table {
	return &Table{
		entries: make(map[string]*Entry),
		structs: make(map[string]*StructDef),
	}
}

// Add inserts or replaces the entry for name.
func (t *Table) Add(name string, typ ast.Type, attrs Attrs) *Entry {
	if e, ok := t.entries[name]; ok {
		e.Type, e.Attrs = typ, attrs
		return e
	}
	e := &Entry{Name: name, Type: typ, Attrs: attrs}
	t.entries[name] = e
	t.order = append(t.order, name)
	return e
}

func (t *Table) AddLocal(name string, typ ast.Type) *Entry { return t.Add(name, typ, LocalAttr{}) }

func (t *Table) Lookup(name string) (*Entry, bool) {
	e, ok := t.entries[name]
	return e, ok
}

// Get returns the entry for name or nil.
func (t *Table) Get(name string) *Entry { return t.entries[name] }

// TypeOf returns the type of name, or nil when it is unknown.
func (t *Table) TypeOf(name string) ast.Type {
	if e, ok := t.entries[name]; ok {
		return e.Type
	}
	return nil
}

// Entries returns every entry in insertion order.
func (t *Table) Entries() []*Entry {
	out := make([]*Entry, len(t.order))
	for i, name := range t.order {
		out[i] = t.entries[name]
	}
	return out
}

// IsStatic reports whether name has static storage duration.
func (t *Table) IsStatic(name string) bool {
	e, ok := t.entries[name]
	if !ok {
		return false
	}
	switch e.Attrs.(type) {
	case StaticAttr, ConstantAttr:
		return true
	}
	return false
}

// IsDefinedFunction reports whether name is a function with a body in this unit.
func (t *Table) IsDefinedFunction(name string) bool {
	e, ok := t.entries[name]
	if !ok {
		return false
	}
	f, ok := e.Attrs.(FunAttr)
	return ok && f.Defined
}

// AddString stores s as a read-only NUL-terminated array and returns its name.
func (t *Table) AddString(pool *intern.Pool, s string) string {
	name := pool.Fresh("string")
	typ := ast.Array{Elem: ast.Char{}, Size: int64(len(s)) + 1}
	t.Add(name, typ, ConstantAttr{Init: StringInit{Value: s, NullTerminated: true}})
	return name
}

// Statics returns the names of every static-storage variable, sorted.
func (t *Table) Statics() []string {
	var out []string
	for _, name := range t.order {
		if _, ok := t.entries[name].Attrs.(StaticAttr); ok {
			out = append(out, name)
		}
	}
	sort.Strings(out)
	return out
}

// Structure layouts

type MemberEntry struct {
	Name   string
	Type   ast.Type
	Offset int64
}

type StructDef struct {
	Tag       string
	Union     bool
	Alignment int64
	Size      int64
	Members   []MemberEntry
}

func (d *StructDef) Member(name string) (MemberEntry, bool) {
	for _, m := range d.Members {
		if m.Name == name {
			return m, true
		}
	}
	return MemberEntry{}, false
}

func (t *Table) AddStruct(def *StructDef) { t.structs[def.Tag] = def }

func (t *Table) Struct(tag string) (*StructDef, bool) {
	d, ok := t.structs[tag]
	return d, ok
}

// IsComplete reports whether objects of type typ can be created.
func (t *Table) IsComplete(typ ast.Type) bool {
	switch typ := typ.(type) {
	case ast.Void:
		return false
	case ast.Struct:
		_, ok := t.structs[typ.Tag]
		return ok
	case ast.Array:
		return t.IsComplete(typ.Elem)
	}
	return true
}

// SizeOf returns the size of typ in bytes. Incomplete types have size 0.
func (t *Table) SizeOf(typ ast.Type) int64 {
	switch typ := typ.(type) {
	case ast.Char, ast.SChar, ast.UChar:
		return 1
	case ast.Int, ast.UInt:
		return 4
	case ast.Long, ast.ULong, ast.Double, ast.Pointer:
		return 8
	case ast.Array:
		return typ.Size * t.SizeOf(typ.Elem)
	case ast.Struct:
		if d, ok := t.structs[typ.Tag]; ok {
			return d.Size
		}
	}
	return 0
}

func (t *Table) AlignOf(typ ast.Type) int64 {
	switch typ := typ.(type) {
	case ast.Array:
		return t.AlignOf(typ.Elem)
	case ast.Struct:
		if d, ok := t.structs[typ.Tag]; ok {
			return d.Alignment
		}
		return 1
	}
	if n := t.SizeOf(typ); n > 0 {
		return n
	}
	return 1
}

// Layout computes member offsets, size and alignment for a structure or union whose
// member types are complete.
func (t *Table) Layout(tag string, union bool, names []string, types []ast.Type) *StructDef {
	def := &StructDef{Tag: tag, Union: union, Alignment: 1}
	var offset int64
	for i, name := range names {
		align := t.AlignOf(types[i])
		size := t.SizeOf(types[i])
		if align > def.Alignment {
			def.Alignment = align
		}
		if union {
			def.Members = append(def.Members, MemberEntry{Name: name, Type: types[i], Offset: 0})
			if size > offset {
				offset = size
			}
			continue
		}
		offset = util.AlignUp(offset, align)
		def.Members = append(def.Members, MemberEntry{Name: name, Type: types[i], Offset: offset})
		offset += size
	}
	def.Size = util.AlignUp(offset, def.Alignment)
	return def
}
