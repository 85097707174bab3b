package optimizer

import (
	"github.com/xplshn/xcc/pkg/ast"
	"github.com/xplshn/xcc/pkg/ir"
	"github.com/xplshn/xcc/pkg/symtab"
)

// copyFact asserts that Dst currently holds the same value as Src.
type copyFact struct {
	Dst string
	Src ir.Value
}

// key identifies a fact. Constants are keyed by their text so that 0.0 and -0.0
// stay apart.
func (c copyFact) key() string { return c.Dst + "=" + c.Src.String() }

func (c copyFact) reverse() (copyFact, bool) {
	src, ok := c.Src.(ir.Var)
	if !ok {
		return copyFact{}, false
	}
	return copyFact{Dst: src.Name, Src: ir.Var{Name: c.Dst}}, true
}

func (c copyFact) mentions(name string) bool {
	if c.Dst == name {
		return true
	}
	v, ok := c.Src.(ir.Var)
	return ok && v.Name == name
}

// copySet is a set of indexes into the function's list of copy facts.
type copySet []bool

func (s copySet) clone() copySet { return append(copySet(nil), s...) }

func (s copySet) equal(o copySet) bool {
	for i := range s {
		if s[i] != o[i] {
			return false
		}
	}
	return true
}

type instrKey struct{ block, index int }

type copyProp struct {
	g       *Graph
	symbols *symtab.Table
	aliased map[string]bool
	facts   []copyFact
	index   map[string]int
	out     map[int]copySet
	before  map[instrKey]copySet
}

// PropagateCopies replaces uses of a variable by the value most recently copied
// into it, wherever that copy reaches along every path.
func PropagateCopies(g *Graph, symbols *symtab.Table, aliased map[string]bool) bool {
	cp := &copyProp{g: g, symbols: symbols, aliased: aliased, index: make(map[string]int)}
	for _, b := range g.Blocks {
		for _, instr := range b.Instrs {
			if f, ok := cp.fact(instr); ok {
				if _, seen := cp.index[f.key()]; !seen {
					cp.index[f.key()] = len(cp.facts)
					cp.facts = append(cp.facts, f)
				}
			}
		}
	}
	if len(cp.facts) == 0 {
		return false
	}
	cp.solve()
	return cp.rewrite()
}

// fact returns the copy instr establishes, if it is a copy between values of the
// same type.
func (cp *copyProp) fact(instr *ir.Instruction) (copyFact, bool) {
	if instr.Op != ir.OpCopy {
		return copyFact{}, false
	}
	dst := instr.Dst.(ir.Var)
	dt := cp.symbols.TypeOf(dst.Name)
	var st ast.Type
	switch src := instr.Args[0].(type) {
	case ir.Const:
		st = src.Value.Type()
	case ir.Var:
		st = cp.symbols.TypeOf(src.Name)
	}
	if !ast.Equal(dt, st) && !(ast.IsPointer(dt) && ast.IsPointer(st)) {
		return copyFact{}, false
	}
	return copyFact{Dst: dst.Name, Src: instr.Args[0]}, true
}

// holds reports whether f, or the same copy in the other direction, is in set.
func (cp *copyProp) holds(set copySet, f copyFact) bool {
	if i, ok := cp.index[f.key()]; ok && set[i] {
		return true
	}
	if r, ok := f.reverse(); ok {
		if i, ok := cp.index[r.key()]; ok && set[i] {
			return true
		}
	}
	return false
}

func (cp *copyProp) escapes(name string) bool {
	return cp.aliased[name] || cp.symbols.IsStatic(name)
}

func (cp *copyProp) kill(set copySet, pred func(copyFact) bool) {
	for i, f := range cp.facts {
		if set[i] && pred(f) {
			set[i] = false
		}
	}
}

func (cp *copyProp) transfer(instr *ir.Instruction, set copySet) {
	switch instr.Op {
	case ir.OpCopy:
		if f, ok := cp.fact(instr); ok {
			if cp.holds(set, f) {
				return
			}
			cp.kill(set, func(c copyFact) bool { return c.mentions(f.Dst) })
			set[cp.index[f.key()]] = true
			return
		}
	case ir.OpCall:
		cp.kill(set, func(c copyFact) bool {
			src, isVar := c.Src.(ir.Var)
			return cp.escapes(c.Dst) || isVar && cp.escapes(src.Name)
		})
	case ir.OpStore:
		cp.kill(set, func(c copyFact) bool {
			src, isVar := c.Src.(ir.Var)
			return cp.aliased[c.Dst] || isVar && cp.aliased[src.Name]
		})
	case ir.OpCopyToOffset:
		cp.kill(set, func(c copyFact) bool { return c.mentions(instr.Label) })
		return
	}
	if dst, ok := instr.Dst.(ir.Var); ok {
		cp.kill(set, func(c copyFact) bool { return c.mentions(dst.Name) })
	}
}

func (cp *copyProp) full() copySet {
	s := make(copySet, len(cp.facts))
	for i := range s {
		s[i] = true
	}
	return s
}

func (cp *copyProp) meet(b *Block) copySet {
	in := cp.full()
	for _, p := range b.Preds {
		if p == EntryID {
			return make(copySet, len(cp.facts))
		}
		for i, v := range cp.out[p] {
			in[i] = in[i] && v
		}
	}
	return in
}

func (cp *copyProp) solve() {
	cp.out = make(map[int]copySet)
	cp.before = make(map[instrKey]copySet)
	order := cp.g.reversePostorder()
	for _, b := range order {
		cp.out[b.ID] = cp.full()
	}

	queued := make(map[int]bool)
	work := append([]*Block(nil), order...)
	for _, b := range work {
		queued[b.ID] = true
	}
	for len(work) > 0 {
		b := work[0]
		work = work[1:]
		queued[b.ID] = false

		set := cp.meet(b)
		for i, instr := range b.Instrs {
			cp.before[instrKey{b.ID, i}] = set.clone()
			cp.transfer(instr, set)
		}
		if !set.equal(cp.out[b.ID]) {
			cp.out[b.ID] = set
			for _, s := range b.Succs {
				if s >= 0 && !queued[s] {
					work = append(work, cp.g.Blocks[s])
					queued[s] = true
				}
			}
		}
	}
}

func (cp *copyProp) replace(v ir.Value, set copySet) (ir.Value, bool) {
	vr, ok := v.(ir.Var)
	if !ok {
		return v, false
	}
	for i, f := range cp.facts {
		if set[i] && f.Dst == vr.Name {
			return f.Src, true
		}
	}
	return v, false
}

func (cp *copyProp) rewrite() bool {
	changed := false
	for _, b := range cp.g.Blocks {
		kept := b.Instrs[:0]
		for i, instr := range b.Instrs {
			set, ok := cp.before[instrKey{b.ID, i}]
			if !ok {
				kept = append(kept, instr)
				continue
			}
			if f, ok := cp.fact(instr); ok && (cp.holds(set, f) || f.Src == ir.Value(ir.Var{Name: f.Dst})) {
				changed = true
				continue
			}
			if instr.Op != ir.OpAddr {
				for k, a := range instr.Args {
					if r, ok := cp.replace(a, set); ok {
						instr.Args[k] = r
						changed = true
					}
				}
			}
			kept = append(kept, instr)
		}
		b.Instrs = kept
	}
	return changed
}
